package api

import (
	"bytes"
	"context"
	"io"
	"net/http"
	"net/http/httptest"
	"strconv"
	"strings"
	"testing"
)

func TestClientUpload(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		file, header, err := r.FormFile("file")
		if err != nil {
			http.Error(w, err.Error(), http.StatusBadRequest)
			return
		}
		defer file.Close()
		data, _ := io.ReadAll(file)
		w.Header().Set("Content-Type", "application/json")
		io.WriteString(w, `{"name":"`+header.Filename+`","size":`+strconv.Itoa(len(data))+`}`)
	}))
	defer srv.Close()

	var resp struct {
		Name string `json:"name"`
		Size int    `json:"size"`
	}
	c := NewClient(srv.URL)
	if err := c.Upload(context.Background(), "/up", "file", "claim.pdf", []byte("%PDF-1.4"), &resp); err != nil {
		t.Fatalf("Upload: %v", err)
	}
	if resp.Name != "claim.pdf" || resp.Size != 8 {
		t.Errorf("resp = %+v", resp)
	}
}

func TestClientErrorResponse(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusBadRequest)
		io.WriteString(w, `{"error":"Invalid PDF file"}`)
	}))
	defer srv.Close()

	err := NewClient(srv.URL).Get(context.Background(), "/x", nil)
	if err == nil || !strings.Contains(err.Error(), "server error (400): Invalid PDF file") {
		t.Errorf("err = %v", err)
	}
}

func TestClientDownload(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path == "/missing" {
			w.WriteHeader(http.StatusNotFound)
			io.WriteString(w, `{"error":"not found"}`)
			return
		}
		io.WriteString(w, "binary-body")
	}))
	defer srv.Close()

	c := NewClient(srv.URL)
	var buf bytes.Buffer
	n, err := c.Download(context.Background(), "/file", &buf)
	if err != nil {
		t.Fatalf("Download: %v", err)
	}
	if n != int64(len("binary-body")) || buf.String() != "binary-body" {
		t.Errorf("got %d %q", n, buf.String())
	}

	if _, err := c.Download(context.Background(), "/missing", &buf); err == nil {
		t.Error("expected error for 404")
	}
}

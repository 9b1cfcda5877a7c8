package pgcontainer

import (
	"context"
	"net/url"
	"strings"
	"testing"
	"time"

	"github.com/jackzampolin/claimdoc/internal/store"
	"github.com/jackzampolin/claimdoc/internal/testutil"
)

func TestGenerateContainerName(t *testing.T) {
	a := GenerateContainerName("/home/user/.claimdoc")
	b := GenerateContainerName("/home/other/.claimdoc")

	if !strings.HasPrefix(a, ContainerNamePrefix) {
		t.Errorf("GenerateContainerName() = %q, want prefix %q", a, ContainerNamePrefix)
	}
	if len(a) != len(ContainerNamePrefix)+8 {
		t.Errorf("GenerateContainerName() length = %d, want %d", len(a), len(ContainerNamePrefix)+8)
	}
	if a != GenerateContainerName("/home/user/.claimdoc") {
		t.Error("GenerateContainerName() is not deterministic")
	}
	if a == b {
		t.Errorf("different homes share a name: %q", a)
	}
}

func TestManagerDefaults(t *testing.T) {
	tests := []struct {
		name string
		cfg  Config
		want string
	}{
		{"explicit name", Config{ContainerName: "mine", HomePath: "/h"}, "mine"},
		{"home path", Config{HomePath: "/h"}, GenerateContainerName("/h")},
		{"default", Config{}, DefaultContainerName},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			m := newManager(nil, tt.cfg)
			if m.ContainerName() != tt.want {
				t.Errorf("ContainerName() = %q, want %q", m.ContainerName(), tt.want)
			}
			if m.imageName != DefaultImage || m.hostPort != DefaultPort {
				t.Errorf("image/port = %s/%s", m.imageName, m.hostPort)
			}
			if m.labels[Label] != "true" {
				t.Errorf("labels = %v, want %s label", m.labels, Label)
			}
		})
	}
}

func TestDSN(t *testing.T) {
	m := newManager(nil, Config{User: "claims", Password: "p@ss word", Database: "forms", HostPort: "6543"})

	u, err := url.Parse(m.DSN())
	if err != nil {
		t.Fatalf("DSN() is not a URL: %v", err)
	}
	if u.Host != "127.0.0.1:6543" || u.Path != "/forms" {
		t.Errorf("DSN() host/path = %s %s", u.Host, u.Path)
	}
	if pw, _ := u.User.Password(); pw != "p@ss word" {
		t.Errorf("password round trip = %q", pw)
	}
	if u.Query().Get("sslmode") != "disable" {
		t.Errorf("DSN() = %s, want sslmode=disable", m.DSN())
	}
}

func TestNewRequiresPassword(t *testing.T) {
	if _, err := New(Config{}); err == nil {
		t.Error("New() without password should fail")
	}
}

func TestManagerLifecycle(t *testing.T) {
	if testing.Short() {
		t.Skip("skipping docker test in short mode")
	}
	cli := testutil.DockerClient(t)
	target := testutil.NewPostgresTarget(t, cli)

	m := newManager(cli, Config{
		ContainerName: target.Name,
		HostPort:      target.HostPort,
		Password:      "test",
		Labels:        target.Labels,
		ReadyTimeout:  60 * time.Second,
	})
	ctx, cancel := context.WithTimeout(context.Background(), 3*time.Minute)
	defer cancel()

	if err := m.Start(ctx); err != nil {
		t.Fatalf("Start() error = %v", err)
	}
	status, err := m.Status(ctx)
	if err != nil || status != StatusRunning {
		t.Fatalf("Status() = %s, %v; want running", status, err)
	}
	if err := m.ValidateExisting(ctx); err != nil {
		t.Errorf("ValidateExisting() error = %v", err)
	}

	s, err := store.Open(ctx, store.Config{Driver: store.DriverPostgres, DSN: m.DSN()})
	if err != nil {
		t.Fatalf("store.Open() error = %v", err)
	}
	if err := s.Migrate(ctx); err != nil {
		t.Fatalf("Migrate() error = %v", err)
	}
	doc, err := s.CreateDocument(ctx, "claim.pdf", 10, "abc")
	if err != nil {
		t.Fatalf("CreateDocument() error = %v", err)
	}
	if _, err := s.CreateExtraction(ctx, doc.ID, store.ExtractionPending); err != nil {
		t.Errorf("CreateExtraction() error = %v", err)
	}
	s.Close()

	if err := m.Remove(ctx); err != nil {
		t.Fatalf("Remove() error = %v", err)
	}
	if status, _ := m.Status(ctx); status != StatusNotFound {
		t.Errorf("Status() after Remove = %s, want not_found", status)
	}
}

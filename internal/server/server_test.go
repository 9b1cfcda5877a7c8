package server

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"os"
	"path/filepath"
	"testing"
	"time"

	"google.golang.org/grpc"
	"google.golang.org/grpc/credentials/insecure"
	healthpb "google.golang.org/grpc/health/grpc_health_v1"

	"github.com/jackzampolin/claimdoc/internal/api"
	"github.com/jackzampolin/claimdoc/internal/config"
	"github.com/jackzampolin/claimdoc/internal/home"
	"github.com/jackzampolin/claimdoc/internal/pipeline"
	"github.com/jackzampolin/claimdoc/internal/providers"
	"github.com/jackzampolin/claimdoc/internal/rasterize"
	"github.com/jackzampolin/claimdoc/internal/server/endpoints"
	"github.com/jackzampolin/claimdoc/internal/store"
	"github.com/jackzampolin/claimdoc/internal/testutil"
)

var pageReplies = []string{
	"```json\n" + `{"policy_details":{"policy_no":"PN-9"},"insured_info":{"name":"Trần Thị B"},"benefits_to_claim":["Outpatient"]}` + "\n```",
	`{"payment_instructions":{"payment_method":"Cash"}}`,
	`{"declaration":{"signatory_name":"Trần Thị B"}}`,
	`{"physician_report":{"final_diagnosis":"Sốt xuất huyết"}}`,
}

type testEnv struct {
	srv     *Server
	baseURL string
	model   *providers.MockClient
	dbPath  string
	stop    testutil.StartServer
}

// newTestEnv writes a config for an on-disk SQLite store and starts a server
// backed by fake rendering and a mock model.
func newTestEnv(t *testing.T, withGRPC bool, opts ...func(*Config)) *testEnv {
	t.Helper()

	dir := t.TempDir()
	port, err := testutil.FindFreePort()
	if err != nil {
		t.Fatalf("FindFreePort: %v", err)
	}
	grpcPort := ""
	if withGRPC {
		if grpcPort, err = testutil.FindFreePort(); err != nil {
			t.Fatalf("FindFreePort: %v", err)
		}
	}

	dbPath := filepath.Join(dir, "claimdoc.db")
	cfgPath := filepath.Join(dir, "config.yaml")
	cfgYAML := fmt.Sprintf(`log_level: error
defaults:
  llm_provider: mock
pipeline:
  page_delay: 0s
database:
  driver: sqlite
  dsn: %s
server:
  host: 127.0.0.1
  port: "%s"
  grpc_port: "%s"
  allowed_origins: ["*"]
cache:
  enabled: true
  ttl: 1h
`, dbPath, port, grpcPort)
	if err := os.WriteFile(cfgPath, []byte(cfgYAML), 0o644); err != nil {
		t.Fatal(err)
	}

	mgr, err := config.NewManager(cfgPath, dir)
	if err != nil {
		t.Fatalf("NewManager: %v", err)
	}
	h, err := home.New(dir)
	if err != nil {
		t.Fatal(err)
	}

	model := providers.NewMockClient()
	model.Latency = 0
	model.Responses = pageReplies

	cfg := Config{
		ConfigManager: mgr,
		Home:          h,
		Renderer:      &rasterize.Fake{Pages: 4, Images: [][]byte{testutil.PNG(40, 60)}},
		LLM:           model,
		Logger:        slog.New(slog.NewTextHandler(io.Discard, nil)),
	}
	for _, opt := range opts {
		opt(&cfg)
	}
	srv, err := New(cfg)
	if err != nil {
		t.Fatalf("New() error = %v", err)
	}

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- srv.Start(ctx) }()
	env := &testEnv{
		srv:     srv,
		baseURL: "http://127.0.0.1:" + port,
		model:   model,
		dbPath:  dbPath,
		stop:    testutil.StartServer{Cancel: cancel, Done: done},
	}
	t.Cleanup(env.stop.Stop)

	if err := testutil.WaitForServer(env.baseURL, 10*time.Second); err != nil {
		t.Fatalf("server did not start: %v", err)
	}
	return env
}

func TestServer_ExtractionLifecycle(t *testing.T) {
	env := newTestEnv(t, false)
	ctx := context.Background()
	client := api.NewClient(env.baseURL)

	var res pipeline.Result
	if err := client.Upload(ctx, "/v1/extract-multipage", endpoints.UploadField, "claim.pdf", testutil.MinimalPDF(4), &res); err != nil {
		t.Fatalf("extract: %v", err)
	}
	if res.TotalPages != 4 || len(res.PageResults) != 4 {
		t.Fatalf("result pages = %d/%d, want 4/4", res.TotalPages, len(res.PageResults))
	}
	if res.ExtractionID == "" {
		t.Fatal("extraction_id not set")
	}
	if got := res.MergedData["policy_details"]; got == nil {
		t.Errorf("merged_data missing policy_details: %v", res.MergedData)
	}

	t.Run("repeat_upload_is_cached", func(t *testing.T) {
		var again pipeline.Result
		if err := client.Upload(ctx, "/v1/extract-multipage", endpoints.UploadField, "claim.pdf", testutil.MinimalPDF(4), &again); err != nil {
			t.Fatalf("extract: %v", err)
		}
		if !again.Cached {
			t.Error("second upload should be served from cache")
		}
		if n := env.model.RequestCount(); n != 4 {
			t.Errorf("model requests = %d, want 4", n)
		}
	})

	t.Run("list_and_get", func(t *testing.T) {
		var list endpoints.ListExtractionsResponse
		if err := client.Get(ctx, "/v1/extractions", &list); err != nil {
			t.Fatal(err)
		}
		if list.Total < 1 {
			t.Fatalf("total = %d, want at least 1", list.Total)
		}

		var ex store.Extraction
		if err := client.Get(ctx, "/v1/extractions/"+res.ExtractionID, &ex); err != nil {
			t.Fatal(err)
		}
		if ex.Status != store.ExtractionCompleted && ex.Status != store.ExtractionNeedsReview {
			t.Errorf("status = %q", ex.Status)
		}
	})

	t.Run("audit", func(t *testing.T) {
		var audit endpoints.AuditResponse
		if err := client.Get(ctx, "/v1/extractions/"+res.ExtractionID+"/audit", &audit); err != nil {
			t.Fatal(err)
		}
		if len(audit.Entries) == 0 || audit.Entries[0].Action != store.ActionExtracted {
			t.Errorf("audit = %+v", audit.Entries)
		}
	})

	t.Run("llm_calls_are_recorded", func(t *testing.T) {
		deadline := time.Now().Add(10 * time.Second)
		for {
			env.srv.recorder.Flush()
			var calls endpoints.LLMCallsResponse
			if err := client.Get(ctx, "/v1/extractions/"+res.ExtractionID+"/llm-calls", &calls); err != nil {
				t.Fatal(err)
			}
			if len(calls.Calls) == 4 {
				return
			}
			if time.Now().After(deadline) {
				t.Fatalf("llm calls = %d, want 4", len(calls.Calls))
			}
			time.Sleep(200 * time.Millisecond)
		}
	})

	t.Run("metrics", func(t *testing.T) {
		snap := env.srv.Metrics().Snapshot()
		if snap.TotalExtractions != 2 {
			t.Errorf("TotalExtractions = %d, want 2", snap.TotalExtractions)
		}
		if snap.CacheHits != 1 {
			t.Errorf("CacheHits = %d, want 1", snap.CacheHits)
		}
		if snap.ModelCalls != 4 {
			t.Errorf("ModelCalls = %d, want 4", snap.ModelCalls)
		}
	})

	t.Run("export", func(t *testing.T) {
		var buf bytes.Buffer
		if _, err := client.Download(ctx, "/v1/extractions/export", &buf); err != nil {
			t.Fatal(err)
		}
		// XLSX is a zip archive.
		if !bytes.HasPrefix(buf.Bytes(), []byte("PK")) {
			t.Errorf("export is not a zip archive")
		}
	})

	t.Run("delete", func(t *testing.T) {
		if err := client.Delete(ctx, "/v1/extractions/"+res.ExtractionID); err != nil {
			t.Fatal(err)
		}
		err := client.Get(ctx, "/v1/extractions/"+res.ExtractionID, nil)
		if err == nil {
			t.Fatal("expected 404 after delete")
		}
	})
}

func TestServer_RejectsBadUploads(t *testing.T) {
	env := newTestEnv(t, false)
	client := api.NewClient(env.baseURL)

	err := client.Upload(context.Background(), "/v1/extract-multipage", endpoints.UploadField, "claim.txt", []byte("hello"), nil)
	if err == nil {
		t.Fatal("expected an error for a .txt upload")
	}
	if env.model.RequestCount() != 0 {
		t.Errorf("model was called for a rejected upload")
	}

	resp, err := http.Post(env.baseURL+"/v1/extract-multipage", "application/json", bytes.NewReader([]byte("{}")))
	if err != nil {
		t.Fatal(err)
	}
	resp.Body.Close()
	if resp.StatusCode != http.StatusBadRequest {
		t.Errorf("status = %d, want 400", resp.StatusCode)
	}
}

func TestServer_Preview(t *testing.T) {
	env := newTestEnv(t, false)
	client := api.NewClient(env.baseURL)

	var resp endpoints.PreviewResponse
	if err := client.Upload(context.Background(), "/v1/preview-pages", endpoints.UploadField, "claim.pdf", testutil.MinimalPDF(4), &resp); err != nil {
		t.Fatalf("preview: %v", err)
	}
	if resp.TotalPages != 4 || len(resp.Previews) != 4 {
		t.Errorf("preview = %d pages, %d previews", resp.TotalPages, len(resp.Previews))
	}
	if env.model.RequestCount() != 0 {
		t.Error("preview must not call the model")
	}
}

func TestServer_StatusAndCORS(t *testing.T) {
	env := newTestEnv(t, false)

	req, _ := http.NewRequest(http.MethodOptions, env.baseURL+"/v1/extract-multipage", nil)
	req.Header.Set("Origin", "http://localhost:3000")
	resp, err := testutil.HTTPClient().Do(req)
	if err != nil {
		t.Fatal(err)
	}
	resp.Body.Close()
	if resp.StatusCode != http.StatusNoContent {
		t.Errorf("preflight status = %d, want 204", resp.StatusCode)
	}
	if got := resp.Header.Get("Access-Control-Allow-Origin"); got != "*" {
		t.Errorf("Allow-Origin = %q, want *", got)
	}

	resp, err = http.Get(env.baseURL + "/status")
	if err != nil {
		t.Fatal(err)
	}
	defer resp.Body.Close()
	var status endpoints.StatusResponse
	if err := json.NewDecoder(resp.Body).Decode(&status); err != nil {
		t.Fatal(err)
	}
	if status.Database.Driver != "sqlite" || status.Database.Health != "healthy" {
		t.Errorf("database = %+v", status.Database)
	}
	if status.Pipeline.MaxPages != 4 {
		t.Errorf("max_pages = %d, want 4", status.Pipeline.MaxPages)
	}
}

func TestServer_GRPCHealth(t *testing.T) {
	env := newTestEnv(t, true)

	conn, err := grpc.NewClient(env.srv.GRPCAddr(), grpc.WithTransportCredentials(insecure.NewCredentials()))
	if err != nil {
		t.Fatalf("grpc.NewClient: %v", err)
	}
	defer conn.Close()

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	resp, err := healthpb.NewHealthClient(conn).Check(ctx, &healthpb.HealthCheckRequest{Service: ServiceName})
	if err != nil {
		t.Fatalf("Check: %v", err)
	}
	if resp.GetStatus() != healthpb.HealthCheckResponse_SERVING {
		t.Errorf("status = %v, want SERVING", resp.GetStatus())
	}
}

func TestServer_DoubleStart(t *testing.T) {
	env := newTestEnv(t, false)

	if !env.srv.IsRunning() {
		t.Fatal("server should be running")
	}
	if err := env.srv.Start(context.Background()); err == nil {
		t.Error("second Start should fail")
	}

	env.stop.Stop()
	env.stop = testutil.StartServer{}
	if env.srv.IsRunning() {
		t.Error("server should not be running after shutdown")
	}
}

func TestNew_RequiresConfig(t *testing.T) {
	if _, err := New(Config{}); err == nil {
		t.Error("New without a config manager should fail")
	}
}

func TestServer_ShutdownWaitsForRunningExtraction(t *testing.T) {
	env := newTestEnv(t, false, func(c *Config) {
		c.LLM.(*providers.MockClient).Latency = 150 * time.Millisecond
		c.ShutdownTimeout = 30 * time.Second
	})
	client := api.NewClient(env.baseURL)

	type outcome struct {
		res pipeline.Result
		err error
	}
	done := make(chan outcome, 1)
	go func() {
		var o outcome
		o.err = client.Upload(context.Background(), "/v1/extract-multipage", endpoints.UploadField, "claim.pdf", testutil.MinimalPDF(4), &o.res)
		done <- o
	}()

	deadline := time.Now().Add(5 * time.Second)
	for env.srv.inflight.Load() == 0 {
		if time.Now().After(deadline) {
			t.Fatal("extraction never started")
		}
		time.Sleep(10 * time.Millisecond)
	}
	env.stop.Stop()
	env.stop = testutil.StartServer{}

	o := <-done
	if o.err != nil {
		t.Fatalf("upload during shutdown error = %v", o.err)
	}
	if o.res.ExtractionID == "" {
		t.Fatal("result has no extraction id")
	}

	ctx := context.Background()
	st, err := store.Open(ctx, store.Config{Driver: store.DriverSQLite, DSN: env.dbPath, ConnectAttempts: 1})
	if err != nil {
		t.Fatalf("store.Open() error = %v", err)
	}
	defer st.Close()

	ex, err := st.GetExtraction(ctx, o.res.ExtractionID)
	if err != nil {
		t.Fatalf("GetExtraction() error = %v", err)
	}
	if ex.Status != store.ExtractionCompleted {
		t.Errorf("status after shutdown = %q, want %q", ex.Status, store.ExtractionCompleted)
	}
	calls, err := st.ListLLMCalls(ctx, ex.ID)
	if err != nil {
		t.Fatalf("ListLLMCalls() error = %v", err)
	}
	if len(calls) != 4 {
		t.Errorf("llm calls after shutdown = %d, want 4", len(calls))
	}
}

func TestServer_WaitForRuns(t *testing.T) {
	s := &Server{}
	if !s.waitForRuns(context.Background()) {
		t.Error("waitForRuns() with nothing running = false, want true")
	}

	s.runs.Add(1)
	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()
	if s.waitForRuns(ctx) {
		t.Error("waitForRuns() with a stuck run = true, want false")
	}

	s.runs.Done()
	if !s.waitForRuns(context.Background()) {
		t.Error("waitForRuns() after the run finished = false, want true")
	}
}

package providers

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync/atomic"
	"testing"
	"time"
)

func chatServer(t *testing.T, status int, body string, seen *atomic.Value) *httptest.Server {
	t.Helper()
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/chat/completions" {
			t.Errorf("unexpected path %s", r.URL.Path)
		}
		data, _ := io.ReadAll(r.Body)
		if seen != nil {
			seen.Store(string(data))
		}
		w.Header().Set("Content-Type", "application/json")
		if status == http.StatusTooManyRequests {
			w.Header().Set("Retry-After", "7")
		}
		w.WriteHeader(status)
		_, _ = io.WriteString(w, body)
	}))
	t.Cleanup(srv.Close)
	return srv
}

const completionBody = `{
	"id": "chatcmpl-1",
	"object": "chat.completion",
	"created": 1700000000,
	"model": "gemini-2.5-flash",
	"choices": [{"index": 0, "finish_reason": "stop", "message": {"role": "assistant", "content": "{\"a\":1}"}}],
	"usage": {"prompt_tokens": 120, "completion_tokens": 8, "total_tokens": 128}
}`

func TestOpenAIClientChatWithImage(t *testing.T) {
	var seen atomic.Value
	srv := chatServer(t, http.StatusOK, completionBody, &seen)

	client := NewOpenAIClient(OpenAIConfig{
		APIKey:     "test-key",
		BaseURL:    srv.URL,
		MaxRetries: 0,
	})
	if client.Name() != TypeGemini {
		t.Errorf("Name() = %q, want %q", client.Name(), TypeGemini)
	}

	png := []byte("\x89PNG\r\n\x1a\n0000")
	res, err := client.Chat(context.Background(), &ChatRequest{
		Messages: []Message{{Role: "user", Content: "read page", Images: [][]byte{png}}},
	})
	if err != nil {
		t.Fatalf("Chat() error = %v", err)
	}
	if !res.Success || res.Content != `{"a":1}` {
		t.Errorf("result = %+v", res)
	}
	if res.PromptTokens != 120 || res.TotalTokens != 128 {
		t.Errorf("tokens = %d/%d", res.PromptTokens, res.TotalTokens)
	}
	if res.RequestID == "" {
		t.Error("RequestID should be generated")
	}

	var body struct {
		Model    string `json:"model"`
		Messages []struct {
			Content []map[string]any `json:"content"`
		} `json:"messages"`
	}
	if err := json.Unmarshal([]byte(seen.Load().(string)), &body); err != nil {
		t.Fatalf("request body: %v", err)
	}
	if body.Model != DefaultGeminiModel {
		t.Errorf("model = %q, want %q", body.Model, DefaultGeminiModel)
	}
	if len(body.Messages) != 1 || len(body.Messages[0].Content) != 2 {
		t.Fatalf("messages = %+v", body.Messages)
	}
	img, _ := body.Messages[0].Content[1]["image_url"].(map[string]any)
	if url, _ := img["url"].(string); !strings.HasPrefix(url, "data:image/png;base64,") {
		t.Errorf("image url = %q", url)
	}
}

func TestOpenAIClientRateLimited(t *testing.T) {
	srv := chatServer(t, http.StatusTooManyRequests, `{"error":{"message":"quota exceeded","type":"rate_limit"}}`, nil)
	client := NewOpenAIClient(OpenAIConfig{APIKey: "k", BaseURL: srv.URL})

	res, err := client.Chat(context.Background(), &ChatRequest{Messages: []Message{{Role: "user", Content: "x"}}})
	if err == nil {
		t.Fatal("Chat() error = nil, want rate limit error")
	}
	var rl *RateLimitError
	if !errors.As(err, &rl) {
		t.Fatalf("error = %T %v, want *RateLimitError", err, err)
	}
	if rl.RetryAfter != 7*time.Second {
		t.Errorf("RetryAfter = %v, want 7s", rl.RetryAfter)
	}
	if res.Success || res.ErrorType != "rate_limit" {
		t.Errorf("result = %+v", res)
	}
	if client.RateLimiter().Status().Last429Time.IsZero() {
		t.Error("limiter should record the 429")
	}
}

func TestOpenAIClientRequiresMessages(t *testing.T) {
	client := NewOpenAIClient(OpenAIConfig{APIKey: "k", BaseURL: "http://127.0.0.1:1"})
	if _, err := client.Chat(context.Background(), &ChatRequest{}); err == nil {
		t.Error("Chat() with no messages should fail")
	}
}

func TestParseRetryAfter(t *testing.T) {
	if got := parseRetryAfter("3"); got != 3*time.Second {
		t.Errorf("parseRetryAfter(3) = %v", got)
	}
	if got := parseRetryAfter(""); got != 0 {
		t.Errorf("parseRetryAfter(\"\") = %v", got)
	}
	if got := parseRetryAfter("soon"); got != 0 {
		t.Errorf("parseRetryAfter(soon) = %v", got)
	}
}

func TestErrorType(t *testing.T) {
	tests := []struct {
		err  error
		want string
	}{
		{nil, ""},
		{&RateLimitError{Message: "x"}, "rate_limit"},
		{context.DeadlineExceeded, "timeout"},
		{context.Canceled, "context_cancelled"},
		{errors.New("boom"), "api_error"},
	}
	for _, tt := range tests {
		if got := ErrorType(tt.err); got != tt.want {
			t.Errorf("ErrorType(%v) = %q, want %q", tt.err, got, tt.want)
		}
	}
}

func TestMockClientScriptedResponses(t *testing.T) {
	m := NewMockClient()
	m.Latency = 0
	m.Responses = []string{"one", "two"}
	m.FailOn = map[int]bool{3: true}

	ctx := context.Background()
	req := &ChatRequest{Messages: []Message{{Role: "user", Content: "p"}}}
	for i, want := range []string{"one", "two"} {
		res, err := m.Chat(ctx, req)
		if err != nil {
			t.Fatalf("Chat() #%d error = %v", i+1, err)
		}
		if res.Content != want {
			t.Errorf("Chat() #%d = %q, want %q", i+1, res.Content, want)
		}
	}
	if _, err := m.Chat(ctx, req); err == nil {
		t.Error("Chat() #3 should fail")
	}
	res, err := m.Chat(ctx, req)
	if err != nil || res.Content != "mock response" {
		t.Errorf("Chat() #4 = %v, %v", res, err)
	}
	if m.RequestCount() != 4 || len(m.Requests()) != 4 {
		t.Errorf("RequestCount() = %d", m.RequestCount())
	}
}

func TestVisionGenerate(t *testing.T) {
	m := NewMockClient()
	m.Latency = 0
	m.ResponseText = "reply"

	var observed, second int
	v := NewVision(m, "some-model")
	v.Observer = Observers(
		func(_ context.Context, res *ChatResult) { observed++ },
		nil,
		func(_ context.Context, res *ChatResult) { second++ },
	)

	got, err := v.Generate(context.Background(), "prompt", []byte("img"))
	if err != nil {
		t.Fatalf("Generate() error = %v", err)
	}
	if got != "reply" {
		t.Errorf("Generate() = %q, want %q", got, "reply")
	}
	reqs := m.Requests()
	if len(reqs) != 1 || len(reqs[0].Messages[0].Images) != 1 || reqs[0].Model != "some-model" {
		t.Errorf("request = %+v", reqs)
	}

	m.ShouldFail = true
	if _, err := v.Generate(context.Background(), "prompt", []byte("img")); err == nil {
		t.Error("Generate() should surface client errors")
	}
	if observed != 2 || second != 2 {
		t.Errorf("observer calls = %d/%d, want 2/2", observed, second)
	}
}

func TestRegistryReload(t *testing.T) {
	r := NewRegistryFromConfig(RegistryConfig{LLMProviders: map[string]LLMProviderConfig{
		"gemini":   {Type: TypeGemini, Model: "gemini-2.5-flash", APIKey: "k1", Enabled: true},
		"disabled": {Type: TypeOpenAI, APIKey: "k2", Enabled: false},
		"nokey":    {Type: TypeOpenAI, Enabled: true},
	}})
	if got := r.ListLLM(); len(got) != 1 || got[0] != "gemini" {
		t.Fatalf("ListLLM() = %v, want [gemini]", got)
	}
	first, _ := r.GetLLM("gemini")

	r.Reload(RegistryConfig{LLMProviders: map[string]LLMProviderConfig{
		"gemini": {Type: TypeGemini, Model: "gemini-2.5-flash", APIKey: "k1", Enabled: true},
	}})
	same, _ := r.GetLLM("gemini")
	if same != first {
		t.Error("unchanged config should keep the client")
	}

	r.Reload(RegistryConfig{LLMProviders: map[string]LLMProviderConfig{
		"gemini": {Type: TypeGemini, Model: "gemini-2.5-pro", APIKey: "k1", Enabled: true},
	}})
	updated, _ := r.GetLLM("gemini")
	if updated == first {
		t.Error("changed config should re-create the client")
	}

	r.Reload(RegistryConfig{})
	if r.HasLLM("gemini") {
		t.Error("removed provider should be unregistered")
	}
	if _, err := r.GetLLM("gemini"); err == nil {
		t.Error("GetLLM() on missing provider should fail")
	}
}

func TestRateLimiterStatus(t *testing.T) {
	rl := NewRateLimiter(120)
	if err := rl.Wait(context.Background()); err != nil {
		t.Fatalf("Wait() error = %v", err)
	}
	st := rl.Status()
	if st.TokensLimit != 120 || st.TotalConsumed != 1 {
		t.Errorf("Status() = %+v", st)
	}
	rl.Record429()
	if rl.Status().Last429Time.IsZero() {
		t.Error("Record429() should set Last429Time")
	}
}

package providers

import (
	"context"
	"encoding/base64"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/google/uuid"
	openai "github.com/openai/openai-go/v3"
	"github.com/openai/openai-go/v3/option"
)

// Provider types understood by NewClient.
const (
	TypeGemini     = "gemini"
	TypeOpenAI     = "openai"
	TypeOpenRouter = "openrouter"
)

// Default endpoints per provider type.
const (
	GeminiBaseURL     = "https://generativelanguage.googleapis.com/v1beta/openai/"
	OpenRouterBaseURL = "https://openrouter.ai/api/v1"

	DefaultGeminiModel = "gemini-2.5-flash"
)

// OpenAIConfig holds configuration for an OpenAI-compatible chat client.
type OpenAIConfig struct {
	Name         string // Client identifier, defaults to the provider type
	Type         string // "gemini" (default), "openai", "openrouter"
	APIKey       string
	BaseURL      string // Overrides the provider default (tests, proxies)
	DefaultModel string
	Temperature  float64
	MaxTokens    int
	RPM          int           // Requests per minute
	MaxRetries   int           // Retry attempts for SDK transport
	Timeout      time.Duration // Per-request timeout
	HTTPClient   *http.Client  // Optional (tests)
}

// OpenAIClient implements LLMClient using the official OpenAI SDK against any
// endpoint speaking the chat-completions protocol.
type OpenAIClient struct {
	name         string
	typ          string
	apiKey       string
	baseURL      string
	defaultModel string
	temperature  float64
	maxTokens    int
	rpm          int
	maxRetries   int
	timeout      time.Duration
	limiter      *RateLimiter
	client       openai.Client
}

// NewOpenAIClient creates a new chat client.
func NewOpenAIClient(cfg OpenAIConfig) *OpenAIClient {
	if cfg.Type == "" {
		cfg.Type = TypeGemini
	}
	if cfg.Name == "" {
		cfg.Name = cfg.Type
	}
	if cfg.BaseURL == "" {
		switch cfg.Type {
		case TypeGemini:
			cfg.BaseURL = GeminiBaseURL
		case TypeOpenRouter:
			cfg.BaseURL = OpenRouterBaseURL
		}
	}
	if cfg.DefaultModel == "" && cfg.Type == TypeGemini {
		cfg.DefaultModel = DefaultGeminiModel
	}
	if cfg.MaxTokens <= 0 {
		cfg.MaxTokens = 4096
	}
	if cfg.RPM <= 0 {
		cfg.RPM = 60
	}
	if cfg.MaxRetries < 0 {
		cfg.MaxRetries = 0
	}
	if cfg.Timeout == 0 {
		cfg.Timeout = 60 * time.Second
	}

	httpClient := cfg.HTTPClient
	if httpClient == nil {
		httpClient = &http.Client{Timeout: cfg.Timeout}
	}

	opts := []option.RequestOption{
		option.WithAPIKey(cfg.APIKey),
		option.WithHTTPClient(httpClient),
		option.WithMaxRetries(cfg.MaxRetries),
	}
	if cfg.BaseURL != "" {
		opts = append(opts, option.WithBaseURL(cfg.BaseURL))
	}

	return &OpenAIClient{
		name:         cfg.Name,
		typ:          cfg.Type,
		apiKey:       cfg.APIKey,
		baseURL:      cfg.BaseURL,
		defaultModel: cfg.DefaultModel,
		temperature:  cfg.Temperature,
		maxTokens:    cfg.MaxTokens,
		rpm:          cfg.RPM,
		maxRetries:   cfg.MaxRetries,
		timeout:      cfg.Timeout,
		limiter:      NewRateLimiter(cfg.RPM),
		client:       openai.NewClient(opts...),
	}
}

// Name returns the client identifier.
func (c *OpenAIClient) Name() string {
	return c.name
}

// Model returns the configured default model.
func (c *OpenAIClient) Model() string {
	return c.defaultModel
}

// RateLimiter exposes the client's limiter for status reporting.
func (c *OpenAIClient) RateLimiter() *RateLimiter {
	return c.limiter
}

// HealthCheck verifies the API is reachable and the API key is valid.
func (c *OpenAIClient) HealthCheck(ctx context.Context) error {
	page, err := c.client.Models.List(ctx)
	if err != nil {
		return fmt.Errorf("%s models list failed: %w", c.name, mapOpenAIError(err))
	}
	if page == nil {
		return fmt.Errorf("%s models list returned nil response", c.name)
	}
	return nil
}

// Chat sends a chat completion request. Images attached to a message are sent
// as PNG data URLs after the message text.
func (c *OpenAIClient) Chat(ctx context.Context, req *ChatRequest) (*ChatResult, error) {
	start := time.Now()

	requestID := req.RequestID
	if requestID == "" {
		requestID = uuid.New().String()
	}
	model := req.Model
	if model == "" {
		model = c.defaultModel
	}
	result := &ChatResult{
		Provider:  c.name,
		ModelUsed: model,
		RequestID: requestID,
		Attempts:  1,
	}

	fail := func(err error) (*ChatResult, error) {
		result.Success = false
		result.ErrorType = ErrorType(err)
		result.ErrorMessage = err.Error()
		var rl *RateLimitError
		if errors.As(err, &rl) {
			result.RetryAfter = rl.RetryAfter
			c.limiter.Record429()
		}
		result.TotalTime = time.Since(start)
		return result, err
	}

	if len(req.Messages) == 0 {
		return fail(fmt.Errorf("at least one message is required"))
	}

	if err := c.limiter.Wait(ctx); err != nil {
		return fail(fmt.Errorf("rate limiter: %w", err))
	}
	result.QueueTime = time.Since(start)

	timeout := req.Timeout
	if timeout == 0 {
		timeout = c.timeout
	}
	callCtx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	temperature := req.Temperature
	if temperature == 0 {
		temperature = c.temperature
	}
	maxTokens := req.MaxTokens
	if maxTokens == 0 {
		maxTokens = c.maxTokens
	}

	params := openai.ChatCompletionNewParams{
		Messages:            toOpenAIMessages(req.Messages),
		Model:               openai.ChatModel(model),
		Temperature:         openai.Float(temperature),
		MaxCompletionTokens: openai.Int(int64(maxTokens)),
	}

	execStart := time.Now()
	resp, err := c.client.Chat.Completions.New(callCtx, params, option.WithHeader("X-Request-Id", requestID))
	result.ExecutionTime = time.Since(execStart)
	if err != nil {
		return fail(mapOpenAIError(err))
	}
	if len(resp.Choices) == 0 {
		return fail(fmt.Errorf("%s returned no choices", c.name))
	}

	result.Success = true
	result.Content = resp.Choices[0].Message.Content
	if resp.Model != "" {
		result.ModelUsed = resp.Model
	}
	result.PromptTokens = int(resp.Usage.PromptTokens)
	result.CompletionTokens = int(resp.Usage.CompletionTokens)
	result.TotalTokens = int(resp.Usage.TotalTokens)
	result.TotalTime = time.Since(start)
	return result, nil
}

func toOpenAIMessages(msgs []Message) []openai.ChatCompletionMessageParamUnion {
	out := make([]openai.ChatCompletionMessageParamUnion, 0, len(msgs))
	for _, m := range msgs {
		switch m.Role {
		case "system":
			out = append(out, openai.SystemMessage(m.Content))
		case "assistant":
			out = append(out, openai.AssistantMessage(m.Content))
		default:
			if len(m.Images) == 0 {
				out = append(out, openai.UserMessage(m.Content))
				continue
			}
			parts := make([]openai.ChatCompletionContentPartUnionParam, 0, len(m.Images)+1)
			parts = append(parts, openai.TextContentPart(m.Content))
			for _, img := range m.Images {
				parts = append(parts, openai.ImageContentPart(openai.ChatCompletionContentPartImageImageURLParam{
					URL: ImageDataURL(img),
				}))
			}
			out = append(out, openai.UserMessage(parts))
		}
	}
	return out
}

// ImageDataURL encodes image bytes as a data URL, sniffing the content type.
func ImageDataURL(img []byte) string {
	mime := http.DetectContentType(img)
	if !strings.HasPrefix(mime, "image/") {
		mime = "image/png"
	}
	return "data:" + mime + ";base64," + base64.StdEncoding.EncodeToString(img)
}

func mapOpenAIError(err error) error {
	var apiErr *openai.Error
	if errors.As(err, &apiErr) {
		if apiErr.StatusCode == http.StatusTooManyRequests {
			retryAfter := time.Duration(0)
			if apiErr.Response != nil {
				retryAfter = parseRetryAfter(apiErr.Response.Header.Get("Retry-After"))
			}
			return &RateLimitError{
				Message:    fmt.Sprintf("rate limited: %s", apiErr.Message),
				RetryAfter: retryAfter,
				StatusCode: apiErr.StatusCode,
			}
		}
		if apiErr.Message != "" {
			return fmt.Errorf("model API error (status %d): %s", apiErr.StatusCode, apiErr.Message)
		}
		return fmt.Errorf("model API error (status %d)", apiErr.StatusCode)
	}
	return err
}

var _ LLMClient = (*OpenAIClient)(nil)
var _ HealthChecker = (*OpenAIClient)(nil)

// Package llmcall records every vision model call made while extracting a
// claim so a run can be traced back to the prompt version and model used.
package llmcall

import (
	"context"
	"time"

	"github.com/google/uuid"

	"github.com/jackzampolin/claimdoc/internal/providers"
)

// Call represents a recorded model API call.
type Call struct {
	ID        string    `json:"id"`
	Timestamp time.Time `json:"timestamp"`
	LatencyMs int       `json:"latency_ms"`

	// Context references
	RequestID    string `json:"request_id,omitempty"`
	ExtractionID string `json:"extraction_id,omitempty"`
	Page         int    `json:"page,omitempty"`

	// Prompt traceability
	PromptKey  string `json:"prompt_key,omitempty"`
	PromptHash string `json:"prompt_hash,omitempty"` // sha256 of the exact prompt text sent

	Provider string `json:"provider"`
	Model    string `json:"model"`

	InputTokens  int `json:"input_tokens"`
	OutputTokens int `json:"output_tokens"`

	Success bool   `json:"success"`
	Error   string `json:"error,omitempty"`
}

// RecordOptions provides context for recording a model call.
type RecordOptions struct {
	ExtractionID string
	Page         int
	PromptKey    string
	PromptHash   string
}

// FromChatResult creates a Call from a ChatResult.
// Returns nil if result is nil.
func FromChatResult(result *providers.ChatResult, opts RecordOptions) *Call {
	if result == nil {
		return nil
	}

	latency := result.ExecutionTime
	if latency == 0 {
		latency = result.TotalTime
	}

	call := &Call{
		ID:           uuid.New().String(),
		Timestamp:    time.Now().UTC(),
		LatencyMs:    int(latency.Milliseconds()),
		RequestID:    result.RequestID,
		ExtractionID: opts.ExtractionID,
		Page:         opts.Page,
		PromptKey:    opts.PromptKey,
		PromptHash:   opts.PromptHash,
		Provider:     result.Provider,
		Model:        result.ModelUsed,
		InputTokens:  result.PromptTokens,
		OutputTokens: result.CompletionTokens,
		Success:      result.Success,
	}
	if !result.Success {
		call.Error = result.ErrorMessage
	}
	return call
}

type extractionIDKey struct{}

// WithExtractionID tags model calls made under ctx with an extraction ID.
func WithExtractionID(ctx context.Context, id string) context.Context {
	return context.WithValue(ctx, extractionIDKey{}, id)
}

// ExtractionIDFrom returns the extraction ID attached to ctx, or "".
func ExtractionIDFrom(ctx context.Context) string {
	id, _ := ctx.Value(extractionIDKey{}).(string)
	return id
}

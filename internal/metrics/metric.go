// Package metrics tracks extraction runs and model call usage in memory.
// A Collector is shared by the pipeline middleware and the vision client
// observer, and its Snapshot is served by the metrics endpoint.
package metrics

import (
	"context"
	"time"

	"github.com/jackzampolin/claimdoc/internal/extract"
	"github.com/jackzampolin/claimdoc/internal/providers"
)

// Metric is one recorded model call.
type Metric struct {
	Provider string `json:"provider,omitempty"`
	Model    string `json:"model,omitempty"`
	Page     int    `json:"page,omitempty"`

	PromptTokens     int `json:"prompt_tokens,omitempty"`
	CompletionTokens int `json:"completion_tokens,omitempty"`
	TotalTokens      int `json:"total_tokens,omitempty"`

	QueueSeconds     float64 `json:"queue_seconds,omitempty"`
	ExecutionSeconds float64 `json:"execution_seconds,omitempty"`
	TotalSeconds     float64 `json:"total_seconds,omitempty"`

	Success   bool   `json:"success"`
	ErrorType string `json:"error_type,omitempty"`

	CreatedAt time.Time `json:"created_at,omitempty"`
}

// FromChatResult builds a Metric from a chat result, taking the page number
// from ctx when the extractor attached one.
func FromChatResult(ctx context.Context, result *providers.ChatResult) Metric {
	m := Metric{
		Provider:         result.Provider,
		Model:            result.ModelUsed,
		PromptTokens:     result.PromptTokens,
		CompletionTokens: result.CompletionTokens,
		TotalTokens:      result.TotalTokens,
		QueueSeconds:     result.QueueTime.Seconds(),
		ExecutionSeconds: result.ExecutionTime.Seconds(),
		TotalSeconds:     result.TotalTime.Seconds(),
		Success:          result.Success,
		ErrorType:        result.ErrorType,
		CreatedAt:        time.Now(),
	}
	if m.TotalTokens == 0 {
		m.TotalTokens = m.PromptTokens + m.CompletionTokens
	}
	if info, ok := extract.PageInfoFrom(ctx); ok {
		m.Page = info.Page
	}
	return m
}

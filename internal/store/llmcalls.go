package store

import (
	"context"
	"fmt"

	entsql "entgo.io/ent/dialect/sql"

	"github.com/jackzampolin/claimdoc/internal/llmcall"
)

var llmCallColumns = []string{
	"id", "request_id", "extraction_id", "page", "provider", "model", "prompt_key", "prompt_hash",
	"latency_ms", "prompt_tokens", "completion_tokens", "success", "error", "created_at",
}

// RecordLLMCall stores a single model call.
func (s *Store) RecordLLMCall(ctx context.Context, call *llmcall.Call) error {
	return s.RecordLLMCalls(ctx, []*llmcall.Call{call})
}

// RecordLLMCalls stores a batch of model calls in one statement.
func (s *Store) RecordLLMCalls(ctx context.Context, calls []*llmcall.Call) error {
	ins := s.builder().Insert("llm_calls").Columns(llmCallColumns...)
	n := 0
	for _, c := range calls {
		if c == nil {
			continue
		}
		ins.Values(c.ID, c.RequestID, c.ExtractionID, c.Page, c.Provider, c.Model, c.PromptKey, c.PromptHash,
			c.LatencyMs, c.InputTokens, c.OutputTokens, c.Success, c.Error, formatTime(c.Timestamp))
		n++
	}
	if n == 0 {
		return nil
	}
	query, args := ins.Query()
	if _, err := s.db.ExecContext(ctx, query, args...); err != nil {
		return fmt.Errorf("failed to record llm calls: %w", err)
	}
	return nil
}

// ListLLMCalls returns the model calls made for an extraction in page order.
func (s *Store) ListLLMCalls(ctx context.Context, extractionID string) ([]*llmcall.Call, error) {
	query, args := s.builder().Select(llmCallColumns...).
		From(entsql.Table("llm_calls")).
		Where(entsql.EQ("extraction_id", extractionID)).
		OrderBy(entsql.Asc("page"), entsql.Asc("created_at")).
		Query()
	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to list llm calls: %w", err)
	}
	defer rows.Close()

	var out []*llmcall.Call
	for rows.Next() {
		var (
			c  llmcall.Call
			ts string
		)
		if err := rows.Scan(&c.ID, &c.RequestID, &c.ExtractionID, &c.Page, &c.Provider, &c.Model, &c.PromptKey,
			&c.PromptHash, &c.LatencyMs, &c.InputTokens, &c.OutputTokens, &c.Success, &c.Error, &ts); err != nil {
			return nil, fmt.Errorf("failed to scan llm call: %w", err)
		}
		if c.Timestamp, err = parseTime(ts); err != nil {
			return nil, fmt.Errorf("bad llm call created_at: %w", err)
		}
		out = append(out, &c)
	}
	return out, rows.Err()
}

var _ llmcall.Sink = (*Store)(nil)

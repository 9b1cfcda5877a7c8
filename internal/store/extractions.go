package store

import (
	"bytes"
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	entsql "entgo.io/ent/dialect/sql"
	"github.com/google/uuid"

	"github.com/jackzampolin/claimdoc/internal/claim"
)

// Extraction statuses.
const (
	ExtractionPending     = "pending"
	ExtractionProcessing  = "processing"
	ExtractionCompleted   = "completed"
	ExtractionFailed      = "failed"
	ExtractionNeedsReview = "needs_review"
)

// Paging limits for ListExtractions.
const (
	DefaultListLimit = 50
	MaxListLimit     = 500
)

// Extraction is one pipeline run over a document.
type Extraction struct {
	ID               string              `json:"id"`
	DocumentID       string              `json:"document_id"`
	Status           string              `json:"status"`
	Data             claim.Record        `json:"data"`
	TotalPages       int                 `json:"total_pages"`
	ProcessingTimeMs int64               `json:"processing_time_ms"`
	ValidationErrors map[string][]string `json:"validation_errors"`
	PageResults      json.RawMessage     `json:"page_results,omitempty"`
	Error            string              `json:"error,omitempty"`
	CreatedAt        time.Time           `json:"created_at"`
	UpdatedAt        time.Time           `json:"updated_at"`
}

// ListOptions filters and pages ListExtractions.
type ListOptions struct {
	Status string
	Offset int
	Limit  int
}

// extractionColumns stores each section in its own column, named after the section.
var extractionColumns = func() []string {
	cols := []string{"id", "document_id", "status"}
	cols = append(cols, claim.Sections...)
	return append(cols, "total_pages", "processing_time_ms", "validation_errors", "page_results", "error", "created_at", "updated_at")
}()

// CreateExtraction starts an extraction for a document.
func (s *Store) CreateExtraction(ctx context.Context, documentID, status string) (*Extraction, error) {
	if status == "" {
		status = ExtractionPending
	}
	ts := now()
	ex := &Extraction{
		ID:               uuid.New().String(),
		DocumentID:       documentID,
		Status:           status,
		Data:             claim.NewRecord(),
		ValidationErrors: map[string][]string{},
		CreatedAt:        ts,
		UpdatedAt:        ts,
	}
	query, args := s.builder().Insert("extractions").
		Columns("id", "document_id", "status", "created_at", "updated_at").
		Values(ex.ID, ex.DocumentID, ex.Status, formatTime(ts), formatTime(ts)).
		Query()
	if _, err := s.db.ExecContext(ctx, query, args...); err != nil {
		return nil, fmt.Errorf("failed to create extraction: %w", err)
	}
	return ex, nil
}

// GetExtraction returns an extraction by ID.
func (s *Store) GetExtraction(ctx context.Context, id string) (*Extraction, error) {
	query, args := s.builder().Select(extractionColumns...).
		From(entsql.Table("extractions")).
		Where(entsql.EQ("id", id)).
		Query()
	ex, err := scanExtraction(s.db.QueryRowContext(ctx, query, args...))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get extraction: %w", err)
	}
	return ex, nil
}

// ListExtractions returns extractions newest first, plus the total number
// matching the filter.
func (s *Store) ListExtractions(ctx context.Context, opts ListOptions) ([]*Extraction, int, error) {
	if opts.Limit <= 0 {
		opts.Limit = DefaultListLimit
	}
	if opts.Limit > MaxListLimit {
		opts.Limit = MaxListLimit
	}
	if opts.Offset < 0 {
		opts.Offset = 0
	}

	countSel := s.builder().Select().From(entsql.Table("extractions"))
	if opts.Status != "" {
		countSel.Where(entsql.EQ("status", opts.Status))
	}
	countQuery, countArgs := countSel.Count().Query()
	var total int
	if err := s.db.QueryRowContext(ctx, countQuery, countArgs...).Scan(&total); err != nil {
		return nil, 0, fmt.Errorf("failed to count extractions: %w", err)
	}

	sel := s.builder().Select(extractionColumns...).From(entsql.Table("extractions"))
	if opts.Status != "" {
		sel.Where(entsql.EQ("status", opts.Status))
	}
	query, args := sel.OrderBy(entsql.Desc("created_at"), entsql.Desc("id")).
		Limit(opts.Limit).
		Offset(opts.Offset).
		Query()
	out, err := s.queryExtractions(ctx, query, args...)
	if err != nil {
		return nil, 0, err
	}
	return out, total, nil
}

// ListExtractionsByDocument returns every extraction of a document, newest first.
func (s *Store) ListExtractionsByDocument(ctx context.Context, documentID string) ([]*Extraction, error) {
	query, args := s.builder().Select(extractionColumns...).
		From(entsql.Table("extractions")).
		Where(entsql.EQ("document_id", documentID)).
		OrderBy(entsql.Desc("created_at"), entsql.Desc("id")).
		Query()
	return s.queryExtractions(ctx, query, args...)
}

func (s *Store) queryExtractions(ctx context.Context, query string, args ...any) ([]*Extraction, error) {
	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to list extractions: %w", err)
	}
	defer rows.Close()

	var out []*Extraction
	for rows.Next() {
		ex, err := scanExtraction(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan extraction: %w", err)
		}
		out = append(out, ex)
	}
	return out, rows.Err()
}

// UpdateExtraction writes the result fields of ex and bumps updated_at.
func (s *Store) UpdateExtraction(ctx context.Context, ex *Extraction) error {
	data := ex.Data
	if data == nil {
		data = claim.NewRecord()
	}
	upd := s.builder().Update("extractions").
		Set("status", ex.Status).
		Set("total_pages", ex.TotalPages).
		Set("processing_time_ms", ex.ProcessingTimeMs).
		Set("error", ex.Error)

	for _, section := range claim.Sections {
		kind, _ := claim.KindOf(section)
		v, ok := data[section]
		if !ok || v == nil {
			v = kind.Empty()
		}
		b, err := json.Marshal(v)
		if err != nil {
			return fmt.Errorf("failed to encode %s: %w", section, err)
		}
		upd.Set(section, string(b))
	}

	verrs := ex.ValidationErrors
	if verrs == nil {
		verrs = map[string][]string{}
	}
	b, err := json.Marshal(verrs)
	if err != nil {
		return fmt.Errorf("failed to encode validation errors: %w", err)
	}
	upd.Set("validation_errors", string(b))

	pages := ex.PageResults
	if len(pages) == 0 {
		pages = json.RawMessage("[]")
	}
	upd.Set("page_results", string(pages))

	ex.UpdatedAt = now()
	upd.Set("updated_at", formatTime(ex.UpdatedAt))

	query, args := upd.Where(entsql.EQ("id", ex.ID)).Query()
	res, err := s.db.ExecContext(ctx, query, args...)
	if err != nil {
		return fmt.Errorf("failed to update extraction: %w", err)
	}
	return expectRow(res)
}

// UpdateExtractionStatus changes only the status.
func (s *Store) UpdateExtractionStatus(ctx context.Context, id, status string) error {
	query, args := s.builder().Update("extractions").
		Set("status", status).
		Set("updated_at", formatTime(now())).
		Where(entsql.EQ("id", id)).
		Query()
	res, err := s.db.ExecContext(ctx, query, args...)
	if err != nil {
		return fmt.Errorf("failed to update extraction status: %w", err)
	}
	return expectRow(res)
}

// DeleteExtraction removes an extraction together with its audit log.
func (s *Store) DeleteExtraction(ctx context.Context, id string) error {
	return s.withTx(ctx, func(tx *sql.Tx) error {
		query, args := s.builder().Delete("audit_logs").Where(entsql.EQ("extraction_id", id)).Query()
		if _, err := tx.ExecContext(ctx, query, args...); err != nil {
			return fmt.Errorf("failed to delete audit logs: %w", err)
		}
		query, args = s.builder().Delete("extractions").Where(entsql.EQ("id", id)).Query()
		res, err := tx.ExecContext(ctx, query, args...)
		if err != nil {
			return fmt.Errorf("failed to delete extraction: %w", err)
		}
		return expectRow(res)
	})
}

func scanExtraction(row interface{ Scan(...any) error }) (*Extraction, error) {
	var (
		ex       Extraction
		sections = make([]string, len(claim.Sections))
		verrs    string
		pages    string
		created  string
		updated  string
	)
	dest := []any{&ex.ID, &ex.DocumentID, &ex.Status}
	for i := range sections {
		dest = append(dest, &sections[i])
	}
	dest = append(dest, &ex.TotalPages, &ex.ProcessingTimeMs, &verrs, &pages, &ex.Error, &created, &updated)
	if err := row.Scan(dest...); err != nil {
		return nil, err
	}

	ex.Data = claim.NewRecord()
	for i, section := range claim.Sections {
		v, err := decodeJSON(sections[i])
		if err != nil {
			return nil, fmt.Errorf("bad %s column: %w", section, err)
		}
		if v != nil {
			ex.Data[section] = v
		}
	}
	if err := json.Unmarshal([]byte(verrs), &ex.ValidationErrors); err != nil {
		return nil, fmt.Errorf("bad validation_errors column: %w", err)
	}
	if ex.ValidationErrors == nil {
		ex.ValidationErrors = map[string][]string{}
	}
	ex.PageResults = json.RawMessage(pages)

	var err error
	if ex.CreatedAt, err = parseTime(created); err != nil {
		return nil, fmt.Errorf("bad created_at: %w", err)
	}
	if ex.UpdatedAt, err = parseTime(updated); err != nil {
		return nil, fmt.Errorf("bad updated_at: %w", err)
	}
	return &ex, nil
}

// decodeJSON keeps numbers as json.Number, matching what the extractor
// produces for fresh results.
func decodeJSON(s string) (any, error) {
	if s == "" {
		return nil, nil
	}
	dec := json.NewDecoder(bytes.NewReader([]byte(s)))
	dec.UseNumber()
	var v any
	if err := dec.Decode(&v); err != nil {
		return nil, err
	}
	return v, nil
}

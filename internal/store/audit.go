package store

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	entsql "entgo.io/ent/dialect/sql"
	"github.com/google/uuid"
)

// Audit actions.
const (
	ActionExtracted = "extracted"
	ActionFailed    = "failed"
	ActionDeleted   = "deleted"
	ActionStatus    = "status_changed"
)

// AuditLog records a change to an extraction.
type AuditLog struct {
	ID           string         `json:"id"`
	ExtractionID string         `json:"extraction_id"`
	Action       string         `json:"action"`
	Changes      map[string]any `json:"changes"`
	CreatedAt    time.Time      `json:"created_at"`
}

// AddAudit appends an audit entry for an extraction.
func (s *Store) AddAudit(ctx context.Context, extractionID, action string, changes map[string]any) (*AuditLog, error) {
	if changes == nil {
		changes = map[string]any{}
	}
	b, err := json.Marshal(changes)
	if err != nil {
		return nil, fmt.Errorf("failed to encode audit changes: %w", err)
	}
	entry := &AuditLog{
		ID:           uuid.New().String(),
		ExtractionID: extractionID,
		Action:       action,
		Changes:      changes,
		CreatedAt:    now(),
	}
	query, args := s.builder().Insert("audit_logs").
		Columns("id", "extraction_id", "action", "changes", "created_at").
		Values(entry.ID, entry.ExtractionID, entry.Action, string(b), formatTime(entry.CreatedAt)).
		Query()
	if _, err := s.db.ExecContext(ctx, query, args...); err != nil {
		return nil, fmt.Errorf("failed to add audit log: %w", err)
	}
	return entry, nil
}

// ListAudit returns the audit trail of an extraction, oldest first.
func (s *Store) ListAudit(ctx context.Context, extractionID string) ([]*AuditLog, error) {
	query, args := s.builder().Select("id", "extraction_id", "action", "changes", "created_at").
		From(entsql.Table("audit_logs")).
		Where(entsql.EQ("extraction_id", extractionID)).
		OrderBy(entsql.Asc("created_at"), entsql.Asc("id")).
		Query()
	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to list audit logs: %w", err)
	}
	defer rows.Close()

	var out []*AuditLog
	for rows.Next() {
		var (
			entry   AuditLog
			changes string
			created string
		)
		if err := rows.Scan(&entry.ID, &entry.ExtractionID, &entry.Action, &changes, &created); err != nil {
			return nil, fmt.Errorf("failed to scan audit log: %w", err)
		}
		if err := json.Unmarshal([]byte(changes), &entry.Changes); err != nil {
			return nil, fmt.Errorf("bad audit changes: %w", err)
		}
		if entry.CreatedAt, err = parseTime(created); err != nil {
			return nil, fmt.Errorf("bad audit created_at: %w", err)
		}
		out = append(out, &entry)
	}
	return out, rows.Err()
}

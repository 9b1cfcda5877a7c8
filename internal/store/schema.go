package store

import (
	"context"
	"fmt"
)

// The DDL sticks to types both SQLite and Postgres accept so a single
// migration serves either driver. JSON payloads are stored as text.
var migrations = []string{
	`CREATE TABLE IF NOT EXISTS documents (
		id TEXT PRIMARY KEY,
		filename TEXT NOT NULL,
		file_size BIGINT NOT NULL,
		file_hash TEXT NOT NULL UNIQUE,
		status TEXT NOT NULL,
		uploaded_at TEXT NOT NULL,
		processed_at TEXT
	)`,
	`CREATE TABLE IF NOT EXISTS extractions (
		id TEXT PRIMARY KEY,
		document_id TEXT NOT NULL REFERENCES documents(id),
		status TEXT NOT NULL,
		policy_details TEXT NOT NULL DEFAULT '{}',
		insured_info TEXT NOT NULL DEFAULT '{}',
		benefits_to_claim TEXT NOT NULL DEFAULT '[]',
		payment_instructions TEXT NOT NULL DEFAULT '{}',
		declaration TEXT NOT NULL DEFAULT '{}',
		physician_report TEXT NOT NULL DEFAULT '{}',
		total_pages INTEGER NOT NULL DEFAULT 0,
		processing_time_ms BIGINT NOT NULL DEFAULT 0,
		validation_errors TEXT NOT NULL DEFAULT '{}',
		page_results TEXT NOT NULL DEFAULT '[]',
		error TEXT NOT NULL DEFAULT '',
		created_at TEXT NOT NULL,
		updated_at TEXT NOT NULL
	)`,
	`CREATE INDEX IF NOT EXISTS idx_extractions_document ON extractions(document_id)`,
	`CREATE INDEX IF NOT EXISTS idx_extractions_status ON extractions(status)`,
	`CREATE INDEX IF NOT EXISTS idx_extractions_created ON extractions(created_at)`,
	`CREATE TABLE IF NOT EXISTS audit_logs (
		id TEXT PRIMARY KEY,
		extraction_id TEXT NOT NULL REFERENCES extractions(id) ON DELETE CASCADE,
		action TEXT NOT NULL,
		changes TEXT NOT NULL DEFAULT '{}',
		created_at TEXT NOT NULL
	)`,
	`CREATE INDEX IF NOT EXISTS idx_audit_extraction ON audit_logs(extraction_id)`,
	`CREATE TABLE IF NOT EXISTS llm_calls (
		id TEXT PRIMARY KEY,
		request_id TEXT NOT NULL DEFAULT '',
		extraction_id TEXT NOT NULL DEFAULT '',
		page INTEGER NOT NULL DEFAULT 0,
		provider TEXT NOT NULL DEFAULT '',
		model TEXT NOT NULL DEFAULT '',
		prompt_key TEXT NOT NULL DEFAULT '',
		prompt_hash TEXT NOT NULL DEFAULT '',
		latency_ms BIGINT NOT NULL DEFAULT 0,
		prompt_tokens INTEGER NOT NULL DEFAULT 0,
		completion_tokens INTEGER NOT NULL DEFAULT 0,
		success BOOLEAN NOT NULL DEFAULT FALSE,
		error TEXT NOT NULL DEFAULT '',
		created_at TEXT NOT NULL
	)`,
	`CREATE INDEX IF NOT EXISTS idx_llm_calls_extraction ON llm_calls(extraction_id)`,
}

// Migrate creates missing tables and indexes. It is idempotent.
func (s *Store) Migrate(ctx context.Context) error {
	for i, stmt := range migrations {
		if _, err := s.db.ExecContext(ctx, stmt); err != nil {
			return fmt.Errorf("migration %d failed: %w", i, err)
		}
	}
	s.logger.Debug("database schema up to date", "statements", len(migrations))
	return nil
}

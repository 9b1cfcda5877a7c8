package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	entsql "entgo.io/ent/dialect/sql"
	"github.com/google/uuid"
)

// Document statuses.
const (
	DocumentUploaded   = "uploaded"
	DocumentProcessing = "processing"
	DocumentCompleted  = "completed"
	DocumentFailed     = "failed"
)

// Document is an uploaded claim PDF, deduplicated by content hash.
type Document struct {
	ID          string     `json:"id"`
	Filename    string     `json:"filename"`
	FileSize    int64      `json:"file_size"`
	FileHash    string     `json:"file_hash"`
	Status      string     `json:"status"`
	UploadedAt  time.Time  `json:"uploaded_at"`
	ProcessedAt *time.Time `json:"processed_at,omitempty"`
}

var documentColumns = []string{"id", "filename", "file_size", "file_hash", "status", "uploaded_at", "processed_at"}

// CreateDocument inserts a document. When a document with the same hash
// already exists it is returned unchanged instead.
func (s *Store) CreateDocument(ctx context.Context, filename string, size int64, hash string) (*Document, error) {
	doc := &Document{
		ID:         uuid.New().String(),
		Filename:   filename,
		FileSize:   size,
		FileHash:   hash,
		Status:     DocumentUploaded,
		UploadedAt: now(),
	}

	query, args := s.builder().Insert("documents").
		Columns("id", "filename", "file_size", "file_hash", "status", "uploaded_at").
		Values(doc.ID, doc.Filename, doc.FileSize, doc.FileHash, doc.Status, formatTime(doc.UploadedAt)).
		OnConflict(entsql.ConflictColumns("file_hash"), entsql.DoNothing()).
		Query()
	if _, err := s.db.ExecContext(ctx, query, args...); err != nil {
		return nil, fmt.Errorf("failed to create document: %w", err)
	}
	return s.GetDocumentByHash(ctx, hash)
}

// GetDocument returns a document by ID.
func (s *Store) GetDocument(ctx context.Context, id string) (*Document, error) {
	return s.getDocument(ctx, entsql.EQ("id", id))
}

// GetDocumentByHash returns the document with the given content hash.
func (s *Store) GetDocumentByHash(ctx context.Context, hash string) (*Document, error) {
	return s.getDocument(ctx, entsql.EQ("file_hash", hash))
}

func (s *Store) getDocument(ctx context.Context, where *entsql.Predicate) (*Document, error) {
	query, args := s.builder().Select(documentColumns...).
		From(entsql.Table("documents")).
		Where(where).
		Query()
	doc, err := scanDocument(s.db.QueryRowContext(ctx, query, args...))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get document: %w", err)
	}
	return doc, nil
}

// UpdateDocumentStatus sets the status. Terminal statuses also stamp
// processed_at.
func (s *Store) UpdateDocumentStatus(ctx context.Context, id, status string) error {
	upd := s.builder().Update("documents").Set("status", status)
	if status == DocumentCompleted || status == DocumentFailed {
		upd.Set("processed_at", formatTime(now()))
	}
	query, args := upd.Where(entsql.EQ("id", id)).Query()
	res, err := s.db.ExecContext(ctx, query, args...)
	if err != nil {
		return fmt.Errorf("failed to update document status: %w", err)
	}
	return expectRow(res)
}

func scanDocument(row interface{ Scan(...any) error }) (*Document, error) {
	var (
		doc       Document
		uploaded  string
		processed sql.NullString
	)
	if err := row.Scan(&doc.ID, &doc.Filename, &doc.FileSize, &doc.FileHash, &doc.Status, &uploaded, &processed); err != nil {
		return nil, err
	}
	var err error
	if doc.UploadedAt, err = parseTime(uploaded); err != nil {
		return nil, fmt.Errorf("bad uploaded_at: %w", err)
	}
	if doc.ProcessedAt, err = parseNullTime(processed); err != nil {
		return nil, fmt.Errorf("bad processed_at: %w", err)
	}
	return &doc, nil
}

func expectRow(res sql.Result) error {
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return ErrNotFound
	}
	return nil
}

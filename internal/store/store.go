// Package store persists documents and sections, token indices included, in
// PostgreSQL. A refresh replaces the whole corpus in one transaction so
// readers of the database never see a half-written corpus either.
package store

import (
	"context"
	"database/sql"
	_ "embed"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/lib/pq"

	"github.com/Adithya-Monish-Kumar-K/docsearch/internal/corpus"
	apperrors "github.com/Adithya-Monish-Kumar-K/docsearch/pkg/errors"
	"github.com/Adithya-Monish-Kumar-K/docsearch/pkg/postgres"
)

//go:embed schema.sql
var schema string

// DocumentSummary is a document without its sections.
type DocumentSummary struct {
	ID           int64     `json:"id"`
	Title        string    `json:"title"`
	Link         string    `json:"link"`
	SectionCount int       `json:"section_count"`
	RefreshedAt  time.Time `json:"refreshed_at"`
}

type Store struct {
	db     *postgres.Client
	logger *slog.Logger
}

func New(db *postgres.Client) *Store {
	return &Store{
		db:     db,
		logger: slog.Default().With("component", "store"),
	}
}

// EnsureSchema creates the tables if they do not exist.
func (s *Store) EnsureSchema(ctx context.Context) error {
	if _, err := s.db.DB.ExecContext(ctx, schema); err != nil {
		return fmt.Errorf("applying schema: %w", err)
	}
	return nil
}

// ReplaceAll deletes every document and section and inserts docs in their
// place, all in one transaction.
func (s *Store) ReplaceAll(ctx context.Context, docs []corpus.Document) error {
	start := time.Now()
	now := start.UTC()
	err := s.db.InTx(ctx, func(tx *sql.Tx) error {
		if err := deleteAll(ctx, tx); err != nil {
			return err
		}
		if err := copyRows(ctx, tx, pq.CopyIn("document", "id", "title", "link", "source_id", "refreshed_at"),
			len(docs), func(i int) ([]any, error) {
				d := docs[i]
				return []any{d.ID, d.Title, d.Link, d.SourceID, now}, nil
			}); err != nil {
			return fmt.Errorf("inserting documents: %w", err)
		}

		sections := make([]corpus.Section, 0, corpus.SectionCount(docs))
		for _, d := range docs {
			sections = append(sections, d.Sections...)
		}
		if err := copyRows(ctx, tx, pq.CopyIn("section", "id", "document_id", "ordinal", "title", "content", "token_index", "profile"),
			len(sections), func(i int) ([]any, error) {
				sec := sections[i]
				ti, err := json.Marshal(sec.Index)
				if err != nil {
					return nil, fmt.Errorf("encoding token index of section %d: %w", sec.ID, err)
				}
				return []any{sec.ID, sec.DocumentID, sec.Ordinal, sec.Title, sec.Body, string(ti), sec.Index.Profile}, nil
			}); err != nil {
			return fmt.Errorf("inserting sections: %w", err)
		}
		return nil
	})
	if err != nil {
		return fmt.Errorf("replacing corpus: %w", err)
	}
	s.logger.Info("corpus replaced",
		"documents", len(docs),
		"sections", corpus.SectionCount(docs),
		"duration", time.Since(start),
	)
	return nil
}

// copyRows streams n rows through a COPY statement.
func copyRows(ctx context.Context, tx *sql.Tx, query string, n int, row func(i int) ([]any, error)) error {
	stmt, err := tx.PrepareContext(ctx, query)
	if err != nil {
		return fmt.Errorf("preparing copy: %w", err)
	}
	for i := 0; i < n; i++ {
		values, err := row(i)
		if err != nil {
			stmt.Close()
			return err
		}
		if _, err := stmt.ExecContext(ctx, values...); err != nil {
			stmt.Close()
			return fmt.Errorf("copying row %d: %w", i, err)
		}
	}
	if _, err := stmt.ExecContext(ctx); err != nil {
		stmt.Close()
		return fmt.Errorf("flushing copy: %w", err)
	}
	return stmt.Close()
}

// DeleteAll removes every document; sections go with them.
func (s *Store) DeleteAll(ctx context.Context) error {
	return s.db.InTx(ctx, func(tx *sql.Tx) error {
		return deleteAll(ctx, tx)
	})
}

// DeleteDocument removes one document and, through the foreign key, its
// sections.
func (s *Store) DeleteDocument(ctx context.Context, id int64) error {
	res, err := s.db.DB.ExecContext(ctx, `DELETE FROM document WHERE id = $1`, id)
	if err != nil {
		return fmt.Errorf("deleting document %d: %w", id, err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("deleting document %d: %w", id, err)
	}
	if n == 0 {
		return apperrors.Newf(apperrors.ErrDocumentNotFound, http.StatusNotFound, "document %d", id)
	}
	s.logger.Info("document deleted", "document_id", id)
	return nil
}

func deleteAll(ctx context.Context, tx *sql.Tx) error {
	if _, err := tx.ExecContext(ctx, `DELETE FROM document`); err != nil {
		return fmt.Errorf("deleting documents: %w", err)
	}
	return nil
}

// LoadAll returns the persisted corpus ordered by document id, each
// document's sections ordered by ordinal.
func (s *Store) LoadAll(ctx context.Context) ([]corpus.Document, error) {
	docs, err := s.queryDocuments(ctx)
	if err != nil {
		return nil, err
	}
	byID := make(map[int64]int, len(docs))
	for i, d := range docs {
		byID[d.ID] = i
	}
	sections, err := s.querySections(ctx,
		`SELECT id, document_id, ordinal, title, content, token_index FROM section ORDER BY document_id, ordinal`)
	if err != nil {
		return nil, err
	}
	for _, sec := range sections {
		i, ok := byID[sec.DocumentID]
		if !ok {
			return nil, fmt.Errorf("section %d references missing document %d", sec.ID, sec.DocumentID)
		}
		docs[i].Sections = append(docs[i].Sections, sec)
	}
	return docs, nil
}

func (s *Store) queryDocuments(ctx context.Context) ([]corpus.Document, error) {
	rows, err := s.db.DB.QueryContext(ctx,
		`SELECT id, title, link, source_id FROM document ORDER BY id`)
	if err != nil {
		return nil, fmt.Errorf("querying documents: %w", err)
	}
	defer rows.Close()
	var docs []corpus.Document
	for rows.Next() {
		var d corpus.Document
		if err := rows.Scan(&d.ID, &d.Title, &d.Link, &d.SourceID); err != nil {
			return nil, fmt.Errorf("scanning document: %w", err)
		}
		docs = append(docs, d)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterating documents: %w", err)
	}
	return docs, nil
}

func (s *Store) ListDocuments(ctx context.Context) ([]DocumentSummary, error) {
	rows, err := s.db.DB.QueryContext(ctx, `
		SELECT d.id, d.title, d.link, d.refreshed_at, count(s.id)
		FROM document d LEFT JOIN section s ON s.document_id = d.id
		GROUP BY d.id ORDER BY d.id`)
	if err != nil {
		return nil, fmt.Errorf("listing documents: %w", err)
	}
	defer rows.Close()
	out := make([]DocumentSummary, 0)
	for rows.Next() {
		var d DocumentSummary
		if err := rows.Scan(&d.ID, &d.Title, &d.Link, &d.RefreshedAt, &d.SectionCount); err != nil {
			return nil, fmt.Errorf("scanning document summary: %w", err)
		}
		out = append(out, d)
	}
	return out, rows.Err()
}

// GetDocument returns one document with its sections.
func (s *Store) GetDocument(ctx context.Context, id int64) (*corpus.Document, error) {
	var d corpus.Document
	err := s.db.DB.QueryRowContext(ctx,
		`SELECT id, title, link, source_id FROM document WHERE id = $1`, id).
		Scan(&d.ID, &d.Title, &d.Link, &d.SourceID)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, apperrors.Newf(apperrors.ErrDocumentNotFound, http.StatusNotFound, "document %d", id)
	}
	if err != nil {
		return nil, fmt.Errorf("querying document %d: %w", id, err)
	}
	d.Sections, err = s.querySections(ctx,
		`SELECT id, document_id, ordinal, title, content, token_index FROM section WHERE document_id = $1 ORDER BY ordinal`, id)
	if err != nil {
		return nil, err
	}
	return &d, nil
}

func (s *Store) querySections(ctx context.Context, query string, args ...any) ([]corpus.Section, error) {
	rows, err := s.db.DB.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("querying sections: %w", err)
	}
	defer rows.Close()
	var out []corpus.Section
	for rows.Next() {
		var (
			sec corpus.Section
			raw []byte
		)
		if err := rows.Scan(&sec.ID, &sec.DocumentID, &sec.Ordinal, &sec.Title, &sec.Body, &raw); err != nil {
			return nil, fmt.Errorf("scanning section: %w", err)
		}
		if err := json.Unmarshal(raw, &sec.Index); err != nil {
			return nil, fmt.Errorf("decoding token index of section %d: %w", sec.ID, err)
		}
		out = append(out, sec)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterating sections: %w", err)
	}
	return out, nil
}

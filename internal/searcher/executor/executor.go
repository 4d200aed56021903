// Package executor is the search entry point: it sanitizes the raw query,
// ranks the served snapshot and hydrates the ranked section ids into full
// records.
package executor

import (
	"context"
	"errors"
	"log/slog"
	"net/http"

	"github.com/Adithya-Monish-Kumar-K/docsearch/internal/indexer"
	"github.com/Adithya-Monish-Kumar-K/docsearch/internal/searcher/parser"
	"github.com/Adithya-Monish-Kumar-K/docsearch/internal/searcher/ranker"
	"github.com/Adithya-Monish-Kumar-K/docsearch/pkg/config"
	apperrors "github.com/Adithya-Monish-Kumar-K/docsearch/pkg/errors"
	"github.com/Adithya-Monish-Kumar-K/docsearch/pkg/logger"
)

// Hit is one ranked section with its owning document.
type Hit struct {
	SectionID     int64   `json:"section_id"`
	Score         float64 `json:"score"`
	Title         string  `json:"title"`
	Content       string  `json:"content"`
	DocumentID    int64   `json:"document_id"`
	DocumentTitle string  `json:"document_title"`
	DocumentLink  string  `json:"document_link"`
}

type SearchResult struct {
	Query           string   `json:"query"`
	Lexemes         []string `json:"lexemes"`
	TotalHits       int      `json:"total_hits"`
	Results         []Hit    `json:"results"`
	SnapshotVersion uint64   `json:"snapshot_version"`
}

type Executor struct {
	engine       *indexer.Engine
	parser       *parser.Parser
	params       ranker.Params
	defaultLimit int
	maxResults   int
	logger       *slog.Logger
}

func New(engine *indexer.Engine, cfg config.SearchConfig) *Executor {
	return &Executor{
		engine: engine,
		parser: parser.New(engine.Tokenizer()),
		params: ranker.Params{
			MaxGap: cfg.MaxGap,
			K:      cfg.LengthK,
		},
		defaultLimit: cfg.DefaultLimit,
		maxResults:   cfg.MaxResults,
		logger:       slog.Default().With("component", "query-executor"),
	}
}

// Parse sanitizes raw with the indexing tokenizer.
func (e *Executor) Parse(raw string) (*parser.Query, error) {
	return e.parser.Parse(raw)
}

// Limit clamps a requested result count to (0, maxResults].
func (e *Executor) Limit(requested int) int {
	limit := requested
	if limit <= 0 {
		limit = e.defaultLimit
	}
	if e.maxResults > 0 && limit > e.maxResults {
		limit = e.maxResults
	}
	return limit
}

// Execute runs raw against the current snapshot. A query with no searchable
// terms yields an empty result, not an error.
func (e *Executor) Execute(ctx context.Context, raw string, limit int) (*SearchResult, error) {
	q, err := e.parser.Parse(raw)
	if err != nil {
		var mqe *parser.MalformedQueryError
		if errors.As(err, &mqe) {
			return e.empty(raw), nil
		}
		return nil, err
	}
	return e.ExecuteQuery(ctx, q, limit)
}

// ExecuteQuery ranks an already sanitized query.
func (e *Executor) ExecuteQuery(ctx context.Context, q *parser.Query, limit int) (*SearchResult, error) {
	snap := e.engine.Snapshot()
	if snap == nil {
		return nil, apperrors.New(apperrors.ErrIndexNotReady, http.StatusServiceUnavailable, "no index snapshot installed yet")
	}
	if q.Empty() {
		r := e.empty(q.Raw)
		r.SnapshotVersion = snap.Version
		return r, nil
	}
	limit = e.Limit(limit)

	ranked := ranker.Rank(q.Lexemes, snap.Entries(), e.params)
	total := len(ranked)
	if len(ranked) > limit {
		ranked = ranked[:limit]
	}
	hits := make([]Hit, 0, len(ranked))
	for _, r := range ranked {
		sec, doc, ok := snap.Section(r.SectionID)
		if !ok {
			continue
		}
		hits = append(hits, Hit{
			SectionID:     r.SectionID,
			Score:         r.Score,
			Title:         sec.Title,
			Content:       sec.Body,
			DocumentID:    doc.ID,
			DocumentTitle: doc.Title,
			DocumentLink:  doc.Link,
		})
	}
	log := e.logger
	if id := logger.RequestID(ctx); id != "" {
		log = log.With("request_id", id)
	}
	log.Debug("query executed",
		"query", q.String(),
		"total_hits", total,
		"returned", len(hits),
		"snapshot_version", snap.Version,
	)
	return &SearchResult{
		Query:           q.Raw,
		Lexemes:         q.Lexemes,
		TotalHits:       total,
		Results:         hits,
		SnapshotVersion: snap.Version,
	}, nil
}

// SnapshotVersion returns the served version, 0 before the first install.
func (e *Executor) SnapshotVersion() uint64 {
	if snap := e.engine.Snapshot(); snap != nil {
		return snap.Version
	}
	return 0
}

func (e *Executor) empty(raw string) *SearchResult {
	return &SearchResult{
		Query:           raw,
		Lexemes:         []string{},
		Results:         []Hit{},
		SnapshotVersion: e.SnapshotVersion(),
	}
}

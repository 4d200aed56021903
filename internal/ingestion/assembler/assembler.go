// Package assembler turns source documents into the document/section model.
// Sectioning and id assignment run in input order so ids are reproducible;
// token indices are then built concurrently on a bounded worker pool.
package assembler

import (
	"context"
	"fmt"
	"log/slog"
	"sync"

	"github.com/panjf2000/ants/v2"

	"github.com/Adithya-Monish-Kumar-K/docsearch/internal/corpus"
	"github.com/Adithya-Monish-Kumar-K/docsearch/internal/indexer/sectioner"
	"github.com/Adithya-Monish-Kumar-K/docsearch/internal/indexer/tokenizer"
	"github.com/Adithya-Monish-Kumar-K/docsearch/internal/ingestion"
)

const defaultWorkers = 4

type Assembler struct {
	sections *sectioner.Parser
	tok      *tokenizer.Tokenizer
	pool     *ants.Pool
	logger   *slog.Logger
}

// New creates an Assembler with a pool of workers goroutines. Call Release
// when done.
func New(tok *tokenizer.Tokenizer, opts sectioner.Options, workers int) (*Assembler, error) {
	if tok == nil {
		tok = tokenizer.Default()
	}
	if workers <= 0 {
		workers = defaultWorkers
	}
	pool, err := ants.NewPool(workers)
	if err != nil {
		return nil, fmt.Errorf("creating index worker pool: %w", err)
	}
	return &Assembler{
		sections: sectioner.New(opts),
		tok:      tok,
		pool:     pool,
		logger:   slog.Default().With("component", "assembler"),
	}, nil
}

// Assemble sections every source document and indexes every section.
// Documents are numbered 1..n in input order and sections 1..m across all
// documents in source order. A preamble section takes the document title.
func (a *Assembler) Assemble(ctx context.Context, srcs []ingestion.SourceDocument) ([]corpus.Document, error) {
	docs := make([]corpus.Document, len(srcs))
	var sectionID int64
	for i, src := range srcs {
		doc := corpus.Document{
			ID:       int64(i + 1),
			Title:    src.Title,
			Link:     src.Link,
			SourceID: src.ID,
		}
		parsed := a.sections.Parse(src.RawText)
		doc.Sections = make([]corpus.Section, len(parsed))
		for j, s := range parsed {
			sectionID++
			title := s.Header
			if s.Depth == 0 {
				title = src.Title
			}
			doc.Sections[j] = corpus.Section{
				ID:         sectionID,
				DocumentID: doc.ID,
				Ordinal:    j,
				Title:      title,
				Body:       s.Body,
			}
		}
		docs[i] = doc
	}

	if err := a.index(ctx, docs); err != nil {
		return nil, err
	}
	a.logger.Debug("documents assembled",
		"documents", len(docs),
		"sections", sectionID,
	)
	return docs, nil
}

// index builds every section's TokenIndex on the pool. Each task writes only
// its own section.
func (a *Assembler) index(ctx context.Context, docs []corpus.Document) error {
	var wg sync.WaitGroup
	var submitErr error
submit:
	for i := range docs {
		for j := range docs[i].Sections {
			if err := ctx.Err(); err != nil {
				submitErr = err
				break submit
			}
			s := &docs[i].Sections[j]
			wg.Add(1)
			if err := a.pool.Submit(func() {
				defer wg.Done()
				s.SetContent(a.tok, s.Title, s.Body)
			}); err != nil {
				wg.Done()
				submitErr = fmt.Errorf("submitting section %d: %w", s.ID, err)
				break submit
			}
		}
	}
	wg.Wait()
	if submitErr != nil {
		return submitErr
	}
	return ctx.Err()
}

// Release stops the worker pool.
func (a *Assembler) Release() {
	a.pool.Release()
}

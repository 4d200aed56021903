// Package refresher rebuilds the whole corpus from its source: fetch,
// validate, assemble, persist, install the new snapshot, announce it. A
// failure at any step leaves the previous snapshot serving.
package refresher

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/Adithya-Monish-Kumar-K/docsearch/internal/corpus"
	"github.com/Adithya-Monish-Kumar-K/docsearch/internal/indexer"
	"github.com/Adithya-Monish-Kumar-K/docsearch/internal/ingestion"
	"github.com/Adithya-Monish-Kumar-K/docsearch/internal/ingestion/assembler"
	"github.com/Adithya-Monish-Kumar-K/docsearch/internal/ingestion/source"
	"github.com/Adithya-Monish-Kumar-K/docsearch/internal/ingestion/validator"
	apperrors "github.com/Adithya-Monish-Kumar-K/docsearch/pkg/errors"
	"github.com/Adithya-Monish-Kumar-K/docsearch/pkg/kafka"
	"github.com/Adithya-Monish-Kumar-K/docsearch/pkg/logger"
	"github.com/Adithya-Monish-Kumar-K/docsearch/pkg/metrics"
	"github.com/Adithya-Monish-Kumar-K/docsearch/pkg/resilience"
	"github.com/Adithya-Monish-Kumar-K/docsearch/pkg/tracing"
)

// Persister stores a complete corpus, replacing the previous one atomically,
// and removes single documents.
type Persister interface {
	ReplaceAll(ctx context.Context, docs []corpus.Document) error
	DeleteDocument(ctx context.Context, id int64) error
}

type Config struct {
	FetchTimeout time.Duration
}

type Refresher struct {
	src       source.Source
	asm       *assembler.Assembler
	store     Persister
	engine    *indexer.Engine
	publisher kafka.Publisher
	metrics   *metrics.Metrics
	cfg       Config

	mu     sync.Mutex
	logger *slog.Logger
}

// New wires a Refresher. publisher and m may be nil.
func New(src source.Source, asm *assembler.Assembler, store Persister, engine *indexer.Engine,
	publisher kafka.Publisher, m *metrics.Metrics, cfg Config) *Refresher {
	return &Refresher{
		src:       src,
		asm:       asm,
		store:     store,
		engine:    engine,
		publisher: publisher,
		metrics:   m,
		cfg:       cfg,
		logger:    slog.Default().With("component", "refresher", "source", src.Name()),
	}
}

// Refresh runs one full rebuild, waiting for any refresh already running.
func (r *Refresher) Refresh(ctx context.Context) (*ingestion.IndexCompleteEvent, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.refresh(ctx)
}

// TryRefresh is Refresh without waiting: it fails with ErrRefreshRunning
// when another refresh holds the lock.
func (r *Refresher) TryRefresh(ctx context.Context) (*ingestion.IndexCompleteEvent, error) {
	if !r.mu.TryLock() {
		return nil, apperrors.New(apperrors.ErrRefreshRunning, http.StatusConflict, "a refresh is already in progress")
	}
	defer r.mu.Unlock()
	return r.refresh(ctx)
}

func (r *Refresher) refresh(ctx context.Context) (*ingestion.IndexCompleteEvent, error) {
	start := time.Now()
	log := logger.FromContext(ctx).With("component", "refresher", "source", r.src.Name())
	traceID := logger.RequestID(ctx)
	if traceID == "" {
		traceID = uuid.NewString()
	}
	ctx, span := tracing.StartSpan(ctx, "refresh", traceID)
	defer func() {
		span.End()
		span.Log(log)
	}()

	event, err := r.rebuild(ctx, log)
	if err != nil {
		r.metrics.ObserveRefresh("failure", time.Since(start))
		log.Error("refresh failed, previous snapshot still serving", "error", err, "duration", time.Since(start))
		return nil, err
	}
	r.metrics.ObserveRefresh("success", time.Since(start))
	r.metrics.SetSnapshot(event.Version, event.Documents, event.Sections)
	log.Info("refresh complete",
		"version", event.Version,
		"documents", event.Documents,
		"sections", event.Sections,
		"skipped", event.Skipped,
		"duration", time.Since(start),
		"stages", span.Stages(),
	)

	r.announce(ctx, log, event)
	return event, nil
}

// DeleteDocument removes one document from the store and from the served
// snapshot, then announces the new snapshot the way a refresh does. It waits
// for a running refresh.
func (r *Refresher) DeleteDocument(ctx context.Context, id int64) (*ingestion.IndexCompleteEvent, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	log := logger.FromContext(ctx).With("component", "refresher", "document_id", id)

	if err := r.store.DeleteDocument(ctx, id); err != nil {
		return nil, err
	}
	var remaining []corpus.Document
	if current := r.engine.Snapshot(); current != nil {
		remaining = make([]corpus.Document, 0, len(current.Documents))
		for _, d := range current.Documents {
			if d.ID != id {
				remaining = append(remaining, d)
			}
		}
	}
	snap := r.engine.Install(remaining)
	event := &ingestion.IndexCompleteEvent{
		RequestID: logger.RequestID(ctx),
		Documents: len(snap.Documents),
		Sections:  snap.SectionCount(),
		Profile:   r.engine.Tokenizer().Profile().Name(),
		Version:   snap.Version,
		BuiltAt:   snap.BuiltAt,
	}
	r.metrics.SetSnapshot(event.Version, event.Documents, event.Sections)
	log.Info("document removed from index", "version", event.Version, "sections", event.Sections)
	r.announce(ctx, log, event)
	return event, nil
}

func (r *Refresher) announce(ctx context.Context, log *slog.Logger, event *ingestion.IndexCompleteEvent) {
	if r.publisher == nil {
		return
	}
	if err := r.publisher.Publish(ctx, kafka.Event{Key: "index", Value: event}); err != nil {
		log.Error("failed to publish index-complete event", "version", event.Version, "error", err)
	}
}

func (r *Refresher) rebuild(ctx context.Context, log *slog.Logger) (*ingestion.IndexCompleteEvent, error) {
	var srcs []ingestion.SourceDocument
	err := tracing.Trace(ctx, "fetch", func(ctx context.Context) error {
		return resilience.WithTimeout(ctx, r.cfg.FetchTimeout, "fetch "+r.src.Name(), func(ctx context.Context) error {
			var err error
			srcs, err = r.src.Fetch(ctx)
			return err
		})
	})
	if err != nil {
		if errors.Is(err, apperrors.ErrTimeout) {
			return nil, err
		}
		return nil, apperrors.Newf(apperrors.ErrSourceFailed, http.StatusBadGateway, "fetching from %s: %v", r.src.Name(), err)
	}

	valid := srcs[:0:0]
	for _, s := range srcs {
		if err := validator.ValidateSource(s); err != nil {
			log.Warn("skipping invalid source document", "source_id", s.ID, "title", s.Title, "error", err)
			continue
		}
		valid = append(valid, s)
	}

	var docs []corpus.Document
	err = tracing.Trace(ctx, "assemble", func(ctx context.Context) error {
		var err error
		docs, err = r.asm.Assemble(ctx, valid)
		return err
	})
	if err != nil {
		return nil, fmt.Errorf("assembling documents: %w", err)
	}
	err = tracing.Trace(ctx, "persist", func(ctx context.Context) error {
		return r.store.ReplaceAll(ctx, docs)
	})
	if err != nil {
		return nil, fmt.Errorf("persisting corpus: %w", err)
	}
	_, installSpan := tracing.StartChildSpan(ctx, "install")
	snap := r.engine.Install(docs)
	installSpan.SetAttr("sections", snap.SectionCount())
	installSpan.End()

	return &ingestion.IndexCompleteEvent{
		RequestID: logger.RequestID(ctx),
		Documents: len(snap.Documents),
		Sections:  snap.SectionCount(),
		Skipped:   len(srcs) - len(valid),
		Profile:   r.engine.Tokenizer().Profile().Name(),
		Version:   snap.Version,
		BuiltAt:   snap.BuiltAt,
	}, nil
}

// StartLoop refreshes every interval until ctx is cancelled. A tick that
// finds a refresh already running is skipped.
func (r *Refresher) StartLoop(ctx context.Context, interval time.Duration) {
	if interval <= 0 {
		return
	}
	ticker := time.NewTicker(interval)
	go func() {
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				r.logger.Info("refresh loop stopping")
				return
			case <-ticker.C:
				if _, err := r.TryRefresh(ctx); err != nil && errors.Is(err, apperrors.ErrRefreshRunning) {
					r.logger.Info("periodic refresh skipped, another refresh is running")
				}
			}
		}
	}()
}

// HandleRefreshRequest is the kafka.MessageHandler for refresh requests.
// Requests that arrive while a refresh runs wait for it and then rebuild
// again, so the latest request always sees the latest source state.
func (r *Refresher) HandleRefreshRequest(ctx context.Context, _ []byte, value []byte) error {
	req, err := kafka.DecodeJSON[ingestion.RefreshRequest](value)
	if err != nil {
		return err
	}
	if req.RequestID != "" {
		ctx = logger.WithRequestID(ctx, req.RequestID)
	}
	_, err = r.Refresh(ctx)
	return err
}

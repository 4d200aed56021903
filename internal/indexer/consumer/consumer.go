// Package consumer keeps a searcher's snapshot in step with the indexer. It
// reacts to index-complete events by reloading the persisted corpus,
// installing it and dropping cached results.
package consumer

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/Adithya-Monish-Kumar-K/docsearch/internal/corpus"
	"github.com/Adithya-Monish-Kumar-K/docsearch/internal/indexer"
	"github.com/Adithya-Monish-Kumar-K/docsearch/internal/ingestion"
	"github.com/Adithya-Monish-Kumar-K/docsearch/pkg/kafka"
	"github.com/Adithya-Monish-Kumar-K/docsearch/pkg/metrics"
	"github.com/Adithya-Monish-Kumar-K/docsearch/pkg/resilience"
)

// Loader reads the whole persisted corpus.
type Loader interface {
	LoadAll(ctx context.Context) ([]corpus.Document, error)
}

// Invalidator drops cached search results.
type Invalidator interface {
	Invalidate(ctx context.Context) error
}

type SnapshotConsumer struct {
	loader  Loader
	engine  *indexer.Engine
	cache   Invalidator
	metrics *metrics.Metrics
	retry   resilience.RetryConfig

	mu      sync.Mutex
	builtAt time.Time
	logger  *slog.Logger
}

// New wires a SnapshotConsumer. cache and m may be nil.
func New(loader Loader, engine *indexer.Engine, cache Invalidator, m *metrics.Metrics) *SnapshotConsumer {
	return &SnapshotConsumer{
		loader:  loader,
		engine:  engine,
		cache:   cache,
		metrics: m,
		retry: resilience.RetryConfig{
			MaxAttempts:  5,
			InitialDelay: 200 * time.Millisecond,
			MaxDelay:     5 * time.Second,
		},
		logger: slog.Default().With("component", "snapshot-consumer"),
	}
}

// Reload installs whatever the store currently holds.
func (c *SnapshotConsumer) Reload(ctx context.Context) (*indexer.Snapshot, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.reload(ctx)
}

func (c *SnapshotConsumer) reload(ctx context.Context) (*indexer.Snapshot, error) {
	var docs []corpus.Document
	err := resilience.Retry(ctx, "snapshot-load", c.retry, func() error {
		var err error
		docs, err = c.loader.LoadAll(ctx)
		return err
	})
	if err != nil {
		return nil, fmt.Errorf("loading corpus: %w", err)
	}
	snap := c.engine.Install(docs)
	c.metrics.SetSnapshot(snap.Version, len(snap.Documents), snap.SectionCount())
	if c.cache != nil {
		if err := c.cache.Invalidate(ctx); err != nil {
			c.logger.Warn("cache invalidation failed", "error", err)
		}
	}
	c.logger.Info("snapshot reloaded",
		"version", snap.Version,
		"documents", len(snap.Documents),
		"sections", snap.SectionCount(),
	)
	return snap, nil
}

// HandleIndexComplete is the kafka.MessageHandler for index-complete events.
// Events built no later than the last one applied are ignored.
func (c *SnapshotConsumer) HandleIndexComplete(ctx context.Context, key []byte, value []byte) error {
	event, err := kafka.DecodeJSON[ingestion.IndexCompleteEvent](value)
	if err != nil {
		c.logger.Error("failed to decode index-complete event",
			"error", err,
			"key", string(key),
		)
		return nil
	}

	c.mu.Lock()
	defer c.mu.Unlock()
	if !event.BuiltAt.IsZero() && !event.BuiltAt.After(c.builtAt) {
		c.logger.Debug("stale index-complete event ignored",
			"built_at", event.BuiltAt,
			"applied", c.builtAt,
		)
		return nil
	}
	if _, err := c.reload(ctx); err != nil {
		return err
	}
	if event.BuiltAt.After(c.builtAt) {
		c.builtAt = event.BuiltAt
	}
	c.logger.Info("index-complete event applied",
		"request_id", event.RequestID,
		"documents", event.Documents,
		"sections", event.Sections,
	)
	return nil
}

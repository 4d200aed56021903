// Package tracing times the stages of a refresh. Spans live in the context,
// nest by stage, and are never exported; the refresher logs the stage
// timings with its completion record and the full tree at debug level.
package tracing

import (
	"context"
	"log/slog"
	"sync"
	"time"
)

type spanKey struct{}

type Span struct {
	name    string
	traceID string
	start   time.Time

	mu       sync.Mutex
	duration time.Duration
	ended    bool
	err      string
	attrs    []slog.Attr
	children []*Span
}

// Stage is the outcome of one direct child of a span.
type Stage struct {
	Name     string        `json:"name"`
	Duration time.Duration `json:"duration"`
	Err      string        `json:"error,omitempty"`
}

// StartSpan opens a root span for traceID.
func StartSpan(ctx context.Context, name, traceID string) (context.Context, *Span) {
	s := &Span{name: name, traceID: traceID, start: time.Now()}
	return context.WithValue(ctx, spanKey{}, s), s
}

// StartChildSpan nests a span under the one in ctx. Without a parent the
// span stands alone with no trace ID.
func StartChildSpan(ctx context.Context, name string) (context.Context, *Span) {
	s := &Span{name: name, start: time.Now()}
	if parent := SpanFromContext(ctx); parent != nil {
		s.traceID = parent.traceID
		parent.mu.Lock()
		parent.children = append(parent.children, s)
		parent.mu.Unlock()
	}
	return context.WithValue(ctx, spanKey{}, s), s
}

// Trace runs fn as a child span and records its error.
func Trace(ctx context.Context, name string, fn func(ctx context.Context) error) error {
	ctx, s := StartChildSpan(ctx, name)
	err := fn(ctx)
	if err != nil {
		s.mu.Lock()
		s.err = err.Error()
		s.mu.Unlock()
	}
	s.End()
	return err
}

func SpanFromContext(ctx context.Context) *Span {
	s, _ := ctx.Value(spanKey{}).(*Span)
	return s
}

// End fixes the duration. Later calls are ignored.
func (s *Span) End() {
	s.mu.Lock()
	defer s.mu.Unlock()
	if !s.ended {
		s.ended = true
		s.duration = time.Since(s.start)
	}
}

func (s *Span) SetAttr(key string, value any) {
	s.mu.Lock()
	s.attrs = append(s.attrs, slog.Any(key, value))
	s.mu.Unlock()
}

func (s *Span) TraceID() string { return s.traceID }

// Stages lists the direct children in start order. Unfinished children
// report the time elapsed so far.
func (s *Span) Stages() []Stage {
	s.mu.Lock()
	children := append([]*Span(nil), s.children...)
	s.mu.Unlock()

	stages := make([]Stage, 0, len(children))
	for _, c := range children {
		c.mu.Lock()
		d := c.duration
		if !c.ended {
			d = time.Since(c.start)
		}
		stages = append(stages, Stage{Name: c.name, Duration: d, Err: c.err})
		c.mu.Unlock()
	}
	return stages
}

// Log writes one debug record per span, depth first.
func (s *Span) Log(logger *slog.Logger) {
	s.log(logger, s.name)
}

func (s *Span) log(logger *slog.Logger, path string) {
	s.mu.Lock()
	attrs := []slog.Attr{
		slog.String("trace_id", s.traceID),
		slog.String("span", path),
		slog.Duration("duration", s.duration),
	}
	if s.err != "" {
		attrs = append(attrs, slog.String("error", s.err))
	}
	attrs = append(attrs, s.attrs...)
	children := append([]*Span(nil), s.children...)
	s.mu.Unlock()

	logger.LogAttrs(context.Background(), slog.LevelDebug, "span", attrs...)
	for _, c := range children {
		c.log(logger, path+"/"+c.name)
	}
}

package tracing

import (
	"bytes"
	"context"
	"errors"
	"log/slog"
	"strings"
	"testing"
)

func TestSpanTree(t *testing.T) {
	ctx, root := StartSpan(context.Background(), "refresh", "req-1")
	err := Trace(ctx, "fetch", func(ctx context.Context) error {
		return Trace(ctx, "export", func(context.Context) error { return nil })
	})
	if err != nil {
		t.Fatal(err)
	}
	want := errors.New("db down")
	if err := Trace(ctx, "persist", func(context.Context) error { return want }); !errors.Is(err, want) {
		t.Fatalf("Trace error = %v", err)
	}
	_, install := StartChildSpan(ctx, "install")
	install.SetAttr("sections", 12)
	install.End()
	root.End()

	stages := root.Stages()
	names := make([]string, len(stages))
	for i, s := range stages {
		names[i] = s.Name
	}
	if strings.Join(names, ",") != "fetch,persist,install" {
		t.Errorf("stages = %v", names)
	}
	if stages[0].Err != "" || stages[1].Err != "db down" {
		t.Errorf("stage errors = %+v", stages)
	}

	var buf bytes.Buffer
	root.Log(slog.New(slog.NewTextHandler(&buf, &slog.HandlerOptions{Level: slog.LevelDebug})))
	out := buf.String()
	if n := strings.Count(out, "msg=span"); n != 5 {
		t.Errorf("logged %d spans, want 5:\n%s", n, out)
	}
	for _, want := range []string{"span=refresh/fetch/export", "trace_id=req-1", "sections=12", `error="db down"`} {
		if !strings.Contains(out, want) {
			t.Errorf("log missing %q:\n%s", want, out)
		}
	}
}

func TestEndIsIdempotent(t *testing.T) {
	_, s := StartSpan(context.Background(), "refresh", "req-2")
	s.End()
	first := s.duration
	s.End()
	if s.duration != first {
		t.Errorf("duration changed on second End: %v -> %v", first, s.duration)
	}
}

func TestChildWithoutParent(t *testing.T) {
	_, span := StartChildSpan(context.Background(), "orphan")
	if span.TraceID() != "" || SpanFromContext(context.Background()) != nil {
		t.Error("orphan span should have no trace")
	}
}

package assembler

import (
	"context"
	"fmt"
	"reflect"
	"testing"

	"github.com/Adithya-Monish-Kumar-K/docsearch/internal/indexer/index"
	"github.com/Adithya-Monish-Kumar-K/docsearch/internal/indexer/sectioner"
	"github.com/Adithya-Monish-Kumar-K/docsearch/internal/indexer/tokenizer"
	"github.com/Adithya-Monish-Kumar-K/docsearch/internal/ingestion"
)

func newAssembler(t *testing.T, opts sectioner.Options) *Assembler {
	t.Helper()
	a, err := New(tokenizer.Default(), opts, 3)
	if err != nil {
		t.Fatal(err)
	}
	t.Cleanup(a.Release)
	return a
}

var sources = []ingestion.SourceDocument{
	{ID: "a", Title: "Handbook", Link: "https://docs/a", RawText: "# Introduction\nOverview of advising.\n# Policies\nDetails on CS policies."},
	{ID: "b", Title: "Empty", Link: "https://docs/b", RawText: "no headers here"},
	{ID: "c", Title: "Guide", Link: "https://docs/c", RawText: "intro text\n## Contents\nSee [table of contents](#toc)\n## Minors {#minors}\nMinor requirements."},
}

func TestAssembleAssignsDeterministicIDs(t *testing.T) {
	a := newAssembler(t, sectioner.Options{})
	docs, err := a.Assemble(context.Background(), sources)
	if err != nil {
		t.Fatal(err)
	}
	if len(docs) != 3 {
		t.Fatalf("got %d documents", len(docs))
	}
	type row struct {
		doc   int64
		id    int64
		title string
	}
	var got []row
	for i, d := range docs {
		if d.ID != int64(i+1) || d.Title != sources[i].Title || d.Link != sources[i].Link || d.SourceID != sources[i].ID {
			t.Errorf("document %d = %+v", i, d)
		}
		for j, s := range d.Sections {
			if s.Ordinal != j || s.DocumentID != d.ID {
				t.Errorf("section %+v has wrong back-reference or ordinal", s)
			}
			got = append(got, row{d.ID, s.ID, s.Title})
		}
	}
	want := []row{
		{1, 1, "# Introduction"},
		{1, 2, "# Policies"},
		{3, 3, "## Minors"},
	}
	if !reflect.DeepEqual(got, want) {
		t.Errorf("sections = %v, want %v", got, want)
	}

	again, err := a.Assemble(context.Background(), sources)
	if err != nil {
		t.Fatal(err)
	}
	if !reflect.DeepEqual(docs, again) {
		t.Error("Assemble is not deterministic")
	}
}

func TestAssembleBuildsIndices(t *testing.T) {
	a := newAssembler(t, sectioner.Options{})
	docs, err := a.Assemble(context.Background(), sources)
	if err != nil {
		t.Fatal(err)
	}
	for _, d := range docs {
		for _, s := range d.Sections {
			want := index.Build(tokenizer.Default(), s.Title, s.Body)
			if !s.Index.Equal(want) {
				t.Errorf("section %d index mismatch: %v", s.ID, s.Index.Terms())
			}
		}
	}
}

func TestAssemblePreambleTakesDocumentTitle(t *testing.T) {
	a := newAssembler(t, sectioner.Options{Preamble: true, StripLevelMarks: true})
	docs, err := a.Assemble(context.Background(), sources[1:])
	if err != nil {
		t.Fatal(err)
	}
	if len(docs[0].Sections) != 1 || docs[0].Sections[0].Title != "Empty" {
		t.Fatalf("preamble section = %+v", docs[0].Sections)
	}
	if !docs[0].Sections[0].Index.Contains("headers") {
		t.Error("preamble body not indexed")
	}
	titles := []string{}
	for _, s := range docs[1].Sections {
		titles = append(titles, s.Title)
	}
	if !reflect.DeepEqual(titles, []string{"Guide", "Minors"}) {
		t.Errorf("titles = %v", titles)
	}
}

func TestAssembleCancelled(t *testing.T) {
	a := newAssembler(t, sectioner.Options{})
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	if _, err := a.Assemble(ctx, sources); err == nil {
		t.Error("expected context error")
	}
}

func TestAssembleLargeBatch(t *testing.T) {
	a := newAssembler(t, sectioner.Options{})
	var srcs []ingestion.SourceDocument
	for i := 0; i < 200; i++ {
		srcs = append(srcs, ingestion.SourceDocument{
			Title:   fmt.Sprintf("Doc %d", i),
			RawText: fmt.Sprintf("# One\nalpha %d\n# Two\nbeta %d", i, i),
		})
	}
	docs, err := a.Assemble(context.Background(), srcs)
	if err != nil {
		t.Fatal(err)
	}
	var next int64 = 1
	for _, d := range docs {
		for _, s := range d.Sections {
			if s.ID != next {
				t.Fatalf("section id %d, want %d", s.ID, next)
			}
			next++
			if s.Index.TotalTokens == 0 {
				t.Fatalf("section %d not indexed", s.ID)
			}
		}
	}
}

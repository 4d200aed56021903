package corpus

import (
	"testing"

	"github.com/Adithya-Monish-Kumar-K/docsearch/internal/indexer/index"
	"github.com/Adithya-Monish-Kumar-K/docsearch/internal/indexer/tokenizer"
)

func TestSetContentRebuildsIndex(t *testing.T) {
	tok := tokenizer.Default()
	s := NewSection(tok, 1, 1, 0, "# Introduction", "Overview of advising.")
	if !s.Index.Contains("advising") {
		t.Fatalf("index missing body lexeme: %v", s.Index.Terms())
	}
	s.SetContent(tok, "# Introduction", "Overview of registration.")
	if s.Index.Contains("advising") {
		t.Error("stale lexeme survived SetContent")
	}
	if !s.Index.Contains("registration") {
		t.Error("new lexeme missing after SetContent")
	}
	if !s.Index.Equal(index.Build(tok, s.Title, s.Body)) {
		t.Error("index does not match a fresh build")
	}
}

func TestReindex(t *testing.T) {
	simple := tokenizer.Default()
	english := tokenizer.New(tokenizer.English())

	s := NewSection(simple, 1, 1, 0, "Advising", "Students advised weekly.")
	if s.Reindex(simple) {
		t.Error("same profile should not trigger a rebuild")
	}
	if !s.Reindex(english) {
		t.Fatal("profile change should trigger a rebuild")
	}
	if s.Index.Profile != tokenizer.ProfileEnglish {
		t.Errorf("profile = %q after reindex", s.Index.Profile)
	}

	s.Index = index.TokenIndex{Profile: tokenizer.ProfileEnglish, Positions: map[string][]int{"x": {3, 1}}, TotalTokens: 2}
	if !s.Reindex(english) {
		t.Error("corrupt index should trigger a rebuild")
	}
}

func TestSectionCount(t *testing.T) {
	docs := []Document{
		{Sections: make([]Section, 2)},
		{},
		{Sections: make([]Section, 3)},
	}
	if got := SectionCount(docs); got != 5 {
		t.Errorf("SectionCount = %d, want 5", got)
	}
}

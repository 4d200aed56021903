package index

import (
	"encoding/json"
	"reflect"
	"testing"

	"github.com/Adithya-Monish-Kumar-K/docsearch/internal/indexer/tokenizer"
)

func TestBuildGroupsPositions(t *testing.T) {
	ti := Build(tokenizer.Default(), "# Policies", "Details on CS policies.")
	want := map[string][]int{
		"policies": {0, 4},
		"details":  {1},
		"on":       {2},
		"cs":       {3},
	}
	if !reflect.DeepEqual(ti.Positions, want) {
		t.Errorf("Positions = %v, want %v", ti.Positions, want)
	}
	if ti.TotalTokens != 5 {
		t.Errorf("TotalTokens = %d, want 5", ti.TotalTokens)
	}
	if ti.Profile != tokenizer.ProfileSimple {
		t.Errorf("Profile = %q", ti.Profile)
	}
	if err := ti.Validate(); err != nil {
		t.Errorf("Validate: %v", err)
	}
}

func TestBuildTitleAndBodyDoNotMerge(t *testing.T) {
	ti := Build(tokenizer.Default(), "Minor", "requirements")
	if !ti.Contains("minor") || !ti.Contains("requirements") {
		t.Errorf("title and body words merged: %v", ti.Terms())
	}
}

func TestBuildIdempotent(t *testing.T) {
	for _, name := range tokenizer.ProfileNames() {
		tok, err := tokenizer.NewByName(name)
		if err != nil {
			t.Fatal(err)
		}
		title := "## Degree Requirements"
		body := "Students completing degree requirements should meet an advisor. Requirements vary by degree."
		a := Build(tok, title, body)
		b := Build(tok, title, body)
		if !a.Equal(b) || !reflect.DeepEqual(a, b) {
			t.Errorf("profile %s: Build not deterministic", name)
		}
	}
}

func TestBuildEmpty(t *testing.T) {
	ti := Build(tokenizer.Default(), "", "")
	if ti.TotalTokens != 0 || len(ti.Positions) != 0 {
		t.Errorf("expected empty index, got %+v", ti)
	}
	if err := ti.Validate(); err != nil {
		t.Errorf("empty index should validate: %v", err)
	}
}

func TestEqual(t *testing.T) {
	a := Build(tokenizer.Default(), "a", "b c b")
	b := Build(tokenizer.Default(), "a", "b c")
	if a.Equal(b) {
		t.Error("different texts must not be equal")
	}
	c := Build(tokenizer.New(tokenizer.Light()), "a", "b c b")
	if a.Equal(c) {
		t.Error("different profiles must not be equal")
	}
}

func TestValidateRejectsCorruptIndex(t *testing.T) {
	tests := []TokenIndex{
		{Positions: map[string][]int{"a": {2, 1}}, TotalTokens: 2},
		{Positions: map[string][]int{"a": {1, 1}}, TotalTokens: 2},
		{Positions: map[string][]int{"a": {}}, TotalTokens: 0},
		{Positions: map[string][]int{"a": {0}}, TotalTokens: 3},
	}
	for i, ti := range tests {
		if err := ti.Validate(); err == nil {
			t.Errorf("case %d: expected validation error", i)
		}
	}
}

func TestJSONRoundTripPreservesEquality(t *testing.T) {
	ti := Build(tokenizer.Default(), "# Introduction", "Overview of advising.")
	data, err := json.Marshal(ti)
	if err != nil {
		t.Fatal(err)
	}
	var decoded TokenIndex
	if err := json.Unmarshal(data, &decoded); err != nil {
		t.Fatal(err)
	}
	if !ti.Equal(decoded) {
		t.Errorf("decoded index differs: %+v vs %+v", decoded, ti)
	}
}

func TestOccurrences(t *testing.T) {
	e := Entry{SectionID: 1, Index: Build(tokenizer.Default(), "", "b a x b a")}
	occ := e.Occurrences([]string{"a", "b"})
	want := []Occurrence{{0, 1}, {1, 0}, {3, 1}, {4, 0}}
	if !reflect.DeepEqual(occ, want) {
		t.Errorf("Occurrences = %v, want %v", occ, want)
	}
	if e.Occurrences([]string{"a", "missing"}) != nil {
		t.Error("missing lexeme must yield nil")
	}
	if e.Occurrences(nil) != nil {
		t.Error("no lexemes must yield nil")
	}
}

func TestSortEntries(t *testing.T) {
	entries := []Entry{{SectionID: 3}, {SectionID: 1}, {SectionID: 2}}
	SortEntries(entries)
	for i, e := range entries {
		if e.SectionID != int64(i+1) {
			t.Fatalf("entries not sorted: %v", entries)
		}
	}
}

// Package corpus holds the document model: documents own an ordered list of
// sections, and every section carries the TokenIndex derived from its title
// and body. Any change to a section's text goes through SetContent, which
// rebuilds the index in the same call.
package corpus

import (
	"github.com/Adithya-Monish-Kumar-K/docsearch/internal/indexer/index"
	"github.com/Adithya-Monish-Kumar-K/docsearch/internal/indexer/tokenizer"
)

type Document struct {
	ID       int64     `json:"id"`
	Title    string    `json:"title"`
	Link     string    `json:"link"`
	SourceID string    `json:"source_id,omitempty"`
	Sections []Section `json:"sections"`
}

// Section is exclusively owned by its Document; DocumentID is a
// back-reference only.
type Section struct {
	ID         int64            `json:"id"`
	DocumentID int64            `json:"document_id"`
	Ordinal    int              `json:"ordinal"`
	Title      string           `json:"title"`
	Body       string           `json:"content"`
	Index      index.TokenIndex `json:"-"`
}

// NewSection returns a section whose index is built from title and body.
func NewSection(tok *tokenizer.Tokenizer, id, documentID int64, ordinal int, title, body string) Section {
	s := Section{
		ID:         id,
		DocumentID: documentID,
		Ordinal:    ordinal,
	}
	s.SetContent(tok, title, body)
	return s
}

// SetContent replaces the section text and recomputes its index.
func (s *Section) SetContent(tok *tokenizer.Tokenizer, title, body string) {
	s.Title = title
	s.Body = body
	s.Index = index.Build(tok, title, body)
}

// Reindex rebuilds the index when it was built by a different profile or
// does not satisfy the index invariants. It reports whether it rebuilt.
func (s *Section) Reindex(tok *tokenizer.Tokenizer) bool {
	if s.Index.Profile == tok.Profile().Name() && s.Index.Positions != nil && s.Index.Validate() == nil {
		return false
	}
	s.Index = index.Build(tok, s.Title, s.Body)
	return true
}

func (s Section) Entry() index.Entry {
	return index.Entry{SectionID: s.ID, Index: s.Index}
}

// SectionCount sums the sections of docs.
func SectionCount(docs []Document) int {
	n := 0
	for _, d := range docs {
		n += len(d.Sections)
	}
	return n
}

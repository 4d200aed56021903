// Package index builds the per-section positional index: for every lexeme
// the sorted token positions where it occurs in the section's title+body
// stream, plus the stream's token count.
package index

import (
	"fmt"
	"slices"
	"sort"

	"github.com/Adithya-Monish-Kumar-K/docsearch/internal/indexer/tokenizer"
)

// TokenIndex is fully determined by (title, body, profile). Positions are
// 0-based and strictly increasing per lexeme.
type TokenIndex struct {
	Positions   map[string][]int `json:"positions"`
	TotalTokens int              `json:"total_tokens"`
	Profile     string           `json:"profile"`
}

// Build tokenizes title and body as one stream, title first, and groups the
// resulting positions by lexeme.
func Build(tok *tokenizer.Tokenizer, title string, body string) TokenIndex {
	tokens := tok.Tokenize(title + "\n" + body)
	positions := make(map[string][]int)
	for _, token := range tokens {
		positions[token.Term] = append(positions[token.Term], token.Position)
	}
	return TokenIndex{
		Positions:   positions,
		TotalTokens: len(tokens),
		Profile:     tok.Profile().Name(),
	}
}

func (ti TokenIndex) Contains(lexeme string) bool {
	return len(ti.Positions[lexeme]) > 0
}

// Terms returns the indexed lexemes in lexical order.
func (ti TokenIndex) Terms() []string {
	terms := make([]string, 0, len(ti.Positions))
	for term := range ti.Positions {
		terms = append(terms, term)
	}
	sort.Strings(terms)
	return terms
}

// Equal reports structural equality.
func (ti TokenIndex) Equal(other TokenIndex) bool {
	if ti.TotalTokens != other.TotalTokens || ti.Profile != other.Profile {
		return false
	}
	if len(ti.Positions) != len(other.Positions) {
		return false
	}
	for term, positions := range ti.Positions {
		if !slices.Equal(positions, other.Positions[term]) {
			return false
		}
	}
	return true
}

// Validate checks the position invariants. Indices loaded from storage are
// validated before they are served.
func (ti TokenIndex) Validate() error {
	count := 0
	for term, positions := range ti.Positions {
		if len(positions) == 0 {
			return fmt.Errorf("lexeme %q has no positions", term)
		}
		last := -1
		for _, pos := range positions {
			if pos <= last {
				return fmt.Errorf("lexeme %q: positions not strictly increasing at %d", term, pos)
			}
			last = pos
		}
		count += len(positions)
	}
	if count != ti.TotalTokens {
		return fmt.Errorf("index holds %d positions but total_tokens is %d", count, ti.TotalTokens)
	}
	return nil
}

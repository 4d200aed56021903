// Package parser turns untrusted free-text input into a conjunctive query of
// lexemes. Operator characters are escaped before tokenizing so user input
// can never add boolean structure, and the indexing tokenizer is reused so
// query lexemes line up with indexed ones.
package parser

import (
	"fmt"
	"sort"
	"strings"

	"github.com/Adithya-Monish-Kumar-K/docsearch/internal/indexer/tokenizer"
	apperrors "github.com/Adithya-Monish-Kumar-K/docsearch/pkg/errors"
)

// reserved are the operator characters of the boolean query grammar.
const reserved = `&|!():*<>'"\-`

var keywords = map[string]struct{}{
	"AND": {},
	"OR":  {},
	"NOT": {},
}

// MalformedQueryError reports input that is empty once escaped and
// tokenized. Callers at the API boundary treat it as "no results".
type MalformedQueryError struct {
	Raw string
}

func (e *MalformedQueryError) Error() string {
	return fmt.Sprintf("malformed query %q: no searchable terms", e.Raw)
}

func (e *MalformedQueryError) Unwrap() error {
	return apperrors.ErrInvalidInput
}

// Query is an AND of lexemes in first-occurrence order, without duplicates.
type Query struct {
	Raw     string
	Lexemes []string
}

// String renders the query in tsquery form, e.g. 'advising' & 'policies'.
func (q *Query) String() string {
	parts := make([]string, len(q.Lexemes))
	for i, lx := range q.Lexemes {
		parts[i] = "'" + strings.ReplaceAll(lx, "'", "''") + "'"
	}
	return strings.Join(parts, " & ")
}

// Key identifies the query for caching. AND is commutative, so lexeme order
// does not change the key.
func (q *Query) Key() string {
	sorted := append([]string(nil), q.Lexemes...)
	sort.Strings(sorted)
	return strings.Join(sorted, "&")
}

func (q *Query) Empty() bool {
	return q == nil || len(q.Lexemes) == 0
}

type Parser struct {
	tok *tokenizer.Tokenizer
}

// New returns a Parser that normalizes with tok, which must be the
// tokenizer used to build the index.
func New(tok *tokenizer.Tokenizer) *Parser {
	if tok == nil {
		tok = tokenizer.Default()
	}
	return &Parser{tok: tok}
}

// Parse sanitizes raw with the default tokenizer.
func Parse(raw string) (*Query, error) {
	return New(nil).Parse(raw)
}

func (p *Parser) Parse(raw string) (*Query, error) {
	tokens := p.tok.Tokenize(Escape(raw))
	q := &Query{
		Raw:     raw,
		Lexemes: make([]string, 0, len(tokens)),
	}
	seen := make(map[string]struct{}, len(tokens))
	for _, t := range tokens {
		if _, dup := seen[t.Term]; dup {
			continue
		}
		seen[t.Term] = struct{}{}
		q.Lexemes = append(q.Lexemes, t.Term)
	}
	if len(q.Lexemes) == 0 {
		return nil, &MalformedQueryError{Raw: raw}
	}
	return q, nil
}

// Escape backslash-prefixes every reserved character and lower-cases the
// keyword operators so they are read as ordinary words.
func Escape(raw string) string {
	var b strings.Builder
	b.Grow(len(raw) + len(raw)/4)
	for _, word := range strings.Fields(raw) {
		if b.Len() > 0 {
			b.WriteByte(' ')
		}
		if _, ok := keywords[word]; ok {
			word = strings.ToLower(word)
		}
		for _, r := range word {
			if strings.ContainsRune(reserved, r) {
				b.WriteByte('\\')
			}
			b.WriteRune(r)
		}
	}
	return b.String()
}

// Package tokenizer provides text tokenisation for the search engine.
// It segments input on Unicode word boundaries, lower-cases each word,
// discards punctuation, and maps words to lexemes through a language
// Profile. The same Tokenizer must serve both indexing and query parsing.
package tokenizer

import (
	"strings"
	"unicode"

	"github.com/rivo/uniseg"
)

// Token represents a single normalised term and its position in the
// original text.
type Token struct {
	Term     string
	Position int
}

type Tokenizer struct {
	profile Profile
}

// New returns a Tokenizer for the given profile. A nil profile means Simple.
func New(profile Profile) *Tokenizer {
	if profile == nil {
		profile = Simple()
	}
	return &Tokenizer{profile: profile}
}

// NewByName resolves a profile name and returns its Tokenizer.
func NewByName(name string) (*Tokenizer, error) {
	p, err := ProfileByName(name)
	if err != nil {
		return nil, err
	}
	return New(p), nil
}

var defaultTokenizer = New(Simple())

// Default returns the shared Tokenizer using the Simple profile.
func Default() *Tokenizer {
	return defaultTokenizer
}

// Tokenize breaks text into Tokens with the Simple profile.
func Tokenize(text string) []Token {
	return defaultTokenizer.Tokenize(text)
}

func (t *Tokenizer) Profile() Profile {
	return t.profile
}

// Tokenize returns lexemes in text order. Every word consumes one position,
// including words the profile drops, so positions stay comparable for
// proximity ranking.
func (t *Tokenizer) Tokenize(text string) []Token {
	tokens := make([]Token, 0, len(text)/6)
	pos := 0
	state := -1
	var segment string
	for len(text) > 0 {
		segment, text, state = uniseg.FirstWordInString(text, state)
		for _, word := range strings.FieldsFunc(segment, isSeparator) {
			lexeme, ok := t.lexeme(strings.ToLower(word))
			if ok {
				tokens = append(tokens, Token{
					Term:     lexeme,
					Position: pos,
				})
			}
			pos++
		}
	}
	return tokens
}

// maxNormalizeRounds bounds the fixed-point loop in lexeme. Stemmers shrink
// or keep their input, so real words settle within two or three rounds.
const maxNormalizeRounds = 8

// lexeme normalises word until the profile maps the result to itself. A
// stemmer is not idempotent ("stations" -> "station" -> "stat"), and an
// indexed lexeme must come back unchanged when it is typed as a query. A
// word whose chain reaches a dropped form is dropped.
func (t *Tokenizer) lexeme(word string) (string, bool) {
	lexeme, ok := t.profile.Normalize(word)
	for i := 0; i < maxNormalizeRounds; i++ {
		if !ok || lexeme == "" {
			return "", false
		}
		next, nextOK := t.profile.Normalize(lexeme)
		if nextOK && next == lexeme {
			return lexeme, true
		}
		lexeme, ok = next, nextOK
	}
	return lexeme, ok && lexeme != ""
}

// Terms returns only the lexemes of Tokenize, in order.
func (t *Tokenizer) Terms(text string) []string {
	tokens := t.Tokenize(text)
	terms := make([]string, len(tokens))
	for i, tok := range tokens {
		terms[i] = tok.Term
	}
	return terms
}

// isSeparator splits word-boundary segments further so that punctuation
// inside a segment (apostrophes, colons, periods) always ends a word.
func isSeparator(r rune) bool {
	return !unicode.IsLetter(r) && !unicode.IsNumber(r) && !unicode.IsMark(r)
}

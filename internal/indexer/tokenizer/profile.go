package tokenizer

import (
	"fmt"
	"sort"
	"strings"

	"github.com/kljensen/snowball/english"
)

// Profile maps a lower-cased word to its lexeme. ok is false when the word
// must not be indexed (a stop word).
type Profile interface {
	Name() string
	Normalize(word string) (lexeme string, ok bool)
}

const (
	ProfileSimple  = "simple"
	ProfileEnglish = "english"
	ProfileLight   = "light"
)

var profiles = map[string]func() Profile{
	ProfileSimple:  Simple,
	ProfileEnglish: English,
	ProfileLight:   Light,
}

// ProfileByName returns the named profile. The empty name selects Simple.
func ProfileByName(name string) (Profile, error) {
	if name == "" {
		name = ProfileSimple
	}
	ctor, ok := profiles[strings.ToLower(name)]
	if !ok {
		return nil, fmt.Errorf("unknown language profile %q (available: %s)",
			name, strings.Join(ProfileNames(), ", "))
	}
	return ctor(), nil
}

func ProfileNames() []string {
	names := make([]string, 0, len(profiles))
	for name := range profiles {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

type simpleProfile struct{}

// Simple is the identity profile: every word is its own lexeme.
func Simple() Profile { return simpleProfile{} }

func (simpleProfile) Name() string { return ProfileSimple }

func (simpleProfile) Normalize(word string) (string, bool) {
	return word, true
}

type englishProfile struct{}

// English drops stop words and applies the Snowball English stemmer.
func English() Profile { return englishProfile{} }

func (englishProfile) Name() string { return ProfileEnglish }

func (englishProfile) Normalize(word string) (string, bool) {
	if isStopWord(word) {
		return "", false
	}
	return english.Stem(word, false), true
}

type lightProfile struct{}

// Light drops stop words and single characters and strips common English
// suffixes. It is cheaper and more conservative than English.
func Light() Profile { return lightProfile{} }

func (lightProfile) Name() string { return ProfileLight }

func (lightProfile) Normalize(word string) (string, bool) {
	if len(word) < 2 || isStopWord(word) {
		return "", false
	}
	stemmed := stem(word)
	return stemmed, stemmed != ""
}

var stopWords = map[string]struct{}{
	"a": {}, "an": {}, "and": {}, "are": {}, "as": {}, "at": {},
	"be": {}, "by": {}, "for": {}, "from": {}, "has": {}, "he": {},
	"in": {}, "is": {}, "it": {}, "its": {}, "of": {}, "on": {},
	"or": {}, "that": {}, "the": {}, "to": {}, "was": {}, "were": {},
	"will": {}, "with": {}, "this": {}, "but": {}, "they": {},
	"have": {}, "had": {}, "what": {}, "when": {}, "where": {},
	"who": {}, "which": {}, "their": {}, "if": {}, "each": {},
	"do": {}, "not": {}, "no": {}, "so": {}, "can": {},
}

func isStopWord(word string) bool {
	_, ok := stopWords[word]
	return ok
}

var suffixRules = []struct {
	suffix      string
	replacement string
	minLen      int
}{
	{"ational", "ate", 2},
	{"tional", "tion", 2},
	{"encies", "ence", 2},
	{"ances", "ance", 2},
	{"ments", "ment", 2},
	{"izing", "ize", 2},
	{"ating", "ate", 2},
	{"iness", "y", 2},
	{"ously", "ous", 2},
	{"ively", "ive", 2},
	{"eness", "ene", 2},
	{"tion", "t", 3},
	{"sion", "s", 3},
	{"ying", "y", 2},
	{"ling", "l", 3},
	{"ies", "y", 2},
	{"ing", "", 3},
	{"ers", "er", 2},
	{"est", "", 3},
	{"ful", "", 3},
	{"ous", "", 3},
	{"ess", "", 3},
	{"ble", "", 3},
	{"ed", "", 3},
	{"er", "", 3},
	{"ly", "", 3},
	{"es", "", 3},
	{"ss", "ss", 2},
	{"s", "", 3},
}

// stem applies the first matching suffix rule whose result keeps at least
// minLen bytes.
func stem(word string) string {
	for _, rule := range suffixRules {
		if strings.HasSuffix(word, rule.suffix) {
			newWord := word[:len(word)-len(rule.suffix)] + rule.replacement
			if len(newWord) >= rule.minLen {
				return newWord
			}
		}
	}
	return word
}

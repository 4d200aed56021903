// Package sectioner splits exported markdown into a flat, ordered list of
// titled sections. Header depth is recorded but never used for nesting.
// Sections whose body carries in-document anchor links (tables of contents,
// "back to top" links) are dropped.
package sectioner

import (
	"regexp"
	"strings"
)

var (
	headerPattern     = regexp.MustCompile(`^(#{1,6})[ \t]+(\S.*)$`)
	anchorLinkPattern = regexp.MustCompile(`\[[^\]]*\]\(#[^)]*\)`)
	anchorIDPattern   = regexp.MustCompile(`[ \t]*\{#[^}]*\}`)
)

// Section is one (header, body) pair in source order. Depth is the number
// of level marks on the header line, 0 for a synthesized preamble.
type Section struct {
	Header string
	Body   string
	Depth  int
}

// Options controls the two behaviours left open by the exported format.
type Options struct {
	// StripLevelMarks removes the leading "#" run from stored headers.
	StripLevelMarks bool
	// Preamble emits the text before the first header as a section with an
	// empty header instead of discarding it.
	Preamble bool
}

type Parser struct {
	opts Options
}

func New(opts Options) *Parser {
	return &Parser{opts: opts}
}

// Parse splits raw using the default options: level marks kept, preamble
// discarded.
func Parse(raw string) []Section {
	return New(Options{}).Parse(raw)
}

// Parse never fails. Input without headers yields an empty list unless
// Options.Preamble is set.
func (p *Parser) Parse(raw string) []Section {
	lines := strings.Split(strings.ReplaceAll(raw, "\r\n", "\n"), "\n")
	sections := make([]Section, 0)

	var (
		current *Section
		body    []string
	)
	flush := func() {
		text := strings.TrimSpace(strings.Join(body, "\n"))
		body = body[:0]
		if current == nil {
			if p.opts.Preamble && text != "" {
				current = &Section{}
			} else {
				return
			}
		}
		current.Body = text
		if !HasAnchorLink(text) {
			sections = append(sections, *current)
		}
		current = nil
	}

	for _, line := range lines {
		m := headerPattern.FindStringSubmatch(strings.TrimRight(line, " \t"))
		if m == nil {
			body = append(body, line)
			continue
		}
		flush()
		current = &Section{
			Header: p.cleanHeader(m[0], m[1]),
			Depth:  len(m[1]),
		}
	}
	flush()
	return sections
}

// HasAnchorLink reports whether text contains a [label](#fragment) link.
func HasAnchorLink(text string) bool {
	return anchorLinkPattern.MatchString(text)
}

// StripAnchorIDs removes {#id} decorations from a header line.
func StripAnchorIDs(header string) string {
	return strings.TrimSpace(anchorIDPattern.ReplaceAllString(header, ""))
}

func (p *Parser) cleanHeader(line, marks string) string {
	header := StripAnchorIDs(line)
	if p.opts.StripLevelMarks {
		header = strings.TrimSpace(strings.TrimPrefix(header, marks))
	}
	return header
}

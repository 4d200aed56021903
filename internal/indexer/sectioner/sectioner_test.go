package sectioner

import (
	"fmt"
	"reflect"
	"strings"
	"testing"
)

func TestParseTwoSections(t *testing.T) {
	raw := "# Introduction\nOverview of advising.\n# Policies\nDetails on CS policies."
	got := Parse(raw)
	want := []Section{
		{Header: "# Introduction", Body: "Overview of advising.", Depth: 1},
		{Header: "# Policies", Body: "Details on CS policies.", Depth: 1},
	}
	if !reflect.DeepEqual(got, want) {
		t.Errorf("Parse() = %#v, want %#v", got, want)
	}
}

func TestParseDropsAnchorLinkSections(t *testing.T) {
	raw := "# Contents\nSee [table of contents](#toc)\n# Body\nReal text."
	got := Parse(raw)
	if len(got) != 1 {
		t.Fatalf("expected 1 section, got %d: %#v", len(got), got)
	}
	if got[0].Header != "# Body" {
		t.Errorf("unexpected surviving section %q", got[0].Header)
	}
}

func TestParseKeepsExternalLinks(t *testing.T) {
	raw := "# Links\nSee [the catalog](https://example.edu/catalog#fall)."
	got := Parse(raw)
	if len(got) != 1 {
		t.Fatalf("external links must not drop a section, got %#v", got)
	}
}

func TestParseHeaderDecorations(t *testing.T) {
	tests := []struct {
		name string
		opts Options
		raw  string
		want string
	}{
		{"anchor id stripped", Options{}, "## Degree Plans {#h.abc123}\nbody", "## Degree Plans"},
		{"anchor id mid header", Options{}, "# A {#x} B\nbody", "# A B"},
		{"level marks stripped", Options{StripLevelMarks: true}, "### Minors {#h.9}\nbody", "Minors"},
		{"trailing spaces", Options{}, "# Title   \nbody", "# Title"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := New(tt.opts).Parse(tt.raw)
			if len(got) != 1 {
				t.Fatalf("expected 1 section, got %d", len(got))
			}
			if got[0].Header != tt.want {
				t.Errorf("header = %q, want %q", got[0].Header, tt.want)
			}
		})
	}
}

func TestParseDepth(t *testing.T) {
	raw := "# One\na\n###### Six\nb\n####### Seven is not a header\n#NoSpace\n"
	got := Parse(raw)
	if len(got) != 2 {
		t.Fatalf("expected 2 sections, got %d: %#v", len(got), got)
	}
	if got[0].Depth != 1 || got[1].Depth != 6 {
		t.Errorf("unexpected depths %d, %d", got[0].Depth, got[1].Depth)
	}
	if !strings.Contains(got[1].Body, "####### Seven") || !strings.Contains(got[1].Body, "#NoSpace") {
		t.Errorf("non-header lines must stay in the body, got %q", got[1].Body)
	}
}

func TestParseNoHeaders(t *testing.T) {
	raw := "Just some text\nwith no headers."
	if got := Parse(raw); len(got) != 0 {
		t.Errorf("expected no sections, got %#v", got)
	}
	got := New(Options{Preamble: true}).Parse(raw)
	if len(got) != 1 || got[0].Header != "" || got[0].Body != "Just some text\nwith no headers." {
		t.Errorf("unexpected preamble output %#v", got)
	}
}

func TestParsePreambleBeforeFirstHeader(t *testing.T) {
	raw := "Intro words.\n\n# First\nbody"
	got := New(Options{Preamble: true}).Parse(raw)
	if len(got) != 2 {
		t.Fatalf("expected preamble plus one section, got %#v", got)
	}
	if got[0].Depth != 0 || got[0].Body != "Intro words." {
		t.Errorf("unexpected preamble %#v", got[0])
	}
	if got := Parse(raw); len(got) != 1 {
		t.Errorf("preamble must be discarded by default, got %#v", got)
	}
}

func TestParseEmptyBodyAndCRLF(t *testing.T) {
	raw := "# Empty\r\n\r\n# Next\r\nline one\r\nline two\r\n"
	got := Parse(raw)
	if len(got) != 2 {
		t.Fatalf("expected 2 sections, got %#v", got)
	}
	if got[0].Body != "" {
		t.Errorf("expected empty body, got %q", got[0].Body)
	}
	if got[1].Body != "line one\nline two" {
		t.Errorf("unexpected body %q", got[1].Body)
	}
}

func TestParseMalformedAnchorsDegradeGracefully(t *testing.T) {
	raw := "# A {#unterminated\n[broken](#\n# B\n[also broken(#x)"
	got := Parse(raw)
	if len(got) != 2 {
		t.Fatalf("expected 2 sections, got %#v", got)
	}
	if got[0].Header != "# A {#unterminated" {
		t.Errorf("unterminated anchor id must be left alone, got %q", got[0].Header)
	}
}

func TestParseRoundTripCount(t *testing.T) {
	for n := 0; n < 20; n++ {
		var b strings.Builder
		for i := 0; i < n; i++ {
			fmt.Fprintf(&b, "%s Heading %d\nparagraph %d\n\nmore text\n", strings.Repeat("#", i%6+1), i, i)
		}
		got := Parse(b.String())
		if len(got) != n {
			t.Fatalf("n=%d: got %d sections", n, len(got))
		}
		for _, s := range got {
			for _, line := range strings.Split(s.Body, "\n") {
				if headerPattern.MatchString(line) {
					t.Errorf("body contains header line %q", line)
				}
			}
		}
	}
}

func BenchmarkParse(b *testing.B) {
	var sb strings.Builder
	for i := 0; i < 200; i++ {
		fmt.Fprintf(&sb, "## Section %d {#h.%d}\nAdvising policies for section %d.\n\n", i, i, i)
	}
	raw := sb.String()
	b.ReportAllocs()
	b.SetBytes(int64(len(raw)))
	for i := 0; i < b.N; i++ {
		_ = Parse(raw)
	}
}

// Package validator checks source documents before they are sectioned. It
// enforces title and text length constraints and returns per-field error
// details.
package validator

import (
	"fmt"
	"sort"
	"strings"

	"github.com/Adithya-Monish-Kumar-K/docsearch/internal/ingestion"
)

const (
	maxTitleLength = 1024
	maxLinkLength  = 2048
	maxTextLength  = 8 << 20
)

// ValidationError holds per-field validation failure messages.
type ValidationError struct {
	Fields map[string]string
}

func (e *ValidationError) Error() string {
	fields := make([]string, 0, len(e.Fields))
	for field := range e.Fields {
		fields = append(fields, field)
	}
	sort.Strings(fields)
	parts := make([]string, len(fields))
	for i, field := range fields {
		parts[i] = fmt.Sprintf("%s:%s", field, e.Fields[field])
	}
	return strings.Join(parts, "; ")
}

// ValidateSource checks the title, link and raw text of a source document.
// Empty raw text is allowed: such a document simply yields no sections.
func ValidateSource(doc ingestion.SourceDocument) error {
	errs := make(map[string]string)

	title := strings.TrimSpace(doc.Title)
	if title == "" {
		errs["title"] = "title is required"
	} else if len(title) > maxTitleLength {
		errs["title"] = fmt.Sprintf("title must be at most %d characters", maxTitleLength)
	}
	if len(doc.Link) > maxLinkLength {
		errs["link"] = fmt.Sprintf("link must be at most %d characters", maxLinkLength)
	}
	if len(doc.RawText) > maxTextLength {
		errs["raw_text"] = fmt.Sprintf("raw text must be at most %d bytes", maxTextLength)
	}
	if len(errs) > 0 {
		return &ValidationError{Fields: errs}
	}
	return nil
}

// Package ingestion defines the source blob type and the Kafka event schemas
// used by the refresh pipeline.
package ingestion

import "time"

// SourceDocument is one raw document as retrieved from a source, before
// sectioning. ID is the source's own identifier and is informational only.
type SourceDocument struct {
	ID      string `json:"id"`
	Title   string `json:"title"`
	Link    string `json:"link"`
	RawText string `json:"raw_text"`
}

// RefreshRequest asks the indexer to rebuild the corpus from its source.
type RefreshRequest struct {
	RequestID   string    `json:"request_id"`
	RequestedAt time.Time `json:"requested_at"`
}

// IndexCompleteEvent is published after a rebuild has been persisted and
// installed. Searchers reload their snapshot when they receive it.
type IndexCompleteEvent struct {
	RequestID string    `json:"request_id,omitempty"`
	Documents int       `json:"documents"`
	Sections  int       `json:"sections"`
	Skipped   int       `json:"skipped"`
	Profile   string    `json:"profile"`
	Version   uint64    `json:"version"`
	BuiltAt   time.Time `json:"built_at"`
}

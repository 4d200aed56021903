// Package analytics records search traffic. Searchers Track events through a
// buffered Collector that publishes batches to Kafka; the indexer consumes
// the topic into an in-memory Aggregator served over HTTP.
package analytics

import "time"

type EventType string

const (
	EventSearch     EventType = "search"
	EventZeroResult EventType = "zero_result"
	EventMalformed  EventType = "malformed_query"
)

type SearchEvent struct {
	Type            EventType `json:"type"`
	Query           string    `json:"query"`
	Lexemes         []string  `json:"lexemes"`
	TotalHits       int       `json:"total_hits"`
	Returned        int       `json:"returned"`
	LatencyMs       int64     `json:"latency_ms"`
	CacheHit        bool      `json:"cache_hit"`
	SnapshotVersion uint64    `json:"snapshot_version"`
	Timestamp       time.Time `json:"timestamp"`
	RequestID       string    `json:"request_id,omitempty"`
}

// ClassifyEvent picks the event type for a finished search.
func ClassifyEvent(lexemes []string, totalHits int) EventType {
	switch {
	case len(lexemes) == 0:
		return EventMalformed
	case totalHits == 0:
		return EventZeroResult
	default:
		return EventSearch
	}
}

package analytics

import (
	"context"
	"log/slog"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/Adithya-Monish-Kumar-K/docsearch/pkg/kafka"
)

const (
	// maxSamples bounds the recent-event window used for latency
	// percentiles and windowed stats.
	maxSamples = 10000
	DefaultTop = 10
)

// StatsOptions selects what Stats reports. A zero Window covers everything
// since startup; Top <= 0 means DefaultTop.
type StatsOptions struct {
	Top    int
	Window time.Duration
}

type AggregatedStats struct {
	Window            string       `json:"window"`
	TotalSearches     int64        `json:"total_searches"`
	CacheHits         int64        `json:"cache_hits"`
	CacheMisses       int64        `json:"cache_misses"`
	ZeroResultCount   int64        `json:"zero_result_count"`
	MalformedCount    int64        `json:"malformed_count"`
	AvgLatencyMs      float64      `json:"avg_latency_ms"`
	P50LatencyMs      int64        `json:"p50_latency_ms"`
	P95LatencyMs      int64        `json:"p95_latency_ms"`
	P99LatencyMs      int64        `json:"p99_latency_ms"`
	TopQueries        []QueryCount `json:"top_queries"`
	ZeroResultQueries []QueryCount `json:"zero_result_queries"`
	QueriesPerMinute  float64      `json:"queries_per_minute"`
	LastSnapshot      uint64       `json:"last_snapshot_version"`
}

// QueryCount groups searches by their lexemes, so "Advising policies" and
// "policies & advising" count as one query. Example is the first raw text
// seen for the group.
type QueryCount struct {
	Query   string `json:"query"`
	Example string `json:"example"`
	Count   int64  `json:"count"`
}

type sample struct {
	at        time.Time
	key       string
	query     string
	latencyMs int64
	cacheHit  bool
	kind      EventType
}

// tally folds samples into counters.
type tally struct {
	searches    int64
	cacheHits   int64
	zeroResults int64
	malformed   int64
	queries     map[string]*QueryCount
	zeroQueries map[string]*QueryCount
}

func newTally() *tally {
	return &tally{
		queries:     make(map[string]*QueryCount),
		zeroQueries: make(map[string]*QueryCount),
	}
}

func (t *tally) add(s sample) {
	t.searches++
	if s.cacheHit {
		t.cacheHits++
	}
	switch s.kind {
	case EventMalformed:
		t.malformed++
		return
	case EventZeroResult:
		t.zeroResults++
		count(t.zeroQueries, s)
	}
	count(t.queries, s)
}

func count(m map[string]*QueryCount, s sample) {
	qc, ok := m[s.key]
	if !ok {
		qc = &QueryCount{Query: s.key, Example: s.query}
		m[s.key] = qc
	}
	qc.Count++
}

// Aggregator folds SearchEvents into lifetime totals and keeps a bounded
// ring of recent events for percentiles and windowed queries.
type Aggregator struct {
	mu           sync.Mutex
	lifetime     *tally
	samples      []sample
	next         int
	lastSnapshot uint64
	startTime    time.Time
	now          func() time.Time
	logger       *slog.Logger
}

func NewAggregator() *Aggregator {
	return &Aggregator{
		lifetime:  newTally(),
		samples:   make([]sample, 0, 1024),
		startTime: time.Now(),
		now:       time.Now,
		logger:    slog.Default().With("component", "analytics-aggregator"),
	}
}

// HandleEvent adapts the aggregator to a Kafka consumer. Undecodable
// messages are logged and skipped.
func (a *Aggregator) HandleEvent() kafka.MessageHandler {
	return func(ctx context.Context, key []byte, value []byte) error {
		event, err := kafka.DecodeJSON[SearchEvent](value)
		if err != nil {
			a.logger.Error("failed to decode analytics event", "error", err)
			return nil
		}
		a.Record(event)
		return nil
	}
}

// Record adds one event. Events without a timestamp are stamped on arrival.
func (a *Aggregator) Record(event SearchEvent) {
	a.mu.Lock()
	defer a.mu.Unlock()

	s := sample{
		at:        event.Timestamp,
		key:       queryKey(event.Lexemes),
		query:     event.Query,
		latencyMs: event.LatencyMs,
		cacheHit:  event.CacheHit,
		kind:      event.Type,
	}
	if s.at.IsZero() {
		s.at = a.now()
	}
	a.lifetime.add(s)
	if event.SnapshotVersion > a.lastSnapshot {
		a.lastSnapshot = event.SnapshotVersion
	}
	if len(a.samples) < maxSamples {
		a.samples = append(a.samples, s)
	} else {
		a.samples[a.next] = s
		a.next = (a.next + 1) % maxSamples
	}
}

func (a *Aggregator) Stats(opts StatsOptions) AggregatedStats {
	a.mu.Lock()
	defer a.mu.Unlock()

	top := opts.Top
	if top <= 0 {
		top = DefaultTop
	}
	t := a.lifetime
	since := a.startTime
	window := "all"
	latencies := make([]int64, 0, len(a.samples))
	if opts.Window > 0 {
		window = opts.Window.String()
		cutoff := a.now().Add(-opts.Window)
		if cutoff.After(since) {
			since = cutoff
		}
		t = newTally()
		for _, s := range a.samples {
			if s.at.Before(cutoff) {
				continue
			}
			t.add(s)
			latencies = append(latencies, s.latencyMs)
		}
	} else {
		for _, s := range a.samples {
			latencies = append(latencies, s.latencyMs)
		}
	}

	stats := AggregatedStats{
		Window:            window,
		TotalSearches:     t.searches,
		CacheHits:         t.cacheHits,
		CacheMisses:       t.searches - t.cacheHits,
		ZeroResultCount:   t.zeroResults,
		MalformedCount:    t.malformed,
		TopQueries:        topN(t.queries, top),
		ZeroResultQueries: topN(t.zeroQueries, top),
		LastSnapshot:      a.lastSnapshot,
	}
	if len(latencies) > 0 {
		sort.Slice(latencies, func(i, j int) bool { return latencies[i] < latencies[j] })
		var sum int64
		for _, l := range latencies {
			sum += l
		}
		stats.AvgLatencyMs = float64(sum) / float64(len(latencies))
		stats.P50LatencyMs = percentile(latencies, 50)
		stats.P95LatencyMs = percentile(latencies, 95)
		stats.P99LatencyMs = percentile(latencies, 99)
	}
	if elapsed := a.now().Sub(since).Minutes(); elapsed > 0 {
		stats.QueriesPerMinute = float64(stats.TotalSearches) / elapsed
	}
	return stats
}

// queryKey is the sorted, space-joined lexeme list.
func queryKey(lexemes []string) string {
	sorted := append([]string(nil), lexemes...)
	sort.Strings(sorted)
	return strings.Join(sorted, " ")
}

func percentile(sorted []int64, pct int) int64 {
	if len(sorted) == 0 {
		return 0
	}
	idx := (pct * len(sorted)) / 100
	if idx >= len(sorted) {
		idx = len(sorted) - 1
	}
	return sorted[idx]
}

// topN orders by count, then query, so equal counts list stably.
func topN(counts map[string]*QueryCount, n int) []QueryCount {
	result := make([]QueryCount, 0, len(counts))
	for _, qc := range counts {
		result = append(result, *qc)
	}
	sort.Slice(result, func(i, j int) bool {
		if result[i].Count != result[j].Count {
			return result[i].Count > result[j].Count
		}
		return result[i].Query < result[j].Query
	})
	if len(result) > n {
		result = result[:n]
	}
	return result
}

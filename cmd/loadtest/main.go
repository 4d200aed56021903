// Command loadtest drives the search API with a fixed query mix and reports
// throughput, latency percentiles and the share of zero-result answers.
package main

import (
	"bufio"
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"io"
	"math"
	"net/http"
	"net/url"
	"os"
	"sort"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"golang.org/x/time/rate"
)

var defaultQueries = []string{
	"advising",
	"advising policies",
	"degree requirements",
	"minor requirements",
	"transfer credit",
	"course registration",
	"academic probation",
	"graduation checklist",
	"CS policies",
	"independent study",
	"honors thesis",
	"double major",
}

type Config struct {
	BaseURL     string
	Concurrency int
	Duration    time.Duration
	Limit       int
	RPS         float64
	Queries     []string
}

type Stats struct {
	total       atomic.Int64
	success     atomic.Int64
	failed      atomic.Int64
	zeroResults atomic.Int64

	mu          sync.Mutex
	latencies   []time.Duration
	statusCodes map[int]int64
}

func NewStats() *Stats {
	return &Stats{
		latencies:   make([]time.Duration, 0, 100000),
		statusCodes: make(map[int]int64),
	}
}

// Record counts one request. statusCode is 0 for transport errors.
func (s *Stats) Record(d time.Duration, statusCode int, totalHits int) {
	s.total.Add(1)
	if statusCode == 0 {
		s.failed.Add(1)
		return
	}
	if statusCode >= 200 && statusCode < 300 {
		s.success.Add(1)
		if totalHits == 0 {
			s.zeroResults.Add(1)
		}
	} else {
		s.failed.Add(1)
	}

	s.mu.Lock()
	s.latencies = append(s.latencies, d)
	s.statusCodes[statusCode]++
	s.mu.Unlock()
}

func main() {
	baseURL := flag.String("url", "http://localhost:8080", "base URL of the search service")
	concurrency := flag.Int("concurrency", 10, "number of concurrent workers")
	duration := flag.Duration("duration", 30*time.Second, "test duration")
	limit := flag.Int("limit", 10, "result limit per query")
	rps := flag.Float64("rps", 0, "overall request rate cap, 0 for unlimited")
	queryFile := flag.String("queries", "", "file with one query per line")
	flag.Parse()

	queries := defaultQueries
	if *queryFile != "" {
		f, err := os.Open(*queryFile)
		if err != nil {
			fmt.Fprintf(os.Stderr, "opening query file: %v\n", err)
			os.Exit(1)
		}
		queries, err = loadQueries(f)
		f.Close()
		if err != nil || len(queries) == 0 {
			fmt.Fprintf(os.Stderr, "no queries loaded from %s: %v\n", *queryFile, err)
			os.Exit(1)
		}
	}

	cfg := Config{
		BaseURL:     strings.TrimRight(*baseURL, "/"),
		Concurrency: *concurrency,
		Duration:    *duration,
		Limit:       *limit,
		RPS:         *rps,
		Queries:     queries,
	}

	fmt.Println("=== docsearch load test ===")
	fmt.Printf("Target:      %s\n", cfg.BaseURL)
	fmt.Printf("Concurrency: %d\n", cfg.Concurrency)
	fmt.Printf("Duration:    %s\n", cfg.Duration)
	fmt.Printf("Queries:     %d unique\n", len(cfg.Queries))
	if cfg.RPS > 0 {
		fmt.Printf("Rate cap:    %.1f req/s\n", cfg.RPS)
	}
	fmt.Println()

	stats := run(cfg)
	if !report(os.Stdout, stats, cfg.Duration) {
		os.Exit(1)
	}
}

// loadQueries reads non-empty, non-comment lines.
func loadQueries(r io.Reader) ([]string, error) {
	var queries []string
	sc := bufio.NewScanner(r)
	for sc.Scan() {
		line := strings.TrimSpace(sc.Text())
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}
		queries = append(queries, line)
	}
	return queries, sc.Err()
}

func run(cfg Config) *Stats {
	stats := NewStats()
	client := &http.Client{
		Timeout: 10 * time.Second,
		Transport: &http.Transport{
			MaxIdleConns:        cfg.Concurrency * 2,
			MaxIdleConnsPerHost: cfg.Concurrency * 2,
			IdleConnTimeout:     90 * time.Second,
		},
	}
	var limiter *rate.Limiter
	if cfg.RPS > 0 {
		limiter = rate.NewLimiter(rate.Limit(cfg.RPS), 1)
	}

	ctx, cancel := context.WithTimeout(context.Background(), cfg.Duration)
	defer cancel()

	var wg sync.WaitGroup
	for w := 0; w < cfg.Concurrency; w++ {
		wg.Add(1)
		go func(worker int) {
			defer wg.Done()
			for i := worker; ctx.Err() == nil; i++ {
				if limiter != nil && limiter.Wait(ctx) != nil {
					return
				}
				query := cfg.Queries[i%len(cfg.Queries)]
				target := fmt.Sprintf("%s/api/v1/search?q=%s&limit=%d",
					cfg.BaseURL, url.QueryEscape(query), cfg.Limit)
				start := time.Now()
				status, hits, err := search(ctx, client, target)
				if err != nil && ctx.Err() != nil {
					return
				}
				stats.Record(time.Since(start), status, hits)
			}
		}(w)
	}
	wg.Wait()
	return stats
}

func search(ctx context.Context, client *http.Client, target string) (status, totalHits int, err error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, target, nil)
	if err != nil {
		return 0, 0, err
	}
	resp, err := client.Do(req)
	if err != nil {
		return 0, 0, err
	}
	defer resp.Body.Close()
	var body struct {
		TotalHits int `json:"total_hits"`
	}
	if resp.StatusCode == http.StatusOK {
		if err := json.NewDecoder(resp.Body).Decode(&body); err != nil {
			return resp.StatusCode, 0, nil
		}
	}
	io.Copy(io.Discard, resp.Body)
	return resp.StatusCode, body.TotalHits, nil
}

// report prints the summary and returns false when nothing completed.
func report(w io.Writer, stats *Stats, duration time.Duration) bool {
	total := stats.total.Load()
	success := stats.success.Load()

	fmt.Fprintln(w, "=== Results ===")
	fmt.Fprintf(w, "Total requests:  %d\n", total)
	fmt.Fprintf(w, "Successful:      %d\n", success)
	fmt.Fprintf(w, "Failed:          %d\n", stats.failed.Load())
	if total == 0 {
		fmt.Fprintln(w, "WARNING: no requests completed. Is the search service running?")
		return false
	}
	fmt.Fprintf(w, "Requests/sec:    %.2f\n", float64(total)/duration.Seconds())
	if success > 0 {
		fmt.Fprintf(w, "Zero results:    %.1f%%\n", float64(stats.zeroResults.Load())/float64(success)*100)
	}

	stats.mu.Lock()
	latencies := append([]time.Duration(nil), stats.latencies...)
	codes := make([]int, 0, len(stats.statusCodes))
	for code := range stats.statusCodes {
		codes = append(codes, code)
	}
	counts := make(map[int]int64, len(stats.statusCodes))
	for code, n := range stats.statusCodes {
		counts[code] = n
	}
	stats.mu.Unlock()

	if len(latencies) > 0 {
		sort.Slice(latencies, func(i, j int) bool { return latencies[i] < latencies[j] })
		fmt.Fprintln(w, "\n=== Latency ===")
		fmt.Fprintf(w, "Min:  %s\n", latencies[0])
		fmt.Fprintf(w, "P50:  %s\n", percentile(latencies, 50))
		fmt.Fprintf(w, "P90:  %s\n", percentile(latencies, 90))
		fmt.Fprintf(w, "P99:  %s\n", percentile(latencies, 99))
		fmt.Fprintf(w, "Max:  %s\n", latencies[len(latencies)-1])
	}

	sort.Ints(codes)
	fmt.Fprintln(w, "\n=== Status codes ===")
	for _, code := range codes {
		fmt.Fprintf(w, "  %d: %d\n", code, counts[code])
	}
	return true
}

// percentile uses the nearest-rank method on sorted input.
func percentile(sorted []time.Duration, p float64) time.Duration {
	if len(sorted) == 0 {
		return 0
	}
	idx := int(math.Ceil(p/100*float64(len(sorted)))) - 1
	if idx < 0 {
		idx = 0
	}
	if idx >= len(sorted) {
		idx = len(sorted) - 1
	}
	return sorted[idx]
}

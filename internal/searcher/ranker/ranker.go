// Package ranker implements cover-density ranking over section token
// indices. A cover is a maximal run of query-lexeme occurrences whose
// neighbouring positions are at most MaxGap apart.
package ranker

import (
	"math"
	"sort"

	"github.com/Adithya-Monish-Kumar-K/docsearch/internal/indexer/index"
)

const (
	DefaultMaxGap = 1
	DefaultK      = 0.5
)

type RankedResult struct {
	SectionID int64   `json:"section_id"`
	Score     float64 `json:"score"`
}

// Params configures ranking. Zero values select the defaults; Limit <= 0
// means no limit.
type Params struct {
	MaxGap int
	K      float64
	Limit  int
}

func (p Params) withDefaults() Params {
	if p.MaxGap < 1 {
		p.MaxGap = DefaultMaxGap
	}
	if p.K <= 0 {
		p.K = DefaultK
	}
	return p
}

// scoredSection carries the cover count used to order equal scores.
type scoredSection struct {
	RankedResult
	covers int
}

// Rank returns the entries containing every lexeme, best first. Equal
// scores go to the section whose matches form fewer covers, then to the
// lower section id.
func Rank(lexemes []string, entries []index.Entry, params Params) []RankedResult {
	result := make([]RankedResult, 0)
	if len(lexemes) == 0 {
		return result
	}
	params = params.withDefaults()
	scored := make([]scoredSection, 0)
	for _, entry := range entries {
		occ := entry.Occurrences(lexemes)
		if occ == nil {
			continue
		}
		raw, covers := coverDensity(occ, params.MaxGap)
		scored = append(scored, scoredSection{
			RankedResult: RankedResult{
				SectionID: entry.SectionID,
				Score:     math.Round(normalize(raw, entry.Index.TotalTokens, params.K)*10000) / 10000,
			},
			covers: covers,
		})
	}
	sort.Slice(scored, func(i, j int) bool {
		a, b := scored[i], scored[j]
		if a.Score != b.Score {
			return a.Score > b.Score
		}
		if a.covers != b.covers {
			return a.covers < b.covers
		}
		return a.SectionID < b.SectionID
	})
	for _, s := range scored {
		result = append(result, s.RankedResult)
	}
	if params.Limit > 0 && len(result) > params.Limit {
		result = result[:params.Limit]
	}
	return result
}

// coverDensity sums cover weights and reports how many covers there were.
// A cover with d distinct lexemes spanning L tokens weighs d²/L.
func coverDensity(occ []index.Occurrence, maxGap int) (float64, int) {
	var total float64
	covers := 0
	start := 0
	for i := 1; i <= len(occ); i++ {
		if i < len(occ) && occ[i].Position-occ[i-1].Position <= maxGap {
			continue
		}
		total += coverWeight(occ[start:i])
		covers++
		start = i
	}
	return total, covers
}

func coverWeight(cover []index.Occurrence) float64 {
	seen := make(map[int]struct{}, len(cover))
	for _, o := range cover {
		seen[o.Lexeme] = struct{}{}
	}
	d := float64(len(seen))
	span := float64(cover[len(cover)-1].Position - cover[0].Position + 1)
	return d * d / span
}

// normalize discounts long sections: raw / (raw + k·ln(1+totalTokens)).
func normalize(raw float64, totalTokens int, k float64) float64 {
	if raw <= 0 {
		return 0
	}
	return raw / (raw + k*math.Log1p(float64(totalTokens)))
}

package analytics

import (
	"encoding/json"
	"log/slog"
	"net/http"
	"net/url"
	"strconv"
	"time"

	apperrors "github.com/Adithya-Monish-Kumar-K/docsearch/pkg/errors"
)

const maxTop = 100

// Handler serves the aggregator on the indexer's admin API.
type Handler struct {
	aggregator *Aggregator
	logger     *slog.Logger
}

func NewHandler(aggregator *Aggregator) *Handler {
	return &Handler{
		aggregator: aggregator,
		logger:     slog.Default().With("component", "analytics-handler"),
	}
}

// Stats serves GET /api/v1/analytics/stats?top=&window=. top limits the
// query lists (1-100), window is a duration such as 15m restricting the
// report to recent searches.
func (h *Handler) Stats(w http.ResponseWriter, r *http.Request) {
	opts, err := parseStatsOptions(r.URL.Query())
	if err != nil {
		h.writeJSON(w, apperrors.HTTPStatusCode(err), map[string]string{"error": err.Error()})
		return
	}
	h.writeJSON(w, http.StatusOK, h.aggregator.Stats(opts))
}

func parseStatsOptions(v url.Values) (StatsOptions, error) {
	var opts StatsOptions
	if s := v.Get("top"); s != "" {
		n, err := strconv.Atoi(s)
		if err != nil || n < 1 || n > maxTop {
			return opts, apperrors.Newf(apperrors.ErrInvalidInput, http.StatusBadRequest,
				"top must be an integer between 1 and %d", maxTop)
		}
		opts.Top = n
	}
	if s := v.Get("window"); s != "" {
		d, err := time.ParseDuration(s)
		if err != nil || d <= 0 {
			return opts, apperrors.New(apperrors.ErrInvalidInput, http.StatusBadRequest,
				"window must be a positive duration such as 15m")
		}
		opts.Window = d
	}
	return opts, nil
}

func (h *Handler) writeJSON(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(data); err != nil {
		h.logger.Error("failed to write analytics response", "error", err)
	}
}

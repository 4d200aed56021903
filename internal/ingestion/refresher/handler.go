package refresher

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/http"
	"strconv"

	apperrors "github.com/Adithya-Monish-Kumar-K/docsearch/pkg/errors"
	"github.com/Adithya-Monish-Kumar-K/docsearch/pkg/logger"
)

// Handler exposes a synchronous refresh on the indexer's admin API.
type Handler struct {
	refresher *Refresher
	logger    *slog.Logger
}

func NewHandler(r *Refresher) *Handler {
	return &Handler{
		refresher: r,
		logger:    slog.Default().With("component", "refresh-handler"),
	}
}

// Refresh serves POST /api/v1/refresh. It answers 409 while another refresh
// runs. The rebuild outlives a disconnecting client.
func (h *Handler) Refresh(w http.ResponseWriter, r *http.Request) {
	ctx := context.WithoutCancel(r.Context())
	event, err := h.refresher.TryRefresh(ctx)
	if err != nil {
		logger.FromContext(ctx).Warn("refresh request failed", "error", err)
		h.writeJSON(w, apperrors.HTTPStatusCode(err), map[string]string{"error": err.Error()})
		return
	}
	h.writeJSON(w, http.StatusOK, event)
}

// DeleteDocument serves DELETE /api/v1/documents/{id}.
func (h *Handler) DeleteDocument(w http.ResponseWriter, r *http.Request) {
	id, err := strconv.ParseInt(r.PathValue("id"), 10, 64)
	if err != nil || id < 1 {
		h.writeJSON(w, http.StatusBadRequest, map[string]string{"error": "document id must be a positive integer"})
		return
	}
	ctx := context.WithoutCancel(r.Context())
	event, err := h.refresher.DeleteDocument(ctx, id)
	if err != nil {
		logger.FromContext(ctx).Warn("document delete failed", "document_id", id, "error", err)
		h.writeJSON(w, apperrors.HTTPStatusCode(err), map[string]string{"error": err.Error()})
		return
	}
	h.writeJSON(w, http.StatusOK, event)
}

func (h *Handler) writeJSON(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(data); err != nil {
		h.logger.Error("failed to write response", "error", err)
	}
}

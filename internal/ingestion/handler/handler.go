package handler

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"

	"github.com/ishanashah/Web-Crawler-and-Search-Engine/internal/ingestion"
	"github.com/ishanashah/Web-Crawler-and-Search-Engine/internal/ingestion/validator"
	apperrors "github.com/ishanashah/Web-Crawler-and-Search-Engine/pkg/errors"
	"github.com/ishanashah/Web-Crawler-and-Search-Engine/pkg/logger"
)

const maxBodyBytes = 8 << 20

// Submitter accepts a single page event for indexing.
type Submitter interface {
	Submit(ctx context.Context, ev *ingestion.PageEvent) (*ingestion.SubmitResponse, error)
}

type Handler struct {
	submitter Submitter
	logger    *slog.Logger
}

func New(s Submitter) *Handler {
	return &Handler{
		submitter: s,
		logger:    slog.Default().With("component", "ingestion-handler"),
	}
}

func (h *Handler) Register(mux *http.ServeMux) {
	mux.HandleFunc("POST /api/v1/pages", h.Submit)
}

func (h *Handler) Submit(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	log := logger.FromContext(ctx)
	var ev ingestion.PageEvent
	if err := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxBodyBytes)).Decode(&ev); err != nil {
		h.writeError(w, http.StatusBadRequest, "invalid JSON body")
		return
	}

	resp, err := h.submitter.Submit(ctx, &ev)
	if err != nil {
		var validationErr *validator.ValidationError
		if errors.As(err, &validationErr) {
			h.writeJSON(w, http.StatusBadRequest, map[string]any{
				"error":  "validation failed",
				"fields": validationErr.Fields,
			})
			return
		}
		statusCode := apperrors.HTTPStatusCode(err)
		log.Error("page submission failed",
			"url", ev.URL,
			"error", err,
			"status_code", statusCode,
		)
		h.writeError(w, statusCode, "page submission failed")
		return
	}
	log.Info("page submitted", "url", resp.URL, "words", resp.Words)
	h.writeJSON(w, http.StatusAccepted, resp)
}

func (h *Handler) writeJSON(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(data); err != nil {
		h.logger.Error("failed to write response", "error", err)
	}
}

func (h *Handler) writeError(w http.ResponseWriter, status int, message string) {
	h.writeJSON(w, status, map[string]string{"error": message})
}

package api

import (
	"errors"
	"io"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"
	"github.com/goccy/go-json"
	"github.com/m-mizutani/goerr/v2"

	"feedcore/internal/feed"
	"feedcore/internal/logging"
	"feedcore/internal/model"
)

const maxBodyBytes = 1 << 20

const (
	defaultPage     = 1
	defaultPageSize = 20
)

// RecordInteraction handles POST /api/v1/interactions.
func (h *Handler) RecordInteraction(w http.ResponseWriter, r *http.Request) {
	var in feed.Interaction
	if err := decodeBody(r, &in); err != nil {
		writeError(w, err)
		return
	}
	ack, err := h.svc.RecordInteraction(r.Context(), in)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, ack)
}

// SubmitFeedback handles POST /api/v1/feedback.
func (h *Handler) SubmitFeedback(w http.ResponseWriter, r *http.Request) {
	var fb feed.Feedback
	if err := decodeBody(r, &fb); err != nil {
		writeError(w, err)
		return
	}
	ack, err := h.svc.SubmitFeedback(r.Context(), fb)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, ack)
}

// RankFeed handles GET /api/v1/feed/{userID}?page=&page_size=.
func (h *Handler) RankFeed(w http.ResponseWriter, r *http.Request) {
	userID := chi.URLParam(r, "userID")
	page, err := intQuery(r, "page", defaultPage)
	if err != nil {
		writeError(w, err)
		return
	}
	size, err := intQuery(r, "page_size", defaultPageSize)
	if err != nil {
		writeError(w, err)
		return
	}
	out, err := h.svc.RankFeed(r.Context(), userID, page, size)
	if err != nil {
		writeError(w, err)
		return
	}
	if out.Items == nil {
		out.Items = []model.FeedItem{}
	}
	writeJSON(w, http.StatusOK, out)
}

// PutContent handles PUT /api/v1/content/{id}.
func (h *Handler) PutContent(w http.ResponseWriter, r *http.Request) {
	var c model.Content
	if err := decodeBody(r, &c); err != nil {
		writeError(w, err)
		return
	}
	c.ID = chi.URLParam(r, "id")
	if err := h.svc.PutContent(r.Context(), c); err != nil {
		writeError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// DeleteContent handles DELETE /api/v1/content/{id}.
func (h *Handler) DeleteContent(w http.ResponseWriter, r *http.Request) {
	purged, err := h.svc.DeleteContent(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]int64{"purged_interactions": purged})
}

// RebuildContentFingerprint handles POST /api/v1/content/{id}/fingerprint.
func (h *Handler) RebuildContentFingerprint(w http.ResponseWriter, r *http.Request) {
	if err := h.svc.RebuildContentFingerprint(r.Context(), chi.URLParam(r, "id")); err != nil {
		writeError(w, err)
		return
	}
	w.WriteHeader(http.StatusAccepted)
}

func decodeBody(r *http.Request, v any) error {
	dec := json.NewDecoder(io.LimitReader(r.Body, maxBodyBytes))
	dec.DisallowUnknownFields()
	if err := dec.Decode(v); err != nil {
		return goerr.Wrap(model.ErrValidation, "malformed request body", goerr.V("cause", err.Error()))
	}
	return nil
}

func intQuery(r *http.Request, key string, def int) (int, error) {
	raw := r.URL.Query().Get(key)
	if raw == "" {
		return def, nil
	}
	n, err := strconv.Atoi(raw)
	if err != nil {
		return 0, goerr.Wrap(model.ErrValidation, "query parameter is not an integer", goerr.V("key", key), goerr.V("value", raw))
	}
	return n, nil
}

type errorBody struct {
	Error string `json:"error"`
}

// statusOf maps the error taxonomy onto HTTP status codes.
func statusOf(err error) int {
	switch {
	case errors.Is(err, model.ErrValidation):
		return http.StatusBadRequest
	case errors.Is(err, model.ErrNotFound):
		return http.StatusNotFound
	default:
		return http.StatusInternalServerError
	}
}

func writeError(w http.ResponseWriter, err error) {
	status := statusOf(err)
	msg := err.Error()
	if status == http.StatusInternalServerError {
		logging.Error("http_internal_error", map[string]any{"error": err})
		msg = "internal error"
	}
	writeJSON(w, status, errorBody{Error: msg})
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		logging.Warn("http_encode_error", map[string]any{"error": err})
	}
}

// Package api exposes the feed service over HTTP.
package api

import (
	"context"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"

	"feedcore/internal/feed"
	"feedcore/internal/logging"
	"feedcore/internal/metrics"
	"feedcore/internal/model"
)

// FeedService is the subset of feed.Service the API serves.
type FeedService interface {
	RecordInteraction(ctx context.Context, in feed.Interaction) (model.Ack, error)
	RebuildContentFingerprint(ctx context.Context, contentID string) error
	RankFeed(ctx context.Context, userID string, page, pageSize int) (model.FeedPage, error)
	SubmitFeedback(ctx context.Context, fb feed.Feedback) (model.Ack, error)
	PutContent(ctx context.Context, c model.Content) error
	DeleteContent(ctx context.Context, contentID string) (int64, error)
}

// Handler serves the feed endpoints.
type Handler struct {
	svc FeedService
}

// NewRouter builds the chi router with every route mounted.
func NewRouter(svc FeedService) http.Handler {
	h := &Handler{svc: svc}
	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(middleware.Recoverer)
	r.Use(requestLog)

	r.Get("/healthz", func(w http.ResponseWriter, _ *http.Request) {
		writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
	})
	r.Handle("/metrics", metrics.Handler())

	r.Route("/api/v1", func(r chi.Router) {
		r.Post("/interactions", h.RecordInteraction)
		r.Post("/feedback", h.SubmitFeedback)
		r.Get("/feed/{userID}", h.RankFeed)
		r.Route("/content/{id}", func(r chi.Router) {
			r.Put("/", h.PutContent)
			r.Delete("/", h.DeleteContent)
			r.Post("/fingerprint", h.RebuildContentFingerprint)
		})
	})
	return r
}

func requestLog(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
		next.ServeHTTP(ww, r)
		logging.Debug("http_request", map[string]any{
			"method":     r.Method,
			"path":       r.URL.Path,
			"status":     ww.Status(),
			"took_ms":    time.Since(start).Milliseconds(),
			"request_id": middleware.GetReqID(r.Context()),
		})
	})
}

// Package web serves the daemon's HTTP API and calendar feeds.
package web

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus/promhttp"

	"seriate/caldate"
	"seriate/export"
	"seriate/internal/metrics"
	"seriate/publish"
	"seriate/series"
	"seriate/storage"
)

const (
	headerContentType = "Content-Type"

	mimeJSON     = "application/json; charset=utf-8"
	mimeCalendar = export.MimeCalendar
	mimeXCal     = export.MimeXCal
)

// Server wires the store, the reconciler and the applier behind the HTTP
// surface. Every mutation runs the matching reconciliation before the
// response, and republishes the series' feeds afterwards.
type Server struct {
	store      storage.Store
	reconciler *series.Reconciler
	applier    *storage.Applier
	publisher  publish.Publisher
	logger     *slog.Logger

	// now is the reconciliation clock, swappable in tests.
	now func() caldate.Date
}

// NewServer creates the HTTP server. publisher may be nil, which disables
// feed publishing; feeds are still served directly.
func NewServer(store storage.Store, reconciler *series.Reconciler, publisher publish.Publisher, logger *slog.Logger) *Server {
	if logger == nil {
		logger = slog.Default()
	}
	return &Server{
		store:      store,
		reconciler: reconciler,
		applier:    storage.NewApplier(store, logger),
		publisher:  publisher,
		logger:     logger,
		now:        func() caldate.Date { return caldate.FromTime(time.Now()) },
	}
}

// Handler builds the route table.
func (s *Server) Handler() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("GET /health", s.handleHealth)

	mux.HandleFunc("GET /api/series", s.handleListSeries)
	mux.HandleFunc("POST /api/series", s.handleCreateSeries)
	mux.HandleFunc("GET /api/series/{id}", s.handleGetSeries)
	mux.HandleFunc("PATCH /api/series/{id}", s.handleUpdateSeries)
	mux.HandleFunc("DELETE /api/series/{id}", s.handleDeleteSeries)
	mux.HandleFunc("GET /api/series/{id}/instances", s.handleListInstances)
	mux.HandleFunc("POST /api/series/{id}/extend", s.handleExtend)
	mux.HandleFunc("POST /api/series/{id}/regenerate", s.handleRegenerate)

	mux.HandleFunc("GET /api/instances/{id}", s.handleGetInstance)
	mux.HandleFunc("PATCH /api/instances/{id}", s.handleUpdateInstance)
	mux.HandleFunc("DELETE /api/instances/{id}", s.handleDeleteInstance)
	mux.HandleFunc("POST /api/instances/{id}/registrations", s.handleAdjustRegistrations)

	mux.HandleFunc("GET /feeds/{file}", s.handleFeed)
	mux.Handle("GET /metrics", promhttp.Handler())

	return s.instrument(mux)
}

// instrument logs every request and feeds the HTTP counters, labeled by
// the matched route pattern to keep cardinality bounded.
func (s *Server) instrument(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		rec := &statusRecorder{ResponseWriter: w, status: http.StatusOK}
		next.ServeHTTP(rec, r)

		route := r.Pattern
		if route == "" {
			route = "unmatched"
		}
		metrics.RecordHTTPRequest(r.Method, route, rec.status)
		s.logger.Info("request served",
			"method", r.Method,
			"path", r.URL.Path,
			"status", rec.status)
	})
}

type statusRecorder struct {
	http.ResponseWriter
	status int
}

func (r *statusRecorder) WriteHeader(status int) {
	r.status = status
	r.ResponseWriter.WriteHeader(status)
}

func (s *Server) handleHealth(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set(headerContentType, mimeJSON)
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

type errorResponse struct {
	Error string `json:"error"`
}

// errBadRequest marks malformed request bodies so writeError can answer
// 400 instead of 422.
const errBadRequest storage.ErrorType = "bad_request"

// writeError maps storage error types onto HTTP statuses; anything else
// is a 500.
func (s *Server) writeError(w http.ResponseWriter, r *http.Request, err error) {
	status := http.StatusInternalServerError
	var serr *storage.Error
	if errors.As(err, &serr) {
		switch serr.Type {
		case errBadRequest:
			status = http.StatusBadRequest
		case storage.ErrNotFound:
			status = http.StatusNotFound
		case storage.ErrAlreadyExists:
			status = http.StatusConflict
		case storage.ErrInvalidInput:
			status = http.StatusUnprocessableEntity
		case storage.ErrUnavailable:
			status = http.StatusServiceUnavailable
		}
	}
	if status == http.StatusInternalServerError {
		s.logger.Error("request failed",
			"method", r.Method,
			"path", r.URL.Path,
			"error", err)
	}
	writeJSON(w, status, errorResponse{Error: err.Error()})
}

func decodeJSON(r *http.Request, v any) error {
	if err := json.NewDecoder(r.Body).Decode(v); err != nil {
		return &storage.Error{Type: errBadRequest, Message: "request body", Err: err}
	}
	return nil
}

// republish regenerates and uploads the series' feeds. Publishing is best
// effort: a failure is logged and never fails the request that caused it.
func (s *Server) republish(r *http.Request, rec *storage.SeriesRecord) {
	if s.publisher == nil {
		return
	}
	ctx := r.Context()
	instances, err := s.store.ListInstances(ctx, rec.ID, nil)
	if err != nil {
		s.logger.Warn("feed publish skipped", "series", rec.ID, "error", err)
		return
	}
	docs, err := export.Documents(rec, instances)
	if err != nil {
		s.logger.Warn("feed render failed", "series", rec.ID, "error", err)
		return
	}
	for _, doc := range docs {
		if err := s.publisher.Put(ctx, doc.Key, doc.Data, doc.ContentType); err != nil {
			s.logger.Warn("feed publish failed", "series", rec.ID, "key", doc.Key, "error", err)
		}
	}
}

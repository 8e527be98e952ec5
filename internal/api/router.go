// Package api serves the score view, the quarantine review queue and the
// run log over HTTP.
package api

import (
	"context"
	"encoding/json"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"go.uber.org/zap"

	"github.com/sells-group/fscore-cli/internal/model"
	"github.com/sells-group/fscore-cli/internal/store"
)

// ScoreReader reads the persisted score view.
type ScoreReader interface {
	ReadScores(ctx context.Context, filter store.Filter) ([]model.ScoreResult, error)
}

// QuarantineLedger lists and resolves quarantine records.
type QuarantineLedger interface {
	List(ctx context.Context, unconfirmedOnly bool) ([]model.QuarantineRecord, error)
	Confirm(ctx context.Context, ticker, suffix string) error
	Clear(ctx context.Context, ticker, suffix string) error
}

// RunLister reads the pipeline run log.
type RunLister interface {
	ListRuns(ctx context.Context, filter store.RunFilter) ([]model.Run, error)
}

// Trigger starts a pipeline run in the background. It reports false when a
// run is already in progress.
type Trigger interface {
	Trigger() bool
}

// Deps are the services behind the routes. Trigger is optional.
type Deps struct {
	Scores     ScoreReader
	Quarantine QuarantineLedger
	Runs       RunLister
	Trigger    Trigger
}

// Handler holds the route handlers.
type Handler struct {
	deps Deps
	log  *zap.Logger
}

// NewRouter returns the HTTP handler for deps. An empty origin list allows
// any origin.
func NewRouter(deps Deps, corsOrigins []string) http.Handler {
	h := &Handler{deps: deps, log: zap.L().With(zap.String("component", "api"))}
	if len(corsOrigins) == 0 {
		corsOrigins = []string{"*"}
	}

	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.Recoverer)
	r.Use(h.logRequests)
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins: corsOrigins,
		AllowedMethods: []string{http.MethodGet, http.MethodPost, http.MethodDelete, http.MethodOptions},
		AllowedHeaders: []string{"Accept", "Content-Type"},
		MaxAge:         300,
	}))

	r.Get("/health", h.health)
	r.Get("/scores", h.listScores)
	r.Route("/quarantine", func(r chi.Router) {
		r.Get("/", h.listQuarantine)
		r.Post("/{ticker}/{suffix}/confirm", h.confirmQuarantine)
		r.Delete("/{ticker}/{suffix}", h.clearQuarantine)
	})
	r.Get("/runs", h.listRuns)
	r.Post("/runs", h.triggerRun)
	return r
}

func (h *Handler) health(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func (h *Handler) logRequests(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
		next.ServeHTTP(ww, r)
		h.log.Debug("http request",
			zap.String("method", r.Method),
			zap.String("path", r.URL.Path),
			zap.Int("status", ww.Status()),
			zap.Duration("duration", time.Since(start)),
			zap.String("request_id", middleware.GetReqID(r.Context())),
		)
	})
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, map[string]string{"error": msg})
}

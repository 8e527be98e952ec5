package api

import (
	"net/http"
	"strconv"
	"strings"

	"github.com/go-chi/chi/v5"
	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/sells-group/fscore-cli/internal/model"
	"github.com/sells-group/fscore-cli/internal/quarantine"
	"github.com/sells-group/fscore-cli/internal/report"
	"github.com/sells-group/fscore-cli/internal/scorer"
	"github.com/sells-group/fscore-cli/internal/statement"
	"github.com/sells-group/fscore-cli/internal/store"
)

const maxRunLimit = 500

type scoreView struct {
	model.ScoreResult
	Rank  *int `json:"rank"`
	Score *int `json:"piotroski_f_score"`
}

func (h *Handler) listScores(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	minScore, err := intParam(q.Get("min_score"), 0)
	if err != nil || minScore < 0 || minScore > 9 {
		writeError(w, http.StatusBadRequest, "min_score must be an integer between 0 and 9")
		return
	}
	top, err := intParam(q.Get("top"), 0)
	if err != nil || top < 0 {
		writeError(w, http.StatusBadRequest, "top must be a non-negative integer")
		return
	}

	var filter store.Filter
	if country := strings.ToUpper(strings.TrimSpace(q.Get("country"))); country != "" {
		filter = store.Filter{statement.ColCountry: country}
	}
	results, err := h.deps.Scores.ReadScores(r.Context(), filter)
	if err != nil {
		h.fail(w, "read scores", err)
		return
	}
	scorer.Rank(results)
	results = report.Top(scorer.Select(results, minScore), top)

	if q.Get("format") == string(report.FormatCSV) {
		w.Header().Set("Content-Type", "text/csv")
		if err := report.WriteCSV(w, results); err != nil {
			h.log.Error("api: write csv", zap.Error(err))
		}
		return
	}

	views := make([]scoreView, len(results))
	for i, res := range results {
		views[i] = scoreView{ScoreResult: res}
		if res.Score.Valid {
			rank, score := i+1, res.Score.Value
			views[i].Rank = &rank
			views[i].Score = &score
		}
	}
	writeJSON(w, http.StatusOK, views)
}

func (h *Handler) listQuarantine(w http.ResponseWriter, r *http.Request) {
	unconfirmed, _ := strconv.ParseBool(r.URL.Query().Get("unconfirmed"))
	records, err := h.deps.Quarantine.List(r.Context(), unconfirmed)
	if err != nil {
		h.fail(w, "list quarantine", err)
		return
	}
	writeJSON(w, http.StatusOK, records)
}

func (h *Handler) confirmQuarantine(w http.ResponseWriter, r *http.Request) {
	ticker, suffix := chi.URLParam(r, "ticker"), chi.URLParam(r, "suffix")
	if err := h.deps.Quarantine.Confirm(r.Context(), ticker, suffix); err != nil {
		h.quarantineError(w, "confirm quarantine", err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (h *Handler) clearQuarantine(w http.ResponseWriter, r *http.Request) {
	ticker, suffix := chi.URLParam(r, "ticker"), chi.URLParam(r, "suffix")
	if err := h.deps.Quarantine.Clear(r.Context(), ticker, suffix); err != nil {
		h.quarantineError(w, "clear quarantine", err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (h *Handler) quarantineError(w http.ResponseWriter, action string, err error) {
	if eris.Is(err, quarantine.ErrNotFound) {
		writeError(w, http.StatusNotFound, "quarantine record not found")
		return
	}
	h.fail(w, action, err)
}

func (h *Handler) listRuns(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	limit, err := intParam(q.Get("limit"), 0)
	if err != nil || limit < 0 {
		writeError(w, http.StatusBadRequest, "limit must be a non-negative integer")
		return
	}
	runs, err := h.deps.Runs.ListRuns(r.Context(), store.RunFilter{
		Kind:   model.RunKind(q.Get("kind")),
		Status: model.RunStatus(q.Get("status")),
		Limit:  min(limit, maxRunLimit),
	})
	if err != nil {
		h.fail(w, "list runs", err)
		return
	}
	writeJSON(w, http.StatusOK, runs)
}

func (h *Handler) triggerRun(w http.ResponseWriter, _ *http.Request) {
	if h.deps.Trigger == nil {
		writeError(w, http.StatusNotImplemented, "pipeline trigger is not configured")
		return
	}
	if !h.deps.Trigger.Trigger() {
		writeError(w, http.StatusConflict, "a pipeline run is already in progress")
		return
	}
	writeJSON(w, http.StatusAccepted, map[string]string{"status": "accepted"})
}

func (h *Handler) fail(w http.ResponseWriter, action string, err error) {
	h.log.Error("api: "+action, zap.Error(err))
	writeError(w, http.StatusInternalServerError, "internal error")
}

func intParam(s string, def int) (int, error) {
	if s == "" {
		return def, nil
	}
	return strconv.Atoi(s)
}

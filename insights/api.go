package insights

import (
	"encoding/json"
	"log/slog"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"

	"github.com/dynamous/ragpipe/storage"
)

const defaultRecentLimit = 20

// API is the operational HTTP surface served alongside the worker:
// health, queue introspection and the manual queue operations.
type API struct {
	queue    *Queue
	insights storage.InsightRepository
	logger   *slog.Logger
}

// NewAPI creates the ops API over the queue service and insight store.
func NewAPI(queue *Queue, insights storage.InsightRepository) (*API, error) {
	if queue == nil {
		return nil, ErrQueueServiceRequired
	}
	if insights == nil {
		return nil, ErrInsightRepositoryRequired
	}
	return &API{
		queue:    queue,
		insights: insights,
		logger:   slog.Default().With("component", "ops-api"),
	}, nil
}

// Router builds the chi router for the API.
func (a *API) Router() http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.Recoverer)
	r.Use(middleware.Timeout(30 * time.Second))

	r.Get("/health", a.handleHealth)
	r.Get("/queue/stats", a.handleQueueStats)
	r.Post("/queue/retroactive", a.handleRetroactive)
	r.Post("/queue/reset-failed", a.handleResetFailed)
	r.Get("/insights/recent", a.handleRecentInsights)

	return r
}

func (a *API) handleHealth(w http.ResponseWriter, r *http.Request) {
	a.writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func (a *API) handleQueueStats(w http.ResponseWriter, r *http.Request) {
	stats, err := a.queue.Stats(r.Context())
	if err != nil {
		a.writeError(w, err)
		return
	}
	a.writeJSON(w, http.StatusOK, map[string]any{
		"pending":                stats.Pending,
		"processing":             stats.Processing,
		"completed":              stats.Completed,
		"failed":                 stats.Failed,
		"oldest_pending_seconds": int(stats.OldestPendingAge.Seconds()),
	})
}

func (a *API) handleRetroactive(w http.ResponseWriter, r *http.Request) {
	enqueued, err := a.queue.EnqueueUnprocessed(r.Context())
	if err != nil {
		a.writeError(w, err)
		return
	}
	a.writeJSON(w, http.StatusOK, map[string]int{"enqueued": enqueued})
}

func (a *API) handleResetFailed(w http.ResponseWriter, r *http.Request) {
	reset, err := a.queue.ResetFailed(r.Context())
	if err != nil {
		a.writeError(w, err)
		return
	}
	a.writeJSON(w, http.StatusOK, map[string]int{"reset": reset})
}

func (a *API) handleRecentInsights(w http.ResponseWriter, r *http.Request) {
	limit := defaultRecentLimit
	if raw := r.URL.Query().Get("limit"); raw != "" {
		parsed, err := strconv.Atoi(raw)
		if err != nil || parsed <= 0 {
			a.writeJSON(w, http.StatusBadRequest, map[string]string{"error": "limit must be a positive integer"})
			return
		}
		limit = parsed
	}

	records, err := a.insights.GetRecentInsights(r.Context(), limit)
	if err != nil {
		a.writeError(w, err)
		return
	}

	out := make([]map[string]any, len(records))
	for i, in := range records {
		out[i] = map[string]any{
			"id":          in.Id,
			"type":        in.Type,
			"title":       in.Title,
			"description": in.Description,
			"priority":    in.Priority,
			"status":      in.Status,
			"confidence":  in.Confidence,
			"document":    in.SourceDocumentID,
			"created_at":  in.CreatedAt.Format(time.RFC3339),
		}
	}
	a.writeJSON(w, http.StatusOK, map[string]any{"insights": out})
}

func (a *API) writeJSON(w http.ResponseWriter, status int, body any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(body); err != nil {
		a.logger.Error("response encoding failed", "err", err)
	}
}

func (a *API) writeError(w http.ResponseWriter, err error) {
	a.logger.Error("request failed", "err", err)
	a.writeJSON(w, http.StatusInternalServerError, map[string]string{"error": err.Error()})
}

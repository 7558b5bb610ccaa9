package handlers

import (
	"encoding/json"
	"errors"
	"net/http"
	"strings"

	"github.com/ternarybob/arbor"

	"github.com/autoforgehq/autoforge/internal/interfaces"
	"github.com/autoforgehq/autoforge/internal/models"
)

// QueueHandler exposes queue administration: per-queue stats and direct
// job admission for operators and internal tooling.
type QueueHandler struct {
	queue  interfaces.QueueService
	logger arbor.ILogger
}

func NewQueueHandler(queueService interfaces.QueueService, logger arbor.ILogger) *QueueHandler {
	return &QueueHandler{
		queue:  queueService,
		logger: logger,
	}
}

// AllStatsHandler returns per-state counts for every queue.
// Handles GET /api/queues/stats.
func (h *QueueHandler) AllStatsHandler(w http.ResponseWriter, r *http.Request) {
	if !RequireMethod(w, r, "GET") {
		return
	}

	stats, err := h.queue.AllStats(r.Context())
	if err != nil {
		WriteError(w, http.StatusInternalServerError, err.Error())
		return
	}
	WriteJSON(w, http.StatusOK, stats)
}

// StatsHandler returns per-state counts for one queue.
// Handles GET /api/queues/{name}/stats.
func (h *QueueHandler) StatsHandler(w http.ResponseWriter, r *http.Request) {
	if !RequireMethod(w, r, "GET") {
		return
	}

	queueName := queueNameFromPath(r.URL.Path, "/stats")
	if !models.ValidQueue(queueName) {
		WriteError(w, http.StatusNotFound, "unknown queue: "+queueName)
		return
	}

	stats, err := h.queue.Stats(r.Context(), queueName)
	if err != nil {
		WriteError(w, http.StatusInternalServerError, err.Error())
		return
	}
	WriteJSON(w, http.StatusOK, map[string]interface{}{
		"queue": queueName,
		"stats": stats,
	})
}

// enqueueRequest is the operator job admission body.
type enqueueRequest struct {
	Type    string                     `json:"type"`
	Payload json.RawMessage            `json:"payload"`
	Options *interfaces.EnqueueOptions `json:"options,omitempty"`
}

// EnqueueHandler admits a job directly onto a queue.
// Handles POST /api/queues/{name}/jobs.
func (h *QueueHandler) EnqueueHandler(w http.ResponseWriter, r *http.Request) {
	if !RequireMethod(w, r, "POST") {
		return
	}

	queueName := queueNameFromPath(r.URL.Path, "/jobs")
	if !models.ValidQueue(queueName) {
		WriteError(w, http.StatusNotFound, "unknown queue: "+queueName)
		return
	}

	var req enqueueRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		WriteError(w, http.StatusBadRequest, "invalid request body: "+err.Error())
		return
	}
	if req.Type == "" {
		WriteError(w, http.StatusBadRequest, "job type is required")
		return
	}

	jobID, err := h.queue.Enqueue(r.Context(), queueName, req.Type, req.Payload, req.Options)
	if err != nil {
		switch {
		case errors.Is(err, models.ErrNoHandler), errors.Is(err, models.ErrUnknownQueue):
			WriteError(w, http.StatusBadRequest, err.Error())
		default:
			WriteError(w, http.StatusInternalServerError, err.Error())
		}
		return
	}

	h.logger.Info().
		Str("job_id", jobID).
		Str("queue", queueName).
		Str("job_type", req.Type).
		Msg("Job enqueued via API")

	WriteJSON(w, http.StatusAccepted, map[string]string{
		"job_id": jobID,
		"queue":  queueName,
	})
}

// JobStatusHandler returns a job snapshot by ID.
// Handles GET /api/jobs/{id}.
func (h *QueueHandler) JobStatusHandler(w http.ResponseWriter, r *http.Request) {
	if !RequireMethod(w, r, "GET") {
		return
	}

	jobID := strings.TrimPrefix(r.URL.Path, "/api/jobs/")
	if jobID == "" || strings.Contains(jobID, "/") {
		WriteError(w, http.StatusBadRequest, "job ID is required")
		return
	}

	view, err := h.queue.GetStatus(r.Context(), jobID)
	if err != nil {
		if errors.Is(err, models.ErrJobNotFound) {
			WriteError(w, http.StatusNotFound, "job not found")
			return
		}
		WriteError(w, http.StatusInternalServerError, err.Error())
		return
	}
	WriteJSON(w, http.StatusOK, view)
}

// queueNameFromPath extracts {name} from /api/queues/{name}{suffix}.
func queueNameFromPath(path, suffix string) string {
	name := strings.TrimPrefix(path, "/api/queues/")
	return strings.TrimSuffix(name, suffix)
}

package handlers

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strings"

	"github.com/go-playground/validator/v10"
	"github.com/ternarybob/arbor"

	"github.com/autoforgehq/autoforge/internal/common"
	"github.com/autoforgehq/autoforge/internal/interfaces"
	"github.com/autoforgehq/autoforge/internal/models"
	"github.com/autoforgehq/autoforge/internal/queue"
	"github.com/autoforgehq/autoforge/internal/workers"
)

// WorkflowHandler is the customer-facing order surface: submit an
// automation request, get back a job ID, poll it for progress.
type WorkflowHandler struct {
	queue    interfaces.QueueService
	validate *validator.Validate
	logger   arbor.ILogger
}

func NewWorkflowHandler(queueService interfaces.QueueService, logger arbor.ILogger) *WorkflowHandler {
	return &WorkflowHandler{
		queue:    queueService,
		validate: validator.New(),
		logger:   logger,
	}
}

// GenerateRequest is the order submission body.
type GenerateRequest struct {
	Customer string `json:"customer" validate:"required"`
	Email    string `json:"email" validate:"omitempty,email"`
	Request  string `json:"request" validate:"required,min=10"`
	Paid     bool   `json:"paid"`
	DelayMs  int64  `json:"delay_ms" validate:"gte=0"`
}

// GenerateHandler accepts an automation order and enqueues the first
// pipeline stage. Responds 202 with the job ID and a status endpoint;
// the pipeline runs asynchronously from there.
func (h *WorkflowHandler) GenerateHandler(w http.ResponseWriter, r *http.Request) {
	if !RequireMethod(w, r, "POST") {
		return
	}

	var req GenerateRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		WriteError(w, http.StatusBadRequest, "invalid request body: "+err.Error())
		return
	}
	if err := h.validate.Struct(req); err != nil {
		WriteError(w, http.StatusBadRequest, "invalid request: "+err.Error())
		return
	}

	payload := workers.StagePayload{
		WorkflowRequest: workers.WorkflowRequest{
			RequestID: common.NewID(),
			Customer:  req.Customer,
			Email:     req.Email,
			Request:   req.Request,
			Paid:      req.Paid,
		},
	}
	data, err := json.Marshal(payload)
	if err != nil {
		WriteError(w, http.StatusInternalServerError, "failed to encode request")
		return
	}

	opts := &interfaces.EnqueueOptions{DelayMs: req.DelayMs}
	if req.Paid {
		opts.Priority = queue.PriorityPaid
	}

	jobID, err := h.queue.Enqueue(r.Context(), models.QueueGeneration, workers.JobGenerateWorkflow, data, opts)
	if err != nil {
		h.logger.Warn().Err(err).Str("customer", req.Customer).Msg("Failed to enqueue workflow order")
		WriteError(w, http.StatusInternalServerError, "failed to enqueue: "+err.Error())
		return
	}

	h.logger.Info().
		Str("job_id", jobID).
		Str("request_id", common.ShortID(payload.RequestID)).
		Str("customer", req.Customer).
		Bool("paid", req.Paid).
		Msg("Workflow order accepted")

	WriteJSON(w, http.StatusAccepted, map[string]string{
		"job_id":          jobID,
		"request_id":      payload.RequestID,
		"status_endpoint": fmt.Sprintf("/api/workflows/status/%s", jobID),
	})
}

// StatusHandler returns the poller-visible snapshot for a job.
// Handles GET /api/workflows/status/{id}.
func (h *WorkflowHandler) StatusHandler(w http.ResponseWriter, r *http.Request) {
	if !RequireMethod(w, r, "GET") {
		return
	}

	jobID := strings.TrimPrefix(r.URL.Path, "/api/workflows/status/")
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

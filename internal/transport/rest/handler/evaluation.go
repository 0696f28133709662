package handler

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"time"

	"github.com/gorilla/mux"

	"voicefeedback/internal/model"
	"voicefeedback/internal/platform/logger"
	"voicefeedback/internal/service"
	"voicefeedback/internal/transport/rest/middleware"
)

// EvaluationHandler exposes question selection and the activation log
type EvaluationHandler struct {
	selectionSvc *service.SelectionService
	activations  *service.ActivationLogger
	timeout      time.Duration
	log          *logger.Logger
}

// NewEvaluationHandler creates a new evaluation handler. A zero timeout leaves
// the request context untouched.
func NewEvaluationHandler(selectionSvc *service.SelectionService, activations *service.ActivationLogger, timeout time.Duration, log *logger.Logger) *EvaluationHandler {
	return &EvaluationHandler{
		selectionSvc: selectionSvc,
		activations:  activations,
		timeout:      timeout,
		log:          log,
	}
}

// Evaluate handles POST /v1/businesses/{businessId}/evaluations
func (h *EvaluationHandler) Evaluate(w http.ResponseWriter, r *http.Request) {
	businessID := mux.Vars(r)["businessId"]

	var req model.EvaluateRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	ctx := r.Context()
	if h.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, h.timeout)
		defer cancel()
	}

	result, err := h.selectionSvc.Evaluate(ctx, businessID, req.Context, req.Options)
	if err != nil {
		h.writeServiceError(w, r, err, "businessId", businessID)
		return
	}
	h.log.Debug("evaluation served",
		"businessId", businessID, "evaluationId", result.EvaluationID,
		"clientId", middleware.GetClientID(r.Context()), "selected", len(result.Selected))

	writeJSON(w, http.StatusOK, result)
}

// MarkAsked handles POST /v1/evaluations/{evaluationId}/asked
func (h *EvaluationHandler) MarkAsked(w http.ResponseWriter, r *http.Request) {
	evaluationID := mux.Vars(r)["evaluationId"]

	var req model.MarkAskedRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	updated, err := h.activations.MarkAsked(r.Context(), evaluationID, req.QuestionIDs)
	if err != nil {
		h.writeServiceError(w, r, err, "evaluationId", evaluationID)
		return
	}

	writeJSON(w, http.StatusOK, map[string]int64{"updated": updated})
}

// Activations handles GET /v1/evaluations/{evaluationId}/activations
func (h *EvaluationHandler) Activations(w http.ResponseWriter, r *http.Request) {
	evaluationID := mux.Vars(r)["evaluationId"]

	entries, err := h.activations.ListByEvaluation(r.Context(), evaluationID)
	if err != nil {
		h.writeServiceError(w, r, err, "evaluationId", evaluationID)
		return
	}

	writeJSON(w, http.StatusOK, entries)
}

func (h *EvaluationHandler) writeServiceError(w http.ResponseWriter, r *http.Request, err error, keysAndValues ...interface{}) {
	keysAndValues = append(keysAndValues, "clientId", middleware.GetClientID(r.Context()))
	switch {
	case errors.Is(err, service.ErrInvalidRequest):
		writeError(w, http.StatusBadRequest, err.Error())
	case errors.Is(err, service.ErrNotFound):
		writeError(w, http.StatusNotFound, err.Error())
	case errors.Is(err, service.ErrDependencyUnavailable):
		h.log.Warn("dependency unavailable", append(keysAndValues, "error", err)...)
		writeError(w, http.StatusServiceUnavailable, err.Error())
	case errors.Is(err, context.DeadlineExceeded):
		writeError(w, http.StatusGatewayTimeout, "evaluation timed out")
	default:
		h.log.Error("request failed", append(keysAndValues, "error", err)...)
		writeError(w, http.StatusInternalServerError, "internal error")
	}
}

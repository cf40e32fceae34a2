package api

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"

	"promptyoself/internal/db"
	"promptyoself/internal/redis"
	"promptyoself/internal/scheduler"
)

// SchedulerService is the core contract the HTTP layer adapts. The
// transport owns no scheduling logic; every handler is a thin wrapper over
// one of these calls.
type SchedulerService interface {
	Register(ctx context.Context, req scheduler.RegisterRequest) (*db.Reminder, error)
	List(ctx context.Context, agentID string, activeOnly bool) ([]*db.Reminder, error)
	Get(ctx context.Context, id int64) (*db.Reminder, error)
	Cancel(ctx context.Context, id int64) error
	ExecuteDue(ctx context.Context) ([]scheduler.Outcome, error)
}

// RegisterRequest represents the incoming registration body.
type RegisterRequest struct {
	AgentID        string `json:"agent_id"`
	Message        string `json:"message"`
	Time           string `json:"time,omitempty"`
	Cron           string `json:"cron,omitempty"`
	Every          string `json:"every,omitempty"`
	MaxRepetitions *int   `json:"max_repetitions,omitempty"`
	StartAt        string `json:"start_at,omitempty"`
	SkipValidation bool   `json:"skip_validation,omitempty"`
}

// RegisterResponse is returned after creating a schedule.
type RegisterResponse struct {
	Status  string `json:"status"`
	ID      int64  `json:"id"`
	NextRun string `json:"next_run"`
	Message string `json:"message"`
}

// ErrorResponse represents an error in problem+json format
type ErrorResponse struct {
	Type   string `json:"type"`
	Title  string `json:"title"`
	Status int    `json:"status"`
	Detail string `json:"detail,omitempty"`
}

// Handler holds dependencies for API handlers
type Handler struct {
	logger      *zap.Logger
	svc         SchedulerService
	idempotency *redis.IdempotencyService // nil if Redis not configured
}

// NewHandler creates a new API handler
func NewHandler(logger *zap.Logger, svc SchedulerService) *Handler {
	return &Handler{
		logger: logger,
		svc:    svc,
	}
}

// NewHandlerWithIdempotency creates a handler with registration replay
// protection.
func NewHandlerWithIdempotency(logger *zap.Logger, svc SchedulerService, idempotency *redis.IdempotencyService) *Handler {
	return &Handler{
		logger:      logger,
		svc:         svc,
		idempotency: idempotency,
	}
}

// CreateSchedule handles POST /v1/schedules
// Supports replay protection via the Idempotency-Key header.
func (h *Handler) CreateSchedule(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	idempotencyKey := r.Header.Get("Idempotency-Key")

	var req RegisterRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		h.writeError(w, http.StatusBadRequest, "invalid_request", "Malformed JSON body", err.Error())
		return
	}

	if idempotencyKey != "" && h.idempotency != nil {
		cached, err := h.idempotency.CheckOrReserve(ctx, req.AgentID, idempotencyKey)
		if err != nil {
			if errors.Is(err, redis.ErrDuplicateRequest) {
				h.writeError(w, http.StatusConflict, "duplicate_request",
					"Request is already being processed",
					"Another request with this idempotency key is in progress")
				return
			}
			h.logger.Warn("idempotency check failed, proceeding",
				zap.Error(err),
				zap.String("idempotency_key", idempotencyKey),
			)
		} else if cached != nil {
			w.Header().Set("Content-Type", "application/json")
			w.Header().Set("X-Idempotency-Replayed", "true")
			w.WriteHeader(http.StatusOK)
			_ = json.NewEncoder(w).Encode(RegisterResponse{
				Status:  "success",
				ID:      cached.ScheduleID,
				NextRun: cached.NextRun,
				Message: "Prompt already scheduled",
			})
			return
		}
	}

	rem, err := h.svc.Register(ctx, scheduler.RegisterRequest{
		AgentID:        req.AgentID,
		Message:        req.Message,
		Time:           req.Time,
		Cron:           req.Cron,
		Every:          req.Every,
		MaxRepetitions: req.MaxRepetitions,
		StartAt:        req.StartAt,
		SkipValidation: req.SkipValidation,
	})
	if err != nil {
		if scheduler.IsValidationError(err) {
			h.writeError(w, http.StatusBadRequest, "invalid_request", "Registration rejected", err.Error())
			return
		}
		h.logger.Error("failed to register schedule",
			zap.Error(err),
			zap.String("agent_id", req.AgentID),
		)
		h.writeError(w, http.StatusInternalServerError, "storage_error", "Failed to register schedule", "")
		return
	}

	nextRun := ""
	if rem.NextRun != nil {
		nextRun = rem.NextRun.Format(time.RFC3339)
	}

	if idempotencyKey != "" && h.idempotency != nil {
		result := &redis.IdempotencyResult{
			ScheduleID: rem.ID,
			NextRun:    nextRun,
		}
		if err := h.idempotency.Store(ctx, req.AgentID, idempotencyKey, result); err != nil {
			h.logger.Warn("failed to store idempotency result",
				zap.Error(err),
				zap.String("idempotency_key", idempotencyKey),
			)
		}
	}

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusCreated)
	_ = json.NewEncoder(w).Encode(RegisterResponse{
		Status:  "success",
		ID:      rem.ID,
		NextRun: nextRun,
		Message: "Prompt scheduled",
	})
}

// ListSchedules handles GET /v1/schedules?agent_id=xxx&all=true
func (h *Handler) ListSchedules(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	agentID := r.URL.Query().Get("agent_id")
	showAll := r.URL.Query().Get("all") == "true"

	schedules, err := h.svc.List(ctx, agentID, !showAll)
	if err != nil {
		h.logger.Error("failed to list schedules",
			zap.Error(err),
			zap.String("agent_id", agentID),
		)
		h.writeError(w, http.StatusInternalServerError, "storage_error", "Failed to list schedules", "")
		return
	}
	if schedules == nil {
		schedules = []*db.Reminder{}
	}

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusOK)
	_ = json.NewEncoder(w).Encode(map[string]any{
		"status":    "success",
		"schedules": schedules,
		"count":     len(schedules),
	})
}

// GetSchedule handles GET /v1/schedules/{id}
func (h *Handler) GetSchedule(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	id, ok := h.parseID(w, r)
	if !ok {
		return
	}

	rem, err := h.svc.Get(ctx, id)
	if err != nil {
		if errors.Is(err, db.ErrNotFound) {
			h.writeError(w, http.StatusNotFound, "not_found", "Schedule not found", "")
			return
		}
		h.logger.Error("failed to get schedule",
			zap.Error(err),
			zap.Int64("schedule_id", id),
		)
		h.writeError(w, http.StatusInternalServerError, "storage_error", "Failed to get schedule", "")
		return
	}

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusOK)
	_ = json.NewEncoder(w).Encode(rem)
}

// CancelSchedule handles DELETE /v1/schedules/{id}
func (h *Handler) CancelSchedule(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	id, ok := h.parseID(w, r)
	if !ok {
		return
	}

	if err := h.svc.Cancel(ctx, id); err != nil {
		if errors.Is(err, db.ErrNotFound) {
			h.writeError(w, http.StatusNotFound, "not_found", "Schedule not found", "")
			return
		}
		h.logger.Error("failed to cancel schedule",
			zap.Error(err),
			zap.Int64("schedule_id", id),
		)
		h.writeError(w, http.StatusInternalServerError, "storage_error", "Failed to cancel schedule", "")
		return
	}

	h.logger.Info("schedule cancelled", zap.Int64("schedule_id", id))

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusOK)
	_ = json.NewEncoder(w).Encode(map[string]any{
		"status":       "success",
		"cancelled_id": id,
		"message":      "Schedule cancelled",
	})
}

// ExecuteSchedules handles POST /v1/schedules/execute — runs one execution
// pass immediately and reports per-reminder outcomes.
func (h *Handler) ExecuteSchedules(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	outcomes, err := h.svc.ExecuteDue(ctx)
	if err != nil {
		h.logger.Error("manual execution pass failed", zap.Error(err))
		h.writeError(w, http.StatusInternalServerError, "storage_error", "Failed to execute due schedules", "")
		return
	}
	if outcomes == nil {
		outcomes = []scheduler.Outcome{}
	}

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusOK)
	_ = json.NewEncoder(w).Encode(map[string]any{
		"status":   "success",
		"executed": outcomes,
		"count":    len(outcomes),
	})
}

func (h *Handler) parseID(w http.ResponseWriter, r *http.Request) (int64, bool) {
	idStr := chi.URLParam(r, "id")
	id, err := strconv.ParseInt(idStr, 10, 64)
	if err != nil {
		h.writeError(w, http.StatusBadRequest, "invalid_request", "Invalid schedule ID", "ID must be a number")
		return 0, false
	}
	return id, true
}

func (h *Handler) writeError(w http.ResponseWriter, status int, errType, title, detail string) {
	w.Header().Set("Content-Type", "application/problem+json")
	w.WriteHeader(status)

	_ = json.NewEncoder(w).Encode(ErrorResponse{
		Type:   errType,
		Title:  title,
		Status: status,
		Detail: detail,
	})
}

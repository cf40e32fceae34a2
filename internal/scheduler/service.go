// Package scheduler is the core of the service: it validates and registers
// reminders, and runs the execution pass that delivers due reminders and
// applies the post-delivery state transition.
package scheduler

import (
	"context"
	"fmt"
	"time"

	"go.uber.org/zap"

	"promptyoself/internal/db"
	"promptyoself/internal/metrics"
	"promptyoself/internal/schedule"
)

// Store is the schedule store consumed by the service.
type Store interface {
	Create(ctx context.Context, rem *db.Reminder) error
	Get(ctx context.Context, id int64) (*db.Reminder, error)
	List(ctx context.Context, agentID string, activeOnly bool) ([]*db.Reminder, error)
	Due(ctx context.Context, now time.Time) ([]*db.Reminder, error)
	Update(ctx context.Context, id int64, patch db.ReminderPatch) error
	Cancel(ctx context.Context, id int64) error
}

// Deliverer sends a reminder's message to its agent. A false return is a
// routine delivery failure; the reminder stays due and the next poll is
// the retry. Retry/backoff inside a single call is the deliverer's own
// concern.
type Deliverer interface {
	Deliver(ctx context.Context, agentID, message string) bool
}

// AgentValidator checks that an agent exists before registration.
type AgentValidator interface {
	AgentExists(ctx context.Context, agentID string) (bool, error)
}

// Outcome is the per-reminder result of one execution pass.
type Outcome struct {
	ID              int64      `json:"id"`
	AgentID         string     `json:"agent_id"`
	Delivered       bool       `json:"delivered"`
	NextRun         *time.Time `json:"next_run"`
	RepetitionCount int        `json:"repetition_count,omitempty"`
	MaxRepetitions  *int       `json:"max_repetitions,omitempty"`
	Completed       bool       `json:"completed,omitempty"`
	Error           string     `json:"error,omitempty"`
}

// Service implements the four public operations. All collaborators are
// injected; there is no package-level state.
type Service struct {
	store     Store
	deliverer Deliverer
	agents    AgentValidator
	logger    *zap.Logger

	// now is swappable for tests.
	now func() time.Time
}

// New creates a scheduler service. agents may be nil, in which case agent
// existence is never checked.
func New(store Store, deliverer Deliverer, agents AgentValidator, logger *zap.Logger) *Service {
	return &Service{
		store:     store,
		deliverer: deliverer,
		agents:    agents,
		logger:    logger,
		now:       time.Now,
	}
}

// Register validates a registration request, optionally checks the agent
// exists, and creates the reminder. The store is never written on a
// validation failure.
func (s *Service) Register(ctx context.Context, req RegisterRequest) (*db.Reminder, error) {
	norm, err := s.validateRegistration(req)
	if err != nil {
		s.logger.Warn("registration rejected",
			zap.String("agent_id", req.AgentID),
			zap.Error(err),
		)
		return nil, err
	}

	if !req.SkipValidation && s.agents != nil {
		exists, err := s.agents.AgentExists(ctx, req.AgentID)
		if err != nil {
			return nil, fmt.Errorf("%w: %v", ErrAgentValidationFailed, err)
		}
		if !exists {
			return nil, fmt.Errorf("%w: agent %q not found", ErrAgentValidationFailed, req.AgentID)
		}
	}

	nextRun := norm.nextRun.UTC()
	rem := &db.Reminder{
		AgentID:        req.AgentID,
		Message:        req.Message,
		ScheduleType:   norm.scheduleType,
		ScheduleValue:  norm.scheduleValue,
		NextRun:        &nextRun,
		Active:         true,
		MaxRepetitions: req.MaxRepetitions,
	}

	if err := s.store.Create(ctx, rem); err != nil {
		return nil, err
	}

	metrics.RecordRegistration(norm.scheduleType)

	s.logger.Info("reminder registered",
		zap.Int64("reminder_id", rem.ID),
		zap.String("agent_id", rem.AgentID),
		zap.String("schedule_type", rem.ScheduleType),
		zap.Time("next_run", nextRun),
	)

	return rem, nil
}

// List returns reminders, optionally filtered by agent. activeOnly hides
// cancelled and completed reminders.
func (s *Service) List(ctx context.Context, agentID string, activeOnly bool) ([]*db.Reminder, error) {
	return s.store.List(ctx, agentID, activeOnly)
}

// Get returns one reminder by id.
func (s *Service) Get(ctx context.Context, id int64) (*db.Reminder, error) {
	return s.store.Get(ctx, id)
}

// Cancel deactivates a reminder. The row is retained.
func (s *Service) Cancel(ctx context.Context, id int64) error {
	return s.store.Cancel(ctx, id)
}

// ExecuteDue runs one execution pass: fetch due reminders, deliver each,
// and apply the post-delivery transition. Items are processed
// independently; one failure never aborts the batch. The pass is safe to
// re-invoke at any time.
func (s *Service) ExecuteDue(ctx context.Context) ([]Outcome, error) {
	start := s.now()

	due, err := s.store.Due(ctx, start.UTC())
	if err != nil {
		return nil, fmt.Errorf("fetch due reminders: %w", err)
	}

	outcomes := make([]Outcome, 0, len(due))
	delivered := 0
	for _, rem := range due {
		out := s.executeOne(ctx, rem)
		if out.Delivered {
			delivered++
		}
		metrics.RecordDelivery(rem.ScheduleType, out.Delivered)
		outcomes = append(outcomes, out)
	}

	if len(due) > 0 {
		s.logger.Info("execution pass completed",
			zap.Int("due", len(due)),
			zap.Int("delivered", delivered),
			zap.Int("failed", len(due)-delivered),
			zap.Duration("duration", time.Since(start)),
		)
	}
	metrics.ObservePassDuration(time.Since(start))

	return outcomes, nil
}

// executeOne delivers a single due reminder and writes back its state.
//
// last_run is stamped on every attempt. A failed delivery changes nothing
// else, so the row stays due and retries on the next pass. A successful
// delivery increments repetition_count, then either deactivates the
// reminder (repetition cap reached, or once-type) or reschedules it from
// delivery-time now.
func (s *Service) executeOne(ctx context.Context, rem *db.Reminder) Outcome {
	now := s.now().UTC()

	ok := s.deliverer.Deliver(ctx, rem.AgentID, rem.Message)

	patch := db.ReminderPatch{LastRun: &now}

	if !ok {
		if err := s.store.Update(ctx, rem.ID, patch); err != nil {
			return s.faultOutcome(rem, err)
		}
		s.logger.Warn("delivery failed, will retry next pass",
			zap.Int64("reminder_id", rem.ID),
			zap.String("agent_id", rem.AgentID),
		)
		return Outcome{
			ID:        rem.ID,
			AgentID:   rem.AgentID,
			Delivered: false,
			Error:     "failed to deliver prompt",
			NextRun:   rem.NextRun,
		}
	}

	count := rem.RepetitionCount + 1
	patch.RepetitionCount = &count

	out := Outcome{
		ID:              rem.ID,
		AgentID:         rem.AgentID,
		Delivered:       true,
		RepetitionCount: count,
		MaxRepetitions:  rem.MaxRepetitions,
	}

	if rem.MaxRepetitions != nil && count >= *rem.MaxRepetitions {
		inactive := false
		patch.Active = &inactive
		patch.ClearNextRun = true
		out.Completed = true
		s.logger.Info("reminder completed its repetitions, deactivating",
			zap.Int64("reminder_id", rem.ID),
			zap.Int("repetitions", count),
		)
	} else {
		next, recurs, err := schedule.NextOccurrence(rem.ScheduleType, rem.ScheduleValue, now)
		if err != nil {
			// Corrupted schedule_type/schedule_value; surface on the
			// outcome instead of crashing the pass.
			return s.faultOutcome(rem, err)
		}
		if recurs {
			next = next.UTC()
			patch.NextRun = &next
			out.NextRun = &next
		} else {
			inactive := false
			patch.Active = &inactive
			patch.ClearNextRun = true
		}
	}

	if err := s.store.Update(ctx, rem.ID, patch); err != nil {
		return s.faultOutcome(rem, err)
	}

	return out
}

func (s *Service) faultOutcome(rem *db.Reminder, err error) Outcome {
	s.logger.Error("reminder execution failed",
		zap.Int64("reminder_id", rem.ID),
		zap.String("agent_id", rem.AgentID),
		zap.Error(err),
	)
	return Outcome{
		ID:        rem.ID,
		AgentID:   rem.AgentID,
		Delivered: false,
		Error:     err.Error(),
		NextRun:   rem.NextRun,
	}
}

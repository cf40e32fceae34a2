package db

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/jackc/pgx/v5"
	"go.uber.org/zap"
)

// ErrNotFound is returned when no reminder with the requested id exists.
var ErrNotFound = errors.New("reminder not found")

// Repository handles database operations for reminders
type Repository struct {
	db     *DB
	logger *zap.Logger
}

// NewRepository creates a new reminder repository
func NewRepository(db *DB, logger *zap.Logger) *Repository {
	return &Repository{
		db:     db,
		logger: logger,
	}
}

const reminderColumns = `
	id, agent_id, message, schedule_type, schedule_value,
	next_run, active, max_repetitions, repetition_count,
	last_run, created_at
`

func scanReminder(row pgx.Row) (*Reminder, error) {
	var r Reminder
	err := row.Scan(
		&r.ID,
		&r.AgentID,
		&r.Message,
		&r.ScheduleType,
		&r.ScheduleValue,
		&r.NextRun,
		&r.Active,
		&r.MaxRepetitions,
		&r.RepetitionCount,
		&r.LastRun,
		&r.CreatedAt,
	)
	if err != nil {
		return nil, err
	}
	return &r, nil
}

// Create inserts a new reminder row with active=true and repetition_count=0
// and fills in the assigned id and created_at. The insert is a single
// statement, so a concurrent due-query never observes a half-written row.
func (r *Repository) Create(ctx context.Context, rem *Reminder) error {
	query := `
		INSERT INTO schedules (
			agent_id, message, schedule_type, schedule_value,
			next_run, active, max_repetitions, repetition_count
		) VALUES (
			$1, $2, $3, $4, $5, TRUE, $6, 0
		)
		RETURNING id, active, repetition_count, created_at
	`

	err := r.db.Pool().QueryRow(
		ctx,
		query,
		rem.AgentID,
		rem.Message,
		rem.ScheduleType,
		rem.ScheduleValue,
		rem.NextRun,
		rem.MaxRepetitions,
	).Scan(&rem.ID, &rem.Active, &rem.RepetitionCount, &rem.CreatedAt)

	if err != nil {
		r.logger.Error("failed to create reminder",
			zap.Error(err),
			zap.String("agent_id", rem.AgentID),
			zap.String("schedule_type", rem.ScheduleType),
		)
		return fmt.Errorf("insert reminder: %w", err)
	}

	r.logger.Info("reminder created",
		zap.Int64("reminder_id", rem.ID),
		zap.String("agent_id", rem.AgentID),
		zap.String("schedule_type", rem.ScheduleType),
		zap.Timep("next_run", rem.NextRun),
	)

	return nil
}

// Get retrieves a reminder by id.
func (r *Repository) Get(ctx context.Context, id int64) (*Reminder, error) {
	query := `SELECT ` + reminderColumns + ` FROM schedules WHERE id = $1`

	rem, err := scanReminder(r.db.Pool().QueryRow(ctx, query, id))
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, fmt.Errorf("%w: %d", ErrNotFound, id)
	}
	if err != nil {
		r.logger.Error("failed to get reminder",
			zap.Error(err),
			zap.Int64("reminder_id", id),
		)
		return nil, fmt.Errorf("query reminder: %w", err)
	}

	return rem, nil
}

// List returns reminders ordered by next_run ascending. An empty agentID
// matches every agent; activeOnly excludes cancelled/completed rows.
func (r *Repository) List(ctx context.Context, agentID string, activeOnly bool) ([]*Reminder, error) {
	query := `SELECT ` + reminderColumns + ` FROM schedules WHERE TRUE`
	args := []any{}

	if agentID != "" {
		args = append(args, agentID)
		query += fmt.Sprintf(" AND agent_id = $%d", len(args))
	}
	if activeOnly {
		query += " AND active"
	}
	query += " ORDER BY next_run ASC NULLS LAST, id ASC"

	rows, err := r.db.Pool().Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("query reminders: %w", err)
	}
	defer rows.Close()

	var reminders []*Reminder
	for rows.Next() {
		rem, err := scanReminder(rows)
		if err != nil {
			return nil, fmt.Errorf("scan reminder: %w", err)
		}
		reminders = append(reminders, rem)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate rows: %w", err)
	}

	return reminders, nil
}

// Due returns every active reminder whose next_run is at or before now.
func (r *Repository) Due(ctx context.Context, now time.Time) ([]*Reminder, error) {
	query := `
		SELECT ` + reminderColumns + `
		FROM schedules
		WHERE active AND next_run IS NOT NULL AND next_run <= $1
		ORDER BY next_run ASC, id ASC
	`

	rows, err := r.db.Pool().Query(ctx, query, now)
	if err != nil {
		return nil, fmt.Errorf("query due reminders: %w", err)
	}
	defer rows.Close()

	var due []*Reminder
	for rows.Next() {
		rem, err := scanReminder(rows)
		if err != nil {
			return nil, fmt.Errorf("scan reminder: %w", err)
		}
		due = append(due, rem)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate rows: %w", err)
	}

	return due, nil
}

// Update applies a field-level patch to one row. The single UPDATE keeps
// the patch atomic per row. Returns ErrNotFound when no row matches.
func (r *Repository) Update(ctx context.Context, id int64, patch ReminderPatch) error {
	if patch.IsEmpty() {
		return nil
	}

	var sets []string
	var args []any

	add := func(column string, value any) {
		args = append(args, value)
		sets = append(sets, fmt.Sprintf("%s = $%d", column, len(args)))
	}

	if patch.ClearNextRun {
		sets = append(sets, "next_run = NULL")
	} else if patch.NextRun != nil {
		add("next_run", *patch.NextRun)
	}
	if patch.Active != nil {
		add("active", *patch.Active)
	}
	if patch.RepetitionCount != nil {
		add("repetition_count", *patch.RepetitionCount)
	}
	if patch.LastRun != nil {
		add("last_run", *patch.LastRun)
	}

	args = append(args, id)
	query := fmt.Sprintf(
		"UPDATE schedules SET %s WHERE id = $%d",
		strings.Join(sets, ", "), len(args),
	)

	result, err := r.db.Pool().Exec(ctx, query, args...)
	if err != nil {
		r.logger.Error("failed to update reminder",
			zap.Error(err),
			zap.Int64("reminder_id", id),
		)
		return fmt.Errorf("update reminder: %w", err)
	}

	if result.RowsAffected() == 0 {
		return fmt.Errorf("%w: %d", ErrNotFound, id)
	}

	return nil
}

// Cancel deactivates a reminder. The row is kept; retention cleanup is a
// separate concern. Cancelling an already-inactive reminder succeeds;
// ErrNotFound means only that no row with the id exists.
func (r *Repository) Cancel(ctx context.Context, id int64) error {
	result, err := r.db.Pool().Exec(ctx,
		`UPDATE schedules SET active = FALSE WHERE id = $1`, id)
	if err != nil {
		r.logger.Error("failed to cancel reminder",
			zap.Error(err),
			zap.Int64("reminder_id", id),
		)
		return fmt.Errorf("cancel reminder: %w", err)
	}

	if result.RowsAffected() == 0 {
		return fmt.Errorf("%w: %d", ErrNotFound, id)
	}

	r.logger.Info("reminder cancelled", zap.Int64("reminder_id", id))
	return nil
}

// DeleteInactiveOlderThan removes long-inactive rows. Operator-invoked
// retention cleanup, never called by the execution loop.
func (r *Repository) DeleteInactiveOlderThan(ctx context.Context, cutoff time.Time) (int64, error) {
	result, err := r.db.Pool().Exec(ctx,
		`DELETE FROM schedules WHERE NOT active AND created_at < $1`, cutoff)
	if err != nil {
		return 0, fmt.Errorf("delete old reminders: %w", err)
	}

	deleted := result.RowsAffected()
	if deleted > 0 {
		r.logger.Info("old reminders deleted",
			zap.Int64("count", deleted),
			zap.Time("cutoff", cutoff),
		)
	}
	return deleted, nil
}

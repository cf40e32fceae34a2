package scheduler

import (
	"errors"
	"testing"
	"time"

	"go.uber.org/zap"
)

func newValidationService(t *testing.T) *Service {
	t.Helper()
	s := New(nil, nil, nil, zap.NewNop())
	s.now = func() time.Time {
		return time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)
	}
	return s
}

func TestValidateRegistration_MissingArguments(t *testing.T) {
	s := newValidationService(t)

	cases := []RegisterRequest{
		{Message: "hi", Time: "2026-01-01T00:00:00Z"},
		{AgentID: "agent-1", Time: "2026-01-01T00:00:00Z"},
	}
	for _, req := range cases {
		if _, err := s.validateRegistration(req); !errors.Is(err, ErrMissingArgument) {
			t.Errorf("req %+v: expected ErrMissingArgument, got %v", req, err)
		}
	}
}

func TestValidateRegistration_ScheduleOptionExclusivity(t *testing.T) {
	s := newValidationService(t)

	_, err := s.validateRegistration(RegisterRequest{AgentID: "a", Message: "m"})
	if !errors.Is(err, ErrNoScheduleOption) {
		t.Errorf("no options: expected ErrNoScheduleOption, got %v", err)
	}

	conflicting := []RegisterRequest{
		{AgentID: "a", Message: "m", Time: "2026-01-01T00:00:00Z", Cron: "0 9 * * *"},
		{AgentID: "a", Message: "m", Cron: "0 9 * * *", Every: "5m"},
		{AgentID: "a", Message: "m", Time: "2026-01-01T00:00:00Z", Cron: "0 9 * * *", Every: "5m"},
	}
	for _, req := range conflicting {
		if _, err := s.validateRegistration(req); !errors.Is(err, ErrConflictingScheduleOptions) {
			t.Errorf("req %+v: expected ErrConflictingScheduleOptions, got %v", req, err)
		}
	}
}

func TestValidateRegistration_OneTime(t *testing.T) {
	s := newValidationService(t)

	norm, err := s.validateRegistration(RegisterRequest{
		AgentID: "a", Message: "m", Time: "2025-06-01T13:00:00Z",
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if norm.scheduleType != "once" {
		t.Errorf("scheduleType = %q, want once", norm.scheduleType)
	}
	want := time.Date(2025, 6, 1, 13, 0, 0, 0, time.UTC)
	if !norm.nextRun.Equal(want) {
		t.Errorf("nextRun = %v, want %v", norm.nextRun, want)
	}
}

func TestValidateRegistration_OneTimeNotInFuture(t *testing.T) {
	s := newValidationService(t)

	for _, ts := range []string{"2025-06-01T12:00:00Z", "2025-06-01T11:59:59Z", "2020-01-01T00:00:00Z"} {
		_, err := s.validateRegistration(RegisterRequest{AgentID: "a", Message: "m", Time: ts})
		if !errors.Is(err, ErrTimeNotInFuture) {
			t.Errorf("time %q: expected ErrTimeNotInFuture, got %v", ts, err)
		}
	}
}

func TestValidateRegistration_OneTimeBadFormat(t *testing.T) {
	s := newValidationService(t)

	_, err := s.validateRegistration(RegisterRequest{AgentID: "a", Message: "m", Time: "not-a-time"})
	if !errors.Is(err, ErrInvalidTimeFormat) {
		t.Errorf("expected ErrInvalidTimeFormat, got %v", err)
	}
}

func TestValidateRegistration_Cron(t *testing.T) {
	s := newValidationService(t)

	norm, err := s.validateRegistration(RegisterRequest{
		AgentID: "a", Message: "m", Cron: "0 9 * * *",
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if norm.scheduleType != "cron" {
		t.Errorf("scheduleType = %q, want cron", norm.scheduleType)
	}
	// Noon has passed 09:00, so the first fire is tomorrow morning.
	want := time.Date(2025, 6, 2, 9, 0, 0, 0, time.UTC)
	if !norm.nextRun.Equal(want) {
		t.Errorf("nextRun = %v, want %v", norm.nextRun, want)
	}
}

func TestValidateRegistration_CronInvalid(t *testing.T) {
	s := newValidationService(t)

	_, err := s.validateRegistration(RegisterRequest{AgentID: "a", Message: "m", Cron: "99 99 * * *"})
	if !errors.Is(err, ErrInvalidCronExpression) {
		t.Errorf("expected ErrInvalidCronExpression, got %v", err)
	}
}

func TestValidateRegistration_Interval(t *testing.T) {
	s := newValidationService(t)

	norm, err := s.validateRegistration(RegisterRequest{
		AgentID: "a", Message: "m", Every: "5m",
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if norm.scheduleType != "interval" {
		t.Errorf("scheduleType = %q, want interval", norm.scheduleType)
	}
	want := time.Date(2025, 6, 1, 12, 5, 0, 0, time.UTC)
	if !norm.nextRun.Equal(want) {
		t.Errorf("nextRun = %v, want %v", norm.nextRun, want)
	}
}

func TestValidateRegistration_IntervalInvalid(t *testing.T) {
	s := newValidationService(t)

	for _, every := range []string{"5x", "abc", "-30s", "0"} {
		_, err := s.validateRegistration(RegisterRequest{AgentID: "a", Message: "m", Every: every})
		if !errors.Is(err, ErrInvalidIntervalFormat) {
			t.Errorf("every %q: expected ErrInvalidIntervalFormat, got %v", every, err)
		}
	}
}

func TestValidateRegistration_IntervalStartAt(t *testing.T) {
	s := newValidationService(t)

	norm, err := s.validateRegistration(RegisterRequest{
		AgentID: "a", Message: "m", Every: "1h", StartAt: "2025-06-01T18:00:00Z",
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	want := time.Date(2025, 6, 1, 18, 0, 0, 0, time.UTC)
	if !norm.nextRun.Equal(want) {
		t.Errorf("nextRun = %v, want %v", norm.nextRun, want)
	}
}

func TestValidateRegistration_IntervalStartAtInPast(t *testing.T) {
	s := newValidationService(t)

	_, err := s.validateRegistration(RegisterRequest{
		AgentID: "a", Message: "m", Every: "1h", StartAt: "2025-06-01T11:00:00Z",
	})
	if !errors.Is(err, ErrStartTimeNotInFuture) {
		t.Errorf("expected ErrStartTimeNotInFuture, got %v", err)
	}
}

func TestValidateRegistration_MaxRepetitions(t *testing.T) {
	s := newValidationService(t)

	for _, max := range []int{0, -1, -100} {
		m := max
		_, err := s.validateRegistration(RegisterRequest{
			AgentID: "a", Message: "m", Every: "5m", MaxRepetitions: &m,
		})
		if !errors.Is(err, ErrInvalidMaxRepetitions) {
			t.Errorf("max %d: expected ErrInvalidMaxRepetitions, got %v", max, err)
		}
	}

	three := 3
	if _, err := s.validateRegistration(RegisterRequest{
		AgentID: "a", Message: "m", Every: "5m", MaxRepetitions: &three,
	}); err != nil {
		t.Errorf("max 3: unexpected error: %v", err)
	}
}

func TestIsValidationError(t *testing.T) {
	for _, err := range []error{
		ErrMissingArgument,
		ErrNoScheduleOption,
		ErrConflictingScheduleOptions,
		ErrInvalidTimeFormat,
		ErrTimeNotInFuture,
		ErrInvalidCronExpression,
		ErrInvalidIntervalFormat,
		ErrStartTimeNotInFuture,
		ErrInvalidMaxRepetitions,
		ErrAgentValidationFailed,
	} {
		if !IsValidationError(err) {
			t.Errorf("IsValidationError(%v) = false, want true", err)
		}
	}

	if IsValidationError(errors.New("boom")) {
		t.Error("IsValidationError(arbitrary) = true, want false")
	}
}

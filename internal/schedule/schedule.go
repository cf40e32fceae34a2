// Package schedule models the three schedule kinds a reminder can carry
// (once, cron, interval) and computes next occurrences. Values are parsed
// from the free-text schedule_value column, so parsing re-validates even
// though registration already did.
package schedule

import (
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/robfig/cron/v3"
)

// Kind discriminates the schedule union.
type Kind string

const (
	KindOnce     Kind = "once"
	KindCron     Kind = "cron"
	KindInterval Kind = "interval"
)

var (
	// ErrInvalidValue indicates a schedule_value that does not parse for
	// its kind. Rows written through registration are always valid, so
	// hitting this means the row was edited outside the service.
	ErrInvalidValue = errors.New("invalid schedule value")

	// ErrUnknownKind indicates a schedule_type outside the three kinds.
	ErrUnknownKind = errors.New("unknown schedule type")
)

// Spec is a parsed schedule. Exactly one concrete type exists per Kind.
type Spec interface {
	Kind() Kind

	// Next returns the occurrence strictly after base, or ok=false when
	// the schedule has no further occurrences (once-type).
	Next(base time.Time) (next time.Time, ok bool)
}

// Once fires a single time; the fire time lives in the reminder's next_run,
// so the spec itself never produces another occurrence.
type Once struct{}

func (Once) Kind() Kind { return KindOnce }

func (Once) Next(time.Time) (time.Time, bool) { return time.Time{}, false }

// Cron fires per a standard 5-field cron expression.
//
// robfig/cron semantics: when both day-of-month and day-of-week are
// restricted, a time matching either field fires (the traditional cron OR
// combination).
type Cron struct {
	Expr  string
	sched cron.Schedule
}

func (Cron) Kind() Kind { return KindCron }

func (c Cron) Next(base time.Time) (time.Time, bool) {
	return c.sched.Next(base), true
}

// Interval fires every fixed duration, measured from the time of the
// previous delivery rather than the previous next_run. Delivery delay
// therefore drifts the series instead of bunching deliveries to catch up.
type Interval struct {
	Every time.Duration
	Raw   string
}

func (Interval) Kind() Kind { return KindInterval }

func (i Interval) Next(base time.Time) (time.Time, bool) {
	return base.Add(i.Every), true
}

// cronParser accepts the standard 5 fields plus descriptors like @daily.
var cronParser = cron.NewParser(
	cron.Minute | cron.Hour | cron.Dom | cron.Month | cron.Dow | cron.Descriptor,
)

// ParseCron validates a 5-field cron expression.
func ParseCron(expr string) (cron.Schedule, error) {
	sched, err := cronParser.Parse(expr)
	if err != nil {
		return nil, fmt.Errorf("parse cron %q: %w", expr, err)
	}
	return sched, nil
}

// ParseInterval parses an interval token: digits with an optional trailing
// s, m, or h unit. Bare digits are seconds.
func ParseInterval(token string) (time.Duration, error) {
	body := token
	unit := time.Second

	switch {
	case strings.HasSuffix(token, "s"):
		body = token[:len(token)-1]
	case strings.HasSuffix(token, "m"):
		body = token[:len(token)-1]
		unit = time.Minute
	case strings.HasSuffix(token, "h"):
		body = token[:len(token)-1]
		unit = time.Hour
	}

	n, err := strconv.Atoi(body)
	if err != nil || n <= 0 {
		return 0, fmt.Errorf("parse interval %q: %w", token, ErrInvalidValue)
	}
	return time.Duration(n) * unit, nil
}

// Parse rehydrates a Spec from the stored (schedule_type, schedule_value)
// pair. schedule_value is untyped text in storage, so this re-validates
// and reports ErrInvalidValue / ErrUnknownKind for corrupted rows.
func Parse(kind, value string) (Spec, error) {
	switch Kind(kind) {
	case KindOnce:
		return Once{}, nil
	case KindCron:
		sched, err := ParseCron(value)
		if err != nil {
			return nil, fmt.Errorf("%w: %v", ErrInvalidValue, err)
		}
		return Cron{Expr: value, sched: sched}, nil
	case KindInterval:
		every, err := ParseInterval(value)
		if err != nil {
			return nil, err
		}
		return Interval{Every: every, Raw: value}, nil
	default:
		return nil, fmt.Errorf("%w: %q", ErrUnknownKind, kind)
	}
}

// NextOccurrence is the one-shot form of Parse + Next, used when the caller
// holds only the stored column values.
func NextOccurrence(kind, value string, base time.Time) (time.Time, bool, error) {
	spec, err := Parse(kind, value)
	if err != nil {
		return time.Time{}, false, err
	}
	next, ok := spec.Next(base)
	return next, ok, nil
}

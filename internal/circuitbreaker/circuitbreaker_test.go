package circuitbreaker

import (
	"context"
	"testing"
	"time"

	"go.uber.org/zap"
)

func TestCircuitBreaker_OpensAfterMaxFailures(t *testing.T) {
	cb := New(Config{Name: "test", MaxFailures: 3, RecoveryTimeout: time.Minute}, zap.NewNop())

	for i := 0; i < 3; i++ {
		if !cb.Allow() {
			t.Fatalf("request %d rejected while closed", i+1)
		}
		cb.RecordFailure()
	}

	if cb.GetState() != StateOpen {
		t.Errorf("state = %v, want open after 3 failures", cb.GetState())
	}
	if cb.Allow() {
		t.Error("open circuit allowed a request")
	}
}

func TestCircuitBreaker_SuccessResetsFailureCount(t *testing.T) {
	cb := New(Config{Name: "test", MaxFailures: 3, RecoveryTimeout: time.Minute}, zap.NewNop())

	cb.RecordFailure()
	cb.RecordFailure()
	cb.RecordSuccess()
	cb.RecordFailure()
	cb.RecordFailure()

	if cb.GetState() != StateClosed {
		t.Errorf("state = %v, want closed; failures were not consecutive", cb.GetState())
	}
}

func TestCircuitBreaker_ProbeAfterRecoveryTimeout(t *testing.T) {
	cb := New(Config{Name: "test", MaxFailures: 1, RecoveryTimeout: 10 * time.Millisecond}, zap.NewNop())

	cb.RecordFailure()
	if cb.GetState() != StateOpen {
		t.Fatalf("state = %v, want open", cb.GetState())
	}

	time.Sleep(20 * time.Millisecond)

	if !cb.Allow() {
		t.Fatal("probe request rejected after recovery timeout")
	}
	if cb.GetState() != StateHalfOpen {
		t.Errorf("state = %v, want half-open", cb.GetState())
	}

	cb.RecordSuccess()
	if cb.GetState() != StateClosed {
		t.Errorf("state = %v, want closed after successful probe", cb.GetState())
	}
}

func TestCircuitBreaker_FailedProbeReopens(t *testing.T) {
	cb := New(Config{Name: "test", MaxFailures: 1, RecoveryTimeout: 10 * time.Millisecond}, zap.NewNop())

	cb.RecordFailure()
	time.Sleep(20 * time.Millisecond)

	if !cb.Allow() {
		t.Fatal("probe request rejected")
	}
	cb.RecordFailure()

	if cb.GetState() != StateOpen {
		t.Errorf("state = %v, want open after failed probe", cb.GetState())
	}
}

func TestCircuitBreaker_HalfOpenLimitsProbes(t *testing.T) {
	cb := New(Config{Name: "test", MaxFailures: 1, RecoveryTimeout: 10 * time.Millisecond, HalfOpenMaxRequests: 1}, zap.NewNop())

	cb.RecordFailure()
	time.Sleep(20 * time.Millisecond)

	if !cb.Allow() {
		t.Fatal("first probe rejected")
	}
	if cb.Allow() {
		t.Error("second probe allowed in half-open state")
	}
}

func TestCircuitBreaker_Stats(t *testing.T) {
	cb := New(DefaultConfig("test"), zap.NewNop())

	cb.Allow()
	cb.RecordSuccess()
	cb.Allow()
	cb.RecordFailure()

	stats := cb.GetStats()
	if stats.TotalRequests != 2 || stats.TotalSuccesses != 1 || stats.TotalFailures != 1 {
		t.Errorf("stats = %+v", stats)
	}
	if stats.State != "closed" {
		t.Errorf("state = %q, want closed", stats.State)
	}
}

type stubDeliverer struct {
	ok    bool
	calls int
}

func (s *stubDeliverer) Deliver(context.Context, string, string) bool {
	s.calls++
	return s.ok
}

func TestProtectedDeliverer_PassesThroughWhenClosed(t *testing.T) {
	stub := &stubDeliverer{ok: true}
	cb := New(DefaultConfig("test"), zap.NewNop())
	pd := NewProtectedDeliverer(stub, cb, zap.NewNop())

	if !pd.Deliver(context.Background(), "agent-1", "hi") {
		t.Error("delivery failed through a closed circuit")
	}
	if stub.calls != 1 {
		t.Errorf("deliverer called %d times, want 1", stub.calls)
	}
}

func TestProtectedDeliverer_FailsFastWhenOpen(t *testing.T) {
	stub := &stubDeliverer{ok: false}
	cb := New(Config{Name: "test", MaxFailures: 2, RecoveryTimeout: time.Minute}, zap.NewNop())
	pd := NewProtectedDeliverer(stub, cb, zap.NewNop())

	ctx := context.Background()
	pd.Deliver(ctx, "agent-1", "m")
	pd.Deliver(ctx, "agent-1", "m")

	// Circuit is now open; the wrapped deliverer is no longer reached.
	if pd.Deliver(ctx, "agent-1", "m") {
		t.Error("delivery succeeded through an open circuit")
	}
	if stub.calls != 2 {
		t.Errorf("deliverer called %d times, want 2 (fail-fast on third)", stub.calls)
	}
}

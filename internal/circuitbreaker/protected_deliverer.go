package circuitbreaker

import (
	"context"

	"go.uber.org/zap"
)

// Deliverer mirrors the scheduler's delivery capability to avoid a
// circular import.
type Deliverer interface {
	Deliver(ctx context.Context, agentID, message string) bool
}

// ProtectedDeliverer wraps a Deliverer with a CircuitBreaker. When the
// messaging API is down, deliveries fail fast instead of each due reminder
// running its full retry/backoff budget; the rows stay due and retry on a
// later pass once the circuit recovers.
type ProtectedDeliverer struct {
	deliverer Deliverer
	breaker   *CircuitBreaker
	logger    *zap.Logger
}

// NewProtectedDeliverer wraps a deliverer with circuit breaker protection.
func NewProtectedDeliverer(deliverer Deliverer, breaker *CircuitBreaker, logger *zap.Logger) *ProtectedDeliverer {
	return &ProtectedDeliverer{
		deliverer: deliverer,
		breaker:   breaker,
		logger:    logger,
	}
}

// Deliver attempts a delivery through the circuit breaker. An open circuit
// counts as a failed delivery, which the execution loop already treats as
// retry-on-next-pass.
func (p *ProtectedDeliverer) Deliver(ctx context.Context, agentID, message string) bool {
	if !p.breaker.Allow() {
		p.logger.Warn("circuit breaker rejected delivery",
			zap.String("breaker", p.breaker.config.Name),
			zap.String("agent_id", agentID),
			zap.String("state", p.breaker.GetState().String()),
		)
		return false
	}

	ok := p.deliverer.Deliver(ctx, agentID, message)
	if !ok {
		p.breaker.RecordFailure()
		return false
	}

	p.breaker.RecordSuccess()
	return true
}

// Breaker returns the underlying circuit breaker for monitoring.
func (p *ProtectedDeliverer) Breaker() *CircuitBreaker {
	return p.breaker
}

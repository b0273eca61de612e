package timeout

import (
	"context"
	stderrors "errors"
	"fmt"
	"sync"
	"time"
)

// Operation names used by the orchestrator
const (
	OpInference     = "inference"
	OpSubcapability = "subcapability"
	OpStoreRead     = "store_read"
)

// OperationTimeouts defines default timeouts for operations
var OperationTimeouts = map[string]time.Duration{
	OpInference:     90 * time.Second,
	OpSubcapability: 30 * time.Second,
	OpStoreRead:     10 * time.Second,
}

// Manager manages timeout configuration and the inference reserve: the
// minimum time that must remain on the invocation deadline before another
// inference call is worth starting.
type Manager struct {
	global    time.Duration
	reserve   time.Duration
	operation map[string]time.Duration
	now       func() time.Time
	mu        sync.RWMutex
}

// NewManager creates a new timeout manager seeded with OperationTimeouts
func NewManager(globalTimeout, inferenceReserve time.Duration) *Manager {
	ops := make(map[string]time.Duration, len(OperationTimeouts))
	for k, v := range OperationTimeouts {
		ops[k] = v
	}
	return &Manager{
		global:    globalTimeout,
		reserve:   inferenceReserve,
		operation: ops,
		now:       time.Now,
	}
}

// SetOperationTimeout sets timeout for specific operation
func (m *Manager) SetOperationTimeout(operation string, timeout time.Duration) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.operation[operation] = timeout
}

// GetTimeout returns the operation timeout, capped by whatever is left on ctx
func (m *Manager) GetTimeout(ctx context.Context, operation string) time.Duration {
	m.mu.RLock()
	defer m.mu.RUnlock()

	timeout := m.global
	if opTimeout, exists := m.operation[operation]; exists {
		timeout = opTimeout
	}

	if deadline, ok := ctx.Deadline(); ok {
		if remaining := deadline.Sub(m.now()); remaining < timeout {
			return remaining
		}
	}
	return timeout
}

// WithTimeout creates context with timeout
func (m *Manager) WithTimeout(ctx context.Context, operation string) (context.Context, context.CancelFunc) {
	return context.WithTimeout(ctx, m.GetTimeout(ctx, operation))
}

// Remaining returns the time left on ctx, and false when ctx has no deadline
func (m *Manager) Remaining(ctx context.Context) (time.Duration, bool) {
	deadline, ok := ctx.Deadline()
	if !ok {
		return 0, false
	}
	return deadline.Sub(m.now()), true
}

// HasInferenceBudget reports whether an inference call may still start.
// Without a deadline there is always budget.
func (m *Manager) HasInferenceBudget(ctx context.Context) bool {
	if ctx.Err() != nil {
		return false
	}
	remaining, ok := m.Remaining(ctx)
	if !ok {
		return true
	}
	m.mu.RLock()
	defer m.mu.RUnlock()
	return remaining > m.reserve
}

// TimeoutError represents a timeout error
type TimeoutError struct {
	Operation string
	Timeout   time.Duration
}

// Error implements error interface
func (e *TimeoutError) Error() string {
	return fmt.Sprintf("operation %s timed out after %v", e.Operation, e.Timeout)
}

// IsTimeout checks if error is a timeout
func IsTimeout(err error) bool {
	if err == nil {
		return false
	}
	var te *TimeoutError
	if stderrors.As(err, &te) {
		return true
	}
	return stderrors.Is(err, context.DeadlineExceeded)
}

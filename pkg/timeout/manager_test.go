package timeout

import (
	"context"
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestGetTimeoutUsesOperationDefaults(t *testing.T) {
	m := NewManager(time.Minute, 10*time.Second)

	assert.Equal(t, OperationTimeouts[OpSubcapability], m.GetTimeout(context.Background(), OpSubcapability))
	assert.Equal(t, time.Minute, m.GetTimeout(context.Background(), "unknown"))

	m.SetOperationTimeout(OpStoreRead, 3*time.Second)
	assert.Equal(t, 3*time.Second, m.GetTimeout(context.Background(), OpStoreRead))
}

func TestGetTimeoutCappedByDeadline(t *testing.T) {
	m := NewManager(time.Minute, 10*time.Second)
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()

	got := m.GetTimeout(ctx, OpInference)
	assert.LessOrEqual(t, got, 2*time.Second)
	assert.Greater(t, got, time.Duration(0))
}

func TestHasInferenceBudget(t *testing.T) {
	m := NewManager(time.Minute, 20*time.Second)
	assert.True(t, m.HasInferenceBudget(context.Background()))

	short, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	assert.False(t, m.HasInferenceBudget(short))

	long, cancel2 := context.WithTimeout(context.Background(), time.Minute)
	defer cancel2()
	assert.True(t, m.HasInferenceBudget(long))

	done, cancel3 := context.WithCancel(context.Background())
	cancel3()
	assert.False(t, m.HasInferenceBudget(done))
}

func TestIsTimeout(t *testing.T) {
	assert.True(t, IsTimeout(&TimeoutError{Operation: OpInference, Timeout: time.Second}))
	assert.True(t, IsTimeout(fmt.Errorf("call: %w", context.DeadlineExceeded)))
	assert.False(t, IsTimeout(context.Canceled))
	assert.False(t, IsTimeout(nil))
}

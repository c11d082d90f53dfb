package observability

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestAdaptiveTimeout_ShrinksOnFastSuccess(t *testing.T) {
	at := NewAdaptiveTimeout("chat", 10*time.Second, 9*time.Second, 20*time.Second)
	at.RecordSuccess(time.Second)
	assert.Equal(t, 9500*time.Millisecond, at.Current())

	at.RecordSuccess(time.Second)
	at.RecordSuccess(time.Second)
	assert.Equal(t, 9*time.Second, at.Current(), "never below min")

	at.RecordSuccess(8 * time.Second)
	assert.Equal(t, 9*time.Second, at.Current(), "slow success leaves it alone")
}

func TestAdaptiveTimeout_GrowsOnTimeout(t *testing.T) {
	at := NewAdaptiveTimeout("embed", 10*time.Second, time.Second, 12*time.Second)
	at.RecordTimeout()
	assert.Equal(t, 11*time.Second, at.Current())
	at.RecordTimeout()
	assert.Equal(t, 12*time.Second, at.Current(), "never above max")

	at.Reset()
	assert.Equal(t, 10*time.Second, at.Current())
}

func TestAdaptiveTimeout_ClampsBounds(t *testing.T) {
	at := NewAdaptiveTimeout("x", 5*time.Second, 0, time.Second)
	at.RecordTimeout()
	assert.Equal(t, 5*time.Second, at.Current())
	at.RecordSuccess(time.Millisecond)
	assert.Equal(t, 5*time.Second, at.Current())
}

func TestAdaptiveTimeout_WithTimeout(t *testing.T) {
	at := NewAdaptiveTimeout("x", time.Minute, time.Second, time.Hour)
	ctx, cancel := at.WithTimeout(context.Background())
	defer cancel()
	deadline, ok := ctx.Deadline()
	require.True(t, ok)
	assert.WithinDuration(t, time.Now().Add(time.Minute), deadline, time.Second)
}

package portal

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"roster-sync/internal/dto"
	apperrors "roster-sync/pkg/errors"
)

func TestSettle_FixedWaitsFullPeriod(t *testing.T) {
	acc := NewAccumulator()
	acc.Append(dto.ExternalEmployeeNode{ID: "u1"})

	start := time.Now()
	err := Settle(context.Background(), acc, SettleConfig{Mode: SettleFixed, Period: 80 * time.Millisecond, StableWindow: 10 * time.Millisecond})
	require.NoError(t, err)
	assert.GreaterOrEqual(t, time.Since(start), 80*time.Millisecond)
}

func TestSettle_StableReturnsEarly(t *testing.T) {
	acc := NewAccumulator()
	acc.Append(dto.ExternalEmployeeNode{ID: "u1"})

	start := time.Now()
	err := Settle(context.Background(), acc, SettleConfig{
		Mode:         SettleStable,
		Period:       2 * time.Second,
		StableWindow: 50 * time.Millisecond,
		PollInterval: 10 * time.Millisecond,
	})
	require.NoError(t, err)
	assert.Less(t, time.Since(start), time.Second)
}

func TestSettle_StableWithoutPayloadWaitsForMax(t *testing.T) {
	acc := NewAccumulator()

	start := time.Now()
	err := Settle(context.Background(), acc, SettleConfig{
		Mode:         SettleStable,
		Period:       100 * time.Millisecond,
		StableWindow: 10 * time.Millisecond,
		PollInterval: 5 * time.Millisecond,
	})
	require.NoError(t, err)
	assert.GreaterOrEqual(t, time.Since(start), 100*time.Millisecond)
}

func TestSettle_CanceledContext(t *testing.T) {
	ctx, cancel := context.WithCancelCause(context.Background())
	cancel(apperrors.ErrMemoryBudgetExceeded)

	err := Settle(ctx, NewAccumulator(), SettleConfig{Mode: SettleFixed, Period: time.Second})
	require.Error(t, err)

	var sessErr *apperrors.SessionError
	require.True(t, errors.As(err, &sessErr))
	assert.Equal(t, apperrors.StageSettle, sessErr.Stage)
	assert.ErrorIs(t, err, apperrors.ErrMemoryBudgetExceeded)
}

package services

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"go.uber.org/zap"

	apperrors "roster-sync/pkg/errors"
)

func TestMemoryWatchdog_CancelsOverLimit(t *testing.T) {
	wd := NewMemoryWatchdog(64, zap.NewNop())
	wd.interval = 5 * time.Millisecond
	wd.readHeap = func() uint64 { return 128 << 20 }

	ctx, stop := wd.Watch(context.Background())
	defer stop()

	select {
	case <-ctx.Done():
	case <-time.After(time.Second):
		t.Fatal("контекст не отменён при превышении лимита")
	}
	assert.ErrorIs(t, context.Cause(ctx), apperrors.ErrMemoryBudgetExceeded)
}

func TestMemoryWatchdog_UnderLimit(t *testing.T) {
	wd := NewMemoryWatchdog(64, zap.NewNop())
	wd.interval = 5 * time.Millisecond
	wd.readHeap = func() uint64 { return 1 << 20 }

	ctx, stop := wd.Watch(context.Background())
	time.Sleep(30 * time.Millisecond)
	assert.NoError(t, ctx.Err())

	stop()
	assert.Error(t, ctx.Err())
	assert.NotErrorIs(t, context.Cause(ctx), apperrors.ErrMemoryBudgetExceeded)
}

func TestMemoryWatchdog_Disabled(t *testing.T) {
	wd := NewMemoryWatchdog(0, zap.NewNop())
	wd.readHeap = func() uint64 { t.Fatal("без лимита память не опрашивается"); return 0 }

	ctx, stop := wd.Watch(context.Background())
	defer stop()
	assert.NoError(t, ctx.Err())
}

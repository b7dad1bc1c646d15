package listeners

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"roster-sync/internal/dto"
	"roster-sync/internal/events"
	"roster-sync/internal/repositories"
	"roster-sync/pkg/eventbus"
)

type recordingNotifier struct {
	mu      sync.Mutex
	reports []dto.SyncReport
}

func (n *recordingNotifier) NotifySyncFailed(ctx context.Context, report dto.SyncReport) error {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.reports = append(n.reports, report)
	return nil
}

func (n *recordingNotifier) count() int {
	n.mu.Lock()
	defer n.mu.Unlock()
	return len(n.reports)
}

func waitBus(t *testing.T, bus *eventbus.Bus) {
	t.Helper()
	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()
	require.NoError(t, bus.Wait(ctx))
}

func TestSyncListener_SavesStatusOnCompletion(t *testing.T) {
	bus := eventbus.New(zap.NewNop())
	status := repositories.NewMemorySyncStatusRepository()
	notifier := &recordingNotifier{}
	NewSyncListener(status, notifier, zap.NewNop()).Register(bus)

	bus.Publish(context.Background(), events.SyncCompletedEvent{Report: dto.SyncReport{RunID: "r1", Success: true}})
	waitBus(t, bus)

	last, err := status.GetLast(context.Background())
	require.NoError(t, err)
	assert.Equal(t, "r1", last.RunID)
	assert.Equal(t, 0, notifier.count())
}

func TestSyncListener_AlertsOnFailure(t *testing.T) {
	bus := eventbus.New(zap.NewNop())
	status := repositories.NewMemorySyncStatusRepository()
	notifier := &recordingNotifier{}
	NewSyncListener(status, notifier, zap.NewNop()).Register(bus)

	bus.Publish(context.Background(), events.SyncFailedEvent{Report: dto.SyncReport{RunID: "r2", Stage: "login_form"}})
	waitBus(t, bus)

	last, err := status.GetLast(context.Background())
	require.NoError(t, err)
	assert.Equal(t, "r2", last.RunID)
	assert.False(t, last.Success)
	assert.Equal(t, 1, notifier.count())
}

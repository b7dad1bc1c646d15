package eventbus

import (
	"context"
	"errors"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

type testEvent struct{ name string }

func (e testEvent) Name() string { return e.name }

func TestBus_PublishCallsOnlySubscribers(t *testing.T) {
	bus := New(zap.NewNop())

	var hits, other int32
	bus.Subscribe("a", func(ctx context.Context, event Event) error {
		atomic.AddInt32(&hits, 1)
		return nil
	})
	bus.Subscribe("a", func(ctx context.Context, event Event) error {
		atomic.AddInt32(&hits, 1)
		return errors.New("ошибка слушателя не ломает шину")
	})
	bus.Subscribe("b", func(ctx context.Context, event Event) error {
		atomic.AddInt32(&other, 1)
		return nil
	})

	bus.Publish(context.Background(), testEvent{name: "a"})

	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()
	require.NoError(t, bus.Wait(ctx))

	assert.Equal(t, int32(2), atomic.LoadInt32(&hits))
	assert.Equal(t, int32(0), atomic.LoadInt32(&other))
}

func TestBus_ListenerPanicIsContained(t *testing.T) {
	bus := New(zap.NewNop())
	bus.Subscribe("a", func(ctx context.Context, event Event) error {
		panic("boom")
	})

	bus.Publish(context.Background(), testEvent{name: "a"})

	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()
	assert.NoError(t, bus.Wait(ctx))
}

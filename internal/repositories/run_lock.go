package repositories

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"

	apperrors "roster-sync/pkg/errors"
)

const runLockKey = "roster-sync:run-lock"

// RunLockInterface не даёт двум запускам (в том числе из разных процессов) идти одновременно.
type RunLockInterface interface {
	// Acquire возвращает функцию освобождения или ErrSyncInProgress.
	Acquire(ctx context.Context) (release func(ctx context.Context) error, err error)
}

type cacheRunLock struct {
	cache CacheRepositoryInterface
	ttl   time.Duration
}

// NewCacheRunLock - блокировка через SET NX с TTL. TTL должен перекрывать таймаут задания.
func NewCacheRunLock(cache CacheRepositoryInterface, ttl time.Duration) RunLockInterface {
	if ttl <= 0 {
		ttl = 10 * time.Minute
	}
	return &cacheRunLock{cache: cache, ttl: ttl}
}

func (l *cacheRunLock) Acquire(ctx context.Context) (func(ctx context.Context) error, error) {
	token := uuid.NewString()
	ok, err := l.cache.SetNX(ctx, runLockKey, token, l.ttl)
	if err != nil {
		return nil, fmt.Errorf("не удалось взять блокировку запуска: %w", err)
	}
	if !ok {
		return nil, apperrors.ErrSyncInProgress
	}
	return func(ctx context.Context) error {
		if _, err := l.cache.DelIfEquals(ctx, runLockKey, token); err != nil {
			return fmt.Errorf("не удалось снять блокировку запуска: %w", err)
		}
		return nil
	}, nil
}

type localRunLock struct {
	mu   sync.Mutex
	busy bool
}

// NewLocalRunLock - блокировка в пределах процесса, когда Redis не настроен.
func NewLocalRunLock() RunLockInterface {
	return &localRunLock{}
}

func (l *localRunLock) Acquire(ctx context.Context) (func(ctx context.Context) error, error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.busy {
		return nil, apperrors.ErrSyncInProgress
	}
	l.busy = true
	return func(ctx context.Context) error {
		l.mu.Lock()
		l.busy = false
		l.mu.Unlock()
		return nil
	}, nil
}

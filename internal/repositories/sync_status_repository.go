package repositories

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sync"

	"roster-sync/internal/dto"
	apperrors "roster-sync/pkg/errors"
)

const lastRunKey = "roster-sync:last-run"

type SyncStatusRepositoryInterface interface {
	SaveLast(ctx context.Context, report dto.SyncReport) error
	// GetLast возвращает ErrStatusNotRecorded, пока не было ни одного запуска.
	GetLast(ctx context.Context) (*dto.SyncReport, error)
}

type cacheSyncStatusRepository struct {
	cache CacheRepositoryInterface
}

func NewCacheSyncStatusRepository(cache CacheRepositoryInterface) SyncStatusRepositoryInterface {
	return &cacheSyncStatusRepository{cache: cache}
}

func (r *cacheSyncStatusRepository) SaveLast(ctx context.Context, report dto.SyncReport) error {
	raw, err := json.Marshal(report)
	if err != nil {
		return fmt.Errorf("сериализация отчёта: %w", err)
	}
	return r.cache.Set(ctx, lastRunKey, raw, 0)
}

func (r *cacheSyncStatusRepository) GetLast(ctx context.Context) (*dto.SyncReport, error) {
	raw, err := r.cache.Get(ctx, lastRunKey)
	if errors.Is(err, apperrors.ErrNotFound) {
		return nil, apperrors.ErrStatusNotRecorded
	}
	if err != nil {
		return nil, fmt.Errorf("чтение отчёта: %w", err)
	}
	var report dto.SyncReport
	if err := json.Unmarshal([]byte(raw), &report); err != nil {
		return nil, fmt.Errorf("разбор отчёта: %w", err)
	}
	return &report, nil
}

type memorySyncStatusRepository struct {
	mu   sync.RWMutex
	last *dto.SyncReport
}

// NewMemorySyncStatusRepository хранит последний отчёт в памяти процесса.
func NewMemorySyncStatusRepository() SyncStatusRepositoryInterface {
	return &memorySyncStatusRepository{}
}

func (r *memorySyncStatusRepository) SaveLast(ctx context.Context, report dto.SyncReport) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.last = &report
	return nil
}

func (r *memorySyncStatusRepository) GetLast(ctx context.Context) (*dto.SyncReport, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	if r.last == nil {
		return nil, apperrors.ErrStatusNotRecorded
	}
	cp := *r.last
	return &cp, nil
}

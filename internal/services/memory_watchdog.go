// Файл: internal/services/memory_watchdog.go
package services

import (
	"context"
	"runtime"
	"runtime/debug"
	"time"

	"go.uber.org/zap"

	apperrors "roster-sync/pkg/errors"
)

const defaultWatchInterval = 2 * time.Second

// MemoryWatchdog отменяет запуск, если куча процесса выросла выше лимита.
// Память самого браузера (отдельный процесс) сюда не входит: её ограничивает
// таймаут задания и гарантированное закрытие сессии.
type MemoryWatchdog struct {
	limitBytes uint64
	interval   time.Duration
	readHeap   func() uint64
	logger     *zap.Logger
}

func NewMemoryWatchdog(limitMB int64, logger *zap.Logger) *MemoryWatchdog {
	var limit uint64
	if limitMB > 0 {
		limit = uint64(limitMB) << 20
	}
	return &MemoryWatchdog{
		limitBytes: limit,
		interval:   defaultWatchInterval,
		readHeap:   readHeapInuse,
		logger:     logger.Named("MemoryWatchdog"),
	}
}

func readHeapInuse() uint64 {
	var ms runtime.MemStats
	runtime.ReadMemStats(&ms)
	return ms.HeapInuse
}

// ApplySoftLimit выставляет мягкий лимит памяти для GC.
func (w *MemoryWatchdog) ApplySoftLimit() {
	if w.limitBytes == 0 {
		return
	}
	debug.SetMemoryLimit(int64(w.limitBytes))
	w.logger.Info("Установлен мягкий лимит памяти", zap.Uint64("limit_mb", w.limitBytes>>20))
}

// Watch возвращает производный контекст, который отменяется с причиной
// ErrMemoryBudgetExceeded при превышении лимита. stop нужно вызвать всегда.
func (w *MemoryWatchdog) Watch(parent context.Context) (ctx context.Context, stop func()) {
	ctx, cancel := context.WithCancelCause(parent)
	if w.limitBytes == 0 {
		return ctx, func() { cancel(nil) }
	}

	done := make(chan struct{})
	go func() {
		ticker := time.NewTicker(w.interval)
		defer ticker.Stop()
		for {
			select {
			case <-done:
				return
			case <-ctx.Done():
				return
			case <-ticker.C:
				heap := w.readHeap()
				if heap > w.limitBytes {
					w.logger.Error("Превышен лимит памяти, запуск прерывается",
						zap.Uint64("heap_mb", heap>>20),
						zap.Uint64("limit_mb", w.limitBytes>>20))
					cancel(apperrors.ErrMemoryBudgetExceeded)
					return
				}
			}
		}
	}()

	var stopped bool
	return ctx, func() {
		if !stopped {
			stopped = true
			close(done)
		}
		cancel(nil)
	}
}

package events

import (
	"roster-sync/internal/dto"
)

const (
	SyncCompletedName = "sync.completed"
	SyncFailedName    = "sync.failed"
)

// SyncCompletedEvent - запуск синхронизации завершился без ошибок.
type SyncCompletedEvent struct {
	Report dto.SyncReport
}

func (e SyncCompletedEvent) Name() string {
	return SyncCompletedName
}

// SyncFailedEvent - запуск завершился ошибкой. Report.Stage указывает этап.
type SyncFailedEvent struct {
	Report dto.SyncReport
}

func (e SyncFailedEvent) Name() string {
	return SyncFailedName
}

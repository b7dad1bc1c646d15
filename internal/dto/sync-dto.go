// Файл: internal/dto/sync-dto.go
package dto

import "time"

const (
	TriggerSchedule = "schedule"
	TriggerManual   = "manual"
	TriggerCLI      = "cli"
)

// SyncReport - итог одного запуска синхронизации.
type SyncReport struct {
	RunID      string    `json:"run_id"`
	Trigger    string    `json:"trigger"`
	StartedAt  time.Time `json:"started_at"`
	FinishedAt time.Time `json:"finished_at"`
	Success    bool      `json:"success"`
	DryRun     bool      `json:"dry_run"`

	Stage string `json:"stage,omitempty"`
	Error string `json:"error,omitempty"`

	Captured   int `json:"captured"`
	Normalized int `json:"normalized"`
	Created    int `json:"created"`
	Updated    int `json:"updated"`
	Unchanged  int `json:"unchanged"`
	Skipped    int `json:"skipped"`
	Batches    int `json:"batches"`
}

func (r *SyncReport) Duration() time.Duration {
	if r.FinishedAt.IsZero() {
		return 0
	}
	return r.FinishedAt.Sub(r.StartedAt)
}

type SyncRunAcceptedDTO struct {
	Trigger string `json:"trigger"`
	Message string `json:"message"`
}

// TeamMemberExportFilter - фильтр выгрузки состава.
type TeamMemberExportFilter struct {
	Department string `query:"department"`
	Limit      uint64 `query:"limit"`
}

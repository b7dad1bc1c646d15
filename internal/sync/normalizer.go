// Файл: internal/sync/normalizer.go
package sync

import (
	"strings"

	"roster-sync/internal/dto"
	"roster-sync/internal/entities"
	"roster-sync/internal/portal"
)

// Normalize превращает перехваченных сотрудников в записи состава со значениями
// по умолчанию. Без email и без идентификатора запись не сопоставить, такие
// узлы отбрасываются; уволенные отбрасываются повторно.
func Normalize(nodes []dto.ExternalEmployeeNode) []dto.NormalizedEmployeeRecord {
	out := make([]dto.NormalizedEmployeeRecord, 0, len(nodes))
	for _, n := range nodes {
		email := strings.TrimSpace(n.Email)
		id := strings.TrimSpace(n.ID)
		if email == "" || id == "" {
			continue
		}
		if portal.IsTerminated(n.CurrentStatus) {
			continue
		}
		out = append(out, dto.NormalizedEmployeeRecord{
			ID:               id,
			Name:             strings.TrimSpace(n.Name),
			Email:            email,
			Role:             entities.DefaultRole,
			OnboardingStatus: entities.DefaultStatus,
			Department:       entities.DepartmentUnassigned,
			JoinedDate:       strings.TrimSpace(n.JoinedDate),
			Image:            strings.TrimSpace(n.Image),
			Stats:            entities.NeutralStats(),
			Progress:         entities.InitialProgress,
		})
	}
	return out
}

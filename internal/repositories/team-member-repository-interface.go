package repositories

import (
	"context"

	"roster-sync/internal/dto"
	"roster-sync/internal/entities"
)

// TeamMemberRepositoryInterface - хранилище состава команды.
// CommitBatch применяет пакет атомарно: либо весь, либо ничего.
type TeamMemberRepositoryInterface interface {
	IdentitySnapshot(ctx context.Context) (map[string]entities.TeamMemberIdentity, error)
	CommitBatch(ctx context.Context, writes []entities.TeamMemberWrite) error
	FindByID(ctx context.Context, id string) (*entities.TeamMember, error)
	List(ctx context.Context, filter dto.TeamMemberExportFilter) ([]entities.TeamMember, error)
}

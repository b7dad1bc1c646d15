// Файл: internal/sync/engine.go
package sync

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/aarondl/null/v8"
	"go.uber.org/zap"

	"roster-sync/internal/dto"
	"roster-sync/internal/entities"
	"roster-sync/internal/repositories"
	apperrors "roster-sync/pkg/errors"
)

const DefaultBatchSize = 400

type EngineConfig struct {
	BatchSize int
	DryRun    bool
}

// Result - счётчики сверки. Created/Updated считают только закоммиченные записи
// (в dry-run - запланированные).
type Result struct {
	Created   int
	Updated   int
	Unchanged int
	Skipped   int
	Batches   int
}

type EngineInterface interface {
	Reconcile(ctx context.Context, records []dto.NormalizedEmployeeRecord) (Result, error)
}

type Engine struct {
	repo   repositories.TeamMemberRepositoryInterface
	cfg    EngineConfig
	logger *zap.Logger
	now    func() time.Time
}

func NewEngine(repo repositories.TeamMemberRepositoryInterface, cfg EngineConfig, logger *zap.Logger) *Engine {
	if cfg.BatchSize <= 0 {
		cfg.BatchSize = DefaultBatchSize
	}
	return &Engine{
		repo:   repo,
		cfg:    cfg,
		logger: logger.Named("ReconciliationEngine"),
		now:    time.Now,
	}
}

// Reconcile сверяет записи с хранилищем. Новые идентификаторы создаются целиком,
// у существующих обновляются только name, email, joined и непустой image.
// Снимок идентификаторов берётся один раз в начале.
func (e *Engine) Reconcile(ctx context.Context, records []dto.NormalizedEmployeeRecord) (Result, error) {
	var res Result

	unique, skipped := dedupe(records)
	res.Skipped = skipped
	if len(unique) == 0 {
		e.logger.Info("Нет записей для сверки", zap.Int("skipped", res.Skipped))
		return res, nil
	}

	existing, err := e.repo.IdentitySnapshot(ctx)
	if err != nil {
		return res, fmt.Errorf("снимок идентификаторов: %w", err)
	}

	now := e.now().UTC()
	writes := make([]entities.TeamMemberWrite, 0, len(unique))
	for _, rec := range unique {
		current, ok := existing[rec.ID]
		if !ok {
			writes = append(writes, entities.TeamMemberWrite{
				Kind:   entities.WriteCreate,
				Member: newMember(rec, now),
				At:     now,
			})
			continue
		}
		if identityUnchanged(current, rec) {
			res.Unchanged++
			continue
		}
		writes = append(writes, entities.TeamMemberWrite{
			Kind: entities.WriteUpdate,
			Patch: &entities.TeamMemberPatch{
				ID:     rec.ID,
				Name:   rec.Name,
				Email:  rec.Email,
				Joined: rec.JoinedDate,
				Image:  rec.Image,
			},
			At: now,
		})
	}

	e.logger.Info("План сверки",
		zap.Int("records", len(unique)),
		zap.Int("writes", len(writes)),
		zap.Int("unchanged", res.Unchanged),
		zap.Int("skipped", res.Skipped),
		zap.Int("batch_size", e.cfg.BatchSize),
		zap.Bool("dry_run", e.cfg.DryRun))

	for start, idx := 0, 0; start < len(writes); start, idx = start+e.cfg.BatchSize, idx+1 {
		end := start + e.cfg.BatchSize
		if end > len(writes) {
			end = len(writes)
		}
		batch := writes[start:end]

		if e.cfg.DryRun {
			e.logger.Info("dry-run: пакет не записан", zap.Int("batch", idx), zap.Int("size", len(batch)))
		} else if err := e.repo.CommitBatch(ctx, batch); err != nil {
			writeErr := &apperrors.ReconciliationWriteError{BatchIndex: idx, IDs: batchIDs(batch), Err: err}
			e.logger.Error("Ошибка записи пакета, оставшиеся пакеты пропущены",
				zap.Int("batch", idx),
				zap.Strings("ids", writeErr.IDs),
				zap.Int("remaining_writes", len(writes)-start),
				zap.Error(err))
			return res, writeErr
		}

		res.Batches++
		for _, w := range batch {
			if w.Kind == entities.WriteCreate {
				res.Created++
			} else {
				res.Updated++
			}
		}
	}

	return res, nil
}

// dedupe отбрасывает записи без email или id и оставляет последнюю запись
// для повторяющегося идентификатора, сохраняя порядок первого появления.
func dedupe(records []dto.NormalizedEmployeeRecord) ([]dto.NormalizedEmployeeRecord, int) {
	skipped := 0
	pos := make(map[string]int, len(records))
	out := make([]dto.NormalizedEmployeeRecord, 0, len(records))
	for _, rec := range records {
		if strings.TrimSpace(rec.Email) == "" || strings.TrimSpace(rec.ID) == "" {
			skipped++
			continue
		}
		if i, ok := pos[rec.ID]; ok {
			out[i] = rec
			continue
		}
		pos[rec.ID] = len(out)
		out = append(out, rec)
	}
	return out, skipped
}

func identityUnchanged(cur entities.TeamMemberIdentity, rec dto.NormalizedEmployeeRecord) bool {
	if cur.Name != rec.Name || cur.Email != rec.Email || cur.Joined != rec.JoinedDate {
		return false
	}
	return rec.Image == "" || rec.Image == cur.Image
}

// newMember строит полную запись. Отдел всегда Unassigned: назначает его оператор.
func newMember(rec dto.NormalizedEmployeeRecord, now time.Time) *entities.TeamMember {
	m := &entities.TeamMember{
		ID:         rec.ID,
		Name:       rec.Name,
		Email:      rec.Email,
		Role:       rec.Role,
		Status:     rec.OnboardingStatus,
		Department: entities.DepartmentUnassigned,
		Joined:     rec.JoinedDate,
		Stats:      rec.Stats,
		Progress:   rec.Progress,
	}
	if m.Role == "" {
		m.Role = entities.DefaultRole
	}
	if m.Status == "" {
		m.Status = entities.DefaultStatus
	}
	if m.Stats == (entities.Stats{}) {
		m.Stats = entities.NeutralStats()
	}
	if rec.Image != "" {
		m.Image = null.StringFrom(rec.Image)
	}
	m.CreatedAt = now
	m.UpdatedAt = now
	return m
}

func batchIDs(batch []entities.TeamMemberWrite) []string {
	ids := make([]string, 0, len(batch))
	for _, w := range batch {
		ids = append(ids, w.MemberID())
	}
	return ids
}

package repositories

import (
	"context"
	"errors"
	"fmt"

	sq "github.com/Masterminds/squirrel"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"go.uber.org/zap"

	"roster-sync/internal/dto"
	"roster-sync/internal/entities"
	apperrors "roster-sync/pkg/errors"
)

const (
	teamMemberTable  = "team_members"
	teamMemberFields = `id, name, email, role, status, department, joined, image,
		speed, accuracy, hospitality, knowledge, leadership, progress,
		role_rank, pairing, has_login, created_at, updated_at`
)

var psql = sq.StatementBuilder.PlaceholderFormat(sq.Dollar)

type teamMemberRepository struct {
	storage   *pgxpool.Pool
	txManager TxManagerInterface
	logger    *zap.Logger
}

func NewTeamMemberRepository(storage *pgxpool.Pool, txManager TxManagerInterface, logger *zap.Logger) TeamMemberRepositoryInterface {
	return &teamMemberRepository{
		storage:   storage,
		txManager: txManager,
		logger:    logger.Named("TeamMemberRepository"),
	}
}

func (r *teamMemberRepository) IdentitySnapshot(ctx context.Context) (map[string]entities.TeamMemberIdentity, error) {
	query, args, err := psql.
		Select("id", "name", "email", "joined", "COALESCE(image, '')").
		From(teamMemberTable).
		ToSql()
	if err != nil {
		return nil, fmt.Errorf("ошибка сборки SQL для IdentitySnapshot: %w", err)
	}

	rows, err := r.storage.Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("ошибка чтения идентификаторов: %w", err)
	}
	defer rows.Close()

	out := make(map[string]entities.TeamMemberIdentity)
	for rows.Next() {
		var ident entities.TeamMemberIdentity
		if err := rows.Scan(&ident.ID, &ident.Name, &ident.Email, &ident.Joined, &ident.Image); err != nil {
			return nil, fmt.Errorf("ошибка сканирования идентификатора: %w", err)
		}
		out[ident.ID] = ident
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("ошибка итерации идентификаторов: %w", err)
	}
	return out, nil
}

// CommitBatch отправляет весь пакет одним pgx.Batch в одной транзакции.
func (r *teamMemberRepository) CommitBatch(ctx context.Context, writes []entities.TeamMemberWrite) error {
	if len(writes) == 0 {
		return nil
	}

	batch := &pgx.Batch{}
	for _, w := range writes {
		query, args, err := buildWrite(w)
		if err != nil {
			return err
		}
		batch.Queue(query, args...)
	}

	return r.txManager.RunInTransaction(ctx, func(tx pgx.Tx) error {
		br := tx.SendBatch(ctx, batch)
		for i := range writes {
			if _, err := br.Exec(); err != nil {
				_ = br.Close()
				return fmt.Errorf("запись %s (%s): %w", writes[i].MemberID(), writes[i].Kind, err)
			}
		}
		return br.Close()
	})
}

func buildWrite(w entities.TeamMemberWrite) (string, []interface{}, error) {
	switch w.Kind {
	case entities.WriteCreate:
		if w.Member == nil {
			return "", nil, fmt.Errorf("create без записи")
		}
		m := w.Member
		// Параллельно созданная запись не перезаписывается.
		return psql.Insert(teamMemberTable).
			Columns("id", "name", "email", "role", "status", "department", "joined", "image",
				"speed", "accuracy", "hospitality", "knowledge", "leadership", "progress",
				"has_login", "created_at", "updated_at").
			Values(m.ID, m.Name, m.Email, m.Role, m.Status, m.Department, m.Joined, m.Image,
				m.Stats.Speed, m.Stats.Accuracy, m.Stats.Hospitality, m.Stats.Knowledge, m.Stats.Leadership, m.Progress,
				m.HasLogin, w.At, w.At).
			Suffix("ON CONFLICT (id) DO NOTHING").
			ToSql()

	case entities.WriteUpdate:
		if w.Patch == nil {
			return "", nil, fmt.Errorf("update без изменений")
		}
		p := w.Patch
		upd := psql.Update(teamMemberTable).
			Set("name", p.Name).
			Set("email", p.Email).
			Set("joined", p.Joined).
			Set("updated_at", w.At)
		if p.Image != "" {
			upd = upd.Set("image", p.Image)
		}
		return upd.Where(sq.Eq{"id": p.ID}).ToSql()
	}
	return "", nil, fmt.Errorf("неизвестный тип записи: %q", w.Kind)
}

func (r *teamMemberRepository) FindByID(ctx context.Context, id string) (*entities.TeamMember, error) {
	query, args, err := psql.Select(teamMemberFields).From(teamMemberTable).Where(sq.Eq{"id": id}).ToSql()
	if err != nil {
		return nil, fmt.Errorf("ошибка сборки SQL для FindByID: %w", err)
	}
	m, err := scanTeamMember(r.storage.QueryRow(ctx, query, args...))
	if err != nil {
		return nil, err
	}
	return m, nil
}

func (r *teamMemberRepository) List(ctx context.Context, filter dto.TeamMemberExportFilter) ([]entities.TeamMember, error) {
	builder := psql.Select(teamMemberFields).From(teamMemberTable).OrderBy("name ASC", "id ASC")
	if filter.Department != "" {
		builder = builder.Where(sq.Eq{"department": filter.Department})
	}
	if filter.Limit > 0 {
		builder = builder.Limit(filter.Limit)
	}
	query, args, err := builder.ToSql()
	if err != nil {
		return nil, fmt.Errorf("ошибка сборки SQL для List: %w", err)
	}

	rows, err := r.storage.Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("ошибка выборки состава: %w", err)
	}
	defer rows.Close()

	var out []entities.TeamMember
	for rows.Next() {
		m, err := scanTeamMember(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, *m)
	}
	return out, rows.Err()
}

func scanTeamMember(row pgx.Row) (*entities.TeamMember, error) {
	var m entities.TeamMember
	err := row.Scan(
		&m.ID, &m.Name, &m.Email, &m.Role, &m.Status, &m.Department, &m.Joined, &m.Image,
		&m.Stats.Speed, &m.Stats.Accuracy, &m.Stats.Hospitality, &m.Stats.Knowledge, &m.Stats.Leadership, &m.Progress,
		&m.RoleRank, &m.Pairing, &m.HasLogin, &m.CreatedAt, &m.UpdatedAt,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, apperrors.ErrNotFound
		}
		return nil, fmt.Errorf("ошибка сканирования team_members: %w", err)
	}
	return &m, nil
}

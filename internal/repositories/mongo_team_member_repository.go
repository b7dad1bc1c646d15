package repositories

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/aarondl/null/v8"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
	"go.uber.org/zap"

	"roster-sync/internal/dto"
	"roster-sync/internal/entities"
	apperrors "roster-sync/pkg/errors"
)

// teamMemberDocument - форма записи в коллекции. Операторские поля опциональны.
type teamMemberDocument struct {
	ID         string         `bson:"_id"`
	Name       string         `bson:"name"`
	Email      string         `bson:"email"`
	Role       string         `bson:"role"`
	Status     string         `bson:"status"`
	Department string         `bson:"department"`
	Joined     string         `bson:"joined"`
	Image      *string        `bson:"image,omitempty"`
	Stats      entities.Stats `bson:"stats"`
	Progress   int            `bson:"progress"`
	RoleRank   *int           `bson:"roleRank,omitempty"`
	Pairing    *string        `bson:"pairing,omitempty"`
	HasLogin   bool           `bson:"hasLogin"`
	CreatedAt  time.Time      `bson:"createdAt"`
	UpdatedAt  time.Time      `bson:"updatedAt"`
}

func (d teamMemberDocument) toEntity() entities.TeamMember {
	m := entities.TeamMember{
		ID:         d.ID,
		Name:       d.Name,
		Email:      d.Email,
		Role:       d.Role,
		Status:     d.Status,
		Department: d.Department,
		Joined:     d.Joined,
		Image:      null.StringFromPtr(d.Image),
		Stats:      d.Stats,
		Progress:   d.Progress,
		RoleRank:   null.IntFromPtr(d.RoleRank),
		Pairing:    null.StringFromPtr(d.Pairing),
		HasLogin:   d.HasLogin,
	}
	m.CreatedAt = d.CreatedAt
	m.UpdatedAt = d.UpdatedAt
	return m
}

type mongoTeamMemberRepository struct {
	client *mongo.Client
	coll   *mongo.Collection
	logger *zap.Logger
}

func NewMongoTeamMemberRepository(client *mongo.Client, database, collection string, logger *zap.Logger) TeamMemberRepositoryInterface {
	return &mongoTeamMemberRepository{
		client: client,
		coll:   client.Database(database).Collection(collection),
		logger: logger.Named("MongoTeamMemberRepository"),
	}
}

// EnsureMongoIndexes создаёт индекс по отделу для выгрузки Unassigned.
func EnsureMongoIndexes(ctx context.Context, client *mongo.Client, database, collection string) error {
	_, err := client.Database(database).Collection(collection).Indexes().CreateOne(ctx, mongo.IndexModel{
		Keys: bson.D{{Key: "department", Value: 1}},
	})
	if err != nil {
		return fmt.Errorf("создание индекса department: %w", err)
	}
	return nil
}

func (r *mongoTeamMemberRepository) IdentitySnapshot(ctx context.Context) (map[string]entities.TeamMemberIdentity, error) {
	opts := options.Find().SetProjection(bson.M{"_id": 1, "name": 1, "email": 1, "joined": 1, "image": 1})
	cur, err := r.coll.Find(ctx, bson.M{}, opts)
	if err != nil {
		return nil, fmt.Errorf("ошибка чтения идентификаторов: %w", err)
	}
	defer cur.Close(ctx)

	out := make(map[string]entities.TeamMemberIdentity)
	for cur.Next(ctx) {
		var doc teamMemberDocument
		if err := cur.Decode(&doc); err != nil {
			return nil, fmt.Errorf("ошибка декодирования идентификатора: %w", err)
		}
		ident := entities.TeamMemberIdentity{ID: doc.ID, Name: doc.Name, Email: doc.Email, Joined: doc.Joined}
		if doc.Image != nil {
			ident.Image = *doc.Image
		}
		out[ident.ID] = ident
	}
	if err := cur.Err(); err != nil {
		return nil, fmt.Errorf("ошибка итерации идентификаторов: %w", err)
	}
	return out, nil
}

// CommitBatch выполняет упорядоченный BulkWrite в транзакции сессии.
// Создание идёт через upsert с $setOnInsert, поэтому существующая запись не перезаписывается.
func (r *mongoTeamMemberRepository) CommitBatch(ctx context.Context, writes []entities.TeamMemberWrite) error {
	if len(writes) == 0 {
		return nil
	}

	models := make([]mongo.WriteModel, 0, len(writes))
	for _, w := range writes {
		model, err := buildMongoWrite(w)
		if err != nil {
			return err
		}
		models = append(models, model)
	}

	session, err := r.client.StartSession()
	if err != nil {
		return fmt.Errorf("не удалось начать сессию MongoDB: %w", err)
	}
	defer session.EndSession(ctx)

	_, err = session.WithTransaction(ctx, func(sc mongo.SessionContext) (interface{}, error) {
		return r.coll.BulkWrite(sc, models, options.BulkWrite().SetOrdered(true))
	})
	if err != nil {
		return fmt.Errorf("ошибка BulkWrite: %w", err)
	}
	return nil
}

func buildMongoWrite(w entities.TeamMemberWrite) (mongo.WriteModel, error) {
	switch w.Kind {
	case entities.WriteCreate:
		if w.Member == nil {
			return nil, fmt.Errorf("create без записи")
		}
		m := w.Member
		onInsert := bson.M{
			"name":       m.Name,
			"email":      m.Email,
			"role":       m.Role,
			"status":     m.Status,
			"department": m.Department,
			"joined":     m.Joined,
			"stats":      m.Stats,
			"progress":   m.Progress,
			"hasLogin":   m.HasLogin,
			"createdAt":  w.At,
			"updatedAt":  w.At,
		}
		if m.Image.Valid {
			onInsert["image"] = m.Image.String
		}
		return mongo.NewUpdateOneModel().
			SetFilter(bson.M{"_id": m.ID}).
			SetUpdate(bson.M{"$setOnInsert": onInsert}).
			SetUpsert(true), nil

	case entities.WriteUpdate:
		if w.Patch == nil {
			return nil, fmt.Errorf("update без изменений")
		}
		p := w.Patch
		set := bson.M{
			"name":      p.Name,
			"email":     p.Email,
			"joined":    p.Joined,
			"updatedAt": w.At,
		}
		if p.Image != "" {
			set["image"] = p.Image
		}
		return mongo.NewUpdateOneModel().
			SetFilter(bson.M{"_id": p.ID}).
			SetUpdate(bson.M{"$set": set}), nil
	}
	return nil, fmt.Errorf("неизвестный тип записи: %q", w.Kind)
}

func (r *mongoTeamMemberRepository) FindByID(ctx context.Context, id string) (*entities.TeamMember, error) {
	var doc teamMemberDocument
	err := r.coll.FindOne(ctx, bson.M{"_id": id}).Decode(&doc)
	if err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return nil, apperrors.ErrNotFound
		}
		return nil, fmt.Errorf("ошибка поиска записи %s: %w", id, err)
	}
	m := doc.toEntity()
	return &m, nil
}

func (r *mongoTeamMemberRepository) List(ctx context.Context, filter dto.TeamMemberExportFilter) ([]entities.TeamMember, error) {
	query := bson.M{}
	if filter.Department != "" {
		query["department"] = filter.Department
	}
	opts := options.Find().SetSort(bson.D{{Key: "name", Value: 1}, {Key: "_id", Value: 1}})
	if filter.Limit > 0 {
		opts.SetLimit(int64(filter.Limit))
	}

	cur, err := r.coll.Find(ctx, query, opts)
	if err != nil {
		return nil, fmt.Errorf("ошибка выборки состава: %w", err)
	}
	defer cur.Close(ctx)

	var out []entities.TeamMember
	for cur.Next(ctx) {
		var doc teamMemberDocument
		if err := cur.Decode(&doc); err != nil {
			return nil, fmt.Errorf("ошибка декодирования записи: %w", err)
		}
		out = append(out, doc.toEntity())
	}
	return out, cur.Err()
}

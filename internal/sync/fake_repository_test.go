package sync

import (
	"context"
	"errors"
	stdsync "sync"

	"roster-sync/internal/dto"
	"roster-sync/internal/entities"
	apperrors "roster-sync/pkg/errors"
)

// memoryRepo - хранилище в памяти с учётом коммитов.
type memoryRepo struct {
	mu          stdsync.Mutex
	members     map[string]entities.TeamMember
	commitSizes []int
	failOnBatch int
	snapshotErr error
}

func newMemoryRepo(seed ...entities.TeamMember) *memoryRepo {
	r := &memoryRepo{members: make(map[string]entities.TeamMember), failOnBatch: -1}
	for _, m := range seed {
		r.members[m.ID] = m
	}
	return r
}

func (r *memoryRepo) IdentitySnapshot(ctx context.Context) (map[string]entities.TeamMemberIdentity, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.snapshotErr != nil {
		return nil, r.snapshotErr
	}
	out := make(map[string]entities.TeamMemberIdentity, len(r.members))
	for id, m := range r.members {
		out[id] = m.Identity()
	}
	return out, nil
}

func (r *memoryRepo) CommitBatch(ctx context.Context, writes []entities.TeamMemberWrite) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.failOnBatch == len(r.commitSizes) {
		r.commitSizes = append(r.commitSizes, len(writes))
		return errors.New("хранилище недоступно")
	}
	r.commitSizes = append(r.commitSizes, len(writes))
	for _, w := range writes {
		switch w.Kind {
		case entities.WriteCreate:
			if _, exists := r.members[w.Member.ID]; !exists {
				r.members[w.Member.ID] = *w.Member
			}
		case entities.WriteUpdate:
			m, ok := r.members[w.Patch.ID]
			if !ok {
				continue
			}
			m.ApplyPatch(*w.Patch, w.At)
			r.members[m.ID] = m
		}
	}
	return nil
}

func (r *memoryRepo) FindByID(ctx context.Context, id string) (*entities.TeamMember, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	m, ok := r.members[id]
	if !ok {
		return nil, apperrors.ErrNotFound
	}
	return &m, nil
}

func (r *memoryRepo) List(ctx context.Context, filter dto.TeamMemberExportFilter) ([]entities.TeamMember, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []entities.TeamMember
	for _, m := range r.members {
		if filter.Department == "" || m.Department == filter.Department {
			out = append(out, m)
		}
	}
	return out, nil
}

func (r *memoryRepo) state() map[string]entities.TeamMember {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make(map[string]entities.TeamMember, len(r.members))
	for k, v := range r.members {
		out[k] = v
	}
	return out
}

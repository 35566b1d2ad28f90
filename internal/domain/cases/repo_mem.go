package cases

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"
)

// memRepo is the in-memory fallback store used when no database is
// configured. Cases do not survive a restart.
type memRepo struct {
	mu    sync.RWMutex
	cases map[uuid.UUID]*Case
}

func NewRepoMem() Repository {
	return &memRepo{cases: make(map[uuid.UUID]*Case)}
}

func (r *memRepo) Create(_ context.Context, c *Case) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	c.ID = uuid.New()
	now := time.Now().UTC()
	c.CreatedAt = now
	c.UpdatedAt = now
	stored := *c
	r.cases[c.ID] = &stored
	return nil
}

func (r *memRepo) GetByID(_ context.Context, id uuid.UUID) (*Case, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	c, ok := r.cases[id]
	if !ok {
		return nil, ErrNotFound
	}
	copied := *c
	return &copied, nil
}

func (r *memRepo) List(_ context.Context, limit, offset int) ([]*Case, int, error) {
	return r.list(func(*Case) bool { return true }, limit, offset)
}

func (r *memRepo) ListByVia(_ context.Context, via string, limit, offset int) ([]*Case, int, error) {
	return r.list(func(c *Case) bool { return string(c.Via) == via }, limit, offset)
}

func (r *memRepo) list(keep func(*Case) bool, limit, offset int) ([]*Case, int, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	var all []*Case
	for _, c := range r.cases {
		if keep(c) {
			all = append(all, c)
		}
	}
	sort.Slice(all, func(i, j int) bool {
		return all[i].CreatedAt.After(all[j].CreatedAt)
	})

	total := len(all)
	if offset >= total {
		return nil, total, nil
	}
	all = all[offset:]
	if limit > 0 && limit < len(all) {
		all = all[:limit]
	}

	out := make([]*Case, len(all))
	for i, c := range all {
		copied := *c
		out[i] = &copied
	}
	return out, total, nil
}

func (r *memRepo) Delete(_ context.Context, id uuid.UUID) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.cases[id]; !ok {
		return ErrNotFound
	}
	delete(r.cases, id)
	return nil
}

package integration

import (
	"context"
	"sync"
	"time"

	"github.com/google/uuid"
)

// memoryRepo keeps sources in process. Used when no database is configured.
type memoryRepo struct {
	mu      sync.RWMutex
	sources map[string]*Source
	order   []string
}

func NewMemoryRepo() SourceRepository {
	return &memoryRepo{sources: make(map[string]*Source)}
}

func (r *memoryRepo) Create(_ context.Context, s *Source) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.sources[s.Name]; ok {
		return ErrDuplicateSource
	}
	s.ID = uuid.New()
	now := time.Now().UTC()
	s.CreatedAt, s.UpdatedAt = now, now
	cp := *s
	r.sources[s.Name] = &cp
	r.order = append(r.order, s.Name)
	return nil
}

func (r *memoryRepo) GetByName(_ context.Context, name string) (*Source, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	s, ok := r.sources[name]
	if !ok {
		return nil, ErrSourceNotFound
	}
	cp := *s
	return &cp, nil
}

// List returns sources newest first.
func (r *memoryRepo) List(_ context.Context, limit, offset int) ([]*Source, int, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	total := len(r.order)
	items := make([]*Source, 0, limit)
	for i := total - 1 - offset; i >= 0 && len(items) < limit; i-- {
		cp := *r.sources[r.order[i]]
		items = append(items, &cp)
	}
	return items, total, nil
}

func (r *memoryRepo) Delete(_ context.Context, name string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.sources[name]; !ok {
		return ErrSourceNotFound
	}
	delete(r.sources, name)
	for i, n := range r.order {
		if n == name {
			r.order = append(r.order[:i], r.order[i+1:]...)
			break
		}
	}
	return nil
}

package outcomes

import (
	"context"
	"sort"
	"sync"
)

// MemoryRepo stores outcomes in memory and is safe for concurrent use.
type MemoryRepo struct {
	mu   sync.RWMutex
	byID map[string]Record
}

// NewMemoryRepo constructs a MemoryRepo.
func NewMemoryRepo() *MemoryRepo {
	return &MemoryRepo{byID: make(map[string]Record)}
}

// Save stores rec, keeping the original CreatedAt when the id already exists.
func (r *MemoryRepo) Save(ctx context.Context, rec Record) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	if existing, ok := r.byID[rec.CorrelationID]; ok {
		rec.CreatedAt = existing.CreatedAt
	}
	r.byID[rec.CorrelationID] = rec
	return nil
}

// GetByCorrelationID returns the record or ErrNotFound.
func (r *MemoryRepo) GetByCorrelationID(ctx context.Context, correlationID string) (Record, error) {
	if err := ctx.Err(); err != nil {
		return Record{}, err
	}
	r.mu.RLock()
	defer r.mu.RUnlock()
	rec, ok := r.byID[correlationID]
	if !ok {
		return Record{}, ErrNotFound
	}
	return rec, nil
}

// ListRecent returns the newest records first.
func (r *MemoryRepo) ListRecent(ctx context.Context, limit int) ([]Record, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	limit = clampLimit(limit)
	r.mu.RLock()
	items := make([]Record, 0, len(r.byID))
	for _, rec := range r.byID {
		items = append(items, rec)
	}
	r.mu.RUnlock()

	sort.Slice(items, func(i, j int) bool {
		if items[i].CreatedAt.Equal(items[j].CreatedAt) {
			return items[i].CorrelationID < items[j].CorrelationID
		}
		return items[i].CreatedAt.After(items[j].CreatedAt)
	})
	if len(items) > limit {
		items = items[:limit]
	}
	return items, nil
}

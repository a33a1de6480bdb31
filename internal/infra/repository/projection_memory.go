package repository

import (
	"context"
	"sort"
	"sync"

	"github.com/totegamma/factguard"
	"github.com/totegamma/factguard/internal/domain"
	"github.com/totegamma/factguard/internal/usecase"
)

type MemoryProjectionRepository struct {
	mu    sync.RWMutex
	facts map[string]domain.PublishedFact
}

var _ usecase.ProjectionStore = (*MemoryProjectionRepository)(nil)

func NewMemoryProjectionRepository() *MemoryProjectionRepository {
	return &MemoryProjectionRepository{facts: make(map[string]domain.PublishedFact)}
}

func (r *MemoryProjectionRepository) Save(ctx context.Context, fact domain.PublishedFact) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.facts[fact.Record.FactID] = fact
	return nil
}

func (r *MemoryProjectionRepository) Get(ctx context.Context, factID string) (domain.PublishedFact, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	fact, ok := r.facts[factID]
	if !ok {
		return domain.PublishedFact{}, domain.NewError(domain.CodeNotFound, "published fact %s", factID)
	}
	return fact, nil
}

func (r *MemoryProjectionRepository) GetByHash(ctx context.Context, hash factguard.FactHash) (domain.PublishedFact, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	for _, fact := range r.facts {
		if fact.FactHash == hash {
			return fact, nil
		}
	}
	return domain.PublishedFact{}, domain.NewError(domain.CodeNotFound, "published fact %s", hash.Hex())
}

func (r *MemoryProjectionRepository) UpdateStatus(ctx context.Context, hash factguard.FactHash, status factguard.Status) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	for id, fact := range r.facts {
		if fact.FactHash == hash {
			fact.Record.Status = status
			r.facts[id] = fact
			return nil
		}
	}
	return domain.NewError(domain.CodeNotFound, "published fact %s", hash.Hex())
}

func (r *MemoryProjectionRepository) List(ctx context.Context, limit, offset int) ([]domain.PublishedFact, int64, error) {
	r.mu.RLock()
	all := make([]domain.PublishedFact, 0, len(r.facts))
	for _, fact := range r.facts {
		all = append(all, fact)
	}
	r.mu.RUnlock()

	sort.Slice(all, func(i, j int) bool {
		a, b := all[i].Record, all[j].Record
		if !a.IssuedAt.Equal(b.IssuedAt) {
			return a.IssuedAt.After(b.IssuedAt)
		}
		return a.FactID < b.FactID
	})

	total := int64(len(all))
	if offset >= len(all) {
		return []domain.PublishedFact{}, total, nil
	}
	all = all[offset:]
	if limit > 0 && limit < len(all) {
		all = all[:limit]
	}
	return all, total, nil
}

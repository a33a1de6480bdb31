package repository

import (
	"context"
	"sync"

	"github.com/totegamma/factguard"
	"github.com/totegamma/factguard/internal/domain"
	"github.com/totegamma/factguard/internal/usecase"
)

// MemoryRegistryRepository keeps the registry in process memory.
type MemoryRegistryRepository struct {
	mu       sync.RWMutex
	entries  map[factguard.FactHash]domain.RegistryEntry
	bindings map[string]factguard.FactHash
	writer   factguard.Identity
	sequence uint64
}

var _ usecase.RegistryStore = (*MemoryRegistryRepository)(nil)

func NewMemoryRegistryRepository() *MemoryRegistryRepository {
	return &MemoryRegistryRepository{
		entries:  make(map[factguard.FactHash]domain.RegistryEntry),
		bindings: make(map[string]factguard.FactHash),
	}
}

func (r *MemoryRegistryRepository) Insert(ctx context.Context, entry domain.RegistryEntry, prev *factguard.FactHash) (domain.RegistryEntry, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, ok := r.entries[entry.FactHash]; ok {
		return domain.RegistryEntry{}, domain.NewError(domain.CodeAlreadyExists, "%s is already registered", entry.FactHash.Hex())
	}

	bound, ok := r.bindings[entry.FactID]
	if ok != (prev != nil) || (ok && bound != *prev) {
		return domain.RegistryEntry{}, domain.NewError(domain.CodeIdentifierConflict, "binding for %s changed concurrently", entry.FactID)
	}

	r.sequence++
	entry.Sequence = r.sequence
	r.entries[entry.FactHash] = entry
	r.bindings[entry.FactID] = entry.FactHash
	return entry, nil
}

func (r *MemoryRegistryRepository) Get(ctx context.Context, hash factguard.FactHash) (domain.RegistryEntry, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	entry, ok := r.entries[hash]
	if !ok {
		return domain.RegistryEntry{}, domain.NewError(domain.CodeNotFound, "fact %s", hash.Hex())
	}
	return entry, nil
}

func (r *MemoryRegistryRepository) ResolveID(ctx context.Context, factID string) (factguard.FactHash, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	hash, ok := r.bindings[factID]
	if !ok {
		return factguard.FactHash{}, domain.NewError(domain.CodeNotFound, "fact id %s", factID)
	}
	return hash, nil
}

func (r *MemoryRegistryRepository) UpdateStatus(ctx context.Context, hash factguard.FactHash, from, to factguard.Status) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	entry, ok := r.entries[hash]
	if !ok {
		return domain.NewError(domain.CodeNotFound, "fact %s", hash.Hex())
	}
	if entry.Status != from {
		return domain.NewError(domain.CodeInvalidTransition, "%s is %s, expected %s", hash.Hex(), entry.Status, from)
	}
	entry.Status = to
	r.entries[hash] = entry
	return nil
}

func (r *MemoryRegistryRepository) Writer(ctx context.Context) (factguard.Identity, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.writer, nil
}

func (r *MemoryRegistryRepository) SetWriter(ctx context.Context, prev, next factguard.Identity) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.writer != prev {
		return domain.NewError(domain.CodeUnauthorized, "writer changed concurrently")
	}
	r.writer = next
	return nil
}

func (r *MemoryRegistryRepository) Count(ctx context.Context) (uint64, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return uint64(len(r.entries)), nil
}

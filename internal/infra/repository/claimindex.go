package repository

import (
	"context"
	"strings"
	"sync"

	"github.com/zeebo/xxh3"

	"github.com/totegamma/factguard"
	"github.com/totegamma/factguard/internal/usecase"
)

const claimIndexPageSize = 200

type claimSlot struct {
	text string
	hash factguard.FactHash
}

// ClaimIndex maps exact claim text to the hash of the fact that answers it.
// Text is compared after lower-casing and collapsing whitespace.
type ClaimIndex struct {
	mu    sync.RWMutex
	slots map[uint64][]claimSlot
}

var _ usecase.ClaimIndex = (*ClaimIndex)(nil)

func NewClaimIndex() *ClaimIndex {
	return &ClaimIndex{slots: make(map[uint64][]claimSlot)}
}

func normalizeClaim(text string) string {
	return strings.Join(strings.Fields(strings.ToLower(text)), " ")
}

func (i *ClaimIndex) Put(ctx context.Context, claimText string, hash factguard.FactHash) error {
	text := normalizeClaim(claimText)
	if text == "" {
		return nil
	}
	key := xxh3.HashString(text)

	i.mu.Lock()
	defer i.mu.Unlock()

	slots := i.slots[key]
	for n := range slots {
		if slots[n].text == text {
			slots[n].hash = hash
			return nil
		}
	}
	i.slots[key] = append(slots, claimSlot{text: text, hash: hash})
	return nil
}

func (i *ClaimIndex) Lookup(ctx context.Context, claimText string) (factguard.FactHash, bool, error) {
	text := normalizeClaim(claimText)
	key := xxh3.HashString(text)

	i.mu.RLock()
	defer i.mu.RUnlock()

	for _, slot := range i.slots[key] {
		if slot.text == text {
			return slot.hash, true, nil
		}
	}
	return factguard.FactHash{}, false, nil
}

func (i *ClaimIndex) Len() int {
	i.mu.RLock()
	defer i.mu.RUnlock()
	n := 0
	for _, slots := range i.slots {
		n += len(slots)
	}
	return n
}

// LoadFrom fills the index from every published fact in store.
func (i *ClaimIndex) LoadFrom(ctx context.Context, store usecase.ProjectionStore) error {
	for offset := 0; ; offset += claimIndexPageSize {
		facts, _, err := store.List(ctx, claimIndexPageSize, offset)
		if err != nil {
			return err
		}
		for _, fact := range facts {
			if err := i.Put(ctx, fact.Record.ClaimText, fact.FactHash); err != nil {
				return err
			}
		}
		if len(facts) < claimIndexPageSize {
			return nil
		}
	}
}

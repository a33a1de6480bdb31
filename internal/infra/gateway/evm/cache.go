package evm

import (
	"encoding/json"
	"errors"
	"log/slog"
	"time"

	"github.com/bradfitz/gomemcache/memcache"

	"github.com/totegamma/factguard"
	"github.com/totegamma/factguard/internal/domain"
)

// Memcache is the subset of *memcache.Client used for entry caching.
type Memcache interface {
	Get(key string) (*memcache.Item, error)
	Set(item *memcache.Item) error
	Delete(key string) error
}

// EntryCache keeps hash lookups so repeated verifications skip the RPC round trip.
// Only superseded and withdrawn entries are stored: an active entry can change
// at any moment, a terminal one never does. A cache failure is never fatal.
type EntryCache struct {
	mc  Memcache
	ttl time.Duration
}

func NewEntryCache(mc Memcache, ttl time.Duration) *EntryCache {
	if ttl < time.Second {
		ttl = time.Second
	}
	return &EntryCache{mc: mc, ttl: ttl}
}

func entryKey(hash factguard.FactHash) string {
	return "factguard:entry:" + hash.Hex()
}

func (c *EntryCache) Get(hash factguard.FactHash) (domain.RegistryEntry, bool) {
	item, err := c.mc.Get(entryKey(hash))
	if err != nil {
		if !errors.Is(err, memcache.ErrCacheMiss) {
			slog.Debug("entry cache read failed", slog.String("error", err.Error()), slog.String("module", "evm"))
		}
		return domain.RegistryEntry{}, false
	}
	var entry domain.RegistryEntry
	if err := json.Unmarshal(item.Value, &entry); err != nil {
		return domain.RegistryEntry{}, false
	}
	return entry, true
}

func (c *EntryCache) Put(entry domain.RegistryEntry) {
	if !entry.Status.Terminal() {
		return
	}
	value, err := json.Marshal(entry)
	if err != nil {
		return
	}
	err = c.mc.Set(&memcache.Item{
		Key:        entryKey(entry.FactHash),
		Value:      value,
		Expiration: int32(c.ttl / time.Second),
	})
	if err != nil {
		slog.Debug("entry cache write failed", slog.String("error", err.Error()), slog.String("module", "evm"))
	}
}

func (c *EntryCache) Invalidate(hash factguard.FactHash) {
	err := c.mc.Delete(entryKey(hash))
	if err != nil && !errors.Is(err, memcache.ErrCacheMiss) {
		slog.Debug("entry cache delete failed", slog.String("error", err.Error()), slog.String("module", "evm"))
	}
}

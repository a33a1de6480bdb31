package usecase

import (
	"context"

	"github.com/totegamma/factguard"
	"github.com/totegamma/factguard/internal/domain"
)

// RegistryStore persists registry entries, the fact id binding and the writer identity.
// Get and ResolveID return domain.ErrNotFound for unknown keys.
type RegistryStore interface {
	// Insert adds entry and binds entry.FactID to its hash. The binding is
	// replaced only if it currently points at prev (nil meaning unbound);
	// otherwise it fails with ErrIdentifierConflict. A duplicate hash fails
	// with ErrAlreadyExists. The store assigns entry.Sequence.
	Insert(ctx context.Context, entry domain.RegistryEntry, prev *factguard.FactHash) (domain.RegistryEntry, error)
	Get(ctx context.Context, hash factguard.FactHash) (domain.RegistryEntry, error)
	ResolveID(ctx context.Context, factID string) (factguard.FactHash, error)
	// UpdateStatus moves hash from one status to another, failing with
	// ErrInvalidTransition if the stored status is no longer from.
	UpdateStatus(ctx context.Context, hash factguard.FactHash, from, to factguard.Status) error
	// Writer returns the null identity until one has been set.
	Writer(ctx context.Context) (factguard.Identity, error)
	SetWriter(ctx context.Context, prev, next factguard.Identity) error
	Count(ctx context.Context) (uint64, error)
}

// EventPublisher delivers committed registry events to subscribers.
type EventPublisher interface {
	Publish(ctx context.Context, event domain.Event) error
}

// RegistryClient is the narrow interface the coordinator and verifier use.
// Transport failures are reported as *domain.TransportError.
type RegistryClient interface {
	Exists(ctx context.Context, hash factguard.FactHash) (bool, factguard.Status, error)
	Register(ctx context.Context, reg domain.Registration) (domain.Receipt, error)
	LookupByHash(ctx context.Context, hash factguard.FactHash) (domain.RegistryEntry, error)
	LookupByID(ctx context.Context, factID string) (domain.RegistryEntry, error)
}

// RegistryAdmin adds the writer-only lifecycle operations.
type RegistryAdmin interface {
	RegistryClient
	UpdateStatus(ctx context.Context, hash factguard.FactHash, status factguard.Status) (domain.Receipt, error)
	TransferWriter(ctx context.Context, next factguard.Identity) (domain.Receipt, error)
	Stats(ctx context.Context) (domain.Stats, error)
}

// ProjectionStore keeps the off-chain copy of published records, keyed by fact id.
type ProjectionStore interface {
	Save(ctx context.Context, fact domain.PublishedFact) error
	Get(ctx context.Context, factID string) (domain.PublishedFact, error)
	GetByHash(ctx context.Context, hash factguard.FactHash) (domain.PublishedFact, error)
	// UpdateStatus sets the lifecycle status of the fact projected under hash.
	// It fails with domain.ErrNotFound when no projected fact has that hash.
	UpdateStatus(ctx context.Context, hash factguard.FactHash, status factguard.Status) error
	List(ctx context.Context, limit, offset int) ([]domain.PublishedFact, int64, error)
}

// ClaimIndex resolves free claim text to a registered fact hash.
type ClaimIndex interface {
	Put(ctx context.Context, claimText string, hash factguard.FactHash) error
	Lookup(ctx context.Context, claimText string) (factguard.FactHash, bool, error)
}

// Fallback produces a non-authoritative analysis for claims with no registered fact.
type Fallback interface {
	Analyze(ctx context.Context, claimText string) (domain.FallbackAnalysis, error)
}

// CommitLog keeps every accepted signed command for audit.
type CommitLog interface {
	Append(ctx context.Context, sd factguard.SignedDocument, signer factguard.Identity, schema string, receipt domain.Receipt) error
}

package usecase

import (
	"context"
	"errors"
	"log/slog"
	"sync"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"

	"github.com/totegamma/factguard"
	"github.com/totegamma/factguard/internal/domain"
	"github.com/totegamma/factguard/internal/metrics"
)

var tracer = otel.Tracer("usecase")

const DefaultClockSkew = 5 * time.Minute

// Registry is the authoritative append-only store of fact registrations.
// Mutations are serialized and only the current writer may perform them.
type Registry struct {
	store     RegistryStore
	publisher EventPublisher
	metrics   *metrics.Metrics
	now       func() time.Time
	skew      time.Duration
	mu        sync.Mutex
}

type RegistryOption func(*Registry)

func WithClock(now func() time.Time) RegistryOption {
	return func(r *Registry) { r.now = now }
}

// WithClockSkew sets how far in the future issued_at may lie.
func WithClockSkew(skew time.Duration) RegistryOption {
	return func(r *Registry) { r.skew = skew }
}

func WithPublisher(publisher EventPublisher) RegistryOption {
	return func(r *Registry) { r.publisher = publisher }
}

func WithRegistryMetrics(m *metrics.Metrics) RegistryOption {
	return func(r *Registry) { r.metrics = m }
}

func NewRegistry(store RegistryStore, opts ...RegistryOption) *Registry {
	r := &Registry{
		store: store,
		now:   time.Now,
		skew:  DefaultClockSkew,
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// Bootstrap sets the initial writer if none is set yet and returns the current writer.
func (r *Registry) Bootstrap(ctx context.Context, writer factguard.Identity) (factguard.Identity, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	current, err := r.store.Writer(ctx)
	if err != nil {
		return factguard.Identity{}, err
	}
	if !factguard.IsNullIdentity(current) {
		return current, nil
	}
	if factguard.IsNullIdentity(writer) {
		return factguard.Identity{}, domain.NewError(domain.CodeInvalidIdentity, "initial writer must not be null")
	}
	if err := r.store.SetWriter(ctx, current, writer); err != nil {
		return factguard.Identity{}, err
	}
	slog.InfoContext(ctx, "registry writer initialized",
		slog.String("writer", writer.Hex()),
		slog.String("module", "registry"),
	)
	return writer, nil
}

func (r *Registry) authorize(ctx context.Context, caller factguard.Identity) (factguard.Identity, error) {
	writer, err := r.store.Writer(ctx)
	if err != nil {
		return factguard.Identity{}, err
	}
	if factguard.IsNullIdentity(writer) || caller != writer {
		return writer, domain.NewError(domain.CodeUnauthorized, "%s is not the registry writer", caller.Hex())
	}
	return writer, nil
}

// Register records reg under its fact hash with status ACTIVE.
func (r *Registry) Register(ctx context.Context, caller factguard.Identity, reg domain.Registration) (entry domain.RegistryEntry, err error) {
	ctx, span := tracer.Start(ctx, "Registry.Usecase.Register")
	defer span.End()
	span.SetAttributes(attribute.String("fact_hash", reg.FactHash.Hex()), attribute.String("fact_id", reg.FactID))
	defer func() { r.record("register", err, span) }()

	r.mu.Lock()
	defer r.mu.Unlock()

	if _, err = r.authorize(ctx, caller); err != nil {
		return domain.RegistryEntry{}, err
	}
	if err = r.validate(reg); err != nil {
		return domain.RegistryEntry{}, err
	}

	_, err = r.store.Get(ctx, reg.FactHash)
	switch {
	case err == nil:
		return domain.RegistryEntry{}, domain.NewError(domain.CodeAlreadyExists, "%s is already registered", reg.FactHash.Hex())
	case !errors.Is(err, domain.ErrNotFound):
		return domain.RegistryEntry{}, err
	}

	var prev *factguard.FactHash
	bound, err := r.store.ResolveID(ctx, reg.FactID)
	switch {
	case err == nil:
		current, err := r.store.Get(ctx, bound)
		if err != nil {
			return domain.RegistryEntry{}, err
		}
		if !current.Status.Terminal() {
			return domain.RegistryEntry{}, domain.NewError(domain.CodeIdentifierConflict, "fact id %s is bound to active hash %s", reg.FactID, bound.Hex())
		}
		if reg.Version < current.Version {
			return domain.RegistryEntry{}, domain.NewError(domain.CodeInvalidVersion, "version %d is older than registered version %d", reg.Version, current.Version)
		}
		prev = &bound
	case !errors.Is(err, domain.ErrNotFound):
		return domain.RegistryEntry{}, err
	}

	entry, err = r.store.Insert(ctx, domain.RegistryEntry{
		FactHash:       reg.FactHash,
		FactID:         reg.FactID,
		Verdict:        reg.Verdict,
		Severity:       reg.Severity,
		IssuedAt:       reg.IssuedAt.UTC(),
		LastReviewedAt: reg.LastReviewedAt.UTC(),
		Version:        reg.Version,
		Status:         factguard.StatusActive,
		Registrant:     caller,
		RegisteredAt:   r.now().UTC(),
	}, prev)
	if err != nil {
		return domain.RegistryEntry{}, err
	}

	r.publish(ctx, domain.Event{
		Type: domain.EventFactRegistered,
		Registered: &domain.FactRegistered{
			FactHash: entry.FactHash,
			FactID:   entry.FactID,
			Verdict:  entry.Verdict,
			Severity: entry.Severity,
			IssuedAt: entry.IssuedAt,
			Version:  entry.Version,
			Writer:   caller,
			Sequence: entry.Sequence,
		},
	})

	return entry, nil
}

func (r *Registry) validate(reg domain.Registration) error {
	switch {
	case reg.FactHash.IsZero():
		return domain.NewError(domain.CodeCanonicalization, "fact hash is required")
	case reg.FactID == "":
		return domain.NewError(domain.CodeCanonicalization, "fact id is required")
	case !reg.Verdict.Valid():
		return domain.NewError(domain.CodeCanonicalization, "unknown verdict %d", uint8(reg.Verdict))
	case !reg.Severity.Valid():
		return domain.NewError(domain.CodeCanonicalization, "unknown severity %d", uint8(reg.Severity))
	case reg.IssuedAt.IsZero():
		return domain.NewError(domain.CodeInvalidTimestamp, "issued_at is required")
	case reg.IssuedAt.After(r.now().Add(r.skew)):
		return domain.NewError(domain.CodeInvalidTimestamp, "issued_at %s is in the future", reg.IssuedAt.UTC().Format(time.RFC3339))
	case reg.LastReviewedAt.Before(reg.IssuedAt):
		return domain.NewError(domain.CodeInvalidTimestamp, "last_reviewed_at precedes issued_at")
	case reg.Version < 1:
		return domain.NewError(domain.CodeInvalidVersion, "version must be at least 1")
	}
	return nil
}

// UpdateStatus moves an ACTIVE fact to SUPERSEDED or WITHDRAWN.
func (r *Registry) UpdateStatus(ctx context.Context, caller factguard.Identity, hash factguard.FactHash, status factguard.Status) (entry domain.RegistryEntry, err error) {
	ctx, span := tracer.Start(ctx, "Registry.Usecase.UpdateStatus")
	defer span.End()
	span.SetAttributes(attribute.String("fact_hash", hash.Hex()), attribute.String("status", status.String()))
	defer func() { r.record("update_status", err, span) }()

	r.mu.Lock()
	defer r.mu.Unlock()

	if _, err = r.authorize(ctx, caller); err != nil {
		return domain.RegistryEntry{}, err
	}
	if !status.Valid() {
		return domain.RegistryEntry{}, domain.NewError(domain.CodeInvalidTransition, "unknown status %d", uint8(status))
	}

	entry, err = r.store.Get(ctx, hash)
	if err != nil {
		return domain.RegistryEntry{}, err
	}
	if entry.Status == status {
		return domain.RegistryEntry{}, domain.NewError(domain.CodeNoOp, "%s is already %s", hash.Hex(), status)
	}
	if !entry.Status.CanTransition(status) {
		return domain.RegistryEntry{}, domain.NewError(domain.CodeInvalidTransition, "%s cannot move from %s to %s", hash.Hex(), entry.Status, status)
	}

	previous := entry.Status
	if err = r.store.UpdateStatus(ctx, hash, previous, status); err != nil {
		return domain.RegistryEntry{}, err
	}
	entry.Status = status

	r.publish(ctx, domain.Event{
		Type: domain.EventFactStatusChanged,
		StatusChanged: &domain.FactStatusChanged{
			FactHash: hash,
			FactID:   entry.FactID,
			Previous: previous,
			Status:   status,
			Writer:   caller,
		},
	})

	return entry, nil
}

// TransferWriter hands the writer role to next.
func (r *Registry) TransferWriter(ctx context.Context, caller, next factguard.Identity) (err error) {
	ctx, span := tracer.Start(ctx, "Registry.Usecase.TransferWriter")
	defer span.End()
	defer func() { r.record("transfer_writer", err, span) }()

	r.mu.Lock()
	defer r.mu.Unlock()

	current, err := r.authorize(ctx, caller)
	if err != nil {
		return err
	}
	if factguard.IsNullIdentity(next) {
		return domain.NewError(domain.CodeInvalidIdentity, "new writer must not be null")
	}
	if next == current {
		return domain.NewError(domain.CodeInvalidIdentity, "%s is already the writer", next.Hex())
	}
	if err = r.store.SetWriter(ctx, current, next); err != nil {
		return err
	}

	slog.InfoContext(ctx, "registry writer transferred",
		slog.String("previous", current.Hex()),
		slog.String("writer", next.Hex()),
		slog.String("module", "registry"),
	)

	r.publish(ctx, domain.Event{
		Type:          domain.EventWriterChanged,
		WriterChanged: &domain.WriterChanged{Previous: current, Writer: next},
	})
	return nil
}

func (r *Registry) LookupByHash(ctx context.Context, hash factguard.FactHash) (domain.RegistryEntry, error) {
	ctx, span := tracer.Start(ctx, "Registry.Usecase.LookupByHash")
	defer span.End()

	return r.store.Get(ctx, hash)
}

// LookupByID resolves the hash currently bound to factID.
func (r *Registry) LookupByID(ctx context.Context, factID string) (domain.RegistryEntry, error) {
	ctx, span := tracer.Start(ctx, "Registry.Usecase.LookupByID")
	defer span.End()

	hash, err := r.store.ResolveID(ctx, factID)
	if err != nil {
		return domain.RegistryEntry{}, err
	}
	return r.store.Get(ctx, hash)
}

func (r *Registry) Exists(ctx context.Context, hash factguard.FactHash) (bool, factguard.Status, error) {
	entry, err := r.store.Get(ctx, hash)
	if errors.Is(err, domain.ErrNotFound) {
		return false, 0, nil
	}
	if err != nil {
		return false, 0, err
	}
	return true, entry.Status, nil
}

func (r *Registry) Stats(ctx context.Context) (domain.Stats, error) {
	total, err := r.store.Count(ctx)
	if err != nil {
		return domain.Stats{}, err
	}
	writer, err := r.store.Writer(ctx)
	if err != nil {
		return domain.Stats{}, err
	}
	return domain.Stats{TotalFacts: total, Writer: writer}, nil
}

// publish is called after commit. Delivery failures never undo a mutation.
func (r *Registry) publish(ctx context.Context, event domain.Event) {
	if r.publisher == nil {
		return
	}
	event.EmittedAt = r.now().UTC()
	if err := r.publisher.Publish(ctx, event); err != nil {
		slog.WarnContext(ctx, "failed to publish registry event",
			slog.String("type", string(event.Type)),
			slog.String("error", err.Error()),
			slog.String("module", "registry"),
		)
	}
}

func (r *Registry) record(operation string, err error, span trace.Span) {
	if err == nil {
		r.metrics.IncMutation(operation, "ok")
		return
	}
	code, ok := domain.CodeOf(err)
	if !ok {
		code = "error"
	}
	r.metrics.IncMutation(operation, string(code))
	span.RecordError(err)
}

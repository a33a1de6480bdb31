package usecase

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"github.com/totegamma/factguard"
	"github.com/totegamma/factguard/internal/domain"
)

// Projector keeps the published-fact projection and the claim index in step
// with registry writes. The registry stays authoritative: projection failures
// are logged, never returned to the writer.
type Projector struct {
	projection ProjectionStore
	index      ClaimIndex
	publisher  string
	now        func() time.Time
}

var _ EventPublisher = (*Projector)(nil)

// NewProjector returns a projector. projection and index may each be nil.
func NewProjector(projection ProjectionStore, index ClaimIndex, publisher string) *Projector {
	return &Projector{
		projection: projection,
		index:      index,
		publisher:  publisher,
		now:        time.Now,
	}
}

// Project stores record as the active published fact for hash and indexes its claim.
func (p *Projector) Project(ctx context.Context, record factguard.FactRecord, hash factguard.FactHash, receipt *domain.Receipt) {
	if p == nil {
		return
	}
	logger := slog.With(slog.String("module", "projector"), slog.String("fact_id", record.FactID))

	if p.projection != nil {
		fact := domain.PublishedFact{
			Record:    record,
			FactHash:  hash,
			Publisher: p.publisher,
			CreatedAt: p.now().UTC(),
		}
		fact.Record.Status = factguard.StatusActive
		if receipt != nil {
			fact.TxRef = receipt.TxRef
			fact.Sequence = receipt.Sequence
			fact.Block = receipt.Block
		}
		if err := p.projection.Save(ctx, fact); err != nil {
			logger.WarnContext(ctx, "projection write failed", slog.String("error", err.Error()))
		}
	}
	if p.index != nil {
		if err := p.index.Put(ctx, record.ClaimText, hash); err != nil {
			logger.WarnContext(ctx, "claim index write failed", slog.String("error", err.Error()))
		}
	}
}

// Publish follows status changes into the projection. Hashes that were never
// projected here are ignored.
func (p *Projector) Publish(ctx context.Context, event domain.Event) error {
	if p == nil || p.projection == nil {
		return nil
	}
	if event.Type != domain.EventFactStatusChanged || event.StatusChanged == nil {
		return nil
	}

	changed := event.StatusChanged
	err := p.projection.UpdateStatus(ctx, changed.FactHash, changed.Status)
	if errors.Is(err, domain.ErrNotFound) {
		return nil
	}
	return err
}

// Publishers delivers each event to every publisher in order.
type Publishers []EventPublisher

func (ps Publishers) Publish(ctx context.Context, event domain.Event) error {
	var errs []error
	for _, p := range ps {
		if err := p.Publish(ctx, event); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

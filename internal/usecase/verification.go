package usecase

import (
	"context"
	"errors"
	"log/slog"

	"golang.org/x/sync/errgroup"

	"github.com/totegamma/factguard"
	"github.com/totegamma/factguard/internal/domain"
	"github.com/totegamma/factguard/internal/metrics"
)

const DefaultVerifyConcurrency = 8

// VerificationUsecase checks claims against the registry.
// Only an ACTIVE entry ever yields Verified.
type VerificationUsecase struct {
	client      RegistryClient
	metrics     *metrics.Metrics
	concurrency int
}

func NewVerificationUsecase(client RegistryClient, m *metrics.Metrics, concurrency int) *VerificationUsecase {
	if concurrency <= 0 {
		concurrency = DefaultVerifyConcurrency
	}
	return &VerificationUsecase{client: client, metrics: m, concurrency: concurrency}
}

// Verify always returns a definite outcome.
func (uc *VerificationUsecase) Verify(ctx context.Context, claim domain.NormalizedClaim) domain.VerificationOutcome {
	ctx, span := tracer.Start(ctx, "Verification.Usecase.Verify")
	defer span.End()

	outcome := uc.verify(ctx, claim)
	uc.metrics.IncVerification(string(outcome.Kind), reasonLabel(outcome))
	return outcome
}

func reasonLabel(outcome domain.VerificationOutcome) string {
	switch outcome.Reason {
	case "", domain.ReasonUnresolved, domain.ReasonNotFound, domain.ReasonUnavailable, domain.ReasonIDMismatch:
		return outcome.Reason
	}
	if outcome.Status.Terminal() {
		return outcome.Status.String()
	}
	return "other"
}

func (uc *VerificationUsecase) verify(ctx context.Context, claim domain.NormalizedClaim) domain.VerificationOutcome {
	if claim.FactHash.IsZero() && claim.FactID == "" {
		return domain.NoAuthoritativeMatch(factguard.FactHash{}, domain.ReasonUnresolved)
	}

	entry, err := uc.lookup(ctx, claim)
	if err != nil && domain.IsTransport(err) {
		// Reads are safe to repeat; check once more before giving up.
		entry, err = uc.lookup(ctx, claim)
	}
	if err != nil {
		switch {
		case errors.Is(err, domain.ErrNotFound):
			return domain.NoAuthoritativeMatch(claim.FactHash, domain.ReasonNotFound)
		case domain.IsTransport(err):
			slog.WarnContext(ctx, "registry unavailable during verification",
				slog.String("error", err.Error()),
				slog.String("module", "verification"),
			)
			return domain.NoAuthoritativeMatch(claim.FactHash, domain.ReasonUnavailable)
		default:
			return domain.NoAuthoritativeMatch(claim.FactHash, err.Error())
		}
	}

	if !claim.FactHash.IsZero() && claim.FactID != "" && entry.FactID != claim.FactID {
		return domain.NoAuthoritativeMatch(entry.FactHash, domain.ReasonIDMismatch)
	}
	if entry.Status != factguard.StatusActive {
		outcome := domain.NoAuthoritativeMatch(entry.FactHash, "fact is "+entry.Status.String())
		outcome.FactID = entry.FactID
		outcome.Status = entry.Status
		return outcome
	}
	return domain.Verified(entry)
}

// lookup gives the hash precedence over the fact id.
func (uc *VerificationUsecase) lookup(ctx context.Context, claim domain.NormalizedClaim) (domain.RegistryEntry, error) {
	if !claim.FactHash.IsZero() {
		return uc.client.LookupByHash(ctx, claim.FactHash)
	}
	return uc.client.LookupByID(ctx, claim.FactID)
}

// VerifyBatch verifies claims concurrently. Outcomes are in input order.
func (uc *VerificationUsecase) VerifyBatch(ctx context.Context, claims []domain.NormalizedClaim) []domain.VerificationOutcome {
	ctx, span := tracer.Start(ctx, "Verification.Usecase.VerifyBatch")
	defer span.End()

	outcomes := make([]domain.VerificationOutcome, len(claims))
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(uc.concurrency)
	for i, claim := range claims {
		g.Go(func() error {
			outcomes[i] = uc.Verify(gctx, claim)
			return nil
		})
	}
	_ = g.Wait()
	return outcomes
}

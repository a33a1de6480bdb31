package usecase

import (
	"context"
	"strings"

	"github.com/pkg/errors"

	"github.com/totegamma/factguard/internal/domain"
)

const maxCheckSources = 3

// CheckUsecase answers free text claims, registry first.
type CheckUsecase struct {
	verifier   *VerificationUsecase
	index      ClaimIndex
	projection ProjectionStore
	fallback   Fallback
}

func NewCheckUsecase(verifier *VerificationUsecase, index ClaimIndex, projection ProjectionStore, fallback Fallback) *CheckUsecase {
	return &CheckUsecase{
		verifier:   verifier,
		index:      index,
		projection: projection,
		fallback:   fallback,
	}
}

// Check resolves text through the claim index and verifies it against the registry.
// Without a verified fact it defers to the fallback analyzer, if configured.
func (uc *CheckUsecase) Check(ctx context.Context, text, channel string) (domain.CheckResult, error) {
	ctx, span := tracer.Start(ctx, "Check.Usecase.Check")
	defer span.End()

	text = strings.TrimSpace(text)
	if text == "" {
		return domain.CheckResult{}, errors.New("claim text is required")
	}

	if uc.index != nil {
		hash, found, err := uc.index.Lookup(ctx, text)
		if err != nil {
			span.RecordError(errors.Wrap(err, "claim index lookup failed"))
		}
		if found {
			outcome := uc.verifier.Verify(ctx, domain.NormalizedClaim{FactHash: hash, ClaimText: text})
			if outcome.Verified() {
				return uc.fromRegistry(ctx, text, channel, outcome), nil
			}
		}
	}

	if uc.fallback == nil {
		return domain.CheckResult{
			NormalizedClaim:    text,
			Verdict:            "unproven",
			Severity:           "low",
			Explanation:        "No registered fact matches this claim.",
			Sources:            []domain.Source{},
			Channel:            channel,
			VerificationMethod: domain.MethodNone,
		}, nil
	}

	analysis, err := uc.fallback.Analyze(ctx, text)
	if err != nil {
		span.RecordError(err)
		return domain.CheckResult{}, errors.Wrap(err, "fallback analysis failed")
	}
	sources := analysis.Sources
	if sources == nil {
		sources = []domain.Source{}
	}
	return domain.CheckResult{
		NormalizedClaim:    analysis.NormalizedClaim,
		Verdict:            analysis.Verdict,
		Severity:           analysis.Severity,
		Explanation:        analysis.Explanation,
		Sources:            sources,
		Channel:            channel,
		VerificationMethod: domain.MethodFallback,
	}, nil
}

func (uc *CheckUsecase) fromRegistry(ctx context.Context, text, channel string, outcome domain.VerificationOutcome) domain.CheckResult {
	result := domain.CheckResult{
		NormalizedClaim:    text,
		Verdict:            outcome.Verdict.String(),
		Severity:           outcome.Severity.String(),
		Sources:            []domain.Source{},
		Channel:            channel,
		OnChainVerified:    true,
		FactID:             outcome.FactID,
		FactHash:           outcome.FactHash.Hex(),
		VerificationMethod: domain.MethodOnChain,
	}
	if uc.projection == nil {
		return result
	}

	fact, err := uc.projection.GetByHash(ctx, outcome.FactHash)
	if err != nil {
		return result
	}
	result.NormalizedClaim = fact.Record.ClaimText
	result.Explanation = fact.Record.Summary
	for i, ev := range fact.Record.Evidence {
		if i == maxCheckSources {
			break
		}
		result.Sources = append(result.Sources, domain.Source{Name: ev.Title, URL: ev.URL})
	}
	return result
}

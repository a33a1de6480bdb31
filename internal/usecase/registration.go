package usecase

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/google/uuid"

	"github.com/totegamma/factguard"
	"github.com/totegamma/factguard/internal/canonical"
	"github.com/totegamma/factguard/internal/domain"
	"github.com/totegamma/factguard/internal/metrics"
)

const ReasonConfirmedByRecheck = "confirmed by re-check"

// RegistrationUsecase drives a batch of records into the registry.
// Re-running it on the same batch is safe: already registered records are skipped.
type RegistrationUsecase struct {
	client    RegistryClient
	projector *Projector
	metrics   *metrics.Metrics
}

func NewRegistrationUsecase(
	client RegistryClient,
	projection ProjectionStore,
	index ClaimIndex,
	m *metrics.Metrics,
	publisher string,
) *RegistrationUsecase {
	return &RegistrationUsecase{
		client:    client,
		projector: NewProjector(projection, index, publisher),
		metrics:   m,
	}
}

// RegisterAll processes records in order and partitions them into the report.
// It never aborts the batch on a single failure.
func (uc *RegistrationUsecase) RegisterAll(ctx context.Context, records []factguard.FactRecord) domain.RegistrationReport {
	ctx, span := tracer.Start(ctx, "Registration.Usecase.RegisterAll")
	defer span.End()

	report := domain.RegistrationReport{
		RunID:      uuid.NewString(),
		Registered: []domain.RegistrationItem{},
		Skipped:    []domain.RegistrationItem{},
		Failed:     []domain.RegistrationItem{},
	}
	logger := slog.With(slog.String("run_id", report.RunID), slog.String("module", "registration"))

	for _, record := range records {
		if err := ctx.Err(); err != nil {
			report.Failed = append(report.Failed, domain.RegistrationItem{
				FactID:    record.FactID,
				Reason:    fmt.Sprintf("run cancelled: %v", err),
				Retryable: true,
			})
			continue
		}
		uc.registerOne(ctx, logger, record, &report)
	}

	uc.metrics.AddRegistrationItems("registered", len(report.Registered))
	uc.metrics.AddRegistrationItems("skipped", len(report.Skipped))
	uc.metrics.AddRegistrationItems("failed", len(report.Failed))

	logger.InfoContext(ctx, "registration run finished",
		slog.Int("total", report.Total()),
		slog.Int("registered", len(report.Registered)),
		slog.Int("skipped", len(report.Skipped)),
		slog.Int("failed", len(report.Failed)),
	)
	return report
}

func (uc *RegistrationUsecase) registerOne(ctx context.Context, logger *slog.Logger, record factguard.FactRecord, report *domain.RegistrationReport) {
	item := domain.RegistrationItem{FactID: record.FactID}

	hash, _, err := canonical.HashRecord(record)
	if err != nil {
		item.Reason = err.Error()
		report.Failed = append(report.Failed, item)
		logger.WarnContext(ctx, "record rejected", slog.String("fact_id", record.FactID), slog.String("error", err.Error()))
		return
	}
	item.FactHash = hash

	exists, status, err := uc.client.Exists(ctx, hash)
	if err != nil {
		item.Reason = err.Error()
		item.Retryable = domain.IsTransport(err)
		report.Failed = append(report.Failed, item)
		logger.WarnContext(ctx, "existence check failed", slog.String("fact_id", record.FactID), slog.String("error", err.Error()))
		return
	}
	if exists {
		item.Reason = fmt.Sprintf("already registered (%s)", status)
		report.Skipped = append(report.Skipped, item)
		return
	}

	receipt, err := uc.client.Register(ctx, domain.RegistrationFor(hash, record))
	switch {
	case err == nil:
		item.Receipt = &receipt
	case errors.Is(err, domain.ErrAlreadyExists), errors.Is(err, domain.ErrIdentifierConflict):
		item.Reason = err.Error()
		report.Skipped = append(report.Skipped, item)
		return
	case domain.IsTransport(err):
		// The write may have landed. Re-read instead of resubmitting.
		confirmed, _, recheckErr := uc.client.Exists(ctx, hash)
		if recheckErr != nil || !confirmed {
			item.Reason = err.Error()
			item.Retryable = true
			report.Failed = append(report.Failed, item)
			logger.WarnContext(ctx, "registration outcome unknown", slog.String("fact_id", record.FactID), slog.String("error", err.Error()))
			return
		}
		item.Reason = ReasonConfirmedByRecheck
	default:
		item.Reason = err.Error()
		report.Failed = append(report.Failed, item)
		logger.WarnContext(ctx, "registration rejected", slog.String("fact_id", record.FactID), slog.String("error", err.Error()))
		return
	}

	report.Registered = append(report.Registered, item)
	logger.InfoContext(ctx, "fact registered",
		slog.String("fact_id", record.FactID),
		slog.String("fact_hash", hash.Hex()),
	)
	uc.projector.Project(ctx, record, hash, item.Receipt)
}

package usecase

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"

	"github.com/totegamma/factguard"
	"github.com/totegamma/factguard/internal/canonical"
	"github.com/totegamma/factguard/internal/domain"
	"github.com/totegamma/factguard/schemas"
)

// ErrMalformedCommand marks a signed document that is not a usable command.
var ErrMalformedCommand = errors.New("malformed command")

// CommitUsecase applies authenticated signed commands to the registry.
type CommitUsecase struct {
	registry  *Registry
	log       CommitLog
	projector *Projector
}

// NewCommitUsecase returns a usecase backed by registry. log and projector may be nil.
// Registrations that carry their record are projected after they commit.
func NewCommitUsecase(registry *Registry, log CommitLog, projector *Projector) *CommitUsecase {
	return &CommitUsecase{registry: registry, log: log, projector: projector}
}

// Commit dispatches sd by schema. signer must already be authenticated against sd.
func (uc *CommitUsecase) Commit(ctx context.Context, signer factguard.Identity, sd factguard.SignedDocument) (domain.Receipt, error) {
	ctx, span := tracer.Start(ctx, "Commit.Usecase.Commit")
	defer span.End()

	var header factguard.Command[json.RawMessage]
	if err := json.Unmarshal([]byte(sd.Document), &header); err != nil {
		span.RecordError(err)
		return domain.Receipt{}, fmt.Errorf("%w: %v", ErrMalformedCommand, err)
	}

	receipt, err := uc.apply(ctx, signer, header)
	if err != nil {
		span.RecordError(err)
		return domain.Receipt{}, err
	}

	if uc.log != nil {
		if err := uc.log.Append(ctx, sd, signer, header.Schema, receipt); err != nil {
			slog.WarnContext(ctx, "commit log append failed",
				slog.String("module", "commit"),
				slog.String("schema", header.Schema),
				slog.String("error", err.Error()),
			)
		}
	}
	return receipt, nil
}

func (uc *CommitUsecase) apply(ctx context.Context, signer factguard.Identity, header factguard.Command[json.RawMessage]) (domain.Receipt, error) {
	switch header.Schema {
	case schemas.RegisterFactURL:
		var value schemas.RegisterFact
		if err := json.Unmarshal(header.Value, &value); err != nil {
			return domain.Receipt{}, domain.NewError(domain.CodeCanonicalization, "invalid register command: %v", err)
		}
		reg, err := registrationOf(value)
		if err != nil {
			return domain.Receipt{}, err
		}
		entry, err := uc.registry.Register(ctx, signer, reg)
		if err != nil {
			return domain.Receipt{}, err
		}
		receipt := localReceipt(entry.Sequence)
		if reg.Record != nil {
			uc.projector.Project(ctx, *reg.Record, entry.FactHash, &receipt)
		}
		return receipt, nil

	case schemas.UpdateStatusURL:
		var value schemas.UpdateStatus
		if err := json.Unmarshal(header.Value, &value); err != nil {
			return domain.Receipt{}, domain.NewError(domain.CodeInvalidTransition, "invalid status command: %v", err)
		}
		entry, err := uc.registry.UpdateStatus(ctx, signer, value.FactHash, value.Status)
		if err != nil {
			return domain.Receipt{}, err
		}
		return localReceipt(entry.Sequence), nil

	case schemas.TransferWriterURL:
		var value schemas.TransferWriter
		if err := json.Unmarshal(header.Value, &value); err != nil {
			return domain.Receipt{}, domain.NewError(domain.CodeInvalidIdentity, "invalid transfer command: %v", err)
		}
		next, err := factguard.ParseIdentity(value.Writer)
		if err != nil {
			return domain.Receipt{}, domain.NewError(domain.CodeInvalidIdentity, "%v", err)
		}
		if err := uc.registry.TransferWriter(ctx, signer, next); err != nil {
			return domain.Receipt{}, err
		}
		return domain.Receipt{TxRef: "local:writer"}, nil

	default:
		return domain.Receipt{}, fmt.Errorf("%w: unsupported schema %q", ErrMalformedCommand, header.Schema)
	}
}

// registrationOf builds the registration a register command asks for.
// A command carrying its record must hash to the fact hash it names;
// the tuple is then taken from the record.
func registrationOf(value schemas.RegisterFact) (domain.Registration, error) {
	if value.Record == nil {
		return domain.Registration{
			FactHash:       value.FactHash,
			FactID:         value.FactID,
			Verdict:        value.Verdict,
			Severity:       value.Severity,
			IssuedAt:       value.IssuedAt,
			LastReviewedAt: value.LastReviewedAt,
			Version:        value.Version,
		}, nil
	}

	hash, _, err := canonical.HashRecord(*value.Record)
	if err != nil {
		return domain.Registration{}, err
	}
	if hash != value.FactHash {
		return domain.Registration{}, domain.NewError(domain.CodeCanonicalization,
			"record %q hashes to %s, not %s", value.Record.FactID, hash.Hex(), value.FactHash.Hex())
	}
	return domain.RegistrationFor(hash, *value.Record), nil
}

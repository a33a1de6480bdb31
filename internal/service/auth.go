package service

import (
	"context"
	"encoding/json"
	"time"

	"github.com/pkg/errors"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"

	"github.com/totegamma/factguard"
	"github.com/totegamma/factguard/internal/domain"
)

var tracer = otel.Tracer("auth")

const DefaultCommandTTL = 5 * time.Minute

type AuthService struct {
	ttl time.Duration
	now func() time.Time
}

func NewAuthService(ttl time.Duration) *AuthService {
	if ttl <= 0 {
		ttl = DefaultCommandTTL
	}
	return &AuthService{
		ttl: ttl,
		now: time.Now,
	}
}

// Authenticate recovers the identity that signed sd. The recovered key must match
// the signer named in the document and the command must be fresh.
func (s *AuthService) Authenticate(ctx context.Context, sd factguard.SignedDocument) (factguard.Identity, error) {
	ctx, span := tracer.Start(ctx, "Auth.Service.Authenticate")
	defer span.End()

	recovered, err := factguard.RecoverSigner([]byte(sd.Document), sd.Proof)
	if err != nil {
		span.RecordError(errors.Wrap(err, "signature recovery failed"))
		return factguard.Identity{}, domain.NewError(domain.CodeUnauthorized, "%v", err)
	}

	var header factguard.Command[json.RawMessage]
	if err := json.Unmarshal([]byte(sd.Document), &header); err != nil {
		span.RecordError(errors.Wrap(err, "invalid command document"))
		return factguard.Identity{}, domain.NewError(domain.CodeUnauthorized, "invalid command document")
	}

	claimed, err := factguard.ParseIdentity(header.Signer)
	if err != nil {
		span.RecordError(err)
		return factguard.Identity{}, domain.NewError(domain.CodeUnauthorized, "%v", err)
	}
	if claimed != recovered {
		return factguard.Identity{}, domain.NewError(domain.CodeUnauthorized, "signature does not match signer %s", claimed.Hex())
	}

	age := s.now().Sub(header.IssuedAt)
	if age > s.ttl || age < -s.ttl {
		return factguard.Identity{}, domain.NewError(domain.CodeUnauthorized, "command issued at %s is outside the accepted window", header.IssuedAt.Format(time.RFC3339))
	}

	span.SetAttributes(attribute.String("signer", recovered.Hex()))
	return recovered, nil
}

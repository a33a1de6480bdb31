package middleware

import (
	"context"

	"github.com/labstack/echo/v4"
	"github.com/pkg/errors"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"

	"github.com/totegamma/factguard"
	"github.com/totegamma/factguard/internal/domain"
	"github.com/totegamma/factguard/internal/present/rest/presenter"
	"github.com/totegamma/factguard/internal/service"
)

var tracer = otel.Tracer("auth")

type AuthMiddleware struct {
	auth *service.AuthService
}

func NewAuthMiddleware(auth *service.AuthService) *AuthMiddleware {
	return &AuthMiddleware{
		auth: auth,
	}
}

// VerifySignedDocument binds the request body as a signed document and rejects it
// unless its proof recovers to the signer it names. On success the signer and the
// document are stored on the request context.
func (s *AuthMiddleware) VerifySignedDocument(next echo.HandlerFunc) echo.HandlerFunc {
	return func(c echo.Context) error {
		ctx, span := tracer.Start(c.Request().Context(), "Auth.Middleware.VerifySignedDocument")
		defer span.End()

		var sd factguard.SignedDocument
		if err := c.Bind(&sd); err != nil {
			span.RecordError(errors.Wrap(err, "AuthMiddleware.VerifySignedDocument: bind failed"))
			return presenter.BadRequest(c, err)
		}
		if sd.Document == "" {
			return presenter.BadRequestMessage(c, "document is required")
		}

		signer, err := s.auth.Authenticate(ctx, sd)
		if err != nil {
			span.RecordError(errors.Wrap(err, "AuthMiddleware.VerifySignedDocument: s.auth.Authenticate failed"))
			return presenter.Error(c, err)
		}

		ctx = context.WithValue(ctx, domain.SignerCtxKey, signer)
		ctx = context.WithValue(ctx, domain.SignedDocumentCtxKey, sd)
		span.SetAttributes(attribute.String("Signer", signer.Hex()))

		c.SetRequest(c.Request().WithContext(ctx))
		return next(c)
	}
}

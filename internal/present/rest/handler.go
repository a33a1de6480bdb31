package rest

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"strconv"

	"github.com/gorilla/websocket"
	"github.com/labstack/echo/v4"

	"github.com/totegamma/factguard"
	"github.com/totegamma/factguard/internal/domain"
	"github.com/totegamma/factguard/internal/present/rest/middleware"
	"github.com/totegamma/factguard/internal/present/rest/presenter"
	"github.com/totegamma/factguard/internal/service"
	"github.com/totegamma/factguard/internal/usecase"
)

const (
	defaultPageSize  = 20
	maxPageSize      = 100
	maxVerifyBatch   = 256
	wellKnownVersion = "1.0"
)

type Handler struct {
	config     domain.Config
	registry   *usecase.Registry
	commit     *usecase.CommitUsecase
	verifier   *usecase.VerificationUsecase
	check      *usecase.CheckUsecase
	projection usecase.ProjectionStore
	signal     *service.SignalService
	auth       *middleware.AuthMiddleware
}

// NewHandler wires the REST surface. projection and signal may be nil; the
// endpoints backed by them then answer 503.
func NewHandler(
	config domain.Config,
	registry *usecase.Registry,
	commit *usecase.CommitUsecase,
	verifier *usecase.VerificationUsecase,
	check *usecase.CheckUsecase,
	projection usecase.ProjectionStore,
	signal *service.SignalService,
	auth *middleware.AuthMiddleware,
) *Handler {
	return &Handler{
		config:     config,
		registry:   registry,
		commit:     commit,
		verifier:   verifier,
		check:      check,
		projection: projection,
		signal:     signal,
		auth:       auth,
	}
}

func (h *Handler) RegisterRoutes(e *echo.Echo) {
	e.GET("/.well-known/factguard", h.handleWellKnown)
	e.POST("/commit", h.handleCommit, h.auth.VerifySignedDocument)
	e.GET("/facts/id/:factID", h.handleLookupByID)
	e.GET("/facts/:hash", h.handleLookupByHash)
	e.GET("/facts/:hash/exists", h.handleExists)
	e.GET("/stats", h.handleStats)
	e.POST("/verify", h.handleVerify)
	e.POST("/verify/batch", h.handleVerifyBatch)
	e.POST("/check", h.handleCheck)
	e.GET("/published", h.handlePublished)
	e.GET("/published/:factID", h.handlePublishedFact)
	e.GET("/realtime", h.handleRealtime)
}

func (h *Handler) handleWellKnown(c echo.Context) error {
	wellknown := factguard.WellKnown{
		Version:   wellKnownVersion,
		Name:      h.config.Name,
		Publisher: h.config.Publisher,
		Transport: h.config.Transport,
		ChainID:   h.config.ChainID,
		Contract:  h.config.Contract,
		Endpoints: map[string]factguard.Endpoint{
			"dev.factguard.commit": {
				Template: "/commit",
				Method:   "POST",
			},
			"dev.factguard.fact": {
				Template: "/facts/{hash}",
				Method:   "GET",
			},
			"dev.factguard.fact.exists": {
				Template: "/facts/{hash}/exists",
				Method:   "GET",
			},
			"dev.factguard.fact.byId": {
				Template: "/facts/id/{factId}",
				Method:   "GET",
			},
			"dev.factguard.stats": {
				Template: "/stats",
				Method:   "GET",
			},
			"dev.factguard.verify": {
				Template: "/verify",
				Method:   "POST",
			},
			"dev.factguard.verify.batch": {
				Template: "/verify/batch",
				Method:   "POST",
			},
			"dev.factguard.check": {
				Template: "/check",
				Method:   "POST",
			},
			"dev.factguard.published": {
				Template: "/published",
				Method:   "GET",
				Query:    &[]string{"limit", "offset"},
			},
			"dev.factguard.realtime": {
				Template: "/realtime",
				Method:   "GET",
			},
		},
	}
	return presenter.OK(c, wellknown)
}

func (h *Handler) handleCommit(c echo.Context) error {
	ctx := c.Request().Context()

	signer, ok := ctx.Value(domain.SignerCtxKey).(factguard.Identity)
	if !ok {
		return presenter.Error(c, domain.NewError(domain.CodeUnauthorized, "unauthenticated"))
	}
	sd, ok := ctx.Value(domain.SignedDocumentCtxKey).(factguard.SignedDocument)
	if !ok {
		return presenter.BadRequestMessage(c, "missing signed document")
	}

	receipt, err := h.commit.Commit(ctx, signer, sd)
	if err != nil {
		if errors.Is(err, usecase.ErrMalformedCommand) {
			return presenter.BadRequest(c, err)
		}
		return presenter.Error(c, err)
	}

	return presenter.OK(c, receipt)
}

func parseHashParam(c echo.Context) (factguard.FactHash, error) {
	return factguard.ParseFactHash(c.Param("hash"))
}

func (h *Handler) handleLookupByHash(c echo.Context) error {
	ctx := c.Request().Context()

	hash, err := parseHashParam(c)
	if err != nil {
		return presenter.BadRequest(c, err)
	}

	entry, err := h.registry.LookupByHash(ctx, hash)
	if err != nil {
		return presenter.Error(c, err)
	}
	return presenter.OK(c, entry)
}

func (h *Handler) handleLookupByID(c echo.Context) error {
	ctx := c.Request().Context()

	factID := c.Param("factID")
	if factID == "" {
		return presenter.BadRequestMessage(c, "fact id is required")
	}

	entry, err := h.registry.LookupByID(ctx, factID)
	if err != nil {
		return presenter.Error(c, err)
	}
	return presenter.OK(c, entry)
}

type existsResponse struct {
	Exists bool              `json:"exists"`
	Status *factguard.Status `json:"status,omitempty"`
}

func (h *Handler) handleExists(c echo.Context) error {
	ctx := c.Request().Context()

	hash, err := parseHashParam(c)
	if err != nil {
		return presenter.BadRequest(c, err)
	}

	exists, status, err := h.registry.Exists(ctx, hash)
	if err != nil {
		return presenter.Error(c, err)
	}
	response := existsResponse{Exists: exists}
	if exists {
		response.Status = &status
	}
	return presenter.OK(c, response)
}

func (h *Handler) handleStats(c echo.Context) error {
	stats, err := h.registry.Stats(c.Request().Context())
	if err != nil {
		return presenter.Error(c, err)
	}
	return presenter.OK(c, stats)
}

func (h *Handler) handleVerify(c echo.Context) error {
	ctx := c.Request().Context()

	var claim domain.NormalizedClaim
	if err := c.Bind(&claim); err != nil {
		return presenter.BadRequest(c, err)
	}

	return presenter.OK(c, h.verifier.Verify(ctx, claim))
}

func (h *Handler) handleVerifyBatch(c echo.Context) error {
	ctx := c.Request().Context()

	var claims []domain.NormalizedClaim
	if err := c.Bind(&claims); err != nil {
		return presenter.BadRequest(c, err)
	}
	if len(claims) > maxVerifyBatch {
		return presenter.BadRequestMessage(c, fmt.Sprintf("at most %d claims per batch", maxVerifyBatch))
	}

	return presenter.OK(c, h.verifier.VerifyBatch(ctx, claims))
}

type checkRequest struct {
	Text    string `json:"text"`
	Channel string `json:"channel"`
}

func (h *Handler) handleCheck(c echo.Context) error {
	ctx := c.Request().Context()

	var req checkRequest
	if err := c.Bind(&req); err != nil {
		return presenter.BadRequest(c, err)
	}
	if req.Text == "" {
		return presenter.BadRequestMessage(c, "text is required")
	}

	result, err := h.check.Check(ctx, req.Text, req.Channel)
	if err != nil {
		return presenter.InternalError(c, err)
	}
	return presenter.OK(c, result)
}

type publishedResponse struct {
	Items  []domain.PublishedFact `json:"items"`
	Total  int64                  `json:"total"`
	Limit  int                    `json:"limit"`
	Offset int                    `json:"offset"`
}

func (h *Handler) handlePublished(c echo.Context) error {
	ctx := c.Request().Context()

	if h.projection == nil {
		return c.JSON(http.StatusServiceUnavailable, echo.Map{"error": "projection store is not configured"})
	}

	limit := defaultPageSize
	if limitStr := c.QueryParam("limit"); limitStr != "" {
		parsed, err := strconv.Atoi(limitStr)
		if err != nil || parsed <= 0 {
			return presenter.BadRequestMessage(c, "invalid limit parameter")
		}
		limit = parsed
	}
	if limit > maxPageSize {
		limit = maxPageSize
	}

	offset := 0
	if offsetStr := c.QueryParam("offset"); offsetStr != "" {
		parsed, err := strconv.Atoi(offsetStr)
		if err != nil || parsed < 0 {
			return presenter.BadRequestMessage(c, "invalid offset parameter")
		}
		offset = parsed
	}

	items, total, err := h.projection.List(ctx, limit, offset)
	if err != nil {
		return presenter.InternalError(c, err)
	}
	return presenter.OK(c, publishedResponse{Items: items, Total: total, Limit: limit, Offset: offset})
}

func (h *Handler) handlePublishedFact(c echo.Context) error {
	ctx := c.Request().Context()

	if h.projection == nil {
		return c.JSON(http.StatusServiceUnavailable, echo.Map{"error": "projection store is not configured"})
	}

	fact, err := h.projection.Get(ctx, c.Param("factID"))
	if err != nil {
		return presenter.Error(c, err)
	}
	return presenter.OK(c, fact)
}

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	CheckOrigin: func(r *http.Request) bool {
		return true
	},
}

type Request struct {
	Type     string   `json:"type"`
	Prefixes []string `json:"prefixes"`
}

func (h *Handler) handleRealtime(c echo.Context) error {
	if h.signal == nil {
		return c.JSON(http.StatusServiceUnavailable, echo.Map{"error": "realtime is not configured"})
	}

	ws, err := upgrader.Upgrade(c.Response(), c.Request(), nil)
	if err != nil {
		slog.Error(
			"Failed to upgrade WebSocket",
			slog.String("error", err.Error()),
			slog.String("module", "socket"),
		)
		return err
	}
	defer ws.Close()

	ctx, cancel := context.WithCancel(c.Request().Context())
	defer cancel()

	input := make(chan []string, 1)
	output := make(chan domain.Event)
	go h.signal.Realtime(ctx, input, output)

	quit := make(chan struct{})

	go func() {
		defer close(quit)
		for {
			var req Request
			err := ws.ReadJSON(&req)
			if err != nil {
				wsErr, ok := err.(*websocket.CloseError)
				if ok {
					if !(wsErr.Code == websocket.CloseNormalClosure || wsErr.Code == websocket.CloseGoingAway) {
						slog.DebugContext(
							ctx, "WebSocket closed",
							slog.String("error", wsErr.Error()),
							slog.String("module", "socket"),
						)
					}
				} else if ctx.Err() == nil {
					slog.ErrorContext(
						ctx, "Error reading message",
						slog.String("error", err.Error()),
						slog.String("module", "socket"),
					)
				}
				return
			}

			switch req.Type {
			case "listen":
				select {
				case input <- req.Prefixes:
				case <-ctx.Done():
					return
				}
				slog.DebugContext(
					ctx, fmt.Sprintf("Socket subscribe: %s", req.Prefixes),
					slog.String("module", "socket"),
				)
			case "h": // heartbeat
			default:
				slog.InfoContext(
					ctx, "Unknown request type",
					slog.String("type", req.Type),
					slog.String("module", "socket"),
				)
			}
		}
	}()

	for {
		select {
		case <-quit:
			return nil
		case event, ok := <-output:
			if !ok {
				return nil
			}
			err := ws.WriteJSON(event)
			if err != nil {
				slog.ErrorContext(
					ctx, "Error writing message",
					slog.String("error", err.Error()),
					slog.String("module", "socket"),
				)
				return nil
			}
		}
	}
}

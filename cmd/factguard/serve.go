package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/spf13/cobra"
	"go.opentelemetry.io/contrib/instrumentation/github.com/labstack/echo/otelecho"

	"github.com/totegamma/factguard/internal/config"
	"github.com/totegamma/factguard/internal/present/rest"
	authmw "github.com/totegamma/factguard/internal/present/rest/middleware"
	"github.com/totegamma/factguard/internal/service"
)

const shutdownTimeout = 10 * time.Second

func newServeCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Run the registry node",
		Long:  "Hosts the registry in process and serves it over HTTP: signed commands, lookups, verification, claim checks and the realtime event stream.",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return withDeps(cmd.Context(), func(d *Deps) error {
				return serve(cmd.Context(), d)
			})
		},
	}
}

func serve(ctx context.Context, d *Deps) error {
	if d.Config.Registry.Transport != config.TransportLocal {
		return fmt.Errorf("serve hosts the registry itself and needs the %q transport", config.TransportLocal)
	}

	handler := rest.NewHandler(
		d.Config.Describe(),
		d.Registry,
		d.Commit(),
		d.Verifier(),
		d.Check(),
		d.Projection,
		d.Signal,
		authmw.NewAuthMiddleware(service.NewAuthService(d.Config.Registry.CommandTTL)),
	)

	e := echo.New()
	e.HideBanner = true
	if d.Config.Server.EnableTrace {
		e.Use(otelecho.Middleware(serviceName))
	}
	e.Use(middleware.Logger())
	e.Use(middleware.Recover())
	e.Use(middleware.CORS())

	handler.RegisterRoutes(e)
	e.GET("/metrics", echo.WrapHandler(promhttp.Handler()))

	errCh := make(chan error, 1)
	go func() {
		slog.Info("factguard node listening",
			slog.String("listen", d.Config.Server.Listen),
			slog.String("name", d.Config.NodeInfo.Name),
			slog.String("module", "main"),
		)
		errCh <- e.Start(d.Config.Server.Listen)
	}()

	select {
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return err
	case <-ctx.Done():
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	slog.Info("shutting down", slog.String("module", "main"))
	return e.Shutdown(shutdownCtx)
}

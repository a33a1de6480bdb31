package main

import (
	"context"
	"crypto/ecdsa"
	"fmt"
	"log/slog"

	"github.com/ethereum/go-ethereum/common"
	"github.com/prometheus/client_golang/prometheus"

	"github.com/totegamma/factguard"
	"github.com/totegamma/factguard/client"
	"github.com/totegamma/factguard/internal/config"
	"github.com/totegamma/factguard/internal/infra/database"
	"github.com/totegamma/factguard/internal/infra/gateway/evm"
	"github.com/totegamma/factguard/internal/infra/gateway/fallback"
	"github.com/totegamma/factguard/internal/infra/repository"
	"github.com/totegamma/factguard/internal/metrics"
	"github.com/totegamma/factguard/internal/service"
	"github.com/totegamma/factguard/internal/tracing"
	"github.com/totegamma/factguard/internal/usecase"
)

const serviceName = "factguard"

// Deps holds everything a command needs. Registry is set only for the
// local transport; Signal, Fallback and CommitLog are optional.
type Deps struct {
	Config     config.Config
	Metrics    *metrics.Metrics
	Key        *ecdsa.PrivateKey
	Registry   *usecase.Registry
	Client     usecase.RegistryAdmin
	Projection usecase.ProjectionStore
	Index      *repository.ClaimIndex
	Projector  *usecase.Projector
	Signal     *service.SignalService
	Fallback   usecase.Fallback
	CommitLog  usecase.CommitLog
}

func (d *Deps) Verifier() *usecase.VerificationUsecase {
	return usecase.NewVerificationUsecase(d.Client, d.Metrics, d.Config.Registry.VerifyConcurrency)
}

func (d *Deps) Check() *usecase.CheckUsecase {
	return usecase.NewCheckUsecase(d.Verifier(), d.Index, d.Projection, d.Fallback)
}

func (d *Deps) Registration() *usecase.RegistrationUsecase {
	return usecase.NewRegistrationUsecase(d.Client, d.Projection, d.Index, d.Metrics, d.Config.NodeInfo.Publisher)
}

// Commit applies signed commands to the local registry and projects what they register.
func (d *Deps) Commit() *usecase.CommitUsecase {
	return usecase.NewCommitUsecase(d.Registry, d.CommitLog, d.Projector)
}

// withDeps loads config, connects the configured backends, calls fn and
// releases everything afterwards.
func withDeps(ctx context.Context, fn func(*Deps) error) error {
	cfg, err := config.Load(configPath)
	if err != nil {
		return fmt.Errorf("loading config: %w", err)
	}

	shutdown, err := tracing.Setup(ctx, serviceName, cfg.Server.EnableTrace, cfg.Server.TraceEndpoint)
	if err != nil {
		return fmt.Errorf("setting up tracing: %w", err)
	}
	defer func() {
		if err := shutdown(context.Background()); err != nil {
			slog.Warn("tracer shutdown failed", slog.String("error", err.Error()))
		}
	}()

	d := &Deps{
		Config:  cfg,
		Metrics: metrics.New(prometheus.DefaultRegisterer),
		Index:   repository.NewClaimIndex(),
	}

	if cfg.NodeInfo.PrivateKey != "" {
		d.Key, _, err = factguard.LoadPrivateKey(cfg.NodeInfo.PrivateKey)
		if err != nil {
			return err
		}
	}

	var store usecase.RegistryStore
	if cfg.Server.PostgresDsn != "" {
		db, err := database.NewPostgres(cfg.Server.PostgresDsn)
		if err != nil {
			return fmt.Errorf("connecting postgres: %w", err)
		}
		sqlDB, err := db.DB()
		if err != nil {
			return err
		}
		defer sqlDB.Close()

		if err := database.MigratePostgres(db); err != nil {
			return fmt.Errorf("migrating postgres: %w", err)
		}
		store = repository.NewRegistryRepository(db)
		d.Projection = repository.NewProjectionRepository(db)
		d.CommitLog = repository.NewCommitLogRepository(db)
	} else {
		slog.Warn("no postgresDsn configured; state is kept in memory", slog.String("module", "main"))
		store = repository.NewMemoryRegistryRepository()
		d.Projection = repository.NewMemoryProjectionRepository()
	}

	if cfg.Server.RedisAddr != "" {
		rdb := database.NewRedis(cfg.Server.RedisAddr, "", cfg.Server.RedisDB)
		defer rdb.Close()
		if err := database.PingRedis(ctx, rdb); err != nil {
			return err
		}
		d.Signal = service.NewSignalService(rdb)
	}

	d.Projector = usecase.NewProjector(d.Projection, d.Index, cfg.NodeInfo.Publisher)

	if cfg.Fallback.Provider == "openai" {
		fb, err := fallback.NewClient(cfg.Fallback)
		if err != nil {
			return fmt.Errorf("creating fallback client: %w", err)
		}
		d.Fallback = fb
	}

	switch cfg.Registry.Transport {
	case config.TransportLocal:
		opts := []usecase.RegistryOption{
			usecase.WithClockSkew(cfg.Registry.ClockSkew),
			usecase.WithRegistryMetrics(d.Metrics),
		}
		publishers := usecase.Publishers{d.Projector}
		if d.Signal != nil {
			publishers = append(publishers, d.Signal)
		}
		opts = append(opts, usecase.WithPublisher(publishers))
		d.Registry = usecase.NewRegistry(store, opts...)
		if d.Key != nil {
			writer, err := d.Registry.Bootstrap(ctx, cfg.NodeInfo.Identity)
			if err != nil {
				return fmt.Errorf("bootstrapping registry: %w", err)
			}
			slog.Debug("registry writer", slog.String("writer", writer.Hex()), slog.String("module", "main"))
		}
		d.Client = usecase.NewLocalClient(d.Registry, cfg.NodeInfo.Identity)

	case config.TransportREST:
		d.Client = client.New(cfg.Registry.Endpoint, d.Key, client.WithCacheTTL(cfg.Registry.CacheTTL))

	case config.TransportEVM:
		backend, err := evm.Dial(ctx, cfg.Chain.RPCURL)
		if err != nil {
			return err
		}
		defer backend.Close()

		opts := []evm.Option{
			evm.WithMetrics(d.Metrics),
			evm.WithConfirmTimeout(cfg.Chain.ConfirmTimeout),
		}
		if cfg.Server.MemcachedAddr != "" {
			opts = append(opts, evm.WithCache(evm.NewEntryCache(database.NewMemcached(cfg.Server.MemcachedAddr), cfg.Registry.CacheTTL)))
		}
		c, err := evm.NewClient(backend, common.HexToAddress(cfg.Chain.Contract), cfg.Chain.ChainID, d.Key, opts...)
		if err != nil {
			return fmt.Errorf("binding registry contract: %w", err)
		}
		d.Client = c
	}

	if err := d.Index.LoadFrom(ctx, d.Projection); err != nil {
		slog.Warn("claim index load failed", slog.String("error", err.Error()), slog.String("module", "main"))
	}
	slog.Debug("claim index loaded", slog.Int("claims", d.Index.Len()), slog.String("module", "main"))

	return fn(d)
}

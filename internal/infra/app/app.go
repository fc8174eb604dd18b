package app

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/prometheus/client_golang/prometheus"
	"go.uber.org/zap"

	"github.com/arklim/identity-adapter/internal/core/domain"
	"github.com/arklim/identity-adapter/internal/core/port"
	"github.com/arklim/identity-adapter/internal/infra/config"
	"github.com/arklim/identity-adapter/internal/infra/database"
	kafkainfra "github.com/arklim/identity-adapter/internal/infra/kafka"
	"github.com/arklim/identity-adapter/internal/infra/logger"
	redisinfra "github.com/arklim/identity-adapter/internal/infra/redis"
	"github.com/arklim/identity-adapter/internal/infra/security"
	"github.com/arklim/identity-adapter/internal/infra/telemetry"
	"github.com/arklim/identity-adapter/internal/repository"
	"github.com/arklim/identity-adapter/internal/repository/memory"
	postgresrepo "github.com/arklim/identity-adapter/internal/repository/postgres"
	redisrepo "github.com/arklim/identity-adapter/internal/repository/redis"
	"github.com/arklim/identity-adapter/internal/transport/http/middleware"
	"github.com/arklim/identity-adapter/internal/transport/http/routes"
	"github.com/arklim/identity-adapter/internal/usecase"
)

const tracerName = "github.com/arklim/identity-adapter"

type Application struct {
	cfg      *config.AppConfig
	engine   *gin.Engine
	logger   *zap.Logger
	pool     *pgxpool.Pool
	redis    *redisinfra.Client
	producer *kafkainfra.Producer
	tracing  *telemetry.TracerProvider
}

// stores is the backend selected by identity.store.
type stores struct {
	users port.UserStore
	roles port.RoleStore
}

func New(ctx context.Context, cfg *config.AppConfig) (*Application, error) {
	log, err := logger.New(cfg.App.Env)
	if err != nil {
		return nil, fmt.Errorf("init logger: %w", err)
	}

	a := &Application{cfg: cfg, logger: log}
	if err := a.build(ctx); err != nil {
		a.close(context.Background())
		return nil, err
	}
	return a, nil
}

func (a *Application) build(ctx context.Context) error {
	cfg, log := a.cfg, a.logger

	tracing, err := telemetry.NewTracerProvider(ctx, cfg.Telemetry, log)
	if err != nil {
		return fmt.Errorf("init tracing: %w", err)
	}
	a.tracing = tracing

	guard, err := a.replayGuard(ctx)
	if err != nil {
		return err
	}

	creds, err := credentials(cfg, guard)
	if err != nil {
		return err
	}

	storeOpts := repository.StoreOptions{
		Credentials: creds,
		Lockout: domain.LockoutPolicy{
			EnabledByDefault:  cfg.Lockout.EnabledByDefault,
			MaxFailedAttempts: cfg.Lockout.MaxFailedAttempts,
			Duration:          cfg.Lockout.Duration,
		},
		RequireUniqueEmail: cfg.Identity.RequireUniqueEmail,
	}

	backend, err := a.stores(ctx, storeOpts)
	if err != nil {
		return err
	}
	if !cfg.Identity.EnableRoles {
		backend.roles = nil
	}

	events := a.eventPublisher()

	authMetrics, err := telemetry.NewAuthMetrics(prometheus.DefaultRegisterer)
	if err != nil {
		return fmt.Errorf("init auth metrics: %w", err)
	}
	httpMetrics, err := middleware.NewHTTPMetrics(middleware.HTTPMetricsOptions{})
	if err != nil {
		return fmt.Errorf("init http metrics: %w", err)
	}

	tracer := tracing.Tracer(tracerName)

	authService, err := usecase.NewAuthService(backend.users, usecase.AuthOptions{
		DisplayNameClaimType: cfg.Identity.DisplayNameClaimType,
		EnableSecurityStamp:  cfg.Identity.EnableSecurityStamp,
	})
	if err != nil {
		return fmt.Errorf("init auth service: %w", err)
	}
	authService.
		WithLogger(log).
		WithEvents(events).
		WithObserver(authMetrics).
		WithTracer(tracer)

	managementService, err := usecase.NewManagementService(backend.users, backend.roles, usecase.MetadataOptions{
		IncludeAccountProperties: cfg.Identity.IncludeAccountProperties,
		RequireUniqueEmail:       cfg.Identity.RequireUniqueEmail,
		RoleClaimType:            cfg.Identity.RoleClaimType,
	})
	if err != nil {
		return fmt.Errorf("init management service: %w", err)
	}
	managementService.
		WithLogger(log).
		WithEvents(events).
		WithTracer(tracer)

	deps := routes.Dependencies{
		Config:  cfg,
		Logger:  log,
		Metrics: httpMetrics,
		Services: routes.ServiceSet{
			Auth:       authService,
			Management: managementService,
		},
	}
	if a.pool != nil {
		deps.Database = a.pool
	}
	if a.redis != nil {
		deps.Cache = a.redis
	}
	a.engine = routes.Register(deps)

	if cfg.App.AdminToken == "" {
		log.Warn("admin token not configured, administrative endpoints disabled")
	}
	if cfg.App.ProtocolToken == "" {
		log.Warn("protocol token not configured, authentication endpoints disabled")
	}
	return nil
}

func credentials(cfg *config.AppConfig, guard port.TokenReplayGuard) (repository.Credentials, error) {
	hasher, err := security.NewPasswordHasher(security.Argon2Params{
		Memory:      cfg.Argon2.Memory,
		Iterations:  cfg.Argon2.Iterations,
		Parallelism: cfg.Argon2.Parallelism,
		SaltLength:  cfg.Argon2.SaltLength,
		KeyLength:   cfg.Argon2.KeyLength,
	})
	if err != nil {
		return repository.Credentials{}, fmt.Errorf("configure argon2: %w", err)
	}

	tokens, err := security.NewPurposeTokens(security.PurposeTokenConfig{
		SigningSecret:        cfg.Tokens.SigningSecret,
		Issuer:               cfg.Tokens.Issuer,
		EmailConfirmationTTL: cfg.Tokens.EmailConfirmationTTL,
		PhoneChangeTTL:       cfg.Tokens.PhoneChangeTTL,
		PasswordResetTTL:     cfg.Tokens.PasswordResetTTL,
	}, guard)
	if err != nil {
		return repository.Credentials{}, fmt.Errorf("init purpose tokens: %w", err)
	}

	return repository.Credentials{
		Hasher: hasher,
		Policy: security.NewPasswordPolicy(security.PasswordPolicyConfig{
			MinLength:           cfg.Password.MinLength,
			MinCharacterClasses: cfg.Password.MinCharacterClasses,
			MinStrengthScore:    cfg.Password.MinStrengthScore,
		}),
		Tokens: tokens,
	}, nil
}

func (a *Application) replayGuard(ctx context.Context) (port.TokenReplayGuard, error) {
	if a.cfg.Identity.ReplayGuard != config.GuardRedis {
		return security.NewMemoryReplayGuard(a.cfg.Tokens.ReplayCacheSize), nil
	}

	client, err := redisinfra.NewClient(ctx, a.cfg.Redis, a.logger)
	if err != nil {
		return nil, fmt.Errorf("init redis: %w", err)
	}
	a.redis = client
	return redisrepo.NewTokenGuardRepository(client.Client(), a.cfg.Redis.RedeemedPrefix), nil
}

func (a *Application) stores(ctx context.Context, opts repository.StoreOptions) (stores, error) {
	if a.cfg.Identity.Store != config.StorePostgres {
		a.logger.Info("using in-memory account store")
		roles := memory.NewRoleStore()
		return stores{
			users: memory.NewAccountStore(opts).WithRoles(roles),
			roles: roles,
		}, nil
	}

	pool, err := database.NewPostgresPool(ctx, a.cfg.Postgres, a.logger)
	if err != nil {
		return stores{}, fmt.Errorf("init postgres: %w", err)
	}
	a.pool = pool

	pg := postgresrepo.NewStores(pool, opts)
	return stores{users: pg.Accounts, roles: pg.Roles}, nil
}

func (a *Application) eventPublisher() port.EventPublisher {
	if len(a.cfg.Kafka.Brokers) == 0 {
		a.logger.Info("kafka brokers not configured, using stub publisher")
		return kafkainfra.NewStubPublisher(a.logger)
	}

	producer, err := kafkainfra.NewProducer(a.cfg.Kafka, a.logger)
	if err != nil {
		a.logger.Warn("failed to init kafka producer, using stub publisher", zap.Error(err))
		return kafkainfra.NewStubPublisher(a.logger)
	}
	a.producer = producer
	return kafkainfra.NewEventPublisher(producer, a.cfg.App, a.logger)
}

// Handler exposes the configured HTTP engine.
func (a *Application) Handler() http.Handler {
	return a.engine
}

func (a *Application) Run(ctx context.Context) error {
	defer a.close(context.Background())

	srv := &http.Server{
		Addr:              fmt.Sprintf("%s:%d", a.cfg.App.Host, a.cfg.App.Port),
		Handler:           a.engine,
		ReadHeaderTimeout: 10 * time.Second,
		ReadTimeout:       30 * time.Second,
		WriteTimeout:      30 * time.Second,
		IdleTimeout:       60 * time.Second,
	}

	a.logger.Info("starting identity adapter",
		zap.String("version", telemetry.ServiceVersion),
		zap.String("env", a.cfg.App.Env),
		zap.String("address", srv.Addr),
		zap.String("store", a.cfg.Identity.Store),
	)

	serverErrCh := make(chan error, 1)
	go func() {
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			serverErrCh <- fmt.Errorf("run server: %w", err)
		}
	}()

	select {
	case <-ctx.Done():
		timeout := a.cfg.App.ShutdownTimeout
		if timeout <= 0 {
			timeout = 10 * time.Second
		}
		shutdownCtx, cancel := context.WithTimeout(context.Background(), timeout)
		defer cancel()
		if err := srv.Shutdown(shutdownCtx); err != nil {
			return fmt.Errorf("shutdown server: %w", err)
		}
		return nil
	case err := <-serverErrCh:
		return err
	}
}

func (a *Application) close(ctx context.Context) {
	if a.producer != nil {
		if err := a.producer.Close(); err != nil {
			a.logger.Warn("close kafka producer", zap.Error(err))
		}
	}
	if a.tracing != nil {
		if err := a.tracing.Shutdown(ctx); err != nil {
			a.logger.Warn("shutdown tracing", zap.Error(err))
		}
	}
	if a.redis != nil {
		_ = a.redis.Close()
	}
	if a.pool != nil {
		a.pool.Close()
	}
	_ = a.logger.Sync()
}

package main

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/redis/go-redis/v9"

	auditpg "3tcapital/ms_cartaporte_core/internal/adapters/audit/postgres"
	catalogpg "3tcapital/ms_cartaporte_core/internal/adapters/catalog/postgres"
	catalogredis "3tcapital/ms_cartaporte_core/internal/adapters/catalog/redis"
	"3tcapital/ms_cartaporte_core/internal/adapters/catalog/static"
	documentpg "3tcapital/ms_cartaporte_core/internal/adapters/document/postgres"
	cartaportehttp "3tcapital/ms_cartaporte_core/internal/adapters/http/cartaporte"
	healthhttp "3tcapital/ms_cartaporte_core/internal/adapters/http/health"
	"3tcapital/ms_cartaporte_core/internal/adapters/pac"
	apphealth "3tcapital/ms_cartaporte_core/internal/application/health"
	"3tcapital/ms_cartaporte_core/internal/application/identity"
	"3tcapital/ms_cartaporte_core/internal/application/stamping"
	"3tcapital/ms_cartaporte_core/internal/application/validation"
	"3tcapital/ms_cartaporte_core/internal/core/audit"
	"3tcapital/ms_cartaporte_core/internal/core/cartaporte"
	"3tcapital/ms_cartaporte_core/internal/infrastructure/config"
	"3tcapital/ms_cartaporte_core/internal/infrastructure/database"
	httpinfra "3tcapital/ms_cartaporte_core/internal/infrastructure/http"
	"3tcapital/ms_cartaporte_core/internal/infrastructure/http/server"
	"3tcapital/ms_cartaporte_core/internal/infrastructure/logger"
	"3tcapital/ms_cartaporte_core/internal/infrastructure/metrics"
)

const pacProvider = "pac"

func main() {
	if err := run(); err != nil {
		fmt.Fprintf(os.Stderr, "service stopped: %v\n", err)
		os.Exit(1)
	}
}

func run() error {
	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}

	log := logger.New(cfg.App.Name, cfg.Log.Level, cfg.App.Environment, cfg.Stamping.Environment)
	env := cartaporte.Environment(cfg.Stamping.Environment)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	registry := prometheus.NewRegistry()
	if err := metrics.RegisterCollectors(registry); err != nil {
		return fmt.Errorf("register metrics: %w", err)
	}

	var checks []apphealth.Check

	pool := connectDatabase(ctx, cfg, log)
	if pool != nil {
		defer pool.Close()
		checks = append(checks, apphealth.Check{
			Name: "postgres",
			// Production identities live in postgres; sandbox only loses stamping.
			Critical: env == cartaporte.EnvironmentProduction,
			Probe:    pool.Ping,
		})
	}

	// Postal codes: postgres catalog, optionally behind Redis. Without a
	// database the validator skips the lookup.
	var postal cartaporte.PostalCodeCatalog
	if pool != nil {
		postal = catalogpg.NewPostalCodes(pool, log)
		if rdb := connectRedis(ctx, cfg, log); rdb != nil {
			defer rdb.Close()
			postal = catalogredis.NewPostalCodeCache(postal, rdb, cfg.Redis.PostalCodeTTL, log)
			checks = append(checks, apphealth.Check{
				Name:  "redis",
				Probe: func(ctx context.Context) error { return rdb.Ping(ctx).Err() },
			})
		}
	}

	// Identity source per environment. Production without a database leaves
	// the source unset, so every resolution fails closed.
	var identities cartaporte.IdentitySource
	switch env {
	case cartaporte.EnvironmentSandbox:
		identities = static.NewSandboxIdentities()
	case cartaporte.EnvironmentProduction:
		if pool != nil {
			identities = catalogpg.NewIdentities(pool, log)
		} else {
			log.Error("Production identity source unavailable: database not connected, stamping will be refused")
		}
	}

	var auditRepo audit.Repository
	var documents cartaporte.DocumentRepository
	if pool != nil {
		documents = documentpg.NewRepository(pool, log)
		if cfg.Audit.Enabled {
			auditRepo = auditpg.NewRepository(pool, log)
		}
	}
	log.Info("Audit trail configuration",
		"audit_enabled_config", cfg.Audit.Enabled,
		"audit_repo_available", auditRepo != nil,
		"max_body_size", cfg.Audit.MaxBodySize)

	var stamper cartaporte.Stamper
	if cfg.PAC.Configured() {
		traced := httpinfra.NewTracedClient(&httpinfra.TracedClientConfig{
			Timeout:         cfg.PAC.APITimeout,
			Environment:     cfg.Stamping.Environment,
			AuditEnabled:    auditRepo != nil,
			LogRequestBody:  cfg.Audit.LogRequestBody,
			LogResponseBody: cfg.Audit.LogResponseBody,
			MaxBodySize:     cfg.Audit.MaxBodySize,
			MaxConnsPerHost: cfg.PAC.MaxConcurrentRequests,
		}, log, auditRepo, pacProvider)
		// Audit writes run in the background; let them land before exit.
		defer traced.Wait()

		client := pac.NewClient(pac.Config{
			BaseURL:               cfg.PAC.BaseURL,
			Username:              cfg.PAC.Username,
			Password:              cfg.PAC.Password,
			TokenTTL:              cfg.PAC.TokenTTL,
			RateLimitRPS:          float64(cfg.PAC.RateLimitRPS),
			MaxConcurrentRequests: int64(cfg.PAC.MaxConcurrentRequests),
			CircuitMaxFailures:    cfg.PAC.CircuitMaxFailures,
			CircuitCooldown:       cfg.PAC.CircuitCooldown,
			Location:              cfg.Stamping.Location,
		}, traced, log)
		stamper = client
		checks = append(checks, apphealth.Check{
			Name: "pac",
			Probe: func(context.Context) error {
				if client.BreakerState() == pac.StateOpen {
					return cartaporte.ErrCircuitOpen
				}
				return nil
			},
		})
		log.Info("PAC client configured", "baseURL", cfg.PAC.BaseURL, "environment", cfg.Stamping.Environment)
	} else {
		log.Warn("PAC not configured, stamping endpoints will return 503")
	}

	validator := validation.NewValidator(postal, static.NewCodes(), log)
	resolver := identity.NewResolver(env, identities, cfg.Stamping.EmisorRFC, log)

	service, err := stamping.NewService(stamping.Options{
		Validator:        validator,
		Resolver:         resolver,
		Stamper:          stamper,
		Repository:       documents,
		Logger:           log,
		Environment:      env,
		DefaultVersion:   cfg.Stamping.CartaPorteVersion,
		Location:         cfg.Stamping.Location,
		BatchConcurrency: cfg.Stamping.BatchConcurrency,
	})
	if err != nil {
		return fmt.Errorf("create stamping service: %w", err)
	}

	healthHandler := healthhttp.NewHandler(apphealth.NewService(apphealth.Metadata{
		Service:     cfg.App.Name,
		Version:     cfg.App.Version,
		Environment: cfg.App.Environment,
		CFDIMode:    cfg.Stamping.Environment,
	}, checks...))

	srv, err := server.New(server.Options{
		Config:         cfg,
		Logger:         log,
		HealthHandler:  http.HandlerFunc(healthHandler.Status),
		LiveHandler:    http.HandlerFunc(healthHandler.Live),
		MetricsHandler: metrics.Handler(registry),
		CartaPorte:     cartaportehttp.NewHandler(service, cfg.Stamping.MaxBatchSize, log),
	})
	if err != nil {
		return fmt.Errorf("create server: %w", err)
	}
	defer srv.Close()

	log.Info("Carta Porte service starting",
		"environment", cfg.Stamping.Environment,
		"cartaporte_version", cfg.Stamping.CartaPorteVersion,
		"timezone", cfg.Stamping.Timezone,
		"stamping_enabled", stamper != nil && documents != nil)

	if err := srv.Run(ctx); err != nil {
		return fmt.Errorf("run server: %w", err)
	}
	return nil
}

// connectDatabase opens the pool and runs migrations. Failures degrade the
// service instead of stopping it.
func connectDatabase(ctx context.Context, cfg config.AppConfig, log *slog.Logger) *pgxpool.Pool {
	if !cfg.Database.Configured() {
		log.Info("Database not configured, postal code lookups, audit trail and stamping will be disabled")
		return nil
	}

	pool, err := database.NewPool(ctx, database.Config{
		Host:            cfg.Database.Host,
		Port:            cfg.Database.Port,
		Database:        cfg.Database.Database,
		User:            cfg.Database.User,
		Password:        cfg.Database.Password,
		SSLMode:         cfg.Database.SSLMode,
		MaxOpenConns:    cfg.Database.MaxOpenConns,
		MaxIdleConns:    cfg.Database.MaxIdleConns,
		ConnMaxLifetime: cfg.Database.ConnMaxLifetime,
	})
	if err != nil {
		log.Warn("Failed to connect to database, postal code lookups, audit trail and stamping will be disabled",
			"error", err,
			"host", cfg.Database.Host,
			"database", cfg.Database.Database,
			"user", cfg.Database.User,
			"password_set", cfg.Database.Password != "")
		return nil
	}

	if cfg.Database.RunMigrations {
		if err := database.RunMigrations(ctx, pool, log); err != nil {
			log.Error("Database migrations failed", "error", err)
			pool.Close()
			return nil
		}
	}

	log.Info("Database connection established", "database", cfg.Database.Database)
	return pool
}

func connectRedis(ctx context.Context, cfg config.AppConfig, log *slog.Logger) *redis.Client {
	if cfg.Redis.Addr == "" {
		return nil
	}

	rdb := redis.NewClient(&redis.Options{
		Addr:     cfg.Redis.Addr,
		Password: cfg.Redis.Password,
		DB:       cfg.Redis.DB,
	})
	if err := rdb.Ping(ctx).Err(); err != nil {
		log.Warn("Redis unreachable, postal code lookups will not be cached", "addr", cfg.Redis.Addr, "error", err)
		_ = rdb.Close()
		return nil
	}
	log.Info("Redis postal code cache enabled", "addr", cfg.Redis.Addr, "ttl", cfg.Redis.PostalCodeTTL)
	return rdb
}

package main

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"net/http"

	"backoffice/internal/audit"
	auditmetrics "backoffice/internal/audit/metrics"
	auditmemory "backoffice/internal/audit/store/memory"
	auditpostgres "backoffice/internal/audit/store/postgres"
	"backoffice/internal/bootstrap"
	"backoffice/internal/console"
	"backoffice/internal/console/models"
	"backoffice/internal/decision"
	decisionmetrics "backoffice/internal/decision/metrics"
	"backoffice/internal/events"
	"backoffice/internal/events/kafka"
	eventmetrics "backoffice/internal/events/metrics"
	"backoffice/internal/featureflag"
	flagmetrics "backoffice/internal/featureflag/metrics"
	"backoffice/internal/platform/config"
	platformkafka "backoffice/internal/platform/kafka"
	"backoffice/internal/platform/metrics"
	"backoffice/internal/platform/postgres"
	"backoffice/internal/platform/redis"
	"backoffice/internal/policy"
	"backoffice/internal/rbac"
	"backoffice/internal/storage"
	httptransport "backoffice/internal/transport/http"
	"backoffice/pkg/platform/middleware/metadata"
	"backoffice/pkg/platform/middleware/ratelimit"
)

// app holds the wired process and the backends it has to release.
type app struct {
	Router  http.Handler
	Bus     *events.Bus
	closers []func() error
}

// buildApp wires engines, backends, console services and the HTTP boundary.
// Backends without configuration fall back to in-memory implementations.
func buildApp(ctx context.Context, cfg config.Server, log *slog.Logger) (_ *app, err error) {
	a := &app{}
	defer func() {
		if err != nil {
			_ = a.Close()
		}
	}()

	reg := metrics.New()

	seed, err := bootstrap.Load(cfg.SeedPath)
	if err != nil {
		return nil, fmt.Errorf("load seed: %w", err)
	}
	roles := rbac.NewEngine()
	rules := policy.NewEngine()
	flags := featureflag.NewEngine(
		featureflag.WithLogger(log),
		featureflag.WithMetrics(flagmetrics.New(reg)),
	)
	if err := seed.Apply(roles, rules, flags); err != nil {
		return nil, fmt.Errorf("apply seed: %w", err)
	}

	authz := decision.New(
		decision.WithSuperAdminRole(cfg.SuperAdminRole),
		decision.WithPermissionSource(roles),
		decision.WithPolicyEngine(rules),
		decision.WithLogger(log),
		decision.WithMetrics(decisionmetrics.New(reg)),
	)

	a.Bus = events.NewBus(
		events.WithLogger(log),
		events.WithMetrics(eventmetrics.New(reg)),
		events.WithHistoryLimit(cfg.HistoryLimit),
	)

	var checks []httptransport.Option

	kv, err := a.openKV(ctx, cfg.Redis, &checks)
	if err != nil {
		return nil, err
	}
	auditStore, err := a.openAuditStore(ctx, cfg.Postgres, &checks)
	if err != nil {
		return nil, err
	}
	if err := a.attachKafka(ctx, cfg.Kafka, log, &checks); err != nil {
		return nil, err
	}

	trail := audit.NewTrail(auditStore,
		audit.WithLogger(log),
		audit.WithMetrics(auditmetrics.New(reg)),
	)
	payments := storage.NewRepository(kv, "payments", func(p *models.Payment) string { return p.ID })
	accounts := storage.NewRepository(kv, "accounts", func(ac *models.Account) string { return ac.ID })
	svc, err := console.New(authz, trail, flags, payments, accounts, a.Bus, console.WithLogger(log))
	if err != nil {
		return nil, fmt.Errorf("build console: %w", err)
	}

	verifier, err := httptransport.NewTokenVerifier(cfg.JWTSigningKey)
	if err != nil {
		return nil, fmt.Errorf("build token verifier: %w", err)
	}

	h := httptransport.New(authz, flags, trail, a.Bus, svc, append(checks, httptransport.WithLogger(log))...)
	proxies, err := metadata.ParseTrustedProxies(cfg.TrustedProxies)
	if err != nil {
		return nil, err
	}
	routerCfg := httptransport.RouterConfig{
		Verifier:             verifier,
		AllowedOrigins:       cfg.AllowedOrigins,
		Timeout:              cfg.RequestTimeout,
		Logger:               log,
		TrustIdentityHeaders: cfg.TrustIdentityHeaders,
		TrustedProxies:       proxies,
		Metrics:              reg.Handler(),
	}
	if cfg.RateLimit.Enabled {
		routerCfg.RateLimit = &ratelimit.Config{
			RequestsPerSecond: cfg.RateLimit.RequestsPerSecond,
			Burst:             cfg.RateLimit.Burst,
		}
	}
	a.Router = httptransport.NewRouter(h, routerCfg)

	log.Info("backoffice wired",
		"roles", len(seed.Roles),
		"policies", len(seed.Policies),
		"flags", len(seed.Flags),
		"redis", cfg.Redis.URL != "",
		"postgres", cfg.Postgres.DSN != "",
		"kafka", len(cfg.Kafka.Brokers) > 0,
	)
	return a, nil
}

func (a *app) openKV(ctx context.Context, cfg config.RedisConfig, checks *[]httptransport.Option) (storage.Store, error) {
	client, err := redis.New(ctx, cfg)
	if err != nil {
		return nil, fmt.Errorf("connect redis: %w", err)
	}
	if client == nil {
		return storage.NewMemoryStore(), nil
	}
	a.closers = append(a.closers, client.Close)
	*checks = append(*checks, httptransport.WithHealthCheck("redis", client.Health))
	return storage.NewRedisStore(client.Client, storage.WithKeyPrefix(cfg.KeyPrefix)), nil
}

func (a *app) openAuditStore(ctx context.Context, cfg config.PostgresConfig, checks *[]httptransport.Option) (audit.Store, error) {
	db, err := postgres.Open(ctx, cfg)
	if err != nil {
		return nil, fmt.Errorf("connect postgres: %w", err)
	}
	if db == nil {
		return auditmemory.New(), nil
	}
	a.closers = append(a.closers, db.Close)
	*checks = append(*checks, httptransport.WithHealthCheck("postgres", pingDB(db)))

	store := auditpostgres.New(db)
	if err := store.EnsureSchema(ctx); err != nil {
		return nil, err
	}
	return store, nil
}

func (a *app) attachKafka(ctx context.Context, cfg config.KafkaConfig, log *slog.Logger, checks *[]httptransport.Option) error {
	client, err := platformkafka.New(ctx, cfg)
	if err != nil {
		return fmt.Errorf("connect kafka: %w", err)
	}
	if client == nil {
		return nil
	}
	a.closers = append(a.closers, func() error {
		client.Close()
		return nil
	})
	*checks = append(*checks, httptransport.WithHealthCheck("kafka", client.Health))

	if err := kafka.EnsureTopic(ctx, client.Admin, cfg.Topic, cfg.Partitions, cfg.ReplicationFactor); err != nil {
		return err
	}
	kafka.NewForwarder(client.Client, cfg.Topic, kafka.WithLogger(log)).Attach(a.Bus)
	return nil
}

func pingDB(db *sql.DB) httptransport.HealthCheck {
	return func(ctx context.Context) error {
		return db.PingContext(ctx)
	}
}

// Close releases backends in reverse order of acquisition.
func (a *app) Close() error {
	var errs []error
	for i := len(a.closers) - 1; i >= 0; i-- {
		errs = append(errs, a.closers[i]())
	}
	a.closers = nil
	return errors.Join(errs...)
}

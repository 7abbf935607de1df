package main

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/twmb/franz-go/pkg/kgo"

	accountports "warden/internal/account/ports"
	accountstore "warden/internal/account/store"
	"warden/internal/platform/config"
	"warden/internal/platform/kafka"
	"warden/internal/platform/postgres"
	"warden/internal/platform/redis"
	punishmentports "warden/internal/punishment/ports"
	punishmentstore "warden/internal/punishment/store"
	ratelimit "warden/internal/ratelimit/middleware"
	"warden/internal/ratelimit/store/bucket"
	httptransport "warden/internal/transport/http"
	"warden/pkg/platform/audit"
	"warden/pkg/platform/audit/publisher"
	auditkafka "warden/pkg/platform/audit/store/kafka"
	auditmemory "warden/pkg/platform/audit/store/memory"
	auditpostgres "warden/pkg/platform/audit/store/postgres"
)

const auditBufferSize = 4096

// infra holds the optional backing services. Nil fields are not configured.
type infra struct {
	db    *postgres.DB
	redis *redis.Client
	kafka *kgo.Client
}

func openInfra(ctx context.Context, cfg config.Config, log *slog.Logger) (*infra, error) {
	in := &infra{}

	db, err := postgres.Open(ctx, cfg.Postgres)
	if err != nil {
		return nil, err
	}
	in.db = db

	rdb, err := redis.New(ctx, cfg.Redis)
	if err != nil {
		in.Close(log)
		return nil, err
	}
	in.redis = rdb

	kc, err := kafka.New(ctx, cfg.Kafka)
	if err != nil {
		in.Close(log)
		return nil, err
	}
	in.kafka = kc

	log.Info("backing services",
		"postgres", in.db != nil,
		"redis", in.redis != nil,
		"kafka", in.kafka != nil,
	)
	return in, nil
}

func (in *infra) Close(log *slog.Logger) {
	if in.kafka != nil {
		in.kafka.Close()
	}
	if in.redis != nil {
		if err := in.redis.Close(); err != nil {
			log.Warn("failed to close redis", "error", err)
		}
	}
	if in.db != nil {
		if err := in.db.Close(); err != nil {
			log.Warn("failed to close postgres", "error", err)
		}
	}
}

func (in *infra) registerHealthChecks(h *httptransport.Handler) {
	if in.db != nil {
		h.AddHealthCheck("postgres", in.db.Health)
	}
	if in.redis != nil {
		h.AddHealthCheck("redis", in.redis.Health)
	}
	if in.kafka != nil {
		h.AddHealthCheck("kafka", in.kafka.Ping)
	}
}

// buildAuditPublisher prefers Kafka, then Postgres, then memory.
func buildAuditPublisher(ctx context.Context, cfg config.Config, in *infra, log *slog.Logger) (*publisher.Publisher, error) {
	var store audit.Store
	switch {
	case in.kafka != nil:
		if err := auditkafka.EnsureTopic(ctx, in.kafka, cfg.Kafka.AuditTopic, 3, 1); err != nil {
			return nil, err
		}
		ks, err := auditkafka.New(in.kafka, cfg.Kafka.AuditTopic)
		if err != nil {
			return nil, err
		}
		store = ks
	case in.db != nil:
		ps, err := auditpostgres.New(in.db.SQL)
		if err != nil {
			return nil, err
		}
		if err := ps.Migrate(ctx); err != nil {
			return nil, fmt.Errorf("migrate audit store: %w", err)
		}
		store = ps
	default:
		log.Warn("no audit backend configured, keeping audit events in memory")
		store = auditmemory.NewInMemoryStore()
	}
	return publisher.NewPublisher(store,
		publisher.WithAsyncBuffer(auditBufferSize),
		publisher.WithLogger(log),
	), nil
}

func buildPunishmentStore(ctx context.Context, in *infra, log *slog.Logger) (punishmentports.Store, error) {
	if in.db == nil {
		log.Warn("DATABASE_URL not set, punishments are kept in memory")
		return punishmentstore.NewInMemory(), nil
	}
	store := punishmentstore.NewPostgres(in.db.Pool)
	if err := store.Migrate(ctx); err != nil {
		return nil, fmt.Errorf("migrate punishment store: %w", err)
	}
	return store, nil
}

func buildSessionStore(ctx context.Context, cfg config.Config, in *infra) (accountports.Store, error) {
	switch cfg.Sessions.Backend {
	case config.SessionBackendRedis:
		return accountstore.NewRedis(in.redis.Client), nil
	case config.SessionBackendPostgres:
		store := accountstore.NewPostgres(in.db.SQL)
		if err := store.Migrate(ctx); err != nil {
			return nil, fmt.Errorf("migrate session store: %w", err)
		}
		return store, nil
	default:
		return accountstore.NewInMemory(), nil
	}
}

func buildRateLimiter(cfg config.Config, in *infra, log *slog.Logger) *ratelimit.Middleware {
	var store ratelimit.BucketStore = bucket.New()
	if in.redis != nil {
		store = bucket.NewRedis(in.redis.Client)
	}
	return ratelimit.New(store, cfg.RateLimit.Limit, cfg.RateLimit.Window,
		ratelimit.WithLogger(log),
		ratelimit.WithDisabled(cfg.RateLimit.Limit == 0),
	)
}

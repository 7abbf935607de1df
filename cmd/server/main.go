package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	accountservice "warden/internal/account/service"
	"warden/internal/addressintel"
	addressmetrics "warden/internal/addressintel/metrics"
	jwttoken "warden/internal/jwt_token"
	"warden/internal/platform/config"
	"warden/internal/platform/httpserver"
	"warden/internal/platform/logger"
	"warden/internal/platform/metrics"
	punishmentservice "warden/internal/punishment/service"
	httptransport "warden/internal/transport/http"
	"warden/internal/verification"
	verificationmetrics "warden/internal/verification/metrics"
)

var version = "dev"

func main() {
	issueToken := flag.String("issue-token", "", "print an operator token for the given name and exit")
	tokenTTL := flag.Duration("token-ttl", 24*time.Hour, "lifetime of tokens printed by -issue-token; 0 never expires")
	flag.Parse()

	cfg, err := config.FromEnv()
	if err != nil {
		fmt.Fprintf(os.Stderr, "config: %v\n", err)
		os.Exit(1)
	}
	log := logger.New(cfg.Logging)

	if *issueToken != "" {
		if err := printToken(cfg, *issueToken, *tokenTTL); err != nil {
			log.Error("failed to issue token", "error", err)
			os.Exit(1)
		}
		return
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := run(ctx, cfg, log); err != nil {
		log.Error("server stopped", "error", err)
		os.Exit(1)
	}
}

func printToken(cfg config.Config, operator string, ttl time.Duration) error {
	if cfg.Server.AuthSigningKey == "" {
		return errors.New("AUTH_SIGNING_KEY is required to issue tokens")
	}
	svc, err := jwttoken.NewJWTService(cfg.Server.AuthSigningKey, jwttoken.DefaultIssuer, jwttoken.DefaultAudience)
	if err != nil {
		return err
	}
	token, err := svc.GenerateToken(operator, ttl)
	if err != nil {
		return err
	}
	fmt.Println(token)
	return nil
}

func run(ctx context.Context, cfg config.Config, log *slog.Logger) error {
	backing, err := openInfra(ctx, cfg, log)
	if err != nil {
		return err
	}
	defer backing.Close(log)

	auditPublisher, err := buildAuditPublisher(ctx, cfg, backing, log)
	if err != nil {
		return err
	}
	defer auditPublisher.Close()

	m := metrics.New(version, auditPublisher.Dropped)

	screen, iphub, err := buildAddressIntel(ctx, cfg, m, auditPublisher, log)
	if err != nil {
		return err
	}

	punishmentStore, err := buildPunishmentStore(ctx, backing, log)
	if err != nil {
		return err
	}
	punishments, err := punishmentservice.New(punishmentStore,
		punishmentservice.WithLogger(log),
		punishmentservice.WithAuditPublisher(auditPublisher),
		punishmentservice.WithServerName(cfg.Punishment.ServerName),
		punishmentservice.WithAppealURL(cfg.Punishment.AppealURL),
	)
	if err != nil {
		return err
	}

	sessionStore, err := buildSessionStore(ctx, cfg, backing)
	if err != nil {
		return err
	}
	accounts, err := accountservice.New(sessionStore,
		accountservice.WithLogger(log),
		accountservice.WithSessionTTL(cfg.Sessions.TTL),
	)
	if err != nil {
		return err
	}

	pipeline := verification.New(
		verification.WithLogger(log),
		verification.WithMetrics(verificationmetrics.New(m.Registry)),
		verification.WithAuditPublisher(auditPublisher),
		verification.WithRunTimeout(cfg.Verify.Timeout),
	)
	if err := pipeline.Register(addressintel.ProcessorID, verification.PriorityHigh, screen); err != nil {
		return err
	}
	if err := pipeline.Register(punishmentservice.ProcessorID, verification.PriorityNormal, punishments,
		verification.WithFailOpen(!cfg.Punishment.FailClosed)); err != nil {
		return err
	}
	if iphub != nil {
		if err := pipeline.Register(addressintel.VPNProcessorID, verification.PriorityLow, iphub); err != nil {
			return err
		}
	}
	if err := pipeline.Register(accountservice.ProcessorID, verification.PriorityLowest, accounts); err != nil {
		return err
	}
	pipeline.Seal()
	m.SetProcessors(len(pipeline.Processors()))

	routerCfg := httptransport.RouterConfig{
		Logger:         log,
		Metrics:        m,
		RequestTimeout: cfg.Verify.Timeout + 5*time.Second,
		RateLimit:      buildRateLimiter(cfg, backing, log).RateLimit,
		TrustedProxies: cfg.Server.TrustedProxies,
	}
	if cfg.Server.AuthSigningKey != "" {
		validator, err := jwttoken.NewJWTService(cfg.Server.AuthSigningKey, jwttoken.DefaultIssuer, jwttoken.DefaultAudience)
		if err != nil {
			return err
		}
		routerCfg.Validator = validator
	} else {
		log.Warn("AUTH_SIGNING_KEY not set, operator API is unauthenticated")
	}

	handler := httptransport.NewHandler(pipeline, screen, punishments, log)
	backing.registerHealthChecks(handler)
	srv := httpserver.New(cfg.Server.Addr, httptransport.NewRouter(handler, routerCfg))

	go screen.Run(ctx, cfg.Addresses.RefreshInterval)

	log.Info("starting warden",
		"addr", cfg.Server.Addr,
		"version", version,
		"processors", len(pipeline.Processors()),
	)
	return httpserver.Serve(ctx, srv, cfg.Server.ShutdownTimeout, log)
}

func buildAddressIntel(ctx context.Context, cfg config.Config, m *metrics.Metrics, auditPublisher addressintel.AuditPublisher, log *slog.Logger) (*addressintel.Screen, *addressintel.IPHub, error) {
	client := addressintel.NewHTTPClient()
	providers, err := addressintel.BuiltinProviders(client, cfg.Addresses.Providers)
	if err != nil {
		return nil, nil, err
	}
	feeds, err := addressintel.FeedProviders(client, cfg.Addresses.Feeds)
	if err != nil {
		return nil, nil, err
	}
	providers = append(providers, feeds...)

	am := addressmetrics.New(m.Registry)
	loader := addressintel.NewLoader(
		addressintel.WithLoaderLogger(log),
		addressintel.WithLoaderMetrics(am),
		addressintel.WithConcurrency(cfg.Addresses.Concurrency),
		addressintel.WithLoadTimeout(cfg.Addresses.FetchTimeout),
	)
	screen, err := addressintel.NewScreen(loader, providers,
		addressintel.WithLogger(log),
		addressintel.WithMetrics(am),
		addressintel.WithAuditPublisher(auditPublisher),
	)
	if err != nil {
		return nil, nil, err
	}
	if _, err := screen.Refresh(ctx); err != nil {
		// Start with an empty set; the refresh loop retries.
		log.Error("initial address load failed", "error", err)
	}

	if cfg.IPHub.Token == "" {
		return screen, nil, nil
	}
	iphub, err := addressintel.NewIPHub(cfg.IPHub.Token,
		addressintel.WithIPHubClient(client),
		addressintel.WithIPHubCache(cfg.IPHub.CacheSize, cfg.IPHub.CacheTTL),
		addressintel.WithIPHubLogger(log),
		addressintel.WithIPHubMetrics(am),
	)
	if err != nil {
		return nil, nil, err
	}
	return screen, iphub, nil
}

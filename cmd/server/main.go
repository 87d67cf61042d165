// Server runs the NodeService gRPC API, the REST API and the trigger scheduler.
package main

import (
	"context"
	"database/sql"
	"errors"
	"log/slog"
	"net"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/redis/go-redis/v9"
	"golang.org/x/sync/errgroup"

	agentrepo "callflow/backend/internal/agent/repository"
	"callflow/backend/internal/audit"
	audithandler "callflow/backend/internal/audit/handler"
	auditrepo "callflow/backend/internal/audit/repository"
	callrepo "callflow/backend/internal/call/repository"
	companyrepo "callflow/backend/internal/company/repository"
	"callflow/backend/internal/config"
	"callflow/backend/internal/db"
	"callflow/backend/internal/dialer"
	"callflow/backend/internal/enginehook"
	healthhandler "callflow/backend/internal/health/handler"
	identityrepo "callflow/backend/internal/identity/repository"
	identityservice "callflow/backend/internal/identity/service"
	leadrepo "callflow/backend/internal/lead/repository"
	"callflow/backend/internal/logging"
	"callflow/backend/internal/metrics"
	"callflow/backend/internal/node"
	"callflow/backend/internal/node/callagent"
	"callflow/backend/internal/node/callback"
	"callflow/backend/internal/node/callprocessor"
	"callflow/backend/internal/node/contact"
	"callflow/backend/internal/node/scheduletrigger"
	"callflow/backend/internal/node/zohocrm"
	"callflow/backend/internal/policy/engine"
	policyrepo "callflow/backend/internal/policy/repository"
	schedulerepo "callflow/backend/internal/schedule/repository"
	"callflow/backend/internal/security"
	segmentrepo "callflow/backend/internal/segment/repository"
	"callflow/backend/internal/server"
	"callflow/backend/internal/server/interceptors"
	"callflow/backend/internal/telemetry"
	telemetryotel "callflow/backend/internal/telemetry/otel"
	"callflow/backend/internal/telemetry/producer"
	"callflow/backend/internal/trigger"
	userhandler "callflow/backend/internal/user/handler"
	userrepo "callflow/backend/internal/user/repository"
	userservice "callflow/backend/internal/user/service"
	workflowrepo "callflow/backend/internal/workflow/repository"
	"callflow/backend/internal/zoho"
)

const (
	serviceName         = "callflow"
	revocationPurgeTick = time.Hour
	shutdownTimeout     = 15 * time.Second
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		slog.Error("config", logging.Error(err))
		os.Exit(1)
	}
	logger := logging.New(serviceName, cfg.Env, cfg.Version, cfg.LogLevel)
	slog.SetDefault(logger)

	if err := run(cfg, logger); err != nil {
		logger.Error("server: exited", logging.Error(err))
		os.Exit(1)
	}
}

func run(cfg *config.Config, logger *slog.Logger) error {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if cfg.DatabaseURL == "" {
		return errors.New("DATABASE_URL is required")
	}
	if !cfg.AuthEnabled() {
		return errors.New("JWT_PRIVATE_KEY and JWT_PUBLIC_KEY are required")
	}

	database, err := db.OpenContext(ctx, cfg.DatabaseURL)
	if err != nil {
		return err
	}
	defer database.Close()

	providers, err := telemetryotel.NewProviders(ctx, telemetryotel.Config{
		Endpoint:    cfg.OTLPEndpoint,
		Insecure:    cfg.OTLPInsecure,
		ServiceName: serviceName,
		Version:     cfg.Version,
		Environment: cfg.Env,
	})
	if err != nil {
		return err
	}
	providers.SetGlobal()
	instruments, err := telemetryotel.NewInstruments(providers.MeterProvider)
	if err != nil {
		return err
	}
	emitters := []telemetry.EventEmitter{telemetryotel.NewEventEmitter(providers.LoggerProvider)}
	if kp := producer.NewKafkaProducer(cfg.TelemetryKafkaBrokersList(), cfg.TelemetryKafkaTopic); kp != nil {
		defer kp.Close()
		emitters = append(emitters, kp)
	}
	emitter := telemetry.Multi(emitters...)
	met := metrics.New()

	privateKey, publicKey, err := security.LoadKeyPair(cfg.JWTPrivateKey, cfg.JWTPublicKey)
	if err != nil {
		return err
	}
	tokenProvider := security.NewTokenProvider(privateKey, publicKey, cfg.JWTIssuer, cfg.JWTAudience, cfg.AccessTTL())

	companies := companyrepo.NewPostgresRepository(database)
	users := userrepo.NewPostgresRepository(database)
	revocations := identityrepo.NewPostgresRepository(database)
	audits := auditrepo.NewPostgresRepository(database)
	evaluator := engine.NewOPAEvaluator(policyrepo.NewPostgresRepository(database))
	auditLogger := audit.NewLogger(audits, interceptors.ClientIP)
	tokens := identityservice.NewTokenService(users, companies, revocations, tokenProvider)

	scheduler := trigger.NewManager(newTriggerStore(cfg, logger), logger).WithMetrics(met)
	registry, err := newRegistry(cfg, database, scheduler, met, instruments, emitter, logger)
	if err != nil {
		return err
	}
	health := healthhandler.NewServer(database, evaluator)

	grpcServer := server.NewGRPCServer(server.Options{
		Tokens:      tokenProvider,
		Revocations: revocations,
		Audit:       auditLogger,
		Telemetry:   emitter,
	})
	server.RegisterServices(grpcServer, server.Deps{
		Registry:            registry,
		HealthPinger:        database,
		HealthPolicyChecker: evaluator,
		Scopes:              evaluator,
	})

	httpServer := &http.Server{
		Addr: cfg.HTTPAddr,
		Handler: server.NewRouter(server.HTTPDeps{
			Service:     serviceName,
			Version:     cfg.Version,
			Ready:       health.Ready,
			Metrics:     met,
			Tokens:      tokenProvider,
			Revocations: revocations,
			Audit:       auditLogger,
			Handlers: []server.RouteRegistrar{
				userhandler.NewHandler(userservice.NewUserService(users, security.NewHasher(cfg.BcryptCost)), tokens, evaluator),
				audithandler.NewHandler(audits, evaluator),
			},
		}),
		ReadHeaderTimeout: 10 * time.Second,
	}

	lis, err := net.Listen("tcp", cfg.GRPCAddr)
	if err != nil {
		return err
	}

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		logger.Info("gRPC server listening", slog.String("addr", cfg.GRPCAddr))
		return grpcServer.Serve(lis)
	})
	g.Go(func() error {
		logger.Info("HTTP server listening", slog.String("addr", cfg.HTTPAddr))
		if err := httpServer.ListenAndServe(); !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	})
	g.Go(func() error {
		purgeRevocations(gctx, tokens, logger)
		return nil
	})
	g.Go(func() error {
		<-gctx.Done()
		logger.Info("shutting down...")
		shutdownCtx, cancel := context.WithTimeout(context.WithoutCancel(gctx), shutdownTimeout)
		defer cancel()
		scheduler.Stop(shutdownCtx)
		grpcServer.GracefulStop()
		_ = httpServer.Shutdown(shutdownCtx)
		if err := providers.Shutdown(shutdownCtx); err != nil {
			logger.Warn("otel shutdown", logging.Error(err))
		}
		return nil
	})
	err = g.Wait()
	logger.Info("server stopped")
	return err
}

// newTriggerStore returns the Redis store when REDIS_ADDR is set, else memory.
func newTriggerStore(cfg *config.Config, logger *slog.Logger) trigger.Store {
	if cfg.RedisAddr == "" {
		logger.Info("trigger store: in memory")
		return trigger.NewMemoryStore()
	}
	client := redis.NewClient(&redis.Options{
		Addr:     cfg.RedisAddr,
		Password: cfg.RedisPassword,
		DB:       cfg.RedisDB,
	})
	logger.Info("trigger store: redis", slog.String("addr", cfg.RedisAddr))
	return trigger.NewRedisStore(client, 0)
}

func newRegistry(cfg *config.Config, database *sql.DB, scheduler *trigger.Manager, met *metrics.Metrics,
	instruments *telemetryotel.Instruments, emitter telemetry.EventEmitter, logger *slog.Logger) (*node.Registry, error) {
	companies := companyrepo.NewPostgresRepository(database)
	segments := segmentrepo.NewPostgresRepository(database)
	leads := leadrepo.NewPostgresRepository(database)
	agents := agentrepo.NewPostgresRepository(database)
	calls := callrepo.NewPostgresRepository(database)
	engineHook := enginehook.NewClient(cfg.EngineWebhookURL, logger)

	dial := dialer.New(companies, calls, leads, dialer.RetellFactory(cfg.RetellBaseURL), logger).
		WithTelemetry(emitter).
		WithMetrics(met, instruments)

	crm := &zoho.Provider{
		BaseURL: cfg.ZohoAPIURL,
		Tokens: zoho.NewTokenSources(zoho.OAuthConfig{
			ClientID:     cfg.ZohoClientID,
			ClientSecret: cfg.ZohoClientSecret,
			AccountsURL:  cfg.ZohoAccountsURL,
		}, nil),
	}

	schedule := scheduletrigger.New(
		schedulerepo.NewPostgresRepository(database),
		workflowrepo.NewPostgresRepository(database),
		scheduler, engineHook, cfg.CronFrequencyMinutes, logger,
	).WithMetrics(met, instruments).WithTelemetry(emitter)

	registry := node.NewRegistry(logger).WithMetrics(met, instruments).WithTelemetry(emitter)
	err := registry.Register(
		contact.New(companies, segments, leads, logger),
		callback.New(companies, segments, leads),
		callagent.New(companies, agents, calls, dial, engineHook, logger),
		callprocessor.New(companies, agents, leads, dial, callprocessor.Config{
			DefaultMaxAttempts:    cfg.DefaultMaxAttempts,
			DefaultRetryAfterDays: cfg.DefaultRetryAfterDays,
			Concurrency:           cfg.CallConcurrency,
		}, logger),
		zohocrm.New(companies, crm.Client, logger),
		schedule,
	)
	return registry, err
}

// purgeRevocations deletes expired revoked tokens until ctx is done.
func purgeRevocations(ctx context.Context, tokens *identityservice.TokenService, logger *slog.Logger) {
	ticker := time.NewTicker(revocationPurgeTick)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			n, err := tokens.PurgeExpired(ctx)
			if err != nil {
				logger.Warn("revocation purge failed", logging.Error(err))
				continue
			}
			if n > 0 {
				logger.Info("revocation purge", slog.Int64("deleted", n))
			}
		}
	}
}

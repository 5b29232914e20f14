package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	validator "github.com/go-playground/validator/v10"
	"github.com/hibiken/asynq"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/redis/go-redis/extra/redisotel/v9"
	redis "github.com/redis/go-redis/v9"
	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"

	"github.com/wh1teend/paygate-liqpay/internal/admin"
	"github.com/wh1teend/paygate-liqpay/internal/callback"
	"github.com/wh1teend/paygate-liqpay/internal/config"
	"github.com/wh1teend/paygate-liqpay/internal/health"
	"github.com/wh1teend/paygate-liqpay/internal/notify"
	"github.com/wh1teend/paygate-liqpay/internal/obs"
	"github.com/wh1teend/paygate-liqpay/internal/provider"
	"github.com/wh1teend/paygate-liqpay/internal/provider/liqpay"
	"github.com/wh1teend/paygate-liqpay/internal/ratelimit"
	"github.com/wh1teend/paygate-liqpay/internal/store"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		panic(err)
	}

	logger := obs.NewLogger(cfg.LogFormat, cfg.LogLevel).With().Str("env", cfg.AppEnv).Logger()

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if cfg.TracingEnabled {
		shutdown, err := obs.InitTracer(ctx, obs.TracingConfig{
			ServiceName:   "paygate-api",
			Endpoint:      cfg.TracingEndpoint,
			SamplingRatio: cfg.TracingSampling,
			Environment:   cfg.AppEnv,
		})
		if err != nil {
			logger.Error().Err(err).Msg("initialise tracing")
		} else {
			defer func() {
				if err := shutdown(context.Background()); err != nil {
					logger.Error().Err(err).Msg("shutdown tracer")
				}
			}()
		}
	}

	if err := store.RunMigrations(cfg.DatabaseURL); err != nil {
		logger.Fatal().Err(err).Msg("run migrations")
	}

	initCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()

	poolConfig, err := pgxpool.ParseConfig(cfg.DatabaseURL)
	if err != nil {
		logger.Fatal().Err(err).Msg("parse database config")
	}
	poolConfig.ConnConfig.Tracer = obs.PGXTracer{}
	pool, err := pgxpool.NewWithConfig(initCtx, poolConfig)
	if err != nil {
		logger.Fatal().Err(err).Msg("connect database")
	}
	defer pool.Close()
	if err := pool.Ping(initCtx); err != nil {
		logger.Fatal().Err(err).Msg("ping database")
	}

	redisOpts, err := redis.ParseURL(cfg.RedisURL)
	if err != nil {
		logger.Fatal().Err(err).Msg("parse redis url")
	}
	redisClient := redis.NewClient(redisOpts)
	defer func() {
		if err := redisClient.Close(); err != nil {
			logger.Error().Err(err).Msg("close redis")
		}
	}()
	if err := redisClient.Ping(initCtx).Err(); err != nil {
		logger.Fatal().Err(err).Msg("ping redis")
	}
	if err := redisotel.InstrumentTracing(redisClient); err != nil {
		logger.Error().Err(err).Msg("instrument redis tracing")
	}

	taskClient := asynq.NewClient(asynq.RedisClientOpt{Addr: redisOpts.Addr, Password: redisOpts.Password, DB: redisOpts.DB})
	defer func() {
		if err := taskClient.Close(); err != nil {
			logger.Error().Err(err).Msg("close task client")
		}
	}()

	metrics := obs.NewMetrics(cfg.MetricsNamespace, nil)
	st := store.New(pool)
	resolver := store.Resolver{Store: st}
	registry := provider.NewRegistry(liqpay.Provider{})

	callbackHandler := &callback.Handler{
		Providers: registry,
		Deps: provider.Deps{
			Profiles:         resolver,
			PurchaseRequests: resolver,
			Transactions:     resolver,
		},
		Settler:   st,
		Audit:     st,
		Notifier:  &notify.Enqueuer{Client: taskClient},
		Replay:    redisClient,
		ReplayTTL: cfg.ReplayTTL,
		Logger:    logger,
		Metrics:   metrics,
	}
	redirectHandler := &callback.RedirectHandler{
		Providers:       registry,
		Profiles:        st,
		Requests:        st,
		Logger:          logger,
		Metrics:         metrics,
		CallbackBaseURL: cfg.CallbackBaseURL,
		ResultBaseURL:   cfg.ResultBaseURL,
	}
	adminHandler := &admin.Handler{
		Providers: registry,
		Profiles:  st,
		Validate:  validator.New(),
		Logger:    logger,
	}
	tokens := admin.TokenValidator{
		Secret:    []byte(cfg.AdminJWTSecret),
		Issuer:    cfg.AdminJWTIssuer,
		Audience:  cfg.AdminJWTAudience,
		ClockSkew: 30 * time.Second,
	}
	payLimiter := ratelimit.Handler{
		Limiter: ratelimit.Limiter{Client: redisClient, Prefix: "rl:pay:"},
		Config: ratelimit.Config{
			Key:    func(r *http.Request) string { return r.RemoteAddr },
			Window: cfg.RateLimitWindow,
			Max:    cfg.RateLimitMax,
		},
		OnError: func(err error) { logger.Warn().Err(err).Msg("rate limiter unavailable") },
	}
	healthHandler := health.Handler{Checker: probes{pool: pool, redis: redisClient}}

	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.Recoverer)
	r.Use(obs.RequestLogger{Logger: logger}.Middleware)

	r.Get("/healthz", healthHandler.Live)
	r.Get("/readyz", healthHandler.Ready)
	r.Method(http.MethodGet, "/metrics", promhttp.Handler())

	// The gateway may deliver callbacks as POST form data or GET query
	// parameters; accept both.
	r.Post("/callback/{provider}", callbackHandler.Handle)
	r.Get("/callback/{provider}", callbackHandler.Handle)

	r.Group(func(r chi.Router) {
		r.Use(payLimiter.Middleware)
		r.Post("/pay", redirectHandler.Pay)
	})

	r.Route("/admin", func(r chi.Router) {
		r.Use(tokens.Middleware)
		r.Post("/profiles", adminHandler.CreateProfile)
		r.Delete("/profiles/{id}", adminHandler.DisableProfile)
	})

	server := &http.Server{
		Addr:              cfg.HTTPAddr(),
		Handler:           otelhttp.NewHandler(r, "paygate-api"),
		ReadHeaderTimeout: 10 * time.Second,
	}

	go func() {
		logger.Info().Str("addr", server.Addr).Msg("http server listening")
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Error().Err(err).Msg("http server")
			stop()
		}
	}()

	<-ctx.Done()
	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer shutdownCancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		logger.Error().Err(err).Msg("shutdown http server")
		os.Exit(1)
	}
	logger.Info().Msg("shutdown complete")
}

type probes struct {
	pool  *pgxpool.Pool
	redis *redis.Client
}

func (p probes) PingDB(ctx context.Context) error    { return p.pool.Ping(ctx) }
func (p probes) PingRedis(ctx context.Context) error { return p.redis.Ping(ctx).Err() }

package main

import (
	"context"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/labstack/echo/v4"
	echomw "github.com/labstack/echo/v4/middleware"
	"github.com/rs/zerolog"

	"github.com/growthwatch/growthwatch/internal/config"
	"github.com/growthwatch/growthwatch/internal/domain/diagnosis"
	"github.com/growthwatch/growthwatch/internal/domain/followup"
	"github.com/growthwatch/growthwatch/internal/domain/growth"
	"github.com/growthwatch/growthwatch/internal/domain/patient"
	"github.com/growthwatch/growthwatch/internal/domain/summary"
	"github.com/growthwatch/growthwatch/internal/platform/auth"
	"github.com/growthwatch/growthwatch/internal/platform/cache"
	"github.com/growthwatch/growthwatch/internal/platform/db"
	"github.com/growthwatch/growthwatch/internal/platform/events"
	"github.com/growthwatch/growthwatch/internal/platform/middleware"
)

func newLogger(cfg *config.Config) zerolog.Logger {
	if cfg.IsDev() {
		return zerolog.New(zerolog.ConsoleWriter{Out: os.Stdout}).With().Timestamp().Logger()
	}
	return zerolog.New(os.Stdout).With().Timestamp().Logger()
}

// routeHandler is implemented by every domain handler.
type routeHandler interface {
	RegisterRoutes(api *echo.Group)
}

type app struct {
	handlers  []routeHandler
	publisher events.Publisher
	closers   []func()
}

func (a *app) close() {
	for i := len(a.closers) - 1; i >= 0; i-- {
		a.closers[i]()
	}
}

func runServer() error {
	cfg, err := config.Load()
	if err != nil {
		return err
	}
	logger := newLogger(cfg)
	if err := cfg.Validate(); err != nil {
		logger.Fatal().Err(err).Msg("invalid configuration")
	}

	ctx := context.Background()
	pool, err := db.NewPool(ctx, cfg.DatabaseURL, cfg.DBMaxConns, cfg.DBMinConns)
	if err != nil {
		logger.Fatal().Err(err).Msg("failed to connect to database")
	}
	defer pool.Close()
	logger.Info().Msg("connected to database")

	a, err := buildApp(ctx, cfg, pool, logger)
	if err != nil {
		logger.Fatal().Err(err).Msg("failed to wire services")
	}
	defer a.close()

	e := newEcho(cfg, logger, pool, a.handlers)

	go func() {
		addr := ":" + cfg.Port
		logger.Info().Str("addr", addr).Str("env", cfg.Env).Msg("starting server")
		if err := e.Start(addr); err != nil && err != http.ErrServerClosed {
			logger.Fatal().Err(err).Msg("server error")
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	logger.Info().Msg("shutting down server")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := e.Shutdown(shutdownCtx); err != nil {
		logger.Error().Err(err).Msg("server shutdown failed")
		return err
	}
	logger.Info().Msg("server stopped")
	return nil
}

// buildApp wires repositories, services and handlers. Redis and Kafka are
// optional; without them rule bases are read straight from Postgres and
// events are dropped.
func buildApp(ctx context.Context, cfg *config.Config, pool *pgxpool.Pool, logger zerolog.Logger) (*app, error) {
	a := &app{publisher: events.Nop{}}

	if cfg.EventsEnabled() {
		kp := events.NewKafkaPublisher(cfg.KafkaBrokers, cfg.KafkaTopic, logger)
		a.publisher = kp
		a.closers = append(a.closers, func() {
			if err := kp.Close(); err != nil {
				logger.Warn().Err(err).Msg("closing kafka writer")
			}
		})
		logger.Info().Strs("brokers", cfg.KafkaBrokers).Str("topic", cfg.KafkaTopic).Msg("publishing domain events")
	}

	patients := patient.NewRepoPG(pool)
	tx := db.NewTxRunner(pool)

	diagSvc, closeDiag, err := newDiagnosisService(ctx, cfg, pool, patients, logger)
	if err != nil {
		a.close()
		return nil, err
	}
	a.closers = append(a.closers, closeDiag)
	diagSvc.SetPublisher(a.publisher)

	followSvc := followup.NewService(followup.NewNoticeRepoPG(pool), patients, logger)
	followSvc.SetPublisher(a.publisher)

	growthSvc := growth.NewService(growth.NewMeasurementRepoPG(pool), patients, growth.DefaultCurve(), followSvc, tx, logger)
	growthSvc.SetPublisher(a.publisher)

	summarySvc := summary.NewService(patients, growthSvc, diagSvc, followSvc)

	a.handlers = []routeHandler{
		diagnosis.NewHandler(diagSvc),
		growth.NewHandler(growthSvc),
		followup.NewHandler(followSvc),
		summary.NewHandler(summarySvc),
	}
	return a, nil
}

// newDiagnosisService builds the inference service, fronting the rule base
// with Redis when REDIS_URL is configured.
func newDiagnosisService(ctx context.Context, cfg *config.Config, pool *pgxpool.Pool, patients diagnosis.PatientLookup, logger zerolog.Logger) (*diagnosis.Service, func(), error) {
	svc := diagnosis.NewService(
		diagnosis.NewSymptomRepoPG(pool),
		diagnosis.NewConditionRepoPG(pool),
		diagnosis.NewRuleRepoPG(pool),
		diagnosis.NewSessionRepoPG(pool),
		diagnosis.NewRecordedSymptomRepoPG(pool),
		patients,
		db.NewTxRunner(pool),
		logger,
	)
	if !cfg.CacheEnabled() {
		return svc, func() {}, nil
	}

	client, err := cache.NewRedisClient(ctx, cfg.RedisURL)
	if err != nil {
		return nil, nil, err
	}
	store := cache.NewStore(client, "growthwatch:")
	svc.SetRuleCache(diagnosis.NewCachedRuleBase(diagnosis.NewRuleRepoPG(pool), store, cfg.RuleBaseCacheTTL, logger))
	logger.Info().Dur("ttl", cfg.RuleBaseCacheTTL).Msg("rule base cache enabled")

	return svc, func() {
		if err := client.Close(); err != nil {
			logger.Warn().Err(err).Msg("closing redis client")
		}
	}, nil
}

func newEcho(cfg *config.Config, logger zerolog.Logger, pool db.Pinger, handlers []routeHandler) *echo.Echo {
	e := echo.New()
	e.HideBanner = true
	e.HidePort = true

	e.Use(middleware.Recovery(logger))
	e.Use(middleware.RequestID())
	e.Use(middleware.SecurityHeaders())
	e.Use(echomw.CORSWithConfig(echomw.CORSConfig{
		AllowOrigins: cfg.CORSOrigins,
		AllowMethods: []string{http.MethodGet, http.MethodPost},
		AllowHeaders: []string{"Authorization", "Content-Type", middleware.RequestIDHeader},
	}))
	e.Use(middleware.Logger(logger))
	e.Use(middleware.BodyLimit(cfg.BodyLimit))

	jwtCfg := auth.JWTConfig{
		Issuer:     cfg.AuthIssuer,
		SigningKey: []byte(cfg.AuthSigningKey),
		Skipper:    auth.AuthSkipper,
	}
	if cfg.IsDev() {
		e.Use(auth.DevAuthMiddleware(jwtCfg))
	} else {
		e.Use(auth.JWTMiddleware(jwtCfg))
	}

	e.GET("/health", func(c echo.Context) error {
		return c.JSON(http.StatusOK, map[string]string{"status": "ok"})
	})
	e.GET("/health/db", db.HealthHandler(pool))

	apiV1 := e.Group("/api/v1",
		middleware.RateLimit(middleware.RateLimitConfig{
			RequestsPerSecond: cfg.RateLimitRPS,
			BurstSize:         cfg.RateLimitBurst,
		}),
		middleware.RequestTimeout(cfg.RequestTimeout),
	)
	for _, h := range handlers {
		h.RegisterRoutes(apiV1)
	}
	return e
}

package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/labstack/echo/v4"
	echomw "github.com/labstack/echo/v4/middleware"
	goredis "github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"

	"github.com/ehr/ptl/internal/config"
	"github.com/ehr/ptl/internal/domain/appointment"
	"github.com/ehr/ptl/internal/domain/mdt"
	"github.com/ehr/ptl/internal/domain/monitor"
	"github.com/ehr/ptl/internal/domain/pathway"
	"github.com/ehr/ptl/internal/domain/resolver"
	"github.com/ehr/ptl/internal/platform/db"
	"github.com/ehr/ptl/internal/platform/middleware"
	"github.com/ehr/ptl/internal/platform/notification"
)

const applicationName = "ptl-server"

// app holds every wired component. Commands build one, use the parts they
// need and Close it.
type app struct {
	cfg    *config.Config
	logger zerolog.Logger

	pool *pgxpool.Pool
	rdb  *goredis.Client

	stores       map[pathway.List]pathway.Store
	pathways     *pathway.Service
	mdt          *mdt.Service
	appointments *appointment.Service
	resolver     *resolver.Resolver
	dispatcher   *notification.Dispatcher
	recent       *notification.MemorySender
	reevaluator  *monitor.Reevaluator
}

func newLogger(env string) zerolog.Logger {
	if env == "development" {
		return zerolog.New(zerolog.ConsoleWriter{Out: os.Stdout}).With().Timestamp().Logger()
	}
	return zerolog.New(os.Stdout).With().Timestamp().Logger()
}

func newApp(ctx context.Context, cfg *config.Config, logger zerolog.Logger) (*app, error) {
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}
	a := &app{cfg: cfg, logger: logger}

	var mdtRepo mdt.Repository
	var apptRepo appointment.Repository
	if cfg.UsePostgres() {
		pool, err := db.NewPool(ctx, db.PoolOptions{
			URL:             cfg.DatabaseURL,
			MaxConns:        cfg.DBMaxConns,
			MinConns:        cfg.DBMinConns,
			ApplicationName: applicationName,
		})
		if err != nil {
			return nil, err
		}
		a.pool = pool
		a.stores = map[pathway.List]pathway.Store{
			pathway.ListPTL:    pathway.NewStorePG(pool, pathway.ListPTL),
			pathway.ListCancer: pathway.NewStorePG(pool, pathway.ListCancer),
		}
		mdtRepo = mdt.NewRepoPG(pool)
		apptRepo = appointment.NewRepoPG(pool)
		logger.Info().Msg("connected to database")
	} else {
		a.stores = map[pathway.List]pathway.Store{
			pathway.ListPTL:    pathway.NewMemoryStore(),
			pathway.ListCancer: pathway.NewMemoryStore(),
		}
		mdtRepo = mdt.NewMemoryRepo()
		apptRepo = appointment.NewMemoryRepo()
		logger.Warn().Msg("using in-memory stores, data is lost on exit")
	}

	var tiers monitor.TierStore = monitor.NewMemoryTierStore()
	a.recent = notification.NewMemorySender(notification.DefaultRecentAlerts)
	senders := []notification.Sender{notification.NewLogSender(logger), a.recent}
	if cfg.RedisURL != "" {
		opts, err := goredis.ParseURL(cfg.RedisURL)
		if err != nil {
			a.Close()
			return nil, fmt.Errorf("parse redis url: %w", err)
		}
		a.rdb = goredis.NewClient(opts)
		if err := a.rdb.Ping(ctx).Err(); err != nil {
			a.Close()
			return nil, fmt.Errorf("ping redis: %w", err)
		}
		senders = append(senders, notification.NewRedisSender(a.rdb, cfg.AlertChannel))
		tiers = monitor.NewRedisTierStore(a.rdb, monitor.DefaultTierKey)
		logger.Info().Str("channel", cfg.AlertChannel).Msg("publishing alerts to redis")
	}
	if cfg.AlertWebhookURL != "" {
		wh, err := notification.NewWebhookSender(cfg.AlertWebhookURL, cfg.AlertWebhookSecret)
		if err != nil {
			a.Close()
			return nil, err
		}
		senders = append(senders, wh)
	}
	a.dispatcher = notification.NewDispatcher(logger, cfg.AlertBuffer, senders...)

	a.pathways = pathway.NewService(a.stores[pathway.ListPTL], a.stores[pathway.ListCancer], logger).
		WithTolerance(cfg.ClockTolerance)
	a.mdt = mdt.NewService(mdtRepo)
	a.appointments = appointment.NewService(apptRepo)
	a.resolver = resolver.New(a.stores[pathway.ListPTL], a.stores[pathway.ListCancer], a.mdt, a.appointments, logger).
		WithTimeout(cfg.ResolverTimeout)

	a.reevaluator = monitor.NewReevaluator(a.stores, tiers, a.dispatcher, logger)
	a.reevaluator.Interval = cfg.ReevaluateInterval
	a.reevaluator.Workers = cfg.ReevaluateWorkers
	a.reevaluator.Tolerance = cfg.ClockTolerance

	return a, nil
}

// Close releases connections. The dispatcher is closed by whoever runs it.
func (a *app) Close() {
	if a.rdb != nil {
		a.rdb.Close()
	}
	if a.pool != nil {
		a.pool.Close()
	}
}

const requestTimeout = 30 * time.Second

func (a *app) router() *echo.Echo {
	e := echo.New()
	e.HideBanner = true
	e.HidePort = true

	e.Use(middleware.Recovery(a.logger))
	e.Use(middleware.RequestID())
	e.Use(middleware.ActorFromHeader(""))
	e.Use(middleware.Logger(a.logger))
	e.Use(echomw.CORSWithConfig(echomw.CORSConfig{
		AllowOrigins: a.cfg.CORSOrigins,
		AllowMethods: []string{http.MethodGet, http.MethodPost, http.MethodPut, http.MethodDelete},
		AllowHeaders: []string{"Content-Type", middleware.RequestIDHeader, middleware.ActorHeader},
	}))
	e.Use(middleware.SecurityHeaders())
	e.Use(middleware.BodyLimit("1M"))
	e.Use(middleware.RequestTimeout(requestTimeout, "/api/v1/reevaluate"))

	e.GET("/health", func(c echo.Context) error {
		return c.JSON(http.StatusOK, map[string]string{"status": "ok", "store": a.cfg.StoreBackend})
	})
	if a.pool != nil {
		e.GET("/health/db", db.HealthHandler(a.pool))
	}

	api := e.Group("/api/v1")
	pathway.NewHandler(a.pathways).RegisterRoutes(api)
	mdt.NewHandler(a.mdt).RegisterRoutes(api)
	appointment.NewHandler(a.appointments).RegisterRoutes(api)
	resolver.NewHandler(a.resolver).RegisterRoutes(api)
	monitor.NewHandler(a.reevaluator).RegisterRoutes(api)
	notification.NewHandler(a.recent, a.dispatcher).RegisterRoutes(api)

	return e
}

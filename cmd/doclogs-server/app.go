package main

import (
	"context"
	crypto_rand "crypto/rand"
	"errors"
	"fmt"
	"net/http"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/labstack/echo/v4"
	echomw "github.com/labstack/echo/v4/middleware"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rs/zerolog"

	"github.com/skindd/doclogs/internal/config"
	"github.com/skindd/doclogs/internal/domain/booking"
	"github.com/skindd/doclogs/internal/domain/identity"
	"github.com/skindd/doclogs/internal/domain/slot"
	"github.com/skindd/doclogs/internal/platform/auth"
	"github.com/skindd/doclogs/internal/platform/consultation"
	"github.com/skindd/doclogs/internal/platform/db"
	"github.com/skindd/doclogs/internal/platform/directory"
	"github.com/skindd/doclogs/internal/platform/jobs"
	"github.com/skindd/doclogs/internal/platform/middleware"
	"github.com/skindd/doclogs/internal/platform/notification"
	"github.com/skindd/doclogs/internal/platform/websocket"
)

// stores bundles the backing stores for one storage driver. pinger is nil
// for the memory driver.
type stores struct {
	slots    slot.Store
	doctors  identity.Store
	profiles directory.Store
	pinger   db.Pinger
}

func memoryStores() stores {
	return stores{
		slots:    slot.NewMemoryStore(),
		doctors:  identity.NewMemoryStore(),
		profiles: directory.NewMemoryStore(),
	}
}

func postgresStores(pool *pgxpool.Pool) stores {
	return stores{
		slots:    slot.NewSlotRepoPG(pool),
		doctors:  identity.NewDoctorRepoPG(pool),
		profiles: directory.NewProfileRepoPG(pool),
		pinger:   pool,
	}
}

type app struct {
	echo       *echo.Echo
	dispatcher *notification.Dispatcher
	scheduler  *jobs.Scheduler
	logger     zerolog.Logger
}

// resolveSigningKey returns the configured JWT secret, or a random key when
// none is set. A random key invalidates sessions on every restart.
func resolveSigningKey(secret string) ([]byte, bool, error) {
	if secret != "" {
		return []byte(secret), false, nil
	}
	key := make([]byte, 32)
	if _, err := crypto_rand.Read(key); err != nil {
		return nil, false, fmt.Errorf("failed to generate random signing key: %w", err)
	}
	return key, true, nil
}

func newChannel(cfg *config.Config, logger zerolog.Logger) notification.Channel {
	if cfg.NotifyWebhookURL != "" {
		return notification.NewWebhookChannel(cfg.NotifyWebhookURL, cfg.NotifyWebhookSecret)
	}
	return notification.NewLogChannel(logger)
}

func newApp(cfg *config.Config, st stores, reg prometheus.Registerer, logger zerolog.Logger) (*app, error) {
	key, random, err := resolveSigningKey(cfg.JWTSecret)
	if err != nil {
		return nil, err
	}
	if random {
		logger.Warn().Msg("JWT_SECRET not set, using a random signing key")
	}
	jwtCfg := auth.JWTConfig{
		Issuer:     cfg.JWTIssuer,
		SigningKey: key,
		TTL:        cfg.JWTTTL,
		Skipper:    auth.AuthSkipper,
	}
	authMW := auth.JWTMiddleware(jwtCfg)
	if cfg.IsDev() {
		authMW = auth.DevAuthMiddleware(jwtCfg)
	}

	dispatcher, err := notification.NewDispatcher(notification.Config{
		Workers:    cfg.NotifyWorkers,
		QueueSize:  cfg.NotifyQueueSize,
		Timeout:    cfg.NotifyTimeout,
		Registerer: reg,
	}, newChannel(cfg, logger), st.profiles, notification.NewHistory(), logger)
	if err != nil {
		return nil, fmt.Errorf("notification dispatcher: %w", err)
	}

	scheduler := jobs.NewScheduler(logger)
	if err := scheduler.AddPrune("notification_history", cfg.NotifyPruneSchedule, dispatcher.History(), cfg.NotifyRetention); err != nil {
		return nil, err
	}

	engine := slot.NewEngine(st.slots, logger)
	ids := identity.NewService(st.doctors, identity.NewBcryptHasher(cfg.BcryptCost), logger)
	gw, err := booking.NewGateway(engine, ids, auth.NewTokenIssuer(jwtCfg), dispatcher, reg, logger)
	if err != nil {
		return nil, fmt.Errorf("booking gateway: %w", err)
	}
	hub := websocket.NewHub(logger)
	gw.SetPublisher(hub)

	httpMetrics, err := middleware.NewHTTPMetrics(middleware.HTTPMetricsOptions{Registerer: reg})
	if err != nil {
		return nil, fmt.Errorf("http metrics: %w", err)
	}

	e := echo.New()
	e.HideBanner = true
	e.HidePort = true

	e.Use(middleware.RequestID())
	e.Use(middleware.Logger(logger))
	e.Use(middleware.Recovery(logger))
	e.Use(middleware.SecurityHeaders())
	e.Use(echomw.CORSWithConfig(echomw.CORSConfig{
		AllowOrigins: cfg.CORSOrigins,
		AllowMethods: []string{http.MethodGet, http.MethodPost, http.MethodPut, http.MethodDelete},
		AllowHeaders: []string{"Authorization", "Content-Type", middleware.RequestIDHeader, auth.DevDoctorHeader},
	}))
	rateLimitCfg := middleware.DefaultRateLimitConfig()
	rateLimitCfg.RequestsPerSecond = cfg.RateLimitRPS
	rateLimitCfg.BurstSize = cfg.RateLimitBurst
	e.Use(middleware.RateLimit(rateLimitCfg))
	e.Use(httpMetrics.Middleware())

	e.GET("/health", func(c echo.Context) error {
		return c.JSON(http.StatusOK, map[string]string{
			"status":  "ok",
			"storage": cfg.StorageDriver,
		})
	})
	if st.pinger != nil {
		e.GET("/health/db", db.HealthHandler(st.pinger))
	}
	if g, ok := reg.(prometheus.Gatherer); ok {
		e.GET("/metrics", echo.WrapHandler(promhttp.HandlerFor(g, promhttp.HandlerOpts{})))
	}

	root := e.Group("")
	booking.NewHandler(gw).RegisterRoutes(root, authMW)
	directory.NewHandler(st.profiles, logger).RegisterRoutes(root, authMW)
	notification.NewHandler(dispatcher.History()).RegisterRoutes(root, authMW)
	websocket.NewHandler(hub, cfg.CORSOrigins, logger).RegisterRoutes(root)
	consultation.NewHandler(consultation.NewClient(consultation.Config{
		BaseURL: cfg.ConsultAPIURL,
		APIKey:  cfg.ConsultAPIKey,
		Model:   cfg.ConsultModel,
		Timeout: cfg.ConsultTimeout,
	}, logger)).RegisterRoutes(root)

	return &app{echo: e, dispatcher: dispatcher, scheduler: scheduler, logger: logger}, nil
}

func (a *app) start() {
	a.dispatcher.Start()
	a.scheduler.Start()
}

// shutdown stops accepting requests, then drains queued notices and stops
// the scheduler.
func (a *app) shutdown(ctx context.Context) error {
	return errors.Join(
		a.echo.Shutdown(ctx),
		a.dispatcher.Stop(ctx),
		a.scheduler.Stop(ctx),
	)
}

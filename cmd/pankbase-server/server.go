package main

import (
	"net/http"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/labstack/echo/v4"
	echomw "github.com/labstack/echo/v4/middleware"
	"github.com/rs/zerolog"

	"github.com/pankbase/functional/internal/config"
	"github.com/pankbase/functional/internal/domain/association"
	"github.com/pankbase/functional/internal/domain/cohort"
	"github.com/pankbase/functional/internal/domain/integration"
	"github.com/pankbase/functional/internal/platform/auth"
	"github.com/pankbase/functional/internal/platform/db"
	"github.com/pankbase/functional/internal/platform/metrics"
	"github.com/pankbase/functional/internal/platform/middleware"
	"github.com/pankbase/functional/internal/platform/validation"
)

// newServer wires every handler onto a fresh echo instance. pool may be nil,
// in which case the source registry is kept in memory.
func newServer(cfg *config.Config, logger zerolog.Logger, store *cohort.Store, pool *pgxpool.Pool) *echo.Echo {
	e := echo.New()
	e.HideBanner = true
	e.HidePort = true
	e.Validator = validation.New()

	e.Use(middleware.RequestID())
	e.Use(middleware.Recovery(logger))
	e.Use(middleware.Logger(logger))
	e.Use(middleware.Metrics())
	e.Use(middleware.SecurityHeaders())
	e.Use(echomw.CORSWithConfig(echomw.CORSConfig{
		AllowOrigins: cfg.CORSOrigins,
		AllowMethods: []string{http.MethodGet, http.MethodPost, http.MethodDelete},
		AllowHeaders: []string{echo.HeaderAuthorization, echo.HeaderContentType, middleware.RequestIDHeader},
	}))
	e.Use(middleware.BodyLimit(cfg.BodyLimit))

	var pinger db.Pinger
	if pool != nil {
		pinger = pool
	}
	e.GET("/health", healthHandler(store, pinger))
	e.GET("/metrics", metrics.Handler())

	api := e.Group("/api/v1")
	if cfg.IsDev() {
		api.Use(auth.DevAuthMiddleware())
	} else {
		api.Use(auth.JWTMiddleware(auth.JWTConfig{
			Issuer:     cfg.AuthIssuer,
			Audience:   cfg.AuthAudience,
			SigningKey: []byte(cfg.AuthSigningKey),
			Optional:   true,
		}))
	}

	rl := middleware.RateLimitConfig{
		RequestsPerSecond: cfg.RateLimitRPS,
		BurstSize:         cfg.RateLimitBurst,
	}
	if rl.RequestsPerSecond <= 0 {
		rl = middleware.DefaultRateLimitConfig()
	}
	api.Use(middleware.RateLimit(rl))
	api.Use(middleware.Audit(logger))
	if cfg.RequestTimeout > 0 {
		api.Use(middleware.RequestTimeout(cfg.RequestTimeout, "/api/v1/admin", "/api/v1/filter/download"))
	}

	engine := association.NewEngine(association.Options{
		Workers:         cfg.AnalysisWorkers,
		MinSampleMargin: cfg.MinSampleMargin,
	}, logger)
	analysis := association.NewService(store, engine)

	repo := integration.NewMemoryRepo()
	if pool != nil {
		repo = integration.NewSourceRepoPG(pool)
	}
	fetcher := integration.NewHTTPFetcher(integration.WithTimeout(cfg.ExternalFetchTimeout))

	cohort.NewHandler(cohort.NewService(store)).RegisterRoutes(api)
	association.NewHandler(analysis).RegisterRoutes(api)
	integration.NewHandler(integration.NewService(repo, fetcher, analysis, store, logger)).RegisterRoutes(api)

	return e
}

type healthResponse struct {
	Status   string        `json:"status"`
	Dataset  *cohort.Stats `json:"dataset,omitempty"`
	Database db.Health     `json:"database"`
}

// healthHandler reports the published snapshot and the registry database.
// It answers 503 until a snapshot exists or while the database is down.
func healthHandler(store *cohort.Store, pinger db.Pinger) echo.HandlerFunc {
	return func(c echo.Context) error {
		resp := healthResponse{
			Status:   "ok",
			Database: db.Check(c.Request().Context(), pinger),
		}
		code := http.StatusOK

		snap, err := store.View()
		switch {
		case err != nil:
			resp.Status = "loading"
			code = http.StatusServiceUnavailable
		default:
			st := snap.Stats()
			resp.Dataset = &st
		}
		if !resp.Database.Healthy() {
			resp.Status = "degraded"
			code = http.StatusServiceUnavailable
		}
		return c.JSON(code, resp)
	}
}

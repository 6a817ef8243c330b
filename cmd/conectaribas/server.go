package main

import (
	"context"
	"fmt"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"github.com/labstack/echo/v4"
	echomw "github.com/labstack/echo/v4/middleware"
	"github.com/rs/zerolog"

	"github.com/conectaribas/conectaribas/internal/config"
	"github.com/conectaribas/conectaribas/internal/domain/diagnosis"
	"github.com/conectaribas/conectaribas/internal/domain/firstaid"
	"github.com/conectaribas/conectaribas/internal/domain/history"
	"github.com/conectaribas/conectaribas/internal/domain/settings"
	"github.com/conectaribas/conectaribas/internal/platform/db"
	"github.com/conectaribas/conectaribas/internal/platform/middleware"
	"github.com/conectaribas/conectaribas/internal/platform/observe"
	"github.com/conectaribas/conectaribas/internal/seed"
)

const sweepInterval = time.Minute

func runServer(cfg *config.Config, logger zerolog.Logger) error {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	// Database
	pool, err := db.NewPool(ctx, cfg.DatabaseURL, cfg.DBMaxConns, cfg.DBMinConns)
	if err != nil {
		return fmt.Errorf("connect to database: %w", err)
	}
	defer pool.Close()
	logger.Info().Msg("connected to database")

	broker := observe.NewBroker(logger)
	txm := db.NewTxManager(pool)

	// Repositories and services
	treeRepo := diagnosis.NewTreeRepoPG(pool)
	guideRepo := firstaid.NewGuideRepoPG(pool)

	historySvc := history.NewService(history.NewRecordRepoPG(pool), broker, txm)
	firstAidSvc := firstaid.NewService(guideRepo, broker)
	diagnosisSvc := diagnosis.NewService(treeRepo, historySvc, broker, logger, cfg.SessionTTL)

	prefs, err := settings.NewFileStore(cfg.PreferencesFile)
	if err != nil {
		return fmt.Errorf("open preferences: %w", err)
	}
	settingsSvc := settings.NewService(prefs, logger, historySvc, diagnosisSvc, firstAidSvc)

	go diagnosisSvc.RunSweeper(ctx, sweepInterval)

	if cfg.SeedOnStart {
		loader := seed.NewLoader(txm, treeRepo, guideRepo, broker, logger)
		loader.OnFirstLaunch(ctx, settingsSvc)
	}

	// Echo server
	e := echo.New()
	e.HideBanner = true
	e.HidePort = true

	e.Use(middleware.Recovery(logger))
	e.Use(middleware.RequestID())
	e.Use(middleware.Logger(logger))
	e.Use(middleware.SecurityHeaders())
	e.Use(middleware.BodyLimit(cfg.BodyLimit, cfg.ImportBodyLimit))
	e.Use(middleware.RequestTimeout(cfg.RequestTimeout))
	e.Use(echomw.CORSWithConfig(echomw.CORSConfig{
		AllowOrigins: cfg.CORSOrigins,
		AllowMethods: []string{http.MethodGet, http.MethodPost, http.MethodPut, http.MethodDelete},
		AllowHeaders: []string{"Content-Type", middleware.RequestIDHeader},
	}))

	e.GET("/health", db.HealthHandler(pool, version))

	apiV1 := e.Group("/api/v1")
	diagnosis.NewHandler(diagnosisSvc, logger).RegisterRoutes(apiV1)
	history.NewHandler(historySvc, logger).RegisterRoutes(apiV1)
	firstaid.NewHandler(firstAidSvc, logger).RegisterRoutes(apiV1)
	settings.NewHandler(settingsSvc).RegisterRoutes(apiV1)
	apiV1.GET("/stats", statsHandler(map[string]counter{
		"symptom_records":     historySvc.Count,
		"first_aid_guides":    firstAidSvc.Count,
		"diagnosis_questions": diagnosisSvc.CountQuestions,
	}, diagnosisSvc.SessionCount))

	go func() {
		addr := ":" + cfg.Port
		logger.Info().Str("addr", addr).Str("env", cfg.Env).Msg("starting server")
		if err := e.Start(addr); err != nil && err != http.ErrServerClosed {
			logger.Error().Err(err).Msg("server error")
			stop()
		}
	}()

	<-ctx.Done()
	logger.Info().Msg("shutting down server")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := e.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("server shutdown failed: %w", err)
	}
	logger.Info().Msg("server stopped")
	return nil
}

type counter func(ctx context.Context) (int, error)

// statsHandler reports row counts per table plus the number of live
// diagnosis sessions.
func statsHandler(counts map[string]counter, sessions func() int) echo.HandlerFunc {
	return func(c echo.Context) error {
		ctx := c.Request().Context()
		out := make(map[string]int, len(counts)+1)
		for name, count := range counts {
			n, err := count(ctx)
			if err != nil {
				return echo.NewHTTPError(http.StatusInternalServerError, fmt.Sprintf("count %s: %v", name, err))
			}
			out[name] = n
		}
		out["active_sessions"] = sessions()
		return c.JSON(http.StatusOK, out)
	}
}

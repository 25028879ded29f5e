package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/cors"
	"github.com/gofiber/fiber/v2/middleware/logger"
	"github.com/gofiber/fiber/v2/middleware/recover"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/rs/zerolog/log"

	"github.com/skycast/weather/internal/audio"
	"github.com/skycast/weather/internal/config"
	"github.com/skycast/weather/internal/delivery/http"
	"github.com/skycast/weather/internal/logging"
	"github.com/skycast/weather/internal/recognizer/deepgram"
	"github.com/skycast/weather/internal/repository/postgres"
	"github.com/skycast/weather/internal/repository/rediscache"
	"github.com/skycast/weather/internal/service"
	"github.com/skycast/weather/internal/voice"
	"github.com/skycast/weather/internal/widget"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatal().Err(err).Msg("invalid configuration")
	}
	appLog := logging.New(logging.Config{Level: cfg.Log.Level, Format: cfg.Log.Format})

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	// Dependency Injection: Repositories
	var dataRepo service.DataRepository = postgres.NewMockRepository()
	if cfg.DatabaseURL != "" {
		pool, err := pgxpool.New(ctx, cfg.DatabaseURL)
		if err == nil {
			if err = pool.Ping(ctx); err != nil {
				pool.Close()
			}
		}
		if err != nil {
			appLog.Warn().Err(err).Msg("could not connect to database, history kept in memory")
		} else {
			defer pool.Close()
			repo := postgres.NewPostgresRepository(pool)
			if err := repo.Migrate(ctx); err != nil {
				appLog.Fatal().Err(err).Msg("database migration failed")
			}
			dataRepo = repo
			appLog.Info().Msg("connected to PostgreSQL")
		}
	}

	var cache service.Cache
	if cfg.RedisURL != "" {
		client, err := rediscache.Connect(cfg.RedisURL)
		if err == nil {
			if err = client.Ping(ctx).Err(); err != nil {
				client.Close()
			}
		}
		if err != nil {
			appLog.Warn().Err(err).Msg("could not connect to redis, running without a report cache")
		} else {
			defer client.Close()
			cache = rediscache.New(client, "", 0)
			appLog.Info().Msg("connected to Redis")
		}
	}

	// Dependency Injection: Services
	weatherSvc := service.NewWeatherService(cfg.WeatherAPIKey, cfg.WeatherURL)
	if weatherSvc.IsMock() {
		appLog.Warn().Msg("VISUALCROSSING_API_KEY not set, serving mock weather")
	}
	lookupSvc := service.NewLookupService(weatherSvc, cache, dataRepo, cfg.CacheTTL, logging.Component(appLog, "lookup"))

	dgCfg := deepgram.Config{APIKey: cfg.Voice.DeepgramAPIKey, URL: cfg.Voice.DeepgramURL}
	dgLog := logging.Component(appLog, "deepgram")
	voiceOpts := voice.DefaultOptions()
	voiceOpts.Language = cfg.Voice.Language

	registry := widget.NewRegistry(widget.Config{
		Lookup: lookupSvc,
		Recognizers: func(src audio.Source) voice.Factory {
			return deepgram.Factory(dgCfg, src, dgLog)
		},
		Voice: voiceOpts,
	}, logging.Component(appLog, "widget"))

	// Fiber App
	app := fiber.New(fiber.Config{
		AppName:      "SkyCast Weather API v1.0",
		ReadTimeout:  10 * time.Second,
		WriteTimeout: 20 * time.Second,
		ErrorHandler: http.ErrorHandler,
	})

	// Middleware
	app.Use(recover.New())
	app.Use(logger.New(logger.Config{
		Format: "[${time}] ${status} - ${method} ${path} (${latency})\n",
	}))
	app.Use(cors.New(cors.Config{
		AllowOrigins: "*",
		AllowMethods: "GET,POST,PUT,DELETE,OPTIONS",
		AllowHeaders: "Origin,Content-Type,Accept,Authorization",
	}))

	// Routes
	http.SetupRoutes(app, lookupSvc, registry, logging.Component(appLog, "http"))

	// Idle widget eviction
	sweepDone := make(chan struct{})
	go func() {
		ticker := time.NewTicker(time.Minute)
		defer ticker.Stop()
		for {
			select {
			case <-sweepDone:
				return
			case <-ticker.C:
				registry.Sweep(cfg.WidgetIdleTimeout)
			}
		}
	}()

	// Graceful shutdown
	go func() {
		appLog.Info().Str("port", cfg.Port).Str("env", cfg.Env).Msg("server starting")
		if err := app.Listen(":" + cfg.Port); err != nil {
			appLog.Fatal().Err(err).Msg("server error")
		}
	}()

	// Wait for interrupt signal
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	appLog.Info().Msg("shutting down server")
	close(sweepDone)
	if err := app.ShutdownWithTimeout(5 * time.Second); err != nil {
		appLog.Error().Err(err).Msg("server forced to shutdown")
	}
	registry.CloseAll()
	lookupSvc.WaitBackground()
	appLog.Info().Msg("server exited gracefully")
}

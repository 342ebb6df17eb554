package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
	"github.com/vasiliy-maslov/shop-service/internal/config"
	"github.com/vasiliy-maslov/shop-service/internal/db"
	shopHandler "github.com/vasiliy-maslov/shop-service/internal/handler/http"
	"github.com/vasiliy-maslov/shop-service/internal/item"
	"github.com/vasiliy-maslov/shop-service/internal/member"
	"github.com/vasiliy-maslov/shop-service/internal/order"
	"github.com/vasiliy-maslov/shop-service/internal/store"
	"github.com/vasiliy-maslov/shop-service/internal/telemetry"
	"github.com/vasiliy-maslov/shop-service/internal/transport"
	"go.opentelemetry.io/otel"
)

func main() {
	log.Logger = log.Output(zerolog.ConsoleWriter{Out: os.Stderr, TimeFormat: time.RFC3339})

	cfg, err := config.Load(os.Getenv("CONFIG_FILE"), ".env")
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to load config")
	}

	level, err := zerolog.ParseLevel(cfg.App.LogLevel)
	if err != nil {
		log.Warn().Err(err).Str("log_level", cfg.App.LogLevel).Msg("Unknown log level, falling back to info")
		level = zerolog.InfoLevel
	}
	zerolog.SetGlobalLevel(level)
	log.Logger = log.With().Str("service", cfg.App.Name).Logger()

	log.Info().Str("driver", cfg.Store.Driver).Msg("Shop service starting...")

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	shutdownTracing, err := telemetry.Init(ctx, cfg.Telemetry, cfg.App.Name)
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to init tracing")
	}

	database, err := db.Open(ctx, *cfg)
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to connect to database")
	}
	defer database.Close()

	tx := store.NewTransactor(database.DB)
	memberRepo := member.NewRepository(database.DB)
	itemRepo := item.NewRepository(database.DB)
	orderRepo := order.NewRepository(database.DB, cfg.Planner.MaxResults)

	planner := order.NewPlanner(orderRepo, itemRepo, order.PlannerConfig{
		BatchSize:      cfg.Planner.BatchSize,
		Strict:         cfg.Planner.Strict,
		TracerProvider: otel.GetTracerProvider(),
	})

	memberService := member.NewService(memberRepo, tx)
	itemService := item.NewService(itemRepo, tx)
	orderService := order.NewService(orderRepo, memberRepo, itemRepo, planner, tx)

	router := transport.NewRouter(
		shopHandler.NewMemberHandler(memberService),
		shopHandler.NewItemHandler(itemService),
		shopHandler.NewOrderHandler(orderService),
	)

	srv := &http.Server{
		Addr:         ":" + cfg.App.Port,
		Handler:      router,
		ReadTimeout:  cfg.App.ReadTimeout,
		WriteTimeout: cfg.App.WriteTimeout,
		IdleTimeout:  cfg.App.IdleTimeout,
	}

	go func() {
		log.Info().Str("port", cfg.App.Port).Msg("Starting HTTP server")
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Fatal().Err(err).Msg("Server failed")
		}
	}()

	<-ctx.Done()
	log.Info().Msg("Shutting down...")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.App.ShutdownTimeout)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Error().Err(err).Msg("Shutdown failed")
	}
	if err := shutdownTracing(shutdownCtx); err != nil {
		log.Error().Err(err).Msg("Failed to flush traces")
	}
	log.Info().Msg("Server stopped")
}

package main

import (
	"context"
	"database/sql"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/joho/godotenv"
	_ "github.com/lib/pq"
	"github.com/uptrace/bun"
	"github.com/uptrace/bun/dialect/pgdialect"

	"storefront/internal/config"
	"storefront/internal/courier"
	"storefront/internal/kafka"
	"storefront/internal/logger"
	"storefront/internal/notify"
	"storefront/internal/order"
	"storefront/internal/order/db"
	"storefront/internal/order/order_api"
	"storefront/internal/order/promotion"
	"storefront/internal/settings"
)

func connectPostgres(cfg config.DatabaseConfig, log *logger.Logger) *bun.DB {
	var sqldb *sql.DB
	var err error
	maxRetries := 5

	for i := 0; i < maxRetries; i++ {
		log.Info("DATABASE", fmt.Sprintf("Attempting to connect to PostgreSQL (attempt %d/%d)", i+1, maxRetries))
		sqldb, err = sql.Open("postgres", cfg.DSN)
		if err == nil {
			err = sqldb.Ping()
			if err == nil {
				break
			}
		}
		log.Error("DATABASE", fmt.Sprintf("Failed to connect to PostgreSQL: %v", err))
		if i < maxRetries-1 {
			time.Sleep(2 * time.Second)
		}
	}
	if err != nil {
		log.Fatal("DATABASE", fmt.Sprintf("Failed to connect to PostgreSQL after %d attempts: %v", maxRetries, err))
	}

	sqldb.SetMaxOpenConns(cfg.MaxOpenConns)
	sqldb.SetMaxIdleConns(cfg.MaxIdleConns)
	sqldb.SetConnMaxLifetime(cfg.MaxLifetime)

	log.Info("DATABASE", "PostgreSQL connection successful")
	return bun.NewDB(sqldb, pgdialect.New())
}

func main() {
	log := logger.NewLogger()
	defer log.Close()

	log.Info("APP", "Starting Storefront API initialization")

	if err := godotenv.Load(); err != nil {
		log.Warn("CONFIG", ".env file not found, using environment variables")
	} else {
		log.Info("CONFIG", "Loaded environment variables from .env file")
	}

	cfg := config.Load()
	if cfg.Auth.JWTSecret == "" {
		log.Fatal("CONFIG", "JWT_SECRET not set")
	}

	bunDB := connectPostgres(cfg.Database, log)
	defer bunDB.Close()

	var events order.EventPublisher
	if cfg.Kafka.Enabled {
		producer := kafka.NewProducer(cfg.Kafka.Brokers)
		defer producer.Close()

		if err := kafka.EnsureTopicsExist(cfg.Kafka.Brokers, kafka.RequiredTopics); err != nil {
			log.Warn("KAFKA", fmt.Sprintf("Topic creation might have failed: %v", err))
		} else {
			log.Info("KAFKA", "Required topics ensured successfully")
		}
		events = producer
	} else {
		log.Warn("KAFKA", "Kafka disabled, order events will not be published")
	}

	settingsStore := settings.NewDBStore(bunDB)
	mailer := notify.NewMailer(cfg.Email, cfg.Frontend.BaseURL, log)
	steadfast := courier.NewSteadfast(settingsStore, log)

	orderService := order.NewOrderService(
		&db.DB{Bun: bunDB},
		promotion.NewValidator(bunDB),
		events,
		mailer,
		steadfast,
		log,
	)

	handler := order_api.NewHandler(orderService, log)

	log.Info("HTTP", "Setting up router")
	r := chi.NewRouter()
	handler.RegisterRoutes(r, cfg.Auth.JWTSecret)

	server := &http.Server{
		Addr:         cfg.Server.Port,
		Handler:      r,
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
		IdleTimeout:  cfg.Server.IdleTimeout,
	}

	go func() {
		log.Info("HTTP", fmt.Sprintf("Storefront API running on %s", cfg.Server.Port))
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatal("HTTP", fmt.Sprintf("HTTP server error: %v", err))
		}
	}()

	stop := make(chan os.Signal, 1)
	signal.Notify(stop, syscall.SIGINT, syscall.SIGTERM)
	log.Info("APP", "Service started successfully, waiting for shutdown signal")
	<-stop

	log.Info("APP", "Shutdown signal received, initiating graceful shutdown")
	ctxShutdown, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := server.Shutdown(ctxShutdown); err != nil {
		log.Error("HTTP", fmt.Sprintf("Server shutdown failed: %v", err))
	}
	log.Info("APP", "Shutdown complete")
}

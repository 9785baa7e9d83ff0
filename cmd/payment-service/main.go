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

	"github.com/gin-gonic/gin"
	"github.com/go-redis/redis/v8"
	"github.com/joho/godotenv"
	_ "github.com/lib/pq"
	"github.com/uptrace/bun"
	"github.com/uptrace/bun/dialect/pgdialect"

	"storefront/internal/config"
	"storefront/internal/kafka"
	"storefront/internal/logger"
	"storefront/internal/payment"
	"storefront/internal/payment/bkash"
	handlers "storefront/internal/payment/handler"
	"storefront/internal/payment/nagad"
	"storefront/internal/payment/reconcile"
	redislock "storefront/internal/payment/redis"
	"storefront/internal/payment/storage"
	"storefront/internal/settings"
)

func main() {
	log := logger.NewLogger()
	defer log.Close()

	log.Info("APP", "Starting Payment Service initialization")

	if err := godotenv.Load(); err != nil {
		log.Warn("CONFIG", ".env file not found, using environment variables")
	}

	cfg := config.Load()

	sqldb, err := sql.Open("postgres", cfg.Database.DSN)
	if err != nil {
		log.Fatal("DATABASE", fmt.Sprintf("Failed to open PostgreSQL: %v", err))
	}
	if err := sqldb.Ping(); err != nil {
		log.Fatal("DATABASE", fmt.Sprintf("Failed to connect to PostgreSQL: %v", err))
	}
	log.Info("DATABASE", "PostgreSQL connection successful")
	bunDB := bun.NewDB(sqldb, pgdialect.New())
	defer bunDB.Close()

	redisClient := redis.NewClient(&redis.Options{Addr: cfg.Redis.Addr})
	if err := redisClient.Ping(context.Background()).Err(); err != nil {
		log.Fatal("DATABASE", fmt.Sprintf("Redis connection error: %v", err))
	}
	defer redisClient.Close()
	log.Info("DATABASE", fmt.Sprintf("Redis connection successful to %s", cfg.Redis.Addr))

	var events reconcile.EventPublisher
	if cfg.Kafka.Enabled {
		producer := kafka.NewProducer(cfg.Kafka.Brokers)
		defer producer.Close()
		if err := kafka.EnsureTopicsExist(cfg.Kafka.Brokers, kafka.RequiredTopics); err != nil {
			log.Warn("KAFKA", fmt.Sprintf("Topic creation might have failed: %v", err))
		}
		events = producer
	} else {
		log.Warn("KAFKA", "Kafka disabled, payment events will not be published")
	}

	settingsStore := settings.NewDBStore(bunDB)
	paymentStore := storage.NewDBStore(bunDB, log)

	httpClient := &http.Client{Timeout: 30 * time.Second}
	gateways := map[string]payment.Gateway{
		"bkash": bkash.New(settingsStore, httpClient, log),
		"nagad": nagad.New(settingsStore, httpClient, log),
	}

	reconciler := reconcile.NewService(
		paymentStore,
		gateways,
		redislock.NewLocker(redisClient),
		events,
		log,
		cfg.Frontend.BaseURL,
	)

	callbackBase := os.Getenv("PAYMENT_CALLBACK_BASE_URL")
	if callbackBase == "" {
		callbackBase = "http://localhost:8081"
	}

	handler := handlers.NewPaymentHandler(paymentStore, reconciler, gateways, log, callbackBase, cfg.Frontend.BaseURL)

	r := gin.Default()
	handler.RegisterRoutes(r)

	port := os.Getenv("PAYMENT_PORT")
	if port == "" {
		port = ":8081"
	}

	server := &http.Server{
		Addr:    port,
		Handler: r,
	}

	go func() {
		log.Info("HTTP", fmt.Sprintf("Payment Service running on %s", port))
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

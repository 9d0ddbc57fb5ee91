package main

import (
	"context"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gorilla/mux"
	"github.com/ltnguyen/shipcoord/internal/api"
	"github.com/ltnguyen/shipcoord/internal/coordinator"
	"github.com/ltnguyen/shipcoord/internal/events"
	"github.com/ltnguyen/shipcoord/internal/notify"
	"github.com/ltnguyen/shipcoord/internal/profile"
	"github.com/ltnguyen/shipcoord/internal/store"
	"github.com/sirupsen/logrus"
)

func main() {
	logger := logrus.New()
	logger.SetFormatter(&logrus.JSONFormatter{})
	logger.SetLevel(logrus.InfoLevel)

	port := getEnv("COORDINATOR_PORT", "8080")
	storeURL := getEnv("STORE_URL", "http://localhost:8081")
	profileURL := getEnv("PROFILE_URL", storeURL)
	notifyURL := getEnv("NOTIFY_WS_URL", "")
	kafkaBrokers := getEnv("KAFKA_BROKERS", "")
	carrier := getEnv("CARRIER_NAME", "")

	storeClient := store.NewClient(storeURL, logger)
	profileClient := profile.NewClient(profileURL, logger)

	coord := coordinator.New(storeClient, profileClient, logger)
	coord.SetCarrier(carrier)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	if kafkaBrokers != "" {
		producer, err := events.NewKafkaProducer(kafkaBrokers, logger)
		if err != nil {
			logger.WithError(err).Fatal("Failed to create Kafka producer")
		}
		defer producer.Close()
		coord.SetEventPublisher(producer)

		consumer, err := events.NewKafkaConsumer(kafkaBrokers, "shipment-coordinator", coord, logger)
		if err != nil {
			logger.WithError(err).Fatal("Failed to create Kafka consumer")
		}
		defer consumer.Close()

		go func() {
			logger.WithField("brokers", kafkaBrokers).Info("Starting Kafka consumer for order changed events")
			if err := consumer.Start(ctx); err != nil {
				logger.WithError(err).Error("Kafka consumer error")
			}
		}()
	} else {
		logger.Info("Kafka brokers not configured - domain events disabled")
	}

	if notifyURL != "" {
		listener := notify.NewListener(notifyURL, func(n notify.Notice) {
			coord.OnOrderChanged(n.OrderID)
		}, logger)
		go listener.Run(ctx)
	} else {
		logger.Info("Notification channel not configured - refetch on local actions only")
	}

	// Refetch worker draining the order-changed queue.
	go coord.Run(ctx)

	handler := api.NewHandler(coord, storeClient, logger)

	router := mux.NewRouter()
	router.HandleFunc("/health", handler.HealthCheck).Methods("GET")
	router.HandleFunc("/orders/{id}/status", handler.ChangeStatus).Methods("POST")
	router.HandleFunc("/orders/{id}/shipment", handler.GetShipment).Methods("GET")
	router.HandleFunc("/sellers/{id}/orders", handler.GetSellerOrders).Methods("GET")

	router.Use(loggingMiddleware(logger))

	srv := &http.Server{
		Addr:         ":" + port,
		Handler:      router,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	go func() {
		logger.WithField("port", port).Info("Starting shipment coordinator")
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.WithError(err).Fatal("Failed to start server")
		}
	}()

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM)
	<-sigChan

	logger.Info("Shutting down server...")
	cancel()

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer shutdownCancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.WithError(err).Error("Server forced to shutdown")
	}

	logger.Info("Server gracefully stopped")
}

func loggingMiddleware(logger *logrus.Logger) mux.MiddlewareFunc {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			start := time.Now()

			logger.WithFields(logrus.Fields{
				"method": r.Method,
				"path":   r.URL.Path,
				"remote": r.RemoteAddr,
			}).Info("Request received")

			next.ServeHTTP(w, r)

			logger.WithFields(logrus.Fields{
				"method":   r.Method,
				"path":     r.URL.Path,
				"duration": time.Since(start).Milliseconds(),
			}).Info("Request completed")
		})
	}
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

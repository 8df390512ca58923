package main

import (
	"context"
	"net/http"
	"os"
	"os/signal"
	"strconv"
	"syscall"

	_ "github.com/lib/pq"

	"github.com/IANDYI/trends-service/internal/adapters/handler"
	"github.com/IANDYI/trends-service/internal/adapters/middleware"
	"github.com/IANDYI/trends-service/internal/adapters/repository"
	"github.com/IANDYI/trends-service/internal/config"
	"github.com/IANDYI/trends-service/internal/core/ports"
	"github.com/IANDYI/trends-service/internal/core/services"
	"github.com/IANDYI/trends-service/internal/logging"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/sirupsen/logrus"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		logrus.WithError(err).Fatal("Failed to load configuration")
	}

	logger := logging.New(cfg.Logging)

	db, err := config.ConnectDatabase(cfg.Database.URL, cfg.Database.MaxRetries, cfg.Database.RetryDelay, logger)
	if err != nil {
		logger.WithError(err).Fatal("Failed to connect to database")
	}
	defer db.Close()

	if cfg.Database.InitSchema {
		if err := config.InitDatabase(db, cfg.Database.DropTables, logger); err != nil {
			logger.WithError(err).Fatal("Failed to initialize database schema")
		}
	}

	resilience := repository.ResilienceSettings{
		MaxRequests:         cfg.CircuitBreaker.MaxRequests,
		Interval:            cfg.CircuitBreaker.Interval,
		Timeout:             cfg.CircuitBreaker.Timeout,
		ConsecutiveFailures: cfg.CircuitBreaker.ConsecutiveFailures,
		MaxRetries:          cfg.CircuitBreaker.MaxRetries,
		RetryDelay:          cfg.CircuitBreaker.RetryDelay,
	}

	// Initialize repositories
	sqlRepo := repository.NewSQLRepository(db, resilience, logger)

	// The history publisher stays a nil interface when the broker is disabled
	var publisher ports.HistoryEventPublisher
	repository.RegisterBrokerMetrics()
	if cfg.RabbitMQ.Enabled {
		rabbitMQPublisher, err := repository.NewRabbitMQPublisher(cfg.RabbitMQ.URL, cfg.RabbitMQ.EventsQueue, resilience, logger)
		if err != nil {
			logger.WithError(err).Fatal("Failed to initialize RabbitMQ publisher")
		}
		defer rabbitMQPublisher.Close()
		publisher = rabbitMQPublisher
	}

	// Initialize services
	patientService := services.NewPatientService(sqlRepo)
	trendsService, err := services.NewTrendsService(sqlRepo, sqlRepo, cfg.Cache.Size, logger)
	if err != nil {
		logger.WithError(err).Fatal("Failed to initialize trends service")
	}
	historyService := services.NewParameterHistoryService(sqlRepo, sqlRepo, publisher, logger)
	readingsService := services.NewReadingsService(sqlRepo, sqlRepo, trendsService, logger)

	// Device data consumer runs next to the HTTP server; RabbitMQ spreads
	// messages across replicas round-robin
	consumerCtx, consumerCancel := context.WithCancel(context.Background())
	defer consumerCancel()
	if cfg.RabbitMQ.Enabled {
		ingestConsumer := repository.NewIngestConsumer(cfg.RabbitMQ.IngestQueue, historyService, readingsService, logger)
		if err := ingestConsumer.Connect(cfg.RabbitMQ.URL); err != nil {
			logger.WithError(err).Fatal("Failed to initialize RabbitMQ ingest consumer")
		}
		defer ingestConsumer.Close()

		// StartConsuming returns once the delivery loop runs in its own goroutine
		if err := ingestConsumer.StartConsuming(consumerCtx); err != nil {
			logger.WithError(err).Error("Failed to start ingest consumer")
		}
	}

	// Initialize handlers
	patientHandler := handler.NewPatientHandler(patientService, logger)
	trendsHandler := handler.NewTrendsHandler(trendsService, logger)
	historyHandler := handler.NewHistoryHandler(historyService, logger)
	readingsHandler := handler.NewReadingsHandler(readingsService, logger)
	healthHandler := handler.NewHealthHandler(db)

	mux := http.NewServeMux()

	// Health endpoints (OpenShift compatible)
	mux.Handle("GET /metrics", promhttp.Handler())
	mux.HandleFunc("GET /health", healthHandler.Health)
	mux.HandleFunc("GET /health/ready", healthHandler.Ready)
	mux.HandleFunc("GET /health/live", healthHandler.Live)

	mux.HandleFunc("POST /patients", patientHandler.CreatePatient)
	mux.HandleFunc("GET /patients/{patient_id}", patientHandler.GetPatient)
	mux.HandleFunc("GET /patients/{patient_id}/trends", trendsHandler.GetTrends)
	mux.HandleFunc("GET /patients/{patient_id}/parameters/history", historyHandler.GetHistory)
	mux.HandleFunc("POST /patients/{patient_id}/parameters/history", historyHandler.IngestChanges)
	mux.HandleFunc("POST /patients/{patient_id}/readings", readingsHandler.IngestReadings)

	router := middleware.RequestLogging(logger)(
		middleware.RateLimit(cfg.Server.RateLimit, cfg.Server.RateLimitBurst)(
			middleware.MetricsMiddleware(mux),
		),
	)

	server := &http.Server{
		Addr:         ":" + strconv.Itoa(cfg.Server.Port),
		Handler:      router,
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
		IdleTimeout:  cfg.Server.IdleTimeout,
	}

	go func() {
		logger.WithField("port", cfg.Server.Port).Info("Starting Trends Service")
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.WithError(err).Fatal("Server failed to start")
		}
	}()

	// Graceful shutdown
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	logger.Info("Shutting down server")

	// Stop consuming before draining HTTP requests
	consumerCancel()

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout)
	defer shutdownCancel()

	if err := server.Shutdown(shutdownCtx); err != nil {
		logger.WithError(err).Error("Server forced to shutdown")
		return
	}

	logger.Info("Server exited")
}

package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"
	chi_middleware "github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/smsflow/smsflow/internal/dispatch/app"
	"github.com/smsflow/smsflow/internal/dispatch/provider"
	"github.com/smsflow/smsflow/internal/dispatch/repository/postgres"
	"github.com/smsflow/smsflow/internal/platform/config"
	"github.com/smsflow/smsflow/internal/platform/database"
	"github.com/smsflow/smsflow/internal/platform/logger"
	transporthttp "github.com/smsflow/smsflow/internal/transport/http"
	"github.com/smsflow/smsflow/internal/transport/http/middleware"
)

func main() {
	cfg, err := config.Load("./configs", "config.defaults")
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to load configuration: %v\n", err)
		os.Exit(1)
	}

	appLogger := logger.New(cfg.LogLevel)
	appLogger.Info("SMS dispatch service starting...", "log_level", cfg.LogLevel)

	dbPool, err := database.NewDBPool(context.Background(), cfg.PostgresDSN)
	if err != nil {
		appLogger.Error("Failed to connect to PostgreSQL database", "error", err)
		os.Exit(1)
	}
	defer dbPool.Close()
	appLogger.Info("Successfully connected to PostgreSQL database")

	// The carrier is selected once here; nothing downstream branches on
	// carrier identity again.
	carrier := provider.NewCarrier(cfg, appLogger)
	appLogger.Info("Carrier transport selected", "provider", carrier.Name())

	messageRepo := postgres.NewPgMessageRepository()
	recipientRepo := postgres.NewPgRecipientRepository()
	txManager := postgres.NewPgTxManager(dbPool)

	dispatchService := app.NewDispatchService(carrier, messageRepo, recipientRepo, txManager, dbPool, appLogger)
	messageHandler := transporthttp.NewMessageHandler(dispatchService, appLogger)

	router := chi.NewRouter()
	router.Use(chi_middleware.RequestID)
	router.Use(chi_middleware.RealIP)
	router.Use(chi_middleware.Recoverer)
	router.Use(cors.Handler(cors.Options{
		AllowedOrigins: []string{"*"},
		AllowedMethods: []string{"GET", "POST", "OPTIONS"},
		AllowedHeaders: []string{"Accept", "Authorization", "Content-Type"},
	}))

	router.Get("/healthz", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		w.Write([]byte("ok"))
	})
	router.Handle("/metrics", promhttp.Handler())

	router.Route("/api/v1", func(r chi.Router) {
		r.Use(middleware.Auth(cfg.JWTAccessSecret, appLogger))
		messageHandler.RegisterRoutes(r)
	})

	server := &http.Server{
		Addr:         fmt.Sprintf(":%d", cfg.HTTPPort),
		Handler:      router,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 60 * time.Second,
		IdleTimeout:  120 * time.Second,
	}

	go func() {
		appLogger.Info("HTTP server listening", "port", cfg.HTTPPort)
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			appLogger.Error("HTTP server failed", "error", err)
			os.Exit(1)
		}
	}()

	quitChan := make(chan os.Signal, 1)
	signal.Notify(quitChan, syscall.SIGINT, syscall.SIGTERM)
	receivedSignal := <-quitChan
	appLogger.Info("Shutdown signal received", "signal", receivedSignal.String())

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		appLogger.Error("HTTP server shutdown failed", "error", err)
	}
	appLogger.Info("SMS dispatch service shut down successfully.")
}

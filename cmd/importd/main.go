package main

import (
	"context"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"go.uber.org/zap"

	"github.com/smonier/importContentFromJson/internal/config"
	"github.com/smonier/importContentFromJson/internal/metrics"
	"github.com/smonier/importContentFromJson/internal/metrics/datadog"
	"github.com/smonier/importContentFromJson/internal/repository"
	"github.com/smonier/importContentFromJson/internal/server"

	// register all backends with the repository factory.
	_ "github.com/smonier/importContentFromJson/internal/repository/all"
)

// main starts the import wizard service: repository backend from the
// environment, optional Datadog metrics, gin router, graceful shutdown.
func main() {
	logger, err := zap.NewProduction()
	if err != nil {
		log.Fatalf("Failed to init logger: %v", err)
	}
	defer logger.Sync() //nolint:errcheck

	env := config.FromEnv()

	ctx := context.Background()
	repo, err := repository.New(ctx, env.Repository)
	if err != nil {
		logger.Fatal("Failed to open repository", zap.Error(err))
	}
	defer repo.Close()

	switch env.MetricsBackend {
	case "datadog":
		b := datadog.NewBackend(ctx, datadog.Options{
			JobName: "importd",
			Tags:    datadog.ParseTagsCSV(env.MetricsTags),
		})
		metrics.SetBackend(b)
		defer func() {
			if err := b.Close(); err != nil {
				logger.Warn("metrics close/flush failed", zap.Error(err))
			}
		}()
	case "", "none":
		// metrics disabled; nop backend remains
	default:
		logger.Warn("unknown metrics backend, metrics disabled",
			zap.String("backend", env.MetricsBackend))
	}

	srv := &http.Server{
		Addr:    env.Addr,
		Handler: server.New(repo, logger).Router(),
	}

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Fatal("Server failed", zap.Error(err))
		}
	}()

	logger.Info("import service started",
		zap.String("addr", env.Addr),
		zap.String("repository", env.Repository.Kind),
	)
	<-quit
	logger.Info("Shutting down import service...")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Fatal("Server forced to shutdown", zap.Error(err))
	}
	logger.Info("Server exited cleanly")
}

// cmd/search-worker/main.go
package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"

	"searchmodel/internal/common/camunda"
	"searchmodel/internal/common/config"
	"searchmodel/internal/common/database"
	"searchmodel/internal/common/logger"
	"searchmodel/internal/common/observability"
	"searchmodel/internal/search"
	searchmodel "searchmodel/internal/workers/data-access/search-model"
	"searchmodel/pkg/registry"
)

// retryWithBackoff attempts to execute a function with exponential backoff
func retryWithBackoff(operation func() error, maxRetries int, initialDelay time.Duration, log *zap.Logger, operationName string) error {
	var err error
	delay := initialDelay

	for i := 0; i < maxRetries; i++ {
		err = operation()
		if err == nil {
			return nil
		}

		if i < maxRetries-1 {
			log.Warn(fmt.Sprintf("%s failed, retrying...", operationName),
				zap.Error(err),
				zap.Int("attempt", i+1),
				zap.Int("maxRetries", maxRetries),
				zap.Duration("nextRetryIn", delay),
			)
			time.Sleep(delay)
			delay *= 2
		}
	}

	return fmt.Errorf("%s failed after %d attempts: %w", operationName, maxRetries, err)
}

func main() {
	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintf(os.Stderr, "config load failed: %v\n", err)
		os.Exit(1)
	}

	zapLog := logger.New(cfg.Logging.Level, cfg.Logging.Format)
	defer zapLog.Sync()
	log := logger.NewZapAdapter(zapLog)

	zapLog.Info("Starting search worker...", zap.String("app", cfg.App.Name), zap.String("env", cfg.App.Environment))

	obs := observability.New(cfg.App.Name)
	defer func() {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := obs.Shutdown(ctx); err != nil {
			zapLog.Warn("observability shutdown failed", zap.Error(err))
		}
	}()

	// --- Init Elasticsearch with retry ---
	var esClient *database.ElasticsearchClient
	err = retryWithBackoff(func() error {
		var err error
		esClient, err = database.NewElasticsearch(cfg.Database.Elasticsearch)
		if err != nil {
			return err
		}
		return esClient.Ping()
	}, 15, 2*time.Second, zapLog, "Elasticsearch connection")
	if err != nil {
		zapLog.Fatal("elasticsearch failed after retries", zap.Error(err))
	}
	zapLog.Info("Elasticsearch connected successfully")

	// --- Load search models ---
	reg, err := registry.LoadRegistry(cfg.Search.ModelsPath)
	if err != nil {
		zapLog.Fatal("model registry load failed", zap.String("path", cfg.Search.ModelsPath), zap.Error(err))
	}

	catalog, err := registry.NewCatalog(reg, esClient, sharedOptions(cfg, log)...)
	if err != nil {
		zapLog.Fatal("model catalog build failed", zap.Error(err))
	}
	zapLog.Info("Search models loaded", zap.Strings("models", catalog.Names()), zap.String("version", reg.Version))

	// --- Init Zeebe Client with retry ---
	var zeebe *camunda.Client
	err = retryWithBackoff(func() error {
		var err error
		zeebe, err = camunda.NewClientWithConfig(&camunda.ClientConfig{
			GatewayAddress:         cfg.Camunda.BrokerAddress,
			UsePlaintextConnection: cfg.Camunda.Plaintext,
			ConnectionTimeout:      config.GetDuration(cfg.Camunda.RequestTimeout),
		})
		return err
	}, 10, 2*time.Second, zapLog, "Zeebe client initialization")
	if err != nil {
		zapLog.Fatal("zeebe client failed after retries", zap.Error(err))
	}
	zapLog.Info("Zeebe client connected successfully")

	// --- Register workers ---
	workerConfigs := searchmodel.LoadConfigs(cfg)
	handler, err := searchmodel.NewHandler(searchmodel.HandlerOptions{
		Configs:       workerConfigs,
		Models:        catalog,
		Logger:        log,
		Observability: obs,
	})
	if err != nil {
		zapLog.Fatal("search handler init failed", zap.Error(err))
	}

	var workers []*camunda.CamundaWorker
	for taskType, handle := range handler.Handlers() {
		wcfg := workerConfigs[taskType]
		if !wcfg.Enabled {
			zapLog.Info("worker disabled", zap.String("taskType", taskType))
			continue
		}
		workers = append(workers, camunda.NewWorker(
			zeebe.GetClient(), taskType, wcfg.MaxJobsActive, wcfg.Timeout, handle, log,
		))
	}
	zapLog.Info("Workers registered", zap.Int("count", len(workers)))

	// --- Health & Metrics Server ---
	server := &http.Server{
		Addr:              cfg.Metrics.Address,
		Handler:           routes(esClient, zeebe),
		ReadHeaderTimeout: 5 * time.Second,
	}
	go func() {
		zapLog.Info("Health/Metrics server listening", zap.String("address", server.Addr))
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			zapLog.Error("Health/Metrics server failed", zap.Error(err))
		}
	}()

	// --- Graceful Shutdown ---
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, os.Interrupt, syscall.SIGTERM)
	<-sigCh

	zapLog.Info("Shutdown signal received, stopping workers...")
	for _, w := range workers {
		w.Stop()
	}

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()
	if err := server.Shutdown(ctx); err != nil {
		zapLog.Error("Error stopping Health/Metrics server", zap.Error(err))
	}
	if err := zeebe.Close(); err != nil {
		zapLog.Error("Error closing Zeebe client", zap.Error(err))
	}

	zapLog.Info("Search worker stopped")
}

// sharedOptions turns the search section of the config into model options.
func sharedOptions(cfg *config.Config, log logger.Logger) []search.Option {
	opts := []search.Option{
		search.WithLogger(log),
		search.WithDefaultLimit(cfg.Search.DefaultLimit),
		search.WithMaxScanBatches(cfg.Search.MaxScanBatches),
	}
	if cfg.Search.FixedLimit > 0 {
		opts = append(opts, search.WithFixedLimit(cfg.Search.FixedLimit))
	}
	return opts
}

func routes(es *database.ElasticsearchClient, zeebe *camunda.Client) http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("/health", func(w http.ResponseWriter, r *http.Request) {
		writeStatus(w, http.StatusOK, "healthy", "")
	})
	mux.HandleFunc("/ready", func(w http.ResponseWriter, r *http.Request) {
		if err := es.Ping(); err != nil {
			writeStatus(w, http.StatusServiceUnavailable, "elasticsearch unavailable", err.Error())
			return
		}
		if err := zeebe.HealthCheck(r.Context()); err != nil {
			writeStatus(w, http.StatusServiceUnavailable, "zeebe unavailable", err.Error())
			return
		}
		writeStatus(w, http.StatusOK, "ready", "")
	})
	mux.Handle("/metrics", promhttp.Handler())
	return mux
}

func writeStatus(w http.ResponseWriter, code int, status, detail string) {
	body := map[string]string{"status": status}
	if detail != "" {
		body["error"] = detail
	}
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	json.NewEncoder(w).Encode(body)
}

// Conduit Server — metadata store с HTTP API.
//
// Хранит pipeline runs, step runs и артефакты в PostgreSQL
// (или в памяти с флагом --memory) и отдаёт их launcher'ам
// через /api/v1.
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/shaiso/Conduit/internal/api"
	"github.com/shaiso/Conduit/internal/config"
	"github.com/shaiso/Conduit/internal/repo"
	"github.com/shaiso/Conduit/internal/store"
	"github.com/shaiso/Conduit/internal/telemetry"
)

var startTime = time.Now()

func main() {
	memory := flag.Bool("memory", false, "Keep metadata in memory instead of PostgreSQL")
	flag.Parse()

	logger := telemetry.SetupLogger()
	logger.Info("starting conduit-server")

	cfg, err := config.FromEnv()
	if err != nil {
		logger.Error("invalid configuration", "error", err)
		os.Exit(1)
	}

	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	repos, closeRepos, err := openRepos(ctx, cfg, *memory, logger)
	if err != nil {
		logger.Error("failed to open metadata storage", "error", err)
		os.Exit(1)
	}
	defer closeRepos()

	handler := api.NewHandler(api.Config{
		Store:  store.NewLocal(repos),
		Token:  cfg.StoreToken,
		Logger: logger,
	})

	mux := http.NewServeMux()

	// Health и metrics
	mux.HandleFunc("/healthz", func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusOK)
		fmt.Fprintf(w, "ok %s", time.Since(startTime).Round(time.Second))
	})
	mux.Handle("/metrics", promhttp.Handler())

	handler.RegisterRoutes(mux)

	addr := ":" + cfg.APIPort
	server := &http.Server{
		Addr:              addr,
		Handler:           mux,
		ReadHeaderTimeout: 10 * time.Second,
	}

	go func() {
		logger.Info("listening", "addr", addr)
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Error("server error", "error", err)
			cancel()
		}
	}()

	<-ctx.Done()
	logger.Info("shutting down")

	// Graceful shutdown с таймаутом 10 секунд
	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer shutdownCancel()

	if err := server.Shutdown(shutdownCtx); err != nil {
		logger.Error("shutdown error", "error", err)
	}

	logger.Info("stopped")
}

// openRepos открывает PostgreSQL и применяет схему, либо создаёт in-memory репозитории.
func openRepos(ctx context.Context, cfg *config.Config, memory bool, logger *slog.Logger) (*repo.Set, func(), error) {
	if memory {
		logger.Warn("using in-memory metadata store, data is lost on restart")
		return repo.NewMemorySet(), func() {}, nil
	}

	pool, err := repo.NewPool(ctx, cfg.DatabaseURL)
	if err != nil {
		return nil, nil, err
	}
	logger.Info("connected to database")

	if err := repo.Migrate(ctx, pool); err != nil {
		pool.Close()
		return nil, nil, err
	}
	logger.Info("schema applied")

	return repo.NewPostgresSet(pool), pool.Close, nil
}

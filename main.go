package main

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"go.uber.org/zap"

	"github.com/querybench/querybench-engine/pkg/adapters/datasource/bigquery"
	"github.com/querybench/querybench-engine/pkg/adapters/datasource/postgres"
	"github.com/querybench/querybench-engine/pkg/adapters/datasource/snowflake"
	"github.com/querybench/querybench-engine/pkg/config"
	"github.com/querybench/querybench-engine/pkg/crypto"
	"github.com/querybench/querybench-engine/pkg/database"
	"github.com/querybench/querybench-engine/pkg/handlers"
	"github.com/querybench/querybench-engine/pkg/logging"
	"github.com/querybench/querybench-engine/pkg/repositories"
	"github.com/querybench/querybench-engine/pkg/services"

	_ "github.com/jackc/pgx/v5/stdlib"
)

// Version is set at build time via ldflags.
var Version = "dev"

func main() {
	cfg, err := config.Load(Version)
	if err != nil {
		log.Fatalf("Failed to load config: %v", err)
	}

	logger, err := logging.New(cfg.Env)
	if err != nil {
		log.Fatalf("Failed to build logger: %v", err)
	}
	defer func() { _ = logger.Sync() }()

	if err := run(cfg, logger); err != nil {
		logger.Fatal("server exited", zap.Error(err))
	}
}

func run(cfg *config.Config, logger *zap.Logger) error {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	cipher, err := crypto.NewSecretCipher(cfg.CredentialsKey)
	if err != nil {
		return fmt.Errorf("credentials key: %w", err)
	}

	db, err := database.NewConnection(ctx, &database.Config{
		URL:            cfg.Database.ConnectionString(),
		MaxConnections: cfg.Database.MaxConnections,
	})
	if err != nil {
		return fmt.Errorf("metadata database: %w", err)
	}
	defer db.Close()

	migrationDB, err := sql.Open("pgx", cfg.Database.ConnectionString())
	if err != nil {
		return fmt.Errorf("migration connection: %w", err)
	}
	if err := database.RunMigrations(migrationDB, "migrations", logger); err != nil {
		_ = migrationDB.Close()
		return err
	}
	_ = migrationDB.Close()

	commandTimeout := time.Duration(cfg.Datasource.CommandTimeoutSeconds) * time.Second
	connectTimeout := time.Duration(cfg.Datasource.ConnectTimeoutSeconds) * time.Second

	pools := postgres.NewPoolManager(postgres.ManagerConfig{
		PoolMinConns:   cfg.Datasource.PoolMinConns,
		PoolMaxConns:   cfg.Datasource.PoolMaxConns,
		CommandTimeout: commandTimeout,
		ConnectTimeout: connectTimeout,
	}, logger)
	defer pools.CloseAll()

	sessions := snowflake.NewSessionManager(snowflake.ManagerConfig{
		MaxBlockingOps: cfg.Datasource.MaxBlockingOps,
		CommandTimeout: commandTimeout,
		ConnectTimeout: connectTimeout,
	}, logger)
	defer sessions.CloseAll(context.Background())

	clients := bigquery.NewClientManager(logger)
	defer clients.CloseAll()

	repo := repositories.NewConnectionRepository(db)
	service := services.NewConnectionService(
		repo, cipher, pools, sessions, clients,
		cfg.Datasource.DefaultBatchSize, logger,
	)

	mux := http.NewServeMux()
	handlers.NewHealthHandler(cfg, logger).RegisterRoutes(mux)
	handlers.NewConnectionsHandler(service, logger).RegisterRoutes(mux)
	handlers.NewQueryHandler(service, logger).RegisterRoutes(mux)
	handlers.NewSchemaHandler(service, logger).RegisterRoutes(mux)

	server := &http.Server{
		Addr:              cfg.BindAddr + ":" + cfg.Port,
		Handler:           mux,
		ReadHeaderTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		logger.Info("starting querybench-engine",
			zap.String("addr", server.Addr),
			zap.String("version", cfg.Version),
			zap.String("env", cfg.Env),
		)
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
	}

	logger.Info("shutting down")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("shutdown: %w", err)
	}
	return nil
}

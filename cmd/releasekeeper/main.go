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

	"github.com/glebarez/sqlite"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"

	"staychain/cmd/internal/passphrase"
	"staychain/crypto"
	"staychain/observability/logging"
	"staychain/rpc"
	"staychain/services/releasekeeper/config"
	"staychain/services/releasekeeper/keeper"
	"staychain/services/releasekeeper/models"
)

func main() {
	configPath := flag.String("config", "./releasekeeper.yaml", "Path to the keeper configuration")
	flag.Parse()

	if err := run(*configPath); err != nil {
		slog.Error("releasekeeper exited", slog.Any("error", err))
		os.Exit(1)
	}
}

func run(configPath string) error {
	cfg, err := config.Load(configPath)
	if err != nil {
		return err
	}
	logger, closeLogs := logging.Setup(logging.Config{
		Service: "releasekeeper",
		Env:     cfg.Logging.Env,
		Level:   cfg.Logging.Level,
		File:    cfg.Logging.File,
	})
	defer func() { _ = closeLogs() }()

	db, err := openDatabase(cfg)
	if err != nil {
		return fmt.Errorf("database connection: %w", err)
	}
	if err := models.AutoMigrate(db); err != nil {
		return fmt.Errorf("auto migrate: %w", err)
	}

	pass, err := passphrase.NewSource(cfg.AuthorityPassphraseEnv, "authority keystore").Get()
	if err != nil {
		return err
	}
	authority, err := crypto.LoadFromKeystore(cfg.AuthorityKeystore, pass)
	if err != nil {
		return fmt.Errorf("load authority key: %w", err)
	}

	client := rpc.NewClient(cfg.RPCURL, rpc.WithBearer(func() (string, error) {
		secret := cfg.JWTSecret()
		if secret == "" {
			return "", nil
		}
		return rpc.IssueToken(secret, cfg.JWTIssuer, "releasekeeper", 5*time.Minute, time.Now())
	}))
	k, err := keeper.New(db, client, keeperConfig(cfg, authority, logger))
	if err != nil {
		return err
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.Handler())
	metricsServer := &http.Server{Addr: cfg.MetricsListen, Handler: mux, ReadHeaderTimeout: 5 * time.Second}
	go func() {
		if err := metricsServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Error("metrics server failed", slog.Any("error", err))
		}
	}()
	defer func() {
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = metricsServer.Shutdown(shutdownCtx)
	}()

	logger.Info("releasekeeper started",
		slog.String("rpc", cfg.RPCURL),
		slog.String("authority", authority.PubKey().Address().String()),
		slog.Duration("pollInterval", cfg.PollInterval.Duration))
	if err := k.Run(ctx); err != nil && !errors.Is(err, context.Canceled) {
		return err
	}
	return nil
}

func keeperConfig(cfg config.Config, authority *crypto.PrivateKey, logger *slog.Logger) keeper.Config {
	return keeper.Config{
		ChainID:      cfg.ChainID,
		Authority:    authority,
		PollInterval: cfg.PollInterval.Duration,
		MaxBackoff:   cfg.MaxBackoff.Duration,
		BatchSize:    cfg.BatchSize,
		Logger:       logger,
	}
}

func openDatabase(cfg config.Config) (*gorm.DB, error) {
	var dialector gorm.Dialector
	switch cfg.Database.Driver {
	case config.DriverPostgres:
		dialector = postgres.Open(cfg.DatabaseDSN())
	default:
		dialector = sqlite.Open(cfg.DatabaseDSN())
	}
	return gorm.Open(dialector, &gorm.Config{})
}

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
	"path/filepath"
	"strings"
	"syscall"
	"time"

	"staychain/cmd/internal/passphrase"
	"staychain/config"
	"staychain/core"
	"staychain/crypto"
	"staychain/observability/logging"
	telemetry "staychain/observability/otel"
	"staychain/rpc"
	"staychain/storage"
	"staychain/storage/eventlog"
)

func main() {
	configFile := flag.String("config", "./config.toml", "Path to the configuration file")
	flag.Parse()

	if err := run(*configFile); err != nil {
		slog.Error("staynode exited", slog.Any("error", err))
		os.Exit(1)
	}
}

func run(configPath string) error {
	passSource := passphrase.NewSource(config.Default().AuthorityPassphraseEnv, "authority keystore")
	cfg, err := config.Load(configPath, config.WithKeystorePassphraseSource(passSource.Get))
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}

	logger, closeLogs := logging.Setup(logging.Config{
		Service:    "staynode",
		Env:        cfg.Logging.Env,
		Level:      cfg.Logging.Level,
		File:       cfg.Logging.File,
		MaxSizeMB:  cfg.Logging.MaxSizeMB,
		MaxBackups: cfg.Logging.MaxBackups,
		MaxAgeDays: cfg.Logging.MaxAgeDays,
	})
	defer func() { _ = closeLogs() }()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	shutdownTelemetry, err := telemetry.Init(ctx, telemetry.Config{
		ServiceName: "staynode",
		Environment: cfg.Logging.Env,
		Endpoint:    cfg.Telemetry.Endpoint,
		Insecure:    cfg.Telemetry.Insecure,
		Headers:     telemetry.ParseHeaders(cfg.Telemetry.Headers),
		Traces:      cfg.Telemetry.Traces,
		Metrics:     cfg.Telemetry.Metrics,
		SampleRatio: cfg.Telemetry.SampleRatio,
	})
	if err != nil {
		return fmt.Errorf("init telemetry: %w", err)
	}
	defer func() {
		flushCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := shutdownTelemetry(flushCtx); err != nil {
			logger.Warn("telemetry shutdown failed", slog.Any("error", err))
		}
	}()

	db, err := openDatabase(cfg)
	if err != nil {
		return fmt.Errorf("open database: %w", err)
	}
	defer db.Close()

	if err := os.MkdirAll(filepath.Dir(cfg.EventLogFile()), 0o755); err != nil {
		return fmt.Errorf("prepare event log directory: %w", err)
	}
	events, err := eventlog.Open(cfg.EventLogFile())
	if err != nil {
		return fmt.Errorf("open event log: %w", err)
	}
	defer events.Close()

	pass, err := passSource.Get()
	if err != nil {
		return fmt.Errorf("authority passphrase: %w", err)
	}
	authorityKey, err := crypto.LoadFromKeystore(cfg.AuthorityKeystorePath, pass)
	if err != nil {
		return fmt.Errorf("load authority key: %w", err)
	}
	authority := authorityKey.PubKey().Address()

	node, err := core.NewNode(db, core.Options{
		ChainID:           cfg.ChainID,
		PlatformAuthority: authority.Raw(),
		PausedModules:     cfg.PausedModules,
		EventLog:          events,
		Logger:            logger,
	})
	if err != nil {
		return fmt.Errorf("create node: %w", err)
	}
	mint, treasury, err := node.Bootstrap(ctx, core.BootstrapParams{
		Symbol:         cfg.Payment.Symbol,
		TransferFeeBps: cfg.Payment.TransferFeeBps,
		MaxTransferFee: cfg.Payment.MaxTransferFee,
		InitialSupply:  cfg.Payment.InitialSupply,
	})
	if err != nil {
		return fmt.Errorf("bootstrap payment asset: %w", err)
	}
	logger.Info("node ready",
		slog.Uint64("chainId", cfg.ChainID),
		slog.String("authority", authority.String()),
		slog.String("mint", crypto.FromRaw(mint).String()),
		slog.String("treasury", crypto.FromRaw(treasury).String()),
		slog.Any("pausedModules", cfg.PausedModules))

	server, err := rpc.NewServer(node, serverConfig(cfg), logger)
	if err != nil {
		return fmt.Errorf("create rpc server: %w", err)
	}
	httpServer := server.NewHTTPServer(cfg.RPCAddress,
		seconds(cfg.RPC.ReadHeaderTimeout),
		seconds(cfg.RPC.ReadTimeout),
		seconds(cfg.RPC.WriteTimeout),
		seconds(cfg.RPC.IdleTimeout))

	errCh := make(chan error, 1)
	go func() {
		logger.Info("rpc listening", slog.String("addr", cfg.RPCAddress))
		if err := httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case <-ctx.Done():
		logger.Info("shutting down")
	case err := <-errCh:
		if err != nil {
			return fmt.Errorf("rpc server: %w", err)
		}
	}
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	return httpServer.Shutdown(shutdownCtx)
}

func openDatabase(cfg *config.Config) (storage.Database, error) {
	switch strings.ToLower(strings.TrimSpace(cfg.StorageBackend)) {
	case config.BackendMemory:
		return storage.NewMemDB(), nil
	case config.BackendBolt:
		if err := os.MkdirAll(cfg.DataDir, 0o755); err != nil {
			return nil, err
		}
		return storage.NewBoltDB(filepath.Join(cfg.DataDir, "state.bolt"))
	case config.BackendLevelDB, "":
		return storage.NewLevelDB(filepath.Join(cfg.DataDir, "state"))
	default:
		return nil, fmt.Errorf("unknown storage backend %q", cfg.StorageBackend)
	}
}

func serverConfig(cfg *config.Config) rpc.ServerConfig {
	return rpc.ServerConfig{
		JWT: rpc.JWTConfig{
			Secret: cfg.ResolveJWTSecret(),
			Issuer: cfg.RPC.JWTIssuer,
		},
		RateLimit: rpc.RateLimit{
			PerSecond: cfg.RPC.RateLimitPerSecond,
			Burst:     cfg.RPC.RateLimitBurst,
		},
		MaxBodyBytes: cfg.RPC.MaxBodyBytes,
	}
}

func seconds(n int) time.Duration { return time.Duration(n) * time.Second }

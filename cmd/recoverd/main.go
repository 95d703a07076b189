// cmd/recoverd/main.go
package main

import (
	"context"
	"encoding/hex"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/FairForge/recoverd/internal/api"
	"github.com/FairForge/recoverd/internal/catalog"
	"github.com/FairForge/recoverd/internal/config"
	"github.com/FairForge/recoverd/internal/drivers"
	"github.com/FairForge/recoverd/internal/service"
	"go.uber.org/zap"
)

func main() {
	// Create logger
	logger, _ := zap.NewProduction()
	defer func() { _ = logger.Sync() }()

	// Load config: defaults, then optional file, then env overrides
	cfg := config.Default()
	cfgPath := os.Getenv("RECOVERD_CONFIG")
	if cfgPath != "" {
		loaded, err := config.Load(cfgPath)
		if err != nil {
			logger.Fatal("failed to load config", zap.String("path", cfgPath), zap.Error(err))
		}
		cfg = loaded
	}
	config.LoadFromEnv(cfg)
	if err := cfg.Validate(); err != nil {
		logger.Fatal("invalid configuration", zap.Error(err))
	}

	opts := service.Options{}

	// Pick the store driver based on configuration
	switch cfg.Store.Mode {
	case "local":
		dataPath := cfg.Store.LocalPath
		if dataPath == "" {
			dataPath = "/var/lib/recoverd"
		}
		if err := os.MkdirAll(dataPath, 0750); err != nil {
			logger.Fatal("failed to create storage directory", zap.Error(err))
		}
		opts.Driver = drivers.NewLocalDriver(dataPath, logger)
		logger.Info("using local artifact storage", zap.String("path", dataPath))

	case "s3":
		if cfg.Store.AccessKey == "" || cfg.Store.SecretKey == "" {
			logger.Fatal("s3 store mode requires access and secret keys")
		}
		s3Driver, err := drivers.NewS3Driver(drivers.S3Config{
			Bucket:    cfg.Store.Bucket,
			Endpoint:  cfg.Store.Endpoint,
			Region:    cfg.Store.Region,
			AccessKey: cfg.Store.AccessKey,
			SecretKey: cfg.Store.SecretKey,
		}, logger)
		if err != nil {
			logger.Fatal("failed to create S3 driver", zap.Error(err))
		}
		opts.Driver = s3Driver
		logger.Info("using S3 artifact storage", zap.String("bucket", cfg.Store.Bucket))

		// With a remote primary, a local path becomes the fast-restore mirror.
		if cfg.Store.LocalPath != "" {
			if err := os.MkdirAll(cfg.Store.LocalPath, 0750); err != nil {
				logger.Fatal("failed to create mirror directory", zap.Error(err))
			}
			opts.LocalMirror = drivers.NewLocalDriver(cfg.Store.LocalPath, logger)
			logger.Info("local mirror enabled", zap.String("path", cfg.Store.LocalPath))
		}

	default:
		logger.Fatal("invalid store mode", zap.String("mode", cfg.Store.Mode))
	}

	if cfg.Backup.Encryption {
		keyHex := os.Getenv("RECOVERD_ENCRYPTION_KEY")
		if keyHex == "" {
			logger.Fatal("RECOVERD_ENCRYPTION_KEY required when encryption is enabled")
		}
		key, err := hex.DecodeString(keyHex)
		if err != nil {
			logger.Fatal("RECOVERD_ENCRYPTION_KEY must be hex-encoded", zap.Error(err))
		}
		opts.EncryptionKey = key
	}

	if cfg.Catalog.DSN != "" {
		sqlStore, err := catalog.OpenSQLStore(cfg.Catalog.DSN, logger)
		if err != nil {
			logger.Fatal("failed to open catalog database", zap.Error(err))
		}
		opts.SQLStore = sqlStore
		logger.Info("catalog persistence enabled")
	}

	svc, err := service.New(cfg, opts, logger)
	if err != nil {
		logger.Fatal("failed to build backup service", zap.Error(err))
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	if err := svc.Start(ctx); err != nil {
		logger.Fatal("failed to start backup service", zap.Error(err))
	}

	// Hot-reload of mutable knobs when a config file is in play
	var reloader api.Reloader
	if cfgPath != "" {
		watcher, err := config.NewWatcher(cfgPath, cfg, svc.ApplyConfig, logger)
		if err != nil {
			logger.Warn("config watcher unavailable", zap.Error(err))
		} else {
			go watcher.Run(ctx)
			reloader = watcher
		}
	}

	server := api.NewServer(cfg, svc, reloader, logger)

	// Handle shutdown gracefully
	go func() {
		sigChan := make(chan os.Signal, 1)
		signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)
		<-sigChan

		logger.Info("shutting down...")
		shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 30*time.Second)
		defer shutdownCancel()

		if err := server.Shutdown(shutdownCtx); err != nil {
			logger.Error("shutdown error", zap.Error(err))
		}
		svc.Stop()
		cancel()
		os.Exit(0)
	}()

	fmt.Printf("recoverd listening on :%d (store=%s, frequency=%s)\n",
		cfg.Server.Port, cfg.Store.Mode, cfg.Backup.Frequency)

	if err := server.Start(); err != nil {
		logger.Fatal("server failed", zap.Error(err))
	}
}

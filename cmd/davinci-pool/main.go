package main

import (
	"context"
	"fmt"
	"io"
	"os"
	"os/signal"
	"syscall"

	"github.com/ethereum/go-ethereum/common"
	"github.com/vocdoni/davinci-pool/log"
	"github.com/vocdoni/davinci-pool/service"
	"github.com/vocdoni/davinci-pool/types"
)

// Services holds all the running services
type Services struct {
	Pool *service.PoolService
	API  *service.APIService
}

func main() {
	cfg, err := loadConfig()
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error loading configuration: %v\n", err)
		os.Exit(1)
	}
	if err := validateConfig(cfg); err != nil {
		fmt.Fprintf(os.Stderr, "Invalid configuration: %v\n", err)
		os.Exit(1)
	}

	var errorOutput io.Writer
	if cfg.Log.ErrorFile != "" {
		f, err := os.OpenFile(cfg.Log.ErrorFile, os.O_CREATE|os.O_APPEND|os.O_WRONLY, 0o600)
		if err != nil {
			fmt.Fprintf(os.Stderr, "Cannot open error log file: %v\n", err)
			os.Exit(1)
		}
		defer func() { _ = f.Close() }()
		errorOutput = f
	}
	log.Init(cfg.Log.Level, cfg.Log.Output, errorOutput)
	log.Infow("starting davinci-pool", "version", Version)

	// Create context with cancellation for graceful shutdown
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	services, err := setupServices(ctx, cfg)
	if err != nil {
		log.Fatalf("Failed to setup services: %v", err)
	}
	defer shutdownServices(services)

	// Wait for shutdown signal
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, os.Interrupt, syscall.SIGTERM)
	sig := <-sigCh
	log.Infow("received signal, shutting down", "signal", sig.String())
}

// setupServices opens the pool and starts the API
func setupServices(ctx context.Context, cfg *Config) (*Services, error) {
	services := &Services{}

	log.Infow("initializing pool", "datadir", cfg.Datadir, "type", cfg.DB.Type)
	pool, err := service.NewPool(&service.PoolConfig{
		DBType:            cfg.DB.Type,
		Datadir:           cfg.Datadir,
		Authority:         addressOrZero(cfg.Pool.Authority),
		Custody:           addressOrZero(cfg.Pool.Custody),
		VerifierMode:      types.VerifierMode(cfg.Pool.VerifierMode),
		VerifierMagic:     []byte(cfg.Pool.VerifierMagic),
		VerifierCacheSize: cfg.Verifier.CacheSize,
		DelegatedURL:      cfg.Verifier.DelegatedURL,
		DelegatedTargets:  cfg.Verifier.DevTargets,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to initialize pool: %w", err)
	}
	services.Pool = pool

	if _, err := pool.ProvisionChunks(ctx, cfg.Pool.Chunks); err != nil {
		shutdownServices(services)
		return nil, err
	}
	if err := pool.Start(ctx); err != nil {
		shutdownServices(services)
		return nil, fmt.Errorf("failed to start pool service: %w", err)
	}

	log.Infow("starting API service", "host", cfg.API.Host, "port", cfg.API.Port)
	services.API = service.NewAPI(pool, cfg.API.Host, cfg.API.Port, false)
	if err := services.API.Start(ctx); err != nil {
		shutdownServices(services)
		return nil, fmt.Errorf("failed to start API service: %w", err)
	}
	return services, nil
}

// shutdownServices stops every started service, API first
func shutdownServices(services *Services) {
	if services.API != nil {
		services.API.Stop()
	}
	if services.Pool != nil {
		services.Pool.Stop()
	}
	log.Info("all services stopped")
}

func addressOrZero(s string) common.Address {
	if s == "" {
		return common.Address{}
	}
	return common.HexToAddress(s)
}

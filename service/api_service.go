package service

import (
	"context"
	"fmt"
	"sync"

	"github.com/vocdoni/davinci-pool/api"
	"github.com/vocdoni/davinci-pool/log"
)

// APIService represents a service that manages the HTTP API server.
type APIService struct {
	pool   *PoolService
	API    *api.API
	mu     sync.Mutex
	cancel context.CancelFunc
	host   string
	port   int
}

// NewAPI creates a new APIService instance serving pool.
func NewAPI(pool *PoolService, host string, port int, disableLogging bool) *APIService {
	if disableLogging {
		api.DisabledLogging = disableLogging
		log.Debugw("API logging is disabled")
	}
	return &APIService{
		pool: pool,
		host: host,
		port: port,
	}
}

// Start begins the API server. It returns an error if the service
// is already running or if it fails to start.
func (as *APIService) Start(ctx context.Context) error {
	as.mu.Lock()
	defer as.mu.Unlock()

	if as.cancel != nil {
		return fmt.Errorf("service already running")
	}
	ctx, as.cancel = context.WithCancel(ctx)

	var err error
	as.API, err = api.New(ctx, &api.APIConfig{
		Host:       as.host,
		Port:       as.port,
		Storage:    as.pool.Storage,
		Engine:     as.pool.Engine,
		Access:     as.pool.Access,
		State:      as.pool.State,
		Nullifiers: as.pool.Nullifiers,
		Ledger:     as.pool.Ledger,
		Relayers:   as.pool.Relayers,
	})
	if err != nil {
		as.cancel()
		as.cancel = nil
		return fmt.Errorf("failed to start API server: %w", err)
	}
	return nil
}

// Stop halts the API server.
func (as *APIService) Stop() {
	as.mu.Lock()
	defer as.mu.Unlock()

	if as.cancel != nil {
		as.cancel()
		as.cancel = nil
	}
}

// HostPort returns the host and port of the API server.
func (as *APIService) HostPort() (string, int) {
	return as.host, as.port
}

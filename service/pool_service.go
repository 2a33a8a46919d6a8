package service

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/vocdoni/davinci-pool/access"
	"github.com/vocdoni/davinci-pool/db"
	"github.com/vocdoni/davinci-pool/db/metadb"
	"github.com/vocdoni/davinci-pool/ledger"
	"github.com/vocdoni/davinci-pool/log"
	"github.com/vocdoni/davinci-pool/nullifier"
	"github.com/vocdoni/davinci-pool/relayer"
	"github.com/vocdoni/davinci-pool/settlement"
	"github.com/vocdoni/davinci-pool/state"
	"github.com/vocdoni/davinci-pool/storage"
	"github.com/vocdoni/davinci-pool/types"
	"github.com/vocdoni/davinci-pool/verifier"
)

// StatsMonitorInterval is the interval at which pool statistics are logged.
// This can be overridden before starting the service.
var StatsMonitorInterval = 60 * time.Second

// PoolConfig holds everything needed to open and bootstrap a pool.
type PoolConfig struct {
	DBType  string
	Datadir string

	// Authority and Custody bootstrap the pool when it has no stored
	// configuration. They are ignored for an existing pool.
	Authority     common.Address
	Custody       common.Address
	VerifierMode  types.VerifierMode
	VerifierMagic []byte

	// VerifierCacheSize bounds the structural verification cache.
	VerifierCacheSize int
	// DelegatedURL selects a remote delegated verifier. When empty, the
	// in-process dev verifier serves DelegatedTargets.
	DelegatedURL     string
	DelegatedTargets []string
}

// PoolService owns the database and every pool component.
type PoolService struct {
	Storage    *storage.Storage
	Access     *access.Control
	State      *state.State
	Nullifiers *nullifier.Registry
	Ledger     *ledger.Ledger
	Relayers   *relayer.Registry
	Engine     *settlement.Engine
	Cache      *verifier.Cache

	settled atomic.Uint64
	mu      sync.Mutex
	cancel context.CancelFunc
}

// NewPool opens the database at cfg.Datadir, wires the pool components and
// bootstraps the pool configuration if none is stored yet.
func NewPool(cfg *PoolConfig) (*PoolService, error) {
	if cfg == nil {
		return nil, fmt.Errorf("missing pool configuration")
	}
	database, err := metadb.New(cfg.DBType, cfg.Datadir)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}
	ps, err := NewPoolWithDB(database, cfg)
	if err != nil {
		if cerr := database.Close(); cerr != nil {
			log.Warnw("failed to close database", "error", cerr)
		}
		return nil, err
	}
	return ps, nil
}

// NewPoolWithDB is NewPool on an already opened database.
func NewPoolWithDB(database db.Database, cfg *PoolConfig) (*PoolService, error) {
	st := storage.New(database)
	ac, err := access.New(st)
	if err != nil {
		return nil, fmt.Errorf("failed to load pool configuration: %w", err)
	}
	if err := bootstrap(ac, cfg); err != nil {
		return nil, err
	}

	cache, err := verifier.NewCache(cfg.VerifierCacheSize)
	if err != nil {
		return nil, err
	}
	var svc verifier.Service
	if cfg.DelegatedURL != "" {
		if svc, err = verifier.NewHTTPService(cfg.DelegatedURL); err != nil {
			return nil, err
		}
		log.Infow("using remote delegated verifier", "url", cfg.DelegatedURL)
	} else {
		svc = verifier.NewDevService(cfg.DelegatedTargets...)
	}

	ps := &PoolService{
		Storage:    st,
		Access:     ac,
		State:      state.New(st, ac),
		Nullifiers: nullifier.New(st),
		Ledger:     ledger.New(st),
		Relayers:   relayer.New(st, ac),
		Cache:      cache,
	}
	ps.Engine, err = settlement.New(settlement.Config{
		Storage:    st,
		Access:     ac,
		State:      ps.State,
		Nullifiers: ps.Nullifiers,
		Ledger:     ps.Ledger,
		Relayers:   ps.Relayers,
		Verifier:   verifier.Options{Cache: cache, Service: svc},
		Sink:       ps,
	})
	if err != nil {
		return nil, err
	}
	return ps, nil
}

// bootstrap creates the pool configuration when none is stored.
func bootstrap(ac *access.Control, cfg *PoolConfig) error {
	current, err := ac.Snapshot()
	if err == nil {
		if cfg.Authority != (common.Address{}) && cfg.Authority != current.Authority {
			log.Warnw("configured authority differs from the stored one, keeping the stored authority",
				"configured", cfg.Authority.Hex(),
				"stored", current.Authority.Hex())
		}
		return nil
	}
	if !errors.Is(err, types.ErrNotInitialized) {
		return err
	}
	if cfg.Authority == (common.Address{}) || cfg.Custody == (common.Address{}) {
		return fmt.Errorf("pool is not initialized and no authority or custody is configured")
	}
	return ac.Bootstrap(cfg.Authority, cfg.Custody, cfg.VerifierMode, cfg.VerifierMagic)
}

// Start launches the statistics monitor. It returns an error if the service
// is already running.
func (ps *PoolService) Start(ctx context.Context) error {
	ps.mu.Lock()
	defer ps.mu.Unlock()
	if ps.cancel != nil {
		return fmt.Errorf("service already running")
	}
	ctx, ps.cancel = context.WithCancel(ctx)
	ps.startStatsMonitor(ctx, StatsMonitorInterval)
	return nil
}

// Stop halts the statistics monitor and closes the storage.
func (ps *PoolService) Stop() {
	ps.mu.Lock()
	defer ps.mu.Unlock()
	if ps.cancel != nil {
		ps.cancel()
		ps.cancel = nil
	}
	ps.Storage.Close()
}

// startStatsMonitor starts a goroutine that periodically logs pool
// statistics.
func (ps *PoolService) startStatsMonitor(ctx context.Context, interval time.Duration) {
	ticker := time.NewTicker(interval)
	go func() {
		defer ticker.Stop()
		log.Infow("pool stats monitor started", "interval", interval.String())
		for {
			select {
			case <-ctx.Done():
				log.Infow("pool stats monitor stopped")
				return
			case <-ticker.C:
				ps.logStats()
			}
		}
	}()
}

// OnCommitment logs a committed deposit.
func (ps *PoolService) OnCommitment(ev *types.CommitmentEvent) {
	ps.settled.Add(1)
	log.Debugw("deposit committed",
		"depositor", ev.Depositor.Hex(),
		"commitment", ev.Commitment.Hex(),
		"amount", ev.Amount,
		"note", len(ev.EncryptedNote))
}

// OnSettlement logs a committed withdrawal.
func (ps *PoolService) OnSettlement(ev *types.SettlementEvent) {
	ps.settled.Add(1)
	log.Debugw("withdrawal settled",
		"nullifier", ev.Nullifier.Hex(),
		"recipient", ev.Recipient.Hex(),
		"amount", ev.Amount)
}

// Stats is a point-in-time summary of the pool.
type Stats struct {
	Root        common.Hash
	Paused      bool
	Chunks      int
	Deposits    int
	Withdrawals int
	// Settled counts operations committed since the service was created.
	Settled     uint64
	CacheHits   uint64
	CacheMisses uint64
}

// Stats collects the current pool statistics.
func (ps *PoolService) Stats() (*Stats, error) {
	cfg, err := ps.Access.Snapshot()
	if err != nil {
		return nil, err
	}
	root, err := ps.State.Root()
	if err != nil {
		return nil, err
	}
	chunks, err := ps.Nullifiers.Chunks()
	if err != nil {
		return nil, err
	}
	deposits, err := ps.Engine.CommitmentEvents()
	if err != nil {
		return nil, err
	}
	withdrawals, err := ps.Engine.SettlementEvents()
	if err != nil {
		return nil, err
	}
	hits, misses := ps.Cache.Stats()
	return &Stats{
		Root:        root,
		Paused:      cfg.Paused,
		Chunks:      len(chunks),
		Deposits:    len(deposits),
		Withdrawals: len(withdrawals),
		Settled:     ps.settled.Load(),
		CacheHits:   hits,
		CacheMisses: misses,
	}, nil
}

func (ps *PoolService) logStats() {
	stats, err := ps.Stats()
	if err != nil {
		log.Warnw("failed to collect pool stats", "error", err)
		return
	}
	log.Monitor("pool statistics", map[string]any{
		"root":        stats.Root.Hex(),
		"paused":      stats.Paused,
		"chunks":      stats.Chunks,
		"deposits":    stats.Deposits,
		"withdrawals": stats.Withdrawals,
		"settled":     stats.Settled,
		"cacheHits":   stats.CacheHits,
		"cacheMisses": stats.CacheMisses,
	})
}

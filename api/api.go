package api

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/vocdoni/davinci-pool/access"
	"github.com/vocdoni/davinci-pool/ledger"
	"github.com/vocdoni/davinci-pool/log"
	"github.com/vocdoni/davinci-pool/nullifier"
	"github.com/vocdoni/davinci-pool/relayer"
	"github.com/vocdoni/davinci-pool/settlement"
	"github.com/vocdoni/davinci-pool/state"
	stg "github.com/vocdoni/davinci-pool/storage"
)

const (
	maxRequestBodyLog = 512 // Maximum length of request body to log
	shutdownTimeout   = 10 * time.Second
)

// APIConfig type represents the configuration for the API HTTP server.
// It includes the host, port and the pool components served by the API.
type APIConfig struct {
	Host       string
	Port       int
	Storage    *stg.Storage
	Engine     *settlement.Engine
	Access     *access.Control
	State      *state.State
	Nullifiers *nullifier.Registry
	Ledger     ledger.TokenLedger
	Relayers   *relayer.Registry // Optional: relayer endpoints are disabled when nil
}

// API type represents the API HTTP server of the pool.
type API struct {
	router     *chi.Mux
	storage    *stg.Storage
	engine     *settlement.Engine
	access     *access.Control
	state      *state.State
	nullifiers *nullifier.Registry
	ledger     ledger.TokenLedger
	relayers   *relayer.Registry
}

// New creates a new API instance with the given configuration and starts
// the HTTP server. The server is shut down when ctx is cancelled.
func New(ctx context.Context, conf *APIConfig) (*API, error) {
	a, err := newAPI(conf)
	if err != nil {
		return nil, err
	}
	srv := &http.Server{
		Addr:              fmt.Sprintf("%s:%d", conf.Host, conf.Port),
		Handler:           a.router,
		ReadHeaderTimeout: 10 * time.Second,
	}
	go func() {
		log.Infow("starting API server", "host", conf.Host, "port", conf.Port)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Fatalf("failed to start the API server: %v", err)
		}
	}()
	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		if err := srv.Shutdown(shutdownCtx); err != nil {
			log.Warnw("API server shutdown failed", "error", err)
		}
	}()
	return a, nil
}

func newAPI(conf *APIConfig) (*API, error) {
	switch {
	case conf == nil:
		return nil, fmt.Errorf("missing API configuration")
	case conf.Storage == nil:
		return nil, fmt.Errorf("missing storage instance")
	case conf.Engine == nil:
		return nil, fmt.Errorf("missing settlement engine")
	case conf.Access == nil || conf.State == nil || conf.Nullifiers == nil || conf.Ledger == nil:
		return nil, fmt.Errorf("missing pool components")
	}
	a := &API{
		storage:    conf.Storage,
		engine:     conf.Engine,
		access:     conf.Access,
		state:      conf.State,
		nullifiers: conf.Nullifiers,
		ledger:     conf.Ledger,
		relayers:   conf.Relayers,
	}
	a.initRouter()
	return a, nil
}

// Router returns the chi router for testing purposes
func (a *API) Router() *chi.Mux {
	return a.router
}

// registerHandlers registers all the HTTP handlers for the API endpoints.
func (a *API) registerHandlers() {
	log.Infow("register handler", "endpoint", PingEndpoint, "method", "GET")
	a.router.Get(PingEndpoint, func(w http.ResponseWriter, r *http.Request) {
		httpWriteOK(w)
	})
	// pool queries
	log.Infow("register handler", "endpoint", PoolEndpoint, "method", "GET")
	a.router.Get(PoolEndpoint, a.poolInfo)
	log.Infow("register handler", "endpoint", NullifierEndpoint, "method", "GET")
	a.router.Get(NullifierEndpoint, a.nullifierStatus)
	log.Infow("register handler", "endpoint", BalanceEndpoint, "method", "GET")
	a.router.Get(BalanceEndpoint, a.balance)
	log.Infow("register handler", "endpoint", CommitmentEventsEndpoint, "method", "GET")
	a.router.Get(CommitmentEventsEndpoint, a.commitmentEvents)
	log.Infow("register handler", "endpoint", SettlementEventsEndpoint, "method", "GET")
	a.router.Get(SettlementEventsEndpoint, a.settlementEvents)
	// settlement
	log.Infow("register handler", "endpoint", DepositsEndpoint, "method", "POST")
	a.router.Post(DepositsEndpoint, a.newDeposit)
	log.Infow("register handler", "endpoint", WithdrawalsEndpoint, "method", "POST")
	a.router.Post(WithdrawalsEndpoint, a.newWithdrawal)
	// administration
	log.Infow("register handler", "endpoint", AdminVerifierEndpoint, "method", "POST")
	a.router.Post(AdminVerifierEndpoint, a.setVerifier)
	log.Infow("register handler", "endpoint", AdminDenyListEndpoint, "method", "POST")
	a.router.Post(AdminDenyListEndpoint, a.addToDenyList)
	log.Infow("register handler", "endpoint", AdminDenyListEndpoint, "method", "DELETE")
	a.router.Delete(AdminDenyListEndpoint, a.removeFromDenyList)
	log.Infow("register handler", "endpoint", AdminPauseEndpoint, "method", "POST")
	a.router.Post(AdminPauseEndpoint, a.setPause)
	log.Infow("register handler", "endpoint", AdminRootEndpoint, "method", "POST")
	a.router.Post(AdminRootEndpoint, a.updateRoot)
	log.Infow("register handler", "endpoint", AdminChunksEndpoint, "method", "POST")
	a.router.Post(AdminChunksEndpoint, a.createChunk)
	// relayers (if enabled)
	if a.relayers != nil {
		log.Infow("register handler", "endpoint", AdminRelayersEndpoint, "method", "POST")
		a.router.Post(AdminRelayersEndpoint, a.initRelayer)
		log.Infow("register handler", "endpoint", RelayerEndpoint, "method", "GET")
		a.router.Get(RelayerEndpoint, a.relayer)
	}
}

// initRouter creates the router with all the routes and middleware.
func (a *API) initRouter() {
	a.router = chi.NewRouter()
	a.router.Use(cors.New(cors.Options{
		AllowedOrigins:   []string{"*"},
		AllowedMethods:   []string{"GET", "POST", "DELETE", "OPTIONS"},
		AllowedHeaders:   []string{"Accept", "Content-Type"},
		AllowCredentials: false,
		MaxAge:           300,
	}).Handler)
	a.router.Use(loggingMiddleware(maxRequestBodyLog))
	a.router.Use(middleware.Recoverer)
	a.router.Use(middleware.Throttle(100))
	a.router.Use(middleware.ThrottleBacklog(5000, 40000, 60*time.Second))
	a.router.Use(middleware.Timeout(45 * time.Second))

	a.registerHandlers()
}

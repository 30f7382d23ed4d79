package settler

import (
	"context"
	"math/big"
	"sync"
	"time"

	"github.com/gagliardetto/solana-go"
	"github.com/solverhq/solana-settler/pkg/auction"
	"github.com/solverhq/solana-settler/pkg/balance"
	"github.com/solverhq/solana-settler/pkg/circuitbreaker"
	"github.com/solverhq/solana-settler/pkg/config"
	"github.com/solverhq/solana-settler/pkg/escrow"
	"github.com/solverhq/solana-settler/pkg/health"
	"github.com/solverhq/solana-settler/pkg/ledger"
	"github.com/solverhq/solana-settler/pkg/logger"
	"github.com/solverhq/solana-settler/pkg/metrics"
	"github.com/solverhq/solana-settler/pkg/models"
	"github.com/solverhq/solana-settler/pkg/router"
)

// Service polls won intents from the auctioneer and drives their settlement
// through a worker pool.
type Service struct {
	config       *config.Config
	logger       logger.Logger
	auction      *auction.Client
	orchestrator *Orchestrator
	oracle       *balance.Oracle
	ledger       ledger.Client

	solver        solana.PublicKey
	referenceMint solana.PublicKey

	workers     int
	pendingJobs chan models.RetryJob
	retryJobs   chan models.RetryJob
	wg          sync.WaitGroup

	breakers map[string]*circuitbreaker.CircuitBreaker

	// active holds intent IDs queued or in flight, so a poll never enqueues
	// an intent a worker is still settling.
	mu     sync.Mutex
	active map[string]bool
}

// NewService wires the settler from configuration. Every address in the
// book is parsed here; core logic only ever sees typed keys.
func NewService(cfg *config.Config) (*Service, error) {
	log := logger.NewStdLogger(cfg.LoggerConfig.Coloring, cfg.LoggerConfig.Level)

	signer, err := ledger.LoadKeypair(cfg.SolverKeypair)
	if err != nil {
		return nil, err
	}
	solver := signer.PublicKey()

	program, err := parseBookAddress("ESCROW_PROGRAM_ID", cfg.AddressBook.EscrowProgram)
	if err != nil {
		return nil, err
	}
	bridge, err := parseBookAddress("BRIDGE_PROGRAM_ID", cfg.AddressBook.BridgeProgram)
	if err != nil {
		return nil, err
	}
	auctioneer, err := parseBookAddress("AUCTIONEER_ADDRESS", cfg.AddressBook.Auctioneer)
	if err != nil {
		return nil, err
	}
	referenceMint, err := parseBookAddress("REFERENCE_MINT", cfg.AddressBook.ReferenceMint)
	if err != nil {
		return nil, err
	}

	client := ledger.Connect(cfg.RPCURL)
	oracle := balance.NewOracle(client, log)
	planner := router.NewPlanner(router.NewClient(cfg.RouterEndpoint, log), client, signer, log)
	coordinator := escrow.NewCoordinator(client, signer, program, bridge, auctioneer, log)

	orchestrator := NewOrchestrator(
		planner,
		coordinator,
		oracle,
		solver,
		referenceMint,
		cfg.AddressBook.SolverAddresses,
		cfg.SlippageBps,
		cfg.BalanceRetryDelay,
		log,
	)

	breakers := make(map[string]*circuitbreaker.CircuitBreaker)
	for _, chain := range cfg.SupportedChains {
		breakers[chain] = circuitbreaker.NewCircuitBreaker(
			cfg.CircuitBreaker.Enabled,
			cfg.CircuitBreaker.Threshold,
			cfg.CircuitBreaker.WindowDuration,
			cfg.CircuitBreaker.ResetTimeout,
		)
	}

	return &Service{
		config:        cfg,
		logger:        log,
		auction:       auction.New(cfg.AuctionEndpoint, solver.String(), log),
		orchestrator:  orchestrator,
		oracle:        oracle,
		ledger:        client,
		solver:        solver,
		referenceMint: referenceMint,
		workers:       cfg.WorkerCount,
		pendingJobs:   make(chan models.RetryJob, 100),
		retryJobs:     make(chan models.RetryJob, 100),
		breakers:      breakers,
		active:        make(map[string]bool),
	}, nil
}

func parseBookAddress(key, value string) (solana.PublicKey, error) {
	pk, err := solana.PublicKeyFromBase58(value)
	if err != nil {
		return solana.PublicKey{}, &models.ConfigError{Key: key, Reason: "not a valid address: " + value}
	}
	return pk, nil
}

// Start runs the service until the context is cancelled.
func (s *Service) Start(ctx context.Context) {
	healthServer := health.NewServer(
		s.config.MetricsPort,
		s.ledger,
		s.oracle,
		s.solver,
		s.referenceMint,
		s.breakers,
		s.logger,
	)
	go healthServer.Start()

	s.logger.Info("Starting %d settlement workers", s.workers)
	for i := 0; i < s.workers; i++ {
		go s.worker(ctx, i)
	}

	go s.retryHandler(ctx)
	go s.balanceMonitor(ctx)

	s.logger.Info("Polling auctioneer every %v", s.config.PollingInterval)
	ticker := time.NewTicker(s.config.PollingInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			s.logger.Info("Context cancelled, shutting down service")
			close(s.pendingJobs)
			close(s.retryJobs)
			s.wg.Wait()
			return
		case <-ticker.C:
			intents, err := s.auction.FetchWonIntents(ctx)
			if err != nil {
				s.logger.Error("Error fetching won intents: %v", err)
				continue
			}

			viable := s.filterViableIntents(intents)
			metrics.PendingIntents.Set(float64(len(viable)))
			if len(viable) > 0 {
				s.logger.Info("Queueing %d of %d won intents", len(viable), len(intents))
			}

			for _, intent := range viable {
				s.markActive(intent.ID)
				s.wg.Add(1)
				s.pendingJobs <- models.RetryJob{Intent: intent}
			}
		}
	}
}

// balanceMonitor periodically publishes the solver's reference-asset
// holding as a gauge.
func (s *Service) balanceMonitor(ctx context.Context) {
	ticker := time.NewTicker(1 * time.Minute)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			bal, err := s.oracle.GetBalance(ctx, s.solver, s.referenceMint)
			if err != nil {
				s.logger.Debug("Balance monitor: %v", err)
				continue
			}
			f, _ := new(big.Float).SetInt(bal).Float64()
			metrics.TokenBalance.WithLabelValues(s.referenceMint.String()).Set(f)
		}
	}
}

func (s *Service) markActive(intentID string) {
	s.mu.Lock()
	s.active[intentID] = true
	s.mu.Unlock()
}

func (s *Service) release(intentID string) {
	s.mu.Lock()
	delete(s.active, intentID)
	s.mu.Unlock()
}

func (s *Service) isActive(intentID string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.active[intentID]
}

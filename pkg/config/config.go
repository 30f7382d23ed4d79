package config

import (
	"log"
	"os"
	"time"

	"github.com/joho/godotenv"
	"github.com/solverhq/solana-settler/pkg/logger"
	"github.com/solverhq/solana-settler/pkg/models"
)

// Config holds the configuration for the settler service
type Config struct {
	AuctionEndpoint   string
	PollingInterval   time.Duration
	RPCURL            string
	RouterEndpoint    string
	SolverKeypair     string
	WorkerCount       int
	MetricsPort       string
	CircuitBreaker    CircuitBreakerConfig
	MaxRetries        int
	SlippageBps       uint64
	BalanceRetryDelay time.Duration
	SupportedChains   []string
	AddressBook       AddressBook
	LoggerConfig      LoggerConfig
}

// CircuitBreakerConfig holds circuit breaker configuration
type CircuitBreakerConfig struct {
	Enabled        bool
	Threshold      int
	WindowDuration time.Duration
	ResetTimeout   time.Duration
}

// LoggerConfig holds the configuration for logging
type LoggerConfig struct {
	Level    logger.Level
	Coloring bool
}

// AddressBook carries every fixed on-chain identity the settler talks to.
// Core logic receives it injected; nothing there holds address literals.
type AddressBook struct {
	// EscrowProgram is the bridge-escrow program that executes settlements.
	EscrowProgram string
	// BridgeProgram is the cross-domain bridge program whose storage, trie,
	// chain, mint-authority, escrow and fee-collector accounts the escrow
	// needs for cross-domain settlements.
	BridgeProgram string
	// Auctioneer is the auction authority account.
	Auctioneer string
	// ReferenceMint is the solver's baseline holding asset, used for
	// inventory accounting.
	ReferenceMint string
	// SolverAddresses maps a source chain label to the solver's payout
	// address on that chain.
	SolverAddresses map[string]string
}

// SolverAddressFor returns the solver payout address for a source chain.
func (b AddressBook) SolverAddressFor(chain string) (string, bool) {
	addr, ok := b.SolverAddresses[chain]
	return addr, ok
}

// LoadConfig loads the configuration from environment variables
func LoadConfig() (*Config, error) {
	// Load environment variables from .env file
	if err := godotenv.Load(); err != nil {
		log.Printf("Warning: .env file not found, using environment variables")
	}

	pollingInterval, err := GetEnvPollingInterval()
	if err != nil {
		return nil, err
	}

	workerCount, err := GetEnvWorkerCount()
	if err != nil {
		return nil, err
	}

	metricsPort, err := GetEnvMetricsPort()
	if err != nil {
		return nil, err
	}

	cbEnabled, err := GetEnvCircuitBreakerEnabled()
	if err != nil {
		return nil, err
	}

	cbThreshold, err := GetEnvCircuitBreakerThreshold()
	if err != nil {
		return nil, err
	}

	cbWindow, err := GetEnvCircuitBreakerWindow()
	if err != nil {
		return nil, err
	}

	cbReset, err := GetEnvCircuitBreakerReset()
	if err != nil {
		return nil, err
	}

	maxRetries, err := GetEnvMaxRetries()
	if err != nil {
		return nil, err
	}

	slippageBps, err := GetEnvSlippageBps()
	if err != nil {
		return nil, err
	}

	balanceRetryDelay, err := GetEnvBalanceRetryDelay()
	if err != nil {
		return nil, err
	}

	auctionEndpoint, err := GetEnvAuctionEndpoint()
	if err != nil {
		return nil, err
	}

	routerEndpoint, err := GetEnvRouterEndpoint()
	if err != nil {
		return nil, err
	}

	logLevel, err := GetEnvLogLevel()
	if err != nil {
		return nil, err
	}

	logColoring, err := GetEnvLogColoring()
	if err != nil {
		return nil, err
	}

	cfg := &Config{
		AuctionEndpoint:   auctionEndpoint,
		PollingInterval:   pollingInterval,
		RPCURL:            os.Getenv("SOLANA_RPC"),
		RouterEndpoint:    routerEndpoint,
		SolverKeypair:     os.Getenv("SOLANA_KEYPAIR"),
		WorkerCount:       workerCount,
		MetricsPort:       metricsPort,
		CircuitBreaker: CircuitBreakerConfig{
			Enabled:        cbEnabled,
			Threshold:      cbThreshold,
			WindowDuration: cbWindow,
			ResetTimeout:   cbReset,
		},
		LoggerConfig: LoggerConfig{
			Level:    logLevel,
			Coloring: logColoring,
		},
		MaxRetries:        maxRetries,
		SlippageBps:       slippageBps,
		BalanceRetryDelay: balanceRetryDelay,
		SupportedChains:   GetEnvSupportedChains(),
		AddressBook:       GetEnvAddressBook(),
	}

	// Validate required environment variables
	if err := validateConfig(cfg); err != nil {
		return nil, err
	}

	return cfg, nil
}

// validateConfig validates the configuration
func validateConfig(cfg *Config) error {
	if cfg.SolverKeypair == "" {
		return &models.ConfigError{Key: "SOLANA_KEYPAIR", Reason: "signing credential is required"}
	}
	if cfg.RPCURL == "" {
		return &models.ConfigError{Key: "SOLANA_RPC", Reason: "ledger RPC endpoint is required"}
	}
	if cfg.AddressBook.EscrowProgram == "" {
		return &models.ConfigError{Key: "ESCROW_PROGRAM_ID", Reason: "escrow program id is required"}
	}
	if cfg.AddressBook.ReferenceMint == "" {
		return &models.ConfigError{Key: "REFERENCE_MINT", Reason: "reference mint is required"}
	}
	if len(cfg.AddressBook.SolverAddresses) == 0 {
		return &models.ConfigError{Key: "SOLVER_ADDRESS_*", Reason: "at least one solver payout address is required"}
	}
	return nil
}

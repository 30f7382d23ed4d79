package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/solverhq/solana-settler/pkg/logger"
)

const (
	// DefaultPollingInterval defines the default polling interval in seconds
	DefaultPollingInterval = 5

	// DefaultWorkerCount defines the default number of workers to process intents
	DefaultWorkerCount = 5

	// DefaultMetricsPort defines the default port for the metrics server
	DefaultMetricsPort = "8080"

	// DefaultCircuitBreakerEnabled defines whether the circuit breaker is enabled
	DefaultCircuitBreakerEnabled = true

	// DefaultCircuitBreakerThreshold defines the number of failures before the circuit breaker trips
	DefaultCircuitBreakerThreshold = 5

	// DefaultCircuitBreakerWindow defines the time window for the circuit breaker in seconds
	DefaultCircuitBreakerWindow = 5

	// DefaultCircuitBreakerReset defines the reset timeout for the circuit breaker in seconds
	DefaultCircuitBreakerReset = 15

	// DefaultMaxRetries defines the maximum number of whole-intent retries
	DefaultMaxRetries = 3

	// DefaultSlippageBps defines the default slippage tolerance for conversion legs
	DefaultSlippageBps = 100

	// DefaultBalanceRetryDelay defines the delay in seconds before the single
	// balance resample
	DefaultBalanceRetryDelay = 5

	// DefaultAuctionEndpoint defines the default auctioneer API endpoint
	DefaultAuctionEndpoint = "https://auctioneer.mantis.app"

	// DefaultRouterEndpoint defines the default swap router API endpoint
	DefaultRouterEndpoint = "https://quote-api.jup.ag/v6"

	// DefaultSupportedChains defines the chains the settler accepts intents for
	DefaultSupportedChains = "solana,ethereum"

	// On-chain identities, overridable per deployment

	// EscrowProgramID is the deployed bridge-escrow program
	EscrowProgramID = "B5r5MnQ7VtkKqKh7ZfSmEy3nAhtpRrqA6qkryrkRXXiG"

	// BridgeProgramID is the cross-domain bridge (IBC) program
	BridgeProgramID = "2HLLVco5HvwWriNbUhmVwA2pCetRkpgrqwnjcsZdyTKT"

	// AuctioneerAddress is the auction authority account
	AuctioneerAddress = "5zCZ3jk8EZnJyG7fhDqD6tmqiYTLZjik5HUpGMnHrZfC"

	// ReferenceMintAddress is the solver's baseline holding asset (USDT)
	ReferenceMintAddress = "Es9vMFrzaCERmJfrF4H2FYD4KCoNkY11McCe8BenwNYB"

	// Default solver payout addresses per source chain
	DefaultSolverEthereumAddress = "0x61e283f2B8FE42BB3Fc1ac0e8E2b7E2ecf703274"
	DefaultSolverSolanaAddress   = "78grvu3nEsQsx3tdMB8BqedJF2hyJx1GPgjGQZWDrDTS"
)

// GetEnvPollingInterval returns the polling interval in seconds from environment variables
func GetEnvPollingInterval() (time.Duration, error) {
	pollingInterval := os.Getenv("POLLING_INTERVAL")
	if pollingInterval == "" {
		return time.Duration(DefaultPollingInterval) * time.Second, nil
	}

	// use atoi
	interval, err := strconv.Atoi(pollingInterval)
	if err != nil {
		return 0, fmt.Errorf("invalid POLLING_INTERVAL value: %s, must be an integer", pollingInterval)
	}
	if interval <= 0 {
		return 0, fmt.Errorf("POLLING_INTERVAL must be greater than 0")
	}
	return time.Duration(interval) * time.Second, nil
}

// GetEnvWorkerCount returns the number of workers from environment variables
func GetEnvWorkerCount() (int, error) {
	workerCount := os.Getenv("WORKER_COUNT")
	if workerCount == "" {
		return DefaultWorkerCount, nil
	}

	// use atoi
	count, err := strconv.Atoi(workerCount)
	if err != nil {
		return 0, fmt.Errorf("invalid WORKER_COUNT value: %s, must be an integer", workerCount)
	}
	if count <= 0 {
		return 0, fmt.Errorf("WORKER_COUNT must be greater than 0")
	}
	return count, nil
}

// GetEnvMetricsPort returns the metrics server port from environment variables
func GetEnvMetricsPort() (string, error) {
	metricsPort := os.Getenv("METRICS_PORT")
	if metricsPort == "" {
		return DefaultMetricsPort, nil
	}

	// Validate port format
	if _, err := strconv.Atoi(metricsPort); err != nil {
		return "", fmt.Errorf("invalid METRICS_PORT value: %s, must be a valid integer", metricsPort)
	}
	return metricsPort, nil
}

// GetEnvCircuitBreakerEnabled returns whether the circuit breaker is enabled from environment variables
func GetEnvCircuitBreakerEnabled() (bool, error) {
	enabled := os.Getenv("CIRCUIT_BREAKER_ENABLED")
	if enabled == "" {
		return DefaultCircuitBreakerEnabled, nil
	}

	if enabled == "true" {
		return true, nil
	} else if enabled == "false" {
		return false, nil
	}

	return false, fmt.Errorf("invalid CIRCUIT_BREAKER_ENABLED value: %s, must be 'true' or 'false'", enabled)
}

// GetEnvCircuitBreakerThreshold returns the circuit breaker threshold from environment variables
func GetEnvCircuitBreakerThreshold() (int, error) {
	threshold := os.Getenv("CIRCUIT_BREAKER_THRESHOLD")
	if threshold == "" {
		return DefaultCircuitBreakerThreshold, nil
	}

	thresholdInt, err := strconv.Atoi(threshold)
	if err != nil {
		return 0, fmt.Errorf("invalid CIRCUIT_BREAKER_THRESHOLD value: %s, must be an integer", threshold)
	}
	if thresholdInt <= 0 {
		return 0, fmt.Errorf("CIRCUIT_BREAKER_THRESHOLD must be greater than 0")
	}
	return thresholdInt, nil
}

// GetEnvCircuitBreakerWindow returns the circuit breaker window duration from environment variables
func GetEnvCircuitBreakerWindow() (time.Duration, error) {
	window := os.Getenv("CIRCUIT_BREAKER_WINDOW")
	if window == "" {
		return DefaultCircuitBreakerWindow * time.Second, nil
	}

	// Validate duration format
	parsed, err := time.ParseDuration(window)
	if err != nil {
		return 0, fmt.Errorf("invalid CIRCUIT_BREAKER_WINDOW value: %s, must be a valid duration string", window)
	}
	return parsed, nil
}

// GetEnvCircuitBreakerReset returns the circuit breaker reset timeout from environment variables
func GetEnvCircuitBreakerReset() (time.Duration, error) {
	reset := os.Getenv("CIRCUIT_BREAKER_RESET")
	if reset == "" {
		return DefaultCircuitBreakerReset * time.Second, nil
	}

	parsed, err := time.ParseDuration(reset)
	if err != nil {
		return 0, fmt.Errorf("invalid CIRCUIT_BREAKER_RESET value: %s, must be a valid duration string", reset)
	}
	return parsed, nil
}

// GetEnvMaxRetries returns the maximum number of retries from environment variables
func GetEnvMaxRetries() (int, error) {
	maxRetries := os.Getenv("MAX_RETRIES")
	if maxRetries == "" {
		return DefaultMaxRetries, nil
	}

	retries, err := strconv.Atoi(maxRetries)
	if err != nil {
		return 0, fmt.Errorf("invalid MAX_RETRIES value: %s, must be an integer", maxRetries)
	}
	if retries < 0 {
		return 0, fmt.Errorf("MAX_RETRIES must not be negative")
	}
	return retries, nil
}

// GetEnvSlippageBps returns the slippage tolerance in basis points from environment variables
func GetEnvSlippageBps() (uint64, error) {
	slippage := os.Getenv("SLIPPAGE_BPS")
	if slippage == "" {
		return DefaultSlippageBps, nil
	}

	bps, err := strconv.ParseUint(slippage, 10, 64)
	if err != nil {
		return 0, fmt.Errorf("invalid SLIPPAGE_BPS value: %s, must be an unsigned integer", slippage)
	}
	if bps > 10000 {
		return 0, fmt.Errorf("SLIPPAGE_BPS must not exceed 10000")
	}
	return bps, nil
}

// GetEnvBalanceRetryDelay returns the balance resample delay from environment variables
func GetEnvBalanceRetryDelay() (time.Duration, error) {
	delay := os.Getenv("BALANCE_RETRY_DELAY")
	if delay == "" {
		return DefaultBalanceRetryDelay * time.Second, nil
	}

	parsed, err := time.ParseDuration(delay)
	if err != nil {
		return 0, fmt.Errorf("invalid BALANCE_RETRY_DELAY value: %s, must be a valid duration string", delay)
	}
	return parsed, nil
}

// GetEnvAuctionEndpoint returns the auctioneer API endpoint from environment variables
func GetEnvAuctionEndpoint() (string, error) {
	endpoint := os.Getenv("AUCTION_ENDPOINT")
	if endpoint == "" {
		return DefaultAuctionEndpoint, nil
	}
	if !strings.HasPrefix(endpoint, "http://") && !strings.HasPrefix(endpoint, "https://") {
		return "", fmt.Errorf("invalid AUCTION_ENDPOINT value: %s, must be an http(s) URL", endpoint)
	}
	return strings.TrimSuffix(endpoint, "/"), nil
}

// GetEnvRouterEndpoint returns the swap router API endpoint from environment variables
func GetEnvRouterEndpoint() (string, error) {
	endpoint := os.Getenv("ROUTER_ENDPOINT")
	if endpoint == "" {
		return DefaultRouterEndpoint, nil
	}
	if !strings.HasPrefix(endpoint, "http://") && !strings.HasPrefix(endpoint, "https://") {
		return "", fmt.Errorf("invalid ROUTER_ENDPOINT value: %s, must be an http(s) URL", endpoint)
	}
	return strings.TrimSuffix(endpoint, "/"), nil
}

// GetEnvSupportedChains returns the chain labels the settler accepts intents for
func GetEnvSupportedChains() []string {
	raw := os.Getenv("SUPPORTED_CHAINS")
	if raw == "" {
		raw = DefaultSupportedChains
	}

	var chains []string
	for _, chain := range strings.Split(raw, ",") {
		chain = strings.TrimSpace(strings.ToLower(chain))
		if chain != "" {
			chains = append(chains, chain)
		}
	}
	return chains
}

// GetEnvAddressBook builds the address book from defaults and environment overrides
func GetEnvAddressBook() AddressBook {
	book := AddressBook{
		EscrowProgram: EscrowProgramID,
		BridgeProgram: BridgeProgramID,
		Auctioneer:    AuctioneerAddress,
		ReferenceMint: ReferenceMintAddress,
		SolverAddresses: map[string]string{
			"ethereum": DefaultSolverEthereumAddress,
			"solana":   DefaultSolverSolanaAddress,
		},
	}

	if v := os.Getenv("ESCROW_PROGRAM_ID"); v != "" {
		book.EscrowProgram = v
	}
	if v := os.Getenv("BRIDGE_PROGRAM_ID"); v != "" {
		book.BridgeProgram = v
	}
	if v := os.Getenv("AUCTIONEER_ADDRESS"); v != "" {
		book.Auctioneer = v
	}
	if v := os.Getenv("REFERENCE_MINT"); v != "" {
		book.ReferenceMint = v
	}
	for _, chain := range GetEnvSupportedChains() {
		envVar := fmt.Sprintf("SOLVER_ADDRESS_%s", strings.ToUpper(chain))
		if v := os.Getenv(envVar); v != "" {
			book.SolverAddresses[chain] = v
		}
	}

	return book
}

// GetEnvLogLevel returns the log level from environment variables
func GetEnvLogLevel() (logger.Level, error) {
	level := os.Getenv("LOG_LEVEL")
	if level == "" {
		return logger.InfoLevel, nil
	}

	switch strings.ToLower(level) {
	case "debug":
		return logger.DebugLevel, nil
	case "info":
		return logger.InfoLevel, nil
	case "notice":
		return logger.NoticeLevel, nil
	case "error":
		return logger.ErrorLevel, nil
	}
	return 0, fmt.Errorf("invalid LOG_LEVEL value: %s, must be one of debug, info, notice, error", level)
}

// GetEnvLogColoring returns whether log coloring is enabled from environment variables
func GetEnvLogColoring() (bool, error) {
	coloring := os.Getenv("LOG_COLORING")
	if coloring == "" {
		return true, nil
	}

	if coloring == "true" {
		return true, nil
	} else if coloring == "false" {
		return false, nil
	}

	return false, fmt.Errorf("invalid LOG_COLORING value: %s, must be 'true' or 'false'", coloring)
}

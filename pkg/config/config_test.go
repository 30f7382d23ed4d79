package config

import (
	"errors"
	"testing"
	"time"

	"github.com/solverhq/solana-settler/pkg/models"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// setRequiredEnv sets the two values LoadConfig has no defaults for.
func setRequiredEnv(t *testing.T) {
	t.Helper()
	t.Setenv("SOLANA_RPC", "https://api.mainnet-beta.solana.com")
	t.Setenv("SOLANA_KEYPAIR", "4rQanLxTFvdgtLsGirizXejgY5cnufpDZpagFdZUVLTLinzfUBpttt7ZdENuJ33KrtjNTEAzHLq9z9278gS3vxr")
}

func TestLoadConfigDefaults(t *testing.T) {
	setRequiredEnv(t)

	cfg, err := LoadConfig()
	require.NoError(t, err)

	assert.Equal(t, 5*time.Second, cfg.PollingInterval)
	assert.Equal(t, DefaultWorkerCount, cfg.WorkerCount)
	assert.Equal(t, DefaultMetricsPort, cfg.MetricsPort)
	assert.Equal(t, DefaultRouterEndpoint, cfg.RouterEndpoint)
	assert.Equal(t, uint64(DefaultSlippageBps), cfg.SlippageBps)
	assert.Equal(t, 5*time.Second, cfg.BalanceRetryDelay)
	assert.Equal(t, []string{"solana", "ethereum"}, cfg.SupportedChains)
	assert.Equal(t, EscrowProgramID, cfg.AddressBook.EscrowProgram)
	assert.Equal(t, ReferenceMintAddress, cfg.AddressBook.ReferenceMint)
	assert.True(t, cfg.CircuitBreaker.Enabled)
}

func TestLoadConfigOverrides(t *testing.T) {
	setRequiredEnv(t)
	t.Setenv("POLLING_INTERVAL", "30")
	t.Setenv("WORKER_COUNT", "2")
	t.Setenv("SLIPPAGE_BPS", "250")
	t.Setenv("BALANCE_RETRY_DELAY", "10s")
	t.Setenv("SUPPORTED_CHAINS", "Solana, Ethereum, Osmosis")
	t.Setenv("SOLVER_ADDRESS_OSMOSIS", "osmo1xyz")
	t.Setenv("ESCROW_PROGRAM_ID", "11111111111111111111111111111111")

	cfg, err := LoadConfig()
	require.NoError(t, err)

	assert.Equal(t, 30*time.Second, cfg.PollingInterval)
	assert.Equal(t, 2, cfg.WorkerCount)
	assert.Equal(t, uint64(250), cfg.SlippageBps)
	assert.Equal(t, 10*time.Second, cfg.BalanceRetryDelay)
	assert.Equal(t, []string{"solana", "ethereum", "osmosis"}, cfg.SupportedChains)
	assert.Equal(t, "osmo1xyz", cfg.AddressBook.SolverAddresses["osmosis"])
	assert.Equal(t, "11111111111111111111111111111111", cfg.AddressBook.EscrowProgram)
}

func TestLoadConfigRejectsBadValues(t *testing.T) {
	tests := []struct {
		name  string
		key   string
		value string
	}{
		{"non-numeric polling interval", "POLLING_INTERVAL", "fast"},
		{"zero polling interval", "POLLING_INTERVAL", "0"},
		{"negative worker count", "WORKER_COUNT", "-1"},
		{"non-numeric metrics port", "METRICS_PORT", "http"},
		{"slippage beyond full", "SLIPPAGE_BPS", "10001"},
		{"bad retry delay", "BALANCE_RETRY_DELAY", "ten seconds"},
		{"bad breaker flag", "CIRCUIT_BREAKER_ENABLED", "yes"},
		{"bad auction endpoint", "AUCTION_ENDPOINT", "auctioneer.mantis.app"},
		{"bad log level", "LOG_LEVEL", "verbose"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			setRequiredEnv(t)
			t.Setenv(tt.key, tt.value)
			_, err := LoadConfig()
			assert.Error(t, err)
		})
	}
}

func TestLoadConfigRequiredValues(t *testing.T) {
	t.Run("missing keypair", func(t *testing.T) {
		t.Setenv("SOLANA_RPC", "https://api.mainnet-beta.solana.com")
		t.Setenv("SOLANA_KEYPAIR", "")

		_, err := LoadConfig()
		var cfgErr *models.ConfigError
		require.True(t, errors.As(err, &cfgErr))
		assert.Equal(t, "SOLANA_KEYPAIR", cfgErr.Key)
	})

	t.Run("missing rpc endpoint", func(t *testing.T) {
		t.Setenv("SOLANA_RPC", "")
		t.Setenv("SOLANA_KEYPAIR", "key")

		_, err := LoadConfig()
		var cfgErr *models.ConfigError
		require.True(t, errors.As(err, &cfgErr))
		assert.Equal(t, "SOLANA_RPC", cfgErr.Key)
	})
}

func TestAddressBookSolverAddressFor(t *testing.T) {
	book := GetEnvAddressBook()

	addr, ok := book.SolverAddressFor("solana")
	assert.True(t, ok)
	assert.Equal(t, DefaultSolverSolanaAddress, addr)

	_, ok = book.SolverAddressFor("osmosis")
	assert.False(t, ok)
}

package settler

import (
	"context"
	"errors"
	"math/big"
	"testing"
	"time"

	"github.com/gagliardetto/solana-go"
	"github.com/solverhq/solana-settler/pkg/logger"
	"github.com/solverhq/solana-settler/pkg/models"
	"github.com/solverhq/solana-settler/pkg/router"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const (
	mintSOL  = "So11111111111111111111111111111111111111112"
	mintUSDT = "Es9vMFrzaCERmJfrF4H2FYD4KCoNkY11McCe8BenwNYB"
	userAddr = "zufogDRwsdfsFrSDcZLEDt7NSFJheL9HGVz4Lk1NLiZ"
)

var (
	testSolver        = solana.MustPublicKeyFromBase58("78grvu3nEsQsx3tdMB8BqedJF2hyJx1GPgjGQZWDrDTS")
	testReferenceMint = solana.MustPublicKeyFromBase58(mintUSDT)
)

// mockPlanner records conversion legs and fails on demand.
type mockPlanner struct {
	executeErr error
	legs       []router.SwapMode
	memos      []router.Memo
}

func (m *mockPlanner) Execute(_ context.Context, memo router.Memo, mode router.SwapMode) (solana.Signature, error) {
	if m.executeErr != nil {
		return solana.Signature{}, m.executeErr
	}
	m.legs = append(m.legs, mode)
	m.memos = append(m.memos, memo)
	return solana.Signature{1}, nil
}

// mockCoordinator records settlement activity.
type mockCoordinator struct {
	settleErr      error
	transferErr    error
	ensureErr      error
	settleCalls    int
	transferCalls  int
	ensureCalls    int
	settledMode    models.DomainMode
	settledIntent  string
	settledSolver  string
	transferredAmt uint64
}

func (m *mockCoordinator) EnsureTokenAccount(context.Context, solana.PublicKey, solana.PublicKey) error {
	m.ensureCalls++
	return m.ensureErr
}

func (m *mockCoordinator) Settle(_ context.Context, intentID string, _, _, _ solana.PublicKey, solverOut string, mode models.DomainMode) (solana.Signature, error) {
	m.settleCalls++
	if m.settleErr != nil {
		return solana.Signature{}, m.settleErr
	}
	m.settledIntent = intentID
	m.settledSolver = solverOut
	m.settledMode = mode
	return solana.Signature{9}, nil
}

func (m *mockCoordinator) Transfer(_ context.Context, _, _ solana.PublicKey, amount uint64) (solana.Signature, error) {
	m.transferCalls++
	if m.transferErr != nil {
		return solana.Signature{}, m.transferErr
	}
	m.transferredAmt = amount
	return solana.Signature{8}, nil
}

// mockOracle replays balance reads.
type mockOracle struct {
	balance      *big.Int
	delta        *big.Int
	balanceErr   error
	deltaErr     error
	balanceCalls int
	deltaCalls   int
}

func (m *mockOracle) GetBalance(context.Context, solana.PublicKey, solana.PublicKey) (*big.Int, error) {
	m.balanceCalls++
	if m.balanceErr != nil {
		return nil, m.balanceErr
	}
	return m.balance, nil
}

func (m *mockOracle) SampleDelta(context.Context, solana.PublicKey, solana.PublicKey, *big.Int, time.Duration) (*big.Int, error) {
	m.deltaCalls++
	if m.deltaErr != nil {
		return nil, m.deltaErr
	}
	return m.delta, nil
}

type fixture struct {
	planner      *mockPlanner
	coordinator  *mockCoordinator
	oracle       *mockOracle
	orchestrator *Orchestrator
}

func newFixture() *fixture {
	planner := &mockPlanner{}
	coordinator := &mockCoordinator{}
	oracle := &mockOracle{balance: big.NewInt(1_000_000), delta: big.NewInt(500)}
	orchestrator := NewOrchestrator(
		planner, coordinator, oracle,
		testSolver, testReferenceMint,
		map[string]string{"solana": testSolver.String(), "ethereum": "0xdeadbeef"},
		100, time.Millisecond, &logger.EmptyLogger{},
	)
	return &fixture{planner: planner, coordinator: coordinator, oracle: oracle, orchestrator: orchestrator}
}

func singleDomainIntent() models.Intent {
	return models.Intent{
		ID:               "intent-1",
		SourceChain:      "solana",
		DestinationChain: "solana",
		Operation:        models.OpSwap,
		TokenIn:          mintSOL,
		AmountIn:         "2000000",
		TokenOut:         mintSOL,
		AmountOut:        "1990000",
		Recipient:        userAddr,
	}
}

func crossDomainIntent() models.Intent {
	intent := singleDomainIntent()
	intent.SourceChain = "ethereum"
	return intent
}

func TestSettleIntentSingleDomain(t *testing.T) {
	t.Run("full sequence with both conversion legs", func(t *testing.T) {
		f := newFixture()
		report, err := f.orchestrator.SettleIntent(context.Background(), singleDomainIntent())
		require.NoError(t, err)

		// Output differs from the reference asset, so both legs ran
		require.Equal(t, []router.SwapMode{router.SwapModeExactOut, router.SwapModeExactIn}, f.planner.legs)
		assert.Equal(t, uint64(1990000), f.planner.memos[0].Amount)
		assert.Equal(t, uint64(2000000), f.planner.memos[1].Amount)

		assert.Equal(t, 1, f.coordinator.settleCalls)
		assert.Equal(t, models.SingleDomain, f.coordinator.settledMode)
		assert.True(t, report.Reconciled)
		assert.Equal(t, big.NewInt(500), report.Delta)
		assert.Equal(t, 1, f.oracle.balanceCalls)
		assert.Equal(t, 1, f.oracle.deltaCalls)
	})

	t.Run("no pre-conversion when output is the reference asset", func(t *testing.T) {
		f := newFixture()
		intent := singleDomainIntent()
		intent.TokenOut = mintUSDT

		_, err := f.orchestrator.SettleIntent(context.Background(), intent)
		require.NoError(t, err)

		// Only the post-conversion leg runs
		require.Equal(t, []router.SwapMode{router.SwapModeExactIn}, f.planner.legs)
		assert.Equal(t, 1, f.coordinator.settleCalls)
	})

	t.Run("no post-conversion when input is the reference asset", func(t *testing.T) {
		f := newFixture()
		intent := singleDomainIntent()
		intent.TokenIn = mintUSDT

		_, err := f.orchestrator.SettleIntent(context.Background(), intent)
		require.NoError(t, err)

		require.Equal(t, []router.SwapMode{router.SwapModeExactOut}, f.planner.legs)
	})

	t.Run("reference mint comparison is case-insensitive", func(t *testing.T) {
		f := newFixture()
		intent := singleDomainIntent()
		// Same mint, different casing; both still decode to 32 bytes.
		intent.TokenIn = "Es9vMFrzacermJfrF4H2FYD4KCoNkY11McCe8BenwNYB"
		intent.TokenOut = "Es9vMFrzaCERmJfrF4H2FYD4KCoNkY11McCe8BenwNYb"

		_, err := f.orchestrator.SettleIntent(context.Background(), intent)
		require.NoError(t, err)
		assert.Empty(t, f.planner.legs)
	})
}

func TestSettleIntentFailures(t *testing.T) {
	t.Run("pre-conversion failure aborts before settlement", func(t *testing.T) {
		f := newFixture()
		f.planner.executeErr = &models.ConversionError{TokenIn: mintUSDT, TokenOut: mintSOL, Err: errors.New("slippage exceeded")}

		_, err := f.orchestrator.SettleIntent(context.Background(), singleDomainIntent())
		require.Error(t, err)

		// The settlement call never happens after the leg fails
		assert.Zero(t, f.coordinator.settleCalls)

		// The diagnostic flags a possibly partially-converted position
		var convErr *models.ConversionError
		require.True(t, errors.As(err, &convErr))
		assert.True(t, convErr.ManualRemediation)
	})

	t.Run("quote unavailable is not flagged for remediation", func(t *testing.T) {
		f := newFixture()
		f.planner.executeErr = &models.QuoteUnavailableError{TokenIn: mintUSDT, TokenOut: mintSOL, Err: errors.New("no route")}

		_, err := f.orchestrator.SettleIntent(context.Background(), singleDomainIntent())
		var quoteErr *models.QuoteUnavailableError
		require.True(t, errors.As(err, &quoteErr))
		assert.Zero(t, f.coordinator.settleCalls)
	})

	t.Run("settlement failure after pre-conversion is diagnosed", func(t *testing.T) {
		f := newFixture()
		f.coordinator.settleErr = &models.EscrowCallError{IntentID: "intent-1", Err: errors.New("rejected")}

		report, err := f.orchestrator.SettleIntent(context.Background(), singleDomainIntent())
		require.Error(t, err)
		require.NotNil(t, report)
		require.NotEmpty(t, report.Diagnostics)
		assert.Contains(t, report.Diagnostics[0], "pre-conversion leg already executed")
	})

	t.Run("duplicate settlement surfaces the program verdict", func(t *testing.T) {
		f := newFixture()
		f.coordinator.settleErr = &models.EscrowCallError{IntentID: "intent-1", Code: models.DuplicateSettlementCode, Err: errors.New("already settled")}

		_, err := f.orchestrator.SettleIntent(context.Background(), singleDomainIntent())
		var escrowErr *models.EscrowCallError
		require.True(t, errors.As(err, &escrowErr))
		assert.True(t, models.IsDuplicateSettlement(escrowErr))
	})

	t.Run("post-conversion failure does not fail the run", func(t *testing.T) {
		f := newFixture()
		intent := singleDomainIntent()
		intent.TokenOut = mintUSDT // skip pre-conversion so only the post leg can fail
		f.planner.executeErr = &models.ConversionError{TokenIn: mintSOL, TokenOut: mintUSDT, Err: errors.New("slippage")}

		report, err := f.orchestrator.SettleIntent(context.Background(), intent)
		require.NoError(t, err)
		require.NotEmpty(t, report.Diagnostics)
		assert.Contains(t, report.Diagnostics[0], "settlement stands")
		assert.Equal(t, 1, f.coordinator.settleCalls)
	})

	t.Run("reconciliation failure is a diagnostic not an error", func(t *testing.T) {
		f := newFixture()
		f.oracle.deltaErr = errors.New("node flaked")
		intent := singleDomainIntent()
		intent.TokenIn = mintUSDT
		intent.TokenOut = mintUSDT

		report, err := f.orchestrator.SettleIntent(context.Background(), intent)
		require.NoError(t, err)
		assert.False(t, report.Reconciled)
		assert.NotEmpty(t, report.Diagnostics)
	})

	t.Run("token account setup failure does not block settlement", func(t *testing.T) {
		f := newFixture()
		f.coordinator.ensureErr = errors.New("rent exemption")

		_, err := f.orchestrator.SettleIntent(context.Background(), singleDomainIntent())
		require.NoError(t, err)
		assert.Equal(t, 1, f.coordinator.settleCalls)
	})
}

func TestSettleIntentParsing(t *testing.T) {
	t.Run("malformed amount rejected before any ledger call", func(t *testing.T) {
		f := newFixture()
		intent := singleDomainIntent()
		intent.AmountOut = "1.5e6"

		_, err := f.orchestrator.SettleIntent(context.Background(), intent)
		var parseErr *models.ParseError
		require.True(t, errors.As(err, &parseErr))
		assert.Zero(t, f.oracle.balanceCalls)
		assert.Zero(t, f.coordinator.settleCalls)
		assert.Empty(t, f.planner.legs)
	})

	t.Run("amount beyond token range rejected", func(t *testing.T) {
		f := newFixture()
		intent := singleDomainIntent()
		intent.AmountIn = "340282366920938463463374607431768211455"

		_, err := f.orchestrator.SettleIntent(context.Background(), intent)
		var parseErr *models.ParseError
		require.True(t, errors.As(err, &parseErr))
		assert.Contains(t, parseErr.Reason, "range")
	})

	t.Run("invalid recipient rejected", func(t *testing.T) {
		f := newFixture()
		intent := singleDomainIntent()
		intent.Recipient = "0x1234"

		_, err := f.orchestrator.SettleIntent(context.Background(), intent)
		var parseErr *models.ParseError
		require.True(t, errors.As(err, &parseErr))
		assert.Equal(t, "dst_chain_user", parseErr.Field)
	})

	t.Run("unknown source chain payout rejected", func(t *testing.T) {
		f := newFixture()
		intent := singleDomainIntent()
		intent.SourceChain = "osmosis"
		intent.DestinationChain = "osmosis"

		_, err := f.orchestrator.SettleIntent(context.Background(), intent)
		var parseErr *models.ParseError
		require.True(t, errors.As(err, &parseErr))
		assert.Equal(t, "src_chain", parseErr.Field)
	})
}

func TestSettleIntentCrossDomain(t *testing.T) {
	t.Run("no baseline and no reconciliation", func(t *testing.T) {
		f := newFixture()
		report, err := f.orchestrator.SettleIntent(context.Background(), crossDomainIntent())
		require.NoError(t, err)

		assert.Zero(t, f.oracle.balanceCalls)
		assert.Zero(t, f.oracle.deltaCalls)
		assert.False(t, report.Reconciled)
		assert.Nil(t, report.Delta)
		assert.Equal(t, models.CrossDomain, report.Mode)
	})

	t.Run("no post-conversion leg", func(t *testing.T) {
		f := newFixture()
		_, err := f.orchestrator.SettleIntent(context.Background(), crossDomainIntent())
		require.NoError(t, err)

		// Only the pre-conversion leg runs; the input asset arrives on the
		// source chain, out of this ledger's reach.
		assert.Equal(t, []router.SwapMode{router.SwapModeExactOut}, f.planner.legs)
	})

	t.Run("source chain payout address rides along", func(t *testing.T) {
		f := newFixture()
		_, err := f.orchestrator.SettleIntent(context.Background(), crossDomainIntent())
		require.NoError(t, err)
		assert.Equal(t, "0xdeadbeef", f.coordinator.settledSolver)
		assert.Equal(t, models.CrossDomain, f.coordinator.settledMode)
	})
}

func TestSettleIntentTransferOperation(t *testing.T) {
	t.Run("transfer delivers from inventory without routing", func(t *testing.T) {
		f := newFixture()
		intent := singleDomainIntent()
		intent.Operation = models.OpTransfer

		_, err := f.orchestrator.SettleIntent(context.Background(), intent)
		require.NoError(t, err)

		assert.Equal(t, 1, f.coordinator.transferCalls)
		assert.Equal(t, uint64(1990000), f.coordinator.transferredAmt)
		assert.Equal(t, 1, f.coordinator.settleCalls)

		// The router never sees a transfer's output side
		assert.NotContains(t, f.planner.legs, router.SwapModeExactOut)
	})

	t.Run("no transfer leg when output is the reference asset", func(t *testing.T) {
		f := newFixture()
		intent := singleDomainIntent()
		intent.Operation = models.OpTransfer
		intent.TokenOut = mintUSDT

		_, err := f.orchestrator.SettleIntent(context.Background(), intent)
		require.NoError(t, err)

		// Settlement alone moves the output asset; a transfer on top of
		// it would deliver twice.
		assert.Zero(t, f.coordinator.transferCalls)
		assert.Equal(t, 1, f.coordinator.settleCalls)
	})

	t.Run("transfer failure aborts before settlement", func(t *testing.T) {
		f := newFixture()
		f.coordinator.transferErr = errors.New("insufficient inventory")
		intent := singleDomainIntent()
		intent.Operation = models.OpTransfer

		_, err := f.orchestrator.SettleIntent(context.Background(), intent)
		require.Error(t, err)
		assert.Zero(t, f.coordinator.settleCalls)
	})
}

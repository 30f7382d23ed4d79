// Package settler sequences the settlement of won intents.
package settler

import (
	"context"
	"errors"
	"fmt"
	"math/big"
	"time"

	"github.com/gagliardetto/solana-go"
	"github.com/solverhq/solana-settler/pkg/logger"
	"github.com/solverhq/solana-settler/pkg/metrics"
	"github.com/solverhq/solana-settler/pkg/models"
	"github.com/solverhq/solana-settler/pkg/router"
)

// State tracks one intent's progress through the settlement sequence.
type State int

const (
	StateStart State = iota
	StatePreConversion
	StateSettled
	StatePostConversion
	StateReconciled
	StateFailed
)

func (s State) String() string {
	switch s {
	case StateStart:
		return "start"
	case StatePreConversion:
		return "pre_conversion"
	case StateSettled:
		return "settled"
	case StatePostConversion:
		return "post_conversion"
	case StateReconciled:
		return "reconciled"
	case StateFailed:
		return "failed"
	default:
		return fmt.Sprintf("unknown(%d)", int(s))
	}
}

// ConversionPlanner executes conversion legs through the router.
type ConversionPlanner interface {
	Execute(ctx context.Context, memo router.Memo, mode router.SwapMode) (solana.Signature, error)
}

// SettlementCoordinator submits settlement calls to the escrow program.
type SettlementCoordinator interface {
	EnsureTokenAccount(ctx context.Context, owner, mint solana.PublicKey) error
	Settle(ctx context.Context, intentID string, tokenIn, tokenOut, user solana.PublicKey, solverOut string, mode models.DomainMode) (solana.Signature, error)
	Transfer(ctx context.Context, recipient, mint solana.PublicKey, amount uint64) (solana.Signature, error)
}

// BalanceOracle reads solver balances.
type BalanceOracle interface {
	GetBalance(ctx context.Context, owner, mint solana.PublicKey) (*big.Int, error)
	SampleDelta(ctx context.Context, owner, mint solana.PublicKey, baseline *big.Int, retryDelay time.Duration) (*big.Int, error)
}

// Orchestrator runs the settlement sequence for one intent at a time. Runs
// share nothing in-process; the solver's on-ledger inventory is the only
// shared resource, serialized by the ledger itself.
type Orchestrator struct {
	planner           ConversionPlanner
	coordinator       SettlementCoordinator
	oracle            BalanceOracle
	solver            solana.PublicKey
	referenceMint     solana.PublicKey
	solverAddresses   map[string]string
	slippageBps       uint64
	balanceRetryDelay time.Duration
	logger            logger.Logger
}

// NewOrchestrator creates a settlement orchestrator.
func NewOrchestrator(
	planner ConversionPlanner,
	coordinator SettlementCoordinator,
	oracle BalanceOracle,
	solver, referenceMint solana.PublicKey,
	solverAddresses map[string]string,
	slippageBps uint64,
	balanceRetryDelay time.Duration,
	log logger.Logger,
) *Orchestrator {
	return &Orchestrator{
		planner:           planner,
		coordinator:       coordinator,
		oracle:            oracle,
		solver:            solver,
		referenceMint:     referenceMint,
		solverAddresses:   solverAddresses,
		slippageBps:       slippageBps,
		balanceRetryDelay: balanceRetryDelay,
		logger:            log,
	}
}

// parsedIntent holds the validated, ledger-ready view of one intent.
type parsedIntent struct {
	tokenIn   solana.PublicKey
	tokenOut  solana.PublicKey
	user      solana.PublicKey
	amountIn  uint64
	amountOut uint64
	solverOut string
}

// parseIntent validates and converts every untrusted field before any ledger
// call is made.
func (o *Orchestrator) parseIntent(intent models.Intent) (*parsedIntent, error) {
	amountIn, err := models.ParseAmount("amount_in", intent.AmountIn)
	if err != nil {
		return nil, err
	}
	amountOut, err := models.ParseAmount("amount_out", intent.AmountOut)
	if err != nil {
		return nil, err
	}
	if !amountIn.IsUint64() {
		return nil, &models.ParseError{Field: "amount_in", Value: intent.AmountIn, Reason: "exceeds token amount range"}
	}
	if !amountOut.IsUint64() {
		return nil, &models.ParseError{Field: "amount_out", Value: intent.AmountOut, Reason: "exceeds token amount range"}
	}

	tokenIn, err := solana.PublicKeyFromBase58(intent.TokenIn)
	if err != nil {
		return nil, &models.ParseError{Field: "token_in", Value: intent.TokenIn, Reason: "not a valid address"}
	}
	tokenOut, err := solana.PublicKeyFromBase58(intent.TokenOut)
	if err != nil {
		return nil, &models.ParseError{Field: "token_out", Value: intent.TokenOut, Reason: "not a valid address"}
	}
	user, err := solana.PublicKeyFromBase58(intent.Recipient)
	if err != nil {
		return nil, &models.ParseError{Field: "dst_chain_user", Value: intent.Recipient, Reason: "not a valid address"}
	}

	solverOut, ok := o.solverAddresses[intent.SourceChain]
	if !ok {
		return nil, &models.ParseError{Field: "src_chain", Value: intent.SourceChain, Reason: "no solver payout address configured"}
	}

	return &parsedIntent{
		tokenIn:   tokenIn,
		tokenOut:  tokenOut,
		user:      user,
		amountIn:  amountIn.Uint64(),
		amountOut: amountOut.Uint64(),
		solverOut: solverOut,
	}, nil
}

// SettleIntent drives one intent through the settlement sequence and, for
// single-domain intents, reports the reference-asset delta. Exactly one
// settlement call is attempted per intent; duplicate-settlement enforcement
// is the escrow program's own stored state, never re-checked here.
func (o *Orchestrator) SettleIntent(ctx context.Context, intent models.Intent) (*models.SettlementReport, error) {
	parsed, err := o.parseIntent(intent)
	if err != nil {
		return nil, err
	}

	mode := intent.Mode()
	report := &models.SettlementReport{IntentID: intent.ID, Mode: mode}

	o.logger.InfoWithDomain(intent.DestinationChain, "Intent %s: %s -> %s, %s domain, operation %s",
		intent.ID, intent.SourceChain, intent.DestinationChain, mode, intent.Operation)

	// Start: snapshot the reference-asset holding, single domain only.
	var baseline *big.Int
	if mode == models.SingleDomain {
		baseline, err = o.oracle.GetBalance(ctx, o.solver, o.referenceMint)
		if err != nil {
			return nil, err
		}
		o.logger.Debug("Intent %s: reference balance baseline %s", intent.ID, baseline)
	}

	// PreConversion: align inventory with the requested output asset.
	preConverted, err := o.preConversion(ctx, intent, parsed)
	if err != nil {
		o.logState(intent.ID, StateFailed)
		return nil, err
	}

	// Settled: the single authoritative settlement call.
	if err := o.coordinator.EnsureTokenAccount(ctx, o.solver, parsed.tokenIn); err != nil {
		// Settlement is still attempted; the program rejects on its own if
		// the account truly cannot receive.
		o.logger.Error("Intent %s: failed to ensure input token account: %v", intent.ID, err)
	}

	sig, err := o.coordinator.Settle(ctx, intent.ID, parsed.tokenIn, parsed.tokenOut, parsed.user, parsed.solverOut, mode)
	if err != nil {
		o.logState(intent.ID, StateFailed)
		if preConverted {
			if intent.Operation == models.OpTransfer {
				report.Diagnostics = append(report.Diagnostics,
					"output asset already delivered to the user; settlement must be retried manually")
			} else {
				report.Diagnostics = append(report.Diagnostics,
					"pre-conversion leg already executed; acquired output asset remains in solver custody")
			}
			o.logger.Error("Intent %s: settlement failed after the delivery leg ran: %v", intent.ID, err)
		}
		return report, err
	}
	report.Signature = sig.String()
	o.logState(intent.ID, StateSettled)

	// PostConversion: fold the collected input asset back into the
	// reference holding, single domain only.
	o.postConversion(ctx, intent, parsed, mode, report)

	// Reconciled: sample the reference-asset delta, single domain only.
	if mode == models.CrossDomain {
		o.logger.NoticeWithDomain(intent.SourceChain,
			"Intent %s: output delivered; input asset delivery on %s remains the user's obligation",
			intent.ID, intent.SourceChain)
		return report, nil
	}

	delta, err := o.oracle.SampleDelta(ctx, o.solver, o.referenceMint, baseline, o.balanceRetryDelay)
	if err != nil {
		report.Diagnostics = append(report.Diagnostics, fmt.Sprintf("reconciliation failed: %v", err))
		o.logger.Error("Intent %s: settlement landed but reconciliation failed: %v", intent.ID, err)
		return report, nil
	}

	report.Delta = delta
	report.Reconciled = true
	o.logState(intent.ID, StateReconciled)

	deltaFloat, _ := new(big.Float).SetInt(delta).Float64()
	metrics.ProfitAndLoss.Set(deltaFloat)
	o.logger.Notice("%s", report)

	return report, nil
}

// preConversion acquires the output asset when the solver does not already
// hold it. Returns whether a leg executed.
func (o *Orchestrator) preConversion(ctx context.Context, intent models.Intent, parsed *parsedIntent) (bool, error) {
	if !router.NeedsConversion(intent.TokenOut, o.referenceMint.String()) {
		// The settlement instruction itself moves the output asset; an
		// extra delivery here would pay the user twice.
		return false, nil
	}

	if intent.Operation == models.OpTransfer {
		// Transfer intents deliver straight from inventory.
		if _, err := o.coordinator.Transfer(ctx, parsed.user, parsed.tokenOut, parsed.amountOut); err != nil {
			return false, fmt.Errorf("direct transfer to user failed: %w", err)
		}
		o.logState(intent.ID, StatePreConversion)
		return true, nil
	}

	memo := router.Memo{
		UserAccount: o.solver.String(),
		TokenIn:     o.referenceMint.String(),
		TokenOut:    intent.TokenOut,
		Amount:      parsed.amountOut,
		SlippageBps: o.slippageBps,
	}

	if _, err := o.planner.Execute(ctx, memo, router.SwapModeExactOut); err != nil {
		metrics.ConversionLegs.WithLabelValues("pre", "failed").Inc()
		var convErr *models.ConversionError
		if errors.As(err, &convErr) {
			// The route may have partially adjusted inventory; a human has
			// to reconcile before this intent can be retried.
			convErr.ManualRemediation = true
		}
		return false, err
	}

	metrics.ConversionLegs.WithLabelValues("pre", "success").Inc()
	o.logState(intent.ID, StatePreConversion)
	return true, nil
}

// postConversion converts the collected input asset back into the reference
// holding. Failures are reported on the settlement record, never unwound.
func (o *Orchestrator) postConversion(ctx context.Context, intent models.Intent, parsed *parsedIntent, mode models.DomainMode, report *models.SettlementReport) {
	if mode != models.SingleDomain || !router.NeedsConversion(intent.TokenIn, o.referenceMint.String()) {
		return
	}

	memo := router.Memo{
		UserAccount: o.solver.String(),
		TokenIn:     intent.TokenIn,
		TokenOut:    o.referenceMint.String(),
		Amount:      parsed.amountIn,
		SlippageBps: o.slippageBps,
	}

	if _, err := o.planner.Execute(ctx, memo, router.SwapModeExactIn); err != nil {
		metrics.ConversionLegs.WithLabelValues("post", "failed").Inc()
		report.Diagnostics = append(report.Diagnostics,
			fmt.Sprintf("post-conversion %s -> reference failed: %v; settlement stands, input asset held unconverted", intent.TokenIn, err))
		o.logger.Error("Intent %s: post-conversion failed: %v", intent.ID, err)
		return
	}

	metrics.ConversionLegs.WithLabelValues("post", "success").Inc()
	o.logState(intent.ID, StatePostConversion)
}

func (o *Orchestrator) logState(intentID string, state State) {
	o.logger.Debug("Intent %s: -> %s", intentID, state)
}

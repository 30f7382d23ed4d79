package escrow

import (
	"context"
	"fmt"
	"regexp"
	"strings"

	"github.com/gagliardetto/solana-go"
	associatedtokenaccount "github.com/gagliardetto/solana-go/programs/associated-token-account"
	computebudget "github.com/gagliardetto/solana-go/programs/compute-budget"
	"github.com/gagliardetto/solana-go/programs/token"
	"github.com/gagliardetto/solana-go/rpc"
	"github.com/solverhq/solana-settler/pkg/ledger"
	"github.com/solverhq/solana-settler/pkg/logger"
	"github.com/solverhq/solana-settler/pkg/models"
)

// The program fans out into several nested CPI calls, which blows through
// the default compute and heap limits.
const (
	settleComputeUnitLimit = 1_000_000
	settleHeapFrameBytes   = 128 * 1024
)

// Coordinator submits settlement calls to the bridge-escrow program.
type Coordinator struct {
	ledger     ledger.Client
	signer     solana.PrivateKey
	program    solana.PublicKey
	bridge     solana.PublicKey
	auctioneer solana.PublicKey
	logger     logger.Logger
}

// NewCoordinator creates a settlement coordinator.
func NewCoordinator(
	ledgerClient ledger.Client,
	signer solana.PrivateKey,
	program, bridge, auctioneer solana.PublicKey,
	log logger.Logger,
) *Coordinator {
	return &Coordinator{
		ledger:     ledgerClient,
		signer:     signer,
		program:    program,
		bridge:     bridge,
		auctioneer: auctioneer,
		logger:     log,
	}
}

// DeriveAddresses computes the account set for one settlement call.
func (c *Coordinator) DeriveAddresses(intentID string, tokenIn, tokenOut, user solana.PublicKey, mode models.DomainMode) (*AddressSet, error) {
	return DeriveAddresses(intentID, c.program, c.bridge, tokenIn, tokenOut, c.signer.PublicKey(), c.auctioneer, user, mode)
}

// EnsureTokenAccount creates the owner's holding account for mint if it does
// not exist yet. Safe to call repeatedly.
func (c *Coordinator) EnsureTokenAccount(ctx context.Context, owner, mint solana.PublicKey) error {
	account, _, err := solana.FindAssociatedTokenAddress(owner, mint)
	if err != nil {
		return fmt.Errorf("failed to derive token account: %w", err)
	}

	if _, err := c.ledger.GetAccountInfo(ctx, account); err == nil {
		return nil
	}

	c.logger.Debug("Creating token account %s for owner %s", account, owner)

	createIx := associatedtokenaccount.NewCreateInstruction(c.signer.PublicKey(), owner, mint).Build()

	blockhash, err := c.ledger.GetLatestBlockhash(ctx, rpc.CommitmentConfirmed)
	if err != nil {
		return &models.ProviderError{Op: "get latest blockhash", Err: err}
	}

	tx, err := solana.NewTransaction(
		[]solana.Instruction{createIx},
		blockhash.Value.Blockhash,
		solana.TransactionPayer(c.signer.PublicKey()),
	)
	if err != nil {
		return fmt.Errorf("failed to build create-account transaction: %w", err)
	}

	if err := ledger.Sign(tx, c.signer); err != nil {
		return fmt.Errorf("failed to sign create-account transaction: %w", err)
	}

	if _, err := ledger.SendAndConfirm(ctx, c.ledger, tx, rpc.TransactionOpts{
		PreflightCommitment: rpc.CommitmentProcessed,
	}); err != nil {
		return fmt.Errorf("failed to create token account: %w", err)
	}
	return nil
}

// Settle submits the settlement bundle for one intent: the compute budget
// directives followed by the single send-funds-to-user instruction with the
// account layout for the given domain mode. The heavy construction, signing
// and multi-hop submission run on their own goroutine so the caller's
// scheduling is never stalled; the call blocks until that worker reports.
//
// The program enforces at-most-once settlement per intent ID; a duplicate
// submission comes back as an EscrowCallError and is never masked.
func (c *Coordinator) Settle(ctx context.Context, intentID string, tokenIn, tokenOut, user solana.PublicKey, solverOut string, mode models.DomainMode) (solana.Signature, error) {
	type settleResult struct {
		sig solana.Signature
		err error
	}
	resultCh := make(chan settleResult, 1)

	go func() {
		sig, err := c.submitSettlement(ctx, intentID, tokenIn, tokenOut, user, solverOut, mode)
		resultCh <- settleResult{sig: sig, err: err}
	}()

	select {
	case <-ctx.Done():
		return solana.Signature{}, ctx.Err()
	case res := <-resultCh:
		return res.sig, res.err
	}
}

func (c *Coordinator) submitSettlement(ctx context.Context, intentID string, tokenIn, tokenOut, user solana.PublicKey, solverOut string, mode models.DomainMode) (solana.Signature, error) {
	accounts, err := c.DeriveAddresses(intentID, tokenIn, tokenOut, user, mode)
	if err != nil {
		return solana.Signature{}, &models.EscrowCallError{IntentID: intentID, Err: err}
	}

	args := sendFundsToUserArgs{
		IntentID:     intentID,
		SingleDomain: mode == models.SingleDomain,
	}
	if solverOut != "" {
		args.SolverOut = &solverOut
	}

	settleIx, err := newSendFundsToUserInstruction(c.program, accounts, args)
	if err != nil {
		return solana.Signature{}, &models.EscrowCallError{IntentID: intentID, Err: err}
	}

	blockhash, err := c.ledger.GetLatestBlockhash(ctx, rpc.CommitmentConfirmed)
	if err != nil {
		return solana.Signature{}, &models.ProviderError{Op: "get latest blockhash", Err: err}
	}

	tx, err := solana.NewTransaction(
		[]solana.Instruction{
			computebudget.NewSetComputeUnitLimitInstruction(settleComputeUnitLimit).Build(),
			computebudget.NewRequestHeapFrameInstruction(settleHeapFrameBytes).Build(),
			settleIx,
		},
		blockhash.Value.Blockhash,
		solana.TransactionPayer(c.signer.PublicKey()),
	)
	if err != nil {
		return solana.Signature{}, &models.EscrowCallError{IntentID: intentID, Err: err}
	}

	if err := ledger.Sign(tx, c.signer); err != nil {
		return solana.Signature{}, &models.EscrowCallError{IntentID: intentID, Err: err}
	}

	sig, err := ledger.SendAndConfirm(ctx, c.ledger, tx, rpc.TransactionOpts{
		SkipPreflight: true,
	})
	if err != nil {
		return solana.Signature{}, &models.EscrowCallError{
			IntentID: intentID,
			Code:     extractProgramErrorCode(err),
			Err:      err,
		}
	}

	c.logger.Info("Settlement for intent %s landed: %s", intentID, sig)
	return sig, nil
}

// Transfer sends amount of mint straight from solver inventory to the
// recipient's wallet, creating the recipient's holding account if needed.
func (c *Coordinator) Transfer(ctx context.Context, recipient, mint solana.PublicKey, amount uint64) (solana.Signature, error) {
	source, _, err := solana.FindAssociatedTokenAddress(c.signer.PublicKey(), mint)
	if err != nil {
		return solana.Signature{}, fmt.Errorf("failed to derive source token account: %w", err)
	}

	if _, err := c.ledger.GetAccountInfo(ctx, source); err != nil {
		return solana.Signature{}, fmt.Errorf("solver holds no account for mint %s: %w", mint, err)
	}

	if err := c.EnsureTokenAccount(ctx, recipient, mint); err != nil {
		return solana.Signature{}, err
	}

	destination, _, err := solana.FindAssociatedTokenAddress(recipient, mint)
	if err != nil {
		return solana.Signature{}, fmt.Errorf("failed to derive destination token account: %w", err)
	}

	transferIx := token.NewTransferInstruction(amount, source, destination, c.signer.PublicKey(), nil).Build()

	blockhash, err := c.ledger.GetLatestBlockhash(ctx, rpc.CommitmentConfirmed)
	if err != nil {
		return solana.Signature{}, &models.ProviderError{Op: "get latest blockhash", Err: err}
	}

	tx, err := solana.NewTransaction(
		[]solana.Instruction{transferIx},
		blockhash.Value.Blockhash,
		solana.TransactionPayer(c.signer.PublicKey()),
	)
	if err != nil {
		return solana.Signature{}, fmt.Errorf("failed to build transfer transaction: %w", err)
	}

	if err := ledger.Sign(tx, c.signer); err != nil {
		return solana.Signature{}, fmt.Errorf("failed to sign transfer transaction: %w", err)
	}

	if err := ledger.Simulate(ctx, c.ledger, tx); err != nil {
		return solana.Signature{}, err
	}

	return ledger.SendAndConfirm(ctx, c.ledger, tx, rpc.TransactionOpts{
		PreflightCommitment: rpc.CommitmentProcessed,
	})
}

var anchorErrorCodePattern = regexp.MustCompile(`Error Code: (\w+)`)

// extractProgramErrorCode pulls the program's error identifier out of an RPC
// rejection so callers see the program's verdict verbatim.
func extractProgramErrorCode(err error) string {
	msg := err.Error()
	if m := anchorErrorCodePattern.FindStringSubmatch(msg); m != nil {
		return m[1]
	}
	if strings.Contains(msg, "already settled") || strings.Contains(msg, models.DuplicateSettlementCode) {
		return models.DuplicateSettlementCode
	}
	if idx := strings.Index(msg, "custom program error: "); idx >= 0 {
		code := msg[idx+len("custom program error: "):]
		if end := strings.IndexAny(code, " ,;)\n"); end >= 0 {
			code = code[:end]
		}
		return code
	}
	return ""
}

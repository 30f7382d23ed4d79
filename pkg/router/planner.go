package router

import (
	"context"
	"strings"

	bin "github.com/gagliardetto/binary"
	"github.com/gagliardetto/solana-go"
	"github.com/gagliardetto/solana-go/rpc"
	"github.com/solverhq/solana-settler/pkg/ledger"
	"github.com/solverhq/solana-settler/pkg/logger"
	"github.com/solverhq/solana-settler/pkg/models"
)

// Planner decides whether a conversion leg is needed and executes it through
// the router.
type Planner struct {
	client *Client
	ledger ledger.Client
	signer solana.PrivateKey
	logger logger.Logger
}

// NewPlanner creates a conversion planner.
func NewPlanner(client *Client, ledgerClient ledger.Client, signer solana.PrivateKey, log logger.Logger) *Planner {
	return &Planner{
		client: client,
		ledger: ledgerClient,
		signer: signer,
		logger: log,
	}
}

// NeedsConversion reports whether mint differs from target, compared
// case-insensitively.
func NeedsConversion(mint, target string) bool {
	return !strings.EqualFold(mint, target)
}

// Quote fetches a route for the given conversion.
func (p *Planner) Quote(ctx context.Context, tokenIn, tokenOut string, amount uint64, cfg QuoteConfig) (*Quote, error) {
	return p.client.Quote(ctx, tokenIn, tokenOut, amount, cfg)
}

// Execute runs one conversion leg: quote the route, fetch the swap
// transaction, sign it, simulate it, and submit it. The leg either fully
// lands (transaction confirmed) or is treated as not having happened.
func (p *Planner) Execute(ctx context.Context, memo Memo, mode SwapMode) (solana.Signature, error) {
	quote, err := p.client.Quote(ctx, memo.TokenIn, memo.TokenOut, memo.Amount, QuoteConfig{
		SlippageBps: memo.SlippageBps,
		SwapMode:    mode,
	})
	if err != nil {
		return solana.Signature{}, err
	}

	p.logger.Debug("Routed %s %s -> %s %s (%s)",
		quote.InAmount, quote.InputMint, quote.OutAmount, quote.OutputMint, mode)

	rawTx, err := p.client.SwapTransaction(ctx, quote, p.signer.PublicKey())
	if err != nil {
		return solana.Signature{}, &models.ConversionError{TokenIn: memo.TokenIn, TokenOut: memo.TokenOut, Err: err}
	}

	tx, err := solana.TransactionFromDecoder(bin.NewBinDecoder(rawTx))
	if err != nil {
		return solana.Signature{}, &models.ConversionError{TokenIn: memo.TokenIn, TokenOut: memo.TokenOut, Err: err}
	}

	if err := ledger.Sign(tx, p.signer); err != nil {
		return solana.Signature{}, &models.ConversionError{TokenIn: memo.TokenIn, TokenOut: memo.TokenOut, Err: err}
	}

	if err := ledger.Simulate(ctx, p.ledger, tx); err != nil {
		return solana.Signature{}, &models.ConversionError{TokenIn: memo.TokenIn, TokenOut: memo.TokenOut, Err: err}
	}

	sig, err := ledger.SendAndConfirm(ctx, p.ledger, tx, rpc.TransactionOpts{
		PreflightCommitment: rpc.CommitmentProcessed,
	})
	if err != nil {
		return solana.Signature{}, &models.ConversionError{TokenIn: memo.TokenIn, TokenOut: memo.TokenOut, Err: err}
	}

	p.logger.Info("Conversion %s -> %s landed: %s", memo.TokenIn, memo.TokenOut, sig)
	return sig, nil
}

// SimulateSwap quotes a conversion without executing it and returns the
// quoted out-amount as a decimal string, or "0" when no route exists. Used
// for bid estimation.
func (p *Planner) SimulateSwap(ctx context.Context, memo Memo) string {
	quote, err := p.client.Quote(ctx, memo.TokenIn, memo.TokenOut, memo.Amount, QuoteConfig{
		SlippageBps: memo.SlippageBps,
		SwapMode:    SwapModeExactIn,
	})
	if err != nil {
		return "0"
	}
	return quote.OutAmount
}

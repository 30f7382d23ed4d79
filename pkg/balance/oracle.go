// Package balance reads the solver's on-ledger token holdings.
package balance

import (
	"context"
	"math/big"
	"time"

	"github.com/gagliardetto/solana-go"
	"github.com/gagliardetto/solana-go/rpc"
	"github.com/solverhq/solana-settler/pkg/logger"
	"github.com/solverhq/solana-settler/pkg/models"
)

// TokenBalanceClient is the slice of the RPC client the oracle needs.
type TokenBalanceClient interface {
	GetTokenAccountBalance(ctx context.Context, account solana.PublicKey, commitment rpc.CommitmentType) (*rpc.GetTokenAccountBalanceResult, error)
}

// Oracle reads owner+mint balances and samples balance deltas against a
// baseline.
type Oracle struct {
	client TokenBalanceClient
	logger logger.Logger
}

// NewOracle creates a balance oracle backed by an RPC client.
func NewOracle(client TokenBalanceClient, log logger.Logger) *Oracle {
	return &Oracle{
		client: client,
		logger: log,
	}
}

// GetBalance returns the owner's current balance of mint in raw token units.
func (o *Oracle) GetBalance(ctx context.Context, owner, mint solana.PublicKey) (*big.Int, error) {
	account, _, err := solana.FindAssociatedTokenAddress(owner, mint)
	if err != nil {
		return nil, &models.ProviderError{Op: "derive token account", Err: err}
	}

	res, err := o.client.GetTokenAccountBalance(ctx, account, rpc.CommitmentConfirmed)
	if err != nil {
		return nil, &models.ProviderError{Op: "get token account balance", Err: err}
	}

	amount, err := models.ParseAmount("balance", res.Value.Amount)
	if err != nil {
		return nil, err
	}
	return amount, nil
}

// SampleDelta compares the owner's current balance of mint against baseline
// and returns current - baseline (positive = gain). When no change is
// observed it waits retryDelay once and resamples, compensating for
// read-after-write latency on the ledger. Exactly one retry, never polling.
func (o *Oracle) SampleDelta(ctx context.Context, owner, mint solana.PublicKey, baseline *big.Int, retryDelay time.Duration) (*big.Int, error) {
	current, err := o.GetBalance(ctx, owner, mint)
	if err != nil {
		return nil, err
	}

	if current.Cmp(baseline) == 0 {
		o.logger.Debug("No balance change observed for %s, resampling once in %v", mint, retryDelay)
		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		case <-time.After(retryDelay):
		}

		current, err = o.GetBalance(ctx, owner, mint)
		if err != nil {
			return nil, err
		}
	}

	return new(big.Int).Sub(current, baseline), nil
}

package ledger

import (
	"context"
	"fmt"
	"time"

	"github.com/gagliardetto/solana-go"
	"github.com/gagliardetto/solana-go/rpc"
	"github.com/solverhq/solana-settler/pkg/models"
)

const (
	// confirmPollInterval is how often a submitted signature is checked.
	confirmPollInterval = 2 * time.Second
	// confirmTimeout bounds how long we wait for a transaction to confirm.
	confirmTimeout = 90 * time.Second
)

// Sign signs tx with the given key for every required signer it controls.
func Sign(tx *solana.Transaction, key solana.PrivateKey) error {
	_, err := tx.Sign(func(pub solana.PublicKey) *solana.PrivateKey {
		if pub.Equals(key.PublicKey()) {
			return &key
		}
		return nil
	})
	return err
}

// Simulate runs the transaction against the current ledger state and fails
// on any simulation error.
func Simulate(ctx context.Context, client Client, tx *solana.Transaction) error {
	res, err := client.SimulateTransaction(ctx, tx)
	if err != nil {
		return &models.ProviderError{Op: "simulate transaction", Err: err}
	}
	if res.Value != nil && res.Value.Err != nil {
		return fmt.Errorf("transaction simulation failed: %v", res.Value.Err)
	}
	return nil
}

// SendAndConfirm submits a signed transaction and waits until the cluster
// reports it confirmed. The returned signature identifies the landed
// transaction.
func SendAndConfirm(ctx context.Context, client Client, tx *solana.Transaction, opts rpc.TransactionOpts) (solana.Signature, error) {
	sig, err := client.SendTransactionWithOpts(ctx, tx, opts)
	if err != nil {
		return solana.Signature{}, err
	}

	if err := WaitForConfirmation(ctx, client, sig); err != nil {
		return sig, err
	}
	return sig, nil
}

// WaitForConfirmation polls signature status until the transaction is
// confirmed or finalized, the transaction itself errors, or the timeout
// elapses.
func WaitForConfirmation(ctx context.Context, client Client, sig solana.Signature) error {
	ctx, cancel := context.WithTimeout(ctx, confirmTimeout)
	defer cancel()

	ticker := time.NewTicker(confirmPollInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return fmt.Errorf("confirmation of %s timed out: %w", sig, ctx.Err())
		case <-ticker.C:
			res, err := client.GetSignatureStatuses(ctx, true, sig)
			if err != nil {
				// Transient status read failures are retried on the next tick.
				continue
			}
			if len(res.Value) == 0 || res.Value[0] == nil {
				continue
			}
			status := res.Value[0]
			if status.Err != nil {
				return fmt.Errorf("transaction %s failed on chain: %v", sig, status.Err)
			}
			if status.ConfirmationStatus == rpc.ConfirmationStatusConfirmed ||
				status.ConfirmationStatus == rpc.ConfirmationStatusFinalized {
				return nil
			}
		}
	}
}

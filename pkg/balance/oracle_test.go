package balance

import (
	"context"
	"errors"
	"math/big"
	"testing"
	"time"

	"github.com/gagliardetto/solana-go"
	"github.com/gagliardetto/solana-go/rpc"
	"github.com/solverhq/solana-settler/pkg/logger"
	"github.com/solverhq/solana-settler/pkg/models"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// mockBalanceClient replays a queue of balance responses.
type mockBalanceClient struct {
	amounts []string
	errs    []error
	calls   int
}

func (m *mockBalanceClient) GetTokenAccountBalance(_ context.Context, _ solana.PublicKey, _ rpc.CommitmentType) (*rpc.GetTokenAccountBalanceResult, error) {
	i := m.calls
	m.calls++
	if i < len(m.errs) && m.errs[i] != nil {
		return nil, m.errs[i]
	}
	return &rpc.GetTokenAccountBalanceResult{
		Value: &rpc.UiTokenAmount{Amount: m.amounts[i]},
	}, nil
}

var (
	testOwner = solana.MustPublicKeyFromBase58("78grvu3nEsQsx3tdMB8BqedJF2hyJx1GPgjGQZWDrDTS")
	testMint  = solana.MustPublicKeyFromBase58("Es9vMFrzaCERmJfrF4H2FYD4KCoNkY11McCe8BenwNYB")
)

func TestGetBalance(t *testing.T) {
	t.Run("returns raw token units", func(t *testing.T) {
		client := &mockBalanceClient{amounts: []string{"5000000"}}
		oracle := NewOracle(client, &logger.EmptyLogger{})

		bal, err := oracle.GetBalance(context.Background(), testOwner, testMint)
		require.NoError(t, err)
		assert.Equal(t, big.NewInt(5000000), bal)
	})

	t.Run("rpc failure surfaces as provider error", func(t *testing.T) {
		client := &mockBalanceClient{errs: []error{errors.New("node down")}}
		oracle := NewOracle(client, &logger.EmptyLogger{})

		_, err := oracle.GetBalance(context.Background(), testOwner, testMint)
		var provErr *models.ProviderError
		require.True(t, errors.As(err, &provErr))
	})

	t.Run("malformed amount surfaces as parse error", func(t *testing.T) {
		client := &mockBalanceClient{amounts: []string{"not-a-number"}}
		oracle := NewOracle(client, &logger.EmptyLogger{})

		_, err := oracle.GetBalance(context.Background(), testOwner, testMint)
		var parseErr *models.ParseError
		require.True(t, errors.As(err, &parseErr))
	})
}

func TestSampleDelta(t *testing.T) {
	t.Run("immediate change needs no resample", func(t *testing.T) {
		client := &mockBalanceClient{amounts: []string{"1200"}}
		oracle := NewOracle(client, &logger.EmptyLogger{})

		delta, err := oracle.SampleDelta(context.Background(), testOwner, testMint, big.NewInt(1000), time.Millisecond)
		require.NoError(t, err)
		assert.Equal(t, big.NewInt(200), delta)
		assert.Equal(t, 1, client.calls)
	})

	t.Run("zero delta triggers exactly one resample", func(t *testing.T) {
		client := &mockBalanceClient{amounts: []string{"1000", "950"}}
		oracle := NewOracle(client, &logger.EmptyLogger{})

		delta, err := oracle.SampleDelta(context.Background(), testOwner, testMint, big.NewInt(1000), time.Millisecond)
		require.NoError(t, err)
		assert.Equal(t, big.NewInt(-50), delta)
		assert.Equal(t, 2, client.calls)
	})

	t.Run("unchanged after resample reports zero", func(t *testing.T) {
		client := &mockBalanceClient{amounts: []string{"1000", "1000"}}
		oracle := NewOracle(client, &logger.EmptyLogger{})

		delta, err := oracle.SampleDelta(context.Background(), testOwner, testMint, big.NewInt(1000), time.Millisecond)
		require.NoError(t, err)
		assert.Zero(t, delta.Sign())
		assert.Equal(t, 2, client.calls)
	})

	t.Run("cancelled context aborts the resample wait", func(t *testing.T) {
		client := &mockBalanceClient{amounts: []string{"1000", "1000"}}
		oracle := NewOracle(client, &logger.EmptyLogger{})

		ctx, cancel := context.WithCancel(context.Background())
		cancel()

		_, err := oracle.SampleDelta(ctx, testOwner, testMint, big.NewInt(1000), time.Minute)
		require.ErrorIs(t, err, context.Canceled)
		assert.Equal(t, 1, client.calls)
	})
}

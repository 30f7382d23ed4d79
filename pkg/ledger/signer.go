package ledger

import (
	"github.com/gagliardetto/solana-go"
	"github.com/solverhq/solana-settler/pkg/models"
)

// LoadKeypair parses a base58-encoded signing credential.
func LoadKeypair(encoded string) (solana.PrivateKey, error) {
	key, err := solana.PrivateKeyFromBase58(encoded)
	if err != nil {
		return nil, &models.ConfigError{Key: "SOLANA_KEYPAIR", Reason: "not a base58 keypair"}
	}
	return key, nil
}

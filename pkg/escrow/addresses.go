// Package escrow drives settlements through the bridge-escrow program.
package escrow

import (
	"crypto/sha256"
	"fmt"

	"github.com/gagliardetto/solana-go"
	"github.com/solverhq/solana-settler/pkg/models"
)

// PDA seeds of the escrow and bridge programs.
var (
	intentSeed        = []byte("intent")
	auctioneerSeed    = []byte("auctioneer")
	dummyTokenSeed    = []byte("dummy")
	bridgeStorageSeed = []byte("private")
	bridgeTrieSeed    = []byte("trie")
	bridgeChainSeed   = []byte("chain")
	mintAuthoritySeed = []byte("mint_escrow")
	bridgeEscrowSeed  = []byte("escrow")
	feeCollectorSeed  = []byte("fee")
)

// AddressSet is the full account set one settlement call needs. It is
// derived per call and never cached: optional fields are populated for
// exactly one domain mode and stay nil for the other.
type AddressSet struct {
	IntentState     solana.PublicKey
	AuctioneerState solana.PublicKey
	Solver          solana.PublicKey
	Auctioneer      solana.PublicKey
	TokenOut        solana.PublicKey
	SolverTokenOut  solana.PublicKey
	UserTokenOut    solana.PublicKey

	// Same-domain escrow accounts, nil in cross mode.
	TokenIn           *solana.PublicKey
	AuctioneerTokenIn *solana.PublicKey
	SolverTokenIn     *solana.PublicKey

	// Bridge-side accounts, nil in single mode.
	BridgeProgram        *solana.PublicKey
	Receiver             *solana.PublicKey
	Storage              *solana.PublicKey
	Trie                 *solana.PublicKey
	Chain                *solana.PublicKey
	MintAuthority        *solana.PublicKey
	TokenMint            *solana.PublicKey
	EscrowAccount        *solana.PublicKey
	ReceiverTokenAccount *solana.PublicKey
	FeeCollector         *solana.PublicKey
}

// DeriveAddresses computes every account the settlement instruction needs
// for one intent, selecting the account layout for the given domain mode.
func DeriveAddresses(
	intentID string,
	programID, bridgeID solana.PublicKey,
	tokenIn, tokenOut solana.PublicKey,
	solver, auctioneer, user solana.PublicKey,
	mode models.DomainMode,
) (*AddressSet, error) {
	intentState, _, err := solana.FindProgramAddress([][]byte{intentSeed, []byte(intentID)}, programID)
	if err != nil {
		return nil, fmt.Errorf("failed to derive intent state: %w", err)
	}

	auctioneerState, _, err := solana.FindProgramAddress([][]byte{auctioneerSeed}, programID)
	if err != nil {
		return nil, fmt.Errorf("failed to derive auctioneer state: %w", err)
	}

	solverTokenOut, _, err := solana.FindAssociatedTokenAddress(solver, tokenOut)
	if err != nil {
		return nil, fmt.Errorf("failed to derive solver token-out account: %w", err)
	}

	userTokenOut, _, err := solana.FindAssociatedTokenAddress(user, tokenOut)
	if err != nil {
		return nil, fmt.Errorf("failed to derive user token-out account: %w", err)
	}

	set := &AddressSet{
		IntentState:     intentState,
		AuctioneerState: auctioneerState,
		Solver:          solver,
		Auctioneer:      auctioneer,
		TokenOut:        tokenOut,
		SolverTokenOut:  solverTokenOut,
		UserTokenOut:    userTokenOut,
	}

	if mode == models.SingleDomain {
		solverTokenIn, _, err := solana.FindAssociatedTokenAddress(solver, tokenIn)
		if err != nil {
			return nil, fmt.Errorf("failed to derive solver token-in account: %w", err)
		}

		auctioneerTokenIn, _, err := solana.FindAssociatedTokenAddress(auctioneerState, tokenIn)
		if err != nil {
			return nil, fmt.Errorf("failed to derive auctioneer token-in escrow: %w", err)
		}

		set.TokenIn = &tokenIn
		set.SolverTokenIn = &solverTokenIn
		set.AuctioneerTokenIn = &auctioneerTokenIn
		return set, nil
	}

	storage, _, err := solana.FindProgramAddress([][]byte{bridgeStorageSeed}, bridgeID)
	if err != nil {
		return nil, fmt.Errorf("failed to derive bridge storage: %w", err)
	}

	trie, _, err := solana.FindProgramAddress([][]byte{bridgeTrieSeed}, bridgeID)
	if err != nil {
		return nil, fmt.Errorf("failed to derive bridge trie: %w", err)
	}

	chain, _, err := solana.FindProgramAddress([][]byte{bridgeChainSeed}, bridgeID)
	if err != nil {
		return nil, fmt.Errorf("failed to derive bridge chain: %w", err)
	}

	mintAuthority, _, err := solana.FindProgramAddress([][]byte{mintAuthoritySeed}, bridgeID)
	if err != nil {
		return nil, fmt.Errorf("failed to derive mint authority: %w", err)
	}

	tokenMint, _, err := solana.FindProgramAddress([][]byte{dummyTokenSeed}, programID)
	if err != nil {
		return nil, fmt.Errorf("failed to derive bridged token mint: %w", err)
	}

	// The bridge keys its escrow vault by the hash of the full denom.
	hashedDenom := sha256.Sum256([]byte(tokenMint.String()))
	escrowAccount, _, err := solana.FindProgramAddress([][]byte{bridgeEscrowSeed, hashedDenom[:]}, bridgeID)
	if err != nil {
		return nil, fmt.Errorf("failed to derive bridge escrow vault: %w", err)
	}

	receiverTokenAccount, _, err := solana.FindAssociatedTokenAddress(solver, tokenMint)
	if err != nil {
		return nil, fmt.Errorf("failed to derive receiver token account: %w", err)
	}

	feeCollector, _, err := solana.FindProgramAddress([][]byte{feeCollectorSeed}, bridgeID)
	if err != nil {
		return nil, fmt.Errorf("failed to derive fee collector: %w", err)
	}

	set.BridgeProgram = &bridgeID
	set.Receiver = &user
	set.Storage = &storage
	set.Trie = &trie
	set.Chain = &chain
	set.MintAuthority = &mintAuthority
	set.TokenMint = &tokenMint
	set.EscrowAccount = &escrowAccount
	set.ReceiverTokenAccount = &receiverTokenAccount
	set.FeeCollector = &feeCollector
	return set, nil
}

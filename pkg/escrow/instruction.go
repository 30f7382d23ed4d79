package escrow

import (
	"bytes"
	"crypto/sha256"
	"fmt"

	bin "github.com/gagliardetto/binary"
	"github.com/gagliardetto/solana-go"
)

// sendFundsToUserArgs is the Borsh-encoded argument body of the program's
// send_funds_to_user instruction.
type sendFundsToUserArgs struct {
	IntentID     string
	SolverOut    *string `bin:"optional"`
	SingleDomain bool
}

// anchorDiscriminator computes the 8-byte instruction tag the program
// dispatches on.
func anchorDiscriminator(name string) []byte {
	sum := sha256.Sum256([]byte("global:" + name))
	return sum[:8]
}

// newSendFundsToUserInstruction assembles the single settlement instruction
// against the derived account set. Optional accounts that the chosen domain
// mode leaves unset are passed as the program ID, which is how the program
// marks an absent account.
func newSendFundsToUserInstruction(programID solana.PublicKey, accounts *AddressSet, args sendFundsToUserArgs) (solana.Instruction, error) {
	buf := new(bytes.Buffer)
	buf.Write(anchorDiscriminator("send_funds_to_user"))
	if err := bin.NewBorshEncoder(buf).Encode(args); err != nil {
		return nil, fmt.Errorf("failed to encode instruction args: %w", err)
	}

	optional := func(key *solana.PublicKey, writable bool) *solana.AccountMeta {
		if key == nil {
			return solana.Meta(programID)
		}
		meta := solana.Meta(*key)
		if writable {
			meta = meta.WRITE()
		}
		return meta
	}

	metas := solana.AccountMetaSlice{
		solana.Meta(accounts.IntentState).WRITE(),
		solana.Meta(accounts.AuctioneerState).WRITE(),
		solana.Meta(accounts.Solver).WRITE().SIGNER(),
		solana.Meta(accounts.Auctioneer).WRITE(),
		optional(accounts.TokenIn, false),
		solana.Meta(accounts.TokenOut),
		optional(accounts.AuctioneerTokenIn, true),
		optional(accounts.SolverTokenIn, true),
		solana.Meta(accounts.SolverTokenOut).WRITE(),
		solana.Meta(accounts.UserTokenOut).WRITE(),
		solana.Meta(solana.TokenProgramID),
		solana.Meta(solana.SPLAssociatedTokenAccountProgramID),
		solana.Meta(solana.SystemProgramID),
		optional(accounts.BridgeProgram, false),
		optional(accounts.Receiver, false),
		optional(accounts.Storage, true),
		optional(accounts.Trie, true),
		optional(accounts.Chain, true),
		optional(accounts.MintAuthority, true),
		optional(accounts.TokenMint, true),
		optional(accounts.EscrowAccount, true),
		optional(accounts.ReceiverTokenAccount, true),
		optional(accounts.FeeCollector, true),
	}

	return solana.NewInstruction(programID, metas, buf.Bytes()), nil
}

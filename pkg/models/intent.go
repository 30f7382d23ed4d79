package models

import (
	"fmt"
	"math/big"
	"strings"
	"time"
)

// Operation is the closed set of intent operations the solver executes.
type Operation string

const (
	// OpSwap swaps the solver's inventory into the requested output asset
	// before delivery.
	OpSwap Operation = "swap"
	// OpTransfer delivers the output asset straight from solver inventory.
	OpTransfer Operation = "transfer"
)

// DomainMode selects the settlement account layout for an intent.
type DomainMode int

const (
	// SingleDomain means source and destination chains coincide.
	SingleDomain DomainMode = iota
	// CrossDomain means the input leg settles on a different chain.
	CrossDomain
)

func (m DomainMode) String() string {
	if m == SingleDomain {
		return "single"
	}
	return "cross"
}

// Intent represents a won intent from the auctioneer API. It is read-only to
// the settler: amounts stay as the decimal strings the API delivered and are
// parsed on use.
type Intent struct {
	ID               string    `json:"intent_id"`
	SourceChain      string    `json:"src_chain"`
	DestinationChain string    `json:"dst_chain"`
	Operation        Operation `json:"function_name"`
	TokenIn          string    `json:"token_in"`
	AmountIn         string    `json:"amount_in"`
	TokenOut         string    `json:"token_out"`
	AmountOut        string    `json:"amount_out"`
	Recipient        string    `json:"dst_chain_user"`
	Status           string    `json:"status"`
	CreatedAt        time.Time `json:"created_at"`
}

// Mode derives the domain mode by comparing the source and destination chain
// labels on this intent. This comparison is the only way domain mode may be
// obtained anywhere in the settler.
func (i Intent) Mode() DomainMode {
	if i.SourceChain == i.DestinationChain {
		return SingleDomain
	}
	return CrossDomain
}

// Validate rejects malformed intents at the ingestion boundary, before any
// ledger call is made on their behalf.
func (i Intent) Validate(supportedChains []string) error {
	if i.ID == "" {
		return &ParseError{Field: "intent_id", Value: "", Reason: "empty"}
	}

	switch i.Operation {
	case OpSwap, OpTransfer:
	default:
		return &ParseError{Field: "function_name", Value: string(i.Operation), Reason: "unknown operation"}
	}

	if !chainSupported(i.SourceChain, supportedChains) {
		return &ParseError{Field: "src_chain", Value: i.SourceChain, Reason: "unsupported chain"}
	}
	if !chainSupported(i.DestinationChain, supportedChains) {
		return &ParseError{Field: "dst_chain", Value: i.DestinationChain, Reason: "unsupported chain"}
	}

	if _, err := ParseAmount("amount_in", i.AmountIn); err != nil {
		return err
	}
	if _, err := ParseAmount("amount_out", i.AmountOut); err != nil {
		return err
	}

	if i.Recipient == "" {
		return &ParseError{Field: "dst_chain_user", Value: "", Reason: "empty"}
	}

	return nil
}

// ParseAmount parses an untrusted decimal amount string into a non-negative
// integer token amount.
func ParseAmount(field, value string) (*big.Int, error) {
	amount, ok := new(big.Int).SetString(strings.TrimSpace(value), 10)
	if !ok {
		return nil, &ParseError{Field: field, Value: value, Reason: "not a decimal integer"}
	}
	if amount.Sign() < 0 {
		return nil, &ParseError{Field: field, Value: value, Reason: "negative"}
	}
	return amount, nil
}

func chainSupported(chain string, supported []string) bool {
	for _, c := range supported {
		if strings.EqualFold(c, chain) {
			return true
		}
	}
	return false
}

// SettlementReport sums up one finished orchestration run.
type SettlementReport struct {
	IntentID    string
	Mode        DomainMode
	Signature   string
	Delta       *big.Int // reference-asset delta, single domain only
	Reconciled  bool
	Diagnostics []string
}

// Won reports whether the run ended with a non-negative reference-asset
// delta. Only meaningful when Reconciled is set.
func (r SettlementReport) Won() bool {
	return r.Delta != nil && r.Delta.Sign() >= 0
}

func (r SettlementReport) String() string {
	if !r.Reconciled {
		return fmt.Sprintf("intent %s settled (%s domain, no reconciliation)", r.IntentID, r.Mode)
	}
	outcome := "won"
	if !r.Won() {
		outcome = "lost"
	}
	return fmt.Sprintf("intent %s settled: %s %s", r.IntentID, outcome, new(big.Int).Abs(r.Delta).String())
}

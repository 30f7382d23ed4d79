package router

import (
	"encoding/json"
	"fmt"
)

// SwapMode selects which side of a conversion the amount denotes.
type SwapMode string

const (
	// SwapModeExactIn fixes the input quantity; the output is whatever the
	// route yields.
	SwapModeExactIn SwapMode = "ExactIn"
	// SwapModeExactOut fixes the required output quantity; the route
	// computes the input.
	SwapModeExactOut SwapMode = "ExactOut"
)

// Memo is the structured record describing one conversion leg.
type Memo struct {
	UserAccount string `json:"user_account"`
	TokenIn     string `json:"token_in"`
	TokenOut    string `json:"token_out"`
	Amount      uint64 `json:"amount"`
	SlippageBps uint64 `json:"slippage_bps"`
}

// MemoFromJSON parses and validates a memo record.
func MemoFromJSON(raw string) (Memo, error) {
	var memo Memo
	if err := json.Unmarshal([]byte(raw), &memo); err != nil {
		return Memo{}, fmt.Errorf("invalid memo: %w", err)
	}
	if memo.UserAccount == "" || memo.TokenIn == "" || memo.TokenOut == "" {
		return Memo{}, fmt.Errorf("memo missing account or mint fields")
	}
	return memo, nil
}

// QuoteConfig carries the route-selection parameters for a quote request.
type QuoteConfig struct {
	SlippageBps      uint64
	SwapMode         SwapMode
	OnlyDirectRoutes bool
}

// Quote is the router's answer for one conversion. The raw response body is
// retained because the swap endpoint wants it echoed back verbatim.
type Quote struct {
	InputMint  string `json:"inputMint"`
	InAmount   string `json:"inAmount"`
	OutputMint string `json:"outputMint"`
	OutAmount  string `json:"outAmount"`
	SwapMode   string `json:"swapMode"`

	raw json.RawMessage
}

// swapRequest is the body of the router's swap endpoint.
type swapRequest struct {
	QuoteResponse    json.RawMessage `json:"quoteResponse"`
	UserPublicKey    string          `json:"userPublicKey"`
	WrapAndUnwrapSol bool            `json:"wrapAndUnwrapSol"`
}

// swapResponse is the router's answer to a swap request: a serialized,
// unsigned transaction for the user to sign and submit.
type swapResponse struct {
	SwapTransaction      string `json:"swapTransaction"`
	LastValidBlockHeight uint64 `json:"lastValidBlockHeight"`
}

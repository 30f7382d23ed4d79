package models

import "fmt"

// ConfigError reports a missing or malformed configuration value. It is
// fatal: the service refuses to start on one.
type ConfigError struct {
	Key    string
	Reason string
}

func (e *ConfigError) Error() string {
	return fmt.Sprintf("config %s: %s", e.Key, e.Reason)
}

// ParseError reports a malformed field on an intent. It aborts that single
// intent before any ledger call.
type ParseError struct {
	Field  string
	Value  string
	Reason string
}

func (e *ParseError) Error() string {
	return fmt.Sprintf("parse %s=%q: %s", e.Field, e.Value, e.Reason)
}

// ProviderError reports a ledger or network failure on a read or simulate
// call.
type ProviderError struct {
	Op  string
	Err error
}

func (e *ProviderError) Error() string {
	return fmt.Sprintf("provider %s: %v", e.Op, e.Err)
}

func (e *ProviderError) Unwrap() error { return e.Err }

// QuoteUnavailableError reports that the router has no route for a
// conversion or is unreachable.
type QuoteUnavailableError struct {
	TokenIn  string
	TokenOut string
	Err      error
}

func (e *QuoteUnavailableError) Error() string {
	return fmt.Sprintf("no route %s -> %s: %v", e.TokenIn, e.TokenOut, e.Err)
}

func (e *QuoteUnavailableError) Unwrap() error { return e.Err }

// ConversionError reports a failed conversion leg. ManualRemediation flags
// that the solver may now hold a partially-converted position that a human
// has to reconcile.
type ConversionError struct {
	TokenIn           string
	TokenOut          string
	Err               error
	ManualRemediation bool
}

func (e *ConversionError) Error() string {
	msg := fmt.Sprintf("conversion %s -> %s failed: %v", e.TokenIn, e.TokenOut, e.Err)
	if e.ManualRemediation {
		msg += " (manual remediation may be required)"
	}
	return msg
}

func (e *ConversionError) Unwrap() error { return e.Err }

// EscrowCallError reports a rejection from the bridge-escrow program,
// including duplicate-settlement rejections, verbatim.
type EscrowCallError struct {
	IntentID string
	Code     string
	Err      error
}

func (e *EscrowCallError) Error() string {
	if e.Code != "" {
		return fmt.Sprintf("escrow call for intent %s rejected with %s: %v", e.IntentID, e.Code, e.Err)
	}
	return fmt.Sprintf("escrow call for intent %s failed: %v", e.IntentID, e.Err)
}

func (e *EscrowCallError) Unwrap() error { return e.Err }

// DuplicateSettlementCode is the program error the escrow returns when an
// intent ID has already been settled.
const DuplicateSettlementCode = "IntentAlreadySettled"

// IsDuplicateSettlement reports whether an escrow rejection was caused by
// the program's at-most-once guard.
func IsDuplicateSettlement(e *EscrowCallError) bool {
	return e != nil && e.Code == DuplicateSettlementCode
}

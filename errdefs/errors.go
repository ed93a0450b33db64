// Package errdefs holds the error taxonomy shared by every trailproof package.
package errdefs

import (
	"errors"
	"fmt"
)

// Kind is a stable category for programmatic error handling.
//
// Callers should branch on Kind/RuleID rather than matching error strings.
// Use errors.As to extract *Error for structured handling.
type Kind string

const (
	// KindDecode covers malformed hex, CIDs, JSON documents and ledger binary records.
	KindDecode Kind = "Decode"
	// KindCrypto covers key/nonce length violations and authentication failures.
	KindCrypto Kind = "Crypto"
	// KindNotFound reports a hash or record absent on the ledger.
	KindNotFound Kind = "NotFound"
	// KindSignature reports a stored signature that does not verify.
	KindSignature Kind = "Signature"
	// KindChainOfTrust reports a step creator that differs from the declared recipient.
	KindChainOfTrust Kind = "ChainOfTrust"
	// KindChronology reports steps anchored out of ledger-time order.
	KindChronology Kind = "Chronology"
	// KindNetwork covers RPC and content-storage transport failures.
	KindNetwork Kind = "Network"
	// KindValidation covers caller input rejected before any query is issued.
	KindValidation Kind = "Validation"
	KindInternal   Kind = "Internal"
)

// Error is the structured error type.
//
// RuleID is a stable identifier (e.g. TP-DEC-001) naming the violated rule.
// Message is intended for humans; do not match on it.
type Error struct {
	Kind    Kind
	RuleID  string
	Message string
	Cause   error
}

func (e *Error) Error() string {
	if e == nil {
		return "<nil>"
	}
	if e.Cause != nil {
		return e.Message + ": " + e.Cause.Error()
	}
	return e.Message
}

func (e *Error) Unwrap() error {
	if e == nil {
		return nil
	}
	return e.Cause
}

// New returns a structured error without a cause.
func New(kind Kind, ruleID, msg string) error {
	return &Error{Kind: kind, RuleID: ruleID, Message: msg}
}

// Newf is New with a formatted message.
func Newf(kind Kind, ruleID, format string, args ...any) error {
	return &Error{Kind: kind, RuleID: ruleID, Message: fmt.Sprintf(format, args...)}
}

// Wrap returns a structured error carrying cause. A nil cause yields New.
func Wrap(kind Kind, ruleID, msg string, cause error) error {
	if cause == nil {
		return New(kind, ruleID, msg)
	}
	return &Error{Kind: kind, RuleID: ruleID, Message: msg, Cause: cause}
}

// IsKind reports whether err is (or wraps) a *Error with the given Kind.
func IsKind(err error, kind Kind) bool {
	var e *Error
	if !errors.As(err, &e) {
		return false
	}
	return e.Kind == kind
}

// KindOf returns the Kind of the outermost structured error, or "" if none.
func KindOf(err error) Kind {
	var e *Error
	if !errors.As(err, &e) {
		return ""
	}
	return e.Kind
}

// RuleID returns the stable RuleID for a structured error, or "" if unknown.
func RuleID(err error) string {
	var e *Error
	if !errors.As(err, &e) {
		return ""
	}
	return e.RuleID
}

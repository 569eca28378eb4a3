package slot

import "errors"

// Kind is a stable category for programmatic error handling.
//
// Callers should branch on Kind/RuleID rather than matching error strings.
// Use errors.As to extract *Error for structured handling.
type Kind string

const (
	// KindIntegrityMismatch: a declared target does not match its own
	// derivation, or the slot at that address is not owned by the program.
	KindIntegrityMismatch Kind = "IntegrityMismatch"
	// KindInsufficientFunding: the payer cannot cover creation or top-up.
	KindInsufficientFunding Kind = "InsufficientFunding"
	// KindAlreadyClaimed: a write-once slot already exists.
	KindAlreadyClaimed Kind = "AlreadyClaimed"
	// KindDerivationExhausted: no bump yields an off-curve address.
	KindDerivationExhausted Kind = "DerivationExhausted"
	// KindTransportFailure: the submission path failed before the
	// operation reached the application side.
	KindTransportFailure Kind = "TransportFailure"
	KindMalformed        Kind = "Malformed"
	KindUnauthorized     Kind = "Unauthorized"
	KindInternal         Kind = "Internal"
)

// Error is the structured error returned by slot operations.
//
// RuleID is a stable identifier (e.g. SLOT-INT-001) naming the violated
// rule. Message is intended for humans; do not match on it.
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

func NewError(kind Kind, ruleID, msg string) error {
	return &Error{Kind: kind, RuleID: ruleID, Message: msg}
}

func WrapError(kind Kind, ruleID, msg string, cause error) error {
	if cause == nil {
		return NewError(kind, ruleID, msg)
	}
	return &Error{Kind: kind, RuleID: ruleID, Message: msg, Cause: cause}
}

// IsKind reports whether err is (or wraps) a *Error with the given Kind.
func IsKind(err error, kind Kind) bool {
	return KindOf(err) == kind
}

// KindOf returns the Kind of a structured error, or "" for other errors.
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

package domain

import (
	"errors"
	"fmt"
)

// ErrorKind classifies trade failures
type ErrorKind string

const (
	KindInvalidRequest           ErrorKind = "InvalidRequest"
	KindInvalidQuantity          ErrorKind = "InvalidQuantity"
	KindUnknownAsset             ErrorKind = "UnknownAsset"
	KindInsufficientHoldings     ErrorKind = "InsufficientHoldings"
	KindConcurrentUpdateConflict ErrorKind = "ConcurrentUpdateConflict"
	KindStoreUnavailable         ErrorKind = "StoreUnavailable"
	KindInvariantViolation       ErrorKind = "InvariantViolation"
)

// Sentinels for errors.Is matching on kind
var (
	ErrInvalidRequest           = &TradeError{Kind: KindInvalidRequest}
	ErrInvalidQuantity          = &TradeError{Kind: KindInvalidQuantity}
	ErrUnknownAsset             = &TradeError{Kind: KindUnknownAsset}
	ErrInsufficientHoldings     = &TradeError{Kind: KindInsufficientHoldings}
	ErrConcurrentUpdateConflict = &TradeError{Kind: KindConcurrentUpdateConflict}
	ErrStoreUnavailable         = &TradeError{Kind: KindStoreUnavailable}
	ErrInvariantViolation       = &TradeError{Kind: KindInvariantViolation}
)

// TradeError is a classified trade failure with a user facing message
type TradeError struct {
	Kind    ErrorKind
	Message string
	Err     error // Underlying cause, not shown to users
}

func (e *TradeError) Error() string {
	if e.Message == "" {
		return string(e.Kind)
	}
	return e.Message
}

func (e *TradeError) Unwrap() error {
	return e.Err
}

// Is matches any TradeError of the same kind
func (e *TradeError) Is(target error) bool {
	t, ok := target.(*TradeError)
	return ok && t.Kind == e.Kind
}

// NewTradeError builds a TradeError with a formatted message
func NewTradeError(kind ErrorKind, format string, args ...interface{}) *TradeError {
	return &TradeError{Kind: kind, Message: fmt.Sprintf(format, args...)}
}

// StoreUnavailable wraps an infrastructure failure
func StoreUnavailable(err error) *TradeError {
	return &TradeError{
		Kind:    KindStoreUnavailable,
		Message: "Ledger store is currently unavailable. Please try again later.",
		Err:     err,
	}
}

// KindOf extracts the kind of a TradeError anywhere in err's chain.
// Errors outside the taxonomy report KindStoreUnavailable.
func KindOf(err error) ErrorKind {
	var te *TradeError
	if errors.As(err, &te) {
		return te.Kind
	}
	return KindStoreUnavailable
}

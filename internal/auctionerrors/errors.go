package auctionerrors

import "errors"

// Kind classifies a failure so callers can react without string matching.
type Kind string

const (
	KindValidation  Kind = "validation"
	KindState       Kind = "state"
	KindConflict    Kind = "conflict"
	KindResource    Kind = "resource"
	KindConcurrency Kind = "concurrency"
	KindRateLimit   Kind = "rate_limit"
	KindInternal    Kind = "internal"
)

// Error is a sentinel error carrying its Kind.
type Error struct {
	kind Kind
	msg  string
}

func newError(kind Kind, msg string) *Error {
	return &Error{kind: kind, msg: msg}
}

func (e *Error) Error() string { return e.msg }

// Kind returns the failure class of the error.
func (e *Error) Kind() Kind { return e.kind }

// Repository-level errors
var (
	ErrAuctionNotFound        = newError(KindValidation, "auction not found")
	ErrNoBids                 = newError(KindValidation, "no bids found")
	ErrConcurrentModification = newError(KindConcurrency, "auction modified concurrently")
)

// business logic errors
var (
	ErrInvalidAuction     = newError(KindValidation, "invalid auction")
	ErrInvalidBid         = newError(KindValidation, "invalid bid")
	ErrInvalidAmount      = newError(KindValidation, "invalid amount")
	ErrAuctionNotActive   = newError(KindState, "auction not active")
	ErrAuctionStillActive = newError(KindState, "auction has not ended yet")
	ErrBidTooLow          = newError(KindConflict, "bid amount too low")
	ErrInsufficientFunds  = newError(KindResource, "insufficient besitos")
	ErrRateLimited        = newError(KindRateLimit, "bid placed too soon after previous bid")
	ErrLockUnavailable    = newError(KindConcurrency, "lock unavailable")
	ErrSettlementFailed   = newError(KindInternal, "auction settlement failed")
)

// ledger errors
var (
	ErrInvalidEntry      = newError(KindValidation, "invalid ledger entry")
	ErrReferenceConflict = newError(KindConflict, "reference already used by a different entry")
)

// KindOf returns the Kind of the first tagged error in err's chain.
// Untagged errors are reported as KindInternal.
func KindOf(err error) Kind {
	if err == nil {
		return ""
	}
	var tagged *Error
	if errors.As(err, &tagged) {
		return tagged.kind
	}
	return KindInternal
}

// IsRetryable reports whether the caller may retry the whole operation.
func IsRetryable(err error) bool {
	return KindOf(err) == KindConcurrency
}

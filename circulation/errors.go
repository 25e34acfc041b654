package circulation

import (
	"context"
	"errors"
)

// Kind classifies a failure for the calling layer. Only KindStoreUnavailable is retryable.
type Kind int

const (
	KindUnknown Kind = iota
	KindNotFound
	KindConflict
	KindUnavailable
	KindForbidden
	KindInvalidInput
	KindStoreUnavailable
)

func (k Kind) String() string {
	switch k {
	case KindNotFound:
		return "not_found"
	case KindConflict:
		return "conflict"
	case KindUnavailable:
		return "unavailable"
	case KindForbidden:
		return "forbidden"
	case KindInvalidInput:
		return "invalid_input"
	case KindStoreUnavailable:
		return "store_unavailable"
	default:
		return "unknown"
	}
}

// Failure reasons. Match them with errors.Is.
var (
	ErrBookNotFound        = errors.New("book not found")
	ErrBookUnavailable     = errors.New("no copies available")
	ErrBookInUse           = errors.New("book has copies on loan")
	ErrInvalidBook         = errors.New("book needs a title and at least one copy")
	ErrBorrowerNotFound    = errors.New("borrower not found")
	ErrBorrowerInactive    = errors.New("borrower is inactive")
	ErrDuplicateActiveLoan = errors.New("borrower already holds a copy of this book")
	ErrLoanNotFound        = errors.New("loan not found")
	ErrAlreadyReturned     = errors.New("loan already returned")
	ErrNoCompletedLoan     = errors.New("no completed loan for this book")
	ErrAlreadyReviewed     = errors.New("book already reviewed")
	ErrInvalidRating       = errors.New("rating is required")
	ErrReviewNotFound      = errors.New("review not found")
	ErrUserNotFound        = errors.New("user not found")
	ErrEmailTaken          = errors.New("email already in use")
	ErrMissingCredentials  = errors.New("email and password required")
	ErrInvalidCredentials  = errors.New("invalid email or password")
	ErrInvalidRole         = errors.New("invalid role")
	ErrLastAdmin           = errors.New("cannot demote the last admin")
	ErrSelfModification    = errors.New("cannot change your own account")
	ErrUnauthorized        = errors.New("not authorized")
	ErrStoreUnavailable    = errors.New("store unavailable")
)

// Error is the structured failure returned by every circulation operation.
type Error struct {
	Kind   Kind
	Reason error
	ID     string // offending entity id, if any
	Err    error  // underlying cause, if any
}

func (e *Error) Error() string {
	msg := e.Reason.Error()
	if e.ID != "" {
		msg += ": " + e.ID
	}
	if e.Err != nil {
		msg += ": " + e.Err.Error()
	}
	return msg
}

func (e *Error) Unwrap() []error {
	if e.Err != nil {
		return []error{e.Reason, e.Err}
	}
	return []error{e.Reason}
}

func NotFound(reason error, id string) error {
	return &Error{Kind: KindNotFound, Reason: reason, ID: id}
}

func Conflict(reason error, id string) error {
	return &Error{Kind: KindConflict, Reason: reason, ID: id}
}

func Unavailable(reason error, id string) error {
	return &Error{Kind: KindUnavailable, Reason: reason, ID: id}
}

func Forbidden(reason error, id string) error {
	return &Error{Kind: KindForbidden, Reason: reason, ID: id}
}

func InvalidInput(reason error, id string) error {
	return &Error{Kind: KindInvalidInput, Reason: reason, ID: id}
}

// StoreFailure marks err as a transient persistence failure. Errors that
// already carry a Kind are returned unchanged.
func StoreFailure(err error) error {
	if err == nil {
		return nil
	}
	var ce *Error
	if errors.As(err, &ce) {
		return err
	}
	return &Error{Kind: KindStoreUnavailable, Reason: ErrStoreUnavailable, Err: err}
}

// KindOf returns the Kind carried by err, or KindUnknown.
func KindOf(err error) Kind {
	var ce *Error
	if errors.As(err, &ce) {
		return ce.Kind
	}
	return KindUnknown
}

// IDOf returns the entity id carried by err.
func IDOf(err error) string {
	var ce *Error
	if errors.As(err, &ce) {
		return ce.ID
	}
	return ""
}

// IsRetryable reports whether the caller may retry the operation with backoff.
func IsRetryable(err error) bool {
	return KindOf(err) == KindStoreUnavailable
}

// storeErr surfaces a timed-out store call as StoreUnavailable.
func storeErr(err error) error {
	if err == nil {
		return nil
	}
	if KindOf(err) != KindUnknown {
		return err
	}
	if errors.Is(err, context.DeadlineExceeded) {
		return StoreFailure(err)
	}
	return err
}

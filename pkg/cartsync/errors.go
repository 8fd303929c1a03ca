package cartsync

import (
	"errors"
	"fmt"
)

// Kind classifies a failed store call.
type Kind int

const (
	// KindTransient covers network and server failures and timeouts. It is
	// also the kind of any error a store did not classify.
	KindTransient Kind = iota
	// KindUnauthorized means there is no usable identity; prompt a sign-in
	// instead of retrying.
	KindUnauthorized
	// KindNotFound means the product or cart line does not exist.
	KindNotFound
	// KindRejected means the store refused the change, e.g. not enough stock.
	KindRejected
)

var (
	ErrUnauthorized = errors.New("not authorized")
	ErrNotFound     = errors.New("not found")
	ErrTransient    = errors.New("temporarily unavailable")
	ErrRejected     = errors.New("rejected")

	ErrInvalidQuantity = errors.New("quantity must be positive")
	ErrEmptyProductRef = errors.New("product reference is empty")
	// ErrIdentityChanged is returned by an operation whose identity was
	// replaced before it could complete. The mirror was not touched.
	ErrIdentityChanged = errors.New("identity changed during cart operation")
)

func (k Kind) String() string {
	switch k {
	case KindUnauthorized:
		return "unauthorized"
	case KindNotFound:
		return "not_found"
	case KindRejected:
		return "rejected"
	}
	return "transient"
}

func (k Kind) sentinel() error {
	switch k {
	case KindUnauthorized:
		return ErrUnauthorized
	case KindNotFound:
		return ErrNotFound
	case KindRejected:
		return ErrRejected
	}
	return ErrTransient
}

// Error is returned by every failed Controller operation.
type Error struct {
	Op   string
	Kind Kind
	Err  error
}

func (e *Error) Error() string {
	return fmt.Sprintf("cartsync %s: %s: %v", e.Op, e.Kind, e.Err)
}

func (e *Error) Unwrap() error {
	return e.Err
}

// Is makes errors.Is(err, ErrNotFound) and friends match on Kind even when
// the store returned an unrelated error value.
func (e *Error) Is(target error) bool {
	return target == e.Kind.sentinel()
}

// KindOf classifies err. Unrecognised errors are transient.
func KindOf(err error) Kind {
	var ce *Error
	switch {
	case errors.As(err, &ce):
		return ce.Kind
	case errors.Is(err, ErrUnauthorized):
		return KindUnauthorized
	case errors.Is(err, ErrNotFound):
		return KindNotFound
	case errors.Is(err, ErrRejected):
		return KindRejected
	}
	return KindTransient
}

func opError(op string, err error) *Error {
	var ce *Error
	if errors.As(err, &ce) && ce.Op == op {
		return ce
	}
	return &Error{Op: op, Kind: KindOf(err), Err: err}
}

package cartsync

import "context"

// Identity is the principal whose cart is being shown. NoIdentity means
// nobody is signed in.
type Identity string

const NoIdentity Identity = ""

// UpsertMode selects how UpsertCartLine treats an existing row.
type UpsertMode int

const (
	// Increment adds the quantity to the existing row.
	Increment UpsertMode = iota
	// Replace overwrites the existing row's quantity.
	Replace
)

func (m UpsertMode) String() string {
	if m == Replace {
		return "replace"
	}
	return "increment"
}

// Store is the persisted cart. Implementations report failures by wrapping
// ErrUnauthorized, ErrNotFound, ErrRejected or ErrTransient; anything else is
// treated as transient.
type Store interface {
	FetchCartLines(ctx context.Context, id Identity) ([]Line, error)
	UpsertCartLine(ctx context.Context, id Identity, ref string, qty int, mode UpsertMode) (Line, error)
	// DeleteCartLine succeeds when the line is already gone.
	DeleteCartLine(ctx context.Context, id Identity, ref string) error
	DeleteAllCartLines(ctx context.Context, id Identity) error
}

type EventType int

const (
	SignedIn EventType = iota + 1
	SignedOut
	TokenRefreshed
)

func (t EventType) String() string {
	switch t {
	case SignedIn:
		return "signed-in"
	case SignedOut:
		return "signed-out"
	case TokenRefreshed:
		return "token-refreshed"
	}
	return "unknown"
}

type IdentityEvent struct {
	Type     EventType
	Identity Identity // NoIdentity for SignedOut
}

// IdentitySource is the authentication session the cart follows.
type IdentitySource interface {
	CurrentIdentity(ctx context.Context) (Identity, bool)
	// Subscribe registers fn for identity events and returns a func that
	// removes it.
	Subscribe(fn func(IdentityEvent)) (unsubscribe func())
}

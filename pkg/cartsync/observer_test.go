package cartsync

import (
	"context"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// identityTrace records which products were visible under which identity.
type identityTrace struct {
	mu   sync.Mutex
	ctrl *Controller
	seen map[Identity]map[string]bool
}

func traceIdentities(c *Controller) *identityTrace {
	tr := &identityTrace{ctrl: c, seen: make(map[Identity]map[string]bool)}
	c.OnChange(func(s Snapshot) {
		id := c.Identity()
		tr.mu.Lock()
		defer tr.mu.Unlock()
		if tr.seen[id] == nil {
			tr.seen[id] = make(map[string]bool)
		}
		for _, l := range s.Lines {
			tr.seen[id][l.ProductRef] = true
		}
	})
	return tr
}

func (tr *identityTrace) sawUnder(id Identity, ref string) bool {
	tr.mu.Lock()
	defer tr.mu.Unlock()
	return tr.seen[id][ref]
}

func TestObserver_AttachLoadsCurrentIdentity(t *testing.T) {
	store := newMemStore()
	store.seed(userA, "P1", 3)
	c, _ := newTestController(t, store, NoIdentity)
	src := newFakeSource(userA)

	o := NewObserver(c)
	require.NoError(t, o.Attach(context.Background(), src))
	t.Cleanup(o.Detach)

	assert.Equal(t, userA, c.Identity())
	assert.Equal(t, 3, c.Snapshot().Quantity("P1"))
	assert.ErrorIs(t, o.Attach(context.Background(), src), ErrAlreadyAttached)
}

func TestObserver_AttachWithoutIdentity(t *testing.T) {
	store := newMemStore()
	c, _ := newTestController(t, store, NoIdentity)

	o := NewObserver(c)
	require.NoError(t, o.Attach(context.Background(), newFakeSource(NoIdentity)))
	t.Cleanup(o.Detach)

	assert.Equal(t, NoIdentity, c.Identity())
	assert.Zero(t, store.fetchCount())
}

func TestObserver_NoCartLeaksAcrossIdentities(t *testing.T) {
	store := newMemStore()
	store.seed(userA, "P1", 3)
	store.seed(userB, "P2", 1)
	c, _ := newTestController(t, store, NoIdentity)
	tr := traceIdentities(c)
	src := newFakeSource(NoIdentity)

	o := NewObserver(c)
	require.NoError(t, o.Attach(context.Background(), src))
	t.Cleanup(o.Detach)

	src.emit(IdentityEvent{Type: SignedIn, Identity: userA})
	assert.Equal(t, 3, c.Snapshot().Quantity("P1"))

	fetches := store.fetchCount()
	src.emit(IdentityEvent{Type: SignedOut})
	assert.True(t, c.Snapshot().IsEmpty())
	assert.Equal(t, fetches, store.fetchCount(), "sign-out must not load")

	src.emit(IdentityEvent{Type: SignedIn, Identity: userB})
	snap := c.Snapshot()
	assert.Equal(t, 1, snap.Quantity("P2"))
	assert.Equal(t, 0, snap.Quantity("P1"))

	assert.True(t, tr.sawUnder(userA, "P1"))
	assert.False(t, tr.sawUnder(userB, "P1"))
	assert.False(t, tr.sawUnder(NoIdentity, "P1"))
}

func TestObserver_AccountSwitchReloads(t *testing.T) {
	store := newMemStore()
	store.seed(userA, "P1", 3)
	store.seed(userB, "P2", 1)
	c, _ := newTestController(t, store, NoIdentity)
	src := newFakeSource(userA)

	o := NewObserver(c)
	require.NoError(t, o.Attach(context.Background(), src))
	t.Cleanup(o.Detach)
	epoch := c.Epoch()

	src.emit(IdentityEvent{Type: SignedIn, Identity: userB})
	assert.Equal(t, userB, c.Identity())
	assert.Equal(t, epoch+1, c.Epoch())
	assert.Equal(t, 0, c.Snapshot().Quantity("P1"))
	assert.Equal(t, 1, c.Snapshot().Quantity("P2"))
}

func TestObserver_TokenRefresh(t *testing.T) {
	store := newMemStore()
	store.seed(userA, "P1", 1)
	store.seed(userB, "P3", 2)
	c, _ := newTestController(t, store, NoIdentity)
	src := newFakeSource(userA)

	o := NewObserver(c)
	require.NoError(t, o.Attach(context.Background(), src))
	t.Cleanup(o.Detach)

	epoch, fetches := c.Epoch(), store.fetchCount()
	src.emit(IdentityEvent{Type: TokenRefreshed, Identity: userA})
	assert.Equal(t, epoch, c.Epoch())
	assert.Equal(t, fetches, store.fetchCount())
	assert.Equal(t, 1, c.Snapshot().Quantity("P1"))

	src.emit(IdentityEvent{Type: TokenRefreshed, Identity: userB})
	assert.Equal(t, userB, c.Identity())
	assert.Equal(t, 2, c.Snapshot().Quantity("P3"))
}

func TestObserver_SignInWithNoIdentityIgnored(t *testing.T) {
	store := newMemStore()
	store.seed(userA, "P1", 1)
	c, _ := newTestController(t, store, NoIdentity)
	src := newFakeSource(userA)

	o := NewObserver(c)
	require.NoError(t, o.Attach(context.Background(), src))
	t.Cleanup(o.Detach)

	o.handle(IdentityEvent{Type: SignedIn})
	assert.Equal(t, userA, c.Identity())
}

func TestObserver_Detach(t *testing.T) {
	store := newMemStore()
	store.seed(userA, "P1", 1)
	c, _ := newTestController(t, store, NoIdentity)
	src := newFakeSource(userA)

	o := NewObserver(c)
	require.NoError(t, o.Attach(context.Background(), src))
	require.Equal(t, 1, src.subscribers())

	o.Detach()
	o.Detach()
	assert.Zero(t, src.subscribers())
	assert.Equal(t, NoIdentity, c.Identity())
	assert.True(t, c.Snapshot().IsEmpty())

	// reattaching after a detach is allowed
	require.NoError(t, o.Attach(context.Background(), src))
	assert.Equal(t, 1, c.Snapshot().Quantity("P1"))
	o.Detach()
}

package cartsync

import (
	"context"
	"errors"
	"math/rand"
	"sync"
	"testing"
	"time"

	"github.com/Baby-jesuset/FBGENERALHW-sj/pkg/logger"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const (
	userA Identity = "user-a"
	userB Identity = "user-b"
)

func TestController_AddUpdateRemoveScenario(t *testing.T) {
	store := newMemStore()
	c, rec := newTestController(t, store, userA)
	ctx := context.Background()

	require.NoError(t, c.AddItem(ctx, "P1", 2))
	snap := c.Snapshot()
	assert.Equal(t, 2, snap.Quantity("P1"))
	assert.Equal(t, 2, snap.TotalItems())
	assert.Equal(t, 70000.0, snap.TotalPrice())
	line, ok := snap.Find("P1")
	require.True(t, ok)
	assert.Equal(t, "Tororo Cement 50kg Bag", line.DisplayName)

	require.NoError(t, c.UpdateQuantity(ctx, "P1", 5))
	assert.Equal(t, 5, c.Snapshot().Quantity("P1"))
	assert.Equal(t, 1, c.Snapshot().Len())

	require.NoError(t, c.RemoveItem(ctx, "P1"))
	assert.True(t, c.Snapshot().IsEmpty())
	assert.Equal(t, 0, c.Snapshot().TotalItems())

	assert.Empty(t, rec.all())
}

func TestController_AddOneDefaultsToSingleUnit(t *testing.T) {
	store := newMemStore()
	c, _ := newTestController(t, store, userA)

	require.NoError(t, c.AddOne(context.Background(), "P2"))
	require.NoError(t, c.AddOne(context.Background(), "P2"))
	assert.Equal(t, 2, c.Snapshot().Quantity("P2"))
}

func TestController_InvalidInput(t *testing.T) {
	store := newMemStore()
	c, _ := newTestController(t, store, userA)
	ctx := context.Background()

	assert.ErrorIs(t, c.AddItem(ctx, "P1", 0), ErrInvalidQuantity)
	assert.ErrorIs(t, c.AddItem(ctx, "P1", -3), ErrInvalidQuantity)
	assert.ErrorIs(t, c.AddItem(ctx, "", 1), ErrEmptyProductRef)
	assert.ErrorIs(t, c.RemoveItem(ctx, ""), ErrEmptyProductRef)
	assert.Zero(t, store.mutationCount())
}

func TestController_TransientAddFailureRollsBack(t *testing.T) {
	store := newMemStore()
	store.upsertErr = errors.New("connection reset by peer")
	c, rec := newTestController(t, store, userA)

	var seen []Snapshot
	c.OnChange(func(s Snapshot) { seen = append(seen, s) })

	err := c.AddItem(context.Background(), "P1", 1)
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrTransient)
	assert.Equal(t, KindTransient, KindOf(err))

	assert.Equal(t, store.snapshot(userA), c.Snapshot())
	assert.True(t, c.Snapshot().IsEmpty())

	// optimistic increment, then the reload that undid it
	require.Len(t, seen, 2)
	assert.Equal(t, 1, seen[0].Quantity("P1"))
	assert.True(t, seen[1].IsEmpty())

	notices := rec.all()
	require.Len(t, notices, 1)
	assert.Equal(t, "add", notices[0].Op)
	assert.Equal(t, KindTransient, notices[0].Kind)
	assert.Equal(t, userA, notices[0].Identity)
}

func TestController_RejectedAddKeepsStoreQuantity(t *testing.T) {
	store := newMemStore()
	store.seed(userA, "P1", 3)
	c, _ := newTestController(t, store, userA)
	ctx := context.Background()
	require.NoError(t, c.Load(ctx))

	store.setErr(&store.upsertErr, errors.Join(ErrRejected, errors.New("insufficient stock")))

	err := c.AddItem(ctx, "P1", 10)
	assert.ErrorIs(t, err, ErrRejected)
	assert.Equal(t, 3, c.Snapshot().Quantity("P1"))
}

func TestController_AddUnknownProductIsHardFailure(t *testing.T) {
	store := newMemStore()
	c, rec := newTestController(t, store, userA)

	err := c.AddItem(context.Background(), "NOPE", 1)
	assert.ErrorIs(t, err, ErrNotFound)
	assert.True(t, c.Snapshot().IsEmpty())
	require.Len(t, rec.all(), 1)
	assert.Equal(t, KindNotFound, rec.all()[0].Kind)
}

func TestController_UnauthorizedAddNeverTouchesStore(t *testing.T) {
	store := newMemStore()
	c, rec := newTestController(t, store, NoIdentity)

	err := c.AddItem(context.Background(), "P1", 1)
	assert.ErrorIs(t, err, ErrUnauthorized)
	assert.Equal(t, KindUnauthorized, KindOf(err))

	assert.Zero(t, store.mutationCount())
	assert.Zero(t, store.fetchCount())
	assert.True(t, c.Snapshot().IsEmpty())
	require.Len(t, rec.all(), 1)
	assert.Equal(t, KindUnauthorized, rec.all()[0].Kind)
}

func TestController_UnauthorizedFromStoreIsDistinct(t *testing.T) {
	store := newMemStore()
	store.seed(userA, "P2", 1)
	c, _ := newTestController(t, store, userA)
	require.NoError(t, c.Load(context.Background()))

	store.setErr(&store.upsertErr, ErrUnauthorized)
	err := c.UpdateQuantity(context.Background(), "P2", 4)
	assert.ErrorIs(t, err, ErrUnauthorized)
	assert.NotErrorIs(t, err, ErrTransient)
	assert.Equal(t, 1, c.Snapshot().Quantity("P2"))
}

func TestController_UpdateToZeroEqualsRemove(t *testing.T) {
	ctx := context.Background()

	run := func(apply func(c *Controller) error) (Snapshot, Snapshot) {
		store := newMemStore()
		store.seed(userA, "P1", 2)
		store.seed(userA, "P2", 1)
		c, _ := newTestController(t, store, userA)
		require.NoError(t, c.Load(ctx))
		require.NoError(t, apply(c))
		return c.Snapshot(), store.snapshot(userA)
	}

	updMirror, updStore := run(func(c *Controller) error { return c.UpdateQuantity(ctx, "P1", 0) })
	remMirror, remStore := run(func(c *Controller) error { return c.RemoveItem(ctx, "P1") })

	assert.Equal(t, remMirror, updMirror)
	assert.Equal(t, remStore, updStore)
	assert.Equal(t, 0, updMirror.Quantity("P1"))
	assert.Equal(t, 1, updMirror.Quantity("P2"))
}

func TestController_MissingLineIsIdempotent(t *testing.T) {
	store := newMemStore()
	c, rec := newTestController(t, store, userA)
	ctx := context.Background()

	require.NoError(t, c.RemoveItem(ctx, "P1"))
	require.NoError(t, c.UpdateQuantity(ctx, "P1", 3))

	// the store never held P1, so the reload drops the optimistic line
	assert.True(t, c.Snapshot().IsEmpty())
	assert.Empty(t, rec.all())
}

func TestController_FailedRemoveReappears(t *testing.T) {
	store := newMemStore()
	store.seed(userA, "P3", 1)
	c, _ := newTestController(t, store, userA)
	ctx := context.Background()
	require.NoError(t, c.Load(ctx))

	store.setErr(&store.deleteErr, ErrTransient)
	err := c.RemoveItem(ctx, "P3")
	assert.ErrorIs(t, err, ErrTransient)
	assert.Equal(t, 1, c.Snapshot().Quantity("P3"))
}

func TestController_ClearCart(t *testing.T) {
	store := newMemStore()
	store.seed(userA, "P1", 2)
	store.seed(userA, "P3", 1)
	c, _ := newTestController(t, store, userA)
	ctx := context.Background()
	require.NoError(t, c.Load(ctx))

	require.NoError(t, c.ClearCart(ctx))
	assert.True(t, c.Snapshot().IsEmpty())
	assert.True(t, store.snapshot(userA).IsEmpty())
}

func TestController_ClearCartFailureRestoresExactSnapshot(t *testing.T) {
	store := newMemStore()
	store.seed(userA, "P1", 2)
	store.seed(userA, "P3", 1)
	c, rec := newTestController(t, store, userA)
	ctx := context.Background()
	require.NoError(t, c.Load(ctx))
	before := c.Snapshot()
	fetches := store.fetchCount()

	store.setErr(&store.deleteAllErr, ErrTransient)
	err := c.ClearCart(ctx)
	assert.ErrorIs(t, err, ErrTransient)

	assert.Equal(t, before, c.Snapshot())
	assert.Equal(t, fetches, store.fetchCount(), "clear must not reload")
	require.Len(t, rec.all(), 1)
	assert.Equal(t, "clear", rec.all()[0].Op)
}

func TestController_ReloadFailureFallsBack(t *testing.T) {
	ctx := context.Background()

	t.Run("persist succeeded keeps optimistic state", func(t *testing.T) {
		store := newMemStore()
		c, rec := newTestController(t, store, userA)
		store.setErr(&store.fetchErr, ErrTransient)

		require.NoError(t, c.AddItem(ctx, "P1", 2))
		assert.Equal(t, 2, c.Snapshot().Quantity("P1"))
		assert.Equal(t, 2, store.snapshot(userA).Quantity("P1"))
		require.Len(t, rec.all(), 1)
		assert.Equal(t, "load", rec.all()[0].Op)
	})

	t.Run("persist failed restores previous state", func(t *testing.T) {
		store := newMemStore()
		store.seed(userA, "P2", 1)
		c, _ := newTestController(t, store, userA)
		require.NoError(t, c.Load(ctx))
		before := c.Snapshot()

		store.setErr(&store.fetchErr, ErrTransient)
		store.setErr(&store.upsertErr, ErrTransient)

		assert.Error(t, c.UpdateQuantity(ctx, "P2", 9))
		assert.Equal(t, before, c.Snapshot())
	})
}

func TestController_LoadFailureEmptiesMirror(t *testing.T) {
	store := newMemStore()
	store.seed(userA, "P1", 1)
	c, rec := newTestController(t, store, userA)
	ctx := context.Background()
	require.NoError(t, c.Load(ctx))
	require.False(t, c.Snapshot().IsEmpty())

	store.setErr(&store.fetchErr, ErrTransient)
	err := c.Load(ctx)
	assert.ErrorIs(t, err, ErrTransient)
	assert.True(t, c.Snapshot().IsEmpty())
	assert.Len(t, rec.all(), 1)
}

func TestController_LoadWithoutIdentity(t *testing.T) {
	store := newMemStore()
	c, _ := newTestController(t, store, NoIdentity)

	assert.ErrorIs(t, c.Load(context.Background()), ErrUnauthorized)
	assert.Zero(t, store.fetchCount())
}

func TestController_StoreCallTimeout(t *testing.T) {
	store := newMemStore()
	store.upsertGate = make(chan struct{}) // never opened
	c := New(store, Options{Timeout: 20 * time.Millisecond, Logger: logger.Nop()})
	c.Transition(userA)

	start := time.Now()
	err := c.AddItem(context.Background(), "P1", 1)
	assert.ErrorIs(t, err, context.DeadlineExceeded)
	assert.Equal(t, KindTransient, KindOf(err))
	assert.Less(t, time.Since(start), time.Second)
	assert.True(t, c.Snapshot().IsEmpty())
}

func TestController_SerializesConcurrentAdds(t *testing.T) {
	store := newMemStore()
	c, _ := newTestController(t, store, userA)
	ctx := context.Background()

	const n = 25
	var wg sync.WaitGroup
	for i := 0; i < n; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			assert.NoError(t, c.AddOne(ctx, "P1"))
		}()
	}
	wg.Wait()

	assert.Equal(t, n, c.Snapshot().Quantity("P1"))
	assert.Equal(t, store.snapshot(userA), c.Snapshot())
}

func TestController_SucceedingSequencesMatchStore(t *testing.T) {
	refs := []string{"P1", "P2", "P3"}
	rng := rand.New(rand.NewSource(42))
	ctx := context.Background()

	for round := 0; round < 20; round++ {
		store := newMemStore()
		c, _ := newTestController(t, store, userA)

		for step := 0; step < 15; step++ {
			ref := refs[rng.Intn(len(refs))]
			switch rng.Intn(3) {
			case 0:
				require.NoError(t, c.AddItem(ctx, ref, 1+rng.Intn(4)))
			case 1:
				require.NoError(t, c.UpdateQuantity(ctx, ref, rng.Intn(6)))
			case 2:
				require.NoError(t, c.RemoveItem(ctx, ref))
			}
			require.Equal(t, store.snapshot(userA), c.Snapshot(), "round %d step %d", round, step)
		}
	}
}

func TestController_StaleLoadDiscardedAfterTransition(t *testing.T) {
	store := newMemStore()
	store.seed(userA, "P1", 3)
	store.seed(userB, "P2", 1)
	gate := make(chan struct{})
	store.fetchGate[userA] = gate

	c, _ := newTestController(t, store, userA)
	ctx := context.Background()

	done := make(chan error, 1)
	go func() { done <- c.Load(ctx) }()

	require.Eventually(t, func() bool { return store.fetchCount() == 1 }, time.Second, time.Millisecond)

	require.NoError(t, c.SwitchIdentity(ctx, userB))
	close(gate)

	assert.ErrorIs(t, <-done, ErrIdentityChanged)
	snap := c.Snapshot()
	assert.Equal(t, 0, snap.Quantity("P1"))
	assert.Equal(t, 1, snap.Quantity("P2"))
	assert.Equal(t, userB, c.Identity())
}

func TestController_QueuedOperationOnRetiredLane(t *testing.T) {
	store := newMemStore()
	gate := make(chan struct{})
	store.upsertGate = gate
	c, _ := newTestController(t, store, userA)
	ctx := context.Background()

	first := make(chan error, 1)
	go func() { first <- c.AddItem(ctx, "P1", 1) }()
	require.Eventually(t, func() bool { return c.Snapshot().Quantity("P1") == 1 }, time.Second, time.Millisecond)

	c.mu.Lock()
	laneA := c.lane
	c.mu.Unlock()

	second := make(chan error, 1)
	go func() { second <- c.AddItem(ctx, "P2", 1) }()
	require.Eventually(t, func() bool { return laneA.waiting.Load() == 1 }, time.Second, time.Millisecond)

	c.Transition(userB)
	assert.ErrorIs(t, <-second, ErrIdentityChanged)

	close(gate)
	assert.ErrorIs(t, <-first, ErrIdentityChanged)

	// only the first add reached the store, for its own identity
	assert.Equal(t, 1, store.snapshot(userA).Quantity("P1"))
	assert.Equal(t, 0, store.snapshot(userA).Quantity("P2"))
	assert.True(t, c.Snapshot().IsEmpty())
}

func TestController_TransitionBumpsEpoch(t *testing.T) {
	c, _ := newTestController(t, newMemStore(), NoIdentity)
	assert.Zero(t, c.Epoch())

	assert.True(t, c.Transition(userA))
	assert.False(t, c.Transition(userA))
	assert.True(t, c.Transition(NoIdentity))
	assert.Equal(t, uint64(2), c.Epoch())
}

func TestController_OnChangeUnsubscribe(t *testing.T) {
	store := newMemStore()
	c, _ := newTestController(t, store, userA)

	calls := 0
	unsubscribe := c.OnChange(func(Snapshot) { calls++ })
	require.NoError(t, c.AddOne(context.Background(), "P1"))
	assert.Equal(t, 2, calls)

	unsubscribe()
	unsubscribe()
	require.NoError(t, c.AddOne(context.Background(), "P1"))
	assert.Equal(t, 2, calls)
}

func TestController_SnapshotIsACopy(t *testing.T) {
	store := newMemStore()
	c, _ := newTestController(t, store, userA)
	require.NoError(t, c.AddItem(context.Background(), "P1", 1))

	snap := c.Snapshot()
	snap.Lines[0].Quantity = 99
	assert.Equal(t, 1, c.Snapshot().Quantity("P1"))
}

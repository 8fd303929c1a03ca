package cartsync

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"time"

	"github.com/Baby-jesuset/FBGENERALHW-sj/pkg/logger"
)

// DefaultTimeout bounds every store call unless Options.Timeout is set.
const DefaultTimeout = 15 * time.Second

// Notice is a failure worth showing to the user.
type Notice struct {
	Op       string
	Kind     Kind
	Identity Identity
	Err      error
}

type Notifier interface {
	Notify(Notice)
}

type NotifierFunc func(Notice)

func (f NotifierFunc) Notify(n Notice) { f(n) }

type Options struct {
	Timeout  time.Duration
	Notifier Notifier
	Logger   *logger.Logger
}

// Controller keeps a local mirror of one identity's persisted cart.
//
// Mutations update the mirror optimistically, persist, then replace the
// mirror with a fresh read of the store whatever the outcome. ClearCart is
// the exception: on failure it restores the previous mirror directly.
// Operations for an identity run one at a time on that identity's lane, and
// every identity change bumps the epoch so late responses for the previous
// identity are dropped.
type Controller struct {
	store    Store
	timeout  time.Duration
	notifier Notifier
	log      *logger.Logger

	mu        sync.Mutex
	identity  Identity
	epoch     uint64
	mirror    Snapshot
	lane      *lane
	listeners map[int]func(Snapshot)
	nextID    int
}

func New(store Store, opts Options) *Controller {
	if opts.Timeout <= 0 {
		opts.Timeout = DefaultTimeout
	}
	if opts.Logger == nil {
		opts.Logger = logger.WithContext(map[string]interface{}{"component": "cartsync"})
	}
	return &Controller{
		store:     store,
		timeout:   opts.Timeout,
		notifier:  opts.Notifier,
		log:       opts.Logger,
		lane:      newLane(0),
		listeners: make(map[int]func(Snapshot)),
	}
}

// lane admits one operation at a time for a single epoch. Retiring it
// releases every waiter with ErrIdentityChanged.
type lane struct {
	epoch   uint64
	slot    chan struct{}
	retired chan struct{}
	waiting atomic.Int32
}

func newLane(epoch uint64) *lane {
	return &lane{
		epoch:   epoch,
		slot:    make(chan struct{}, 1),
		retired: make(chan struct{}),
	}
}

func (l *lane) acquire(ctx context.Context) error {
	select {
	case <-l.retired:
		return ErrIdentityChanged
	default:
	}
	l.waiting.Add(1)
	defer l.waiting.Add(-1)
	select {
	case l.slot <- struct{}{}:
		return nil
	case <-l.retired:
		return ErrIdentityChanged
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (l *lane) release() { <-l.slot }

func (l *lane) retire() { close(l.retired) }

// operation is the in-flight state of one call on the lane.
type operation struct {
	name     string
	identity Identity
	epoch    uint64
	lane     *lane
	before   Snapshot
}

func (c *Controller) begin(ctx context.Context, name string) (*operation, error) {
	c.mu.Lock()
	id, epoch, ln := c.identity, c.epoch, c.lane
	c.mu.Unlock()

	if id == NoIdentity {
		err := &Error{Op: name, Kind: KindUnauthorized, Err: ErrUnauthorized}
		c.report(id, err)
		return nil, err
	}

	if n := ln.waiting.Load(); n > 0 {
		c.log.Debug("Cart operation queued", map[string]interface{}{
			"op":      name,
			"waiting": n,
		})
	}
	if err := ln.acquire(ctx); err != nil {
		if errors.Is(err, ErrIdentityChanged) {
			return nil, err
		}
		e := opError(name, err)
		c.report(id, e)
		return nil, e
	}

	c.mu.Lock()
	if c.epoch != epoch {
		c.mu.Unlock()
		ln.release()
		return nil, ErrIdentityChanged
	}
	op := &operation{
		name:     name,
		identity: id,
		epoch:    epoch,
		lane:     ln,
		before:   c.mirror.Clone(),
	}
	c.mu.Unlock()
	return op, nil
}

func (c *Controller) end(op *operation) {
	op.lane.release()
}

// apply replaces the mirror if op's epoch is still current.
func (c *Controller) apply(op *operation, next Snapshot) bool {
	c.mu.Lock()
	if c.epoch != op.epoch {
		c.mu.Unlock()
		c.log.Debug("Dropping stale cart result", map[string]interface{}{
			"op":       op.name,
			"identity": string(op.identity),
			"epoch":    op.epoch,
		})
		return false
	}
	c.mirror = next
	fns := c.listenersLocked()
	c.mu.Unlock()

	fire(fns, next)
	return true
}

func (c *Controller) call(ctx context.Context, fn func(context.Context) error) error {
	ctx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()
	return fn(ctx)
}

func (c *Controller) fetch(ctx context.Context, id Identity) (Snapshot, error) {
	var lines []Line
	err := c.call(ctx, func(ctx context.Context) error {
		var err error
		lines, err = c.store.FetchCartLines(ctx, id)
		return err
	})
	if err != nil {
		return Snapshot{}, err
	}
	return NewSnapshot(lines), nil
}

// settle reloads the mirror after a persist attempt. If the reload fails
// the mirror falls back to the optimistic state when the persist went
// through and to the pre-operation state when it did not.
func (c *Controller) settle(ctx context.Context, op *operation, optimistic Snapshot, persistErr error, notFoundOK bool) error {
	if persistErr != nil && notFoundOK && KindOf(persistErr) == KindNotFound {
		persistErr = nil
	}

	next, reloadErr := c.fetch(ctx, op.identity)
	if reloadErr != nil {
		if persistErr == nil {
			next = optimistic
		} else {
			next = op.before
		}
	}
	current := c.apply(op, next)
	if current && reloadErr != nil {
		c.report(op.identity, opError("load", reloadErr))
	}

	if persistErr != nil {
		e := opError(op.name, persistErr)
		if current {
			c.report(op.identity, e)
		}
		return e
	}
	if !current {
		return ErrIdentityChanged
	}
	return nil
}

// Load replaces the mirror with the store's cart for the current identity.
// On failure the mirror is emptied and the error returned.
func (c *Controller) Load(ctx context.Context) error {
	op, err := c.begin(ctx, "load")
	if err != nil {
		return err
	}
	defer c.end(op)

	snap, err := c.fetch(ctx, op.identity)
	if err != nil {
		e := opError("load", err)
		if c.apply(op, Snapshot{}) {
			c.report(op.identity, e)
		}
		return e
	}
	if !c.apply(op, snap) {
		return ErrIdentityChanged
	}
	return nil
}

// AddOne adds a single unit of ref.
func (c *Controller) AddOne(ctx context.Context, ref string) error {
	return c.AddItem(ctx, ref, 1)
}

// AddItem increments ref by qty, inserting a placeholder line when the cart
// does not hold it yet.
func (c *Controller) AddItem(ctx context.Context, ref string, qty int) error {
	if ref == "" {
		return ErrEmptyProductRef
	}
	if qty <= 0 {
		return ErrInvalidQuantity
	}

	op, err := c.begin(ctx, "add")
	if err != nil {
		return err
	}
	defer c.end(op)

	optimistic := op.before.withIncrement(ref, qty)
	if !c.apply(op, optimistic) {
		return ErrIdentityChanged
	}

	persistErr := c.call(ctx, func(ctx context.Context) error {
		_, err := c.store.UpsertCartLine(ctx, op.identity, ref, qty, Increment)
		return err
	})
	return c.settle(ctx, op, optimistic, persistErr, false)
}

// UpdateQuantity sets ref to qty. A qty of zero or less removes the line.
func (c *Controller) UpdateQuantity(ctx context.Context, ref string, qty int) error {
	if ref == "" {
		return ErrEmptyProductRef
	}
	if qty <= 0 {
		return c.RemoveItem(ctx, ref)
	}

	op, err := c.begin(ctx, "update")
	if err != nil {
		return err
	}
	defer c.end(op)

	optimistic := op.before.withQuantity(ref, qty)
	if !c.apply(op, optimistic) {
		return ErrIdentityChanged
	}

	persistErr := c.call(ctx, func(ctx context.Context) error {
		_, err := c.store.UpsertCartLine(ctx, op.identity, ref, qty, Replace)
		return err
	})
	return c.settle(ctx, op, optimistic, persistErr, true)
}

// RemoveItem deletes ref. Removing a line the store does not hold succeeds.
func (c *Controller) RemoveItem(ctx context.Context, ref string) error {
	if ref == "" {
		return ErrEmptyProductRef
	}

	op, err := c.begin(ctx, "remove")
	if err != nil {
		return err
	}
	defer c.end(op)

	optimistic := op.before.without(ref)
	if !c.apply(op, optimistic) {
		return ErrIdentityChanged
	}

	persistErr := c.call(ctx, func(ctx context.Context) error {
		return c.store.DeleteCartLine(ctx, op.identity, ref)
	})
	return c.settle(ctx, op, optimistic, persistErr, true)
}

// ClearCart empties the cart. It is all or nothing: if the bulk delete
// fails the previous mirror is put back as it was, without a reload.
func (c *Controller) ClearCart(ctx context.Context) error {
	op, err := c.begin(ctx, "clear")
	if err != nil {
		return err
	}
	defer c.end(op)

	if !c.apply(op, Snapshot{}) {
		return ErrIdentityChanged
	}

	persistErr := c.call(ctx, func(ctx context.Context) error {
		return c.store.DeleteAllCartLines(ctx, op.identity)
	})
	if persistErr != nil {
		e := opError("clear", persistErr)
		if c.apply(op, op.before) {
			c.report(op.identity, e)
		}
		return e
	}
	return nil
}

// Transition switches the controller to id, discarding the mirror and
// retiring the previous identity's lane. It does not load; it reports
// whether anything changed.
func (c *Controller) Transition(id Identity) bool {
	c.mu.Lock()
	if id == c.identity {
		c.mu.Unlock()
		return false
	}
	from := c.identity
	c.identity = id
	c.epoch++
	c.mirror = Snapshot{}
	retired := c.lane
	c.lane = newLane(c.epoch)
	epoch := c.epoch
	fns := c.listenersLocked()
	c.mu.Unlock()

	retired.retire()
	c.log.Info("Cart identity changed", map[string]interface{}{
		"from":  string(from),
		"to":    string(id),
		"epoch": epoch,
	})
	fire(fns, Snapshot{})
	return true
}

// SwitchIdentity is Transition followed by Load for a signed-in identity.
func (c *Controller) SwitchIdentity(ctx context.Context, id Identity) error {
	if !c.Transition(id) || id == NoIdentity {
		return nil
	}
	return c.Load(ctx)
}

// Snapshot returns a copy of the mirror.
func (c *Controller) Snapshot() Snapshot {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.mirror.Clone()
}

func (c *Controller) Identity() Identity {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.identity
}

func (c *Controller) Epoch() uint64 {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.epoch
}

// OnChange registers fn to run after every mirror replacement. fn runs on
// the goroutine that made the change and must not block.
func (c *Controller) OnChange(fn func(Snapshot)) (unsubscribe func()) {
	c.mu.Lock()
	id := c.nextID
	c.nextID++
	c.listeners[id] = fn
	c.mu.Unlock()

	var once sync.Once
	return func() {
		once.Do(func() {
			c.mu.Lock()
			delete(c.listeners, id)
			c.mu.Unlock()
		})
	}
}

func (c *Controller) listenersLocked() []func(Snapshot) {
	if len(c.listeners) == 0 {
		return nil
	}
	fns := make([]func(Snapshot), 0, len(c.listeners))
	for _, fn := range c.listeners {
		fns = append(fns, fn)
	}
	return fns
}

func fire(fns []func(Snapshot), snap Snapshot) {
	for _, fn := range fns {
		fn(snap.Clone())
	}
}

func (c *Controller) report(id Identity, err *Error) {
	c.log.Warn("Cart operation failed", map[string]interface{}{
		"op":       err.Op,
		"kind":     err.Kind.String(),
		"identity": string(id),
		"error":    err.Err.Error(),
	})
	if c.notifier != nil {
		c.notifier.Notify(Notice{Op: err.Op, Kind: err.Kind, Identity: id, Err: err})
	}
}

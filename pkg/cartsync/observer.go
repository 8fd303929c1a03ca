package cartsync

import (
	"context"
	"errors"
	"sync"
)

var ErrAlreadyAttached = errors.New("observer is already attached")

// Observer drives a Controller from an IdentitySource: sign-in and account
// switches discard the mirror and reload, sign-out discards it without a
// reload, and a token refresh for the active identity is ignored.
type Observer struct {
	ctrl *Controller

	mu          sync.Mutex
	ctx         context.Context
	cancel      context.CancelFunc
	unsubscribe func()

	// serialises reading the source with applying its events
	transition sync.Mutex
}

func NewObserver(ctrl *Controller) *Observer {
	return &Observer{ctrl: ctrl}
}

// Attach subscribes to src and moves the controller to src's current
// identity. ctx bounds every reload the observer triggers until Detach.
// The source must update its own state before emitting an event.
func (o *Observer) Attach(ctx context.Context, src IdentitySource) error {
	o.mu.Lock()
	if o.cancel != nil {
		o.mu.Unlock()
		return ErrAlreadyAttached
	}
	o.ctx, o.cancel = context.WithCancel(ctx)
	o.mu.Unlock()

	unsubscribe := src.Subscribe(o.handle)

	o.mu.Lock()
	o.unsubscribe = unsubscribe
	o.mu.Unlock()

	o.transition.Lock()
	id, ok := src.CurrentIdentity(ctx)
	if !ok {
		id = NoIdentity
	}
	changed := o.ctrl.Transition(id)
	o.transition.Unlock()

	if changed && id != NoIdentity {
		o.reload()
	}
	return nil
}

// Detach unsubscribes and drops the mirror. It is safe to call more than once.
func (o *Observer) Detach() {
	o.mu.Lock()
	unsubscribe, cancel := o.unsubscribe, o.cancel
	o.unsubscribe, o.cancel = nil, nil
	o.mu.Unlock()

	if unsubscribe != nil {
		unsubscribe()
	}
	if cancel != nil {
		cancel()
	}
	o.ctrl.Transition(NoIdentity)
}

func (o *Observer) handle(ev IdentityEvent) {
	var target Identity
	switch ev.Type {
	case SignedOut:
		target = NoIdentity
	case SignedIn, TokenRefreshed:
		if ev.Identity == NoIdentity {
			return
		}
		target = ev.Identity
	default:
		return
	}

	o.transition.Lock()
	changed := o.ctrl.Transition(target)
	o.transition.Unlock()

	if changed && target != NoIdentity {
		o.reload()
	}
}

// reload errors are already reported through the controller's notifier.
func (o *Observer) reload() {
	o.mu.Lock()
	ctx := o.ctx
	o.mu.Unlock()
	if ctx == nil {
		return
	}
	_ = o.ctrl.Load(ctx)
}

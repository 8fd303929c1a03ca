package cartsync

import (
	"context"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/Baby-jesuset/FBGENERALHW-sj/pkg/logger"
)

// memStore is a Store with per-call fault injection.
type memStore struct {
	mu      sync.Mutex
	catalog map[string]Line
	carts   map[Identity][]Line

	upsertErr    error
	deleteErr    error
	deleteAllErr error
	fetchErr     error

	// gates block the matching call until closed
	fetchGate  map[Identity]chan struct{}
	upsertGate chan struct{}

	mutations int
	fetches   int
}

func newMemStore() *memStore {
	return &memStore{
		catalog: map[string]Line{
			"P1": {ProductRef: "P1", UnitPrice: 35000, DisplayName: "Tororo Cement 50kg Bag", ImageRef: "/cement.jpg"},
			"P2": {ProductRef: "P2", UnitPrice: 28000, DisplayName: "Iron Sheets 28 Gauge", ImageRef: "/sheet.jpg"},
			"P3": {ProductRef: "P3", UnitPrice: 550000, DisplayName: "Cordless Drill Set", ImageRef: "/drill.jpg"},
		},
		carts:     make(map[Identity][]Line),
		fetchGate: make(map[Identity]chan struct{}),
	}
}

func (s *memStore) seed(id Identity, ref string, qty int) {
	s.mu.Lock()
	defer s.mu.Unlock()
	l := s.catalog[ref]
	l.Quantity = qty
	s.carts[id] = append(s.carts[id], l)
}

func (s *memStore) snapshot(id Identity) Snapshot {
	s.mu.Lock()
	defer s.mu.Unlock()
	return NewSnapshot(append([]Line(nil), s.carts[id]...))
}

func (s *memStore) mutationCount() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.mutations
}

func (s *memStore) fetchCount() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.fetches
}

func (s *memStore) setErr(target *error, err error) {
	s.mu.Lock()
	*target = err
	s.mu.Unlock()
}

func wait(ctx context.Context, gate chan struct{}) error {
	if gate == nil {
		return nil
	}
	select {
	case <-gate:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (s *memStore) FetchCartLines(ctx context.Context, id Identity) ([]Line, error) {
	s.mu.Lock()
	gate := s.fetchGate[id]
	s.fetches++
	s.mu.Unlock()

	if err := wait(ctx, gate); err != nil {
		return nil, err
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if s.fetchErr != nil {
		return nil, s.fetchErr
	}
	return append([]Line(nil), s.carts[id]...), nil
}

func (s *memStore) UpsertCartLine(ctx context.Context, id Identity, ref string, qty int, mode UpsertMode) (Line, error) {
	s.mu.Lock()
	gate := s.upsertGate
	s.mu.Unlock()
	if err := wait(ctx, gate); err != nil {
		return Line{}, err
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if s.upsertErr != nil {
		return Line{}, s.upsertErr
	}
	product, ok := s.catalog[ref]
	if !ok {
		return Line{}, fmt.Errorf("product %s: %w", ref, ErrNotFound)
	}

	s.mutations++
	lines := s.carts[id]
	for i := range lines {
		if lines[i].ProductRef == ref {
			if mode == Increment {
				lines[i].Quantity += qty
			} else {
				lines[i].Quantity = qty
			}
			return lines[i], nil
		}
	}
	if mode == Replace {
		return Line{}, fmt.Errorf("cart line %s: %w", ref, ErrNotFound)
	}
	product.Quantity = qty
	s.carts[id] = append(lines, product)
	return product, nil
}

func (s *memStore) DeleteCartLine(ctx context.Context, id Identity, ref string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.deleteErr != nil {
		return s.deleteErr
	}
	s.mutations++
	lines := s.carts[id]
	for i := range lines {
		if lines[i].ProductRef == ref {
			s.carts[id] = append(lines[:i:i], lines[i+1:]...)
			return nil
		}
	}
	return fmt.Errorf("cart line %s: %w", ref, ErrNotFound)
}

func (s *memStore) DeleteAllCartLines(ctx context.Context, id Identity) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.deleteAllErr != nil {
		return s.deleteAllErr
	}
	s.mutations++
	delete(s.carts, id)
	return nil
}

type fakeSource struct {
	mu      sync.Mutex
	current Identity
	subs    map[int]func(IdentityEvent)
	next    int
}

func newFakeSource(current Identity) *fakeSource {
	return &fakeSource{current: current, subs: make(map[int]func(IdentityEvent))}
}

func (f *fakeSource) CurrentIdentity(ctx context.Context) (Identity, bool) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.current, f.current != NoIdentity
}

func (f *fakeSource) Subscribe(fn func(IdentityEvent)) func() {
	f.mu.Lock()
	id := f.next
	f.next++
	f.subs[id] = fn
	f.mu.Unlock()
	return func() {
		f.mu.Lock()
		delete(f.subs, id)
		f.mu.Unlock()
	}
}

func (f *fakeSource) subscribers() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.subs)
}

func (f *fakeSource) emit(ev IdentityEvent) {
	f.mu.Lock()
	if ev.Type == SignedOut {
		f.current = NoIdentity
	} else {
		f.current = ev.Identity
	}
	fns := make([]func(IdentityEvent), 0, len(f.subs))
	for _, fn := range f.subs {
		fns = append(fns, fn)
	}
	f.mu.Unlock()

	for _, fn := range fns {
		fn(ev)
	}
}

type noticeRecorder struct {
	mu      sync.Mutex
	notices []Notice
}

func (r *noticeRecorder) Notify(n Notice) {
	r.mu.Lock()
	r.notices = append(r.notices, n)
	r.mu.Unlock()
}

func (r *noticeRecorder) all() []Notice {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]Notice(nil), r.notices...)
}

func newTestController(t *testing.T, store Store, id Identity) (*Controller, *noticeRecorder) {
	t.Helper()
	rec := &noticeRecorder{}
	c := New(store, Options{
		Timeout:  time.Second,
		Notifier: rec,
		Logger:   logger.Nop(),
	})
	if id != NoIdentity {
		c.Transition(id)
	}
	return c, rec
}

package client

import (
	"context"
	"errors"
	"strconv"
	"sync"

	"github.com/Baby-jesuset/FBGENERALHW-sj/pkg/cartsync"
	"github.com/Baby-jesuset/FBGENERALHW-sj/pkg/logger"
)

var ErrNotSignedIn = errors.New("not signed in")

// Session holds the signed-in user and their tokens. It implements
// cartsync.IdentitySource: state is updated before subscribers are told.
type Session struct {
	client *Client

	mu     sync.RWMutex
	user   *User
	tokens *TokenPair

	subMu  sync.Mutex
	subs   map[int]func(cartsync.IdentityEvent)
	nextID int
}

func NewSession(c *Client) *Session {
	return &Session{
		client: c,
		subs:   make(map[int]func(cartsync.IdentityEvent)),
	}
}

// IdentityOf is the cart identity of u.
func IdentityOf(u *User) cartsync.Identity {
	if u == nil {
		return cartsync.NoIdentity
	}
	return cartsync.Identity(strconv.FormatUint(uint64(u.ID), 10))
}

func (s *Session) Register(ctx context.Context, req RegisterRequest) (*User, error) {
	user, tokens, err := s.client.Register(ctx, req)
	if err != nil {
		return nil, err
	}
	s.signIn(user, tokens)
	return user, nil
}

func (s *Session) Login(ctx context.Context, email, password string) (*User, error) {
	user, tokens, err := s.client.Login(ctx, email, password)
	if err != nil {
		return nil, err
	}
	s.signIn(user, tokens)
	return user, nil
}

func (s *Session) signIn(user *User, tokens *TokenPair) {
	s.mu.Lock()
	s.user, s.tokens = user, tokens
	s.mu.Unlock()

	logger.Debug("Session signed in", map[string]interface{}{
		"user_id": user.ID,
	})
	s.emit(cartsync.IdentityEvent{Type: cartsync.SignedIn, Identity: IdentityOf(user)})
}

// Refresh swaps the token pair. A rejected refresh token ends the session.
func (s *Session) Refresh(ctx context.Context) error {
	s.mu.RLock()
	tokens := s.tokens
	s.mu.RUnlock()
	if tokens == nil {
		return ErrNotSignedIn
	}

	user, fresh, err := s.client.Refresh(ctx, tokens.RefreshToken)
	if err != nil {
		if status := StatusOf(err); status == 401 || status == 403 {
			s.signOut()
		}
		return err
	}

	s.mu.Lock()
	s.user, s.tokens = user, fresh
	s.mu.Unlock()

	s.emit(cartsync.IdentityEvent{Type: cartsync.TokenRefreshed, Identity: IdentityOf(user)})
	return nil
}

// Logout revokes the access token on the server when it can and always
// ends the local session.
func (s *Session) Logout(ctx context.Context) error {
	token := s.AccessToken()
	if token == "" {
		return nil
	}
	err := s.client.Logout(ctx, token)
	s.signOut()
	return err
}

func (s *Session) signOut() {
	s.mu.Lock()
	s.user, s.tokens = nil, nil
	s.mu.Unlock()

	s.emit(cartsync.IdentityEvent{Type: cartsync.SignedOut, Identity: cartsync.NoIdentity})
}

func (s *Session) User() *User {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.user
}

func (s *Session) AccessToken() string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.tokens == nil {
		return ""
	}
	return s.tokens.AccessToken
}

func (s *Session) CurrentIdentity(context.Context) (cartsync.Identity, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.user == nil {
		return cartsync.NoIdentity, false
	}
	return IdentityOf(s.user), true
}

func (s *Session) Subscribe(fn func(cartsync.IdentityEvent)) func() {
	s.subMu.Lock()
	id := s.nextID
	s.nextID++
	s.subs[id] = fn
	s.subMu.Unlock()

	return func() {
		s.subMu.Lock()
		delete(s.subs, id)
		s.subMu.Unlock()
	}
}

func (s *Session) emit(ev cartsync.IdentityEvent) {
	s.subMu.Lock()
	fns := make([]func(cartsync.IdentityEvent), 0, len(s.subs))
	for _, fn := range s.subs {
		fns = append(fns, fn)
	}
	s.subMu.Unlock()

	for _, fn := range fns {
		fn(ev)
	}
}

// tokenFor returns the access token when id is the signed-in identity.
func (s *Session) tokenFor(id cartsync.Identity) (string, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.user == nil || s.tokens == nil || id == cartsync.NoIdentity || IdentityOf(s.user) != id {
		return "", false
	}
	return s.tokens.AccessToken, true
}

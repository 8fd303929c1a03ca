package service

import (
	"context"
	"sync"
	"testing"

	"github.com/Baby-jesuset/FBGENERALHW-sj/internal/app/model"
	"github.com/Baby-jesuset/FBGENERALHW-sj/internal/db"
	"github.com/Baby-jesuset/FBGENERALHW-sj/internal/events"
	"github.com/Baby-jesuset/FBGENERALHW-sj/internal/websocket"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"
)

func setupTestDB(t *testing.T) *gorm.DB {
	t.Helper()
	testDB, err := db.SetupTestDB()
	require.NoError(t, err)
	t.Cleanup(func() { db.CleanupTestDB(testDB) })
	return testDB
}

func createTestUser(t *testing.T, testDB *gorm.DB, email string) *model.User {
	t.Helper()
	user := &model.User{Email: email, PasswordHash: "hash", FullName: "Test User", Role: model.RoleUser}
	require.NoError(t, testDB.Create(user).Error)
	return user
}

func createTestProduct(t *testing.T, testDB *gorm.DB, name string, price float64, stock int) *model.Product {
	t.Helper()
	product := &model.Product{Name: name, Price: price, Stock: stock}
	require.NoError(t, testDB.Create(product).Error)
	return product
}

type notification struct {
	userID uint
	event  websocket.CartEvent
}

type recordingNotifier struct {
	mu     sync.Mutex
	events []notification
}

func (n *recordingNotifier) NotifyCart(userID uint, event websocket.CartEvent) {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.events = append(n.events, notification{userID: userID, event: event})
}

func (n *recordingNotifier) all() []notification {
	n.mu.Lock()
	defer n.mu.Unlock()
	return append([]notification(nil), n.events...)
}

type recordingPublisher struct {
	mu     sync.Mutex
	events []events.OrderEvent
	err    error
}

func (p *recordingPublisher) Publish(_ context.Context, ev events.OrderEvent) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.events = append(p.events, ev)
	return p.err
}

func (p *recordingPublisher) Close() error { return nil }

func (p *recordingPublisher) all() []events.OrderEvent {
	p.mu.Lock()
	defer p.mu.Unlock()
	return append([]events.OrderEvent(nil), p.events...)
}

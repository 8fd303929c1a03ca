package repository

import (
	"testing"

	"github.com/Baby-jesuset/FBGENERALHW-sj/internal/app/model"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"
)

func newOrder(userID uint, product *model.Product, qty int) *model.Order {
	subtotal := float64(qty) * product.Price
	return &model.Order{
		UserID:          userID,
		Status:          model.OrderStatusPending,
		Subtotal:        subtotal,
		ShippingFee:     15000,
		Tax:             subtotal * 0.18,
		Total:           subtotal*1.18 + 15000,
		ShippingAddress: "Plot 12, Kampala Road",
		City:            "Kampala",
		Phone:           "+256700000000",
		PaymentMethod:   model.PaymentMobileMoney,
		OrderItems: []model.OrderItem{{
			ProductID:   product.ID,
			ProductName: product.Name,
			UnitPrice:   product.Price,
			Quantity:    qty,
		}},
	}
}

func TestOrderRepository_CreateAndFind(t *testing.T) {
	testDB := setupTestDB(t)
	repo := NewOrderRepository(testDB)
	user := createUser(t, testDB, "buyer@example.com")
	product := createProduct(t, testDB, "Tororo Cement 50kg Bag", 35000, 100, nil)

	order := newOrder(user.ID, product, 2)
	require.NoError(t, repo.Create(order))
	assert.NotZero(t, order.ID)

	found, err := repo.FindByID(order.ID)
	require.NoError(t, err)
	require.Len(t, found.OrderItems, 1)
	assert.Equal(t, "Tororo Cement 50kg Bag", found.OrderItems[0].ProductName)
	require.NotNil(t, found.User)
	assert.Equal(t, user.Email, found.User.Email)

	_, err = repo.FindByID(9999)
	assert.ErrorIs(t, err, gorm.ErrRecordNotFound)
}

func TestOrderRepository_FindByUserIDNewestFirst(t *testing.T) {
	testDB := setupTestDB(t)
	repo := NewOrderRepository(testDB)
	user := createUser(t, testDB, "buyer@example.com")
	other := createUser(t, testDB, "other@example.com")
	product := createProduct(t, testDB, "Heavy Duty Tool Box", 320000, 10, nil)

	first := newOrder(user.ID, product, 1)
	require.NoError(t, repo.Create(first))
	second := newOrder(user.ID, product, 2)
	require.NoError(t, repo.Create(second))
	require.NoError(t, repo.Create(newOrder(other.ID, product, 1)))

	orders, err := repo.FindByUserID(user.ID)
	require.NoError(t, err)
	require.Len(t, orders, 2)
	assert.Equal(t, second.ID, orders[0].ID)
	assert.Equal(t, first.ID, orders[1].ID)
}

func TestOrderRepository_FindAllAndStatus(t *testing.T) {
	testDB := setupTestDB(t)
	repo := NewOrderRepository(testDB)
	user := createUser(t, testDB, "buyer@example.com")
	product := createProduct(t, testDB, "Socket Wrench Set (120pc)", 480000, 10, nil)

	a := newOrder(user.ID, product, 1)
	b := newOrder(user.ID, product, 1)
	require.NoError(t, repo.Create(a))
	require.NoError(t, repo.Create(b))

	require.NoError(t, repo.UpdateStatus(a.ID, model.OrderStatusProcessing))
	assert.ErrorIs(t, repo.UpdateStatus(404, model.OrderStatusProcessing), gorm.ErrRecordNotFound)

	processing := model.OrderStatusProcessing
	orders, total, err := repo.FindAll(OrderFilter{Status: &processing})
	require.NoError(t, err)
	assert.EqualValues(t, 1, total)
	require.Len(t, orders, 1)
	assert.Equal(t, a.ID, orders[0].ID)

	orders, total, err = repo.FindAll(OrderFilter{Limit: 1})
	require.NoError(t, err)
	assert.EqualValues(t, 2, total)
	assert.Len(t, orders, 1)

	count, err := repo.CountItemsByProduct(product.ID)
	require.NoError(t, err)
	assert.EqualValues(t, 2, count)
}

package repository

import (
	"github.com/Baby-jesuset/FBGENERALHW-sj/internal/app/model"
	"github.com/Baby-jesuset/FBGENERALHW-sj/pkg/logger"
	"gorm.io/gorm"
)

type OrderFilter struct {
	Status *model.OrderStatus
	Limit  int
	Offset int
}

type OrderRepository interface {
	Create(order *model.Order) error
	FindByID(id uint) (*model.Order, error)
	FindByUserID(userID uint) ([]model.Order, error)
	// FindAll lists every order newest first with its customer, for admins.
	FindAll(filter OrderFilter) ([]model.Order, int64, error)
	UpdateStatus(id uint, status model.OrderStatus) error
	CountItemsByProduct(productID string) (int64, error)
}

type orderRepository struct {
	db *gorm.DB
}

func NewOrderRepository(db *gorm.DB) OrderRepository {
	return &orderRepository{db: db}
}

func (r *orderRepository) withItems() *gorm.DB {
	return r.db.Preload("OrderItems", func(db *gorm.DB) *gorm.DB {
		return db.Order("order_items.id ASC")
	})
}

func (r *orderRepository) Create(order *model.Order) error {
	logger.Debug("Creating order in database", map[string]interface{}{
		"user_id": order.UserID,
		"total":   order.Total,
		"items":   len(order.OrderItems),
	})

	if err := r.db.Omit("User").Create(order).Error; err != nil {
		logger.Error("Failed to create order in database", err, map[string]interface{}{
			"user_id": order.UserID,
		})
		return err
	}
	return nil
}

func (r *orderRepository) FindByID(id uint) (*model.Order, error) {
	var order model.Order
	if err := r.withItems().Preload("User").First(&order, id).Error; err != nil {
		return nil, err
	}
	return &order, nil
}

func (r *orderRepository) FindByUserID(userID uint) ([]model.Order, error) {
	var orders []model.Order
	err := r.withItems().
		Where("user_id = ?", userID).
		Order("created_at DESC").
		Order("id DESC").
		Find(&orders).Error
	if err != nil {
		logger.Error("Failed to find orders by user ID", err, map[string]interface{}{
			"user_id": userID,
		})
		return nil, err
	}
	return orders, nil
}

func (r *orderRepository) FindAll(filter OrderFilter) ([]model.Order, int64, error) {
	query := r.db.Model(&model.Order{})
	if filter.Status != nil {
		query = query.Where("status = ?", *filter.Status)
	}

	var total int64
	if err := query.Session(&gorm.Session{}).Count(&total).Error; err != nil {
		return nil, 0, err
	}

	if filter.Limit > 0 {
		query = query.Limit(filter.Limit)
	}
	if filter.Offset > 0 {
		query = query.Offset(filter.Offset)
	}

	var orders []model.Order
	err := query.
		Preload("User").
		Preload("OrderItems").
		Order("created_at DESC").
		Order("id DESC").
		Find(&orders).Error
	if err != nil {
		logger.Error("Failed to list orders", err)
		return nil, 0, err
	}
	return orders, total, nil
}

func (r *orderRepository) UpdateStatus(id uint, status model.OrderStatus) error {
	logger.Debug("Updating order status in database", map[string]interface{}{
		"order_id": id,
		"status":   status,
	})

	result := r.db.Model(&model.Order{}).Where("id = ?", id).Update("status", status)
	if result.Error != nil {
		logger.Error("Failed to update order status in database", result.Error, map[string]interface{}{
			"order_id": id,
		})
		return result.Error
	}
	if result.RowsAffected == 0 {
		return gorm.ErrRecordNotFound
	}
	return nil
}

func (r *orderRepository) CountItemsByProduct(productID string) (int64, error) {
	var count int64
	err := r.db.Model(&model.OrderItem{}).Where("product_id = ?", productID).Count(&count).Error
	return count, err
}

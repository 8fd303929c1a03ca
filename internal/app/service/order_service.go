package service

import (
	"context"
	"errors"
	"math"
	"strings"

	"github.com/Baby-jesuset/FBGENERALHW-sj/config"
	"github.com/Baby-jesuset/FBGENERALHW-sj/internal/app/model"
	"github.com/Baby-jesuset/FBGENERALHW-sj/internal/app/repository"
	"github.com/Baby-jesuset/FBGENERALHW-sj/internal/events"
	"github.com/Baby-jesuset/FBGENERALHW-sj/internal/websocket"
	"github.com/Baby-jesuset/FBGENERALHW-sj/pkg/logger"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

var (
	ErrOrderNotFound           = errors.New("order not found")
	ErrEmptyCart               = errors.New("cart is empty")
	ErrInvalidOrderInput       = errors.New("invalid order details")
	ErrInvalidOrderStatus      = errors.New("invalid order status")
	ErrInvalidStatusTransition = errors.New("order status transition not allowed")
)

type PlaceOrderInput struct {
	ShippingAddress string
	City            string
	Phone           string
	PaymentMethod   model.PaymentMethod
	Notes           string
}

func (in *PlaceOrderInput) normalize() error {
	in.ShippingAddress = strings.TrimSpace(in.ShippingAddress)
	in.City = strings.TrimSpace(in.City)
	in.Phone = strings.TrimSpace(in.Phone)
	if in.PaymentMethod == "" {
		in.PaymentMethod = model.PaymentCashOnDelivery
	}
	if in.ShippingAddress == "" || in.City == "" || in.Phone == "" || !in.PaymentMethod.Valid() {
		return ErrInvalidOrderInput
	}
	return nil
}

type OrderService interface {
	// PlaceOrder turns the user's cart into an order in one transaction:
	// stock is checked and decremented and the cart is emptied.
	PlaceOrder(ctx context.Context, userID uint, input PlaceOrderInput) (*model.Order, error)
	GetUserOrders(userID uint) ([]model.Order, error)
	GetOrderByID(userID, orderID uint) (*model.Order, error)
	ListOrders(filter repository.OrderFilter) ([]model.Order, int64, error)
	GetOrder(orderID uint) (*model.Order, error)
	// UpdateOrderStatus applies an admin status change. Cancelling puts the
	// items back in stock.
	UpdateOrderStatus(ctx context.Context, orderID uint, status model.OrderStatus) (*model.Order, error)
}

type orderService struct {
	orderRepo repository.OrderRepository
	carts     CartService
	publisher events.Publisher
	pricing   config.CheckoutConfig
	db        *gorm.DB
}

func NewOrderService(
	orderRepo repository.OrderRepository,
	carts CartService,
	publisher events.Publisher,
	pricing config.CheckoutConfig,
	db *gorm.DB,
) OrderService {
	if publisher == nil {
		publisher = events.NoopPublisher{}
	}
	return &orderService{
		orderRepo: orderRepo,
		carts:     carts,
		publisher: publisher,
		pricing:   pricing,
		db:        db,
	}
}

// Totals computes shipping, tax and total for a subtotal. Amounts are whole
// shillings; an empty order ships free.
func Totals(subtotal float64, pricing config.CheckoutConfig) (shipping, tax, total float64) {
	if subtotal > 0 {
		shipping = pricing.ShippingFee
	}
	tax = math.Round(subtotal * pricing.TaxRate)
	total = subtotal + shipping + tax
	return shipping, tax, total
}

func (s *orderService) PlaceOrder(ctx context.Context, userID uint, input PlaceOrderInput) (*model.Order, error) {
	logger.Info("Placing order from cart", map[string]interface{}{
		"user_id":        userID,
		"payment_method": input.PaymentMethod,
	})

	if err := input.normalize(); err != nil {
		return nil, err
	}

	var order *model.Order
	err := s.db.Transaction(func(tx *gorm.DB) error {
		cartRepo := repository.NewCartRepository(tx)

		lines, err := cartRepo.FindByUserID(userID)
		if err != nil {
			return err
		}
		if len(lines) == 0 {
			logger.Warn("Cannot place order: cart is empty", map[string]interface{}{
				"user_id": userID,
			})
			return ErrEmptyCart
		}

		var (
			subtotal float64
			items    = make([]model.OrderItem, 0, len(lines))
		)
		for _, line := range lines {
			var product model.Product
			if err := tx.
				Clauses(clause.Locking{Strength: "UPDATE"}).
				First(&product, "id = ?", line.ProductID).Error; err != nil {
				if errors.Is(err, gorm.ErrRecordNotFound) {
					logger.Warn("Product not found during checkout", map[string]interface{}{
						"user_id":    userID,
						"product_id": line.ProductID,
					})
					return ErrProductNotFound
				}
				return err
			}

			if product.Stock < line.Quantity {
				logger.Warn("Checkout failed: insufficient stock", map[string]interface{}{
					"user_id":    userID,
					"product_id": product.ID,
					"requested":  line.Quantity,
					"available":  product.Stock,
				})
				return ErrInsufficientStock
			}

			if err := tx.Model(&model.Product{}).
				Where("id = ?", product.ID).
				UpdateColumn("stock", gorm.Expr("stock - ?", line.Quantity)).Error; err != nil {
				return err
			}

			subtotal += float64(line.Quantity) * product.Price
			items = append(items, model.OrderItem{
				ProductID:   product.ID,
				ProductName: product.Name,
				UnitPrice:   product.Price,
				ImageURL:    product.ImageURL,
				Quantity:    line.Quantity,
			})
		}

		shipping, tax, total := Totals(subtotal, s.pricing)
		order = &model.Order{
			UserID:          userID,
			Status:          model.OrderStatusPending,
			Subtotal:        subtotal,
			ShippingFee:     shipping,
			Tax:             tax,
			Total:           total,
			ShippingAddress: input.ShippingAddress,
			City:            input.City,
			Phone:           input.Phone,
			PaymentMethod:   input.PaymentMethod,
			Notes:           strings.TrimSpace(input.Notes),
			OrderItems:      items,
		}
		if err := repository.NewOrderRepository(tx).Create(order); err != nil {
			return err
		}

		return cartRepo.DeleteByUserID(userID)
	})
	if err != nil {
		if !isOrderRejection(err) {
			logger.Error("Failed to place order", err, map[string]interface{}{
				"user_id": userID,
			})
		}
		return nil, err
	}

	s.carts.Invalidate(ctx, userID, websocket.CartEvent{Type: websocket.CartCleared})
	s.publish(ctx, events.NewOrderEvent(events.OrderPlaced, order, ""))

	logger.Info("Order placed", map[string]interface{}{
		"user_id":  userID,
		"order_id": order.ID,
		"total":    order.Total,
	})
	return s.orderRepo.FindByID(order.ID)
}

func (s *orderService) GetUserOrders(userID uint) ([]model.Order, error) {
	orders, err := s.orderRepo.FindByUserID(userID)
	if err != nil {
		logger.Error("Failed to fetch user orders", err, map[string]interface{}{
			"user_id": userID,
		})
		return nil, err
	}
	return orders, nil
}

func (s *orderService) GetOrderByID(userID, orderID uint) (*model.Order, error) {
	order, err := s.GetOrder(orderID)
	if err != nil {
		return nil, err
	}

	if order.UserID != userID {
		logger.Warn("Order access denied: ownership mismatch", map[string]interface{}{
			"user_id":  userID,
			"order_id": orderID,
			"owner_id": order.UserID,
		})
		return nil, ErrOrderNotFound
	}
	return order, nil
}

func (s *orderService) ListOrders(filter repository.OrderFilter) ([]model.Order, int64, error) {
	if filter.Status != nil && !filter.Status.Valid() {
		return nil, 0, ErrInvalidOrderStatus
	}
	return s.orderRepo.FindAll(filter)
}

func (s *orderService) GetOrder(orderID uint) (*model.Order, error) {
	order, err := s.orderRepo.FindByID(orderID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrOrderNotFound
		}
		logger.Error("Failed to fetch order", err, map[string]interface{}{
			"order_id": orderID,
		})
		return nil, err
	}
	return order, nil
}

func (s *orderService) UpdateOrderStatus(ctx context.Context, orderID uint, status model.OrderStatus) (*model.Order, error) {
	logger.Info("Updating order status", map[string]interface{}{
		"order_id":   orderID,
		"new_status": status,
	})

	if !status.Valid() {
		return nil, ErrInvalidOrderStatus
	}

	var previous model.OrderStatus
	err := s.db.Transaction(func(tx *gorm.DB) error {
		var order model.Order
		if err := tx.Clauses(clause.Locking{Strength: "UPDATE"}).
			Preload("OrderItems").
			First(&order, orderID).Error; err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return ErrOrderNotFound
			}
			return err
		}

		previous = order.Status
		if previous == status {
			return nil
		}
		if !previous.CanTransitionTo(status) {
			logger.Warn("Rejected order status transition", map[string]interface{}{
				"order_id": orderID,
				"from":     previous,
				"to":       status,
			})
			return ErrInvalidStatusTransition
		}

		if status == model.OrderStatusCancelled {
			for _, item := range order.OrderItems {
				// restock even if the product was since deleted
				if err := tx.Unscoped().Model(&model.Product{}).
					Where("id = ?", item.ProductID).
					UpdateColumn("stock", gorm.Expr("stock + ?", item.Quantity)).Error; err != nil {
					return err
				}
			}
		}

		return repository.NewOrderRepository(tx).UpdateStatus(orderID, status)
	})
	if err != nil {
		return nil, err
	}

	order, err := s.GetOrder(orderID)
	if err != nil {
		return nil, err
	}
	if previous != status {
		s.publish(ctx, events.NewOrderEvent(events.OrderStatusChanged, order, previous))
	}

	logger.Info("Order status updated", map[string]interface{}{
		"order_id": orderID,
		"from":     previous,
		"to":       status,
	})
	return order, nil
}

// publish never fails the request; the order is already committed.
func (s *orderService) publish(ctx context.Context, event events.OrderEvent) {
	if err := s.publisher.Publish(ctx, event); err != nil {
		logger.Warn("Order event not delivered", map[string]interface{}{
			"type":     event.Type,
			"order_id": event.OrderID,
			"error":    err.Error(),
		})
	}
}

func isOrderRejection(err error) bool {
	return errors.Is(err, ErrEmptyCart) ||
		errors.Is(err, ErrInsufficientStock) ||
		errors.Is(err, ErrProductNotFound)
}

package model

import (
	"time"

	"gorm.io/gorm"
)

type OrderStatus string
type PaymentMethod string

const (
	OrderStatusPending    OrderStatus = "pending"
	OrderStatusProcessing OrderStatus = "processing"
	OrderStatusShipped    OrderStatus = "shipped"
	OrderStatusDelivered  OrderStatus = "delivered"
	OrderStatusCancelled  OrderStatus = "cancelled"

	PaymentMobileMoney    PaymentMethod = "mobile-money"
	PaymentCard           PaymentMethod = "card"
	PaymentCashOnDelivery PaymentMethod = "cash-on-delivery"
)

var orderTransitions = map[OrderStatus][]OrderStatus{
	OrderStatusPending:    {OrderStatusProcessing, OrderStatusCancelled},
	OrderStatusProcessing: {OrderStatusShipped, OrderStatusCancelled},
	OrderStatusShipped:    {OrderStatusDelivered},
}

func (s OrderStatus) Valid() bool {
	switch s {
	case OrderStatusPending, OrderStatusProcessing, OrderStatusShipped,
		OrderStatusDelivered, OrderStatusCancelled:
		return true
	}
	return false
}

// CanTransitionTo reports whether an admin may move an order from s to next.
// Delivered and cancelled are terminal.
func (s OrderStatus) CanTransitionTo(next OrderStatus) bool {
	for _, allowed := range orderTransitions[s] {
		if allowed == next {
			return true
		}
	}
	return false
}

func (m PaymentMethod) Valid() bool {
	switch m {
	case PaymentMobileMoney, PaymentCard, PaymentCashOnDelivery:
		return true
	}
	return false
}

type Order struct {
	ID              uint           `gorm:"primarykey" json:"id"`
	UserID          uint           `gorm:"not null;index" json:"user_id"`
	Status          OrderStatus    `gorm:"type:varchar(20);default:'pending';index" json:"status"`
	Subtotal        float64        `gorm:"not null" json:"subtotal"`
	ShippingFee     float64        `gorm:"not null" json:"shipping_fee"`
	Tax             float64        `gorm:"not null" json:"tax"`
	Total           float64        `gorm:"not null" json:"total"`
	ShippingAddress string         `gorm:"type:text;not null" json:"shipping_address"`
	City            string         `json:"city"`
	Phone           string         `gorm:"not null" json:"phone"`
	PaymentMethod   PaymentMethod  `gorm:"type:varchar(30);not null" json:"payment_method"`
	Notes           string         `gorm:"type:text" json:"notes,omitempty"`
	CreatedAt       time.Time      `json:"created_at"`
	UpdatedAt       time.Time      `json:"updated_at"`
	DeletedAt       gorm.DeletedAt `gorm:"index" json:"-"`

	User       *User       `gorm:"foreignKey:UserID" json:"user,omitempty"`
	OrderItems []OrderItem `gorm:"foreignKey:OrderID;constraint:OnDelete:CASCADE" json:"order_items,omitempty"`
}

func (Order) TableName() string {
	return "orders"
}

// OrderItem keeps a copy of the product as it was sold; later catalog edits
// do not change past orders.
type OrderItem struct {
	ID          uint      `gorm:"primarykey" json:"id"`
	OrderID     uint      `gorm:"not null;index" json:"order_id"`
	ProductID   string    `gorm:"type:varchar(36);not null;index" json:"product_id"`
	ProductName string    `gorm:"not null" json:"product_name"`
	UnitPrice   float64   `gorm:"not null" json:"unit_price"`
	ImageURL    string    `json:"image_url"`
	Quantity    int       `gorm:"not null" json:"quantity"`
	CreatedAt   time.Time `json:"created_at"`
}

func (OrderItem) TableName() string {
	return "order_items"
}

func (i *OrderItem) LineTotal() float64 {
	return float64(i.Quantity) * i.UnitPrice
}

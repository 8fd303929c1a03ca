package model

import "time"

// CartItem is one persisted cart line. (UserID, ProductID) is unique, so
// repeated adds fold into a single row.
type CartItem struct {
	ID        uint      `gorm:"primarykey" json:"id"`
	UserID    uint      `gorm:"not null;uniqueIndex:idx_cart_user_product" json:"user_id"`
	ProductID string    `gorm:"type:varchar(36);not null;uniqueIndex:idx_cart_user_product" json:"product_id"`
	Quantity  int       `gorm:"not null;default:1" json:"quantity"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `gorm:"index" json:"updated_at"`

	User    User    `gorm:"foreignKey:UserID" json:"-"`
	Product Product `gorm:"foreignKey:ProductID" json:"product"`
}

func (CartItem) TableName() string {
	return "cart_items"
}

// LineTotal is quantity times the current catalog price.
func (c *CartItem) LineTotal() float64 {
	return float64(c.Quantity) * c.Product.Price
}

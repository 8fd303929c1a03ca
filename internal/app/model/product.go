package model

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

type Product struct {
	ID            string         `gorm:"type:varchar(36);primaryKey" json:"id"`
	Name          string         `gorm:"not null;index" json:"name"`
	Description   string         `gorm:"type:text" json:"description"`
	Price         float64        `gorm:"not null" json:"price"`
	OriginalPrice *float64       `json:"original_price,omitempty"` // set while on sale
	Stock         int            `gorm:"not null;default:0" json:"stock"`
	Badge         string         `gorm:"type:varchar(30)" json:"badge,omitempty"` // "Sale", "New", "Popular", ...
	CategoryID    *uint          `gorm:"index" json:"category_id,omitempty"`
	ImageURL      string         `json:"image_url"`
	IsFeatured    bool           `gorm:"default:false;index" json:"is_featured"`
	CreatedAt     time.Time      `json:"created_at"`
	UpdatedAt     time.Time      `json:"updated_at"`
	DeletedAt     gorm.DeletedAt `gorm:"index" json:"-"`

	Category *Category `gorm:"foreignKey:CategoryID;constraint:OnDelete:SET NULL" json:"category,omitempty"`
}

func (Product) TableName() string {
	return "products"
}

func (p *Product) BeforeCreate(tx *gorm.DB) error {
	if p.ID == "" {
		p.ID = uuid.NewString()
	}
	return nil
}

func (p *Product) InStock() bool {
	return p.Stock > 0
}

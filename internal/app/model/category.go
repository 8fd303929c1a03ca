package model

import (
	"time"

	"github.com/Baby-jesuset/FBGENERALHW-sj/pkg/util"
	"gorm.io/gorm"
)

type Category struct {
	ID          uint      `gorm:"primarykey" json:"id"`
	Name        string    `gorm:"not null" json:"name"`
	Slug        string    `gorm:"uniqueIndex;not null" json:"slug"`
	Description string    `gorm:"type:text" json:"description"`
	ImageURL    string    `json:"image_url"`
	CreatedAt   time.Time `json:"created_at"`
	UpdatedAt   time.Time `json:"updated_at"`

	Products []Product `gorm:"foreignKey:CategoryID" json:"products,omitempty"`
}

func (Category) TableName() string {
	return "categories"
}

// BeforeSave derives the slug from the name when none was given.
func (c *Category) BeforeSave(tx *gorm.DB) error {
	if c.Slug == "" {
		c.Slug = util.Slugify(c.Name)
	}
	return nil
}

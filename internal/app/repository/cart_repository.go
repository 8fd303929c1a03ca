package repository

import (
	"errors"
	"time"

	"github.com/Baby-jesuset/FBGENERALHW-sj/internal/app/model"
	"github.com/Baby-jesuset/FBGENERALHW-sj/pkg/logger"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// ErrStockExceeded is returned by AddQuantity when the resulting line would
// hold more than the product's stock.
var ErrStockExceeded = errors.New("cart quantity would exceed stock")

type CartRepository interface {
	// FindByUserID returns the user's lines with products, oldest first.
	FindByUserID(userID uint) ([]model.CartItem, error)
	FindByUserAndProduct(userID uint, productID string) (*model.CartItem, error)
	// AddQuantity inserts the line or adds qty to the existing one. The
	// increment is refused with ErrStockExceeded when it would pass stock.
	AddQuantity(userID uint, productID string, qty int) (*model.CartItem, error)
	// SetQuantity overwrites an existing line; gorm.ErrRecordNotFound when absent.
	SetQuantity(userID uint, productID string, qty int) (*model.CartItem, error)
	// Delete reports whether a line was removed.
	Delete(userID uint, productID string) (bool, error)
	DeleteByUserID(userID uint) error
	// UsersWithProduct returns the owners of every cart holding the product.
	UsersWithProduct(productID string) ([]uint, error)
	// DeleteByProductID removes every line for the product and returns the
	// owners whose carts changed.
	DeleteByProductID(productID string) ([]uint, error)
	// DeleteStale removes lines untouched since cutoff. It returns one entry
	// per cart that changed and the number of lines removed.
	DeleteStale(cutoff time.Time) ([]PrunedCart, int64, error)
}

// PrunedCart is a cart that lost stale lines. Emptied is set when no lines
// remain.
type PrunedCart struct {
	UserID  uint
	Emptied bool
}

type cartRepository struct {
	db *gorm.DB
}

func NewCartRepository(db *gorm.DB) CartRepository {
	return &cartRepository{db: db}
}

func (r *cartRepository) FindByUserID(userID uint) ([]model.CartItem, error) {
	logger.Debug("Finding cart items by user ID in database", map[string]interface{}{
		"user_id": userID,
	})

	var items []model.CartItem
	err := r.db.Where("user_id = ?", userID).
		Preload("Product").
		Order("created_at ASC").
		Order("id ASC").
		Find(&items).Error
	if err != nil {
		logger.Error("Failed to find cart items by user ID in database", err, map[string]interface{}{
			"user_id": userID,
		})
		return nil, err
	}
	return items, nil
}

func (r *cartRepository) FindByUserAndProduct(userID uint, productID string) (*model.CartItem, error) {
	var item model.CartItem
	err := r.db.Preload("Product").
		Where("user_id = ? AND product_id = ?", userID, productID).
		First(&item).Error
	if err != nil {
		return nil, err
	}
	return &item, nil
}

func (r *cartRepository) AddQuantity(userID uint, productID string, qty int) (*model.CartItem, error) {
	logger.Debug("Upserting cart item in database", map[string]interface{}{
		"user_id":    userID,
		"product_id": productID,
		"quantity":   qty,
	})

	item := model.CartItem{UserID: userID, ProductID: productID, Quantity: qty}
	result := r.db.Omit("User", "Product").Clauses(clause.OnConflict{
		Columns: []clause.Column{{Name: "user_id"}, {Name: "product_id"}},
		DoUpdates: clause.Assignments(map[string]interface{}{
			"quantity":   gorm.Expr("cart_items.quantity + ?", qty),
			"updated_at": time.Now(),
		}),
		Where: clause.Where{Exprs: []clause.Expression{
			gorm.Expr("cart_items.quantity + ? <= (SELECT stock FROM products WHERE products.id = cart_items.product_id)", qty),
		}},
	}).Create(&item)
	if result.Error != nil {
		logger.Error("Failed to upsert cart item in database", result.Error, map[string]interface{}{
			"user_id":    userID,
			"product_id": productID,
		})
		return nil, result.Error
	}
	if result.RowsAffected == 0 {
		return nil, ErrStockExceeded
	}

	return r.FindByUserAndProduct(userID, productID)
}

func (r *cartRepository) SetQuantity(userID uint, productID string, qty int) (*model.CartItem, error) {
	result := r.db.Model(&model.CartItem{}).
		Where("user_id = ? AND product_id = ?", userID, productID).
		Updates(map[string]interface{}{"quantity": qty, "updated_at": time.Now()})
	if result.Error != nil {
		logger.Error("Failed to update cart item quantity", result.Error, map[string]interface{}{
			"user_id":    userID,
			"product_id": productID,
		})
		return nil, result.Error
	}
	if result.RowsAffected == 0 {
		return nil, gorm.ErrRecordNotFound
	}
	return r.FindByUserAndProduct(userID, productID)
}

func (r *cartRepository) Delete(userID uint, productID string) (bool, error) {
	result := r.db.Where("user_id = ? AND product_id = ?", userID, productID).Delete(&model.CartItem{})
	if result.Error != nil {
		logger.Error("Failed to delete cart item from database", result.Error, map[string]interface{}{
			"user_id":    userID,
			"product_id": productID,
		})
		return false, result.Error
	}
	return result.RowsAffected > 0, nil
}

func (r *cartRepository) DeleteByUserID(userID uint) error {
	logger.Debug("Deleting cart items by user ID from database", map[string]interface{}{
		"user_id": userID,
	})

	if err := r.db.Where("user_id = ?", userID).Delete(&model.CartItem{}).Error; err != nil {
		logger.Error("Failed to delete cart items by user ID from database", err, map[string]interface{}{
			"user_id": userID,
		})
		return err
	}
	return nil
}

func (r *cartRepository) UsersWithProduct(productID string) ([]uint, error) {
	var userIDs []uint
	err := r.db.Model(&model.CartItem{}).
		Where("product_id = ?", productID).
		Distinct().
		Pluck("user_id", &userIDs).Error
	if err != nil {
		logger.Error("Failed to find carts holding product", err, map[string]interface{}{
			"product_id": productID,
		})
		return nil, err
	}
	return userIDs, nil
}

func (r *cartRepository) DeleteByProductID(productID string) ([]uint, error) {
	var userIDs []uint
	err := r.db.Transaction(func(tx *gorm.DB) error {
		if err := tx.Model(&model.CartItem{}).
			Where("product_id = ?", productID).
			Distinct().
			Pluck("user_id", &userIDs).Error; err != nil {
			return err
		}
		if len(userIDs) == 0 {
			return nil
		}
		return tx.Where("product_id = ?", productID).Delete(&model.CartItem{}).Error
	})
	if err != nil {
		logger.Error("Failed to delete cart items by product ID", err, map[string]interface{}{
			"product_id": productID,
		})
		return nil, err
	}
	return userIDs, nil
}

func (r *cartRepository) DeleteStale(cutoff time.Time) ([]PrunedCart, int64, error) {
	var pruned []PrunedCart
	var removed int64

	err := r.db.Transaction(func(tx *gorm.DB) error {
		var userIDs []uint
		if err := tx.Model(&model.CartItem{}).
			Where("updated_at < ?", cutoff).
			Distinct().
			Pluck("user_id", &userIDs).Error; err != nil {
			return err
		}
		if len(userIDs) == 0 {
			return nil
		}

		result := tx.Where("updated_at < ?", cutoff).Delete(&model.CartItem{})
		if result.Error != nil {
			return result.Error
		}
		removed = result.RowsAffected

		var remaining []uint
		if err := tx.Model(&model.CartItem{}).
			Where("user_id IN ?", userIDs).
			Distinct().
			Pluck("user_id", &remaining).Error; err != nil {
			return err
		}
		kept := make(map[uint]bool, len(remaining))
		for _, id := range remaining {
			kept[id] = true
		}
		for _, id := range userIDs {
			pruned = append(pruned, PrunedCart{UserID: id, Emptied: !kept[id]})
		}
		return nil
	})
	if err != nil {
		logger.Error("Failed to delete stale cart items", err, map[string]interface{}{
			"cutoff": cutoff,
		})
		return nil, 0, err
	}
	return pruned, removed, nil
}

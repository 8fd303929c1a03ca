package repository

import (
	"strings"

	"github.com/Baby-jesuset/FBGENERALHW-sj/internal/app/model"
	"github.com/Baby-jesuset/FBGENERALHW-sj/pkg/logger"
	"gorm.io/gorm"
)

type ProductSort string

const (
	ProductSortCreatedAt ProductSort = "created_at"
	ProductSortPrice     ProductSort = "price"
	ProductSortName      ProductSort = "name"
)

const (
	DefaultProductLimit = 24
	MaxProductLimit     = 100
)

type ProductFilter struct {
	CategoryID    *uint
	CategorySlug  string
	Search        string
	Featured      *bool
	InStockOnly   bool
	SortBy        ProductSort
	SortAscending bool
	Limit         int
	Offset        int
}

type ProductRepository interface {
	Create(product *model.Product) error
	// FindWithFilter returns one page of products and the total match count.
	FindWithFilter(filter ProductFilter) ([]model.Product, int64, error)
	FindByID(id string) (*model.Product, error)
	Update(product *model.Product) error
	Delete(id string) error
}

type productRepository struct {
	db *gorm.DB
}

func NewProductRepository(db *gorm.DB) ProductRepository {
	return &productRepository{db: db}
}

func (r *productRepository) Create(product *model.Product) error {
	logger.Debug("Creating product in database", map[string]interface{}{
		"name":        product.Name,
		"category_id": product.CategoryID,
	})

	if err := r.db.Create(product).Error; err != nil {
		logger.Error("Failed to create product in database", err, map[string]interface{}{
			"name": product.Name,
		})
		return err
	}

	logger.Debug("Product created in database", map[string]interface{}{
		"product_id": product.ID,
	})
	return nil
}

func (r *productRepository) FindWithFilter(filter ProductFilter) ([]model.Product, int64, error) {
	logger.Debug("Finding products with filter", map[string]interface{}{
		"category_id":   filter.CategoryID,
		"category_slug": filter.CategorySlug,
		"search":        filter.Search,
		"featured":      filter.Featured,
		"sort_by":       filter.SortBy,
		"ascending":     filter.SortAscending,
		"limit":         filter.Limit,
		"offset":        filter.Offset,
	})

	query := r.db.Model(&model.Product{})

	if filter.CategoryID != nil {
		query = query.Where("products.category_id = ?", *filter.CategoryID)
	}
	if filter.CategorySlug != "" {
		query = query.Joins("JOIN categories ON categories.id = products.category_id").
			Where("categories.slug = ?", filter.CategorySlug)
	}
	if search := strings.TrimSpace(filter.Search); search != "" {
		like := "%" + strings.ToLower(search) + "%"
		query = query.Where("(LOWER(products.name) LIKE ? OR LOWER(products.description) LIKE ?)", like, like)
	}
	if filter.Featured != nil {
		query = query.Where("products.is_featured = ?", *filter.Featured)
	}
	if filter.InStockOnly {
		query = query.Where("products.stock > 0")
	}

	var total int64
	if err := query.Session(&gorm.Session{}).Count(&total).Error; err != nil {
		logger.Error("Failed to count products", err)
		return nil, 0, err
	}

	direction := " DESC"
	if filter.SortAscending {
		direction = " ASC"
	}
	switch filter.SortBy {
	case ProductSortPrice:
		query = query.Order("products.price" + direction)
	case ProductSortName:
		query = query.Order("products.name" + direction)
	default:
		query = query.Order("products.created_at" + direction)
	}
	query = query.Order("products.id ASC")

	limit := filter.Limit
	if limit <= 0 {
		limit = DefaultProductLimit
	}
	if limit > MaxProductLimit {
		limit = MaxProductLimit
	}
	query = query.Limit(limit)
	if filter.Offset > 0 {
		query = query.Offset(filter.Offset)
	}

	var products []model.Product
	if err := query.Preload("Category").Find(&products).Error; err != nil {
		logger.Error("Failed to find products with filter", err)
		return nil, 0, err
	}

	logger.Debug("Products found with filter", map[string]interface{}{
		"count": len(products),
		"total": total,
	})
	return products, total, nil
}

func (r *productRepository) FindByID(id string) (*model.Product, error) {
	var product model.Product
	if err := r.db.Preload("Category").First(&product, "id = ?", id).Error; err != nil {
		return nil, err
	}
	return &product, nil
}

func (r *productRepository) Update(product *model.Product) error {
	logger.Debug("Updating product in database", map[string]interface{}{
		"product_id": product.ID,
	})

	if err := r.db.Omit("Category").Save(product).Error; err != nil {
		logger.Error("Failed to update product in database", err, map[string]interface{}{
			"product_id": product.ID,
		})
		return err
	}
	return nil
}

func (r *productRepository) Delete(id string) error {
	result := r.db.Delete(&model.Product{}, "id = ?", id)
	if result.Error != nil {
		logger.Error("Failed to delete product from database", result.Error, map[string]interface{}{
			"product_id": id,
		})
		return result.Error
	}
	if result.RowsAffected == 0 {
		return gorm.ErrRecordNotFound
	}
	return nil
}

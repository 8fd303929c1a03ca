package repository

import (
	"github.com/Baby-jesuset/FBGENERALHW-sj/internal/app/model"
	"github.com/Baby-jesuset/FBGENERALHW-sj/pkg/logger"
	"gorm.io/gorm"
)

type CategoryRepository interface {
	Create(category *model.Category) error
	FindAll() ([]model.Category, error)
	FindByID(id uint) (*model.Category, error)
	// FindBySlug preloads the category's products, newest first.
	FindBySlug(slug string) (*model.Category, error)
	Update(category *model.Category) error
	Delete(id uint) error
	CountProducts(id uint) (int64, error)
}

type categoryRepository struct {
	db *gorm.DB
}

func NewCategoryRepository(db *gorm.DB) CategoryRepository {
	return &categoryRepository{db: db}
}

func (r *categoryRepository) Create(category *model.Category) error {
	logger.Debug("Creating category in database", map[string]interface{}{
		"name": category.Name,
		"slug": category.Slug,
	})

	if err := r.db.Create(category).Error; err != nil {
		logger.Error("Failed to create category in database", err, map[string]interface{}{
			"name": category.Name,
		})
		return err
	}
	return nil
}

func (r *categoryRepository) FindAll() ([]model.Category, error) {
	var categories []model.Category
	if err := r.db.Order("name ASC").Find(&categories).Error; err != nil {
		logger.Error("Failed to list categories", err)
		return nil, err
	}
	return categories, nil
}

func (r *categoryRepository) FindByID(id uint) (*model.Category, error) {
	var category model.Category
	if err := r.db.First(&category, id).Error; err != nil {
		return nil, err
	}
	return &category, nil
}

func (r *categoryRepository) FindBySlug(slug string) (*model.Category, error) {
	var category model.Category
	err := r.db.
		Preload("Products", func(db *gorm.DB) *gorm.DB {
			return db.Order("products.created_at DESC")
		}).
		Where("slug = ?", slug).
		First(&category).Error
	if err != nil {
		logger.Debug("Category not found by slug", map[string]interface{}{
			"slug": slug,
		})
		return nil, err
	}
	return &category, nil
}

func (r *categoryRepository) Update(category *model.Category) error {
	if err := r.db.Save(category).Error; err != nil {
		logger.Error("Failed to update category in database", err, map[string]interface{}{
			"category_id": category.ID,
		})
		return err
	}
	return nil
}

func (r *categoryRepository) Delete(id uint) error {
	result := r.db.Delete(&model.Category{}, id)
	if result.Error != nil {
		logger.Error("Failed to delete category from database", result.Error, map[string]interface{}{
			"category_id": id,
		})
		return result.Error
	}
	if result.RowsAffected == 0 {
		return gorm.ErrRecordNotFound
	}
	return nil
}

func (r *categoryRepository) CountProducts(id uint) (int64, error) {
	var count int64
	err := r.db.Model(&model.Product{}).Where("category_id = ?", id).Count(&count).Error
	return count, err
}

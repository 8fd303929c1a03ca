package service

import (
	"errors"
	"strings"

	"github.com/Baby-jesuset/FBGENERALHW-sj/internal/app/model"
	"github.com/Baby-jesuset/FBGENERALHW-sj/internal/app/repository"
	"github.com/Baby-jesuset/FBGENERALHW-sj/pkg/logger"
	"github.com/Baby-jesuset/FBGENERALHW-sj/pkg/util"
	"gorm.io/gorm"
)

var (
	ErrCategoryNotFound = errors.New("category not found")
	ErrCategoryExists   = errors.New("category slug already exists")
	ErrCategoryNotEmpty = errors.New("category still has products")
	ErrInvalidCategory  = errors.New("invalid category")
)

type CategoryInput struct {
	Name        string
	Slug        string // derived from Name when empty
	Description string
	ImageURL    string
}

type CategoryService interface {
	ListCategories() ([]model.Category, error)
	// GetCategoryBySlug includes the category's products.
	GetCategoryBySlug(slug string) (*model.Category, error)
	CreateCategory(input CategoryInput) (*model.Category, error)
	UpdateCategory(id uint, input CategoryInput) (*model.Category, error)
	DeleteCategory(id uint) error
}

type categoryService struct {
	categoryRepo repository.CategoryRepository
}

func NewCategoryService(categoryRepo repository.CategoryRepository) CategoryService {
	return &categoryService{categoryRepo: categoryRepo}
}

func (s *categoryService) ListCategories() ([]model.Category, error) {
	return s.categoryRepo.FindAll()
}

func (s *categoryService) GetCategoryBySlug(slug string) (*model.Category, error) {
	category, err := s.categoryRepo.FindBySlug(slug)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrCategoryNotFound
		}
		return nil, err
	}
	return category, nil
}

func (s *categoryService) CreateCategory(input CategoryInput) (*model.Category, error) {
	name, slug, err := normalizeCategory(input)
	if err != nil {
		return nil, err
	}
	if err := s.ensureSlugFree(slug, 0); err != nil {
		return nil, err
	}

	category := &model.Category{
		Name:        name,
		Slug:        slug,
		Description: input.Description,
		ImageURL:    input.ImageURL,
	}
	if err := s.categoryRepo.Create(category); err != nil {
		return nil, err
	}

	logger.Info("Category created", map[string]interface{}{
		"category_id": category.ID,
		"slug":        category.Slug,
	})
	return category, nil
}

func (s *categoryService) UpdateCategory(id uint, input CategoryInput) (*model.Category, error) {
	category, err := s.categoryRepo.FindByID(id)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrCategoryNotFound
		}
		return nil, err
	}

	name, slug, err := normalizeCategory(input)
	if err != nil {
		return nil, err
	}
	if err := s.ensureSlugFree(slug, id); err != nil {
		return nil, err
	}

	category.Name = name
	category.Slug = slug
	category.Description = input.Description
	category.ImageURL = input.ImageURL
	if err := s.categoryRepo.Update(category); err != nil {
		return nil, err
	}
	return category, nil
}

func (s *categoryService) DeleteCategory(id uint) error {
	count, err := s.categoryRepo.CountProducts(id)
	if err != nil {
		return err
	}
	if count > 0 {
		logger.Warn("Refusing to delete non-empty category", map[string]interface{}{
			"category_id": id,
			"products":    count,
		})
		return ErrCategoryNotEmpty
	}

	if err := s.categoryRepo.Delete(id); err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return ErrCategoryNotFound
		}
		return err
	}

	logger.Info("Category deleted", map[string]interface{}{
		"category_id": id,
	})
	return nil
}

func (s *categoryService) ensureSlugFree(slug string, selfID uint) error {
	existing, err := s.categoryRepo.FindBySlug(slug)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil
		}
		return err
	}
	if existing.ID != selfID {
		return ErrCategoryExists
	}
	return nil
}

func normalizeCategory(input CategoryInput) (string, string, error) {
	name := strings.TrimSpace(input.Name)
	if name == "" {
		return "", "", ErrInvalidCategory
	}
	slug := util.Slugify(input.Slug)
	if slug == "" {
		slug = util.Slugify(name)
	}
	if slug == "" {
		return "", "", ErrInvalidCategory
	}
	return name, slug, nil
}

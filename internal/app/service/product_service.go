package service

import (
	"context"
	"errors"
	"strings"

	"github.com/Baby-jesuset/FBGENERALHW-sj/internal/app/model"
	"github.com/Baby-jesuset/FBGENERALHW-sj/internal/app/repository"
	"github.com/Baby-jesuset/FBGENERALHW-sj/internal/websocket"
	"github.com/Baby-jesuset/FBGENERALHW-sj/pkg/logger"
	"gorm.io/gorm"
)

var (
	ErrProductNotFound = errors.New("product not found")
	ErrInvalidProduct  = errors.New("invalid product")
	// ErrProductInUse is returned when order history references the product.
	ErrProductInUse = errors.New("product is referenced by existing orders")
)

// ProductInput carries every editable product field. Updates replace all of them.
type ProductInput struct {
	Name          string
	Description   string
	Price         float64
	OriginalPrice *float64
	Stock         int
	Badge         string
	CategoryID    *uint
	ImageURL      string
	IsFeatured    bool
}

func (in ProductInput) validate() error {
	if strings.TrimSpace(in.Name) == "" || in.Price <= 0 || in.Stock < 0 {
		return ErrInvalidProduct
	}
	if in.OriginalPrice != nil && *in.OriginalPrice < in.Price {
		return ErrInvalidProduct
	}
	return nil
}

func (in ProductInput) apply(p *model.Product) {
	p.Name = strings.TrimSpace(in.Name)
	p.Description = in.Description
	p.Price = in.Price
	p.OriginalPrice = in.OriginalPrice
	p.Stock = in.Stock
	p.Badge = strings.TrimSpace(in.Badge)
	p.CategoryID = in.CategoryID
	p.ImageURL = in.ImageURL
	p.IsFeatured = in.IsFeatured
}

type ProductService interface {
	ListProducts(filter repository.ProductFilter) ([]model.Product, int64, error)
	GetProductByID(id string) (*model.Product, error)
	CreateProduct(input ProductInput) (*model.Product, error)
	// UpdateProduct also invalidates every cached cart holding the product
	// so reloads pick up the new price and display fields.
	UpdateProduct(ctx context.Context, id string, input ProductInput) (*model.Product, error)
	// DeleteProduct refuses products that appear in any order and removes
	// the product from every cart.
	DeleteProduct(ctx context.Context, id string) error
}

type productService struct {
	productRepo  repository.ProductRepository
	categoryRepo repository.CategoryRepository
	orderRepo    repository.OrderRepository
	cartRepo     repository.CartRepository
	carts        CartService
}

func NewProductService(
	productRepo repository.ProductRepository,
	categoryRepo repository.CategoryRepository,
	orderRepo repository.OrderRepository,
	cartRepo repository.CartRepository,
	carts CartService,
) ProductService {
	return &productService{
		productRepo:  productRepo,
		categoryRepo: categoryRepo,
		orderRepo:    orderRepo,
		cartRepo:     cartRepo,
		carts:        carts,
	}
}

func (s *productService) ListProducts(filter repository.ProductFilter) ([]model.Product, int64, error) {
	products, total, err := s.productRepo.FindWithFilter(filter)
	if err != nil {
		logger.Error("Failed to list products", err)
		return nil, 0, err
	}
	return products, total, nil
}

func (s *productService) GetProductByID(id string) (*model.Product, error) {
	product, err := s.productRepo.FindByID(id)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrProductNotFound
		}
		logger.Error("Failed to get product", err, map[string]interface{}{
			"product_id": id,
		})
		return nil, err
	}
	return product, nil
}

func (s *productService) CreateProduct(input ProductInput) (*model.Product, error) {
	if err := input.validate(); err != nil {
		return nil, err
	}
	if err := s.checkCategory(input.CategoryID); err != nil {
		return nil, err
	}

	product := &model.Product{}
	input.apply(product)
	if err := s.productRepo.Create(product); err != nil {
		return nil, err
	}

	logger.Info("Product created", map[string]interface{}{
		"product_id": product.ID,
		"name":       product.Name,
	})
	return s.GetProductByID(product.ID)
}

func (s *productService) UpdateProduct(ctx context.Context, id string, input ProductInput) (*model.Product, error) {
	if err := input.validate(); err != nil {
		return nil, err
	}

	product, err := s.GetProductByID(id)
	if err != nil {
		return nil, err
	}
	if err := s.checkCategory(input.CategoryID); err != nil {
		return nil, err
	}

	input.apply(product)
	product.Category = nil
	if err := s.productRepo.Update(product); err != nil {
		return nil, err
	}

	users, err := s.cartRepo.UsersWithProduct(id)
	if err != nil {
		return nil, err
	}
	for _, userID := range users {
		s.carts.Invalidate(ctx, userID, websocket.CartEvent{
			Type:      websocket.CartUpdated,
			ProductID: id,
		})
	}

	logger.Info("Product updated", map[string]interface{}{
		"product_id":     id,
		"carts_affected": len(users),
	})
	return s.GetProductByID(id)
}

func (s *productService) DeleteProduct(ctx context.Context, id string) error {
	if _, err := s.GetProductByID(id); err != nil {
		return err
	}

	referenced, err := s.orderRepo.CountItemsByProduct(id)
	if err != nil {
		return err
	}
	if referenced > 0 {
		logger.Warn("Refusing to delete product with order history", map[string]interface{}{
			"product_id":  id,
			"order_items": referenced,
		})
		return ErrProductInUse
	}

	users, err := s.cartRepo.DeleteByProductID(id)
	if err != nil {
		return err
	}
	if err := s.productRepo.Delete(id); err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return ErrProductNotFound
		}
		return err
	}

	for _, userID := range users {
		s.carts.Invalidate(ctx, userID, websocket.CartEvent{
			Type:      websocket.CartUpdated,
			ProductID: id,
		})
	}

	logger.Info("Product deleted", map[string]interface{}{
		"product_id":     id,
		"carts_affected": len(users),
	})
	return nil
}

func (s *productService) checkCategory(id *uint) error {
	if id == nil {
		return nil
	}
	if _, err := s.categoryRepo.FindByID(*id); err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return ErrCategoryNotFound
		}
		return err
	}
	return nil
}

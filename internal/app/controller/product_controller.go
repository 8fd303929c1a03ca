package controller

import (
	"fmt"
	"net/http"
	"strconv"
	"strings"

	"github.com/Baby-jesuset/FBGENERALHW-sj/internal/app/repository"
	"github.com/Baby-jesuset/FBGENERALHW-sj/internal/app/service"
	apperrors "github.com/Baby-jesuset/FBGENERALHW-sj/internal/errors"
	"github.com/Baby-jesuset/FBGENERALHW-sj/internal/middleware"
	"github.com/gin-gonic/gin"
)

type ProductController struct {
	productService service.ProductService
}

func NewProductController(productService service.ProductService) *ProductController {
	return &ProductController{
		productService: productService,
	}
}

type ProductRequest struct {
	Name          string   `json:"name" binding:"required"`
	Description   string   `json:"description"`
	Price         float64  `json:"price" binding:"required,gt=0"`
	OriginalPrice *float64 `json:"original_price"`
	Stock         int      `json:"stock" binding:"gte=0"`
	Badge         string   `json:"badge"`
	CategoryID    *uint    `json:"category_id"`
	ImageURL      string   `json:"image_url"`
	IsFeatured    bool     `json:"is_featured"`
}

func (r ProductRequest) input() service.ProductInput {
	return service.ProductInput{
		Name:          r.Name,
		Description:   r.Description,
		Price:         r.Price,
		OriginalPrice: r.OriginalPrice,
		Stock:         r.Stock,
		Badge:         r.Badge,
		CategoryID:    r.CategoryID,
		ImageURL:      r.ImageURL,
		IsFeatured:    r.IsFeatured,
	}
}

// parseProductFilter reads the listing query string. Unknown sort keys fall
// back to newest first.
func parseProductFilter(c *gin.Context) (repository.ProductFilter, error) {
	filter := repository.ProductFilter{
		CategorySlug: strings.TrimSpace(c.Query("category")),
		Search:       c.Query("search"),
		SortBy:       repository.ProductSortCreatedAt,
	}

	if raw := c.Query("category_id"); raw != "" {
		id, err := strconv.ParseUint(raw, 10, 32)
		if err != nil {
			return filter, fmt.Errorf("invalid category_id %q", raw)
		}
		categoryID := uint(id)
		filter.CategoryID = &categoryID
	}
	if raw := c.Query("featured"); raw != "" {
		featured, err := strconv.ParseBool(raw)
		if err != nil {
			return filter, fmt.Errorf("invalid featured %q", raw)
		}
		filter.Featured = &featured
	}
	if raw := c.Query("in_stock"); raw != "" {
		inStock, err := strconv.ParseBool(raw)
		if err != nil {
			return filter, fmt.Errorf("invalid in_stock %q", raw)
		}
		filter.InStockOnly = inStock
	}

	switch repository.ProductSort(c.Query("sort")) {
	case repository.ProductSortPrice:
		filter.SortBy = repository.ProductSortPrice
	case repository.ProductSortName:
		filter.SortBy = repository.ProductSortName
	}
	switch strings.ToLower(c.Query("order")) {
	case "asc":
		filter.SortAscending = true
	case "", "desc":
	default:
		return filter, fmt.Errorf("invalid order %q", c.Query("order"))
	}

	var err error
	if filter.Limit, err = queryInt(c, "limit"); err != nil {
		return filter, err
	}
	if filter.Offset, err = queryInt(c, "offset"); err != nil {
		return filter, err
	}
	if filter.Limit <= 0 {
		filter.Limit = repository.DefaultProductLimit
	}
	if filter.Limit > repository.MaxProductLimit {
		filter.Limit = repository.MaxProductLimit
	}
	return filter, nil
}

func queryInt(c *gin.Context, key string) (int, error) {
	raw := c.Query(key)
	if raw == "" {
		return 0, nil
	}
	n, err := strconv.Atoi(raw)
	if err != nil || n < 0 {
		return 0, fmt.Errorf("invalid %s %q", key, raw)
	}
	return n, nil
}

// ListProducts returns one page of the catalog
// GET /api/v1/products
func (ctrl *ProductController) ListProducts(c *gin.Context) {
	log := middleware.GetLoggerFromContext(c)

	filter, err := parseProductFilter(c)
	if err != nil {
		apperrors.BadRequest(c, apperrors.ValidationInvalidInput, err.Error())
		return
	}

	products, total, err := ctrl.productService.ListProducts(filter)
	if err != nil {
		log.Error("Failed to list products", err)
		respondError(c, err, "product")
		return
	}

	log.Debug("Products listed", map[string]interface{}{
		"count": len(products),
		"total": total,
	})

	c.JSON(http.StatusOK, gin.H{
		"products": products,
		"total":    total,
		"limit":    filter.Limit,
		"offset":   filter.Offset,
	})
}

// GetProduct returns a product by ID
// GET /api/v1/products/:id
func (ctrl *ProductController) GetProduct(c *gin.Context) {
	product, err := ctrl.productService.GetProductByID(c.Param("id"))
	if err != nil {
		if !respondError(c, err, "product") {
			middleware.GetLoggerFromContext(c).Error("Failed to fetch product", err, map[string]interface{}{
				"product_id": c.Param("id"),
			})
		}
		return
	}

	c.JSON(http.StatusOK, gin.H{"product": product})
}

// CreateProduct adds a product to the catalog (admin)
// POST /api/v1/admin/products
func (ctrl *ProductController) CreateProduct(c *gin.Context) {
	log := middleware.GetLoggerFromContext(c)

	var req ProductRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		apperrors.InvalidBody(c, err)
		return
	}

	product, err := ctrl.productService.CreateProduct(req.input())
	if err != nil {
		if !respondError(c, err, "product") {
			log.Error("Failed to create product", err)
		}
		return
	}

	log.Info("Product created", map[string]interface{}{
		"product_id": product.ID,
		"name":       product.Name,
	})
	c.JSON(http.StatusCreated, gin.H{"product": product})
}

// UpdateProduct replaces every editable field of a product (admin)
// PUT /api/v1/admin/products/:id
func (ctrl *ProductController) UpdateProduct(c *gin.Context) {
	log := middleware.GetLoggerFromContext(c)

	var req ProductRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		apperrors.InvalidBody(c, err)
		return
	}

	product, err := ctrl.productService.UpdateProduct(c.Request.Context(), c.Param("id"), req.input())
	if err != nil {
		if !respondError(c, err, "product") {
			log.Error("Failed to update product", err, map[string]interface{}{
				"product_id": c.Param("id"),
			})
		}
		return
	}

	log.Info("Product updated", map[string]interface{}{
		"product_id": product.ID,
	})
	c.JSON(http.StatusOK, gin.H{"product": product})
}

// DeleteProduct removes a product that no order references (admin)
// DELETE /api/v1/admin/products/:id
func (ctrl *ProductController) DeleteProduct(c *gin.Context) {
	log := middleware.GetLoggerFromContext(c)
	id := c.Param("id")

	if err := ctrl.productService.DeleteProduct(c.Request.Context(), id); err != nil {
		if !respondError(c, err, "product") {
			log.Error("Failed to delete product", err, map[string]interface{}{
				"product_id": id,
			})
		}
		return
	}

	log.Info("Product deleted", map[string]interface{}{
		"product_id": id,
	})
	c.Status(http.StatusNoContent)
}

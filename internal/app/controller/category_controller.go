package controller

import (
	"net/http"
	"strconv"

	"github.com/Baby-jesuset/FBGENERALHW-sj/internal/app/service"
	apperrors "github.com/Baby-jesuset/FBGENERALHW-sj/internal/errors"
	"github.com/Baby-jesuset/FBGENERALHW-sj/internal/middleware"
	"github.com/gin-gonic/gin"
)

type CategoryController struct {
	categoryService service.CategoryService
}

func NewCategoryController(categoryService service.CategoryService) *CategoryController {
	return &CategoryController{
		categoryService: categoryService,
	}
}

type CategoryRequest struct {
	Name        string `json:"name" binding:"required"`
	Slug        string `json:"slug"`
	Description string `json:"description"`
	ImageURL    string `json:"image_url"`
}

func (r CategoryRequest) input() service.CategoryInput {
	return service.CategoryInput{
		Name:        r.Name,
		Slug:        r.Slug,
		Description: r.Description,
		ImageURL:    r.ImageURL,
	}
}

func parseIDParam(c *gin.Context, name string) (uint, bool) {
	id, err := strconv.ParseUint(c.Param(name), 10, 32)
	if err != nil || id == 0 {
		apperrors.BadRequest(c, apperrors.ValidationInvalidID, "Invalid "+name)
		return 0, false
	}
	return uint(id), true
}

// ListCategories returns all categories
// GET /api/v1/categories
func (ctrl *CategoryController) ListCategories(c *gin.Context) {
	categories, err := ctrl.categoryService.ListCategories()
	if err != nil {
		middleware.GetLoggerFromContext(c).Error("Failed to list categories", err)
		respondError(c, err, "category")
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"categories": categories,
		"count":      len(categories),
	})
}

// GetCategory returns a category with its products
// GET /api/v1/categories/:slug
func (ctrl *CategoryController) GetCategory(c *gin.Context) {
	category, err := ctrl.categoryService.GetCategoryBySlug(c.Param("slug"))
	if err != nil {
		if !respondError(c, err, "category") {
			middleware.GetLoggerFromContext(c).Error("Failed to fetch category", err, map[string]interface{}{
				"slug": c.Param("slug"),
			})
		}
		return
	}

	c.JSON(http.StatusOK, gin.H{"category": category})
}

// CreateCategory (admin)
// POST /api/v1/admin/categories
func (ctrl *CategoryController) CreateCategory(c *gin.Context) {
	log := middleware.GetLoggerFromContext(c)

	var req CategoryRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		apperrors.InvalidBody(c, err)
		return
	}

	category, err := ctrl.categoryService.CreateCategory(req.input())
	if err != nil {
		if !respondError(c, err, "category") {
			log.Error("Failed to create category", err)
		}
		return
	}

	log.Info("Category created", map[string]interface{}{
		"category_id": category.ID,
		"slug":        category.Slug,
	})
	c.JSON(http.StatusCreated, gin.H{"category": category})
}

// UpdateCategory (admin)
// PUT /api/v1/admin/categories/:id
func (ctrl *CategoryController) UpdateCategory(c *gin.Context) {
	log := middleware.GetLoggerFromContext(c)

	id, ok := parseIDParam(c, "id")
	if !ok {
		return
	}

	var req CategoryRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		apperrors.InvalidBody(c, err)
		return
	}

	category, err := ctrl.categoryService.UpdateCategory(id, req.input())
	if err != nil {
		if !respondError(c, err, "category") {
			log.Error("Failed to update category", err, map[string]interface{}{
				"category_id": id,
			})
		}
		return
	}

	c.JSON(http.StatusOK, gin.H{"category": category})
}

// DeleteCategory removes an empty category (admin)
// DELETE /api/v1/admin/categories/:id
func (ctrl *CategoryController) DeleteCategory(c *gin.Context) {
	log := middleware.GetLoggerFromContext(c)

	id, ok := parseIDParam(c, "id")
	if !ok {
		return
	}

	if err := ctrl.categoryService.DeleteCategory(id); err != nil {
		if !respondError(c, err, "category") {
			log.Error("Failed to delete category", err, map[string]interface{}{
				"category_id": id,
			})
		}
		return
	}

	log.Info("Category deleted", map[string]interface{}{
		"category_id": id,
	})
	c.Status(http.StatusNoContent)
}

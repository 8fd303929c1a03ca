package controller

import (
	"errors"
	"net/http"

	"github.com/Baby-jesuset/FBGENERALHW-sj/internal/app/service"
	apperrors "github.com/Baby-jesuset/FBGENERALHW-sj/internal/errors"
	"github.com/Baby-jesuset/FBGENERALHW-sj/internal/middleware"
	"github.com/Baby-jesuset/FBGENERALHW-sj/internal/storage"
	"github.com/Baby-jesuset/FBGENERALHW-sj/pkg/util"
	"github.com/gin-gonic/gin"
)

type errorMapping struct {
	target  error
	status  int
	code    string
	message string
}

// Service errors with a fixed client response. Anything else goes through
// apperrors.ParseAndRespond.
var serviceErrors = []errorMapping{
	{service.ErrEmailAlreadyExists, http.StatusConflict, apperrors.AuthEmailAlreadyExists, "Email is already registered"},
	{service.ErrInvalidCredentials, http.StatusUnauthorized, apperrors.AuthInvalidCredentials, "Invalid email or password"},
	{service.ErrInvalidRefresh, http.StatusUnauthorized, apperrors.AuthTokenInvalid, "Invalid or expired refresh token"},
	{service.ErrUserNotFound, http.StatusNotFound, apperrors.ResourceNotFound, "User not found"},
	{util.ErrWeakPassword, http.StatusBadRequest, apperrors.AuthWeakPassword, util.ErrWeakPassword.Error()},

	{service.ErrProductNotFound, http.StatusNotFound, apperrors.ProductNotFound, "Product not found"},
	{service.ErrInvalidProduct, http.StatusBadRequest, apperrors.ValidationInvalidInput, "Invalid product details"},
	{service.ErrProductInUse, http.StatusConflict, apperrors.ProductInUse, "Product appears in existing orders and cannot be deleted"},
	{service.ErrCategoryNotFound, http.StatusNotFound, apperrors.CategoryNotFound, "Category not found"},
	{service.ErrCategoryExists, http.StatusConflict, apperrors.CategorySlugConflict, "A category with this slug already exists"},
	{service.ErrCategoryNotEmpty, http.StatusConflict, apperrors.CategoryNotEmpty, "Category still has products"},
	{service.ErrInvalidCategory, http.StatusBadRequest, apperrors.ValidationInvalidInput, "Invalid category details"},

	{service.ErrCartItemNotFound, http.StatusNotFound, apperrors.CartItemNotFound, "Item is not in the cart"},
	{service.ErrInvalidQuantity, http.StatusBadRequest, apperrors.CartInvalidQuantity, "Quantity must be at least 1"},
	{service.ErrInsufficientStock, http.StatusConflict, apperrors.ProductOutOfStock, "Not enough stock for this product"},

	{service.ErrEmptyCart, http.StatusBadRequest, apperrors.CartEmpty, "Cart is empty"},
	{service.ErrInvalidOrderInput, http.StatusBadRequest, apperrors.ValidationInvalidInput, "Shipping address, city, phone and a valid payment method are required"},
	{service.ErrOrderNotFound, http.StatusNotFound, apperrors.OrderNotFound, "Order not found"},
	{service.ErrInvalidOrderStatus, http.StatusBadRequest, apperrors.OrderInvalidStatus, "Unknown order status"},
	{service.ErrInvalidStatusTransition, http.StatusConflict, apperrors.OrderInvalidTransition, "Order cannot move to this status"},

	{storage.ErrInvalidFileType, http.StatusBadRequest, apperrors.UploadInvalidFileType, storage.ErrInvalidFileType.Error()},
	{storage.ErrInvalidFolder, http.StatusBadRequest, apperrors.ValidationInvalidInput, "Unknown upload folder"},
}

// respondError writes the response for err. It reports whether err was a
// known service error, so callers can log unknown ones at error level.
func respondError(c *gin.Context, err error, what string) bool {
	for _, m := range serviceErrors {
		if errors.Is(err, m.target) {
			apperrors.RespondWithError(c, m.status, m.code, m.message)
			return true
		}
	}
	apperrors.ParseAndRespond(c, err, what)
	return false
}

func currentUserID(c *gin.Context) (uint, bool) {
	userID, ok := middleware.GetUserID(c)
	if !ok {
		apperrors.Unauthorized(c, "")
	}
	return userID, ok
}

package controller

import (
	"net/http"

	"github.com/Baby-jesuset/FBGENERALHW-sj/internal/app/model"
	"github.com/Baby-jesuset/FBGENERALHW-sj/internal/app/repository"
	"github.com/Baby-jesuset/FBGENERALHW-sj/internal/app/service"
	apperrors "github.com/Baby-jesuset/FBGENERALHW-sj/internal/errors"
	"github.com/Baby-jesuset/FBGENERALHW-sj/internal/middleware"
	"github.com/gin-gonic/gin"
)

type OrderController struct {
	orderService service.OrderService
}

func NewOrderController(orderService service.OrderService) *OrderController {
	return &OrderController{
		orderService: orderService,
	}
}

type PlaceOrderRequest struct {
	ShippingAddress string              `json:"shipping_address" binding:"required"`
	City            string              `json:"city" binding:"required"`
	Phone           string              `json:"phone" binding:"required"`
	PaymentMethod   model.PaymentMethod `json:"payment_method"`
	Notes           string              `json:"notes"`
}

type UpdateOrderStatusRequest struct {
	Status model.OrderStatus `json:"status" binding:"required"`
}

// GetOrders returns user's orders
// GET /api/v1/orders
func (ctrl *OrderController) GetOrders(c *gin.Context) {
	log := middleware.GetLoggerFromContext(c)

	userID, ok := currentUserID(c)
	if !ok {
		return
	}

	orders, err := ctrl.orderService.GetUserOrders(userID)
	if err != nil {
		log.Error("Failed to fetch orders", err, map[string]interface{}{
			"user_id": userID,
		})
		respondError(c, err, "order")
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"orders": orders,
		"count":  len(orders),
	})
}

// PlaceOrder checks out the user's cart
// POST /api/v1/orders
func (ctrl *OrderController) PlaceOrder(c *gin.Context) {
	log := middleware.GetLoggerFromContext(c)

	userID, ok := currentUserID(c)
	if !ok {
		return
	}

	var req PlaceOrderRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		log.Warn("Invalid order request", map[string]interface{}{
			"user_id": userID,
			"error":   err.Error(),
		})
		apperrors.InvalidBody(c, err)
		return
	}

	order, err := ctrl.orderService.PlaceOrder(c.Request.Context(), userID, service.PlaceOrderInput{
		ShippingAddress: req.ShippingAddress,
		City:            req.City,
		Phone:           req.Phone,
		PaymentMethod:   req.PaymentMethod,
		Notes:           req.Notes,
	})
	if err != nil {
		if respondError(c, err, "order") {
			log.Warn("Order rejected", map[string]interface{}{
				"user_id": userID,
				"error":   err.Error(),
			})
			return
		}
		log.Error("Failed to place order", err, map[string]interface{}{
			"user_id": userID,
		})
		return
	}

	log.Info("Order placed", map[string]interface{}{
		"user_id":  userID,
		"order_id": order.ID,
		"total":    order.Total,
	})
	c.JSON(http.StatusCreated, gin.H{"order": order})
}

// GetOrder returns one of the user's orders
// GET /api/v1/orders/:id
func (ctrl *OrderController) GetOrder(c *gin.Context) {
	userID, ok := currentUserID(c)
	if !ok {
		return
	}
	orderID, ok := parseIDParam(c, "id")
	if !ok {
		return
	}

	order, err := ctrl.orderService.GetOrderByID(userID, orderID)
	if err != nil {
		if !respondError(c, err, "order") {
			middleware.GetLoggerFromContext(c).Error("Failed to fetch order", err, map[string]interface{}{
				"order_id": orderID,
			})
		}
		return
	}

	c.JSON(http.StatusOK, gin.H{"order": order})
}

// ListAllOrders returns every order, optionally filtered by status (admin)
// GET /api/v1/admin/orders
func (ctrl *OrderController) ListAllOrders(c *gin.Context) {
	var filter repository.OrderFilter
	if raw := c.Query("status"); raw != "" {
		status := model.OrderStatus(raw)
		filter.Status = &status
	}

	var err error
	if filter.Limit, err = queryInt(c, "limit"); err != nil {
		apperrors.BadRequest(c, apperrors.ValidationInvalidInput, err.Error())
		return
	}
	if filter.Offset, err = queryInt(c, "offset"); err != nil {
		apperrors.BadRequest(c, apperrors.ValidationInvalidInput, err.Error())
		return
	}

	orders, total, err := ctrl.orderService.ListOrders(filter)
	if err != nil {
		if !respondError(c, err, "order") {
			middleware.GetLoggerFromContext(c).Error("Failed to list orders", err)
		}
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"orders": orders,
		"total":  total,
	})
}

// GetAnyOrder returns an order regardless of owner (admin)
// GET /api/v1/admin/orders/:id
func (ctrl *OrderController) GetAnyOrder(c *gin.Context) {
	orderID, ok := parseIDParam(c, "id")
	if !ok {
		return
	}

	order, err := ctrl.orderService.GetOrder(orderID)
	if err != nil {
		if !respondError(c, err, "order") {
			middleware.GetLoggerFromContext(c).Error("Failed to fetch order", err, map[string]interface{}{
				"order_id": orderID,
			})
		}
		return
	}

	c.JSON(http.StatusOK, gin.H{"order": order})
}

// UpdateOrderStatus moves an order along its lifecycle (admin)
// PUT /api/v1/admin/orders/:id/status
func (ctrl *OrderController) UpdateOrderStatus(c *gin.Context) {
	log := middleware.GetLoggerFromContext(c)

	orderID, ok := parseIDParam(c, "id")
	if !ok {
		return
	}

	var req UpdateOrderStatusRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		apperrors.InvalidBody(c, err)
		return
	}

	order, err := ctrl.orderService.UpdateOrderStatus(c.Request.Context(), orderID, req.Status)
	if err != nil {
		if !respondError(c, err, "order") {
			log.Error("Failed to update order status", err, map[string]interface{}{
				"order_id": orderID,
			})
		}
		return
	}

	log.Info("Order status updated", map[string]interface{}{
		"order_id": orderID,
		"status":   order.Status,
	})
	c.JSON(http.StatusOK, gin.H{"order": order})
}

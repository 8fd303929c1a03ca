package controller

import (
	"net/http"

	"github.com/Baby-jesuset/FBGENERALHW-sj/internal/app/service"
	apperrors "github.com/Baby-jesuset/FBGENERALHW-sj/internal/errors"
	"github.com/Baby-jesuset/FBGENERALHW-sj/internal/middleware"
	ws "github.com/Baby-jesuset/FBGENERALHW-sj/internal/websocket"
	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"
)

type CartController struct {
	cartService service.CartService
	hub         *ws.Hub
	upgrader    websocket.Upgrader
}

// NewCartController serves the cart REST endpoints and, when hub is non-nil,
// the change feed. Websocket handshakes are accepted from allowedOrigins and
// from clients that send no Origin header.
func NewCartController(cartService service.CartService, hub *ws.Hub, allowedOrigins []string) *CartController {
	origins := make(map[string]bool, len(allowedOrigins))
	for _, o := range allowedOrigins {
		origins[o] = true
	}

	return &CartController{
		cartService: cartService,
		hub:         hub,
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
			CheckOrigin: func(r *http.Request) bool {
				origin := r.Header.Get("Origin")
				return origin == "" || origins["*"] || origins[origin]
			},
		},
	}
}

type AddToCartRequest struct {
	ProductID string `json:"product_id" binding:"required"`
	Quantity  *int   `json:"quantity"` // defaults to 1
}

type UpdateCartRequest struct {
	Quantity int `json:"quantity" binding:"required"`
}

// GetCart returns user's cart
// GET /api/v1/cart
func (ctrl *CartController) GetCart(c *gin.Context) {
	log := middleware.GetLoggerFromContext(c)

	userID, ok := currentUserID(c)
	if !ok {
		return
	}

	cart, err := ctrl.cartService.GetCart(c.Request.Context(), userID)
	if err != nil {
		log.Error("Failed to fetch cart", err, map[string]interface{}{
			"user_id": userID,
		})
		respondError(c, err, "cart item")
		return
	}

	c.JSON(http.StatusOK, cart)
}

// AddItem adds quantity of a product, merging with an existing line
// POST /api/v1/cart
func (ctrl *CartController) AddItem(c *gin.Context) {
	log := middleware.GetLoggerFromContext(c)

	userID, ok := currentUserID(c)
	if !ok {
		return
	}

	var req AddToCartRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		log.Warn("Invalid add to cart request", map[string]interface{}{
			"user_id": userID,
			"error":   err.Error(),
		})
		apperrors.InvalidBody(c, err)
		return
	}
	qty := 1
	if req.Quantity != nil {
		qty = *req.Quantity
	}

	item, err := ctrl.cartService.AddItem(c.Request.Context(), userID, req.ProductID, qty)
	if err != nil {
		if !respondError(c, err, "product") {
			log.Error("Failed to add item to cart", err, map[string]interface{}{
				"user_id":    userID,
				"product_id": req.ProductID,
			})
		}
		return
	}

	c.JSON(http.StatusOK, gin.H{"item": item})
}

// UpdateItem sets the quantity of an existing line
// PUT /api/v1/cart/:product_id
func (ctrl *CartController) UpdateItem(c *gin.Context) {
	log := middleware.GetLoggerFromContext(c)

	userID, ok := currentUserID(c)
	if !ok {
		return
	}
	productID := c.Param("product_id")

	var req UpdateCartRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		apperrors.BadRequest(c, apperrors.CartInvalidQuantity, "Quantity must be at least 1")
		return
	}

	item, err := ctrl.cartService.SetQuantity(c.Request.Context(), userID, productID, req.Quantity)
	if err != nil {
		if !respondError(c, err, "cart item") {
			log.Error("Failed to update cart item", err, map[string]interface{}{
				"user_id":    userID,
				"product_id": productID,
			})
		}
		return
	}

	c.JSON(http.StatusOK, gin.H{"item": item})
}

// RemoveItem deletes a line. Removing an absent line succeeds.
// DELETE /api/v1/cart/:product_id
func (ctrl *CartController) RemoveItem(c *gin.Context) {
	userID, ok := currentUserID(c)
	if !ok {
		return
	}
	productID := c.Param("product_id")

	if err := ctrl.cartService.RemoveItem(c.Request.Context(), userID, productID); err != nil {
		middleware.GetLoggerFromContext(c).Error("Failed to remove cart item", err, map[string]interface{}{
			"user_id":    userID,
			"product_id": productID,
		})
		respondError(c, err, "cart item")
		return
	}

	c.Status(http.StatusNoContent)
}

// ClearCart empties the cart
// DELETE /api/v1/cart
func (ctrl *CartController) ClearCart(c *gin.Context) {
	userID, ok := currentUserID(c)
	if !ok {
		return
	}

	if err := ctrl.cartService.ClearCart(c.Request.Context(), userID); err != nil {
		middleware.GetLoggerFromContext(c).Error("Failed to clear cart", err, map[string]interface{}{
			"user_id": userID,
		})
		respondError(c, err, "cart item")
		return
	}

	c.Status(http.StatusNoContent)
}

// Subscribe upgrades to a websocket that receives the user's cart events
// GET /api/v1/cart/ws
func (ctrl *CartController) Subscribe(c *gin.Context) {
	log := middleware.GetLoggerFromContext(c)

	userID, ok := currentUserID(c)
	if !ok {
		return
	}
	if ctrl.hub == nil {
		apperrors.RespondWithError(c, http.StatusServiceUnavailable, apperrors.InternalServerError, "Live cart updates are unavailable")
		return
	}

	conn, err := ctrl.upgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		// Upgrade has already written the error response.
		log.Warn("WebSocket upgrade failed", map[string]interface{}{
			"user_id": userID,
			"error":   err.Error(),
		})
		return
	}

	client := ws.NewClient(ctrl.hub, &ws.Conn{Conn: conn}, userID)
	ctrl.hub.Register(client)

	go client.WritePump()
	go client.ReadPump()
}

package router

import (
	"net/http"

	"github.com/Baby-jesuset/FBGENERALHW-sj/config"
	"github.com/Baby-jesuset/FBGENERALHW-sj/internal/app/controller"
	"github.com/Baby-jesuset/FBGENERALHW-sj/internal/app/model"
	"github.com/Baby-jesuset/FBGENERALHW-sj/internal/middleware"
	"github.com/gin-gonic/gin"
)

type Router struct {
	authController     *controller.AuthController
	productController  *controller.ProductController
	categoryController *controller.CategoryController
	cartController     *controller.CartController
	orderController    *controller.OrderController
	uploadController   *controller.UploadController
	authMiddleware     *middleware.AuthMiddleware
	config             *config.Config
}

func NewRouter(
	authController *controller.AuthController,
	productController *controller.ProductController,
	categoryController *controller.CategoryController,
	cartController *controller.CartController,
	orderController *controller.OrderController,
	uploadController *controller.UploadController,
	authMiddleware *middleware.AuthMiddleware,
	cfg *config.Config,
) *Router {
	return &Router{
		authController:     authController,
		productController:  productController,
		categoryController: categoryController,
		cartController:     cartController,
		orderController:    orderController,
		uploadController:   uploadController,
		authMiddleware:     authMiddleware,
		config:             cfg,
	}
}

func (r *Router) Setup() *gin.Engine {
	gin.SetMode(r.config.Server.GinMode)

	router := gin.New()

	router.Use(gin.Recovery())
	router.Use(middleware.LoggingMiddleware())
	router.Use(middleware.CORSMiddleware(r.config.CORS.AllowedOrigins))

	router.GET("/health", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{
			"status":  "healthy",
			"message": "FB Hardware API is running",
		})
	})

	authenticated := r.authMiddleware.Authenticate()

	v1 := router.Group("/api/v1")
	{
		auth := v1.Group("/auth")
		{
			auth.POST("/register", r.authController.Register)
			auth.POST("/login", r.authController.Login)
			auth.POST("/refresh", r.authController.Refresh)
			auth.GET("/me", authenticated, r.authController.GetMe)
			auth.PUT("/me", authenticated, r.authController.UpdateMe)
			auth.POST("/logout", authenticated, r.authController.Logout)
		}

		products := v1.Group("/products")
		{
			products.GET("", r.productController.ListProducts)
			products.GET("/:id", r.productController.GetProduct)
		}

		categories := v1.Group("/categories")
		{
			categories.GET("", r.categoryController.ListCategories)
			categories.GET("/:slug", r.categoryController.GetCategory)
		}

		cart := v1.Group("/cart", authenticated)
		{
			cart.GET("", r.cartController.GetCart)
			cart.POST("", r.cartController.AddItem)
			cart.DELETE("", r.cartController.ClearCart)
			cart.GET("/ws", r.cartController.Subscribe)
			cart.PUT("/:product_id", r.cartController.UpdateItem)
			cart.DELETE("/:product_id", r.cartController.RemoveItem)
		}

		orders := v1.Group("/orders", authenticated)
		{
			orders.GET("", r.orderController.GetOrders)
			orders.POST("", r.orderController.PlaceOrder)
			orders.GET("/:id", r.orderController.GetOrder)
		}

		admin := v1.Group("/admin", authenticated, r.authMiddleware.RequireRole(model.RoleAdmin))
		{
			admin.GET("/products", r.productController.ListProducts)
			admin.POST("/products", r.productController.CreateProduct)
			admin.GET("/products/:id", r.productController.GetProduct)
			admin.PUT("/products/:id", r.productController.UpdateProduct)
			admin.DELETE("/products/:id", r.productController.DeleteProduct)

			admin.GET("/categories", r.categoryController.ListCategories)
			admin.POST("/categories", r.categoryController.CreateCategory)
			admin.PUT("/categories/:id", r.categoryController.UpdateCategory)
			admin.DELETE("/categories/:id", r.categoryController.DeleteCategory)

			admin.GET("/orders", r.orderController.ListAllOrders)
			admin.GET("/orders/:id", r.orderController.GetAnyOrder)
			admin.PUT("/orders/:id/status", r.orderController.UpdateOrderStatus)

			admin.POST("/uploads/presign", r.uploadController.Presign)
		}
	}

	return router
}

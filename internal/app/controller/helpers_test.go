package controller

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http/httptest"
	"strconv"
	"testing"
	"time"

	"github.com/Baby-jesuset/FBGENERALHW-sj/config"
	"github.com/Baby-jesuset/FBGENERALHW-sj/internal/app/model"
	"github.com/Baby-jesuset/FBGENERALHW-sj/internal/app/repository"
	"github.com/Baby-jesuset/FBGENERALHW-sj/internal/app/service"
	"github.com/Baby-jesuset/FBGENERALHW-sj/internal/db"
	"github.com/Baby-jesuset/FBGENERALHW-sj/internal/middleware"
	"github.com/Baby-jesuset/FBGENERALHW-sj/internal/storage"
	ws "github.com/Baby-jesuset/FBGENERALHW-sj/internal/websocket"
	"github.com/Baby-jesuset/FBGENERALHW-sj/pkg/util"
	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"
)

const testSecret = "test-secret"

type testServer struct {
	router     *gin.Engine
	db         *gorm.DB
	hub        *ws.Hub
	user       *model.User
	userToken  string
	adminToken string
}

type fakePresigner struct {
	err error
}

func (f fakePresigner) PresignImageUpload(_ context.Context, folder, filename, contentType string) (*storage.PresignedUpload, error) {
	if f.err != nil {
		return nil, f.err
	}
	key := folder + "/abc.png"
	return &storage.PresignedUpload{
		UploadURL: "https://bucket.example.com/" + key + "?sig=1",
		FileURL:   "https://cdn.example.com/" + key,
		Key:       key,
		ExpiresAt: time.Now().Add(time.Minute),
	}, nil
}

func setupTestServer(t *testing.T, presigner ImagePresigner) *testServer {
	t.Helper()
	gin.SetMode(gin.TestMode)

	testDB, err := db.SetupTestDB()
	require.NoError(t, err)
	t.Cleanup(func() { db.CleanupTestDB(testDB) })

	hub := ws.NewHub()
	ctx, cancel := context.WithCancel(context.Background())
	go hub.Run(ctx)
	t.Cleanup(cancel)

	userRepo := repository.NewUserRepository(testDB)
	productRepo := repository.NewProductRepository(testDB)
	categoryRepo := repository.NewCategoryRepository(testDB)
	cartRepo := repository.NewCartRepository(testDB)
	orderRepo := repository.NewOrderRepository(testDB)

	authService := service.NewAuthService(userRepo, nil, testSecret, 15*time.Minute, time.Hour)
	cartService := service.NewCartService(cartRepo, productRepo, nil, hub)
	productService := service.NewProductService(productRepo, categoryRepo, orderRepo, cartRepo, cartService)
	categoryService := service.NewCategoryService(categoryRepo)
	orderService := service.NewOrderService(orderRepo, cartService, nil, config.CheckoutConfig{ShippingFee: 15000, TaxRate: 0.18}, testDB)

	authCtrl := NewAuthController(authService)
	productCtrl := NewProductController(productService)
	categoryCtrl := NewCategoryController(categoryService)
	cartCtrl := NewCartController(cartService, hub, []string{"http://localhost:3000"})
	orderCtrl := NewOrderController(orderService)
	uploadCtrl := NewUploadController(presigner)

	auth := middleware.NewAuthMiddleware(testSecret, nil)

	r := gin.New()
	api := r.Group("/api/v1")
	api.POST("/auth/register", authCtrl.Register)
	api.POST("/auth/login", authCtrl.Login)
	api.POST("/auth/refresh", authCtrl.Refresh)
	api.GET("/auth/me", auth.Authenticate(), authCtrl.GetMe)
	api.PUT("/auth/me", auth.Authenticate(), authCtrl.UpdateMe)
	api.POST("/auth/logout", auth.Authenticate(), authCtrl.Logout)

	api.GET("/products", productCtrl.ListProducts)
	api.GET("/products/:id", productCtrl.GetProduct)
	api.GET("/categories", categoryCtrl.ListCategories)
	api.GET("/categories/:slug", categoryCtrl.GetCategory)

	cart := api.Group("/cart", auth.Authenticate())
	cart.GET("", cartCtrl.GetCart)
	cart.POST("", cartCtrl.AddItem)
	cart.DELETE("", cartCtrl.ClearCart)
	cart.GET("/ws", cartCtrl.Subscribe)
	cart.PUT("/:product_id", cartCtrl.UpdateItem)
	cart.DELETE("/:product_id", cartCtrl.RemoveItem)

	orders := api.Group("/orders", auth.Authenticate())
	orders.GET("", orderCtrl.GetOrders)
	orders.POST("", orderCtrl.PlaceOrder)
	orders.GET("/:id", orderCtrl.GetOrder)

	admin := api.Group("/admin", auth.Authenticate(), auth.RequireRole(model.RoleAdmin))
	admin.POST("/products", productCtrl.CreateProduct)
	admin.PUT("/products/:id", productCtrl.UpdateProduct)
	admin.DELETE("/products/:id", productCtrl.DeleteProduct)
	admin.POST("/categories", categoryCtrl.CreateCategory)
	admin.PUT("/categories/:id", categoryCtrl.UpdateCategory)
	admin.DELETE("/categories/:id", categoryCtrl.DeleteCategory)
	admin.GET("/orders", orderCtrl.ListAllOrders)
	admin.GET("/orders/:id", orderCtrl.GetAnyOrder)
	admin.PUT("/orders/:id/status", orderCtrl.UpdateOrderStatus)
	admin.POST("/uploads/presign", uploadCtrl.Presign)

	srv := &testServer{router: r, db: testDB, hub: hub}
	srv.user, srv.userToken = createUserWithToken(t, testDB, "customer@example.com", model.RoleUser)
	_, srv.adminToken = createUserWithToken(t, testDB, "admin@example.com", model.RoleAdmin)
	return srv
}

func createUserWithToken(t *testing.T, testDB *gorm.DB, email string, role model.UserRole) (*model.User, string) {
	t.Helper()
	hash, err := util.HashPassword("password123")
	require.NoError(t, err)
	user := &model.User{Email: email, PasswordHash: hash, FullName: "Test User", Role: role}
	require.NoError(t, testDB.Create(user).Error)

	tokens, err := util.GenerateTokenPair(user.ID, user.Email, string(user.Role), testSecret, 15*time.Minute, time.Hour)
	require.NoError(t, err)
	return user, tokens.AccessToken
}

func createProduct(t *testing.T, testDB *gorm.DB, name string, price float64, stock int) *model.Product {
	t.Helper()
	product := &model.Product{Name: name, Price: price, Stock: stock}
	require.NoError(t, testDB.Create(product).Error)
	return product
}

func (s *testServer) do(t *testing.T, method, path, token string, body interface{}) *httptest.ResponseRecorder {
	t.Helper()
	var buf bytes.Buffer
	if body != nil {
		require.NoError(t, json.NewEncoder(&buf).Encode(body))
	}
	req := httptest.NewRequest(method, path, &buf)
	req.Header.Set("Content-Type", "application/json")
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	w := httptest.NewRecorder()
	s.router.ServeHTTP(w, req)
	return w
}

func decode(t *testing.T, w *httptest.ResponseRecorder) map[string]interface{} {
	t.Helper()
	var body map[string]interface{}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &body), w.Body.String())
	return body
}

func errorCode(t *testing.T, w *httptest.ResponseRecorder) string {
	t.Helper()
	code, _ := decode(t, w)["error"].(string)
	return code
}


func itoa(id uint) string {
	return strconv.FormatUint(uint64(id), 10)
}

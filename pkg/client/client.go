// Package client is a Go SDK for the FB Hardware storefront API.
package client

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"
)

const apiPrefix = "/api/v1"

type Config struct {
	// BaseURL is the server root, e.g. http://localhost:8080.
	BaseURL    string
	Timeout    time.Duration
	HTTPClient *http.Client
}

func (c Config) Validate() error {
	if c.BaseURL == "" {
		return errors.New("base URL is required")
	}
	u, err := url.Parse(c.BaseURL)
	if err != nil || (u.Scheme != "http" && u.Scheme != "https") || u.Host == "" {
		return fmt.Errorf("invalid base URL %q", c.BaseURL)
	}
	return nil
}

type Client struct {
	baseURL    string
	httpClient *http.Client
}

func NewClient(cfg Config) (*Client, error) {
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}

	httpClient := cfg.HTTPClient
	if httpClient == nil {
		timeout := cfg.Timeout
		if timeout <= 0 {
			timeout = 30 * time.Second
		}
		httpClient = &http.Client{Timeout: timeout}
	}

	return &Client{
		baseURL:    strings.TrimRight(cfg.BaseURL, "/"),
		httpClient: httpClient,
	}, nil
}

// APIError is a non-2xx response.
type APIError struct {
	StatusCode int
	Code       string `json:"error"`
	Message    string `json:"message"`
}

func (e *APIError) Error() string {
	if e.Code == "" {
		return fmt.Sprintf("api: HTTP %d", e.StatusCode)
	}
	return fmt.Sprintf("api: HTTP %d %s: %s", e.StatusCode, e.Code, e.Message)
}

// StatusOf returns the HTTP status of an *APIError, 0 for anything else.
func StatusOf(err error) int {
	var apiErr *APIError
	if errors.As(err, &apiErr) {
		return apiErr.StatusCode
	}
	return 0
}

type User struct {
	ID       uint   `json:"id"`
	Email    string `json:"email"`
	FullName string `json:"full_name"`
	Phone    string `json:"phone"`
	Address  string `json:"address"`
	City     string `json:"city"`
	Role     string `json:"role"`
}

type TokenPair struct {
	AccessToken  string `json:"access_token"`
	RefreshToken string `json:"refresh_token"`
}

type authResponse struct {
	User   *User      `json:"user"`
	Tokens *TokenPair `json:"tokens"`
}

type RegisterRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
	FullName string `json:"full_name"`
	Phone    string `json:"phone,omitempty"`
}

type Category struct {
	ID          uint   `json:"id"`
	Name        string `json:"name"`
	Slug        string `json:"slug"`
	Description string `json:"description"`
	ImageURL    string `json:"image_url"`
}

type Product struct {
	ID            string    `json:"id"`
	Name          string    `json:"name"`
	Description   string    `json:"description"`
	Price         float64   `json:"price"`
	OriginalPrice *float64  `json:"original_price,omitempty"`
	Stock         int       `json:"stock"`
	Badge         string    `json:"badge,omitempty"`
	CategoryID    *uint     `json:"category_id,omitempty"`
	Category      *Category `json:"category,omitempty"`
	ImageURL      string    `json:"image_url"`
	IsFeatured    bool      `json:"is_featured"`
}

type ProductQuery struct {
	Category string
	Search   string
	Featured *bool
	InStock  bool
	Sort     string // created_at, price or name
	Order    string // asc or desc
	Limit    int
	Offset   int
}

func (q ProductQuery) values() url.Values {
	v := url.Values{}
	if q.Category != "" {
		v.Set("category", q.Category)
	}
	if q.Search != "" {
		v.Set("search", q.Search)
	}
	if q.Featured != nil {
		v.Set("featured", strconv.FormatBool(*q.Featured))
	}
	if q.InStock {
		v.Set("in_stock", "true")
	}
	if q.Sort != "" {
		v.Set("sort", q.Sort)
	}
	if q.Order != "" {
		v.Set("order", q.Order)
	}
	if q.Limit > 0 {
		v.Set("limit", strconv.Itoa(q.Limit))
	}
	if q.Offset > 0 {
		v.Set("offset", strconv.Itoa(q.Offset))
	}
	return v
}

type ProductPage struct {
	Products []Product `json:"products"`
	Total    int64     `json:"total"`
	Limit    int       `json:"limit"`
	Offset   int       `json:"offset"`
}

type CartItem struct {
	ID        uint    `json:"id"`
	ProductID string  `json:"product_id"`
	Quantity  int     `json:"quantity"`
	Product   Product `json:"product"`
}

type Cart struct {
	Items      []CartItem `json:"items"`
	TotalItems int        `json:"total_items"`
	Subtotal   float64    `json:"subtotal"`
}

type OrderItem struct {
	ProductID   string  `json:"product_id"`
	ProductName string  `json:"product_name"`
	UnitPrice   float64 `json:"unit_price"`
	ImageURL    string  `json:"image_url"`
	Quantity    int     `json:"quantity"`
}

type Order struct {
	ID              uint        `json:"id"`
	Status          string      `json:"status"`
	Subtotal        float64     `json:"subtotal"`
	ShippingFee     float64     `json:"shipping_fee"`
	Tax             float64     `json:"tax"`
	Total           float64     `json:"total"`
	ShippingAddress string      `json:"shipping_address"`
	City            string      `json:"city"`
	Phone           string      `json:"phone"`
	PaymentMethod   string      `json:"payment_method"`
	Notes           string      `json:"notes,omitempty"`
	CreatedAt       time.Time   `json:"created_at"`
	OrderItems      []OrderItem `json:"order_items"`
}

type PlaceOrderRequest struct {
	ShippingAddress string `json:"shipping_address"`
	City            string `json:"city"`
	Phone           string `json:"phone"`
	PaymentMethod   string `json:"payment_method,omitempty"`
	Notes           string `json:"notes,omitempty"`
}

func (c *Client) Register(ctx context.Context, req RegisterRequest) (*User, *TokenPair, error) {
	var resp authResponse
	if err := c.do(ctx, http.MethodPost, "/auth/register", "", req, &resp); err != nil {
		return nil, nil, err
	}
	return resp.User, resp.Tokens, nil
}

func (c *Client) Login(ctx context.Context, email, password string) (*User, *TokenPair, error) {
	var resp authResponse
	body := map[string]string{"email": email, "password": password}
	if err := c.do(ctx, http.MethodPost, "/auth/login", "", body, &resp); err != nil {
		return nil, nil, err
	}
	return resp.User, resp.Tokens, nil
}

func (c *Client) Refresh(ctx context.Context, refreshToken string) (*User, *TokenPair, error) {
	var resp authResponse
	body := map[string]string{"refresh_token": refreshToken}
	if err := c.do(ctx, http.MethodPost, "/auth/refresh", "", body, &resp); err != nil {
		return nil, nil, err
	}
	return resp.User, resp.Tokens, nil
}

func (c *Client) Me(ctx context.Context, token string) (*User, error) {
	var resp authResponse
	if err := c.do(ctx, http.MethodGet, "/auth/me", token, nil, &resp); err != nil {
		return nil, err
	}
	return resp.User, nil
}

func (c *Client) Logout(ctx context.Context, token string) error {
	return c.do(ctx, http.MethodPost, "/auth/logout", token, nil, nil)
}

func (c *Client) ListProducts(ctx context.Context, q ProductQuery) (*ProductPage, error) {
	path := "/products"
	if v := q.values(); len(v) > 0 {
		path += "?" + v.Encode()
	}
	var page ProductPage
	if err := c.do(ctx, http.MethodGet, path, "", nil, &page); err != nil {
		return nil, err
	}
	return &page, nil
}

func (c *Client) GetProduct(ctx context.Context, id string) (*Product, error) {
	var resp struct {
		Product *Product `json:"product"`
	}
	if err := c.do(ctx, http.MethodGet, "/products/"+url.PathEscape(id), "", nil, &resp); err != nil {
		return nil, err
	}
	return resp.Product, nil
}

func (c *Client) ListCategories(ctx context.Context) ([]Category, error) {
	var resp struct {
		Categories []Category `json:"categories"`
	}
	if err := c.do(ctx, http.MethodGet, "/categories", "", nil, &resp); err != nil {
		return nil, err
	}
	return resp.Categories, nil
}

func (c *Client) GetCart(ctx context.Context, token string) (*Cart, error) {
	var cart Cart
	if err := c.do(ctx, http.MethodGet, "/cart", token, nil, &cart); err != nil {
		return nil, err
	}
	return &cart, nil
}

// AddToCart adds qty to the line for productID, creating it if needed.
func (c *Client) AddToCart(ctx context.Context, token, productID string, qty int) (*CartItem, error) {
	var resp struct {
		Item *CartItem `json:"item"`
	}
	body := map[string]interface{}{"product_id": productID, "quantity": qty}
	if err := c.do(ctx, http.MethodPost, "/cart", token, body, &resp); err != nil {
		return nil, err
	}
	return resp.Item, nil
}

// SetCartQuantity replaces the quantity of an existing line.
func (c *Client) SetCartQuantity(ctx context.Context, token, productID string, qty int) (*CartItem, error) {
	var resp struct {
		Item *CartItem `json:"item"`
	}
	body := map[string]int{"quantity": qty}
	if err := c.do(ctx, http.MethodPut, "/cart/"+url.PathEscape(productID), token, body, &resp); err != nil {
		return nil, err
	}
	return resp.Item, nil
}

func (c *Client) RemoveFromCart(ctx context.Context, token, productID string) error {
	return c.do(ctx, http.MethodDelete, "/cart/"+url.PathEscape(productID), token, nil, nil)
}

func (c *Client) ClearCart(ctx context.Context, token string) error {
	return c.do(ctx, http.MethodDelete, "/cart", token, nil, nil)
}

func (c *Client) PlaceOrder(ctx context.Context, token string, req PlaceOrderRequest) (*Order, error) {
	var resp struct {
		Order *Order `json:"order"`
	}
	if err := c.do(ctx, http.MethodPost, "/orders", token, req, &resp); err != nil {
		return nil, err
	}
	return resp.Order, nil
}

func (c *Client) ListOrders(ctx context.Context, token string) ([]Order, error) {
	var resp struct {
		Orders []Order `json:"orders"`
	}
	if err := c.do(ctx, http.MethodGet, "/orders", token, nil, &resp); err != nil {
		return nil, err
	}
	return resp.Orders, nil
}

// do sends payload as JSON and decodes a 2xx body into out when out is
// non-nil. Other statuses come back as *APIError.
func (c *Client) do(ctx context.Context, method, path, token string, payload, out interface{}) error {
	var body io.Reader
	if payload != nil {
		reqBody, err := json.Marshal(payload)
		if err != nil {
			return fmt.Errorf("failed to marshal request body: %w", err)
		}
		body = bytes.NewReader(reqBody)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+apiPrefix+path, body)
	if err != nil {
		return fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Accept", "application/json")
	if payload != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("%s %s: %w", method, path, err)
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return fmt.Errorf("failed to read response body: %w", err)
	}

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		apiErr := &APIError{StatusCode: resp.StatusCode}
		_ = json.Unmarshal(respBody, apiErr)
		return apiErr
	}

	if out == nil || len(respBody) == 0 {
		return nil
	}
	if err := json.Unmarshal(respBody, out); err != nil {
		return fmt.Errorf("failed to unmarshal response: %w", err)
	}
	return nil
}

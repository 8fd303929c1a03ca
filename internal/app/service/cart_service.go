package service

import (
	"context"
	"errors"
	"strconv"

	"github.com/Baby-jesuset/FBGENERALHW-sj/internal/app/model"
	"github.com/Baby-jesuset/FBGENERALHW-sj/internal/app/repository"
	"github.com/Baby-jesuset/FBGENERALHW-sj/internal/cache"
	"github.com/Baby-jesuset/FBGENERALHW-sj/internal/websocket"
	"github.com/Baby-jesuset/FBGENERALHW-sj/pkg/logger"
	"golang.org/x/sync/singleflight"
	"gorm.io/gorm"
)

var (
	ErrCartItemNotFound  = errors.New("cart item not found")
	ErrInvalidQuantity   = errors.New("quantity must be at least 1")
	ErrInsufficientStock = errors.New("insufficient stock")
)

// CartNotifier pushes change events to a user's open sessions.
type CartNotifier interface {
	NotifyCart(userID uint, event websocket.CartEvent)
}

type noopNotifier struct{}

func (noopNotifier) NotifyCart(uint, websocket.CartEvent) {}

// CartView is a user's cart with totals at current catalog prices.
type CartView struct {
	Items      []model.CartItem `json:"items"`
	TotalItems int              `json:"total_items"`
	Subtotal   float64          `json:"subtotal"`
}

func newCartView(items []model.CartItem) *CartView {
	view := &CartView{Items: items}
	if view.Items == nil {
		view.Items = []model.CartItem{}
	}
	for i := range items {
		view.TotalItems += items[i].Quantity
		view.Subtotal += items[i].LineTotal()
	}
	return view
}

type CartService interface {
	GetCart(ctx context.Context, userID uint) (*CartView, error)
	// AddItem adds qty to the line, creating it when absent.
	AddItem(ctx context.Context, userID uint, productID string, qty int) (*model.CartItem, error)
	// SetQuantity replaces the quantity of an existing line.
	SetQuantity(ctx context.Context, userID uint, productID string, qty int) (*model.CartItem, error)
	// RemoveItem succeeds whether or not the line existed.
	RemoveItem(ctx context.Context, userID uint, productID string) error
	ClearCart(ctx context.Context, userID uint) error
	// Invalidate drops the cached cart and tells open sessions to reload.
	Invalidate(ctx context.Context, userID uint, event websocket.CartEvent)
}

type cartService struct {
	cartRepo    repository.CartRepository
	productRepo repository.ProductRepository
	cache       cache.CartCache
	notifier    CartNotifier
	sfg         singleflight.Group
}

func NewCartService(
	cartRepo repository.CartRepository,
	productRepo repository.ProductRepository,
	cartCache cache.CartCache,
	notifier CartNotifier,
) CartService {
	if cartCache == nil {
		cartCache = cache.NoopCartCache{}
	}
	if notifier == nil {
		notifier = noopNotifier{}
	}
	return &cartService{
		cartRepo:    cartRepo,
		productRepo: productRepo,
		cache:       cartCache,
		notifier:    notifier,
	}
}

func (s *cartService) GetCart(ctx context.Context, userID uint) (*CartView, error) {
	v, err, shared := s.sfg.Do(strconv.FormatUint(uint64(userID), 10), func() (interface{}, error) {
		items, err := s.cache.Get(ctx, userID)
		if err == nil {
			return items, nil
		}
		if !errors.Is(err, cache.ErrCacheMiss) {
			logger.Warn("Cart cache read failed", map[string]interface{}{
				"user_id": userID,
				"error":   err.Error(),
			})
		}

		// read before the rows so a write committed meanwhile voids the fill
		version, verr := s.cache.Version(ctx, userID)

		items, err = s.cartRepo.FindByUserID(userID)
		if err != nil {
			logger.Error("Failed to fetch user cart", err, map[string]interface{}{
				"user_id": userID,
			})
			return nil, err
		}

		if verr != nil {
			logger.Warn("Cart cache version read failed", map[string]interface{}{
				"user_id": userID,
				"error":   verr.Error(),
			})
			return items, nil
		}
		stored, err := s.cache.Set(ctx, userID, version, items)
		if err != nil {
			logger.Warn("Cart cache write failed", map[string]interface{}{
				"user_id": userID,
				"error":   err.Error(),
			})
		} else if !stored {
			logger.Debug("Cart cache fill skipped after concurrent write", map[string]interface{}{
				"user_id": userID,
			})
		}
		return items, nil
	})
	if err != nil {
		return nil, err
	}

	items := v.([]model.CartItem)
	logger.Debug("User cart fetched", map[string]interface{}{
		"user_id": userID,
		"count":   len(items),
		"shared":  shared,
	})
	return newCartView(items), nil
}

func (s *cartService) AddItem(ctx context.Context, userID uint, productID string, qty int) (*model.CartItem, error) {
	logger.Info("Adding item to cart", map[string]interface{}{
		"user_id":    userID,
		"product_id": productID,
		"quantity":   qty,
	})

	if qty < 1 {
		return nil, ErrInvalidQuantity
	}

	product, err := s.findProduct(productID)
	if err != nil {
		return nil, err
	}

	existing, err := s.cartRepo.FindByUserAndProduct(userID, productID)
	if err != nil && !errors.Is(err, gorm.ErrRecordNotFound) {
		logger.Error("Failed to check existing cart item", err, map[string]interface{}{
			"user_id":    userID,
			"product_id": productID,
		})
		return nil, err
	}

	requested := qty
	if existing != nil {
		requested += existing.Quantity
	}
	if product.Stock < requested {
		logger.Warn("Cannot add to cart: insufficient stock", map[string]interface{}{
			"user_id":    userID,
			"product_id": productID,
			"requested":  requested,
			"available":  product.Stock,
		})
		return nil, ErrInsufficientStock
	}

	// the upsert re-checks stock so concurrent adds cannot overshoot it
	item, err := s.cartRepo.AddQuantity(userID, productID, qty)
	if errors.Is(err, repository.ErrStockExceeded) {
		logger.Warn("Cannot add to cart: concurrent add used remaining stock", map[string]interface{}{
			"user_id":    userID,
			"product_id": productID,
			"quantity":   qty,
		})
		return nil, ErrInsufficientStock
	}
	if err != nil {
		logger.Error("Failed to add cart item", err, map[string]interface{}{
			"user_id":    userID,
			"product_id": productID,
		})
		return nil, err
	}

	s.Invalidate(ctx, userID, websocket.CartEvent{
		Type:      websocket.CartUpdated,
		ProductID: productID,
		Quantity:  item.Quantity,
	})
	return item, nil
}

func (s *cartService) SetQuantity(ctx context.Context, userID uint, productID string, qty int) (*model.CartItem, error) {
	logger.Info("Setting cart item quantity", map[string]interface{}{
		"user_id":    userID,
		"product_id": productID,
		"quantity":   qty,
	})

	if qty < 1 {
		return nil, ErrInvalidQuantity
	}

	product, err := s.findProduct(productID)
	if err != nil {
		return nil, err
	}
	if product.Stock < qty {
		logger.Warn("Cannot update cart: insufficient stock", map[string]interface{}{
			"user_id":    userID,
			"product_id": productID,
			"requested":  qty,
			"available":  product.Stock,
		})
		return nil, ErrInsufficientStock
	}

	item, err := s.cartRepo.SetQuantity(userID, productID, qty)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrCartItemNotFound
		}
		logger.Error("Failed to update cart item", err, map[string]interface{}{
			"user_id":    userID,
			"product_id": productID,
		})
		return nil, err
	}

	s.Invalidate(ctx, userID, websocket.CartEvent{
		Type:      websocket.CartUpdated,
		ProductID: productID,
		Quantity:  item.Quantity,
	})
	return item, nil
}

func (s *cartService) RemoveItem(ctx context.Context, userID uint, productID string) error {
	removed, err := s.cartRepo.Delete(userID, productID)
	if err != nil {
		return err
	}

	logger.Info("Cart item removed", map[string]interface{}{
		"user_id":    userID,
		"product_id": productID,
		"existed":    removed,
	})
	if removed {
		s.Invalidate(ctx, userID, websocket.CartEvent{
			Type:      websocket.CartUpdated,
			ProductID: productID,
		})
	}
	return nil
}

func (s *cartService) ClearCart(ctx context.Context, userID uint) error {
	if err := s.cartRepo.DeleteByUserID(userID); err != nil {
		return err
	}

	logger.Info("Cart cleared", map[string]interface{}{
		"user_id": userID,
	})
	s.Invalidate(ctx, userID, websocket.CartEvent{Type: websocket.CartCleared})
	return nil
}

func (s *cartService) Invalidate(ctx context.Context, userID uint, event websocket.CartEvent) {
	if err := s.cache.Delete(ctx, userID); err != nil {
		logger.Warn("Cart cache invalidation failed", map[string]interface{}{
			"user_id": userID,
			"error":   err.Error(),
		})
	}
	s.notifier.NotifyCart(userID, event)
}

func (s *cartService) findProduct(productID string) (*model.Product, error) {
	product, err := s.productRepo.FindByID(productID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			logger.Warn("Cart operation on unknown product", map[string]interface{}{
				"product_id": productID,
			})
			return nil, ErrProductNotFound
		}
		logger.Error("Failed to fetch product", err, map[string]interface{}{
			"product_id": productID,
		})
		return nil, err
	}
	return product, nil
}

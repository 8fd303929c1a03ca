package client

import (
	"context"
	"fmt"
	"net/http"

	"github.com/Baby-jesuset/FBGENERALHW-sj/pkg/cartsync"
)

// CartStore is the server-side cart seen through a Session.
type CartStore struct {
	client  *Client
	session *Session
}

var _ cartsync.Store = (*CartStore)(nil)

func NewCartStore(c *Client, s *Session) *CartStore {
	return &CartStore{client: c, session: s}
}

func (s *CartStore) token(id cartsync.Identity) (string, error) {
	token, ok := s.session.tokenFor(id)
	if !ok {
		return "", fmt.Errorf("%w: identity %q is not signed in", cartsync.ErrUnauthorized, id)
	}
	return token, nil
}

func (s *CartStore) FetchCartLines(ctx context.Context, id cartsync.Identity) ([]cartsync.Line, error) {
	token, err := s.token(id)
	if err != nil {
		return nil, err
	}

	cart, err := s.client.GetCart(ctx, token)
	if err != nil {
		return nil, classify(err)
	}

	lines := make([]cartsync.Line, 0, len(cart.Items))
	for _, item := range cart.Items {
		lines = append(lines, lineOf(item))
	}
	return lines, nil
}

func (s *CartStore) UpsertCartLine(ctx context.Context, id cartsync.Identity, ref string, qty int, mode cartsync.UpsertMode) (cartsync.Line, error) {
	token, err := s.token(id)
	if err != nil {
		return cartsync.Line{}, err
	}

	var item *CartItem
	if mode == cartsync.Replace {
		item, err = s.client.SetCartQuantity(ctx, token, ref, qty)
	} else {
		item, err = s.client.AddToCart(ctx, token, ref, qty)
	}
	if err != nil {
		return cartsync.Line{}, classify(err)
	}
	if item == nil {
		return cartsync.Line{ProductRef: ref, Quantity: qty}, nil
	}
	return lineOf(*item), nil
}

func (s *CartStore) DeleteCartLine(ctx context.Context, id cartsync.Identity, ref string) error {
	token, err := s.token(id)
	if err != nil {
		return err
	}
	err = s.client.RemoveFromCart(ctx, token, ref)
	if StatusOf(err) == http.StatusNotFound {
		return nil
	}
	if err != nil {
		return classify(err)
	}
	return nil
}

func (s *CartStore) DeleteAllCartLines(ctx context.Context, id cartsync.Identity) error {
	token, err := s.token(id)
	if err != nil {
		return err
	}
	if err := s.client.ClearCart(ctx, token); err != nil {
		return classify(err)
	}
	return nil
}

func lineOf(item CartItem) cartsync.Line {
	return cartsync.Line{
		ProductRef:  item.ProductID,
		Quantity:    item.Quantity,
		UnitPrice:   item.Product.Price,
		DisplayName: item.Product.Name,
		ImageRef:    item.Product.ImageURL,
	}
}

// classify wraps err with the cartsync sentinel for its HTTP status.
// Transport failures and unexpected statuses are transient.
func classify(err error) error {
	var kind error
	switch StatusOf(err) {
	case http.StatusUnauthorized, http.StatusForbidden:
		kind = cartsync.ErrUnauthorized
	case http.StatusNotFound:
		kind = cartsync.ErrNotFound
	case http.StatusBadRequest, http.StatusConflict, http.StatusUnprocessableEntity:
		kind = cartsync.ErrRejected
	default:
		kind = cartsync.ErrTransient
	}
	return fmt.Errorf("%w: %w", kind, err)
}

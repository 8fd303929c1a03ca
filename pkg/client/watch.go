package client

import (
	"context"
	"encoding/json"
	"errors"
	"net/url"
	"strings"
	"time"

	"github.com/Baby-jesuset/FBGENERALHW-sj/pkg/logger"
	"github.com/gorilla/websocket"
)

// CartEvent is a change made to the cart from any session of the user.
type CartEvent struct {
	Type      string    `json:"type"` // cart.updated or cart.cleared
	ProductID string    `json:"product_id,omitempty"`
	Quantity  int       `json:"quantity"`
	At        time.Time `json:"at"`
}

// WatchCart streams the signed-in user's cart events to onEvent until ctx
// ends, which returns nil. Callers typically reload a cartsync.Controller
// from onEvent.
func (s *Session) WatchCart(ctx context.Context, onEvent func(CartEvent)) error {
	token := s.AccessToken()
	if token == "" {
		return ErrNotSignedIn
	}
	return s.client.WatchCart(ctx, token, onEvent)
}

func (c *Client) WatchCart(ctx context.Context, token string, onEvent func(CartEvent)) error {
	wsURL, err := c.websocketURL("/cart/ws", token)
	if err != nil {
		return err
	}

	conn, resp, err := websocket.DefaultDialer.DialContext(ctx, wsURL, nil)
	if resp != nil && resp.Body != nil {
		resp.Body.Close()
	}
	if err != nil {
		if resp != nil {
			return &APIError{StatusCode: resp.StatusCode, Message: err.Error()}
		}
		return err
	}
	defer conn.Close()

	done := make(chan struct{})
	defer close(done)
	go func() {
		select {
		case <-ctx.Done():
			conn.WriteControl(websocket.CloseMessage,
				websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""),
				time.Now().Add(time.Second))
			conn.Close()
		case <-done:
		}
	}()

	for {
		_, data, err := conn.ReadMessage()
		if err != nil {
			if ctx.Err() != nil {
				return nil
			}
			var closeErr *websocket.CloseError
			if errors.As(err, &closeErr) && closeErr.Code == websocket.CloseNormalClosure {
				return nil
			}
			return err
		}

		var event CartEvent
		if err := json.Unmarshal(data, &event); err != nil {
			logger.Warn("Ignoring malformed cart event", map[string]interface{}{
				"error": err.Error(),
			})
			continue
		}
		if !strings.HasPrefix(event.Type, "cart.") {
			continue
		}
		onEvent(event)
	}
}

func (c *Client) websocketURL(path, token string) (string, error) {
	u, err := url.Parse(c.baseURL + apiPrefix + path)
	if err != nil {
		return "", err
	}
	switch u.Scheme {
	case "https":
		u.Scheme = "wss"
	default:
		u.Scheme = "ws"
	}
	q := u.Query()
	q.Set("token", token)
	u.RawQuery = q.Encode()
	return u.String(), nil
}

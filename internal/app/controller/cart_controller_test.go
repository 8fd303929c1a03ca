package controller

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	apperrors "github.com/Baby-jesuset/FBGENERALHW-sj/internal/errors"
	ws "github.com/Baby-jesuset/FBGENERALHW-sj/internal/websocket"
	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCartController_Unauthorized(t *testing.T) {
	srv := setupTestServer(t, nil)

	w := srv.do(t, http.MethodGet, "/api/v1/cart", "", nil)
	assert.Equal(t, http.StatusUnauthorized, w.Code)
}

func TestCartController_AddAndGet(t *testing.T) {
	srv := setupTestServer(t, nil)
	p := createProduct(t, srv.db, "Cement 50kg", 38000, 10)

	// quantity defaults to 1
	w := srv.do(t, http.MethodPost, "/api/v1/cart", srv.userToken, map[string]string{"product_id": p.ID})
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	assert.Equal(t, float64(1), decode(t, w)["item"].(map[string]interface{})["quantity"])

	qty := 2
	w = srv.do(t, http.MethodPost, "/api/v1/cart", srv.userToken, AddToCartRequest{ProductID: p.ID, Quantity: &qty})
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, float64(3), decode(t, w)["item"].(map[string]interface{})["quantity"])

	w = srv.do(t, http.MethodGet, "/api/v1/cart", srv.userToken, nil)
	require.Equal(t, http.StatusOK, w.Code)
	body := decode(t, w)
	assert.Equal(t, float64(3), body["total_items"])
	assert.Equal(t, float64(114000), body["subtotal"])
	assert.Len(t, body["items"], 1)
}

func TestCartController_EmptyCart(t *testing.T) {
	srv := setupTestServer(t, nil)

	w := srv.do(t, http.MethodGet, "/api/v1/cart", srv.userToken, nil)
	require.Equal(t, http.StatusOK, w.Code)
	body := decode(t, w)
	assert.Equal(t, []interface{}{}, body["items"])
	assert.Equal(t, float64(0), body["subtotal"])
}

func TestCartController_Errors(t *testing.T) {
	srv := setupTestServer(t, nil)
	p := createProduct(t, srv.db, "Roofing Nails 1kg", 9000, 2)

	tests := []struct {
		name   string
		method string
		path   string
		body   interface{}
		status int
		code   string
	}{
		{"unknown product", http.MethodPost, "/api/v1/cart", map[string]interface{}{"product_id": "missing"}, http.StatusNotFound, apperrors.ProductNotFound},
		{"over stock", http.MethodPost, "/api/v1/cart", map[string]interface{}{"product_id": p.ID, "quantity": 3}, http.StatusConflict, apperrors.ProductOutOfStock},
		{"zero quantity add", http.MethodPost, "/api/v1/cart", map[string]interface{}{"product_id": p.ID, "quantity": 0}, http.StatusBadRequest, apperrors.CartInvalidQuantity},
		{"missing product id", http.MethodPost, "/api/v1/cart", map[string]interface{}{"quantity": 1}, http.StatusBadRequest, apperrors.ValidationInvalidInput},
		{"update absent line", http.MethodPut, "/api/v1/cart/" + p.ID, map[string]interface{}{"quantity": 1}, http.StatusNotFound, apperrors.CartItemNotFound},
		{"update to zero", http.MethodPut, "/api/v1/cart/" + p.ID, map[string]interface{}{"quantity": 0}, http.StatusBadRequest, apperrors.CartInvalidQuantity},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			w := srv.do(t, tt.method, tt.path, srv.userToken, tt.body)
			assert.Equal(t, tt.status, w.Code, w.Body.String())
			assert.Equal(t, tt.code, errorCode(t, w))
		})
	}
}

func TestCartController_UpdateRemoveClear(t *testing.T) {
	srv := setupTestServer(t, nil)
	a := createProduct(t, srv.db, "Paint Brush", 5000, 20)
	b := createProduct(t, srv.db, "Sandpaper", 1500, 20)

	for _, id := range []string{a.ID, b.ID} {
		w := srv.do(t, http.MethodPost, "/api/v1/cart", srv.userToken, map[string]string{"product_id": id})
		require.Equal(t, http.StatusOK, w.Code)
	}

	w := srv.do(t, http.MethodPut, "/api/v1/cart/"+a.ID, srv.userToken, UpdateCartRequest{Quantity: 5})
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, float64(5), decode(t, w)["item"].(map[string]interface{})["quantity"])

	w = srv.do(t, http.MethodDelete, "/api/v1/cart/"+b.ID, srv.userToken, nil)
	assert.Equal(t, http.StatusNoContent, w.Code)
	// removing again still succeeds
	w = srv.do(t, http.MethodDelete, "/api/v1/cart/"+b.ID, srv.userToken, nil)
	assert.Equal(t, http.StatusNoContent, w.Code)

	w = srv.do(t, http.MethodGet, "/api/v1/cart", srv.userToken, nil)
	assert.Equal(t, float64(5), decode(t, w)["total_items"])

	w = srv.do(t, http.MethodDelete, "/api/v1/cart", srv.userToken, nil)
	assert.Equal(t, http.StatusNoContent, w.Code)

	w = srv.do(t, http.MethodGet, "/api/v1/cart", srv.userToken, nil)
	assert.Equal(t, float64(0), decode(t, w)["total_items"])
}

func TestCartController_Subscribe(t *testing.T) {
	srv := setupTestServer(t, nil)
	p := createProduct(t, srv.db, "Wood Glue", 7000, 5)

	httpSrv := httptest.NewServer(srv.router)
	defer httpSrv.Close()

	url := "ws" + strings.TrimPrefix(httpSrv.URL, "http") + "/api/v1/cart/ws?token=" + srv.userToken
	conn, resp, err := websocket.DefaultDialer.Dial(url, nil)
	require.NoError(t, err)
	defer resp.Body.Close()
	defer conn.Close()

	require.Eventually(t, func() bool {
		return srv.hub.SessionCount(srv.user.ID) == 1
	}, 2*time.Second, 10*time.Millisecond)

	w := srv.do(t, http.MethodPost, "/api/v1/cart", srv.userToken, map[string]string{"product_id": p.ID})
	require.Equal(t, http.StatusOK, w.Code)

	require.NoError(t, conn.SetReadDeadline(time.Now().Add(2*time.Second)))
	_, data, err := conn.ReadMessage()
	require.NoError(t, err)

	var event ws.CartEvent
	require.NoError(t, json.Unmarshal(data, &event))
	assert.Equal(t, ws.CartUpdated, event.Type)
	assert.Equal(t, p.ID, event.ProductID)
	assert.Equal(t, 1, event.Quantity)
}

func TestCartController_Subscribe_RejectsForeignOrigin(t *testing.T) {
	srv := setupTestServer(t, nil)

	httpSrv := httptest.NewServer(srv.router)
	defer httpSrv.Close()

	url := "ws" + strings.TrimPrefix(httpSrv.URL, "http") + "/api/v1/cart/ws?token=" + srv.userToken
	header := http.Header{"Origin": []string{"https://evil.example.com"}}
	_, resp, err := websocket.DefaultDialer.Dial(url, header)
	require.Error(t, err)
	require.NotNil(t, resp)
	defer resp.Body.Close()
	assert.Equal(t, http.StatusForbidden, resp.StatusCode)
}

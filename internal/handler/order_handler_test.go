package handler

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/shopspring/decimal"

	"github.com/hitoshi/shopfront/internal/middleware"
	"github.com/hitoshi/shopfront/internal/model"
	"github.com/hitoshi/shopfront/internal/store"
)

// mockOrderService はOrderServiceInterfaceのモック実装。
type mockOrderService struct {
	checkoutFn func(ctx context.Context, cart *store.CartStore, credential string, shipping model.ShippingInfo) (model.Order, error)
	listMineFn func(ctx context.Context, credential string) ([]model.Order, error)
}

var _ OrderServiceInterface = (*mockOrderService)(nil)

func (m *mockOrderService) Checkout(ctx context.Context, cart *store.CartStore, credential string, shipping model.ShippingInfo) (model.Order, error) {
	return m.checkoutFn(ctx, cart, credential, shipping)
}

func (m *mockOrderService) ListMine(ctx context.Context, credential string) ([]model.Order, error) {
	return m.listMineFn(ctx, credential)
}

// authedRequest はログイン済みセッションとビジターIDを注入したリクエストを作る。
func authedRequest(method, path, body, visitorID string) *http.Request {
	var req *http.Request
	if body != "" {
		req = httptest.NewRequest(method, path, strings.NewReader(body))
	} else {
		req = httptest.NewRequest(method, path, nil)
	}

	ss := store.NewSessionStore()
	ss.Login(model.User{ID: "user-1", Name: "Taro"}, "token-1")
	ctx := middleware.ContextWithSessionStore(req.Context(), ss)
	ctx = middleware.ContextWithVisitorID(ctx, visitorID)
	return req.WithContext(ctx)
}

func validShippingJSON() string {
	return `{"shipping_info":{"name":"Taro","address":"1-2-3","phone":"000","pin":"100-0001","city":"Tokyo","state":"Tokyo"}}`
}

// 注文確定が201で成功することを検証
func TestOrderHandler_Checkout_Success(t *testing.T) {
	service := &mockOrderService{
		checkoutFn: func(ctx context.Context, cart *store.CartStore, credential string, shipping model.ShippingInfo) (model.Order, error) {
			if credential != "token-1" {
				t.Errorf("credential = %s, want token-1", credential)
			}
			if shipping.City != "Tokyo" {
				t.Errorf("shipping.City = %s, want Tokyo", shipping.City)
			}
			return model.Order{
				ID:          "order-1",
				Status:      model.OrderStatusPending,
				TotalAmount: decimal.NewFromInt(1200),
			}, nil
		},
	}
	h := NewOrderHandler(service, newMemCartStorage())

	req := authedRequest(http.MethodPost, "/api/orders", validShippingJSON(), "visitor-1")
	w := httptest.NewRecorder()

	h.Checkout(w, req)

	if w.Result().StatusCode != http.StatusCreated {
		t.Fatalf("status = %d, want 201", w.Result().StatusCode)
	}
	var order model.Order
	json.NewDecoder(w.Result().Body).Decode(&order)
	if order.ID != "order-1" || order.Status != model.OrderStatusPending {
		t.Errorf("order = %+v", order)
	}
}

// 空カートの注文が400で拒否されることを検証
func TestOrderHandler_Checkout_EmptyCart(t *testing.T) {
	service := &mockOrderService{
		checkoutFn: func(ctx context.Context, cart *store.CartStore, credential string, shipping model.ShippingInfo) (model.Order, error) {
			return model.Order{}, model.NewEmptyCartError()
		},
	}
	h := NewOrderHandler(service, newMemCartStorage())

	req := authedRequest(http.MethodPost, "/api/orders", validShippingJSON(), "visitor-1")
	w := httptest.NewRecorder()

	h.Checkout(w, req)

	if w.Result().StatusCode != http.StatusBadRequest {
		t.Errorf("status = %d, want 400", w.Result().StatusCode)
	}
	var body apiErrorResponse
	json.NewDecoder(w.Result().Body).Decode(&body)
	if body.Code != model.ErrCodeEmptyCart {
		t.Errorf("code = %s, want %s", body.Code, model.ErrCodeEmptyCart)
	}
}

// 配送先不備が400とINVALID_SHIPPINGで返ることを検証
func TestOrderHandler_Checkout_InvalidShipping(t *testing.T) {
	service := &mockOrderService{
		checkoutFn: func(ctx context.Context, cart *store.CartStore, credential string, shipping model.ShippingInfo) (model.Order, error) {
			return model.Order{}, model.NewInvalidShippingError([]string{"city"})
		},
	}
	h := NewOrderHandler(service, newMemCartStorage())

	req := authedRequest(http.MethodPost, "/api/orders",
		`{"shipping_info":{"name":"Taro"}}`, "visitor-1")
	w := httptest.NewRecorder()

	h.Checkout(w, req)

	if w.Result().StatusCode != http.StatusBadRequest {
		t.Errorf("status = %d, want 400", w.Result().StatusCode)
	}
}

// コマースAPI障害が502で返ることを検証
func TestOrderHandler_Checkout_UpstreamFailure(t *testing.T) {
	service := &mockOrderService{
		checkoutFn: func(ctx context.Context, cart *store.CartStore, credential string, shipping model.ShippingInfo) (model.Order, error) {
			return model.Order{}, model.NewUpstreamFailedError()
		},
	}
	h := NewOrderHandler(service, newMemCartStorage())

	req := authedRequest(http.MethodPost, "/api/orders", validShippingJSON(), "visitor-1")
	w := httptest.NewRecorder()

	h.Checkout(w, req)

	if w.Result().StatusCode != http.StatusBadGateway {
		t.Errorf("status = %d, want 502", w.Result().StatusCode)
	}
}

// 注文履歴が返ることを検証
func TestOrderHandler_ListMyOrders(t *testing.T) {
	service := &mockOrderService{
		listMineFn: func(ctx context.Context, credential string) ([]model.Order, error) {
			return []model.Order{{ID: "order-1"}, {ID: "order-2"}}, nil
		},
	}
	h := NewOrderHandler(service, newMemCartStorage())

	req := authedRequest(http.MethodGet, "/api/orders/mine", "", "visitor-1")
	w := httptest.NewRecorder()

	h.ListMyOrders(w, req)

	if w.Result().StatusCode != http.StatusOK {
		t.Fatalf("status = %d, want 200", w.Result().StatusCode)
	}
	var orders []model.Order
	json.NewDecoder(w.Result().Body).Decode(&orders)
	if len(orders) != 2 {
		t.Errorf("len = %d, want 2", len(orders))
	}
}

// セッションストアなしのリクエストが500で拒否されることを検証
// （RequireUserを通過していない構成ミス）
func TestOrderHandler_Checkout_NoSessionStore(t *testing.T) {
	h := NewOrderHandler(&mockOrderService{}, newMemCartStorage())

	req := httptest.NewRequest(http.MethodPost, "/api/orders", strings.NewReader(validShippingJSON()))
	w := httptest.NewRecorder()

	h.Checkout(w, req)

	if w.Result().StatusCode != http.StatusInternalServerError {
		t.Errorf("status = %d, want 500", w.Result().StatusCode)
	}
}

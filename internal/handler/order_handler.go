package handler

import (
	"context"
	"encoding/json"
	"net/http"

	"github.com/hitoshi/shopfront/internal/middleware"
	"github.com/hitoshi/shopfront/internal/model"
	"github.com/hitoshi/shopfront/internal/store"
)

// OrderServiceInterface は注文ハンドラーが必要とするサービスインターフェース。
type OrderServiceInterface interface {
	// Checkout はカート内容から注文を確定する。成功時にカートはクリアされる。
	Checkout(ctx context.Context, cart *store.CartStore, credential string, shipping model.ShippingInfo) (model.Order, error)
	// ListMine はログイン中ユーザーの注文履歴を取得する。
	ListMine(ctx context.Context, credential string) ([]model.Order, error)
}

// OrderHandler は注文のHTTPハンドラー。RequireUserの後段に配置する。
type OrderHandler struct {
	service OrderServiceInterface
	storage store.CartStorage
}

// NewOrderHandler はOrderHandlerを生成する。
func NewOrderHandler(service OrderServiceInterface, storage store.CartStorage) *OrderHandler {
	return &OrderHandler{
		service: service,
		storage: storage,
	}
}

// checkoutRequest は注文確定リクエストのボディ。
type checkoutRequest struct {
	ShippingInfo model.ShippingInfo `json:"shipping_info"`
}

// Checkout はカート内容から注文を確定する。
// POST /api/orders
func (h *OrderHandler) Checkout(w http.ResponseWriter, r *http.Request) {
	credential, ok := credentialFromRequest(w, r)
	if !ok {
		return
	}

	var req checkoutRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeInvalidRequestBody(w)
		return
	}

	visitorID, err := middleware.VisitorIDFromContext(r.Context())
	if err != nil {
		handleServiceError(w, err)
		return
	}

	cart, err := store.NewCartStore(r.Context(), h.storage, visitorID)
	if err != nil {
		handleServiceError(w, err)
		return
	}

	order, err := h.service.Checkout(r.Context(), cart, credential, req.ShippingInfo)
	if err != nil {
		handleServiceError(w, err)
		return
	}

	writeJSON(w, http.StatusCreated, order)
}

// ListMyOrders はログイン中ユーザーの注文履歴を返す。
// GET /api/orders/mine
func (h *OrderHandler) ListMyOrders(w http.ResponseWriter, r *http.Request) {
	credential, ok := credentialFromRequest(w, r)
	if !ok {
		return
	}

	orders, err := h.service.ListMine(r.Context(), credential)
	if err != nil {
		handleServiceError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, orders)
}

// credentialFromRequest はセッションストアからコマースAPIのbearerトークンを取り出す。
// RequireUserを通過していれば必ず存在する。
func credentialFromRequest(w http.ResponseWriter, r *http.Request) (string, bool) {
	sessionStore, err := middleware.SessionStoreFromContext(r.Context())
	if err != nil {
		handleServiceError(w, err)
		return "", false
	}
	credential, ok := sessionStore.CurrentCredential()
	if !ok {
		writeAPIErrorResponse(w, http.StatusUnauthorized, model.NewLoginRequiredError())
		return "", false
	}
	return credential, true
}

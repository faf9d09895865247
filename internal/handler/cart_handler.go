package handler

import (
	"encoding/json"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/shopspring/decimal"

	"github.com/hitoshi/shopfront/internal/metrics"
	"github.com/hitoshi/shopfront/internal/middleware"
	"github.com/hitoshi/shopfront/internal/model"
	"github.com/hitoshi/shopfront/internal/store"
)

// CartHandler はビジターごとのカートのHTTPハンドラー。
// カートはビジターIDをキーとしてリクエストごとに永続化先から
// ハイドレーションされ、すべての変更はCartStoreを通じて行われる。
type CartHandler struct {
	storage store.CartStorage
	catalog CatalogServiceInterface
	metrics metrics.MetricsCollector
}

// NewCartHandler はCartHandlerを生成する。collectorはnilでもよい。
func NewCartHandler(storage store.CartStorage, catalog CatalogServiceInterface, collector metrics.MetricsCollector) *CartHandler {
	return &CartHandler{
		storage: storage,
		catalog: catalog,
		metrics: collector,
	}
}

// addItemRequest はカート追加リクエストのボディ。
type addItemRequest struct {
	ProductID string `json:"product_id"`
}

// setQuantityRequest は数量指定リクエストのボディ。
type setQuantityRequest struct {
	Quantity int `json:"quantity"`
}

// cartResponse はカート状態のAPIレスポンス。
// Totalは行の小計から導出される値で、保存はされない。
type cartResponse struct {
	Items []model.CartLine `json:"items"`
	Total decimal.Decimal  `json:"total"`
}

// GetCart は現在のカート内容を返す。
// GET /api/cart
func (h *CartHandler) GetCart(w http.ResponseWriter, r *http.Request) {
	cart, ok := h.hydrate(w, r)
	if !ok {
		return
	}
	writeJSON(w, http.StatusOK, toCartResponse(cart))
}

// AddItem は商品をカートに追加する。
// 追加時点の商品表示情報をスナップショットとして固定する。
// POST /api/cart/items
func (h *CartHandler) AddItem(w http.ResponseWriter, r *http.Request) {
	var req addItemRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeInvalidRequestBody(w)
		return
	}
	if req.ProductID == "" {
		writeAPIErrorResponse(w, http.StatusNotFound, model.NewProductNotFoundError(""))
		return
	}

	// スナップショットはコマースAPIの現在の商品情報から作る
	product, err := h.catalog.Get(r.Context(), req.ProductID)
	if err != nil {
		handleServiceError(w, err)
		return
	}

	cart, ok := h.hydrate(w, r)
	if !ok {
		return
	}

	snapshot := model.ProductSnapshot{
		Title:    product.Title,
		Price:    product.Price,
		Image:    product.FirstImage(),
		Category: product.Category,
	}
	if err := cart.AddItem(r.Context(), req.ProductID, snapshot); err != nil {
		handleServiceError(w, err)
		return
	}

	h.recordMutation("add")
	writeJSON(w, http.StatusOK, toCartResponse(cart))
}

// DecrementItem は指定商品の数量を1減らす。0になった行は取り除かれる。
// POST /api/cart/items/:id/decrement
func (h *CartHandler) DecrementItem(w http.ResponseWriter, r *http.Request) {
	productID := chi.URLParam(r, "id")

	cart, ok := h.hydrate(w, r)
	if !ok {
		return
	}

	if err := cart.Decrement(r.Context(), productID); err != nil {
		handleServiceError(w, err)
		return
	}

	h.recordMutation("decrement")
	writeJSON(w, http.StatusOK, toCartResponse(cart))
}

// SetQuantity は指定商品の数量を設定する。1未満の指定は1にクランプされる。
// PUT /api/cart/items/:id
func (h *CartHandler) SetQuantity(w http.ResponseWriter, r *http.Request) {
	productID := chi.URLParam(r, "id")

	var req setQuantityRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeInvalidRequestBody(w)
		return
	}

	cart, ok := h.hydrate(w, r)
	if !ok {
		return
	}

	if err := cart.SetQuantity(r.Context(), productID, req.Quantity); err != nil {
		handleServiceError(w, err)
		return
	}

	h.recordMutation("set_quantity")
	writeJSON(w, http.StatusOK, toCartResponse(cart))
}

// RemoveItem は指定商品の行を数量に関わらず取り除く。
// DELETE /api/cart/items/:id
func (h *CartHandler) RemoveItem(w http.ResponseWriter, r *http.Request) {
	productID := chi.URLParam(r, "id")

	cart, ok := h.hydrate(w, r)
	if !ok {
		return
	}

	if err := cart.RemoveItem(r.Context(), productID); err != nil {
		handleServiceError(w, err)
		return
	}

	h.recordMutation("remove")
	writeJSON(w, http.StatusOK, toCartResponse(cart))
}

// ClearCart はカートを空にする。
// DELETE /api/cart
func (h *CartHandler) ClearCart(w http.ResponseWriter, r *http.Request) {
	cart, ok := h.hydrate(w, r)
	if !ok {
		return
	}

	if err := cart.Clear(r.Context()); err != nil {
		handleServiceError(w, err)
		return
	}

	h.recordMutation("clear")
	writeJSON(w, http.StatusOK, toCartResponse(cart))
}

// hydrate はビジターIDをキーにカートストアをハイドレーションする。
// 失敗した場合はレスポンスを書き込み、okにfalseを返す。
func (h *CartHandler) hydrate(w http.ResponseWriter, r *http.Request) (*store.CartStore, bool) {
	visitorID, err := middleware.VisitorIDFromContext(r.Context())
	if err != nil {
		handleServiceError(w, err)
		return nil, false
	}

	cart, err := store.NewCartStore(r.Context(), h.storage, visitorID)
	if err != nil {
		handleServiceError(w, err)
		return nil, false
	}
	return cart, true
}

func (h *CartHandler) recordMutation(operation string) {
	if h.metrics != nil {
		h.metrics.RecordCartMutation(operation)
	}
}

// toCartResponse はCartStoreからAPIレスポンスに変換する。
func toCartResponse(cart *store.CartStore) cartResponse {
	items := cart.Lines()
	if items == nil {
		items = []model.CartLine{}
	}
	return cartResponse{
		Items: items,
		Total: cart.Total(),
	}
}

package handler

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"
	"github.com/shopspring/decimal"

	"github.com/hitoshi/shopfront/internal/model"
	"github.com/hitoshi/shopfront/internal/upstream"
)

// uploadMemoryLimit はmultipartフォームをメモリに展開する上限（10MB）。
const uploadMemoryLimit = 10 << 20

// AdminOrderServiceInterface は管理者向け注文操作のサービスインターフェース。
type AdminOrderServiceInterface interface {
	// ListAll は全ユーザーの注文一覧を取得する。
	ListAll(ctx context.Context, credential string) ([]model.Order, error)
	// Confirm は注文を確認済みにする。
	Confirm(ctx context.Context, credential, orderID string) (model.Order, error)
	// Reject は注文を拒否する。
	Reject(ctx context.Context, credential, orderID string) (model.Order, error)
}

// ProductAdminInterface は商品CRUDのコマースAPIプロキシインターフェース。
// *upstream.Clientがこれを満たす。
type ProductAdminInterface interface {
	CreateProduct(ctx context.Context, token string, input model.ProductInput) (model.Product, error)
	UpdateProduct(ctx context.Context, token, id string, input model.ProductInput) (model.Product, error)
	DeleteProduct(ctx context.Context, token, id string) error
}

// StatsFetcherInterface は管理ダッシュボード統計のコマースAPIプロキシインターフェース。
type StatsFetcherInterface interface {
	Stats(ctx context.Context, token string) (model.AdminStats, error)
}

// ImageUploaderInterface は商品画像のアップロードインターフェース。
type ImageUploaderInterface interface {
	// Upload は画像を外部ホスティングにアップロードし公開URLを返す。
	Upload(ctx context.Context, filename string, content io.Reader) (string, error)
	// ImportFromURL は外部URLの画像を取得してアップロードする。SSRFガード付き。
	ImportFromURL(ctx context.Context, rawURL string) (string, error)
}

// AdminHandler は管理者向けAPIのHTTPハンドラー。RequireAdminの後段に配置する。
type AdminHandler struct {
	orders   AdminOrderServiceInterface
	products ProductAdminInterface
	stats    StatsFetcherInterface
	uploader ImageUploaderInterface
}

// NewAdminHandler はAdminHandlerを生成する。
func NewAdminHandler(
	orders AdminOrderServiceInterface,
	products ProductAdminInterface,
	stats StatsFetcherInterface,
	uploader ImageUploaderInterface,
) *AdminHandler {
	return &AdminHandler{
		orders:   orders,
		products: products,
		stats:    stats,
		uploader: uploader,
	}
}

// productInputRequest は商品作成・更新リクエストのボディ。
// Priceは数値・文字列のどちらの形式でも受け付ける。
type productInputRequest struct {
	Title       string          `json:"title"`
	Description string          `json:"description"`
	Price       decimal.Decimal `json:"price"`
	Category    string          `json:"category"`
	Images      []string        `json:"images"`
}

// importImageRequest は画像URL取り込みリクエストのボディ。
type importImageRequest struct {
	URL string `json:"url"`
}

// uploadResponse はアップロード成功時のレスポンス。
type uploadResponse struct {
	URL string `json:"url"`
}

// GetStats は管理ダッシュボードの統計を返す。
// GET /api/admin/stats
func (h *AdminHandler) GetStats(w http.ResponseWriter, r *http.Request) {
	credential, ok := credentialFromRequest(w, r)
	if !ok {
		return
	}

	stats, err := h.stats.Stats(r.Context(), credential)
	if err != nil {
		handleServiceError(w, mapUpstreamError(err))
		return
	}

	writeJSON(w, http.StatusOK, stats)
}

// ListAllOrders は全ユーザーの注文一覧を返す。
// GET /api/admin/orders
func (h *AdminHandler) ListAllOrders(w http.ResponseWriter, r *http.Request) {
	credential, ok := credentialFromRequest(w, r)
	if !ok {
		return
	}

	orders, err := h.orders.ListAll(r.Context(), credential)
	if err != nil {
		handleServiceError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, orders)
}

// ConfirmOrder は注文を確認済みにする。
// PATCH /api/admin/orders/:id/confirm
func (h *AdminHandler) ConfirmOrder(w http.ResponseWriter, r *http.Request) {
	credential, ok := credentialFromRequest(w, r)
	if !ok {
		return
	}
	orderID := chi.URLParam(r, "id")

	order, err := h.orders.Confirm(r.Context(), credential, orderID)
	if err != nil {
		handleServiceError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, order)
}

// RejectOrder は注文を拒否する。
// PATCH /api/admin/orders/:id/reject
func (h *AdminHandler) RejectOrder(w http.ResponseWriter, r *http.Request) {
	credential, ok := credentialFromRequest(w, r)
	if !ok {
		return
	}
	orderID := chi.URLParam(r, "id")

	order, err := h.orders.Reject(r.Context(), credential, orderID)
	if err != nil {
		handleServiceError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, order)
}

// CreateProduct は商品をコマースAPIに作成する。
// POST /api/admin/products
func (h *AdminHandler) CreateProduct(w http.ResponseWriter, r *http.Request) {
	credential, ok := credentialFromRequest(w, r)
	if !ok {
		return
	}

	input, ok := decodeProductInput(w, r)
	if !ok {
		return
	}

	product, err := h.products.CreateProduct(r.Context(), credential, input)
	if err != nil {
		handleServiceError(w, mapUpstreamError(err))
		return
	}

	writeJSON(w, http.StatusCreated, product)
}

// UpdateProduct は商品をコマースAPIで更新する。
// PUT /api/admin/products/:id
func (h *AdminHandler) UpdateProduct(w http.ResponseWriter, r *http.Request) {
	credential, ok := credentialFromRequest(w, r)
	if !ok {
		return
	}
	productID := chi.URLParam(r, "id")

	input, ok := decodeProductInput(w, r)
	if !ok {
		return
	}

	product, err := h.products.UpdateProduct(r.Context(), credential, productID, input)
	if err != nil {
		handleServiceError(w, mapUpstreamError(err))
		return
	}

	writeJSON(w, http.StatusOK, product)
}

// DeleteProduct は商品をコマースAPIから削除する。
// DELETE /api/admin/products/:id
func (h *AdminHandler) DeleteProduct(w http.ResponseWriter, r *http.Request) {
	credential, ok := credentialFromRequest(w, r)
	if !ok {
		return
	}
	productID := chi.URLParam(r, "id")

	if err := h.products.DeleteProduct(r.Context(), credential, productID); err != nil {
		handleServiceError(w, mapUpstreamError(err))
		return
	}

	w.WriteHeader(http.StatusNoContent)
}

// UploadImage は商品画像をアップロードする。
// multipart/form-dataのfileフィールド、またはJSONボディ{url}による
// 外部URL取り込みの2形式を受け付ける。
// POST /api/admin/uploads
func (h *AdminHandler) UploadImage(w http.ResponseWriter, r *http.Request) {
	contentType := r.Header.Get("Content-Type")

	// JSONボディはURL取り込み
	if strings.HasPrefix(contentType, "application/json") {
		var req importImageRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			writeInvalidRequestBody(w)
			return
		}
		if req.URL == "" {
			writeAPIErrorResponse(w, http.StatusBadRequest, model.NewInvalidURLError("URLが空です"))
			return
		}

		url, err := h.uploader.ImportFromURL(r.Context(), req.URL)
		if err != nil {
			handleServiceError(w, err)
			return
		}
		writeJSON(w, http.StatusCreated, uploadResponse{URL: url})
		return
	}

	// multipartはファイルアップロード
	if err := r.ParseMultipartForm(uploadMemoryLimit); err != nil {
		writeAPIErrorResponse(w, http.StatusBadRequest, model.NewUploadFailedError())
		return
	}
	file, header, err := r.FormFile("file")
	if err != nil {
		writeAPIErrorResponse(w, http.StatusBadRequest, model.NewUploadFailedError())
		return
	}
	defer file.Close()

	url, err := h.uploader.Upload(r.Context(), header.Filename, file)
	if err != nil {
		handleServiceError(w, err)
		return
	}

	writeJSON(w, http.StatusCreated, uploadResponse{URL: url})
}

// decodeProductInput は商品入力ボディをデコードして検証する。
// 失敗した場合はレスポンスを書き込み、okにfalseを返す。
func decodeProductInput(w http.ResponseWriter, r *http.Request) (model.ProductInput, bool) {
	var req productInputRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeInvalidRequestBody(w)
		return model.ProductInput{}, false
	}

	if req.Price.IsNegative() {
		writeAPIErrorResponse(w, http.StatusBadRequest, &model.APIError{
			Code:     "INVALID_REQUEST",
			Message:  "価格の指定が正しくありません。",
			Category: "validation",
			Action:   "0以上の数値を指定してください。",
		})
		return model.ProductInput{}, false
	}

	images := req.Images
	if images == nil {
		images = []string{}
	}

	return model.ProductInput{
		Title:       req.Title,
		Description: req.Description,
		Price:       req.Price,
		Category:    req.Category,
		Images:      images,
	}, true
}

// mapUpstreamError はコマースAPIクライアントの生エラーをAPIErrorに変換する。
// サービス層を介さず直接プロキシするエンドポイントで使用する。
func mapUpstreamError(err error) error {
	switch {
	case errors.Is(err, upstream.ErrUnauthorized):
		return model.NewLoginRequiredError()
	case errors.Is(err, upstream.ErrForbidden):
		return model.NewAdminRequiredError()
	case errors.Is(err, upstream.ErrNotFound):
		return model.NewProductNotFoundError("")
	default:
		var statusErr *upstream.StatusError
		if errors.As(err, &statusErr) {
			return model.NewUpstreamRejectedError(statusErr.Message)
		}
		return model.NewUpstreamFailedError()
	}
}

package handler

import (
	"context"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/hitoshi/shopfront/internal/model"
)

// CatalogServiceInterface は商品ハンドラーが必要とするサービスインターフェース。
type CatalogServiceInterface interface {
	// List は商品一覧を取得する。説明文はサニタイズ済み。
	List(ctx context.Context) ([]model.Product, error)
	// Get は商品詳細を取得する。存在しない場合はPRODUCT_NOT_FOUND。
	Get(ctx context.Context, id string) (model.Product, error)
}

// ProductHandler は商品カタログのHTTPハンドラー。
// 商品はコマースAPIが所有し、本サービスは読み取り専用のプロキシとなる。
type ProductHandler struct {
	catalog CatalogServiceInterface
}

// NewProductHandler はProductHandlerを生成する。
func NewProductHandler(catalog CatalogServiceInterface) *ProductHandler {
	return &ProductHandler{catalog: catalog}
}

// ListProducts は商品一覧を取得する。
// GET /api/products
func (h *ProductHandler) ListProducts(w http.ResponseWriter, r *http.Request) {
	products, err := h.catalog.List(r.Context())
	if err != nil {
		handleServiceError(w, err)
		return
	}

	if products == nil {
		products = []model.Product{}
	}
	writeJSON(w, http.StatusOK, products)
}

// GetProduct は商品詳細を取得する。
// GET /api/products/:id
func (h *ProductHandler) GetProduct(w http.ResponseWriter, r *http.Request) {
	productID := chi.URLParam(r, "id")

	product, err := h.catalog.Get(r.Context(), productID)
	if err != nil {
		handleServiceError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, product)
}

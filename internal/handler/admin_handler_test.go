package handler

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/go-chi/chi/v5"
	"github.com/shopspring/decimal"

	"github.com/hitoshi/shopfront/internal/middleware"
	"github.com/hitoshi/shopfront/internal/model"
	"github.com/hitoshi/shopfront/internal/store"
	"github.com/hitoshi/shopfront/internal/upstream"
)

// mockAdminOrders はAdminOrderServiceInterfaceのモック実装。
type mockAdminOrders struct {
	listAllFn func(ctx context.Context, credential string) ([]model.Order, error)
	confirmFn func(ctx context.Context, credential, orderID string) (model.Order, error)
	rejectFn  func(ctx context.Context, credential, orderID string) (model.Order, error)
}

var _ AdminOrderServiceInterface = (*mockAdminOrders)(nil)

func (m *mockAdminOrders) ListAll(ctx context.Context, credential string) ([]model.Order, error) {
	return m.listAllFn(ctx, credential)
}

func (m *mockAdminOrders) Confirm(ctx context.Context, credential, orderID string) (model.Order, error) {
	return m.confirmFn(ctx, credential, orderID)
}

func (m *mockAdminOrders) Reject(ctx context.Context, credential, orderID string) (model.Order, error) {
	return m.rejectFn(ctx, credential, orderID)
}

// mockProductAdmin はProductAdminInterfaceのモック実装。
type mockProductAdmin struct {
	createFn func(ctx context.Context, token string, input model.ProductInput) (model.Product, error)
	updateFn func(ctx context.Context, token, id string, input model.ProductInput) (model.Product, error)
	deleteFn func(ctx context.Context, token, id string) error
}

var _ ProductAdminInterface = (*mockProductAdmin)(nil)

func (m *mockProductAdmin) CreateProduct(ctx context.Context, token string, input model.ProductInput) (model.Product, error) {
	return m.createFn(ctx, token, input)
}

func (m *mockProductAdmin) UpdateProduct(ctx context.Context, token, id string, input model.ProductInput) (model.Product, error) {
	return m.updateFn(ctx, token, id, input)
}

func (m *mockProductAdmin) DeleteProduct(ctx context.Context, token, id string) error {
	return m.deleteFn(ctx, token, id)
}

// mockStatsFetcher はStatsFetcherInterfaceのモック実装。
type mockStatsFetcher struct {
	statsFn func(ctx context.Context, token string) (model.AdminStats, error)
}

func (m *mockStatsFetcher) Stats(ctx context.Context, token string) (model.AdminStats, error) {
	return m.statsFn(ctx, token)
}

// mockUploader はImageUploaderInterfaceのモック実装。
type mockUploader struct {
	uploadFn func(ctx context.Context, filename string, content io.Reader) (string, error)
	importFn func(ctx context.Context, rawURL string) (string, error)
}

var _ ImageUploaderInterface = (*mockUploader)(nil)

func (m *mockUploader) Upload(ctx context.Context, filename string, content io.Reader) (string, error) {
	return m.uploadFn(ctx, filename, content)
}

func (m *mockUploader) ImportFromURL(ctx context.Context, rawURL string) (string, error) {
	return m.importFn(ctx, rawURL)
}

// adminRouter は管理者セッションを注入した管理者ルーティングを組み立てる。
func adminRouter(h *AdminHandler) http.Handler {
	r := chi.NewRouter()
	r.Use(func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, req *http.Request) {
			ss := store.NewSessionStore()
			ss.Login(model.User{ID: "admin-1", IsAdmin: true}, "admin-token")
			ctx := middleware.ContextWithSessionStore(req.Context(), ss)
			next.ServeHTTP(w, req.WithContext(ctx))
		})
	})
	r.Get("/api/admin/stats", h.GetStats)
	r.Get("/api/admin/orders", h.ListAllOrders)
	r.Patch("/api/admin/orders/{id}/confirm", h.ConfirmOrder)
	r.Patch("/api/admin/orders/{id}/reject", h.RejectOrder)
	r.Post("/api/admin/products", h.CreateProduct)
	r.Put("/api/admin/products/{id}", h.UpdateProduct)
	r.Delete("/api/admin/products/{id}", h.DeleteProduct)
	r.Post("/api/admin/uploads", h.UploadImage)
	return r
}

// 統計が返ることを検証
func TestAdminHandler_GetStats(t *testing.T) {
	h := NewAdminHandler(&mockAdminOrders{}, &mockProductAdmin{}, &mockStatsFetcher{
		statsFn: func(ctx context.Context, token string) (model.AdminStats, error) {
			if token != "admin-token" {
				t.Errorf("token = %s, want admin-token", token)
			}
			return model.AdminStats{
				TotalUsers:   10,
				TotalOrders:  5,
				TotalRevenue: decimal.NewFromInt(50000),
			}, nil
		},
	}, &mockUploader{})
	r := adminRouter(h)

	req := httptest.NewRequest(http.MethodGet, "/api/admin/stats", nil)
	w := httptest.NewRecorder()

	r.ServeHTTP(w, req)

	if w.Result().StatusCode != http.StatusOK {
		t.Fatalf("status = %d, want 200", w.Result().StatusCode)
	}
	var stats model.AdminStats
	json.NewDecoder(w.Result().Body).Decode(&stats)
	if stats.TotalUsers != 10 {
		t.Errorf("totalUsers = %d, want 10", stats.TotalUsers)
	}
}

// 全注文一覧が返ることを検証
func TestAdminHandler_ListAllOrders(t *testing.T) {
	h := NewAdminHandler(&mockAdminOrders{
		listAllFn: func(ctx context.Context, credential string) ([]model.Order, error) {
			return []model.Order{{ID: "order-1"}}, nil
		},
	}, &mockProductAdmin{}, &mockStatsFetcher{}, &mockUploader{})
	r := adminRouter(h)

	req := httptest.NewRequest(http.MethodGet, "/api/admin/orders", nil)
	w := httptest.NewRecorder()

	r.ServeHTTP(w, req)

	if w.Result().StatusCode != http.StatusOK {
		t.Fatalf("status = %d, want 200", w.Result().StatusCode)
	}
}

// 注文の確認・拒否がコマースAPIに伝搬することを検証
func TestAdminHandler_ConfirmAndRejectOrder(t *testing.T) {
	h := NewAdminHandler(&mockAdminOrders{
		confirmFn: func(ctx context.Context, credential, orderID string) (model.Order, error) {
			return model.Order{ID: orderID, Status: model.OrderStatusConfirmed}, nil
		},
		rejectFn: func(ctx context.Context, credential, orderID string) (model.Order, error) {
			return model.Order{ID: orderID, Status: model.OrderStatusRejected}, nil
		},
	}, &mockProductAdmin{}, &mockStatsFetcher{}, &mockUploader{})
	r := adminRouter(h)

	t.Run("確認", func(t *testing.T) {
		req := httptest.NewRequest(http.MethodPatch, "/api/admin/orders/order-1/confirm", nil)
		w := httptest.NewRecorder()
		r.ServeHTTP(w, req)

		var order model.Order
		json.NewDecoder(w.Result().Body).Decode(&order)
		if order.Status != model.OrderStatusConfirmed {
			t.Errorf("status = %s, want Confirmed", order.Status)
		}
	})

	t.Run("拒否", func(t *testing.T) {
		req := httptest.NewRequest(http.MethodPatch, "/api/admin/orders/order-1/reject", nil)
		w := httptest.NewRecorder()
		r.ServeHTTP(w, req)

		var order model.Order
		json.NewDecoder(w.Result().Body).Decode(&order)
		if order.Status != model.OrderStatusRejected {
			t.Errorf("status = %s, want Rejected", order.Status)
		}
	})
}

// 存在しない注文の確認が404で返ることを検証
func TestAdminHandler_ConfirmOrder_NotFound(t *testing.T) {
	h := NewAdminHandler(&mockAdminOrders{
		confirmFn: func(ctx context.Context, credential, orderID string) (model.Order, error) {
			return model.Order{}, model.NewOrderNotFoundError(orderID)
		},
	}, &mockProductAdmin{}, &mockStatsFetcher{}, &mockUploader{})
	r := adminRouter(h)

	req := httptest.NewRequest(http.MethodPatch, "/api/admin/orders/missing/confirm", nil)
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)

	if w.Result().StatusCode != http.StatusNotFound {
		t.Errorf("status = %d, want 404", w.Result().StatusCode)
	}
}

// 商品作成が201で成功することを検証
func TestAdminHandler_CreateProduct(t *testing.T) {
	h := NewAdminHandler(&mockAdminOrders{}, &mockProductAdmin{
		createFn: func(ctx context.Context, token string, input model.ProductInput) (model.Product, error) {
			if input.Title != "新商品" {
				t.Errorf("title = %s, want 新商品", input.Title)
			}
			if input.Images == nil {
				t.Error("images should be non-nil")
			}
			return model.Product{ID: "p-new", Title: input.Title, Price: input.Price}, nil
		},
	}, &mockStatsFetcher{}, &mockUploader{})
	r := adminRouter(h)

	req := httptest.NewRequest(http.MethodPost, "/api/admin/products",
		strings.NewReader(`{"title":"新商品","description":"<p>説明</p>","price":1500,"category":"gadgets"}`))
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)

	if w.Result().StatusCode != http.StatusCreated {
		t.Fatalf("status = %d, want 201", w.Result().StatusCode)
	}
}

// 負の価格が400で拒否されることを検証
func TestAdminHandler_CreateProduct_NegativePrice(t *testing.T) {
	h := NewAdminHandler(&mockAdminOrders{}, &mockProductAdmin{}, &mockStatsFetcher{}, &mockUploader{})
	r := adminRouter(h)

	req := httptest.NewRequest(http.MethodPost, "/api/admin/products",
		strings.NewReader(`{"title":"x","price":-1}`))
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)

	if w.Result().StatusCode != http.StatusBadRequest {
		t.Errorf("status = %d, want 400", w.Result().StatusCode)
	}
}

// コマースAPIの拒否が422へマップされることを検証
func TestAdminHandler_UpdateProduct_UpstreamRejected(t *testing.T) {
	h := NewAdminHandler(&mockAdminOrders{}, &mockProductAdmin{
		updateFn: func(ctx context.Context, token, id string, input model.ProductInput) (model.Product, error) {
			return model.Product{}, &upstream.StatusError{StatusCode: 422, Message: "invalid category"}
		},
	}, &mockStatsFetcher{}, &mockUploader{})
	r := adminRouter(h)

	req := httptest.NewRequest(http.MethodPut, "/api/admin/products/p1",
		strings.NewReader(`{"title":"x","price":100}`))
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)

	if w.Result().StatusCode != http.StatusUnprocessableEntity {
		t.Errorf("status = %d, want 422", w.Result().StatusCode)
	}
}

// 商品削除が204で成功することを検証
func TestAdminHandler_DeleteProduct(t *testing.T) {
	deleted := ""
	h := NewAdminHandler(&mockAdminOrders{}, &mockProductAdmin{
		deleteFn: func(ctx context.Context, token, id string) error {
			deleted = id
			return nil
		},
	}, &mockStatsFetcher{}, &mockUploader{})
	r := adminRouter(h)

	req := httptest.NewRequest(http.MethodDelete, "/api/admin/products/p1", nil)
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)

	if w.Result().StatusCode != http.StatusNoContent {
		t.Errorf("status = %d, want 204", w.Result().StatusCode)
	}
	if deleted != "p1" {
		t.Errorf("deleted = %s, want p1", deleted)
	}
}

// multipartアップロードが公開URLを返すことを検証
func TestAdminHandler_UploadImage_Multipart(t *testing.T) {
	h := NewAdminHandler(&mockAdminOrders{}, &mockProductAdmin{}, &mockStatsFetcher{}, &mockUploader{
		uploadFn: func(ctx context.Context, filename string, content io.Reader) (string, error) {
			if filename != "product.png" {
				t.Errorf("filename = %s, want product.png", filename)
			}
			return "https://images.example.com/uploaded.png", nil
		},
	})
	r := adminRouter(h)

	var buf bytes.Buffer
	mw := multipart.NewWriter(&buf)
	part, _ := mw.CreateFormFile("file", "product.png")
	part.Write([]byte("fake-image-bytes"))
	mw.Close()

	req := httptest.NewRequest(http.MethodPost, "/api/admin/uploads", &buf)
	req.Header.Set("Content-Type", mw.FormDataContentType())
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)

	if w.Result().StatusCode != http.StatusCreated {
		t.Fatalf("status = %d, want 201", w.Result().StatusCode)
	}
	var body uploadResponse
	json.NewDecoder(w.Result().Body).Decode(&body)
	if body.URL != "https://images.example.com/uploaded.png" {
		t.Errorf("url = %s", body.URL)
	}
}

// URL取り込みが公開URLを返すことを検証
func TestAdminHandler_UploadImage_ImportFromURL(t *testing.T) {
	h := NewAdminHandler(&mockAdminOrders{}, &mockProductAdmin{}, &mockStatsFetcher{}, &mockUploader{
		importFn: func(ctx context.Context, rawURL string) (string, error) {
			if rawURL != "https://example.com/pic.png" {
				t.Errorf("rawURL = %s", rawURL)
			}
			return "https://images.example.com/imported.png", nil
		},
	})
	r := adminRouter(h)

	req := httptest.NewRequest(http.MethodPost, "/api/admin/uploads",
		strings.NewReader(`{"url":"https://example.com/pic.png"}`))
	req.Header.Set("Content-Type", "application/json")
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)

	if w.Result().StatusCode != http.StatusCreated {
		t.Fatalf("status = %d, want 201", w.Result().StatusCode)
	}
}

// SSRFブロックが403で返ることを検証
func TestAdminHandler_UploadImage_SSRFBlocked(t *testing.T) {
	h := NewAdminHandler(&mockAdminOrders{}, &mockProductAdmin{}, &mockStatsFetcher{}, &mockUploader{
		importFn: func(ctx context.Context, rawURL string) (string, error) {
			return "", model.NewSSRFBlockedError()
		},
	})
	r := adminRouter(h)

	req := httptest.NewRequest(http.MethodPost, "/api/admin/uploads",
		strings.NewReader(`{"url":"http://169.254.169.254/"}`))
	req.Header.Set("Content-Type", "application/json")
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)

	if w.Result().StatusCode != http.StatusForbidden {
		t.Errorf("status = %d, want 403", w.Result().StatusCode)
	}
}

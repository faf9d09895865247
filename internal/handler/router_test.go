package handler

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/hitoshi/shopfront/internal/middleware"
	"github.com/hitoshi/shopfront/internal/model"
)

// mockSessionFinder はmiddleware.SessionFinderのモック実装。
type mockSessionFinder struct {
	findByIDFn func(ctx context.Context, id string) (*model.Session, error)
}

func (m *mockSessionFinder) FindByID(ctx context.Context, id string) (*model.Session, error) {
	if m.findByIDFn != nil {
		return m.findByIDFn(ctx, id)
	}
	return nil, nil
}

func testRouterDeps(finder middleware.SessionFinder) *RouterDeps {
	rl := middleware.NewRateLimiter(middleware.DefaultRateLimiterConfig())
	return &RouterDeps{
		SessionFinder:     finder,
		CORSAllowedOrigin: "http://localhost:3000",
		RateLimiter:       rl,
		AuthService:       &mockAuthService{},
		AuthConfig:        testAuthConfig(),
		CatalogService: &mockCatalog{
			listFn: func(ctx context.Context) ([]model.Product, error) {
				return []model.Product{testProduct("p1")}, nil
			},
			getFn: func(ctx context.Context, id string) (model.Product, error) {
				return testProduct(id), nil
			},
		},
		CartStorage: newMemCartStorage(),
		OrderService: &mockOrderService{
			listMineFn: func(ctx context.Context, credential string) ([]model.Order, error) {
				return []model.Order{}, nil
			},
		},
		AdminOrderService: &mockAdminOrders{
			listAllFn: func(ctx context.Context, credential string) ([]model.Order, error) {
				return []model.Order{}, nil
			},
		},
		ProductAdmin: &mockProductAdmin{},
		StatsFetcher: &mockStatsFetcher{},
		Uploader:     &mockUploader{},
	}
}

func adminSessionFinder() *mockSessionFinder {
	return &mockSessionFinder{
		findByIDFn: func(ctx context.Context, id string) (*model.Session, error) {
			switch id {
			case "user-session":
				return &model.Session{
					ID:         "user-session",
					UserID:     "user-1",
					User:       model.User{ID: "user-1"},
					Credential: "token-1",
					ExpiresAt:  time.Now().Add(1 * time.Hour),
				}, nil
			case "admin-session":
				return &model.Session{
					ID:         "admin-session",
					UserID:     "admin-1",
					User:       model.User{ID: "admin-1", IsAdmin: true},
					Credential: "admin-token",
					ExpiresAt:  time.Now().Add(1 * time.Hour),
				}, nil
			}
			return nil, nil
		},
	}
}

// ゲストが商品一覧を閲覧できることを検証
func TestRouter_GuestCanBrowseProducts(t *testing.T) {
	deps := testRouterDeps(adminSessionFinder())
	defer deps.RateLimiter.Stop()
	r := NewRouter(deps)

	req := httptest.NewRequest(http.MethodGet, "/api/products", nil)
	w := httptest.NewRecorder()

	r.ServeHTTP(w, req)

	if w.Result().StatusCode != http.StatusOK {
		t.Errorf("status = %d, want 200", w.Result().StatusCode)
	}
}

// ゲストがカートを操作できることを検証（ビジターCookieが払い出される）
func TestRouter_GuestCanUseCart(t *testing.T) {
	deps := testRouterDeps(adminSessionFinder())
	defer deps.RateLimiter.Stop()
	r := NewRouter(deps)

	req := httptest.NewRequest(http.MethodGet, "/api/cart", nil)
	w := httptest.NewRecorder()

	r.ServeHTTP(w, req)

	if w.Result().StatusCode != http.StatusOK {
		t.Fatalf("status = %d, want 200", w.Result().StatusCode)
	}
	found := false
	for _, c := range w.Result().Cookies() {
		if c.Name == "visitor_id" {
			found = true
		}
	}
	if !found {
		t.Error("visitor_id cookie should be issued")
	}
}

// 注文履歴がログインなしで401になることを検証
func TestRouter_OrdersRequireLogin(t *testing.T) {
	deps := testRouterDeps(adminSessionFinder())
	defer deps.RateLimiter.Stop()
	r := NewRouter(deps)

	req := httptest.NewRequest(http.MethodGet, "/api/orders/mine", nil)
	w := httptest.NewRecorder()

	r.ServeHTTP(w, req)

	if w.Result().StatusCode != http.StatusUnauthorized {
		t.Errorf("status = %d, want 401", w.Result().StatusCode)
	}
}

// ログイン済みユーザーが注文履歴を取得できることを検証
func TestRouter_OrdersWithSession(t *testing.T) {
	deps := testRouterDeps(adminSessionFinder())
	defer deps.RateLimiter.Stop()
	r := NewRouter(deps)

	req := httptest.NewRequest(http.MethodGet, "/api/orders/mine", nil)
	req.AddCookie(&http.Cookie{Name: "session_id", Value: "user-session"})
	w := httptest.NewRecorder()

	r.ServeHTTP(w, req)

	if w.Result().StatusCode != http.StatusOK {
		t.Errorf("status = %d, want 200", w.Result().StatusCode)
	}
}

// 管理者ルートの認可マトリクスを検証
func TestRouter_AdminGuard(t *testing.T) {
	tests := []struct {
		name       string
		cookie     string
		wantStatus int
	}{
		{"未ログインは401", "", http.StatusUnauthorized},
		{"一般ユーザーは403", "user-session", http.StatusForbidden},
		{"管理者は200", "admin-session", http.StatusOK},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			deps := testRouterDeps(adminSessionFinder())
			defer deps.RateLimiter.Stop()
			r := NewRouter(deps)

			req := httptest.NewRequest(http.MethodGet, "/api/admin/orders", nil)
			if tt.cookie != "" {
				req.AddCookie(&http.Cookie{Name: "session_id", Value: tt.cookie})
			}
			w := httptest.NewRecorder()

			r.ServeHTTP(w, req)

			if w.Result().StatusCode != tt.wantStatus {
				t.Errorf("status = %d, want %d", w.Result().StatusCode, tt.wantStatus)
			}
		})
	}
}

// セッション解決の障害時にガード付きルートが503を返すことを検証
func TestRouter_SessionStorageFailure_Returns503(t *testing.T) {
	finder := &mockSessionFinder{
		findByIDFn: func(ctx context.Context, id string) (*model.Session, error) {
			return nil, errors.New("connection refused")
		},
	}
	deps := testRouterDeps(finder)
	defer deps.RateLimiter.Stop()
	r := NewRouter(deps)

	req := httptest.NewRequest(http.MethodGet, "/api/orders/mine", nil)
	req.AddCookie(&http.Cookie{Name: "session_id", Value: "any"})
	w := httptest.NewRecorder()

	r.ServeHTTP(w, req)

	if w.Result().StatusCode != http.StatusServiceUnavailable {
		t.Errorf("status = %d, want 503", w.Result().StatusCode)
	}
	if w.Result().Header.Get("Retry-After") == "" {
		t.Error("Retry-Afterヘッダーが設定されていない")
	}

	var body apiErrorResponse
	json.NewDecoder(w.Result().Body).Decode(&body)
	if body.Code != model.ErrCodeSessionResolving {
		t.Errorf("code = %s, want %s", body.Code, model.ErrCodeSessionResolving)
	}
}

// ヘルスチェックがミドルウェアなしで応答することを検証
func TestRouter_Healthz(t *testing.T) {
	deps := testRouterDeps(adminSessionFinder())
	defer deps.RateLimiter.Stop()
	r := NewRouter(deps)

	req := httptest.NewRequest(http.MethodGet, "/healthz", nil)
	w := httptest.NewRecorder()

	r.ServeHTTP(w, req)

	if w.Result().StatusCode != http.StatusOK {
		t.Errorf("status = %d, want 200", w.Result().StatusCode)
	}
}

package handler

import (
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus"

	"github.com/hitoshi/shopfront/internal/metrics"
	"github.com/hitoshi/shopfront/internal/middleware"
	"github.com/hitoshi/shopfront/internal/store"
)

// RouterDeps はNewRouterに必要な依存関係をまとめた構造体。
type RouterDeps struct {
	// ミドルウェア依存
	SessionFinder     middleware.SessionFinder
	VisitorConfig     middleware.VisitorConfig
	CSRFConfig        middleware.CSRFConfig
	CORSAllowedOrigin string
	RateLimiter       *middleware.RateLimiter
	Logger            *slog.Logger

	// 認証
	AuthService AuthServiceInterface
	AuthConfig  AuthHandlerConfig

	// カタログ
	CatalogService CatalogServiceInterface

	// カート
	CartStorage store.CartStorage

	// 注文
	OrderService      OrderServiceInterface
	AdminOrderService AdminOrderServiceInterface

	// 管理者向けプロキシ
	ProductAdmin ProductAdminInterface
	StatsFetcher StatsFetcherInterface
	Uploader     ImageUploaderInterface

	// 監視
	MetricsCollector metrics.MetricsCollector
	MetricsGatherer  prometheus.Gatherer
}

// NewRouter は全APIエンドポイントのルーティングとミドルウェアチェーンを構成したchi.Routerを返す。
//
// ミドルウェアスタックの実行順序:
//
//	Recovery → SecurityHeaders → CORS → Visitor → Session → CSRF → Metrics → RateLimit(General)
//
// セッションミドルウェアはリクエストを拒否せず、認可の判断は
// RequireUser / RequireAdmin に委ねる。
func NewRouter(deps *RouterDeps) http.Handler {
	r := chi.NewRouter()

	r.Use(middleware.NewRecoveryMiddleware())
	r.Use(middleware.NewSecurityHeadersMiddleware())
	r.Use(middleware.NewCORSMiddleware(deps.CORSAllowedOrigin))

	// ヘルスチェックとメトリクスはAPIミドルウェアの外
	r.Get("/healthz", func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusOK)
		w.Write([]byte("ok"))
	})
	if deps.MetricsGatherer != nil {
		r.Handle("/metrics", metrics.Handler(deps.MetricsGatherer))
	}

	authHandler := NewAuthHandler(deps.AuthService, deps.AuthConfig)
	productHandler := NewProductHandler(deps.CatalogService)
	cartHandler := NewCartHandler(deps.CartStorage, deps.CatalogService, deps.MetricsCollector)
	orderHandler := NewOrderHandler(deps.OrderService, deps.CartStorage)
	adminHandler := NewAdminHandler(deps.AdminOrderService, deps.ProductAdmin, deps.StatsFetcher, deps.Uploader)

	// --- APIルート ---
	r.Group(func(r chi.Router) {
		r.Use(middleware.NewVisitorMiddleware(deps.VisitorConfig))
		r.Use(middleware.NewSessionMiddleware(deps.SessionFinder))
		if deps.Logger != nil {
			// セッション解決後に配置し、ログにuser_idを含める
			r.Use(middleware.NewLoggingMiddleware(deps.Logger))
		}
		r.Use(middleware.NewCSRFMiddleware(deps.CSRFConfig))
		r.Use(middleware.NewMetricsMiddleware(deps.MetricsCollector))
		r.Use(deps.RateLimiter.GeneralMiddleware())

		// CSRFトークン取得
		r.Get("/api/csrf-token", middleware.NewCSRFTokenHandler(deps.CSRFConfig).ServeHTTP)

		// 認証
		r.Route("/api/auth", func(r chi.Router) {
			r.Post("/login", authHandler.Login)
			r.Post("/admin/login", authHandler.AdminLogin)
			r.Post("/signup", authHandler.Signup)
			r.Post("/logout", authHandler.Logout)
			r.Get("/me", authHandler.Me)

			r.With(middleware.RequireUser()).Put("/profile", authHandler.UpdateProfile)
		})

		// 商品カタログ（閲覧はログイン不要）
		r.Route("/api/products", func(r chi.Router) {
			r.Get("/", productHandler.ListProducts)
			r.Get("/{id}", productHandler.GetProduct)
		})

		// カート（ビジター単位。ログイン不要）
		r.Route("/api/cart", func(r chi.Router) {
			r.Get("/", cartHandler.GetCart)
			r.Delete("/", cartHandler.ClearCart)

			r.Post("/items", cartHandler.AddItem)
			r.Route("/items/{id}", func(r chi.Router) {
				r.Put("/", cartHandler.SetQuantity)
				r.Delete("/", cartHandler.RemoveItem)
				r.Post("/decrement", cartHandler.DecrementItem)
			})
		})

		// 注文（要ログイン）
		r.Group(func(r chi.Router) {
			r.Use(middleware.RequireUser())

			// POST /api/orders - 注文確定（チェックアウト専用レート制限を追加）
			r.With(deps.RateLimiter.CheckoutMiddleware()).Post("/api/orders", orderHandler.Checkout)
			r.Get("/api/orders/mine", orderHandler.ListMyOrders)
		})

		// 管理者向け（要管理者権限）
		r.Route("/api/admin", func(r chi.Router) {
			r.Use(middleware.RequireAdmin())

			r.Get("/stats", adminHandler.GetStats)

			r.Route("/orders", func(r chi.Router) {
				r.Get("/", adminHandler.ListAllOrders)
				r.Patch("/{id}/confirm", adminHandler.ConfirmOrder)
				r.Patch("/{id}/reject", adminHandler.RejectOrder)
			})

			r.Route("/products", func(r chi.Router) {
				r.Post("/", adminHandler.CreateProduct)
				r.Put("/{id}", adminHandler.UpdateProduct)
				r.Delete("/{id}", adminHandler.DeleteProduct)
			})

			r.Post("/uploads", adminHandler.UploadImage)
		})
	})

	return r
}

// Package upstream はコマースAPIのクライアントを提供する。
// 商品・注文・認証はすべてコマースAPIが管理しており、本サービスは
// セッションに保持したbearerトークンを添えて呼び出すだけである。
package upstream

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"time"

	"github.com/shopspring/decimal"

	"github.com/hitoshi/shopfront/internal/metrics"
	"github.com/hitoshi/shopfront/internal/model"
)

// maxResponseSize はコマースAPIレスポンスの最大読み取りサイズ。
const maxResponseSize = 10 * 1024 * 1024

var (
	// ErrUnauthorized はコマースAPIが401を返した場合のエラー。
	// ログインでは認証情報の誤り、その他の操作ではトークンの失効を意味する。
	ErrUnauthorized = errors.New("upstream: unauthorized")

	// ErrForbidden はコマースAPIが403を返した場合のエラー。
	ErrForbidden = errors.New("upstream: forbidden")

	// ErrNotFound はコマースAPIが404を返した場合のエラー。
	ErrNotFound = errors.New("upstream: not found")
)

// StatusError はコマースAPIが上記以外の4xxを返した場合のエラー。
// レスポンスボディのmessageフィールドを保持する。
type StatusError struct {
	StatusCode int
	Message    string
}

// Error はerrorインターフェースを実装する。
func (e *StatusError) Error() string {
	return fmt.Sprintf("upstream: status %d: %s", e.StatusCode, e.Message)
}

// Client はコマースAPIのクライアント。
// エンドポイントはテスト用に差し替え可能。
type Client struct {
	baseURL    string
	httpClient *http.Client
	logger     *slog.Logger
	metrics    metrics.MetricsCollector
}

// NewClient はClientの新しいインスタンスを生成する。
// collectorはnil可（テスト用）。
func NewClient(baseURL string, httpClient *http.Client, logger *slog.Logger, collector metrics.MetricsCollector) *Client {
	return &Client{
		baseURL:    baseURL,
		httpClient: httpClient,
		logger:     logger,
		metrics:    collector,
	}
}

// authResponse はログイン・サインアップ成功時のコマースAPIレスポンス。
type authResponse struct {
	User  userWire `json:"user"`
	Token string   `json:"token"`
}

// userWire はコマースAPIのユーザー表現。
type userWire struct {
	ID      string `json:"id"`
	Name    string `json:"name"`
	Email   string `json:"email"`
	IsAdmin bool   `json:"isAdmin"`
	Avatar  string `json:"avatar"`
}

func (w userWire) toModel() model.User {
	return model.User{
		ID:      w.ID,
		Name:    w.Name,
		Email:   w.Email,
		IsAdmin: w.IsAdmin,
		Avatar:  w.Avatar,
	}
}

// productWire はコマースAPIの商品表現。
// imagesフィールドは配列と文字列スカラーの両形式が観測されているため、
// RawMessageで受けてデコード時に正規化する。
type productWire struct {
	ID          string          `json:"id"`
	Title       string          `json:"title"`
	Description string          `json:"description"`
	Price       decimal.Decimal `json:"price"`
	Category    string          `json:"category"`
	Images      json.RawMessage `json:"images"`
}

func (w productWire) toModel() model.Product {
	return model.Product{
		ID:          w.ID,
		Title:       w.Title,
		Description: w.Description,
		Price:       w.Price,
		Category:    w.Category,
		Images:      decodeImages(w.Images),
	}
}

// decodeImages はimagesフィールドを常に非nilの文字列配列へ正規化する。
// 配列・単一文字列・null・欠落のいずれの形式でも受け付け、
// 解釈できない形式は空配列として扱う。
func decodeImages(raw json.RawMessage) []string {
	if len(raw) == 0 || string(raw) == "null" {
		return []string{}
	}

	var arr []string
	if err := json.Unmarshal(raw, &arr); err == nil {
		if arr == nil {
			return []string{}
		}
		return arr
	}

	var single string
	if err := json.Unmarshal(raw, &single); err == nil {
		if single == "" {
			return []string{}
		}
		return []string{single}
	}

	return []string{}
}

// errorBody はコマースAPIのエラーレスポンス。
type errorBody struct {
	Message string `json:"message"`
}

// ProfileInput はプロフィール更新でコマースAPIに送るペイロード。
type ProfileInput struct {
	Name   string `json:"name"`
	Avatar string `json:"avatar,omitempty"`
}

// OrderRequest は注文作成でコマースAPIに送るペイロード。
type OrderRequest struct {
	Items        []model.OrderItem  `json:"items"`
	TotalAmount  decimal.Decimal    `json:"totalAmount"`
	ShippingInfo model.ShippingInfo `json:"shippingInfo"`
}

// doJSON はコマースAPIへのリクエストを実行し、レスポンスをoutへデコードする。
// tokenが空でない場合はAuthorizationヘッダーにbearerトークンを付与する。
// outがnilの場合はレスポンスボディを破棄する。
func (c *Client) doJSON(ctx context.Context, operation, method, path, token string, payload, out any) error {
	reqURL, err := url.JoinPath(c.baseURL, path)
	if err != nil {
		return fmt.Errorf("リクエストURLの構築に失敗しました: %w", err)
	}

	var body io.Reader
	if payload != nil {
		data, err := json.Marshal(payload)
		if err != nil {
			return fmt.Errorf("リクエストボディのエンコードに失敗しました: %w", err)
		}
		body = bytes.NewReader(data)
	}

	req, err := http.NewRequestWithContext(ctx, method, reqURL, body)
	if err != nil {
		return fmt.Errorf("HTTPリクエストの作成に失敗しました: %w", err)
	}
	req.Header.Set("Accept", "application/json")
	req.Header.Set("User-Agent", "Shopfront/1.0")
	if payload != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}

	start := time.Now()
	resp, err := c.httpClient.Do(req)
	if c.metrics != nil {
		c.metrics.RecordUpstreamLatency(time.Since(start))
	}
	if err != nil {
		if c.metrics != nil {
			c.metrics.RecordUpstreamRequest(operation, 0)
		}
		c.logger.Error("コマースAPIの呼び出しに失敗しました",
			slog.String("operation", operation),
			slog.String("error", err.Error()),
		)
		return fmt.Errorf("コマースAPIの呼び出しに失敗しました: %w", err)
	}
	defer resp.Body.Close()

	if c.metrics != nil {
		c.metrics.RecordUpstreamRequest(operation, resp.StatusCode)
	}

	respBody, err := io.ReadAll(io.LimitReader(resp.Body, maxResponseSize))
	if err != nil {
		return fmt.Errorf("レスポンスボディの読み取りに失敗しました: %w", err)
	}

	if resp.StatusCode >= http.StatusBadRequest {
		c.logger.Warn("コマースAPIがエラーステータスを返しました",
			slog.String("operation", operation),
			slog.Int("http_status", resp.StatusCode),
		)
		switch resp.StatusCode {
		case http.StatusUnauthorized:
			return ErrUnauthorized
		case http.StatusForbidden:
			return ErrForbidden
		case http.StatusNotFound:
			return ErrNotFound
		}
		if resp.StatusCode >= http.StatusInternalServerError {
			return fmt.Errorf("コマースAPIがステータス %d を返しました", resp.StatusCode)
		}
		var eb errorBody
		_ = json.Unmarshal(respBody, &eb)
		return &StatusError{StatusCode: resp.StatusCode, Message: eb.Message}
	}

	if out == nil {
		return nil
	}
	if err := json.Unmarshal(respBody, out); err != nil {
		return fmt.Errorf("レスポンスJSONのパースに失敗しました: %w", err)
	}
	return nil
}

// Login はメールアドレスとパスワードで認証し、ユーザーレコードとトークンを返す。
// 認証情報が誤っている場合はErrUnauthorizedを返す。
func (c *Client) Login(ctx context.Context, email, password string) (model.User, string, error) {
	payload := map[string]string{"email": email, "password": password}
	var resp authResponse
	if err := c.doJSON(ctx, "login", http.MethodPost, "/auth/login", "", payload, &resp); err != nil {
		return model.User{}, "", err
	}
	return resp.User.toModel(), resp.Token, nil
}

// Signup は新規ユーザーを登録し、ユーザーレコードとトークンを返す。
func (c *Client) Signup(ctx context.Context, name, email, password string) (model.User, string, error) {
	payload := map[string]string{"name": name, "email": email, "password": password}
	var resp authResponse
	if err := c.doJSON(ctx, "signup", http.MethodPost, "/auth/signup", "", payload, &resp); err != nil {
		return model.User{}, "", err
	}
	return resp.User.toModel(), resp.Token, nil
}

// UpdateProfile はログイン中ユーザーのプロフィールを更新し、更新後のユーザーレコードを返す。
func (c *Client) UpdateProfile(ctx context.Context, token string, input ProfileInput) (model.User, error) {
	var resp struct {
		User userWire `json:"user"`
	}
	if err := c.doJSON(ctx, "update_profile", http.MethodPut, "/auth/profile", token, input, &resp); err != nil {
		return model.User{}, err
	}
	return resp.User.toModel(), nil
}

// ListProducts は全商品を取得する。
func (c *Client) ListProducts(ctx context.Context) ([]model.Product, error) {
	var wires []productWire
	if err := c.doJSON(ctx, "list_products", http.MethodGet, "/products", "", nil, &wires); err != nil {
		return nil, err
	}
	products := make([]model.Product, 0, len(wires))
	for _, w := range wires {
		products = append(products, w.toModel())
	}
	return products, nil
}

// GetProduct は指定IDの商品を取得する。存在しない場合はErrNotFoundを返す。
func (c *Client) GetProduct(ctx context.Context, id string) (model.Product, error) {
	var w productWire
	if err := c.doJSON(ctx, "get_product", http.MethodGet, "/products/"+url.PathEscape(id), "", nil, &w); err != nil {
		return model.Product{}, err
	}
	return w.toModel(), nil
}

// CreateProduct は商品を作成する。管理者トークンが必要。
func (c *Client) CreateProduct(ctx context.Context, token string, input model.ProductInput) (model.Product, error) {
	var w productWire
	if err := c.doJSON(ctx, "create_product", http.MethodPost, "/products", token, input, &w); err != nil {
		return model.Product{}, err
	}
	return w.toModel(), nil
}

// UpdateProduct は商品を更新する。管理者トークンが必要。
func (c *Client) UpdateProduct(ctx context.Context, token, id string, input model.ProductInput) (model.Product, error) {
	var w productWire
	if err := c.doJSON(ctx, "update_product", http.MethodPut, "/products/"+url.PathEscape(id), token, input, &w); err != nil {
		return model.Product{}, err
	}
	return w.toModel(), nil
}

// DeleteProduct は商品を削除する。管理者トークンが必要。
func (c *Client) DeleteProduct(ctx context.Context, token, id string) error {
	return c.doJSON(ctx, "delete_product", http.MethodDelete, "/products/"+url.PathEscape(id), token, nil, nil)
}

// PlaceOrder は注文を作成する。
func (c *Client) PlaceOrder(ctx context.Context, token string, req OrderRequest) (model.Order, error) {
	var order model.Order
	if err := c.doJSON(ctx, "place_order", http.MethodPost, "/orders", token, req, &order); err != nil {
		return model.Order{}, err
	}
	return order, nil
}

// ListMyOrders はログイン中ユーザーの注文一覧を取得する。
func (c *Client) ListMyOrders(ctx context.Context, token string) ([]model.Order, error) {
	var orders []model.Order
	if err := c.doJSON(ctx, "list_my_orders", http.MethodGet, "/orders/mine", token, nil, &orders); err != nil {
		return nil, err
	}
	if orders == nil {
		orders = []model.Order{}
	}
	return orders, nil
}

// ListAllOrders は全ユーザーの注文一覧を取得する。管理者トークンが必要。
func (c *Client) ListAllOrders(ctx context.Context, token string) ([]model.Order, error) {
	var orders []model.Order
	if err := c.doJSON(ctx, "list_all_orders", http.MethodGet, "/admin/orders", token, nil, &orders); err != nil {
		return nil, err
	}
	if orders == nil {
		orders = []model.Order{}
	}
	return orders, nil
}

// ConfirmOrder は注文を確定状態へ遷移させる。管理者トークンが必要。
func (c *Client) ConfirmOrder(ctx context.Context, token, orderID string) (model.Order, error) {
	var order model.Order
	if err := c.doJSON(ctx, "confirm_order", http.MethodPatch, "/orders/"+url.PathEscape(orderID)+"/confirm", token, nil, &order); err != nil {
		return model.Order{}, err
	}
	return order, nil
}

// RejectOrder は注文を拒否状態へ遷移させる。管理者トークンが必要。
func (c *Client) RejectOrder(ctx context.Context, token, orderID string) (model.Order, error) {
	var order model.Order
	if err := c.doJSON(ctx, "reject_order", http.MethodPatch, "/orders/"+url.PathEscape(orderID)+"/reject", token, nil, &order); err != nil {
		return model.Order{}, err
	}
	return order, nil
}

// Stats はダッシュボード用の統計を取得する。管理者トークンが必要。
func (c *Client) Stats(ctx context.Context, token string) (model.AdminStats, error) {
	var stats model.AdminStats
	if err := c.doJSON(ctx, "stats", http.MethodGet, "/admin/stats", token, nil, &stats); err != nil {
		return model.AdminStats{}, err
	}
	return stats, nil
}

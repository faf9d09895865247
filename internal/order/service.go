// Package order は注文の作成と照会のビジネスロジックを提供する。
// 注文の台帳はコマースAPIが管理し、本サービスはカートから注文ペイロードを
// 組み立てて送信し、成功時にカートを空にする役割を持つ。
package order

import (
	"context"
	"errors"
	"log/slog"

	"github.com/hitoshi/shopfront/internal/metrics"
	"github.com/hitoshi/shopfront/internal/model"
	"github.com/hitoshi/shopfront/internal/store"
	"github.com/hitoshi/shopfront/internal/upstream"
)

// OrderPlacer は注文に必要なコマースAPI操作のインターフェース。
type OrderPlacer interface {
	PlaceOrder(ctx context.Context, token string, req upstream.OrderRequest) (model.Order, error)
	ListMyOrders(ctx context.Context, token string) ([]model.Order, error)
	ListAllOrders(ctx context.Context, token string) ([]model.Order, error)
	ConfirmOrder(ctx context.Context, token, orderID string) (model.Order, error)
	RejectOrder(ctx context.Context, token, orderID string) (model.Order, error)
}

// Service は注文のビジネスロジックを提供する。
type Service struct {
	upstream OrderPlacer
	metrics  metrics.MetricsCollector
	logger   *slog.Logger
}

// NewService はServiceを生成する。collectorはnil可（テスト用）。
func NewService(up OrderPlacer, collector metrics.MetricsCollector, logger *slog.Logger) *Service {
	return &Service{
		upstream: up,
		metrics:  collector,
		logger:   logger,
	}
}

// Checkout はカートの内容から注文を作成する。
// 配送先の全項目が埋まっていること、カートが空でないことを検証してから
// コマースAPIへ送信し、成功した場合に限りカートを空にする。
// 送信に失敗した場合、カートは変更されない。
func (s *Service) Checkout(ctx context.Context, cart *store.CartStore, credential string, shipping model.ShippingInfo) (model.Order, error) {
	if missing := shipping.Validate(); len(missing) > 0 {
		return model.Order{}, model.NewInvalidShippingError(missing)
	}

	lines := cart.Lines()
	if len(lines) == 0 {
		return model.Order{}, model.NewEmptyCartError()
	}

	items := make([]model.OrderItem, 0, len(lines))
	for _, line := range lines {
		items = append(items, model.OrderItem{
			ProductID: line.ProductID,
			Title:     line.Snapshot.Title,
			Image:     line.Snapshot.Image,
			Price:     line.Snapshot.Price,
			Quantity:  line.Quantity,
		})
	}

	order, err := s.upstream.PlaceOrder(ctx, credential, upstream.OrderRequest{
		Items:        items,
		TotalAmount:  cart.Total(),
		ShippingInfo: shipping,
	})
	if err != nil {
		return model.Order{}, s.mapError(err)
	}

	// カートのクリアは注文成功後のみ。クリア自体の失敗は注文を無効にしない
	if err := cart.Clear(ctx); err != nil {
		s.logger.Error("注文成功後のカートのクリアに失敗しました",
			slog.String("order_id", order.ID),
			slog.String("error", err.Error()),
		)
	}

	if s.metrics != nil {
		s.metrics.RecordOrderPlaced()
	}
	s.logger.Info("注文を作成しました",
		slog.String("order_id", order.ID),
		slog.Int("item_count", len(items)),
	)

	return order, nil
}

// ListMine はログイン中ユーザーの注文一覧を返す。
func (s *Service) ListMine(ctx context.Context, credential string) ([]model.Order, error) {
	orders, err := s.upstream.ListMyOrders(ctx, credential)
	if err != nil {
		return nil, s.mapError(err)
	}
	return orders, nil
}

// ListAll は全ユーザーの注文一覧を返す。管理者専用。
func (s *Service) ListAll(ctx context.Context, credential string) ([]model.Order, error) {
	orders, err := s.upstream.ListAllOrders(ctx, credential)
	if err != nil {
		return nil, s.mapError(err)
	}
	return orders, nil
}

// Confirm は注文を確定状態へ遷移させる。管理者専用。
func (s *Service) Confirm(ctx context.Context, credential, orderID string) (model.Order, error) {
	order, err := s.upstream.ConfirmOrder(ctx, credential, orderID)
	if err != nil {
		if errors.Is(err, upstream.ErrNotFound) {
			return model.Order{}, model.NewOrderNotFoundError(orderID)
		}
		return model.Order{}, s.mapError(err)
	}
	s.logger.Info("注文を確定しました", slog.String("order_id", orderID))
	return order, nil
}

// Reject は注文を拒否状態へ遷移させる。管理者専用。
func (s *Service) Reject(ctx context.Context, credential, orderID string) (model.Order, error) {
	order, err := s.upstream.RejectOrder(ctx, credential, orderID)
	if err != nil {
		if errors.Is(err, upstream.ErrNotFound) {
			return model.Order{}, model.NewOrderNotFoundError(orderID)
		}
		return model.Order{}, s.mapError(err)
	}
	s.logger.Info("注文を拒否しました", slog.String("order_id", orderID))
	return order, nil
}

// mapError はコマースAPIのエラーを統一エラーフォーマットへ変換する。
func (s *Service) mapError(err error) error {
	if errors.Is(err, upstream.ErrUnauthorized) {
		return model.NewLoginRequiredError()
	}
	if errors.Is(err, upstream.ErrForbidden) {
		return model.NewAdminRequiredError()
	}
	var statusErr *upstream.StatusError
	if errors.As(err, &statusErr) {
		return model.NewUpstreamRejectedError(statusErr.Message)
	}
	return model.NewUpstreamFailedError()
}

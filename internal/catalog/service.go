// Package catalog は商品カタログの読み取りサービスを提供する。
// コマースAPIから取得した商品をそのまま返さず、説明文のサニタイズと
// 画像配列の正規化を行ってから配信する。
package catalog

import (
	"context"
	"errors"
	"log/slog"

	"github.com/hitoshi/shopfront/internal/model"
	"github.com/hitoshi/shopfront/internal/security"
	"github.com/hitoshi/shopfront/internal/upstream"
)

// ProductFetcher は商品取得に必要なコマースAPI操作のインターフェース。
type ProductFetcher interface {
	ListProducts(ctx context.Context) ([]model.Product, error)
	GetProduct(ctx context.Context, id string) (model.Product, error)
}

// Service は商品カタログの読み取りサービス。
type Service struct {
	fetcher   ProductFetcher
	sanitizer security.ContentSanitizerService
	logger    *slog.Logger
}

// NewService はServiceの新しいインスタンスを生成する。
func NewService(fetcher ProductFetcher, sanitizer security.ContentSanitizerService, logger *slog.Logger) *Service {
	return &Service{
		fetcher:   fetcher,
		sanitizer: sanitizer,
		logger:    logger,
	}
}

// List は全商品を取得する。説明文はサニタイズ済み、Imagesは非nil。
func (s *Service) List(ctx context.Context) ([]model.Product, error) {
	products, err := s.fetcher.ListProducts(ctx)
	if err != nil {
		s.logger.Error("商品一覧の取得に失敗しました", slog.String("error", err.Error()))
		return nil, model.NewUpstreamFailedError()
	}

	result := make([]model.Product, 0, len(products))
	for _, p := range products {
		result = append(result, s.normalize(p))
	}
	return result, nil
}

// Get は指定IDの商品を取得する。説明文はサニタイズ済み、Imagesは非nil。
// 存在しない場合はPRODUCT_NOT_FOUNDエラーを返す。
func (s *Service) Get(ctx context.Context, id string) (model.Product, error) {
	product, err := s.fetcher.GetProduct(ctx, id)
	if err != nil {
		if errors.Is(err, upstream.ErrNotFound) {
			return model.Product{}, model.NewProductNotFoundError(id)
		}
		s.logger.Error("商品の取得に失敗しました",
			slog.String("product_id", id),
			slog.String("error", err.Error()),
		)
		return model.Product{}, model.NewUpstreamFailedError()
	}
	return s.normalize(product), nil
}

// normalize は配信前の商品を整える。
// 説明文のサニタイズとImagesの非nil保証を行う。
func (s *Service) normalize(p model.Product) model.Product {
	p.Description = s.sanitizer.Sanitize(p.Description)
	if p.Images == nil {
		p.Images = []string{}
	}
	return p
}

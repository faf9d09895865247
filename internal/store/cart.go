// Package store はアプリケーションが唯一所有する状態（カートとセッション）の
// ストアを提供する。ストアは依存性注入される明示的な状態コンテナであり、
// カートとセッションへのすべての読み書きはストアの操作を通じて行われる。
package store

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"

	"github.com/shopspring/decimal"

	"github.com/hitoshi/shopfront/internal/model"
)

// CartStorage はカートの永続化先を抽象化するインターフェース。
// keyはカートの所有者（ビジター）を識別する。
type CartStorage interface {
	// Load は指定キーの永続化済みカートデータを取得する。
	// データが存在しない場合はnilを返す（エラーではない）。
	Load(ctx context.Context, key string) ([]byte, error)
	// Save は指定キーのカートデータを保存（UPSERT）する。
	Save(ctx context.Context, key string, data []byte) error
	// Delete は指定キーの永続化済みカートを削除する。存在しなくてもエラーにならない。
	Delete(ctx context.Context, key string) error
}

// CartStore はカートの唯一の変更窓口となるストア。
// メモリ上の行リストを保持し、すべての変更操作の後に永続化先へ
// ライトスルーする。行の挿入順は表示の安定のために保持される。
type CartStore struct {
	storage CartStorage
	key     string
	lines   []model.CartLine
}

// NewCartStore は永続化先からハイドレーションしたCartStoreを生成する。
// 永続化データが存在しない、またはパースできない場合は空のカートとして
// 復旧する（パース失敗はログに残すがエラーにはしない）。
// 永続化先自体の障害のみエラーを返す。
func NewCartStore(ctx context.Context, storage CartStorage, key string) (*CartStore, error) {
	s := &CartStore{
		storage: storage,
		key:     key,
	}

	data, err := storage.Load(ctx, key)
	if err != nil {
		return nil, fmt.Errorf("failed to load cart: %w", err)
	}
	if len(data) == 0 {
		return s, nil
	}

	var lines []model.CartLine
	if err := json.Unmarshal(data, &lines); err != nil {
		// 壊れた永続化データは空カートとして扱い、ユーザーには見せない
		slog.Warn("persisted cart data is malformed, starting with empty cart",
			slog.String("key", key),
			slog.String("error", err.Error()),
		)
		return s, nil
	}

	// 数量0以下の行は不変条件違反なので読み捨てる
	for _, l := range lines {
		if l.Quantity >= 1 {
			s.lines = append(s.lines, l)
		}
	}

	return s, nil
}

// AddItem は商品をカートに追加する。
// 同一ProductIDの行が既に存在する場合は数量を1増やし、スナップショットは
// 更新しない（追加時点の価格・タイトルを保持する）。
// 存在しない場合は数量1の行を末尾に追加する。
func (s *CartStore) AddItem(ctx context.Context, productID string, snapshot model.ProductSnapshot) error {
	for i := range s.lines {
		if s.lines[i].ProductID == productID {
			s.lines[i].Quantity++
			return s.persist(ctx)
		}
	}

	s.lines = append(s.lines, model.CartLine{
		ProductID: productID,
		Snapshot:  snapshot,
		Quantity:  1,
	})
	return s.persist(ctx)
}

// Decrement は指定商品の数量を1減らす。数量が0以下になった行は
// カートから取り除く。ProductIDが存在しない場合は何もしない。
func (s *CartStore) Decrement(ctx context.Context, productID string) error {
	for i := range s.lines {
		if s.lines[i].ProductID != productID {
			continue
		}
		s.lines[i].Quantity--
		if s.lines[i].Quantity <= 0 {
			s.lines = append(s.lines[:i], s.lines[i+1:]...)
		}
		return s.persist(ctx)
	}
	return nil
}

// RemoveItem は指定商品の行を数量に関わらず取り除く。
// ProductIDが存在しない場合は何もしない。
func (s *CartStore) RemoveItem(ctx context.Context, productID string) error {
	for i := range s.lines {
		if s.lines[i].ProductID != productID {
			continue
		}
		s.lines = append(s.lines[:i], s.lines[i+1:]...)
		return s.persist(ctx)
	}
	return nil
}

// SetQuantity は指定商品の数量をmax(1, quantity)に設定する。
// 1未満の指定は1にクランプされ、行の削除は決して起こらない
// （削除はDecrementまたはRemoveItemの責務）。
// ProductIDが存在しない場合は何もしない。
func (s *CartStore) SetQuantity(ctx context.Context, productID string, quantity int) error {
	if quantity < 1 {
		quantity = 1
	}
	for i := range s.lines {
		if s.lines[i].ProductID != productID {
			continue
		}
		s.lines[i].Quantity = quantity
		return s.persist(ctx)
	}
	return nil
}

// Clear はカートを空にし、永続化済みデータも削除する。
func (s *CartStore) Clear(ctx context.Context) error {
	s.lines = nil
	if err := s.storage.Delete(ctx, s.key); err != nil {
		return fmt.Errorf("failed to delete persisted cart: %w", err)
	}
	return nil
}

// Total は全行の小計の合計を返す。導出値であり保存はされない。
func (s *CartStore) Total() decimal.Decimal {
	total := decimal.Zero
	for _, l := range s.lines {
		total = total.Add(l.Subtotal())
	}
	return total
}

// Lines は表示用に行のコピーを挿入順で返す。
// 返り値を変更してもストアの状態には影響しない。
func (s *CartStore) Lines() []model.CartLine {
	lines := make([]model.CartLine, len(s.lines))
	copy(lines, s.lines)
	return lines
}

// Len はカート内の行数（商品種類数）を返す。
func (s *CartStore) Len() int {
	return len(s.lines)
}

// persist は現在の行リストを永続化先へライトスルーする。
func (s *CartStore) persist(ctx context.Context) error {
	data, err := json.Marshal(s.lines)
	if err != nil {
		return fmt.Errorf("failed to encode cart: %w", err)
	}
	if err := s.storage.Save(ctx, s.key, data); err != nil {
		return fmt.Errorf("failed to persist cart: %w", err)
	}
	return nil
}

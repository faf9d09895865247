// Package model はドメインモデルを定義する。
package model

import "github.com/shopspring/decimal"

// ProductSnapshot はカート投入時点の商品表示情報のコピーを表す。
// サーバー側で価格やタイトルが変わってもスナップショットは更新されない。
type ProductSnapshot struct {
	Title    string          `json:"title"`
	Price    decimal.Decimal `json:"price"`
	Image    string          `json:"image"`
	Category string          `json:"category"`
}

// CartLine はカート内の1商品のエントリを表す。
// Quantityは常に1以上。0以下のCartLineは存在できず、
// デクリメントで0になった行はカートから取り除かれる。
type CartLine struct {
	ProductID string          `json:"product_id"`
	Snapshot  ProductSnapshot `json:"snapshot"`
	Quantity  int             `json:"quantity"`
}

// Subtotal はこの行の小計（単価×数量）を返す。
func (l CartLine) Subtotal() decimal.Decimal {
	return l.Snapshot.Price.Mul(decimal.NewFromInt(int64(l.Quantity)))
}

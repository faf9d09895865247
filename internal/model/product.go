// Package model はドメインモデルを定義する。
package model

import "github.com/shopspring/decimal"

// Product はコマースAPIが管理する商品を表す。
// Imagesはカタログ層で常に非nilの配列に正規化される
// （コマースAPIは配列とスカラーの両形式を返すことがある）。
type Product struct {
	ID          string          `json:"id"`
	Title       string          `json:"title"`
	Description string          `json:"description"` // サニタイズ済みHTML
	Price       decimal.Decimal `json:"price"`
	Category    string          `json:"category"`
	Images      []string        `json:"images"`
}

// FirstImage は表示用の先頭画像URLを返す。画像がない場合は空文字を返す。
func (p Product) FirstImage() string {
	if len(p.Images) == 0 {
		return ""
	}
	return p.Images[0]
}

// ProductInput は商品作成・更新でコマースAPIに送るペイロード。
type ProductInput struct {
	Title       string          `json:"title"`
	Description string          `json:"description"`
	Price       decimal.Decimal `json:"price"`
	Category    string          `json:"category"`
	Images      []string        `json:"images"`
}

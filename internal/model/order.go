// Package model はドメインモデルを定義する。
package model

import (
	"time"

	"github.com/shopspring/decimal"
)

// OrderStatus は注文のステータスを表す。
type OrderStatus string

const (
	// OrderStatusPending は管理者の確認待ちステータス。
	OrderStatusPending OrderStatus = "Pending"
	// OrderStatusConfirmed は管理者が確認済みのステータス。
	OrderStatusConfirmed OrderStatus = "Confirmed"
	// OrderStatusRejected は管理者が拒否したステータス。
	OrderStatusRejected OrderStatus = "Rejected"
)

// ShippingInfo は注文の配送先情報を表す。全フィールド必須。
type ShippingInfo struct {
	Name    string `json:"name"`
	Address string `json:"address"`
	Phone   string `json:"phone"`
	Pin     string `json:"pin"`
	City    string `json:"city"`
	State   string `json:"state"`
}

// Validate は配送先情報の必須フィールドをチェックし、
// 欠けているフィールド名のリストを返す。すべて埋まっていれば空を返す。
func (s ShippingInfo) Validate() []string {
	var missing []string
	fields := []struct {
		name  string
		value string
	}{
		{"name", s.Name},
		{"address", s.Address},
		{"phone", s.Phone},
		{"pin", s.Pin},
		{"city", s.City},
		{"state", s.State},
	}
	for _, f := range fields {
		if f.value == "" {
			missing = append(missing, f.name)
		}
	}
	return missing
}

// OrderItem は注文に含まれる1商品を表す。
// カートのスナップショットから生成され、注文時点の表示情報を固定する。
type OrderItem struct {
	ProductID string          `json:"id"`
	Title     string          `json:"title"`
	Image     string          `json:"image"`
	Price     decimal.Decimal `json:"price"`
	Quantity  int             `json:"qty"`
}

// Order はコマースAPIが管理する注文を表す。
type Order struct {
	ID           string          `json:"id"`
	UserID       string          `json:"user_id"`
	Items        []OrderItem     `json:"items"`
	TotalAmount  decimal.Decimal `json:"totalAmount"`
	ShippingInfo ShippingInfo    `json:"shippingInfo"`
	Status       OrderStatus     `json:"status"`
	CreatedAt    time.Time       `json:"created_at"`
}

// AdminStats は管理ダッシュボードの統計情報を表す。
type AdminStats struct {
	TotalUsers    int             `json:"totalUsers"`
	TotalOrders   int             `json:"totalOrders"`
	TotalRevenue  decimal.Decimal `json:"totalRevenue"`
	TotalProducts int             `json:"totalProducts"`
}

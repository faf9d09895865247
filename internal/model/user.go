// Package model はドメインモデルを定義する。
package model

import "time"

// User はコマースAPIが管理するユーザーを表す。
// 本サービスはユーザーを所有せず、ログイン時にコマースAPIから受け取った
// レコードをセッションに保持するだけである。
type User struct {
	ID      string `json:"id"`
	Name    string `json:"name"`
	Email   string `json:"email"`
	IsAdmin bool   `json:"isAdmin"`
	Avatar  string `json:"avatar,omitempty"` // 画像ホスティングの公開URL
}

// Session はブラウザとのログインセッションを表す。
// コマースAPIのbearerトークン（Credential）とユーザーレコードの
// スナップショットを保持する。Credentialは認証済みセッションにのみ存在する。
type Session struct {
	ID         string
	UserID     string
	User       User
	Credential string
	ExpiresAt  time.Time
	CreatedAt  time.Time
}

// Package repository はデータ永続化のインターフェースを定義する。
package repository

import (
	"context"
	"time"

	"github.com/hitoshi/shopfront/internal/model"
)

// CartRepository はビジターごとのカートスナップショットの永続化インターフェース。
// dataはカート行のJSON配列をそのまま保持し、内容の解釈は呼び出し側が行う。
type CartRepository interface {
	// Load は指定オーナーのカートデータを取得する。見つからない場合はnilを返す。
	Load(ctx context.Context, ownerID string) ([]byte, error)

	// Save は指定オーナーのカートデータを保存する。既存データは上書きされる。
	Save(ctx context.Context, ownerID string, data []byte) error

	// Delete は指定オーナーのカートデータを削除する。
	Delete(ctx context.Context, ownerID string) error

	// DeleteIdleBefore は指定日時より前に最終更新されたカートを削除し、件数を返す。
	DeleteIdleBefore(ctx context.Context, cutoff time.Time) (int64, error)
}

// SessionRepository はセッションデータの永続化インターフェース。
type SessionRepository interface {
	// Create はセッションを作成する。
	Create(ctx context.Context, session *model.Session) error
	// FindByID は指定IDのセッションを取得する。期限切れの場合はnilを返す。
	FindByID(ctx context.Context, id string) (*model.Session, error)
	// UpdateUser はセッションが保持するユーザーレコードを差し替える。
	UpdateUser(ctx context.Context, id string, user model.User) error
	// DeleteByID は指定IDのセッションを削除する。
	DeleteByID(ctx context.Context, id string) error
	// DeleteByUserID は指定ユーザーの全セッションを削除する。
	DeleteByUserID(ctx context.Context, userID string) error
	// DeleteExpired は期限切れセッションを削除し、件数を返す。
	DeleteExpired(ctx context.Context) (int64, error)
}

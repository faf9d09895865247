// Package cleanup はカートとセッションの自動削除ジョブを提供する。
// 保持期間（デフォルト30日）を超えて放置されたカートと、期限切れの
// セッションを日次バッチで削除する。
package cleanup

import (
	"context"
	"fmt"
	"log/slog"
	"time"
)

// IdleCartPurger は放置カートの削除を抽象化するインターフェース。
// repository.CartRepository が実装する。
type IdleCartPurger interface {
	DeleteIdleBefore(ctx context.Context, cutoff time.Time) (int64, error)
}

// ExpiredSessionPurger は期限切れセッションの削除を抽象化するインターフェース。
// repository.SessionRepository が実装する。
type ExpiredSessionPurger interface {
	DeleteExpired(ctx context.Context) (int64, error)
}

// CleanupJob は放置カートと期限切れセッションの自動削除ジョブ。
// 日次実行のバッチジョブとして設計されており、冪等な削除処理を保証する。
type CleanupJob struct {
	carts             IdleCartPurger
	sessions          ExpiredSessionPurger
	logger            *slog.Logger
	CartRetentionDays int // 放置カートの保持日数（デフォルト: 30）
}

// NewCleanupJob は新しいCleanupJobを生成する。
// カートのデフォルト保持日数は30日。
func NewCleanupJob(carts IdleCartPurger, sessions ExpiredSessionPurger, logger *slog.Logger) *CleanupJob {
	return &CleanupJob{
		carts:             carts,
		sessions:          sessions,
		logger:            logger,
		CartRetentionDays: 30,
	}
}

// Run は放置カートと期限切れセッションを削除する。
// updated_atがCartRetentionDays日前より古いカートが削除対象。
// 冪等: 削除対象がない場合でもエラーにならない。
func (j *CleanupJob) Run(ctx context.Context) error {
	start := time.Now()

	cutoff := start.AddDate(0, 0, -j.CartRetentionDays)
	deletedCarts, err := j.carts.DeleteIdleBefore(ctx, cutoff)
	if err != nil {
		j.logger.Error("放置カートの削除に失敗しました",
			slog.String("error", err.Error()),
			slog.Int("retention_days", j.CartRetentionDays),
		)
		return fmt.Errorf("放置カートの削除に失敗: %w", err)
	}

	deletedSessions, err := j.sessions.DeleteExpired(ctx)
	if err != nil {
		j.logger.Error("期限切れセッションの削除に失敗しました",
			slog.String("error", err.Error()),
		)
		return fmt.Errorf("期限切れセッションの削除に失敗: %w", err)
	}

	duration := time.Since(start)
	j.logger.Info("クリーンアップジョブが完了しました",
		slog.Int64("deleted_carts", deletedCarts),
		slog.Int64("deleted_sessions", deletedSessions),
		slog.Int("retention_days", j.CartRetentionDays),
		slog.Float64("duration_ms", float64(duration.Milliseconds())),
	)

	return nil
}

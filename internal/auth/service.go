// Package auth はコマースAPIに委譲する認証フローとセッション管理を提供する。
// パスワードの検証はコマースAPIが行い、本サービスは成功時に受け取った
// bearerトークンをセッションに保存してブラウザにはセッションIDのみを渡す。
package auth

import (
	"context"
	"crypto/rand"
	"encoding/hex"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/hitoshi/shopfront/internal/model"
	"github.com/hitoshi/shopfront/internal/repository"
	"github.com/hitoshi/shopfront/internal/upstream"
)

// UpstreamAuthenticator は認証に必要なコマースAPI操作のインターフェース。
type UpstreamAuthenticator interface {
	Login(ctx context.Context, email, password string) (model.User, string, error)
	Signup(ctx context.Context, name, email, password string) (model.User, string, error)
	UpdateProfile(ctx context.Context, token string, input upstream.ProfileInput) (model.User, error)
}

// ServiceConfig は認証サービスの設定。
type ServiceConfig struct {
	SessionMaxAge int // セッション有効期間（秒）
}

// Service は認証に関するビジネスロジックを提供する。
type Service struct {
	upstream    UpstreamAuthenticator
	sessionRepo repository.SessionRepository
	config      ServiceConfig
}

// NewService はServiceを生成する。
func NewService(
	up UpstreamAuthenticator,
	sessionRepo repository.SessionRepository,
	config ServiceConfig,
) *Service {
	return &Service{
		upstream:    up,
		sessionRepo: sessionRepo,
		config:      config,
	}
}

// Login はコマースAPIで認証し、成功時にセッションを発行する。
// メールアドレスとパスワードがともに空の場合はログイン状態のクリアとして扱い、
// セッションを発行せずnilを返す（エラーではない）。
// 認証情報が誤っている場合はINVALID_CREDENTIALSエラーを返す。
func (s *Service) Login(ctx context.Context, email, password string) (*model.Session, error) {
	if email == "" && password == "" {
		return nil, nil
	}

	user, token, err := s.upstream.Login(ctx, email, password)
	if err != nil {
		if errors.Is(err, upstream.ErrUnauthorized) {
			return nil, model.NewInvalidCredentialsError()
		}
		return nil, model.NewUpstreamFailedError()
	}

	session, err := s.createSession(ctx, user, token)
	if err != nil {
		return nil, fmt.Errorf("failed to create session: %w", err)
	}

	slog.Info("user logged in",
		slog.String("user_id", user.ID),
		slog.Bool("is_admin", user.IsAdmin),
	)
	return session, nil
}

// AdminLogin は管理者向けのログイン。認証自体が成功しても
// 管理者権限のないアカウントにはADMIN_REQUIREDを返し、セッションは発行しない。
func (s *Service) AdminLogin(ctx context.Context, email, password string) (*model.Session, error) {
	user, token, err := s.upstream.Login(ctx, email, password)
	if err != nil {
		if errors.Is(err, upstream.ErrUnauthorized) {
			return nil, model.NewInvalidCredentialsError()
		}
		return nil, model.NewUpstreamFailedError()
	}

	if !user.IsAdmin {
		slog.Warn("admin login rejected for non-admin account",
			slog.String("user_id", user.ID),
		)
		return nil, model.NewAdminRequiredError()
	}

	session, err := s.createSession(ctx, user, token)
	if err != nil {
		return nil, fmt.Errorf("failed to create session: %w", err)
	}

	slog.Info("admin logged in", slog.String("user_id", user.ID))
	return session, nil
}

// Signup は新規ユーザーをコマースAPIに登録し、セッションを発行する。
func (s *Service) Signup(ctx context.Context, name, email, password string) (*model.Session, error) {
	user, token, err := s.upstream.Signup(ctx, name, email, password)
	if err != nil {
		var statusErr *upstream.StatusError
		if errors.As(err, &statusErr) {
			return nil, model.NewUpstreamRejectedError(statusErr.Message)
		}
		return nil, model.NewUpstreamFailedError()
	}

	session, err := s.createSession(ctx, user, token)
	if err != nil {
		return nil, fmt.Errorf("failed to create session: %w", err)
	}

	slog.Info("new user signed up", slog.String("user_id", user.ID))
	return session, nil
}

// Logout はセッションを破棄する。カートには影響しない。
func (s *Service) Logout(ctx context.Context, sessionID string) error {
	if sessionID == "" {
		return fmt.Errorf("session ID is required")
	}

	if err := s.sessionRepo.DeleteByID(ctx, sessionID); err != nil {
		return fmt.Errorf("failed to delete session: %w", err)
	}

	slog.Info("user logged out", slog.String("session_id", sessionID))
	return nil
}

// GetSession はセッションIDからセッションを取得する。
// 期限切れまたは未登録の場合はnilを返す。
func (s *Service) GetSession(ctx context.Context, sessionID string) (*model.Session, error) {
	if sessionID == "" {
		return nil, nil
	}

	session, err := s.sessionRepo.FindByID(ctx, sessionID)
	if err != nil {
		return nil, fmt.Errorf("failed to find session: %w", err)
	}
	return session, nil
}

// UpdateProfile はコマースAPIでプロフィールを更新し、
// セッションが保持するユーザーレコードを更新後の内容へ差し替える。
func (s *Service) UpdateProfile(ctx context.Context, session *model.Session, input upstream.ProfileInput) (model.User, error) {
	user, err := s.upstream.UpdateProfile(ctx, session.Credential, input)
	if err != nil {
		if errors.Is(err, upstream.ErrUnauthorized) {
			// トークン失効。セッションを破棄して再ログインを促す
			if delErr := s.sessionRepo.DeleteByID(ctx, session.ID); delErr != nil {
				slog.Error("failed to delete stale session",
					slog.String("session_id", session.ID),
					slog.String("error", delErr.Error()),
				)
			}
			return model.User{}, model.NewLoginRequiredError()
		}
		var statusErr *upstream.StatusError
		if errors.As(err, &statusErr) {
			return model.User{}, model.NewUpstreamRejectedError(statusErr.Message)
		}
		return model.User{}, model.NewUpstreamFailedError()
	}

	if err := s.sessionRepo.UpdateUser(ctx, session.ID, user); err != nil {
		return model.User{}, fmt.Errorf("failed to update session user: %w", err)
	}

	return user, nil
}

// createSession はセッションを作成し永続化する。
func (s *Service) createSession(ctx context.Context, user model.User, token string) (*model.Session, error) {
	sessionID, err := generateSessionID()
	if err != nil {
		return nil, fmt.Errorf("failed to generate session ID: %w", err)
	}

	session := &model.Session{
		ID:         sessionID,
		UserID:     user.ID,
		User:       user,
		Credential: token,
		ExpiresAt:  time.Now().Add(time.Duration(s.config.SessionMaxAge) * time.Second),
		CreatedAt:  time.Now(),
	}

	if err := s.sessionRepo.Create(ctx, session); err != nil {
		return nil, fmt.Errorf("failed to save session: %w", err)
	}

	return session, nil
}

// generateSessionID は暗号的に安全なセッションIDを生成する。
func generateSessionID() (string, error) {
	b := make([]byte, 32)
	if _, err := rand.Read(b); err != nil {
		return "", err
	}
	return hex.EncodeToString(b), nil
}

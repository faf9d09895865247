// Package middleware はHTTPミドルウェアを提供する。
package middleware

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"strconv"

	"github.com/hitoshi/shopfront/internal/model"
	"github.com/hitoshi/shopfront/internal/store"
)

const sessionCookieName = "session_id"

// sessionRetryAfterSec はセッション状態が未確定の場合のRetry-After秒数。
const sessionRetryAfterSec = 2

// contextKey はコンテキストに値を格納するための型安全なキー。
type contextKey string

// sessionStoreContextKey はリクエストコンテキストにセッションストアを格納するためのキー。
var sessionStoreContextKey = contextKey("session_store")

// sessionContextKey はリクエストコンテキストにセッションレコードを格納するためのキー。
var sessionContextKey = contextKey("session")

// SessionFinder はセッションの検索に必要なインターフェース。
// repository.SessionRepositoryの部分集合として定義する。
type SessionFinder interface {
	FindByID(ctx context.Context, id string) (*model.Session, error)
}

// NewSessionMiddleware はHTTP Only Cookieからセッションを解決し、
// 3状態（未確定・未ログイン・ログイン済み）のセッションストアを
// リクエストコンテキストに注入するミドルウェアを返す。
//
// Cookieなし、または期限切れセッションは未ログイン状態になる。
// ストレージ障害で解決できなかった場合のみ未確定のまま通過させ、
// 拒否の判断は後段のRequireUser/RequireAdminに委ねる。
// このミドルウェア自体はリクエストを拒否しない。
func NewSessionMiddleware(sessionFinder SessionFinder) func(next http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			sessionStore := store.NewSessionStore()
			var session *model.Session

			cookie, err := r.Cookie(sessionCookieName)
			if err != nil || cookie.Value == "" {
				sessionStore.ResolveAnonymous()
			} else {
				found, err := sessionFinder.FindByID(r.Context(), cookie.Value)
				switch {
				case err != nil:
					// 解決失敗。未確定のままにし、ログアウト扱いにしない
					slog.Error("failed to resolve session",
						slog.String("error", err.Error()),
					)
				case found == nil:
					sessionStore.ResolveAnonymous()
				default:
					sessionStore.Login(found.User, found.Credential)
					session = found
				}
			}

			ctx := context.WithValue(r.Context(), sessionStoreContextKey, sessionStore)
			ctx = context.WithValue(ctx, sessionContextKey, session)
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

// RequireUser はログイン済みセッションを必須とするミドルウェアを返す。
// 未確定の場合は503とRetry-Afterを返し、クライアントに再試行を促す
// （ログアウト扱いにしてはならない）。未ログインの場合は401を返す。
func RequireUser() func(next http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			sessionStore, err := SessionStoreFromContext(r.Context())
			if err != nil {
				WriteInternalServerError(w)
				return
			}

			switch sessionStore.State() {
			case store.StateUnknown:
				w.Header().Set("Retry-After", strconv.Itoa(sessionRetryAfterSec))
				WriteErrorResponse(w, http.StatusServiceUnavailable, model.NewSessionResolvingError())
			case store.StateAnonymous:
				WriteErrorResponse(w, http.StatusUnauthorized, model.NewLoginRequiredError())
			default:
				next.ServeHTTP(w, r)
			}
		})
	}
}

// RequireAdmin は管理者セッションを必須とするミドルウェアを返す。
// 未確定は503（再試行）、未ログインは401、管理者権限のない
// ログイン済みユーザーは403で拒否する。
func RequireAdmin() func(next http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			sessionStore, err := SessionStoreFromContext(r.Context())
			if err != nil {
				WriteInternalServerError(w)
				return
			}

			switch {
			case sessionStore.State() == store.StateUnknown:
				w.Header().Set("Retry-After", strconv.Itoa(sessionRetryAfterSec))
				WriteErrorResponse(w, http.StatusServiceUnavailable, model.NewSessionResolvingError())
			case sessionStore.State() == store.StateAnonymous:
				WriteErrorResponse(w, http.StatusUnauthorized, model.NewLoginRequiredError())
			case !sessionStore.IsAdmin():
				WriteErrorResponse(w, http.StatusForbidden, model.NewAdminRequiredError())
			default:
				next.ServeHTTP(w, r)
			}
		})
	}
}

// SessionStoreFromContext はリクエストコンテキストからセッションストアを取得する。
// セッションミドルウェアを通過したリクエストでのみ有効。
func SessionStoreFromContext(ctx context.Context) (*store.SessionStore, error) {
	sessionStore, ok := ctx.Value(sessionStoreContextKey).(*store.SessionStore)
	if !ok || sessionStore == nil {
		return nil, fmt.Errorf("session store not found in context")
	}
	return sessionStore, nil
}

// SessionFromContext はリクエストコンテキストからセッションレコードを取得する。
// ログイン済みでない場合はnilを返す。
func SessionFromContext(ctx context.Context) *model.Session {
	session, _ := ctx.Value(sessionContextKey).(*model.Session)
	return session
}

// UserIDFromContext はリクエストコンテキストからログイン中ユーザーのIDを取得する。
// ログイン済みでない場合はエラーを返す。
func UserIDFromContext(ctx context.Context) (string, error) {
	sessionStore, err := SessionStoreFromContext(ctx)
	if err != nil {
		return "", err
	}
	user, ok := sessionStore.CurrentUser()
	if !ok {
		return "", fmt.Errorf("user not authenticated")
	}
	return user.ID, nil
}

// ContextWithSessionStore はコンテキストにセッションストアを注入する。
// テストやミドルウェア以外のコンテキスト生成で使用する。
func ContextWithSessionStore(ctx context.Context, sessionStore *store.SessionStore) context.Context {
	return context.WithValue(ctx, sessionStoreContextKey, sessionStore)
}

// ContextWithSession はコンテキストにセッションレコードを注入する。テスト用。
func ContextWithSession(ctx context.Context, session *model.Session) context.Context {
	return context.WithValue(ctx, sessionContextKey, session)
}

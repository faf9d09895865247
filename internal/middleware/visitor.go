package middleware

import (
	"context"
	"fmt"
	"net/http"

	"github.com/google/uuid"
)

const visitorCookieName = "visitor_id"

// visitorCookieMaxAge はビジターCookieの有効期間（180日）。
// カートの保持期間より長くしておく。
const visitorCookieMaxAge = 180 * 24 * 60 * 60

// visitorIDContextKey はリクエストコンテキストにビジターIDを格納するためのキー。
var visitorIDContextKey = contextKey("visitor_id")

// VisitorConfig はビジターCookieの設定。
type VisitorConfig struct {
	CookieSecure bool
	CookieDomain string
}

// NewVisitorMiddleware はビジターIDを解決するミドルウェアを返す。
// 初回アクセスのブラウザにはUUIDを払い出してHTTP Only Cookieに設定する。
// ビジターIDはカートの永続化キーとレート制限のキーに使用される。
func NewVisitorMiddleware(config VisitorConfig) func(next http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			var visitorID string

			cookie, err := r.Cookie(visitorCookieName)
			if err == nil && cookie.Value != "" {
				visitorID = cookie.Value
			} else {
				visitorID = uuid.New().String()
				http.SetCookie(w, &http.Cookie{
					Name:     visitorCookieName,
					Value:    visitorID,
					Path:     "/",
					Domain:   config.CookieDomain,
					MaxAge:   visitorCookieMaxAge,
					HttpOnly: true,
					Secure:   config.CookieSecure,
					SameSite: http.SameSiteLaxMode,
				})
			}

			ctx := context.WithValue(r.Context(), visitorIDContextKey, visitorID)
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

// VisitorIDFromContext はリクエストコンテキストからビジターIDを取得する。
// ビジターミドルウェアを通過したリクエストでのみ有効。
func VisitorIDFromContext(ctx context.Context) (string, error) {
	visitorID, ok := ctx.Value(visitorIDContextKey).(string)
	if !ok || visitorID == "" {
		return "", fmt.Errorf("visitor ID not found in context")
	}
	return visitorID, nil
}

// ContextWithVisitorID はコンテキストにビジターIDを注入する。テスト用。
func ContextWithVisitorID(ctx context.Context, visitorID string) context.Context {
	return context.WithValue(ctx, visitorIDContextKey, visitorID)
}

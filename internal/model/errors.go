// Package model はドメインモデルを定義する。
package model

import "fmt"

// APIError は統一エラーフォーマットを表す。
// UIに表示する原因カテゴリと対処方法を含む。
type APIError struct {
	Code     string // エラーコード
	Message  string // エラーメッセージ
	Category string // カテゴリ: auth, validation, cart, order, upstream, system
	Action   string // ユーザー向け対処方法
}

// Error はerrorインターフェースを実装する。
func (e *APIError) Error() string {
	return fmt.Sprintf("[%s] %s", e.Code, e.Message)
}

// 定義済みエラーコード
const (
	ErrCodeInvalidCredentials = "INVALID_CREDENTIALS"
	ErrCodeAdminRequired      = "ADMIN_REQUIRED"
	ErrCodeSessionResolving   = "SESSION_RESOLVING"
	ErrCodeLoginRequired      = "LOGIN_REQUIRED"
	ErrCodeProductNotFound    = "PRODUCT_NOT_FOUND"
	ErrCodeOrderNotFound      = "ORDER_NOT_FOUND"
	ErrCodeEmptyCart          = "EMPTY_CART"
	ErrCodeInvalidShipping    = "INVALID_SHIPPING"
	ErrCodeInvalidQuantity    = "INVALID_QUANTITY"
	ErrCodeUpstreamFailed     = "UPSTREAM_FAILED"
	ErrCodeUpstreamRejected   = "UPSTREAM_REJECTED"
	ErrCodeUploadFailed       = "UPLOAD_FAILED"
	ErrCodeSSRFBlocked        = "SSRF_BLOCKED"
	ErrCodeInvalidURL         = "INVALID_URL"
)

// NewInvalidCredentialsError はログイン失敗エラーを生成する。
func NewInvalidCredentialsError() *APIError {
	return &APIError{
		Code:     ErrCodeInvalidCredentials,
		Message:  "メールアドレスまたはパスワードが正しくありません。",
		Category: "auth",
		Action:   "入力内容を確認して再度お試しください。",
	}
}

// NewAdminRequiredError は管理者権限が必要な操作に対するエラーを生成する。
func NewAdminRequiredError() *APIError {
	return &APIError{
		Code:     ErrCodeAdminRequired,
		Message:  "このアカウントには管理者権限がありません。",
		Category: "auth",
		Action:   "管理者アカウントでログインしてください。",
	}
}

// NewSessionResolvingError はセッション状態が未確定（Unknown）の場合のエラーを生成する。
// ログアウト扱いにしてはならず、クライアントはローディング表示のまま再試行する。
func NewSessionResolvingError() *APIError {
	return &APIError{
		Code:     ErrCodeSessionResolving,
		Message:  "ログイン状態を確認中です。",
		Category: "system",
		Action:   "しばらく待ってから再度お試しください。",
	}
}

// NewLoginRequiredError はログインが必要な操作に対するエラーを生成する。
func NewLoginRequiredError() *APIError {
	return &APIError{
		Code:     ErrCodeLoginRequired,
		Message:  "この操作にはログインが必要です。",
		Category: "auth",
		Action:   "ログインしてから再度お試しください。",
	}
}

// NewProductNotFoundError は商品未検出エラーを生成する。
func NewProductNotFoundError(productID string) *APIError {
	return &APIError{
		Code:     ErrCodeProductNotFound,
		Message:  fmt.Sprintf("指定された商品が見つかりません: %s", productID),
		Category: "validation",
		Action:   "商品IDを確認してください。",
	}
}

// NewOrderNotFoundError は注文未検出エラーを生成する。
func NewOrderNotFoundError(orderID string) *APIError {
	return &APIError{
		Code:     ErrCodeOrderNotFound,
		Message:  fmt.Sprintf("指定された注文が見つかりません: %s", orderID),
		Category: "order",
		Action:   "注文IDを確認してください。",
	}
}

// NewEmptyCartError は空のカートで注文しようとした場合のエラーを生成する。
func NewEmptyCartError() *APIError {
	return &APIError{
		Code:     ErrCodeEmptyCart,
		Message:  "カートが空です。",
		Category: "cart",
		Action:   "商品をカートに追加してから注文してください。",
	}
}

// NewInvalidShippingError は配送先情報の不備エラーを生成する。
func NewInvalidShippingError(missing []string) *APIError {
	return &APIError{
		Code:     ErrCodeInvalidShipping,
		Message:  fmt.Sprintf("配送先情報に不足があります: %v", missing),
		Category: "validation",
		Action:   "配送先のすべての項目を入力してください。",
	}
}

// NewInvalidQuantityError は数量指定が不正な場合のエラーを生成する。
func NewInvalidQuantityError() *APIError {
	return &APIError{
		Code:     ErrCodeInvalidQuantity,
		Message:  "数量の指定が正しくありません。",
		Category: "validation",
		Action:   "数量には1以上の整数を指定してください。",
	}
}

// NewUpstreamFailedError はコマースAPIの呼び出し失敗エラーを生成する。
// ネットワークエラーや5xx応答が対象。ストアの状態は変更されない。
func NewUpstreamFailedError() *APIError {
	return &APIError{
		Code:     ErrCodeUpstreamFailed,
		Message:  "サーバーとの通信に失敗しました。",
		Category: "upstream",
		Action:   "しばらく待ってから再度お試しください。",
	}
}

// NewUpstreamRejectedError はコマースAPIがリクエストを拒否した場合のエラーを生成する。
func NewUpstreamRejectedError(reason string) *APIError {
	return &APIError{
		Code:     ErrCodeUpstreamRejected,
		Message:  fmt.Sprintf("リクエストが受け付けられませんでした: %s", reason),
		Category: "upstream",
		Action:   "入力内容を確認して再度お試しください。",
	}
}

// NewUploadFailedError は画像アップロード失敗エラーを生成する。
func NewUploadFailedError() *APIError {
	return &APIError{
		Code:     ErrCodeUploadFailed,
		Message:  "画像のアップロードに失敗しました。",
		Category: "upstream",
		Action:   "画像ファイルを確認して再度お試しください。",
	}
}

// NewSSRFBlockedError はSSRFブロックエラーを生成する。
func NewSSRFBlockedError() *APIError {
	return &APIError{
		Code:     ErrCodeSSRFBlocked,
		Message:  "セキュリティポリシーにより、指定されたURLへのアクセスがブロックされました。",
		Category: "validation",
		Action:   "公開されているWebサイトのURLを入力してください。ローカルネットワークやプライベートIPへのアクセスは許可されていません。",
	}
}

// NewInvalidURLError は無効なURLエラーを生成する。
func NewInvalidURLError(reason string) *APIError {
	return &APIError{
		Code:     ErrCodeInvalidURL,
		Message:  fmt.Sprintf("無効なURLです: %s", reason),
		Category: "validation",
		Action:   "正しいURL形式（http:// または https:// で始まるURL）を入力してください。",
	}
}

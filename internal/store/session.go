package store

import "github.com/hitoshi/shopfront/internal/model"

// SessionState はセッションの解決状態を表す。
// Unknownは「未解決（ローディング中）」であり「未ログイン」ではない。
// 消費側はUnknownをログアウト扱いしてはならない（リダイレクトのちらつき防止）。
type SessionState int

const (
	// StateUnknown はハイドレーション未完了の初期状態。
	StateUnknown SessionState = iota
	// StateAnonymous はログインしていないことが確定した状態。
	StateAnonymous
	// StateAuthenticated はユーザーレコードとクレデンシャルを持つ状態。
	StateAuthenticated
)

// String はSessionStateのログ用表現を返す。
func (s SessionState) String() string {
	switch s {
	case StateAnonymous:
		return "anonymous"
	case StateAuthenticated:
		return "authenticated"
	default:
		return "unknown"
	}
}

// SessionStore は現在の認証アイデンティティとbearerクレデンシャルを
// 保持するストア。不変条件: クレデンシャルはStateAuthenticatedの
// ときに限り存在する。
//
// 状態遷移: Unknown → {Anonymous, Authenticated}（ハイドレーションで1回）、
// 以後はLogin/Logoutで自由に遷移する。Authenticated同士の直接遷移は
// 新たなLogin呼び出しのみ（プロフィール更新は自動でセッションに
// 反映されず、呼び出し側が再Loginする）。
type SessionStore struct {
	state      SessionState
	user       model.User
	credential string
}

// NewSessionStore はUnknown状態のSessionStoreを生成する。
func NewSessionStore() *SessionStore {
	return &SessionStore{state: StateUnknown}
}

// ResolveAnonymous はハイドレーションの結果として未ログインを確定させる。
func (s *SessionStore) ResolveAnonymous() {
	s.state = StateAnonymous
	s.user = model.User{}
	s.credential = ""
}

// Login はアイデンティティとクレデンシャルを設定する。
// クレデンシャルの検証はコマースAPI側の責務であり、このストアは行わない。
// 空のユーザーと空のクレデンシャルの組は「拒否されたログインの明示的な
// クリア」として扱い、RejectLoginと同じ結果になる。
func (s *SessionStore) Login(user model.User, credential string) {
	if user == (model.User{}) && credential == "" {
		s.RejectLogin()
		return
	}
	s.state = StateAuthenticated
	s.user = user
	s.credential = credential
}

// RejectLogin は試行されたが拒否されたログインを明示的にクリアする
// （例: 非管理者による管理者ログインの試行）。以前のAuthenticated状態の
// クレデンシャルを黙って保持することはない。
func (s *SessionStore) RejectLogin() {
	s.state = StateAnonymous
	s.user = model.User{}
	s.credential = ""
}

// Logout はアイデンティティをAnonymousに戻し、クレデンシャルを破棄する。
// カートストアには影響しない。両方をクリアしたい場合は呼び出し側が
// それぞれ明示的に呼ぶ。
func (s *SessionStore) Logout() {
	s.ResolveAnonymous()
}

// State は現在の解決状態を返す。
func (s *SessionStore) State() SessionState {
	return s.state
}

// CurrentUser は現在のユーザーレコードを返す。
// 2番目の返り値はStateAuthenticatedのときのみtrue。
func (s *SessionStore) CurrentUser() (model.User, bool) {
	if s.state != StateAuthenticated {
		return model.User{}, false
	}
	return s.user, true
}

// CurrentCredential は外向きリクエストのAuthorizationヘッダーに使う
// bearerクレデンシャルを返す。2番目の返り値はStateAuthenticatedの
// ときのみtrue。
func (s *SessionStore) CurrentCredential() (string, bool) {
	if s.state != StateAuthenticated {
		return "", false
	}
	return s.credential, true
}

// IsAdmin は現在のユーザーが管理者権限を持つかを返す。
// Authenticatedでない場合は常にfalse。
func (s *SessionStore) IsAdmin() bool {
	return s.state == StateAuthenticated && s.user.IsAdmin
}

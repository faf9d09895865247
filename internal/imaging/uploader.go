// Package imaging は商品画像のアップロードと外部URLからの取り込みを提供する。
// 画像の実体は外部の画像ホスティングサービスが保持し、本サービスは
// unsignedアップロードで得た公開URLを扱うだけである。
package imaging

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"mime/multipart"
	"net/http"
	"strings"
	"time"

	"github.com/hitoshi/shopfront/internal/model"
)

// SSRFValidator は外部URL取り込み時のSSRF防止インターフェース。
type SSRFValidator interface {
	NewSafeClient(timeout time.Duration, maxResponseSize int64) *http.Client
	ValidateURL(rawURL string) error
}

// Config はアップローダーの設定。
type Config struct {
	UploadURL    string        // 画像ホスティングのアップロードエンドポイント
	UploadPreset string        // unsignedアップロードのプリセット名
	Timeout      time.Duration // アップロード・取り込みのタイムアウト
	MaxSize      int64         // 受け付ける画像の最大バイト数
}

// Uploader は画像ホスティングサービスへのアップロード機能を提供する。
type Uploader struct {
	config     Config
	httpClient *http.Client
	ssrfGuard  SSRFValidator
	logger     *slog.Logger
}

// NewUploader はUploaderの新しいインスタンスを生成する。
func NewUploader(config Config, httpClient *http.Client, ssrfGuard SSRFValidator, logger *slog.Logger) *Uploader {
	return &Uploader{
		config:     config,
		httpClient: httpClient,
		ssrfGuard:  ssrfGuard,
		logger:     logger,
	}
}

// uploadResponse は画像ホスティングサービスのアップロード成功レスポンス。
type uploadResponse struct {
	SecureURL string `json:"secure_url"`
	URL       string `json:"url"`
}

// Upload は画像をホスティングサービスへアップロードし、公開URLを返す。
// サイズ上限を超える入力はUPLOAD_FAILEDで拒否される。
func (u *Uploader) Upload(ctx context.Context, filename string, content io.Reader) (string, error) {
	// 上限+1バイトまで読み、超過を検出する
	data, err := io.ReadAll(io.LimitReader(content, u.config.MaxSize+1))
	if err != nil {
		u.logger.Error("画像データの読み取りに失敗しました", slog.String("error", err.Error()))
		return "", model.NewUploadFailedError()
	}
	if int64(len(data)) > u.config.MaxSize {
		u.logger.Warn("画像サイズが上限を超えています",
			slog.String("filename", filename),
			slog.Int("size", len(data)),
		)
		return "", model.NewUploadFailedError()
	}
	if len(data) == 0 {
		return "", model.NewUploadFailedError()
	}

	body := &strings.Builder{}
	writer := multipart.NewWriter(body)
	if err := writer.WriteField("upload_preset", u.config.UploadPreset); err != nil {
		return "", fmt.Errorf("failed to write upload preset: %w", err)
	}
	part, err := writer.CreateFormFile("file", filename)
	if err != nil {
		return "", fmt.Errorf("failed to create form file: %w", err)
	}
	if _, err := part.Write(data); err != nil {
		return "", fmt.Errorf("failed to write image data: %w", err)
	}
	if err := writer.Close(); err != nil {
		return "", fmt.Errorf("failed to finalize multipart body: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, u.config.UploadURL, strings.NewReader(body.String()))
	if err != nil {
		return "", fmt.Errorf("failed to create upload request: %w", err)
	}
	req.Header.Set("Content-Type", writer.FormDataContentType())

	resp, err := u.httpClient.Do(req)
	if err != nil {
		u.logger.Error("画像ホスティングサービスへのアップロードに失敗しました",
			slog.String("error", err.Error()),
		)
		return "", model.NewUploadFailedError()
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		u.logger.Error("画像ホスティングサービスがエラーステータスを返しました",
			slog.Int("http_status", resp.StatusCode),
		)
		return "", model.NewUploadFailedError()
	}

	var result uploadResponse
	if err := json.NewDecoder(resp.Body).Decode(&result); err != nil {
		u.logger.Error("アップロードレスポンスのパースに失敗しました",
			slog.String("error", err.Error()),
		)
		return "", model.NewUploadFailedError()
	}

	publicURL := result.SecureURL
	if publicURL == "" {
		publicURL = result.URL
	}
	if publicURL == "" {
		return "", model.NewUploadFailedError()
	}

	u.logger.Info("画像をアップロードしました", slog.String("url", publicURL))
	return publicURL, nil
}

// ImportFromURL は外部URLから画像を取得してホスティングサービスへ転送し、公開URLを返す。
// プライベートIPやメタデータIPへのアクセスはSSRFガードがブロックする。
func (u *Uploader) ImportFromURL(ctx context.Context, rawURL string) (string, error) {
	if err := u.ssrfGuard.ValidateURL(rawURL); err != nil {
		u.logger.Warn("画像取り込みをブロックしました",
			slog.String("url", rawURL),
			slog.String("error", err.Error()),
		)
		return "", model.NewSSRFBlockedError()
	}

	client := u.ssrfGuard.NewSafeClient(u.config.Timeout, u.config.MaxSize)

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, rawURL, nil)
	if err != nil {
		return "", model.NewInvalidURLError(err.Error())
	}
	req.Header.Set("User-Agent", "Shopfront/1.0")

	resp, err := client.Do(req)
	if err != nil {
		u.logger.Warn("画像の取得に失敗しました",
			slog.String("url", rawURL),
			slog.String("error", err.Error()),
		)
		return "", model.NewUploadFailedError()
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		u.logger.Warn("画像の取得でHTTPステータス異常",
			slog.String("url", rawURL),
			slog.Int("http_status", resp.StatusCode),
		)
		return "", model.NewUploadFailedError()
	}

	contentType := resp.Header.Get("Content-Type")
	if !isImageMime(contentType) {
		u.logger.Warn("画像以外のContent-Type",
			slog.String("url", rawURL),
			slog.String("content_type", contentType),
		)
		return "", model.NewUploadFailedError()
	}

	return u.Upload(ctx, filenameFromURL(rawURL), resp.Body)
}

// isImageMime はContent-Typeが画像かどうかを判定する。
func isImageMime(contentType string) bool {
	mime := contentType
	if idx := strings.Index(mime, ";"); idx >= 0 {
		mime = mime[:idx]
	}
	return strings.HasPrefix(strings.TrimSpace(mime), "image/")
}

// filenameFromURL はURLのパス末尾からファイル名を取り出す。
// 取り出せない場合は固定名を返す。
func filenameFromURL(rawURL string) string {
	trimmed := strings.TrimRight(rawURL, "/")
	if idx := strings.LastIndex(trimmed, "/"); idx >= 0 && idx < len(trimmed)-1 {
		name := trimmed[idx+1:]
		if qIdx := strings.Index(name, "?"); qIdx >= 0 {
			name = name[:qIdx]
		}
		if name != "" {
			return name
		}
	}
	return "import"
}

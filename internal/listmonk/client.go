package listmonk

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"
)

// defaultTimeout は外部API呼び出しのデフォルトタイムアウト。
const defaultTimeout = 10 * time.Second

// ErrNotFound は指定した購読者が外部サービスに存在しないことを表す。
var ErrNotFound = errors.New("購読者が見つからない")

// ErrNotConfigured はAPI認証情報が設定されていないことを表す。
// 認証が必要な操作はこのエラーでフェイルクローズする。
var ErrNotConfigured = errors.New("メーリングリストAPIの認証情報が設定されていない")

// Status は外部サービスが管理する購読者の状態。
type Status string

const (
	// StatusEnabled は配信が有効な購読者を表す。
	StatusEnabled Status = "enabled"
	// StatusBlocklisted は配信停止（購読解除済み）の購読者を表す。
	StatusBlocklisted Status = "blocklisted"
	// StatusUnconfirmed はダブルオプトイン未確認の購読者を表す。
	StatusUnconfirmed Status = "unconfirmed"
)

// Subscriber は外部サービス上の購読者レコード。本システムからは読み取り専用。
type Subscriber struct {
	// ID は外部サービス内の数値ID。
	ID int `json:"id"`
	// UUID は購読者ごとの不透明なトークン。公開エンドポイントの認可に使う。
	UUID string `json:"uuid"`
	// Email は購読者のメールアドレス。
	Email string `json:"email"`
	// Status は購読状態。
	Status Status `json:"status"`
}

// Client はメーリングリストサービスへのHTTPクライアント。
type Client struct {
	// httpClient は内部で使用するHTTPクライアント。
	httpClient *http.Client
	// baseURL は接続先サービスのベースURL。
	baseURL string
	// username はBasic認証のユーザー名。
	username string
	// password はBasic認証のパスワード。
	password string
}

// New は新しいメーリングリストクライアントを生成する。
// usernameとpasswordが空の場合、認証が必要な操作はErrNotConfiguredを返す。
func New(baseURL, username, password string, timeout time.Duration) *Client {
	if timeout <= 0 {
		timeout = defaultTimeout
	}
	return &Client{
		httpClient: &http.Client{Timeout: timeout},
		baseURL:    strings.TrimSuffix(baseURL, "/"),
		username:   username,
		password:   password,
	}
}

// configured は認証付き操作が実行可能かどうかを返す。
func (c *Client) configured() bool {
	return c.username != "" && c.password != ""
}

// FindByEmail はメールアドレスで購読者を検索する。
// 見つからない場合はエラーではなくnilを返す。
func (c *Client) FindByEmail(ctx context.Context, email string) (*Subscriber, error) {
	if !c.configured() {
		return nil, ErrNotConfigured
	}

	// クエリはSQL風の構文のため、シングルクォートをエスケープして埋め込む
	query := fmt.Sprintf("subscribers.email = '%s'", strings.ReplaceAll(email, "'", "''"))
	path := "/api/subscribers?per_page=1&query=" + url.QueryEscape(query)

	var resp struct {
		Data struct {
			Results []Subscriber `json:"results"`
		} `json:"data"`
	}
	if err := c.doJSON(ctx, http.MethodGet, path, nil, &resp, true); err != nil {
		return nil, fmt.Errorf("購読者の検索に失敗: %w", err)
	}

	if len(resp.Data.Results) == 0 {
		return nil, nil
	}
	return &resp.Data.Results[0], nil
}

// Blocklist は購読者をブロックリストに登録し、配信を停止する。
// 既にブロックリスト済みでも外部サービス側で冪等に処理される。
func (c *Client) Blocklist(ctx context.Context, subscriberID int) error {
	if !c.configured() {
		return ErrNotConfigured
	}

	path := fmt.Sprintf("/api/subscribers/%d/blocklist", subscriberID)
	if err := c.doJSON(ctx, http.MethodPut, path, nil, nil, true); err != nil {
		return fmt.Errorf("購読者のブロックリスト登録に失敗: %w", err)
	}
	return nil
}

// SendTransactional は指定テンプレートのトランザクショナルメールを送信する。
func (c *Client) SendTransactional(ctx context.Context, email string, templateID int) error {
	if !c.configured() {
		return ErrNotConfigured
	}

	body := map[string]any{
		"subscriber_email": email,
		"template_id":      templateID,
		"content_type":     "html",
	}
	if err := c.doJSON(ctx, http.MethodPost, "/api/tx", body, nil, true); err != nil {
		return fmt.Errorf("トランザクショナルメールの送信に失敗: %w", err)
	}
	return nil
}

// UnsubscribeByToken は購読者UUIDを使って公開エンドポイント経由で購読解除する。
// UUIDそのものが認可の証明（ケイパビリティトークン）のため認証情報は不要。
// 未知のトークンにはErrNotFoundを返す。
func (c *Client) UnsubscribeByToken(ctx context.Context, subscriberUUID string) error {
	path := fmt.Sprintf("/api/public/subscribers/%s/optout", url.PathEscape(subscriberUUID))
	if err := c.doJSON(ctx, http.MethodPost, path, nil, nil, false); err != nil {
		if errors.Is(err, ErrNotFound) {
			return ErrNotFound
		}
		return fmt.Errorf("トークンによる購読解除に失敗: %w", err)
	}
	return nil
}

// doJSON はJSON形式のHTTPリクエストを実行する共通処理。
// authedがtrueの場合はBasic認証ヘッダーを付与する。
// 404はErrNotFound、その他の非2xxは汎用エラーとして返す。
func (c *Client) doJSON(ctx context.Context, method, path string, body any, result any, authed bool) error {
	var bodyReader io.Reader
	if body != nil {
		jsonBody, err := json.Marshal(body)
		if err != nil {
			return fmt.Errorf("リクエストボディのシリアライズに失敗: %w", err)
		}
		bodyReader = bytes.NewReader(jsonBody)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, bodyReader)
	if err != nil {
		return fmt.Errorf("HTTPリクエストの作成に失敗: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	if authed {
		req.SetBasicAuth(c.username, c.password)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("HTTPリクエストの送信に失敗: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode == http.StatusNotFound {
		return ErrNotFound
	}
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		// レスポンスボディはログ向けに含めるが、認証情報は含まれない
		respBody, _ := io.ReadAll(io.LimitReader(resp.Body, 1024))
		return fmt.Errorf("HTTPエラー: status=%d, body=%s", resp.StatusCode, string(respBody))
	}

	if result != nil {
		if err := json.NewDecoder(resp.Body).Decode(result); err != nil {
			return fmt.Errorf("レスポンスボディのデシリアライズに失敗: %w", err)
		}
	}
	return nil
}

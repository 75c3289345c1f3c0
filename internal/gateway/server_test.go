package gateway

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/nanairo/mailgate/internal/listmonk"
	"github.com/nanairo/mailgate/internal/relay"
	"github.com/nanairo/mailgate/pkg/ratelimit"
)

func init() {
	gin.SetMode(gin.TestMode)
}

// stubSender はテスト用のメール配送スタブ。呼び出し回数と最後のメッセージを記録する。
type stubSender struct {
	mu    sync.Mutex
	calls int
	err   error
	last  relay.Message
}

// Send は配送の代わりに呼び出しを記録する。
func (s *stubSender) Send(_ context.Context, msg relay.Message) (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.calls++
	s.last = msg
	if s.err != nil {
		return "", s.err
	}
	return "test-message-id", nil
}

// sendCalls は記録された配送試行回数を返す。
func (s *stubSender) sendCalls() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.calls
}

// newListmonkBackend はモックのメーリングリストサービスを起動し、
// それに接続するクライアントを生成する。
func newListmonkBackend(t *testing.T, handler http.HandlerFunc) *listmonk.Client {
	t.Helper()

	backend := httptest.NewServer(handler)
	t.Cleanup(backend.Close)

	return listmonk.New(backend.URL, "api-user", "api-token", time.Second)
}

// newTestServer はテスト用のゲートウェイサーバーを生成する。
// レート制限は十分緩い値にし、レート制限以外のテストに影響させない。
func newTestServer(t *testing.T, sender relay.Sender, bridge *listmonk.Client) *Server {
	t.Helper()

	return newTestServerWithPolicies(t, sender, bridge,
		ratelimit.Policy{Window: time.Minute, MaxRequests: 1000},
		ratelimit.Policy{Window: time.Minute, MaxRequests: 1000},
	)
}

// newTestServerWithPolicies はレート制限ポリシーを指定してテスト用サーバーを生成する。
func newTestServerWithPolicies(t *testing.T, sender relay.Sender, bridge *listmonk.Client, contact, newsletter ratelimit.Policy) *Server {
	t.Helper()

	router := gin.New()
	s := &Server{
		router: router,
		cfg: Config{
			Port:             "0",
			Listmonk:         ListmonkConfig{ManagementTemplateID: 7},
			ContactPolicy:    contact,
			NewsletterPolicy: newsletter,
		},
		relay:   sender,
		bridge:  bridge,
		limiter: ratelimit.New(0),
	}
	s.setupRoutes()

	return s
}

// postJSON はJSONボディのPOSTリクエストを送信し、レスポンスを返す。
func postJSON(t *testing.T, s *Server, path, body string) *httptest.ResponseRecorder {
	t.Helper()

	req := httptest.NewRequest(http.MethodPost, path, strings.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	req.RemoteAddr = "203.0.113.10:12345"
	w := httptest.NewRecorder()
	s.router.ServeHTTP(w, req)
	return w
}

// getPath はGETリクエストを送信し、レスポンスを返す。
func getPath(t *testing.T, s *Server, path string) *httptest.ResponseRecorder {
	t.Helper()

	req := httptest.NewRequest(http.MethodGet, path, nil)
	req.RemoteAddr = "203.0.113.10:12345"
	w := httptest.NewRecorder()
	s.router.ServeHTTP(w, req)
	return w
}

// TestHealthCheck はヘルスチェックエンドポイントを検証する。
func TestHealthCheck(t *testing.T) {
	t.Parallel()

	s := newTestServer(t, &stubSender{}, listmonk.New("http://localhost:1", "", "", time.Second))

	w := getPath(t, s, "/health")

	if w.Code != http.StatusOK {
		t.Errorf("ステータスコード = %d, want %d", w.Code, http.StatusOK)
	}
	if !strings.Contains(w.Body.String(), `"service":"mailgate"`) {
		t.Errorf("レスポンスボディ = %s", w.Body.String())
	}
}

// TestServerRun はサーバーの起動とグレースフルシャットダウンを検証する。
func TestServerRun(t *testing.T) {
	t.Parallel()

	t.Run("コンテキストのキャンセルで正常に停止すること", func(t *testing.T) {
		t.Parallel()

		s := newTestServer(t, &stubSender{}, listmonk.New("http://localhost:1", "", "", time.Second))
		s.cfg.Port = "0"

		ctx, cancel := context.WithCancel(context.Background())

		done := make(chan error, 1)
		go func() {
			done <- s.Run(ctx)
		}()

		// サーバーの起動を待ってからキャンセルする
		time.Sleep(50 * time.Millisecond)
		cancel()

		select {
		case err := <-done:
			if err != nil {
				t.Errorf("Runがエラーを返した: %v", err)
			}
		case <-time.After(2 * time.Second):
			t.Error("シャットダウンがタイムアウトした")
		}
	})
}

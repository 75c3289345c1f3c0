package gateway

import (
	"encoding/json"
	"errors"
	"net/http"
	"strings"
	"testing"
	"time"

	"github.com/nanairo/mailgate/internal/listmonk"
	"github.com/nanairo/mailgate/pkg/ratelimit"
)

// noopBridge はコンタクトフローのテストで使う未設定のブリッジを返す。
func noopBridge() *listmonk.Client {
	return listmonk.New("http://localhost:1", "", "", time.Second)
}

// TestHandleContact はコンタクトフォームのフローを検証する。
func TestHandleContact(t *testing.T) {
	t.Parallel()

	t.Run("有効な送信で200とリレー1回の配送が行われること", func(t *testing.T) {
		t.Parallel()

		sender := &stubSender{}
		s := newTestServer(t, sender, noopBridge())

		w := postJSON(t, s, "/contact", `{"name":"Ada","email":"ada@example.com","message":"Hello"}`)

		if w.Code != http.StatusOK {
			t.Fatalf("ステータスコード = %d, want %d, body=%s", w.Code, http.StatusOK, w.Body.String())
		}

		var body map[string]string
		if err := json.Unmarshal(w.Body.Bytes(), &body); err != nil {
			t.Fatalf("レスポンスボディのパースに失敗: %v", err)
		}
		if body["message"] != "Message sent successfully!" {
			t.Errorf("message = %q, want %q", body["message"], "Message sent successfully!")
		}
		if got := sender.sendCalls(); got != 1 {
			t.Errorf("配送試行回数 = %d, want 1", got)
		}
		if sender.last.ReplyTo != "ada@example.com" {
			t.Errorf("ReplyTo = %q, want %q", sender.last.ReplyTo, "ada@example.com")
		}
	})

	t.Run("無効な送信で全フィールドのエラーが列挙され配送は行われないこと", func(t *testing.T) {
		t.Parallel()

		sender := &stubSender{}
		s := newTestServer(t, sender, noopBridge())

		w := postJSON(t, s, "/contact", `{"name":"","email":"not-an-email","message":""}`)

		if w.Code != http.StatusBadRequest {
			t.Fatalf("ステータスコード = %d, want %d", w.Code, http.StatusBadRequest)
		}

		var body struct {
			Error   string       `json:"error"`
			Details []FieldError `json:"details"`
		}
		if err := json.Unmarshal(w.Body.Bytes(), &body); err != nil {
			t.Fatalf("レスポンスボディのパースに失敗: %v", err)
		}
		if len(body.Details) != 3 {
			t.Fatalf("エラー件数 = %d, want 3: %+v", len(body.Details), body.Details)
		}

		fields := make(map[string]bool)
		for _, d := range body.Details {
			fields[d.Field] = true
		}
		for _, f := range []string{"name", "email", "message"} {
			if !fields[f] {
				t.Errorf("フィールド%qのエラーが含まれていない: %+v", f, body.Details)
			}
		}
		if got := sender.sendCalls(); got != 0 {
			t.Errorf("配送試行回数 = %d, want 0", got)
		}
	})

	t.Run("上限を超える長さのフィールドが拒否されること", func(t *testing.T) {
		t.Parallel()

		sender := &stubSender{}
		s := newTestServer(t, sender, noopBridge())

		long := strings.Repeat("a", 1001)
		w := postJSON(t, s, "/contact", `{"name":"Ada","email":"ada@example.com","message":"`+long+`"}`)

		if w.Code != http.StatusBadRequest {
			t.Errorf("ステータスコード = %d, want %d", w.Code, http.StatusBadRequest)
		}
		if got := sender.sendCalls(); got != 0 {
			t.Errorf("配送試行回数 = %d, want 0", got)
		}
	})

	t.Run("リレー失敗時は汎用の500が返ること", func(t *testing.T) {
		t.Parallel()

		sender := &stubSender{err: errors.New("smtp: 535 authentication failed")}
		s := newTestServer(t, sender, noopBridge())

		w := postJSON(t, s, "/contact", `{"name":"Ada","email":"ada@example.com","message":"Hello"}`)

		if w.Code != http.StatusInternalServerError {
			t.Fatalf("ステータスコード = %d, want %d", w.Code, http.StatusInternalServerError)
		}

		var body map[string]string
		if err := json.Unmarshal(w.Body.Bytes(), &body); err != nil {
			t.Fatalf("レスポンスボディのパースに失敗: %v", err)
		}
		if body["error"] != "Failed to send message. Please try again later." {
			t.Errorf("error = %q", body["error"])
		}
		// トランスポートの詳細が漏れていないこと
		if strings.Contains(w.Body.String(), "smtp") || strings.Contains(w.Body.String(), "535") {
			t.Errorf("レスポンスにトランスポートの詳細が含まれている: %s", w.Body.String())
		}
	})

	t.Run("不正なJSONボディで400が返ること", func(t *testing.T) {
		t.Parallel()

		sender := &stubSender{}
		s := newTestServer(t, sender, noopBridge())

		w := postJSON(t, s, "/contact", `{"name":`)

		if w.Code != http.StatusBadRequest {
			t.Errorf("ステータスコード = %d, want %d", w.Code, http.StatusBadRequest)
		}
		if got := sender.sendCalls(); got != 0 {
			t.Errorf("配送試行回数 = %d, want 0", got)
		}
	})

	t.Run("同一クライアントの6回目のリクエストが429になること", func(t *testing.T) {
		t.Parallel()

		sender := &stubSender{}
		s := newTestServerWithPolicies(t, sender, noopBridge(),
			ratelimit.Policy{Window: time.Minute, MaxRequests: 5},
			ratelimit.Policy{Window: time.Minute, MaxRequests: 5},
		)

		body := `{"name":"Ada","email":"ada@example.com","message":"Hello"}`
		for i := 0; i < 5; i++ {
			w := postJSON(t, s, "/contact", body)
			if w.Code != http.StatusOK {
				t.Fatalf("%d回目のステータスコード = %d, want %d", i+1, w.Code, http.StatusOK)
			}
		}

		w := postJSON(t, s, "/contact", body)
		if w.Code != http.StatusTooManyRequests {
			t.Errorf("6回目のステータスコード = %d, want %d", w.Code, http.StatusTooManyRequests)
		}
		if got := sender.sendCalls(); got != 5 {
			t.Errorf("配送試行回数 = %d, want 5", got)
		}
	})
}

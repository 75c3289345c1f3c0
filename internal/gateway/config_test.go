package gateway

import (
	"testing"
	"time"
)

// TestLoadConfig は環境変数からの設定読み込みを検証する。
// 環境変数を操作するためt.Parallel()は使わない。
func TestLoadConfig(t *testing.T) {
	t.Run("未設定の場合はデフォルト値が使われること", func(t *testing.T) {
		cfg, err := LoadConfig()
		if err != nil {
			t.Fatalf("予期しないエラー: %v", err)
		}

		if cfg.Port != "8080" {
			t.Errorf("Port = %q, want %q", cfg.Port, "8080")
		}
		if cfg.SMTP.Port != 587 {
			t.Errorf("SMTP.Port = %d, want 587", cfg.SMTP.Port)
		}
		if cfg.SMTP.AllowInsecure {
			t.Error("AllowInsecureはデフォルトでfalseであるべき")
		}
		if cfg.ContactPolicy.Window != time.Minute {
			t.Errorf("ContactPolicy.Window = %v, want %v", cfg.ContactPolicy.Window, time.Minute)
		}
		if cfg.ContactPolicy.MaxRequests != 5 {
			t.Errorf("ContactPolicy.MaxRequests = %d, want 5", cfg.ContactPolicy.MaxRequests)
		}
	})

	t.Run("環境変数が優先されること", func(t *testing.T) {
		t.Setenv("PORT", "9090")
		t.Setenv("SMTP_HOST", "smtp.example.org")
		t.Setenv("SMTP_PORT", "465")
		t.Setenv("SMTP_SECURE", "true")
		t.Setenv("RATE_LIMIT_CONTACT_WINDOW_MS", "30000")
		t.Setenv("RATE_LIMIT_CONTACT_MAX", "10")

		cfg, err := LoadConfig()
		if err != nil {
			t.Fatalf("予期しないエラー: %v", err)
		}

		if cfg.Port != "9090" {
			t.Errorf("Port = %q, want %q", cfg.Port, "9090")
		}
		if cfg.SMTP.Host != "smtp.example.org" {
			t.Errorf("SMTP.Host = %q", cfg.SMTP.Host)
		}
		if cfg.SMTP.Port != 465 {
			t.Errorf("SMTP.Port = %d, want 465", cfg.SMTP.Port)
		}
		if !cfg.SMTP.Secure {
			t.Error("SMTP.Secureがtrueになっていない")
		}
		if cfg.ContactPolicy.Window != 30*time.Second {
			t.Errorf("ContactPolicy.Window = %v, want %v", cfg.ContactPolicy.Window, 30*time.Second)
		}
		if cfg.ContactPolicy.MaxRequests != 10 {
			t.Errorf("ContactPolicy.MaxRequests = %d, want 10", cfg.ContactPolicy.MaxRequests)
		}
	})

	t.Run("整数の環境変数が不正な場合はエラーになること", func(t *testing.T) {
		t.Setenv("SMTP_PORT", "not-a-number")

		if _, err := LoadConfig(); err == nil {
			t.Error("エラーが返らなかった")
		}
	})

	t.Run("真偽値の環境変数が不正な場合はエラーになること", func(t *testing.T) {
		t.Setenv("SMTP_SECURE", "maybe")

		if _, err := LoadConfig(); err == nil {
			t.Error("エラーが返らなかった")
		}
	})
}

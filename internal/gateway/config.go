package gateway

import (
	"fmt"
	"os"
	"strconv"
	"time"

	"github.com/joho/godotenv"

	"github.com/nanairo/mailgate/internal/relay"
	"github.com/nanairo/mailgate/pkg/ratelimit"
)

// Config はゲートウェイ全体の設定。すべて環境変数から読み込む。
type Config struct {
	// Port はHTTPサーバーのリッスンポート。
	Port string
	// AllowedOrigins はCORSで許可するフロントエンドのオリジン。
	AllowedOrigins []string
	// SMTP はコンタクトフォームのメールリレー設定。
	SMTP relay.Config
	// Listmonk はメーリングリストサービスの接続設定。
	Listmonk ListmonkConfig
	// ContactPolicy はコンタクトフォームのレート制限ポリシー。
	ContactPolicy ratelimit.Policy
	// NewsletterPolicy はニュースレター系エンドポイントのレート制限ポリシー。
	NewsletterPolicy ratelimit.Policy
	// SweepInterval はレート制限マップのスイープ間隔。
	SweepInterval time.Duration
}

// ListmonkConfig はメーリングリストサービスの接続設定。
type ListmonkConfig struct {
	// URL はサービスのベースURL。
	URL string
	// Username はAPI Basic認証のユーザー名。
	Username string
	// Password はAPI Basic認証のパスワード。
	Password string
	// ManagementTemplateID は購読管理メールのトランザクショナルテンプレートID。
	ManagementTemplateID int
	// Timeout は外部API呼び出しのタイムアウト。
	Timeout time.Duration
}

// LoadConfig は環境変数（および存在すれば.envファイル）から設定を読み込む。
func LoadConfig() (Config, error) {
	// .envは開発環境向け。存在しなくてもエラーにしない
	_ = godotenv.Load()

	smtpPort, err := getEnvInt("SMTP_PORT", 587)
	if err != nil {
		return Config{}, err
	}
	smtpSecure, err := getEnvBool("SMTP_SECURE", false)
	if err != nil {
		return Config{}, err
	}
	smtpAllowInsecure, err := getEnvBool("SMTP_ALLOW_INSECURE", false)
	if err != nil {
		return Config{}, err
	}
	templateID, err := getEnvInt("LISTMONK_MANAGEMENT_TEMPLATE_ID", 1)
	if err != nil {
		return Config{}, err
	}
	contactWindow, err := getEnvDurationMS("RATE_LIMIT_CONTACT_WINDOW_MS", time.Minute)
	if err != nil {
		return Config{}, err
	}
	contactMax, err := getEnvInt("RATE_LIMIT_CONTACT_MAX", 5)
	if err != nil {
		return Config{}, err
	}
	newsletterWindow, err := getEnvDurationMS("RATE_LIMIT_NEWSLETTER_WINDOW_MS", time.Minute)
	if err != nil {
		return Config{}, err
	}
	newsletterMax, err := getEnvInt("RATE_LIMIT_NEWSLETTER_MAX", 5)
	if err != nil {
		return Config{}, err
	}
	sweepInterval, err := getEnvDurationMS("RATE_LIMIT_SWEEP_INTERVAL_MS", 5*time.Minute)
	if err != nil {
		return Config{}, err
	}

	return Config{
		Port:           getEnvOr("PORT", "8080"),
		AllowedOrigins: []string{getEnvOr("FRONTEND_URL", "http://localhost:3000")},
		SMTP: relay.Config{
			Host:          getEnvOr("SMTP_HOST", "localhost"),
			Port:          smtpPort,
			Secure:        smtpSecure,
			Username:      os.Getenv("SMTP_USER"),
			Password:      os.Getenv("SMTP_PASSWORD"),
			From:          getEnvOr("CONTACT_FROM", "noreply@localhost"),
			To:            getEnvOr("CONTACT_TO", "contact@localhost"),
			AllowInsecure: smtpAllowInsecure,
		},
		Listmonk: ListmonkConfig{
			URL:                  getEnvOr("LISTMONK_URL", "http://localhost:9000"),
			Username:             os.Getenv("LISTMONK_USER"),
			Password:             os.Getenv("LISTMONK_PASSWORD"),
			ManagementTemplateID: templateID,
		},
		ContactPolicy:    ratelimit.Policy{Window: contactWindow, MaxRequests: contactMax},
		NewsletterPolicy: ratelimit.Policy{Window: newsletterWindow, MaxRequests: newsletterMax},
		SweepInterval:    sweepInterval,
	}, nil
}

// getEnvOr は環境変数を取得し、設定されていない場合はデフォルト値を返す。
func getEnvOr(key, defaultValue string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return defaultValue
}

// getEnvInt は整数の環境変数を取得する。
func getEnvInt(key string, defaultValue int) (int, error) {
	v := os.Getenv(key)
	if v == "" {
		return defaultValue, nil
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		return 0, fmt.Errorf("環境変数%sの整数パースに失敗: %w", key, err)
	}
	return n, nil
}

// getEnvBool は真偽値の環境変数を取得する。
func getEnvBool(key string, defaultValue bool) (bool, error) {
	v := os.Getenv(key)
	if v == "" {
		return defaultValue, nil
	}
	b, err := strconv.ParseBool(v)
	if err != nil {
		return false, fmt.Errorf("環境変数%sの真偽値パースに失敗: %w", key, err)
	}
	return b, nil
}

// getEnvDurationMS はミリ秒単位の環境変数をtime.Durationとして取得する。
func getEnvDurationMS(key string, defaultValue time.Duration) (time.Duration, error) {
	v := os.Getenv(key)
	if v == "" {
		return defaultValue, nil
	}
	ms, err := strconv.Atoi(v)
	if err != nil {
		return 0, fmt.Errorf("環境変数%sのミリ秒パースに失敗: %w", key, err)
	}
	return time.Duration(ms) * time.Millisecond, nil
}

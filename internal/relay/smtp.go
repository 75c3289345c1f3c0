package relay

import (
	"context"
	"crypto/tls"
	"errors"
	"fmt"
	"mime"
	"net"
	"net/smtp"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"
)

// defaultTimeout はSMTP接続と送信全体のデフォルトタイムアウト。
const defaultTimeout = 10 * time.Second

// Config はSMTPリレーの接続設定。
type Config struct {
	// Host はSMTPサーバーのホスト名。
	Host string
	// Port はSMTPサーバーのポート番号。
	Port int
	// Secure がtrueの場合は接続時からTLS（implicit TLS、通常465番）を使う。
	// falseの場合は平文で接続した後にSTARTTLSへ昇格する。
	Secure bool
	// Username はSMTP認証のユーザー名。空の場合は認証を行わない。
	Username string
	// Password はSMTP認証のパスワード。
	Password string
	// From は送信元メールアドレス。
	From string
	// To はコンタクトフォームの宛先（サイト運営者の受信箱）。
	To string
	// Timeout は接続・送信全体のタイムアウト。ゼロ値の場合はデフォルトを使う。
	Timeout time.Duration
	// AllowInsecure は開発環境向けに証明書検証とSTARTTLS必須化を緩和する。
	// 本番では必ずfalseにすること。
	AllowInsecure bool
}

// SMTPRelay は認証付きSMTP接続でメッセージを配送するSender実装。
type SMTPRelay struct {
	cfg Config
}

// NewSMTPRelay は新しいSMTPリレーを生成する。
func NewSMTPRelay(cfg Config) *SMTPRelay {
	if cfg.Timeout <= 0 {
		cfg.Timeout = defaultTimeout
	}
	return &SMTPRelay{cfg: cfg}
}

// Send はメッセージを1通配送し、生成したメッセージIDを返す。
// トランスポートエラーはラップして返すが、認証情報は含めない。
func (r *SMTPRelay) Send(ctx context.Context, msg Message) (string, error) {
	client, err := r.connect(ctx)
	if err != nil {
		return "", fmt.Errorf("SMTPサーバーへの接続に失敗: %w", err)
	}
	defer client.Close()

	if err := r.authenticate(client); err != nil {
		return "", err
	}

	msgID := fmt.Sprintf("<%s@%s>", uuid.New().String(), r.cfg.Host)

	if err := client.Mail(r.cfg.From); err != nil {
		return "", fmt.Errorf("MAIL FROMコマンドに失敗: %w", err)
	}
	if err := client.Rcpt(r.cfg.To); err != nil {
		return "", fmt.Errorf("RCPT TOコマンドに失敗: %w", err)
	}

	w, err := client.Data()
	if err != nil {
		return "", fmt.Errorf("DATAコマンドに失敗: %w", err)
	}
	if _, err := w.Write(buildMIME(msg, r.cfg.From, r.cfg.To, msgID)); err != nil {
		return "", fmt.Errorf("メッセージ本文の書き込みに失敗: %w", err)
	}
	if err := w.Close(); err != nil {
		return "", fmt.Errorf("メッセージの送信完了に失敗: %w", err)
	}

	// サーバーはDATA終端で受理済みのため、QUITの失敗は配送結果に影響しない
	_ = client.Quit()

	return msgID, nil
}

// Verify はSMTPサーバーへの接続と認証を事前確認する。
// 起動時のプリフライトチェックとして使用する。
func (r *SMTPRelay) Verify(ctx context.Context) error {
	client, err := r.connect(ctx)
	if err != nil {
		return fmt.Errorf("SMTPサーバーへの接続に失敗: %w", err)
	}
	defer client.Close()

	if err := r.authenticate(client); err != nil {
		return err
	}

	_ = client.Quit()
	return nil
}

// authenticate は認証情報が設定されていればPLAIN認証を行う。
func (r *SMTPRelay) authenticate(client *smtp.Client) error {
	if r.cfg.Username == "" {
		return nil
	}
	auth := smtp.PlainAuth("", r.cfg.Username, r.cfg.Password, r.cfg.Host)
	if err := client.Auth(auth); err != nil {
		return fmt.Errorf("SMTP認証に失敗: %w", err)
	}
	return nil
}

// connect はSMTPサーバーへ接続し、暗号化を確立したクライアントを返す。
// 証明書検証はAllowInsecureが明示的に設定された場合のみ緩和される。
func (r *SMTPRelay) connect(ctx context.Context) (*smtp.Client, error) {
	addr := net.JoinHostPort(r.cfg.Host, strconv.Itoa(r.cfg.Port))
	dialer := &net.Dialer{Timeout: r.cfg.Timeout}

	tlsCfg := &tls.Config{
		ServerName:         r.cfg.Host,
		InsecureSkipVerify: r.cfg.AllowInsecure,
	}

	conn, err := dialer.DialContext(ctx, "tcp", addr)
	if err != nil {
		return nil, err
	}
	// タイムアウトは接続確立だけでなくセッション全体にかける
	_ = conn.SetDeadline(time.Now().Add(r.cfg.Timeout))

	if r.cfg.Secure {
		conn = tls.Client(conn, tlsCfg)
	}

	client, err := smtp.NewClient(conn, r.cfg.Host)
	if err != nil {
		conn.Close()
		return nil, err
	}

	if !r.cfg.Secure {
		if ok, _ := client.Extension("STARTTLS"); ok {
			if err := client.StartTLS(tlsCfg); err != nil {
				client.Close()
				return nil, err
			}
		} else if !r.cfg.AllowInsecure {
			client.Close()
			return nil, errors.New("SMTPサーバーがSTARTTLSに対応していない")
		}
	}

	return client, nil
}

// buildMIME はmultipart/alternative形式のメールデータを組み立てる。
func buildMIME(msg Message, from, to, msgID string) []byte {
	boundary := strings.ReplaceAll(uuid.New().String(), "-", "")

	var b strings.Builder
	writeHeader := func(key, value string) {
		b.WriteString(key)
		b.WriteString(": ")
		b.WriteString(value)
		b.WriteString("\r\n")
	}

	writeHeader("From", from)
	writeHeader("To", to)
	if msg.ReplyTo != "" {
		writeHeader("Reply-To", msg.ReplyTo)
	}
	writeHeader("Subject", mime.QEncoding.Encode("utf-8", msg.Subject))
	writeHeader("Message-ID", msgID)
	writeHeader("Date", time.Now().Format(time.RFC1123Z))
	writeHeader("MIME-Version", "1.0")
	writeHeader("Content-Type", fmt.Sprintf("multipart/alternative; boundary=%q", boundary))
	b.WriteString("\r\n")

	writePart := func(contentType, body string) {
		b.WriteString("--")
		b.WriteString(boundary)
		b.WriteString("\r\n")
		writeHeader("Content-Type", contentType)
		b.WriteString("\r\n")
		b.WriteString(body)
		b.WriteString("\r\n")
	}

	writePart("text/plain; charset=utf-8", msg.Text)
	writePart("text/html; charset=utf-8", msg.HTML)

	b.WriteString("--")
	b.WriteString(boundary)
	b.WriteString("--\r\n")

	return []byte(b.String())
}

package relay

import (
	"context"
	"fmt"
	"html"
	"strings"
)

// Message は配送する1通のトランザクショナルメール。
type Message struct {
	// ReplyTo は送信者（フォーム入力者）のメールアドレス。
	ReplyTo string
	// Subject はメールの件名。
	Subject string
	// Text はプレーンテキスト本文。
	Text string
	// HTML はHTML本文。ユーザー入力はエスケープ済みであること。
	HTML string
}

// Sender はメール配送の抽象。本番ではSMTPRelay、テストではスタブを使う。
type Sender interface {
	// Send はメッセージを1通配送し、メッセージIDを返す。
	Send(ctx context.Context, msg Message) (string, error)
}

// NewContactMessage はコンタクトフォームの入力からメッセージを組み立てる。
// HTML本文ではユーザー入力を全てエスケープし、改行のみ<br>に変換する。
// それ以外のHTMLは一切信用しない。
func NewContactMessage(name, email, body string) Message {
	text := fmt.Sprintf("Name: %s\nEmail: %s\n\n%s", name, email, body)
	htmlBody := fmt.Sprintf(
		"<p><strong>Name:</strong> %s<br><strong>Email:</strong> %s</p><p>%s</p>",
		html.EscapeString(name),
		html.EscapeString(email),
		escapeWithLineBreaks(body),
	)

	return Message{
		ReplyTo: email,
		Subject: fmt.Sprintf("Contact form message from %s", name),
		Text:    text,
		HTML:    htmlBody,
	}
}

// escapeWithLineBreaks はユーザー入力をHTMLエスケープし、改行だけを<br>に置き換える。
func escapeWithLineBreaks(s string) string {
	escaped := html.EscapeString(s)
	escaped = strings.ReplaceAll(escaped, "\r\n", "\n")
	return strings.ReplaceAll(escaped, "\n", "<br>")
}

// メッセージングゲートウェイのエントリポイント。
// コンタクトフォームとニュースレター管理のリクエストを受け付け、
// SMTPリレーと外部のメーリングリストサービスへ委譲する。
// レート制限と列挙防止ポリシーでメールバックエンドを保護する。
package main

import (
	"context"
	"log"
	"os/signal"
	"syscall"
	"time"

	"github.com/nanairo/mailgate/internal/gateway"
)

func main() {
	cfg, err := gateway.LoadConfig()
	if err != nil {
		log.Fatalf("設定の読み込みに失敗: %v", err)
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	server := gateway.NewServer(cfg)

	// SMTPのプリフライトチェック。失敗しても起動は継続する
	verifyCtx, cancel := context.WithTimeout(ctx, 15*time.Second)
	if err := server.VerifyRelay(verifyCtx); err != nil {
		log.Printf("SMTPリレーの事前確認に失敗（起動は継続）: %v", err)
	}
	cancel()

	log.Printf("メッセージングゲートウェイを起動します: :%s", cfg.Port)
	if err := server.Run(ctx); err != nil {
		log.Fatalf("メッセージングゲートウェイの起動に失敗: %v", err)
	}
}

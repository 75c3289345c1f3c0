package gateway

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/nanairo/mailgate/internal/listmonk"
	"github.com/nanairo/mailgate/internal/relay"
	"github.com/nanairo/mailgate/pkg/middleware"
	"github.com/nanairo/mailgate/pkg/ratelimit"
)

// shutdownTimeout はグレースフルシャットダウンの猶予時間。
const shutdownTimeout = 10 * time.Second

// Server はメッセージングゲートウェイのHTTPサーバー。
type Server struct {
	// router はGinのHTTPルーター。
	router *gin.Engine
	// cfg はゲートウェイの設定。
	cfg Config
	// relay はコンタクトフォームのメール配送先。
	relay relay.Sender
	// bridge はメーリングリストサービスへのクライアント。
	bridge *listmonk.Client
	// limiter はクライアント単位のレート制限器。本構造体がライフサイクルを所有する。
	limiter *ratelimit.Limiter
}

// NewServer は新しいゲートウェイサーバーを生成する。
func NewServer(cfg Config) *Server {
	router := gin.New()
	router.Use(middleware.Recovery())
	router.Use(gin.Logger())
	router.Use(middleware.CORS(cfg.AllowedOrigins))

	s := &Server{
		router:  router,
		cfg:     cfg,
		relay:   relay.NewSMTPRelay(cfg.SMTP),
		bridge:  listmonk.New(cfg.Listmonk.URL, cfg.Listmonk.Username, cfg.Listmonk.Password, cfg.Listmonk.Timeout),
		limiter: ratelimit.New(cfg.SweepInterval),
	}
	s.setupRoutes()

	return s
}

// setupRoutes はAPIルーティングを設定する。
func (s *Server) setupRoutes() {
	// コンタクトフォーム
	s.router.POST("/contact",
		middleware.RateLimit(s.limiter, "contact", s.cfg.ContactPolicy),
		s.handleContact(),
	)

	// ニュースレター管理
	newsletter := s.router.Group("/newsletter")
	newsletter.Use(middleware.RateLimit(s.limiter, "newsletter", s.cfg.NewsletterPolicy))
	{
		newsletter.POST("/request-management", s.handleRequestManagement())
		newsletter.POST("/unsubscribe", s.handleUnsubscribe())
		// メール内のリンクから直接開かれるGETエイリアス
		newsletter.GET("/unsubscribe", s.handleUnsubscribeLink())
	}

	// ヘルスチェック
	s.router.GET("/health", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "ok", "service": "mailgate"})
	})
}

// VerifyRelay はSMTPリレーへの接続と認証を事前確認する。
// 起動時のプリフライトチェック用で、失敗してもサーバーの起動は妨げない。
func (s *Server) VerifyRelay(ctx context.Context) error {
	verifier, ok := s.relay.(interface{ Verify(context.Context) error })
	if !ok {
		return nil
	}
	return verifier.Verify(ctx)
}

// Run はHTTPサーバーとレート制限のスイープタスクを起動する。
// ctxのキャンセルでグレースフルシャットダウンする。
func (s *Server) Run(ctx context.Context) error {
	s.limiter.Start(ctx)
	defer s.limiter.Stop()

	srv := &http.Server{
		Addr:    fmt.Sprintf(":%s", s.cfg.Port),
		Handler: s.router,
	}

	errCh := make(chan error, 1)
	go func() {
		errCh <- srv.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		return fmt.Errorf("HTTPサーバーの起動に失敗: %w", err)
	case <-ctx.Done():
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("グレースフルシャットダウンに失敗: %w", err)
	}

	if err := <-errCh; err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}

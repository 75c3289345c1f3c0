package gateway

import (
	"log"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/nanairo/mailgate/internal/relay"
)

// contactRequest はコンタクトフォーム送信のJSON構造。
type contactRequest struct {
	// Name は送信者の名前（1〜100文字）。
	Name string `json:"name" validate:"required,max=100"`
	// Email は送信者のメールアドレス。
	Email string `json:"email" validate:"required,email,max=255"`
	// Message は本文（1〜1000文字）。
	Message string `json:"message" validate:"required,max=1000"`
}

// handleContact はコンタクトフォームの送信を処理するハンドラを返す。
// 検証に失敗した場合はフィールド単位のエラーを列挙して400を返し、
// リレーへの配送は一切行わない。配送に失敗した場合はトランスポートの
// 詳細を隠した汎用の500を返す。
func (s *Server) handleContact() gin.HandlerFunc {
	return func(c *gin.Context) {
		var req contactRequest
		if err := c.ShouldBindJSON(&req); err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid request body."})
			return
		}

		if details := validateStruct(req); len(details) > 0 {
			c.JSON(http.StatusBadRequest, gin.H{
				"error":   "Validation failed.",
				"details": details,
			})
			return
		}

		msg := relay.NewContactMessage(req.Name, req.Email, req.Message)
		msgID, err := s.relay.Send(c.Request.Context(), msg)
		if err != nil {
			// 詳細はログにのみ残し、呼び出し元には汎用メッセージを返す
			log.Printf("コンタクトメールの配送に失敗: %v", err)
			c.JSON(http.StatusInternalServerError, gin.H{
				"error": "Failed to send message. Please try again later.",
			})
			return
		}

		log.Printf("コンタクトメールを配送: message_id=%s", msgID)
		c.JSON(http.StatusOK, gin.H{"message": "Message sent successfully!"})
	}
}

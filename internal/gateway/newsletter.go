package gateway

import (
	"errors"
	"log"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"github.com/nanairo/mailgate/internal/listmonk"
)

// managementResponseMessage は管理メール要求への唯一のレスポンス文言。
// 購読の有無・外部サービスの状態に関わらず常にこれを返す。
const managementResponseMessage = "If this email is subscribed, you will receive a management email shortly."

// unsubscribeFailureMessage は購読解除失敗時の汎用エラー文言。
const unsubscribeFailureMessage = "Failed to unsubscribe. Please try again later."

// maskFailures はエンドポイントごとの列挙防止ポリシー。
// trueのエンドポイントでは、購読者の不在・外部APIの失敗・認証情報の
// 設定不備をすべて成功形と同一のレスポンスで覆い隠し、外部の観測者が
// メールアドレスの購読状態を推測できないようにする。
//
// 購読解除のメール経路が404で不在を明かすのに対し、管理メール要求の
// 経路は完全に隠す非対称な設計になっている。これは自己修正経路と
// 収集防止経路の使い分けとして意図的だが、プロダクト側の再確認対象。
var maskFailures = map[string]bool{
	"/newsletter/request-management": true,
	"/newsletter/unsubscribe":        false,
}

// managementRequest は管理メール要求のJSON構造。
type managementRequest struct {
	// Email は購読管理メールの送付先候補。
	Email string `json:"email" validate:"required,email,max=255"`
}

// unsubscribeRequest は購読解除のJSON構造。emailとuuidは排他。
type unsubscribeRequest struct {
	// Email はメールアドレス経路の識別子。
	Email string `json:"email" validate:"omitempty,email,max=255"`
	// UUID はトークン経路のケイパビリティトークン。
	UUID string `json:"uuid" validate:"omitempty,uuid4"`
}

// handleRequestManagement は購読管理メールの要求を処理するハンドラを返す。
// 列挙防止のため、入力が整形されている限りすべての結果を同一の200で返す。
// 内部の失敗は詳細をログに残すのみで、レスポンスからは区別できない。
func (s *Server) handleRequestManagement() gin.HandlerFunc {
	return func(c *gin.Context) {
		var req managementRequest
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

		mask := maskFailures[c.FullPath()]

		sub, err := s.bridge.FindByEmail(c.Request.Context(), req.Email)
		switch {
		case err != nil:
			log.Printf("購読者の検索に失敗: %v", err)
			if !mask {
				c.JSON(http.StatusInternalServerError, gin.H{"error": unsubscribeFailureMessage})
				return
			}
		case sub == nil:
			log.Printf("管理メール要求: 購読者が存在しない email=%s", req.Email)
		default:
			if err := s.bridge.SendTransactional(c.Request.Context(), sub.Email, s.cfg.Listmonk.ManagementTemplateID); err != nil {
				log.Printf("管理メールの送信に失敗: subscriber_id=%d, %v", sub.ID, err)
				if !mask {
					c.JSON(http.StatusInternalServerError, gin.H{"error": unsubscribeFailureMessage})
					return
				}
			}
		}

		c.JSON(http.StatusOK, gin.H{"message": managementResponseMessage})
	}
}

// handleUnsubscribe は購読解除を処理するハンドラを返す。
// emailとuuidのちょうど一方だけを受け付け、それぞれ別の信頼レベルの
// 経路に振り分ける。
func (s *Server) handleUnsubscribe() gin.HandlerFunc {
	return func(c *gin.Context) {
		var req unsubscribeRequest
		if err := c.ShouldBindJSON(&req); err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid request body."})
			return
		}

		details := validateStruct(req)
		if (req.Email == "") == (req.UUID == "") {
			details = append(details, FieldError{
				Field:   "uuid",
				Message: "Provide exactly one of email or uuid.",
			})
		}
		if len(details) > 0 {
			c.JSON(http.StatusBadRequest, gin.H{
				"error":   "Validation failed.",
				"details": details,
			})
			return
		}

		if req.UUID != "" {
			s.unsubscribeByToken(c, req.UUID)
			return
		}
		s.unsubscribeByEmail(c, req.Email)
	}
}

// handleUnsubscribeLink はメール内リンク用のGETエイリアスを返す。
// クエリのuuidを検証した上でPOSTのトークン経路に委譲する。
func (s *Server) handleUnsubscribeLink() gin.HandlerFunc {
	return func(c *gin.Context) {
		token := c.Query("uuid")
		if _, err := uuid.Parse(token); err != nil {
			c.JSON(http.StatusBadRequest, gin.H{
				"error":   "Validation failed.",
				"details": []FieldError{{Field: "uuid", Message: "Must be a valid UUID."}},
			})
			return
		}
		s.unsubscribeByToken(c, token)
	}
}

// unsubscribeByToken はケイパビリティトークンによる購読解除を行う。
// トークンの所持自体が認可の証明のため、結果は正確に報告してよい
// （不在は404、外部サービスの失敗は500）。
func (s *Server) unsubscribeByToken(c *gin.Context, token string) {
	err := s.bridge.UnsubscribeByToken(c.Request.Context(), token)
	switch {
	case err == nil:
		c.JSON(http.StatusOK, gin.H{"message": "You have been unsubscribed successfully."})
	case errors.Is(err, listmonk.ErrNotFound):
		c.JSON(http.StatusNotFound, gin.H{"message": "Subscription not found."})
	default:
		log.Printf("トークンによる購読解除に失敗: %v", err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": unsubscribeFailureMessage})
	}
}

// unsubscribeByEmail はメールアドレスによる購読解除を行う。
// 認証付きの検索とブロックリスト登録を経由する。maskFailuresの通り、
// この経路では不在を404で返す。
func (s *Server) unsubscribeByEmail(c *gin.Context, email string) {
	sub, err := s.bridge.FindByEmail(c.Request.Context(), email)
	if err != nil {
		log.Printf("購読解除のための検索に失敗: %v", err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": unsubscribeFailureMessage})
		return
	}
	if sub == nil {
		c.JSON(http.StatusNotFound, gin.H{"message": "This email address is not subscribed to the newsletter."})
		return
	}

	if err := s.bridge.Blocklist(c.Request.Context(), sub.ID); err != nil {
		log.Printf("購読解除に失敗: subscriber_id=%d, %v", sub.ID, err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": unsubscribeFailureMessage})
		return
	}

	c.JSON(http.StatusOK, gin.H{"message": "You have been unsubscribed successfully."})
}

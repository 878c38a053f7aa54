package api

import (
	"log"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"

	"github.com/partdesk/service/internal/store"
)

// WebSocket升级器
var upgrader = websocket.Upgrader{
	CheckOrigin: func(r *http.Request) bool {
		// 允许所有来源的连接（生产环境中应该限制）
		return true
	},
}

// wsMessage WebSocket入站消息
type wsMessage struct {
	Message   string `json:"message"`
	SessionID string `json:"session_id"`
}

// HandleWebSocket 处理WebSocket聊天连接
// 每条入站消息产生一串流式分片，末尾为metadata分片
func (h *Handler) HandleWebSocket(c *gin.Context) {
	conn, err := upgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		log.Printf("[WebSocket] ❌ 连接升级失败: %v", err)
		return
	}
	defer conn.Close()

	log.Printf("[WebSocket] ✅ 连接建立: %s", conn.RemoteAddr())

	for {
		var msg wsMessage
		if err := conn.ReadJSON(&msg); err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
				log.Printf("[WebSocket] ⚠️ 连接异常关闭: %v", err)
			}
			return
		}

		if msg.Message == "" {
			if err := conn.WriteJSON(gin.H{"type": "error", "error": "message字段不能为空"}); err != nil {
				return
			}
			continue
		}

		sessionID := msg.SessionID
		if sessionID == "" {
			sessionID = store.NewSessionID()
		}

		history := h.sessions.History(sessionID)
		chunks, err := h.chat.HandleStream(c.Request.Context(), msg.Message, history)
		if err != nil {
			log.Printf("[WebSocket] ❌ 流式处理失败: %v", err)
			if err := conn.WriteJSON(gin.H{"type": "error", "error": "internal error", "session_id": sessionID}); err != nil {
				return
			}
			continue
		}

		var finalResponse string
		for chunk := range chunks {
			payload := gin.H{
				"type":       chunk.Type,
				"content":    chunk.Content,
				"done":       chunk.Done,
				"session_id": sessionID,
			}
			if chunk.Result != nil {
				payload["result"] = chunk.Result
				payload["suggestions"] = followupSuggestions(chunk.Result.Intent)
				finalResponse = chunk.Result.Response
			}
			if err := conn.WriteJSON(payload); err != nil {
				log.Printf("[WebSocket] ❌ 分片发送失败: %v", err)
				return
			}
		}

		if finalResponse != "" {
			h.sessions.AppendExchange(sessionID, msg.Message, finalResponse)
		}
	}
}

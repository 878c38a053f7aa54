package store

import (
	"log"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/partdesk/service/internal/models"
)

// retainedTurns 每个会话保留的最近轮次数
const retainedTurns = 10

// SessionStore 会话历史存储
// 请求处理期间历史只读，请求完成后由调用方追加两条轮次并截断
type SessionStore struct {
	mu        sync.RWMutex
	histories map[string][]models.Turn
}

// NewSessionStore 创建会话存储
func NewSessionStore() *SessionStore {
	return &SessionStore{
		histories: make(map[string][]models.Turn),
	}
}

// NewSessionID 生成新会话ID
func NewSessionID() string {
	return uuid.NewString()
}

// History 获取会话历史的副本
func (s *SessionStore) History(sessionID string) []models.Turn {
	s.mu.RLock()
	defer s.mu.RUnlock()

	history := s.histories[sessionID]
	copied := make([]models.Turn, len(history))
	copy(copied, history)
	return copied
}

// AppendExchange 追加一轮问答（用户消息+助手响应），并截断到保留窗口
func (s *SessionStore) AppendExchange(sessionID, userMessage, assistantResponse string) {
	now := time.Now()

	s.mu.Lock()
	defer s.mu.Unlock()

	history := append(s.histories[sessionID],
		models.Turn{Role: models.RoleUser, Content: userMessage, Timestamp: now},
		models.Turn{Role: models.RoleAssistant, Content: assistantResponse, Timestamp: now},
	)
	if len(history) > retainedTurns {
		history = history[len(history)-retainedTurns:]
	}
	s.histories[sessionID] = history

	log.Printf("[会话存储] 会话 %s 历史已更新, 当前 %d 条轮次", sessionID, len(history))
}

// Clear 清空指定会话历史
func (s *SessionStore) Clear(sessionID string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.histories, sessionID)
}

package store

import (
	"fmt"
	"testing"

	"github.com/partdesk/service/internal/models"
)

func TestSessionStoreAppendExchange(t *testing.T) {
	s := NewSessionStore()
	sessionID := NewSessionID()

	s.AppendExchange(sessionID, "hello", "hi there")

	history := s.History(sessionID)
	if len(history) != 2 {
		t.Fatalf("一轮问答应产生2条轮次: got=%d", len(history))
	}
	if history[0].Role != models.RoleUser || history[0].Content != "hello" {
		t.Errorf("用户轮次错误: %+v", history[0])
	}
	if history[1].Role != models.RoleAssistant || history[1].Content != "hi there" {
		t.Errorf("助手轮次错误: %+v", history[1])
	}
}

func TestSessionStoreTruncation(t *testing.T) {
	s := NewSessionStore()
	sessionID := "session-1"

	for i := 0; i < 8; i++ {
		s.AppendExchange(sessionID, fmt.Sprintf("q%d", i), fmt.Sprintf("a%d", i))
	}

	history := s.History(sessionID)
	if len(history) != 10 {
		t.Fatalf("历史应截断到10条轮次: got=%d", len(history))
	}
	// 保留的是最近的轮次
	if history[0].Content != "q3" {
		t.Errorf("截断应丢弃最早轮次: 首条=%q", history[0].Content)
	}
	if history[9].Content != "a7" {
		t.Errorf("末条轮次错误: %q", history[9].Content)
	}
}

func TestSessionStoreHistoryIsCopy(t *testing.T) {
	s := NewSessionStore()
	s.AppendExchange("session-1", "q", "a")

	history := s.History("session-1")
	history[0].Content = "mutated"

	fresh := s.History("session-1")
	if fresh[0].Content != "q" {
		t.Error("History应返回副本，调用方修改不应影响存储")
	}
}

func TestSessionStoreClear(t *testing.T) {
	s := NewSessionStore()
	s.AppendExchange("session-1", "q", "a")
	s.Clear("session-1")

	if len(s.History("session-1")) != 0 {
		t.Error("清空后历史应为空")
	}
}

func TestSessionStoreIsolation(t *testing.T) {
	s := NewSessionStore()
	s.AppendExchange("session-1", "q1", "a1")
	s.AppendExchange("session-2", "q2", "a2")

	if len(s.History("session-1")) != 2 || len(s.History("session-2")) != 2 {
		t.Error("会话历史应彼此隔离")
	}
	if s.History("session-1")[0].Content == s.History("session-2")[0].Content {
		t.Error("不同会话不应共享轮次")
	}
}

func TestNormalizeID(t *testing.T) {
	if got := NormalizeID("  ps11752778 "); got != "PS11752778" {
		t.Errorf("标识归一化错误: got=%q", got)
	}
}

package api

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/partdesk/service/internal/agents"
	"github.com/partdesk/service/internal/cache"
	"github.com/partdesk/service/internal/config"
	"github.com/partdesk/service/internal/models"
	"github.com/partdesk/service/internal/store"
)

// fakeChatService 固定结果的会话服务桩
type fakeChatService struct {
	result *models.HandlerResult
	err    error
}

func (f *fakeChatService) Handle(ctx context.Context, message string, history []models.Turn) (*models.HandlerResult, error) {
	if f.err != nil {
		return nil, f.err
	}
	return f.result, nil
}

func (f *fakeChatService) HandleStream(ctx context.Context, message string, history []models.Turn) (<-chan *models.StreamChunk, error) {
	if f.err != nil {
		return nil, f.err
	}
	ch := make(chan *models.StreamChunk, 2)
	ch <- &models.StreamChunk{Type: "content", Content: f.result.Response}
	ch <- &models.StreamChunk{Type: "metadata", Done: true, Result: f.result}
	close(ch)
	return ch, nil
}

func newTestRouter(t *testing.T, chat ChatService) (*gin.Engine, *store.SessionStore) {
	t.Helper()
	gin.SetMode(gin.TestMode)

	catalog := store.NewMemoryCatalog(&models.Part{
		PartNumber:       "PS100",
		Name:             "Ice Maker Assembly",
		Category:         models.CategoryRefrigerator,
		Price:            89.99,
		CompatibleModels: []string{"WDT780SAEM1"},
	})
	sessions := store.NewSessionStore()
	suggestions := cache.NewSuggestionsCache(time.Minute, nil)
	cfg := &config.Config{ServiceName: "partdesk-test"}

	handler := NewHandler(chat, agents.NewCompatibilityAgent(nil, catalog), catalog, sessions, suggestions, cfg)
	router := gin.New()
	handler.RegisterRoutes(router)
	return router, sessions
}

func doJSON(t *testing.T, router *gin.Engine, method, path string, body interface{}) *httptest.ResponseRecorder {
	t.Helper()
	var reader *bytes.Buffer
	if body != nil {
		data, _ := json.Marshal(body)
		reader = bytes.NewBuffer(data)
	} else {
		reader = bytes.NewBuffer(nil)
	}
	req := httptest.NewRequest(method, path, reader)
	req.Header.Set("Content-Type", "application/json")
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)
	return w
}

func TestHandleHealth(t *testing.T) {
	router, _ := newTestRouter(t, &fakeChatService{})

	w := doJSON(t, router, http.MethodGet, "/health", nil)
	if w.Code != http.StatusOK {
		t.Fatalf("状态码错误: %d", w.Code)
	}

	var resp map[string]interface{}
	json.Unmarshal(w.Body.Bytes(), &resp)
	if resp["status"] != "ok" {
		t.Errorf("健康检查响应错误: %v", resp)
	}
}

func TestHandleChat(t *testing.T) {
	chat := &fakeChatService{result: &models.HandlerResult{
		Response: "Here are some parts",
		Agent:    "product_search",
		Intent:   models.IntentProductSearch,
	}}
	router, sessions := newTestRouter(t, chat)

	w := doJSON(t, router, http.MethodPost, "/api/chat", map[string]string{"message": "show me parts"})
	if w.Code != http.StatusOK {
		t.Fatalf("状态码错误: %d, body=%s", w.Code, w.Body.String())
	}

	var resp struct {
		SessionID   string                `json:"session_id"`
		Result      *models.HandlerResult `json:"result"`
		Suggestions []string              `json:"suggestions"`
	}
	json.Unmarshal(w.Body.Bytes(), &resp)
	if resp.SessionID == "" {
		t.Error("未传session_id时应自动生成")
	}
	if resp.Result == nil || resp.Result.Response != "Here are some parts" {
		t.Errorf("结果错误: %+v", resp.Result)
	}
	if len(resp.Suggestions) == 0 {
		t.Error("应附带后续推荐提问")
	}

	// 一轮问答后历史应更新
	if history := sessions.History(resp.SessionID); len(history) != 2 {
		t.Errorf("会话历史应有2条轮次: got=%d", len(history))
	}
}

func TestHandleChatMissingMessage(t *testing.T) {
	router, _ := newTestRouter(t, &fakeChatService{})

	w := doJSON(t, router, http.MethodPost, "/api/chat", map[string]string{})
	if w.Code != http.StatusBadRequest {
		t.Errorf("缺少message应返回400: got=%d", w.Code)
	}
}

func TestHandleGetPart(t *testing.T) {
	router, _ := newTestRouter(t, &fakeChatService{})

	t.Run("存在的配件", func(t *testing.T) {
		w := doJSON(t, router, http.MethodGet, "/api/parts/ps100", nil)
		if w.Code != http.StatusOK {
			t.Fatalf("状态码错误: %d", w.Code)
		}
		var part models.Part
		json.Unmarshal(w.Body.Bytes(), &part)
		if part.PartNumber != "PS100" {
			t.Errorf("配件号错误: %q", part.PartNumber)
		}
	})

	t.Run("不存在的配件", func(t *testing.T) {
		w := doJSON(t, router, http.MethodGet, "/api/parts/PS999", nil)
		if w.Code != http.StatusNotFound {
			t.Errorf("应返回404: got=%d", w.Code)
		}
	})
}

func TestHandleListPartsCategoryValidation(t *testing.T) {
	router, _ := newTestRouter(t, &fakeChatService{})

	w := doJSON(t, router, http.MethodGet, "/api/parts?category=oven", nil)
	if w.Code != http.StatusBadRequest {
		t.Errorf("不支持的类别应返回400: got=%d", w.Code)
	}

	w = doJSON(t, router, http.MethodGet, "/api/parts?category=refrigerator", nil)
	if w.Code != http.StatusOK {
		t.Errorf("状态码错误: %d", w.Code)
	}
}

func TestHandleCompatibility(t *testing.T) {
	router, _ := newTestRouter(t, &fakeChatService{})

	w := doJSON(t, router, http.MethodPost, "/api/compatibility", map[string]string{
		"part_number":  "PS100",
		"model_number": "WDT780SAEM1",
	})
	if w.Code != http.StatusOK {
		t.Fatalf("状态码错误: %d, body=%s", w.Code, w.Body.String())
	}

	var resp struct {
		Compatible *bool `json:"compatible"`
	}
	json.Unmarshal(w.Body.Bytes(), &resp)
	if resp.Compatible == nil || !*resp.Compatible {
		t.Error("应判定为兼容")
	}
}

func TestHandleCompatibilityPartNotFound(t *testing.T) {
	router, _ := newTestRouter(t, &fakeChatService{})

	w := doJSON(t, router, http.MethodPost, "/api/compatibility", map[string]string{
		"part_number":  "PS999",
		"model_number": "WDT780SAEM1",
	})
	if w.Code != http.StatusNotFound {
		t.Errorf("配件不存在应返回404: got=%d", w.Code)
	}
}

func TestHandleConversationLifecycle(t *testing.T) {
	router, sessions := newTestRouter(t, &fakeChatService{})
	sessions.AppendExchange("session-1", "q", "a")

	w := doJSON(t, router, http.MethodGet, "/api/conversation/session-1", nil)
	if w.Code != http.StatusOK {
		t.Fatalf("状态码错误: %d", w.Code)
	}
	var resp struct {
		History []models.Turn `json:"history"`
	}
	json.Unmarshal(w.Body.Bytes(), &resp)
	if len(resp.History) != 2 {
		t.Errorf("历史条数错误: %d", len(resp.History))
	}

	w = doJSON(t, router, http.MethodDelete, "/api/conversation/session-1", nil)
	if w.Code != http.StatusOK {
		t.Fatalf("删除状态码错误: %d", w.Code)
	}
	if len(sessions.History("session-1")) != 0 {
		t.Error("删除后历史应为空")
	}
}

func TestHandleSuggestionsCaching(t *testing.T) {
	router, _ := newTestRouter(t, &fakeChatService{})

	w := doJSON(t, router, http.MethodGet, "/api/suggestions", nil)
	if w.Code != http.StatusOK {
		t.Fatalf("状态码错误: %d", w.Code)
	}
	var first struct {
		Suggestions []string `json:"suggestions"`
		Cached      bool     `json:"cached"`
	}
	json.Unmarshal(w.Body.Bytes(), &first)
	if first.Cached {
		t.Error("首次请求不应命中缓存")
	}
	if len(first.Suggestions) == 0 {
		t.Error("应返回推荐提问")
	}

	w = doJSON(t, router, http.MethodGet, "/api/suggestions", nil)
	var second struct {
		Cached bool `json:"cached"`
	}
	json.Unmarshal(w.Body.Bytes(), &second)
	if !second.Cached {
		t.Error("第二次请求应命中缓存")
	}
}

func TestHandleChatServiceError(t *testing.T) {
	router, _ := newTestRouter(t, &fakeChatService{err: context.DeadlineExceeded})

	w := doJSON(t, router, http.MethodPost, "/api/chat", map[string]string{"message": "hi"})
	if w.Code != http.StatusInternalServerError {
		t.Errorf("服务错误应返回500: got=%d", w.Code)
	}
}

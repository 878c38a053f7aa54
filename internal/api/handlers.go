package api

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log"
	"net/http"
	"strings"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/partdesk/service/internal/agents"
	"github.com/partdesk/service/internal/cache"
	"github.com/partdesk/service/internal/config"
	"github.com/partdesk/service/internal/models"
	"github.com/partdesk/service/internal/store"
)

// ChatService 会话处理服务接口
type ChatService interface {
	Handle(ctx context.Context, message string, history []models.Turn) (*models.HandlerResult, error)
	HandleStream(ctx context.Context, message string, history []models.Turn) (<-chan *models.StreamChunk, error)
}

// Handler API处理器
type Handler struct {
	chat        ChatService
	compat      *agents.CompatibilityAgent
	catalog     store.CatalogStore
	sessions    *store.SessionStore
	suggestions *cache.SuggestionsCache
	config      *config.Config
	startTime   time.Time
}

// NewHandler 创建API处理器
func NewHandler(chat ChatService, compat *agents.CompatibilityAgent, catalog store.CatalogStore, sessions *store.SessionStore, suggestions *cache.SuggestionsCache, cfg *config.Config) *Handler {
	return &Handler{
		chat:        chat,
		compat:      compat,
		catalog:     catalog,
		sessions:    sessions,
		suggestions: suggestions,
		config:      cfg,
		startTime:   time.Now(),
	}
}

// RegisterRoutes 注册路由
func (h *Handler) RegisterRoutes(router *gin.Engine) {
	// 健康检查
	router.GET("/health", h.handleHealth)

	// WebSocket聊天端点
	router.GET("/ws/chat", h.HandleWebSocket)

	api := router.Group("/api")
	{
		// 会话端点
		api.POST("/chat", h.handleChat)
		api.POST("/chat/stream", h.handleChatStream)

		// 配件目录端点
		api.GET("/parts", h.handleListParts)
		api.GET("/parts/:part_number", h.handleGetPart)
		api.GET("/categories", h.handleCategories)

		// 兼容性直查端点
		api.POST("/compatibility", h.handleCompatibility)

		// 会话历史端点
		api.GET("/conversation/:session_id", h.handleGetConversation)
		api.DELETE("/conversation/:session_id", h.handleClearConversation)

		// 推荐提问端点
		api.GET("/suggestions", h.handleSuggestions)
	}
}

// chatRequest 会话请求体
type chatRequest struct {
	Message   string `json:"message" binding:"required"`
	SessionID string `json:"session_id"`
}

// handleHealth 健康检查
func (h *Handler) handleHealth(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{
		"status":  "ok",
		"service": h.config.ServiceName,
		"uptime":  time.Since(h.startTime).String(),
	})
}

// handleChat 单次会话处理
func (h *Handler) handleChat(c *gin.Context) {
	var req chatRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "message字段不能为空"})
		return
	}

	sessionID := req.SessionID
	if sessionID == "" {
		sessionID = store.NewSessionID()
		log.Printf("[API] 新建会话: %s", sessionID)
	}

	history := h.sessions.History(sessionID)
	result, err := h.chat.Handle(c.Request.Context(), req.Message, history)
	if err != nil {
		log.Printf("[API] ❌ 会话处理失败: %v", err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "internal error"})
		return
	}

	h.sessions.AppendExchange(sessionID, req.Message, result.Response)

	c.JSON(http.StatusOK, gin.H{
		"session_id":  sessionID,
		"result":      result,
		"suggestions": followupSuggestions(result.Intent),
	})
}

// handleChatStream 流式会话处理（SSE）
// 分片顺序：若干content分片 → 一条metadata分片 → 一条suggestions分片
func (h *Handler) handleChatStream(c *gin.Context) {
	var req chatRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "message字段不能为空"})
		return
	}

	sessionID := req.SessionID
	if sessionID == "" {
		sessionID = store.NewSessionID()
	}

	history := h.sessions.History(sessionID)
	chunks, err := h.chat.HandleStream(c.Request.Context(), req.Message, history)
	if err != nil {
		log.Printf("[API] ❌ 流式处理失败: %v", err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "internal error"})
		return
	}

	c.Header("Content-Type", "text/event-stream")
	c.Header("Cache-Control", "no-cache")
	c.Header("Connection", "keep-alive")
	c.Header("X-Session-ID", sessionID)

	var finalResult *models.HandlerResult
	c.Stream(func(w io.Writer) bool {
		chunk, ok := <-chunks
		if !ok {
			return false
		}
		if chunk.Type == "metadata" && chunk.Result != nil {
			finalResult = chunk.Result
		}
		writeSSE(w, chunk)
		return true
	})

	if finalResult != nil {
		// 推荐提问作为末尾独立分片
		c.Stream(func(w io.Writer) bool {
			writeSSE(w, gin.H{
				"type":        "suggestions",
				"suggestions": followupSuggestions(finalResult.Intent),
				"session_id":  sessionID,
			})
			return false
		})
		h.sessions.AppendExchange(sessionID, req.Message, finalResult.Response)
	}
}

// writeSSE 按SSE格式写出一条JSON事件
func writeSSE(w io.Writer, payload interface{}) {
	data, err := json.Marshal(payload)
	if err != nil {
		log.Printf("[API] SSE序列化失败: %v", err)
		return
	}
	fmt.Fprintf(w, "data: %s\n\n", data)
}

// handleGetPart 按配件号查询配件
func (h *Handler) handleGetPart(c *gin.Context) {
	partNumber := store.NormalizeID(c.Param("part_number"))
	part, err := h.catalog.FindPartByNumber(c.Request.Context(), partNumber)
	if err != nil {
		log.Printf("[API] ❌ 配件查询失败: %v", err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "internal error"})
		return
	}
	if part == nil {
		c.JSON(http.StatusNotFound, gin.H{"error": fmt.Sprintf("配件 %s 不存在", partNumber)})
		return
	}
	c.JSON(http.StatusOK, part)
}

// handleListParts 列出配件，支持category过滤
func (h *Handler) handleListParts(c *gin.Context) {
	var category models.Category
	switch strings.ToLower(c.Query("category")) {
	case "":
	case "refrigerator":
		category = models.CategoryRefrigerator
	case "dishwasher":
		category = models.CategoryDishwasher
	default:
		c.JSON(http.StatusBadRequest, gin.H{"error": "category必须是refrigerator或dishwasher"})
		return
	}

	parts, err := h.catalog.ListParts(c.Request.Context(), category)
	if err != nil {
		log.Printf("[API] ❌ 配件列表查询失败: %v", err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "internal error"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"parts": parts, "count": len(parts)})
}

// handleCategories 返回支持的家电类别
func (h *Handler) handleCategories(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{
		"categories": []models.Category{models.CategoryRefrigerator, models.CategoryDishwasher},
	})
}

// compatibilityRequest 兼容性直查请求体
type compatibilityRequest struct {
	PartNumber  string `json:"part_number" binding:"required"`
	ModelNumber string `json:"model_number" binding:"required"`
}

// handleCompatibility 兼容性直查，绕过意图路由
func (h *Handler) handleCompatibility(c *gin.Context) {
	var req compatibilityRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "part_number和model_number均不能为空"})
		return
	}

	result, err := h.compat.CheckCompatibility(c.Request.Context(), req.PartNumber, req.ModelNumber)
	if err != nil {
		log.Printf("[API] ❌ 兼容性检查失败: %v", err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "internal error"})
		return
	}
	if result.ErrorCode == models.ErrPartNotFound {
		c.JSON(http.StatusNotFound, gin.H{
			"error": fmt.Sprintf("配件 %s 不存在", req.PartNumber),
			"code":  result.ErrorCode,
		})
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"part_number":       req.PartNumber,
		"model_number":      req.ModelNumber,
		"compatible":        result.Compatible,
		"compatible_models": result.CompatibleModels,
		"part":              result.Part,
	})
}

// handleGetConversation 查询会话历史
func (h *Handler) handleGetConversation(c *gin.Context) {
	sessionID := c.Param("session_id")
	history := h.sessions.History(sessionID)
	c.JSON(http.StatusOK, gin.H{
		"session_id": sessionID,
		"history":    history,
		"count":      len(history),
	})
}

// handleClearConversation 清空会话历史
func (h *Handler) handleClearConversation(c *gin.Context) {
	sessionID := c.Param("session_id")
	h.sessions.Clear(sessionID)
	log.Printf("[API] 会话 %s 历史已清空", sessionID)
	c.JSON(http.StatusOK, gin.H{"session_id": sessionID, "cleared": true})
}

// handleSuggestions 首屏推荐提问，带TTL缓存
func (h *Handler) handleSuggestions(c *gin.Context) {
	if items, ok := h.suggestions.Get(); ok {
		c.JSON(http.StatusOK, gin.H{"suggestions": items, "cached": true})
		return
	}

	items := h.buildSuggestions(c.Request.Context())
	h.suggestions.Set(items)
	c.JSON(http.StatusOK, gin.H{"suggestions": items, "cached": false})
}

// buildSuggestions 基于目录内容生成推荐提问
func (h *Handler) buildSuggestions(ctx context.Context) []string {
	suggestions := []string{
		"My dishwasher won't drain, what should I check?",
		"How do I find my appliance's model number?",
	}

	parts, err := h.catalog.ListParts(ctx, "")
	if err != nil || len(parts) == 0 {
		if err != nil {
			log.Printf("[API] ⚠️ 生成推荐提问时目录查询失败: %v", err)
		}
		return append(suggestions, "Show me refrigerator parts")
	}

	// 用目录中的真实配件让推荐更具体
	first := parts[0]
	suggestions = append(suggestions,
		fmt.Sprintf("How do I install %s?", first.PartNumber),
		fmt.Sprintf("Show me %s parts", strings.ToLower(string(first.Category))),
	)
	return suggestions
}

// followupSuggestions 按意图生成后续推荐提问
func followupSuggestions(intent models.Intent) []string {
	switch intent {
	case models.IntentProductSearch:
		return []string{
			"Is this part compatible with my model?",
			"How difficult is the installation?",
		}
	case models.IntentCompatibilityCheck:
		return []string{
			"How do I install this part?",
			"Show me similar parts",
		}
	case models.IntentInstallationHelp:
		return []string{
			"How long does the installation take?",
			"Is this part compatible with my model?",
		}
	case models.IntentTroubleshooting:
		return []string{
			"How do I install the replacement part?",
			"Show me more parts for my appliance",
		}
	case models.IntentOrderSupport:
		return []string{
			"Help me find a part",
			"Check part compatibility",
		}
	default:
		return []string{
			"Show me dishwasher parts",
			"My fridge isn't cooling, what could be wrong?",
		}
	}
}

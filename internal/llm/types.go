package llm

import (
	"context"
	"time"
)

// =============================================================================
// 补全服务核心类型定义
// =============================================================================

// Request 统一的补全请求结构
type Request struct {
	SystemPrompt string  `json:"system_prompt,omitempty"`
	Prompt       string  `json:"prompt"`
	MaxTokens    int     `json:"max_tokens"`
	Temperature  float64 `json:"temperature"`
}

// Response 统一的补全响应结构
type Response struct {
	Content    string        `json:"content"`
	TokensUsed int           `json:"tokens_used"`
	Model      string        `json:"model"`
	Duration   time.Duration `json:"duration"`
}

// StreamChunk 流式响应分片，Done为true时流结束
type StreamChunk struct {
	Delta string `json:"delta"`
	Done  bool   `json:"done"`
	Err   error  `json:"-"`
}

// Config 补全服务配置
type Config struct {
	APIKey  string        `json:"api_key"`
	BaseURL string        `json:"base_url"`
	Model   string        `json:"model"`
	Timeout time.Duration `json:"timeout"`
}

// ServiceError 补全服务错误
// 与空响应可区分，调用方据此选择确定性的降级文案
type ServiceError struct {
	Code      string `json:"code"`
	Message   string `json:"message"`
	Retryable bool   `json:"retryable"`
}

func (e *ServiceError) Error() string {
	return e.Message
}

// Client 补全服务客户端接口
type Client interface {
	// 单次补全
	Complete(ctx context.Context, req *Request) (*Response, error)

	// 流式补全，通道在流结束或出错后关闭
	StreamComplete(ctx context.Context, req *Request) (<-chan *StreamChunk, error)
}

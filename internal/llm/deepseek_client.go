package llm

import (
	"bufio"
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log"
	"net/http"
	"strings"
	"time"
)

// =============================================================================
// DeepSeek客户端实现
// =============================================================================

const (
	defaultBaseURL   = "https://api.deepseek.com/v1"
	defaultModel     = "deepseek-chat"
	defaultTimeout   = 30 * time.Second
	defaultMaxTokens = 2000
)

// DeepSeekClient DeepSeek适配器
type DeepSeekClient struct {
	apiKey     string
	baseURL    string
	model      string
	httpClient *http.Client
}

// deepseekRequest DeepSeek请求格式（类似OpenAI）
type deepseekRequest struct {
	Model       string            `json:"model"`
	Messages    []deepseekMessage `json:"messages"`
	MaxTokens   int               `json:"max_tokens,omitempty"`
	Temperature float64           `json:"temperature,omitempty"`
	Stream      bool              `json:"stream,omitempty"`
}

// deepseekMessage DeepSeek消息格式
type deepseekMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

// deepseekResponse DeepSeek响应格式
type deepseekResponse struct {
	ID      string `json:"id"`
	Model   string `json:"model"`
	Choices []struct {
		Index   int `json:"index"`
		Message struct {
			Role    string `json:"role"`
			Content string `json:"content"`
		} `json:"message"`
		FinishReason string `json:"finish_reason"`
	} `json:"choices"`
	Usage struct {
		PromptTokens     int `json:"prompt_tokens"`
		CompletionTokens int `json:"completion_tokens"`
		TotalTokens      int `json:"total_tokens"`
	} `json:"usage"`
}

// deepseekStreamChunk 流式分片格式
type deepseekStreamChunk struct {
	Choices []struct {
		Delta struct {
			Content string `json:"content"`
		} `json:"delta"`
	} `json:"choices"`
}

// deepseekErrorResponse DeepSeek错误响应
type deepseekErrorResponse struct {
	Error struct {
		Message string `json:"message"`
		Type    string `json:"type"`
		Code    string `json:"code"`
	} `json:"error"`
}

// NewDeepSeekClient 创建DeepSeek客户端
func NewDeepSeekClient(config *Config) (*DeepSeekClient, error) {
	if config.APIKey == "" {
		return nil, fmt.Errorf("DeepSeek API key is required")
	}

	baseURL := config.BaseURL
	if baseURL == "" {
		baseURL = defaultBaseURL
	}

	model := config.Model
	if model == "" {
		model = defaultModel
	}

	timeout := config.Timeout
	if timeout <= 0 {
		timeout = defaultTimeout
	}

	return &DeepSeekClient{
		apiKey:     config.APIKey,
		baseURL:    baseURL,
		model:      model,
		httpClient: &http.Client{Timeout: timeout},
	}, nil
}

// Complete 单次补全
func (dc *DeepSeekClient) Complete(ctx context.Context, req *Request) (*Response, error) {
	startTime := time.Now()

	body, err := json.Marshal(dc.convertRequest(req, false))
	if err != nil {
		return nil, fmt.Errorf("序列化请求失败: %w", err)
	}

	httpResp, err := dc.sendRequest(ctx, body)
	if err != nil {
		return nil, err
	}
	defer httpResp.Body.Close()

	respBody, err := io.ReadAll(httpResp.Body)
	if err != nil {
		return nil, fmt.Errorf("读取响应失败: %w", err)
	}

	if httpResp.StatusCode != http.StatusOK {
		return nil, dc.buildAPIError(httpResp.StatusCode, respBody)
	}

	var resp deepseekResponse
	if err := json.Unmarshal(respBody, &resp); err != nil {
		return nil, fmt.Errorf("解析响应失败: %w", err)
	}

	content := ""
	if len(resp.Choices) > 0 {
		content = resp.Choices[0].Message.Content
	}

	log.Printf("[DeepSeek] 补全完成, TokensUsed=%d, 耗时=%v", resp.Usage.TotalTokens, time.Since(startTime))

	return &Response{
		Content:    content,
		TokensUsed: resp.Usage.TotalTokens,
		Model:      resp.Model,
		Duration:   time.Since(startTime),
	}, nil
}

// StreamComplete 流式补全，逐token返回
func (dc *DeepSeekClient) StreamComplete(ctx context.Context, req *Request) (<-chan *StreamChunk, error) {
	body, err := json.Marshal(dc.convertRequest(req, true))
	if err != nil {
		return nil, fmt.Errorf("序列化请求失败: %w", err)
	}

	httpResp, err := dc.sendRequest(ctx, body)
	if err != nil {
		return nil, err
	}

	if httpResp.StatusCode != http.StatusOK {
		respBody, _ := io.ReadAll(httpResp.Body)
		httpResp.Body.Close()
		return nil, dc.buildAPIError(httpResp.StatusCode, respBody)
	}

	ch := make(chan *StreamChunk, 8)

	go func() {
		defer close(ch)
		defer httpResp.Body.Close()

		// 解析SSE流：data: 前缀行，[DONE]结束
		scanner := bufio.NewScanner(httpResp.Body)
		scanner.Buffer(make([]byte, 0, 64*1024), 1024*1024)

		for scanner.Scan() {
			line := strings.TrimSpace(scanner.Text())
			if !strings.HasPrefix(line, "data: ") {
				continue
			}
			data := strings.TrimPrefix(line, "data: ")
			if data == "[DONE]" {
				break
			}

			var chunk deepseekStreamChunk
			if err := json.Unmarshal([]byte(data), &chunk); err != nil {
				continue
			}
			if len(chunk.Choices) == 0 || chunk.Choices[0].Delta.Content == "" {
				continue
			}

			select {
			case ch <- &StreamChunk{Delta: chunk.Choices[0].Delta.Content}:
			case <-ctx.Done():
				ch <- &StreamChunk{Done: true, Err: ctx.Err()}
				return
			}
		}

		if err := scanner.Err(); err != nil {
			ch <- &StreamChunk{Done: true, Err: fmt.Errorf("读取流失败: %w", err)}
			return
		}

		ch <- &StreamChunk{Done: true}
	}()

	return ch, nil
}

// convertRequest 转换为DeepSeek请求格式
func (dc *DeepSeekClient) convertRequest(req *Request, stream bool) *deepseekRequest {
	messages := []deepseekMessage{}

	if req.SystemPrompt != "" {
		messages = append(messages, deepseekMessage{Role: "system", Content: req.SystemPrompt})
	}
	messages = append(messages, deepseekMessage{Role: "user", Content: req.Prompt})

	maxTokens := req.MaxTokens
	if maxTokens <= 0 {
		maxTokens = defaultMaxTokens
	}

	return &deepseekRequest{
		Model:       dc.model,
		Messages:    messages,
		MaxTokens:   maxTokens,
		Temperature: req.Temperature,
		Stream:      stream,
	}
}

// sendRequest 发送HTTP请求
func (dc *DeepSeekClient) sendRequest(ctx context.Context, body []byte) (*http.Response, error) {
	httpReq, err := http.NewRequestWithContext(ctx, "POST", dc.baseURL+"/chat/completions", bytes.NewBuffer(body))
	if err != nil {
		return nil, fmt.Errorf("创建请求失败: %w", err)
	}

	httpReq.Header.Set("Content-Type", "application/json")
	httpReq.Header.Set("Authorization", "Bearer "+dc.apiKey)

	httpResp, err := dc.httpClient.Do(httpReq)
	if err != nil {
		return nil, &ServiceError{
			Code:      "SERVICE_UNAVAILABLE",
			Message:   fmt.Sprintf("DeepSeek请求失败: %v", err),
			Retryable: true,
		}
	}
	return httpResp, nil
}

// buildAPIError 构建API错误
func (dc *DeepSeekClient) buildAPIError(statusCode int, respBody []byte) error {
	var errorResp deepseekErrorResponse
	if err := json.Unmarshal(respBody, &errorResp); err == nil && errorResp.Error.Message != "" {
		return &ServiceError{
			Code:      errorResp.Error.Code,
			Message:   errorResp.Error.Message,
			Retryable: statusCode >= 500,
		}
	}
	return &ServiceError{
		Code:      "SERVICE_UNAVAILABLE",
		Message:   fmt.Sprintf("HTTP %d: %s", statusCode, string(respBody)),
		Retryable: statusCode >= 500,
	}
}

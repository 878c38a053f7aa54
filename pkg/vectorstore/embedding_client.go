package vectorstore

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log"
	"net/http"
	"time"
)

// EmbeddingClient 文本嵌入API客户端（OpenAI兼容格式）
type EmbeddingClient struct {
	APIURL     string
	APIKey     string
	Model      string
	httpClient *http.Client
}

// NewEmbeddingClient 创建嵌入API客户端
func NewEmbeddingClient(apiURL, apiKey, model string) *EmbeddingClient {
	if model == "" {
		model = "text-embedding-v1"
	}
	return &EmbeddingClient{
		APIURL:     apiURL,
		APIKey:     apiKey,
		Model:      model,
		httpClient: &http.Client{Timeout: 10 * time.Second},
	}
}

// GenerateEmbedding 生成文本的向量表示
func (c *EmbeddingClient) GenerateEmbedding(ctx context.Context, text string) ([]float32, error) {
	reqBody, err := json.Marshal(map[string]interface{}{
		"model":           c.Model,
		"input":           []string{text},
		"encoding_format": "float",
	})
	if err != nil {
		return nil, fmt.Errorf("序列化请求失败: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, "POST", c.APIURL, bytes.NewBuffer(reqBody))
	if err != nil {
		return nil, fmt.Errorf("创建HTTP请求失败: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+c.APIKey)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("嵌入API请求失败: %w", err)
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("读取响应失败: %w", err)
	}

	if resp.StatusCode != http.StatusOK {
		log.Printf("[向量存储] 嵌入API返回错误状态码: %d, 响应: %s", resp.StatusCode, string(respBody))
		return nil, fmt.Errorf("嵌入API返回错误状态码: %d", resp.StatusCode)
	}

	var result struct {
		Data []struct {
			Embedding []float32 `json:"embedding"`
		} `json:"data"`
	}
	if err := json.Unmarshal(respBody, &result); err != nil {
		return nil, fmt.Errorf("解析响应失败: %w", err)
	}

	if len(result.Data) == 0 || len(result.Data[0].Embedding) == 0 {
		return nil, fmt.Errorf("未返回有效的嵌入向量")
	}

	return result.Data[0].Embedding, nil
}

package llm

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
)

func newTestClient(t *testing.T, handler http.HandlerFunc) *DeepSeekClient {
	t.Helper()
	server := httptest.NewServer(handler)
	t.Cleanup(server.Close)

	client, err := NewDeepSeekClient(&Config{APIKey: "test-key", BaseURL: server.URL})
	if err != nil {
		t.Fatalf("创建客户端失败: %v", err)
	}
	return client
}

func TestNewDeepSeekClientRequiresAPIKey(t *testing.T) {
	if _, err := NewDeepSeekClient(&Config{}); err == nil {
		t.Error("缺少API密钥应报错")
	}
}

func TestComplete(t *testing.T) {
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/chat/completions" {
			t.Errorf("请求路径错误: %s", r.URL.Path)
		}
		if auth := r.Header.Get("Authorization"); auth != "Bearer test-key" {
			t.Errorf("认证头错误: %s", auth)
		}

		var req map[string]interface{}
		json.NewDecoder(r.Body).Decode(&req)
		messages := req["messages"].([]interface{})
		if len(messages) != 2 {
			t.Errorf("应包含system和user两条消息: got=%d", len(messages))
		}

		json.NewEncoder(w).Encode(map[string]interface{}{
			"model": "deepseek-chat",
			"choices": []map[string]interface{}{
				{"message": map[string]string{"role": "assistant", "content": "PRODUCT_SEARCH"}},
			},
			"usage": map[string]int{"total_tokens": 12},
		})
	})

	resp, err := client.Complete(context.Background(), &Request{
		SystemPrompt: "classify",
		Prompt:       "show me parts",
	})
	if err != nil {
		t.Fatalf("补全失败: %v", err)
	}
	if resp.Content != "PRODUCT_SEARCH" {
		t.Errorf("内容错误: %q", resp.Content)
	}
	if resp.TokensUsed != 12 {
		t.Errorf("token统计错误: %d", resp.TokensUsed)
	}
}

func TestCompleteAPIError(t *testing.T) {
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusTooManyRequests)
		json.NewEncoder(w).Encode(map[string]interface{}{
			"error": map[string]string{"message": "rate limited", "code": "rate_limit"},
		})
	})

	_, err := client.Complete(context.Background(), &Request{Prompt: "hi"})
	if err == nil {
		t.Fatal("API错误应返回error")
	}

	var serviceErr *ServiceError
	if !errors.As(err, &serviceErr) {
		t.Fatalf("应为ServiceError: %T", err)
	}
	if serviceErr.Code != "rate_limit" {
		t.Errorf("错误码错误: %q", serviceErr.Code)
	}
	if serviceErr.Retryable {
		t.Error("429不应标记为可重试")
	}
}

func TestCompleteTransportError(t *testing.T) {
	client, err := NewDeepSeekClient(&Config{APIKey: "test-key", BaseURL: "http://127.0.0.1:1"})
	if err != nil {
		t.Fatalf("创建客户端失败: %v", err)
	}

	_, err = client.Complete(context.Background(), &Request{Prompt: "hi"})
	var serviceErr *ServiceError
	if !errors.As(err, &serviceErr) {
		t.Fatalf("传输失败应为ServiceError: %v", err)
	}
	if serviceErr.Code != "SERVICE_UNAVAILABLE" || !serviceErr.Retryable {
		t.Errorf("传输失败应为可重试的SERVICE_UNAVAILABLE: %+v", serviceErr)
	}
}

func TestStreamComplete(t *testing.T) {
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "text/event-stream")
		flusher := w.(http.Flusher)
		for _, delta := range []string{"Hello", " ", "world"} {
			chunk := map[string]interface{}{
				"choices": []map[string]interface{}{
					{"delta": map[string]string{"content": delta}},
				},
			}
			data, _ := json.Marshal(chunk)
			fmt.Fprintf(w, "data: %s\n\n", data)
			flusher.Flush()
		}
		fmt.Fprint(w, "data: [DONE]\n\n")
	})

	chunks, err := client.StreamComplete(context.Background(), &Request{Prompt: "hi"})
	if err != nil {
		t.Fatalf("流式补全失败: %v", err)
	}

	var content strings.Builder
	var done bool
	for chunk := range chunks {
		if chunk.Err != nil {
			t.Fatalf("流中不应有错误: %v", chunk.Err)
		}
		if chunk.Done {
			done = true
			continue
		}
		content.WriteString(chunk.Delta)
	}

	if !done {
		t.Error("流应以Done分片收尾")
	}
	if content.String() != "Hello world" {
		t.Errorf("流内容错误: %q", content.String())
	}
}

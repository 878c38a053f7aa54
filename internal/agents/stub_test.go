package agents

import (
	"context"

	"github.com/partdesk/service/internal/llm"
	"github.com/partdesk/service/internal/models"
	"github.com/partdesk/service/pkg/vectorstore"
)

// stubClient 固定返回内容的补全服务桩，记录是否被调用
type stubClient struct {
	content string
	err     error
	called  bool
}

func (s *stubClient) Complete(ctx context.Context, req *llm.Request) (*llm.Response, error) {
	s.called = true
	if s.err != nil {
		return nil, s.err
	}
	return &llm.Response{Content: s.content}, nil
}

func (s *stubClient) StreamComplete(ctx context.Context, req *llm.Request) (<-chan *llm.StreamChunk, error) {
	s.called = true
	if s.err != nil {
		return nil, s.err
	}
	ch := make(chan *llm.StreamChunk, 1)
	ch <- &llm.StreamChunk{Delta: s.content, Done: true}
	close(ch)
	return ch, nil
}

// stubSearcher 固定返回命中列表的检索桩
type stubSearcher struct {
	hits []vectorstore.SearchHit
	err  error
}

func (s *stubSearcher) Search(ctx context.Context, queryText string, maxResults int, categoryFilter models.Category) ([]vectorstore.SearchHit, error) {
	if s.err != nil {
		return nil, s.err
	}
	if len(s.hits) > maxResults {
		return s.hits[:maxResults], nil
	}
	return s.hits, nil
}

// errServiceDown 模拟补全服务不可用
var errServiceDown = &llm.ServiceError{Code: "SERVICE_UNAVAILABLE", Message: "connection refused", Retryable: true}

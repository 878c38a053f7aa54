package agents

import (
	"context"
	"log"
	"strings"

	"github.com/partdesk/service/internal/llm"
	"github.com/partdesk/service/internal/models"
	"github.com/partdesk/service/internal/store"
	"github.com/partdesk/service/pkg/vectorstore"
)

// =============================================================================
// 编排器
// =============================================================================

// orderSupportResponse 订单支持固定文案，不经过补全服务
const orderSupportResponse = `I can help point you in the right direction for order questions! 📦

**For order status, returns, and shipping:**
- Check your order confirmation email for tracking information
- Visit the **Your Orders** page on our website
- Contact customer service at **1-800-PARTS** (Mon-Fri, 8am-8pm EST)

**Common questions:**
- **Returns:** Most parts can be returned within 30 days in original packaging
- **Shipping:** Standard shipping takes 3-5 business days
- **Cancellations:** Orders can be cancelled within 1 hour of placing them

Is there anything else I can help with — like finding a part or checking compatibility?`

// outOfScopeResponse 超范围提问固定文案
const outOfScopeResponse = `I'm specialized in **refrigerator and dishwasher parts**, so I can't help with that one! 😊

**Here's what I can do:**
- 🔍 Find parts: "Show me ice makers"
- ✅ Check compatibility: "Is PS11752778 compatible with WDT780SAEM1?"
- 🔧 Installation help: "How do I install part PS11752778?"
- 🩺 Troubleshooting: "My dishwasher won't drain"

What can I help you with?`

// Orchestrator 会话编排器
// 单轮处理管线：意图路由 → 专家处理器分发 → 统一结果结构
type Orchestrator struct {
	router          *Router
	productSearch   *ProductSearchAgent
	compatibility   *CompatibilityAgent
	installation    *InstallationAgent
	troubleshooting *TroubleshootingAgent
}

// NewOrchestrator 创建编排器并装配全部专家处理器
func NewOrchestrator(client llm.Client, catalog store.CatalogStore, searcher vectorstore.Searcher) *Orchestrator {
	return &Orchestrator{
		router:          NewRouter(client),
		productSearch:   NewProductSearchAgent(client, catalog, searcher),
		compatibility:   NewCompatibilityAgent(client, catalog),
		installation:    NewInstallationAgent(client, catalog, searcher),
		troubleshooting: NewTroubleshootingAgent(client, catalog, searcher),
	}
}

// Handle 处理单条用户消息
// 处理器内部条件（实体缺失、配件未找到）通过结果的ErrorCode表达，
// 只有基础设施故障才作为error返回
func (o *Orchestrator) Handle(ctx context.Context, message string, history []models.Turn) (*models.HandlerResult, error) {
	intent := o.router.Route(ctx, message, history)
	log.Printf("[编排器] 消息分发: intent=%s", intent)

	var (
		result *models.HandlerResult
		err    error
	)
	switch intent {
	case models.IntentCompatibilityCheck:
		result, err = o.compatibility.HandleQuery(ctx, message, "", "", history)
	case models.IntentInstallationHelp:
		result, err = o.installation.HandleQuery(ctx, message, "", history)
	case models.IntentTroubleshooting:
		result, err = o.troubleshooting.HandleQuery(ctx, message, history)
	case models.IntentOrderSupport:
		result = &models.HandlerResult{Response: orderSupportResponse, Agent: "order_support"}
	case models.IntentOutOfScope:
		result = &models.HandlerResult{Response: outOfScopeResponse, Agent: "out_of_scope"}
	default:
		result, err = o.productSearch.HandleQuery(ctx, message, history)
	}
	if err != nil {
		return nil, err
	}

	result.Intent = intent
	return result, nil
}

// HandleStream 流式处理单条用户消息
// 先完整处理，再按词切分推送content分片，最后推送一条携带完整结果的metadata分片
func (o *Orchestrator) HandleStream(ctx context.Context, message string, history []models.Turn) (<-chan *models.StreamChunk, error) {
	result, err := o.Handle(ctx, message, history)
	if err != nil {
		return nil, err
	}

	out := make(chan *models.StreamChunk)
	go func() {
		defer close(out)

		// 按词切分但保留原始空白，分片拼接可精确还原完整响应
		for _, word := range strings.SplitAfter(result.Response, " ") {
			if word == "" {
				continue
			}
			select {
			case out <- &models.StreamChunk{Type: "content", Content: word}:
			case <-ctx.Done():
				return
			}
		}

		select {
		case out <- &models.StreamChunk{Type: "metadata", Done: true, Result: result}:
		case <-ctx.Done():
		}
	}()
	return out, nil
}

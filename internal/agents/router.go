package agents

import (
	"context"
	"log"
	"strings"

	"github.com/partdesk/service/internal/llm"
	"github.com/partdesk/service/internal/models"
)

// =============================================================================
// 意图路由器
// =============================================================================

// routerHistoryWindow 路由器时长预规则检查的历史轮次窗口
const routerHistoryWindow = 3

// durationKeywords 安装时长/耗时类关键词
var durationKeywords = []string{
	"how long", "how much time", "time estimate", "duration", "take to install",
}

// installKeywords 安装操作类关键词
var installKeywords = []string{
	"install", "installation", "replace", "how do i",
}

const routerSystemPrompt = `You are a routing agent for an appliance-parts chat support.
Your job is to classify user queries into ONE of these categories:

1. PRODUCT_SEARCH - User wants to find parts or browse products
   Examples: "show me ice makers", "what dishwasher parts do you have"

2. COMPATIBILITY_CHECK - User wants to know if a part works with their model
   Examples: "is this part compatible with my model X", "will part Y fit my dishwasher Z"

3. INSTALLATION_HELP - User needs help installing a part OR asking about installation time/difficulty
   Examples:
   - "how do I install part X"
   - "installation instructions for Y"
   - "how long does installation take" (if context suggests a specific part)
   - "is this part difficult to install"
   - "what tools do I need"

4. TROUBLESHOOTING - User has a broken appliance and needs help diagnosing
   Examples: "my ice maker isn't working", "dishwasher won't drain", "fridge is too warm"

5. ORDER_SUPPORT - User has questions about orders, shipping, returns
   Examples: "where is my order", "how do I return this", "shipping information"

6. OUT_OF_SCOPE - Question is not related to refrigerator/dishwasher parts
   Examples: "what's the weather", "tell me a joke", "help with my oven"

Respond with ONLY the category name (e.g., "PRODUCT_SEARCH"). No explanation needed.`

// Router 意图路由器
// 先执行确定性预规则，再回退到补全服务六分类；意图解析是全函数，
// 任何无法识别的分类输出都强制归为PRODUCT_SEARCH
type Router struct {
	client llm.Client
}

// NewRouter 创建意图路由器
func NewRouter(client llm.Client) *Router {
	return &Router{client: client}
}

// Route 将用户消息分类为唯一意图
func (r *Router) Route(ctx context.Context, message string, history []models.Turn) models.Intent {
	queryLower := strings.ToLower(message)

	// 预规则1: 时长类提问 + 配件上下文（消息内或最近3轮历史）
	// 无配件上下文的裸时长提问有歧义，交由补全服务判定
	if containsAny(queryLower, durationKeywords) {
		hasPartNumber := partPattern.MatchString(message)
		hasContext := false
		if !hasPartNumber {
			recent := history
			if len(recent) > routerHistoryWindow {
				recent = recent[len(recent)-routerHistoryWindow:]
			}
			for _, turn := range recent {
				if partPattern.MatchString(turn.Content) {
					hasContext = true
					log.Printf("[路由] 时长提问在历史中发现配件上下文")
					break
				}
			}
		}
		if hasPartNumber || hasContext {
			log.Printf("[路由] 路由结果: INSTALLATION_HELP (带上下文的时长提问)")
			return models.IntentInstallationHelp
		}
	}

	// 预规则2: 显式安装提问 + 消息内配件号
	if containsAny(queryLower, installKeywords) && partPattern.MatchString(message) {
		log.Printf("[路由] 路由结果: INSTALLATION_HELP (显式安装提问)")
		return models.IntentInstallationHelp
	}

	// 歧义场景交由补全服务分类
	resp, err := r.client.Complete(ctx, &llm.Request{
		SystemPrompt: routerSystemPrompt,
		Prompt:       message,
		Temperature:  0.3, // 低温度保证路由稳定
	})
	if err != nil {
		log.Printf("[路由] 补全服务分类失败, 回退到PRODUCT_SEARCH: %v", err)
		return models.IntentProductSearch
	}

	intent, ok := models.ParseIntent(resp.Content)
	if !ok {
		log.Printf("[路由] 分类输出无法识别(%q), 回退到PRODUCT_SEARCH", strings.TrimSpace(resp.Content))
		return models.IntentProductSearch
	}

	log.Printf("[路由] 路由结果: %s", intent)
	return intent
}

// containsAny 判断文本是否包含任一关键词
func containsAny(text string, keywords []string) bool {
	for _, keyword := range keywords {
		if strings.Contains(text, keyword) {
			return true
		}
	}
	return false
}

package agents

import (
	"context"
	"log"
	"regexp"
	"strings"

	"github.com/partdesk/service/internal/llm"
	"github.com/partdesk/service/internal/models"
)

// =============================================================================
// 实体提取器
// =============================================================================

// historyWindow 历史提取扫描的轮次窗口
const historyWindow = 4

var (
	// 配件号模式：两个字母+连续数字，如 PS11752778
	partPattern = regexp.MustCompile(`(?i)\b[A-Z]{2}\d+\b`)
	// 配件号完全匹配，用于排除判定
	partPatternExact = regexp.MustCompile(`(?i)^[A-Z]{2}\d+$`)
	// 型号模式：2-4个字母+5个以上字母数字，如 WDT780SAEM1
	modelPattern = regexp.MustCompile(`(?i)\b[A-Z]{2,4}[A-Z0-9]{5,}\b`)
	// 型号候选必须含数字，排除普通英文单词
	digitPattern = regexp.MustCompile(`\d`)
)

// Extractor 实体提取器
// 先执行确定性模式匹配，不足时回退到补全服务；提取永不失败，未命中即留空
type Extractor struct {
	client llm.Client
}

// NewExtractor 创建实体提取器，client可为nil（仅模式匹配）
func NewExtractor(client llm.Client) *Extractor {
	return &Extractor{client: client}
}

// Extract 从单条消息中提取实体
// 补全服务回退只做补充，绝不覆盖模式匹配结果
func (e *Extractor) Extract(ctx context.Context, text string) models.ExtractedEntities {
	entities := extractByPatterns(text)

	if entities.PartNumber != "" && entities.ModelNumber != "" {
		return entities
	}
	if e.client == nil {
		return entities
	}

	fallback := e.extractByLLM(ctx, text)
	return mergeEntities(entities, fallback)
}

// ExtractFromHistory 从历史轮次中提取实体
// 按时间顺序扫描最近historyWindow条轮次，每个字段首次命中即生效（靠前的轮次优先）
// 出于成本考虑不使用补全服务回退
func (e *Extractor) ExtractFromHistory(turns []models.Turn) models.ExtractedEntities {
	var entities models.ExtractedEntities

	if len(turns) > historyWindow {
		turns = turns[len(turns)-historyWindow:]
	}
	for _, turn := range turns {
		entities = mergeEntities(entities, extractByPatterns(turn.Content))
	}

	if entities.PartNumber != "" || entities.ModelNumber != "" {
		log.Printf("[实体提取] 历史提取结果: part=%s, model=%s", entities.PartNumber, entities.ModelNumber)
	}
	return entities
}

// extractByPatterns 确定性模式匹配阶段
func extractByPatterns(text string) models.ExtractedEntities {
	var entities models.ExtractedEntities

	if match := partPattern.FindString(text); match != "" {
		entities.PartNumber = strings.ToUpper(match)
	}

	// 型号候选需排除同时满足配件号模式的匹配，防止配件号被误判为型号；
	// 纯字母候选是普通英文单词，同样排除
	for _, match := range modelPattern.FindAllString(text, -1) {
		if partPatternExact.MatchString(match) || !digitPattern.MatchString(match) {
			continue
		}
		entities.ModelNumber = strings.ToUpper(match)
		break
	}

	return entities
}

// extractByLLM 补全服务回退阶段，严格按行前缀解析
func (e *Extractor) extractByLLM(ctx context.Context, text string) models.ExtractedEntities {
	systemPrompt := `Extract the part number and model number from the user's query.

Part numbers typically look like: PS11752778, PS11739232, etc.
Model numbers typically look like: WDT780SAEM1, WRF555SDFZ, KDFE104HPS, etc.

Respond in this EXACT format:
PART_NUMBER: <part_number or NONE>
MODEL_NUMBER: <model_number or NONE>

Examples:
User: "Is part PS11752778 compatible with WDT780SAEM1?"
Response:
PART_NUMBER: PS11752778
MODEL_NUMBER: WDT780SAEM1

User: "Will this work with my dishwasher model KDFE104HPS?"
Response:
PART_NUMBER: NONE
MODEL_NUMBER: KDFE104HPS`

	resp, err := e.client.Complete(ctx, &llm.Request{
		SystemPrompt: systemPrompt,
		Prompt:       text,
		Temperature:  0.3,
	})
	if err != nil {
		log.Printf("[实体提取] 补全服务回退失败, 保留模式匹配结果: %v", err)
		return models.ExtractedEntities{}
	}

	var entities models.ExtractedEntities
	for _, line := range strings.Split(strings.TrimSpace(resp.Content), "\n") {
		line = strings.TrimSpace(line)
		switch {
		case strings.HasPrefix(line, "PART_NUMBER:"):
			value := strings.TrimSpace(strings.TrimPrefix(line, "PART_NUMBER:"))
			if value != "" && value != "NONE" {
				entities.PartNumber = strings.ToUpper(value)
			}
		case strings.HasPrefix(line, "MODEL_NUMBER:"):
			value := strings.TrimSpace(strings.TrimPrefix(line, "MODEL_NUMBER:"))
			// 回退值执行与模式阶段相同的排除判定，配件号形状或纯字母的值不得进入型号字段
			if value != "" && value != "NONE" &&
				!partPatternExact.MatchString(value) && digitPattern.MatchString(value) {
				entities.ModelNumber = strings.ToUpper(value)
			}
		}
	}
	return entities
}

// mergeEntities 合并提取结果：只填充未设置的字段，先到先得
func mergeEntities(base, extra models.ExtractedEntities) models.ExtractedEntities {
	if base.PartNumber == "" {
		base.PartNumber = extra.PartNumber
	}
	if base.ModelNumber == "" {
		base.ModelNumber = extra.ModelNumber
	}
	if base.Category == "" {
		base.Category = extra.Category
	}
	seen := make(map[string]bool, len(base.Keywords))
	for _, keyword := range base.Keywords {
		seen[keyword] = true
	}
	for _, keyword := range extra.Keywords {
		if !seen[keyword] {
			seen[keyword] = true
			base.Keywords = append(base.Keywords, keyword)
		}
	}
	return base
}

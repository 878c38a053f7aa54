package agents

import (
	"log"
	"strings"

	"github.com/partdesk/service/internal/models"
)

// =============================================================================
// 上下文融合器
// =============================================================================

// dishwasherTerms 洗碗机类别关键词
var dishwasherTerms = []string{"dishwasher", "dish washer", "dish-washer"}

// refrigeratorTerms 冰箱类别关键词
var refrigeratorTerms = []string{"refrigerator", "fridge", "freezer", "ice maker"}

// domainKeywords 配件领域固定词表
var domainKeywords = []string{
	"ice maker", "water inlet valve", "spray arm", "pump", "motor",
	"filter", "gasket", "seal", "door", "handle",
	"shelf", "drawer", "light", "thermostat", "compressor",
}

// symptomKeywords 常见故障症状词表
var symptomKeywords = []string{
	"not working", "leaking", "noisy", "won't drain", "not cooling",
	"not heating", "not spinning", "making noise", "not starting",
}

// Fuser 上下文融合器
// 从历史轮次重建会话的工作实体，输出仅供处理器补缺，绝不覆盖当前消息中的实体
type Fuser struct{}

// NewFuser 创建上下文融合器
func NewFuser() *Fuser {
	return &Fuser{}
}

// Fuse 融合当前消息与历史轮次
// 类别先看当前消息，再看历史；配件号按出现顺序记录
func (f *Fuser) Fuse(currentText string, history []models.Turn) models.FusedContext {
	var fused models.FusedContext

	fused.Category = detectCategory(currentText)

	if len(history) > historyWindow {
		history = history[len(history)-historyWindow:]
	}

	seenParts := make(map[string]bool)
	seenKeywords := make(map[string]bool)
	seenSymptoms := make(map[string]bool)

	for _, turn := range history {
		content := turn.Content
		lower := strings.ToLower(content)

		if fused.Category == "" {
			fused.Category = detectCategory(content)
		}

		entities := extractByPatterns(content)
		if entities.PartNumber != "" && !seenParts[entities.PartNumber] {
			seenParts[entities.PartNumber] = true
			fused.PartMentions = append(fused.PartMentions, entities.PartNumber)
		}
		if fused.PartNumber == "" {
			fused.PartNumber = entities.PartNumber
		}
		if fused.ModelNumber == "" {
			fused.ModelNumber = entities.ModelNumber
		}

		for _, keyword := range domainKeywords {
			if strings.Contains(lower, keyword) && !seenKeywords[keyword] {
				seenKeywords[keyword] = true
				fused.Keywords = append(fused.Keywords, keyword)
			}
		}
		for _, symptom := range symptomKeywords {
			if strings.Contains(lower, symptom) && !seenSymptoms[symptom] {
				seenSymptoms[symptom] = true
				fused.Symptoms = append(fused.Symptoms, symptom)
			}
		}
	}

	// 当前消息中的领域关键词和症状同样参与融合
	currentLower := strings.ToLower(currentText)
	for _, keyword := range domainKeywords {
		if strings.Contains(currentLower, keyword) && !seenKeywords[keyword] {
			seenKeywords[keyword] = true
			fused.Keywords = append(fused.Keywords, keyword)
		}
	}
	for _, symptom := range symptomKeywords {
		if strings.Contains(currentLower, symptom) && !seenSymptoms[symptom] {
			seenSymptoms[symptom] = true
			fused.Symptoms = append(fused.Symptoms, symptom)
		}
	}

	if fused.Category != "" || len(fused.PartMentions) > 0 || len(fused.Keywords) > 0 {
		log.Printf("[上下文融合] 类别=%s, 配件=%v, 关键词=%v", fused.Category, fused.PartMentions, fused.Keywords)
	}
	return fused
}

// detectCategory 按规范家电词的子串出现判定类别
func detectCategory(text string) models.Category {
	lower := strings.ToLower(text)
	for _, term := range dishwasherTerms {
		if strings.Contains(lower, term) {
			return models.CategoryDishwasher
		}
	}
	for _, term := range refrigeratorTerms {
		if strings.Contains(lower, term) {
			return models.CategoryRefrigerator
		}
	}
	return ""
}

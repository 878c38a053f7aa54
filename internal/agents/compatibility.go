package agents

import (
	"context"
	"fmt"
	"log"
	"strings"

	"github.com/partdesk/service/internal/llm"
	"github.com/partdesk/service/internal/models"
	"github.com/partdesk/service/internal/store"
)

// =============================================================================
// 兼容性检查处理器
// =============================================================================

// maxCompatibleSuggestions 不兼容时展示的备选兼容型号上限
const maxCompatibleSuggestions = 5

// CompatibilityAgent 兼容性检查处理器
// 必需实体：配件号+型号；解析顺序：显式参数 → 当前消息提取 → 历史提取
type CompatibilityAgent struct {
	catalog   store.CatalogStore
	extractor *Extractor
}

// NewCompatibilityAgent 创建兼容性检查处理器
func NewCompatibilityAgent(client llm.Client, catalog store.CatalogStore) *CompatibilityAgent {
	return &CompatibilityAgent{
		catalog:   catalog,
		extractor: NewExtractor(client),
	}
}

// CompatibilityResult 兼容性判定结果
type CompatibilityResult struct {
	Compatible       *bool
	Part             *models.Part
	CompatibleModels []string
	ErrorCode        models.ErrorCode
}

// CheckCompatibility 判定配件与型号是否兼容
// 兼容性由型号在配件兼容列表中的成员关系决定，比较大小写不敏感
func (a *CompatibilityAgent) CheckCompatibility(ctx context.Context, partNumber, modelNumber string) (*CompatibilityResult, error) {
	part, err := a.catalog.FindPartByNumber(ctx, store.NormalizeID(partNumber))
	if err != nil {
		return nil, fmt.Errorf("查询配件失败: %w", err)
	}
	if part == nil {
		return &CompatibilityResult{ErrorCode: models.ErrPartNotFound}, nil
	}

	target := strings.ToUpper(modelNumber)
	compatible := false
	for _, m := range part.CompatibleModels {
		if strings.ToUpper(m) == target {
			compatible = true
			break
		}
	}

	suggestions := part.CompatibleModels
	if len(suggestions) > maxCompatibleSuggestions {
		suggestions = suggestions[:maxCompatibleSuggestions]
	}

	return &CompatibilityResult{
		Compatible:       &compatible,
		Part:             part,
		CompatibleModels: suggestions,
	}, nil
}

// HandleQuery 兼容性提问主处理入口
func (a *CompatibilityAgent) HandleQuery(ctx context.Context, query, partNumber, modelNumber string, history []models.Turn) (*models.HandlerResult, error) {
	// 当前消息提取，只补充缺失字段
	if partNumber == "" || modelNumber == "" {
		extracted := a.extractor.Extract(ctx, query)
		if partNumber == "" {
			partNumber = extracted.PartNumber
		}
		if modelNumber == "" {
			modelNumber = extracted.ModelNumber
		}
	}

	// 仍有缺失时回退到历史提取
	if (partNumber == "" || modelNumber == "") && len(history) > 0 {
		fromHistory := a.extractor.ExtractFromHistory(history)
		if partNumber == "" {
			partNumber = fromHistory.PartNumber
		}
		if modelNumber == "" {
			modelNumber = fromHistory.ModelNumber
		}
		if fromHistory.PartNumber != "" || fromHistory.ModelNumber != "" {
			log.Printf("[兼容性] 使用历史上下文 - part=%s, model=%s", partNumber, modelNumber)
		}
	}

	// 缺失实体按缺什么问什么的原则分别报告
	if partNumber == "" && modelNumber == "" {
		return &models.HandlerResult{
			Response: "I need both a **part number** (like PS11752778) and a **model number** (like WDT780SAEM1) to check compatibility.\n\n" +
				"**Example:** 'Is part PS11752778 compatible with model WDT780SAEM1?'\n\n" +
				"Your model number is usually found on a sticker:\n" +
				"- Inside the refrigerator/dishwasher door\n" +
				"- On the back of the appliance\n" +
				"- On the side wall inside the unit",
			Agent:     "compatibility",
			ErrorCode: models.ErrMissingBoth,
		}, nil
	}

	if partNumber == "" {
		return &models.HandlerResult{
			Response: fmt.Sprintf("I found your model number **%s**, but I need a **part number** too.\n\n", modelNumber) +
				fmt.Sprintf("**Example:** 'Is PS11752778 compatible with %s?'\n\n", modelNumber) +
				fmt.Sprintf("Or you can search for compatible parts: 'Show me parts for %s'", modelNumber),
			Agent:       "compatibility",
			ModelNumber: modelNumber,
			ErrorCode:   models.ErrMissingPartNumber,
		}, nil
	}

	if modelNumber == "" {
		return &models.HandlerResult{
			Response: fmt.Sprintf("I found part number **%s**, but I need your **model number** too.\n\n", partNumber) +
				fmt.Sprintf("**Example:** 'Is %s compatible with WDT780SAEM1?'\n\n", partNumber) +
				"Your model number is on a sticker:\n" +
				"- Inside the door\n" +
				"- On the back panel\n" +
				"- Inside the unit",
			Agent:      "compatibility",
			PartNumber: partNumber,
			ErrorCode:  models.ErrMissingModelNumber,
		}, nil
	}

	result, err := a.CheckCompatibility(ctx, partNumber, modelNumber)
	if err != nil {
		return nil, err
	}

	if result.ErrorCode == models.ErrPartNotFound {
		return &models.HandlerResult{
			Response: fmt.Sprintf("I couldn't find part number **%s** in our catalog.\n\n", partNumber) +
				"**Please check:**\n" +
				"1. Part number is correct (format: PS12345678)\n" +
				"2. Try searching: 'Show me ice makers' or 'Show me dishwasher parts'\n\n" +
				"If you're sure it's correct, this part may not be in our current catalog.",
			Agent:       "compatibility",
			PartNumber:  partNumber,
			ModelNumber: modelNumber,
			ErrorCode:   models.ErrPartNotFound,
		}, nil
	}

	return &models.HandlerResult{
		Response:         a.buildResponse(result, partNumber, modelNumber),
		Agent:            "compatibility",
		Compatible:       result.Compatible,
		CompatibleModels: result.CompatibleModels,
		PartNumber:       partNumber,
		ModelNumber:      modelNumber,
		Parts:            []*models.Part{result.Part},
	}, nil
}

// buildResponse 构建兼容性判定的确定性文案
func (a *CompatibilityAgent) buildResponse(result *CompatibilityResult, partNumber, modelNumber string) string {
	part := result.Part

	if *result.Compatible {
		var b strings.Builder
		fmt.Fprintf(&b, "✅ **Great news!** The %s (part #%s) is compatible with model %s.\n\n", part.Name, partNumber, modelNumber)
		fmt.Fprintf(&b, "💰 **Price:** $%.2f\n", part.Price)
		fmt.Fprintf(&b, "🔧 **Installation:** %s difficulty\n\n", orUnknown(part.InstallationDifficulty))
		b.WriteString("Would you like installation instructions for this part?")
		return b.String()
	}

	var b strings.Builder
	fmt.Fprintf(&b, "❌ The %s (part #%s) is not listed as compatible with model %s.\n\n", part.Name, partNumber, modelNumber)
	if len(result.CompatibleModels) > 0 {
		b.WriteString("**This part is compatible with models like:**\n")
		shown := result.CompatibleModels
		if len(shown) > 3 {
			shown = shown[:3]
		}
		for _, m := range shown {
			fmt.Fprintf(&b, "- %s\n", m)
		}
		b.WriteString("\n")
	}
	b.WriteString("**What to do next:**\n")
	b.WriteString("1. Double-check your model number (usually on a sticker inside the door or on the back)\n")
	b.WriteString("2. Try searching: 'Show me parts for [your model]'\n")
	b.WriteString("3. Contact support for help finding the right part\n\n")
	fmt.Fprintf(&b, "💰 Part price: $%.2f", part.Price)
	return b.String()
}

// orUnknown 空值显示为Unknown
func orUnknown(s string) string {
	if s == "" {
		return "Unknown"
	}
	return s
}

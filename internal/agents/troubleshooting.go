package agents

import (
	"context"
	"fmt"
	"log"
	"strings"

	"github.com/partdesk/service/internal/llm"
	"github.com/partdesk/service/internal/models"
	"github.com/partdesk/service/internal/store"
	"github.com/partdesk/service/pkg/vectorstore"
)

// =============================================================================
// 故障排查处理器
// =============================================================================

// maxDiagnosisParts 诊断结果附带的候选配件数上限
const maxDiagnosisParts = 3

// TroubleshootingAgent 故障排查处理器
// 按症状描述检索可能涉及的配件并生成诊断建议；排查永不报告错误码，
// 信息不足时以澄清提问收尾
type TroubleshootingAgent struct {
	client   llm.Client
	catalog  store.CatalogStore
	searcher vectorstore.Searcher
	fuser    *Fuser
}

// NewTroubleshootingAgent 创建故障排查处理器
func NewTroubleshootingAgent(client llm.Client, catalog store.CatalogStore, searcher vectorstore.Searcher) *TroubleshootingAgent {
	return &TroubleshootingAgent{
		client:   client,
		catalog:  catalog,
		searcher: searcher,
		fuser:    NewFuser(),
	}
}

// HandleQuery 故障排查主处理入口
func (a *TroubleshootingAgent) HandleQuery(ctx context.Context, query string, history []models.Turn) (*models.HandlerResult, error) {
	fused := a.fuser.Fuse(query, history)

	searchQuery := query
	if len(fused.Symptoms) > 0 {
		searchQuery = fmt.Sprintf("%s %s", query, strings.Join(fused.Symptoms, " "))
	}

	parts := a.findCandidateParts(ctx, searchQuery, fused.Category)

	if len(parts) == 0 {
		return &models.HandlerResult{
			Response: "I'd like to help you troubleshoot! To narrow down the problem, could you tell me:\n\n" +
				"1. **Which appliance** — refrigerator or dishwasher?\n" +
				"2. **What's the symptom** — not cooling, leaking, not draining, making noise?\n" +
				"3. **When did it start** — suddenly or gradually?\n\n" +
				"**Example:** 'My Whirlpool fridge ice maker stopped making ice'",
			Agent: "troubleshooting",
		}, nil
	}

	result := &models.HandlerResult{
		Agent:          "troubleshooting",
		SuggestedParts: parts,
	}

	narrative, err := a.generateDiagnosis(ctx, query, fused, parts)
	if err != nil {
		log.Printf("[故障排查] 诊断文案生成失败, 使用模板兜底: %v", err)
		result.Response = a.fallbackDiagnosis(query, parts)
		return result, nil
	}
	result.Response = narrative
	return result, nil
}

// findCandidateParts 按症状检索可能故障的配件，失败视同无匹配
func (a *TroubleshootingAgent) findCandidateParts(ctx context.Context, query string, category models.Category) []*models.Part {
	if a.searcher == nil {
		return nil
	}
	hits, err := a.searcher.Search(ctx, query, maxDiagnosisParts+2, category)
	if err != nil {
		log.Printf("[故障排查] 相似度检索失败, 视同无匹配: %v", err)
		return nil
	}
	return resolveHits(ctx, a.catalog, hits, maxDiagnosisParts, "")
}

// generateDiagnosis 调用补全服务生成诊断建议
func (a *TroubleshootingAgent) generateDiagnosis(ctx context.Context, query string, fused models.FusedContext, parts []*models.Part) (string, error) {
	if a.client == nil {
		return "", fmt.Errorf("补全服务未配置")
	}

	var listing strings.Builder
	for _, part := range parts {
		fmt.Fprintf(&listing, "- %s (Part #%s): $%.2f", part.Name, part.PartNumber, part.Price)
		if len(part.CommonSymptoms) > 0 {
			fmt.Fprintf(&listing, " — common symptoms: %s", strings.Join(part.CommonSymptoms, ", "))
		}
		listing.WriteString("\n")
	}

	background := ""
	if fused.Category != "" {
		background = fmt.Sprintf("\nAppliance type: %s", fused.Category)
	}
	if len(fused.Symptoms) > 0 {
		background += fmt.Sprintf("\nReported symptoms: %s", strings.Join(fused.Symptoms, ", "))
	}

	systemPrompt := fmt.Sprintf(`You are an appliance repair expert helping diagnose refrigerator and dishwasher problems.%s

Parts that might be involved (from our catalog):
%s
Provide a diagnosis with this structure:

## Likely Causes
List the 2-3 most likely causes, ordered by probability.

## Quick Checks
Simple things the user can check themselves before buying parts.

## Recommended Parts
If a part replacement is likely needed, reference ONLY the parts listed above with their part numbers and prices.

RULES:
- Never invent parts or part numbers not in the list above
- Always suggest simple checks before part replacement
- Include a safety note if the repair involves electrical components`, background, listing.String())

	resp, err := a.client.Complete(ctx, &llm.Request{
		SystemPrompt: systemPrompt,
		Prompt:       query,
		Temperature:  0.7,
	})
	if err != nil {
		return "", err
	}
	return resp.Content, nil
}

// fallbackDiagnosis 确定性诊断模板
func (a *TroubleshootingAgent) fallbackDiagnosis(query string, parts []*models.Part) string {
	var b strings.Builder
	b.WriteString("Based on your description, here are parts that are commonly involved in this kind of problem:\n")
	for i, part := range parts {
		fmt.Fprintf(&b, "\n%d. **%s** (Part #%s)\n", i+1, part.Name, part.PartNumber)
		fmt.Fprintf(&b, "   - $%.2f | %s difficulty\n", part.Price, orUnknown(part.InstallationDifficulty))
		if len(part.CommonSymptoms) > 0 {
			fmt.Fprintf(&b, "   - Common symptoms: %s\n", strings.Join(part.CommonSymptoms, ", "))
		}
	}
	b.WriteString("\n**Before replacing parts:**\n")
	b.WriteString("1. Check that the appliance is plugged in and the breaker hasn't tripped\n")
	b.WriteString("2. Look for visible damage, clogs, or loose connections\n")
	b.WriteString("3. Consult your owner's manual for model-specific reset procedures\n\n")
	b.WriteString("⚠️ **Safety:** Always disconnect power before inspecting internal components.")
	return b.String()
}

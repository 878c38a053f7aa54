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
// 安装指导处理器
// =============================================================================

// maxInstallSuggestions 无配件号时建议的候选配件数上限
const maxInstallSuggestions = 3

// timeEstimates 安装难度到时长区间的静态映射
var timeEstimates = map[string]string{
	"Easy":      "10-20 minutes",
	"Moderate":  "30-60 minutes",
	"Difficult": "1-2 hours",
}

// defaultTimeEstimate 未知难度的默认时长
const defaultTimeEstimate = "30-45 minutes"

// EstimateTime 按安装难度给出时长区间
func EstimateTime(difficulty string) string {
	if estimate, ok := timeEstimates[difficulty]; ok {
		return estimate
	}
	return defaultTimeEstimate
}

// InstallationAgent 安装指导处理器
// 必需实体：配件号；缺失时尝试相似度检索给出候选，而非硬性失败
type InstallationAgent struct {
	client    llm.Client
	catalog   store.CatalogStore
	searcher  vectorstore.Searcher
	extractor *Extractor
}

// NewInstallationAgent 创建安装指导处理器
func NewInstallationAgent(client llm.Client, catalog store.CatalogStore, searcher vectorstore.Searcher) *InstallationAgent {
	return &InstallationAgent{
		client:    client,
		catalog:   catalog,
		searcher:  searcher,
		extractor: NewExtractor(client),
	}
}

// HandleQuery 安装提问主处理入口
func (a *InstallationAgent) HandleQuery(ctx context.Context, query, partNumber string, history []models.Turn) (*models.HandlerResult, error) {
	if partNumber == "" {
		partNumber = a.extractor.Extract(ctx, query).PartNumber
	}
	if partNumber == "" && len(history) > 0 {
		partNumber = a.extractor.ExtractFromHistory(history).PartNumber
	}

	// 时长类提问走独立子流程
	if containsAny(strings.ToLower(query), durationKeywords) {
		return a.handleTimeEstimate(ctx, partNumber)
	}

	// 无配件号：相似度检索软恢复
	if partNumber == "" {
		return a.handleMissingPart(ctx, query)
	}

	part, err := a.catalog.FindPartByNumber(ctx, store.NormalizeID(partNumber))
	if err != nil {
		return nil, fmt.Errorf("查询配件失败: %w", err)
	}

	if part == nil {
		return a.handlePartNotFound(ctx, query, partNumber)
	}

	// 无安装步骤是独立条件，降级为通用指导而非报配件未找到
	if len(part.InstallationSteps) == 0 {
		return &models.HandlerResult{
			Response: fmt.Sprintf("I found **%s** (Part #%s), but detailed installation instructions are not currently available for this part.\n\n", part.Name, partNumber) +
				"**What this means:**\n" +
				"- This is typically a simple replacement part that doesn't require complex installation\n" +
				"- You can usually install it by removing the old part and snapping in the new one\n\n" +
				"**Need more help?**\n" +
				"- Contact customer service\n" +
				fmt.Sprintf("- Check YouTube for '%s installation'\n", part.Name) +
				fmt.Sprintf("- Ask: 'What tools do I need for %s?'\n\n", partNumber) +
				fmt.Sprintf("💰 **Price:** $%.2f\n", part.Price) +
				fmt.Sprintf("🔧 **Difficulty:** %s", orUnknown(part.InstallationDifficulty)),
			Agent:      "installation",
			Parts:      []*models.Part{part},
			PartNumber: partNumber,
			Difficulty: orUnknown(part.InstallationDifficulty),
			ErrorCode:  models.ErrNoInstallationSteps,
		}, nil
	}

	return a.buildGuide(ctx, query, part)
}

// handleTimeEstimate 时长类提问子流程
func (a *InstallationAgent) handleTimeEstimate(ctx context.Context, partNumber string) (*models.HandlerResult, error) {
	if partNumber == "" {
		return &models.HandlerResult{
			Response: "I'd be happy to give you a time estimate! Which part are you asking about?\n\n" +
				"**General time estimates by difficulty:**\n" +
				"- 🟢 **Easy:** 10-20 minutes (spray arms, baskets, filters, handles)\n" +
				"- 🟡 **Moderate:** 30-60 minutes (valves, motors, door parts, thermostats)\n" +
				"- 🔴 **Difficult:** 1-2 hours (pumps, control boards, heating elements)\n\n" +
				"💡 Tell me the part number or name, and I'll give you a specific estimate!",
			Agent:     "installation",
			ErrorCode: models.ErrNoPartNumber,
		}, nil
	}

	part, err := a.catalog.FindPartByNumber(ctx, store.NormalizeID(partNumber))
	if err != nil {
		return nil, fmt.Errorf("查询配件失败: %w", err)
	}
	if part == nil {
		return &models.HandlerResult{
			Response: fmt.Sprintf("I couldn't find part number **%s** to provide a time estimate.\n\n", partNumber) +
				"Could you double-check the part number?",
			Agent:      "installation",
			PartNumber: partNumber,
			ErrorCode:  models.ErrPartNotFound,
		}, nil
	}

	difficulty := orUnknown(part.InstallationDifficulty)
	estimate := EstimateTime(part.InstallationDifficulty)

	var b strings.Builder
	fmt.Fprintf(&b, "**Installation Time for %s**\n\n", part.Name)
	fmt.Fprintf(&b, "⏱️ **Estimated Time:** %s\n", estimate)
	fmt.Fprintf(&b, "🔧 **Difficulty:** %s\n", difficulty)
	fmt.Fprintf(&b, "📋 **Steps:** %d steps to complete\n\n", len(part.InstallationSteps))

	switch part.InstallationDifficulty {
	case "Easy":
		b.WriteString("This is a straightforward repair that most people can complete quickly. You'll mainly be removing the old part and installing the new one.")
	case "Moderate":
		b.WriteString("This repair requires some disassembly and careful reconnection of components. Take your time to ensure everything is properly connected.")
	case "Difficult":
		b.WriteString("This is a more complex repair that requires careful attention to detail. Consider taking photos of wire connections before disconnecting.")
	}
	fmt.Fprintf(&b, "\n\n💡 **Want detailed instructions?** Ask: 'How do I install %s?'", part.PartNumber)

	return &models.HandlerResult{
		Response:      b.String(),
		Agent:         "installation",
		Parts:         []*models.Part{part},
		PartNumber:    part.PartNumber,
		Difficulty:    difficulty,
		EstimatedTime: estimate,
	}, nil
}

// handleMissingPart 无配件号时的软恢复：按提问内容检索候选配件
func (a *InstallationAgent) handleMissingPart(ctx context.Context, query string) (*models.HandlerResult, error) {
	suggested := a.findRelevantParts(ctx, query, detectCategory(query), maxInstallSuggestions)

	if len(suggested) > 0 {
		var b strings.Builder
		b.WriteString("I'd be happy to help with installation! I need the specific **part number** to provide detailed instructions.\n\n")
		b.WriteString("**Here are some parts that might match what you're looking for:**\n")
		for i, part := range suggested {
			fmt.Fprintf(&b, "\n%d. **%s** (Part #%s)\n", i+1, part.Name, part.PartNumber)
			fmt.Fprintf(&b, "   - $%.2f | %s difficulty\n", part.Price, orUnknown(part.InstallationDifficulty))
		}
		b.WriteString("\n💡 **To get installation instructions, ask:** 'How do I install PS[part number]?'")

		return &models.HandlerResult{
			Response:       b.String(),
			Agent:          "installation",
			SuggestedParts: suggested,
			ErrorCode:      models.ErrNoPartNumber,
		}, nil
	}

	return &models.HandlerResult{
		Response: "I'd be happy to help with installation! Could you provide the **part number**? It typically looks like **PS** followed by 8 digits.\n\n" +
			"You can find the part number:\n" +
			"- On the part packaging\n" +
			"- In your order confirmation\n" +
			"- By searching for the part name in our catalog\n\n" +
			"Or tell me what part you need (e.g., 'dishwasher spray arm', 'ice maker assembly') and I can help you find it!",
		Agent:     "installation",
		ErrorCode: models.ErrNoPartNumber,
	}, nil
}

// handlePartNotFound 配件号不在目录中：尝试给出相近候选
func (a *InstallationAgent) handlePartNotFound(ctx context.Context, query, partNumber string) (*models.HandlerResult, error) {
	category := detectCategory(query)

	searchQuery := strings.TrimSpace(strings.ReplaceAll(query, partNumber, ""))
	if searchQuery == "" {
		searchQuery = fmt.Sprintf("part %s", partNumber)
	}
	if category != "" {
		searchQuery = fmt.Sprintf("%s %s", category, searchQuery)
	}

	similar := a.findRelevantParts(ctx, searchQuery, category, maxInstallSuggestions)

	var b strings.Builder
	fmt.Fprintf(&b, "I couldn't find part number **%s** in our catalog.\n\n", partNumber)
	if len(similar) > 0 {
		b.WriteString("**Did you mean one of these parts?**\n")
		for i, part := range similar {
			fmt.Fprintf(&b, "\n%d. **%s** (Part #%s)\n", i+1, part.Name, part.PartNumber)
			fmt.Fprintf(&b, "   - $%.2f | %s difficulty\n", part.Price, orUnknown(part.InstallationDifficulty))
		}
		b.WriteString("\n💡 Ask: 'How do I install PS[correct part number]?'")
	} else {
		b.WriteString("**What you can do:**\n")
		b.WriteString("- Double-check the part number\n")
		b.WriteString("- Search by part name or symptom\n")
		b.WriteString("- Browse available parts by category\n")
	}

	return &models.HandlerResult{
		Response:       b.String(),
		Agent:          "installation",
		PartNumber:     partNumber,
		SuggestedParts: similar,
		ErrorCode:      models.ErrPartNotFound,
	}, nil
}

// buildGuide 生成完整安装指导，补全服务失败时用确定性模板兜底
func (a *InstallationAgent) buildGuide(ctx context.Context, query string, part *models.Part) (*models.HandlerResult, error) {
	difficulty := orUnknown(part.InstallationDifficulty)
	estimate := EstimateTime(part.InstallationDifficulty)

	result := &models.HandlerResult{
		Agent:         "installation",
		Parts:         []*models.Part{part},
		Steps:         part.InstallationSteps,
		Difficulty:    difficulty,
		EstimatedTime: estimate,
		PartNumber:    part.PartNumber,
	}

	narrative, err := a.generateNarrative(ctx, query, part, difficulty, estimate)
	if err != nil {
		log.Printf("[安装] 补全服务不可用, 使用模板兜底: %v", err)
		result.Response = a.fallbackGuide(part, difficulty)
		return result, nil
	}

	result.Response = narrative
	return result, nil
}

// generateNarrative 调用补全服务生成安装指导文案
func (a *InstallationAgent) generateNarrative(ctx context.Context, query string, part *models.Part, difficulty, estimate string) (string, error) {
	if a.client == nil {
		return "", fmt.Errorf("补全服务未配置")
	}

	var steps strings.Builder
	for i, step := range part.InstallationSteps {
		fmt.Fprintf(&steps, "%d. %s\n", i+1, step)
	}

	systemPrompt := fmt.Sprintf(`You are a helpful appliance-parts installation guide.
The user asked how to install a SPECIFIC part they already have.

Part Information:
- Name: %s
- Part Number: %s
- Category: %s
- Difficulty: %s
- Estimated Time: %s
- Installation Steps:
%s
Provide a complete installation guide with this structure:

## 1. About the Part
Brief 1-2 sentence explanation of what this part does.

## 2. Difficulty & Time Estimate
- **Difficulty:** %s
- **Time:** About %s

## 3. Installation Steps
Provide the numbered steps clearly (use the exact steps above).

## 4. Safety Reminder
Always include a safety note about disconnecting power.

CRITICAL RULES:
- Do NOT suggest alternative parts - the user already has this specific part
- Do NOT ask if they want to see similar parts
- Focus ONLY on installation instructions for this exact part
- Be clear, encouraging, and safety-focused
- Keep response professional and well-organized`,
		part.Name, part.PartNumber, part.Category, difficulty, estimate, steps.String(), difficulty, estimate)

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

// fallbackGuide 确定性安装指导模板
func (a *InstallationAgent) fallbackGuide(part *models.Part, difficulty string) string {
	var b strings.Builder
	fmt.Fprintf(&b, "**Installation Instructions for %s**\n\n", part.Name)
	fmt.Fprintf(&b, "**Part Number:** %s\n", part.PartNumber)
	fmt.Fprintf(&b, "**Difficulty:** %s\n", difficulty)
	fmt.Fprintf(&b, "**Price:** $%.2f\n\n", part.Price)
	b.WriteString("**Steps:**\n")
	for i, step := range part.InstallationSteps {
		fmt.Fprintf(&b, "%d. %s\n", i+1, step)
	}
	b.WriteString("\n⚠️ **Safety First:** Always disconnect power before starting any repair!")
	return b.String()
}

// findRelevantParts 相似度检索并解析为配件记录
// 检索失败视同无匹配，不向上传播
func (a *InstallationAgent) findRelevantParts(ctx context.Context, query string, category models.Category, maxResults int) []*models.Part {
	if a.searcher == nil {
		return nil
	}
	hits, err := a.searcher.Search(ctx, query, maxResults, category)
	if err != nil {
		log.Printf("[安装] 相似度检索失败, 视同无匹配: %v", err)
		return nil
	}
	return resolveHits(ctx, a.catalog, hits, maxResults, "")
}

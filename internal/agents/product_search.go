package agents

import (
	"context"
	"fmt"
	"log"
	"sort"
	"strings"

	"github.com/partdesk/service/internal/llm"
	"github.com/partdesk/service/internal/models"
	"github.com/partdesk/service/internal/store"
	"github.com/partdesk/service/pkg/vectorstore"
)

// =============================================================================
// 商品检索处理器
// =============================================================================

const (
	// maxSearchResults 标准检索返回的配件数上限
	maxSearchResults = 3
	// maxSimilarResults 相似配件推荐数上限
	maxSimilarResults = 5
	// maxCatalogSamples 目录总览采样的子类数上限
	maxCatalogSamples = 5
	// shortQueryWords 触发关键词扩充的查询词数阈值
	shortQueryWords = 3
)

// metaPhrases 目录总览类提问短语
var metaPhrases = []string{
	"what types", "what kind", "show all", "what parts do you have",
	"what do you sell", "what's available", "what is available",
}

// similarPhrases 相似配件推荐类关键词，需配合历史中的配件号才生效
var similarPhrases = []string{
	"similar", "alternative", "other", "different", "like this",
}

// ProductSearchAgent 商品检索处理器
// 三种模式：目录总览、相似配件推荐、标准相似度检索；检索失败一律降级为空结果
type ProductSearchAgent struct {
	client   llm.Client
	catalog  store.CatalogStore
	searcher vectorstore.Searcher
	fuser    *Fuser
}

// NewProductSearchAgent 创建商品检索处理器
func NewProductSearchAgent(client llm.Client, catalog store.CatalogStore, searcher vectorstore.Searcher) *ProductSearchAgent {
	return &ProductSearchAgent{
		client:   client,
		catalog:  catalog,
		searcher: searcher,
		fuser:    NewFuser(),
	}
}

// HandleQuery 商品检索主处理入口
func (a *ProductSearchAgent) HandleQuery(ctx context.Context, query string, history []models.Turn) (*models.HandlerResult, error) {
	queryLower := strings.ToLower(query)
	fused := a.fuser.Fuse(query, history)

	if containsAny(queryLower, metaPhrases) {
		return a.handleCatalogOverview(ctx, fused.Category)
	}

	if containsAny(queryLower, similarPhrases) {
		if result := a.handleSimilarParts(ctx, query, fused); result != nil {
			return result, nil
		}
		// 无参照配件时退化为标准检索
	}

	return a.handleStandardSearch(ctx, query, fused)
}

// handleCatalogOverview 目录总览模式：按子类采样展示库存覆盖面
func (a *ProductSearchAgent) handleCatalogOverview(ctx context.Context, category models.Category) (*models.HandlerResult, error) {
	parts, err := a.catalog.ListParts(ctx, category)
	if err != nil {
		return nil, fmt.Errorf("目录查询失败: %w", err)
	}

	if len(parts) == 0 {
		return &models.HandlerResult{
			Response: "Our catalog is currently empty. Please check back soon, or contact support if you're looking for a specific part.",
			Agent:    "product_search",
		}, nil
	}

	// 每个子类取首个配件作为样本
	bySubcategory := make(map[string]*models.Part)
	var order []string
	for _, part := range parts {
		sub := part.Subcategory
		if sub == "" {
			sub = "Other"
		}
		if _, seen := bySubcategory[sub]; !seen {
			bySubcategory[sub] = part
			order = append(order, sub)
		}
	}
	sort.Strings(order)
	if len(order) > maxCatalogSamples {
		order = order[:maxCatalogSamples]
	}

	samples := make([]*models.Part, 0, len(order))
	for _, sub := range order {
		samples = append(samples, bySubcategory[sub])
	}

	scope := "refrigerator and dishwasher"
	if category != "" {
		scope = strings.ToLower(string(category))
	}

	var b strings.Builder
	fmt.Fprintf(&b, "We carry **%d %s parts** across these categories:\n", len(parts), scope)
	for _, sub := range order {
		part := bySubcategory[sub]
		fmt.Fprintf(&b, "\n**%s**\n", sub)
		fmt.Fprintf(&b, "- e.g. %s (Part #%s) — $%.2f\n", part.Name, part.PartNumber, part.Price)
	}
	b.WriteString("\n💡 **Tip:** Search for a specific part (e.g. 'ice maker for Whirlpool fridge') or give me your model number to find compatible parts!")
	fallback := b.String()

	result := &models.HandlerResult{
		Agent: "product_search",
		Parts: samples,
	}

	narrative, err := a.generateNarrative(ctx, fmt.Sprintf("Overview of our %s parts catalog", scope), samples,
		fmt.Sprintf("The user wants a catalog overview. We carry %d %s parts. Summarize the categories below and invite them to search for something specific.", len(parts), scope))
	if err != nil {
		log.Printf("[商品检索] 总览文案生成失败, 使用模板兜底: %v", err)
		result.Response = fallback
		return result, nil
	}
	result.Response = narrative
	return result, nil
}

// handleSimilarParts 相似配件推荐模式
// 参照配件取融合上下文中最早提及者；无参照时返回nil由调用方退化处理
func (a *ProductSearchAgent) handleSimilarParts(ctx context.Context, query string, fused models.FusedContext) *models.HandlerResult {
	var reference *models.Part
	for _, partNumber := range fused.PartMentions {
		part, err := a.catalog.FindPartByNumber(ctx, store.NormalizeID(partNumber))
		if err != nil {
			log.Printf("[商品检索] 参照配件查询失败 part=%s: %v", partNumber, err)
			continue
		}
		if part != nil {
			reference = part
			break
		}
	}
	if reference == nil {
		return nil
	}

	searchQuery := strings.TrimSpace(fmt.Sprintf("%s %s %s", reference.Name, reference.Category, reference.Subcategory))
	similar := a.search(ctx, searchQuery, maxSimilarResults+1, reference.Category, maxSimilarResults, reference.PartNumber)

	if len(similar) == 0 {
		return &models.HandlerResult{
			Response: fmt.Sprintf("I couldn't find parts similar to **%s** (Part #%s) right now.\n\n", reference.Name, reference.PartNumber) +
				"Try describing what you need (e.g. 'dishwasher spray arm') and I'll search the catalog.",
			Agent:      "product_search",
			PartNumber: reference.PartNumber,
		}
	}

	var b strings.Builder
	fmt.Fprintf(&b, "Here are parts similar to **%s** (Part #%s):\n", reference.Name, reference.PartNumber)
	for i, part := range similar {
		fmt.Fprintf(&b, "\n%d. **%s** (Part #%s)\n", i+1, part.Name, part.PartNumber)
		fmt.Fprintf(&b, "   - $%.2f | %s | %s difficulty\n", part.Price, part.Category, orUnknown(part.InstallationDifficulty))
	}
	b.WriteString("\n💡 Ask about compatibility or installation for any of these parts!")

	return &models.HandlerResult{
		Response:       b.String(),
		Agent:          "product_search",
		SuggestedParts: similar,
		PartNumber:     reference.PartNumber,
	}
}

// handleStandardSearch 标准相似度检索模式
func (a *ProductSearchAgent) handleStandardSearch(ctx context.Context, query string, fused models.FusedContext) (*models.HandlerResult, error) {
	searchQuery := query

	// 短查询用融合关键词扩充，提高检索召回
	if len(strings.Fields(query)) <= shortQueryWords && len(fused.Keywords) > 0 {
		extra := fused.Keywords
		if len(extra) > 2 {
			extra = extra[:2]
		}
		searchQuery = fmt.Sprintf("%s %s", query, strings.Join(extra, " "))
		log.Printf("[商品检索] 短查询扩充: %q -> %q", query, searchQuery)
	}

	parts := a.search(ctx, searchQuery, maxSearchResults+2, fused.Category, maxSearchResults, "")

	if len(parts) == 0 {
		return &models.HandlerResult{
			Response: "I couldn't find any parts matching your search. 😕\n\n" +
				"**Try:**\n" +
				"- Different keywords (e.g. 'water filter' instead of 'filter thing')\n" +
				"- Specifying the appliance (e.g. 'dishwasher drain pump')\n" +
				"- A part number if you have one (e.g. PS11752778)",
			Agent: "product_search",
		}, nil
	}

	result := &models.HandlerResult{
		Agent: "product_search",
		Parts: parts,
	}

	var fb strings.Builder
	fb.WriteString("Here's what I found:\n")
	for i, part := range parts {
		fmt.Fprintf(&fb, "\n%d. **%s** (Part #%s)\n", i+1, part.Name, part.PartNumber)
		fmt.Fprintf(&fb, "   - $%.2f | %s | %s difficulty\n", part.Price, part.Category, orUnknown(part.InstallationDifficulty))
		if part.Description != "" {
			fmt.Fprintf(&fb, "   - %s\n", part.Description)
		}
	}
	fb.WriteString("\n💡 Ask me about compatibility or installation for any of these!")

	narrative, err := a.generateNarrative(ctx, query, parts,
		"The user is searching for appliance parts. Present the matching parts below in a friendly, organized way. Include part numbers and prices. End by offering to check compatibility or provide installation help.")
	if err != nil {
		log.Printf("[商品检索] 检索文案生成失败, 使用模板兜底: %v", err)
		result.Response = fb.String()
		return result, nil
	}
	result.Response = narrative
	return result, nil
}

// search 执行相似度检索并解析为配件记录，失败视同无匹配
func (a *ProductSearchAgent) search(ctx context.Context, query string, fetch int, category models.Category, maxResults int, exclude string) []*models.Part {
	if a.searcher == nil {
		return nil
	}
	hits, err := a.searcher.Search(ctx, query, fetch, category)
	if err != nil {
		log.Printf("[商品检索] 相似度检索失败, 视同无匹配: %v", err)
		return nil
	}
	return resolveHits(ctx, a.catalog, hits, maxResults, exclude)
}

// generateNarrative 调用补全服务生成检索结果文案
func (a *ProductSearchAgent) generateNarrative(ctx context.Context, query string, parts []*models.Part, instruction string) (string, error) {
	if a.client == nil {
		return "", fmt.Errorf("补全服务未配置")
	}

	var listing strings.Builder
	for _, part := range parts {
		fmt.Fprintf(&listing, "- %s (Part #%s): $%.2f, %s, %s difficulty\n",
			part.Name, part.PartNumber, part.Price, part.Category, orUnknown(part.InstallationDifficulty))
	}

	systemPrompt := fmt.Sprintf(`You are a helpful appliance-parts shopping assistant for refrigerator and dishwasher parts.

%s

Parts found:
%s
RULES:
- Only mention the parts listed above, never invent parts or part numbers
- Use markdown formatting with the exact part numbers and prices given
- Keep the response concise and friendly`, instruction, listing.String())

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

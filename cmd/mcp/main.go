package main

import (
	"context"
	"encoding/json"
	"fmt"
	"log"
	"os"

	"github.com/mark3labs/mcp-go/mcp"
	"github.com/mark3labs/mcp-go/server"

	"github.com/partdesk/service/internal/agents"
	"github.com/partdesk/service/internal/config"
	"github.com/partdesk/service/internal/llm"
	"github.com/partdesk/service/internal/store"
	"github.com/partdesk/service/pkg/vectorstore"
)

// MCP服务器入口：通过stdio暴露配件检索/兼容性/安装指导工具
func main() {
	// MCP使用stdout通信，日志必须走stderr
	log.SetOutput(os.Stderr)
	log.SetFlags(log.LstdFlags | log.Lshortfile)
	log.Println("正在启动PartDesk MCP服务...")

	cfg := config.Load()

	catalog, err := store.NewSQLiteCatalog(cfg.CatalogDBPath)
	if err != nil {
		log.Fatalf("❌ 初始化配件目录失败: %v", err)
	}
	defer catalog.Close()

	var searcher vectorstore.Searcher
	if cfg.EmbeddingAPIKey != "" {
		embedder := vectorstore.NewEmbeddingClient(cfg.EmbeddingAPIURL, cfg.EmbeddingAPIKey, cfg.EmbeddingModel)
		vectorStore, err := vectorstore.NewSQLiteStore(cfg.VectorDBPath, embedder)
		if err != nil {
			log.Fatalf("❌ 初始化向量存储失败: %v", err)
		}
		defer vectorStore.Close()
		searcher = vectorStore
	} else {
		log.Printf("⚠️ 未配置EMBEDDING_API_KEY, search_parts工具将不可用")
	}

	var llmClient llm.Client
	if cfg.DeepSeekAPIKey != "" {
		client, err := llm.NewDeepSeekClient(&llm.Config{
			APIKey:  cfg.DeepSeekAPIKey,
			BaseURL: cfg.DeepSeekBaseURL,
			Model:   cfg.DeepSeekModel,
			Timeout: cfg.LLMTimeout,
		})
		if err != nil {
			log.Fatalf("❌ 初始化补全服务客户端失败: %v", err)
		}
		llmClient = client
	}

	serverOptions := []server.ServerOption{
		server.WithResourceCapabilities(true, true),
	}
	if cfg.Debug {
		serverOptions = append(serverOptions, server.WithLogging())
	}

	s := server.NewMCPServer(
		"partdesk",
		"1.0.0",
		serverOptions...,
	)

	registerMCPTools(s, llmClient, catalog, searcher)

	log.Println("PartDesk MCP服务器已启动，等待连接...")
	if err := server.ServeStdio(s); err != nil {
		log.Fatalf("MCP服务器启动失败: %v", err)
	}
}

func registerMCPTools(s *server.MCPServer, llmClient llm.Client, catalog store.CatalogStore, searcher vectorstore.Searcher) {
	compat := agents.NewCompatibilityAgent(llmClient, catalog)
	installation := agents.NewInstallationAgent(llmClient, catalog, searcher)
	productSearch := agents.NewProductSearchAgent(llmClient, catalog, searcher)

	// 注册工具：配件检索
	searchPartsTool := mcp.NewTool("search_parts",
		mcp.WithDescription("按自然语言描述检索冰箱/洗碗机配件"),
		mcp.WithString("query",
			mcp.Required(),
			mcp.Description("检索描述，如 'dishwasher spray arm'"),
		),
	)
	s.AddTool(searchPartsTool, searchPartsHandler(productSearch))

	// 注册工具：兼容性检查
	checkCompatibilityTool := mcp.NewTool("check_compatibility",
		mcp.WithDescription("检查配件与家电型号是否兼容"),
		mcp.WithString("partNumber",
			mcp.Required(),
			mcp.Description("配件号，如 PS11752778"),
		),
		mcp.WithString("modelNumber",
			mcp.Required(),
			mcp.Description("家电型号，如 WDT780SAEM1"),
		),
	)
	s.AddTool(checkCompatibilityTool, checkCompatibilityHandler(compat))

	// 注册工具：安装指导
	installationGuideTool := mcp.NewTool("installation_guide",
		mcp.WithDescription("获取指定配件的安装指导"),
		mcp.WithString("partNumber",
			mcp.Required(),
			mcp.Description("配件号，如 PS11752778"),
		),
	)
	s.AddTool(installationGuideTool, installationGuideHandler(installation))
}

func searchPartsHandler(agent *agents.ProductSearchAgent) func(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	return func(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		query, ok := request.Params.Arguments["query"].(string)
		if !ok || query == "" {
			return mcp.NewToolResultText("错误: query必须是非空字符串"), nil
		}

		log.Printf("[MCP] search_parts: query=%s", query)
		result, err := agent.HandleQuery(ctx, query, nil)
		if err != nil {
			return mcp.NewToolResultText(fmt.Sprintf("配件检索失败: %v", err)), nil
		}
		return toolResultJSON(result)
	}
}

func checkCompatibilityHandler(agent *agents.CompatibilityAgent) func(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	return func(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		partNumber, ok := request.Params.Arguments["partNumber"].(string)
		if !ok || partNumber == "" {
			return mcp.NewToolResultText("错误: partNumber必须是非空字符串"), nil
		}
		modelNumber, ok := request.Params.Arguments["modelNumber"].(string)
		if !ok || modelNumber == "" {
			return mcp.NewToolResultText("错误: modelNumber必须是非空字符串"), nil
		}

		log.Printf("[MCP] check_compatibility: part=%s, model=%s", partNumber, modelNumber)
		result, err := agent.HandleQuery(ctx, "", partNumber, modelNumber, nil)
		if err != nil {
			return mcp.NewToolResultText(fmt.Sprintf("兼容性检查失败: %v", err)), nil
		}
		return toolResultJSON(result)
	}
}

func installationGuideHandler(agent *agents.InstallationAgent) func(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	return func(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		partNumber, ok := request.Params.Arguments["partNumber"].(string)
		if !ok || partNumber == "" {
			return mcp.NewToolResultText("错误: partNumber必须是非空字符串"), nil
		}

		log.Printf("[MCP] installation_guide: part=%s", partNumber)
		result, err := agent.HandleQuery(ctx, fmt.Sprintf("How do I install %s?", partNumber), partNumber, nil)
		if err != nil {
			return mcp.NewToolResultText(fmt.Sprintf("获取安装指导失败: %v", err)), nil
		}
		return toolResultJSON(result)
	}
}

// toolResultJSON 将处理结果序列化为JSON文本返回
func toolResultJSON(v interface{}) (*mcp.CallToolResult, error) {
	data, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return mcp.NewToolResultText(fmt.Sprintf("结果序列化失败: %v", err)), nil
	}
	return mcp.NewToolResultText(string(data)), nil
}

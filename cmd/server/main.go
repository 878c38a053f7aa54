package main

import (
	"context"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"

	"github.com/partdesk/service/internal/agents"
	"github.com/partdesk/service/internal/api"
	"github.com/partdesk/service/internal/cache"
	"github.com/partdesk/service/internal/config"
	"github.com/partdesk/service/internal/llm"
	"github.com/partdesk/service/internal/store"
	"github.com/partdesk/service/internal/utils"
	"github.com/partdesk/service/pkg/vectorstore"
)

func main() {
	// 初始化TraceID日志系统
	utils.InitTraceIDSystem()

	cfg := config.Load()
	log.Printf("配置加载完成: %s", cfg)

	gin.SetMode(cfg.GinMode)

	// 配件目录存储
	catalog, err := store.NewSQLiteCatalog(cfg.CatalogDBPath)
	if err != nil {
		log.Fatalf("❌ 初始化配件目录失败: %v", err)
	}
	defer catalog.Close()
	log.Printf("✅ 配件目录就绪: %s", cfg.CatalogDBPath)

	// 相似度检索存储
	var searcher vectorstore.Searcher
	if cfg.EmbeddingAPIKey != "" {
		embedder := vectorstore.NewEmbeddingClient(cfg.EmbeddingAPIURL, cfg.EmbeddingAPIKey, cfg.EmbeddingModel)
		vectorStore, err := vectorstore.NewSQLiteStore(cfg.VectorDBPath, embedder)
		if err != nil {
			log.Fatalf("❌ 初始化向量存储失败: %v", err)
		}
		defer vectorStore.Close()
		searcher = vectorStore
		log.Printf("✅ 向量存储就绪: %s", cfg.VectorDBPath)
	} else {
		log.Printf("⚠️ 未配置EMBEDDING_API_KEY, 相似度检索不可用, 检索类提问将降级")
	}

	// 补全服务客户端
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
		log.Printf("✅ 补全服务就绪: %s", cfg.DeepSeekModel)
	} else {
		log.Printf("⚠️ 未配置DEEPSEEK_API_KEY, 将以降级模式运行（确定性模板文案）")
	}

	// 装配编排器与API层
	orchestrator := agents.NewOrchestrator(llmClient, catalog, searcher)
	compat := agents.NewCompatibilityAgent(llmClient, catalog)
	sessions := store.NewSessionStore()
	suggestions := cache.NewSuggestionsCache(cfg.SuggestionsTTL, nil)

	handler := api.NewHandler(orchestrator, compat, catalog, sessions, suggestions, cfg)

	router := gin.New()
	router.Use(gin.Recovery())
	router.Use(utils.TraceIDMiddleware())

	corsConfig := cors.DefaultConfig()
	corsConfig.AllowOrigins = []string{cfg.FrontendURL}
	corsConfig.AllowMethods = []string{"GET", "POST", "PUT", "PATCH", "DELETE", "HEAD", "OPTIONS"}
	corsConfig.AllowHeaders = []string{"Origin", "Content-Length", "Content-Type", "Authorization", "Accept", "Cache-Control", "X-Trace-ID"}
	corsConfig.ExposeHeaders = []string{"Content-Length", "X-Trace-ID", "X-Session-ID"}
	corsConfig.AllowCredentials = true
	corsConfig.MaxAge = 12 * time.Hour
	router.Use(cors.New(corsConfig))

	handler.RegisterRoutes(router)

	srv := &http.Server{
		Addr:    cfg.Addr(),
		Handler: router,
	}

	go func() {
		log.Printf("🚀 HTTP服务启动: %s", cfg.Addr())
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatalf("❌ HTTP服务异常退出: %v", err)
		}
	}()

	// 优雅停机
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit
	log.Printf("收到退出信号, 开始优雅停机...")

	ctx, cancel := context.WithTimeout(context.Background(), cfg.ShutdownTimeout)
	defer cancel()
	if err := srv.Shutdown(ctx); err != nil {
		log.Printf("❌ 停机超时, 强制退出: %v", err)
	}
	log.Printf("服务已退出")
}

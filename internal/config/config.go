package config

import (
	"fmt"
	"log"
	"os"
	"strconv"
	"time"

	"github.com/joho/godotenv"
)

// Config 应用配置
type Config struct {
	// 服务配置
	ServiceName string
	Port        int
	Debug       bool
	Host        string // 服务监听地址
	GinMode     string // Gin运行模式

	// 前端跨域配置
	FrontendURL string

	// 目录数据库配置
	CatalogDBPath string // SQLite配件目录数据库路径

	// 向量存储配置
	VectorDBPath string // SQLite向量库路径

	// 文本嵌入配置
	EmbeddingAPIURL string
	EmbeddingAPIKey string
	EmbeddingModel  string

	// 补全服务配置
	DeepSeekAPIKey  string
	DeepSeekBaseURL string
	DeepSeekModel   string
	LLMTimeout      time.Duration
	LLMMaxTokens    int

	// ======== 时间阈值配置 ========
	SuggestionsTTL  time.Duration // 推荐提问缓存有效期
	ShutdownTimeout time.Duration // 优雅停机等待时间
}

// Load 从环境变量加载配置
func Load() *Config {
	// 尝试加载.env文件，优先尝试config目录，再兼容根目录
	envPaths := []string{
		"config/.env",
		".env",
	}

	loaded := false
	for _, path := range envPaths {
		if _, err := os.Stat(path); err == nil {
			if err := godotenv.Load(path); err == nil {
				log.Printf("成功加载.env文件: %s", path)
				loaded = true
				break
			}
		}
	}

	if !loaded {
		log.Printf("警告: 未找到.env文件，尝试使用系统环境变量")
	}

	return &Config{
		// 服务配置默认值
		ServiceName: getEnv("SERVICE_NAME", "partdesk"),
		Port:        getEnvAsInt("PORT", 8090),
		Debug:       getEnvAsBool("DEBUG", false),
		Host:        getEnv("HOST", "0.0.0.0"),
		GinMode:     getEnv("GIN_MODE", "release"),

		FrontendURL: getEnv("FRONTEND_URL", "http://localhost:3000"),

		// 目录与向量库路径
		CatalogDBPath: getEnv("CATALOG_DB_PATH", "./data/catalog.db"),
		VectorDBPath:  getEnv("VECTOR_DB_PATH", "./data/vectors.db"),

		// 嵌入服务配置
		EmbeddingAPIURL: getEnv("EMBEDDING_API_URL", "https://dashscope.aliyuncs.com/compatible-mode/v1/embeddings"),
		EmbeddingAPIKey: getEnv("EMBEDDING_API_KEY", ""),
		EmbeddingModel:  getEnv("EMBEDDING_MODEL", "text-embedding-v1"),

		// 补全服务配置
		DeepSeekAPIKey:  getEnv("DEEPSEEK_API_KEY", ""),
		DeepSeekBaseURL: getEnv("DEEPSEEK_BASE_URL", "https://api.deepseek.com/v1"),
		DeepSeekModel:   getEnv("DEEPSEEK_MODEL", "deepseek-chat"),
		LLMTimeout:      getEnvAsDuration("LLM_TIMEOUT", 30*time.Second),
		LLMMaxTokens:    getEnvAsInt("LLM_MAX_TOKENS", 2000),

		// 时间阈值配置
		SuggestionsTTL:  getEnvAsDuration("SUGGESTIONS_TTL", 5*time.Minute),
		ShutdownTimeout: getEnvAsDuration("SHUTDOWN_TIMEOUT", 10*time.Second),
	}
}

// Addr 返回HTTP服务监听地址
func (c *Config) Addr() string {
	return fmt.Sprintf("%s:%d", c.Host, c.Port)
}

// String 返回配置的字符串表示，密钥做掩码处理
func (c *Config) String() string {
	return fmt.Sprintf(
		"服务名称: %s, 端口: %d, 调试模式: %v, 目录库: %s, 向量库: %s, 补全模型: %s, 嵌入API: %s, 推荐缓存: %v",
		c.ServiceName, c.Port, c.Debug, c.CatalogDBPath, c.VectorDBPath,
		c.DeepSeekModel, maskString(c.EmbeddingAPIURL), c.SuggestionsTTL,
	)
}

// 从环境变量获取字符串值
func getEnv(key, defaultValue string) string {
	if value, exists := os.LookupEnv(key); exists {
		return value
	}
	return defaultValue
}

// 从环境变量获取整数值
func getEnvAsInt(key string, defaultValue int) int {
	strValue := getEnv(key, "")
	if value, err := strconv.Atoi(strValue); err == nil {
		return value
	}
	return defaultValue
}

// 从环境变量获取布尔值
func getEnvAsBool(key string, defaultValue bool) bool {
	strValue := getEnv(key, "")
	if value, err := strconv.ParseBool(strValue); err == nil {
		return value
	}
	return defaultValue
}

// 从环境变量获取时间值
func getEnvAsDuration(key string, defaultValue time.Duration) time.Duration {
	strValue := getEnv(key, "")
	if value, err := time.ParseDuration(strValue); err == nil {
		return value
	}
	return defaultValue
}

// 掩码字符串，用于日志输出安全
func maskString(input string) string {
	if len(input) <= 8 {
		return "***"
	}
	return input[:4] + "..." + input[len(input)-4:]
}

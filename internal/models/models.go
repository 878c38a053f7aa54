package models

import (
	"strings"
	"time"
)

// =============================================================================
// 核心数据模型定义
// =============================================================================

// Role 对话角色
type Role string

const (
	RoleUser      Role = "user"
	RoleAssistant Role = "assistant"
)

// Turn 对话轮次，记录后不可变
type Turn struct {
	Role      Role      `json:"role"`
	Content   string    `json:"content"`
	Timestamp time.Time `json:"timestamp"`
}

// Category 家电类别
type Category string

const (
	CategoryRefrigerator Category = "Refrigerator"
	CategoryDishwasher   Category = "Dishwasher"
)

// Intent 用户意图分类，封闭集合
type Intent string

const (
	IntentProductSearch      Intent = "PRODUCT_SEARCH"
	IntentCompatibilityCheck Intent = "COMPATIBILITY_CHECK"
	IntentInstallationHelp   Intent = "INSTALLATION_HELP"
	IntentTroubleshooting    Intent = "TROUBLESHOOTING"
	IntentOrderSupport       Intent = "ORDER_SUPPORT"
	IntentOutOfScope         Intent = "OUT_OF_SCOPE"
)

// AllIntents 全部有效意图
var AllIntents = []Intent{
	IntentProductSearch,
	IntentCompatibilityCheck,
	IntentInstallationHelp,
	IntentTroubleshooting,
	IntentOrderSupport,
	IntentOutOfScope,
}

// ParseIntent 解析意图字符串，无法识别时返回false
func ParseIntent(s string) (Intent, bool) {
	candidate := Intent(strings.ToUpper(strings.TrimSpace(s)))
	for _, intent := range AllIntents {
		if candidate == intent {
			return intent, true
		}
	}
	return "", false
}

// ExtractedEntities 从自由文本中恢复的结构化实体
// 字段只填充不覆盖：先执行的提取阶段优先
type ExtractedEntities struct {
	PartNumber  string   `json:"part_number,omitempty"`
	ModelNumber string   `json:"model_number,omitempty"`
	Category    Category `json:"category,omitempty"`
	Keywords    []string `json:"keywords,omitempty"`
}

// FusedContext 从历史对话重建的工作上下文，仅作为补充参考
type FusedContext struct {
	PartNumber   string   `json:"part_number,omitempty"`
	ModelNumber  string   `json:"model_number,omitempty"`
	Category     Category `json:"category,omitempty"`
	Keywords     []string `json:"keywords,omitempty"`
	PartMentions []string `json:"part_mentions,omitempty"`
	Symptoms     []string `json:"symptoms,omitempty"`
}

// ErrorCode 处理器错误分类，全部为非致命条件
type ErrorCode string

const (
	ErrMissingBoth         ErrorCode = "MISSING_BOTH"
	ErrMissingPartNumber   ErrorCode = "MISSING_PART_NUMBER"
	ErrMissingModelNumber  ErrorCode = "MISSING_MODEL_NUMBER"
	ErrPartNotFound        ErrorCode = "PART_NOT_FOUND"
	ErrNoPartNumber        ErrorCode = "NO_PART_NUMBER"
	ErrNoInstallationSteps ErrorCode = "NO_INSTALLATION_STEPS"
)

// Part 配件记录，核心逻辑只读
type Part struct {
	PartNumber             string   `json:"part_number"`
	Name                   string   `json:"name"`
	Category               Category `json:"category"`
	Subcategory            string   `json:"subcategory,omitempty"`
	Price                  float64  `json:"price"`
	Description            string   `json:"description,omitempty"`
	Brand                  string   `json:"brand,omitempty"`
	ImageURL               string   `json:"image_url,omitempty"`
	InstallationDifficulty string   `json:"installation_difficulty,omitempty"`
	InstallationSteps      []string `json:"installation_steps,omitempty"`
	CommonSymptoms         []string `json:"common_symptoms,omitempty"`
	CompatibleModels       []string `json:"compatible_models,omitempty"`
}

// ApplianceModel 家电型号记录
type ApplianceModel struct {
	ModelNumber   string   `json:"model_number"`
	Brand         string   `json:"brand,omitempty"`
	ApplianceType Category `json:"appliance_type,omitempty"`
}

// HandlerResult 专家处理器的统一返回结构
// 错误通过ErrorCode传递，Response永远非空
type HandlerResult struct {
	Response         string    `json:"response"`
	Agent            string    `json:"agent"`
	Intent           Intent    `json:"category"`
	Parts            []*Part   `json:"parts,omitempty"`
	SuggestedParts   []*Part   `json:"suggested_parts,omitempty"`
	Compatible       *bool     `json:"compatible,omitempty"`
	CompatibleModels []string  `json:"compatible_models,omitempty"`
	Steps            []string  `json:"steps,omitempty"`
	Difficulty       string    `json:"difficulty,omitempty"`
	EstimatedTime    string    `json:"estimated_time,omitempty"`
	PartNumber       string    `json:"part_number,omitempty"`
	ModelNumber      string    `json:"model_number,omitempty"`
	ErrorCode        ErrorCode `json:"error,omitempty"`
}

// StreamChunk 流式响应分片
type StreamChunk struct {
	Type    string         `json:"type"` // content / metadata / error
	Content string         `json:"content,omitempty"`
	Done    bool           `json:"done"`
	Result  *HandlerResult `json:"result,omitempty"`
	Error   string         `json:"error,omitempty"`
}

package vectorstore

import (
	"context"
	"fmt"
	"strings"

	"github.com/partdesk/service/internal/models"
)

// SearchHit 相似度检索结果
type SearchHit struct {
	PartNumber string  `json:"part_number"`
	Score      float64 `json:"score"`
}

// Searcher 相似度检索接口，结果按匹配度降序
type Searcher interface {
	Search(ctx context.Context, queryText string, maxResults int, categoryFilter models.Category) ([]SearchHit, error)
}

// Embedder 文本嵌入接口
type Embedder interface {
	GenerateEmbedding(ctx context.Context, text string) ([]float32, error)
}

// PartDocument 构建配件的嵌入文档文本
func PartDocument(part *models.Part) string {
	return strings.TrimSpace(fmt.Sprintf(`Part: %s
Part Number: %s
Category: %s - %s
Description: %s
Symptoms: %s
Brand: %s
Installation: %s`,
		part.Name, part.PartNumber, part.Category, part.Subcategory,
		part.Description, strings.Join(part.CommonSymptoms, ", "),
		part.Brand, part.InstallationDifficulty))
}

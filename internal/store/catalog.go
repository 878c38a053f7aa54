package store

import (
	"context"
	"strings"

	"github.com/partdesk/service/internal/models"
)

// CatalogStore 配件目录存储接口
// 标识符查询对规范化（大写）后的值大小写敏感，调用方负责先NormalizeID
type CatalogStore interface {
	// FindPartByNumber 按配件号查找，未找到返回(nil, nil)
	FindPartByNumber(ctx context.Context, partNumber string) (*models.Part, error)

	// FindModelByNumber 按型号查找，未找到返回(nil, nil)
	FindModelByNumber(ctx context.Context, modelNumber string) (*models.ApplianceModel, error)

	// ListParts 按类别列出配件，category为空时返回全部
	ListParts(ctx context.Context, category models.Category) ([]*models.Part, error)
}

// NormalizeID 规范化配件号/型号
func NormalizeID(id string) string {
	return strings.ToUpper(strings.TrimSpace(id))
}

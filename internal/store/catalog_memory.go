package store

import (
	"context"
	"sort"
	"sync"

	"github.com/partdesk/service/internal/models"
)

// MemoryCatalog 内存配件目录，测试和数据预览用
type MemoryCatalog struct {
	mu     sync.RWMutex
	parts  map[string]*models.Part
	models map[string]*models.ApplianceModel
}

// NewMemoryCatalog 创建内存目录并载入初始配件
func NewMemoryCatalog(parts ...*models.Part) *MemoryCatalog {
	c := &MemoryCatalog{
		parts:  make(map[string]*models.Part),
		models: make(map[string]*models.ApplianceModel),
	}
	for _, part := range parts {
		c.AddPart(part)
	}
	return c
}

// AddPart 添加配件及其兼容型号
func (c *MemoryCatalog) AddPart(part *models.Part) {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.parts[NormalizeID(part.PartNumber)] = part
	for _, modelNumber := range part.CompatibleModels {
		normalized := NormalizeID(modelNumber)
		if _, exists := c.models[normalized]; !exists {
			c.models[normalized] = &models.ApplianceModel{
				ModelNumber:   normalized,
				Brand:         part.Brand,
				ApplianceType: part.Category,
			}
		}
	}
}

// FindPartByNumber 按配件号查找
func (c *MemoryCatalog) FindPartByNumber(ctx context.Context, partNumber string) (*models.Part, error) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.parts[partNumber], nil
}

// FindModelByNumber 按型号查找
func (c *MemoryCatalog) FindModelByNumber(ctx context.Context, modelNumber string) (*models.ApplianceModel, error) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.models[modelNumber], nil
}

// ListParts 按类别列出配件
func (c *MemoryCatalog) ListParts(ctx context.Context, category models.Category) ([]*models.Part, error) {
	c.mu.RLock()
	defer c.mu.RUnlock()

	var result []*models.Part
	for _, part := range c.parts {
		if category == "" || part.Category == category {
			result = append(result, part)
		}
	}
	sort.Slice(result, func(i, j int) bool {
		return result[i].PartNumber < result[j].PartNumber
	})
	return result, nil
}

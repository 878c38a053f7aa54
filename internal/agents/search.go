package agents

import (
	"context"
	"log"

	"github.com/partdesk/service/internal/models"
	"github.com/partdesk/service/internal/store"
	"github.com/partdesk/service/pkg/vectorstore"
)

// resolveHits 将相似度检索命中解析为目录配件记录
// 目录中不存在的命中直接跳过；exclude用于排除参照配件自身
func resolveHits(ctx context.Context, catalog store.CatalogStore, hits []vectorstore.SearchHit, maxResults int, exclude string) []*models.Part {
	var parts []*models.Part
	for _, hit := range hits {
		if len(parts) >= maxResults {
			break
		}
		if exclude != "" && hit.PartNumber == exclude {
			continue
		}
		part, err := catalog.FindPartByNumber(ctx, hit.PartNumber)
		if err != nil {
			log.Printf("[检索] 解析命中失败 part=%s: %v", hit.PartNumber, err)
			continue
		}
		if part == nil {
			continue
		}
		parts = append(parts, part)
	}
	return parts
}

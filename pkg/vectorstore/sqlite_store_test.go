package vectorstore

import (
	"context"
	"math"
	"path/filepath"
	"strings"
	"testing"

	"github.com/partdesk/service/internal/models"
)

// keywordEmbedder 按关键词命中生成确定性向量的假嵌入器
type keywordEmbedder struct {
	keywords []string
}

func (e *keywordEmbedder) GenerateEmbedding(ctx context.Context, text string) ([]float32, error) {
	lower := strings.ToLower(text)
	embedding := make([]float32, len(e.keywords)+1)
	embedding[len(e.keywords)] = 0.1 // 基底分量，避免零向量
	for i, keyword := range e.keywords {
		if strings.Contains(lower, keyword) {
			embedding[i] = 1
		}
	}
	return embedding, nil
}

func newTestStore(t *testing.T) *SQLiteStore {
	t.Helper()
	embedder := &keywordEmbedder{keywords: []string{"ice", "latch", "pump"}}
	store, err := NewSQLiteStore(filepath.Join(t.TempDir(), "vectors.db"), embedder)
	if err != nil {
		t.Fatalf("初始化向量存储失败: %v", err)
	}
	t.Cleanup(func() { store.Close() })
	return store
}

func seedTestStore(t *testing.T, store *SQLiteStore) {
	t.Helper()
	ctx := context.Background()
	parts := []*models.Part{
		{PartNumber: "PS100", Name: "Ice Maker Assembly", Category: models.CategoryRefrigerator, Description: "makes ice"},
		{PartNumber: "PS200", Name: "Door Latch", Category: models.CategoryDishwasher, Description: "latch assembly"},
		{PartNumber: "PS300", Name: "Drain Pump", Category: models.CategoryDishwasher, Description: "pump for draining"},
	}
	for _, part := range parts {
		if err := store.AddPart(ctx, part); err != nil {
			t.Fatalf("写入配件向量失败: %v", err)
		}
	}
}

func TestSearchOrdering(t *testing.T) {
	store := newTestStore(t)
	seedTestStore(t, store)

	hits, err := store.Search(context.Background(), "ice maker for my fridge", 3, "")
	if err != nil {
		t.Fatalf("检索失败: %v", err)
	}
	if len(hits) == 0 {
		t.Fatal("应有检索结果")
	}
	if hits[0].PartNumber != "PS100" {
		t.Errorf("最相关配件应排第一: got=%q", hits[0].PartNumber)
	}
	for i := 1; i < len(hits); i++ {
		if hits[i].Score > hits[i-1].Score {
			t.Error("结果应按匹配度降序")
		}
	}
}

func TestSearchCategoryFilter(t *testing.T) {
	store := newTestStore(t)
	seedTestStore(t, store)

	hits, err := store.Search(context.Background(), "pump", 10, models.CategoryDishwasher)
	if err != nil {
		t.Fatalf("检索失败: %v", err)
	}
	for _, hit := range hits {
		if hit.PartNumber == "PS100" {
			t.Error("类别过滤应排除冰箱配件")
		}
	}
}

func TestSearchMaxResults(t *testing.T) {
	store := newTestStore(t)
	seedTestStore(t, store)

	hits, err := store.Search(context.Background(), "latch", 1, "")
	if err != nil {
		t.Fatalf("检索失败: %v", err)
	}
	if len(hits) != 1 {
		t.Errorf("应截断到maxResults: got=%d", len(hits))
	}
}

func TestAddPartUpsert(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()

	part := &models.Part{PartNumber: "PS100", Name: "Ice Maker", Category: models.CategoryRefrigerator}
	if err := store.AddPart(ctx, part); err != nil {
		t.Fatalf("写入失败: %v", err)
	}
	if err := store.AddPart(ctx, part); err != nil {
		t.Fatalf("重复写入应覆盖而非报错: %v", err)
	}

	count, err := store.Count(ctx)
	if err != nil {
		t.Fatalf("计数失败: %v", err)
	}
	if count != 1 {
		t.Errorf("重复写入不应产生新行: got=%d", count)
	}
}

func TestEmbeddingRoundTrip(t *testing.T) {
	original := []float32{0.25, -1.5, 3.75, 0}
	decoded := decodeEmbedding(encodeEmbedding(original))
	if len(decoded) != len(original) {
		t.Fatalf("向量长度不一致: got=%d", len(decoded))
	}
	for i := range original {
		if decoded[i] != original[i] {
			t.Errorf("分量%d不一致: got=%v, want=%v", i, decoded[i], original[i])
		}
	}
}

func TestCosineSimilarity(t *testing.T) {
	a := []float32{1, 0}
	b := []float32{1, 0}
	c := []float32{0, 1}

	if got := cosineSimilarity(a, b); math.Abs(got-1) > 1e-9 {
		t.Errorf("同向向量相似度应为1: got=%v", got)
	}
	if got := cosineSimilarity(a, c); math.Abs(got) > 1e-9 {
		t.Errorf("正交向量相似度应为0: got=%v", got)
	}
	if got := cosineSimilarity(a, []float32{1}); got != 0 {
		t.Errorf("维度不一致应返回0: got=%v", got)
	}
}

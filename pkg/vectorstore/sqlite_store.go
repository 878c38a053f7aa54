package vectorstore

import (
	"context"
	"database/sql"
	"encoding/binary"
	"fmt"
	"log"
	"math"
	"os"
	"path/filepath"
	"sort"
	"sync"

	_ "github.com/mattn/go-sqlite3"

	"github.com/partdesk/service/internal/models"
)

// SQLiteStore 基于SQLite持久化的向量存储
// 检索时在内存中计算余弦相似度，目录规模下足够
type SQLiteStore struct {
	mu       sync.RWMutex
	db       *sql.DB
	embedder Embedder
}

// NewSQLiteStore 打开（必要时创建）向量数据库
func NewSQLiteStore(dbPath string, embedder Embedder) (*SQLiteStore, error) {
	log.Printf("[向量存储] 初始化向量数据库, 路径: %s", dbPath)

	if dir := filepath.Dir(dbPath); dir != "." {
		if err := os.MkdirAll(dir, 0755); err != nil {
			return nil, fmt.Errorf("创建数据库目录失败: %w", err)
		}
	}

	db, err := sql.Open("sqlite3", dbPath)
	if err != nil {
		return nil, fmt.Errorf("打开数据库失败: %w", err)
	}

	store := &SQLiteStore{db: db, embedder: embedder}
	if err := store.initSchema(); err != nil {
		db.Close()
		return nil, fmt.Errorf("初始化表结构失败: %w", err)
	}

	count, _ := store.Count(context.Background())
	log.Printf("[向量存储] 向量数据库初始化完成, 现有 %d 条文档", count)
	return store, nil
}

// initSchema 创建表结构
func (s *SQLiteStore) initSchema() error {
	schema := `
	CREATE TABLE IF NOT EXISTS part_embeddings (
		part_number TEXT PRIMARY KEY,
		category TEXT NOT NULL,
		document TEXT NOT NULL,
		embedding BLOB NOT NULL
	);
	CREATE INDEX IF NOT EXISTS idx_embeddings_category ON part_embeddings(category);
	`
	_, err := s.db.Exec(schema)
	return err
}

// Close 关闭数据库
func (s *SQLiteStore) Close() error {
	return s.db.Close()
}

// AddPart 写入配件文档及其嵌入向量
func (s *SQLiteStore) AddPart(ctx context.Context, part *models.Part) error {
	document := PartDocument(part)

	embedding, err := s.embedder.GenerateEmbedding(ctx, document)
	if err != nil {
		return fmt.Errorf("生成嵌入向量失败: %w", err)
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	_, err = s.db.ExecContext(ctx, `
		INSERT OR REPLACE INTO part_embeddings (part_number, category, document, embedding)
		VALUES (?, ?, ?, ?)`,
		part.PartNumber, string(part.Category), document, encodeEmbedding(embedding))
	if err != nil {
		return fmt.Errorf("写入向量失败: %w", err)
	}
	return nil
}

// Search 相似度检索，按匹配度降序返回前maxResults条
func (s *SQLiteStore) Search(ctx context.Context, queryText string, maxResults int, categoryFilter models.Category) ([]SearchHit, error) {
	queryEmbedding, err := s.embedder.GenerateEmbedding(ctx, queryText)
	if err != nil {
		return nil, fmt.Errorf("生成查询向量失败: %w", err)
	}

	s.mu.RLock()
	defer s.mu.RUnlock()

	query := `SELECT part_number, embedding FROM part_embeddings`
	args := []interface{}{}
	if categoryFilter != "" {
		query += ` WHERE category = ?`
		args = append(args, string(categoryFilter))
	}

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("查询向量失败: %w", err)
	}
	defer rows.Close()

	var hits []SearchHit
	for rows.Next() {
		var partNumber string
		var blob []byte
		if err := rows.Scan(&partNumber, &blob); err != nil {
			return nil, fmt.Errorf("读取向量行失败: %w", err)
		}
		embedding := decodeEmbedding(blob)
		hits = append(hits, SearchHit{
			PartNumber: partNumber,
			Score:      cosineSimilarity(queryEmbedding, embedding),
		})
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}

	sort.Slice(hits, func(i, j int) bool {
		return hits[i].Score > hits[j].Score
	})
	if maxResults > 0 && len(hits) > maxResults {
		hits = hits[:maxResults]
	}
	return hits, nil
}

// Count 统计文档数量
func (s *SQLiteStore) Count(ctx context.Context) (int, error) {
	var count int
	err := s.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM part_embeddings`).Scan(&count)
	return count, err
}

// Clear 清空全部向量
func (s *SQLiteStore) Clear(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	_, err := s.db.ExecContext(ctx, `DELETE FROM part_embeddings`)
	return err
}

// encodeEmbedding 编码向量为小端float32字节序列
func encodeEmbedding(embedding []float32) []byte {
	buf := make([]byte, 4*len(embedding))
	for i, v := range embedding {
		binary.LittleEndian.PutUint32(buf[i*4:], math.Float32bits(v))
	}
	return buf
}

// decodeEmbedding 解码字节序列为向量
func decodeEmbedding(blob []byte) []float32 {
	embedding := make([]float32, len(blob)/4)
	for i := range embedding {
		embedding[i] = math.Float32frombits(binary.LittleEndian.Uint32(blob[i*4:]))
	}
	return embedding
}

// cosineSimilarity 计算余弦相似度
func cosineSimilarity(a, b []float32) float64 {
	if len(a) != len(b) || len(a) == 0 {
		return 0
	}
	var dot, normA, normB float64
	for i := range a {
		dot += float64(a[i]) * float64(b[i])
		normA += float64(a[i]) * float64(a[i])
		normB += float64(b[i]) * float64(b[i])
	}
	if normA == 0 || normB == 0 {
		return 0
	}
	return dot / (math.Sqrt(normA) * math.Sqrt(normB))
}

package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"log"
	"os"
	"path/filepath"

	_ "github.com/mattn/go-sqlite3"

	"github.com/partdesk/service/internal/models"
)

// SQLiteCatalog 基于SQLite的配件目录存储
type SQLiteCatalog struct {
	db *sql.DB
}

// NewSQLiteCatalog 打开（必要时创建）目录数据库
func NewSQLiteCatalog(dbPath string) (*SQLiteCatalog, error) {
	log.Printf("[目录存储] 初始化目录数据库, 路径: %s", dbPath)

	if dir := filepath.Dir(dbPath); dir != "." {
		if err := os.MkdirAll(dir, 0755); err != nil {
			return nil, fmt.Errorf("创建数据库目录失败: %w", err)
		}
	}

	db, err := sql.Open("sqlite3", dbPath)
	if err != nil {
		return nil, fmt.Errorf("打开数据库失败: %w", err)
	}

	catalog := &SQLiteCatalog{db: db}
	if err := catalog.initSchema(); err != nil {
		db.Close()
		return nil, fmt.Errorf("初始化表结构失败: %w", err)
	}

	log.Printf("[目录存储] 目录数据库初始化完成")
	return catalog, nil
}

// initSchema 创建表结构
func (s *SQLiteCatalog) initSchema() error {
	schema := `
	CREATE TABLE IF NOT EXISTS parts (
		part_number TEXT PRIMARY KEY,
		name TEXT NOT NULL,
		category TEXT NOT NULL,
		subcategory TEXT,
		price REAL NOT NULL,
		description TEXT,
		brand TEXT,
		image_url TEXT,
		installation_difficulty TEXT,
		installation_steps TEXT,
		common_symptoms TEXT
	);
	CREATE TABLE IF NOT EXISTS appliance_models (
		model_number TEXT PRIMARY KEY,
		brand TEXT,
		appliance_type TEXT
	);
	CREATE TABLE IF NOT EXISTS part_model_compatibility (
		part_number TEXT NOT NULL,
		model_number TEXT NOT NULL,
		PRIMARY KEY (part_number, model_number)
	);
	CREATE INDEX IF NOT EXISTS idx_parts_category ON parts(category);
	`
	_, err := s.db.Exec(schema)
	return err
}

// Close 关闭数据库
func (s *SQLiteCatalog) Close() error {
	return s.db.Close()
}

// UpsertPart 写入配件及其兼容型号（数据填充用）
func (s *SQLiteCatalog) UpsertPart(ctx context.Context, part *models.Part) error {
	steps, err := json.Marshal(part.InstallationSteps)
	if err != nil {
		return fmt.Errorf("序列化安装步骤失败: %w", err)
	}
	symptoms, err := json.Marshal(part.CommonSymptoms)
	if err != nil {
		return fmt.Errorf("序列化故障症状失败: %w", err)
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("开启事务失败: %w", err)
	}
	defer tx.Rollback()

	partNumber := NormalizeID(part.PartNumber)

	_, err = tx.ExecContext(ctx, `
		INSERT OR REPLACE INTO parts
		(part_number, name, category, subcategory, price, description, brand, image_url, installation_difficulty, installation_steps, common_symptoms)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		partNumber, part.Name, string(part.Category), part.Subcategory, part.Price,
		part.Description, part.Brand, part.ImageURL, part.InstallationDifficulty,
		string(steps), string(symptoms))
	if err != nil {
		return fmt.Errorf("写入配件失败: %w", err)
	}

	for _, modelNumber := range part.CompatibleModels {
		modelNumber = NormalizeID(modelNumber)
		_, err = tx.ExecContext(ctx, `
			INSERT OR IGNORE INTO appliance_models (model_number, brand, appliance_type)
			VALUES (?, ?, ?)`,
			modelNumber, part.Brand, string(part.Category))
		if err != nil {
			return fmt.Errorf("写入型号失败: %w", err)
		}
		_, err = tx.ExecContext(ctx, `
			INSERT OR IGNORE INTO part_model_compatibility (part_number, model_number)
			VALUES (?, ?)`,
			partNumber, modelNumber)
		if err != nil {
			return fmt.Errorf("写入兼容关系失败: %w", err)
		}
	}

	return tx.Commit()
}

// FindPartByNumber 按配件号查找
func (s *SQLiteCatalog) FindPartByNumber(ctx context.Context, partNumber string) (*models.Part, error) {
	row := s.db.QueryRowContext(ctx, `
		SELECT part_number, name, category, subcategory, price, description, brand, image_url,
		       installation_difficulty, installation_steps, common_symptoms
		FROM parts WHERE part_number = ?`, partNumber)

	part, err := scanPart(row)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("查询配件失败: %w", err)
	}

	compatible, err := s.compatibleModels(ctx, part.PartNumber)
	if err != nil {
		return nil, err
	}
	part.CompatibleModels = compatible
	return part, nil
}

// FindModelByNumber 按型号查找
func (s *SQLiteCatalog) FindModelByNumber(ctx context.Context, modelNumber string) (*models.ApplianceModel, error) {
	row := s.db.QueryRowContext(ctx, `
		SELECT model_number, brand, appliance_type
		FROM appliance_models WHERE model_number = ?`, modelNumber)

	var m models.ApplianceModel
	var applianceType string
	err := row.Scan(&m.ModelNumber, &m.Brand, &applianceType)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("查询型号失败: %w", err)
	}
	m.ApplianceType = models.Category(applianceType)
	return &m, nil
}

// ListParts 按类别列出配件
func (s *SQLiteCatalog) ListParts(ctx context.Context, category models.Category) ([]*models.Part, error) {
	query := `
		SELECT part_number, name, category, subcategory, price, description, brand, image_url,
		       installation_difficulty, installation_steps, common_symptoms
		FROM parts`
	args := []interface{}{}
	if category != "" {
		query += " WHERE category = ?"
		args = append(args, string(category))
	}
	query += " ORDER BY part_number"

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("查询配件列表失败: %w", err)
	}
	defer rows.Close()

	var parts []*models.Part
	for rows.Next() {
		part, err := scanPart(rows)
		if err != nil {
			return nil, fmt.Errorf("读取配件行失败: %w", err)
		}
		parts = append(parts, part)
	}
	return parts, rows.Err()
}

// compatibleModels 查询配件的兼容型号列表
func (s *SQLiteCatalog) compatibleModels(ctx context.Context, partNumber string) ([]string, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT model_number FROM part_model_compatibility
		WHERE part_number = ? ORDER BY model_number`, partNumber)
	if err != nil {
		return nil, fmt.Errorf("查询兼容型号失败: %w", err)
	}
	defer rows.Close()

	var result []string
	for rows.Next() {
		var modelNumber string
		if err := rows.Scan(&modelNumber); err != nil {
			return nil, err
		}
		result = append(result, modelNumber)
	}
	return result, rows.Err()
}

// rowScanner 兼容sql.Row和sql.Rows的扫描接口
type rowScanner interface {
	Scan(dest ...interface{}) error
}

// scanPart 扫描单个配件行
func scanPart(row rowScanner) (*models.Part, error) {
	var part models.Part
	var category string
	var subcategory, description, brand, imageURL, difficulty sql.NullString
	var stepsJSON, symptomsJSON sql.NullString

	err := row.Scan(&part.PartNumber, &part.Name, &category, &subcategory, &part.Price,
		&description, &brand, &imageURL, &difficulty, &stepsJSON, &symptomsJSON)
	if err != nil {
		return nil, err
	}

	part.Category = models.Category(category)
	part.Subcategory = subcategory.String
	part.Description = description.String
	part.Brand = brand.String
	part.ImageURL = imageURL.String
	part.InstallationDifficulty = difficulty.String

	if stepsJSON.Valid && stepsJSON.String != "" {
		if err := json.Unmarshal([]byte(stepsJSON.String), &part.InstallationSteps); err != nil {
			return nil, fmt.Errorf("解析安装步骤失败: %w", err)
		}
	}
	if symptomsJSON.Valid && symptomsJSON.String != "" {
		if err := json.Unmarshal([]byte(symptomsJSON.String), &part.CommonSymptoms); err != nil {
			return nil, fmt.Errorf("解析故障症状失败: %w", err)
		}
	}

	return &part, nil
}

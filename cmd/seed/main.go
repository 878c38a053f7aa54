package main

import (
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"log"
	"math/rand"
	"os"
	"strings"

	"github.com/brianvoe/gofakeit/v6"
	"github.com/schollz/progressbar/v3"

	"github.com/partdesk/service/internal/config"
	"github.com/partdesk/service/internal/models"
	"github.com/partdesk/service/internal/store"
	"github.com/partdesk/service/pkg/vectorstore"
)

// 数据填充工具：从JSON文件或合成数据填充配件目录与向量库
func main() {
	var (
		partsFile  = flag.String("parts", "", "配件JSON文件路径，留空则生成合成数据")
		count      = flag.Int("count", 50, "合成配件数量")
		catalogDB  = flag.String("catalog-db", "", "目录数据库路径，默认取CATALOG_DB_PATH")
		vectorDB   = flag.String("vector-db", "", "向量数据库路径，默认取VECTOR_DB_PATH")
		skipVector = flag.Bool("skip-vectors", false, "跳过向量库填充")
	)
	flag.Parse()

	cfg := config.Load()
	if *catalogDB == "" {
		*catalogDB = cfg.CatalogDBPath
	}
	if *vectorDB == "" {
		*vectorDB = cfg.VectorDBPath
	}

	var parts []*models.Part
	var err error
	if *partsFile != "" {
		parts, err = loadPartsFile(*partsFile)
		if err != nil {
			log.Fatalf("❌ 加载配件文件失败: %v", err)
		}
		log.Printf("从 %s 加载了 %d 个配件", *partsFile, len(parts))
	} else {
		parts = generateParts(*count)
		log.Printf("生成了 %d 个合成配件", len(parts))
	}

	ctx := context.Background()

	catalog, err := store.NewSQLiteCatalog(*catalogDB)
	if err != nil {
		log.Fatalf("❌ 初始化配件目录失败: %v", err)
	}
	defer catalog.Close()

	bar := progressbar.Default(int64(len(parts)), "填充目录")
	for _, part := range parts {
		if err := catalog.UpsertPart(ctx, part); err != nil {
			log.Fatalf("❌ 写入配件 %s 失败: %v", part.PartNumber, err)
		}
		bar.Add(1)
	}
	log.Printf("✅ 目录填充完成: %s", *catalogDB)

	if *skipVector {
		log.Printf("按参数跳过向量库填充")
		return
	}
	if cfg.EmbeddingAPIKey == "" {
		log.Printf("⚠️ 未配置EMBEDDING_API_KEY, 跳过向量库填充（相似度检索将不可用）")
		return
	}

	embedder := vectorstore.NewEmbeddingClient(cfg.EmbeddingAPIURL, cfg.EmbeddingAPIKey, cfg.EmbeddingModel)
	vectorStore, err := vectorstore.NewSQLiteStore(*vectorDB, embedder)
	if err != nil {
		log.Fatalf("❌ 初始化向量存储失败: %v", err)
	}
	defer vectorStore.Close()

	bar = progressbar.Default(int64(len(parts)), "填充向量库")
	for _, part := range parts {
		if err := vectorStore.AddPart(ctx, part); err != nil {
			log.Fatalf("❌ 写入配件向量 %s 失败: %v", part.PartNumber, err)
		}
		bar.Add(1)
	}
	log.Printf("✅ 向量库填充完成: %s", *vectorDB)
}

// loadPartsFile 从JSON文件加载配件列表
func loadPartsFile(path string) ([]*models.Part, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	var parts []*models.Part
	if err := json.Unmarshal(data, &parts); err != nil {
		return nil, fmt.Errorf("解析JSON失败: %w", err)
	}
	return parts, nil
}

// 合成数据词表
var (
	subcategories = map[models.Category][]string{
		models.CategoryRefrigerator: {"Ice Maker", "Water Filter", "Door Shelf", "Thermostat", "Compressor", "Door Gasket"},
		models.CategoryDishwasher:   {"Spray Arm", "Drain Pump", "Door Latch", "Rack", "Water Inlet Valve", "Heating Element"},
	}
	difficulties = []string{"Easy", "Moderate", "Difficult"}
	brands       = []string{"Whirlpool", "KitchenAid", "Maytag", "GE", "Frigidaire", "Bosch"}
	symptomsPool = []string{
		"not working", "leaking", "noisy", "won't drain", "not cooling",
		"making noise", "not starting", "door won't close",
	}
)

// generateParts 生成合成配件数据
func generateParts(count int) []*models.Part {
	gofakeit.Seed(42)
	rng := rand.New(rand.NewSource(42))

	parts := make([]*models.Part, 0, count)
	for i := 0; i < count; i++ {
		category := models.CategoryRefrigerator
		if i%2 == 0 {
			category = models.CategoryDishwasher
		}
		subs := subcategories[category]
		sub := subs[rng.Intn(len(subs))]
		brand := brands[rng.Intn(len(brands))]
		difficulty := difficulties[rng.Intn(len(difficulties))]

		part := &models.Part{
			PartNumber:             fmt.Sprintf("PS%08d", 11000000+i),
			Name:                   fmt.Sprintf("%s %s Assembly", brand, sub),
			Category:               category,
			Subcategory:            sub,
			Price:                  gofakeit.Price(9.99, 249.99),
			Description:            gofakeit.Sentence(12),
			Brand:                  brand,
			InstallationDifficulty: difficulty,
		}

		// 约一成配件没有安装步骤，覆盖降级路径
		if rng.Intn(10) != 0 {
			stepCount := 3 + rng.Intn(5)
			for s := 0; s < stepCount; s++ {
				part.InstallationSteps = append(part.InstallationSteps, gofakeit.Sentence(8))
			}
		}

		symptomCount := 1 + rng.Intn(3)
		for s := 0; s < symptomCount; s++ {
			part.CommonSymptoms = append(part.CommonSymptoms, symptomsPool[rng.Intn(len(symptomsPool))])
		}

		modelCount := 2 + rng.Intn(6)
		for m := 0; m < modelCount; m++ {
			part.CompatibleModels = append(part.CompatibleModels,
				strings.ToUpper(fmt.Sprintf("%s%d%s%d", gofakeit.LetterN(3), 100+rng.Intn(900), gofakeit.LetterN(3), rng.Intn(10))))
		}

		parts = append(parts, part)
	}
	return parts
}

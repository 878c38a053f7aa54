package agents

import (
	"context"
	"strings"
	"testing"

	"github.com/partdesk/service/internal/models"
	"github.com/partdesk/service/internal/store"
)

func compatTestCatalog() *store.MemoryCatalog {
	return store.NewMemoryCatalog(&models.Part{
		PartNumber:             "PS100",
		Name:                   "Ice Maker Assembly",
		Category:               models.CategoryRefrigerator,
		Price:                  89.99,
		InstallationDifficulty: "Easy",
		CompatibleModels:       []string{"MODEL_A", "MODEL_B", "WDT780SAEM1"},
	})
}

func TestCheckCompatibilityMember(t *testing.T) {
	agent := NewCompatibilityAgent(nil, compatTestCatalog())

	result, err := agent.CheckCompatibility(context.Background(), "PS100", "MODEL_A")
	if err != nil {
		t.Fatalf("不应返回错误: %v", err)
	}
	if result.Compatible == nil || !*result.Compatible {
		t.Error("MODEL_A在兼容列表中，应判定为兼容")
	}
}

func TestCheckCompatibilityNonMember(t *testing.T) {
	agent := NewCompatibilityAgent(nil, compatTestCatalog())

	result, err := agent.CheckCompatibility(context.Background(), "PS100", "MODEL_X")
	if err != nil {
		t.Fatalf("不应返回错误: %v", err)
	}
	if result.Compatible == nil || *result.Compatible {
		t.Error("MODEL_X不在兼容列表中，应判定为不兼容")
	}
	if len(result.CompatibleModels) == 0 {
		t.Error("不兼容时应附带备选兼容型号")
	}
}

func TestCheckCompatibilityCaseInsensitive(t *testing.T) {
	agent := NewCompatibilityAgent(nil, compatTestCatalog())

	result, err := agent.CheckCompatibility(context.Background(), "ps100", "model_a")
	if err != nil {
		t.Fatalf("不应返回错误: %v", err)
	}
	if result.Compatible == nil || !*result.Compatible {
		t.Error("配件号和型号比较应大小写不敏感")
	}
}

func TestCheckCompatibilityPartNotFound(t *testing.T) {
	agent := NewCompatibilityAgent(nil, compatTestCatalog())

	result, err := agent.CheckCompatibility(context.Background(), "PS_UNKNOWN", "MODEL_A")
	if err != nil {
		t.Fatalf("配件不存在是业务条件而非错误: %v", err)
	}
	if result.ErrorCode != models.ErrPartNotFound {
		t.Errorf("应报告PART_NOT_FOUND: got=%q", result.ErrorCode)
	}
	if result.Compatible != nil {
		t.Error("配件不存在时不应有兼容性判定")
	}
}

func TestCheckCompatibilitySuggestionLimit(t *testing.T) {
	catalog := store.NewMemoryCatalog(&models.Part{
		PartNumber:       "PS200",
		Name:             "Drain Pump",
		Category:         models.CategoryDishwasher,
		CompatibleModels: []string{"M1", "M2", "M3", "M4", "M5", "M6", "M7"},
	})
	agent := NewCompatibilityAgent(nil, catalog)

	result, err := agent.CheckCompatibility(context.Background(), "PS200", "NOPE123")
	if err != nil {
		t.Fatalf("不应返回错误: %v", err)
	}
	if len(result.CompatibleModels) > 5 {
		t.Errorf("备选型号不应超过5个: got=%d", len(result.CompatibleModels))
	}
}

func TestHandleQueryMissingEntities(t *testing.T) {
	agent := NewCompatibilityAgent(nil, compatTestCatalog())
	ctx := context.Background()

	t.Run("两者均缺失", func(t *testing.T) {
		result, err := agent.HandleQuery(ctx, "is this compatible?", "", "", nil)
		if err != nil {
			t.Fatalf("不应返回错误: %v", err)
		}
		if result.ErrorCode != models.ErrMissingBoth {
			t.Errorf("应报告MISSING_BOTH: got=%q", result.ErrorCode)
		}
	})

	t.Run("仅缺配件号", func(t *testing.T) {
		result, err := agent.HandleQuery(ctx, "will it fit WDT780SAEM1?", "", "", nil)
		if err != nil {
			t.Fatalf("不应返回错误: %v", err)
		}
		if result.ErrorCode != models.ErrMissingPartNumber {
			t.Errorf("应报告MISSING_PART_NUMBER: got=%q", result.ErrorCode)
		}
		if result.ModelNumber != "WDT780SAEM1" {
			t.Errorf("已解析的型号应回传: got=%q", result.ModelNumber)
		}
	})

	t.Run("仅缺型号", func(t *testing.T) {
		result, err := agent.HandleQuery(ctx, "is PS100 compatible with my fridge?", "", "", nil)
		if err != nil {
			t.Fatalf("不应返回错误: %v", err)
		}
		if result.ErrorCode != models.ErrMissingModelNumber {
			t.Errorf("应报告MISSING_MODEL_NUMBER: got=%q", result.ErrorCode)
		}
	})
}

func TestHandleQueryResolvesFromHistory(t *testing.T) {
	agent := NewCompatibilityAgent(nil, compatTestCatalog())

	history := turns("I'm looking at part PS100", "Great choice!")
	result, err := agent.HandleQuery(context.Background(), "will it fit WDT780SAEM1?", "", "", history)
	if err != nil {
		t.Fatalf("不应返回错误: %v", err)
	}
	if result.ErrorCode != "" {
		t.Fatalf("历史补全后不应有错误码: got=%q", result.ErrorCode)
	}
	if result.Compatible == nil || !*result.Compatible {
		t.Error("应判定为兼容")
	}
	if !strings.Contains(result.Response, "✅") {
		t.Error("兼容时响应应使用肯定文案")
	}
}

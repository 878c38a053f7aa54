package agents

import (
	"context"
	"testing"
	"time"

	"github.com/partdesk/service/internal/models"
)

func TestExtractByPatterns(t *testing.T) {
	cases := []struct {
		name      string
		text      string
		wantPart  string
		wantModel string
	}{
		{"配件号和型号同时出现", "Is part PS11752778 compatible with WDT780SAEM1?", "PS11752778", "WDT780SAEM1"},
		{"仅配件号", "How do I install PS11752778?", "PS11752778", ""},
		{"仅型号", "Will this work with my KDFE104HPS dishwasher?", "", "KDFE104HPS"},
		{"小写输入统一为大写", "is ps11752778 ok for wdt780saem1", "PS11752778", "WDT780SAEM1"},
		{"无实体", "my dishwasher is leaking", "", ""},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			got := extractByPatterns(tc.text)
			if got.PartNumber != tc.wantPart {
				t.Errorf("配件号提取错误: got=%q, want=%q", got.PartNumber, tc.wantPart)
			}
			if got.ModelNumber != tc.wantModel {
				t.Errorf("型号提取错误: got=%q, want=%q", got.ModelNumber, tc.wantModel)
			}
		})
	}
}

// 配件号候选绝不应被误判为型号
func TestExtractExclusionInvariant(t *testing.T) {
	got := extractByPatterns("tell me about PS11752778")
	if got.ModelNumber == "PS11752778" {
		t.Error("配件号被误判为型号")
	}
	if got.PartNumber != "PS11752778" {
		t.Errorf("配件号未命中: got=%q", got.PartNumber)
	}
}

func TestExtractFromHistoryEarliestWins(t *testing.T) {
	extractor := NewExtractor(nil)
	now := time.Now()

	history := []models.Turn{
		{Role: models.RoleUser, Content: "I need part PS100", Timestamp: now},
		{Role: models.RoleAssistant, Content: "Sure, PS100 is available", Timestamp: now},
		{Role: models.RoleUser, Content: "actually what about PS200?", Timestamp: now},
	}

	got := extractor.ExtractFromHistory(history)
	if got.PartNumber != "PS100" {
		t.Errorf("历史提取应先到先得: got=%q, want=PS100", got.PartNumber)
	}
}

func TestExtractFromHistoryWindow(t *testing.T) {
	extractor := NewExtractor(nil)
	now := time.Now()

	// 超出窗口的最早轮次应被忽略
	history := []models.Turn{
		{Role: models.RoleUser, Content: "old part PS999", Timestamp: now},
		{Role: models.RoleUser, Content: "no entities here", Timestamp: now},
		{Role: models.RoleUser, Content: "still nothing", Timestamp: now},
		{Role: models.RoleUser, Content: "nothing again", Timestamp: now},
		{Role: models.RoleUser, Content: "newest part PS100", Timestamp: now},
	}

	got := extractor.ExtractFromHistory(history)
	if got.PartNumber != "PS100" {
		t.Errorf("窗口外的配件号不应参与提取: got=%q, want=PS100", got.PartNumber)
	}
}

func TestExtractLLMFallbackOnlyFillsMissing(t *testing.T) {
	client := &stubClient{content: "PART_NUMBER: PS999\nMODEL_NUMBER: WDT780SAEM1"}
	extractor := NewExtractor(client)

	// 模式匹配已命中配件号，回退只能补充型号
	got := extractor.Extract(context.Background(), "I have PS11752778, will it fit my dishwasher?")
	if got.PartNumber != "PS11752778" {
		t.Errorf("回退不应覆盖模式匹配结果: got=%q", got.PartNumber)
	}
	if got.ModelNumber != "WDT780SAEM1" {
		t.Errorf("回退应补充缺失型号: got=%q", got.ModelNumber)
	}
}

// 回退解析的型号值同样受排除判定约束
func TestExtractLLMFallbackRejectsPartShapedModel(t *testing.T) {
	client := &stubClient{content: "PART_NUMBER: NONE\nMODEL_NUMBER: PS99887766"}
	extractor := NewExtractor(client)

	got := extractor.Extract(context.Background(), "will this fit my appliance?")
	if got.ModelNumber != "" {
		t.Errorf("配件号形状的值不应进入型号字段: got=%q", got.ModelNumber)
	}
	if got.PartNumber != "" {
		t.Errorf("NONE应保持配件号为空: got=%q", got.PartNumber)
	}
}

func TestExtractLLMFallbackRejectsLetterOnlyModel(t *testing.T) {
	client := &stubClient{content: "PART_NUMBER: NONE\nMODEL_NUMBER: DISHWASHER"}
	extractor := NewExtractor(client)

	got := extractor.Extract(context.Background(), "will this fit my dishwasher?")
	if got.ModelNumber != "" {
		t.Errorf("纯字母值不应进入型号字段: got=%q", got.ModelNumber)
	}
}

func TestMergeEntitiesKeywordDedup(t *testing.T) {
	base := models.ExtractedEntities{Keywords: []string{"pump", "filter"}}
	extra := models.ExtractedEntities{Keywords: []string{"filter", "gasket"}}

	got := mergeEntities(base, extra)
	if len(got.Keywords) != 3 {
		t.Fatalf("关键词应去重合并: got=%v", got.Keywords)
	}
	if got.Keywords[0] != "pump" || got.Keywords[1] != "filter" || got.Keywords[2] != "gasket" {
		t.Errorf("关键词应保持出现顺序: got=%v", got.Keywords)
	}
}

func TestExtractLLMFallbackNone(t *testing.T) {
	client := &stubClient{content: "PART_NUMBER: NONE\nMODEL_NUMBER: NONE"}
	extractor := NewExtractor(client)

	got := extractor.Extract(context.Background(), "my fridge is broken")
	if got.PartNumber != "" || got.ModelNumber != "" {
		t.Errorf("NONE应保持字段为空: part=%q, model=%q", got.PartNumber, got.ModelNumber)
	}
}

func TestExtractSkipsLLMWhenComplete(t *testing.T) {
	client := &stubClient{content: "PART_NUMBER: PS999\nMODEL_NUMBER: XXX999YY"}
	extractor := NewExtractor(client)

	extractor.Extract(context.Background(), "Is PS11752778 compatible with WDT780SAEM1?")
	if client.called {
		t.Error("两个实体均已命中时不应调用补全服务")
	}
}

func TestExtractLLMFailureKeepsPatternResult(t *testing.T) {
	client := &stubClient{err: errServiceDown}
	extractor := NewExtractor(client)

	got := extractor.Extract(context.Background(), "install PS11752778 please")
	if got.PartNumber != "PS11752778" {
		t.Errorf("补全服务失败时应保留模式匹配结果: got=%q", got.PartNumber)
	}
}

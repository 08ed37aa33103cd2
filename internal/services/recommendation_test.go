package services

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// fakeCatalog serves a fixed item list and detail lookup.
type fakeCatalog struct {
	items []interface{}
	item  interface{}
}

func (f *fakeCatalog) Items(context.Context) ([]interface{}, error) { return f.items, nil }
func (f *fakeCatalog) ItemByID(context.Context, string) interface{} { return f.item }

func catalogItem(id float64, title, slogan, story string, price float64, featured bool) map[string]interface{} {
	return map[string]interface{}{
		"id":         id,
		"title":      title,
		"slogan":     slogan,
		"story":      story,
		"price":      price,
		"isFeatured": featured,
	}
}

func TestGeneratePlanFallsBackWithoutKey(t *testing.T) {
	cfg := testChatConfig("http://unused")
	cfg.QwenAPIKey = ""
	svc := NewRecommendationService(cfg, &fakeCatalog{})

	plan := svc.GeneratePlan(context.Background(), GiftPlanInput{ItemID: 3, ItemTitle: "星空灯"})
	assert.Equal(t, "星空灯", plan.GiftName)
	assert.Contains(t, plan.Copy, "星空灯")
	require.Len(t, plan.Scenarios, 1)
	assert.NotEmpty(t, plan.Pairing)
}

func TestGeneratePlanParsesModelReply(t *testing.T) {
	var captured chatCompletionRequest
	reply := "好的：{\"giftName\":\"星夜手账\",\"pairing\":\"\",\"scenarios\":[\"生日清晨悄悄放在床头\"],\"copy\":\"愿每个夜晚都有星光。\"} 希望有帮助"
	server := completionServer(t, reply, &captured)
	defer server.Close()

	svc := NewRecommendationService(testChatConfig(server.URL), &fakeCatalog{
		item: map[string]interface{}{
			"story": "一盏为夜晚准备的灯",
			"tags":  []interface{}{"温馨", "卧室"},
		},
	})

	plan := svc.GeneratePlan(context.Background(), GiftPlanInput{
		ItemID:       3,
		ItemTitle:    "星空灯",
		Relationship: "恋人",
	})

	assert.Equal(t, "星夜手账", plan.GiftName)
	// Empty fields from the model fall back.
	assert.Equal(t, "搭配一封手写信或温暖的话语", plan.Pairing)
	assert.Equal(t, []string{"生日清晨悄悄放在床头"}, plan.Scenarios)
	assert.Equal(t, "愿每个夜晚都有星光。", plan.Copy)

	assert.InDelta(t, 0.5, captured.Temperature, 0.001)
	require.Len(t, captured.Messages, 2)
	userTurn := captured.Messages[1].Content
	assert.Contains(t, userTurn, "礼物：《星空灯》")
	assert.Contains(t, userTurn, "送礼关系：恋人")
	// Item story and tags from the CMS ride along as context.
	assert.Contains(t, userTurn, "一盏为夜晚准备的灯")
	assert.Contains(t, userTurn, "温馨、卧室")
}

func TestGeneratePlanFallsBackOnProviderError(t *testing.T) {
	cfg := testChatConfig("http://127.0.0.1:0")
	svc := NewRecommendationService(cfg, &fakeCatalog{})

	plan := svc.GeneratePlan(context.Background(), GiftPlanInput{ItemTitle: "杯子"})
	assert.Equal(t, "杯子", plan.GiftName)
	assert.Equal(t, []string{"选择一个轻松的场景，把礼物当面送上并表达心意"}, plan.Scenarios)
}

func TestAnalyzeParsesSlots(t *testing.T) {
	reply := `{"intent":"recommendation","slots":{"keyword":["星空"],"recipient":["恋人"],"price_range":{"min":100,"max":300}}}`
	server := completionServer(t, reply, nil)
	defer server.Close()

	svc := NewRecommendationService(testChatConfig(server.URL), &fakeCatalog{})

	result, err := svc.Analyze(context.Background(), "想送恋人一个三百以内的星空主题礼物")
	require.NoError(t, err)
	assert.Equal(t, IntentRecommendation, result.Intent)
	assert.Equal(t, []string{"星空"}, result.Slots.Keyword)
	assert.Equal(t, []string{"恋人"}, result.Slots.Recipient)
	require.NotNil(t, result.Slots.PriceRange)
	assert.Equal(t, 100.0, *result.Slots.PriceRange.Min)
	assert.Equal(t, 300.0, *result.Slots.PriceRange.Max)
}

func TestAnalyzeDegradesToUnknownOnGarbage(t *testing.T) {
	server := completionServer(t, "抱歉，我理解不了。", nil)
	defer server.Close()

	svc := NewRecommendationService(testChatConfig(server.URL), &fakeCatalog{})

	result, err := svc.Analyze(context.Background(), "???")
	require.NoError(t, err)
	assert.Equal(t, IntentUnknown, result.Intent)
}

func TestAnalyzeRequiresKey(t *testing.T) {
	cfg := testChatConfig("http://unused")
	cfg.QwenAPIKey = ""
	svc := NewRecommendationService(cfg, &fakeCatalog{})

	_, err := svc.Analyze(context.Background(), "你好")
	assert.Error(t, err)
}

func TestRecommendBySlotsScoring(t *testing.T) {
	catalog := &fakeCatalog{items: []interface{}{
		catalogItem(1, "星空投影灯", "卧室的浪漫星空", "", 199, false),
		catalogItem(2, "普通马克杯", "", "", 39, false),
		catalogItem(3, "精选香薰", "", "", 159, true),
		catalogItem(4, "天价手表", "", "", 9999, false),
	}}
	svc := NewRecommendationService(testChatConfig("http://unused"), catalog)

	min, max := 50.0, 500.0
	slots := NLUSlots{
		Keyword:    []string{"星空"},
		PriceRange: &PriceRange{Min: &min, Max: &max},
	}
	items, err := svc.RecommendBySlots(context.Background(), slots, 10)
	require.NoError(t, err)

	// Items outside the budget are filtered out entirely. Of the rest, the
	// featured boost plus price proximity outranks a single keyword hit.
	require.Len(t, items, 2)
	first := items[0].(map[string]interface{})
	second := items[1].(map[string]interface{})
	assert.Equal(t, "精选香薰", first["title"])
	assert.Equal(t, "星空投影灯", second["title"])
}

func TestRecommendBySlotsExcludesItems(t *testing.T) {
	catalog := &fakeCatalog{items: []interface{}{
		catalogItem(1, "星空投影灯", "", "", 199, false),
		catalogItem(2, "星空手链", "", "", 99, false),
	}}
	svc := NewRecommendationService(testChatConfig("http://unused"), catalog)

	slots := NLUSlots{Keyword: []string{"星空"}, ExcludedItems: []string{"1"}}
	items, err := svc.RecommendBySlots(context.Background(), slots, 10)
	require.NoError(t, err)
	require.Len(t, items, 1)
	assert.Equal(t, "星空手链", items[0].(map[string]interface{})["title"])
}

func TestExplainMatch(t *testing.T) {
	min, max := 50.0, 500.0
	slots := NLUSlots{
		Keyword:    []string{"星空"},
		PriceRange: &PriceRange{Min: &min, Max: &max},
	}

	item := catalogItem(1, "星空投影灯", "", "", 199, true)
	reason := explainMatch(item, slots)
	assert.Contains(t, reason, "与用户偏好匹配：星空")
	assert.Contains(t, reason, "价格符合预算区间")
	assert.Contains(t, reason, "平台精选好物")

	plain := catalogItem(2, "马克杯", "", "", 9999, false)
	assert.Equal(t, "综合匹配度较高", explainMatch(plain, slots))
}

func TestRecommendFromInputBuildsExplanations(t *testing.T) {
	reply := `{"intent":"recommendation","slots":{"keyword":["星空"]}}`
	server := completionServer(t, reply, nil)
	defer server.Close()

	catalog := &fakeCatalog{items: []interface{}{
		catalogItem(1, "星空投影灯", "", "", 199, false),
	}}
	svc := NewRecommendationService(testChatConfig(server.URL), catalog)

	result, err := svc.RecommendFromInput(context.Background(), "星空主题")
	require.NoError(t, err)
	assert.Equal(t, IntentRecommendation, result.Intent)
	require.Len(t, result.Items, 1)
	require.Len(t, result.Explanations, 1)
	assert.Equal(t, float64(1), result.Explanations[0].ItemID)
	assert.Contains(t, result.Explanations[0].Reason, "星空")
}

func TestExtractJSON(t *testing.T) {
	assert.Equal(t, `{"a":1}`, extractJSON("前缀 {\"a\":1} 后缀"))
	assert.Equal(t, "{}", extractJSON("没有任何结构"))
	assert.Equal(t, `{"outer":{"inner":2}}`, extractJSON(`{"outer":{"inner":2}}`))
}

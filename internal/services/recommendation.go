package services

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log"
	"math"
	"net/http"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/giftmind/giftmind-backend/internal/config"
	"github.com/giftmind/giftmind-backend/internal/models"
)

const (
	IntentRecommendation = "recommendation"
	IntentChitchat       = "chitchat"
	IntentClarify        = "clarify"
	IntentUnknown        = "unknown"
)

// PriceRange bounds a budget slot. Either bound may be absent.
type PriceRange struct {
	Min *float64 `json:"min,omitempty"`
	Max *float64 `json:"max,omitempty"`
}

// NLUSlots are the structured preferences extracted from free-form input.
// The field names mirror the model's output schema.
type NLUSlots struct {
	Category      []string    `json:"category,omitempty"`
	Occasion      []string    `json:"occasion,omitempty"`
	Recipient     []string    `json:"recipient,omitempty"`
	Interest      []string    `json:"interest,omitempty"`
	Style         []string    `json:"style,omitempty"`
	Attribute     []string    `json:"attribute,omitempty"`
	PriceRange    *PriceRange `json:"price_range,omitempty"`
	Keyword       []string    `json:"keyword,omitempty"`
	ExcludedItems []string    `json:"excluded_items,omitempty"`
}

// NLUResult is one intent classification plus its slots.
type NLUResult struct {
	Intent string   `json:"intent"`
	Slots  NLUSlots `json:"slots"`
}

// GiftPlanInput carries the item and relationship context for a gift plan.
type GiftPlanInput struct {
	ItemID          int64
	ItemTitle       string
	Relationship    string
	ItemPrice       string
	ItemSlogan      string
	ItemDescription string
}

// GiftPlan is the structured plan for one gift.
type GiftPlan struct {
	GiftName  string   `json:"giftName"`
	Pairing   string   `json:"pairing"`
	Scenarios []string `json:"scenarios"`
	Copy      string   `json:"copy"`
}

// Explanation pairs one recommended item with the reasons it scored.
type Explanation struct {
	ItemID interface{} `json:"itemId"`
	Reason string      `json:"reason"`
}

// RecommendationResult is the end-to-end output: intent, slots, the scored
// items and a per-item explanation.
type RecommendationResult struct {
	Intent       string        `json:"intent"`
	Slots        NLUSlots      `json:"slots"`
	Items        []interface{} `json:"items"`
	Explanations []Explanation `json:"explanations"`
}

// ItemCatalog is the slice of the CMS the recommender reads: the full item
// list for scoring and single-item lookups for plan context.
type ItemCatalog interface {
	Items(ctx context.Context) ([]interface{}, error)
	ItemByID(ctx context.Context, id string) interface{}
}

// RecommendationService turns free-form input into scored item suggestions
// and generates gift plans, with rule-based fallbacks when the model is
// unavailable.
type RecommendationService struct {
	cfg        *config.Config
	httpClient *http.Client
	catalog    ItemCatalog
}

func NewRecommendationService(cfg *config.Config, catalog ItemCatalog) *RecommendationService {
	return &RecommendationService{
		cfg:        cfg,
		httpClient: &http.Client{Timeout: 60 * time.Second},
		catalog:    catalog,
	}
}

const planSystemPrompt = `你是专业的礼物策划师，请根据提供的礼物信息与关系背景输出严格的 JSON：
{
  "giftName": "string",
  "pairing": "string",
  "scenarios": ["string", ...],
  "copy": "string"
}
- giftName 需要结合礼物特点起一个好记的名称。
- pairing 说明可以搭配的附加元素或仪式。
- scenarios 至少给出 1 个简短场景描述。
- copy 给出一句完整的话术。
只返回 JSON，不要附加其他文字。`

const nluSystemPrompt = `你是一个商品推荐的NLU助手。请根据用户输入提取意图(intent)和结构化槽位(slots)。
输出必须是严格的JSON，不要包含任何解释或额外文本。
JSON Schema: { "intent": "recommendation|chitchat|clarify|unknown", "slots": { "category": string[], "occasion": string[], "recipient": string[], "interest": string[], "style": string[], "attribute": string[], "price_range": { "min": number, "max": number }, "keyword": string[], "excluded_items": string[] } }
如果无法判断某些字段，就使用空数组或省略 price_range。`

// GeneratePlan builds a gift plan for the item. Any model failure, missing
// configuration included, degrades to the rule-based plan, so this never
// fails.
func (s *RecommendationService) GeneratePlan(ctx context.Context, input GiftPlanInput) *GiftPlan {
	if s.cfg.QwenAPIKey == "" {
		log.Println("recommendation: QWEN_API_KEY not configured, using fallback plan")
		return fallbackPlan(input)
	}

	history := s.itemHistory(ctx, input.ItemID)

	raw, err := completeChat(ctx, s.cfg, s.httpClient, []llmMessage{
		{Role: models.RoleSystem, Content: planSystemPrompt},
		{Role: models.RoleUser, Content: buildPlanUserPrompt(input, history)},
	}, 0.5)
	if err != nil {
		log.Printf("recommendation: plan generation failed, using fallback: %v", err)
		return fallbackPlan(input)
	}

	var parsed struct {
		GiftName  string      `json:"giftName"`
		Pairing   string      `json:"pairing"`
		Scenarios interface{} `json:"scenarios"`
		Copy      string      `json:"copy"`
	}
	if err := json.Unmarshal([]byte(extractJSON(raw)), &parsed); err != nil {
		log.Printf("recommendation: plan reply was not valid JSON, using fallback: %v", err)
		return fallbackPlan(input)
	}

	plan := &GiftPlan{
		GiftName:  ensureText(parsed.GiftName, input.ItemTitle),
		Pairing:   ensureText(parsed.Pairing, "搭配一封手写信或温暖的话语"),
		Scenarios: pickStrings(parsed.Scenarios),
		Copy:      ensureText(parsed.Copy, fmt.Sprintf("把心里关于%s的那份心意说出来。", input.ItemTitle)),
	}
	if len(plan.Scenarios) == 0 {
		plan.Scenarios = []string{"挑一个轻松的时刻，把礼物和祝福一起送上"}
	}
	return plan
}

// itemHistory pulls the item's story and tags from the CMS as extra prompt
// context. A failed lookup just means less context.
func (s *RecommendationService) itemHistory(ctx context.Context, itemID int64) string {
	if s.catalog == nil || itemID == 0 {
		return ""
	}
	item, _ := s.catalog.ItemByID(ctx, strconv.FormatInt(itemID, 10)).(map[string]interface{})
	if item == nil {
		return ""
	}
	story, _ := item["story"].(string)
	var tags []string
	if raw, ok := item["tags"].([]interface{}); ok {
		for _, t := range raw {
			if str, ok := t.(string); ok {
				tags = append(tags, str)
			}
		}
	}
	return strings.TrimSpace(strings.TrimSpace(story) + " " + strings.Join(tags, "、"))
}

func buildPlanUserPrompt(input GiftPlanInput, history string) string {
	parts := []string{fmt.Sprintf("礼物：《%s》", input.ItemTitle)}
	if input.ItemSlogan != "" {
		parts = append(parts, "亮点："+input.ItemSlogan)
	}
	if input.ItemDescription != "" {
		parts = append(parts, "详情："+input.ItemDescription)
	}
	if input.ItemPrice != "" {
		parts = append(parts, "价格："+input.ItemPrice)
	}
	if input.Relationship != "" {
		parts = append(parts, "送礼关系："+input.Relationship)
	}
	if history != "" {
		parts = append(parts, "用户历史："+history)
	}
	return strings.Join(parts, "\n")
}

func fallbackPlan(input GiftPlanInput) *GiftPlan {
	baseName := input.ItemTitle
	if baseName == "" {
		baseName = "这份礼物"
	}
	return &GiftPlan{
		GiftName:  baseName,
		Pairing:   "加上一段手写留言或一束小花，营造仪式感。",
		Scenarios: []string{"选择一个轻松的场景，把礼物当面送上并表达心意"},
		Copy:      fmt.Sprintf("想到你时，总觉得%s最能表达我的心意，想亲手把这份温柔交给你。", baseName),
	}
}

// Analyze extracts intent and slots from the input. An unparseable model
// reply degrades to the unknown intent with empty slots; only missing
// configuration is an error.
func (s *RecommendationService) Analyze(ctx context.Context, userInput string) (*NLUResult, error) {
	if s.cfg.QwenAPIKey == "" {
		return nil, errors.New("QWEN_API_KEY not configured")
	}

	raw, err := completeChat(ctx, s.cfg, s.httpClient, []llmMessage{
		{Role: models.RoleSystem, Content: nluSystemPrompt},
		{Role: models.RoleUser, Content: "用户输入: " + userInput},
	}, 0.2)
	if err != nil {
		log.Printf("recommendation: NLU call failed, falling back to unknown intent: %v", err)
		return &NLUResult{Intent: IntentUnknown}, nil
	}

	var parsed NLUResult
	if err := json.Unmarshal([]byte(extractJSON(raw)), &parsed); err != nil {
		log.Printf("recommendation: NLU reply was not valid JSON, falling back to unknown intent: %v", err)
		return &NLUResult{Intent: IntentUnknown}, nil
	}
	if parsed.Intent == "" {
		parsed.Intent = IntentUnknown
	}
	return &parsed, nil
}

// RecommendBySlots scores the catalog against the slots: one point per
// keyword hit in title/slogan/story, a featured boost, and price proximity
// when the budget has both bounds.
func (s *RecommendationService) RecommendBySlots(ctx context.Context, slots NLUSlots, limit int) ([]interface{}, error) {
	if limit <= 0 {
		limit = 10
	}
	items, err := s.catalog.Items(ctx)
	if err != nil {
		return nil, err
	}

	keywords := slotKeywords(slots)
	minPrice, maxPrice, bounded := priceBounds(slots.PriceRange)
	excluded := map[string]bool{}
	for _, id := range slots.ExcludedItems {
		excluded[id] = true
	}

	type scoredItem struct {
		item  map[string]interface{}
		score float64
	}
	var scored []scoredItem
	for _, raw := range items {
		item, ok := raw.(map[string]interface{})
		if !ok {
			continue
		}
		if excluded[itemIDString(item)] {
			continue
		}
		price, hasPrice := itemPrice(item)
		if hasPrice && (price < minPrice || price > maxPrice) {
			continue
		}

		haystack := strings.ToLower(itemText(item))
		var score float64
		for _, kw := range keywords {
			if kw != "" && strings.Contains(haystack, kw) {
				score++
			}
		}
		if featured, _ := item["isFeatured"].(bool); featured {
			score += 2
		}
		if hasPrice && bounded {
			mid := (minPrice + maxPrice) / 2
			norm := math.Max(1, mid)
			score += math.Max(0, 1.5-math.Abs(price-mid)/norm)
		}
		scored = append(scored, scoredItem{item: item, score: score})
	}

	sort.SliceStable(scored, func(i, j int) bool { return scored[i].score > scored[j].score })
	if len(scored) > limit {
		scored = scored[:limit]
	}
	out := make([]interface{}, len(scored))
	for i, sc := range scored {
		out[i] = sc.item
	}
	return out, nil
}

// RecommendFromInput runs NLU over the input, scores the catalog and
// explains each pick.
func (s *RecommendationService) RecommendFromInput(ctx context.Context, userInput string) (*RecommendationResult, error) {
	nlu, err := s.Analyze(ctx, userInput)
	if err != nil {
		return nil, err
	}
	items, err := s.RecommendBySlots(ctx, nlu.Slots, 10)
	if err != nil {
		return nil, err
	}

	explanations := make([]Explanation, 0, len(items))
	for _, raw := range items {
		item, _ := raw.(map[string]interface{})
		explanations = append(explanations, Explanation{
			ItemID: item["id"],
			Reason: explainMatch(item, nlu.Slots),
		})
	}
	return &RecommendationResult{
		Intent:       nlu.Intent,
		Slots:        nlu.Slots,
		Items:        items,
		Explanations: explanations,
	}, nil
}

func explainMatch(item map[string]interface{}, slots NLUSlots) string {
	var reasons []string

	haystack := strings.ToLower(itemText(item))
	var hits []string
	for _, kw := range slotKeywords(slots) {
		if kw != "" && strings.Contains(haystack, kw) {
			hits = append(hits, kw)
		}
	}
	if len(hits) > 0 {
		if len(hits) > 3 {
			hits = hits[:3]
		}
		reasons = append(reasons, "与用户偏好匹配："+strings.Join(hits, "、"))
	}
	if price, ok := itemPrice(item); ok && slots.PriceRange != nil &&
		slots.PriceRange.Min != nil && slots.PriceRange.Max != nil {
		if price >= *slots.PriceRange.Min && price <= *slots.PriceRange.Max {
			reasons = append(reasons, "价格符合预算区间")
		}
	}
	if featured, _ := item["isFeatured"].(bool); featured {
		reasons = append(reasons, "平台精选好物")
	}
	if len(reasons) == 0 {
		return "综合匹配度较高"
	}
	return strings.Join(reasons, "；")
}

func slotKeywords(slots NLUSlots) []string {
	var out []string
	groups := [][]string{
		slots.Keyword, slots.Category, slots.Occasion, slots.Recipient,
		slots.Interest, slots.Style, slots.Attribute,
	}
	for _, group := range groups {
		for _, kw := range group {
			out = append(out, strings.ToLower(kw))
		}
	}
	return out
}

func priceBounds(pr *PriceRange) (min, max float64, bounded bool) {
	min, max = 0, math.MaxFloat64
	if pr == nil {
		return
	}
	if pr.Min != nil {
		min = *pr.Min
	}
	if pr.Max != nil {
		max = *pr.Max
	}
	bounded = pr.Max != nil && min < max
	return
}

func itemText(item map[string]interface{}) string {
	title, _ := item["title"].(string)
	slogan, _ := item["slogan"].(string)
	story, _ := item["story"].(string)
	return title + " " + slogan + " " + story
}

func itemPrice(item map[string]interface{}) (float64, bool) {
	price, ok := item["price"].(float64)
	return price, ok
}

func itemIDString(item map[string]interface{}) string {
	switch id := item["id"].(type) {
	case string:
		return id
	case float64:
		return strconv.FormatFloat(id, 'f', -1, 64)
	default:
		return ""
	}
}

func pickStrings(value interface{}) []string {
	list, ok := value.([]interface{})
	if !ok {
		return nil
	}
	var out []string
	for _, v := range list {
		if s, ok := v.(string); ok {
			if s = strings.TrimSpace(s); s != "" {
				out = append(out, s)
			}
		}
	}
	return out
}

// extractJSON cuts the first-to-last brace span out of a model reply that
// may wrap the JSON in prose or code fences.
func extractJSON(text string) string {
	start := strings.Index(text, "{")
	end := strings.LastIndex(text, "}")
	if start >= 0 && end >= start {
		return text[start : end+1]
	}
	return "{}"
}

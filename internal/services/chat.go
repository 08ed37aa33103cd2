package services

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log"
	"net/http"
	"regexp"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/google/uuid"

	"github.com/giftmind/giftmind-backend/internal/config"
	"github.com/giftmind/giftmind-backend/internal/models"
)

// ChatHistoryStore persists sessions and messages. The Mongo implementation
// lives in chat_history.go; tests substitute an in-memory one.
type ChatHistoryStore interface {
	EnsureSession(ctx context.Context, sessionID string, userID int64, title string) error
	SaveMessages(ctx context.Context, msgs ...models.ChatMessage) error
	SessionHistory(ctx context.Context, sessionID string, userID int64, limit int64) ([]models.ChatMessage, error)
	UpdateSessionTitle(ctx context.Context, sessionID, title string) error
	ListSessions(ctx context.Context, userID int64) ([]models.ChatSession, error)
	SessionMessages(ctx context.Context, sessionID string, userID int64, before *time.Time, limit int64) ([]models.ChatMessage, bool, error)
}

// llmMessage is the OpenAI-compatible wire shape for one turn.
type llmMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

// ChatService proxies the gift-assistant conversation to an OpenAI-compatible
// chat/completions endpoint, assembling a budgeted context window from the
// session history.
type ChatService struct {
	cfg        *config.Config
	httpClient *http.Client
	history    ChatHistoryStore
}

func NewChatService(cfg *config.Config, history ChatHistoryStore) *ChatService {
	return &ChatService{
		cfg:        cfg,
		httpClient: &http.Client{Timeout: 60 * time.Second},
		history:    history,
	}
}

// approxTokens deliberately over-estimates by counting runes, so the
// assembled window never exceeds the model's real budget.
func approxTokens(text string) int {
	return utf8.RuneCountInString(text)
}

func normalizeEnvPrompt(prompt string) string {
	return strings.TrimSpace(strings.ReplaceAll(prompt, `\n`, "\n"))
}

func normalizeEntrySource(source string) string {
	if source == models.EntrySourceItem || source == models.EntrySourceTheme {
		return source
	}
	return models.EntrySourceReminder
}

func normalizeEntryDetail(detail string) string {
	switch detail {
	case models.EntryDetailBoard, models.EntryDetailItemDetail,
		models.EntryDetailThemeDetail, models.EntryDetailGiftmindTab:
		return detail
	}
	return models.EntryDetailOther
}

func ensureText(value, fallback string) string {
	if trimmed := strings.TrimSpace(value); trimmed != "" {
		return trimmed
	}
	return fallback
}

func entryDetailDirective(detail string) string {
	switch detail {
	case models.EntryDetailBoard:
		return "入口：用户来自首页提醒卡片，优先确认提醒里的事件是否仍然有效，再顺着用户情绪继续追问。"
	case models.EntryDetailItemDetail:
		return "入口：用户在好物详情页发起对话，默认已经看过该礼物，需先确认送礼对象与需求，再决定是否沿用该礼物。"
	case models.EntryDetailThemeDetail:
		return "入口：用户从主题页发起对话，沿着该主题延展灵感，保持语气轻松口语化。"
	case models.EntryDetailGiftmindTab:
		return "入口：用户直接打开心礼 Tab，先简短寒暄，再通过提问了解送礼场景与情绪。"
	default:
		return "入口：常规对话，请主动探询背景后再提供建议。"
	}
}

func slotGuidance(status *models.PrioritySlotStatus) string {
	if status == nil {
		return ""
	}
	var missing []string
	if !status.TargetFilled {
		missing = append(missing, "送礼对象")
	}
	if !status.RelationshipFilled {
		missing = append(missing, "与对象关系")
	}
	if !status.EventFilled {
		missing = append(missing, "具体场景/事件")
	}
	if !status.BudgetFilled {
		missing = append(missing, "预算范围")
	}
	if !status.InterestsFilled {
		missing = append(missing, "兴趣偏好")
	}
	if len(missing) == 0 {
		return "槽位信息较为完整，但仍需用一到两句确认，再给出可执行的送礼建议。"
	}
	return fmt.Sprintf("以下槽位缺失：%s。请通过 2~3 轮提问补齐，补全前禁止直接推荐或推销。", strings.Join(missing, "、"))
}

// buildSystemPrompt composes the system turn: configured persona prompt,
// entry information from the client's priority context, entry directive and
// slot guidance.
func (s *ChatService) buildSystemPrompt(pc *models.PriorityContext) string {
	envPrompt := normalizeEnvPrompt(s.cfg.ChatSystemPrompt)
	useFallbackOutput := envPrompt == ""
	intro := envPrompt
	if intro == "" {
		intro = "你是礼物策划师。任何回答都要帮助用户完成送礼方案。"
	}

	var entrySource, entryDetail string
	if pc != nil {
		entrySource = normalizeEntrySource(pc.EntrySource)
		entryDetail = normalizeEntryDetail(pc.EntryDetail)
	} else {
		entrySource = models.EntrySourceReminder
		entryDetail = models.EntryDetailOther
	}

	infoLines := []string{fmt.Sprintf("类型：%s", entrySource)}
	if pc == nil {
		infoLines = append(infoLines, "未提供额外入口信息，请结合对话自动提炼需求。")
	} else {
		switch entrySource {
		case models.EntrySourceItem:
			item := pc.Item
			if item == nil {
				item = &models.PriorityContextItem{}
			}
			infoLines = append(infoLines, fmt.Sprintf("用户已选定礼物《%s》，价格 %s，亮点 %s，详情 %s。",
				ensureText(item.Title, "心仪礼物"),
				ensureText(item.Price, "价格待定"),
				ensureText(item.Slogan, "亮点待补充"),
				ensureText(item.Description, "暂无更多描述")))
			if rel := strings.TrimSpace(pc.Relationship); rel != "" {
				infoLines = append(infoLines, fmt.Sprintf("送礼关系：%s。", rel))
			}
			if interests := strings.TrimSpace(pc.Interests); interests != "" {
				infoLines = append(infoLines, fmt.Sprintf("受礼者兴趣：%s。", interests))
			}
			if budget := strings.TrimSpace(pc.Budget); budget != "" {
				infoLines = append(infoLines, fmt.Sprintf("整体预算提示：%s。", budget))
			}
		case models.EntrySourceTheme:
			theme := pc.Theme
			if theme == nil {
				theme = &models.PriorityContextTheme{}
			}
			infoLines = append(infoLines, fmt.Sprintf("用户希望围绕主题「%s」继续策划，主题故事：%s。洞察：%s。",
				ensureText(theme.Title, "灵感主题"),
				ensureText(theme.Story, "故事待补充"),
				ensureText(theme.Insight, "洞察待补充")))
		default:
			infoLines = append(infoLines, fmt.Sprintf("即将为【%s】（%s）的【%s】准备礼物，兴趣 %s，预算 %s，日期 %s。",
				ensureText(pc.TargetName, "重要的人"),
				ensureText(pc.Relationship, "关系待定"),
				ensureText(pc.EventName, "重要日子"),
				ensureText(pc.Interests, "兴趣未知"),
				ensureText(pc.Budget, "预算未设置"),
				ensureText(pc.EventDate, "日期待确认")))
			if pc.DaysLeft != nil {
				infoLines = append(infoLines, fmt.Sprintf("距离事件约 %d 天。", *pc.DaysLeft))
			}
			if note := strings.TrimSpace(pc.Note); note != "" {
				infoLines = append(infoLines, fmt.Sprintf("用户备注：%s。", note))
			}
		}
		if hint := strings.TrimSpace(pc.PriorityHint); hint != "" {
			infoLines = append(infoLines, fmt.Sprintf("额外提示：%s。", hint))
		}
	}

	sections := []string{intro, "[入口信息]\n" + strings.Join(infoLines, "\n")}
	sections = append(sections, entryDetailDirective(entryDetail))
	if pc != nil {
		if guidance := slotGuidance(pc.SlotStatus); guidance != "" {
			sections = append(sections, guidance)
		}
	}
	sections = append(sections, "对话策略：先共情回应，再通过 2~3 轮提问确认送礼对象、关系、场景与预算；槽位不足时严禁直接推荐或给出购买链接。")
	if useFallbackOutput {
		sections = append(sections, "输出要求：\n1. 先用简短的一句话确认背景。\n2. 接着给出送礼方案（推荐组合、场景、文案等），围绕入口信息展开。")
	}
	if pc != nil {
		if constraint := strings.TrimSpace(pc.ResponseConstraint); constraint != "" {
			sections = append(sections, fmt.Sprintf("输出长度限制：%s", constraint))
		}
	}

	return strings.Join(sections, "\n\n")
}

// buildMessages assembles the context window: system prompt, optional
// summary, then as many recent turns as the budget allows, newest last, and
// finally the user's current input (always included).
func (s *ChatService) buildMessages(ctx context.Context, userText, sessionID string, userID int64, pc *models.PriorityContext) []llmMessage {
	systemPrompt := s.buildSystemPrompt(pc)

	budget := s.cfg.ChatContextMaxTokens - s.cfg.ChatContextReserveTokens
	if budget < 1000 {
		budget = 1000
	}

	messages := []llmMessage{{Role: models.RoleSystem, Content: systemPrompt}}
	budget -= approxTokens(systemPrompt)

	var history []models.ChatMessage
	if sessionID != "" {
		var err error
		history, err = s.history.SessionHistory(ctx, sessionID, userID, 200)
		if err != nil {
			log.Printf("chat: failed to load session history, continuing without it: %v", err)
			history = nil
		}
	}
	if max := s.cfg.ChatContextMaxMessages; len(history) > max {
		history = history[len(history)-max:]
	}

	if s.cfg.ChatSummaryEnabled {
		if summary := s.buildSummary(ctx, history); summary != "" {
			if tokens := approxTokens(summary); tokens < budget {
				messages = append(messages, llmMessage{Role: models.RoleSystem, Content: "会话摘要：" + summary})
				budget -= tokens
			}
		}
	}

	for _, h := range history {
		role := h.Role
		if role != models.RoleSystem && role != models.RoleAssistant {
			role = models.RoleUser
		}
		tokens := approxTokens(h.Content)
		if tokens >= budget {
			break
		}
		messages = append(messages, llmMessage{Role: role, Content: h.Content})
		budget -= tokens
	}

	return append(messages, llmMessage{Role: models.RoleUser, Content: userText})
}

// buildSummary condenses the last few turns. The LLM variant is optional and
// falls back to a rule-based digest on any failure.
func (s *ChatService) buildSummary(ctx context.Context, history []models.ChatMessage) string {
	if len(history) == 0 {
		return ""
	}
	recent := history
	if len(recent) > 5 {
		recent = recent[len(recent)-5:]
	}
	var parts []string
	for _, h := range recent {
		parts = append(parts, strings.TrimSpace(h.Content))
	}
	latest := strings.Join(parts, "\n")

	maxTokens := s.cfg.ChatSummaryMaxTokens
	if s.cfg.ChatSummaryUseLLM && s.cfg.QwenAPIKey != "" {
		prompt := fmt.Sprintf("请生成一个不超过%d字的中文要点摘要，突出主题，避免冗余。只返回摘要文本。", maxTokens)
		summary, err := s.callModel(ctx, []llmMessage{
			{Role: models.RoleSystem, Content: prompt},
			{Role: models.RoleUser, Content: truncateRunes(latest, 1200)},
		}, 0.2)
		if err == nil {
			if summary = strings.TrimSpace(summary); summary != "" {
				return truncateRunes(summary, maxTokens)
			}
		}
	}

	var lines []string
	for _, line := range strings.Split(latest, "\n") {
		lines = append(lines, truncateRunes(line, 100))
	}
	limit := maxTokens
	if limit < 80 {
		limit = 80
	}
	return truncateRunes("摘要："+strings.Join(lines, "\n"), limit)
}

var titleBracketPattern = regexp.MustCompile(`^【(.*?)】`)
var titleSentencePattern = regexp.MustCompile(`^[^。！？!?\n]{1,40}[。！？!?]?`)

// deriveTitleRuleBased truncates the assistant's reply at the first sentence
// boundary, capped at 40 runes.
func deriveTitleRuleBased(text string) string {
	raw := strings.TrimSpace(text)
	raw = titleBracketPattern.ReplaceAllString(raw, "$1")
	raw = strings.Join(strings.Fields(raw), " ")

	title := titleSentencePattern.FindString(raw)
	if title == "" {
		title = truncateRunes(raw, 40)
	}
	title = strings.TrimSpace(title)
	if title == "" {
		return "新会话"
	}
	return title
}

func (s *ChatService) deriveTitle(ctx context.Context, replyText string) string {
	if !s.cfg.ChatTitleUseLLM || s.cfg.QwenAPIKey == "" {
		return deriveTitleRuleBased(replyText)
	}
	title, err := s.callModel(ctx, []llmMessage{
		{Role: models.RoleSystem, Content: "请根据用户与助手的对话生成一个不超过18字的中文标题，简洁且能体现主题。只返回标题本身。"},
		{Role: models.RoleUser, Content: truncateRunes(replyText, 500)},
	}, 0.2)
	if err != nil {
		return deriveTitleRuleBased(replyText)
	}
	if title = strings.TrimSpace(title); title == "" {
		return deriveTitleRuleBased(replyText)
	}
	return truncateRunes(title, 40)
}

type chatCompletionRequest struct {
	Model       string       `json:"model"`
	Messages    []llmMessage `json:"messages"`
	Temperature float64      `json:"temperature"`
	Stream      bool         `json:"stream"`
}

type chatCompletionResponse struct {
	Choices []struct {
		Message llmMessage `json:"message"`
	} `json:"choices"`
}

// completeChat performs a non-streaming completion call against the
// configured OpenAI-compatible endpoint. Provider failures surface as
// ErrProviderError. Shared between the chat and recommendation services.
func completeChat(ctx context.Context, cfg *config.Config, client *http.Client, messages []llmMessage, temperature float64) (string, error) {
	if cfg.QwenAPIKey == "" {
		return "", errors.New("QWEN_API_KEY not configured")
	}

	body, err := json.Marshal(chatCompletionRequest{
		Model:       cfg.QwenModel,
		Messages:    messages,
		Temperature: temperature,
		Stream:      false,
	})
	if err != nil {
		return "", err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, cfg.QwenAPIBase+"/chat/completions", bytes.NewReader(body))
	if err != nil {
		return "", err
	}
	req.Header.Set("Authorization", "Bearer "+cfg.QwenAPIKey)
	req.Header.Set("Content-Type", "application/json")

	resp, err := client.Do(req)
	if err != nil {
		return "", fmt.Errorf("%w: %v", ErrProviderError, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return "", fmt.Errorf("%w: completion endpoint returned %d", ErrProviderError, resp.StatusCode)
	}

	var parsed chatCompletionResponse
	if err := json.NewDecoder(resp.Body).Decode(&parsed); err != nil {
		return "", fmt.Errorf("%w: decode response: %v", ErrProviderError, err)
	}
	if len(parsed.Choices) == 0 {
		log.Println("chat: model returned no choices, using empty reply")
		return "", nil
	}
	return parsed.Choices[0].Message.Content, nil
}

func (s *ChatService) callModel(ctx context.Context, messages []llmMessage, temperature float64) (string, error) {
	return completeChat(ctx, s.cfg, s.httpClient, messages, temperature)
}

// SendMessage runs one conversation turn: assemble the window, call the
// model, persist both turns (best-effort) and return the assistant message.
func (s *ChatService) SendMessage(ctx context.Context, userID int64, message, sessionID string, pc *models.PriorityContext) (*models.ChatMessage, error) {
	msgs := s.buildMessages(ctx, message, sessionID, userID, pc)

	replyText, err := s.callModel(ctx, msgs, 0.7)
	if err != nil {
		return nil, err
	}

	sid := sessionID
	if sid == "" {
		sid = "sess_" + uuid.NewString()
	}
	now := time.Now().UTC()

	userMsg := models.ChatMessage{
		ID:        uuid.NewString(),
		SessionID: sid,
		UserID:    userID,
		Role:      models.RoleUser,
		Content:   message,
		CreatedAt: now,
	}
	assistantMsg := models.ChatMessage{
		ID:        uuid.NewString(),
		SessionID: sid,
		UserID:    userID,
		Role:      models.RoleAssistant,
		Content:   replyText,
		CreatedAt: now.Add(time.Millisecond),
	}

	// History persistence is best-effort: a storage failure must not lose
	// the reply the model already produced.
	if err := s.history.EnsureSession(ctx, sid, userID, "新会话"); err != nil {
		log.Printf("chat: failed to ensure session %s: %v", sid, err)
	} else if err := s.history.SaveMessages(ctx, userMsg, assistantMsg); err != nil {
		log.Printf("chat: failed to persist messages for session %s: %v", sid, err)
	}

	if title := s.deriveTitle(ctx, replyText); title != "" {
		if err := s.history.UpdateSessionTitle(ctx, sid, title); err != nil {
			log.Printf("chat: failed to update title for session %s: %v", sid, err)
		}
	}

	return &assistantMsg, nil
}

// AppendAssistantMessage records a structured assistant turn (a
// recommendation or plan payload, serialized as JSON) into the session
// history without calling the model.
func (s *ChatService) AppendAssistantMessage(ctx context.Context, userID int64, sessionID string, payload interface{}) error {
	raw, err := json.Marshal(payload)
	if err != nil {
		return err
	}
	if err := s.history.EnsureSession(ctx, sessionID, userID, "新会话"); err != nil {
		return err
	}
	return s.history.SaveMessages(ctx, models.ChatMessage{
		ID:        uuid.NewString(),
		SessionID: sessionID,
		UserID:    userID,
		Role:      models.RoleAssistant,
		Content:   string(raw),
		CreatedAt: time.Now().UTC(),
	})
}

// ListSessions returns the user's sessions, most recently updated first.
func (s *ChatService) ListSessions(ctx context.Context, userID int64) ([]models.ChatSession, error) {
	return s.history.ListSessions(ctx, userID)
}

// SessionMessages returns one page of a session's messages.
func (s *ChatService) SessionMessages(ctx context.Context, sessionID string, userID int64, before *time.Time, limit int64) ([]models.ChatMessage, bool, error) {
	return s.history.SessionMessages(ctx, sessionID, userID, before, limit)
}

func truncateRunes(s string, n int) string {
	runes := []rune(s)
	if len(runes) <= n {
		return s
	}
	return string(runes[:n])
}

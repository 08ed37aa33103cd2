package handlers

import (
	"log"
	"net/http"
	"strings"

	"github.com/giftmind/giftmind-backend/internal/middleware"
	"github.com/giftmind/giftmind-backend/internal/services"
)

type analyzeRequest struct {
	UserInput      string `json:"userInput"`
	ConversationID string `json:"conversationId"`
}

// AnalyzeInput extracts intent and slots from free-form input.
func AnalyzeInput(w http.ResponseWriter, r *http.Request) {
	if _, ok := middleware.UserFromContext(r.Context()); !ok {
		respondError(w, http.StatusUnauthorized, "Unauthorized")
		return
	}

	var req analyzeRequest
	if !decodeBody(w, r, &req) {
		return
	}
	if strings.TrimSpace(req.UserInput) == "" {
		respondError(w, http.StatusBadRequest, "userInput is required")
		return
	}

	result, err := recommendationService.Analyze(r.Context(), req.UserInput)
	if err != nil {
		log.Printf("analyze failed: %v", err)
		respondError(w, http.StatusInternalServerError, "模型服务未配置")
		return
	}
	respondOK(w, result)
}

// Recommend runs NLU over the input, scores the catalog and records the
// result as an assistant turn in the conversation.
func Recommend(w http.ResponseWriter, r *http.Request) {
	user, ok := middleware.UserFromContext(r.Context())
	if !ok {
		respondError(w, http.StatusUnauthorized, "Unauthorized")
		return
	}

	var req analyzeRequest
	if !decodeBody(w, r, &req) {
		return
	}
	if strings.TrimSpace(req.UserInput) == "" || strings.TrimSpace(req.ConversationID) == "" {
		respondError(w, http.StatusBadRequest, "userInput and conversationId are required")
		return
	}

	result, err := recommendationService.RecommendFromInput(r.Context(), req.UserInput)
	if err != nil {
		log.Printf("recommend failed for user %d: %v", user.ID, err)
		respondError(w, http.StatusInternalServerError, "推荐失败")
		return
	}

	// Recording the turn is best-effort: the recommendation itself already
	// succeeded.
	if err := chatService.AppendAssistantMessage(r.Context(), user.ID, req.ConversationID, map[string]interface{}{
		"type":         "recommendation",
		"version":      1,
		"intent":       result.Intent,
		"slots":        result.Slots,
		"items":        result.Items,
		"explanations": result.Explanations,
	}); err != nil {
		log.Printf("recommend: failed to record history for user %d: %v", user.ID, err)
	}
	respondOK(w, result)
}

type planGiftRequest struct {
	ConversationID  string `json:"conversationId"`
	ItemID          int64  `json:"itemId"`
	ItemTitle       string `json:"itemTitle"`
	Relationship    string `json:"relationship"`
	ItemPrice       string `json:"itemPrice"`
	ItemSlogan      string `json:"itemSlogan"`
	ItemDescription string `json:"itemDescription"`
	ItemCover       string `json:"itemCover"`
}

// PlanGift generates a structured gift plan for one item and records it as
// an assistant turn in the conversation.
func PlanGift(w http.ResponseWriter, r *http.Request) {
	user, ok := middleware.UserFromContext(r.Context())
	if !ok {
		respondError(w, http.StatusUnauthorized, "Unauthorized")
		return
	}

	var req planGiftRequest
	if !decodeBody(w, r, &req) {
		return
	}
	if req.ItemID == 0 || strings.TrimSpace(req.ItemTitle) == "" || strings.TrimSpace(req.ConversationID) == "" {
		respondError(w, http.StatusBadRequest, "itemId, itemTitle and conversationId are required")
		return
	}

	plan := recommendationService.GeneratePlan(r.Context(), services.GiftPlanInput{
		ItemID:          req.ItemID,
		ItemTitle:       req.ItemTitle,
		Relationship:    req.Relationship,
		ItemPrice:       req.ItemPrice,
		ItemSlogan:      req.ItemSlogan,
		ItemDescription: req.ItemDescription,
	})

	if err := chatService.AppendAssistantMessage(r.Context(), user.ID, req.ConversationID, map[string]interface{}{
		"type":            "planning",
		"version":         1,
		"itemId":          req.ItemID,
		"itemTitle":       req.ItemTitle,
		"itemPrice":       req.ItemPrice,
		"itemSlogan":      req.ItemSlogan,
		"itemDescription": req.ItemDescription,
		"itemCover":       req.ItemCover,
		"plan":            plan,
	}); err != nil {
		log.Printf("planGift: failed to record history for user %d: %v", user.ID, err)
	}
	respondOK(w, plan)
}

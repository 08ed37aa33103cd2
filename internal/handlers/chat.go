package handlers

import (
	"log"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/giftmind/giftmind-backend/internal/middleware"
	"github.com/giftmind/giftmind-backend/internal/models"
)

type sendMessageRequest struct {
	Message         string                  `json:"message"`
	SessionID       string                  `json:"sessionId"`
	PriorityContext *models.PriorityContext `json:"priorityContext"`
}

// SendChatMessage runs one assistant turn and returns the reply.
func SendChatMessage(w http.ResponseWriter, r *http.Request) {
	user, ok := middleware.UserFromContext(r.Context())
	if !ok {
		respondError(w, http.StatusUnauthorized, "Unauthorized")
		return
	}

	var req sendMessageRequest
	if !decodeBody(w, r, &req) {
		return
	}
	if strings.TrimSpace(req.Message) == "" {
		respondError(w, http.StatusBadRequest, "message is required")
		return
	}

	reply, err := chatService.SendMessage(r.Context(), user.ID, req.Message, req.SessionID, req.PriorityContext)
	if err != nil {
		log.Printf("sendChatMessage failed for user %d: %v", user.ID, err)
		respondError(w, http.StatusBadGateway, "对话服务暂时不可用，请稍后再试")
		return
	}
	respondOK(w, reply)
}

// ListChatSessions returns the user's sessions, most recent first.
func ListChatSessions(w http.ResponseWriter, r *http.Request) {
	user, ok := middleware.UserFromContext(r.Context())
	if !ok {
		respondError(w, http.StatusUnauthorized, "Unauthorized")
		return
	}

	sessions, err := chatService.ListSessions(r.Context(), user.ID)
	if err != nil {
		log.Printf("listChatSessions failed for user %d: %v", user.ID, err)
		respondError(w, http.StatusInternalServerError, "Failed to list sessions")
		return
	}
	respondOK(w, sessions)
}

type sessionMessagesPayload struct {
	List    []models.ChatMessage `json:"list"`
	HasMore bool                 `json:"hasMore"`
}

// SessionMessages returns one page of a session's history, oldest first
// within the page. Pagination scrolls backwards via the before parameter.
func SessionMessages(w http.ResponseWriter, r *http.Request) {
	user, ok := middleware.UserFromContext(r.Context())
	if !ok {
		respondError(w, http.StatusUnauthorized, "Unauthorized")
		return
	}
	sessionID := chi.URLParam(r, "id")

	q := r.URL.Query()
	var before *time.Time
	if raw := q.Get("before"); raw != "" {
		t, err := time.Parse(time.RFC3339, raw)
		if err != nil {
			respondError(w, http.StatusBadRequest, "Invalid before timestamp")
			return
		}
		before = &t
	}
	limit, _ := strconv.ParseInt(q.Get("limit"), 10, 64)

	msgs, hasMore, err := chatService.SessionMessages(r.Context(), sessionID, user.ID, before, limit)
	if err != nil {
		log.Printf("sessionMessages %s failed for user %d: %v", sessionID, user.ID, err)
		respondError(w, http.StatusInternalServerError, "Failed to load messages")
		return
	}
	respondOK(w, sessionMessagesPayload{List: msgs, HasMore: hasMore})
}

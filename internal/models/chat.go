package models

import "time"

// Chat roles, matching the OpenAI-compatible wire format.
const (
	RoleSystem    = "system"
	RoleUser      = "user"
	RoleAssistant = "assistant"
)

// ChatMessage is one turn of a conversation, persisted in MongoDB.
type ChatMessage struct {
	ID        string    `bson:"_id" json:"id"`
	SessionID string    `bson:"session_id" json:"sessionId"`
	UserID    int64     `bson:"user_id" json:"-"`
	Role      string    `bson:"role" json:"role"`
	Content   string    `bson:"content" json:"content"`
	CreatedAt time.Time `bson:"created_at" json:"createdAt"`
}

// ChatSession groups messages and carries a derived title.
type ChatSession struct {
	ID        string    `bson:"_id" json:"id"`
	UserID    int64     `bson:"user_id" json:"userId"`
	Title     string    `bson:"title" json:"title"`
	CreatedAt time.Time `bson:"created_at" json:"createdAt"`
	UpdatedAt time.Time `bson:"updated_at" json:"updatedAt"`
}

// Entry sources for the chat priority context.
const (
	EntrySourceReminder = "reminder"
	EntrySourceItem     = "item"
	EntrySourceTheme    = "theme"
)

// Entry details describe which screen opened the conversation.
const (
	EntryDetailBoard       = "xiaoxiboard"
	EntryDetailItemDetail  = "item_detail"
	EntryDetailThemeDetail = "theme_detail"
	EntryDetailGiftmindTab = "giftmind_tab"
	EntryDetailOther       = "other"
)

// PrioritySlotStatus reports which gift-planning slots the client already
// collected; missing slots steer the system prompt toward questioning.
type PrioritySlotStatus struct {
	TargetFilled       bool `json:"targetFilled"`
	RelationshipFilled bool `json:"relationshipFilled"`
	EventFilled        bool `json:"eventFilled"`
	BudgetFilled       bool `json:"budgetFilled"`
	InterestsFilled    bool `json:"interestsFilled"`
}

// PriorityContextItem carries the CMS item a conversation was started from.
type PriorityContextItem struct {
	ID          string `json:"id,omitempty"`
	Title       string `json:"title,omitempty"`
	Price       string `json:"price,omitempty"`
	Slogan      string `json:"slogan,omitempty"`
	Description string `json:"description,omitempty"`
}

// PriorityContextTheme carries the CMS theme a conversation was started from.
type PriorityContextTheme struct {
	ID      string `json:"id,omitempty"`
	Title   string `json:"title,omitempty"`
	Story   string `json:"story,omitempty"`
	Insight string `json:"insight,omitempty"`
}

// PriorityContext is the optional client-side context sent with a chat
// message; it shapes the system prompt but is never persisted.
type PriorityContext struct {
	EntrySource        string                `json:"entrySource,omitempty"`
	EntryDetail        string                `json:"entryDetail,omitempty"`
	TargetName         string                `json:"targetName,omitempty"`
	EventName          string                `json:"eventName,omitempty"`
	EventDate          string                `json:"eventDate,omitempty"`
	DaysLeft           *int                  `json:"daysLeft,omitempty"`
	Note               string                `json:"note,omitempty"`
	Relationship       string                `json:"relationship,omitempty"`
	Interests          string                `json:"interests,omitempty"`
	Budget             string                `json:"budget,omitempty"`
	PriorityHint       string                `json:"priorityHint,omitempty"`
	ResponseConstraint string                `json:"responseConstraint,omitempty"`
	SlotStatus         *PrioritySlotStatus   `json:"slotStatus,omitempty"`
	Item               *PriorityContextItem  `json:"item,omitempty"`
	Theme              *PriorityContextTheme `json:"theme,omitempty"`
}

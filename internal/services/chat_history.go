package services

import (
	"context"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"

	"github.com/giftmind/giftmind-backend/internal/database"
	"github.com/giftmind/giftmind-backend/internal/models"
)

const (
	chatSessionsCollection = "chat_sessions"
	chatMessagesCollection = "chat_messages"
)

// EnsureChatIndexes configures indexes for the chat collections.
// Called on startup from main after Mongo has connected.
func EnsureChatIndexes(ctx context.Context) error {
	messages := database.MongoDB.Collection(chatMessagesCollection)

	// Compound index on (session_id, created_at) to support efficient
	// history loads and pagination.
	indexModels := []mongo.IndexModel{
		{
			Keys: bson.D{
				{Key: "session_id", Value: 1},
				{Key: "created_at", Value: -1},
			},
			Options: options.Index().SetName("idx_session_created"),
		},
	}
	for _, m := range indexModels {
		if _, err := messages.Indexes().CreateOne(ctx, m); err != nil {
			return err
		}
	}

	sessions := database.MongoDB.Collection(chatSessionsCollection)
	_, err := sessions.Indexes().CreateOne(ctx, mongo.IndexModel{
		Keys: bson.D{
			{Key: "user_id", Value: 1},
			{Key: "updated_at", Value: -1},
		},
		Options: options.Index().SetName("idx_user_updated"),
	})
	return err
}

// MongoChatHistory is the MongoDB-backed ChatHistoryStore.
type MongoChatHistory struct{}

func NewMongoChatHistory() *MongoChatHistory {
	return &MongoChatHistory{}
}

// EnsureSession upserts the session document, bumping updated_at so the
// session list stays sorted by recency.
func (h *MongoChatHistory) EnsureSession(ctx context.Context, sessionID string, userID int64, title string) error {
	col := database.MongoDB.Collection(chatSessionsCollection)
	now := time.Now().UTC()
	_, err := col.UpdateOne(ctx,
		bson.M{"_id": sessionID, "user_id": userID},
		bson.M{
			"$set":         bson.M{"updated_at": now},
			"$setOnInsert": bson.M{"title": title, "created_at": now},
		},
		options.Update().SetUpsert(true))
	return err
}

func (h *MongoChatHistory) SaveMessages(ctx context.Context, msgs ...models.ChatMessage) error {
	if len(msgs) == 0 {
		return nil
	}
	docs := make([]interface{}, 0, len(msgs))
	for _, m := range msgs {
		if m.CreatedAt.IsZero() {
			m.CreatedAt = time.Now().UTC()
		}
		docs = append(docs, m)
	}
	col := database.MongoDB.Collection(chatMessagesCollection)
	_, err := col.InsertMany(ctx, docs)
	return err
}

// SessionHistory returns up to limit of the session's most recent messages,
// oldest-first, for context-window assembly.
func (h *MongoChatHistory) SessionHistory(ctx context.Context, sessionID string, userID int64, limit int64) ([]models.ChatMessage, error) {
	if limit <= 0 {
		limit = 200
	}
	col := database.MongoDB.Collection(chatMessagesCollection)

	opts := options.Find().
		SetSort(bson.D{{Key: "created_at", Value: -1}}).
		SetLimit(limit)

	cur, err := col.Find(ctx, bson.M{"session_id": sessionID, "user_id": userID}, opts)
	if err != nil {
		return nil, err
	}
	defer cur.Close(ctx)

	var msgs []models.ChatMessage
	for cur.Next(ctx) {
		var m models.ChatMessage
		if err := cur.Decode(&m); err != nil {
			continue
		}
		msgs = append(msgs, m)
	}
	if err := cur.Err(); err != nil {
		return nil, err
	}

	// Reverse to oldest-first.
	for i, j := 0, len(msgs)-1; i < j; i, j = i+1, j-1 {
		msgs[i], msgs[j] = msgs[j], msgs[i]
	}
	return msgs, nil
}

func (h *MongoChatHistory) UpdateSessionTitle(ctx context.Context, sessionID, title string) error {
	col := database.MongoDB.Collection(chatSessionsCollection)
	_, err := col.UpdateOne(ctx,
		bson.M{"_id": sessionID},
		bson.M{"$set": bson.M{"title": title, "updated_at": time.Now().UTC()}})
	return err
}

// ListSessions returns the user's sessions, most recently updated first.
func (h *MongoChatHistory) ListSessions(ctx context.Context, userID int64) ([]models.ChatSession, error) {
	col := database.MongoDB.Collection(chatSessionsCollection)

	opts := options.Find().SetSort(bson.D{{Key: "updated_at", Value: -1}})
	cur, err := col.Find(ctx, bson.M{"user_id": userID}, opts)
	if err != nil {
		return nil, err
	}
	defer cur.Close(ctx)

	sessions := []models.ChatSession{}
	for cur.Next(ctx) {
		var s models.ChatSession
		if err := cur.Decode(&s); err != nil {
			continue
		}
		sessions = append(sessions, s)
	}
	return sessions, cur.Err()
}

// SessionMessages returns paginated history for a session.
// Pagination is based on created_at + limit (newest-first scrolling), with
// the page itself returned oldest-first for the UI.
func (h *MongoChatHistory) SessionMessages(ctx context.Context, sessionID string, userID int64, before *time.Time, limit int64) ([]models.ChatMessage, bool, error) {
	if limit <= 0 || limit > 100 {
		limit = 50
	}
	col := database.MongoDB.Collection(chatMessagesCollection)

	filter := bson.M{"session_id": sessionID, "user_id": userID}
	if before != nil {
		filter["created_at"] = bson.M{"$lt": before.UTC()}
	}

	opts := options.Find().
		SetSort(bson.D{{Key: "created_at", Value: -1}}).
		SetLimit(limit + 1)

	cur, err := col.Find(ctx, filter, opts)
	if err != nil {
		return nil, false, err
	}
	defer cur.Close(ctx)

	var msgs []models.ChatMessage
	for cur.Next(ctx) {
		var m models.ChatMessage
		if err := cur.Decode(&m); err != nil {
			continue
		}
		msgs = append(msgs, m)
	}
	if err := cur.Err(); err != nil {
		return nil, false, err
	}

	hasMore := int64(len(msgs)) > limit
	if hasMore {
		msgs = msgs[:len(msgs)-1]
	}

	for i, j := 0, len(msgs)-1; i < j; i, j = i+1, j-1 {
		msgs[i], msgs[j] = msgs[j], msgs[i]
	}
	return msgs, hasMore, nil
}

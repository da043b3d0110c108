package store

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/cabanera/booking-assistant/internal/model"
)

// ErrNotFound is returned when a looked-up record does not exist.
var ErrNotFound = errors.New("record not found")

func translateErr(err error) error {
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return ErrNotFound
	}
	return err
}

// GetConversation loads a conversation and its most recent messages, capped
// at historyLimit, in chronological order.
func (s *Store) GetConversation(ctx context.Context, id string, historyLimit int) (*model.Conversation, []model.ChatMessage, error) {
	var conv model.Conversation
	if err := s.db.WithContext(ctx).First(&conv, "id = ?", id).Error; err != nil {
		return nil, nil, translateErr(err)
	}

	var messages []model.ChatMessage
	q := s.db.WithContext(ctx).
		Where("conversation_id = ?", id).
		Order("created_at DESC")
	if historyLimit > 0 {
		q = q.Limit(historyLimit)
	}
	if err := q.Find(&messages).Error; err != nil {
		return nil, nil, err
	}

	// Reverse back into chronological order.
	for i, j := 0, len(messages)-1; i < j; i, j = i+1, j-1 {
		messages[i], messages[j] = messages[j], messages[i]
	}
	return &conv, messages, nil
}

// CreateConversation inserts a new conversation, assigning an id and
// timestamps when absent.
func (s *Store) CreateConversation(ctx context.Context, conv *model.Conversation) error {
	if conv.ID == "" {
		conv.ID = uuid.Must(uuid.NewV7()).String()
	}
	now := time.Now().UTC()
	if conv.CreatedAt.IsZero() {
		conv.CreatedAt = now
	}
	if conv.UpdatedAt.IsZero() {
		conv.UpdatedAt = now
	}
	return s.db.WithContext(ctx).Create(conv).Error
}

// AppendMessage inserts a message and bumps the parent conversation's
// updated_at.
func (s *Store) AppendMessage(ctx context.Context, msg *model.ChatMessage) error {
	if msg.ID == "" {
		msg.ID = uuid.Must(uuid.NewV7()).String()
	}
	if msg.CreatedAt.IsZero() {
		msg.CreatedAt = time.Now().UTC()
	}
	if err := s.db.WithContext(ctx).Create(msg).Error; err != nil {
		return err
	}
	return s.db.WithContext(ctx).
		Model(&model.Conversation{}).
		Where("id = ?", msg.ConversationID).
		Update("updated_at", msg.CreatedAt).Error
}

// TouchConversation bumps a conversation's updated_at to now.
func (s *Store) TouchConversation(ctx context.Context, id string) error {
	return s.db.WithContext(ctx).
		Model(&model.Conversation{}).
		Where("id = ?", id).
		Update("updated_at", time.Now().UTC()).Error
}

// CountRecentToolUses counts assistant messages in a conversation that
// recorded the given tool since the cutoff. Feeds the availability-check
// rate limit.
func (s *Store) CountRecentToolUses(ctx context.Context, conversationID, tool string, since time.Time) (int64, error) {
	var count int64
	err := s.db.WithContext(ctx).
		Model(&model.ChatMessage{}).
		Where("conversation_id = ? AND role = ? AND tool = ? AND created_at >= ?",
			conversationID, model.RoleAssistant, tool, since).
		Count(&count).Error
	return count, err
}

// ListConversations returns the most recently active conversations for a
// venue, newest first, capped at limit.
func (s *Store) ListConversations(ctx context.Context, venueID string, limit int) ([]model.Conversation, error) {
	if limit <= 0 {
		limit = 50
	}
	var conversations []model.Conversation
	err := s.db.WithContext(ctx).
		Where("venue_id = ?", venueID).
		Order("updated_at DESC").
		Limit(limit).
		Find(&conversations).Error
	return conversations, err
}

// GetConversationWithMessages loads a conversation with all its messages in
// chronological order.
func (s *Store) GetConversationWithMessages(ctx context.Context, id string) (*model.Conversation, error) {
	var conv model.Conversation
	err := s.db.WithContext(ctx).
		Preload("Messages", func(db *gorm.DB) *gorm.DB {
			return db.Order("created_at ASC")
		}).
		First(&conv, "id = ?", id).Error
	if err != nil {
		return nil, translateErr(err)
	}
	return &conv, nil
}

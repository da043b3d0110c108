// Package model defines data structures for the booking assistant.
package model

import (
	"time"
)

// Role represents the role of a message sender.
type Role string

const (
	RoleUser      Role = "user"
	RoleAssistant Role = "assistant"
	RoleSystem    Role = "system"
)

// Conversation source channels.
const (
	SourceWeb             = "web"
	SourceWebhookWhatsApp = "webhook-whatsapp"
	SourceWebhookMeta     = "webhook-meta"
)

// Conversation represents a guest chat thread for a venue.
type Conversation struct {
	ID         string        `gorm:"primaryKey" json:"id"`
	VenueID    string        `gorm:"index" json:"venue_id"`
	Source     string        `json:"source"`
	ExternalID string        `json:"external_id,omitempty"`
	Phone      string        `json:"phone,omitempty"`
	Name       string        `json:"name,omitempty"`
	CreatedAt  time.Time     `json:"created_at"`
	UpdatedAt  time.Time     `gorm:"index" json:"updated_at"`
	Messages   []ChatMessage `gorm:"foreignKey:ConversationID" json:"messages,omitempty"`
}

// ChatMessage is one entry in a conversation. Immutable once created,
// ordered by creation time.
type ChatMessage struct {
	ID             string `gorm:"primaryKey" json:"id"`
	ConversationID string `gorm:"index" json:"conversation_id"`
	Role           Role   `json:"role"`
	Content        string `json:"content"`

	// Assistant metadata (empty for user messages)
	Provider   string `json:"provider,omitempty"`
	Model      string `json:"model,omitempty"`
	TokensUsed int    `json:"tokens_used,omitempty"`
	// Tool records which domain tool (if any) the assistant invoked while
	// producing this message. Queried for availability rate limiting.
	Tool string `gorm:"index" json:"tool,omitempty"`

	CreatedAt time.Time `gorm:"index" json:"created_at"`
}

// ChatInput carries one normalized inbound guest message, after webhook
// payload extraction.
type ChatInput struct {
	VenueID        string
	Message        string
	ConversationID string
	Source         string
	ContactType    string
	ContactValue   string
	Phone          string
	ExternalID     string
	DisplayName    string
}

// ChatResult is the outcome of one assistant turn.
type ChatResult struct {
	ConversationID string `json:"conversation_id"`
	Message        string `json:"message"`
	Provider       string `json:"provider"`
	Model          string `json:"model"`
	TokensUsed     int    `json:"tokens_used"`
}

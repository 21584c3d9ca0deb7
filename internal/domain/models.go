// Package domain defines the persistence models for users, private
// conversations, and chat messages. These types are mapped with GORM and
// form the core data layer of the chat backend.
package domain

import (
	"strconv"
	"time"
)

// User is a registered identity. Every other entity references it.
//
// Fields:
//   - ID: auto-increment numeric primary key.
//   - Name: display name shown in chats and notifications.
//   - Username: unique slug handle (rendered as "@username").
//   - Email: unique login identifier (stored lower-cased).
//   - PasswordHash: bcrypt hash, never serialized.
//   - AvatarURL: optional avatar reference; a default asset is used when nil.
type User struct {
	ID           uint      `json:"id"         gorm:"primaryKey"`
	Name         string    `json:"name"       gorm:"type:varchar(100);not null"`
	Username     string    `json:"username"   gorm:"type:varchar(60);not null;uniqueIndex:ux_users_username"`
	Email        string    `json:"email"      gorm:"type:varchar(254);not null;uniqueIndex:ux_users_email"`
	Phone        string    `json:"phone"      gorm:"type:varchar(20)"`
	PasswordHash string    `json:"-"          gorm:"type:varchar(100);not null"`
	AvatarURL    *string   `json:"avatar_url,omitempty" gorm:"type:varchar(500)"`
	Bio          string    `json:"bio"        gorm:"type:text"`
	Location     string    `json:"location"   gorm:"type:varchar(100)"`
	CreatedAt    time.Time `json:"created_at"`
	UpdatedAt    time.Time `json:"updated_at"`
}

// TableName returns the database table name for User.
func (User) TableName() string { return "users" }

// Conversation is a private conversation between exactly two users.
//
// ConversationKey is the natural identity of the pair (see ConversationKey)
// and is unique, so at most one conversation exists per unordered pair.
// UpdatedAt is a recency marker touched on contact, send and global delete.
type Conversation struct {
	ID              uint      `json:"id"         gorm:"primaryKey"`
	ConversationKey string    `json:"-"          gorm:"type:varchar(64);not null;uniqueIndex:ux_conversation_key"`
	CreatedAt       time.Time `json:"created_at"`
	UpdatedAt       time.Time `json:"updated_at" gorm:"index:idx_conversations_updated"`

	// Members are the participant rows; cascade-deleted with the conversation.
	Members []ConversationParticipant `json:"-" gorm:"foreignKey:ConversationID;references:ID;constraint:OnUpdate:CASCADE,OnDelete:CASCADE"`
}

// TableName returns the database table name for Conversation.
func (Conversation) TableName() string { return "conversations" }

// HasParticipant reports whether userID is among the loaded members.
func (c *Conversation) HasParticipant(userID uint) bool {
	for _, m := range c.Members {
		if m.UserID == userID {
			return true
		}
	}
	return false
}

// Other returns the loaded participant that is not userID, or nil.
func (c *Conversation) Other(userID uint) *User {
	for i := range c.Members {
		if c.Members[i].UserID != userID && c.Members[i].User.ID != 0 {
			return &c.Members[i].User
		}
	}
	return nil
}

// ConversationParticipant links a user to a conversation.
type ConversationParticipant struct {
	ConversationID uint      `json:"conversation_id" gorm:"primaryKey;autoIncrement:false"`
	UserID         uint      `json:"user_id"         gorm:"primaryKey;autoIncrement:false;index:idx_participant_user"`
	CreatedAt      time.Time `json:"created_at"`

	User User `json:"-" gorm:"foreignKey:UserID;references:ID;constraint:OnUpdate:CASCADE,OnDelete:CASCADE"`
}

// TableName returns the database table name for ConversationParticipant.
func (ConversationParticipant) TableName() string { return "conversation_participants" }

// Message is a single chat entry in a conversation, ordered by CreatedAt.
//
// Deleting "for everyone" never erases Text; read paths substitute the
// placeholder from DeletedLabel instead. Per-recipient hiding lives in
// MessageHide.
type Message struct {
	ID                   uint       `json:"id"              gorm:"primaryKey"`
	ConversationID       uint       `json:"conversation_id" gorm:"not null;index:idx_conversation_msgs,priority:1"`
	AuthorID             uint       `json:"author_id"       gorm:"not null;index"`
	Text                 string     `json:"text"            gorm:"type:text;not null"`
	CreatedAt            time.Time  `json:"created_at"      gorm:"index:idx_conversation_msgs,priority:2"`
	DeletedForEveryone   bool       `json:"deleted_for_everyone" gorm:"not null;default:false"`
	DeletedForEveryoneAt *time.Time `json:"deleted_for_everyone_at,omitempty"`
	DeletedByID          *uint      `json:"deleted_by_id,omitempty"`

	Author       User         `json:"-" gorm:"foreignKey:AuthorID;references:ID;constraint:OnUpdate:CASCADE,OnDelete:CASCADE"`
	DeletedBy    *User        `json:"-" gorm:"foreignKey:DeletedByID;references:ID;constraint:OnDelete:SET NULL"`
	Conversation Conversation `json:"-" gorm:"foreignKey:ConversationID;references:ID;constraint:OnUpdate:CASCADE,OnDelete:CASCADE"`
}

// TableName returns the database table name for Message.
func (Message) TableName() string { return "messages" }

// DeletedLabel is the placeholder shown in place of a message deleted for
// everyone. The deleting user's name is used when loaded.
func (m *Message) DeletedLabel() string {
	name := "Usuário"
	if m.DeletedBy != nil && m.DeletedBy.Name != "" {
		name = m.DeletedBy.Name
	}
	return name + " apagou esta mensagem."
}

// MessageHide records that a user deleted a message only for themselves.
type MessageHide struct {
	MessageID uint      `gorm:"primaryKey;autoIncrement:false"`
	UserID    uint      `gorm:"primaryKey;autoIncrement:false;index:idx_message_hides_user"`
	CreatedAt time.Time

	Message Message `gorm:"foreignKey:MessageID;references:ID;constraint:OnUpdate:CASCADE,OnDelete:CASCADE"`
}

// TableName returns the database table name for MessageHide.
func (MessageHide) TableName() string { return "message_hides" }

// ConversationKey returns the canonical key for an unordered user pair:
// both ids rendered in decimal, sorted as strings and joined by "|".
func ConversationKey(a, b uint) string {
	sa := strconv.FormatUint(uint64(a), 10)
	sb := strconv.FormatUint(uint64(b), 10)
	if sb < sa {
		sa, sb = sb, sa
	}
	return sa + "|" + sb
}

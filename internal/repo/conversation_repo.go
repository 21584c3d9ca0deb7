// Package repo implements the data persistence layer for domain entities,
// backed by GORM. This file provides repository functions for conversations
// and their participant rows.
//
// Functions:
//
//   - FindConversationByKey(ctx, db, key) -> *domain.Conversation, error
//     Looks a conversation up by its unique pair key.
//
//   - CreateConversation(ctx, db, key, now) -> *domain.Conversation, error
//     Inserts a bare conversation row. A concurrent creator surfaces as a
//     unique violation (see IsDuplicate).
//
//   - ParticipantIDs / AddParticipants
//     Read and idempotently extend the participant set.
//
//   - GetConversation(ctx, db, id) -> *domain.Conversation, error
//     Fetches a conversation with members and their users preloaded.
//
//   - ListConversationsForUser(ctx, db, userID) -> []domain.Conversation, error
//     All conversations the user participates in, most recently touched first.
package repo

import (
	"context"
	"time"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/coony/chat-backend/internal/domain"
)

// FindConversationByKey returns the conversation for key or ErrNotFound.
func FindConversationByKey(ctx context.Context, db *gorm.DB, key string) (*domain.Conversation, error) {
	var c domain.Conversation
	if err := db.WithContext(ctx).Where("conversation_key = ?", key).First(&c).Error; err != nil {
		return nil, err
	}
	return &c, nil
}

// CreateConversation inserts a conversation row for key.
func CreateConversation(ctx context.Context, db *gorm.DB, key string, now time.Time) (*domain.Conversation, error) {
	c := &domain.Conversation{ConversationKey: key, CreatedAt: now, UpdatedAt: now}
	if err := db.WithContext(ctx).Omit(clause.Associations).Create(c).Error; err != nil {
		return nil, err
	}
	return c, nil
}

// ParticipantIDs returns the user ids linked to a conversation.
func ParticipantIDs(ctx context.Context, db *gorm.DB, conversationID uint) ([]uint, error) {
	var ids []uint
	err := db.WithContext(ctx).
		Model(&domain.ConversationParticipant{}).
		Where("conversation_id = ?", conversationID).
		Order("user_id ASC").
		Pluck("user_id", &ids).Error
	return ids, err
}

// AddParticipants links userIDs to the conversation. Existing links are left
// untouched, so concurrent callers converge on the same set.
func AddParticipants(ctx context.Context, db *gorm.DB, conversationID uint, userIDs []uint, now time.Time) error {
	if len(userIDs) == 0 {
		return nil
	}
	rows := make([]domain.ConversationParticipant, 0, len(userIDs))
	for _, uid := range userIDs {
		rows = append(rows, domain.ConversationParticipant{ConversationID: conversationID, UserID: uid, CreatedAt: now})
	}
	return db.WithContext(ctx).
		Omit(clause.Associations).
		Clauses(clause.OnConflict{DoNothing: true}).
		Create(&rows).Error
}

// TouchConversation moves the recency marker to now.
func TouchConversation(ctx context.Context, db *gorm.DB, conversationID uint, now time.Time) error {
	res := db.WithContext(ctx).
		Model(&domain.Conversation{}).
		Where("id = ?", conversationID).
		UpdateColumn("updated_at", now)
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return gorm.ErrRecordNotFound
	}
	return nil
}

// GetConversation fetches a conversation with its members and users.
func GetConversation(ctx context.Context, db *gorm.DB, id uint) (*domain.Conversation, error) {
	var c domain.Conversation
	err := db.WithContext(ctx).
		Preload("Members", func(tx *gorm.DB) *gorm.DB { return tx.Order("user_id ASC") }).
		Preload("Members.User").
		First(&c, id).Error
	if err != nil {
		return nil, err
	}
	return &c, nil
}

// IsParticipant reports whether userID is linked to the conversation.
func IsParticipant(ctx context.Context, db *gorm.DB, conversationID, userID uint) (bool, error) {
	var n int64
	err := db.WithContext(ctx).
		Model(&domain.ConversationParticipant{}).
		Where("conversation_id = ? AND user_id = ?", conversationID, userID).
		Count(&n).Error
	return n > 0, err
}

// ListConversationsForUser returns the user's conversations ordered by
// updated_at descending, members preloaded.
func ListConversationsForUser(ctx context.Context, db *gorm.DB, userID uint) ([]domain.Conversation, error) {
	out := []domain.Conversation{}
	err := db.WithContext(ctx).
		Where("id IN (?)", db.Model(&domain.ConversationParticipant{}).
			Select("conversation_id").
			Where("user_id = ?", userID)).
		Preload("Members", func(tx *gorm.DB) *gorm.DB { return tx.Order("user_id ASC") }).
		Preload("Members.User").
		Order("updated_at DESC, id DESC").
		Find(&out).Error
	return out, err
}

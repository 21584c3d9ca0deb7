// Package repo implements the data persistence layer for domain entities,
// backed by GORM. This file provides repository functions for the Message
// model and the per-user hide set.
package repo

import (
	"context"
	"time"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/coony/chat-backend/internal/domain"
)

// notHiddenFor excludes messages the viewer deleted for themselves.
const notHiddenFor = "NOT EXISTS (SELECT 1 FROM message_hides h WHERE h.message_id = messages.id AND h.user_id = ?)"

// CreateMessage inserts a new message row.
func CreateMessage(ctx context.Context, db *gorm.DB, conversationID, authorID uint, text string, now time.Time) (*domain.Message, error) {
	m := &domain.Message{
		ConversationID: conversationID,
		AuthorID:       authorID,
		Text:           text,
		CreatedAt:      now,
	}
	if err := db.WithContext(ctx).Omit(clause.Associations).Create(m).Error; err != nil {
		return nil, err
	}
	return m, nil
}

// GetMessage fetches a message by ID with author and deleting user loaded.
func GetMessage(ctx context.Context, db *gorm.DB, id uint) (*domain.Message, error) {
	var m domain.Message
	err := db.WithContext(ctx).
		Preload("Author").
		Preload("DeletedBy").
		First(&m, id).Error
	if err != nil {
		return nil, err
	}
	return &m, nil
}

// ListVisibleMessages returns the conversation's messages not hidden for
// viewerID, ordered deterministically (CreatedAt ASC, ID ASC). Messages
// deleted for everyone are included.
func ListVisibleMessages(ctx context.Context, db *gorm.DB, conversationID, viewerID uint) ([]domain.Message, error) {
	out := []domain.Message{}
	err := db.WithContext(ctx).
		Preload("Author").
		Preload("DeletedBy").
		Where("conversation_id = ?", conversationID).
		Where(notHiddenFor, viewerID).
		Order("created_at ASC, id ASC").
		Find(&out).Error
	return out, err
}

// LastVisibleMessage returns the newest message of the conversation not
// hidden for viewerID, or ErrNotFound.
func LastVisibleMessage(ctx context.Context, db *gorm.DB, conversationID, viewerID uint) (*domain.Message, error) {
	var m domain.Message
	err := db.WithContext(ctx).
		Preload("Author").
		Preload("DeletedBy").
		Where("conversation_id = ?", conversationID).
		Where(notHiddenFor, viewerID).
		Order("created_at DESC, id DESC").
		First(&m).Error
	if err != nil {
		return nil, err
	}
	return &m, nil
}

// HideMessage adds (messageID, userID) to the hide set. Hiding twice is a no-op.
func HideMessage(ctx context.Context, db *gorm.DB, messageID, userID uint, now time.Time) error {
	return db.WithContext(ctx).
		Omit(clause.Associations).
		Clauses(clause.OnConflict{DoNothing: true}).
		Create(&domain.MessageHide{MessageID: messageID, UserID: userID, CreatedAt: now}).Error
}

// IsHidden reports whether the message is in userID's hide set.
func IsHidden(ctx context.Context, db *gorm.DB, messageID, userID uint) (bool, error) {
	var n int64
	err := db.WithContext(ctx).
		Model(&domain.MessageHide{}).
		Where("message_id = ? AND user_id = ?", messageID, userID).
		Count(&n).Error
	return n > 0, err
}

// MarkDeletedForEveryone flags the message as deleted by actorID. The update
// is conditional on the message not already being deleted; false means
// another request got there first (or the message is gone).
func MarkDeletedForEveryone(ctx context.Context, db *gorm.DB, messageID, actorID uint, now time.Time) (bool, error) {
	res := db.WithContext(ctx).
		Model(&domain.Message{}).
		Where("id = ? AND deleted_for_everyone = ?", messageID, false).
		UpdateColumns(map[string]any{
			"deleted_for_everyone":    true,
			"deleted_for_everyone_at": now,
			"deleted_by_id":           actorID,
		})
	if res.Error != nil {
		return false, res.Error
	}
	return res.RowsAffected == 1, nil
}

// ListIncomingMessages returns the newest messages sent to userID by others in
// any of their conversations: not self-authored, not hidden for userID and not
// deleted for everyone. Authors are preloaded.
func ListIncomingMessages(ctx context.Context, db *gorm.DB, userID uint, limit int) ([]domain.Message, error) {
	out := []domain.Message{}
	q := db.WithContext(ctx).
		Preload("Author").
		Where("conversation_id IN (?)", db.Model(&domain.ConversationParticipant{}).
			Select("conversation_id").
			Where("user_id = ?", userID)).
		Where("author_id <> ?", userID).
		Where("deleted_for_everyone = ?", false).
		Where(notHiddenFor, userID).
		Order("created_at DESC, id DESC")
	if limit > 0 {
		q = q.Limit(limit)
	}
	err := q.Find(&out).Error
	return out, err
}

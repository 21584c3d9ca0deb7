// Package repo implements the data persistence layer for domain entities,
// backed by GORM. This file provides small aggregate/statistics queries used
// primarily for conditional responses (e.g., ETag generation) in the HTTP
// layer. Each function is context-aware and safe to call from services or
// handlers.
package repo

import (
	"context"
	"time"

	"gorm.io/gorm"

	"github.com/coony/chat-backend/internal/domain"
)

// Stats summarizes a viewer-relative collection for cache validation.
//
//   - Count:        rows in the collection
//   - MaxUpdatedAt: newest recency marker, or nil if no rows (for
//     conversation lists this includes partners' profile updates)
//   - Hidden:       rows the viewer hid for themselves (hides do not touch
//     any recency marker, so they are folded in separately)
type Stats struct {
	Count        int64
	MaxUpdatedAt *time.Time
	Hidden       int64
}

// ConversationsStats returns aggregate metadata for a user's conversation list.
func ConversationsStats(ctx context.Context, db *gorm.DB, userID uint) (Stats, error) {
	var st Stats
	q := func() *gorm.DB {
		return db.WithContext(ctx).
			Model(&domain.Conversation{}).
			Where("id IN (?)", db.Model(&domain.ConversationParticipant{}).
				Select("conversation_id").
				Where("user_id = ?", userID))
	}

	if err := q().Count(&st.Count).Error; err != nil {
		return Stats{}, err
	}
	if st.Count == 0 {
		return st, nil
	}

	// Get latest updated_at (avoid MAX() -> TEXT in SQLite)
	var row struct {
		UpdatedAt time.Time
	}
	if err := q().Select("updated_at").Order("updated_at DESC").Limit(1).Scan(&row).Error; err != nil {
		return Stats{}, err
	}
	st.MaxUpdatedAt = &row.UpdatedAt

	// Partner names and avatars are part of the list, so profile edits count.
	var partner struct {
		UpdatedAt time.Time
	}
	mine := db.Model(&domain.ConversationParticipant{}).
		Select("conversation_id").
		Where("user_id = ?", userID)
	if err := db.WithContext(ctx).Model(&domain.User{}).
		Select("updated_at").
		Where("id <> ? AND id IN (?)", userID,
			db.Model(&domain.ConversationParticipant{}).Select("user_id").Where("conversation_id IN (?)", mine)).
		Order("updated_at DESC").Limit(1).
		Scan(&partner).Error; err != nil {
		return Stats{}, err
	}
	if partner.UpdatedAt.After(*st.MaxUpdatedAt) {
		st.MaxUpdatedAt = &partner.UpdatedAt
	}

	if err := db.WithContext(ctx).Model(&domain.MessageHide{}).
		Where("user_id = ?", userID).
		Count(&st.Hidden).Error; err != nil {
		return Stats{}, err
	}
	return st, nil
}

// MessagesStats returns aggregate metadata for one conversation's messages as
// seen by viewerID. The conversation's updated_at is used as the recency
// marker since sends and global deletes both touch it.
func MessagesStats(ctx context.Context, db *gorm.DB, conversationID, viewerID uint) (Stats, error) {
	var st Stats
	if err := db.WithContext(ctx).Model(&domain.Message{}).
		Where("conversation_id = ?", conversationID).
		Count(&st.Count).Error; err != nil {
		return Stats{}, err
	}

	var conv domain.Conversation
	if err := db.WithContext(ctx).Select("id", "updated_at").First(&conv, conversationID).Error; err != nil {
		return Stats{}, err
	}
	st.MaxUpdatedAt = &conv.UpdatedAt

	if err := db.WithContext(ctx).Model(&domain.MessageHide{}).
		Where("user_id = ? AND message_id IN (?)", viewerID,
			db.Model(&domain.Message{}).Select("id").Where("conversation_id = ?", conversationID)).
		Count(&st.Hidden).Error; err != nil {
		return Stats{}, err
	}
	return st, nil
}

// Package repo implements the data persistence layer for domain entities,
// backed by GORM. This file stores the per-user notification low-water mark.
package repo

import (
	"context"
	"errors"
	"time"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/coony/chat-backend/internal/domain"
)

// GetClearedAt returns the user's cleared_at mark, or nil when the feed was
// never cleared.
func GetClearedAt(ctx context.Context, db *gorm.DB, userID uint) (*time.Time, error) {
	var st domain.NotificationState
	err := db.WithContext(ctx).Where("user_id = ?", userID).First(&st).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &st.ClearedAt, nil
}

// SetClearedAt upserts the user's cleared_at mark.
func SetClearedAt(ctx context.Context, db *gorm.DB, userID uint, at time.Time) error {
	return db.WithContext(ctx).
		Clauses(clause.OnConflict{
			Columns:   []clause.Column{{Name: "user_id"}},
			DoUpdates: clause.AssignmentColumns([]string{"cleared_at"}),
		}).
		Create(&domain.NotificationState{UserID: userID, ClearedAt: at}).Error
}

// Package repo implements the data persistence layer for domain entities,
// backed by GORM. This file provides repository functions for posts,
// comments, likes and like events.
package repo

import (
	"context"
	"time"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/coony/chat-backend/internal/domain"
)

// PostRow is a post with its aggregate counters for timeline listings.
type PostRow struct {
	domain.Post
	LikeCount    int64
	CommentCount int64
}

// CreatePost inserts a post.
func CreatePost(ctx context.Context, db *gorm.DB, authorID uint, text string, now time.Time) (*domain.Post, error) {
	p := &domain.Post{AuthorID: authorID, Text: text, CreatedAt: now}
	if err := db.WithContext(ctx).Omit(clause.Associations).Create(p).Error; err != nil {
		return nil, err
	}
	return p, nil
}

// GetPost fetches a post with its author.
func GetPost(ctx context.Context, db *gorm.DB, id uint) (*domain.Post, error) {
	var p domain.Post
	if err := db.WithContext(ctx).Preload("Author").First(&p, id).Error; err != nil {
		return nil, err
	}
	return &p, nil
}

// CountPosts returns the total number of posts.
func CountPosts(ctx context.Context, db *gorm.DB) (int64, error) {
	var n int64
	err := db.WithContext(ctx).Model(&domain.Post{}).Count(&n).Error
	return n, err
}

// ListPostsPage returns posts newest first with like and comment counts.
func ListPostsPage(ctx context.Context, db *gorm.DB, offset, limit int) ([]PostRow, error) {
	var posts []domain.Post
	err := db.WithContext(ctx).
		Preload("Author").
		Order("created_at DESC, id DESC").
		Offset(offset).
		Limit(limit).
		Find(&posts).Error
	if err != nil {
		return nil, err
	}
	out := make([]PostRow, 0, len(posts))
	if len(posts) == 0 {
		return out, nil
	}

	ids := make([]uint, len(posts))
	for i, p := range posts {
		ids[i] = p.ID
	}
	likes, err := countBy(ctx, db, &domain.PostLike{}, ids)
	if err != nil {
		return nil, err
	}
	comments, err := countBy(ctx, db, &domain.Comment{}, ids)
	if err != nil {
		return nil, err
	}
	for _, p := range posts {
		out = append(out, PostRow{Post: p, LikeCount: likes[p.ID], CommentCount: comments[p.ID]})
	}
	return out, nil
}

func countBy(ctx context.Context, db *gorm.DB, model any, postIDs []uint) (map[uint]int64, error) {
	var rows []struct {
		PostID uint
		N      int64
	}
	err := db.WithContext(ctx).
		Model(model).
		Select("post_id, COUNT(*) AS n").
		Where("post_id IN ?", postIDs).
		Group("post_id").
		Scan(&rows).Error
	if err != nil {
		return nil, err
	}
	out := make(map[uint]int64, len(rows))
	for _, r := range rows {
		out[r.PostID] = r.N
	}
	return out, nil
}

// DeletePost removes a post; comments, likes and like events cascade.
func DeletePost(ctx context.Context, db *gorm.DB, id uint) error {
	res := db.WithContext(ctx).Delete(&domain.Post{}, id)
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return gorm.ErrRecordNotFound
	}
	return nil
}

// CreateComment inserts a comment on a post.
func CreateComment(ctx context.Context, db *gorm.DB, postID, authorID uint, text string, now time.Time) (*domain.Comment, error) {
	c := &domain.Comment{PostID: postID, AuthorID: authorID, Text: text, CreatedAt: now}
	if err := db.WithContext(ctx).Omit(clause.Associations).Create(c).Error; err != nil {
		return nil, err
	}
	return c, nil
}

// ListCommentsOnPostsOf returns the newest comments left by others on posts
// authored by userID, with comment author and post preloaded.
func ListCommentsOnPostsOf(ctx context.Context, db *gorm.DB, userID uint, limit int) ([]domain.Comment, error) {
	out := []domain.Comment{}
	q := db.WithContext(ctx).
		Preload("Author").
		Preload("Post").
		Where("post_id IN (?)", db.Model(&domain.Post{}).Select("id").Where("author_id = ?", userID)).
		Where("author_id <> ?", userID).
		Order("created_at DESC, id DESC")
	if limit > 0 {
		q = q.Limit(limit)
	}
	err := q.Find(&out).Error
	return out, err
}

// HasLike reports whether userID currently likes the post.
func HasLike(ctx context.Context, db *gorm.DB, postID, userID uint) (bool, error) {
	var n int64
	err := db.WithContext(ctx).
		Model(&domain.PostLike{}).
		Where("post_id = ? AND user_id = ?", postID, userID).
		Count(&n).Error
	return n > 0, err
}

// AddLike records the current like. Liking twice is a no-op.
func AddLike(ctx context.Context, db *gorm.DB, postID, userID uint, now time.Time) error {
	return db.WithContext(ctx).
		Omit(clause.Associations).
		Clauses(clause.OnConflict{DoNothing: true}).
		Create(&domain.PostLike{PostID: postID, UserID: userID, CreatedAt: now}).Error
}

// RemoveLike deletes the current like only; the like event is kept.
func RemoveLike(ctx context.Context, db *gorm.DB, postID, userID uint) error {
	return db.WithContext(ctx).
		Where("post_id = ? AND user_id = ?", postID, userID).
		Delete(&domain.PostLike{}).Error
}

// UpsertLikeEvent creates or refreshes the (post, user) like event so its
// timestamp is now.
func UpsertLikeEvent(ctx context.Context, db *gorm.DB, postID, userID uint, now time.Time) error {
	return db.WithContext(ctx).
		Omit(clause.Associations).
		Clauses(clause.OnConflict{
			Columns:   []clause.Column{{Name: "post_id"}, {Name: "user_id"}},
			DoUpdates: clause.Assignments(map[string]any{"created_at": now}),
		}).
		Create(&domain.PostLikeEvent{PostID: postID, UserID: userID, CreatedAt: now}).Error
}

// ListLikeEventsOnPostsOf returns the newest like events by others on posts
// authored by userID, with liker and post preloaded.
func ListLikeEventsOnPostsOf(ctx context.Context, db *gorm.DB, userID uint, limit int) ([]domain.PostLikeEvent, error) {
	out := []domain.PostLikeEvent{}
	q := db.WithContext(ctx).
		Preload("User").
		Preload("Post").
		Where("post_id IN (?)", db.Model(&domain.Post{}).Select("id").Where("author_id = ?", userID)).
		Where("user_id <> ?", userID).
		Order("created_at DESC, id DESC")
	if limit > 0 {
		q = q.Limit(limit)
	}
	err := q.Find(&out).Error
	return out, err
}

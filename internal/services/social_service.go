// Package services – SocialService
//
// This file implements the timeline activity that feeds notifications:
// posts, comments and likes. A like toggles the current like state and
// refreshes the (post, user) like event, so a re-like surfaces again in the
// author's notifications while the pair never produces duplicates.
package services

import (
	"context"
	"errors"
	"time"
	"unicode/utf8"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
	"gorm.io/gorm"

	"github.com/coony/chat-backend/internal/domain"
	"github.com/coony/chat-backend/internal/repo"
	"github.com/coony/chat-backend/internal/search"
)

// SocialService owns posts, comments and likes.
type SocialService struct {
	DB *gorm.DB

	// MaxRunes caps post and comment length; 0 disables the check.
	MaxRunes int

	// Now is the clock; nil means time.Now.
	Now func() time.Time
}

// NewSocialService constructs a SocialService.
func NewSocialService(db *gorm.DB) *SocialService {
	return &SocialService{DB: db, MaxRunes: 2000}
}

func (s *SocialService) now() time.Time { return clock(s.Now) }

// CreatePost publishes text on the author's timeline.
func (s *SocialService) CreatePost(ctx context.Context, authorID uint, text string) (*domain.Post, error) {
	tr := otel.Tracer("services/SocialService")
	ctx, span := tr.Start(ctx, "CreatePost",
		trace.WithAttributes(attribute.Int64("user.id", int64(authorID))),
	)
	defer span.End()

	text = search.NormalizeText(text)
	if text == "" {
		return nil, ErrEmptyPost
	}
	if s.MaxRunes > 0 && utf8.RuneCountInString(text) > s.MaxRunes {
		return nil, ErrTooLong
	}
	p, err := repo.CreatePost(ctx, s.DB, authorID, text, s.now())
	if err != nil {
		return nil, err
	}
	return s.GetPost(ctx, p.ID)
}

// GetPost returns a post with its author.
func (s *SocialService) GetPost(ctx context.Context, id uint) (*domain.Post, error) {
	p, err := repo.GetPost(ctx, s.DB, id)
	if errors.Is(err, repo.ErrNotFound) {
		return nil, ErrPostNotFound
	}
	return p, err
}

// ListPosts returns a page of posts newest first, with counters, plus the
// total number of posts.
func (s *SocialService) ListPosts(ctx context.Context, page, pageSize int) ([]repo.PostRow, int64, error) {
	tr := otel.Tracer("services/SocialService")
	ctx, span := tr.Start(ctx, "ListPosts",
		trace.WithAttributes(
			attribute.Int("page", page),
			attribute.Int("page_size", pageSize),
		),
	)
	defer span.End()

	if page < 1 {
		page = 1
	}
	if pageSize <= 0 {
		pageSize = 20
	}
	total, err := repo.CountPosts(ctx, s.DB)
	if err != nil {
		return nil, 0, err
	}
	if total == 0 {
		return []repo.PostRow{}, 0, nil
	}
	rows, err := repo.ListPostsPage(ctx, s.DB, (page-1)*pageSize, pageSize)
	return rows, total, err
}

// DeletePost removes the actor's own post with everything hanging off it.
func (s *SocialService) DeletePost(ctx context.Context, postID, actorID uint) error {
	p, err := s.GetPost(ctx, postID)
	if err != nil {
		return err
	}
	if p.AuthorID != actorID {
		return ErrForbiddenPost
	}
	if err := repo.DeletePost(ctx, s.DB, postID); err != nil {
		if errors.Is(err, repo.ErrNotFound) {
			return ErrPostNotFound
		}
		return err
	}
	return nil
}

// ToggleLike flips userID's like on the post and reports the new state.
func (s *SocialService) ToggleLike(ctx context.Context, postID, userID uint) (bool, error) {
	tr := otel.Tracer("services/SocialService")
	ctx, span := tr.Start(ctx, "ToggleLike",
		trace.WithAttributes(
			attribute.Int64("post.id", int64(postID)),
			attribute.Int64("user.id", int64(userID)),
		),
	)
	defer span.End()

	if _, err := s.GetPost(ctx, postID); err != nil {
		return false, err
	}

	liked := false
	err := s.DB.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		has, err := repo.HasLike(ctx, tx, postID, userID)
		if err != nil {
			return err
		}
		if has {
			return repo.RemoveLike(ctx, tx, postID, userID)
		}
		now := s.now()
		if err := repo.AddLike(ctx, tx, postID, userID, now); err != nil {
			return err
		}
		liked = true
		return repo.UpsertLikeEvent(ctx, tx, postID, userID, now)
	})
	if err != nil {
		return false, err
	}
	span.SetAttributes(attribute.Bool("liked", liked))
	return liked, nil
}

// Comment adds text as a comment by authorID.
func (s *SocialService) Comment(ctx context.Context, postID, authorID uint, text string) (*domain.Comment, error) {
	tr := otel.Tracer("services/SocialService")
	ctx, span := tr.Start(ctx, "Comment",
		trace.WithAttributes(
			attribute.Int64("post.id", int64(postID)),
			attribute.Int64("user.id", int64(authorID)),
		),
	)
	defer span.End()

	text = search.NormalizeText(text)
	if text == "" {
		return nil, ErrEmptyComment
	}
	if s.MaxRunes > 0 && utf8.RuneCountInString(text) > s.MaxRunes {
		return nil, ErrTooLong
	}
	if _, err := s.GetPost(ctx, postID); err != nil {
		return nil, err
	}
	c, err := repo.CreateComment(ctx, s.DB, postID, authorID, text, s.now())
	if err != nil {
		return nil, err
	}
	return c, nil
}

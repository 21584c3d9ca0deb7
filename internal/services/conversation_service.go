// Package services – ConversationService
//
// This file implements the conversation registry. A private conversation is
// identified by a deterministic key derived from its two participants, which
// makes GetOrCreate idempotent: calling it again for the same pair (in either
// order) returns the same record, repairs a partial membership set and moves
// the conversation to the top of both inboxes.
package services

import (
	"context"
	"errors"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
	"gorm.io/gorm"

	"github.com/coony/chat-backend/internal/domain"
	"github.com/coony/chat-backend/internal/repo"
)

// getOrCreateAttempts bounds the retries after losing a creation race.
const getOrCreateAttempts = 3

// ConversationSummary is a conversation plus the newest message its viewer
// can still see (nil when there is none).
type ConversationSummary struct {
	Conversation domain.Conversation
	LastVisible  *domain.Message
}

// ConversationService owns the conversation registry.
type ConversationService struct {
	DB *gorm.DB

	// Now is the clock; nil means time.Now.
	Now func() time.Time
}

// NewConversationService constructs a ConversationService.
func NewConversationService(db *gorm.DB) *ConversationService {
	return &ConversationService{DB: db}
}

func (s *ConversationService) now() time.Time { return clock(s.Now) }

// GetOrCreate returns the private conversation between a and b, creating it
// on first contact. Every call touches updated_at; no message is created.
//
// Concurrent first contacts race on the unique conversation key. The loser's
// insert fails with a duplicate-key error, after which it re-reads the
// winner's row and continues down the repair path, so both callers end with
// the same conversation holding both participants.
func (s *ConversationService) GetOrCreate(ctx context.Context, a, b uint) (*domain.Conversation, error) {
	tr := otel.Tracer("services/ConversationService")
	ctx, span := tr.Start(ctx, "GetOrCreate",
		trace.WithAttributes(
			attribute.Int64("user.a", int64(a)),
			attribute.Int64("user.b", int64(b)),
		),
	)
	defer span.End()

	if a == b {
		return nil, ErrSelfConversation
	}
	key := domain.ConversationKey(a, b)

	var (
		conv *domain.Conversation
		err  error
	)
	for attempt := 0; attempt < getOrCreateAttempts; attempt++ {
		conv, err = s.findOrCreate(ctx, key, a, b)
		if err == nil || !repo.IsDuplicate(err) {
			break
		}
	}
	if err != nil {
		return nil, err
	}

	now := s.now()
	if err := s.repair(ctx, conv.ID, []uint{a, b}, now); err != nil {
		return nil, err
	}
	if err := repo.TouchConversation(ctx, s.DB, conv.ID, now); err != nil {
		return nil, err
	}
	span.SetAttributes(attribute.Int64("conversation.id", int64(conv.ID)))
	return repo.GetConversation(ctx, s.DB, conv.ID)
}

// findOrCreate looks the key up and inserts the conversation with both
// participants in one transaction when it is missing.
func (s *ConversationService) findOrCreate(ctx context.Context, key string, a, b uint) (*domain.Conversation, error) {
	conv, err := repo.FindConversationByKey(ctx, s.DB, key)
	if err == nil {
		return conv, nil
	}
	if !errors.Is(err, repo.ErrNotFound) {
		return nil, err
	}

	now := s.now()
	err = s.DB.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		c, err := repo.CreateConversation(ctx, tx, key, now)
		if err != nil {
			return err
		}
		if err := repo.AddParticipants(ctx, tx, c.ID, []uint{a, b}, now); err != nil {
			return err
		}
		conv = c
		return nil
	})
	if err != nil {
		return nil, err
	}
	return conv, nil
}

// repair attaches whichever of want is not yet a participant.
func (s *ConversationService) repair(ctx context.Context, conversationID uint, want []uint, now time.Time) error {
	have, err := repo.ParticipantIDs(ctx, s.DB, conversationID)
	if err != nil {
		return err
	}
	present := make(map[uint]struct{}, len(have))
	for _, id := range have {
		present[id] = struct{}{}
	}
	var missing []uint
	for _, id := range want {
		if _, ok := present[id]; !ok {
			missing = append(missing, id)
		}
	}
	return repo.AddParticipants(ctx, s.DB, conversationID, missing, now)
}

// ListForUser returns the user's inbox, most recently active first.
func (s *ConversationService) ListForUser(ctx context.Context, userID uint) ([]ConversationSummary, error) {
	tr := otel.Tracer("services/ConversationService")
	ctx, span := tr.Start(ctx, "ListForUser",
		trace.WithAttributes(attribute.Int64("user.id", int64(userID))),
	)
	defer span.End()

	convs, err := repo.ListConversationsForUser(ctx, s.DB, userID)
	if err != nil {
		return nil, err
	}
	out := make([]ConversationSummary, 0, len(convs))
	for _, c := range convs {
		last, err := s.lastVisible(ctx, c.ID, userID)
		if err != nil {
			return nil, err
		}
		out = append(out, ConversationSummary{Conversation: c, LastVisible: last})
	}
	span.SetAttributes(attribute.Int("conversations", len(out)))
	return out, nil
}

// Summary returns one conversation as seen by userID.
func (s *ConversationService) Summary(ctx context.Context, conversationID, userID uint) (*ConversationSummary, error) {
	conv, err := s.GetForParticipant(ctx, conversationID, userID)
	if err != nil {
		return nil, err
	}
	last, err := s.lastVisible(ctx, conv.ID, userID)
	if err != nil {
		return nil, err
	}
	return &ConversationSummary{Conversation: *conv, LastVisible: last}, nil
}

func (s *ConversationService) lastVisible(ctx context.Context, conversationID, viewerID uint) (*domain.Message, error) {
	m, err := repo.LastVisibleMessage(ctx, s.DB, conversationID, viewerID)
	if errors.Is(err, repo.ErrNotFound) {
		return nil, nil
	}
	return m, err
}

// GetForParticipant loads the conversation with its members. Missing
// conversations and conversations userID is not part of look the same.
func (s *ConversationService) GetForParticipant(ctx context.Context, conversationID, userID uint) (*domain.Conversation, error) {
	conv, err := repo.GetConversation(ctx, s.DB, conversationID)
	if errors.Is(err, repo.ErrNotFound) {
		return nil, ErrConversationNotFound
	}
	if err != nil {
		return nil, err
	}
	if !conv.HasParticipant(userID) {
		return nil, ErrConversationNotFound
	}
	return conv, nil
}

// IsParticipant reports whether userID belongs to the conversation. A missing
// conversation has no participants.
func (s *ConversationService) IsParticipant(ctx context.Context, conversationID, userID uint) (bool, error) {
	return repo.IsParticipant(ctx, s.DB, conversationID, userID)
}

// ListStats summarizes userID's inbox for cache validation.
func (s *ConversationService) ListStats(ctx context.Context, userID uint) (repo.Stats, error) {
	return repo.ConversationsStats(ctx, s.DB, userID)
}

// clock returns now() from fn, or time.Now when fn is nil.
func clock(fn func() time.Time) time.Time {
	if fn != nil {
		return fn()
	}
	return time.Now()
}

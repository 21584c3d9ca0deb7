// Package services – MessageService
//
// This file implements MessageService, the message log of a conversation:
// append, hide-for-self, delete-for-everyone and the viewer-relative listing.
// Appends and global deletes publish an identifier-only realtime event after
// the write commits; subscribers re-fetch the message for their own viewer.
//
// Observability: public methods are OpenTelemetry-instrumented; spans carry
// conversation, message and user identifiers.
package services

import (
	"context"
	"errors"
	"strconv"
	"time"
	"unicode/utf8"

	"github.com/rs/zerolog/log"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
	"gorm.io/gorm"

	"github.com/coony/chat-backend/internal/domain"
	"github.com/coony/chat-backend/internal/realtime"
	"github.com/coony/chat-backend/internal/repo"
	"github.com/coony/chat-backend/internal/search"
)

// Delete scopes accepted by Delete.
const (
	ScopeSelf = "self"
	ScopeAll  = "all"
)

// Publisher receives realtime events. realtime.Broker satisfies it.
type Publisher interface {
	Publish(ctx context.Context, ev realtime.Event) error
}

// MessageService coordinates message persistence and realtime notification.
type MessageService struct {
	DB        *gorm.DB
	Publisher Publisher

	// MaxRunes caps message length; 0 disables the check.
	MaxRunes int
	// IdempotencyTTL bounds how long a send can be replayed.
	IdempotencyTTL time.Duration

	// Now is the clock; nil means time.Now.
	Now func() time.Time
}

// NewMessageService constructs a MessageService.
func NewMessageService(db *gorm.DB, pub Publisher) *MessageService {
	return &MessageService{DB: db, Publisher: pub, MaxRunes: 4000, IdempotencyTTL: 24 * time.Hour}
}

func (s *MessageService) now() time.Time { return clock(s.Now) }

// Append stores text from authorID in the conversation, touches the
// conversation and notifies subscribers.
func (s *MessageService) Append(ctx context.Context, conversationID, authorID uint, text string) (*domain.Message, error) {
	tr := otel.Tracer("services/MessageService")
	ctx, span := tr.Start(ctx, "Append",
		trace.WithAttributes(
			attribute.Int64("conversation.id", int64(conversationID)),
			attribute.Int64("user.id", int64(authorID)),
		),
	)
	defer span.End()

	if err := s.requireParticipant(ctx, conversationID, authorID); err != nil {
		return nil, err
	}

	text = search.NormalizeText(text)
	if text == "" {
		return nil, ErrEmptyMessage
	}
	if s.MaxRunes > 0 && utf8.RuneCountInString(text) > s.MaxRunes {
		return nil, ErrTooLong
	}

	now := s.now()
	var created *domain.Message
	err := s.DB.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		m, err := repo.CreateMessage(ctx, tx, conversationID, authorID, text, now)
		if err != nil {
			return err
		}
		created = m
		return repo.TouchConversation(ctx, tx, conversationID, now)
	})
	if err != nil {
		return nil, err
	}
	span.SetAttributes(attribute.Int64("message.id", int64(created.ID)))

	s.publish(ctx, created)
	return s.reload(ctx, created.ID)
}

// HideForSelf removes the message from userID's view only. Hiding twice is a
// no-op. The conversation timestamp is left alone.
func (s *MessageService) HideForSelf(ctx context.Context, messageID, userID uint) (*domain.Message, error) {
	tr := otel.Tracer("services/MessageService")
	ctx, span := tr.Start(ctx, "HideForSelf",
		trace.WithAttributes(
			attribute.Int64("message.id", int64(messageID)),
			attribute.Int64("user.id", int64(userID)),
		),
	)
	defer span.End()

	m, err := s.GetForParticipant(ctx, messageID, userID)
	if err != nil {
		return nil, err
	}
	if err := repo.HideMessage(ctx, s.DB, m.ID, userID, s.now()); err != nil {
		return nil, err
	}
	return m, nil
}

// DeleteForEveryone redacts the message for all participants. Only the author
// may do it, and only once; the stored text is kept.
func (s *MessageService) DeleteForEveryone(ctx context.Context, messageID, actorID uint) (*domain.Message, error) {
	tr := otel.Tracer("services/MessageService")
	ctx, span := tr.Start(ctx, "DeleteForEveryone",
		trace.WithAttributes(
			attribute.Int64("message.id", int64(messageID)),
			attribute.Int64("user.id", int64(actorID)),
		),
	)
	defer span.End()

	m, err := s.GetForParticipant(ctx, messageID, actorID)
	if err != nil {
		return nil, err
	}
	if m.AuthorID != actorID {
		return nil, ErrForbiddenDelete
	}
	if m.DeletedForEveryone {
		return nil, ErrAlreadyDeleted
	}

	now := s.now()
	err = s.DB.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		won, err := repo.MarkDeletedForEveryone(ctx, tx, m.ID, actorID, now)
		if err != nil {
			return err
		}
		if !won {
			return ErrAlreadyDeleted
		}
		return repo.TouchConversation(ctx, tx, m.ConversationID, now)
	})
	if err != nil {
		return nil, err
	}

	s.publish(ctx, m)
	return s.reload(ctx, m.ID)
}

// Delete dispatches on scope ("self" or "all").
func (s *MessageService) Delete(ctx context.Context, messageID, userID uint, scope string) (*domain.Message, error) {
	switch scope {
	case ScopeSelf:
		return s.HideForSelf(ctx, messageID, userID)
	case ScopeAll:
		return s.DeleteForEveryone(ctx, messageID, userID)
	default:
		return nil, ErrInvalidScope
	}
}

// ListVisible returns the conversation's messages as viewerID sees them:
// oldest first, without the ones viewerID hid. Messages deleted for everyone
// stay in the list.
func (s *MessageService) ListVisible(ctx context.Context, conversationID, viewerID uint) ([]domain.Message, error) {
	tr := otel.Tracer("services/MessageService")
	ctx, span := tr.Start(ctx, "ListVisible",
		trace.WithAttributes(
			attribute.Int64("conversation.id", int64(conversationID)),
			attribute.Int64("user.id", int64(viewerID)),
		),
	)
	defer span.End()

	if err := s.requireParticipant(ctx, conversationID, viewerID); err != nil {
		return nil, err
	}
	return repo.ListVisibleMessages(ctx, s.DB, conversationID, viewerID)
}

// GetForParticipant loads a message the user can reach through one of their
// conversations. Everything else is ErrMessageNotFound.
func (s *MessageService) GetForParticipant(ctx context.Context, messageID, userID uint) (*domain.Message, error) {
	m, err := repo.GetMessage(ctx, s.DB, messageID)
	if errors.Is(err, repo.ErrNotFound) {
		return nil, ErrMessageNotFound
	}
	if err != nil {
		return nil, err
	}
	ok, err := repo.IsParticipant(ctx, s.DB, m.ConversationID, userID)
	if err != nil {
		return nil, err
	}
	if !ok {
		return nil, ErrMessageNotFound
	}
	return m, nil
}

// GetVisible is GetForParticipant that also treats messages the user hid as
// missing.
func (s *MessageService) GetVisible(ctx context.Context, messageID, userID uint) (*domain.Message, error) {
	m, err := s.GetForParticipant(ctx, messageID, userID)
	if err != nil {
		return nil, err
	}
	hidden, err := repo.IsHidden(ctx, s.DB, m.ID, userID)
	if err != nil {
		return nil, err
	}
	if hidden {
		return nil, ErrMessageNotFound
	}
	return m, nil
}

// Replay returns the message recorded for a previous send with the same
// idempotency key, if one is still valid.
func (s *MessageService) Replay(ctx context.Context, userID, conversationID uint, key string) (*domain.Message, bool) {
	rec, err := repo.GetIdempotency(ctx, s.DB, userID, IdempotencyScope(conversationID), key, s.now())
	if err != nil {
		return nil, false
	}
	m, err := repo.GetMessage(ctx, s.DB, rec.MessageID)
	if err != nil {
		return nil, false
	}
	return m, true
}

// HasReplay reports whether an unexpired record exists for key in scope.
func (s *MessageService) HasReplay(ctx context.Context, userID uint, scope, key string) (bool, error) {
	_, err := repo.GetIdempotency(ctx, s.DB, userID, scope, key, s.now())
	if errors.Is(err, repo.ErrNotFound) {
		return false, nil
	}
	return err == nil, err
}

// Remember records a completed send under key. Losing the insert race to a
// concurrent retry is not an error.
func (s *MessageService) Remember(ctx context.Context, userID, conversationID uint, key string, messageID uint, status int) error {
	ttl := s.IdempotencyTTL
	if ttl <= 0 {
		ttl = 24 * time.Hour
	}
	_, err := repo.CreateIdempotency(ctx, s.DB, userID, IdempotencyScope(conversationID), key, messageID, status, ttl)
	if err != nil && !repo.IsDuplicate(err) {
		return err
	}
	return nil
}

// Stats summarizes a conversation's messages as seen by viewerID, for cache
// validation. The caller checks membership first.
func (s *MessageService) Stats(ctx context.Context, conversationID, viewerID uint) (repo.Stats, error) {
	return repo.MessagesStats(ctx, s.DB, conversationID, viewerID)
}

// PurgeExpiredIdempotency drops replay records past their expiry.
func (s *MessageService) PurgeExpiredIdempotency(ctx context.Context) (int64, error) {
	return repo.PurgeExpiredIdempotency(ctx, s.DB, s.now())
}

func (s *MessageService) requireParticipant(ctx context.Context, conversationID, userID uint) error {
	ok, err := repo.IsParticipant(ctx, s.DB, conversationID, userID)
	if err != nil {
		return err
	}
	if !ok {
		return ErrConversationNotFound
	}
	return nil
}

func (s *MessageService) reload(ctx context.Context, id uint) (*domain.Message, error) {
	m, err := repo.GetMessage(ctx, s.DB, id)
	if errors.Is(err, repo.ErrNotFound) {
		return nil, ErrMessageNotFound
	}
	return m, err
}

// publish is best effort: the write already committed, and subscribers that
// miss the event see the change on their next fetch.
func (s *MessageService) publish(ctx context.Context, m *domain.Message) {
	if s.Publisher == nil {
		return
	}
	ev := realtime.Event{MessageID: m.ID, ConversationID: m.ConversationID}
	if err := s.Publisher.Publish(ctx, ev); err != nil {
		log.Ctx(ctx).Warn().Err(err).
			Uint("message_id", ev.MessageID).
			Uint("conversation_id", ev.ConversationID).
			Msg("realtime publish failed")
	}
}

// IdempotencyScope is the scope idempotency keys for sends into a
// conversation are recorded under.
func IdempotencyScope(conversationID uint) string {
	return "conversation:" + strconv.FormatUint(uint64(conversationID), 10)
}

// Package services – NotificationService
//
// This file implements the notification feed. The feed is computed on every
// request from three sources (incoming chat messages, comments on the user's
// posts, likes on the user's posts); nothing is stored per item. "Clear"
// only moves the user's low-water mark so older items stop showing up.
package services

import (
	"context"
	"math"
	"slices"
	"strings"
	"time"

	"github.com/dustin/go-humanize"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
	"gorm.io/gorm"

	"github.com/coony/chat-backend/internal/repo"
	"github.com/coony/chat-backend/internal/search"
)

// Notification types; FilterAll matches every type.
const (
	TypeMessage = "message"
	TypeComment = "comment"
	TypeLike    = "like"
	FilterAll   = "all"
)

const (
	perSourceLimit   = 20
	mergedLimit      = 60
	feedLimit        = 40
	messagePreview   = 160
	commentPreview   = 200
	likeDescription  = 200
	postExcerptRunes = 120
)

// relTime renders Portuguese relative times ("5 minutos atrás").
var relTime = []humanize.RelTimeMagnitude{
	{D: time.Minute, Format: "agora mesmo", DivBy: 1},
	{D: 2 * time.Minute, Format: "1 minuto %s", DivBy: 1},
	{D: time.Hour, Format: "%d minutos %s", DivBy: time.Minute},
	{D: 2 * time.Hour, Format: "1 hora %s", DivBy: 1},
	{D: humanize.Day, Format: "%d horas %s", DivBy: time.Hour},
	{D: 2 * humanize.Day, Format: "1 dia %s", DivBy: 1},
	{D: humanize.Week, Format: "%d dias %s", DivBy: humanize.Day},
	{D: 2 * humanize.Week, Format: "1 semana %s", DivBy: 1},
	{D: humanize.Month, Format: "%d semanas %s", DivBy: humanize.Week},
	{D: 2 * humanize.Month, Format: "1 mês %s", DivBy: 1},
	{D: humanize.Year, Format: "%d meses %s", DivBy: humanize.Month},
	{D: 2 * humanize.Year, Format: "1 ano %s", DivBy: 1},
	{D: math.MaxInt64, Format: "%d anos %s", DivBy: humanize.Year},
}

// NotificationItem is one entry of the feed.
type NotificationItem struct {
	Type         string    `json:"type"`
	Icon         string    `json:"icon"`
	Title        string    `json:"title"`
	Description  string    `json:"description"`
	PostExcerpt  *string   `json:"post_excerpt"`
	Timestamp    time.Time `json:"timestamp"`
	CTAURL       string    `json:"cta_url"`
	CTALabel     string    `json:"cta_label"`
	RelativeTime string    `json:"relative_time"`
}

// FeedStats counts items per type after the low-water mark is applied and
// before filtering.
type FeedStats struct {
	Total   int `json:"total"`
	Message int `json:"message"`
	Comment int `json:"comment"`
	Like    int `json:"like"`
}

// Feed is the computed notification feed.
type Feed struct {
	Items      []NotificationItem `json:"notifications"`
	Stats      FeedStats          `json:"stats"`
	Filter     string             `json:"filter_type"`
	Query      string             `json:"search_query"`
	HasFilters bool               `json:"has_filters"`
	ClearedAt  *time.Time         `json:"cleared_at"`
	LastSynced time.Time          `json:"last_synced"`
}

// NotificationService computes feeds and moves the clear mark.
type NotificationService struct {
	DB *gorm.DB

	// Call-to-action targets for chat and timeline items.
	ChatURL   string
	SocialURL string

	// Now is the clock; nil means time.Now.
	Now func() time.Time
}

// NewNotificationService constructs a NotificationService.
func NewNotificationService(db *gorm.DB) *NotificationService {
	return &NotificationService{DB: db, ChatURL: "/chat", SocialURL: "/social"}
}

func (s *NotificationService) now() time.Time { return clock(s.Now) }

// BuildFeed assembles userID's feed, optionally narrowed to one type and to
// items whose title, description or excerpt contains query.
func (s *NotificationService) BuildFeed(ctx context.Context, userID uint, typeFilter, query string) (*Feed, error) {
	tr := otel.Tracer("services/NotificationService")
	ctx, span := tr.Start(ctx, "BuildFeed",
		trace.WithAttributes(
			attribute.Int64("user.id", int64(userID)),
			attribute.String("filter", typeFilter),
		),
	)
	defer span.End()

	now := s.now()
	clearedAt, err := repo.GetClearedAt(ctx, s.DB, userID)
	if err != nil {
		return nil, err
	}

	items, err := s.collect(ctx, userID)
	if err != nil {
		return nil, err
	}

	slices.SortStableFunc(items, func(a, b NotificationItem) int {
		return b.Timestamp.Compare(a.Timestamp)
	})
	if len(items) > mergedLimit {
		items = items[:mergedLimit]
	}
	if clearedAt != nil {
		items = slices.DeleteFunc(items, func(it NotificationItem) bool {
			return !it.Timestamp.After(*clearedAt)
		})
	}

	stats := FeedStats{Total: len(items)}
	for _, it := range items {
		switch it.Type {
		case TypeMessage:
			stats.Message++
		case TypeComment:
			stats.Comment++
		case TypeLike:
			stats.Like++
		}
	}

	filter := NormalizeFilter(typeFilter)
	query = strings.TrimSpace(query)

	out := make([]NotificationItem, 0, min(len(items), feedLimit))
	for _, it := range items {
		if filter != FilterAll && it.Type != filter {
			continue
		}
		if query != "" && !it.matches(query) {
			continue
		}
		it.RelativeTime = RelativeTime(it.Timestamp, now)
		out = append(out, it)
		if len(out) == feedLimit {
			break
		}
	}

	span.SetAttributes(attribute.Int("items", len(out)))
	return &Feed{
		Items:      out,
		Stats:      stats,
		Filter:     filter,
		Query:      query,
		HasFilters: query != "" || filter != FilterAll,
		ClearedAt:  clearedAt,
		LastSynced: now,
	}, nil
}

// Clear moves userID's low-water mark to now. No source row is touched.
func (s *NotificationService) Clear(ctx context.Context, userID uint) (time.Time, error) {
	tr := otel.Tracer("services/NotificationService")
	ctx, span := tr.Start(ctx, "Clear",
		trace.WithAttributes(attribute.Int64("user.id", int64(userID))),
	)
	defer span.End()

	now := s.now()
	return now, repo.SetClearedAt(ctx, s.DB, userID, now)
}

// collect reads the newest candidates from every source.
func (s *NotificationService) collect(ctx context.Context, userID uint) ([]NotificationItem, error) {
	msgs, err := repo.ListIncomingMessages(ctx, s.DB, userID, perSourceLimit)
	if err != nil {
		return nil, err
	}
	comments, err := repo.ListCommentsOnPostsOf(ctx, s.DB, userID, perSourceLimit)
	if err != nil {
		return nil, err
	}
	likes, err := repo.ListLikeEventsOnPostsOf(ctx, s.DB, userID, perSourceLimit)
	if err != nil {
		return nil, err
	}

	items := make([]NotificationItem, 0, len(msgs)+len(comments)+len(likes))
	for _, m := range msgs {
		desc := search.Truncate(strings.TrimSpace(m.Text), messagePreview)
		if desc == "" {
			desc = "Você tem uma nova resposta na conversa."
		}
		items = append(items, NotificationItem{
			Type:        TypeMessage,
			Icon:        "forum",
			Title:       m.Author.Name + " respondeu no chat",
			Description: desc,
			Timestamp:   m.CreatedAt,
			CTAURL:      s.ChatURL,
			CTALabel:    "Abrir chat",
		})
	}
	for _, c := range comments {
		desc := search.Truncate(strings.TrimSpace(c.Text), commentPreview)
		if desc == "" {
			desc = "Novo comentário no seu post."
		}
		items = append(items, NotificationItem{
			Type:        TypeComment,
			Icon:        "chat_bubble",
			Title:       c.Author.Name + " comentou no seu post",
			Description: desc,
			PostExcerpt: excerpt(c.Post.Text),
			Timestamp:   c.CreatedAt,
			CTAURL:      s.SocialURL,
			CTALabel:    "Ver na timeline",
		})
	}
	for _, l := range likes {
		desc := search.Truncate(strings.TrimSpace(l.Post.Text), likeDescription)
		if desc == "" {
			desc = "Seu post recebeu um novo like."
		}
		items = append(items, NotificationItem{
			Type:        TypeLike,
			Icon:        "favorite",
			Title:       l.User.Name + " curtiu seu post",
			Description: desc,
			PostExcerpt: excerpt(l.Post.Text),
			Timestamp:   l.CreatedAt,
			CTAURL:      s.SocialURL,
			CTALabel:    "Ver na timeline",
		})
	}
	return items, nil
}

func (it NotificationItem) matches(query string) bool {
	if search.ContainsFold(it.Title, query) || search.ContainsFold(it.Description, query) {
		return true
	}
	return it.PostExcerpt != nil && search.ContainsFold(*it.PostExcerpt, query)
}

func excerpt(text string) *string {
	text = strings.TrimSpace(text)
	if text == "" {
		return nil
	}
	e := search.Truncate(text, postExcerptRunes)
	return &e
}

// NormalizeFilter lower-cases f and coerces unknown values to FilterAll.
func NormalizeFilter(f string) string {
	switch f = strings.ToLower(strings.TrimSpace(f)); f {
	case TypeMessage, TypeComment, TypeLike:
		return f
	default:
		return FilterAll
	}
}

// RelativeTime renders ts relative to now in Portuguese. Timestamps in the
// future (clock skew between sources) read as "agora mesmo".
func RelativeTime(ts, now time.Time) string {
	if ts.After(now) {
		return "agora mesmo"
	}
	return humanize.CustomRelTime(ts, now, "atrás", "", relTime)
}

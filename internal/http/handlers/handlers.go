// Package handlers exposes the REST and WebSocket endpoints of the chat
// backend.
//
// Handlers are transport-thin: they validate input, call application
// services, project results through view.Presenter for the calling viewer and
// translate service errors into the stable error envelope.
package handlers

import (
	"context"
	"fmt"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"

	"github.com/coony/chat-backend/internal/domain"
	"github.com/coony/chat-backend/internal/http/middleware"
	"github.com/coony/chat-backend/internal/realtime"
	"github.com/coony/chat-backend/internal/repo"
	"github.com/coony/chat-backend/internal/services"
	"github.com/coony/chat-backend/internal/utils"
	"github.com/coony/chat-backend/internal/view"
)

//
// Service contracts (context-aware)
//

// UserService manages identities and profiles.
type UserService interface {
	Register(ctx context.Context, in services.RegisterInput) (*domain.User, error)
	Authenticate(ctx context.Context, login, password string) (*domain.User, error)
	Get(ctx context.Context, id uint) (*domain.User, error)
	GetByHandle(ctx context.Context, raw string) (*domain.User, error)
	UpdateProfile(ctx context.Context, id uint, in services.ProfileInput) (*domain.User, error)
	Search(ctx context.Context, viewerID uint, q string) ([]domain.User, error)
}

// ConversationService is the conversation registry.
type ConversationService interface {
	GetOrCreate(ctx context.Context, a, b uint) (*domain.Conversation, error)
	ListForUser(ctx context.Context, userID uint) ([]services.ConversationSummary, error)
	Summary(ctx context.Context, conversationID, userID uint) (*services.ConversationSummary, error)
	IsParticipant(ctx context.Context, conversationID, userID uint) (bool, error)
	ListStats(ctx context.Context, userID uint) (repo.Stats, error)
}

// MessageService is the message log of a conversation.
type MessageService interface {
	Append(ctx context.Context, conversationID, authorID uint, text string) (*domain.Message, error)
	Delete(ctx context.Context, messageID, userID uint, scope string) (*domain.Message, error)
	ListVisible(ctx context.Context, conversationID, viewerID uint) ([]domain.Message, error)
	GetVisible(ctx context.Context, messageID, userID uint) (*domain.Message, error)
	Replay(ctx context.Context, userID, conversationID uint, key string) (*domain.Message, bool)
	Remember(ctx context.Context, userID, conversationID uint, key string, messageID uint, status int) error
	Stats(ctx context.Context, conversationID, viewerID uint) (repo.Stats, error)
}

// NotificationService computes the notification feed.
type NotificationService interface {
	BuildFeed(ctx context.Context, userID uint, typeFilter, query string) (*services.Feed, error)
	Clear(ctx context.Context, userID uint) (time.Time, error)
}

// SocialService manages posts, likes and comments.
type SocialService interface {
	CreatePost(ctx context.Context, authorID uint, text string) (*domain.Post, error)
	GetPost(ctx context.Context, id uint) (*domain.Post, error)
	ListPosts(ctx context.Context, page, pageSize int) ([]repo.PostRow, int64, error)
	DeletePost(ctx context.Context, postID, actorID uint) error
	ToggleLike(ctx context.Context, postID, userID uint) (bool, error)
	Comment(ctx context.Context, postID, authorID uint, text string) (*domain.Comment, error)
}

// TokenIssuer mints session tokens.
type TokenIssuer interface {
	Issue(userID uint) (string, time.Time, error)
}

//
// Handler wiring
//

// Deps carries everything Handlers needs. Realtime fields may be left zero
// when the WebSocket endpoint is not mounted.
type Deps struct {
	Users         UserService
	Conversations ConversationService
	Messages      MessageService
	Notifications NotificationService
	Social        SocialService
	Tokens        TokenIssuer
	Presenter     view.Presenter

	// CookieName is the session cookie set on login; empty disables it.
	CookieName string

	Broker         realtime.Broker
	Hub            *realtime.Hub
	SendBuffer     int
	AllowedOrigins []string
}

// Handlers groups the HTTP endpoints. It depends on abstract service
// interfaces to keep transport concerns separate from business logic.
type Handlers struct {
	users   UserService
	convs   ConversationService
	msgs    MessageService
	notifs  NotificationService
	social  SocialService
	tokens  TokenIssuer
	present view.Presenter
	cookie  string

	broker     realtime.Broker
	hub        *realtime.Hub
	sendBuffer int
	upgrader   websocket.Upgrader
}

// New constructs and returns a Handlers instance bound to the given services.
func New(d Deps) *Handlers {
	h := &Handlers{
		users:      d.Users,
		convs:      d.Conversations,
		msgs:       d.Messages,
		notifs:     d.Notifications,
		social:     d.Social,
		tokens:     d.Tokens,
		present:    d.Presenter,
		cookie:     d.CookieName,
		broker:     d.Broker,
		hub:        d.Hub,
		sendBuffer: d.SendBuffer,
	}
	h.upgrader = websocket.Upgrader{
		ReadBufferSize:  1024,
		WriteBufferSize: 1024,
		CheckOrigin:     originChecker(d.AllowedOrigins),
	}
	return h
}

//
// Helpers
//

// viewer returns the authenticated user id. Routes using it sit behind
// middleware.RequireUser, so a missing identity is a wiring bug.
func viewer(c *gin.Context) uint {
	id, _ := middleware.UserID(c)
	return id
}

// pathID parses a positive numeric path parameter, writing a 400 when it is
// not one.
func pathID(c *gin.Context, name, what string) (uint, bool) {
	n, err := strconv.ParseUint(c.Param(name), 10, 64)
	if err != nil || n == 0 {
		fail(c, http.StatusBadRequest, ErrCodeBadRequest, what+" inválido")
		return 0, false
	}
	return uint(n), true
}

// etagMatch sets a weak ETag built from st and reports whether the client
// already holds it.
func etagMatch(c *gin.Context, kind string, owner uint, st repo.Stats) bool {
	var ts int64
	if st.MaxUpdatedAt != nil {
		ts = st.MaxUpdatedAt.UnixNano()
	}
	etag := fmt.Sprintf(`W/"%s:%d:%d:%d:%d"`, kind, owner, st.Count, ts, st.Hidden)
	c.Header("ETag", etag)
	if inm := c.GetHeader("If-None-Match"); inm != "" && inm == etag {
		c.Status(http.StatusNotModified)
		return true
	}
	return false
}

// Pagination carries pagination metadata for list responses.
type Pagination = utils.Page

// clampPagination reads the page and page_size query params.
func clampPagination(c *gin.Context) (page, pageSize int) {
	return utils.ClampPage(c.Query("page"), c.Query("page_size"), utils.DefaultPageBounds)
}

// idempotencyKey returns the key validated upstream, falling back to the raw
// header when no validator is mounted.
func idempotencyKey(c *gin.Context) string {
	if k, ok := middleware.GetIdempotencyKey(c); ok {
		return k
	}
	return strings.TrimSpace(c.GetHeader(middleware.HeaderIdempotencyKey))
}

// originChecker accepts requests without an Origin header, same-host
// origins and the configured origins. With no configured origins only the
// same host is accepted, like gorilla's default check.
func originChecker(allowed []string) func(*http.Request) bool {
	set := make(map[string]struct{}, len(allowed))
	for _, o := range allowed {
		set[strings.TrimRight(o, "/")] = struct{}{}
	}
	return func(r *http.Request) bool {
		origin := r.Header.Get("Origin")
		if origin == "" {
			return true
		}
		if _, ok := set[origin]; ok {
			return true
		}
		u, err := url.Parse(origin)
		if err != nil {
			return false
		}
		return strings.EqualFold(u.Host, r.Host)
	}
}

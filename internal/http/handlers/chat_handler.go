// Conversation HTTP handlers.
//
// This file exposes REST endpoints for private conversations:
//   - GET  /conversations         (inbox, weak ETag support)
//   - POST /conversations/start   (get or create the conversation with @handle)
//
// Handlers are transport-thin: they validate input, call application services,
// and translate results into HTTP responses (including conditional responses).
package handlers

import (
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"

	"github.com/coony/chat-backend/internal/services"
	"github.com/coony/chat-backend/internal/view"
)

//
// DTOs
//

// StartConversationRequest names the other participant by handle.
type StartConversationRequest struct {
	// Username is the partner's handle, with or without the leading "@".
	Username string `json:"username" example:"@bruno-lima-042117"`
}

// ConversationResponse wraps one conversation as the caller sees it.
type ConversationResponse struct {
	Conversation view.Conversation `json:"conversation"`
}

// ListConversationsResponse is the caller's inbox, most recent first.
type ListConversationsResponse struct {
	Conversations []view.Conversation `json:"conversations"`
}

//
// Handlers
//

// ListConversations godoc
// @ID          listConversations
// @Summary     List conversations
// @Description Returns the caller's conversations ordered by recent activity, each with the partner and
// @Description the last message the caller can see. Supports weak ETag via If-None-Match and may return 304.
// @Tags        Conversations
// @Produce     json
// @Security    BearerAuth
// @Param       If-None-Match  header  string  false "Return 304 if ETag matches"
// @Success     200  {object} handlers.ListConversationsResponse
// @Header      200  {string} ETag  "Weak ETag for current result"
// @Success     304  {string} string "Not Modified"
// @Failure     401  {object} handlers.ErrorResponse "Unauthenticated"
// @Failure     500  {object} handlers.ErrorResponse "Internal error"
// @Router      /conversations [get]
func (h *Handlers) ListConversations(c *gin.Context) {
	ctx := c.Request.Context()
	uid := viewer(c)

	// ETag pre-check (best effort).
	if st, err := h.convs.ListStats(ctx, uid); err == nil {
		if etagMatch(c, "conversations", uid, st) {
			return
		}
	}

	items, err := h.convs.ListForUser(ctx, uid)
	if err != nil {
		failErr(c, err)
		return
	}
	out := make([]view.Conversation, 0, len(items))
	for _, it := range items {
		out = append(out, h.present.Conversation(it.Conversation, uid, it.LastVisible))
	}
	ok(c, http.StatusOK, ListConversationsResponse{Conversations: out})
}

// StartConversation godoc
// @ID          startConversation
// @Summary     Start a conversation
// @Description Returns the private conversation with the given user, creating it on first contact.
// @Description Calling it again for the same pair returns the same conversation.
// @Tags        Conversations
// @Accept      json
// @Produce     json
// @Security    BearerAuth
// @Param       body  body      handlers.StartConversationRequest  true  "Partner handle"
// @Success     201   {object}  handlers.ConversationResponse
// @Failure     400   {object}  handlers.ErrorResponse "Blank or invalid handle, or the caller's own handle"
// @Failure     404   {object}  handlers.ErrorResponse "Unknown handle"
// @Router      /conversations/start [post]
func (h *Handlers) StartConversation(c *gin.Context) {
	ctx := c.Request.Context()
	uid := viewer(c)

	var req StartConversationRequest
	if err := c.ShouldBindJSON(&req); err != nil || strings.TrimSpace(req.Username) == "" {
		fail(c, http.StatusBadRequest, ErrCodeValidation, "Informe um @usuario válido")
		return
	}
	other, err := h.users.GetByHandle(ctx, req.Username)
	if err != nil {
		failErr(c, err)
		return
	}
	if other.ID == uid {
		failErr(c, services.ErrSelfConversation)
		return
	}

	conv, err := h.convs.GetOrCreate(ctx, uid, other.ID)
	if err != nil {
		failErr(c, err)
		return
	}
	sum, err := h.convs.Summary(ctx, conv.ID, uid)
	if err != nil {
		failErr(c, err)
		return
	}
	ok(c, http.StatusCreated, ConversationResponse{
		Conversation: h.present.Conversation(sum.Conversation, uid, sum.LastVisible),
	})
}

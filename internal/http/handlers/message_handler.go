// Message HTTP handlers.
//
// This file exposes REST endpoints for conversation messages:
//   - GET  /conversations/{id}/messages       (visible messages, weak ETag)
//   - POST /conversations/{id}/messages/send  (append a message)
//   - POST /messages/{id}/delete              (hide for self or delete for all)
//
// Idempotency:
// If the client supplies an Idempotency-Key header and a previous send exists
// for (user, conversation, key), the handler returns the recorded message
// and sets `Idempotency-Replayed: true` instead of appending again.
package handlers

import (
	"errors"
	"io"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"

	"github.com/coony/chat-backend/internal/http/middleware"
	"github.com/coony/chat-backend/internal/services"
	"github.com/coony/chat-backend/internal/view"
)

//
// DTOs
//

// SendMessageRequest is the JSON payload for sending a message.
type SendMessageRequest struct {
	// Text is the message body; CRLF is normalized and surrounding blanks trimmed.
	Text string `json:"text" example:"oi, tudo bem?"`
}

// MessageResponse wraps one message as the caller sees it.
type MessageResponse struct {
	Message view.Message `json:"message"`
}

// ListMessagesResponse holds a conversation's visible messages, oldest first.
type ListMessagesResponse struct {
	Messages []view.Message `json:"messages"`
}

// DeleteMessageRequest selects the delete scope.
type DeleteMessageRequest struct {
	// Scope is "self" (hide for the caller, the default) or "all" (author
	// only). Case-insensitive.
	Scope string `json:"scope" example:"all"`
}

// DeleteMessageResponse carries the refreshed conversation and, for a global
// delete, the redacted message.
type DeleteMessageResponse struct {
	Message      *view.Message     `json:"message,omitempty"`
	Conversation view.Conversation `json:"conversation"`
}

//
// Handlers
//

// ListMessages godoc
// @ID          listMessages
// @Summary     List messages in a conversation
// @Description Returns the messages the caller can see, oldest first. Messages deleted for everyone stay in
// @Description the list with a placeholder. Supports weak ETag via If-None-Match and may return 304.
// @Tags        Messages
// @Produce     json
// @Security    BearerAuth
// @Param       id             path    int     true  "Conversation ID"
// @Param       If-None-Match  header  string  false "Return 304 if ETag matches"
// @Success     200  {object} handlers.ListMessagesResponse
// @Success     304  {string} string "Not Modified"
// @Failure     400  {object} handlers.ErrorResponse "Bad request"
// @Failure     404  {object} handlers.ErrorResponse "Conversation not found"
// @Router      /conversations/{id}/messages [get]
func (h *Handlers) ListMessages(c *gin.Context) {
	ctx := c.Request.Context()
	uid := viewer(c)
	convID, okID := pathID(c, "id", "ID da conversa")
	if !okID {
		return
	}

	member, err := h.convs.IsParticipant(ctx, convID, uid)
	if err != nil {
		failErr(c, err)
		return
	}
	if !member {
		failErr(c, services.ErrConversationNotFound)
		return
	}

	// ETag pre-check (best effort).
	if st, err := h.msgs.Stats(ctx, convID, uid); err == nil {
		if etagMatch(c, "messages", convID, st) {
			return
		}
	}

	items, err := h.msgs.ListVisible(ctx, convID, uid)
	if err != nil {
		failErr(c, err)
		return
	}
	ok(c, http.StatusOK, ListMessagesResponse{Messages: h.present.Messages(items, uid)})
}

// SendMessage godoc
// @ID          sendMessage
// @Summary     Send a message
// @Description Appends a message to the conversation and notifies connected participants.
// @Description Supports idempotency via the Idempotency-Key header (same key, same message).
// @Tags        Messages
// @Accept      json
// @Produce     json
// @Security    BearerAuth
// @Param       Idempotency-Key  header  string  false "Idempotency key for safe retries"
// @Param       id               path    int     true  "Conversation ID"
// @Param       body             body    handlers.SendMessageRequest  true  "Message payload"
// @Success     201  {object}  handlers.MessageResponse
// @Header      201  {string}  Idempotency-Replayed  "true when the response is a replay"
// @Failure     400  {object}  handlers.ErrorResponse  "Empty or too long text"
// @Failure     404  {object}  handlers.ErrorResponse  "Conversation not found"
// @Router      /conversations/{id}/messages/send [post]
func (h *Handlers) SendMessage(c *gin.Context) {
	ctx := c.Request.Context()
	uid := viewer(c)
	convID, okID := pathID(c, "id", "ID da conversa")
	if !okID {
		return
	}

	var req SendMessageRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		fail(c, http.StatusBadRequest, ErrCodeBadRequest, "JSON inválido")
		return
	}

	// Idempotency (replay path).
	key := idempotencyKey(c)
	if key != "" {
		if prev, found := h.msgs.Replay(ctx, uid, convID, key); found {
			c.Header("Idempotency-Replayed", "true")
			ok(c, http.StatusCreated, MessageResponse{Message: h.present.Message(*prev, uid)})
			return
		}
	}

	m, err := h.msgs.Append(ctx, convID, uid, req.Text)
	if err != nil {
		failErr(c, err)
		return
	}

	// Idempotency (store path), best effort.
	if key != "" {
		if err := h.msgs.Remember(ctx, uid, convID, key, m.ID, http.StatusCreated); err != nil {
			middleware.LoggerFrom(c).Warn().Err(err).Uint("message_id", m.ID).Msg("idempotency record not stored")
		}
	}

	ok(c, http.StatusCreated, MessageResponse{Message: h.present.Message(*m, uid)})
}

// DeleteMessage godoc
// @ID          deleteMessage
// @Summary     Delete a message
// @Description scope=self hides the message for the caller only. scope=all replaces it with a placeholder
// @Description for every participant; only the author may do it, and only once.
// @Tags        Messages
// @Accept      json
// @Produce     json
// @Security    BearerAuth
// @Param       id    path      int  true  "Message ID"
// @Param       body  body      handlers.DeleteMessageRequest  false  "Delete scope (defaults to self)"
// @Success     200   {object}  handlers.DeleteMessageResponse
// @Failure     400   {object}  handlers.ErrorResponse  "Invalid scope or already deleted for everyone"
// @Failure     403   {object}  handlers.ErrorResponse  "Not the author"
// @Failure     404   {object}  handlers.ErrorResponse  "Message not found"
// @Router      /messages/{id}/delete [post]
func (h *Handlers) DeleteMessage(c *gin.Context) {
	ctx := c.Request.Context()
	uid := viewer(c)
	msgID, okID := pathID(c, "id", "ID da mensagem")
	if !okID {
		return
	}

	// A missing body or scope hides for the caller.
	var req DeleteMessageRequest
	if err := c.ShouldBindJSON(&req); err != nil && !errors.Is(err, io.EOF) {
		failErr(c, services.ErrInvalidScope)
		return
	}
	req.Scope = strings.ToLower(strings.TrimSpace(req.Scope))
	if req.Scope == "" {
		req.Scope = services.ScopeSelf
	}

	m, err := h.msgs.Delete(ctx, msgID, uid, req.Scope)
	if err != nil {
		failErr(c, err)
		return
	}
	sum, err := h.convs.Summary(ctx, m.ConversationID, uid)
	if err != nil {
		failErr(c, err)
		return
	}

	resp := DeleteMessageResponse{
		Conversation: h.present.Conversation(sum.Conversation, uid, sum.LastVisible),
	}
	if req.Scope == services.ScopeAll {
		mv := h.present.Message(*m, uid)
		resp.Message = &mv
	}
	ok(c, http.StatusOK, resp)
}

// Realtime WebSocket handler.
//
//   - GET /ws/chat/{id}   (one socket per conversation)
//
// Admission happens after the upgrade so failures reach the browser as close
// codes: 4401 without a session identity, 4400 for a missing or malformed
// conversation id, 4403 when the caller is not a participant.
package handlers

import (
	"context"
	"strconv"

	"github.com/gin-gonic/gin"

	"github.com/coony/chat-backend/internal/http/middleware"
	"github.com/coony/chat-backend/internal/realtime"
)

// ChatSocket godoc
// @ID          chatSocket
// @Summary     Conversation event stream (WebSocket)
// @Description Pushes {event:"message", message, conversation} frames, projected for the caller, whenever a
// @Description message is sent or deleted for everyone in the conversation. The session token may be passed
// @Description in the Authorization header, the session cookie or the token query parameter.
// @Tags        Realtime
// @Param       id     path   int     true   "Conversation ID"
// @Param       token  query  string  false  "Session token"
// @Success     101  {string}  string  "Switching Protocols"
// @Router      /ws/chat/{id} [get]
func (h *Handlers) ChatSocket(c *gin.Context) {
	lg := middleware.LoggerFrom(c)

	ws, err := h.upgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		// The upgrader already wrote the HTTP error.
		lg.Debug().Err(err).Msg("websocket upgrade failed")
		return
	}

	uid, authed := middleware.UserID(c)
	if !authed {
		realtime.Reject(ws, realtime.CloseUnauthenticated, "unauthenticated")
		return
	}
	n, err := strconv.ParseUint(c.Param("id"), 10, 64)
	if err != nil || n == 0 {
		realtime.Reject(ws, realtime.CloseBadRequest, "missing conversation id")
		return
	}
	convID := uint(n)

	ctx := c.Request.Context()
	member, err := h.convs.IsParticipant(ctx, convID, uid)
	if err != nil || !member {
		if err != nil {
			lg.Warn().Err(err).Uint("conversation_id", convID).Msg("websocket admission check failed")
		}
		realtime.Reject(ws, realtime.CloseForbidden, "forbidden")
		return
	}

	conn := realtime.NewConnection(uid, ws, h.sendBuffer)
	if h.hub != nil {
		h.hub.Attach(conn)
		defer h.hub.Detach(conn)
	}
	sess := realtime.NewSession(conn, convID, h.broker, realtime.ProjectorFunc(h.project), *lg)
	if err := sess.Run(ctx); err != nil {
		lg.Debug().Err(err).Msg("realtime session ended")
	}
}

// project re-fetches an event's message and conversation for viewerID. A
// message the viewer hid, or lost access to, is an error and the session
// drops the event.
func (h *Handlers) project(ctx context.Context, viewerID uint, ev realtime.Event) (any, any, error) {
	m, err := h.msgs.GetVisible(ctx, ev.MessageID, viewerID)
	if err != nil {
		return nil, nil, err
	}
	sum, err := h.convs.Summary(ctx, ev.ConversationID, viewerID)
	if err != nil {
		return nil, nil, err
	}
	return h.present.Message(*m, viewerID),
		h.present.Conversation(sum.Conversation, viewerID, sum.LastVisible),
		nil
}

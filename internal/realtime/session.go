package realtime

import (
	"context"
	"encoding/json"
	"sync"

	"github.com/gorilla/websocket"
	"github.com/rs/zerolog"
)

// Projector renders an event for one viewer. It runs on the session's own
// goroutine, so slow storage never stalls the broker's delivery path.
// A non-nil error drops the event for that viewer only.
type Projector interface {
	Project(ctx context.Context, viewerID uint, ev Event) (message, conversation any, err error)
}

// ProjectorFunc adapts a function to Projector.
type ProjectorFunc func(ctx context.Context, viewerID uint, ev Event) (any, any, error)

// Project implements Projector.
func (f ProjectorFunc) Project(ctx context.Context, viewerID uint, ev Event) (any, any, error) {
	return f(ctx, viewerID, ev)
}

// Frame is the payload pushed to clients for every event.
type Frame struct {
	Event        string `json:"event"`
	Message      any    `json:"message"`
	Conversation any    `json:"conversation"`
}

// Session is one admitted socket bound to a viewer and a conversation.
type Session struct {
	ViewerID       uint
	ConversationID uint

	conn      *Connection
	broker    Broker
	projector Projector
	log       zerolog.Logger
}

// NewSession binds an admitted connection to a conversation group.
func NewSession(conn *Connection, conversationID uint, broker Broker, projector Projector, log zerolog.Logger) *Session {
	return &Session{
		ViewerID:       conn.UserID,
		ConversationID: conversationID,
		conn:           conn,
		broker:         broker,
		projector:      projector,
		log: log.With().
			Str("session_id", conn.ID).
			Uint("user_id", conn.UserID).
			Uint("conversation_id", conversationID).
			Logger(),
	}
}

// Run subscribes to the conversation group and relays events until the
// client disconnects, the connection is closed or ctx is cancelled. The
// subscription is always released before Run returns.
func (s *Session) Run(ctx context.Context) error {
	sub, err := s.broker.Subscribe(s.ConversationID)
	if err != nil {
		s.conn.Close(websocket.CloseInternalServerErr, "subscribe failed")
		return err
	}
	defer sub.Close()

	sessionsActive.Inc()
	defer sessionsActive.Dec()

	s.conn.Start()
	s.log.Info().Msg("realtime session admitted")

	readDone := make(chan struct{})
	go func() {
		defer close(readDone)
		if err := s.conn.ReadLoop(); err != nil && !websocket.IsCloseError(err,
			websocket.CloseNormalClosure, websocket.CloseGoingAway, websocket.CloseNoStatusReceived) {
			s.log.Debug().Err(err).Msg("realtime read ended")
		}
	}()

	defer func() {
		s.conn.Close(websocket.CloseNormalClosure, "session closed")
		<-readDone
		s.log.Info().Msg("realtime session closed")
	}()

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-readDone:
			return nil
		case <-s.conn.Done():
			return nil
		case ev, ok := <-sub.C:
			if !ok {
				return nil
			}
			s.deliver(ctx, ev)
		}
	}
}

// deliver re-fetches ev for this session's viewer and queues the frame.
func (s *Session) deliver(ctx context.Context, ev Event) {
	msg, conv, err := s.projector.Project(ctx, s.ViewerID, ev)
	if err != nil {
		framesDropped.WithLabelValues("projection").Inc()
		s.log.Debug().Err(err).Uint("message_id", ev.MessageID).Msg("realtime event dropped")
		return
	}
	payload, err := json.Marshal(Frame{Event: "message", Message: msg, Conversation: conv})
	if err != nil {
		framesDropped.WithLabelValues("encode").Inc()
		s.log.Error().Err(err).Msg("realtime frame encode failed")
		return
	}
	if err := s.conn.Send(payload); err != nil {
		framesDropped.WithLabelValues("send").Inc()
		return
	}
	framesDelivered.Inc()
}

// Hub tracks live connections so they can be closed on shutdown.
type Hub struct {
	mu    sync.Mutex
	conns map[string]*Connection
}

// NewHub returns an empty Hub.
func NewHub() *Hub {
	return &Hub{conns: make(map[string]*Connection)}
}

// Attach registers conn.
func (h *Hub) Attach(conn *Connection) {
	h.mu.Lock()
	h.conns[conn.ID] = conn
	h.mu.Unlock()
}

// Detach forgets conn if still tracked.
func (h *Hub) Detach(conn *Connection) {
	h.mu.Lock()
	delete(h.conns, conn.ID)
	h.mu.Unlock()
}

// Len reports the number of tracked connections.
func (h *Hub) Len() int {
	h.mu.Lock()
	defer h.mu.Unlock()
	return len(h.conns)
}

// Close terminates every tracked connection with 1001 (going away).
func (h *Hub) Close() {
	h.mu.Lock()
	conns := make([]*Connection, 0, len(h.conns))
	for _, c := range h.conns {
		conns = append(conns, c)
	}
	h.conns = make(map[string]*Connection)
	h.mu.Unlock()

	for _, c := range conns {
		c.Close(websocket.CloseGoingAway, "server shutdown")
	}
}

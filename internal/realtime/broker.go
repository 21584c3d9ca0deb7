// Package realtime implements the WebSocket fan-out for private conversations.
//
// Delivery model:
//   - Every conversation has a named group ("chat_<id>").
//   - A broadcast carries identifiers only (Event); it never carries a
//     rendered message, because the rendering depends on who is looking.
//   - Each Session re-fetches the message for its own viewer before pushing.
//
// Delivery is at-most-once. A subscriber whose buffer is full misses the
// event, and a session that cannot re-fetch drops it.
package realtime

import (
	"context"
	"errors"
	"strconv"
	"strings"
	"sync"
)

// groupPrefix names conversation groups; see GroupName.
const groupPrefix = "chat_"

// ErrBrokerClosed is returned by Publish/Subscribe after Close.
var ErrBrokerClosed = errors.New("realtime: broker closed")

// Event announces that a message in a conversation was created or changed.
type Event struct {
	MessageID      uint `json:"message_id"`
	ConversationID uint `json:"conversation_id"`
}

// GroupName returns the fan-out group for a conversation.
func GroupName(conversationID uint) string {
	return groupPrefix + strconv.FormatUint(uint64(conversationID), 10)
}

// parseGroup is the inverse of GroupName.
func parseGroup(name string) (uint, bool) {
	if !strings.HasPrefix(name, groupPrefix) {
		return 0, false
	}
	id, err := strconv.ParseUint(strings.TrimPrefix(name, groupPrefix), 10, 64)
	if err != nil || id == 0 {
		return 0, false
	}
	return uint(id), true
}

// Broker fans events out to the subscribers of a conversation group.
// Implementations must be safe for concurrent use.
type Broker interface {
	// Publish delivers ev to every current subscriber of its conversation.
	// It never blocks on a slow subscriber.
	Publish(ctx context.Context, ev Event) error
	// Subscribe joins the conversation's group.
	Subscribe(conversationID uint) (*Subscription, error)
	// Close releases resources and closes every subscription channel.
	Close() error
}

// Subscription is one member of a conversation group. C is closed when the
// subscription or its broker is closed.
type Subscription struct {
	C <-chan Event

	once   sync.Once
	cancel func()
}

// Close leaves the group. Safe to call more than once.
func (s *Subscription) Close() {
	s.once.Do(s.cancel)
}

// MemoryBroker is an in-process Broker. Each subscription owns a buffered
// channel; publishing performs a non-blocking send to each.
type MemoryBroker struct {
	mu     sync.RWMutex
	groups map[string]map[uint64]chan Event
	nextID uint64
	buffer int
	closed bool
}

// NewMemoryBroker returns a broker whose subscription channels hold up to
// buffer pending events (minimum 1).
func NewMemoryBroker(buffer int) *MemoryBroker {
	if buffer < 1 {
		buffer = 1
	}
	return &MemoryBroker{
		groups: make(map[string]map[uint64]chan Event),
		buffer: buffer,
	}
}

// Publish implements Broker.
func (b *MemoryBroker) Publish(_ context.Context, ev Event) error {
	if _, err := b.dispatch(GroupName(ev.ConversationID), ev); err != nil {
		return err
	}
	eventsPublished.Inc()
	return nil
}

// dispatch sends ev to every subscriber of group and returns how many
// accepted it.
func (b *MemoryBroker) dispatch(group string, ev Event) (int, error) {
	b.mu.RLock()
	defer b.mu.RUnlock()
	if b.closed {
		return 0, ErrBrokerClosed
	}
	delivered := 0
	for _, ch := range b.groups[group] {
		select {
		case ch <- ev:
			delivered++
		default:
			framesDropped.WithLabelValues("subscriber_full").Inc()
		}
	}
	return delivered, nil
}

// Subscribe implements Broker.
func (b *MemoryBroker) Subscribe(conversationID uint) (*Subscription, error) {
	group := GroupName(conversationID)
	ch := make(chan Event, b.buffer)

	b.mu.Lock()
	if b.closed {
		b.mu.Unlock()
		return nil, ErrBrokerClosed
	}
	b.nextID++
	id := b.nextID
	members := b.groups[group]
	if members == nil {
		members = make(map[uint64]chan Event)
		b.groups[group] = members
	}
	members[id] = ch
	b.mu.Unlock()

	return &Subscription{
		C: ch,
		cancel: func() {
			b.mu.Lock()
			defer b.mu.Unlock()
			members := b.groups[group]
			if c, ok := members[id]; ok {
				delete(members, id)
				close(c)
			}
			if len(members) == 0 {
				delete(b.groups, group)
			}
		},
	}, nil
}

// Subscribers reports how many subscriptions a conversation group has.
func (b *MemoryBroker) Subscribers(conversationID uint) int {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return len(b.groups[GroupName(conversationID)])
}

// Close implements Broker.
func (b *MemoryBroker) Close() error {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.closed {
		return nil
	}
	b.closed = true
	for group, members := range b.groups {
		for id, ch := range members {
			close(ch)
			delete(members, id)
		}
		delete(b.groups, group)
	}
	return nil
}

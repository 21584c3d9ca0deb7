package realtime

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"
	"time"

	redis "github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"
)

// RedisBroker spreads events across server nodes. Publish goes to the Redis
// channel named after the conversation group; every node pattern-subscribes
// to all groups and re-dispatches into its local MemoryBroker, where the
// node's own sessions are subscribed.
type RedisBroker struct {
	client *redis.Client
	pubsub *redis.PubSub
	local  *MemoryBroker
	log    zerolog.Logger

	wg   sync.WaitGroup
	once sync.Once
}

// NewRedisBroker connects to url (redis://...), verifies the connection and
// starts the relay loop.
func NewRedisBroker(ctx context.Context, url string, buffer int, log zerolog.Logger) (*RedisBroker, error) {
	opt, err := redis.ParseURL(url)
	if err != nil {
		return nil, fmt.Errorf("redis: parse url: %w", err)
	}
	client := redis.NewClient(opt)

	pingCtx, cancel := context.WithTimeout(ctx, 3*time.Second)
	defer cancel()
	if err := client.Ping(pingCtx).Err(); err != nil {
		_ = client.Close()
		return nil, fmt.Errorf("redis: ping: %w", err)
	}

	ps := client.PSubscribe(ctx, groupPrefix+"*")
	// Wait for the subscription confirmation so no early publish is missed.
	if _, err := ps.Receive(pingCtx); err != nil {
		_ = ps.Close()
		_ = client.Close()
		return nil, fmt.Errorf("redis: psubscribe: %w", err)
	}

	b := &RedisBroker{
		client: client,
		pubsub: ps,
		local:  NewMemoryBroker(buffer),
		log:    log.With().Str("component", "realtime.redis").Logger(),
	}
	b.wg.Add(1)
	go b.relay()
	return b, nil
}

// Publish implements Broker.
func (b *RedisBroker) Publish(ctx context.Context, ev Event) error {
	payload, err := encodeEvent(ev)
	if err != nil {
		return err
	}
	if err := b.client.Publish(ctx, GroupName(ev.ConversationID), payload).Err(); err != nil {
		return err
	}
	eventsPublished.Inc()
	return nil
}

// Subscribe implements Broker.
func (b *RedisBroker) Subscribe(conversationID uint) (*Subscription, error) {
	return b.local.Subscribe(conversationID)
}

// Close implements Broker.
func (b *RedisBroker) Close() error {
	var err error
	b.once.Do(func() {
		err = b.pubsub.Close()
		b.wg.Wait()
		_ = b.local.Close()
		if cerr := b.client.Close(); err == nil {
			err = cerr
		}
	})
	return err
}

func (b *RedisBroker) relay() {
	defer b.wg.Done()
	for msg := range b.pubsub.Channel() {
		ev, err := decodeEvent(msg.Channel, msg.Payload)
		if err != nil {
			b.log.Warn().Err(err).Str("channel", msg.Channel).Msg("invalid realtime payload")
			continue
		}
		if _, err := b.local.dispatch(msg.Channel, ev); err != nil {
			return
		}
	}
}

func encodeEvent(ev Event) ([]byte, error) {
	return json.Marshal(ev)
}

// decodeEvent parses a relayed payload and checks it against its channel.
func decodeEvent(channel, payload string) (Event, error) {
	var ev Event
	if err := json.Unmarshal([]byte(payload), &ev); err != nil {
		return Event{}, err
	}
	id, ok := parseGroup(channel)
	if !ok || id != ev.ConversationID || ev.MessageID == 0 {
		return Event{}, fmt.Errorf("event %+v does not belong to %q", ev, channel)
	}
	return ev, nil
}

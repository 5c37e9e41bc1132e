package changefeed

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"

	"kolabnaskah/pkg/logger"

	"github.com/redis/go-redis/v9"
)

// RedisFeed carries events over Redis pub/sub. Every event is published on
// a per-table and a per-row channel.
type RedisFeed struct {
	client *redis.Client
	prefix string
}

func NewRedisFeed(client *redis.Client) *RedisFeed {
	return &RedisFeed{client: client, prefix: "changes:"}
}

func (f *RedisFeed) channel(table, rowID string) string {
	if rowID == "" {
		return f.prefix + table
	}
	return f.prefix + table + ":" + rowID
}

func (f *RedisFeed) Publish(ctx context.Context, e Event) error {
	payload, err := json.Marshal(e)
	if err != nil {
		return fmt.Errorf("marshal change event: %w", err)
	}
	pipe := f.client.Pipeline()
	pipe.Publish(ctx, f.channel(e.Table, ""), payload)
	pipe.Publish(ctx, f.channel(e.Table, e.RowID), payload)
	if _, err := pipe.Exec(ctx); err != nil {
		return fmt.Errorf("publish change: %w", err)
	}
	return nil
}

func (f *RedisFeed) Subscribe(ctx context.Context, filter Filter) (Subscription, error) {
	ps := f.client.Subscribe(ctx, f.channel(filter.Table, filter.RowID))
	// Wait for the confirmation so no event published after Subscribe
	// returns is missed.
	if _, err := ps.Receive(ctx); err != nil {
		ps.Close()
		return nil, fmt.Errorf("subscribe %s: %w", filter.Table, err)
	}

	s := &redisSub{ps: ps, ch: make(chan Event, subscriptionBuffer)}
	go s.run(filter)
	return s, nil
}

// Close is a no-op: the client is shared with the session store and is
// closed there.
func (f *RedisFeed) Close() error { return nil }

type redisSub struct {
	ps   *redis.PubSub
	ch   chan Event
	once sync.Once
}

func (s *redisSub) run(filter Filter) {
	defer close(s.ch)
	for msg := range s.ps.Channel() {
		var e Event
		if err := json.Unmarshal([]byte(msg.Payload), &e); err != nil {
			logger.Sugar.Errorf("Error unmarshalling change event: %v", err)
			continue
		}
		if filter.Matches(e) {
			deliver(s.ch, e)
		}
	}
}

func (s *redisSub) Events() <-chan Event { return s.ch }

func (s *redisSub) Close() error {
	var err error
	s.once.Do(func() { err = s.ps.Close() })
	return err
}

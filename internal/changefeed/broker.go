package changefeed

import (
	"context"
	"sync"
)

// Broker fans events out to in-process subscribers.
type Broker struct {
	mu     sync.RWMutex
	subs   map[*brokerSub]struct{}
	closed bool
}

func NewBroker() *Broker {
	return &Broker{subs: make(map[*brokerSub]struct{})}
}

func (b *Broker) Publish(_ context.Context, e Event) error {
	b.mu.RLock()
	defer b.mu.RUnlock()
	if b.closed {
		return ErrClosed
	}
	for s := range b.subs {
		if s.filter.Matches(e) {
			deliver(s.ch, e)
		}
	}
	return nil
}

func (b *Broker) Subscribe(_ context.Context, f Filter) (Subscription, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.closed {
		return nil, ErrClosed
	}
	s := &brokerSub{broker: b, filter: f, ch: make(chan Event, subscriptionBuffer)}
	b.subs[s] = struct{}{}
	return s, nil
}

// Close ends every open subscription.
func (b *Broker) Close() error {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.closed {
		return nil
	}
	b.closed = true
	for s := range b.subs {
		delete(b.subs, s)
		s.once.Do(func() { close(s.ch) })
	}
	return nil
}

// Len reports the number of open subscriptions.
func (b *Broker) Len() int {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return len(b.subs)
}

type brokerSub struct {
	broker *Broker
	filter Filter
	ch     chan Event
	once   sync.Once
}

func (s *brokerSub) Events() <-chan Event { return s.ch }

func (s *brokerSub) Close() error {
	s.broker.mu.Lock()
	defer s.broker.mu.Unlock()
	delete(s.broker.subs, s)
	s.once.Do(func() { close(s.ch) })
	return nil
}

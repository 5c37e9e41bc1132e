package changefeed

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"time"

	"kolabnaskah/pkg/logger"

	"github.com/lib/pq"
)

const (
	notifyChannel = "table_changes"
	// NOTIFY payloads are capped at 8000 bytes by the server.
	maxNotifyPayload = 7900
	listenerPing     = 90 * time.Second
)

// PostgresFeed publishes events with pg_notify and receives them on a
// dedicated LISTEN connection, so every server process sharing the
// database sees every change.
type PostgresFeed struct {
	db       *sql.DB
	listener *pq.Listener
	broker   *Broker
	done     chan struct{}
	stopped  chan struct{}
}

func NewPostgresFeed(db *sql.DB, databaseURL string) (*PostgresFeed, error) {
	listener := pq.NewListener(databaseURL, 10*time.Second, time.Minute, func(ev pq.ListenerEventType, err error) {
		if err != nil {
			logger.Sugar.Warnf("Changefeed listener event %d: %v", ev, err)
		}
	})
	if err := listener.Listen(notifyChannel); err != nil {
		listener.Close()
		return nil, fmt.Errorf("listen %s: %w", notifyChannel, err)
	}

	f := &PostgresFeed{
		db:       db,
		listener: listener,
		broker:   NewBroker(),
		done:     make(chan struct{}),
		stopped:  make(chan struct{}),
	}
	go f.run()
	return f, nil
}

func (f *PostgresFeed) run() {
	defer close(f.stopped)
	for {
		select {
		case n, ok := <-f.listener.Notify:
			if !ok {
				return
			}
			if n == nil {
				// Connection was re-established; notifications sent in
				// between are lost.
				logger.Sugar.Warn("Changefeed listener reconnected")
				continue
			}
			var e Event
			if err := json.Unmarshal([]byte(n.Extra), &e); err != nil {
				logger.Sugar.Errorf("Error unmarshalling change event: %v", err)
				continue
			}
			_ = f.broker.Publish(context.Background(), e)
		case <-time.After(listenerPing):
			go f.listener.Ping()
		case <-f.done:
			return
		}
	}
}

func (f *PostgresFeed) Publish(ctx context.Context, e Event) error {
	payload, err := json.Marshal(e)
	if err != nil {
		return fmt.Errorf("marshal change event: %w", err)
	}
	if len(payload) > maxNotifyPayload {
		e.Record = nil
		if payload, err = json.Marshal(e); err != nil {
			return fmt.Errorf("marshal change event: %w", err)
		}
	}
	if _, err := f.db.ExecContext(ctx, "SELECT pg_notify($1, $2)", notifyChannel, string(payload)); err != nil {
		return fmt.Errorf("notify change: %w", err)
	}
	return nil
}

func (f *PostgresFeed) Subscribe(ctx context.Context, filter Filter) (Subscription, error) {
	return f.broker.Subscribe(ctx, filter)
}

func (f *PostgresFeed) Close() error {
	select {
	case <-f.done:
		return nil
	default:
	}
	close(f.done)
	<-f.stopped
	f.broker.Close()
	return f.listener.Close()
}

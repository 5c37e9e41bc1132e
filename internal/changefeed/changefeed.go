// Package changefeed delivers row-level mutation events to subscribers
// scoped by table and, optionally, a single row id.
package changefeed

import (
	"context"
	"encoding/json"
	"errors"
)

type Op string

const (
	OpInsert Op = "INSERT"
	OpUpdate Op = "UPDATE"
	OpDelete Op = "DELETE"
)

const TableDocuments = "documents"

// ErrClosed is returned when subscribing to a feed that has shut down.
var ErrClosed = errors.New("changefeed: closed")

// Event is one storage-level mutation. Record holds the full row after the
// change (before it, for deletes). It is empty when the row was too large
// to broadcast; subscribers then re-read the row.
type Event struct {
	Table  string          `json:"table"`
	Op     Op              `json:"op"`
	RowID  string          `json:"row_id"`
	Record json.RawMessage `json:"record,omitempty"`
}

// Filter selects events for a table; an empty RowID matches every row.
type Filter struct {
	Table string
	RowID string
}

func (f Filter) Matches(e Event) bool {
	if f.Table != e.Table {
		return false
	}
	return f.RowID == "" || f.RowID == e.RowID
}

type Subscription interface {
	// Events is closed once the subscription is closed.
	Events() <-chan Event
	Close() error
}

type Publisher interface {
	Publish(ctx context.Context, e Event) error
}

type Subscriber interface {
	Subscribe(ctx context.Context, f Filter) (Subscription, error)
}

type Feed interface {
	Publisher
	Subscriber
	Close() error
}

// subscriptionBuffer bounds how far a slow subscriber may fall behind.
// Older events are dropped first: each one carries the full row, so the
// newest is all a subscriber needs.
const subscriptionBuffer = 16

func deliver(ch chan Event, e Event) {
	select {
	case ch <- e:
		return
	default:
	}
	select {
	case <-ch:
	default:
	}
	select {
	case ch <- e:
	default:
	}
}

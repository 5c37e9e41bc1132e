package socket

import (
	"context"
	"fmt"
	"net/url"
	"strings"
	"sync"

	"kolabnaskah/pkg/logger"

	"github.com/gorilla/websocket"
)

// Peer is one attachment to a relay room. Updates delivers the opaque
// updates sent by the other peers and is closed when the peer leaves the
// room, whoever caused it.
type Peer interface {
	Updates() <-chan []byte
	Send(ctx context.Context, update []byte) error
	Close() error
}

// Join attaches an in-process peer to room.
func (h *Hub) Join(ctx context.Context, room, userID string) (Peer, error) {
	select {
	case <-h.quit:
		return nil, ErrHubStopped
	default:
	}

	client := newClient(h, nil, room, userID)
	select {
	case h.Register <- client:
	case <-h.quit:
		return nil, ErrHubStopped
	case <-ctx.Done():
		return nil, ctx.Err()
	}

	p := &localPeer{client: client, updates: make(chan []byte, 256), done: make(chan struct{})}
	go p.forward()
	return p, nil
}

type localPeer struct {
	client  *Client
	updates chan []byte
	done    chan struct{}
	once    sync.Once
}

func (p *localPeer) forward() {
	defer close(p.updates)
	for frame := range p.client.Send {
		if frame.Type != websocket.BinaryMessage {
			continue
		}
		select {
		case p.updates <- frame.Data:
		case <-p.done:
			return
		}
	}
}

func (p *localPeer) Updates() <-chan []byte { return p.updates }

func (p *localPeer) Send(ctx context.Context, update []byte) error {
	return p.client.Hub.broadcast(ctx, Message{
		Room:   p.client.Room,
		Sender: p.client,
		Frame:  Frame{Type: websocket.BinaryMessage, Data: update},
	})
}

func (p *localPeer) Close() error {
	p.once.Do(func() {
		close(p.done)
		p.client.Hub.unregister(p.client)
	})
	return nil
}

// Dialer attaches peers to a relay reached over the network, this service's
// /relay endpoint or any relay speaking the same room-per-path protocol.
type Dialer struct {
	BaseURL string
	Dialer  *websocket.Dialer
}

func NewDialer(baseURL string) *Dialer {
	return &Dialer{BaseURL: strings.TrimRight(baseURL, "/"), Dialer: websocket.DefaultDialer}
}

func (d *Dialer) Join(ctx context.Context, room, userID string) (Peer, error) {
	u := d.BaseURL + "/" + url.PathEscape(room)
	if userID != "" {
		u += "?name=" + url.QueryEscape(userID)
	}
	conn, _, err := d.Dialer.DialContext(ctx, u, nil)
	if err != nil {
		return nil, fmt.Errorf("dial relay room %s: %w", room, err)
	}

	p := &remotePeer{conn: conn, updates: make(chan []byte, 256), done: make(chan struct{})}
	go p.readLoop()
	return p, nil
}

type remotePeer struct {
	conn    *websocket.Conn
	updates chan []byte
	done    chan struct{}
	writeMu sync.Mutex
	once    sync.Once
}

func (p *remotePeer) readLoop() {
	defer close(p.updates)
	for {
		messageType, data, err := p.conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseNormalClosure, websocket.CloseGoingAway) {
				logger.Sugar.Warnf("Relay connection dropped: %v", err)
			}
			return
		}
		if messageType != websocket.BinaryMessage {
			continue
		}
		select {
		case p.updates <- data:
		case <-p.done:
			return
		}
	}
}

func (p *remotePeer) Updates() <-chan []byte { return p.updates }

func (p *remotePeer) Send(ctx context.Context, update []byte) error {
	p.writeMu.Lock()
	defer p.writeMu.Unlock()
	if deadline, ok := ctx.Deadline(); ok {
		p.conn.SetWriteDeadline(deadline)
	} else {
		p.conn.SetWriteDeadline(timeNowPlusWriteWait())
	}
	return p.conn.WriteMessage(websocket.BinaryMessage, update)
}

func (p *remotePeer) Close() error {
	var err error
	p.once.Do(func() {
		close(p.done)
		p.writeMu.Lock()
		p.conn.WriteControl(websocket.CloseMessage,
			websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""), timeNowPlusWriteWait())
		p.writeMu.Unlock()
		err = p.conn.Close()
	})
	return err
}

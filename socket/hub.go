package socket

import (
	"context"
	"encoding/json"
	"errors"
	"sort"
	"sync"
	"time"

	"kolabnaskah/pkg/logger"

	"github.com/gorilla/websocket"
)

const (
	PresenceUpdateType = "PRESENCE_UPDATE" // A peer joined or left the room
)

// ErrHubStopped is returned when joining a relay that has shut down.
var ErrHubStopped = errors.New("relay hub stopped")

// Frame is one websocket message. Updates are relayed with their original
// message type and are never inspected.
type Frame struct {
	Type int
	Data []byte
}

type Message struct {
	Room   string
	Sender *Client
	Frame  Frame
}

type PresenceMessage struct {
	Type    string       `json:"type"`
	Room    string       `json:"room"`
	Payload []PeerStatus `json:"payload"`
}

type PeerStatus struct {
	UserID   string    `json:"user_id"`
	JoinedAt time.Time `json:"joined_at"`
}

// Hub is the collaboration relay: peers join a room by name and every
// update a peer sends is forwarded to the other peers in that room.
type Hub struct {
	Rooms      map[string]map[*Client]bool
	Broadcast  chan Message
	Register   chan *Client
	Unregister chan *Client
	mu         sync.Mutex
	quit       chan struct{}
	stopOnce   sync.Once
}

type Client struct {
	Hub      *Hub
	Conn     *websocket.Conn // nil for in-process peers
	Room     string
	UserID   string
	Send     chan Frame
	JoinedAt time.Time
}

func NewHub() *Hub {
	return &Hub{
		Rooms:      make(map[string]map[*Client]bool),
		Broadcast:  make(chan Message),
		Register:   make(chan *Client),
		Unregister: make(chan *Client),
		quit:       make(chan struct{}),
	}
}

func newClient(h *Hub, conn *websocket.Conn, room, userID string) *Client {
	return &Client{
		Hub:      h,
		Conn:     conn,
		Room:     room,
		UserID:   userID,
		Send:     make(chan Frame, 256),
		JoinedAt: time.Now(),
	}
}

func (h *Hub) Run() {
	for {
		select {
		case client := <-h.Register:
			h.mu.Lock()
			if h.Rooms[client.Room] == nil {
				h.Rooms[client.Room] = make(map[*Client]bool)
				roomsGauge.Inc()
			}
			h.Rooms[client.Room][client] = true
			peersGauge.Inc()
			h.mu.Unlock()

			logger.Sugar.Debugf("Peer %s joined relay room %s", client.UserID, client.Room)
			h.broadcastPresenceUpdate(client.Room)

		case client := <-h.Unregister:
			if h.removeClient(client) {
				h.broadcastPresenceUpdate(client.Room)
			}

		case msg := <-h.Broadcast:
			// Build the recipient list under the lock, send outside it.
			h.mu.Lock()
			clientsToSend := make([]*Client, 0, len(h.Rooms[msg.Room]))
			for client := range h.Rooms[msg.Room] {
				if client != msg.Sender { // Don't echo the update back to its sender.
					clientsToSend = append(clientsToSend, client)
				}
			}
			h.mu.Unlock()
			updatesCounter.Inc()

			lagging := false
			for _, client := range clientsToSend {
				select {
				case client.Send <- msg.Frame:
				default:
					// The client is lagging; drop it rather than block the hub.
					logger.Sugar.Warnf("Peer %s's send buffer is full. Unregistering.", client.UserID)
					lagging = h.removeClient(client) || lagging
				}
			}
			if lagging {
				h.broadcastPresenceUpdate(msg.Room)
			}

		case <-h.quit:
			h.mu.Lock()
			for room, clients := range h.Rooms {
				for client := range clients {
					close(client.Send)
					peersGauge.Dec()
				}
				delete(h.Rooms, room)
				roomsGauge.Dec()
			}
			h.mu.Unlock()
			return
		}
	}
}

// removeClient drops client from its room and reports whether it was there.
// It must only be called from Run.
func (h *Hub) removeClient(client *Client) bool {
	h.mu.Lock()
	defer h.mu.Unlock()
	if _, ok := h.Rooms[client.Room][client]; !ok {
		return false
	}
	delete(h.Rooms[client.Room], client)
	close(client.Send)
	peersGauge.Dec()
	if len(h.Rooms[client.Room]) == 0 {
		delete(h.Rooms, client.Room)
		roomsGauge.Dec()
		logger.Sugar.Debugf("Closed empty relay room: %s", client.Room)
	}
	return true
}

// Stop ends Run and closes every peer's send channel.
func (h *Hub) Stop() {
	h.stopOnce.Do(func() { close(h.quit) })
}

func (h *Hub) register(c *Client) bool {
	select {
	case h.Register <- c:
		return true
	case <-h.quit:
		return false
	}
}

func (h *Hub) unregister(c *Client) {
	select {
	case h.Unregister <- c:
	case <-h.quit:
	}
}

func (h *Hub) broadcast(ctx context.Context, msg Message) error {
	select {
	case h.Broadcast <- msg:
		return nil
	case <-h.quit:
		return ErrHubStopped
	case <-ctx.Done():
		return ctx.Err()
	}
}

// PeerCount reports how many peers are in room.
func (h *Hub) PeerCount(room string) int {
	h.mu.Lock()
	defer h.mu.Unlock()
	return len(h.Rooms[room])
}

func (h *Hub) broadcastPresenceUpdate(room string) {
	var statuses []PeerStatus
	var clientsToSend []*Client

	h.mu.Lock()
	for client := range h.Rooms[room] {
		statuses = append(statuses, PeerStatus{UserID: client.UserID, JoinedAt: client.JoinedAt})
		clientsToSend = append(clientsToSend, client)
	}
	h.mu.Unlock()

	if len(clientsToSend) == 0 {
		return
	}
	sort.Slice(statuses, func(i, j int) bool { return statuses[i].JoinedAt.Before(statuses[j].JoinedAt) })

	payload, err := json.Marshal(PresenceMessage{Type: PresenceUpdateType, Room: room, Payload: statuses})
	if err != nil {
		logger.Sugar.Errorf("Error marshalling presence broadcast: %v", err)
		return
	}

	for _, client := range clientsToSend {
		select {
		case client.Send <- Frame{Type: websocket.TextMessage, Data: payload}:
		default:
			// Don't unregister here, just log. The pumps handle unresponsive peers.
			logger.Sugar.Warnf("Peer %s's send buffer was full during presence update.", client.UserID)
		}
	}
}

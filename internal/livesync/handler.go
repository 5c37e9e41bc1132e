package livesync

import (
	"context"
	"encoding/json"
	"net/http"
	"time"

	"kolabnaskah/middleware"
	"kolabnaskah/pkg/logger"

	"github.com/gorilla/mux"
	"github.com/gorilla/websocket"
)

const (
	writeWait      = 10 * time.Second
	pongWait       = 60 * time.Second
	pingPeriod     = 30 * time.Second
	maxMessageSize = 1 << 20
)

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	CheckOrigin:     func(r *http.Request) bool { return true },
}

type Handler struct {
	Service *Service
	// Base bounds every session; cancelling it closes them all.
	Base context.Context
}

func NewHandler(service *Service, base context.Context) *Handler {
	return &Handler{Service: service, Base: base}
}

// ServeDocument upgrades r and runs a live view of the document in the
// path until either side goes away.
func (h *Handler) ServeDocument(w http.ResponseWriter, r *http.Request) {
	docID := mux.Vars(r)["id"]
	userID := middleware.UserID(r.Context())

	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		logger.Sugar.Error(err)
		return
	}

	ctx, cancel := context.WithCancel(h.Base)
	defer cancel()

	incoming := make(chan Frame, 16)
	go readFrames(ctx, conn, incoming, cancel)

	sess, err := h.Service.Open(ctx, docID, userID)
	if err != nil {
		// The browser left while the document was loading.
		conn.Close()
		return
	}
	go writeFrames(conn, sess)

	for {
		select {
		case f, ok := <-incoming:
			if !ok {
				sess.Close()
				return
			}
			if err := sess.Handle(f); err != nil {
				logger.Sugar.Warnf("Live view %s: %v", docID, err)
			}
		case <-sess.Done():
			return
		}
	}
}

func readFrames(ctx context.Context, conn *websocket.Conn, incoming chan<- Frame, cancel context.CancelFunc) {
	defer func() {
		cancel()
		close(incoming)
	}()

	conn.SetReadLimit(maxMessageSize)
	conn.SetReadDeadline(time.Now().Add(pongWait))
	conn.SetPongHandler(func(string) error {
		return conn.SetReadDeadline(time.Now().Add(pongWait))
	})

	for {
		_, data, err := conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseAbnormalClosure) {
				logger.Sugar.Errorf("error: %v", err)
			}
			return
		}
		var f Frame
		if err := json.Unmarshal(data, &f); err != nil {
			logger.Sugar.Warnf("Live view: malformed frame: %v", err)
			continue
		}
		select {
		case incoming <- f:
		case <-ctx.Done():
			return
		}
	}
}

func writeFrames(conn *websocket.Conn, sess *Session) {
	ticker := time.NewTicker(pingPeriod)
	defer func() {
		ticker.Stop()
		conn.Close()
	}()

	write := func(f Frame) bool {
		conn.SetWriteDeadline(time.Now().Add(writeWait))
		return conn.WriteJSON(f) == nil
	}

	for {
		select {
		case f := <-sess.Frames():
			if !write(f) {
				sess.Close()
				return
			}
		case <-sess.Done():
			for {
				select {
				case f := <-sess.Frames():
					if !write(f) {
						return
					}
				default:
					conn.SetWriteDeadline(time.Now().Add(writeWait))
					conn.WriteMessage(websocket.CloseMessage,
						websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""))
					return
				}
			}
		case <-ticker.C:
			conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				sess.Close()
				return
			}
		}
	}
}

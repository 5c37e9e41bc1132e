package livesync

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"kolabnaskah/internal/changefeed"
	"kolabnaskah/internal/document/model"
	"kolabnaskah/middleware"
	"kolabnaskah/pkg/apperror"
	"kolabnaskah/socket"

	"github.com/gorilla/mux"
	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newLiveServer(t *testing.T, docs Documents, feed changefeed.Subscriber) (*socket.Hub, string) {
	hub := socket.NewHub()
	go hub.Run()
	t.Cleanup(hub.Stop)

	ctx, cancel := context.WithCancel(context.Background())
	t.Cleanup(cancel)

	h := NewHandler(NewService(docs, feed, hub, func(id string) string { return "document-" + id }), ctx)
	r := mux.NewRouter()
	r.Handle("/ws/documents/{id}", withUser(http.HandlerFunc(h.ServeDocument)))
	server := httptest.NewServer(r)
	t.Cleanup(server.Close)
	return hub, "ws" + strings.TrimPrefix(server.URL, "http") + "/ws/documents/"
}

func withUser(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		next.ServeHTTP(w, r.WithContext(context.WithValue(r.Context(), middleware.UserIDKey, userID)))
	})
}

func readLive(t *testing.T, conn *websocket.Conn) Frame {
	t.Helper()
	conn.SetReadDeadline(time.Now().Add(2 * time.Second))
	var f Frame
	require.NoError(t, conn.ReadJSON(&f))
	return f
}

func TestLiveViewOverWebsocket(t *testing.T) {
	docs := &fakeDocs{doc: &model.Document{ID: docID, Title: "Plan", Content: "<p>hi</p>", UserID: userID}}
	broker := changefeed.NewBroker()
	hub, url := newLiveServer(t, docs, broker)

	conn, _, err := websocket.DefaultDialer.Dial(url+docID, nil)
	require.NoError(t, err)
	defer conn.Close()

	f := readLive(t, conn)
	require.Equal(t, FrameSnapshot, f.Type)

	// A second editor in the same room, attached in-process.
	require.Eventually(t, func() bool { return hub.PeerCount("document-"+docID) == 1 }, time.Second, 10*time.Millisecond)
	other, err := hub.Join(context.Background(), "document-"+docID, "someone-else")
	require.NoError(t, err)
	defer other.Close()

	edit, _ := json.Marshal(ContentEdit{HTML: "<p>hello</p>", Update: []byte("u1")})
	require.NoError(t, conn.WriteJSON(Frame{Type: FrameContent, Payload: edit}))

	select {
	case update := <-other.Updates():
		assert.Equal(t, []byte("u1"), update)
	case <-time.After(2 * time.Second):
		t.Fatal("relay update not forwarded")
	}

	require.NoError(t, other.Send(context.Background(), []byte("u2")))
	f = readLive(t, conn)
	require.Equal(t, FrameRelay, f.Type)
	assert.Equal(t, []byte("u2"), decode[RelayUpdate](t, f).Update)

	require.Eventually(t, func() bool {
		docs.mu.Lock()
		defer docs.mu.Unlock()
		return len(docs.contents) == 1
	}, time.Second, 10*time.Millisecond)
}

func TestLiveViewRedirectsMissingDocument(t *testing.T) {
	docs := &fakeDocs{getErr: apperror.NotFound("Document not found")}
	_, url := newLiveServer(t, docs, changefeed.NewBroker())

	conn, _, err := websocket.DefaultDialer.Dial(url+docID, nil)
	require.NoError(t, err)
	defer conn.Close()

	f := readLive(t, conn)
	assert.Equal(t, FrameRedirect, f.Type)
	assert.Equal(t, DashboardPath, decode[Redirect](t, f).To)

	conn.SetReadDeadline(time.Now().Add(2 * time.Second))
	_, _, err = conn.ReadMessage()
	assert.True(t, websocket.IsCloseError(err, websocket.CloseNormalClosure))
}

func TestLiveViewClosesOnDisconnect(t *testing.T) {
	docs := &fakeDocs{doc: &model.Document{ID: docID, Title: "Plan", UserID: userID}}
	broker := changefeed.NewBroker()
	hub, url := newLiveServer(t, docs, broker)

	conn, _, err := websocket.DefaultDialer.Dial(url+docID, nil)
	require.NoError(t, err)
	readLive(t, conn)
	require.Eventually(t, func() bool { return broker.Len() == 1 }, time.Second, 10*time.Millisecond)

	conn.Close()

	assert.Eventually(t, func() bool {
		return broker.Len() == 0 && hub.PeerCount("document-"+docID) == 0
	}, 2*time.Second, 10*time.Millisecond)
}

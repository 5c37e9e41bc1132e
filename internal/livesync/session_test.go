package livesync

import (
	"context"
	"encoding/json"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"kolabnaskah/internal/changefeed"
	"kolabnaskah/internal/document/model"
	"kolabnaskah/pkg/apperror"
	"kolabnaskah/socket"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const (
	docID  = "6f1d1c1e-8d4b-4b59-9d38-3f0b8f0f2a11"
	userID = "0b5c7a0e-2c1f-4a7e-9a3e-6f0d2c1b9e22"
)

type fakeDocs struct {
	mu       sync.Mutex
	doc      *model.Document
	getErr   error
	block    bool
	titleErr error
	saveErr  error
	titles   []string
	contents []string
}

func (f *fakeDocs) GetDocument(ctx context.Context, _, _ string) (*model.Document, error) {
	if f.block {
		<-ctx.Done()
		return nil, ctx.Err()
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.getErr != nil {
		return nil, f.getErr
	}
	doc := *f.doc
	return &doc, nil
}

func (f *fakeDocs) UpdateTitle(_ context.Context, _, _, title string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.titleErr != nil {
		return f.titleErr
	}
	f.titles = append(f.titles, title)
	return nil
}

func (f *fakeDocs) UpdateContent(_ context.Context, _, _, content string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.saveErr != nil {
		return f.saveErr
	}
	f.contents = append(f.contents, content)
	return nil
}

type countingSub struct {
	changefeed.Subscription
	closes *int32
}

func (s countingSub) Close() error {
	atomic.AddInt32(s.closes, 1)
	return s.Subscription.Close()
}

type countingFeed struct {
	broker     *changefeed.Broker
	subscribes int32
	closes     int32
}

func (f *countingFeed) Subscribe(ctx context.Context, filter changefeed.Filter) (changefeed.Subscription, error) {
	atomic.AddInt32(&f.subscribes, 1)
	sub, err := f.broker.Subscribe(ctx, filter)
	if err != nil {
		return nil, err
	}
	return countingSub{Subscription: sub, closes: &f.closes}, nil
}

type fakePeer struct {
	mu      sync.Mutex
	updates chan []byte
	sent    [][]byte
	closes  *int32
}

func (p *fakePeer) Updates() <-chan []byte { return p.updates }

func (p *fakePeer) Send(_ context.Context, update []byte) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.sent = append(p.sent, update)
	return nil
}

func (p *fakePeer) Close() error {
	atomic.AddInt32(p.closes, 1)
	return nil
}

type fakeRelay struct {
	peer   *fakePeer
	room   string
	joins  int32
	closes int32
}

func (r *fakeRelay) Join(_ context.Context, room, _ string) (socket.Peer, error) {
	atomic.AddInt32(&r.joins, 1)
	r.room = room
	r.peer = &fakePeer{updates: make(chan []byte, 4), closes: &r.closes}
	return r.peer, nil
}

type fixture struct {
	docs  *fakeDocs
	feed  *countingFeed
	relay *fakeRelay
	svc   *Service
}

func newFixture() *fixture {
	now := time.Now().UTC().Truncate(time.Second)
	docs := &fakeDocs{doc: &model.Document{ID: docID, Title: "Plan", Content: "<p>hi</p>", UserID: userID, CreatedAt: now, UpdatedAt: now}}
	feed := &countingFeed{broker: changefeed.NewBroker()}
	relay := &fakeRelay{}
	return &fixture{
		docs:  docs,
		feed:  feed,
		relay: relay,
		svc:   NewService(docs, feed, relay, func(string) string { return "document-collaboration" }),
	}
}

func nextFrame(t *testing.T, sess *Session) Frame {
	t.Helper()
	select {
	case f := <-sess.Frames():
		return f
	case <-time.After(2 * time.Second):
		t.Fatal("timed out waiting for frame")
		return Frame{}
	}
}

func decode[T any](t *testing.T, f Frame) T {
	t.Helper()
	var v T
	require.NoError(t, json.Unmarshal(f.Payload, &v))
	return v
}

func publish(t *testing.T, fx *fixture, op changefeed.Op, doc *model.Document) {
	t.Helper()
	e := changefeed.Event{Table: changefeed.TableDocuments, Op: op, RowID: docID}
	if doc != nil {
		e.Record, _ = json.Marshal(doc)
	}
	require.NoError(t, fx.feed.broker.Publish(context.Background(), e))
}

func TestOpenSendsSnapshotAndJoinsRoom(t *testing.T) {
	fx := newFixture()
	sess, err := fx.svc.Open(context.Background(), docID, userID)
	require.NoError(t, err)
	defer sess.Close()

	f := nextFrame(t, sess)
	assert.Equal(t, FrameSnapshot, f.Type)
	assert.Equal(t, "Plan", decode[model.Document](t, f).Title)
	assert.Equal(t, "document-collaboration", fx.relay.room)
	assert.EqualValues(t, 1, fx.feed.subscribes)
}

func TestChangeEventReplacesWholeSnapshot(t *testing.T) {
	fx := newFixture()
	sess, err := fx.svc.Open(context.Background(), docID, userID)
	require.NoError(t, err)
	defer sess.Close()
	nextFrame(t, sess)

	// The incoming row has an empty content; no field survives from the old snapshot.
	incoming := &model.Document{ID: docID, Title: "Renamed elsewhere", UserID: userID}
	publish(t, fx, changefeed.OpUpdate, incoming)

	f := nextFrame(t, sess)
	require.Equal(t, FrameSnapshot, f.Type)
	snap := sess.Snapshot()
	require.NotNil(t, snap)
	assert.Equal(t, "Renamed elsewhere", snap.Title)
	assert.Equal(t, "", snap.Content)
	assert.True(t, snap.CreatedAt.IsZero())
}

func TestLastEventWins(t *testing.T) {
	fx := newFixture()
	sess, err := fx.svc.Open(context.Background(), docID, userID)
	require.NoError(t, err)
	defer sess.Close()
	nextFrame(t, sess)

	publish(t, fx, changefeed.OpUpdate, &model.Document{ID: docID, Title: "A", Content: "<p>a</p>"})
	publish(t, fx, changefeed.OpUpdate, &model.Document{ID: docID, Title: "B", Content: "<p>b</p>"})
	nextFrame(t, sess)
	nextFrame(t, sess)

	assert.Equal(t, "B", sess.Snapshot().Title)
	assert.Equal(t, "<p>b</p>", sess.Snapshot().Content)
}

func TestEventWithoutRecordRefetches(t *testing.T) {
	fx := newFixture()
	sess, err := fx.svc.Open(context.Background(), docID, userID)
	require.NoError(t, err)
	defer sess.Close()
	nextFrame(t, sess)

	fx.docs.mu.Lock()
	fx.docs.doc.Title = "Large"
	fx.docs.mu.Unlock()
	publish(t, fx, changefeed.OpUpdate, nil)

	f := nextFrame(t, sess)
	assert.Equal(t, FrameSnapshot, f.Type)
	assert.Equal(t, "Large", sess.Snapshot().Title)
}

func TestMissingDocumentRedirectsOnly(t *testing.T) {
	fx := newFixture()
	fx.docs.getErr = apperror.NotFound("Document not found")

	sess, err := fx.svc.Open(context.Background(), docID, userID)
	require.NoError(t, err)

	f := nextFrame(t, sess)
	assert.Equal(t, FrameRedirect, f.Type)
	assert.Equal(t, DashboardPath, decode[Redirect](t, f).To)
	<-sess.Done()
	assert.Empty(t, sess.Frames())
	assert.Nil(t, sess.Snapshot())
	assert.Zero(t, atomic.LoadInt32(&fx.feed.subscribes))
	assert.Zero(t, atomic.LoadInt32(&fx.relay.joins))
}

func TestFetchFailureNotifies(t *testing.T) {
	fx := newFixture()
	fx.docs.getErr = apperror.Store("get document", errors.New("connection refused"))

	sess, err := fx.svc.Open(context.Background(), docID, userID)
	require.NoError(t, err)

	f := nextFrame(t, sess)
	require.Equal(t, FrameNotify, f.Type)
	n := decode[Notification](t, f)
	assert.Equal(t, VariantDestructive, n.Variant)
	assert.Equal(t, "Failed to fetch document", n.Description)
}

func TestCancelledMidFetchDiscardsResult(t *testing.T) {
	fx := newFixture()
	fx.docs.block = true

	ctx, cancel := context.WithCancel(context.Background())
	go func() {
		time.Sleep(20 * time.Millisecond)
		cancel()
	}()

	sess, err := fx.svc.Open(ctx, docID, userID)
	assert.ErrorIs(t, err, context.Canceled)
	assert.Nil(t, sess)
	assert.Zero(t, atomic.LoadInt32(&fx.feed.subscribes))
	assert.Zero(t, atomic.LoadInt32(&fx.relay.joins))
}

func TestTitleCommitFailureKeepsEditing(t *testing.T) {
	fx := newFixture()
	sess, err := fx.svc.Open(context.Background(), docID, userID)
	require.NoError(t, err)
	defer sess.Close()
	nextFrame(t, sess)

	require.NoError(t, sess.Handle(Frame{Type: FrameTitleBegin}))
	assert.Equal(t, TitleState{Editing: true, Draft: "Plan"}, decode[TitleState](t, nextFrame(t, sess)))

	draft, _ := json.Marshal(TitleDraft{Title: "Plan v2"})
	require.NoError(t, sess.Handle(Frame{Type: FrameTitleDraft, Payload: draft}))

	fx.docs.titleErr = apperror.Store("update document", errors.New("timeout"))
	require.NoError(t, sess.Handle(Frame{Type: FrameTitleCommit}))

	n := decode[Notification](t, nextFrame(t, sess))
	assert.Equal(t, "Failed to update title", n.Description)
	assert.Equal(t, TitleState{Editing: true, Draft: "Plan v2"}, decode[TitleState](t, nextFrame(t, sess)))
	assert.Equal(t, "Plan", sess.Snapshot().Title)

	fx.docs.mu.Lock()
	fx.docs.titleErr = nil
	fx.docs.mu.Unlock()
	require.NoError(t, sess.Handle(Frame{Type: FrameTitleCommit}))

	n = decode[Notification](t, nextFrame(t, sess))
	assert.Equal(t, "Document title updated", n.Description)
	assert.False(t, decode[TitleState](t, nextFrame(t, sess)).Editing)
	assert.Equal(t, []string{"Plan v2"}, fx.docs.titles)
	// The snapshot waits for the change feed.
	assert.Equal(t, "Plan", sess.Snapshot().Title)
}

func TestContentEditRelaysAndPersists(t *testing.T) {
	fx := newFixture()
	sess, err := fx.svc.Open(context.Background(), docID, userID)
	require.NoError(t, err)
	defer sess.Close()
	nextFrame(t, sess)

	edit, _ := json.Marshal(ContentEdit{HTML: "<p>hello</p>", Update: []byte{1, 2, 3}})
	require.NoError(t, sess.Handle(Frame{Type: FrameContent, Payload: edit}))

	assert.Equal(t, []string{"<p>hello</p>"}, fx.docs.contents)
	assert.Equal(t, [][]byte{{1, 2, 3}}, fx.relay.peer.sent)
}

func TestContentSaveFailureNotifies(t *testing.T) {
	fx := newFixture()
	sess, err := fx.svc.Open(context.Background(), docID, userID)
	require.NoError(t, err)
	defer sess.Close()
	nextFrame(t, sess)

	fx.docs.saveErr = apperror.NotFound("Document not found")
	edit, _ := json.Marshal(ContentEdit{HTML: "<p>x</p>"})
	require.NoError(t, sess.Handle(Frame{Type: FrameContent, Payload: edit}))

	n := decode[Notification](t, nextFrame(t, sess))
	assert.Equal(t, "Failed to update document", n.Description)
	assert.Equal(t, "<p>hi</p>", sess.Snapshot().Content)
}

func TestRelayUpdatesReachBrowser(t *testing.T) {
	fx := newFixture()
	sess, err := fx.svc.Open(context.Background(), docID, userID)
	require.NoError(t, err)
	defer sess.Close()
	nextFrame(t, sess)

	fx.relay.peer.updates <- []byte("opaque")
	f := nextFrame(t, sess)
	require.Equal(t, FrameRelay, f.Type)
	assert.Equal(t, []byte("opaque"), decode[RelayUpdate](t, f).Update)
}

func TestCloseReleasesExactlyOnce(t *testing.T) {
	fx := newFixture()
	ctx, cancel := context.WithCancel(context.Background())
	sess, err := fx.svc.Open(ctx, docID, userID)
	require.NoError(t, err)

	var wg sync.WaitGroup
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			sess.Close()
		}()
	}
	cancel()
	wg.Wait()
	<-sess.Done()

	assert.EqualValues(t, 1, atomic.LoadInt32(&fx.feed.closes))
	assert.EqualValues(t, 1, atomic.LoadInt32(&fx.relay.closes))
	assert.Zero(t, fx.feed.broker.Len())
}

func TestContextCancelClosesSession(t *testing.T) {
	fx := newFixture()
	ctx, cancel := context.WithCancel(context.Background())
	sess, err := fx.svc.Open(ctx, docID, userID)
	require.NoError(t, err)

	cancel()
	select {
	case <-sess.Done():
	case <-time.After(2 * time.Second):
		t.Fatal("session stayed open after cancel")
	}
	assert.EqualValues(t, 1, atomic.LoadInt32(&fx.feed.closes))
	assert.EqualValues(t, 1, atomic.LoadInt32(&fx.relay.closes))
}

func TestDeleteEventRedirectsAndCloses(t *testing.T) {
	fx := newFixture()
	sess, err := fx.svc.Open(context.Background(), docID, userID)
	require.NoError(t, err)
	nextFrame(t, sess)

	publish(t, fx, changefeed.OpDelete, fx.docs.doc)

	f := nextFrame(t, sess)
	assert.Equal(t, FrameRedirect, f.Type)
	<-sess.Done()
	assert.Nil(t, sess.Snapshot())
	assert.EqualValues(t, 1, atomic.LoadInt32(&fx.feed.closes))
	assert.EqualValues(t, 1, atomic.LoadInt32(&fx.relay.closes))
}

func TestSubscribeFailureIsSilent(t *testing.T) {
	fx := newFixture()
	fx.feed.broker.Close()

	sess, err := fx.svc.Open(context.Background(), docID, userID)
	require.NoError(t, err)
	defer sess.Close()

	assert.Equal(t, FrameSnapshot, nextFrame(t, sess).Type)
	assert.Empty(t, sess.Frames())
}

func TestUnknownFrame(t *testing.T) {
	fx := newFixture()
	sess, err := fx.svc.Open(context.Background(), docID, userID)
	require.NoError(t, err)
	defer sess.Close()

	assert.Error(t, sess.Handle(Frame{Type: "BOGUS"}))
}

func TestTitleCommitOutsideEditModeSendsNothing(t *testing.T) {
	fx := newFixture()
	sess, err := fx.svc.Open(context.Background(), docID, userID)
	require.NoError(t, err)
	defer sess.Close()
	nextFrame(t, sess)

	require.NoError(t, sess.Handle(Frame{Type: FrameTitleCommit}))
	assert.Empty(t, sess.Frames())
	assert.Empty(t, fx.docs.titles)

	// Enter then blur: the second commit finds the buffer already saved.
	require.NoError(t, sess.Handle(Frame{Type: FrameTitleBegin}))
	nextFrame(t, sess)
	require.NoError(t, sess.Handle(Frame{Type: FrameTitleCommit}))
	assert.Equal(t, "Document title updated", decode[Notification](t, nextFrame(t, sess)).Description)
	nextFrame(t, sess)
	require.NoError(t, sess.Handle(Frame{Type: FrameTitleCommit}))
	assert.Empty(t, sess.Frames())
	assert.Equal(t, []string{"Plan"}, fx.docs.titles)
}

func TestRevokedAccessEndsView(t *testing.T) {
	fx := newFixture()
	sess, err := fx.svc.Open(context.Background(), docID, userID)
	require.NoError(t, err)
	nextFrame(t, sess)

	fx.docs.mu.Lock()
	fx.docs.getErr = apperror.NotFound("Document not found")
	fx.docs.mu.Unlock()
	publish(t, fx, changefeed.OpUpdate, &model.Document{ID: docID, Title: "Secret", Content: "<p>private</p>"})

	f := nextFrame(t, sess)
	assert.Equal(t, FrameRedirect, f.Type)
	<-sess.Done()
	assert.Nil(t, sess.Snapshot())
	assert.EqualValues(t, 1, atomic.LoadInt32(&fx.relay.closes))
}

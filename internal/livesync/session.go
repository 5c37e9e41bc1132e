// Package livesync serves the live document view: the stored snapshot kept
// current from the change feed, a title buffer, and the body's relay
// session with content persistence.
package livesync

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"

	"kolabnaskah/internal/changefeed"
	"kolabnaskah/internal/document/model"
	"kolabnaskah/pkg/apperror"
	"kolabnaskah/pkg/logger"
	"kolabnaskah/socket"
)

const outboxSize = 64

// Documents is the part of the document service a live view uses.
type Documents interface {
	GetDocument(ctx context.Context, docID, userID string) (*model.Document, error)
	UpdateTitle(ctx context.Context, docID, userID, title string) error
	UpdateContent(ctx context.Context, docID, userID, content string) error
}

// Relay attaches peers to collaboration rooms. Both the in-process hub and
// a dialer for a remote relay satisfy it.
type Relay interface {
	Join(ctx context.Context, room, userID string) (socket.Peer, error)
}

type Service struct {
	Documents Documents
	Feed      changefeed.Subscriber
	Relay     Relay
	RoomFor   func(docID string) string
}

func NewService(docs Documents, feed changefeed.Subscriber, relay Relay, roomFor func(string) string) *Service {
	return &Service{Documents: docs, Feed: feed, Relay: relay, RoomFor: roomFor}
}

// Open fetches the document, then subscribes to its changes and joins the
// relay room. When ctx is cancelled before Open finishes, everything opened
// so far is closed and ctx's error is returned.
//
// A document that cannot be loaded still yields a session: it carries the
// REDIRECT or NOTIFY frame and is already closed.
func (s *Service) Open(ctx context.Context, docID, userID string) (*Session, error) {
	ctx, cancel := context.WithCancel(ctx)
	sess := &Session{
		docID:  docID,
		userID: userID,
		docs:   s.Documents,
		ctx:    ctx,
		cancel: cancel,
		out:    make(chan Frame, outboxSize),
		done:   make(chan struct{}),
	}

	doc, err := s.Documents.GetDocument(ctx, docID, userID)
	if ctx.Err() != nil {
		sess.Close()
		return nil, ctx.Err()
	}
	if err != nil {
		if apperror.IsNotFound(err) {
			sess.emit(newFrame(FrameRedirect, Redirect{To: DashboardPath}))
		} else {
			logger.Sugar.Errorf("Live view: failed to fetch document %s: %v", docID, err)
			sess.notifyError("Failed to fetch document")
		}
		sess.Close()
		return sess, nil
	}
	sess.snapshot = doc
	sess.emit(newFrame(FrameSnapshot, doc))

	sub, err := s.Feed.Subscribe(ctx, changefeed.Filter{Table: changefeed.TableDocuments, RowID: docID})
	if err != nil {
		logger.Sugar.Warnf("Live view: change subscription for %s failed: %v", docID, err)
	}
	sess.mu.Lock()
	sess.sub = sub
	sess.mu.Unlock()
	if ctx.Err() != nil {
		sess.Close()
		return nil, ctx.Err()
	}

	peer, err := s.Relay.Join(ctx, s.RoomFor(docID), userID)
	if err != nil {
		logger.Sugar.Warnf("Live view: relay join for %s failed: %v", docID, err)
	}
	sess.mu.Lock()
	sess.peer = peer
	sess.mu.Unlock()
	if ctx.Err() != nil {
		sess.Close()
		return nil, ctx.Err()
	}

	sess.start()
	return sess, nil
}

// Session is one open live document view.
type Session struct {
	docID  string
	userID string
	docs   Documents

	ctx    context.Context
	cancel context.CancelFunc
	out    chan Frame
	done   chan struct{}
	once   sync.Once

	mu       sync.Mutex
	snapshot *model.Document
	sub      changefeed.Subscription
	peer     socket.Peer

	title TitleBuffer
}

// Frames delivers the frames for the browser. After Done is closed the
// remaining buffered frames can still be drained.
func (s *Session) Frames() <-chan Frame { return s.out }

func (s *Session) Done() <-chan struct{} { return s.done }

// Snapshot returns a copy of the current document, or nil once it is gone.
func (s *Session) Snapshot() *model.Document {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.snapshot == nil {
		return nil
	}
	doc := *s.snapshot
	return &doc
}

func (s *Session) Title() TitleState { return s.title.State() }

// Close releases the subscription and the relay peer. It is safe to call
// from any goroutine, any number of times.
func (s *Session) Close() {
	s.once.Do(func() {
		s.cancel()
		close(s.done)

		s.mu.Lock()
		sub, peer := s.sub, s.peer
		s.mu.Unlock()
		if sub != nil {
			if err := sub.Close(); err != nil {
				logger.Sugar.Warnf("Live view: closing subscription for %s: %v", s.docID, err)
			}
		}
		if peer != nil {
			if err := peer.Close(); err != nil {
				logger.Sugar.Warnf("Live view: closing relay peer for %s: %v", s.docID, err)
			}
		}
	})
}

func (s *Session) start() {
	go func() {
		select {
		case <-s.ctx.Done():
			s.Close()
		case <-s.done:
		}
	}()
	if s.sub != nil {
		go s.watchChanges(s.sub)
	}
	if s.peer != nil {
		go s.pumpRelay(s.peer)
	}
}

func (s *Session) watchChanges(sub changefeed.Subscription) {
	for {
		select {
		case e, ok := <-sub.Events():
			if !ok {
				return
			}
			s.apply(e)
		case <-s.done:
			return
		}
	}
}

// apply replaces the whole snapshot with the event's row. Read access is
// checked again first, so a viewer removed from the document stops
// receiving it.
func (s *Session) apply(e changefeed.Event) {
	if e.Op == changefeed.OpDelete {
		s.gone()
		return
	}

	fresh, err := s.docs.GetDocument(s.ctx, s.docID, s.userID)
	if apperror.IsNotFound(err) {
		s.gone()
		return
	}
	if err != nil {
		if s.ctx.Err() == nil {
			logger.Sugar.Errorf("Live view: refetch of %s failed: %v", s.docID, err)
			s.notifyError("Failed to fetch document")
		}
		return
	}

	doc := fresh
	if len(e.Record) > 0 {
		doc = &model.Document{}
		if err := json.Unmarshal(e.Record, doc); err != nil {
			logger.Sugar.Warnf("Live view: bad change record for %s: %v", s.docID, err)
			return
		}
	}

	s.mu.Lock()
	s.snapshot = doc
	s.mu.Unlock()
	s.emit(newFrame(FrameSnapshot, doc))
}

func (s *Session) gone() {
	s.mu.Lock()
	s.snapshot = nil
	s.mu.Unlock()
	s.emit(newFrame(FrameRedirect, Redirect{To: DashboardPath}))
	s.Close()
}

func (s *Session) pumpRelay(peer socket.Peer) {
	for {
		select {
		case update, ok := <-peer.Updates():
			if !ok {
				return
			}
			s.emit(newFrame(FrameRelay, RelayUpdate{Update: update}))
		case <-s.done:
			return
		}
	}
}

// Handle applies one frame from the browser.
func (s *Session) Handle(f Frame) error {
	select {
	case <-s.done:
		return nil
	default:
	}

	switch f.Type {
	case FrameTitleBegin:
		current := ""
		if doc := s.Snapshot(); doc != nil {
			current = doc.Title
		}
		s.title.Begin(current)
		s.emit(newFrame(FrameTitleState, s.title.State()))

	case FrameTitleDraft:
		var d TitleDraft
		if err := json.Unmarshal(f.Payload, &d); err != nil {
			return fmt.Errorf("decode title draft: %w", err)
		}
		s.title.SetDraft(d.Title)

	case FrameTitleCancel:
		s.title.Cancel()
		s.emit(newFrame(FrameTitleState, s.title.State()))

	case FrameTitleCommit:
		saved, err := s.title.Commit(s.ctx, func(ctx context.Context, title string) error {
			return s.docs.UpdateTitle(ctx, s.docID, s.userID, title)
		})
		if !saved {
			break
		}
		if err != nil {
			logger.Sugar.Errorf("Live view: title update for %s failed: %v", s.docID, err)
			s.notifyError("Failed to update title")
		} else {
			s.notify(Notification{Variant: VariantDefault, Title: "Success", Description: "Document title updated"})
		}
		s.emit(newFrame(FrameTitleState, s.title.State()))

	case FrameContent:
		var edit ContentEdit
		if err := json.Unmarshal(f.Payload, &edit); err != nil {
			return fmt.Errorf("decode content edit: %w", err)
		}
		if len(edit.Update) > 0 {
			s.relay(edit.Update)
		}
		if err := s.docs.UpdateContent(s.ctx, s.docID, s.userID, edit.HTML); err != nil {
			logger.Sugar.Errorf("Live view: content update for %s failed: %v", s.docID, err)
			s.notifyError("Failed to update document")
		}

	case FrameRelay:
		var u RelayUpdate
		if err := json.Unmarshal(f.Payload, &u); err != nil {
			return fmt.Errorf("decode relay update: %w", err)
		}
		s.relay(u.Update)

	default:
		return fmt.Errorf("unknown frame type %q", f.Type)
	}
	return nil
}

func (s *Session) relay(update []byte) {
	s.mu.Lock()
	peer := s.peer
	s.mu.Unlock()
	if peer == nil {
		return
	}
	if err := peer.Send(s.ctx, update); err != nil {
		logger.Sugar.Warnf("Live view: relay send for %s failed: %v", s.docID, err)
	}
}

func (s *Session) notifyError(description string) {
	s.notify(Notification{Variant: VariantDestructive, Title: "Error", Description: description})
}

func (s *Session) notify(n Notification) {
	s.emit(newFrame(FrameNotify, n))
}

// emit queues f for the browser, giving up once the session is closed.
func (s *Session) emit(f Frame) {
	select {
	case <-s.done:
		return
	default:
	}
	select {
	case s.out <- f:
	case <-s.done:
	}
}

package service

import (
	"context"
	"encoding/json"
	"strings"

	"kolabnaskah/internal/changefeed"
	"kolabnaskah/internal/document/model"
	"kolabnaskah/pkg/apperror"
	"kolabnaskah/pkg/htmltext"
	"kolabnaskah/pkg/logger"

	"github.com/google/uuid"
)

const snippetLength = 100

// Repository is the store the service reads and writes documents through.
type Repository interface {
	Create(ctx context.Context, id, title, userID string, folderID *string) (*model.Document, error)
	Get(ctx context.Context, docID, userID string) (*model.Document, error)
	ListByUser(ctx context.Context, userID string) ([]model.Document, error)
	ListByFolder(ctx context.Context, folderID, userID string) ([]model.Document, error)
	Update(ctx context.Context, docID, userID string, req model.UpdateDocRequest) (*model.Document, error)
	Delete(ctx context.Context, docID, userID string) (*model.Document, error)
}

type DocumentService struct {
	Repo Repository
	Feed changefeed.Publisher
}

func NewDocumentService(repo Repository, feed changefeed.Publisher) *DocumentService {
	return &DocumentService{Repo: repo, Feed: feed}
}

func (s *DocumentService) CreateDocument(ctx context.Context, userID string, req model.CreateDocRequest) (*model.Document, error) {
	title := strings.TrimSpace(req.Title)
	if title == "" {
		title = model.DefaultTitle
	}
	if req.FolderID != nil && !validID(*req.FolderID) {
		return nil, apperror.NotFound("Folder not found")
	}

	doc, err := s.Repo.Create(ctx, uuid.NewString(), title, userID, req.FolderID)
	if err != nil {
		return nil, err
	}
	s.publish(ctx, changefeed.OpInsert, doc)
	return doc, nil
}

func (s *DocumentService) GetDocument(ctx context.Context, docID, userID string) (*model.Document, error) {
	if !validID(docID) {
		return nil, apperror.NotFound("Document not found")
	}
	return s.Repo.Get(ctx, docID, userID)
}

// ListDocuments returns the user's documents, or only those in folderID
// when it is set.
func (s *DocumentService) ListDocuments(ctx context.Context, userID, folderID string) ([]model.DocumentMetadata, error) {
	var docs []model.Document
	var err error
	if folderID != "" {
		if !validID(folderID) {
			return []model.DocumentMetadata{}, nil
		}
		docs, err = s.Repo.ListByFolder(ctx, folderID, userID)
	} else {
		docs, err = s.Repo.ListByUser(ctx, userID)
	}
	if err != nil {
		return nil, err
	}

	out := make([]model.DocumentMetadata, 0, len(docs))
	for _, d := range docs {
		out = append(out, model.DocumentMetadata{
			ID:        d.ID,
			Title:     d.Title,
			FolderID:  d.FolderID,
			Snippet:   htmltext.Snippet(d.Content, snippetLength),
			IsOwner:   d.UserID == userID,
			CreatedAt: d.CreatedAt,
			UpdatedAt: d.UpdatedAt,
		})
	}
	return out, nil
}

func (s *DocumentService) UpdateDocument(ctx context.Context, docID, userID string, req model.UpdateDocRequest) (*model.Document, error) {
	if req.Empty() {
		return nil, apperror.Validation("Nothing to update")
	}
	if req.Title != nil && strings.TrimSpace(*req.Title) == "" {
		return nil, apperror.Validation("Title cannot be empty")
	}
	if !validID(docID) {
		return nil, apperror.NotFound("Document not found")
	}
	if req.FolderID.Value != nil && !validID(*req.FolderID.Value) {
		return nil, apperror.NotFound("Folder not found")
	}

	doc, err := s.Repo.Update(ctx, docID, userID, req)
	if err != nil {
		return nil, err
	}
	s.publish(ctx, changefeed.OpUpdate, doc)
	return doc, nil
}

// UpdateTitle is the title-only partial update issued by a title commit.
func (s *DocumentService) UpdateTitle(ctx context.Context, docID, userID, title string) error {
	_, err := s.UpdateDocument(ctx, docID, userID, model.UpdateDocRequest{Title: &title})
	return err
}

// UpdateContent is the content-only partial update issued on every edit.
func (s *DocumentService) UpdateContent(ctx context.Context, docID, userID, content string) error {
	_, err := s.UpdateDocument(ctx, docID, userID, model.UpdateDocRequest{Content: &content})
	return err
}

func (s *DocumentService) DeleteDocument(ctx context.Context, docID, userID string) error {
	if !validID(docID) {
		return apperror.NotFound("Document not found")
	}
	doc, err := s.Repo.Delete(ctx, docID, userID)
	if err != nil {
		return err
	}
	s.publish(ctx, changefeed.OpDelete, doc)
	return nil
}

// publish announces a committed write. The write already happened, so a
// failed broadcast is logged and not returned.
func (s *DocumentService) publish(ctx context.Context, op changefeed.Op, doc *model.Document) {
	if s.Feed == nil {
		return
	}
	record, err := json.Marshal(doc)
	if err != nil {
		logger.Sugar.Errorf("Error marshalling document %s for changefeed: %v", doc.ID, err)
		return
	}
	err = s.Feed.Publish(ctx, changefeed.Event{
		Table:  changefeed.TableDocuments,
		Op:     op,
		RowID:  doc.ID,
		Record: record,
	})
	if err != nil {
		logger.Sugar.Warnf("Failed to publish %s for document %s: %v", op, doc.ID, err)
	}
}

func validID(id string) bool {
	_, err := uuid.Parse(id)
	return err == nil
}

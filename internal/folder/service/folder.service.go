package service

import (
	"context"
	"encoding/json"
	"strings"

	"kolabnaskah/internal/changefeed"
	docModel "kolabnaskah/internal/document/model"
	"kolabnaskah/internal/folder/model"
	"kolabnaskah/pkg/apperror"
	"kolabnaskah/pkg/logger"

	"github.com/google/uuid"
)

type Repository interface {
	Create(ctx context.Context, id, name, userID string) (*model.Folder, error)
	List(ctx context.Context, userID string) ([]model.Folder, error)
	Get(ctx context.Context, folderID, userID string) (*model.Folder, error)
	Rename(ctx context.Context, folderID, userID, name string) error
	Delete(ctx context.Context, folderID, userID string) ([]docModel.Document, error)
}

// DocumentLister lists the documents filed in a folder.
type DocumentLister interface {
	ListDocuments(ctx context.Context, userID, folderID string) ([]docModel.DocumentMetadata, error)
}

type FolderService struct {
	Repo      Repository
	Documents DocumentLister
	Feed      changefeed.Publisher
}

func NewFolderService(repo Repository, documents DocumentLister, feed changefeed.Publisher) *FolderService {
	return &FolderService{Repo: repo, Documents: documents, Feed: feed}
}

func (s *FolderService) CreateFolder(ctx context.Context, userID, name string) (*model.Folder, error) {
	name = strings.TrimSpace(name)
	if name == "" {
		return nil, apperror.Validation("Folder name is required")
	}
	return s.Repo.Create(ctx, uuid.NewString(), name, userID)
}

func (s *FolderService) ListFolders(ctx context.Context, userID string) ([]model.Folder, error) {
	return s.Repo.List(ctx, userID)
}

// GetFolder loads the folder and its documents, most recently updated first.
func (s *FolderService) GetFolder(ctx context.Context, folderID, userID string) (*model.FolderDetail, error) {
	if !validID(folderID) {
		return nil, apperror.NotFound("Folder not found")
	}
	folder, err := s.Repo.Get(ctx, folderID, userID)
	if err != nil {
		return nil, err
	}
	docs, err := s.Documents.ListDocuments(ctx, userID, folderID)
	if err != nil {
		return nil, err
	}
	return &model.FolderDetail{Folder: *folder, Documents: docs}, nil
}

func (s *FolderService) RenameFolder(ctx context.Context, folderID, userID, name string) error {
	name = strings.TrimSpace(name)
	if name == "" {
		return apperror.Validation("Folder name is required")
	}
	if !validID(folderID) {
		return apperror.NotFound("Folder not found")
	}
	return s.Repo.Rename(ctx, folderID, userID, name)
}

func (s *FolderService) DeleteFolder(ctx context.Context, folderID, userID string) error {
	if !validID(folderID) {
		return apperror.NotFound("Folder not found")
	}
	unfiled, err := s.Repo.Delete(ctx, folderID, userID)
	if err != nil {
		return err
	}
	for i := range unfiled {
		s.publishUnfiled(ctx, &unfiled[i])
	}
	return nil
}

// publishUnfiled tells open views a document left its folder. The delete
// is committed, so a failed broadcast is only logged.
func (s *FolderService) publishUnfiled(ctx context.Context, doc *docModel.Document) {
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
		Op:     changefeed.OpUpdate,
		RowID:  doc.ID,
		Record: record,
	})
	if err != nil {
		logger.Sugar.Warnf("Failed to publish UPDATE for document %s: %v", doc.ID, err)
	}
}

func validID(id string) bool {
	_, err := uuid.Parse(id)
	return err == nil
}

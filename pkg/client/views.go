package client

import (
	"context"
	"errors"
	"sync"

	collabModel "kolabnaskah/internal/collaborator/model"
	docModel "kolabnaskah/internal/document/model"
	folderModel "kolabnaskah/internal/folder/model"
)

// ErrBusy is returned when a delete is requested while another is in flight.
var ErrBusy = errors.New("client: another delete is in flight")

// RefreshFunc re-fetches a whole collection after a change to it.
type RefreshFunc func(ctx context.Context)

// DocumentList mirrors the user's documents, most recently updated first.
type DocumentList struct {
	API      *Client
	Notifier Notifier
	// FolderID scopes the list to one folder when set.
	FolderID string
	// OnChange runs after a delete succeeds; nil means Load.
	OnChange RefreshFunc

	mu       sync.Mutex
	docs     []docModel.DocumentMetadata
	deleting bool
}

func (l *DocumentList) Documents() []docModel.DocumentMetadata {
	l.mu.Lock()
	defer l.mu.Unlock()
	return append([]docModel.DocumentMetadata(nil), l.docs...)
}

// Deleting reports whether delete controls are disabled.
func (l *DocumentList) Deleting() bool {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.deleting
}

func (l *DocumentList) Load(ctx context.Context) error {
	docs, err := l.API.ListDocuments(ctx, l.FolderID)
	if err != nil {
		failure(l.Notifier, "Failed to fetch documents")
		return err
	}
	l.mu.Lock()
	l.docs = docs
	l.mu.Unlock()
	return nil
}

// Create makes an untitled document and puts it at the front of the list
// without re-fetching.
func (l *DocumentList) Create(ctx context.Context) (*docModel.Document, error) {
	req := docModel.CreateDocRequest{}
	if l.FolderID != "" {
		folderID := l.FolderID
		req.FolderID = &folderID
	}
	doc, err := l.API.CreateDocument(ctx, req)
	if err != nil {
		failure(l.Notifier, "Failed to create document")
		return nil, err
	}

	meta := docModel.DocumentMetadata{
		ID:        doc.ID,
		Title:     doc.Title,
		FolderID:  doc.FolderID,
		IsOwner:   true,
		CreatedAt: doc.CreatedAt,
		UpdatedAt: doc.UpdatedAt,
	}
	l.mu.Lock()
	l.docs = append([]docModel.DocumentMetadata{meta}, l.docs...)
	l.mu.Unlock()
	return doc, nil
}

func (l *DocumentList) Delete(ctx context.Context, id string) error {
	l.mu.Lock()
	if l.deleting {
		l.mu.Unlock()
		return ErrBusy
	}
	l.deleting = true
	l.mu.Unlock()
	defer func() {
		l.mu.Lock()
		l.deleting = false
		l.mu.Unlock()
	}()

	if err := l.API.DeleteDocument(ctx, id); err != nil {
		failure(l.Notifier, "Failed to delete document")
		return err
	}
	l.refresh(ctx)
	success(l.Notifier, "Document deleted successfully")
	return nil
}

func (l *DocumentList) refresh(ctx context.Context) {
	if l.OnChange != nil {
		l.OnChange(ctx)
		return
	}
	l.Load(ctx)
}

// FolderList mirrors the user's folders ordered by name.
type FolderList struct {
	API      *Client
	Notifier Notifier
	OnChange RefreshFunc

	mu       sync.Mutex
	folders  []folderModel.Folder
	deleting bool
}

func (l *FolderList) Folders() []folderModel.Folder {
	l.mu.Lock()
	defer l.mu.Unlock()
	return append([]folderModel.Folder(nil), l.folders...)
}

func (l *FolderList) Deleting() bool {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.deleting
}

func (l *FolderList) Load(ctx context.Context) error {
	folders, err := l.API.ListFolders(ctx)
	if err != nil {
		failure(l.Notifier, "Failed to fetch folders")
		return err
	}
	l.mu.Lock()
	l.folders = folders
	l.mu.Unlock()
	return nil
}

func (l *FolderList) Delete(ctx context.Context, id string) error {
	l.mu.Lock()
	if l.deleting {
		l.mu.Unlock()
		return ErrBusy
	}
	l.deleting = true
	l.mu.Unlock()
	defer func() {
		l.mu.Lock()
		l.deleting = false
		l.mu.Unlock()
	}()

	if err := l.API.DeleteFolder(ctx, id); err != nil {
		failure(l.Notifier, "Failed to delete folder")
		return err
	}
	l.refresh(ctx)
	success(l.Notifier, "Folder deleted successfully")
	return nil
}

func (l *FolderList) refresh(ctx context.Context) {
	if l.OnChange != nil {
		l.OnChange(ctx)
		return
	}
	l.Load(ctx)
}

// CreateFolderDialog creates a folder and hands it to OnCreated.
type CreateFolderDialog struct {
	API       *Client
	Notifier  Notifier
	OnCreated RefreshFunc

	Open bool
	Name string
}

func (d *CreateFolderDialog) Submit(ctx context.Context) error {
	if _, err := d.API.CreateFolder(ctx, d.Name); err != nil {
		failure(d.Notifier, "Failed to create folder")
		return err
	}
	d.Open = false
	d.Name = ""
	success(d.Notifier, "Folder created successfully")
	if d.OnCreated != nil {
		d.OnCreated(ctx)
	}
	return nil
}

// RenameFolderDialog renames one folder, seeded with its current name.
type RenameFolderDialog struct {
	API      *Client
	Notifier Notifier
	OnChange RefreshFunc

	FolderID string
	Open     bool
	Name     string
}

func (d *RenameFolderDialog) Submit(ctx context.Context) error {
	if err := d.API.RenameFolder(ctx, d.FolderID, d.Name); err != nil {
		failure(d.Notifier, "Failed to rename folder")
		return err
	}
	d.Open = false
	success(d.Notifier, "Folder renamed successfully")
	if d.OnChange != nil {
		d.OnChange(ctx)
	}
	return nil
}

// CollaboratorPanel lists and edits one document's collaborators.
type CollaboratorPanel struct {
	API        *Client
	Notifier   Notifier
	DocumentID string

	mu            sync.Mutex
	collaborators []collabModel.Collaborator
	Email         string
}

func (p *CollaboratorPanel) Collaborators() []collabModel.Collaborator {
	p.mu.Lock()
	defer p.mu.Unlock()
	return append([]collabModel.Collaborator(nil), p.collaborators...)
}

func (p *CollaboratorPanel) Load(ctx context.Context) error {
	list, err := p.API.ListCollaborators(ctx, p.DocumentID)
	if err != nil {
		failure(p.Notifier, "Failed to fetch collaborators")
		return err
	}
	p.mu.Lock()
	p.collaborators = list
	p.mu.Unlock()
	return nil
}

// Add grants view access to the user with Email. On failure the list is
// left as it was.
func (p *CollaboratorPanel) Add(ctx context.Context) error {
	if _, err := p.API.AddCollaborator(ctx, p.DocumentID, p.Email); err != nil {
		failure(p.Notifier, "Failed to add collaborator")
		return err
	}
	p.Email = ""
	p.Load(ctx)
	success(p.Notifier, "Collaborator added successfully")
	return nil
}

func (p *CollaboratorPanel) Remove(ctx context.Context, id string) error {
	if err := p.API.RemoveCollaborator(ctx, id); err != nil {
		failure(p.Notifier, "Failed to remove collaborator")
		return err
	}
	p.Load(ctx)
	success(p.Notifier, "Collaborator removed successfully")
	return nil
}

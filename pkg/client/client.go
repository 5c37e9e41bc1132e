// Package client talks to the HTTP API and keeps the local view state the
// web app renders: document and folder lists, the folder dialogs, the
// collaborator panel and the profile form.
package client

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	accountModel "kolabnaskah/internal/account/model"
	collabModel "kolabnaskah/internal/collaborator/model"
	docModel "kolabnaskah/internal/document/model"
	folderModel "kolabnaskah/internal/folder/model"
)

// APIError is a non-2xx response. Message is the body the server sent.
type APIError struct {
	Status  int
	Message string
}

func (e *APIError) Error() string {
	return fmt.Sprintf("api: %d %s", e.Status, e.Message)
}

type Client struct {
	BaseURL string
	HTTP    *http.Client
	Token   string
}

func New(baseURL string) *Client {
	return &Client{
		BaseURL: strings.TrimRight(baseURL, "/"),
		HTTP:    &http.Client{Timeout: 15 * time.Second},
	}
}

func (c *Client) do(ctx context.Context, method, path string, body, out any) error {
	var reader io.Reader
	if body != nil {
		buf, err := json.Marshal(body)
		if err != nil {
			return fmt.Errorf("encode request: %w", err)
		}
		reader = bytes.NewReader(buf)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.BaseURL+path, reader)
	if err != nil {
		return err
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if c.Token != "" {
		req.Header.Set("Authorization", "Bearer "+c.Token)
	}

	resp, err := c.HTTP.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		msg, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
		return &APIError{Status: resp.StatusCode, Message: strings.TrimSpace(string(msg))}
	}
	if out == nil {
		return nil
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("decode response: %w", err)
	}
	return nil
}

// SignIn stores the returned token for later calls.
func (c *Client) SignIn(ctx context.Context, email, password string) (*accountModel.AuthResponse, error) {
	var resp accountModel.AuthResponse
	if err := c.do(ctx, http.MethodPost, "/api/auth/signin", accountModel.Credentials{Email: email, Password: password}, &resp); err != nil {
		return nil, err
	}
	c.Token = resp.Token
	return &resp, nil
}

func (c *Client) SignUp(ctx context.Context, email, password string) (*accountModel.AuthResponse, error) {
	var resp accountModel.AuthResponse
	if err := c.do(ctx, http.MethodPost, "/api/auth/signup", accountModel.Credentials{Email: email, Password: password}, &resp); err != nil {
		return nil, err
	}
	c.Token = resp.Token
	return &resp, nil
}

func (c *Client) SignOut(ctx context.Context) error {
	if err := c.do(ctx, http.MethodPost, "/api/auth/signout", nil, nil); err != nil {
		return err
	}
	c.Token = ""
	return nil
}

func (c *Client) Me(ctx context.Context) (*accountModel.User, error) {
	var u accountModel.User
	if err := c.do(ctx, http.MethodGet, "/api/auth/me", nil, &u); err != nil {
		return nil, err
	}
	return &u, nil
}

func (c *Client) UpdatePassword(ctx context.Context, password, confirm string) error {
	return c.do(ctx, http.MethodPut, "/api/auth/password",
		accountModel.PasswordUpdate{Password: password, ConfirmPassword: confirm}, nil)
}

// ListDocuments lists every readable document, or only those in folderID
// when it is set.
func (c *Client) ListDocuments(ctx context.Context, folderID string) ([]docModel.DocumentMetadata, error) {
	path := "/api/documents"
	if folderID != "" {
		path += "?folderId=" + url.QueryEscape(folderID)
	}
	var docs []docModel.DocumentMetadata
	if err := c.do(ctx, http.MethodGet, path, nil, &docs); err != nil {
		return nil, err
	}
	return docs, nil
}

func (c *Client) CreateDocument(ctx context.Context, req docModel.CreateDocRequest) (*docModel.Document, error) {
	var doc docModel.Document
	if err := c.do(ctx, http.MethodPost, "/api/documents", req, &doc); err != nil {
		return nil, err
	}
	return &doc, nil
}

func (c *Client) GetDocument(ctx context.Context, id string) (*docModel.Document, error) {
	var doc docModel.Document
	if err := c.do(ctx, http.MethodGet, "/api/documents/"+url.PathEscape(id), nil, &doc); err != nil {
		return nil, err
	}
	return &doc, nil
}

func (c *Client) UpdateDocument(ctx context.Context, id string, req docModel.UpdateDocRequest) (*docModel.Document, error) {
	var doc docModel.Document
	if err := c.do(ctx, http.MethodPatch, "/api/documents/"+url.PathEscape(id), req, &doc); err != nil {
		return nil, err
	}
	return &doc, nil
}

func (c *Client) DeleteDocument(ctx context.Context, id string) error {
	return c.do(ctx, http.MethodDelete, "/api/documents/"+url.PathEscape(id), nil, nil)
}

func (c *Client) ListFolders(ctx context.Context) ([]folderModel.Folder, error) {
	var folders []folderModel.Folder
	if err := c.do(ctx, http.MethodGet, "/api/folders", nil, &folders); err != nil {
		return nil, err
	}
	return folders, nil
}

func (c *Client) CreateFolder(ctx context.Context, name string) (*folderModel.Folder, error) {
	var f folderModel.Folder
	if err := c.do(ctx, http.MethodPost, "/api/folders", folderModel.FolderRequest{Name: name}, &f); err != nil {
		return nil, err
	}
	return &f, nil
}

func (c *Client) GetFolder(ctx context.Context, id string) (*folderModel.FolderDetail, error) {
	var detail folderModel.FolderDetail
	if err := c.do(ctx, http.MethodGet, "/api/folders/"+url.PathEscape(id), nil, &detail); err != nil {
		return nil, err
	}
	return &detail, nil
}

func (c *Client) RenameFolder(ctx context.Context, id, name string) error {
	return c.do(ctx, http.MethodPatch, "/api/folders/"+url.PathEscape(id), folderModel.FolderRequest{Name: name}, nil)
}

func (c *Client) DeleteFolder(ctx context.Context, id string) error {
	return c.do(ctx, http.MethodDelete, "/api/folders/"+url.PathEscape(id), nil, nil)
}

func (c *Client) ListCollaborators(ctx context.Context, docID string) ([]collabModel.Collaborator, error) {
	var list []collabModel.Collaborator
	if err := c.do(ctx, http.MethodGet, "/api/documents/"+url.PathEscape(docID)+"/collaborators", nil, &list); err != nil {
		return nil, err
	}
	return list, nil
}

func (c *Client) AddCollaborator(ctx context.Context, docID, email string) (*collabModel.Collaborator, error) {
	var collab collabModel.Collaborator
	err := c.do(ctx, http.MethodPost, "/api/documents/"+url.PathEscape(docID)+"/collaborators",
		collabModel.AddCollaboratorRequest{Email: email}, &collab)
	if err != nil {
		return nil, err
	}
	return &collab, nil
}

func (c *Client) RemoveCollaborator(ctx context.Context, id string) error {
	return c.do(ctx, http.MethodDelete, "/api/collaborators/"+url.PathEscape(id), nil, nil)
}

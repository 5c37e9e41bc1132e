package model

import (
	"encoding/json"
	"time"
)

const DefaultTitle = "Untitled Document"

type Document struct {
	ID        string    `json:"id"`
	Title     string    `json:"title"`
	Content   string    `json:"content"` // HTML serialization of the editor body
	UserID    string    `json:"user_id"`
	FolderID  *string   `json:"folder_id"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

type DocumentMetadata struct {
	ID        string    `json:"id"`
	Title     string    `json:"title"`
	FolderID  *string   `json:"folder_id"`
	Snippet   string    `json:"snippet"`
	IsOwner   bool      `json:"is_owner"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

type CreateDocRequest struct {
	Title    string  `json:"title"`
	FolderID *string `json:"folder_id"`
}

// UpdateDocRequest is a partial update: absent fields are left alone.
type UpdateDocRequest struct {
	Title    *string    `json:"title,omitempty"`
	Content  *string    `json:"content,omitempty"`
	FolderID NullableID `json:"folder_id,omitzero"`
}

func (r UpdateDocRequest) Empty() bool {
	return r.Title == nil && r.Content == nil && !r.FolderID.Set
}

// NullableID tells an absent JSON field from an explicit null.
type NullableID struct {
	Set   bool
	Value *string
}

func (n *NullableID) UnmarshalJSON(b []byte) error {
	n.Set = true
	if string(b) == "null" {
		n.Value = nil
		return nil
	}
	var s string
	if err := json.Unmarshal(b, &s); err != nil {
		return err
	}
	n.Value = &s
	return nil
}

func (n NullableID) MarshalJSON() ([]byte, error) {
	if n.Value == nil {
		return []byte("null"), nil
	}
	return json.Marshal(*n.Value)
}

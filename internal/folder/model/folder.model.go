package model

import (
	"time"

	docModel "kolabnaskah/internal/document/model"
)

type Folder struct {
	ID            string    `json:"id"`
	Name          string    `json:"name"`
	UserID        string    `json:"user_id"`
	DocumentCount int       `json:"document_count"`
	CreatedAt     time.Time `json:"created_at"`
}

type FolderRequest struct {
	Name string `json:"name"`
}

// FolderDetail is a folder together with the documents filed in it.
type FolderDetail struct {
	Folder    Folder                      `json:"folder"`
	Documents []docModel.DocumentMetadata `json:"documents"`
}

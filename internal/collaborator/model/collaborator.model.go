package model

import "time"

// PermissionView is the only permission granted on creation.
const PermissionView = "view"

type Collaborator struct {
	ID         string    `json:"id"`
	DocumentID string    `json:"document_id"`
	UserID     string    `json:"user_id"`
	Email      string    `json:"email"`
	Permission string    `json:"permission"`
	CreatedAt  time.Time `json:"created_at"`
}

type AddCollaboratorRequest struct {
	Email string `json:"email"`
}

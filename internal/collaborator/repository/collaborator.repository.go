package repository

import (
	"context"
	"database/sql"
	"errors"

	"kolabnaskah/internal/collaborator/model"
	"kolabnaskah/pkg/apperror"
	"kolabnaskah/pkg/logger"
)

type CollaboratorRepository struct {
	DB *sql.DB
}

func NewCollaboratorRepository(db *sql.DB) *CollaboratorRepository {
	return &CollaboratorRepository{DB: db}
}

// List returns the collaborators of a document the caller can read.
func (r *CollaboratorRepository) List(ctx context.Context, docID, userID string) ([]model.Collaborator, error) {
	rows, err := r.DB.QueryContext(ctx, `
		SELECT c.id, c.document_id, c.user_id, u.email, c.permission, c.created_at
		FROM collaborators c
		JOIN users u ON u.id = c.user_id
		JOIN documents d ON d.id = c.document_id
		WHERE c.document_id = $1
		AND (d.user_id = $2 OR EXISTS (
			SELECT 1 FROM collaborators me WHERE me.document_id = d.id AND me.user_id = $2))
		ORDER BY c.created_at`, docID, userID)
	if err != nil {
		logger.Sugar.Errorf("Failed to list collaborators for document %s: %v", docID, err)
		return nil, apperror.Store("list collaborators", err)
	}
	defer rows.Close()

	collaborators := []model.Collaborator{}
	for rows.Next() {
		var c model.Collaborator
		if err := rows.Scan(&c.ID, &c.DocumentID, &c.UserID, &c.Email, &c.Permission, &c.CreatedAt); err != nil {
			logger.Sugar.Errorf("Failed to scan collaborator: %v", err)
			return nil, apperror.Store("list collaborators", err)
		}
		collaborators = append(collaborators, c)
	}
	if err := rows.Err(); err != nil {
		return nil, apperror.Store("list collaborators", err)
	}
	return collaborators, nil
}

// LookupUserID resolves an email to a user id.
func (r *CollaboratorRepository) LookupUserID(ctx context.Context, email string) (string, error) {
	var id string
	err := r.DB.QueryRowContext(ctx, "SELECT id FROM users WHERE LOWER(email) = LOWER($1)", email).Scan(&id)
	if err != nil {
		if !errors.Is(err, sql.ErrNoRows) {
			logger.Sugar.Errorf("Failed to look up user %s: %v", email, err)
		}
		return "", apperror.IdentityLookup("Failed to add collaborator", err)
	}
	return id, nil
}

// Add inserts the join row when ownerID owns the document.
func (r *CollaboratorRepository) Add(ctx context.Context, id, docID, ownerID, collaboratorID string) (*model.Collaborator, error) {
	var c model.Collaborator
	err := r.DB.QueryRowContext(ctx, `
		INSERT INTO collaborators (id, document_id, user_id, permission, created_at)
		SELECT $1, d.id, $3, $4, NOW() FROM documents d WHERE d.id = $2 AND d.user_id = $5
		RETURNING id, document_id, user_id, permission, created_at`,
		id, docID, collaboratorID, model.PermissionView, ownerID).
		Scan(&c.ID, &c.DocumentID, &c.UserID, &c.Permission, &c.CreatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, apperror.NotFound("Document not found")
	}
	if err != nil {
		logger.Sugar.Errorf("Failed to add collaborator to document %s: %v", docID, err)
		return nil, apperror.Store("add collaborator", err)
	}
	return &c, nil
}

// Remove deletes a join row on a document owned by ownerID.
func (r *CollaboratorRepository) Remove(ctx context.Context, id, ownerID string) error {
	result, err := r.DB.ExecContext(ctx, `
		DELETE FROM collaborators c USING documents d
		WHERE c.id = $1 AND d.id = c.document_id AND d.user_id = $2`, id, ownerID)
	if err != nil {
		logger.Sugar.Errorf("Failed to remove collaborator %s: %v", id, err)
		return apperror.Store("remove collaborator", err)
	}
	if n, _ := result.RowsAffected(); n == 0 {
		return apperror.NotFound("Collaborator not found")
	}
	return nil
}

package service

import (
	"context"
	"strings"

	"kolabnaskah/internal/collaborator/model"
	"kolabnaskah/pkg/apperror"

	"github.com/google/uuid"
)

type Repository interface {
	List(ctx context.Context, docID, userID string) ([]model.Collaborator, error)
	LookupUserID(ctx context.Context, email string) (string, error)
	Add(ctx context.Context, id, docID, ownerID, collaboratorID string) (*model.Collaborator, error)
	Remove(ctx context.Context, id, ownerID string) error
}

type CollaboratorService struct {
	Repo Repository
}

func NewCollaboratorService(repo Repository) *CollaboratorService {
	return &CollaboratorService{Repo: repo}
}

func (s *CollaboratorService) ListCollaborators(ctx context.Context, docID, userID string) ([]model.Collaborator, error) {
	if !validID(docID) {
		return nil, apperror.NotFound("Document not found")
	}
	return s.Repo.List(ctx, docID, userID)
}

// AddCollaborator resolves the email and grants view access. Adding the
// same user twice yields two rows.
func (s *CollaboratorService) AddCollaborator(ctx context.Context, docID, ownerID, email string) (*model.Collaborator, error) {
	email = strings.TrimSpace(email)
	if email == "" {
		return nil, apperror.Validation("Email is required")
	}
	if !validID(docID) {
		return nil, apperror.NotFound("Document not found")
	}
	collaboratorID, err := s.Repo.LookupUserID(ctx, email)
	if err != nil {
		return nil, err
	}
	c, err := s.Repo.Add(ctx, uuid.NewString(), docID, ownerID, collaboratorID)
	if err != nil {
		return nil, err
	}
	c.Email = email
	return c, nil
}

func (s *CollaboratorService) RemoveCollaborator(ctx context.Context, id, ownerID string) error {
	if !validID(id) {
		return apperror.NotFound("Collaborator not found")
	}
	return s.Repo.Remove(ctx, id, ownerID)
}

func validID(id string) bool {
	_, err := uuid.Parse(id)
	return err == nil
}

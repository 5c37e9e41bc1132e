package repository

import (
	"context"
	"database/sql"
	"errors"

	"kolabnaskah/internal/document/model"
	"kolabnaskah/pkg/apperror"
	"kolabnaskah/pkg/logger"
)

// Row-level authorization lives in the statements: a document is visible to
// its owner and its collaborators, writable by its owner and collaborators
// holding the edit permission, deletable by its owner only. A row the caller
// may not see is reported as not found.

const documentColumns = `d.id, d.title, d.content, d.user_id, d.folder_id, d.created_at, d.updated_at`

type DocumentRepository struct {
	DB *sql.DB
}

func NewDocumentRepository(db *sql.DB) *DocumentRepository {
	return &DocumentRepository{DB: db}
}

type scanner interface {
	Scan(dest ...any) error
}

func scanDocument(row scanner) (*model.Document, error) {
	var d model.Document
	var folderID sql.NullString
	if err := row.Scan(&d.ID, &d.Title, &d.Content, &d.UserID, &folderID, &d.CreatedAt, &d.UpdatedAt); err != nil {
		return nil, err
	}
	if folderID.Valid {
		d.FolderID = &folderID.String
	}
	return &d, nil
}

func (r *DocumentRepository) Create(ctx context.Context, id, title, userID string, folderID *string) (*model.Document, error) {
	row := r.DB.QueryRowContext(ctx, `
		INSERT INTO documents AS d (id, title, content, user_id, folder_id, created_at, updated_at)
		SELECT $1, $2, '', $3, $4::uuid, NOW(), NOW()
		WHERE $4::uuid IS NULL OR EXISTS (SELECT 1 FROM folders f WHERE f.id = $4::uuid AND f.user_id = $3)
		RETURNING `+documentColumns,
		id, title, userID, folderID)
	doc, err := scanDocument(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, apperror.NotFound("Folder not found")
	}
	if err != nil {
		logger.Sugar.Errorf("Failed to create document: %v", err)
		return nil, apperror.Store("create document", err)
	}
	return doc, nil
}

func (r *DocumentRepository) Get(ctx context.Context, docID, userID string) (*model.Document, error) {
	row := r.DB.QueryRowContext(ctx, `
		SELECT `+documentColumns+` FROM documents d
		WHERE d.id = $1 AND (d.user_id = $2 OR EXISTS (
			SELECT 1 FROM collaborators c WHERE c.document_id = d.id AND c.user_id = $2))`,
		docID, userID)
	doc, err := scanDocument(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, apperror.NotFound("Document not found")
	}
	if err != nil {
		logger.Sugar.Errorf("Failed to get doc %s: %v", docID, err)
		return nil, apperror.Store("get document", err)
	}
	return doc, nil
}

// ListByUser returns the documents the user owns or collaborates on, most
// recently updated first.
func (r *DocumentRepository) ListByUser(ctx context.Context, userID string) ([]model.Document, error) {
	return r.list(ctx, `
		SELECT `+documentColumns+` FROM documents d WHERE d.user_id = $1
		UNION
		SELECT `+documentColumns+` FROM documents d JOIN collaborators c ON d.id = c.document_id WHERE c.user_id = $1
		ORDER BY updated_at DESC`, userID)
}

func (r *DocumentRepository) ListByFolder(ctx context.Context, folderID, userID string) ([]model.Document, error) {
	return r.list(ctx, `
		SELECT `+documentColumns+` FROM documents d
		WHERE d.folder_id = $1 AND d.user_id = $2
		ORDER BY d.updated_at DESC`, folderID, userID)
}

func (r *DocumentRepository) list(ctx context.Context, query string, args ...any) ([]model.Document, error) {
	rows, err := r.DB.QueryContext(ctx, query, args...)
	if err != nil {
		logger.Sugar.Errorf("Failed to list documents: %v", err)
		return nil, apperror.Store("list documents", err)
	}
	defer rows.Close()

	docs := []model.Document{}
	for rows.Next() {
		doc, err := scanDocument(rows)
		if err != nil {
			logger.Sugar.Errorf("Failed to scan document: %v", err)
			return nil, apperror.Store("list documents", err)
		}
		docs = append(docs, *doc)
	}
	if err := rows.Err(); err != nil {
		return nil, apperror.Store("list documents", err)
	}
	return docs, nil
}

// Update applies the fields present in req and returns the full row.
func (r *DocumentRepository) Update(ctx context.Context, docID, userID string, req model.UpdateDocRequest) (*model.Document, error) {
	row := r.DB.QueryRowContext(ctx, `
		UPDATE documents d SET
			title = COALESCE($3, d.title),
			content = COALESCE($4, d.content),
			folder_id = CASE WHEN $5 THEN $6::uuid ELSE d.folder_id END,
			updated_at = NOW()
		WHERE d.id = $1
			AND (d.user_id = $2 OR EXISTS (
				SELECT 1 FROM collaborators c
				WHERE c.document_id = d.id AND c.user_id = $2 AND c.permission = 'edit'))
			AND (NOT $5 OR $6::uuid IS NULL OR EXISTS (
				SELECT 1 FROM folders f WHERE f.id = $6::uuid AND f.user_id = d.user_id))
		RETURNING `+documentColumns,
		docID, userID, req.Title, req.Content, req.FolderID.Set, req.FolderID.Value)
	doc, err := scanDocument(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, apperror.NotFound("Document not found")
	}
	if err != nil {
		logger.Sugar.Errorf("Failed to update doc %s: %v", docID, err)
		return nil, apperror.Store("update document", err)
	}
	return doc, nil
}

// Delete removes the document and returns the row as it was.
func (r *DocumentRepository) Delete(ctx context.Context, docID, userID string) (*model.Document, error) {
	row := r.DB.QueryRowContext(ctx, `
		DELETE FROM documents d WHERE d.id = $1 AND d.user_id = $2
		RETURNING `+documentColumns, docID, userID)
	doc, err := scanDocument(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, apperror.NotFound("Document not found")
	}
	if err != nil {
		logger.Sugar.Errorf("Failed to delete doc %s: %v", docID, err)
		return nil, apperror.Store("delete document", err)
	}
	return doc, nil
}

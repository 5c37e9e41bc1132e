package repository

import (
	"context"
	"database/sql"
	"errors"

	docModel "kolabnaskah/internal/document/model"
	"kolabnaskah/internal/folder/model"
	"kolabnaskah/pkg/apperror"
	"kolabnaskah/pkg/logger"
)

type FolderRepository struct {
	DB *sql.DB
}

func NewFolderRepository(db *sql.DB) *FolderRepository {
	return &FolderRepository{DB: db}
}

func (r *FolderRepository) Create(ctx context.Context, id, name, userID string) (*model.Folder, error) {
	var f model.Folder
	err := r.DB.QueryRowContext(ctx, `
		INSERT INTO folders (id, name, user_id, created_at) VALUES ($1, $2, $3, NOW())
		RETURNING id, name, user_id, created_at`, id, name, userID).
		Scan(&f.ID, &f.Name, &f.UserID, &f.CreatedAt)
	if err != nil {
		logger.Sugar.Errorf("Failed to create folder: %v", err)
		return nil, apperror.Store("create folder", err)
	}
	return &f, nil
}

// List returns the user's folders by name, each with its document count.
func (r *FolderRepository) List(ctx context.Context, userID string) ([]model.Folder, error) {
	rows, err := r.DB.QueryContext(ctx, `
		SELECT f.id, f.name, f.user_id, f.created_at, COUNT(d.id)
		FROM folders f LEFT JOIN documents d ON d.folder_id = f.id
		WHERE f.user_id = $1
		GROUP BY f.id
		ORDER BY f.name`, userID)
	if err != nil {
		logger.Sugar.Errorf("Failed to list folders for user %s: %v", userID, err)
		return nil, apperror.Store("list folders", err)
	}
	defer rows.Close()

	folders := []model.Folder{}
	for rows.Next() {
		var f model.Folder
		if err := rows.Scan(&f.ID, &f.Name, &f.UserID, &f.CreatedAt, &f.DocumentCount); err != nil {
			logger.Sugar.Errorf("Failed to scan folder: %v", err)
			return nil, apperror.Store("list folders", err)
		}
		folders = append(folders, f)
	}
	if err := rows.Err(); err != nil {
		return nil, apperror.Store("list folders", err)
	}
	return folders, nil
}

func (r *FolderRepository) Get(ctx context.Context, folderID, userID string) (*model.Folder, error) {
	var f model.Folder
	err := r.DB.QueryRowContext(ctx, `
		SELECT f.id, f.name, f.user_id, f.created_at,
			(SELECT COUNT(*) FROM documents d WHERE d.folder_id = f.id)
		FROM folders f WHERE f.id = $1 AND f.user_id = $2`, folderID, userID).
		Scan(&f.ID, &f.Name, &f.UserID, &f.CreatedAt, &f.DocumentCount)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, apperror.NotFound("Folder not found")
	}
	if err != nil {
		logger.Sugar.Errorf("Failed to get folder %s: %v", folderID, err)
		return nil, apperror.Store("get folder", err)
	}
	return &f, nil
}

func (r *FolderRepository) Rename(ctx context.Context, folderID, userID, name string) error {
	result, err := r.DB.ExecContext(ctx, "UPDATE folders SET name = $1 WHERE id = $2 AND user_id = $3", name, folderID, userID)
	if err != nil {
		logger.Sugar.Errorf("Failed to rename folder %s: %v", folderID, err)
		return apperror.Store("rename folder", err)
	}
	if n, _ := result.RowsAffected(); n == 0 {
		return apperror.NotFound("Folder not found")
	}
	return nil
}

// Delete unfiles the folder's documents and removes the folder in one
// transaction. It returns the unfiled documents as they are afterwards.
func (r *FolderRepository) Delete(ctx context.Context, folderID, userID string) ([]docModel.Document, error) {
	tx, err := r.DB.BeginTx(ctx, nil)
	if err != nil {
		logger.Sugar.Errorf("Failed to begin folder delete %s: %v", folderID, err)
		return nil, apperror.Store("delete folder", err)
	}
	defer tx.Rollback()

	rows, err := tx.QueryContext(ctx, `
		UPDATE documents d SET folder_id = NULL
		FROM folders f
		WHERE d.folder_id = f.id AND f.id = $1 AND f.user_id = $2
		RETURNING d.id, d.title, d.content, d.user_id, d.folder_id, d.created_at, d.updated_at`, folderID, userID)
	if err != nil {
		logger.Sugar.Errorf("Failed to unfile documents of folder %s: %v", folderID, err)
		return nil, apperror.Store("delete folder", err)
	}
	unfiled := []docModel.Document{}
	for rows.Next() {
		var d docModel.Document
		var folder sql.NullString
		if err := rows.Scan(&d.ID, &d.Title, &d.Content, &d.UserID, &folder, &d.CreatedAt, &d.UpdatedAt); err != nil {
			rows.Close()
			return nil, apperror.Store("delete folder", err)
		}
		unfiled = append(unfiled, d)
	}
	rows.Close()
	if err := rows.Err(); err != nil {
		return nil, apperror.Store("delete folder", err)
	}

	result, err := tx.ExecContext(ctx, "DELETE FROM folders WHERE id = $1 AND user_id = $2", folderID, userID)
	if err != nil {
		logger.Sugar.Errorf("Failed to delete folder %s: %v", folderID, err)
		return nil, apperror.Store("delete folder", err)
	}
	if n, _ := result.RowsAffected(); n == 0 {
		return nil, apperror.NotFound("Folder not found")
	}
	if err := tx.Commit(); err != nil {
		logger.Sugar.Errorf("Failed to commit folder delete %s: %v", folderID, err)
		return nil, apperror.Store("delete folder", err)
	}
	return unfiled, nil
}

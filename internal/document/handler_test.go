package handler

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"kolabnaskah/internal/document/model"
	"kolabnaskah/internal/document/repository"
	"kolabnaskah/internal/document/service"
	"kolabnaskah/middleware"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/gorilla/mux"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const (
	docID  = "6f1d1c1e-8d4b-4b59-9d38-3f0b8f0f2a11"
	userID = "0b5c7a0e-2c1f-4a7e-9a3e-6f0d2c1b9e22"
)

var columns = []string{"id", "title", "content", "user_id", "folder_id", "created_at", "updated_at"}

func setup(t *testing.T) (*mux.Router, sqlmock.Sqlmock) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })

	h := NewDocumentHandler(service.NewDocumentService(repository.NewDocumentRepository(db), nil))
	r := mux.NewRouter()
	r.HandleFunc("/api/documents", h.CreateDocument).Methods(http.MethodPost)
	r.HandleFunc("/api/documents/{id}", h.GetDocument).Methods(http.MethodGet)
	r.HandleFunc("/api/documents/{id}", h.UpdateDocument).Methods(http.MethodPatch)
	r.HandleFunc("/api/documents/{id}", h.DeleteDocument).Methods(http.MethodDelete)
	return r, mock
}

func authed(req *http.Request) *http.Request {
	return req.WithContext(context.WithValue(req.Context(), middleware.UserIDKey, userID))
}

func TestCreateDocumentHandler(t *testing.T) {
	r, mock := setup(t)
	now := time.Now()

	mock.ExpectQuery(`INSERT INTO documents AS d`).
		WithArgs(sqlmock.AnyArg(), "Untitled Document", userID, nil).
		WillReturnRows(sqlmock.NewRows(columns).AddRow(docID, "Untitled Document", "", userID, nil, now, now))

	rec := httptest.NewRecorder()
	r.ServeHTTP(rec, authed(httptest.NewRequest(http.MethodPost, "/api/documents", strings.NewReader(`{}`))))

	require.Equal(t, http.StatusCreated, rec.Code)
	var doc model.Document
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &doc))
	assert.Equal(t, "Untitled Document", doc.Title)
	assert.Equal(t, "", doc.Content)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestGetDocumentNotFound(t *testing.T) {
	r, mock := setup(t)

	mock.ExpectQuery(`SELECT .+ FROM documents d`).
		WithArgs(docID, userID).
		WillReturnRows(sqlmock.NewRows(columns))

	rec := httptest.NewRecorder()
	r.ServeHTTP(rec, authed(httptest.NewRequest(http.MethodGet, "/api/documents/"+docID, nil)))

	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestPatchFolderToNull(t *testing.T) {
	r, mock := setup(t)
	now := time.Now()

	mock.ExpectQuery(`UPDATE documents d SET`).
		WithArgs(docID, userID, nil, nil, true, nil).
		WillReturnRows(sqlmock.NewRows(columns).AddRow(docID, "Doc", "", userID, nil, now, now))

	rec := httptest.NewRecorder()
	body := strings.NewReader(`{"folder_id": null}`)
	r.ServeHTTP(rec, authed(httptest.NewRequest(http.MethodPatch, "/api/documents/"+docID, body)))

	assert.Equal(t, http.StatusOK, rec.Code)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPatchEmptyBodyRejected(t *testing.T) {
	r, _ := setup(t)

	rec := httptest.NewRecorder()
	r.ServeHTTP(rec, authed(httptest.NewRequest(http.MethodPatch, "/api/documents/"+docID, strings.NewReader(`{}`))))

	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestDeleteDocumentHandler(t *testing.T) {
	r, mock := setup(t)
	now := time.Now()

	mock.ExpectQuery(`DELETE FROM documents d`).
		WithArgs(docID, userID).
		WillReturnRows(sqlmock.NewRows(columns).AddRow(docID, "Doc", "", userID, nil, now, now))

	rec := httptest.NewRecorder()
	r.ServeHTTP(rec, authed(httptest.NewRequest(http.MethodDelete, "/api/documents/"+docID, nil)))

	assert.Equal(t, http.StatusOK, rec.Code)
	assert.NoError(t, mock.ExpectationsWereMet())
}

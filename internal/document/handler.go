package handler

import (
	"encoding/json"
	"net/http"

	"kolabnaskah/internal/document/model"
	"kolabnaskah/internal/document/service"
	"kolabnaskah/middleware"
	"kolabnaskah/pkg/apperror"
	"kolabnaskah/pkg/logger"

	"github.com/gorilla/mux"
)

type DocumentHandler struct {
	Service *service.DocumentService
}

func NewDocumentHandler(service *service.DocumentService) *DocumentHandler {
	return &DocumentHandler{Service: service}
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}

func (h *DocumentHandler) CreateDocument(w http.ResponseWriter, r *http.Request) {
	userID := middleware.UserID(r.Context())

	var req model.CreateDocRequest
	_ = json.NewDecoder(r.Body).Decode(&req) // Ignore error, default to an untitled document

	doc, err := h.Service.CreateDocument(r.Context(), userID, req)
	if err != nil {
		logger.Sugar.Errorf("Handler: Failed to create document: %v", err)
		apperror.Write(w, err, "Failed to create document")
		return
	}

	writeJSON(w, http.StatusCreated, doc)
}

func (h *DocumentHandler) GetDocuments(w http.ResponseWriter, r *http.Request) {
	userID := middleware.UserID(r.Context())

	docs, err := h.Service.ListDocuments(r.Context(), userID, r.URL.Query().Get("folderId"))
	if err != nil {
		logger.Sugar.Errorf("Error fetching documents: %v", err)
		apperror.Write(w, err, "Failed to fetch documents")
		return
	}

	writeJSON(w, http.StatusOK, docs)
}

func (h *DocumentHandler) GetDocument(w http.ResponseWriter, r *http.Request) {
	docID := mux.Vars(r)["id"]
	userID := middleware.UserID(r.Context())

	doc, err := h.Service.GetDocument(r.Context(), docID, userID)
	if err != nil {
		if !apperror.IsNotFound(err) {
			logger.Sugar.Errorf("Handler: Failed to fetch document %s: %v", docID, err)
		}
		apperror.Write(w, err, "Failed to fetch document")
		return
	}

	writeJSON(w, http.StatusOK, doc)
}

func (h *DocumentHandler) UpdateDocument(w http.ResponseWriter, r *http.Request) {
	docID := mux.Vars(r)["id"]
	userID := middleware.UserID(r.Context())

	var req model.UpdateDocRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "Invalid request body", http.StatusBadRequest)
		return
	}

	doc, err := h.Service.UpdateDocument(r.Context(), docID, userID, req)
	if err != nil {
		logger.Sugar.Errorf("Handler: Failed to update document %s: %v", docID, err)
		apperror.Write(w, err, "Failed to update document")
		return
	}

	writeJSON(w, http.StatusOK, doc)
}

func (h *DocumentHandler) DeleteDocument(w http.ResponseWriter, r *http.Request) {
	docID := mux.Vars(r)["id"]
	userID := middleware.UserID(r.Context())

	if err := h.Service.DeleteDocument(r.Context(), docID, userID); err != nil {
		logger.Sugar.Errorf("Handler: Failed to delete document %s: %v", docID, err)
		apperror.Write(w, err, "Failed to delete document")
		return
	}

	w.WriteHeader(http.StatusOK)
	w.Write([]byte("Document deleted successfully"))
}

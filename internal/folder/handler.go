package handler

import (
	"encoding/json"
	"net/http"

	"kolabnaskah/internal/folder/model"
	"kolabnaskah/internal/folder/service"
	"kolabnaskah/middleware"
	"kolabnaskah/pkg/apperror"
	"kolabnaskah/pkg/logger"

	"github.com/gorilla/mux"
)

type FolderHandler struct {
	Service *service.FolderService
}

func NewFolderHandler(service *service.FolderService) *FolderHandler {
	return &FolderHandler{Service: service}
}

func (h *FolderHandler) CreateFolder(w http.ResponseWriter, r *http.Request) {
	userID := middleware.UserID(r.Context())

	var req model.FolderRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "Invalid request body", http.StatusBadRequest)
		return
	}

	folder, err := h.Service.CreateFolder(r.Context(), userID, req.Name)
	if err != nil {
		logger.Sugar.Errorf("Handler: Failed to create folder: %v", err)
		apperror.Write(w, err, "Failed to create folder")
		return
	}

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusCreated)
	json.NewEncoder(w).Encode(folder)
}

func (h *FolderHandler) GetFolders(w http.ResponseWriter, r *http.Request) {
	userID := middleware.UserID(r.Context())

	folders, err := h.Service.ListFolders(r.Context(), userID)
	if err != nil {
		logger.Sugar.Errorf("Error fetching folders: %v", err)
		apperror.Write(w, err, "Failed to fetch folders")
		return
	}

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(folders)
}

func (h *FolderHandler) GetFolder(w http.ResponseWriter, r *http.Request) {
	folderID := mux.Vars(r)["id"]
	userID := middleware.UserID(r.Context())

	detail, err := h.Service.GetFolder(r.Context(), folderID, userID)
	if err != nil {
		if !apperror.IsNotFound(err) {
			logger.Sugar.Errorf("Handler: Failed to fetch folder %s: %v", folderID, err)
		}
		apperror.Write(w, err, "Failed to fetch folder data")
		return
	}

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(detail)
}

func (h *FolderHandler) RenameFolder(w http.ResponseWriter, r *http.Request) {
	folderID := mux.Vars(r)["id"]
	userID := middleware.UserID(r.Context())

	var req model.FolderRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "Invalid request body", http.StatusBadRequest)
		return
	}

	if err := h.Service.RenameFolder(r.Context(), folderID, userID, req.Name); err != nil {
		logger.Sugar.Errorf("Handler: Failed to rename folder %s: %v", folderID, err)
		apperror.Write(w, err, "Failed to rename folder")
		return
	}

	w.WriteHeader(http.StatusOK)
	w.Write([]byte("Folder renamed successfully"))
}

func (h *FolderHandler) DeleteFolder(w http.ResponseWriter, r *http.Request) {
	folderID := mux.Vars(r)["id"]
	userID := middleware.UserID(r.Context())

	if err := h.Service.DeleteFolder(r.Context(), folderID, userID); err != nil {
		logger.Sugar.Errorf("Handler: Failed to delete folder %s: %v", folderID, err)
		apperror.Write(w, err, "Failed to delete folder")
		return
	}

	w.WriteHeader(http.StatusOK)
	w.Write([]byte("Folder deleted successfully"))
}

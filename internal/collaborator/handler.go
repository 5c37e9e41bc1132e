package handler

import (
	"encoding/json"
	"net/http"

	"kolabnaskah/internal/collaborator/model"
	"kolabnaskah/internal/collaborator/service"
	"kolabnaskah/middleware"
	"kolabnaskah/pkg/apperror"
	"kolabnaskah/pkg/logger"

	"github.com/gorilla/mux"
)

type CollaboratorHandler struct {
	Service *service.CollaboratorService
}

func NewCollaboratorHandler(service *service.CollaboratorService) *CollaboratorHandler {
	return &CollaboratorHandler{Service: service}
}

func (h *CollaboratorHandler) GetCollaborators(w http.ResponseWriter, r *http.Request) {
	docID := mux.Vars(r)["id"]
	userID := middleware.UserID(r.Context())

	collaborators, err := h.Service.ListCollaborators(r.Context(), docID, userID)
	if err != nil {
		logger.Sugar.Errorf("Handler: Failed to fetch collaborators for %s: %v", docID, err)
		apperror.Write(w, err, "Failed to fetch collaborators")
		return
	}

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(collaborators)
}

func (h *CollaboratorHandler) AddCollaborator(w http.ResponseWriter, r *http.Request) {
	docID := mux.Vars(r)["id"]
	userID := middleware.UserID(r.Context())

	var req model.AddCollaboratorRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "Invalid request body", http.StatusBadRequest)
		return
	}

	c, err := h.Service.AddCollaborator(r.Context(), docID, userID, req.Email)
	if err != nil {
		logger.Sugar.Errorf("Handler: Failed to add collaborator to %s: %v", docID, err)
		apperror.Write(w, err, "Failed to add collaborator")
		return
	}

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusCreated)
	json.NewEncoder(w).Encode(c)
}

func (h *CollaboratorHandler) RemoveCollaborator(w http.ResponseWriter, r *http.Request) {
	id := mux.Vars(r)["id"]
	userID := middleware.UserID(r.Context())

	if err := h.Service.RemoveCollaborator(r.Context(), id, userID); err != nil {
		logger.Sugar.Errorf("Handler: Failed to remove collaborator %s: %v", id, err)
		apperror.Write(w, err, "Failed to remove collaborator")
		return
	}

	w.WriteHeader(http.StatusOK)
	w.Write([]byte("Collaborator removed successfully"))
}

package handler

import (
	"encoding/json"
	"net/http"
	"time"

	"kolabnaskah/internal/account/model"
	"kolabnaskah/internal/account/service"
	"kolabnaskah/internal/session"
	"kolabnaskah/middleware"
	"kolabnaskah/pkg/apperror"
	"kolabnaskah/pkg/logger"
)

type AccountHandler struct {
	Service *service.AccountService
}

func NewAccountHandler(service *service.AccountService) *AccountHandler {
	return &AccountHandler{Service: service}
}

func (h *AccountHandler) SignUp(w http.ResponseWriter, r *http.Request) {
	var creds model.Credentials
	if err := json.NewDecoder(r.Body).Decode(&creds); err != nil {
		http.Error(w, "Invalid request body", http.StatusBadRequest)
		return
	}

	resp, err := h.Service.SignUp(r.Context(), creds)
	if err != nil {
		logger.Sugar.Infof("Handler: Sign up rejected: %v", err)
		apperror.Write(w, err, "Failed to sign up")
		return
	}
	writeSession(w, http.StatusCreated, resp)
}

func (h *AccountHandler) SignIn(w http.ResponseWriter, r *http.Request) {
	var creds model.Credentials
	if err := json.NewDecoder(r.Body).Decode(&creds); err != nil {
		http.Error(w, "Invalid request body", http.StatusBadRequest)
		return
	}

	resp, err := h.Service.SignIn(r.Context(), creds)
	if err != nil {
		logger.Sugar.Infof("Handler: Sign in rejected: %v", err)
		apperror.Write(w, err, "Failed to sign in")
		return
	}
	writeSession(w, http.StatusOK, resp)
}

func (h *AccountHandler) SignOut(w http.ResponseWriter, r *http.Request) {
	if s, ok := session.FromContext(r.Context()); ok {
		if err := h.Service.SignOut(r.Context(), s); err != nil {
			logger.Sugar.Errorf("Handler: Failed to sign out %s: %v", s.UserID, err)
			apperror.Write(w, err, "Failed to sign out")
			return
		}
	}

	http.SetCookie(w, &http.Cookie{
		Name:     middleware.SessionCookie,
		Value:    "",
		Path:     "/",
		MaxAge:   -1,
		HttpOnly: true,
		SameSite: http.SameSiteLaxMode,
	})
	w.WriteHeader(http.StatusOK)
	w.Write([]byte("Signed out"))
}

func (h *AccountHandler) Me(w http.ResponseWriter, r *http.Request) {
	user, err := h.Service.Me(r.Context(), middleware.UserID(r.Context()))
	if err != nil {
		apperror.Write(w, err, "Failed to fetch user")
		return
	}

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(user)
}

func (h *AccountHandler) UpdatePassword(w http.ResponseWriter, r *http.Request) {
	userID := middleware.UserID(r.Context())

	var req model.PasswordUpdate
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "Invalid request body", http.StatusBadRequest)
		return
	}

	if err := h.Service.UpdatePassword(r.Context(), userID, req); err != nil {
		logger.Sugar.Infof("Handler: Failed to update password for %s: %v", userID, err)
		apperror.Write(w, err, "Failed to update password")
		return
	}

	w.WriteHeader(http.StatusOK)
	w.Write([]byte("Password updated successfully"))
}

func writeSession(w http.ResponseWriter, status int, resp *model.AuthResponse) {
	http.SetCookie(w, &http.Cookie{
		Name:     middleware.SessionCookie,
		Value:    resp.Token,
		Path:     "/",
		Expires:  resp.ExpiresAt,
		MaxAge:   int(time.Until(resp.ExpiresAt).Seconds()),
		HttpOnly: true,
		SameSite: http.SameSiteLaxMode,
	})
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(resp)
}

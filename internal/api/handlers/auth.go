package handlers

import (
	"context"
	"net/http"

	"github.com/dompet-app/dompet/internal/api/middleware"
	"github.com/dompet-app/dompet/internal/auth"
	"github.com/dompet-app/dompet/internal/domain"
	"github.com/rs/zerolog"
)

// AccountService is the part of auth.Service the handlers use.
type AccountService interface {
	Register(ctx context.Context, name, email, password string) (*auth.Session, error)
	Login(ctx context.Context, email, password string) (*auth.Session, error)
	Profile(ctx context.Context, userID string) (*domain.User, error)
	UpdateProfile(ctx context.Context, userID, name, email string) (*domain.User, error)
	ChangePassword(ctx context.Context, userID, current, next string) error
	DeleteAccount(ctx context.Context, userID string) (int64, error)
}

// AuthHandler handles account endpoints.
type AuthHandler struct {
	accounts AccountService
	log      zerolog.Logger
}

// NewAuthHandler creates a new auth handler.
func NewAuthHandler(accounts AccountService, log zerolog.Logger) *AuthHandler {
	return &AuthHandler{accounts: accounts, log: log}
}

// Register handles POST /api/auth/register
func (h *AuthHandler) Register(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Name     string `json:"name"`
		Email    string `json:"email"`
		Password string `json:"password"`
	}
	if err := decodeJSON(w, r, &req); err != nil {
		middleware.WriteError(w, http.StatusBadRequest, "Invalid request body")
		return
	}

	session, err := h.accounts.Register(r.Context(), req.Name, req.Email, req.Password)
	if err != nil {
		writeServiceError(w, requestLog(r, h.log), err, "register")
		return
	}
	middleware.WriteJSON(w, http.StatusCreated, session)
}

// Login handles POST /api/auth/login
func (h *AuthHandler) Login(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Email    string `json:"email"`
		Password string `json:"password"`
	}
	if err := decodeJSON(w, r, &req); err != nil {
		middleware.WriteError(w, http.StatusBadRequest, "Invalid request body")
		return
	}
	if req.Email == "" || req.Password == "" {
		middleware.WriteError(w, http.StatusBadRequest, "Email and password are required")
		return
	}

	session, err := h.accounts.Login(r.Context(), req.Email, req.Password)
	if err != nil {
		writeServiceError(w, requestLog(r, h.log), err, "log in")
		return
	}
	middleware.WriteJSON(w, http.StatusOK, session)
}

// Profile handles GET /api/auth/profile
func (h *AuthHandler) Profile(w http.ResponseWriter, r *http.Request) {
	user, err := h.accounts.Profile(r.Context(), owner(r))
	if err != nil {
		writeServiceError(w, requestLog(r, h.log), err, "load profile")
		return
	}
	middleware.WriteJSON(w, http.StatusOK, user)
}

// UpdateProfile handles PUT /api/auth/profile
func (h *AuthHandler) UpdateProfile(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Name  string `json:"name"`
		Email string `json:"email"`
	}
	if err := decodeJSON(w, r, &req); err != nil {
		middleware.WriteError(w, http.StatusBadRequest, "Invalid request body")
		return
	}

	user, err := h.accounts.UpdateProfile(r.Context(), owner(r), req.Name, req.Email)
	if err != nil {
		writeServiceError(w, requestLog(r, h.log), err, "update profile")
		return
	}
	middleware.WriteJSON(w, http.StatusOK, user)
}

// ChangePassword handles PUT /api/auth/password
func (h *AuthHandler) ChangePassword(w http.ResponseWriter, r *http.Request) {
	var req struct {
		CurrentPassword string `json:"current_password"`
		NewPassword     string `json:"new_password"`
	}
	if err := decodeJSON(w, r, &req); err != nil {
		middleware.WriteError(w, http.StatusBadRequest, "Invalid request body")
		return
	}
	if req.CurrentPassword == "" || req.NewPassword == "" {
		middleware.WriteError(w, http.StatusBadRequest, "current_password and new_password are required")
		return
	}

	if err := h.accounts.ChangePassword(r.Context(), owner(r), req.CurrentPassword, req.NewPassword); err != nil {
		writeServiceError(w, requestLog(r, h.log), err, "change password")
		return
	}
	middleware.WriteJSON(w, http.StatusOK, map[string]string{"message": "Password updated"})
}

// DeleteAccount handles DELETE /api/auth/account
func (h *AuthHandler) DeleteAccount(w http.ResponseWriter, r *http.Request) {
	n, err := h.accounts.DeleteAccount(r.Context(), owner(r))
	if err != nil {
		writeServiceError(w, requestLog(r, h.log), err, "delete account")
		return
	}
	middleware.WriteJSON(w, http.StatusOK, map[string]interface{}{
		"message":              "Account deleted",
		"deleted_transactions": n,
	})
}

package server

import (
	"encoding/json"
	"errors"
	"net/http"
	"net/mail"
	"time"

	"etracker/internal/auth"
	applog "etracker/internal/log"
	"etracker/internal/storage"
)

type credentialsRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

type userResponse struct {
	ID        string `json:"id"`
	Email     string `json:"email"`
	CreatedAt string `json:"created_at"`
}

type authResponse struct {
	User    userResponse `json:"user"`
	Message string       `json:"message"`
}

func toUserResponse(u storage.User) userResponse {
	return userResponse{
		ID:        u.ID.String(),
		Email:     u.Email,
		CreatedAt: u.CreatedAt.Format(time.RFC3339),
	}
}

func (r credentialsRequest) validate() string {
	if _, err := mail.ParseAddress(r.Email); err != nil {
		return "Invalid email address"
	}
	if len(r.Password) < 6 {
		return "Password must be at least 6 characters"
	}
	return ""
}

func (s *Server) handleRegister(w http.ResponseWriter, r *http.Request) {
	var req credentialsRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondError(w, http.StatusBadRequest, "Invalid JSON")
		return
	}
	if msg := req.validate(); msg != "" {
		respondError(w, http.StatusBadRequest, msg)
		return
	}

	user, err := s.auth.Register(r.Context(), req.Email, req.Password)
	if err != nil {
		if errors.Is(err, auth.ErrUserExists) {
			respondError(w, http.StatusConflict, "User already exists")
			return
		}
		s.logger.Error("register failed", applog.FieldOperation, applog.OpRegister, applog.FieldError, err)
		respondError(w, http.StatusInternalServerError, "Failed to create user")
		return
	}

	respondJSON(w, http.StatusCreated, authResponse{
		User:    toUserResponse(user),
		Message: "User created successfully",
	})
}

func (s *Server) handleLogin(w http.ResponseWriter, r *http.Request) {
	var req credentialsRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondError(w, http.StatusBadRequest, "Invalid JSON")
		return
	}

	user, token, err := s.auth.Login(r.Context(), req.Email, req.Password)
	if err != nil {
		if errors.Is(err, auth.ErrInvalidCredentials) {
			respondError(w, http.StatusUnauthorized, "Invalid credentials")
			return
		}
		s.logger.Error("login failed", applog.FieldOperation, applog.OpLogin, applog.FieldError, err)
		respondError(w, http.StatusInternalServerError, "Login failed")
		return
	}

	setSessionCookie(w, token, int(s.auth.SessionTTL().Seconds()))
	respondJSON(w, http.StatusOK, authResponse{
		User:    toUserResponse(user),
		Message: "Login successful",
	})
}

func (s *Server) handleLogout(w http.ResponseWriter, r *http.Request) {
	cookie, err := r.Cookie(auth.SessionCookie)
	if err != nil {
		respondError(w, http.StatusBadRequest, "No session found")
		return
	}

	if err := s.auth.Logout(r.Context(), cookie.Value); err != nil {
		s.logger.Error("logout failed", applog.FieldOperation, applog.OpLogout, applog.FieldError, err)
		respondError(w, http.StatusInternalServerError, "Logout failed")
		return
	}

	clearSessionCookie(w)
	respondJSON(w, http.StatusOK, map[string]string{"message": "Logged out successfully"})
}

// handleLogoutAll revokes every session of the authenticated user, not
// just the one presented, signing out all devices.
func (s *Server) handleLogoutAll(w http.ResponseWriter, r *http.Request) {
	user, _ := auth.UserFromContext(r.Context())

	if err := s.auth.LogoutAll(r.Context(), user.ID); err != nil {
		s.logger.Error("logout all failed", applog.FieldOperation, applog.OpLogout,
			applog.FieldUserID, user.ID.String(), applog.FieldError, err)
		respondError(w, http.StatusInternalServerError, "Failed to logout all sessions")
		return
	}

	clearSessionCookie(w)
	respondJSON(w, http.StatusOK, map[string]string{"message": "Logged out from all devices"})
}

func (s *Server) handleMe(w http.ResponseWriter, r *http.Request) {
	user, ok := auth.UserFromContext(r.Context())
	if !ok {
		respondError(w, http.StatusUnauthorized, "User not found in context")
		return
	}
	respondJSON(w, http.StatusOK, toUserResponse(user))
}

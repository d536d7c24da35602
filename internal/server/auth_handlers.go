package server

import (
	"errors"
	"net/http"
	"strings"

	"echovia/internal/auth"

	"github.com/sirupsen/logrus"
)

// handleSignup creates an account. The first account becomes majorAdmin.
func (ms *MusicServer) handleSignup(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Username string `json:"username"`
		Email    string `json:"email"`
		Password string `json:"password"`
	}
	if ve := decodeJSON(r, &req); ve != nil {
		ms.respondWithValidationError(w, r, []ValidationError{*ve})
		return
	}

	req.Username = sanitizeInput(req.Username)
	req.Email = strings.ToLower(sanitizeInput(req.Email))
	if errs := validateSignup(req.Username, req.Email, req.Password); len(errs) > 0 {
		ms.respondWithValidationError(w, r, errs)
		return
	}

	user, err := ms.auth.Signup(req.Username, req.Email, req.Password)
	switch {
	case errors.Is(err, auth.ErrUserExists):
		ms.respondWithError(w, r, http.StatusConflict, "User already exists", nil)
		return
	case errors.Is(err, auth.ErrWeakPassword):
		ms.respondWithError(w, r, http.StatusBadRequest, err.Error(), nil)
		return
	case err != nil:
		ms.respondWithError(w, r, http.StatusInternalServerError, "Failed to create user", err)
		return
	}

	ms.respondJSON(w, http.StatusCreated, map[string]interface{}{
		"message": "User created successfully",
		"user":    user,
	})
}

// handleLogin checks credentials and sets the token cookie. The token is
// also returned for clients that send it as a Bearer header.
func (ms *MusicServer) handleLogin(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Email    string `json:"email"`
		Password string `json:"password"`
	}
	if ve := decodeJSON(r, &req); ve != nil {
		ms.respondWithValidationError(w, r, []ValidationError{*ve})
		return
	}

	req.Email = strings.ToLower(sanitizeInput(req.Email))
	if req.Email == "" || req.Password == "" {
		ms.respondWithValidationError(w, r, []ValidationError{{
			Field:   "credentials",
			Message: "Email and password required",
			Code:    "MISSING_CREDENTIALS",
		}})
		return
	}

	session, err := ms.auth.Login(req.Email, req.Password)
	if err != nil {
		if errors.Is(err, auth.ErrInvalidCredentials) {
			ms.logger.WithField("email", req.Email).Warn("Failed login attempt")
			ms.respondWithError(w, r, http.StatusUnauthorized, "Invalid email or password", nil)
			return
		}
		ms.respondWithError(w, r, http.StatusInternalServerError, "Login failed", err)
		return
	}

	auth.SetTokenCookie(w, session.Token, session.ExpiresAt, ms.auth.SecureCookies())
	ms.respondJSON(w, http.StatusOK, map[string]interface{}{
		"message":   "Login successful",
		"user":      session.User,
		"token":     session.Token,
		"expiresAt": session.ExpiresAt,
	})
}

// handleLogout revokes the token, if any, and clears the cookie
func (ms *MusicServer) handleLogout(w http.ResponseWriter, r *http.Request) {
	if token, ok := auth.TokenFromRequest(r); ok {
		ms.auth.Logout(token)
	}
	auth.ClearTokenCookie(w, ms.auth.SecureCookies())
	ms.respondJSON(w, http.StatusOK, map[string]string{"message": "Logged out successfully"})
}

func (ms *MusicServer) handleMe(w http.ResponseWriter, r *http.Request) {
	user := currentUser(r)
	ms.logger.WithFields(logrus.Fields{"user_id": user.ID, "role": user.Role}).Debug("Resolved current user")
	ms.respondJSON(w, http.StatusOK, map[string]interface{}{"user": user})
}

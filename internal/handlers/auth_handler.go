package handlers

import (
	"encoding/json"
	"net/http"
	"time"

	"github.com/jmdto/linkshort/internal/auth"
	"github.com/jmdto/linkshort/internal/models"
	"github.com/jmdto/linkshort/internal/services"
)

// LoginRequest is the request body for POST /api/v1/auth/login.
type LoginRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

// LoginResponse carries the session token and the authenticated user.
type LoginResponse struct {
	Token string       `json:"token"`
	User  *models.User `json:"user"`
}

// AuthHandler handles authentication endpoints.
type AuthHandler struct {
	service    *services.UserService
	cookieTTL  time.Duration
	secureMode bool
}

// NewAuthHandler creates an AuthHandler. secureMode marks the session
// cookie Secure, for production deployments behind TLS.
func NewAuthHandler(svc *services.UserService, cookieTTL time.Duration, secureMode bool) *AuthHandler {
	return &AuthHandler{service: svc, cookieTTL: cookieTTL, secureMode: secureMode}
}

// Login handles POST /api/v1/auth/login. On success the token is returned
// in the body and also set as a session cookie for browser callers.
func (h *AuthHandler) Login(w http.ResponseWriter, r *http.Request) {
	var req LoginRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, ErrorResponse{Error: "invalid request body", Code: "INVALID_REQUEST"})
		return
	}

	token, user, err := h.service.Login(r.Context(), req.Email, req.Password)
	if err != nil {
		writeError(w, err)
		return
	}

	http.SetCookie(w, &http.Cookie{
		Name:     auth.CookieName,
		Value:    token,
		Path:     "/",
		Expires:  time.Now().Add(h.cookieTTL),
		HttpOnly: true,
		Secure:   h.secureMode,
		SameSite: http.SameSiteLaxMode,
	})

	writeJSON(w, http.StatusOK, LoginResponse{Token: token, User: user})
}

// Logout handles POST /api/v1/auth/logout by expiring the session cookie.
func (h *AuthHandler) Logout(w http.ResponseWriter, r *http.Request) {
	http.SetCookie(w, &http.Cookie{
		Name:     auth.CookieName,
		Value:    "",
		Path:     "/",
		MaxAge:   -1,
		HttpOnly: true,
		Secure:   h.secureMode,
		SameSite: http.SameSiteLaxMode,
	})
	w.WriteHeader(http.StatusNoContent)
}

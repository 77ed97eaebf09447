package handlers

import (
	"errors"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/ryshoes/storefront/internal/services"
	"github.com/ryshoes/storefront/internal/session"
	"github.com/ryshoes/storefront/types"
)

// AuthHandler provides cookie session authentication endpoints.
type AuthHandler struct {
	auth     *services.AuthService
	sessions *session.Manager
}

// NewAuthHandler constructs an AuthHandler with the provided dependencies.
func NewAuthHandler(auth *services.AuthService, sessions *session.Manager) *AuthHandler {
	return &AuthHandler{
		auth:     auth,
		sessions: sessions,
	}
}

// AuthRouter registers auth routes on the given router.
func AuthRouter(r chi.Router, auth *services.AuthService, sessions *session.Manager) {
	handler := NewAuthHandler(auth, sessions)

	r.Post("/register", handler.Register)
	r.Post("/login", handler.Login)
	r.Post("/logout", handler.Logout)
	r.Get("/session", handler.Session)
	r.With(RequireSession).Post("/password", handler.ChangePassword)
}

// Register creates a USER account. The visitor stays logged out.
func (h *AuthHandler) Register(w http.ResponseWriter, r *http.Request) {
	var req services.RegisterInput
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	if _, err := h.auth.Register(r.Context(), req); err != nil {
		if errors.Is(err, services.ErrConflict) {
			writeError(w, http.StatusConflict, "Username already exists")
			return
		}
		writeServiceError(w, r, err, "user not found", "failed to create user")
		return
	}

	writeJSON(w, http.StatusCreated, MessageResponse{Message: "User created successfully"})
}

// Login verifies credentials and issues the session cookie.
func (h *AuthHandler) Login(w http.ResponseWriter, r *http.Request) {
	var req services.LoginInput
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	user, err := h.auth.Login(r.Context(), req)
	if err != nil {
		writeServiceError(w, r, err, "user not found", "failed to authenticate")
		return
	}

	if err := h.sessions.Save(w, session.ForUser(user)); err != nil {
		writeServiceError(w, r, err, "", "failed to create session")
		return
	}

	writeJSON(w, http.StatusOK, LoginResponse{Message: "Logged in successfully", Role: user.Role})
}

// Logout clears the session cookie whether or not one was set.
func (h *AuthHandler) Logout(w http.ResponseWriter, r *http.Request) {
	h.sessions.Destroy(w)
	writeJSON(w, http.StatusOK, MessageResponse{Message: "Logged out successfully"})
}

// Session reports the current session. Logged-out visitors get
// {"isLoggedIn": false}.
func (h *AuthHandler) Session(w http.ResponseWriter, r *http.Request) {
	data := session.FromContext(r.Context())
	if !data.IsLoggedIn {
		data = session.Data{}
	}
	writeJSON(w, http.StatusOK, data)
}

// ChangePassword replaces the password of the logged-in user.
func (h *AuthHandler) ChangePassword(w http.ResponseWriter, r *http.Request) {
	var req services.ChangePasswordInput
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	if err := h.auth.ChangePassword(r.Context(), session.FromContext(r.Context()), req); err != nil {
		writeServiceError(w, r, err, "user not found", "failed to change password")
		return
	}

	writeJSON(w, http.StatusOK, MessageResponse{Message: "Password changed successfully"})
}

type LoginResponse struct {
	Message string     `json:"message"`
	Role    types.Role `json:"role"`
}

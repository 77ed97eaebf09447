package handlers

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/ryshoes/storefront/internal/services"
	"github.com/ryshoes/storefront/internal/session"
)

// UserRouter registers the profile route on the given router.
func UserRouter(r chi.Router, auth *services.AuthService) {
	r.With(RequireSession).Get("/profile", func(w http.ResponseWriter, r *http.Request) {
		profile, err := auth.Profile(r.Context(), session.FromContext(r.Context()))
		if err != nil {
			writeServiceError(w, r, err, "User not found", "Internal server error")
			return
		}
		writeJSON(w, http.StatusOK, profile)
	})
}

package handlers

import (
	"errors"
	"net/http"

	"github.com/ryshoes/storefront/internal/services"
	"github.com/ryshoes/storefront/internal/session"
)

// RequireSession rejects visitors without a logged-in session.
func RequireSession(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if !session.FromContext(r.Context()).IsLoggedIn {
			writeError(w, http.StatusUnauthorized, "unauthorized")
			return
		}
		next.ServeHTTP(w, r)
	})
}

// RequireAdmin reloads the session user and rejects anyone without the
// ADMIN role. The reloaded identity replaces the cookie copy in the context
// so a demoted admin loses access before the cookie expires.
func RequireAdmin(auth *services.AuthService) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			data := session.FromContext(r.Context())
			if !data.IsLoggedIn {
				writeError(w, http.StatusUnauthorized, "unauthorized")
				return
			}

			user, err := auth.GetUser(r.Context(), data.ID)
			if err != nil {
				if errors.Is(err, services.ErrNotFound) {
					writeError(w, http.StatusUnauthorized, "unauthorized")
					return
				}
				writeServiceError(w, r, err, "user not found", "failed to load user")
				return
			}

			if !user.IsAdmin() {
				writeError(w, http.StatusForbidden, "admin access required")
				return
			}

			ctx := session.NewContext(r.Context(), session.ForUser(user))
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

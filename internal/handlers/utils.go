package handlers

import (
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"
	"github.com/ryshoes/storefront/internal/logging"
	"github.com/ryshoes/storefront/internal/services"
)

// ErrorResponse is a simple error payload. Fields is set for validation
// failures.
type ErrorResponse struct {
	Error  string            `json:"error"`
	Fields map[string]string `json:"fields,omitempty"`
}

// MessageResponse acknowledges an action without returning an entity.
type MessageResponse struct {
	Message string `json:"message"`
}

var (
	errInvalidRequest = errors.New("invalid request")
	errInvalidPrice   = errors.New("invalid price filter")
)

func writeJSON(w http.ResponseWriter, status int, value any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(value)
}

func writeError(w http.ResponseWriter, status int, message string) {
	writeJSON(w, status, ErrorResponse{Error: message})
}

// writeServiceError maps workflow errors to HTTP statuses. notFound is the
// message for a missing entity and fallback the message for anything
// unexpected, which is also logged.
func writeServiceError(w http.ResponseWriter, r *http.Request, err error, notFound, fallback string) {
	var verr *services.ValidationError
	switch {
	case errors.As(err, &verr):
		writeJSON(w, http.StatusBadRequest, ErrorResponse{Error: verr.Error(), Fields: verr.Fields})
	case errors.Is(err, services.ErrNotFound):
		writeError(w, http.StatusNotFound, notFound)
	case errors.Is(err, services.ErrUnauthorized):
		writeError(w, http.StatusUnauthorized, "unauthorized")
	case errors.Is(err, services.ErrInvalidCredentials):
		writeError(w, http.StatusUnauthorized, "Invalid username or password")
	case errors.Is(err, services.ErrForbidden):
		writeError(w, http.StatusForbidden, "admin access required")
	case errors.Is(err, services.ErrConflict):
		writeError(w, http.StatusConflict, "conflict")
	case errors.Is(err, services.ErrInvalidStatusTransition):
		writeError(w, http.StatusConflict, err.Error())
	default:
		logging.FromContext(r.Context()).WithError(err).Error(fallback)
		writeError(w, http.StatusInternalServerError, fallback)
	}
}

func decodeJSON(r *http.Request, dest any) error {
	if err := json.NewDecoder(r.Body).Decode(dest); err != nil {
		return errInvalidRequest
	}
	return nil
}

// parseID reads an integer URL parameter. Only text that is not a number is
// rejected; non-positive ids go on to the services, which report them as
// not found.
func parseID(r *http.Request, param, message string) (int, error) {
	id, err := strconv.Atoi(chi.URLParam(r, param))
	if err != nil {
		return 0, errors.New(message)
	}
	return id, nil
}

func readFileLimited(reader io.Reader, limit int64) ([]byte, error) {
	limited := io.LimitReader(reader, limit+1)
	data, err := io.ReadAll(limited)
	if err != nil {
		return nil, errors.New("failed to read upload")
	}
	if int64(len(data)) > limit {
		return nil, errors.New("uploaded file too large")
	}
	return data, nil
}

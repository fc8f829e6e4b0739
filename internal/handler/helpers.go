package handler

import (
	"errors"
	"log/slog"
	"net/http"

	"projecthub/internal/domain"
	"projecthub/internal/domain/models"
	"projecthub/internal/httputil"

	"github.com/google/uuid"
)

// handleError converts domain errors to HTTP responses. Anything unmapped,
// object storage failures included, is logged and reported as a bare 500.
func handleError(w http.ResponseWriter, r *http.Request, logger *slog.Logger, err error) {
	var conflictErr *domain.ConflictError

	switch {
	case errors.As(err, &conflictErr):
		extras := map[string]interface{}{}
		if conflictErr.ResourceType != "" {
			extras["resource_type"] = conflictErr.ResourceType
		}
		if conflictErr.ResourceID != "" {
			extras["resource_id"] = conflictErr.ResourceID
		}
		httputil.RespondErrorWithExtras(w, http.StatusConflict, conflictErr.Error(), extras)
	case errors.Is(err, domain.ErrConflict):
		httputil.RespondError(w, http.StatusConflict, err.Error())
	case errors.Is(err, domain.ErrValidation):
		httputil.RespondError(w, http.StatusBadRequest, err.Error())
	case errors.Is(err, domain.ErrNotFound):
		httputil.RespondError(w, http.StatusNotFound, err.Error())
	case errors.Is(err, domain.ErrUnauthorized):
		httputil.RespondUnauthorized(w, "invalid credentials")
	case errors.Is(err, domain.ErrForbidden):
		httputil.RespondError(w, http.StatusForbidden, "you do not have access to this resource")
	default:
		logger.Error("request failed",
			"error", err,
			"storage", errors.Is(err, domain.ErrStorage),
			"method", r.Method,
			"path", r.URL.Path,
		)
		httputil.RespondError(w, http.StatusInternalServerError, "internal server error")
	}
}

// pathID reads a UUID path parameter, writing a 400 if it is malformed
func pathID(w http.ResponseWriter, r *http.Request, name string) (string, bool) {
	raw := r.PathValue(name)
	id, err := uuid.Parse(raw)
	if err != nil {
		httputil.RespondError(w, http.StatusBadRequest, "invalid "+name+": must be a UUID")
		return "", false
	}
	return id.String(), true
}

// currentUser returns the authenticated user, writing a 401 if there is none
func currentUser(w http.ResponseWriter, r *http.Request) (*models.User, bool) {
	user := httputil.GetUser(r)
	if user == nil {
		httputil.RespondUnauthorized(w, "authentication required")
		return nil, false
	}
	return user, true
}

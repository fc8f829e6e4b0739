// Package access holds the project access policy: pure predicates over
// loaded entities plus helpers that turn a failed predicate into
// domain.ErrForbidden.
//
// Callers load the project first, so a missing project is reported as
// not found before any permission check runs.
package access

import (
	"fmt"

	"projecthub/internal/domain"
	"projecthub/internal/domain/models"
)

// IsOwner reports whether user created the project.
func IsOwner(user *models.User, project *models.Project) bool {
	if user == nil || project == nil {
		return false
	}
	return user.ID == project.OwnerID
}

// IsParticipantOrOwner reports whether user owns the project or was invited to it.
func IsParticipantOrOwner(user *models.User, project *models.Project) bool {
	if user == nil || project == nil {
		return false
	}
	return IsOwner(user, project) || project.HasParticipant(user.ID)
}

// RequireOwner returns a forbidden error unless user owns the project.
func RequireOwner(user *models.User, project *models.Project) error {
	if !IsOwner(user, project) {
		return fmt.Errorf("owner access to project %s: %w", project.ID, domain.ErrForbidden)
	}
	return nil
}

// RequireParticipantOrOwner returns a forbidden error unless user owns or
// participates in the project.
func RequireParticipantOrOwner(user *models.User, project *models.Project) error {
	if !IsParticipantOrOwner(user, project) {
		return fmt.Errorf("access to project %s: %w", project.ID, domain.ErrForbidden)
	}
	return nil
}

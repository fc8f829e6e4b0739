package models

import (
	"errors"
	"time"
)

// Project is owned by exactly one user and shared with zero or more participants.
// OwnerID is set on creation and never changes.
type Project struct {
	ID           string        `json:"id" db:"id"`
	Name         string        `json:"name" db:"name"`
	Description  string        `json:"description" db:"description"`
	OwnerID      string        `json:"owner_id" db:"owner_id"`
	CreatedAt    time.Time     `json:"created_at" db:"created_at"`
	UpdatedAt    time.Time     `json:"updated_at" db:"updated_at"`
	Participants []UserSummary `json:"participants"`
	Documents    []Document    `json:"documents,omitempty"`
}

// HasParticipant reports whether userID was invited to the project.
func (p *Project) HasParticipant(userID string) bool {
	for _, u := range p.Participants {
		if u.ID == userID {
			return true
		}
	}
	return false
}

// ProjectPatch carries the mutable project fields. A nil field is left
// unchanged. There is deliberately no owner field.
type ProjectPatch struct {
	Name        *string
	Description *string
}

// Apply merges the patch into project field by field and reports whether
// anything changed.
func (p ProjectPatch) Apply(project *Project) (bool, error) {
	if project == nil {
		return false, errors.New("nil project")
	}

	changed := false
	if p.Name != nil && *p.Name != project.Name {
		project.Name = *p.Name
		changed = true
	}
	if p.Description != nil && *p.Description != project.Description {
		project.Description = *p.Description
		changed = true
	}
	return changed, nil
}

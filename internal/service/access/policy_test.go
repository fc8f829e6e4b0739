package access

import (
	"errors"
	"testing"

	"projecthub/internal/domain"
	"projecthub/internal/domain/models"
)

func TestPolicy(t *testing.T) {
	owner := &models.User{ID: "u-owner", Username: "alice"}
	participant := &models.User{ID: "u-part", Username: "bob"}
	stranger := &models.User{ID: "u-other", Username: "carol"}

	project := &models.Project{
		ID:      "p1",
		OwnerID: owner.ID,
		Participants: []models.UserSummary{
			{ID: participant.ID, Username: participant.Username},
		},
	}

	tests := []struct {
		name          string
		user          *models.User
		wantOwner     bool
		wantMemberish bool
	}{
		{name: "owner", user: owner, wantOwner: true, wantMemberish: true},
		{name: "participant", user: participant, wantOwner: false, wantMemberish: true},
		{name: "stranger", user: stranger, wantOwner: false, wantMemberish: false},
		{name: "nil user", user: nil, wantOwner: false, wantMemberish: false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := IsOwner(tt.user, project); got != tt.wantOwner {
				t.Errorf("IsOwner() = %v, want %v", got, tt.wantOwner)
			}
			if got := IsParticipantOrOwner(tt.user, project); got != tt.wantMemberish {
				t.Errorf("IsParticipantOrOwner() = %v, want %v", got, tt.wantMemberish)
			}

			err := RequireOwner(tt.user, project)
			if tt.wantOwner != (err == nil) {
				t.Errorf("RequireOwner() error = %v, want allowed=%v", err, tt.wantOwner)
			}
			if err != nil && !errors.Is(err, domain.ErrForbidden) {
				t.Errorf("RequireOwner() error = %v, want ErrForbidden", err)
			}

			err = RequireParticipantOrOwner(tt.user, project)
			if tt.wantMemberish != (err == nil) {
				t.Errorf("RequireParticipantOrOwner() error = %v, want allowed=%v", err, tt.wantMemberish)
			}
			if err != nil && !errors.Is(err, domain.ErrForbidden) {
				t.Errorf("RequireParticipantOrOwner() error = %v, want ErrForbidden", err)
			}
		})
	}
}

func TestIsOwner_NilProject(t *testing.T) {
	if IsOwner(&models.User{ID: "u"}, nil) {
		t.Error("IsOwner() with nil project should be false")
	}
}

package announcement

import (
	"time"

	"github.com/trezcool/shule/core"
	"github.com/trezcool/shule/core/user"
)

// Audiences
const (
	AudienceAll      = "all"
	AudienceStudents = "students"
	AudienceParents  = "parents"
	AudienceTeachers = "teachers"
)

var AllAudiences = []string{AudienceAll, AudienceStudents, AudienceParents, AudienceTeachers}

// AudienceFor maps a role to its visibility bucket. Admins read the teachers
// bucket; every role also sees AudienceAll.
func AudienceFor(role string) string {
	switch role {
	case user.RoleStudent:
		return AudienceStudents
	case user.RoleParent:
		return AudienceParents
	default: // teacher, admin
		return AudienceTeachers
	}
}

type Announcement struct {
	ID             string    `json:"id"`
	Title          string    `json:"title"`
	Message        string    `json:"message"`
	Type           string    `json:"type,omitempty"`
	TargetAudience string    `json:"target_audience"`
	Active         *bool     `json:"active"`
	CreatedAt      time.Time `json:"created_at"` // UTC
}

// IsActive treats an unset flag as active.
func (a *Announcement) IsActive() bool {
	return a.Active == nil || *a.Active
}

// NewAnnouncement contains information needed to publish an announcement.
type NewAnnouncement struct {
	Title          string `json:"title" validate:"required"`
	Message        string `json:"message" validate:"required"`
	Type           string `json:"type"`
	TargetAudience string `json:"target_audience" validate:"required,audience"`
}

func (na *NewAnnouncement) Validate() error {
	na.Title = core.CleanString(na.Title)
	na.Message = core.CleanString(na.Message)
	na.Type = core.CleanString(na.Type, true /* lower */)
	na.TargetAudience = core.CleanString(na.TargetAudience, true /* lower */)
	return core.Validate.Struct(na)
}

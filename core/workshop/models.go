package workshop

import (
	"time"

	"github.com/trezcool/shule/core"
)

// Statuses
const (
	StatusActive   = "active"
	StatusInactive = "inactive"
)

type Workshop struct {
	ID                     string    `json:"id"`
	Title                  string    `json:"title"`
	TeacherID              string    `json:"teacher_id"`
	Schedule               string    `json:"schedule"`
	MaxParticipants        int       `json:"max_participants"`
	EnrollmentDeadline     time.Time `json:"enrollment_deadline"` // UTC
	AllowedGrades          []string  `json:"allowed_grades,omitempty"`
	AllowedSections        []string  `json:"allowed_sections,omitempty"`
	RestrictByGradeSection bool      `json:"restrict_by_grade_section"`
	// Participants keeps enrollment order; the roster is displayed
	// first-come first-served.
	Participants []string  `json:"participants"`
	Status       string    `json:"status"`
	CreatedAt    time.Time `json:"created_at"` // UTC
	UpdatedAt    time.Time `json:"updated_at"` // UTC
}

func (w *Workshop) IsActive() bool { return w.Status == StatusActive }

func (w *Workshop) IsFull() bool { return len(w.Participants) >= w.MaxParticipants }

func (w *Workshop) HasParticipant(studentID string) bool {
	for _, id := range w.Participants {
		if id == studentID {
			return true
		}
	}
	return false
}

// EligibleFor reports whether a student's grade and section pass the
// workshop's restriction. An empty allowed set leaves that axis unrestricted.
func (w *Workshop) EligibleFor(grade, section string) bool {
	if !w.RestrictByGradeSection {
		return true
	}
	if len(w.AllowedGrades) > 0 && !contains(w.AllowedGrades, grade) {
		return false
	}
	if len(w.AllowedSections) > 0 && !contains(w.AllowedSections, section) {
		return false
	}
	return true
}

func contains(set []string, s string) bool {
	for _, v := range set {
		if v == s {
			return true
		}
	}
	return false
}

// NewWorkshop contains information needed to create a new Workshop.
type NewWorkshop struct {
	Title                  string    `json:"title" validate:"required"`
	TeacherID              string    `json:"teacher_id" validate:"required"`
	Schedule               string    `json:"schedule" validate:"required"`
	MaxParticipants        int       `json:"max_participants" validate:"required,min=1"`
	EnrollmentDeadline     time.Time `json:"enrollment_deadline" validate:"required"`
	AllowedGrades          []string  `json:"allowed_grades"`
	AllowedSections        []string  `json:"allowed_sections"`
	RestrictByGradeSection bool      `json:"restrict_by_grade_section"`
}

func (nw *NewWorkshop) Validate() error {
	nw.Title = core.CleanString(nw.Title)
	nw.Schedule = core.CleanString(nw.Schedule)
	cleanSet(nw.AllowedGrades)
	cleanSet(nw.AllowedSections)
	return core.Validate.Struct(nw)
}

// UpdateWorkshop defines what information may be provided to modify an
// existing Workshop.
type UpdateWorkshop struct {
	Title                  string     `json:"title"`
	Schedule               string     `json:"schedule"`
	MaxParticipants        *int       `json:"max_participants" validate:"omitempty,min=1"`
	EnrollmentDeadline     *time.Time `json:"enrollment_deadline"`
	AllowedGrades          []string   `json:"allowed_grades"`
	AllowedSections        []string   `json:"allowed_sections"`
	RestrictByGradeSection *bool      `json:"restrict_by_grade_section"`
	Status                 string     `json:"status" validate:"omitempty,wsstatus"`
}

func (uw *UpdateWorkshop) Validate() error {
	uw.Title = core.CleanString(uw.Title)
	uw.Schedule = core.CleanString(uw.Schedule)
	uw.Status = core.CleanString(uw.Status, true /* lower */)
	cleanSet(uw.AllowedGrades)
	cleanSet(uw.AllowedSections)
	return core.Validate.Struct(uw)
}

func cleanSet(set []string) {
	for i := range set {
		set[i] = core.CleanString(set[i], true /* lower */)
	}
}

type QueryFilter struct {
	Search    string `query:"search"`
	TeacherID string `query:"teacher_id"`
	Status    string `query:"status"`
}

func (qf *QueryFilter) Clean() {
	qf.Search = core.CleanString(qf.Search)
	qf.Status = core.CleanString(qf.Status, true /* lower */)
}

package attendance

import (
	"time"

	"github.com/trezcool/shule/core"
)

// Status of a single student observation.
type Status string

const (
	StatusPresent   Status = "present"
	StatusLate      Status = "late"
	StatusJustified Status = "justified"
	StatusAbsent    Status = "absent"
	StatusNone      Status = "none"
)

var AllStatuses = []Status{StatusPresent, StatusLate, StatusJustified, StatusAbsent, StatusNone}

func (s Status) Valid() bool {
	for _, st := range AllStatuses {
		if s == st {
			return true
		}
	}
	return false
}

// Context is the grouping key for a single attendance batch: either a class
// grade/section or a workshop. Exactly one axis must be set.
type Context struct {
	GradeSection string `json:"grade_section,omitempty"`
	WorkshopID   string `json:"workshop_id,omitempty"`
}

func (c Context) IsZero() bool {
	return c.GradeSection == "" && c.WorkshopID == ""
}

func (c Context) Valid() bool {
	return (c.GradeSection == "") != (c.WorkshopID == "")
}

// Key returns the canonical storage key for the context.
func (c Context) Key() string {
	if c.WorkshopID != "" {
		return "ws:" + c.WorkshopID
	}
	return "gs:" + c.GradeSection
}

// Record is one student's status within an entry. RecordedAt refreshes on
// overwrite; history recency follows the last write, not the first.
type Record struct {
	StudentID  string    `json:"student_id"`
	Status     Status    `json:"status"`
	RecordedAt time.Time `json:"recorded_at"` // UTC
}

// Entry holds all statuses observed for one (date, context) pair. There is at
// most one Entry per pair; re-registration mutates it in place.
type Entry struct {
	ID        string    `json:"id"`
	Date      time.Time `json:"date"` // civil date, UTC midnight
	Context   Context   `json:"context"`
	Records   []Record  `json:"records"`
	CreatedAt time.Time `json:"created_at"` // UTC
	UpdatedAt time.Time `json:"updated_at"` // UTC
}

func (e *Entry) RecordFor(studentID string) (Record, bool) {
	for _, r := range e.Records {
		if r.StudentID == studentID {
			return r, true
		}
	}
	return Record{}, false
}

// NewRecord is one student line of a registration batch.
type NewRecord struct {
	StudentID string `json:"student_id" validate:"required"`
	Status    Status `json:"status" validate:"required,attstatus"`
}

// NewEntry contains information needed to register an attendance batch.
type NewEntry struct {
	Date    time.Time   `json:"date" validate:"required"`
	Context Context     `json:"context"`
	Records []NewRecord `json:"records" validate:"required,min=1,dive"`
}

func (ne *NewEntry) Validate() error {
	ne.Context.GradeSection = core.CleanString(ne.Context.GradeSection, true /* lower */)
	for i := range ne.Records {
		ne.Records[i].StudentID = core.CleanString(ne.Records[i].StudentID)
	}
	return core.Validate.Struct(ne)
}

// HistoryItem is one row of a student's attendance history.
type HistoryItem struct {
	Date       time.Time `json:"date"`
	Context    Context   `json:"context"`
	Status     Status    `json:"status"`
	RecordedAt time.Time `json:"recorded_at"`
}

// Stats aggregates a student's attendance. Rate is a whole percentage of
// (present + late) over all observations, rounded half away from zero.
type Stats struct {
	PresentCount   int `json:"present_count"`
	LateCount      int `json:"late_count"`
	AbsentCount    int `json:"absent_count"`
	JustifiedCount int `json:"justified_count"`
	Total          int `json:"total"`
	Rate           int `json:"attendance_rate"`
}

type QueryFilter struct {
	Context  Context   `query:"-"`
	DateFrom time.Time `query:"date_from"`
	DateTo   time.Time `query:"date_to"`
}

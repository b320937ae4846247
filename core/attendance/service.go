package attendance

import (
	"context"
	"errors"
	"math"
	"time"

	"github.com/trezcool/shule/core"
	"github.com/trezcool/shule/core/user"
)

var (
	// errors
	ErrNotFound         = errors.New("attendance entry not found")
	ErrDuplicateStudent = errors.New("batch contains the same student more than once")
	ErrInvalidContext   = errors.New("exactly one of grade_section or workshop_id is required")
	ErrNotAllowed       = errors.New("not allowed to access this student's attendance")
)

type (
	Repository interface {
		// UpsertRecords applies a whole batch to the (date, context) entry,
		// creating it if absent. The batch must not interleave with another
		// batch for the same pair; existing statuses are overwritten and
		// their RecordedAt refreshed.
		UpsertRecords(ctx context.Context, date time.Time, actx Context, records []Record) (Entry, error)
		GetEntry(ctx context.Context, date time.Time, actx Context) (Entry, error)
		// QueryStudentHistory returns items ordered by date descending, ties
		// broken by RecordedAt descending (most recently written first).
		QueryStudentHistory(ctx context.Context, studentID string) ([]HistoryItem, error)
		FilterEntries(ctx context.Context, filter QueryFilter) ([]Entry, error)
	}

	Service struct {
		repo   Repository
		logger core.Logger
	}
)

func NewService(repo Repository, logger core.Logger) *Service {
	return &Service{repo: repo, logger: logger}
}

// Record registers an attendance batch for a (date, context) pair. The batch
// is all-or-nothing: a duplicate student or an invalid context fails before
// anything is persisted. Re-registration overwrites per student.
func (svc *Service) Record(ctx context.Context, principal user.Principal, ne NewEntry) (Entry, error) {
	if !(principal.IsAdmin() || principal.IsTeacher()) {
		return Entry{}, ErrNotAllowed
	}
	if err := ne.Validate(); err != nil {
		return Entry{}, err
	}
	if !ne.Context.Valid() {
		return Entry{}, ErrInvalidContext
	}

	seen := make(map[string]struct{}, len(ne.Records))
	for _, r := range ne.Records {
		if _, ok := seen[r.StudentID]; ok {
			return Entry{}, ErrDuplicateStudent
		}
		seen[r.StudentID] = struct{}{}
	}

	now := time.Now().UTC()
	records := make([]Record, 0, len(ne.Records))
	for _, r := range ne.Records {
		records = append(records, Record{
			StudentID:  r.StudentID,
			Status:     r.Status,
			RecordedAt: now,
		})
	}

	entry, err := svc.repo.UpsertRecords(ctx, CivilDate(ne.Date), ne.Context, records)
	if err != nil {
		return Entry{}, err
	}
	svc.logger.Debug("attendance recorded", principal, map[string]interface{}{
		"context": ne.Context.Key(),
		"date":    entry.Date.Format("2006-01-02"),
		"count":   len(records),
	})
	return entry, nil
}

// StudentHistory returns a student's attendance rows, most recent date first.
// Students may only consult their own history; parent/child scoping happens
// at the API boundary where the parent's links are known.
func (svc *Service) StudentHistory(ctx context.Context, principal user.Principal, studentID string) ([]HistoryItem, error) {
	if principal.IsStudent() && principal.ID != studentID {
		return nil, ErrNotAllowed
	}
	return svc.repo.QueryStudentHistory(ctx, studentID)
}

// Aggregate computes a student's attendance counters. A student with no
// records yields all-zero stats, not an error.
func (svc *Service) Aggregate(ctx context.Context, studentID string) (Stats, error) {
	items, err := svc.repo.QueryStudentHistory(ctx, studentID)
	if err != nil {
		return Stats{}, err
	}

	var stats Stats
	for _, it := range items {
		switch it.Status {
		case StatusPresent:
			stats.PresentCount++
		case StatusLate:
			stats.LateCount++
		case StatusAbsent:
			stats.AbsentCount++
		case StatusJustified:
			stats.JustifiedCount++
		}
		stats.Total++
	}
	if stats.Total > 0 {
		attended := float64(stats.PresentCount + stats.LateCount)
		stats.Rate = int(math.Round(100 * attended / float64(stats.Total)))
	}
	return stats, nil
}

func (svc *Service) GetEntry(ctx context.Context, date time.Time, actx Context) (Entry, error) {
	if !actx.Valid() {
		return Entry{}, ErrInvalidContext
	}
	return svc.repo.GetEntry(ctx, CivilDate(date), actx)
}

func (svc *Service) Filter(ctx context.Context, filter QueryFilter) ([]Entry, error) {
	if !filter.DateFrom.IsZero() {
		filter.DateFrom = CivilDate(filter.DateFrom)
	}
	if !filter.DateTo.IsZero() {
		filter.DateTo = CivilDate(filter.DateTo)
	}
	return svc.repo.FilterEntries(ctx, filter)
}

// CivilDate truncates a timestamp to its calendar date at UTC midnight.
func CivilDate(t time.Time) time.Time {
	y, m, d := t.UTC().Date()
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}

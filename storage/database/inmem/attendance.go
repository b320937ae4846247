package inmemdb

import (
	"context"
	"sort"
	"time"

	"github.com/google/uuid"

	"github.com/trezcool/shule/core/attendance"
)

type attendanceRepository struct {
	db *attendanceTable
}

var _ attendance.Repository = (*attendanceRepository)(nil)

func NewAttendanceRepository(db *DB) attendance.Repository {
	return &attendanceRepository{db: db.attendance}
}

func entryKey(date time.Time, actx attendance.Context) string {
	return date.Format("2006-01-02") + "|" + actx.Key()
}

// cloneEntry copies the records so callers cannot mutate the stored entry.
func cloneEntry(entry *attendance.Entry) attendance.Entry {
	out := *entry
	out.Records = make([]attendance.Record, len(entry.Records))
	copy(out.Records, entry.Records)
	return out
}

func (repo *attendanceRepository) UpsertRecords(
	_ context.Context,
	date time.Time,
	actx attendance.Context,
	records []attendance.Record,
) (attendance.Entry, error) {
	repo.db.mutex.Lock()
	defer repo.db.mutex.Unlock()

	now := time.Now().UTC()
	key := entryKey(date, actx)
	entry, ok := repo.db.table[key]
	if !ok {
		entry = &attendance.Entry{
			ID:        uuid.New().String(),
			Date:      date,
			Context:   actx,
			CreatedAt: now,
		}
		repo.db.table[key] = entry
	}

	for _, rec := range records {
		var overwritten bool
		for i := range entry.Records {
			if entry.Records[i].StudentID == rec.StudentID {
				entry.Records[i] = rec
				overwritten = true
				break
			}
		}
		if !overwritten {
			entry.Records = append(entry.Records, rec)
		}
	}
	entry.UpdatedAt = now

	return cloneEntry(entry), nil
}

func (repo *attendanceRepository) GetEntry(_ context.Context, date time.Time, actx attendance.Context) (attendance.Entry, error) {
	repo.db.mutex.RLock()
	defer repo.db.mutex.RUnlock()

	if entry, ok := repo.db.table[entryKey(date, actx)]; ok {
		return cloneEntry(entry), nil
	}
	return attendance.Entry{}, attendance.ErrNotFound
}

func (repo *attendanceRepository) QueryStudentHistory(_ context.Context, studentID string) ([]attendance.HistoryItem, error) {
	repo.db.mutex.RLock()
	defer repo.db.mutex.RUnlock()

	items := make([]attendance.HistoryItem, 0)
	for _, entry := range repo.db.table {
		if rec, ok := entry.RecordFor(studentID); ok {
			items = append(items, attendance.HistoryItem{
				Date:       entry.Date,
				Context:    entry.Context,
				Status:     rec.Status,
				RecordedAt: rec.RecordedAt,
			})
		}
	}
	// date desc, last write first in ties
	sort.SliceStable(items, func(i, j int) bool {
		if !items[i].Date.Equal(items[j].Date) {
			return items[i].Date.After(items[j].Date)
		}
		return items[i].RecordedAt.After(items[j].RecordedAt)
	})
	return items, nil
}

func (repo *attendanceRepository) FilterEntries(_ context.Context, filter attendance.QueryFilter) ([]attendance.Entry, error) {
	repo.db.mutex.RLock()
	defer repo.db.mutex.RUnlock()

	entries := make([]attendance.Entry, 0)
	for _, entry := range repo.db.table {
		if !filter.Context.IsZero() && entry.Context.Key() != filter.Context.Key() {
			continue
		}
		if !filter.DateFrom.IsZero() && entry.Date.Before(filter.DateFrom) {
			continue
		}
		if !filter.DateTo.IsZero() && entry.Date.After(filter.DateTo) {
			continue
		}
		entries = append(entries, cloneEntry(entry))
	}
	sort.SliceStable(entries, func(i, j int) bool { return entries[i].Date.After(entries[j].Date) })
	return entries, nil
}

package attendance_test

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"

	"github.com/trezcool/shule/core/attendance"
	"github.com/trezcool/shule/core/user"
	inmemdb "github.com/trezcool/shule/storage/database/inmem"
	testutil "github.com/trezcool/shule/tests"
)

var (
	teacherPrin = user.Principal{ID: "t1", Role: user.RoleTeacher, DisplayName: "Jane Mwangi"}
	studentPrin = user.Principal{ID: "s1", Role: user.RoleStudent, DisplayName: "Amani Garcia"}
	parentPrin  = user.Principal{ID: "p1", Role: user.RoleParent, DisplayName: "Baba Garcia"}
)

func setup(t *testing.T) *attendance.Service {
	t.Helper()

	db, err := inmemdb.Open()
	if err != nil {
		t.Fatalf("inmemdb.Open() failed: %v", err)
	}
	return attendance.NewService(inmemdb.NewAttendanceRepository(db), testutil.NewLogger(t))
}

func newEntry(date time.Time, actx attendance.Context, records ...attendance.NewRecord) attendance.NewEntry {
	return attendance.NewEntry{Date: date, Context: actx, Records: records}
}

func TestService_Record(t *testing.T) {
	svc := setup(t)
	ctx := context.Background()
	date := time.Date(2021, time.March, 8, 10, 30, 0, 0, time.UTC)
	classCtx := attendance.Context{GradeSection: "grade5-a"}

	t.Run("students and parents cannot record", func(t *testing.T) {
		ne := newEntry(date, classCtx, attendance.NewRecord{StudentID: "s1", Status: attendance.StatusPresent})
		_, err := svc.Record(ctx, studentPrin, ne)
		assert.Equal(t, attendance.ErrNotAllowed, err)
		_, err = svc.Record(ctx, parentPrin, ne)
		assert.Equal(t, attendance.ErrNotAllowed, err)
	})

	t.Run("context must name exactly one axis", func(t *testing.T) {
		rec := attendance.NewRecord{StudentID: "s1", Status: attendance.StatusPresent}

		_, err := svc.Record(ctx, teacherPrin, newEntry(date, attendance.Context{}, rec))
		assert.Equal(t, attendance.ErrInvalidContext, err)

		both := attendance.Context{GradeSection: "grade5-a", WorkshopID: "w1"}
		_, err = svc.Record(ctx, teacherPrin, newEntry(date, both, rec))
		assert.Equal(t, attendance.ErrInvalidContext, err)
	})

	t.Run("duplicate student fails the whole batch", func(t *testing.T) {
		ne := newEntry(date, classCtx,
			attendance.NewRecord{StudentID: "s1", Status: attendance.StatusPresent},
			attendance.NewRecord{StudentID: "s2", Status: attendance.StatusLate},
			attendance.NewRecord{StudentID: "s1", Status: attendance.StatusAbsent},
		)
		_, err := svc.Record(ctx, teacherPrin, ne)
		assert.Equal(t, attendance.ErrDuplicateStudent, err)

		// nothing was persisted
		_, err = svc.GetEntry(ctx, date, classCtx)
		assert.Equal(t, attendance.ErrNotFound, err)
	})

	t.Run("timestamp truncates to the civil date", func(t *testing.T) {
		ne := newEntry(date, classCtx, attendance.NewRecord{StudentID: "s1", Status: attendance.StatusPresent})
		entry, err := svc.Record(ctx, teacherPrin, ne)
		assert.NoError(t, err)
		assert.Equal(t, time.Date(2021, time.March, 8, 0, 0, 0, 0, time.UTC), entry.Date)
	})
}

func TestService_Record_overwrite(t *testing.T) {
	svc := setup(t)
	ctx := context.Background()
	date := time.Date(2021, time.March, 8, 0, 0, 0, 0, time.UTC)
	classCtx := attendance.Context{GradeSection: "grade5-a"}

	_, err := svc.Record(ctx, teacherPrin, newEntry(date, classCtx,
		attendance.NewRecord{StudentID: "s1", Status: attendance.StatusAbsent},
		attendance.NewRecord{StudentID: "s2", Status: attendance.StatusPresent},
	))
	assert.NoError(t, err)

	// re-registration mutates the same entry: s1 overwritten, s3 appended
	entry, err := svc.Record(ctx, teacherPrin, newEntry(date, classCtx,
		attendance.NewRecord{StudentID: "s1", Status: attendance.StatusJustified},
		attendance.NewRecord{StudentID: "s3", Status: attendance.StatusLate},
	))
	assert.NoError(t, err)
	assert.Len(t, entry.Records, 3)

	rec, ok := entry.RecordFor("s1")
	assert.True(t, ok)
	assert.Equal(t, attendance.StatusJustified, rec.Status)
	rec, ok = entry.RecordFor("s2")
	assert.True(t, ok)
	assert.Equal(t, attendance.StatusPresent, rec.Status)

	// same date, different context gets its own entry
	wsCtx := attendance.Context{WorkshopID: "w1"}
	wsEntry, err := svc.Record(ctx, teacherPrin, newEntry(date, wsCtx,
		attendance.NewRecord{StudentID: "s1", Status: attendance.StatusPresent},
	))
	assert.NoError(t, err)
	assert.NotEqual(t, entry.ID, wsEntry.ID)
	assert.Len(t, wsEntry.Records, 1)
}

func TestService_StudentHistory(t *testing.T) {
	svc := setup(t)
	ctx := context.Background()
	classCtx := attendance.Context{GradeSection: "grade5-a"}
	monday := time.Date(2021, time.March, 8, 0, 0, 0, 0, time.UTC)
	tuesday := monday.AddDate(0, 0, 1)

	// students only see their own history
	_, err := svc.StudentHistory(ctx, studentPrin, "s2")
	assert.Equal(t, attendance.ErrNotAllowed, err)

	_, err = svc.Record(ctx, teacherPrin, newEntry(monday, classCtx,
		attendance.NewRecord{StudentID: "s1", Status: attendance.StatusPresent},
	))
	assert.NoError(t, err)
	_, err = svc.Record(ctx, teacherPrin, newEntry(tuesday, classCtx,
		attendance.NewRecord{StudentID: "s1", Status: attendance.StatusAbsent},
	))
	assert.NoError(t, err)

	// overwrite monday after tuesday was written; dates still order the rows
	_, err = svc.Record(ctx, teacherPrin, newEntry(monday, classCtx,
		attendance.NewRecord{StudentID: "s1", Status: attendance.StatusJustified},
	))
	assert.NoError(t, err)

	items, err := svc.StudentHistory(ctx, studentPrin, "s1")
	assert.NoError(t, err)
	if assert.Len(t, items, 2) {
		assert.Equal(t, tuesday, items[0].Date)
		assert.Equal(t, attendance.StatusAbsent, items[0].Status)
		assert.Equal(t, monday, items[1].Date)
		assert.Equal(t, attendance.StatusJustified, items[1].Status)
	}
}

func TestService_Aggregate(t *testing.T) {
	svc := setup(t)
	ctx := context.Background()
	classCtx := attendance.Context{GradeSection: "grade5-a"}
	day := time.Date(2021, time.March, 8, 0, 0, 0, 0, time.UTC)

	t.Run("no records yields zero stats", func(t *testing.T) {
		stats, err := svc.Aggregate(ctx, "ghost")
		assert.NoError(t, err)
		assert.Equal(t, attendance.Stats{}, stats)
	})

	statuses := []attendance.Status{attendance.StatusPresent, attendance.StatusLate, attendance.StatusAbsent}
	for i, status := range statuses {
		_, err := svc.Record(ctx, teacherPrin, newEntry(day.AddDate(0, 0, i), classCtx,
			attendance.NewRecord{StudentID: "s1", Status: status},
		))
		assert.NoError(t, err)
	}

	// 2 attended (present + late) of 3 => 66.66… rounds to 67
	stats, err := svc.Aggregate(ctx, "s1")
	assert.NoError(t, err)
	assert.Equal(t, attendance.Stats{
		PresentCount: 1,
		LateCount:    1,
		AbsentCount:  1,
		Total:        3,
		Rate:         67,
	}, stats)

	// 1 present of 8 => 12.5 rounds away from zero to 13
	for i := 0; i < 8; i++ {
		status := attendance.StatusAbsent
		if i == 0 {
			status = attendance.StatusPresent
		}
		_, err := svc.Record(ctx, teacherPrin, newEntry(day.AddDate(0, 0, i), classCtx,
			attendance.NewRecord{StudentID: "s2", Status: status},
		))
		assert.NoError(t, err)
	}
	stats, err = svc.Aggregate(ctx, "s2")
	assert.NoError(t, err)
	assert.Equal(t, 13, stats.Rate)
	assert.Equal(t, 8, stats.Total)
}

func TestService_GetEntry_copies(t *testing.T) {
	svc := setup(t)
	ctx := context.Background()
	date := time.Date(2021, time.March, 8, 0, 0, 0, 0, time.UTC)
	classCtx := attendance.Context{GradeSection: "grade5-a"}

	entry, err := svc.Record(ctx, teacherPrin, newEntry(date, classCtx,
		attendance.NewRecord{StudentID: "s1", Status: attendance.StatusPresent},
	))
	assert.NoError(t, err)

	// mutating a returned entry must not leak into the stored one
	entry.Records[0].Status = attendance.StatusAbsent

	entry, err = svc.GetEntry(ctx, date, classCtx)
	assert.NoError(t, err)
	rec, ok := entry.RecordFor("s1")
	assert.True(t, ok)
	assert.Equal(t, attendance.StatusPresent, rec.Status)

	entry.Records[0].Status = attendance.StatusLate
	entry, err = svc.GetEntry(ctx, date, classCtx)
	assert.NoError(t, err)
	rec, _ = entry.RecordFor("s1")
	assert.Equal(t, attendance.StatusPresent, rec.Status)
}

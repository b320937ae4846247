package sqlxrepos

import (
	"context"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"
	"github.com/pkg/errors"

	"github.com/trezcool/shule/core/attendance"
)

type (
	entryRow struct {
		ID           string    `db:"id"`
		Date         time.Time `db:"date"`
		ContextKey   string    `db:"context_key"`
		GradeSection string    `db:"grade_section"`
		WorkshopID   string    `db:"workshop_id"`
		CreatedAt    time.Time `db:"created_at"`
		UpdatedAt    time.Time `db:"updated_at"`
	}

	recordRow struct {
		EntryID    string    `db:"entry_id"`
		StudentID  string    `db:"student_id"`
		Status     string    `db:"status"`
		RecordedAt time.Time `db:"recorded_at"`
	}

	historyRow struct {
		Date         time.Time `db:"date"`
		GradeSection string    `db:"grade_section"`
		WorkshopID   string    `db:"workshop_id"`
		Status       string    `db:"status"`
		RecordedAt   time.Time `db:"recorded_at"`
	}
)

func (r entryRow) unpack(records []recordRow) attendance.Entry {
	entry := attendance.Entry{
		ID:        r.ID,
		Date:      r.Date.UTC(),
		Context:   attendance.Context{GradeSection: r.GradeSection, WorkshopID: r.WorkshopID},
		Records:   make([]attendance.Record, 0, len(records)),
		CreatedAt: r.CreatedAt,
		UpdatedAt: r.UpdatedAt,
	}
	for _, rec := range records {
		entry.Records = append(entry.Records, attendance.Record{
			StudentID:  rec.StudentID,
			Status:     attendance.Status(rec.Status),
			RecordedAt: rec.RecordedAt,
		})
	}
	return entry
}

type attendanceRepository struct {
	db *sqlx.DB
}

var _ attendance.Repository = (*attendanceRepository)(nil)

func NewAttendanceRepository(db *sqlx.DB) *attendanceRepository {
	return &attendanceRepository{db: db}
}

// UpsertRecords applies the whole batch in one transaction. The entry upsert
// takes the row lock, so concurrent batches for the same (date, context)
// serialize instead of interleaving.
func (repo attendanceRepository) UpsertRecords(
	ctx context.Context,
	date time.Time,
	actx attendance.Context,
	records []attendance.Record,
) (attendance.Entry, error) {
	tx, err := repo.db.BeginTxx(ctx, nil)
	if err != nil {
		return attendance.Entry{}, errors.Wrap(err, "beginning tx")
	}

	now := time.Now().UTC()
	var entryID string
	err = tx.QueryRowContext(ctx, `
		INSERT INTO attendance_entry (id, date, context_key, grade_section, workshop_id, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $6)
		ON CONFLICT (date, context_key) DO UPDATE SET updated_at = EXCLUDED.updated_at
		RETURNING id`,
		uuid.New().String(), date, actx.Key(), actx.GradeSection, actx.WorkshopID, now,
	).Scan(&entryID)
	if err != nil {
		return attendance.Entry{}, rollback(tx.Tx, errors.Wrap(err, "upserting entry"))
	}

	for _, rec := range records {
		_, err = tx.ExecContext(ctx, `
			INSERT INTO attendance_record (entry_id, student_id, status, recorded_at)
			VALUES ($1, $2, $3, $4)
			ON CONFLICT (entry_id, student_id) DO UPDATE SET status = EXCLUDED.status, recorded_at = EXCLUDED.recorded_at`,
			entryID, rec.StudentID, string(rec.Status), rec.RecordedAt,
		)
		if err != nil {
			return attendance.Entry{}, rollback(tx.Tx, errors.Wrap(err, "upserting record"))
		}
	}
	if err = tx.Commit(); err != nil {
		return attendance.Entry{}, errors.Wrap(err, "committing tx")
	}

	return repo.getEntryByID(ctx, entryID)
}

func (repo attendanceRepository) getEntryByID(ctx context.Context, id string) (attendance.Entry, error) {
	var entry entryRow
	err := repo.db.GetContext(ctx, &entry, `
		SELECT id, date, context_key, grade_section, workshop_id, created_at, updated_at
		FROM attendance_entry WHERE id = $1`, id)
	if err != nil {
		return attendance.Entry{}, trapNoRowsErr(err, attendance.ErrNotFound, "getting entry")
	}

	var records []recordRow
	err = repo.db.SelectContext(ctx, &records, `
		SELECT entry_id, student_id, status, recorded_at
		FROM attendance_record WHERE entry_id = $1
		ORDER BY recorded_at`, id)
	if err != nil {
		return attendance.Entry{}, errors.Wrap(err, "getting entry records")
	}
	return entry.unpack(records), nil
}

func (repo attendanceRepository) GetEntry(ctx context.Context, date time.Time, actx attendance.Context) (attendance.Entry, error) {
	var entry entryRow
	err := repo.db.GetContext(ctx, &entry, `
		SELECT id, date, context_key, grade_section, workshop_id, created_at, updated_at
		FROM attendance_entry WHERE date = $1 AND context_key = $2`, date, actx.Key())
	if err != nil {
		return attendance.Entry{}, trapNoRowsErr(err, attendance.ErrNotFound, "getting entry")
	}
	return repo.getEntryByID(ctx, entry.ID)
}

func (repo attendanceRepository) QueryStudentHistory(ctx context.Context, studentID string) ([]attendance.HistoryItem, error) {
	var rows []historyRow
	err := repo.db.SelectContext(ctx, &rows, `
		SELECT e.date, e.grade_section, e.workshop_id, r.status, r.recorded_at
		FROM attendance_record r
		JOIN attendance_entry e ON e.id = r.entry_id
		WHERE r.student_id = $1
		ORDER BY e.date DESC, r.recorded_at DESC`, studentID)
	if err != nil {
		return nil, errors.Wrap(err, "querying student history")
	}

	items := make([]attendance.HistoryItem, 0, len(rows))
	for _, r := range rows {
		items = append(items, attendance.HistoryItem{
			Date:       r.Date.UTC(),
			Context:    attendance.Context{GradeSection: r.GradeSection, WorkshopID: r.WorkshopID},
			Status:     attendance.Status(r.Status),
			RecordedAt: r.RecordedAt,
		})
	}
	return items, nil
}

func (repo attendanceRepository) FilterEntries(ctx context.Context, filter attendance.QueryFilter) ([]attendance.Entry, error) {
	query := `SELECT id, date, context_key, grade_section, workshop_id, created_at, updated_at FROM attendance_entry`
	var conds []string
	var args []interface{}

	if !filter.Context.IsZero() {
		conds = append(conds, `context_key = ?`)
		args = append(args, filter.Context.Key())
	}
	if !filter.DateFrom.IsZero() {
		conds = append(conds, `date >= ?`)
		args = append(args, filter.DateFrom)
	}
	if !filter.DateTo.IsZero() {
		conds = append(conds, `date <= ?`)
		args = append(args, filter.DateTo)
	}
	if len(conds) > 0 {
		query += ` WHERE ` + strings.Join(conds, " AND ")
	}
	query += ` ORDER BY date DESC`
	query = repo.db.Rebind(query)

	var entryRows []entryRow
	if err := repo.db.SelectContext(ctx, &entryRows, query, args...); err != nil {
		return nil, errors.Wrap(err, "filtering entries")
	}

	entries := make([]attendance.Entry, 0, len(entryRows))
	for _, er := range entryRows {
		entry, err := repo.getEntryByID(ctx, er.ID)
		if err != nil {
			return nil, err
		}
		entries = append(entries, entry)
	}
	return entries, nil
}

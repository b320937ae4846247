package sqlxrepos

import (
	"context"
	"strings"
	"time"

	"github.com/jmoiron/sqlx"
	"github.com/lib/pq"
	"github.com/pkg/errors"

	"github.com/trezcool/shule/core/workshop"
)

type workshopRow struct {
	ID                     string         `db:"id"`
	Title                  string         `db:"title"`
	TeacherID              string         `db:"teacher_id"`
	Schedule               string         `db:"schedule"`
	MaxParticipants        int            `db:"max_participants"`
	EnrollmentDeadline     time.Time      `db:"enrollment_deadline"`
	AllowedGrades          pq.StringArray `db:"allowed_grades"`
	AllowedSections        pq.StringArray `db:"allowed_sections"`
	RestrictByGradeSection bool           `db:"restrict_by_grade_section"`
	Status                 string         `db:"status"`
	CreatedAt              time.Time      `db:"created_at"`
	UpdatedAt              time.Time      `db:"updated_at"`
}

const workshopColumns = `id, title, teacher_id, schedule, max_participants, enrollment_deadline,
	allowed_grades, allowed_sections, restrict_by_grade_section, status, created_at, updated_at`

func packWorkshop(ws workshop.Workshop) workshopRow {
	return workshopRow{
		ID:                     ws.ID,
		Title:                  ws.Title,
		TeacherID:              ws.TeacherID,
		Schedule:               ws.Schedule,
		MaxParticipants:        ws.MaxParticipants,
		EnrollmentDeadline:     ws.EnrollmentDeadline,
		AllowedGrades:          ws.AllowedGrades,
		AllowedSections:        ws.AllowedSections,
		RestrictByGradeSection: ws.RestrictByGradeSection,
		Status:                 ws.Status,
		CreatedAt:              ws.CreatedAt,
		UpdatedAt:              ws.UpdatedAt,
	}
}

func (r workshopRow) unpack(participants []string) workshop.Workshop {
	return workshop.Workshop{
		ID:                     r.ID,
		Title:                  r.Title,
		TeacherID:              r.TeacherID,
		Schedule:               r.Schedule,
		MaxParticipants:        r.MaxParticipants,
		EnrollmentDeadline:     r.EnrollmentDeadline,
		AllowedGrades:          r.AllowedGrades,
		AllowedSections:        r.AllowedSections,
		RestrictByGradeSection: r.RestrictByGradeSection,
		Participants:           participants,
		Status:                 r.Status,
		CreatedAt:              r.CreatedAt,
		UpdatedAt:              r.UpdatedAt,
	}
}

type workshopRepository struct {
	db *sqlx.DB
}

var _ workshop.Repository = (*workshopRepository)(nil)

func NewWorkshopRepository(db *sqlx.DB) *workshopRepository {
	return &workshopRepository{db: db}
}

func (repo workshopRepository) CreateWorkshop(ctx context.Context, ws workshop.Workshop) (workshop.Workshop, error) {
	_, err := repo.db.NamedExecContext(ctx, `
		INSERT INTO workshop (`+workshopColumns+`)
		VALUES (:id, :title, :teacher_id, :schedule, :max_participants, :enrollment_deadline,
			:allowed_grades, :allowed_sections, :restrict_by_grade_section, :status, :created_at, :updated_at)`,
		packWorkshop(ws),
	)
	if err != nil {
		return workshop.Workshop{}, errors.Wrap(err, "creating workshop")
	}
	return ws, nil
}

func (repo workshopRepository) GetWorkshopByID(ctx context.Context, id string) (workshop.Workshop, error) {
	var row workshopRow
	err := repo.db.GetContext(ctx, &row, `SELECT `+workshopColumns+` FROM workshop WHERE id = $1`, id)
	if err != nil {
		return workshop.Workshop{}, trapNoRowsErr(err, workshop.ErrNotFound, "getting workshop")
	}
	participants, err := repo.participants(ctx, id)
	if err != nil {
		return workshop.Workshop{}, err
	}
	return row.unpack(participants), nil
}

func (repo workshopRepository) participants(ctx context.Context, workshopID string) ([]string, error) {
	participants := []string{}
	err := repo.db.SelectContext(ctx, &participants, `
		SELECT student_id FROM workshop_participant
		WHERE workshop_id = $1
		ORDER BY position, enrolled_at`, workshopID)
	if err != nil {
		return nil, errors.Wrap(err, "getting workshop participants")
	}
	return participants, nil
}

func (repo workshopRepository) QueryAllWorkshops(ctx context.Context) ([]workshop.Workshop, error) {
	return repo.query(ctx, `SELECT `+workshopColumns+` FROM workshop ORDER BY created_at DESC`)
}

func (repo workshopRepository) FilterWorkshops(ctx context.Context, filter workshop.QueryFilter) ([]workshop.Workshop, error) {
	query := `SELECT ` + workshopColumns + ` FROM workshop`
	var conds []string
	var args []interface{}

	if filter.Search != "" {
		conds = append(conds, `(title ILIKE ? OR schedule ILIKE ?)`)
		term := "%" + filter.Search + "%"
		args = append(args, term, term)
	}
	if filter.TeacherID != "" {
		conds = append(conds, `teacher_id = ?`)
		args = append(args, filter.TeacherID)
	}
	if filter.Status != "" {
		conds = append(conds, `status = ?`)
		args = append(args, filter.Status)
	}
	if len(conds) > 0 {
		query += ` WHERE ` + strings.Join(conds, " AND ")
	}
	query += ` ORDER BY created_at DESC`
	return repo.query(ctx, repo.db.Rebind(query), args...)
}

func (repo workshopRepository) query(ctx context.Context, query string, args ...interface{}) ([]workshop.Workshop, error) {
	var rows []workshopRow
	if err := repo.db.SelectContext(ctx, &rows, query, args...); err != nil {
		return nil, errors.Wrap(err, "querying workshops")
	}
	workshops := make([]workshop.Workshop, 0, len(rows))
	for _, row := range rows {
		participants, err := repo.participants(ctx, row.ID)
		if err != nil {
			return nil, err
		}
		workshops = append(workshops, row.unpack(participants))
	}
	return workshops, nil
}

// UpdateWorkshop saves the workshop's own columns; the roster is only mutated
// via EnrollStudent and UnenrollStudent.
func (repo workshopRepository) UpdateWorkshop(ctx context.Context, ws workshop.Workshop) (workshop.Workshop, error) {
	res, err := repo.db.NamedExecContext(ctx, `
		UPDATE workshop
		SET title = :title, schedule = :schedule, max_participants = :max_participants,
			enrollment_deadline = :enrollment_deadline, allowed_grades = :allowed_grades,
			allowed_sections = :allowed_sections, restrict_by_grade_section = :restrict_by_grade_section,
			status = :status, updated_at = :updated_at
		WHERE id = :id`,
		packWorkshop(ws),
	)
	if err != nil {
		return workshop.Workshop{}, errors.Wrap(err, "updating workshop")
	}
	if n, err := res.RowsAffected(); err == nil && n == 0 {
		return workshop.Workshop{}, workshop.ErrNotFound
	}
	return repo.GetWorkshopByID(ctx, ws.ID)
}

func (repo workshopRepository) DeleteWorkshopsByID(ctx context.Context, ids ...string) error {
	query, args, err := sqlx.In(`DELETE FROM workshop WHERE id IN (?)`, ids)
	if err != nil {
		return errors.Wrap(err, "preparing workshop deletion")
	}
	if _, err = repo.db.ExecContext(ctx, repo.db.Rebind(query), args...); err != nil {
		return errors.Wrap(err, "deleting workshops")
	}
	return nil
}

// EnrollStudent locks the workshop row for the membership and capacity checks
// so concurrent enrollments on the same workshop serialize.
func (repo workshopRepository) EnrollStudent(ctx context.Context, workshopID, studentID string) error {
	tx, err := repo.db.BeginTxx(ctx, nil)
	if err != nil {
		return errors.Wrap(err, "beginning tx")
	}

	var maxParticipants int
	err = tx.GetContext(ctx, &maxParticipants, `
		SELECT max_participants FROM workshop WHERE id = $1 FOR UPDATE`, workshopID)
	if err != nil {
		return rollback(tx.Tx, trapNoRowsErr(err, workshop.ErrNotFound, "locking workshop"))
	}

	var enrolled bool
	err = tx.GetContext(ctx, &enrolled, `
		SELECT EXISTS (SELECT 1 FROM workshop_participant WHERE workshop_id = $1 AND student_id = $2)`,
		workshopID, studentID)
	if err != nil {
		return rollback(tx.Tx, errors.Wrap(err, "checking membership"))
	}
	if enrolled {
		return rollback(tx.Tx, workshop.ErrAlreadyEnrolled)
	}

	// positions keep growing after unenrolls so the append order survives them
	var roster struct {
		Count       int `db:"count"`
		MaxPosition int `db:"max_position"`
	}
	err = tx.GetContext(ctx, &roster, `
		SELECT COUNT(*) AS count, COALESCE(MAX(position), 0) AS max_position
		FROM workshop_participant WHERE workshop_id = $1`, workshopID)
	if err != nil {
		return rollback(tx.Tx, errors.Wrap(err, "counting participants"))
	}
	if roster.Count >= maxParticipants {
		return rollback(tx.Tx, workshop.ErrCapacityExceeded)
	}

	_, err = tx.ExecContext(ctx, `
		INSERT INTO workshop_participant (workshop_id, student_id, position, enrolled_at)
		VALUES ($1, $2, $3, $4)`,
		workshopID, studentID, roster.MaxPosition+1, time.Now().UTC())
	if err != nil {
		return rollback(tx.Tx, errors.Wrap(err, "enrolling student"))
	}
	return errors.Wrap(tx.Commit(), "committing tx")
}

func (repo workshopRepository) UnenrollStudent(ctx context.Context, workshopID, studentID string) error {
	res, err := repo.db.ExecContext(ctx, `
		DELETE FROM workshop_participant WHERE workshop_id = $1 AND student_id = $2`,
		workshopID, studentID)
	if err != nil {
		return errors.Wrap(err, "unenrolling student")
	}
	if n, err := res.RowsAffected(); err == nil && n == 0 {
		return workshop.ErrNotEnrolled
	}
	return nil
}

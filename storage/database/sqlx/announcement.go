package sqlxrepos

import (
	"context"
	"time"

	"github.com/jmoiron/sqlx"
	"github.com/pkg/errors"
	"github.com/volatiletech/null/v8"

	"github.com/trezcool/shule/core/announcement"
)

type announcementRow struct {
	ID             string    `db:"id"`
	Title          string    `db:"title"`
	Message        string    `db:"message"`
	Type           string    `db:"type"`
	TargetAudience string    `db:"target_audience"`
	Active         null.Bool `db:"active"`
	CreatedAt      time.Time `db:"created_at"`
}

const announcementColumns = `id, title, message, type, target_audience, active, created_at`

func packAnnouncement(ann announcement.Announcement) announcementRow {
	return announcementRow{
		ID:             ann.ID,
		Title:          ann.Title,
		Message:        ann.Message,
		Type:           ann.Type,
		TargetAudience: ann.TargetAudience,
		Active:         null.BoolFromPtr(ann.Active),
		CreatedAt:      ann.CreatedAt,
	}
}

func (r announcementRow) unpack() announcement.Announcement {
	return announcement.Announcement{
		ID:             r.ID,
		Title:          r.Title,
		Message:        r.Message,
		Type:           r.Type,
		TargetAudience: r.TargetAudience,
		Active:         r.Active.Ptr(),
		CreatedAt:      r.CreatedAt,
	}
}

type announcementRepository struct {
	db *sqlx.DB
}

var _ announcement.Repository = (*announcementRepository)(nil)

func NewAnnouncementRepository(db *sqlx.DB) *announcementRepository {
	return &announcementRepository{db: db}
}

func (repo announcementRepository) CreateAnnouncement(ctx context.Context, ann announcement.Announcement) (announcement.Announcement, error) {
	_, err := repo.db.NamedExecContext(ctx, `
		INSERT INTO announcement (`+announcementColumns+`)
		VALUES (:id, :title, :message, :type, :target_audience, :active, :created_at)`,
		packAnnouncement(ann),
	)
	if err != nil {
		return announcement.Announcement{}, errors.Wrap(err, "creating announcement")
	}
	return ann, nil
}

func (repo announcementRepository) GetAnnouncementByID(ctx context.Context, id string) (announcement.Announcement, error) {
	var row announcementRow
	err := repo.db.GetContext(ctx, &row, `SELECT `+announcementColumns+` FROM announcement WHERE id = $1`, id)
	if err != nil {
		return announcement.Announcement{}, trapNoRowsErr(err, announcement.ErrNotFound, "getting announcement")
	}
	return row.unpack(), nil
}

func (repo announcementRepository) QueryAnnouncementsByAudience(ctx context.Context, audiences ...string) ([]announcement.Announcement, error) {
	query, args, err := sqlx.In(`
		SELECT `+announcementColumns+` FROM announcement
		WHERE target_audience IN (?)
		ORDER BY created_at DESC`, audiences)
	if err != nil {
		return nil, errors.Wrap(err, "preparing audience query")
	}
	return repo.query(ctx, repo.db.Rebind(query), args...)
}

func (repo announcementRepository) QueryAllAnnouncements(ctx context.Context) ([]announcement.Announcement, error) {
	return repo.query(ctx, `SELECT `+announcementColumns+` FROM announcement ORDER BY created_at DESC`)
}

func (repo announcementRepository) query(ctx context.Context, query string, args ...interface{}) ([]announcement.Announcement, error) {
	var rows []announcementRow
	if err := repo.db.SelectContext(ctx, &rows, query, args...); err != nil {
		return nil, errors.Wrap(err, "querying announcements")
	}
	anns := make([]announcement.Announcement, 0, len(rows))
	for _, row := range rows {
		anns = append(anns, row.unpack())
	}
	return anns, nil
}

func (repo announcementRepository) UpdateAnnouncement(ctx context.Context, ann announcement.Announcement) (announcement.Announcement, error) {
	res, err := repo.db.NamedExecContext(ctx, `
		UPDATE announcement
		SET title = :title, message = :message, type = :type,
			target_audience = :target_audience, active = :active
		WHERE id = :id`,
		packAnnouncement(ann),
	)
	if err != nil {
		return announcement.Announcement{}, errors.Wrap(err, "updating announcement")
	}
	if n, err := res.RowsAffected(); err == nil && n == 0 {
		return announcement.Announcement{}, announcement.ErrNotFound
	}
	return ann, nil
}

func (repo announcementRepository) DeleteAnnouncementsByID(ctx context.Context, ids ...string) error {
	query, args, err := sqlx.In(`DELETE FROM announcement WHERE id IN (?)`, ids)
	if err != nil {
		return errors.Wrap(err, "preparing announcement deletion")
	}
	if _, err = repo.db.ExecContext(ctx, repo.db.Rebind(query), args...); err != nil {
		return errors.Wrap(err, "deleting announcements")
	}
	return nil
}

package sqlxrepos

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"
	"github.com/pkg/errors"
	"github.com/volatiletech/null/v8"

	"github.com/trezcool/shule/core/user"
)

type userRow struct {
	ID           string     `db:"id"`
	FirstName    string     `db:"first_name"`
	LastName     string     `db:"last_name"`
	Email        string     `db:"email"`
	Role         string     `db:"role"`
	PhotoURL     string     `db:"photo_url"`
	IsActive     bool       `db:"is_active"`
	Grade        string     `db:"grade"`
	Section      string     `db:"section"`
	SurnameToken string     `db:"surname_token"`
	PasswordHash null.Bytes `db:"password_hash"`
	Children     null.JSON  `db:"children"`
	CreatedAt    null.Time  `db:"created_at"`
	UpdatedAt    null.Time  `db:"updated_at"`
	LastLogin    null.Time  `db:"last_login"`
}

func (r userRow) unpack() (user.User, error) {
	usr := user.User{
		ID:           r.ID,
		FirstName:    r.FirstName,
		LastName:     r.LastName,
		Email:        r.Email,
		Role:         r.Role,
		PhotoURL:     r.PhotoURL,
		IsActive:     &r.IsActive,
		Grade:        r.Grade,
		Section:      r.Section,
		SurnameToken: r.SurnameToken,
		PasswordHash: r.PasswordHash.Bytes,
		CreatedAt:    r.CreatedAt.Time,
		UpdatedAt:    r.UpdatedAt.Time,
		LastLogin:    r.LastLogin.Time,
	}
	if r.Children.Valid {
		if err := json.Unmarshal(r.Children.JSON, &usr.Children); err != nil {
			return user.User{}, errors.Wrap(err, "unmarshalling children")
		}
	}
	return usr, nil
}

func pack(usr user.User) (userRow, error) {
	row := userRow{
		ID:           usr.ID,
		FirstName:    usr.FirstName,
		LastName:     usr.LastName,
		Email:        usr.Email,
		Role:         usr.Role,
		PhotoURL:     usr.PhotoURL,
		IsActive:     usr.IsActive == nil || *usr.IsActive,
		Grade:        usr.Grade,
		Section:      usr.Section,
		SurnameToken: usr.SurnameToken,
		PasswordHash: null.BytesFrom(usr.PasswordHash),
		CreatedAt:    null.TimeFrom(usr.CreatedAt),
		UpdatedAt:    null.TimeFrom(usr.UpdatedAt),
		LastLogin:    null.NewTime(usr.LastLogin, !usr.LastLogin.IsZero()),
	}
	if usr.IsStudent() {
		row.PasswordHash = null.Bytes{} // students never hold a hash
	}
	if usr.Children != nil {
		data, err := json.Marshal(usr.Children)
		if err != nil {
			return userRow{}, errors.Wrap(err, "marshalling children")
		}
		row.Children = null.JSONFrom(data)
	}
	return row, nil
}

const userColumns = `id, first_name, last_name, email, role, photo_url, is_active,
	grade, section, surname_token, password_hash, children, created_at, updated_at, last_login`

type userRepository struct {
	db *sqlx.DB
}

var _ user.Repository = (*userRepository)(nil)

func NewUserRepository(db *sqlx.DB) *userRepository {
	return &userRepository{db: db}
}

func (repo userRepository) CheckEmailUniqueness(ctx context.Context, email string, excludedUsers ...user.User) error {
	query := `SELECT COUNT(*) FROM "user" WHERE email = $1`
	args := []interface{}{email}
	if len(excludedUsers) > 0 {
		ids := make([]string, 0, len(excludedUsers))
		for _, u := range excludedUsers {
			ids = append(ids, u.ID)
		}
		var err error
		query, args, err = sqlx.In(`SELECT COUNT(*) FROM "user" WHERE email = ? AND id NOT IN (?)`, email, ids)
		if err != nil {
			return errors.Wrap(err, "building uniqueness query")
		}
		query = repo.db.Rebind(query)
	}

	var count int
	if err := repo.db.GetContext(ctx, &count, query, args...); err != nil {
		return errors.Wrap(err, "checking email uniqueness")
	}
	if count > 0 {
		return user.ErrEmailExists
	}
	return nil
}

func (repo userRepository) CreateUser(ctx context.Context, usr user.User) (user.User, error) {
	if usr.ID == "" {
		usr.ID = uuid.New().String()
	}
	row, err := pack(usr)
	if err != nil {
		return user.User{}, err
	}
	_, err = repo.db.NamedExecContext(ctx, `
		INSERT INTO "user" (`+userColumns+`)
		VALUES (:id, :first_name, :last_name, :email, :role, :photo_url, :is_active,
		        :grade, :section, :surname_token, :password_hash, :children, :created_at, :updated_at, :last_login)`,
		row,
	)
	if err != nil {
		return user.User{}, errors.Wrap(err, "creating user")
	}
	return usr, nil
}

func (repo userRepository) QueryAllUsers(ctx context.Context) ([]user.User, error) {
	var rows []userRow
	if err := repo.db.SelectContext(ctx, &rows, `SELECT `+userColumns+` FROM "user" ORDER BY created_at`); err != nil {
		return nil, errors.Wrap(err, "querying users")
	}
	return unpackSlice(rows)
}

func (repo userRepository) GetUserByID(ctx context.Context, id string) (user.User, error) {
	var row userRow
	if err := repo.db.GetContext(ctx, &row, `SELECT `+userColumns+` FROM "user" WHERE id = $1`, id); err != nil {
		return user.User{}, trapNoRowsErr(err, user.ErrNotFound, "getting user by ID")
	}
	return row.unpack()
}

func (repo userRepository) GetUserByEmail(ctx context.Context, email string) (user.User, error) {
	var row userRow
	if err := repo.db.GetContext(ctx, &row, `SELECT `+userColumns+` FROM "user" WHERE email = $1`, email); err != nil {
		return user.User{}, trapNoRowsErr(err, user.ErrNotFound, "getting user by email")
	}
	return row.unpack()
}

func (repo userRepository) FilterUsers(ctx context.Context, filter user.QueryFilter) ([]user.User, error) {
	query := `SELECT ` + userColumns + ` FROM "user"`
	var conds []string
	var args []interface{}

	if filter.Search != "" {
		conds = append(conds, `(first_name ILIKE ? OR last_name ILIKE ? OR email ILIKE ?)`)
		like := "%" + filter.Search + "%"
		args = append(args, like, like, like)
	}
	if filter.Roles != nil {
		conds = append(conds, `role IN (?)`)
		args = append(args, filter.Roles)
	}
	if filter.Grade != "" {
		conds = append(conds, `grade = ?`)
		args = append(args, filter.Grade)
	}
	if filter.Section != "" {
		conds = append(conds, `section = ?`)
		args = append(args, filter.Section)
	}
	if filter.IsActive != nil {
		conds = append(conds, `is_active = ?`)
		args = append(args, *filter.IsActive)
	}
	if !filter.CreatedFrom.IsZero() {
		conds = append(conds, `created_at >= ?`)
		args = append(args, filter.CreatedFrom)
	}
	if !filter.CreatedTo.IsZero() {
		conds = append(conds, `created_at <= ?`)
		args = append(args, filter.CreatedTo)
	}
	if len(conds) > 0 {
		query += ` WHERE ` + strings.Join(conds, " AND ")
	}
	query += ` ORDER BY created_at`

	query, inArgs, err := sqlx.In(query, args...)
	if err != nil {
		return nil, errors.Wrap(err, "building filter query")
	}
	query = repo.db.Rebind(query)

	var rows []userRow
	if err := repo.db.SelectContext(ctx, &rows, query, inArgs...); err != nil {
		return nil, errors.Wrap(err, "filtering users")
	}
	return unpackSlice(rows)
}

func (repo userRepository) UpdateUser(ctx context.Context, usr user.User, isActive *bool) (user.User, error) {
	tx, err := repo.db.BeginTxx(ctx, nil)
	if err != nil {
		return user.User{}, errors.Wrap(err, "beginning tx")
	}

	var orig userRow
	if err = tx.GetContext(ctx, &orig, `SELECT `+userColumns+` FROM "user" WHERE id = $1 FOR UPDATE`, usr.ID); err != nil {
		return user.User{}, rollback(tx.Tx, trapNoRowsErr(err, user.ErrNotFound, "getting user for update"))
	}
	origUsr, err := orig.unpack()
	if err != nil {
		return user.User{}, rollback(tx.Tx, err)
	}

	// only save set fields
	merged := mergeUser(origUsr, usr, isActive)
	row, err := pack(merged)
	if err != nil {
		return user.User{}, rollback(tx.Tx, err)
	}
	_, err = tx.NamedExecContext(ctx, `
		UPDATE "user"
		SET first_name = :first_name, last_name = :last_name, email = :email, photo_url = :photo_url,
		    is_active = :is_active, grade = :grade, section = :section, surname_token = :surname_token,
		    password_hash = :password_hash, children = :children, updated_at = :updated_at, last_login = :last_login
		WHERE id = :id`,
		row,
	)
	if err != nil {
		return user.User{}, rollback(tx.Tx, errors.Wrap(err, "updating user"))
	}
	if err = tx.Commit(); err != nil {
		return user.User{}, errors.Wrap(err, "committing tx")
	}
	return merged, nil
}

func (repo userRepository) DeleteUsersByID(ctx context.Context, ids ...string) error {
	if len(ids) == 0 {
		return nil
	}
	query, args, err := sqlx.In(`DELETE FROM "user" WHERE id IN (?)`, ids)
	if err != nil {
		return errors.Wrap(err, "building delete query")
	}
	if _, err = repo.db.ExecContext(ctx, repo.db.Rebind(query), args...); err != nil {
		return errors.Wrap(err, "deleting users")
	}
	return nil
}

func mergeUser(orig, usr user.User, isActive *bool) user.User {
	if usr.FirstName != "" {
		orig.FirstName = usr.FirstName
	}
	if usr.LastName != "" {
		orig.LastName = usr.LastName
	}
	if usr.Email != "" {
		orig.Email = usr.Email
	}
	if usr.PhotoURL != "" {
		orig.PhotoURL = usr.PhotoURL
	}
	if usr.Grade != "" {
		orig.Grade = usr.Grade
	}
	if usr.Section != "" {
		orig.Section = usr.Section
	}
	if usr.SurnameToken != "" {
		orig.SurnameToken = usr.SurnameToken
	}
	if usr.PasswordHash != nil {
		orig.PasswordHash = usr.PasswordHash
	}
	if usr.Children != nil {
		orig.Children = usr.Children
	}
	if !usr.LastLogin.IsZero() {
		orig.LastLogin = usr.LastLogin
	}
	if isActive != nil {
		orig.IsActive = isActive
	}
	orig.UpdatedAt = usr.UpdatedAt
	return orig
}

func unpackSlice(rows []userRow) ([]user.User, error) {
	users := make([]user.User, 0, len(rows))
	for i, row := range rows {
		usr, err := row.unpack()
		if err != nil {
			return nil, errors.Wrap(err, fmt.Sprintf("unpacking user row %d", i))
		}
		users = append(users, usr)
	}
	return users, nil
}

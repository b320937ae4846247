package testutil

import (
	"context"
	"testing"
	"time"

	"github.com/trezcool/shule/core/user"
	"github.com/trezcool/shule/core/workshop"
)

// Logger logs through the test runner so output stays attached to the test.
type Logger struct {
	T *testing.T
}

func NewLogger(t *testing.T) *Logger { return &Logger{T: t} }

func (l *Logger) Enable(bool)                             {}
func (l *Logger) Debug(msg string, args ...interface{})   { l.log("DEBUG", msg, args) }
func (l *Logger) Info(msg string, args ...interface{})    { l.log("INFO", msg, args) }
func (l *Logger) Warn(msg string, args ...interface{})    { l.log("WARN", msg, args) }
func (l *Logger) Error(msg string, args ...interface{})   { l.log("ERROR", msg, args) }
func (l *Logger) log(lvl, msg string, args []interface{}) { l.T.Logf("%s: %s %v", lvl, msg, args) }

func CreateUser(
	t *testing.T,
	repo user.Repository,
	fname, lname, email, role, pwd string,
	isActive bool,
	createdAt ...time.Time,
) user.User {
	t.Helper()

	tstamp := time.Now().UTC()
	if len(createdAt) > 0 {
		tstamp = createdAt[0].UTC()
	}
	usr := user.User{
		FirstName: fname,
		LastName:  lname,
		Email:     email,
		Role:      role,
		IsActive:  &isActive,
		CreatedAt: tstamp,
		UpdatedAt: tstamp,
	}
	if pwd != "" {
		if err := usr.SetPassword(pwd); err != nil {
			t.Fatalf("CreateUser() failed: %v", err)
		}
	}
	usr, err := repo.CreateUser(context.Background(), usr)
	if err != nil {
		t.Fatalf("CreateUser() failed: %v", err)
	}
	return usr
}

func CreateStudent(
	t *testing.T,
	repo user.Repository,
	fname, lname, email, surname, grade, section string,
	isActive bool,
) user.User {
	t.Helper()

	now := time.Now().UTC()
	usr := user.User{
		FirstName: fname,
		LastName:  lname,
		Email:     email,
		Role:      user.RoleStudent,
		IsActive:  &isActive,
		Grade:     grade,
		Section:   section,
		CreatedAt: now,
		UpdatedAt: now,
	}
	if err := usr.SetSurnameToken(surname); err != nil {
		t.Fatalf("CreateStudent() failed: %v", err)
	}
	usr, err := repo.CreateUser(context.Background(), usr)
	if err != nil {
		t.Fatalf("CreateStudent() failed: %v", err)
	}
	return usr
}

func CreateWorkshop(
	t *testing.T,
	repo workshop.Repository,
	id, title, teacherID string,
	maxParticipants int,
	deadline time.Time,
) workshop.Workshop {
	t.Helper()

	now := time.Now().UTC()
	ws := workshop.Workshop{
		ID:                 id,
		Title:              title,
		TeacherID:          teacherID,
		Schedule:           "Mon 14:00",
		MaxParticipants:    maxParticipants,
		EnrollmentDeadline: deadline.UTC(),
		Participants:       []string{},
		Status:             workshop.StatusActive,
		CreatedAt:          now,
		UpdatedAt:          now,
	}
	ws, err := repo.CreateWorkshop(context.Background(), ws)
	if err != nil {
		t.Fatalf("CreateWorkshop() failed: %v", err)
	}
	return ws
}

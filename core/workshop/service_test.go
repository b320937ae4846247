package workshop_test

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"

	"github.com/trezcool/shule/core/user"
	"github.com/trezcool/shule/core/workshop"
	emailsvc "github.com/trezcool/shule/services/email"
	inmemdb "github.com/trezcool/shule/storage/database/inmem"
	testutil "github.com/trezcool/shule/tests"
)

var adminPrin = user.Principal{ID: "a1", Role: user.RoleAdmin, DisplayName: "Admin"}

func setup(t *testing.T) (*workshop.Service, workshop.Repository, user.Repository) {
	t.Helper()

	db, err := inmemdb.Open()
	if err != nil {
		t.Fatalf("inmemdb.Open() failed: %v", err)
	}
	wsRepo := inmemdb.NewWorkshopRepository(db)
	usrRepo := inmemdb.NewUserRepository(db)
	usrSvc := user.NewService(usrRepo, emailsvc.NewConsoleServiceMock(), testutil.NewLogger(t))
	svc := workshop.NewService(wsRepo, usrSvc, emailsvc.NewConsoleServiceMock(), testutil.NewLogger(t))
	return svc, wsRepo, usrRepo
}

func TestService_Enroll_capacity(t *testing.T) {
	svc, wsRepo, usrRepo := setup(t)
	ctx := context.Background()
	deadline := time.Now().UTC().Add(24 * time.Hour)

	ws := testutil.CreateWorkshop(t, wsRepo, "w1", "Chess Club", "t1", 2, deadline)
	s1 := testutil.CreateStudent(t, usrRepo, "S", "One", "s1@shule.test", "One", "grade5", "a", true)
	s2 := testutil.CreateStudent(t, usrRepo, "S", "Two", "s2@shule.test", "Two", "grade5", "a", true)
	s3 := testutil.CreateStudent(t, usrRepo, "S", "Three", "s3@shule.test", "Three", "grade5", "a", true)

	assert.NoError(t, svc.Enroll(ctx, adminPrin, ws.ID, s1.ID))
	assert.NoError(t, svc.Enroll(ctx, adminPrin, ws.ID, s2.ID))

	// third enrollment exceeds capacity
	assert.Equal(t, workshop.ErrCapacityExceeded, svc.Enroll(ctx, adminPrin, ws.ID, s3.ID))

	// enrolling twice is reported before capacity
	assert.Equal(t, workshop.ErrAlreadyEnrolled, svc.Enroll(ctx, adminPrin, ws.ID, s1.ID))

	// roster keeps enrollment order
	got, err := svc.GetByID(ctx, ws.ID)
	assert.NoError(t, err)
	assert.Equal(t, []string{s1.ID, s2.ID}, got.Participants)

	// freeing a seat admits the next student
	assert.NoError(t, svc.Unenroll(ctx, adminPrin, ws.ID, s2.ID))
	assert.NoError(t, svc.Enroll(ctx, adminPrin, ws.ID, s3.ID))
	got, err = svc.GetByID(ctx, ws.ID)
	assert.NoError(t, err)
	assert.Equal(t, []string{s1.ID, s3.ID}, got.Participants)
}

func TestService_Enroll_preconditions(t *testing.T) {
	svc, wsRepo, usrRepo := setup(t)
	ctx := context.Background()
	deadline := time.Now().UTC().Add(24 * time.Hour)

	s1 := testutil.CreateStudent(t, usrRepo, "S", "One", "s1@shule.test", "One", "grade5", "a", true)

	t.Run("unknown workshop", func(t *testing.T) {
		err := svc.Enroll(ctx, adminPrin, "nope", s1.ID)
		assert.Equal(t, workshop.ErrNotFound, err)
	})

	t.Run("inactive workshop", func(t *testing.T) {
		ws := testutil.CreateWorkshop(t, wsRepo, "w-inactive", "Chess Club", "t1", 10, deadline)
		inactive := workshop.StatusInactive
		_, err := svc.Update(ctx, ws.ID, workshop.UpdateWorkshop{Status: inactive})
		assert.NoError(t, err)
		assert.Equal(t, workshop.ErrWorkshopInactive, svc.Enroll(ctx, adminPrin, ws.ID, s1.ID))
	})

	t.Run("deadline passed", func(t *testing.T) {
		ws := testutil.CreateWorkshop(t, wsRepo, "w-deadline", "Chess Club", "t1", 10, deadline)

		workshop.NowFunc = func() time.Time { return deadline.Add(time.Minute) }
		defer func() { workshop.NowFunc = time.Now }()

		assert.Equal(t, workshop.ErrDeadlinePassed, svc.Enroll(ctx, adminPrin, ws.ID, s1.ID))
	})

	t.Run("grade restriction", func(t *testing.T) {
		ws := testutil.CreateWorkshop(t, wsRepo, "w-grades", "Chess Club", "t1", 10, deadline)
		restrict := true
		_, err := svc.Update(ctx, ws.ID, workshop.UpdateWorkshop{
			AllowedGrades:          []string{"grade6"},
			RestrictByGradeSection: &restrict,
		})
		assert.NoError(t, err)
		assert.Equal(t, workshop.ErrIneligible, svc.Enroll(ctx, adminPrin, ws.ID, s1.ID))

		// an empty allowed set leaves the axis unrestricted
		_, err = svc.Update(ctx, ws.ID, workshop.UpdateWorkshop{AllowedGrades: []string{"grade5", "grade6"}})
		assert.NoError(t, err)
		assert.NoError(t, svc.Enroll(ctx, adminPrin, ws.ID, s1.ID))
	})

	t.Run("unenroll requires membership", func(t *testing.T) {
		ws := testutil.CreateWorkshop(t, wsRepo, "w-unenroll", "Chess Club", "t1", 10, deadline)
		assert.Equal(t, workshop.ErrNotEnrolled, svc.Unenroll(ctx, adminPrin, ws.ID, s1.ID))
	})
}

func TestService_Enroll_selfOnly(t *testing.T) {
	svc, wsRepo, usrRepo := setup(t)
	ctx := context.Background()
	deadline := time.Now().UTC().Add(24 * time.Hour)

	ws := testutil.CreateWorkshop(t, wsRepo, "w1", "Chess Club", "t1", 10, deadline)
	s1 := testutil.CreateStudent(t, usrRepo, "S", "One", "s1@shule.test", "One", "grade5", "a", true)
	s2 := testutil.CreateStudent(t, usrRepo, "S", "Two", "s2@shule.test", "Two", "grade5", "a", true)

	s1Prin := user.Principal{ID: s1.ID, Role: user.RoleStudent, DisplayName: s1.Name()}

	// a student manages only their own enrollment
	assert.Equal(t, workshop.ErrNotAllowed, svc.Enroll(ctx, s1Prin, ws.ID, s2.ID))
	assert.NoError(t, svc.Enroll(ctx, s1Prin, ws.ID, s1.ID))
	assert.Equal(t, workshop.ErrNotAllowed, svc.Unenroll(ctx, s1Prin, ws.ID, s2.ID))
	assert.NoError(t, svc.Unenroll(ctx, s1Prin, ws.ID, s1.ID))
}

func TestService_Update_preservesRoster(t *testing.T) {
	svc, wsRepo, usrRepo := setup(t)
	ctx := context.Background()
	deadline := time.Now().UTC().Add(24 * time.Hour)

	ws := testutil.CreateWorkshop(t, wsRepo, "w1", "Chess Club", "t1", 10, deadline)
	s1 := testutil.CreateStudent(t, usrRepo, "S", "One", "s1@shule.test", "One", "grade5", "a", true)
	assert.NoError(t, svc.Enroll(ctx, adminPrin, ws.ID, s1.ID))

	maxP := 5
	got, err := svc.Update(ctx, ws.ID, workshop.UpdateWorkshop{Title: "Chess & Draughts", MaxParticipants: &maxP})
	assert.NoError(t, err)
	assert.Equal(t, "Chess & Draughts", got.Title)
	assert.Equal(t, 5, got.MaxParticipants)
	assert.Equal(t, []string{s1.ID}, got.Participants)
}

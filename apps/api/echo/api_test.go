package echoapi

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"

	"github.com/trezcool/shule/core/announcement"
	"github.com/trezcool/shule/core/attendance"
	"github.com/trezcool/shule/core/user"
	"github.com/trezcool/shule/core/workshop"
	emailsvc "github.com/trezcool/shule/services/email"
	inmemdb "github.com/trezcool/shule/storage/database/inmem"
	testutil "github.com/trezcool/shule/tests"
)

type testEnv struct {
	app     Server
	usrRepo user.Repository
	wsRepo  workshop.Repository
}

func setup(t *testing.T) *testEnv {
	t.Helper()

	db, err := inmemdb.Open()
	if err != nil {
		t.Fatalf("inmemdb.Open() failed: %v", err)
	}
	usrRepo := inmemdb.NewUserRepository(db)
	wsRepo := inmemdb.NewWorkshopRepository(db)

	mailSvc := emailsvc.NewConsoleServiceMock()
	logger := testutil.NewLogger(t)

	usrSvc := user.NewService(usrRepo, mailSvc, logger)
	attSvc := attendance.NewService(inmemdb.NewAttendanceRepository(db), logger)
	wsSvc := workshop.NewService(wsRepo, usrSvc, mailSvc, logger)
	annSvc := announcement.NewService(inmemdb.NewAnnouncementRepository(db))

	app := NewServer(&Options{
		DisableReqLogs:  true,
		UserSvc:         usrSvc,
		AttendanceSvc:   attSvc,
		WorkshopSvc:     wsSvc,
		AnnouncementSvc: annSvc,
		Logger:          logger,
	})
	return &testEnv{app: app, usrRepo: usrRepo, wsRepo: wsRepo}
}

func (env *testEnv) do(method, path, token string, body interface{}) *httptest.ResponseRecorder {
	var buf bytes.Buffer
	if body != nil {
		_ = json.NewEncoder(&buf).Encode(body)
	}
	req := httptest.NewRequest(method, path, &buf)
	req.Header.Set("Content-Type", "application/json")
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	rec := httptest.NewRecorder()
	env.app.ServeHTTP(rec, req)
	return rec
}

func getToken(t *testing.T, usr user.User) string {
	t.Helper()

	token, err := GenerateToken(GetUserClaims(usr))
	if err != nil {
		t.Fatalf("getToken() failed: %v", err)
	}
	return token
}

func TestHome(t *testing.T) {
	env := setup(t)
	rec := env.do(http.MethodGet, "/", "", nil)
	assert.Equal(t, http.StatusOK, rec.Code)
}

func TestLogin(t *testing.T) {
	env := setup(t)

	teacher := testutil.CreateUser(t, env.usrRepo, "Jane", "Mwangi", "jane@shule.test", user.RoleTeacher, "s3cr3t#pwd", true)
	student := testutil.CreateStudent(t, env.usrRepo, "Amani", "Garcia", "amani@shule.test", "Garcia", "grade5", "a", true)
	inactive := testutil.CreateUser(t, env.usrRepo, "Gone", "User", "gone@shule.test", user.RoleParent, "s3cr3t#pwd", false)

	tests := []struct {
		name     string
		body     LoginRequest
		wantCode int
	}{
		{name: "teacher with password", body: LoginRequest{Email: teacher.Email, Secret: "s3cr3t#pwd"}, wantCode: http.StatusOK},
		{name: "student with surname", body: LoginRequest{Email: student.Email, Secret: "garcia"}, wantCode: http.StatusOK},
		{name: "wrong secret", body: LoginRequest{Email: teacher.Email, Secret: "nope"}, wantCode: http.StatusBadRequest},
		{name: "unknown email", body: LoginRequest{Email: "who@shule.test", Secret: "nope"}, wantCode: http.StatusBadRequest},
		{name: "deactivated", body: LoginRequest{Email: inactive.Email, Secret: "s3cr3t#pwd"}, wantCode: http.StatusForbidden},
		{name: "missing secret", body: LoginRequest{Email: teacher.Email}, wantCode: http.StatusBadRequest},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec := env.do(http.MethodPost, "/v1/users/login", "", tt.body)
			assert.Equal(t, tt.wantCode, rec.Code)

			if tt.wantCode == http.StatusOK {
				var resp LoginResponse
				assert.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
				assert.NotEmpty(t, resp.Token)
			}
		})
	}
}

func TestStudentTokenExpiration(t *testing.T) {
	teacher := user.User{ID: "t1", Role: user.RoleTeacher}
	student := user.User{ID: "s1", Role: user.RoleStudent}

	tClaims := GetUserClaims(teacher)
	sClaims := GetUserClaims(student)

	// student sessions expire sooner than staff sessions
	assert.Less(t, sClaims.ExpiresAt, tClaims.ExpiresAt)
}

func TestUserSelfUpdate(t *testing.T) {
	env := setup(t)

	admin := testutil.CreateUser(t, env.usrRepo, "Head", "Master", "head@shule.test", user.RoleAdmin, "s3cr3t#pwd", true)
	student := testutil.CreateStudent(t, env.usrRepo, "Amani", "Garcia", "amani@shule.test", "Garcia", "grade5", "a", true)

	path := "/v1/users/" + student.ID

	t.Run("grade and section are admin-only", func(t *testing.T) {
		rec := env.do(http.MethodPut, path, getToken(t, student), user.UpdateUser{Grade: "grade6"})
		assert.Equal(t, http.StatusForbidden, rec.Code)

		rec = env.do(http.MethodPut, path, getToken(t, student), user.UpdateUser{Section: "b"})
		assert.Equal(t, http.StatusForbidden, rec.Code)

		rec = env.do(http.MethodPut, path, getToken(t, admin), user.UpdateUser{Grade: "grade6"})
		assert.Equal(t, http.StatusOK, rec.Code)
	})

	t.Run("self-update of own name is allowed", func(t *testing.T) {
		rec := env.do(http.MethodPut, path, getToken(t, student), user.UpdateUser{FirstName: "Imani"})
		assert.Equal(t, http.StatusOK, rec.Code)

		var usr user.User
		assert.NoError(t, json.Unmarshal(rec.Body.Bytes(), &usr))
		assert.Equal(t, "Imani", usr.FirstName)
	})
}

func TestAttendanceEndpoints(t *testing.T) {
	env := setup(t)

	teacher := testutil.CreateUser(t, env.usrRepo, "Jane", "Mwangi", "jane@shule.test", user.RoleTeacher, "s3cr3t#pwd", true)
	s1 := testutil.CreateStudent(t, env.usrRepo, "S", "One", "s1@shule.test", "One", "grade5", "a", true)
	s2 := testutil.CreateStudent(t, env.usrRepo, "S", "Two", "s2@shule.test", "Two", "grade5", "a", true)
	parent := testutil.CreateUser(t, env.usrRepo, "Baba", "One", "baba@shule.test", user.RoleParent, "s3cr3t#pwd", true)
	parent.Children = []user.ChildRef{{ID: s1.ID, Name: s1.Name(), Grade: "grade5", Section: "a"}}
	parent.UpdatedAt = time.Now().UTC()
	if _, err := env.usrRepo.UpdateUser(context.Background(), parent, nil); err != nil {
		t.Fatalf("linking child failed: %v", err)
	}

	entry := attendance.NewEntry{
		Date:    time.Date(2021, time.March, 8, 0, 0, 0, 0, time.UTC),
		Context: attendance.Context{GradeSection: "grade5-a"},
		Records: []attendance.NewRecord{
			{StudentID: s1.ID, Status: attendance.StatusPresent},
			{StudentID: s2.ID, Status: attendance.StatusAbsent},
		},
	}

	t.Run("requires auth", func(t *testing.T) {
		rec := env.do(http.MethodPost, "/v1/attendance", "", entry)
		assert.Equal(t, http.StatusUnauthorized, rec.Code)
	})

	t.Run("students cannot record", func(t *testing.T) {
		rec := env.do(http.MethodPost, "/v1/attendance", getToken(t, s1), entry)
		assert.Equal(t, http.StatusForbidden, rec.Code)
	})

	t.Run("teacher records a batch", func(t *testing.T) {
		rec := env.do(http.MethodPost, "/v1/attendance", getToken(t, teacher), entry)
		assert.Equal(t, http.StatusOK, rec.Code)
	})

	historyPath := func(id string) string { return fmt.Sprintf("/v1/students/%s/attendance", id) }

	t.Run("student reads own history", func(t *testing.T) {
		rec := env.do(http.MethodGet, historyPath(s1.ID), getToken(t, s1), nil)
		assert.Equal(t, http.StatusOK, rec.Code)

		var items []attendance.HistoryItem
		assert.NoError(t, json.Unmarshal(rec.Body.Bytes(), &items))
		assert.Len(t, items, 1)
	})

	t.Run("student cannot read another student", func(t *testing.T) {
		rec := env.do(http.MethodGet, historyPath(s2.ID), getToken(t, s1), nil)
		assert.Equal(t, http.StatusForbidden, rec.Code)
	})

	t.Run("parent reads linked child only", func(t *testing.T) {
		rec := env.do(http.MethodGet, historyPath(s1.ID), getToken(t, parent), nil)
		assert.Equal(t, http.StatusOK, rec.Code)

		rec = env.do(http.MethodGet, historyPath(s2.ID), getToken(t, parent), nil)
		assert.Equal(t, http.StatusForbidden, rec.Code)
	})

	t.Run("stats", func(t *testing.T) {
		rec := env.do(http.MethodGet, historyPath(s1.ID)+"/stats", getToken(t, teacher), nil)
		assert.Equal(t, http.StatusOK, rec.Code)

		var stats attendance.Stats
		assert.NoError(t, json.Unmarshal(rec.Body.Bytes(), &stats))
		assert.Equal(t, 100, stats.Rate)
	})
}

func TestWorkshopEnrollmentEndpoints(t *testing.T) {
	env := setup(t)

	admin := testutil.CreateUser(t, env.usrRepo, "Head", "Master", "head@shule.test", user.RoleAdmin, "s3cr3t#pwd", true)
	s1 := testutil.CreateStudent(t, env.usrRepo, "S", "One", "s1@shule.test", "One", "grade5", "a", true)
	s2 := testutil.CreateStudent(t, env.usrRepo, "S", "Two", "s2@shule.test", "Two", "grade5", "a", true)
	ws := testutil.CreateWorkshop(t, env.wsRepo, "w1", "Chess Club", "t1", 1, time.Now().UTC().Add(24*time.Hour))

	enrollPath := fmt.Sprintf("/v1/workshops/%s/enrollments", ws.ID)

	t.Run("student enrolls themselves", func(t *testing.T) {
		rec := env.do(http.MethodPost, enrollPath, getToken(t, s1), EnrollmentRequest{StudentID: s1.ID})
		assert.Equal(t, http.StatusOK, rec.Code)
	})

	t.Run("student cannot enroll someone else", func(t *testing.T) {
		rec := env.do(http.MethodPost, enrollPath, getToken(t, s2), EnrollmentRequest{StudentID: s1.ID})
		assert.Equal(t, http.StatusForbidden, rec.Code)
	})

	t.Run("capacity conflict", func(t *testing.T) {
		rec := env.do(http.MethodPost, enrollPath, getToken(t, admin), EnrollmentRequest{StudentID: s2.ID})
		assert.Equal(t, http.StatusConflict, rec.Code)
	})

	t.Run("only admins create workshops", func(t *testing.T) {
		body := workshop.NewWorkshop{
			Title:              "Robotics",
			TeacherID:          "t1",
			Schedule:           "Tue 15:00",
			MaxParticipants:    10,
			EnrollmentDeadline: time.Now().UTC().Add(24 * time.Hour),
		}
		rec := env.do(http.MethodPost, "/v1/workshops", getToken(t, s1), body)
		assert.Equal(t, http.StatusForbidden, rec.Code)

		rec = env.do(http.MethodPost, "/v1/workshops", getToken(t, admin), body)
		assert.Equal(t, http.StatusCreated, rec.Code)
	})
}

func TestAnnouncementEndpoints(t *testing.T) {
	env := setup(t)

	admin := testutil.CreateUser(t, env.usrRepo, "Head", "Master", "head@shule.test", user.RoleAdmin, "s3cr3t#pwd", true)
	student := testutil.CreateStudent(t, env.usrRepo, "Amani", "Garcia", "amani@shule.test", "Garcia", "grade5", "a", true)

	for _, body := range []announcement.NewAnnouncement{
		{Title: "for everyone", Message: "msg", TargetAudience: announcement.AudienceAll},
		{Title: "for students", Message: "msg", TargetAudience: announcement.AudienceStudents},
		{Title: "for parents", Message: "msg", TargetAudience: announcement.AudienceParents},
	} {
		rec := env.do(http.MethodPost, "/v1/announcements", getToken(t, admin), body)
		assert.Equal(t, http.StatusCreated, rec.Code)
	}

	t.Run("students cannot publish", func(t *testing.T) {
		body := announcement.NewAnnouncement{Title: "x", Message: "y", TargetAudience: announcement.AudienceAll}
		rec := env.do(http.MethodPost, "/v1/announcements", getToken(t, student), body)
		assert.Equal(t, http.StatusForbidden, rec.Code)
	})

	t.Run("feed is scoped to the caller's role", func(t *testing.T) {
		rec := env.do(http.MethodGet, "/v1/announcements", getToken(t, student), nil)
		assert.Equal(t, http.StatusOK, rec.Code)

		var anns []announcement.Announcement
		assert.NoError(t, json.Unmarshal(rec.Body.Bytes(), &anns))
		assert.Len(t, anns, 2)
	})

	t.Run("unread count", func(t *testing.T) {
		rec := env.do(http.MethodGet, "/v1/announcements/unread-count", getToken(t, student), nil)
		assert.Equal(t, http.StatusOK, rec.Code)

		var count CountResponse
		assert.NoError(t, json.Unmarshal(rec.Body.Bytes(), &count))
		assert.Equal(t, 2, count.Count)
	})
}

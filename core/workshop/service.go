package workshop

import (
	"context"
	"errors"
	"fmt"
	"net/mail"
	"time"

	"github.com/google/uuid"

	"github.com/trezcool/shule/core"
	"github.com/trezcool/shule/core/user"
)

var (
	NowFunc = time.Now // mockable

	// errors
	ErrNotFound         = errors.New("workshop not found")
	ErrWorkshopInactive = errors.New("workshop is not active")
	ErrDeadlinePassed   = errors.New("enrollment deadline has passed")
	ErrIneligible       = errors.New("student's grade or section is not allowed")
	ErrAlreadyEnrolled  = errors.New("student is already enrolled")
	ErrCapacityExceeded = errors.New("workshop is full")
	ErrNotEnrolled      = errors.New("student is not enrolled")
	ErrNotAllowed       = errors.New("not allowed to manage this enrollment")
)

type (
	Repository interface {
		CreateWorkshop(ctx context.Context, ws Workshop) (Workshop, error)
		GetWorkshopByID(ctx context.Context, id string) (Workshop, error)
		QueryAllWorkshops(ctx context.Context) ([]Workshop, error)
		FilterWorkshops(ctx context.Context, filter QueryFilter) ([]Workshop, error)
		UpdateWorkshop(ctx context.Context, ws Workshop) (Workshop, error)
		DeleteWorkshopsByID(ctx context.Context, ids ...string) error

		// EnrollStudent checks membership and capacity and appends the
		// student in one critical section; check-then-append must not race
		// with another enrollment on the same workshop.
		// Fails ErrAlreadyEnrolled or ErrCapacityExceeded.
		EnrollStudent(ctx context.Context, workshopID, studentID string) error
		// UnenrollStudent removes the student; fails ErrNotEnrolled.
		UnenrollStudent(ctx context.Context, workshopID, studentID string) error
	}

	// StudentDirectory resolves the student records needed for eligibility
	// checks and enrollment notices.
	StudentDirectory interface {
		GetStudent(ctx context.Context, id string) (user.User, error)
	}

	Service struct {
		repo     Repository
		students StudentDirectory
		mailSvc  core.EmailService
		logger   core.Logger
	}
)

func NewService(repo Repository, students StudentDirectory, mailSvc core.EmailService, logger core.Logger) *Service {
	return &Service{repo: repo, students: students, mailSvc: mailSvc, logger: logger}
}

func (svc *Service) Create(ctx context.Context, nw NewWorkshop) (Workshop, error) {
	now := time.Now().UTC()
	ws := Workshop{
		ID:                     uuid.New().String(),
		Title:                  nw.Title,
		TeacherID:              nw.TeacherID,
		Schedule:               nw.Schedule,
		MaxParticipants:        nw.MaxParticipants,
		EnrollmentDeadline:     nw.EnrollmentDeadline.UTC(),
		AllowedGrades:          nw.AllowedGrades,
		AllowedSections:        nw.AllowedSections,
		RestrictByGradeSection: nw.RestrictByGradeSection,
		Participants:           []string{},
		Status:                 StatusActive,
		CreatedAt:              now,
		UpdatedAt:              now,
	}
	return svc.repo.CreateWorkshop(ctx, ws)
}

func (svc *Service) GetByID(ctx context.Context, id string) (Workshop, error) {
	return svc.repo.GetWorkshopByID(ctx, id)
}

func (svc *Service) QueryAll(ctx context.Context) ([]Workshop, error) {
	return svc.repo.QueryAllWorkshops(ctx)
}

func (svc *Service) Filter(ctx context.Context, filter QueryFilter) ([]Workshop, error) {
	filter.Clean()
	return svc.repo.FilterWorkshops(ctx, filter)
}

func (svc *Service) Update(ctx context.Context, id string, uw UpdateWorkshop) (Workshop, error) {
	ws, err := svc.repo.GetWorkshopByID(ctx, id)
	if err != nil {
		return Workshop{}, err
	}
	if uw.Title != "" {
		ws.Title = uw.Title
	}
	if uw.Schedule != "" {
		ws.Schedule = uw.Schedule
	}
	if uw.MaxParticipants != nil {
		ws.MaxParticipants = *uw.MaxParticipants
	}
	if uw.EnrollmentDeadline != nil {
		ws.EnrollmentDeadline = uw.EnrollmentDeadline.UTC()
	}
	if uw.AllowedGrades != nil {
		ws.AllowedGrades = uw.AllowedGrades
	}
	if uw.AllowedSections != nil {
		ws.AllowedSections = uw.AllowedSections
	}
	if uw.RestrictByGradeSection != nil {
		ws.RestrictByGradeSection = *uw.RestrictByGradeSection
	}
	if uw.Status != "" {
		ws.Status = uw.Status
	}
	ws.UpdatedAt = time.Now().UTC()
	return svc.repo.UpdateWorkshop(ctx, ws)
}

func (svc *Service) Delete(ctx context.Context, ids ...string) error {
	return svc.repo.DeleteWorkshopsByID(ctx, ids...)
}

// Enroll adds a student to a workshop. Preconditions are checked in a fixed
// order so the first failure reported is the one staff can most readily fix:
// active, deadline, eligibility, membership, capacity. The membership and
// capacity checks run atomically with the append at the storage layer.
func (svc *Service) Enroll(ctx context.Context, principal user.Principal, workshopID, studentID string) error {
	if principal.IsStudent() && principal.ID != studentID {
		return ErrNotAllowed
	}

	ws, err := svc.repo.GetWorkshopByID(ctx, workshopID)
	if err != nil {
		return err
	}
	if !ws.IsActive() {
		return ErrWorkshopInactive
	}
	if NowFunc().UTC().After(ws.EnrollmentDeadline) {
		return ErrDeadlinePassed
	}

	student, err := svc.students.GetStudent(ctx, studentID)
	if err != nil {
		return err
	}
	if !ws.EligibleFor(student.Grade, student.Section) {
		return ErrIneligible
	}

	if err = svc.repo.EnrollStudent(ctx, workshopID, studentID); err != nil {
		return err
	}

	svc.logger.Info("workshop enrollment", principal, map[string]interface{}{
		"workshop": ws.ID,
		"student":  studentID,
	})
	svc.sendEnrollmentMail(student, ws)
	return nil
}

// Unenroll removes a student from a workshop. Removal never violates any
// invariant; re-enrollment goes through the same checks as a fresh one.
func (svc *Service) Unenroll(ctx context.Context, principal user.Principal, workshopID, studentID string) error {
	if principal.IsStudent() && principal.ID != studentID {
		return ErrNotAllowed
	}
	if _, err := svc.repo.GetWorkshopByID(ctx, workshopID); err != nil {
		return err
	}
	return svc.repo.UnenrollStudent(ctx, workshopID, studentID)
}

func (svc *Service) sendEnrollmentMail(student user.User, ws Workshop) {
	if student.Email == "" {
		return
	}
	svc.mailSvc.SendMessages(&core.EmailMessage{
		To:      []mail.Address{{Name: student.Name(), Address: student.Email}},
		Subject: "Workshop Enrollment Confirmed",
		BodyStr: fmt.Sprintf(
			"Hi %s,\r\n\r\nYou are enrolled in %q (%s).\r\n",
			student.Name(), ws.Title, ws.Schedule,
		),
	})
}

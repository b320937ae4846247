package user

import (
	"context"
	"errors"
	"fmt"
	"net/mail"
	"time"

	pkgerrors "github.com/pkg/errors"

	"github.com/trezcool/shule/core"
)

var (
	// errors
	ErrNotFound           = errors.New("user not found")
	ErrInvalidCredential  = errors.New("invalid credentials")
	ErrUnauthorized       = errors.New("operation not permitted for this role")
	ErrEmailExists        = errors.New("a user with this email already exists")
	ErrChildAlreadyLinked = errors.New("this child is already linked to the parent")
)

type (
	Repository interface {
		CheckEmailUniqueness(ctx context.Context, email string, excludedUsers ...User) error
		CreateUser(ctx context.Context, usr User) (User, error)
		QueryAllUsers(ctx context.Context) ([]User, error)
		GetUserByID(ctx context.Context, id string) (User, error)
		GetUserByEmail(ctx context.Context, email string) (User, error)
		// FilterUsers applies AND operation on available QueryFilter fields.
		// QueryFilter.Search does a case-insensitive match on one of
		// User.FirstName, User.LastName or User.Email.
		FilterUsers(ctx context.Context, filter QueryFilter) ([]User, error)
		UpdateUser(ctx context.Context, usr User, isActive *bool) (User, error)
		DeleteUsersByID(ctx context.Context, ids ...string) error
	}

	Service struct {
		repo    Repository
		mailSvc core.EmailService
		logger  core.Logger
	}
)

func NewService(repo Repository, mailSvc core.EmailService, logger core.Logger) *Service {
	return &Service{repo: repo, mailSvc: mailSvc, logger: logger}
}

func (svc *Service) checkUniqueness(origUsr *User, email string) error {
	if email == "" {
		return nil
	}
	var excl []User
	if origUsr != nil {
		excl = append(excl, *origUsr)
	}
	if err := svc.repo.CheckEmailUniqueness(context.Background(), email, excl...); err != nil {
		if err == ErrEmailExists {
			return core.NewValidationError(err, core.FieldError{Field: "email", Error: err.Error()})
		}
		return err
	}
	return nil
}

// Authenticate resolves the account by email and verifies the candidate
// secret against the credential scheme authoritative for the account's role.
// On success a Principal is returned and an audit login event is emitted;
// downstream components never learn which scheme authenticated the caller.
func (svc *Service) Authenticate(ctx context.Context, email, secret string) (Principal, error) {
	usr, err := svc.repo.GetUserByEmail(ctx, core.CleanString(email, true /* lower */))
	if err != nil {
		if err == ErrNotFound {
			return Principal{}, err
		}
		return Principal{}, pkgerrors.Wrap(err, "finding user by email")
	}
	if err = usr.Credential().Verify(secret); err != nil {
		return Principal{}, err
	}
	if usr.IsActive != nil && !*usr.IsActive {
		return Principal{}, ErrUnauthorized
	}
	usr, err = svc.SetLastLogin(ctx, usr)
	if err != nil {
		return Principal{}, pkgerrors.Wrap(err, "setting lastLogin")
	}
	// audit; consumed externally, failures are not retried
	svc.logger.Info("user login", usr.Principal(), map[string]interface{}{
		"role": usr.Role,
		"at":   usr.LastLogin.Format(time.RFC3339),
	})
	return usr.Principal(), nil
}

func (svc *Service) Create(ctx context.Context, nu NewUser) (User, error) {
	if err := svc.checkUniqueness(nil, nu.Email); err != nil {
		return User{}, err
	}
	now := time.Now().UTC()
	isActive := true
	usr := User{
		FirstName: nu.FirstName,
		LastName:  nu.LastName,
		Email:     nu.Email,
		Role:      nu.Role,
		IsActive:  &isActive,
		CreatedAt: now,
		UpdatedAt: now,
	}
	if err := usr.SetPassword(nu.Password); err != nil {
		return User{}, err
	}
	return svc.repo.CreateUser(ctx, usr)
}

func (svc *Service) CreateStudent(ctx context.Context, ns NewStudent) (User, error) {
	if err := svc.checkUniqueness(nil, ns.Email); err != nil {
		return User{}, err
	}
	now := time.Now().UTC()
	isActive := true
	usr := User{
		FirstName: ns.FirstName,
		LastName:  ns.LastName,
		Email:     ns.Email,
		Role:      RoleStudent,
		IsActive:  &isActive,
		Grade:     ns.Grade,
		Section:   ns.Section,
		CreatedAt: now,
		UpdatedAt: now,
	}
	if err := usr.SetSurnameToken(ns.PaternalSurname); err != nil {
		return User{}, err
	}
	return svc.repo.CreateUser(ctx, usr)
}

func (svc *Service) QueryAll(ctx context.Context) ([]User, error) {
	return svc.repo.QueryAllUsers(ctx)
}

func (svc *Service) GetByID(ctx context.Context, id string) (User, error) {
	return svc.repo.GetUserByID(ctx, id)
}

// GetStudent resolves a student account; non-student accounts report ErrNotFound.
func (svc *Service) GetStudent(ctx context.Context, id string) (User, error) {
	usr, err := svc.repo.GetUserByID(ctx, id)
	if err != nil {
		return User{}, err
	}
	if !usr.IsStudent() {
		return User{}, ErrNotFound
	}
	return usr, nil
}

func (svc *Service) GetByEmail(ctx context.Context, email string) (User, error) {
	return svc.repo.GetUserByEmail(ctx, core.CleanString(email, true /* lower */))
}

func (svc *Service) Filter(ctx context.Context, filter QueryFilter) ([]User, error) {
	filter.Clean()
	return svc.repo.FilterUsers(ctx, filter)
}

func (svc *Service) Update(ctx context.Context, id string, uu UpdateUser) (User, error) {
	if uu.Email != "" {
		orig := User{ID: id}
		if err := svc.checkUniqueness(&orig, uu.Email); err != nil {
			return User{}, err
		}
	}
	usr := User{
		ID:        id,
		FirstName: uu.FirstName,
		LastName:  uu.LastName,
		Email:     uu.Email,
		PhotoURL:  uu.PhotoURL,
		Grade:     uu.Grade,
		Section:   uu.Section,
		UpdatedAt: time.Now().UTC(),
	}
	if uu.Password != "" {
		if err := usr.SetPassword(uu.Password); err != nil {
			return User{}, err
		}
	}
	return svc.repo.UpdateUser(ctx, usr, uu.IsActive)
}

// LinkChild adds a child reference to a parent account. Linking the same
// child twice is rejected.
func (svc *Service) LinkChild(ctx context.Context, parentID string, child ChildRef) (User, error) {
	child.Name = core.CleanString(child.Name)
	child.Grade = core.CleanString(child.Grade, true /* lower */)
	child.Section = core.CleanString(child.Section, true /* lower */)
	if err := core.Validate.Struct(child); err != nil {
		return User{}, err
	}

	parent, err := svc.repo.GetUserByID(ctx, parentID)
	if err != nil {
		return User{}, err
	}
	if !parent.IsParent() {
		return User{}, ErrUnauthorized
	}
	if parent.HasChild(child.ID) {
		return User{}, core.NewValidationError(ErrChildAlreadyLinked, core.FieldError{
			Field: "id", Error: ErrChildAlreadyLinked.Error(),
		})
	}

	parent.Children = append(parent.Children, child)
	parent.UpdatedAt = time.Now().UTC()
	return svc.repo.UpdateUser(ctx, parent, nil)
}

func (svc *Service) UnlinkChild(ctx context.Context, parentID, childID string) (User, error) {
	parent, err := svc.repo.GetUserByID(ctx, parentID)
	if err != nil {
		return User{}, err
	}
	if !parent.HasChild(childID) {
		return User{}, ErrNotFound
	}

	children := make([]ChildRef, 0, len(parent.Children)-1)
	for _, c := range parent.Children {
		if c.ID != childID {
			children = append(children, c)
		}
	}
	parent.Children = children
	parent.UpdatedAt = time.Now().UTC()
	return svc.repo.UpdateUser(ctx, parent, nil)
}

func (svc *Service) Delete(ctx context.Context, ids ...string) error {
	return svc.repo.DeleteUsersByID(ctx, ids...)
}

func (svc *Service) SetLastLogin(ctx context.Context, usr User) (User, error) {
	usr.LastLogin = time.Now().UTC()
	usr.UpdatedAt = usr.LastLogin
	return svc.repo.UpdateUser(ctx, usr, nil)
}

// RequestPasswordReset emails a reset link to the account. Student accounts
// have no password to reset.
func (svc *Service) RequestPasswordReset(ctx context.Context, email string) error {
	usr, err := svc.GetByEmail(ctx, email)
	if err != nil {
		return err
	}
	if usr.IsStudent() {
		return ErrUnauthorized
	}
	go svc.sendPasswordResetMail(usr)
	return nil
}

func (svc *Service) ResetPassword(ctx context.Context, rp ResetUserPassword) (User, error) {
	uid, err := decodeUID(rp.UID)
	if err != nil {
		return User{}, core.NewValidationError(errInvalidToken)
	}
	usr, err := svc.GetByID(ctx, uid)
	if err != nil {
		return User{}, core.NewValidationError(errInvalidToken)
	}
	if err = verifyToken(usr, rp.Token); err != nil {
		return User{}, core.NewValidationError(err)
	}
	if err = usr.SetPassword(rp.Password); err != nil {
		return User{}, err
	}
	usr.UpdatedAt = time.Now().UTC()
	return svc.repo.UpdateUser(ctx, usr, nil)
}

func (svc *Service) sendPasswordResetMail(usr User) {
	token, err := MakeToken(usr)
	if err != nil {
		svc.logger.Error("making password reset token", err, usr.Principal())
		return
	}
	url := fmt.Sprintf("%s/password-reset?uid=%s&token=%s", core.Conf.FrontendBaseURL, EncodeUID(usr), token)
	svc.mailSvc.SendMessages(&core.EmailMessage{
		To:      []mail.Address{{Name: usr.Name(), Address: usr.Email}},
		Subject: "Password Reset",
		BodyStr: fmt.Sprintf("Hi %s,\r\n\r\nFollow this link to reset your password: %s\r\n", usr.Name(), url),
	})
}

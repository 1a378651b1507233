package user

import (
	"context"
	"net/mail"

	"github.com/go-playground/validator/v10"
	"github.com/pkg/errors"

	"github.com/zhuluh247/MySchool/core"
)

var (
	// errors
	ErrEmailExists      = errors.New("a user with this email already exists")
	ErrInvalidResetLink = errors.New("the password reset link is invalid or has expired")
)

type (
	// ChildLinker links the students holding the given admission number to a parent.
	ChildLinker interface {
		LinkParent(ctx context.Context, admissionNumber, parentEmail string) error
	}

	Service struct {
		users    core.Store[storedUser]
		children ChildLinker
		mailSvc  core.EmailService
		validate *validator.Validate
		tokens   tokenGenerator
	}
)

func NewService(gw core.Gateway, children ChildLinker, mailSvc core.EmailService, conf *core.Config, validate *validator.Validate) *Service {
	return &Service{
		users:    core.NewStore[storedUser](gw, core.Users),
		children: children,
		mailSvc:  mailSvc,
		validate: validate,
		tokens:   tokenGenerator{secretKey: []byte(conf.SecretKey), timeout: conf.PasswordResetTimeoutDelta},
	}
}

// CheckUniqueness checks that no user other than excludedUsers has the given email.
func (svc *Service) CheckUniqueness(ctx context.Context, email string, excludedUsers ...User) error {
	found, err := svc.users.Query(ctx, "email", core.OpEq, email)
	if err != nil {
		return errors.Wrap(err, "checking email uniqueness")
	}
	for _, su := range found {
		excluded := false
		for _, ex := range excludedUsers {
			if su.ID == ex.ID {
				excluded = true
				break
			}
		}
		if !excluded {
			return core.NewValidationError(ErrEmailExists, core.FieldError{Field: "email", Error: ErrEmailExists.Error()})
		}
	}
	return nil
}

// Create creates a validated NewUser. A parent's children are linked to them by admission number;
// unknown admission numbers are ignored.
func (svc *Service) Create(ctx context.Context, nu NewUser) (User, error) {
	now := core.NowFunc()
	usr := User{
		Name:      nu.Name,
		Email:     nu.Email,
		Role:      nu.Role,
		Status:    StatusActive,
		CreatedAt: now,
		UpdatedAt: now,
	}
	switch nu.Role {
	case RoleTeacher:
		usr.AssignedClasses = nu.AssignedClasses
		usr.Subjects = nu.Subjects
	case RoleParent:
		usr.Children = nu.Children
	}
	if err := usr.SetPassword(nu.Password); err != nil {
		return User{}, errors.Wrap(err, "setting password")
	}

	su, err := svc.users.Add(ctx, toStored(usr))
	if err != nil {
		return User{}, errors.Wrap(err, "creating user")
	}
	usr = su.user()

	if err := svc.linkChildren(ctx, usr); err != nil {
		return usr, err
	}
	svc.sendWelcomeMail(usr)
	return usr, nil
}

func (svc *Service) linkChildren(ctx context.Context, usr User) error {
	if !usr.IsParent() || svc.children == nil {
		return nil
	}
	for _, adm := range usr.Children {
		if err := svc.children.LinkParent(ctx, adm, usr.Email); err != nil && !core.IsNotFound(err) {
			return errors.Wrapf(err, "linking child %s", adm)
		}
	}
	return nil
}

// Import creates users with the given role one by one and reports the outcome of every row.
// Rows carry a single password, used as its own confirmation.
func (svc *Service) Import(ctx context.Context, role Role, rows []NewUser) core.ImportReport {
	report := core.NewImportReport(len(rows))
	for i, nu := range rows {
		nu.Role = role
		nu.PasswordConfirm = nu.Password
		err := nu.Validate(ctx, svc.validate, svc)
		if err == nil {
			_, err = svc.Create(ctx, nu)
		}
		report.Record(i, err)
	}
	report.Observe(core.Users)
	return *report
}

func (svc *Service) QueryAll(ctx context.Context) ([]User, error) {
	found, err := svc.users.All(ctx)
	if err != nil {
		return nil, err
	}
	return users(found), nil
}

func (svc *Service) QueryByRole(ctx context.Context, role Role) ([]User, error) {
	found, err := svc.users.Query(ctx, "role", core.OpEq, string(role))
	if err != nil {
		return nil, err
	}
	return users(found), nil
}

func (svc *Service) GetByID(ctx context.Context, id string) (User, error) {
	su, err := svc.users.Get(ctx, id)
	if err != nil {
		return User{}, err
	}
	return su.user(), nil
}

func (svc *Service) GetByEmail(ctx context.Context, email string) (User, error) {
	su, err := svc.users.First(ctx, "email", core.CleanString(email, true /* lower */))
	if err != nil {
		return User{}, err
	}
	return su.user(), nil
}

// Update applies a validated UpdateUser to the user with the given id.
func (svc *Service) Update(ctx context.Context, id string, uu UpdateUser) (User, error) {
	usr, err := svc.GetByID(ctx, id)
	if err != nil {
		return User{}, err
	}

	usr.Name = uu.Name
	usr.Email = uu.Email
	usr.Status = uu.Status
	if uu.Password != "" {
		if err := usr.SetPassword(uu.Password); err != nil {
			return User{}, errors.Wrap(err, "setting password")
		}
	}
	switch usr.Role {
	case RoleTeacher:
		if uu.AssignedClasses != nil {
			usr.AssignedClasses = uu.AssignedClasses
		}
		if uu.Subjects != nil {
			usr.Subjects = uu.Subjects
		}
	case RoleParent:
		if uu.Children != nil {
			usr.Children = uu.Children
		}
	}
	usr.UpdatedAt = core.NowFunc()

	if err := svc.users.Update(ctx, id, toStored(usr)); err != nil {
		return User{}, err
	}
	if err := svc.linkChildren(ctx, usr); err != nil {
		return usr, err
	}
	return usr, nil
}

// SetPassword sets a new password without applying the password policy. Used by operators.
func (svc *Service) SetPassword(ctx context.Context, usr User, pwd string) error {
	if err := usr.SetPassword(pwd); err != nil {
		return errors.Wrap(err, "setting password")
	}
	usr.UpdatedAt = core.NowFunc()
	return svc.users.Update(ctx, usr.ID, toStored(usr))
}

func (svc *Service) SetLastLogin(ctx context.Context, usr User) (User, error) {
	usr.LastLogin = core.NowFunc()
	if err := svc.users.Update(ctx, usr.ID, toStored(usr)); err != nil {
		return User{}, err
	}
	return usr, nil
}

func (svc *Service) Delete(ctx context.Context, id string) error {
	return svc.users.Delete(ctx, id)
}

// RequestPasswordReset emails a password reset link to the active user with the given email.
func (svc *Service) RequestPasswordReset(ctx context.Context, email string) error {
	usr, err := svc.GetByEmail(ctx, email)
	if err != nil {
		return err
	}
	if !usr.IsActive() {
		return errors.Wrap(core.ErrNotFound, "inactive user")
	}
	token := svc.tokens.makeToken(usr)
	svc.mailSvc.SendMessages(&core.EmailMessage{
		To:           []mail.Address{{Name: usr.Name, Address: usr.Email}},
		Subject:      "Password Reset",
		TemplateName: "password_reset",
		TemplateData: map[string]interface{}{"Name": usr.Name, "UID": EncodeUID(usr), "Token": token},
	})
	return nil
}

// ResetPassword sets the password of the user identified by a password reset link.
func (svc *Service) ResetPassword(ctx context.Context, rp ResetUserPassword) error {
	invalid := core.NewValidationError(ErrInvalidResetLink)

	id, err := decodeUID(rp.UID)
	if err != nil {
		return invalid
	}
	usr, err := svc.GetByID(ctx, id)
	if err != nil {
		if core.IsNotFound(err) {
			return invalid
		}
		return err
	}
	if err := svc.tokens.verifyToken(usr, rp.Token); err != nil {
		return invalid
	}
	return svc.SetPassword(ctx, usr, rp.Password)
}

func (svc *Service) sendWelcomeMail(usr User) {
	if svc.mailSvc == nil {
		return
	}
	svc.mailSvc.SendMessages(&core.EmailMessage{
		To:           []mail.Address{{Name: usr.Name, Address: usr.Email}},
		Subject:      "Welcome",
		TemplateName: "welcome",
		TemplateData: map[string]interface{}{"Name": usr.Name, "Role": string(usr.Role)},
	})
}

func users(stored []storedUser) []User {
	out := make([]User, 0, len(stored))
	for _, su := range stored {
		out = append(out, su.user())
	}
	return out
}

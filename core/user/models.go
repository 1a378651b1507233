package user

import (
	"context"
	"time"

	"github.com/go-playground/validator/v10"
	"golang.org/x/crypto/bcrypt"

	"github.com/zhuluh247/MySchool/core"
)

// Role of a User. A user holds exactly one role and it never changes.
type Role string

const (
	RoleProprietor Role = "proprietor"
	RoleTeacher    Role = "teacher"
	RoleParent     Role = "parent"
)

var AllRoles = []Role{RoleProprietor, RoleTeacher, RoleParent}

func (r Role) Valid() bool {
	for _, role := range AllRoles {
		if r == role {
			return true
		}
	}
	return false
}

type Status string

const (
	StatusActive   Status = "active"
	StatusInactive Status = "inactive"
)

type User struct {
	ID              string    `json:"id"`
	Name            string    `json:"name"`
	Email           string    `json:"email"`
	Role            Role      `json:"role"`
	Status          Status    `json:"status"`
	AssignedClasses []string  `json:"assignedClasses,omitempty"` // teachers
	Subjects        []string  `json:"subjects,omitempty"`        // teachers
	Children        []string  `json:"children,omitempty"`        // parents: admission numbers
	PasswordHash    []byte    `json:"-"`
	CreatedAt       time.Time `json:"createdAt"` // UTC
	UpdatedAt       time.Time `json:"updatedAt"` // UTC
	LastLogin       time.Time `json:"lastLogin"` // UTC
}

// storedUser is the persisted form of a User; the password hash never leaves the service otherwise.
type storedUser struct {
	User
	PasswordHash []byte `json:"passwordHash"`
}

func (su storedUser) user() User {
	usr := su.User
	usr.PasswordHash = su.PasswordHash
	return usr
}

func toStored(usr User) storedUser {
	return storedUser{User: usr, PasswordHash: usr.PasswordHash}
}

func (u *User) SetPassword(pwd string) error {
	hash, err := bcrypt.GenerateFromPassword([]byte(pwd), bcrypt.DefaultCost)
	if err != nil {
		return err
	}
	u.PasswordHash = hash
	return nil
}

func (u *User) CheckPassword(pwd string) error {
	return bcrypt.CompareHashAndPassword(u.PasswordHash, []byte(pwd))
}

func (u User) IsActive() bool     { return u.Status != StatusInactive }
func (u User) IsProprietor() bool { return u.Role == RoleProprietor }
func (u User) IsTeacher() bool    { return u.Role == RoleTeacher }
func (u User) IsParent() bool     { return u.Role == RoleParent }

// NewUser contains information needed to create a new User.
type NewUser struct {
	Name            string   `json:"name" validate:"required,notblank"`
	Email           string   `json:"email" validate:"required,email"`
	Password        string   `json:"password" validate:"required"`
	PasswordConfirm string   `json:"passwordConfirm" validate:"required,eqfield=Password"`
	Role            Role     `json:"role" validate:"required,userrole"`
	AssignedClasses []string `json:"assignedClasses" validate:"omitempty,dive,notblank"`
	Subjects        []string `json:"subjects" validate:"omitempty,dive,notblank"`
	Children        []string `json:"children" validate:"omitempty,dive,notblank"`
}

func (nu *NewUser) clean() {
	nu.Name = core.CleanString(nu.Name)
	nu.Email = core.CleanString(nu.Email, true /* lower */)
	nu.Role = Role(core.CleanString(string(nu.Role), true /* lower */))
	nu.AssignedClasses = cleanList(nu.AssignedClasses)
	nu.Subjects = cleanList(nu.Subjects)
	nu.Children = cleanList(nu.Children)
}

func (nu *NewUser) Validate(ctx context.Context, validate *validator.Validate, svc *Service) error {
	nu.clean()
	if err := validate.Struct(nu); err != nil {
		return err
	}
	return svc.CheckUniqueness(ctx, nu.Email)
}

// UpdateUser defines what information may be provided to modify an existing User.
// The role cannot be changed.
type UpdateUser struct {
	Name            string   `json:"name"`
	Email           string   `json:"email" validate:"omitempty,email"`
	Status          Status   `json:"status" validate:"omitempty,oneof=active inactive"`
	Password        string   `json:"password" validate:"omitempty"`
	PasswordConfirm string   `json:"passwordConfirm" validate:"required_with=Password,eqfield=Password"`
	AssignedClasses []string `json:"assignedClasses" validate:"omitempty,dive,notblank"`
	Subjects        []string `json:"subjects" validate:"omitempty,dive,notblank"`
	Children        []string `json:"children" validate:"omitempty,dive,notblank"`

	// set by Validate from the original user, for the password policy
	role Role
}

func (uu *UpdateUser) Validate(ctx context.Context, origUsr User, validate *validator.Validate, svc *Service) error {
	if name := core.CleanString(uu.Name); name != "" {
		uu.Name = name
	} else {
		uu.Name = origUsr.Name
	}

	if email := core.CleanString(uu.Email, true /* lower */); email != "" {
		uu.Email = email
	} else {
		uu.Email = origUsr.Email
	}

	if uu.Status == "" {
		uu.Status = origUsr.Status
	}
	uu.AssignedClasses = cleanList(uu.AssignedClasses)
	uu.Subjects = cleanList(uu.Subjects)
	uu.Children = cleanList(uu.Children)
	uu.role = origUsr.Role

	if err := validate.Struct(uu); err != nil {
		return err
	}
	return svc.CheckUniqueness(ctx, uu.Email, origUsr)
}

type ResetUserPassword struct {
	Token           string `json:"token,omitempty" validate:"required"`
	UID             string `json:"uid,omitempty" validate:"required"`
	Password        string `json:"password,omitempty" validate:"required"`
	PasswordConfirm string `json:"passwordConfirm,omitempty" validate:"required,eqfield=Password"`
}

func (rp ResetUserPassword) Validate(validate *validator.Validate) error { return validate.Struct(rp) }

func cleanList(items []string) []string {
	if items == nil {
		return nil
	}
	out := make([]string, 0, len(items))
	for _, it := range items {
		if it = core.CleanString(it); it != "" {
			out = append(out, it)
		}
	}
	return out
}

package student

import (
	"context"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"

	"github.com/zhuluh247/MySchool/core"
)

type Student struct {
	ID              string    `json:"id"`
	AdmissionNumber string    `json:"admissionNumber"`
	Name            string    `json:"name"`
	Class           string    `json:"class"`
	Parent          string    `json:"parent,omitempty"` // parent email
	Gender          string    `json:"gender"`
	DateOfBirth     string    `json:"dateOfBirth"` // YYYY-MM-DD
	CreatedAt       time.Time `json:"createdAt"`   // UTC
}

// NewStudent contains information needed to create a new Student.
type NewStudent struct {
	AdmissionNumber string `json:"admissionNumber" validate:"required,notblank"`
	Name            string `json:"name" validate:"required,notblank"`
	Class           string `json:"class" validate:"required,notblank"`
	Parent          string `json:"parent" validate:"omitempty,email"`
	Gender          string `json:"gender" validate:"required,oneof=Male Female"`
	DateOfBirth     string `json:"dateOfBirth" validate:"omitempty,isodate"`
}

func (ns *NewStudent) clean() {
	ns.AdmissionNumber = core.CleanString(ns.AdmissionNumber)
	ns.Name = core.CleanString(ns.Name)
	ns.Class = core.CleanString(ns.Class)
	ns.Parent = core.CleanString(ns.Parent, true /* lower */)
	ns.Gender = cleanGender(ns.Gender)
	ns.DateOfBirth = core.CleanString(ns.DateOfBirth)
}

func (ns *NewStudent) Validate(ctx context.Context, validate *validator.Validate, svc *Service) error {
	ns.clean()
	if err := validate.Struct(ns); err != nil {
		return err
	}
	return svc.CheckUniqueness(ctx, ns.AdmissionNumber)
}

// UpdateStudent defines what information may be provided to modify an existing Student.
// Empty fields keep their value. An empty, non nil Parent unlinks the parent.
type UpdateStudent struct {
	AdmissionNumber string  `json:"admissionNumber"`
	Name            string  `json:"name"`
	Class           string  `json:"class"`
	Parent          *string `json:"parent" validate:"omitempty,email"`
	Gender          string  `json:"gender" validate:"omitempty,oneof=Male Female"`
	DateOfBirth     string  `json:"dateOfBirth" validate:"omitempty,isodate"`
}

func (us *UpdateStudent) Validate(ctx context.Context, orig Student, validate *validator.Validate, svc *Service) error {
	us.AdmissionNumber = keep(core.CleanString(us.AdmissionNumber), orig.AdmissionNumber)
	us.Name = keep(core.CleanString(us.Name), orig.Name)
	us.Class = keep(core.CleanString(us.Class), orig.Class)
	us.Gender = keep(cleanGender(us.Gender), orig.Gender)
	us.DateOfBirth = keep(core.CleanString(us.DateOfBirth), orig.DateOfBirth)
	if us.Parent != nil {
		parent := core.CleanString(*us.Parent, true /* lower */)
		us.Parent = &parent
	}

	check := *us
	if check.Parent != nil && *check.Parent == "" {
		check.Parent = nil // unlink
	}
	if err := validate.Struct(&check); err != nil {
		return err
	}
	return svc.CheckUniqueness(ctx, us.AdmissionNumber, orig)
}

// cleanGender capitalises the gender: "MALE" and "male" become "Male".
func cleanGender(g string) string {
	g = core.CleanString(g, true /* lower */)
	if g == "" {
		return g
	}
	return strings.ToUpper(g[:1]) + g[1:]
}

func keep(val, orig string) string {
	if val == "" {
		return orig
	}
	return val
}

package class

import (
	"context"
	"time"

	"github.com/go-playground/validator/v10"

	"github.com/zhuluh247/MySchool/core"
)

type Class struct {
	ID        string    `json:"id"`
	Name      string    `json:"name"`
	Teacher   string    `json:"teacher,omitempty"` // teacher email
	CreatedAt time.Time `json:"createdAt"`
}

// ClassSubject assigns a subject to a class.
type ClassSubject struct {
	ID        string    `json:"id"`
	ClassName string    `json:"className"`
	SubjectID string    `json:"subjectId"`
	CreatedAt time.Time `json:"createdAt"`
}

// Summary is a Class with its number of students.
type Summary struct {
	Class
	StudentCount int `json:"studentCount"`
}

// NewClass is used both to create and to modify a Class.
type NewClass struct {
	Name    string `json:"name" validate:"required,notblank"`
	Teacher string `json:"teacher" validate:"omitempty,email"`
}

func (nc *NewClass) Validate(ctx context.Context, validate *validator.Validate, svc *Service, excluded ...Class) error {
	nc.Name = core.CleanString(nc.Name)
	nc.Teacher = core.CleanString(nc.Teacher, true /* lower */)
	if err := validate.Struct(nc); err != nil {
		return err
	}
	return svc.CheckUniqueness(ctx, nc.Name, excluded...)
}

type AssignSubjects struct {
	SubjectIDs []string `json:"subjectIds" validate:"required,min=1,dive,notblank"`
}

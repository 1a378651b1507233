package result

import (
	"context"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/pkg/errors"

	"github.com/zhuluh247/MySchool/core"
)

var (
	ErrUnknownStudent = errors.New("unknown student")
	ErrUnknownSubject = errors.New("unknown subject")
)

type Result struct {
	ID        string    `json:"id"`
	StudentID string    `json:"studentId"`
	SubjectID string    `json:"subjectId"`
	Subject   string    `json:"subject"` // subject name at write time
	Score     int       `json:"score"`
	Grade     Grade     `json:"grade"`
	Term      int       `json:"term"`
	Session   string    `json:"session"`
	Position  *int      `json:"position"` // set by ComputePositions only
	Teacher   string    `json:"teacher"`  // recorder email
	CreatedAt time.Time `json:"createdAt"`
	UpdatedAt time.Time `json:"updatedAt"`
}

// PositionText returns the position as an ordinal, or an empty string when not computed yet.
func (r Result) PositionText() string {
	if r.Position == nil {
		return ""
	}
	return PositionOrdinal(*r.Position)
}

// NewResult contains information needed to record a score.
type NewResult struct {
	StudentID string `json:"studentId" validate:"required,notblank"`
	SubjectID string `json:"subjectId" validate:"required,notblank"`
	Score     *int   `json:"score" validate:"required,min=0,max=100"`
	Term      int    `json:"term" validate:"required,term"`
	Session   string `json:"session" validate:"required,notblank"`
}

func (nr *NewResult) Validate(ctx context.Context, validate *validator.Validate, svc *Service) error {
	nr.StudentID = core.CleanString(nr.StudentID)
	nr.SubjectID = core.CleanString(nr.SubjectID)
	nr.Session = core.CleanString(nr.Session)
	if err := validate.Struct(nr); err != nil {
		return err
	}

	if _, err := svc.students.Get(ctx, nr.StudentID); err != nil {
		if core.IsNotFound(err) {
			return core.NewValidationError(ErrUnknownStudent, core.FieldError{Field: "studentId", Error: ErrUnknownStudent.Error()})
		}
		return err
	}
	if _, err := svc.subjects.Get(ctx, nr.SubjectID); err != nil {
		if core.IsNotFound(err) {
			return core.NewValidationError(ErrUnknownSubject, core.FieldError{Field: "subjectId", Error: ErrUnknownSubject.Error()})
		}
		return err
	}
	return nil
}

// UpdateResult changes the score of a Result. The grade follows.
type UpdateResult struct {
	Score *int `json:"score" validate:"required,min=0,max=100"`
}

func (ur UpdateResult) Validate(validate *validator.Validate) error { return validate.Struct(ur) }

// Filter selects results by class (through the student roster) and term. Zero values match everything.
type Filter struct {
	Class string `query:"class"`
	Term  int    `query:"term"`
}

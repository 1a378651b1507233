package behavior

import (
	"context"
	"fmt"
	"sort"
	"time"

	ut "github.com/go-playground/universal-translator"
	"github.com/go-playground/validator/v10"
	"github.com/pkg/errors"

	"github.com/zhuluh247/MySchool/core"
	"github.com/zhuluh247/MySchool/core/activity"
	"github.com/zhuluh247/MySchool/core/student"
)

type Type string

const (
	Positive Type = "positive"
	Negative Type = "negative"
)

var (
	ErrUnknownStudent = errors.New("unknown student")

	typeTag  = "behaviortype"
	typeText = "type must be positive or negative"
)

type Record struct {
	ID          string    `json:"id"`
	StudentID   string    `json:"studentId"`
	Type        Type      `json:"type"`
	Description string    `json:"description"`
	Date        string    `json:"date"`       // YYYY-MM-DD
	RecordedBy  string    `json:"recordedBy"` // email
	CreatedAt   time.Time `json:"createdAt"`
}

// Summary counts the behavior records of a student.
type Summary struct {
	StudentID string `json:"studentId"`
	Positive  int    `json:"positive"`
	Negative  int    `json:"negative"`
	Total     int    `json:"total"`
}

type NewRecord struct {
	StudentID   string `json:"studentId" validate:"required,notblank"`
	Type        Type   `json:"type" validate:"required,behaviortype"`
	Description string `json:"description" validate:"required,notblank"`
	Date        string `json:"date" validate:"omitempty,isodate"` // defaults to today
}

func (nr *NewRecord) Validate(ctx context.Context, validate *validator.Validate, svc *Service) error {
	nr.StudentID = core.CleanString(nr.StudentID)
	nr.Type = Type(core.CleanString(string(nr.Type), true /* lower */))
	nr.Description = core.CleanString(nr.Description)
	nr.Date = core.CleanString(nr.Date)
	if err := validate.Struct(nr); err != nil {
		return err
	}
	if _, err := svc.students.Get(ctx, nr.StudentID); err != nil {
		if core.IsNotFound(err) {
			return core.NewValidationError(ErrUnknownStudent, core.FieldError{Field: "studentId", Error: ErrUnknownStudent.Error()})
		}
		return err
	}
	return nil
}

// InitValidators registers the behavior validators and their translations.
func InitValidators(validate *validator.Validate, translator ut.Translator) {
	_ = validate.RegisterValidation(typeTag, func(fl validator.FieldLevel) bool {
		t := Type(fl.Field().String())
		return t == Positive || t == Negative
	})
	core.RegisterCustomTranslation(validate, translator, typeTag, typeText)
}

type Service struct {
	records    core.Store[Record]
	students   *student.Service
	activities *activity.Service
}

func NewService(gw core.Gateway, students *student.Service, activities *activity.Service) *Service {
	return &Service{
		records:    core.NewStore[Record](gw, core.Behavior),
		students:   students,
		activities: activities,
	}
}

// Create saves a validated NewRecord on behalf of the user with the given email.
func (svc *Service) Create(ctx context.Context, nr NewRecord, recordedBy, actor string) (Record, error) {
	st, err := svc.students.Get(ctx, nr.StudentID)
	if err != nil {
		return Record{}, err
	}
	date := nr.Date
	if date == "" {
		date = core.Today()
	}
	rec, err := svc.records.Add(ctx, Record{
		StudentID:   st.ID,
		Type:        nr.Type,
		Description: nr.Description,
		Date:        date,
		RecordedBy:  recordedBy,
		CreatedAt:   core.NowFunc(),
	})
	if err != nil {
		return Record{}, errors.Wrap(err, "creating behavior record")
	}
	if svc.activities != nil {
		svc.activities.Record(ctx, activity.IconBehavior, fmt.Sprintf("Behavior record added for %s", st.Name), actor)
	}
	return rec, nil
}

func (svc *Service) Get(ctx context.Context, id string) (Record, error) {
	return svc.records.Get(ctx, id)
}

// QueryAll returns every record, newest first.
func (svc *Service) QueryAll(ctx context.Context) ([]Record, error) {
	recs, err := svc.records.All(ctx)
	if err != nil {
		return nil, err
	}
	return newestFirst(recs), nil
}

// ForStudent returns the records of a student, newest first.
func (svc *Service) ForStudent(ctx context.Context, studentID string) ([]Record, error) {
	recs, err := svc.records.Query(ctx, "studentId", core.OpEq, studentID)
	if err != nil {
		return nil, err
	}
	return newestFirst(recs), nil
}

func (svc *Service) Summary(ctx context.Context, studentID string) (Summary, error) {
	recs, err := svc.records.Query(ctx, "studentId", core.OpEq, studentID)
	if err != nil {
		return Summary{}, err
	}
	return Summarize(studentID, recs), nil
}

func (svc *Service) Delete(ctx context.Context, id string) error {
	return svc.records.Delete(ctx, id)
}

// Summarize counts the records of studentID by type.
func Summarize(studentID string, recs []Record) Summary {
	s := Summary{StudentID: studentID}
	for _, r := range recs {
		if r.StudentID != studentID {
			continue
		}
		switch r.Type {
		case Positive:
			s.Positive++
		case Negative:
			s.Negative++
		}
		s.Total++
	}
	return s
}

// newestFirst sorts by date then creation time, most recent first.
func newestFirst(recs []Record) []Record {
	sort.SliceStable(recs, func(i, j int) bool {
		if recs[i].Date != recs[j].Date {
			return recs[i].Date > recs[j].Date
		}
		return recs[i].CreatedAt.After(recs[j].CreatedAt)
	})
	return recs
}

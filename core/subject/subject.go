package subject

import (
	"context"
	"fmt"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/pkg/errors"

	"github.com/zhuluh247/MySchool/core"
	"github.com/zhuluh247/MySchool/core/activity"
)

var ErrNameExists = errors.New("a subject with this name already exists")

type Subject struct {
	ID        string    `json:"id"`
	Name      string    `json:"name"`
	CreatedAt time.Time `json:"createdAt"`
}

// NewSubject is used both to create and to rename a Subject.
type NewSubject struct {
	Name string `json:"name" validate:"required,notblank"`
}

func (ns *NewSubject) Validate(ctx context.Context, validate *validator.Validate, svc *Service, excluded ...Subject) error {
	ns.Name = core.CleanString(ns.Name)
	if err := validate.Struct(ns); err != nil {
		return err
	}
	return svc.CheckUniqueness(ctx, ns.Name, excluded...)
}

type Service struct {
	subjects   core.Store[Subject]
	activities *activity.Service
	validate   *validator.Validate
}

func NewService(gw core.Gateway, activities *activity.Service, validate *validator.Validate) *Service {
	return &Service{
		subjects:   core.NewStore[Subject](gw, core.Subjects),
		activities: activities,
		validate:   validate,
	}
}

// CheckUniqueness checks that no subject other than excluded is called name.
func (svc *Service) CheckUniqueness(ctx context.Context, name string, excluded ...Subject) error {
	found, err := svc.subjects.Query(ctx, "name", core.OpEq, name)
	if err != nil {
		return errors.Wrap(err, "checking subject name uniqueness")
	}
	for _, sbj := range found {
		if len(excluded) > 0 && sbj.ID == excluded[0].ID {
			continue
		}
		return core.NewValidationError(ErrNameExists, core.FieldError{Field: "name", Error: ErrNameExists.Error()})
	}
	return nil
}

func (svc *Service) Create(ctx context.Context, ns NewSubject, actor string) (Subject, error) {
	sbj, err := svc.subjects.Add(ctx, Subject{Name: ns.Name, CreatedAt: core.NowFunc()})
	if err != nil {
		return Subject{}, errors.Wrap(err, "creating subject")
	}
	if svc.activities != nil {
		svc.activities.Record(ctx, activity.IconSubject, fmt.Sprintf("New subject added: %s", sbj.Name), actor)
	}
	return sbj, nil
}

// Import creates subjects one by one and reports the outcome of every row.
func (svc *Service) Import(ctx context.Context, rows []NewSubject, actor string) core.ImportReport {
	report := core.NewImportReport(len(rows))
	for i, ns := range rows {
		err := ns.Validate(ctx, svc.validate, svc)
		if err == nil {
			_, err = svc.Create(ctx, ns, actor)
		}
		report.Record(i, err)
	}
	report.Observe(core.Subjects)
	return *report
}

func (svc *Service) Get(ctx context.Context, id string) (Subject, error) {
	return svc.subjects.Get(ctx, id)
}

func (svc *Service) QueryAll(ctx context.Context) ([]Subject, error) {
	return svc.subjects.All(ctx)
}

// Rename applies a validated NewSubject to the subject with the given id.
func (svc *Service) Rename(ctx context.Context, id string, ns NewSubject) (Subject, error) {
	sbj, err := svc.Get(ctx, id)
	if err != nil {
		return Subject{}, err
	}
	sbj.Name = ns.Name
	if err := svc.subjects.Update(ctx, id, sbj); err != nil {
		return Subject{}, err
	}
	return sbj, nil
}

func (svc *Service) Delete(ctx context.Context, id string) error {
	return svc.subjects.Delete(ctx, id)
}

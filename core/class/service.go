package class

import (
	"context"
	"fmt"

	"github.com/go-playground/validator/v10"
	"github.com/pkg/errors"

	"github.com/zhuluh247/MySchool/core"
	"github.com/zhuluh247/MySchool/core/activity"
	"github.com/zhuluh247/MySchool/core/student"
	"github.com/zhuluh247/MySchool/core/subject"
)

var (
	ErrNameExists     = errors.New("a class with this name already exists")
	ErrUnknownSubject = errors.New("unknown subject")
)

type Service struct {
	classes       core.Store[Class]
	classSubjects core.Store[ClassSubject]
	subjects      *subject.Service
	students      *student.Service
	activities    *activity.Service
	validate      *validator.Validate
}

func NewService(gw core.Gateway, subjects *subject.Service, students *student.Service, activities *activity.Service, validate *validator.Validate) *Service {
	return &Service{
		classes:       core.NewStore[Class](gw, core.Classes),
		classSubjects: core.NewStore[ClassSubject](gw, core.ClassSubjects),
		subjects:      subjects,
		students:      students,
		activities:    activities,
		validate:      validate,
	}
}

// CheckUniqueness checks that no class other than excluded is called name.
func (svc *Service) CheckUniqueness(ctx context.Context, name string, excluded ...Class) error {
	found, err := svc.classes.Query(ctx, "name", core.OpEq, name)
	if err != nil {
		return errors.Wrap(err, "checking class name uniqueness")
	}
	for _, cls := range found {
		if len(excluded) > 0 && cls.ID == excluded[0].ID {
			continue
		}
		return core.NewValidationError(ErrNameExists, core.FieldError{Field: "name", Error: ErrNameExists.Error()})
	}
	return nil
}

func (svc *Service) Create(ctx context.Context, nc NewClass, actor string) (Class, error) {
	cls, err := svc.classes.Add(ctx, Class{Name: nc.Name, Teacher: nc.Teacher, CreatedAt: core.NowFunc()})
	if err != nil {
		return Class{}, errors.Wrap(err, "creating class")
	}
	if svc.activities != nil {
		svc.activities.Record(ctx, activity.IconClass, fmt.Sprintf("New class added: %s", cls.Name), actor)
	}
	return cls, nil
}

// Import creates classes one by one and reports the outcome of every row.
func (svc *Service) Import(ctx context.Context, rows []NewClass, actor string) core.ImportReport {
	report := core.NewImportReport(len(rows))
	for i, nc := range rows {
		err := nc.Validate(ctx, svc.validate, svc)
		if err == nil {
			_, err = svc.Create(ctx, nc, actor)
		}
		report.Record(i, err)
	}
	report.Observe(core.Classes)
	return *report
}

func (svc *Service) Get(ctx context.Context, id string) (Class, error) {
	return svc.classes.Get(ctx, id)
}

func (svc *Service) GetByName(ctx context.Context, name string) (Class, error) {
	return svc.classes.First(ctx, "name", name)
}

func (svc *Service) QueryAll(ctx context.Context) ([]Class, error) {
	return svc.classes.All(ctx)
}

// Summaries returns every class with its number of students.
func (svc *Service) Summaries(ctx context.Context) ([]Summary, error) {
	classes, err := svc.classes.All(ctx)
	if err != nil {
		return nil, err
	}
	counts, err := svc.students.CountByClass(ctx)
	if err != nil {
		return nil, err
	}
	out := make([]Summary, 0, len(classes))
	for _, cls := range classes {
		out = append(out, Summary{Class: cls, StudentCount: counts[cls.Name]})
	}
	return out, nil
}

// Update applies a validated NewClass to the class with the given id.
// Subject assignments follow a renamed class.
func (svc *Service) Update(ctx context.Context, id string, nc NewClass) (Class, error) {
	cls, err := svc.Get(ctx, id)
	if err != nil {
		return Class{}, err
	}
	oldName := cls.Name
	cls.Name = nc.Name
	cls.Teacher = nc.Teacher
	if err := svc.classes.Update(ctx, id, cls); err != nil {
		return Class{}, err
	}

	if oldName != cls.Name {
		assigned, err := svc.classSubjects.Query(ctx, "className", core.OpEq, oldName)
		if err != nil {
			return cls, err
		}
		for _, cs := range assigned {
			cs.ClassName = cls.Name
			if err := svc.classSubjects.Update(ctx, cs.ID, cs); err != nil {
				return cls, err
			}
		}
	}
	return cls, nil
}

// Delete deletes the class and its subject assignments. Students keep their class name.
func (svc *Service) Delete(ctx context.Context, id string) error {
	cls, err := svc.Get(ctx, id)
	if err != nil {
		return err
	}
	if err := svc.clearSubjects(ctx, cls.Name); err != nil {
		return err
	}
	return svc.classes.Delete(ctx, id)
}

// AssignSubjects replaces the subjects assigned to the class with the given ones.
func (svc *Service) AssignSubjects(ctx context.Context, className string, as AssignSubjects) ([]ClassSubject, error) {
	if _, err := svc.GetByName(ctx, className); err != nil {
		return nil, err
	}

	ids := make([]string, 0, len(as.SubjectIDs))
	seen := make(map[string]bool)
	for _, id := range as.SubjectIDs {
		if seen[id] {
			continue
		}
		seen[id] = true
		if _, err := svc.subjects.Get(ctx, id); err != nil {
			if core.IsNotFound(err) {
				return nil, core.NewValidationError(ErrUnknownSubject,
					core.FieldError{Field: "subjectIds", Error: fmt.Sprintf("%s: %s", ErrUnknownSubject, id)})
			}
			return nil, err
		}
		ids = append(ids, id)
	}

	if err := svc.clearSubjects(ctx, className); err != nil {
		return nil, err
	}
	now := core.NowFunc()
	out := make([]ClassSubject, 0, len(ids))
	for _, id := range ids {
		cs, err := svc.classSubjects.Add(ctx, ClassSubject{ClassName: className, SubjectID: id, CreatedAt: now})
		if err != nil {
			return out, errors.Wrap(err, "assigning subject")
		}
		out = append(out, cs)
	}
	return out, nil
}

// Subjects returns the subjects assigned to the class. Deleted subjects are skipped.
func (svc *Service) Subjects(ctx context.Context, className string) ([]subject.Subject, error) {
	assigned, err := svc.classSubjects.Query(ctx, "className", core.OpEq, className)
	if err != nil {
		return nil, err
	}
	out := make([]subject.Subject, 0, len(assigned))
	for _, cs := range assigned {
		sbj, err := svc.subjects.Get(ctx, cs.SubjectID)
		if core.IsNotFound(err) {
			continue
		}
		if err != nil {
			return nil, err
		}
		out = append(out, sbj)
	}
	return out, nil
}

func (svc *Service) clearSubjects(ctx context.Context, className string) error {
	assigned, err := svc.classSubjects.Query(ctx, "className", core.OpEq, className)
	if err != nil {
		return err
	}
	for _, cs := range assigned {
		if err := svc.classSubjects.Delete(ctx, cs.ID); err != nil {
			return errors.Wrap(err, "clearing class subjects")
		}
	}
	return nil
}

package student

import (
	"context"
	"fmt"
	"strings"

	"github.com/go-playground/validator/v10"
	"github.com/pkg/errors"

	"github.com/zhuluh247/MySchool/core"
	"github.com/zhuluh247/MySchool/core/activity"
)

var ErrAdmissionNumberExists = errors.New("a student with this admission number already exists")

type Service struct {
	students   core.Store[Student]
	activities *activity.Service
	validate   *validator.Validate
}

func NewService(gw core.Gateway, activities *activity.Service, validate *validator.Validate) *Service {
	return &Service{
		students:   core.NewStore[Student](gw, core.Students),
		activities: activities,
		validate:   validate,
	}
}

// CheckUniqueness checks that no student other than excluded holds the admission number.
func (svc *Service) CheckUniqueness(ctx context.Context, admissionNumber string, excluded ...Student) error {
	found, err := svc.students.Query(ctx, "admissionNumber", core.OpEq, admissionNumber)
	if err != nil {
		return errors.Wrap(err, "checking admission number uniqueness")
	}
	for _, st := range found {
		if len(excluded) > 0 && st.ID == excluded[0].ID {
			continue
		}
		return core.NewValidationError(ErrAdmissionNumberExists,
			core.FieldError{Field: "admissionNumber", Error: ErrAdmissionNumberExists.Error()})
	}
	return nil
}

// Create creates a validated NewStudent and records the activity on behalf of actor.
func (svc *Service) Create(ctx context.Context, ns NewStudent, actor string) (Student, error) {
	st, err := svc.students.Add(ctx, Student{
		AdmissionNumber: ns.AdmissionNumber,
		Name:            ns.Name,
		Class:           ns.Class,
		Parent:          ns.Parent,
		Gender:          ns.Gender,
		DateOfBirth:     ns.DateOfBirth,
		CreatedAt:       core.NowFunc(),
	})
	if err != nil {
		return Student{}, errors.Wrap(err, "creating student")
	}
	if svc.activities != nil {
		svc.activities.Record(ctx, activity.IconStudent, fmt.Sprintf("New student added: %s", st.Name), actor)
	}
	return st, nil
}

// Import creates students one by one and reports the outcome of every row.
func (svc *Service) Import(ctx context.Context, rows []NewStudent, actor string) core.ImportReport {
	report := core.NewImportReport(len(rows))
	for i, ns := range rows {
		err := ns.Validate(ctx, svc.validate, svc)
		if err == nil {
			_, err = svc.Create(ctx, ns, actor)
		}
		report.Record(i, err)
	}
	report.Observe(core.Students)
	return *report
}

func (svc *Service) Get(ctx context.Context, id string) (Student, error) {
	return svc.students.Get(ctx, id)
}

func (svc *Service) QueryAll(ctx context.Context) ([]Student, error) {
	return svc.students.All(ctx)
}

func (svc *Service) ByClass(ctx context.Context, class string) ([]Student, error) {
	return svc.students.Query(ctx, "class", core.OpEq, class)
}

func (svc *Service) ByParent(ctx context.Context, parentEmail string) ([]Student, error) {
	return svc.students.Query(ctx, "parent", core.OpEq, parentEmail)
}

func (svc *Service) ByAdmissionNumber(ctx context.Context, admissionNumber string) (Student, error) {
	return svc.students.First(ctx, "admissionNumber", admissionNumber)
}

// Search returns the students whose name, admission number or class contains term, ignoring case.
// An empty term matches every student.
func (svc *Service) Search(ctx context.Context, term string) ([]Student, error) {
	all, err := svc.students.All(ctx)
	if err != nil {
		return nil, err
	}
	return Search(all, term), nil
}

// Search filters students in memory, see Service.Search.
func Search(students []Student, term string) []Student {
	term = strings.ToLower(core.CleanString(term))
	if term == "" {
		return students
	}
	out := make([]Student, 0)
	for _, st := range students {
		if strings.Contains(strings.ToLower(st.Name), term) ||
			strings.Contains(strings.ToLower(st.AdmissionNumber), term) ||
			strings.Contains(strings.ToLower(st.Class), term) {
			out = append(out, st)
		}
	}
	return out
}

// Update applies a validated UpdateStudent to the student with the given id.
func (svc *Service) Update(ctx context.Context, id string, us UpdateStudent) (Student, error) {
	st, err := svc.Get(ctx, id)
	if err != nil {
		return Student{}, err
	}
	st.AdmissionNumber = us.AdmissionNumber
	st.Name = us.Name
	st.Class = us.Class
	st.Gender = us.Gender
	st.DateOfBirth = us.DateOfBirth
	if us.Parent != nil {
		st.Parent = *us.Parent
	}
	if err := svc.students.Update(ctx, id, st); err != nil {
		return Student{}, err
	}
	return st, nil
}

func (svc *Service) Delete(ctx context.Context, id string) error {
	return svc.students.Delete(ctx, id)
}

// CountByClass returns the number of students per class name.
func (svc *Service) CountByClass(ctx context.Context) (map[string]int, error) {
	all, err := svc.students.All(ctx)
	if err != nil {
		return nil, err
	}
	counts := make(map[string]int)
	for _, st := range all {
		counts[st.Class]++
	}
	return counts, nil
}

// LinkParent sets parentEmail as the parent of the student with the given admission number.
func (svc *Service) LinkParent(ctx context.Context, admissionNumber, parentEmail string) error {
	st, err := svc.ByAdmissionNumber(ctx, core.CleanString(admissionNumber))
	if err != nil {
		return err
	}
	st.Parent = parentEmail
	return svc.students.Update(ctx, st.ID, st)
}

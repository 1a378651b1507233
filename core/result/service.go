package result

import (
	"context"
	"fmt"
	"sort"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/pkg/errors"
	"golang.org/x/sync/errgroup"

	"github.com/zhuluh247/MySchool/core"
	"github.com/zhuluh247/MySchool/core/activity"
	"github.com/zhuluh247/MySchool/core/student"
	"github.com/zhuluh247/MySchool/core/subject"
)

// latestCount is the number of latest results shown per child.
const latestCount = 3

type (
	// RankReport is the outcome of a position computation. Failed rows keep their previous position.
	RankReport struct {
		Class     string         `json:"class"`
		Term      int            `json:"term"`
		Standings []Standing     `json:"standings"`
		Positions map[string]int `json:"positions"`
		Updated   int            `json:"updated"`
		Failed    int            `json:"failed"`
	}

	TermReport struct {
		Session      string   `json:"session"`
		Term         int      `json:"term"`
		Results      []Result `json:"results"`
		Average      int      `json:"average"`
		SubjectCount int      `json:"subjectCount"`
		Position     *int     `json:"position"`
		PositionText string   `json:"positionText"`
	}

	// ReportCard gathers all the results of a student, term by term within each session.
	ReportCard struct {
		Student       student.Student `json:"student"`
		Terms         []TermReport    `json:"terms"`
		Average       int             `json:"average"`
		TotalSubjects int             `json:"totalSubjects"`
	}

	ChildOverview struct {
		Student       student.Student `json:"student"`
		AverageScore  int             `json:"averageScore"`
		TotalResults  int             `json:"totalResults"`
		LatestResults []Result        `json:"latestResults"`
	}
)

type Service struct {
	results    core.Store[Result]
	students   *student.Service
	subjects   *subject.Service
	activities *activity.Service
	logger     core.Logger
	validate   *validator.Validate
}

func NewService(gw core.Gateway, students *student.Service, subjects *subject.Service, activities *activity.Service,
	logger core.Logger, validate *validator.Validate) *Service {
	return &Service{
		results:    core.NewStore[Result](gw, core.Results),
		students:   students,
		subjects:   subjects,
		activities: activities,
		logger:     logger,
		validate:   validate,
	}
}

// Create records a validated NewResult on behalf of the teacher. The grade is derived from the score.
func (svc *Service) Create(ctx context.Context, nr NewResult, teacher, actor string) (Result, error) {
	st, err := svc.students.Get(ctx, nr.StudentID)
	if err != nil {
		return Result{}, err
	}
	sbj, err := svc.subjects.Get(ctx, nr.SubjectID)
	if err != nil {
		return Result{}, err
	}

	now := core.NowFunc()
	res, err := svc.results.Add(ctx, Result{
		StudentID: st.ID,
		SubjectID: sbj.ID,
		Subject:   sbj.Name,
		Score:     *nr.Score,
		Grade:     GradeOf(*nr.Score),
		Term:      nr.Term,
		Session:   nr.Session,
		Teacher:   teacher,
		CreatedAt: now,
		UpdatedAt: now,
	})
	if err != nil {
		return Result{}, errors.Wrap(err, "creating result")
	}
	if svc.activities != nil {
		svc.activities.Record(ctx, activity.IconResult, fmt.Sprintf("New result added for %s", st.Name), actor)
	}
	return res, nil
}

func (svc *Service) Get(ctx context.Context, id string) (Result, error) {
	return svc.results.Get(ctx, id)
}

// Update sets a new score and the matching grade. The position is left for the next computation.
func (svc *Service) Update(ctx context.Context, id string, ur UpdateResult) (Result, error) {
	res, err := svc.Get(ctx, id)
	if err != nil {
		return Result{}, err
	}
	res.Score = *ur.Score
	res.Grade = GradeOf(res.Score)
	res.UpdatedAt = core.NowFunc()
	if err := svc.results.Update(ctx, id, res); err != nil {
		return Result{}, err
	}
	return res, nil
}

func (svc *Service) Delete(ctx context.Context, id string) error {
	return svc.results.Delete(ctx, id)
}

func (svc *Service) QueryAll(ctx context.Context) ([]Result, error) {
	return svc.results.All(ctx)
}

// Query returns the results matching the filter.
func (svc *Service) Query(ctx context.Context, f Filter) ([]Result, error) {
	var (
		results []Result
		err     error
	)
	if f.Term > 0 {
		results, err = svc.results.Query(ctx, "term", core.OpEq, f.Term)
	} else {
		results, err = svc.results.All(ctx)
	}
	if err != nil || f.Class == "" {
		return results, err
	}

	roster, err := svc.students.ByClass(ctx, f.Class)
	if err != nil {
		return nil, err
	}
	inClass := make(map[string]bool, len(roster))
	for _, st := range roster {
		inClass[st.ID] = true
	}
	out := make([]Result, 0, len(results))
	for _, r := range results {
		if inClass[r.StudentID] {
			out = append(out, r)
		}
	}
	return out, nil
}

func (svc *Service) ForStudent(ctx context.Context, studentID string) ([]Result, error) {
	return svc.results.Query(ctx, "studentId", core.OpEq, studentID)
}

// Standings ranks the cohort without writing anything.
func (svc *Service) Standings(ctx context.Context, class string, term int) ([]Standing, error) {
	roster, err := svc.students.ByClass(ctx, class)
	if err != nil {
		return nil, err
	}
	results, err := svc.results.Query(ctx, "term", core.OpEq, term)
	if err != nil {
		return nil, err
	}
	return Rank(results, roster, class, term), nil
}

// ComputePositions ranks the cohort of class and term and writes each student's position on
// every one of its results for the term. Rows are updated one by one: a failed row is counted
// and skipped, and running the computation again repairs it.
func (svc *Service) ComputePositions(ctx context.Context, class string, term int, actor string) (RankReport, error) {
	start := time.Now()
	defer func() { rankDuration.Observe(time.Since(start).Seconds()) }()

	roster, err := svc.students.ByClass(ctx, class)
	if err != nil {
		return RankReport{}, err
	}
	results, err := svc.results.Query(ctx, "term", core.OpEq, term)
	if err != nil {
		return RankReport{}, err
	}

	standings := Rank(results, roster, class, term)
	report := RankReport{Class: class, Term: term, Standings: standings, Positions: make(map[string]int, len(standings))}
	for _, s := range standings {
		report.Positions[s.StudentID] = s.Position
	}

	now := core.NowFunc()
	for _, r := range results {
		pos, ok := report.Positions[r.StudentID]
		if !ok {
			continue
		}
		r.Position = &pos
		r.UpdatedAt = now
		if err := svc.results.Update(ctx, r.ID, r); err != nil {
			report.Failed++
			svc.logger.Error(fmt.Sprintf("writing position of result %s: %v", r.ID, err), err)
			continue
		}
		report.Updated++
	}
	positionWrites.WithLabelValues("updated").Add(float64(report.Updated))
	positionWrites.WithLabelValues("failed").Add(float64(report.Failed))

	if svc.activities != nil && len(standings) > 0 {
		svc.activities.Record(ctx, activity.IconPositions, fmt.Sprintf("Positions updated for %s - Term %d", class, term), actor)
	}
	return report, nil
}

// Report builds the report card of a student.
func (svc *Service) Report(ctx context.Context, studentID string) (ReportCard, error) {
	st, err := svc.students.Get(ctx, studentID)
	if err != nil {
		return ReportCard{}, err
	}
	results, err := svc.ForStudent(ctx, studentID)
	if err != nil {
		return ReportCard{}, err
	}

	type termKey struct {
		session string
		term    int
	}
	byTerm := make(map[termKey][]Result)
	for _, r := range results {
		k := termKey{r.Session, r.Term}
		byTerm[k] = append(byTerm[k], r)
	}
	keys := make([]termKey, 0, len(byTerm))
	for k := range byTerm {
		keys = append(keys, k)
	}
	sort.Slice(keys, func(i, j int) bool {
		if keys[i].session != keys[j].session {
			return keys[i].session < keys[j].session
		}
		return keys[i].term < keys[j].term
	})

	card := ReportCard{Student: st, Terms: make([]TermReport, 0, len(keys)), Average: AverageOf(results), TotalSubjects: len(results)}
	for _, k := range keys {
		rs := byTerm[k]
		tr := TermReport{Session: k.session, Term: k.term, Results: rs, Average: AverageOf(rs), SubjectCount: len(rs)}
		for _, r := range rs {
			if r.Position != nil {
				tr.Position, tr.PositionText = r.Position, r.PositionText()
				break
			}
		}
		card.Terms = append(card.Terms, tr)
	}
	return card, nil
}

// ChildrenOverview summarises the results of each of the given students, concurrently.
func (svc *Service) ChildrenOverview(ctx context.Context, children []student.Student) ([]ChildOverview, error) {
	out := make([]ChildOverview, len(children))
	g, ctx := errgroup.WithContext(ctx)
	for i, st := range children {
		g.Go(func() error {
			results, err := svc.ForStudent(ctx, st.ID)
			if err != nil {
				return err
			}
			latest := results
			if len(latest) > latestCount {
				latest = latest[len(latest)-latestCount:]
			}
			out[i] = ChildOverview{Student: st, AverageScore: AverageOf(results), TotalResults: len(results), LatestResults: latest}
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, errors.Wrap(err, "loading children results")
	}
	return out, nil
}

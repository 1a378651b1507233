package dashboard

import (
	"context"

	"github.com/pkg/errors"
	"golang.org/x/sync/errgroup"

	"github.com/zhuluh247/MySchool/core"
	"github.com/zhuluh247/MySchool/core/activity"
	"github.com/zhuluh247/MySchool/core/user"
)

type Stats struct {
	Students   int              `json:"totalStudents"`
	Teachers   int              `json:"totalTeachers"`
	Subjects   int              `json:"totalSubjects"`
	Results    int              `json:"totalResults"`
	Activities []activity.Entry `json:"recentActivities"`
}

type Service struct {
	gw         core.Gateway
	activities *activity.Service
}

func NewService(gw core.Gateway, activities *activity.Service) *Service {
	return &Service{gw: gw, activities: activities}
}

// Stats loads the dashboard totals and the latest activities concurrently.
func (svc *Service) Stats(ctx context.Context) (Stats, error) {
	var stats Stats
	g, ctx := errgroup.WithContext(ctx)

	count := func(dst *int, coll core.Collection) func() error {
		return func() error {
			recs, err := svc.gw.GetAll(ctx, coll)
			if err != nil {
				return err
			}
			*dst = len(recs)
			return nil
		}
	}
	g.Go(count(&stats.Students, core.Students))
	g.Go(count(&stats.Subjects, core.Subjects))
	g.Go(count(&stats.Results, core.Results))
	g.Go(func() error {
		teachers, err := svc.gw.Query(ctx, core.Users, core.Where("role", core.OpEq, string(user.RoleTeacher)))
		if err != nil {
			return err
		}
		stats.Teachers = len(teachers)
		return nil
	})
	g.Go(func() error {
		recent, err := svc.activities.Recent(ctx, activity.DefaultRecent)
		if err != nil {
			return err
		}
		stats.Activities = recent
		return nil
	})

	if err := g.Wait(); err != nil {
		return Stats{}, errors.Wrap(err, "loading dashboard")
	}
	return stats, nil
}

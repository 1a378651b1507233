package activity

import (
	"context"
	"fmt"
	"sort"
	"time"

	"github.com/pkg/errors"

	"github.com/zhuluh247/MySchool/core"
)

// Icons shown next to feed entries.
const (
	IconStudent   = "fa-user-graduate"
	IconClass     = "fa-chalkboard"
	IconSubject   = "fa-book"
	IconResult    = "fa-upload"
	IconBehavior  = "fa-user-check"
	IconDocument  = "fa-file"
	IconPositions = "fa-trophy"
)

// DefaultRecent is the number of entries shown on the dashboard.
const DefaultRecent = 5

type Activity struct {
	ID        string    `json:"id"`
	Icon      string    `json:"icon"`
	Text      string    `json:"text"`
	User      string    `json:"user"`
	CreatedAt time.Time `json:"createdAt"`
}

// Entry is an Activity with its relative time label.
type Entry struct {
	Activity
	TimeAgo string `json:"timeAgo"`
}

// Service appends to and reads the activity feed. The feed is append-only.
type Service struct {
	activities core.Store[Activity]
	logger     core.Logger
}

func NewService(gw core.Gateway, logger core.Logger) *Service {
	return &Service{activities: core.NewStore[Activity](gw, core.Activities), logger: logger}
}

func (svc *Service) Log(ctx context.Context, icon, text, user string) (Activity, error) {
	act, err := svc.activities.Add(ctx, Activity{Icon: icon, Text: text, User: user, CreatedAt: core.NowFunc()})
	return act, errors.Wrap(err, "logging activity")
}

// Record logs an activity, reporting failures to the logger only.
func (svc *Service) Record(ctx context.Context, icon, text, user string) {
	if _, err := svc.Log(ctx, icon, text, user); err != nil {
		svc.logger.Error(fmt.Sprintf("recording activity %q: %v", text, err), err)
	}
}

// Recent returns the n most recent activities, newest first.
func (svc *Service) Recent(ctx context.Context, n int) ([]Entry, error) {
	all, err := svc.activities.All(ctx)
	if err != nil {
		return nil, err
	}
	// newest insertion first on equal timestamps
	for i, j := 0, len(all)-1; i < j; i, j = i+1, j-1 {
		all[i], all[j] = all[j], all[i]
	}
	sort.SliceStable(all, func(i, j int) bool { return all[i].CreatedAt.After(all[j].CreatedAt) })
	if n >= 0 && len(all) > n {
		all = all[:n]
	}

	now := core.NowFunc()
	entries := make([]Entry, 0, len(all))
	for _, act := range all {
		entries = append(entries, Entry{Activity: act, TimeAgo: TimeAgo(act.CreatedAt, now)})
	}
	return entries, nil
}

// TimeAgo labels t relative to now.
func TimeAgo(t, now time.Time) string {
	seconds := int(now.Sub(t).Seconds())
	switch {
	case seconds < 60:
		return "Just now"
	case seconds < 3600:
		return plural(seconds/60, "minute")
	case seconds < 86400:
		return plural(seconds/3600, "hour")
	case seconds < 604800:
		return plural(seconds/86400, "day")
	}
	return t.Format("Jan 2, 2006")
}

func plural(n int, unit string) string {
	if n == 1 {
		return fmt.Sprintf("1 %s ago", unit)
	}
	return fmt.Sprintf("%d %ss ago", n, unit)
}

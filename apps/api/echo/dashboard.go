package echoapi

import (
	"net/http"
	"strconv"

	"github.com/labstack/echo/v4"
	"github.com/pkg/errors"

	"github.com/zhuluh247/MySchool/core/activity"
	"github.com/zhuluh247/MySchool/core/dashboard"
)

type dashboardApi struct {
	svc        *dashboard.Service
	activities *activity.Service
}

func registerDashboardAPI(g *echo.Group, s *Server) {
	api := dashboardApi{svc: s.deps.DashboardSvc, activities: s.deps.ActivitySvc}

	g.GET("/dashboard", api.stats)
	g.GET("/activities", api.recent)
}

func (api *dashboardApi) stats(ctx echo.Context) error {
	stats, err := api.svc.Stats(ctx.Request().Context())
	if err != nil {
		return errors.Wrap(err, "loading dashboard stats")
	}
	return ctx.JSON(http.StatusOK, stats)
}

// recent returns the latest activities, five unless ?limit= says otherwise.
func (api *dashboardApi) recent(ctx echo.Context) error {
	limit := activity.DefaultRecent
	if l := ctx.QueryParam("limit"); l != "" {
		n, err := strconv.Atoi(l)
		if err != nil || n < 1 {
			return echo.NewHTTPError(http.StatusBadRequest, "limit must be a positive integer")
		}
		limit = n
	}

	entries, err := api.activities.Recent(ctx.Request().Context(), limit)
	if err != nil {
		return errors.Wrap(err, "querying activities")
	}
	return ctx.JSON(http.StatusOK, entries)
}

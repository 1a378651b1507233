package echoapi

import (
	"strconv"

	"github.com/labstack/echo/v4"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var httpRequests = promauto.NewCounterVec(prometheus.CounterOpts{
	Name: "myschool_http_requests_total",
	Help: "HTTP requests by method, route and status code.",
}, []string{"method", "route", "code"})

// countRequests counts every request by its route pattern.
func countRequests(next echo.HandlerFunc) echo.HandlerFunc {
	return func(ctx echo.Context) error {
		if err := next(ctx); err != nil {
			ctx.Error(err)
		}
		code := strconv.Itoa(ctx.Response().Status)
		httpRequests.WithLabelValues(ctx.Request().Method, ctx.Path(), code).Inc()
		return nil
	}
}

func metricsHandler() echo.HandlerFunc {
	return echo.WrapHandler(promhttp.Handler())
}

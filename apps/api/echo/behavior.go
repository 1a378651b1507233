package echoapi

import (
	"net/http"

	"github.com/go-playground/validator/v10"
	"github.com/labstack/echo/v4"
	"github.com/pkg/errors"

	"github.com/zhuluh247/MySchool/core"
	"github.com/zhuluh247/MySchool/core/access"
	"github.com/zhuluh247/MySchool/core/behavior"
	"github.com/zhuluh247/MySchool/core/student"
)

type behaviorApi struct {
	svc      *behavior.Service
	students *student.Service
	validate *validator.Validate
}

func registerBehaviorAPI(g *echo.Group, s *Server) {
	api := behaviorApi{svc: s.deps.BehaviorSvc, students: s.deps.StudentSvc, validate: s.deps.Validate}

	bg := g.Group("/behavior")
	bg.GET("", api.query, requirePermission(access.KindBehavior, access.ActionView))
	bg.POST("", api.create, requirePermission(access.KindBehavior, access.ActionCreate))
	bg.DELETE("/:id", api.destroy, requirePermission(access.KindBehavior, access.ActionDelete))
}

// Handlers

func (api *behaviorApi) query(ctx echo.Context) error {
	recs, err := api.svc.QueryAll(ctx.Request().Context())
	if err != nil {
		return errors.Wrap(err, "querying behavior records")
	}
	roster, err := api.students.QueryAll(ctx.Request().Context())
	if err != nil {
		return errors.Wrap(err, "querying students")
	}
	return ctx.JSON(http.StatusOK, access.VisibleBehavior(contextPolicy(ctx), recs, roster))
}

// create records a behavior entry. Parents may only record entries about their own children.
func (api *behaviorApi) create(ctx echo.Context) error {
	var data behavior.NewRecord
	if err := ctx.Bind(&data); err != nil {
		return errors.Wrap(err, "binding to NewRecord")
	}
	if err := data.Validate(ctx.Request().Context(), api.validate, api.svc); err != nil {
		return err
	}

	st, err := api.students.Get(ctx.Request().Context(), data.StudentID)
	if err != nil {
		return errors.Wrap(err, "finding student by ID")
	}
	if !access.CanSeeStudent(contextPolicy(ctx), st) {
		return errHttpForbidden
	}

	rec, err := api.svc.Create(ctx.Request().Context(), data, recorderOf(ctx), actorOf(ctx))
	if err != nil {
		return errors.Wrap(err, "creating behavior record")
	}
	return ctx.JSON(http.StatusCreated, rec)
}

func (api *behaviorApi) destroy(ctx echo.Context) error {
	rec, err := api.svc.Get(ctx.Request().Context(), ctx.Param("id"))
	if err != nil {
		return errors.Wrap(err, "finding behavior record by ID")
	}
	st, err := api.students.Get(ctx.Request().Context(), rec.StudentID)
	if err != nil && !core.IsNotFound(err) {
		return errors.Wrap(err, "finding student by ID")
	}
	if !access.CanSeeStudent(contextPolicy(ctx), st) {
		return errHttpNotFound
	}

	if err := api.svc.Delete(ctx.Request().Context(), rec.ID); err != nil {
		return errors.Wrap(err, "deleting behavior record")
	}
	return ctx.NoContent(http.StatusNoContent)
}

package echoapi

import (
	"net/http"

	"github.com/go-playground/validator/v10"
	"github.com/labstack/echo/v4"
	"github.com/pkg/errors"

	"github.com/zhuluh247/MySchool/core"
	"github.com/zhuluh247/MySchool/core/access"
	"github.com/zhuluh247/MySchool/core/result"
	"github.com/zhuluh247/MySchool/core/student"
)

type resultApi struct {
	svc      *result.Service
	students *student.Service
	validate *validator.Validate
}

func registerResultAPI(g *echo.Group, s *Server) {
	api := resultApi{svc: s.deps.ResultSvc, students: s.deps.StudentSvc, validate: s.deps.Validate}

	rg := g.Group("/results")
	rg.GET("", api.query, requirePermission(access.KindResult, access.ActionView))
	rg.POST("", api.create, requirePermission(access.KindResult, access.ActionCreate))
	rg.GET("/children", api.children, requirePermission(access.KindResult, access.ActionView))
	// standings expose every student of a class: staff only
	rg.GET("/standings", api.standings, requirePermission(access.KindResult, access.ActionUpdate))
	rg.POST("/positions", api.computePositions, requirePermission(access.KindResult, access.ActionUpdate))
	rg.GET("/:id", api.retrieve, requirePermission(access.KindResult, access.ActionView))
	rg.PUT("/:id", api.update, requirePermission(access.KindResult, access.ActionUpdate))
	rg.DELETE("/:id", api.destroy, requirePermission(access.KindResult, access.ActionDelete))
}

// Handlers

func (api *resultApi) query(ctx echo.Context) error {
	var filter result.Filter
	if err := ctx.Bind(&filter); err != nil {
		return errors.Wrap(err, "binding to result.Filter")
	}
	filter.Class = core.CleanString(filter.Class)

	results, err := api.svc.Query(ctx.Request().Context(), filter)
	if err != nil {
		return errors.Wrap(err, "querying results")
	}
	roster, err := api.students.QueryAll(ctx.Request().Context())
	if err != nil {
		return errors.Wrap(err, "querying students")
	}
	return ctx.JSON(http.StatusOK, access.VisibleResults(contextPolicy(ctx), results, roster))
}

func (api *resultApi) create(ctx echo.Context) error {
	var data result.NewResult
	if err := ctx.Bind(&data); err != nil {
		return errors.Wrap(err, "binding to NewResult")
	}
	if err := data.Validate(ctx.Request().Context(), api.validate, api.svc); err != nil {
		return err
	}

	res, err := api.svc.Create(ctx.Request().Context(), data, recorderOf(ctx), actorOf(ctx))
	if err != nil {
		return errors.Wrap(err, "creating result")
	}
	return ctx.JSON(http.StatusCreated, res)
}

func (api *resultApi) retrieve(ctx echo.Context) error {
	res, err := api.svc.Get(ctx.Request().Context(), ctx.Param("id"))
	if err != nil {
		return errors.Wrap(err, "finding result by ID")
	}
	roster, err := api.students.QueryAll(ctx.Request().Context())
	if err != nil {
		return errors.Wrap(err, "querying students")
	}
	if len(access.VisibleResults(contextPolicy(ctx), []result.Result{res}, roster)) == 0 {
		return errHttpNotFound
	}
	return ctx.JSON(http.StatusOK, res)
}

func (api *resultApi) update(ctx echo.Context) error {
	var data result.UpdateResult
	if err := ctx.Bind(&data); err != nil {
		return errors.Wrap(err, "binding to UpdateResult")
	}
	if err := data.Validate(api.validate); err != nil {
		return err
	}

	res, err := api.svc.Update(ctx.Request().Context(), ctx.Param("id"), data)
	if err != nil {
		return errors.Wrap(err, "updating result")
	}
	return ctx.JSON(http.StatusOK, res)
}

func (api *resultApi) destroy(ctx echo.Context) error {
	if err := api.svc.Delete(ctx.Request().Context(), ctx.Param("id")); err != nil {
		return errors.Wrap(err, "deleting result")
	}
	return ctx.NoContent(http.StatusNoContent)
}

func (api *resultApi) standings(ctx echo.Context) error {
	var data PositionsRequest
	if err := ctx.Bind(&data); err != nil {
		return errors.Wrap(err, "binding to PositionsRequest")
	}
	if err := data.Validate(api.validate); err != nil {
		return err
	}

	standings, err := api.svc.Standings(ctx.Request().Context(), data.Class, data.Term)
	if err != nil {
		return errors.Wrap(err, "ranking class")
	}
	return ctx.JSON(http.StatusOK, standings)
}

func (api *resultApi) computePositions(ctx echo.Context) error {
	var data PositionsRequest
	if err := ctx.Bind(&data); err != nil {
		return errors.Wrap(err, "binding to PositionsRequest")
	}
	if err := data.Validate(api.validate); err != nil {
		return err
	}

	report, err := api.svc.ComputePositions(ctx.Request().Context(), data.Class, data.Term, actorOf(ctx))
	if err != nil {
		return errors.Wrap(err, "computing positions")
	}
	return ctx.JSON(http.StatusOK, report)
}

// children returns the overview of the session's children. Only parents have children.
func (api *resultApi) children(ctx echo.Context) error {
	usr, ok := contextUser(ctx)
	if !ok {
		return errUnauthorized
	}
	if !usr.IsParent() {
		return errHttpForbidden
	}

	children, err := api.students.ByParent(ctx.Request().Context(), usr.Email)
	if err != nil {
		return errors.Wrap(err, "querying children")
	}
	overview, err := api.svc.ChildrenOverview(ctx.Request().Context(), children)
	if err != nil {
		return errors.Wrap(err, "building children overview")
	}
	return ctx.JSON(http.StatusOK, overview)
}

type PositionsRequest struct {
	Class string `json:"class" query:"class" validate:"required,notblank"`
	Term  int    `json:"term" query:"term" validate:"required,term"`
}

func (pr *PositionsRequest) Validate(validate *validator.Validate) error {
	pr.Class = core.CleanString(pr.Class)
	return validate.Struct(pr)
}

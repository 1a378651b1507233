package echoapi

import (
	"net/http"

	"github.com/go-playground/validator/v10"
	"github.com/labstack/echo/v4"
	"github.com/pkg/errors"

	"github.com/zhuluh247/MySchool/core/access"
	"github.com/zhuluh247/MySchool/core/class"
	"github.com/zhuluh247/MySchool/core/student"
	"github.com/zhuluh247/MySchool/core/subject"
)

type classApi struct {
	svc      *class.Service
	students *student.Service
	validate *validator.Validate
}

func registerClassAPI(g *echo.Group, s *Server) {
	api := classApi{svc: s.deps.ClassSvc, students: s.deps.StudentSvc, validate: s.deps.Validate}

	cg := g.Group("/classes")
	cg.GET("", api.query, requirePermission(access.KindClass, access.ActionView))
	cg.POST("", api.create, requirePermission(access.KindClass, access.ActionCreate))
	cg.POST("/import", api.importRows, requirePermission(access.KindClass, access.ActionCreate))
	cg.GET("/:id", api.retrieve, requirePermission(access.KindClass, access.ActionView))
	cg.PUT("/:id", api.update, requirePermission(access.KindClass, access.ActionUpdate))
	cg.DELETE("/:id", api.destroy, requirePermission(access.KindClass, access.ActionDelete))
	cg.GET("/:id/subjects", api.subjects, requirePermission(access.KindSubject, access.ActionView))
	cg.PUT("/:id/subjects", api.assignSubjects, requirePermission(access.KindClass, access.ActionUpdate))
}

// Handlers

func (api *classApi) query(ctx echo.Context) error {
	summaries, err := api.svc.Summaries(ctx.Request().Context())
	if err != nil {
		return errors.Wrap(err, "querying classes")
	}
	roster, err := api.students.QueryAll(ctx.Request().Context())
	if err != nil {
		return errors.Wrap(err, "querying students")
	}
	return ctx.JSON(http.StatusOK, access.VisibleClassSummaries(contextPolicy(ctx), summaries, roster))
}

func (api *classApi) create(ctx echo.Context) error {
	var data class.NewClass
	if err := ctx.Bind(&data); err != nil {
		return errors.Wrap(err, "binding to NewClass")
	}
	if err := data.Validate(ctx.Request().Context(), api.validate, api.svc); err != nil {
		return err
	}

	cls, err := api.svc.Create(ctx.Request().Context(), data, actorOf(ctx))
	if err != nil {
		return errors.Wrap(err, "creating class")
	}
	return ctx.JSON(http.StatusCreated, cls)
}

func (api *classApi) importRows(ctx echo.Context) error {
	var data struct {
		Rows []class.NewClass `json:"rows"`
	}
	if err := ctx.Bind(&data); err != nil {
		return errors.Wrap(err, "binding to class rows")
	}
	return ctx.JSON(http.StatusOK, api.svc.Import(ctx.Request().Context(), data.Rows, actorOf(ctx)))
}

func (api *classApi) retrieve(ctx echo.Context) error {
	cls, err := api.svc.Get(ctx.Request().Context(), ctx.Param("id"))
	if err != nil {
		return errors.Wrap(err, "finding class by ID")
	}
	return ctx.JSON(http.StatusOK, cls)
}

func (api *classApi) update(ctx echo.Context) error {
	cls, err := api.svc.Get(ctx.Request().Context(), ctx.Param("id"))
	if err != nil {
		return errors.Wrap(err, "finding class by ID")
	}

	var data class.NewClass
	if err := ctx.Bind(&data); err != nil {
		return errors.Wrap(err, "binding to NewClass")
	}
	if err := data.Validate(ctx.Request().Context(), api.validate, api.svc, cls); err != nil {
		return err
	}

	cls, err = api.svc.Update(ctx.Request().Context(), cls.ID, data)
	if err != nil {
		return errors.Wrap(err, "updating class")
	}
	return ctx.JSON(http.StatusOK, cls)
}

func (api *classApi) destroy(ctx echo.Context) error {
	if err := api.svc.Delete(ctx.Request().Context(), ctx.Param("id")); err != nil {
		return errors.Wrap(err, "deleting class")
	}
	return ctx.NoContent(http.StatusNoContent)
}

func (api *classApi) subjects(ctx echo.Context) error {
	cls, err := api.svc.Get(ctx.Request().Context(), ctx.Param("id"))
	if err != nil {
		return errors.Wrap(err, "finding class by ID")
	}
	subjects, err := api.svc.Subjects(ctx.Request().Context(), cls.Name)
	if err != nil {
		return errors.Wrap(err, "querying class subjects")
	}
	return ctx.JSON(http.StatusOK, subjects)
}

func (api *classApi) assignSubjects(ctx echo.Context) error {
	cls, err := api.svc.Get(ctx.Request().Context(), ctx.Param("id"))
	if err != nil {
		return errors.Wrap(err, "finding class by ID")
	}

	var data class.AssignSubjects
	if err := ctx.Bind(&data); err != nil {
		return errors.Wrap(err, "binding to AssignSubjects")
	}
	if err := api.validate.Struct(data); err != nil {
		return err
	}

	if _, err := api.svc.AssignSubjects(ctx.Request().Context(), cls.Name, data); err != nil {
		return errors.Wrap(err, "assigning subjects")
	}
	subjects, err := api.svc.Subjects(ctx.Request().Context(), cls.Name)
	if err != nil {
		return errors.Wrap(err, "querying class subjects")
	}
	return ctx.JSON(http.StatusOK, subjects)
}

type subjectApi struct {
	svc      *subject.Service
	validate *validator.Validate
}

func registerSubjectAPI(g *echo.Group, s *Server) {
	api := subjectApi{svc: s.deps.SubjectSvc, validate: s.deps.Validate}

	sg := g.Group("/subjects")
	sg.GET("", api.query, requirePermission(access.KindSubject, access.ActionView))
	sg.POST("", api.create, requirePermission(access.KindSubject, access.ActionCreate))
	sg.POST("/import", api.importRows, requirePermission(access.KindSubject, access.ActionCreate))
	sg.GET("/:id", api.retrieve, requirePermission(access.KindSubject, access.ActionView))
	sg.PUT("/:id", api.update, requirePermission(access.KindSubject, access.ActionUpdate))
	sg.DELETE("/:id", api.destroy, requirePermission(access.KindSubject, access.ActionDelete))
}

func (api *subjectApi) query(ctx echo.Context) error {
	subjects, err := api.svc.QueryAll(ctx.Request().Context())
	if err != nil {
		return errors.Wrap(err, "querying subjects")
	}
	return ctx.JSON(http.StatusOK, subjects)
}

func (api *subjectApi) create(ctx echo.Context) error {
	var data subject.NewSubject
	if err := ctx.Bind(&data); err != nil {
		return errors.Wrap(err, "binding to NewSubject")
	}
	if err := data.Validate(ctx.Request().Context(), api.validate, api.svc); err != nil {
		return err
	}

	sbj, err := api.svc.Create(ctx.Request().Context(), data, actorOf(ctx))
	if err != nil {
		return errors.Wrap(err, "creating subject")
	}
	return ctx.JSON(http.StatusCreated, sbj)
}

func (api *subjectApi) importRows(ctx echo.Context) error {
	var data struct {
		Rows []subject.NewSubject `json:"rows"`
	}
	if err := ctx.Bind(&data); err != nil {
		return errors.Wrap(err, "binding to subject rows")
	}
	return ctx.JSON(http.StatusOK, api.svc.Import(ctx.Request().Context(), data.Rows, actorOf(ctx)))
}

func (api *subjectApi) retrieve(ctx echo.Context) error {
	sbj, err := api.svc.Get(ctx.Request().Context(), ctx.Param("id"))
	if err != nil {
		return errors.Wrap(err, "finding subject by ID")
	}
	return ctx.JSON(http.StatusOK, sbj)
}

func (api *subjectApi) update(ctx echo.Context) error {
	sbj, err := api.svc.Get(ctx.Request().Context(), ctx.Param("id"))
	if err != nil {
		return errors.Wrap(err, "finding subject by ID")
	}

	var data subject.NewSubject
	if err := ctx.Bind(&data); err != nil {
		return errors.Wrap(err, "binding to NewSubject")
	}
	if err := data.Validate(ctx.Request().Context(), api.validate, api.svc, sbj); err != nil {
		return err
	}

	sbj, err = api.svc.Rename(ctx.Request().Context(), sbj.ID, data)
	if err != nil {
		return errors.Wrap(err, "renaming subject")
	}
	return ctx.JSON(http.StatusOK, sbj)
}

func (api *subjectApi) destroy(ctx echo.Context) error {
	if err := api.svc.Delete(ctx.Request().Context(), ctx.Param("id")); err != nil {
		return errors.Wrap(err, "deleting subject")
	}
	return ctx.NoContent(http.StatusNoContent)
}

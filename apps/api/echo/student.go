package echoapi

import (
	"net/http"

	"github.com/go-playground/validator/v10"
	"github.com/labstack/echo/v4"
	"github.com/pkg/errors"

	"github.com/zhuluh247/MySchool/core"
	"github.com/zhuluh247/MySchool/core/access"
	"github.com/zhuluh247/MySchool/core/behavior"
	"github.com/zhuluh247/MySchool/core/document"
	"github.com/zhuluh247/MySchool/core/result"
	"github.com/zhuluh247/MySchool/core/student"
)

const contextStudentKey = "student"

type studentApi struct {
	svc       *student.Service
	results   *result.Service
	behavior  *behavior.Service
	documents *document.Service
	validate  *validator.Validate
}

func registerStudentAPI(g *echo.Group, s *Server) {
	api := studentApi{
		svc:       s.deps.StudentSvc,
		results:   s.deps.ResultSvc,
		behavior:  s.deps.BehaviorSvc,
		documents: s.deps.DocumentSvc,
		validate:  s.deps.Validate,
	}

	sg := g.Group("/students")
	sg.GET("", api.query, requirePermission(access.KindStudent, access.ActionView))
	sg.POST("", api.create, requirePermission(access.KindStudent, access.ActionCreate))
	sg.POST("/import", api.importRows, requirePermission(access.KindStudent, access.ActionCreate))
	sg.GET("/counts", api.counts, requirePermission(access.KindClass, access.ActionUpdate))

	// detail endpoints
	dg := sg.Group("/:id", studentObjectMiddleware(api.svc))
	dg.GET("", api.retrieve, requirePermission(access.KindStudent, access.ActionView))
	dg.PUT("", api.update, requirePermission(access.KindStudent, access.ActionUpdate))
	dg.DELETE("", api.destroy, requirePermission(access.KindStudent, access.ActionDelete))
	dg.GET("/results", api.resultList, requirePermission(access.KindResult, access.ActionView))
	dg.GET("/report", api.report, requirePermission(access.KindResult, access.ActionView))
	dg.GET("/behavior", api.behaviorRecords, requirePermission(access.KindBehavior, access.ActionView))
	dg.GET("/behavior/summary", api.behaviorSummary, requirePermission(access.KindBehavior, access.ActionView))
	dg.GET("/documents", api.documentList, requirePermission(access.KindDocument, access.ActionView))
}

// Handlers

func (api *studentApi) query(ctx echo.Context) error {
	var (
		students []student.Student
		err      error
	)
	if class := core.CleanString(ctx.QueryParam("class")); class != "" {
		students, err = api.svc.ByClass(ctx.Request().Context(), class)
	} else {
		students, err = api.svc.QueryAll(ctx.Request().Context())
	}
	if err != nil {
		return errors.Wrap(err, "querying students")
	}
	if term := ctx.QueryParam("search"); term != "" {
		students = student.Search(students, term)
	}
	return ctx.JSON(http.StatusOK, access.VisibleStudents(contextPolicy(ctx), students))
}

func (api *studentApi) create(ctx echo.Context) error {
	var data student.NewStudent
	if err := ctx.Bind(&data); err != nil {
		return errors.Wrap(err, "binding to NewStudent")
	}
	if err := data.Validate(ctx.Request().Context(), api.validate, api.svc); err != nil {
		return err
	}

	st, err := api.svc.Create(ctx.Request().Context(), data, actorOf(ctx))
	if err != nil {
		return errors.Wrap(err, "creating student")
	}
	return ctx.JSON(http.StatusCreated, st)
}

func (api *studentApi) importRows(ctx echo.Context) error {
	var data struct {
		Rows []student.NewStudent `json:"rows"`
	}
	if err := ctx.Bind(&data); err != nil {
		return errors.Wrap(err, "binding to student rows")
	}
	return ctx.JSON(http.StatusOK, api.svc.Import(ctx.Request().Context(), data.Rows, actorOf(ctx)))
}

func (api *studentApi) counts(ctx echo.Context) error {
	counts, err := api.svc.CountByClass(ctx.Request().Context())
	if err != nil {
		return errors.Wrap(err, "counting students")
	}
	return ctx.JSON(http.StatusOK, counts)
}

func (api *studentApi) retrieve(ctx echo.Context) error {
	return ctx.JSON(http.StatusOK, contextStudent(ctx))
}

func (api *studentApi) update(ctx echo.Context) error {
	st := contextStudent(ctx)

	var data student.UpdateStudent
	if err := ctx.Bind(&data); err != nil {
		return errors.Wrap(err, "binding to UpdateStudent")
	}
	if err := data.Validate(ctx.Request().Context(), st, api.validate, api.svc); err != nil {
		return err
	}

	st, err := api.svc.Update(ctx.Request().Context(), st.ID, data)
	if err != nil {
		return errors.Wrap(err, "updating student")
	}
	return ctx.JSON(http.StatusOK, st)
}

func (api *studentApi) destroy(ctx echo.Context) error {
	if err := api.svc.Delete(ctx.Request().Context(), contextStudent(ctx).ID); err != nil {
		return errors.Wrap(err, "deleting student")
	}
	return ctx.NoContent(http.StatusNoContent)
}

func (api *studentApi) resultList(ctx echo.Context) error {
	results, err := api.results.ForStudent(ctx.Request().Context(), contextStudent(ctx).ID)
	if err != nil {
		return errors.Wrap(err, "querying student results")
	}
	return ctx.JSON(http.StatusOK, results)
}

func (api *studentApi) report(ctx echo.Context) error {
	card, err := api.results.Report(ctx.Request().Context(), contextStudent(ctx).ID)
	if err != nil {
		return errors.Wrap(err, "building report card")
	}
	return ctx.JSON(http.StatusOK, card)
}

func (api *studentApi) behaviorRecords(ctx echo.Context) error {
	recs, err := api.behavior.ForStudent(ctx.Request().Context(), contextStudent(ctx).ID)
	if err != nil {
		return errors.Wrap(err, "querying behavior records")
	}
	return ctx.JSON(http.StatusOK, recs)
}

func (api *studentApi) behaviorSummary(ctx echo.Context) error {
	summary, err := api.behavior.Summary(ctx.Request().Context(), contextStudent(ctx).ID)
	if err != nil {
		return errors.Wrap(err, "summarizing behavior records")
	}
	return ctx.JSON(http.StatusOK, summary)
}

func (api *studentApi) documentList(ctx echo.Context) error {
	docs, err := api.documents.ForStudent(ctx.Request().Context(), contextStudent(ctx).ID)
	if err != nil {
		return errors.Wrap(err, "querying documents")
	}
	return ctx.JSON(http.StatusOK, docs)
}

// studentObjectMiddleware loads the student of the path. Students the session cannot see are not found.
func studentObjectMiddleware(svc *student.Service) echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(ctx echo.Context) error {
			st, err := svc.Get(ctx.Request().Context(), ctx.Param("id"))
			if err != nil {
				if core.IsNotFound(err) {
					return errHttpNotFound
				}
				return errors.Wrap(err, "finding student by ID")
			}
			if !access.CanSeeStudent(contextPolicy(ctx), st) {
				return errHttpNotFound
			}
			ctx.Set(contextStudentKey, st)
			return next(ctx)
		}
	}
}

func contextStudent(ctx echo.Context) student.Student {
	st, _ := ctx.Get(contextStudentKey).(student.Student)
	return st
}

// actorOf returns the display name recorded in the activity feed.
func actorOf(ctx echo.Context) string {
	if usr, ok := contextUser(ctx); ok {
		return usr.Name
	}
	return ""
}

// recorderOf returns the email stored on records created by the session.
func recorderOf(ctx echo.Context) string {
	if usr, ok := contextUser(ctx); ok {
		return usr.Email
	}
	return ""
}

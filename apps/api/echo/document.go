package echoapi

import (
	"net/http"

	"github.com/go-playground/validator/v10"
	"github.com/labstack/echo/v4"
	"github.com/pkg/errors"

	"github.com/zhuluh247/MySchool/core"
	"github.com/zhuluh247/MySchool/core/access"
	"github.com/zhuluh247/MySchool/core/document"
	"github.com/zhuluh247/MySchool/core/student"
)

// maxUploadSize bounds the size of an uploaded document.
const maxUploadSize = 10 << 20

var errFileRequired = core.NewValidationError(nil, core.FieldError{Field: "file", Error: "this field is required"})

type documentApi struct {
	svc      *document.Service
	students *student.Service
	validate *validator.Validate
}

func registerDocumentAPI(g *echo.Group, s *Server) {
	api := documentApi{svc: s.deps.DocumentSvc, students: s.deps.StudentSvc, validate: s.deps.Validate}

	dg := g.Group("/documents")
	dg.GET("", api.query, requirePermission(access.KindDocument, access.ActionView))
	dg.POST("", api.upload, requirePermission(access.KindDocument, access.ActionCreate))
	dg.DELETE("/:id", api.destroy, requirePermission(access.KindDocument, access.ActionDelete))
}

// Handlers

func (api *documentApi) query(ctx echo.Context) error {
	docs, err := api.svc.QueryAll(ctx.Request().Context())
	if err != nil {
		return errors.Wrap(err, "querying documents")
	}
	roster, err := api.students.QueryAll(ctx.Request().Context())
	if err != nil {
		return errors.Wrap(err, "querying students")
	}
	return ctx.JSON(http.StatusOK, access.VisibleDocuments(contextPolicy(ctx), docs, roster))
}

// upload stores the multipart "file" field for the student in the "studentId" field.
func (api *documentApi) upload(ctx echo.Context) error {
	ctx.Request().Body = http.MaxBytesReader(ctx.Response(), ctx.Request().Body, maxUploadSize)
	fh, err := ctx.FormFile("file")
	if err != nil {
		if err == http.ErrMissingFile {
			return errFileRequired
		}
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}

	data := document.NewDocument{
		Name:        fh.Filename,
		StudentID:   ctx.FormValue("studentId"),
		ContentType: fh.Header.Get(echo.HeaderContentType),
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

	file, err := fh.Open()
	if err != nil {
		return errors.Wrap(err, "opening uploaded file")
	}
	defer file.Close()

	doc, err := api.svc.Upload(ctx.Request().Context(), file, data, recorderOf(ctx), actorOf(ctx))
	if err != nil {
		return errors.Wrap(err, "uploading document")
	}
	return ctx.JSON(http.StatusCreated, doc)
}

func (api *documentApi) destroy(ctx echo.Context) error {
	if err := api.svc.Delete(ctx.Request().Context(), ctx.Param("id")); err != nil {
		return errors.Wrap(err, "deleting document")
	}
	return ctx.NoContent(http.StatusNoContent)
}

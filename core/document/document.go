package document

import (
	"context"
	"fmt"
	"io"
	"path"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/pkg/errors"

	"github.com/zhuluh247/MySchool/core"
	"github.com/zhuluh247/MySchool/core/activity"
	"github.com/zhuluh247/MySchool/core/student"
)

// Kinds of documents, derived from the file extension.
const (
	TypePDF      = "pdf"
	TypeImage    = "image"
	TypeDocument = "document"
	TypeFile     = "file"
)

const storageDir = "documents"

var ErrUnknownStudent = errors.New("unknown student")

type Document struct {
	ID         string    `json:"id"`
	Name       string    `json:"name"`
	Type       string    `json:"type"`
	UploadedBy string    `json:"uploadedBy"` // email
	Date       string    `json:"date"`       // YYYY-MM-DD
	StudentID  string    `json:"studentId"`
	URL        string    `json:"url"`
	Path       string    `json:"path"` // storage key
	CreatedAt  time.Time `json:"createdAt"`
}

// TypeOf returns the kind of document of the file name.
func TypeOf(name string) string {
	ext := strings.ToLower(strings.TrimPrefix(path.Ext(name), "."))
	switch ext {
	case "pdf":
		return TypePDF
	case "jpg", "jpeg", "png", "gif":
		return TypeImage
	case "doc", "docx":
		return TypeDocument
	}
	return TypeFile
}

// NewDocument describes an uploaded file.
type NewDocument struct {
	Name        string `json:"name" validate:"required,notblank"`
	StudentID   string `json:"studentId" validate:"required,notblank"`
	ContentType string `json:"contentType"`
}

func (nd *NewDocument) Validate(ctx context.Context, validate *validator.Validate, svc *Service) error {
	nd.Name = path.Base(strings.ReplaceAll(core.CleanString(nd.Name), "\\", "/"))
	if nd.Name == "." || nd.Name == "/" {
		nd.Name = ""
	}
	nd.StudentID = core.CleanString(nd.StudentID)
	if err := validate.Struct(nd); err != nil {
		return err
	}
	if _, err := svc.students.Get(ctx, nd.StudentID); err != nil {
		if core.IsNotFound(err) {
			return core.NewValidationError(ErrUnknownStudent, core.FieldError{Field: "studentId", Error: ErrUnknownStudent.Error()})
		}
		return err
	}
	return nil
}

type Service struct {
	documents  core.Store[Document]
	files      core.FileStore
	students   *student.Service
	activities *activity.Service
}

func NewService(gw core.Gateway, files core.FileStore, students *student.Service, activities *activity.Service) *Service {
	return &Service{
		documents:  core.NewStore[Document](gw, core.Documents),
		files:      files,
		students:   students,
		activities: activities,
	}
}

// Upload stores the content of a validated NewDocument and saves its metadata.
func (svc *Service) Upload(ctx context.Context, r io.Reader, nd NewDocument, uploadedBy, actor string) (Document, error) {
	now := core.NowFunc()
	key := fmt.Sprintf("%s/%d_%s", storageDir, now.UnixMilli(), nd.Name)

	url, err := svc.files.Upload(ctx, r, key, nd.ContentType)
	if err != nil {
		return Document{}, errors.Wrap(err, "uploading document")
	}

	doc, err := svc.documents.Add(ctx, Document{
		Name:       nd.Name,
		Type:       TypeOf(nd.Name),
		UploadedBy: uploadedBy,
		Date:       core.FormatDate(now),
		StudentID:  nd.StudentID,
		URL:        url,
		Path:       key,
		CreatedAt:  now,
	})
	if err != nil {
		// do not leave an orphan file behind
		_ = svc.files.Delete(ctx, key)
		return Document{}, errors.Wrap(err, "saving document")
	}
	if svc.activities != nil {
		svc.activities.Record(ctx, activity.IconDocument, fmt.Sprintf("Document uploaded: %s", doc.Name), actor)
	}
	return doc, nil
}

func (svc *Service) Get(ctx context.Context, id string) (Document, error) {
	return svc.documents.Get(ctx, id)
}

func (svc *Service) QueryAll(ctx context.Context) ([]Document, error) {
	return svc.documents.All(ctx)
}

func (svc *Service) ForStudent(ctx context.Context, studentID string) ([]Document, error) {
	return svc.documents.Query(ctx, "studentId", core.OpEq, studentID)
}

// Delete removes the file then its metadata. A file already gone is not an error.
func (svc *Service) Delete(ctx context.Context, id string) error {
	doc, err := svc.Get(ctx, id)
	if err != nil {
		return err
	}
	if err := svc.files.Delete(ctx, doc.Path); err != nil && !core.IsNotFound(err) {
		return errors.Wrap(err, "deleting document file")
	}
	return svc.documents.Delete(ctx, id)
}

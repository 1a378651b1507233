package document

import (
	"context"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/zhuluh247/MySchool/core"
	"github.com/zhuluh247/MySchool/core/activity"
	"github.com/zhuluh247/MySchool/core/student"
	"github.com/zhuluh247/MySchool/internal/testutil"
	inmemdb "github.com/zhuluh247/MySchool/storage/database/inmem"
	localfs "github.com/zhuluh247/MySchool/storage/files/local"
)

func TestTypeOf(t *testing.T) {
	tests := map[string]string{
		"report.pdf":   TypePDF,
		"REPORT.PDF":   TypePDF,
		"photo.jpeg":   TypeImage,
		"photo.JPG":    TypeImage,
		"scan.png":     TypeImage,
		"anim.gif":     TypeImage,
		"letter.doc":   TypeDocument,
		"letter.docx":  TypeDocument,
		"grades.xlsx":  TypeFile,
		"README":       TypeFile,
		"archive.pdf.": TypeFile,
	}
	for name, want := range tests {
		t.Run(name, func(t *testing.T) {
			assert.Equal(t, want, TypeOf(name))
		})
	}
}

func setup(t *testing.T) (*Service, *localfs.Store, *validator.Validate, student.Student) {
	validate := validator.New()
	core.InitValidators(validate, core.NewTranslator())

	gw := inmemdb.New()
	activities := activity.NewService(gw, testutil.NewLogger(t))
	students := student.NewService(gw, activities, validate)
	st, err := students.Create(context.Background(), student.NewStudent{AdmissionNumber: "ADM001", Name: "Alice", Class: "JSS 1A", Gender: "Female"}, "Admin")
	require.NoError(t, err)

	files, err := localfs.New(t.TempDir(), "http://localhost:8000/files")
	require.NoError(t, err)
	return NewService(gw, files, students, activities), files, validate, st
}

func TestNewDocument_Validate(t *testing.T) {
	svc, _, validate, st := setup(t)
	ctx := context.Background()

	tests := []struct {
		name     string
		nd       NewDocument
		wantName string
		wantErr  bool
	}{
		{name: "valid", nd: NewDocument{Name: "report.pdf", StudentID: st.ID}, wantName: "report.pdf"},
		{name: "directories are dropped", nd: NewDocument{Name: "../../etc/passwd", StudentID: st.ID}, wantName: "passwd"},
		{name: "windows path", nd: NewDocument{Name: `C:\Users\me\scan.png`, StudentID: st.ID}, wantName: "scan.png"},
		{name: "no name", nd: NewDocument{Name: " ", StudentID: st.ID}, wantErr: true},
		{name: "no student", nd: NewDocument{Name: "report.pdf"}, wantErr: true},
		{name: "unknown student", nd: NewDocument{Name: "report.pdf", StudentID: "missing"}, wantErr: true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := tt.nd.Validate(ctx, validate, svc)
			if tt.wantErr {
				assert.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.wantName, tt.nd.Name)
		})
	}
}

func TestService_UploadAndDelete(t *testing.T) {
	svc, files, _, st := setup(t)
	ctx := context.Background()

	now := time.Date(2024, time.March, 10, 9, 0, 0, 0, time.UTC)
	defer func(orig func() time.Time) { core.NowFunc = orig }(core.NowFunc)
	core.NowFunc = func() time.Time { return now }

	doc, err := svc.Upload(ctx, strings.NewReader("%PDF-1.4"), NewDocument{Name: "report.pdf", StudentID: st.ID, ContentType: "application/pdf"}, "t@test.cd", "Mr T")
	require.NoError(t, err)

	wantPath := "documents/1710061200000_report.pdf"
	assert.Equal(t, wantPath, doc.Path)
	assert.Equal(t, "http://localhost:8000/files/"+wantPath, doc.URL)
	assert.Equal(t, TypePDF, doc.Type)
	assert.Equal(t, "2024-03-10", doc.Date)
	assert.Equal(t, "t@test.cd", doc.UploadedBy)

	content, err := os.ReadFile(filepath.Join(files.Dir(), filepath.FromSlash(wantPath)))
	require.NoError(t, err)
	assert.Equal(t, "%PDF-1.4", string(content))

	docs, err := svc.ForStudent(ctx, st.ID)
	require.NoError(t, err)
	assert.Len(t, docs, 1)

	require.NoError(t, svc.Delete(ctx, doc.ID))
	_, err = os.Stat(filepath.Join(files.Dir(), filepath.FromSlash(wantPath)))
	assert.True(t, os.IsNotExist(err))
	all, err := svc.QueryAll(ctx)
	require.NoError(t, err)
	assert.Empty(t, all)

	assert.True(t, core.IsNotFound(svc.Delete(ctx, doc.ID)))
}

func TestService_DeleteMissingFile(t *testing.T) {
	svc, files, _, st := setup(t)
	ctx := context.Background()

	doc, err := svc.Upload(ctx, strings.NewReader("x"), NewDocument{Name: "a.txt", StudentID: st.ID}, "t@test.cd", "Mr T")
	require.NoError(t, err)
	require.NoError(t, files.Delete(ctx, doc.Path))

	require.NoError(t, svc.Delete(ctx, doc.ID))
	_, err = svc.Get(ctx, doc.ID)
	assert.True(t, core.IsNotFound(err))
}

package echoapi

import (
	"net/http"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/zhuluh247/MySchool/core"
	"github.com/zhuluh247/MySchool/core/activity"
	"github.com/zhuluh247/MySchool/core/class"
	"github.com/zhuluh247/MySchool/core/student"
	"github.com/zhuluh247/MySchool/core/subject"
	"github.com/zhuluh247/MySchool/core/user"
)

func Test_studentApi(t *testing.T) {
	app := setup(t)
	owner := app.createUser(t, "Grace Obi", "grace@test.cd", user.RoleProprietor)
	parent := app.createUser(t, "Ngozi Eze", "ngozi@test.cd", user.RoleParent)
	ada := app.createStudent(t, "ADM001", "Ada Eze", "JSS1", "ngozi@test.cd")
	bola := app.createStudent(t, "ADM002", "Bola Ade", "JSS1", "")
	app.createStudent(t, "ADM003", "Chika Uche", "JSS2", "")

	ownerToken := app.token(t, owner)
	parentToken := app.token(t, parent)

	names := func(t *testing.T, path, token string) []string {
		rec := app.do(http.MethodGet, path, token)
		require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
		var got []student.Student
		unmarshal(t, rec, &got)
		out := make([]string, 0, len(got))
		for _, st := range got {
			out = append(out, st.Name)
		}
		return out
	}

	t.Run("list", func(t *testing.T) {
		assert.Equal(t, []string{"Ada Eze", "Bola Ade", "Chika Uche"}, names(t, "/v1/students", ownerToken))
		assert.Equal(t, []string{"Ada Eze", "Bola Ade"}, names(t, "/v1/students?class=JSS1", ownerToken))
		assert.Equal(t, []string{"Chika Uche"}, names(t, "/v1/students?search=jss2", ownerToken))
	})

	t.Run("parents only see their children", func(t *testing.T) {
		assert.Equal(t, []string{"Ada Eze"}, names(t, "/v1/students", parentToken))
		assert.Empty(t, names(t, "/v1/students?search=bola", parentToken))
	})

	tests := []httpTest{
		{
			name:     "parent gets child",
			method:   http.MethodGet,
			path:     "/v1/students/" + ada.ID,
			token:    parentToken,
			wantCode: http.StatusOK,
			wantData: marchallObj(t, ada),
		},
		{
			name:     "parent cannot get other students",
			method:   http.MethodGet,
			path:     "/v1/students/" + bola.ID,
			token:    parentToken,
			wantCode: http.StatusNotFound,
		},
		{
			name:     "parent cannot update",
			method:   http.MethodPut,
			path:     "/v1/students/" + ada.ID,
			token:    parentToken,
			body:     []byte(`{"name":"Ada Ezeh"}`),
			wantCode: http.StatusForbidden,
		},
		{
			name:     "parent cannot see class counts",
			method:   http.MethodGet,
			path:     "/v1/students/counts",
			token:    parentToken,
			wantCode: http.StatusForbidden,
		},
		{
			name:     "parent cannot create",
			method:   http.MethodPost,
			path:     "/v1/students",
			token:    parentToken,
			body:     []byte(`{"admissionNumber":"ADM009","name":"Zed","class":"JSS1","gender":"male"}`),
			wantCode: http.StatusForbidden,
		},
		{
			name:     "duplicate admission number",
			method:   http.MethodPost,
			path:     "/v1/students",
			token:    ownerToken,
			body:     []byte(`{"admissionNumber":"ADM001","name":"Zed","class":"JSS1","gender":"male"}`),
			wantCode: http.StatusBadRequest,
			wantData: []byte(`{"admissionNumber":"` + student.ErrAdmissionNumberExists.Error() + `"}`),
		},
		{
			name:     "invalid",
			method:   http.MethodPost,
			path:     "/v1/students",
			token:    ownerToken,
			body:     []byte(`{"admissionNumber":"ADM010","name":"Zed","class":"JSS1","gender":"other"}`),
			wantCode: http.StatusBadRequest,
		},
		{
			name:     "unknown",
			method:   http.MethodGet,
			path:     "/v1/students/missing",
			token:    ownerToken,
			wantCode: http.StatusNotFound,
		},
	}
	app.run(t, tests)

	t.Run("create records an activity", func(t *testing.T) {
		rec := app.do(http.MethodPost, "/v1/students", ownerToken,
			[]byte(`{"admissionNumber":"ADM004","name":"Dayo Ojo","class":"JSS2","gender":"MALE"}`))
		require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
		var st student.Student
		unmarshal(t, rec, &st)
		assert.Equal(t, "Male", st.Gender)

		rec = app.do(http.MethodGet, "/v1/activities?limit=1", ownerToken)
		require.Equal(t, http.StatusOK, rec.Code)
		var entries []activity.Entry
		unmarshal(t, rec, &entries)
		require.Len(t, entries, 1)
		assert.Equal(t, "New student added: Dayo Ojo", entries[0].Text)
		assert.Equal(t, owner.Name, entries[0].User)
		assert.Equal(t, "Just now", entries[0].TimeAgo)
	})

	t.Run("update unlinks parent", func(t *testing.T) {
		rec := app.do(http.MethodPut, "/v1/students/"+ada.ID, ownerToken, []byte(`{"parent":""}`))
		require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
		assert.Empty(t, names(t, "/v1/students", parentToken))
	})

	t.Run("import", func(t *testing.T) {
		body := []byte(`{"rows":[{"admissionNumber":"ADM020","name":"Efe","class":"JSS3","gender":"Female"},` +
			`{"admissionNumber":"ADM001","name":"Dup","class":"JSS3","gender":"Female"}]}`)
		rec := app.do(http.MethodPost, "/v1/students/import", ownerToken, body)
		require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
		var report core.ImportReport
		unmarshal(t, rec, &report)
		assert.Equal(t, 1, report.Succeeded)
		require.Len(t, report.Failures, 1)
		assert.Equal(t, 2, report.Failures[0].Row)

		rec = app.do(http.MethodGet, "/v1/students/counts", ownerToken)
		assert.JSONEq(t, `{"JSS1":2,"JSS2":2,"JSS3":1}`, rec.Body.String())
	})

	t.Run("delete", func(t *testing.T) {
		rec := app.do(http.MethodDelete, "/v1/students/"+bola.ID, ownerToken)
		assert.Equal(t, http.StatusNoContent, rec.Code)
		rec = app.do(http.MethodGet, "/v1/students/"+bola.ID, ownerToken)
		assert.Equal(t, http.StatusNotFound, rec.Code)
	})
}

func Test_classApi(t *testing.T) {
	app := setup(t)
	owner := app.createUser(t, "Grace Obi", "grace@test.cd", user.RoleProprietor)
	token := app.token(t, owner)
	app.createStudent(t, "ADM001", "Ada Eze", "JSS1", "")
	maths := app.createSubject(t, "Mathematics")
	english := app.createSubject(t, "English")

	rec := app.do(http.MethodPost, "/v1/classes", token, []byte(`{"name":" JSS1 ","teacher":"Tunde@test.cd"}`))
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
	var cls class.Class
	unmarshal(t, rec, &cls)
	assert.Equal(t, "JSS1", cls.Name)
	assert.Equal(t, "tunde@test.cd", cls.Teacher)

	t.Run("duplicate", func(t *testing.T) {
		rec := app.do(http.MethodPost, "/v1/classes", token, []byte(`{"name":"JSS1"}`))
		assert.Equal(t, http.StatusBadRequest, rec.Code)
	})

	t.Run("summaries", func(t *testing.T) {
		rec := app.do(http.MethodGet, "/v1/classes", token)
		require.Equal(t, http.StatusOK, rec.Code)
		var got []class.Summary
		unmarshal(t, rec, &got)
		require.Len(t, got, 1)
		assert.Equal(t, 1, got[0].StudentCount)

		// parents only count their own children
		parent := app.createUser(t, "Ngozi Eze", "ngozi@test.cd", user.RoleParent)
		rec = app.do(http.MethodGet, "/v1/classes", app.token(t, parent))
		require.Equal(t, http.StatusOK, rec.Code)
		unmarshal(t, rec, &got)
		require.Len(t, got, 1)
		assert.Zero(t, got[0].StudentCount)
	})

	t.Run("assign subjects", func(t *testing.T) {
		path := "/v1/classes/" + cls.ID + "/subjects"
		rec := app.do(http.MethodPut, path, token, []byte(`{"subjectIds":["`+maths.ID+`","`+english.ID+`","`+maths.ID+`"]}`))
		require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
		var got []subject.Subject
		unmarshal(t, rec, &got)
		assert.Equal(t, []subject.Subject{maths, english}, got)

		// full replace
		rec = app.do(http.MethodPut, path, token, []byte(`{"subjectIds":["`+english.ID+`"]}`))
		require.Equal(t, http.StatusOK, rec.Code)
		unmarshal(t, rec, &got)
		assert.Equal(t, []subject.Subject{english}, got)

		rec = app.do(http.MethodPut, path, token, []byte(`{"subjectIds":["missing"]}`))
		assert.Equal(t, http.StatusBadRequest, rec.Code)
		rec = app.do(http.MethodPut, path, token, []byte(`{"subjectIds":[]}`))
		assert.Equal(t, http.StatusBadRequest, rec.Code)
	})

	t.Run("rename keeps subjects", func(t *testing.T) {
		rec := app.do(http.MethodPut, "/v1/classes/"+cls.ID, token, []byte(`{"name":"JSS1A"}`))
		require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

		rec = app.do(http.MethodGet, "/v1/classes/"+cls.ID+"/subjects", token)
		require.Equal(t, http.StatusOK, rec.Code)
		var got []subject.Subject
		unmarshal(t, rec, &got)
		assert.Equal(t, []subject.Subject{english}, got)
	})

	t.Run("subjects crud", func(t *testing.T) {
		rec := app.do(http.MethodPut, "/v1/subjects/"+english.ID, token, []byte(`{"name":"Mathematics"}`))
		assert.Equal(t, http.StatusBadRequest, rec.Code)

		rec = app.do(http.MethodPut, "/v1/subjects/"+english.ID, token, []byte(`{"name":"English Language"}`))
		require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

		rec = app.do(http.MethodDelete, "/v1/subjects/"+english.ID, token)
		assert.Equal(t, http.StatusNoContent, rec.Code)

		// deleted subjects are skipped
		rec = app.do(http.MethodGet, "/v1/classes/"+cls.ID+"/subjects", token)
		assert.JSONEq(t, `[]`, rec.Body.String())
	})

	t.Run("delete", func(t *testing.T) {
		rec := app.do(http.MethodDelete, "/v1/classes/"+cls.ID, token)
		assert.Equal(t, http.StatusNoContent, rec.Code)
		rec = app.do(http.MethodDelete, "/v1/classes/"+cls.ID, token)
		assert.Equal(t, http.StatusNotFound, rec.Code)
	})
}

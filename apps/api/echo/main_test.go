package echoapi

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"reflect"
	"testing"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/zhuluh247/MySchool/core"
	"github.com/zhuluh247/MySchool/core/activity"
	"github.com/zhuluh247/MySchool/core/behavior"
	"github.com/zhuluh247/MySchool/core/class"
	"github.com/zhuluh247/MySchool/core/dashboard"
	"github.com/zhuluh247/MySchool/core/document"
	"github.com/zhuluh247/MySchool/core/result"
	"github.com/zhuluh247/MySchool/core/student"
	"github.com/zhuluh247/MySchool/core/subject"
	"github.com/zhuluh247/MySchool/core/user"
	"github.com/zhuluh247/MySchool/internal/testutil"
	emailsvc "github.com/zhuluh247/MySchool/services/email"
	inmemdb "github.com/zhuluh247/MySchool/storage/database/inmem"
	localfs "github.com/zhuluh247/MySchool/storage/files/local"
)

const goodPwd = "Kp9#vRt2!mQ"

var errMissingToken = httpErr{Error: "missing or malformed jwt"}

type testApp struct {
	*Server
	gw core.Gateway
}

func newTestConfig(t *testing.T) *core.Config {
	conf := &core.Config{
		Env:                       "TEST",
		TestMode:                  true,
		AppName:                   "MySchool",
		SecretKey:                 "test-secret",
		FrontendBaseURL:           "http://localhost:3000",
		PasswordResetTimeoutDelta: 72 * time.Hour,
	}
	conf.DefaultFromEmail.Address = "noreply@test.cd"
	conf.Server.JWTExpirationDelta = time.Hour
	conf.Server.JWTRefreshExpirationDelta = 24 * time.Hour
	conf.Server.DisableReqLogs = true
	conf.Storage.Driver = core.StorageLocal
	conf.Storage.LocalDir = t.TempDir()
	conf.Storage.BaseURL = "http://localhost:8000/files"
	return conf
}

func setup(t *testing.T, confs ...func(*core.Config)) *testApp {
	conf := newTestConfig(t)
	for _, c := range confs {
		c(conf)
	}
	logger := testutil.NewLogger(t)

	validate := validator.New()
	translator := core.NewTranslator()
	core.InitValidators(validate, translator)
	user.InitValidators(validate, translator)
	behavior.InitValidators(validate, translator)
	core.ParseEmailTemplates(logger, conf)
	user.LoadCommonPasswords(logger)
	emailsvc.ResetMessages()

	gw := inmemdb.New()
	files, err := localfs.New(conf.Storage.LocalDir, conf.Storage.BaseURL)
	require.NoError(t, err)

	activities := activity.NewService(gw, logger)
	students := student.NewService(gw, activities, validate)
	subjects := subject.NewService(gw, activities, validate)

	srv := NewServer(ServerDeps{
		Conf:         conf,
		Logger:       logger,
		Validate:     validate,
		Translator:   translator,
		UserSvc:      user.NewService(gw, students, emailsvc.NewConsoleServiceMock(conf, logger), conf, validate),
		StudentSvc:   students,
		ClassSvc:     class.NewService(gw, subjects, students, activities, validate),
		SubjectSvc:   subjects,
		ResultSvc:    result.NewService(gw, students, subjects, activities, logger, validate),
		BehaviorSvc:  behavior.NewService(gw, students, activities),
		DocumentSvc:  document.NewService(gw, files, students, activities),
		ActivitySvc:  activities,
		DashboardSvc: dashboard.NewService(gw, activities),
	})
	return &testApp{Server: srv, gw: gw}
}

func (app *testApp) createUser(t *testing.T, name, email string, role user.Role, mods ...func(*user.NewUser)) user.User {
	nu := user.NewUser{Name: name, Email: email, Password: goodPwd, PasswordConfirm: goodPwd, Role: role}
	for _, mod := range mods {
		mod(&nu)
	}
	usr, err := app.deps.UserSvc.Create(context.Background(), nu)
	require.NoError(t, err)
	return usr
}

func (app *testApp) createStudent(t *testing.T, adm, name, class, parent string) student.Student {
	st, err := app.deps.StudentSvc.Create(context.Background(), student.NewStudent{
		AdmissionNumber: adm, Name: name, Class: class, Parent: parent, Gender: "Female",
	}, "Seeder")
	require.NoError(t, err)
	return st
}

func (app *testApp) createSubject(t *testing.T, name string) subject.Subject {
	sbj, err := app.deps.SubjectSvc.Create(context.Background(), subject.NewSubject{Name: name}, "Seeder")
	require.NoError(t, err)
	return sbj
}

func (app *testApp) createResult(t *testing.T, st student.Student, sbj subject.Subject, score, term int) result.Result {
	res, err := app.deps.ResultSvc.Create(context.Background(), result.NewResult{
		StudentID: st.ID, SubjectID: sbj.ID, Score: &score, Term: term, Session: "2024/2025",
	}, "teacher@test.cd", "Seeder")
	require.NoError(t, err)
	return res
}

func (app *testApp) token(t *testing.T, usr user.User) string {
	token, err := app.auth.tokenFor(usr)
	if err != nil {
		t.Fatalf("token(): %v", err)
	}
	return token
}

type httpErr struct {
	Error string `json:"error"`
}

type httpTest struct {
	name     string
	method   string
	path     string
	body     []byte
	token    string
	wantCode int
	wantData []byte
}

func newAuthRequest(method, path, token string, data ...[]byte) (*http.Request, *httptest.ResponseRecorder) {
	var body bytes.Buffer
	if len(data) > 0 {
		body.Write(data[0])
	}
	req := httptest.NewRequest(method, path, &body)
	req.Header.Set("Content-Type", "application/json")
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	rec := httptest.NewRecorder()
	return req, rec
}

func newRequest(method, path string, data ...[]byte) (*http.Request, *httptest.ResponseRecorder) {
	return newAuthRequest(method, path, "", data...)
}

func (app *testApp) do(method, path, token string, data ...[]byte) *httptest.ResponseRecorder {
	req, rec := newAuthRequest(method, path, token, data...)
	app.ServeHTTP(rec, req)
	return rec
}

func (app *testApp) run(t *testing.T, tests []httpTest) {
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec := app.do(tt.method, tt.path, tt.token, tt.body)
			checkCodeAndData(t, tt, rec)
		})
	}
}

func marchallObj(t *testing.T, obj interface{}) []byte {
	data, err := json.Marshal(obj)
	if err != nil {
		t.Fatalf("marchallObj(): %v", err)
	}
	return data
}

func unmarshal(t *testing.T, rec *httptest.ResponseRecorder, v interface{}) {
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), v), rec.Body.String())
}

func jsonBytesEqual(t *testing.T, b1, b2 []byte) (bool, error) {
	var j1, j2 interface{}
	if err := json.Unmarshal(b1, &j1); err != nil {
		return false, err
	}
	if err := json.Unmarshal(b2, &j2); err != nil {
		return false, err
	}
	if reflect.DeepEqual(j1, j2) {
		return true, nil
	}
	if j1 == nil || j2 == nil {
		return false, nil
	}
	return assert.ElementsMatch(t, j1, j2), nil
}

// checkCodeAndData checks the status code, and the body when wantData is set.
func checkCodeAndData(t *testing.T, tt httpTest, rec *httptest.ResponseRecorder) {
	if rec.Code != tt.wantCode {
		t.Errorf("failed! code = %v; wantCode %v; body %s", rec.Code, tt.wantCode, rec.Body.String())
	}
	if tt.wantData == nil {
		return
	}
	ok, err := jsonBytesEqual(t, rec.Body.Bytes(), tt.wantData)
	if err != nil {
		t.Errorf("jsonBytesEqual() failed to compare; err %v", err)
	}
	if !ok {
		t.Errorf("failed! data = %v; wantData %v", rec.Body.String(), string(tt.wantData))
	}
}

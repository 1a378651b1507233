package echoapi

import (
	"context"
	"net/http"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/zhuluh247/MySchool/core"
	"github.com/zhuluh247/MySchool/core/user"
	emailsvc "github.com/zhuluh247/MySchool/services/email"
)

func Test_userApi_login(t *testing.T) {
	app := setup(t)
	app.createUser(t, "Grace Obi", "grace@test.cd", user.RoleProprietor)
	inactive := app.createUser(t, "Sleepy", "sleepy@test.cd", user.RoleTeacher)
	_, err := app.deps.UserSvc.Update(context.Background(), inactive.ID, user.UpdateUser{
		Name: inactive.Name, Email: inactive.Email, Status: user.StatusInactive,
	})
	require.NoError(t, err)

	tests := []httpTest{
		{
			name:     "missing fields",
			method:   http.MethodPost,
			path:     "/v1/auth/login",
			body:     []byte(`{}`),
			wantCode: http.StatusBadRequest,
			wantData: []byte(`{"email":"this field is required","password":"this field is required"}`),
		},
		{
			name:     "unknown email",
			method:   http.MethodPost,
			path:     "/v1/auth/login",
			body:     []byte(`{"email":"nobody@test.cd","password":"` + goodPwd + `"}`),
			wantCode: http.StatusBadRequest,
			wantData: marchallObj(t, httpErr{Error: "authentication failed"}),
		},
		{
			name:     "wrong password",
			method:   http.MethodPost,
			path:     "/v1/auth/login",
			body:     []byte(`{"email":"grace@test.cd","password":"nope"}`),
			wantCode: http.StatusBadRequest,
			wantData: marchallObj(t, httpErr{Error: "authentication failed"}),
		},
		{
			name:     "deactivated",
			method:   http.MethodPost,
			path:     "/v1/auth/login",
			body:     []byte(`{"email":"sleepy@test.cd","password":"` + goodPwd + `"}`),
			wantCode: http.StatusForbidden,
			wantData: marchallObj(t, httpErr{Error: "account deactivated"}),
		},
	}
	app.run(t, tests)

	t.Run("success", func(t *testing.T) {
		rec := app.do(http.MethodPost, "/v1/auth/login", "", []byte(`{"email":" GRACE@test.cd ","password":"`+goodPwd+`"}`))
		require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

		var resp LoginResponse
		unmarshal(t, rec, &resp)
		require.NotEmpty(t, resp.Token)
		require.NotNil(t, resp.User)
		assert.Equal(t, "grace@test.cd", resp.User.Email)
		assert.False(t, resp.User.LastLogin.IsZero())

		me := app.do(http.MethodGet, "/v1/users/me", resp.Token)
		assert.Equal(t, http.StatusOK, me.Code)
		assert.NotContains(t, me.Body.String(), "passwordHash")
	})
}

func Test_userApi_loginRateLimit(t *testing.T) {
	app := setup(t, func(conf *core.Config) { conf.Server.LoginRateLimit = 0.001 })
	body := []byte(`{"email":"nobody@test.cd","password":"nope"}`)

	first := app.do(http.MethodPost, "/v1/auth/login", "", body)
	assert.Equal(t, http.StatusBadRequest, first.Code)

	second := app.do(http.MethodPost, "/v1/auth/login", "", body)
	assert.Equal(t, http.StatusTooManyRequests, second.Code)
}

func Test_userApi_tokens(t *testing.T) {
	app := setup(t)
	usr := app.createUser(t, "Grace Obi", "grace@test.cd", user.RoleProprietor)
	token := app.token(t, usr)

	expired := app.auth.claimsFor(usr, 1) // issued in 1970
	expiredRefresh, err := app.auth.generateToken(expired)
	require.NoError(t, err)

	tests := []httpTest{
		{
			name:     "missing token",
			method:   http.MethodGet,
			path:     "/v1/users/me",
			wantCode: http.StatusUnauthorized,
			wantData: marchallObj(t, errMissingToken),
		},
		{
			name:     "refresh",
			method:   http.MethodPost,
			path:     "/v1/auth/token-refresh",
			token:    token,
			wantCode: http.StatusOK,
		},
		{
			name:     "refresh expired",
			method:   http.MethodPost,
			path:     "/v1/auth/token-refresh",
			token:    expiredRefresh,
			wantCode: http.StatusForbidden,
			wantData: marchallObj(t, httpErr{Error: "refresh has expired"}),
		},
	}
	app.run(t, tests)

	t.Run("deleted user", func(t *testing.T) {
		ghost := app.createUser(t, "Ghost", "ghost@test.cd", user.RoleTeacher)
		ghostToken := app.token(t, ghost)
		require.NoError(t, app.deps.UserSvc.Delete(context.Background(), ghost.ID))

		rec := app.do(http.MethodGet, "/v1/users/me", ghostToken)
		assert.Equal(t, http.StatusUnauthorized, rec.Code)
	})
}

func Test_userApi_passwordReset(t *testing.T) {
	app := setup(t)
	app.createUser(t, "Grace Obi", "grace@test.cd", user.RoleProprietor)
	success := []byte(`{"success":"If the email address supplied is associated with an active account on this system, ` +
		`an email will arrive in your inbox shortly with instructions to reset your password."}`)

	// unknown emails get the same answer
	rec := app.do(http.MethodPost, "/v1/auth/password-reset", "", []byte(`{"email":"nobody@test.cd"}`))
	assert.Equal(t, http.StatusOK, rec.Code)
	_, sent := emailsvc.LastMessage()
	assert.False(t, sent)

	rec = app.do(http.MethodPost, "/v1/auth/password-reset", "", []byte(`{"email":"grace@test.cd"}`))
	checkCodeAndData(t, httpTest{wantCode: http.StatusOK, wantData: success}, rec)

	msg, sent := emailsvc.LastMessage()
	require.True(t, sent)
	data, ok := msg.TemplateData.(map[string]interface{})
	require.True(t, ok)
	uid, _ := data["UID"].(string)
	token, _ := data["Token"].(string)
	require.NotEmpty(t, uid)
	require.NotEmpty(t, token)

	link := "http://localhost:3000/password-reset/" + uid + "/" + token
	require.True(t, msg.HasContent())
	assert.Contains(t, msg.TextContent, link)
	assert.Contains(t, msg.HTMLContent, `href="`+link+`"`)

	newPwd := "Zx8$wLq3@nB"
	tests := []httpTest{
		{
			name:     "bad token",
			method:   http.MethodPost,
			path:     "/v1/auth/password-reset-confirm",
			body:     []byte(`{"uid":"` + uid + `","token":"bad-token","password":"` + newPwd + `","passwordConfirm":"` + newPwd + `"}`),
			wantCode: http.StatusBadRequest,
			wantData: marchallObj(t, httpErr{Error: user.ErrInvalidResetLink.Error()}),
		},
		{
			name:     "weak password",
			method:   http.MethodPost,
			path:     "/v1/auth/password-reset-confirm",
			body:     []byte(`{"uid":"` + uid + `","token":"` + token + `","password":"password","passwordConfirm":"password"}`),
			wantCode: http.StatusBadRequest,
		},
		{
			name:     "success",
			method:   http.MethodPost,
			path:     "/v1/auth/password-reset-confirm",
			body:     []byte(`{"uid":"` + uid + `","token":"` + token + `","password":"` + newPwd + `","passwordConfirm":"` + newPwd + `"}`),
			wantCode: http.StatusOK,
			wantData: []byte(`{"success":"Password has been reset with the new password."}`),
		},
		{
			name:     "login with new password",
			method:   http.MethodPost,
			path:     "/v1/auth/login",
			body:     []byte(`{"email":"grace@test.cd","password":"` + newPwd + `"}`),
			wantCode: http.StatusOK,
		},
	}
	app.run(t, tests)
}

func Test_userApi_manage(t *testing.T) {
	app := setup(t)
	ctx := context.Background()
	owner := app.createUser(t, "Grace Obi", "grace@test.cd", user.RoleProprietor)
	teacher := app.createUser(t, "Tunde Bello", "tunde@test.cd", user.RoleTeacher)
	parent := app.createUser(t, "Ngozi Eze", "ngozi@test.cd", user.RoleParent)
	st := app.createStudent(t, "ADM001", "Ada Eze", "JSS1", "")

	ownerToken := app.token(t, owner)
	parentToken := app.token(t, parent)

	t.Run("parents cannot list users", func(t *testing.T) {
		rec := app.do(http.MethodGet, "/v1/users", parentToken)
		assert.Equal(t, http.StatusForbidden, rec.Code)
	})

	t.Run("list by role", func(t *testing.T) {
		rec := app.do(http.MethodGet, "/v1/users?role=teacher", ownerToken)
		require.Equal(t, http.StatusOK, rec.Code)
		var got []user.User
		unmarshal(t, rec, &got)
		require.Len(t, got, 1)
		assert.Equal(t, teacher.ID, got[0].ID)
	})

	t.Run("create parent links children", func(t *testing.T) {
		body := []byte(`{"name":"Chidi Okafor","email":"chidi@test.cd","password":"` + goodPwd +
			`","passwordConfirm":"` + goodPwd + `","role":"parent","children":["ADM001"]}`)
		rec := app.do(http.MethodPost, "/v1/users", ownerToken, body)
		require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())

		linked, err := app.deps.StudentSvc.Get(ctx, st.ID)
		require.NoError(t, err)
		assert.Equal(t, "chidi@test.cd", linked.Parent)

		dup := app.do(http.MethodPost, "/v1/users", ownerToken, body)
		assert.Equal(t, http.StatusBadRequest, dup.Code)
		assert.JSONEq(t, `{"email":"a user with this email already exists"}`, dup.Body.String())
	})

	t.Run("update", func(t *testing.T) {
		rec := app.do(http.MethodPut, "/v1/users/"+teacher.ID, ownerToken, []byte(`{"status":"inactive"}`))
		require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
		var got user.User
		unmarshal(t, rec, &got)
		assert.Equal(t, user.StatusInactive, got.Status)
		assert.Equal(t, teacher.Name, got.Name)

		// deactivated users lose access at once
		rec = app.do(http.MethodGet, "/v1/users/me", app.token(t, teacher))
		assert.Equal(t, http.StatusForbidden, rec.Code)
	})

	t.Run("import", func(t *testing.T) {
		body := []byte(`{"role":"teacher","rows":[` +
			`{"name":"Bisi Ade","email":"bisi@test.cd","password":"` + goodPwd + `"},` +
			`{"name":"","email":"blank@test.cd","password":"` + goodPwd + `"}]}`)
		rec := app.do(http.MethodPost, "/v1/users/import", ownerToken, body)
		require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
		var report core.ImportReport
		unmarshal(t, rec, &report)
		assert.Equal(t, 2, report.Total)
		assert.Equal(t, 1, report.Succeeded)
		require.Len(t, report.Failures, 1)
		assert.Equal(t, 2, report.Failures[0].Row)
	})

	tests := []httpTest{
		{
			name:     "cannot delete self",
			method:   http.MethodDelete,
			path:     "/v1/users/" + owner.ID,
			token:    ownerToken,
			wantCode: http.StatusForbidden,
			wantData: marchallObj(t, httpErr{Error: "permission denied"}),
		},
		{
			name:     "parent cannot delete",
			method:   http.MethodDelete,
			path:     "/v1/users/" + teacher.ID,
			token:    parentToken,
			wantCode: http.StatusForbidden,
		},
		{
			name:     "delete",
			method:   http.MethodDelete,
			path:     "/v1/users/" + teacher.ID,
			token:    ownerToken,
			wantCode: http.StatusNoContent,
		},
		{
			name:     "deleted",
			method:   http.MethodGet,
			path:     "/v1/users/" + teacher.ID,
			token:    ownerToken,
			wantCode: http.StatusNotFound,
			wantData: marchallObj(t, httpErr{Error: "not found"}),
		},
	}
	app.run(t, tests)
}

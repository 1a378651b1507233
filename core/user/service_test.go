package user

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/zhuluh247/MySchool/core"
	"github.com/zhuluh247/MySchool/internal/testutil"
	inmemdb "github.com/zhuluh247/MySchool/storage/database/inmem"
)

const goodPwd = "Kp9#vRt2!mQ"

type fakeLinker struct {
	known map[string]bool
	links map[string]string // admission number -> parent
}

func (l *fakeLinker) LinkParent(ctx context.Context, adm, email string) error {
	if !l.known[adm] {
		return core.ErrNotFound
	}
	l.links[adm] = email
	return nil
}

type fakeMailer struct {
	mu   sync.Mutex
	sent []*core.EmailMessage
}

func (m *fakeMailer) SendMessages(messages ...*core.EmailMessage) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.sent = append(m.sent, messages...)
}

func setup(t *testing.T) (*Service, *fakeLinker, *fakeMailer) {
	validate := validator.New()
	translator := core.NewTranslator()
	core.InitValidators(validate, translator)
	InitValidators(validate, translator)
	LoadCommonPasswords(testutil.NewLogger(t))

	linker := &fakeLinker{known: map[string]bool{"ADM001": true, "ADM002": true}, links: map[string]string{}}
	mailer := &fakeMailer{}
	conf := &core.Config{SecretKey: "secret", PasswordResetTimeoutDelta: 72 * time.Hour}
	return NewService(inmemdb.New(), linker, mailer, conf, validate), linker, mailer
}

func TestNewUser_Validate(t *testing.T) {
	svc, _, _ := setup(t)
	ctx := context.Background()

	_, err := svc.Create(ctx, NewUser{Name: "Taken", Email: "taken@test.cd", Password: goodPwd, Role: RoleTeacher})
	require.NoError(t, err)

	newUser := func(mod func(*NewUser)) NewUser {
		nu := NewUser{Name: "Ada Obi", Email: "ada@test.cd", Password: goodPwd, PasswordConfirm: goodPwd, Role: RoleTeacher}
		mod(&nu)
		return nu
	}

	tests := []struct {
		name     string
		nu       NewUser
		wantTag  string
		wantFld  string
		wantCore bool
	}{
		{name: "valid", nu: newUser(func(nu *NewUser) {})},
		{name: "blank name", nu: newUser(func(nu *NewUser) { nu.Name = "   " }), wantTag: "required", wantFld: "name"},
		{name: "bad email", nu: newUser(func(nu *NewUser) { nu.Email = "ada" }), wantTag: "email", wantFld: "email"},
		{name: "unknown role", nu: newUser(func(nu *NewUser) { nu.Role = "student" }), wantTag: userRoleTag, wantFld: "role"},
		{name: "confirm mismatch", nu: newUser(func(nu *NewUser) { nu.PasswordConfirm = "nope" }), wantTag: "eqfield", wantFld: "passwordConfirm"},
		{name: "short password", nu: newUser(func(nu *NewUser) { nu.Password, nu.PasswordConfirm = "Ab1!", "Ab1!" }), wantTag: pwdMinLenTag, wantFld: "password"},
		{name: "password with space", nu: newUser(func(nu *NewUser) { nu.Password, nu.PasswordConfirm = "Ab1! cdefg", "Ab1! cdefg" }), wantTag: pwdNoSpaceTag, wantFld: "password"},
		{name: "numeric password", nu: newUser(func(nu *NewUser) { nu.Password, nu.PasswordConfirm = "1234567890", "1234567890" }), wantTag: pwdNotAllNumTag, wantFld: "password"},
		{name: "simple password", nu: newUser(func(nu *NewUser) { nu.Password, nu.PasswordConfirm = "abcdefgh1", "abcdefgh1" }), wantTag: pwdComplexityTag, wantFld: "password"},
		{name: "password like email", nu: newUser(func(nu *NewUser) { nu.Password, nu.PasswordConfirm = "Ada@test.cd1", "Ada@test.cd1" }), wantTag: pwdAttrSimTag, wantFld: "password"},
		{name: "common password", nu: newUser(func(nu *NewUser) { nu.Password, nu.PasswordConfirm = "P@ssword1", "P@ssword1" }), wantTag: pwdNoCommonTag, wantFld: "password"},
		{name: "email taken", nu: newUser(func(nu *NewUser) { nu.Email = " TAKEN@test.cd " }), wantCore: true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := tt.nu.Validate(ctx, svc.validate, svc)
			switch {
			case tt.wantCore:
				var vErr *core.ValidationError
				require.ErrorAs(t, err, &vErr)
				assert.Equal(t, []core.FieldError{{Field: "email", Error: ErrEmailExists.Error()}}, vErr.Fields)
			case tt.wantTag != "":
				var vErrs validator.ValidationErrors
				require.ErrorAs(t, err, &vErrs)
				assert.Equal(t, tt.wantTag, vErrs[0].Tag())
				assert.Equal(t, tt.wantFld, vErrs[0].Field())
			default:
				assert.NoError(t, err)
			}
		})
	}
}

func TestService_Create(t *testing.T) {
	svc, linker, mailer := setup(t)
	ctx := context.Background()

	parent, err := svc.Create(ctx, NewUser{
		Name: "Mum", Email: "mum@test.cd", Password: goodPwd, Role: RoleParent,
		Children: []string{"ADM001", "ADM404"}, Subjects: []string{"ignored"},
	})
	require.NoError(t, err)
	assert.NotEmpty(t, parent.ID)
	assert.Equal(t, StatusActive, parent.Status)
	assert.Nil(t, parent.Subjects)
	assert.NoError(t, parent.CheckPassword(goodPwd))
	assert.Equal(t, map[string]string{"ADM001": "mum@test.cd"}, linker.links)
	require.Len(t, mailer.sent, 1)
	assert.Equal(t, "welcome", mailer.sent[0].TemplateName)

	got, err := svc.GetByEmail(ctx, " MUM@test.cd")
	require.NoError(t, err)
	assert.Equal(t, parent.ID, got.ID)
	assert.Equal(t, parent.PasswordHash, got.PasswordHash)

	teacher, err := svc.Create(ctx, NewUser{
		Name: "Mr T", Email: "t@test.cd", Password: goodPwd, Role: RoleTeacher,
		Subjects: []string{"Maths"}, AssignedClasses: []string{"JSS1"},
	})
	require.NoError(t, err)

	teachers, err := svc.QueryByRole(ctx, RoleTeacher)
	require.NoError(t, err)
	require.Len(t, teachers, 1)
	assert.Equal(t, teacher.ID, teachers[0].ID)
	assert.Equal(t, []string{"Maths"}, teachers[0].Subjects)

	all, err := svc.QueryAll(ctx)
	require.NoError(t, err)
	assert.Len(t, all, 2)
}

func TestService_Import(t *testing.T) {
	svc, _, _ := setup(t)
	ctx := context.Background()

	report := svc.Import(ctx, RoleParent, []NewUser{
		{Name: "Mum", Email: "mum@test.cd", Password: goodPwd, Children: []string{"ADM002"}},
		{Name: "", Email: "dad@test.cd", Password: goodPwd},
		{Name: "Aunt", Email: "mum@test.cd", Password: goodPwd},
		{Name: "Uncle", Email: "uncle@test.cd", Password: goodPwd, Role: RoleProprietor},
	})

	assert.Equal(t, 4, report.Total)
	assert.Equal(t, 2, report.Succeeded)
	require.Len(t, report.Failures, 2)
	assert.Equal(t, 2, report.Failures[0].Row)
	assert.Equal(t, 3, report.Failures[1].Row)
	assert.Equal(t, "2 of 4 succeeded", report.String())

	uncle, err := svc.GetByEmail(ctx, "uncle@test.cd")
	require.NoError(t, err)
	assert.Equal(t, RoleParent, uncle.Role)
}

func TestService_Update(t *testing.T) {
	svc, _, _ := setup(t)
	ctx := context.Background()

	usr, err := svc.Create(ctx, NewUser{Name: "Mr T", Email: "t@test.cd", Password: goodPwd, Role: RoleTeacher})
	require.NoError(t, err)
	other, err := svc.Create(ctx, NewUser{Name: "Other", Email: "other@test.cd", Password: goodPwd, Role: RoleTeacher})
	require.NoError(t, err)

	uu := UpdateUser{Email: "other@test.cd"}
	err = uu.Validate(ctx, usr, svc.validate, svc)
	var vErr *core.ValidationError
	assert.ErrorAs(t, err, &vErr)

	uu = UpdateUser{Name: "Mr Teacher", Status: StatusInactive, Subjects: []string{"Physics"}}
	require.NoError(t, uu.Validate(ctx, usr, svc.validate, svc))
	updated, err := svc.Update(ctx, usr.ID, uu)
	require.NoError(t, err)
	assert.Equal(t, "Mr Teacher", updated.Name)
	assert.Equal(t, "t@test.cd", updated.Email)
	assert.Equal(t, RoleTeacher, updated.Role)
	assert.False(t, updated.IsActive())
	assert.Equal(t, []string{"Physics"}, updated.Subjects)

	// keeping its own email is fine
	uu = UpdateUser{Email: "other@test.cd"}
	assert.NoError(t, uu.Validate(ctx, other, svc.validate, svc))

	_, err = svc.Update(ctx, "missing", UpdateUser{})
	assert.True(t, core.IsNotFound(err))
}

func TestService_PasswordReset(t *testing.T) {
	svc, _, mailer := setup(t)
	ctx := context.Background()

	usr, err := svc.Create(ctx, NewUser{Name: "Mr T", Email: "t@test.cd", Password: goodPwd, Role: RoleTeacher})
	require.NoError(t, err)

	assert.True(t, core.IsNotFound(svc.RequestPasswordReset(ctx, "nobody@test.cd")))
	require.NoError(t, svc.RequestPasswordReset(ctx, "t@test.cd"))
	require.Len(t, mailer.sent, 2)
	data := mailer.sent[1].TemplateData.(map[string]interface{})
	uid, token := data["UID"].(string), data["Token"].(string)
	assert.Equal(t, EncodeUID(usr), uid)

	newPwd := "Zx8$wq!Lm3"
	var vErr *core.ValidationError
	err = svc.ResetPassword(ctx, ResetUserPassword{UID: uid, Token: "bad-token", Password: newPwd, PasswordConfirm: newPwd})
	require.ErrorAs(t, err, &vErr)
	err = svc.ResetPassword(ctx, ResetUserPassword{UID: "%%%", Token: token, Password: newPwd, PasswordConfirm: newPwd})
	require.ErrorAs(t, err, &vErr)

	require.NoError(t, svc.ResetPassword(ctx, ResetUserPassword{UID: uid, Token: token, Password: newPwd, PasswordConfirm: newPwd}))
	refreshed, err := svc.GetByID(ctx, usr.ID)
	require.NoError(t, err)
	assert.NoError(t, refreshed.CheckPassword(newPwd))

	// the token is single use: the password hash changed
	err = svc.ResetPassword(ctx, ResetUserPassword{UID: uid, Token: token, Password: goodPwd, PasswordConfirm: goodPwd})
	assert.ErrorAs(t, err, &vErr)
}

func TestService_SetLastLoginAndDelete(t *testing.T) {
	svc, _, _ := setup(t)
	ctx := context.Background()

	usr, err := svc.Create(ctx, NewUser{Name: "Mr T", Email: "t@test.cd", Password: goodPwd, Role: RoleTeacher})
	require.NoError(t, err)
	assert.True(t, usr.LastLogin.IsZero())

	usr, err = svc.SetLastLogin(ctx, usr)
	require.NoError(t, err)
	got, err := svc.GetByID(ctx, usr.ID)
	require.NoError(t, err)
	assert.False(t, got.LastLogin.IsZero())

	require.NoError(t, svc.Delete(ctx, usr.ID))
	_, err = svc.GetByID(ctx, usr.ID)
	assert.True(t, core.IsNotFound(err))
}

package behavior

import (
	"context"
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
)

func setup(t *testing.T) (*Service, *validator.Validate, student.Student, *activity.Service) {
	validate := validator.New()
	translator := core.NewTranslator()
	core.InitValidators(validate, translator)
	InitValidators(validate, translator)

	gw := inmemdb.New()
	activities := activity.NewService(gw, testutil.NewLogger(t))
	students := student.NewService(gw, activities, validate)
	st, err := students.Create(context.Background(), student.NewStudent{AdmissionNumber: "ADM001", Name: "Alice", Class: "JSS 1A", Gender: "Female"}, "Admin")
	require.NoError(t, err)
	return NewService(gw, students, activities), validate, st, activities
}

func TestNewRecord_Validate(t *testing.T) {
	svc, validate, st, _ := setup(t)
	ctx := context.Background()

	tests := []struct {
		name    string
		nr      NewRecord
		wantTag string
		wantErr bool
	}{
		{name: "valid", nr: NewRecord{StudentID: st.ID, Type: "Positive", Description: "Helped a classmate"}},
		{name: "dated", nr: NewRecord{StudentID: st.ID, Type: Negative, Description: "Late", Date: "2024-03-01"}},
		{name: "unknown type", nr: NewRecord{StudentID: st.ID, Type: "neutral", Description: "x"}, wantTag: typeTag},
		{name: "blank description", nr: NewRecord{StudentID: st.ID, Type: Positive, Description: "  "}, wantTag: "required"},
		{name: "bad date", nr: NewRecord{StudentID: st.ID, Type: Positive, Description: "x", Date: "yesterday"}, wantTag: "isodate"},
		{name: "unknown student", nr: NewRecord{StudentID: "missing", Type: Positive, Description: "x"}, wantErr: true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := tt.nr.Validate(ctx, validate, svc)
			switch {
			case tt.wantTag != "":
				var vErrs validator.ValidationErrors
				require.ErrorAs(t, err, &vErrs)
				assert.Equal(t, tt.wantTag, vErrs[0].Tag())
			case tt.wantErr:
				var vErr *core.ValidationError
				assert.ErrorAs(t, err, &vErr)
			default:
				assert.NoError(t, err)
			}
		})
	}
}

func TestService(t *testing.T) {
	svc, _, st, activities := setup(t)
	ctx := context.Background()

	defer func(orig func() time.Time) { core.NowFunc = orig }(core.NowFunc)
	core.NowFunc = func() time.Time { return time.Date(2024, time.March, 10, 9, 0, 0, 0, time.UTC) }

	today, err := svc.Create(ctx, NewRecord{StudentID: st.ID, Type: Positive, Description: "Helped"}, "mum@test.cd", "Mum")
	require.NoError(t, err)
	assert.Equal(t, "2024-03-10", today.Date)
	assert.Equal(t, "mum@test.cd", today.RecordedBy)

	_, err = svc.Create(ctx, NewRecord{StudentID: st.ID, Type: Negative, Description: "Late", Date: "2024-03-01"}, "t@test.cd", "Mr T")
	require.NoError(t, err)
	_, err = svc.Create(ctx, NewRecord{StudentID: st.ID, Type: Positive, Description: "Won quiz", Date: "2024-03-05"}, "t@test.cd", "Mr T")
	require.NoError(t, err)

	recent, err := activities.Recent(ctx, 1)
	require.NoError(t, err)
	assert.Equal(t, "Behavior record added for Alice", recent[0].Text)

	recs, err := svc.ForStudent(ctx, st.ID)
	require.NoError(t, err)
	descriptions := make([]string, 0, len(recs))
	for _, r := range recs {
		descriptions = append(descriptions, r.Description)
	}
	assert.Equal(t, []string{"Helped", "Won quiz", "Late"}, descriptions)

	summary, err := svc.Summary(ctx, st.ID)
	require.NoError(t, err)
	assert.Equal(t, Summary{StudentID: st.ID, Positive: 2, Negative: 1, Total: 3}, summary)

	require.NoError(t, svc.Delete(ctx, today.ID))
	all, err := svc.QueryAll(ctx)
	require.NoError(t, err)
	assert.Len(t, all, 2)

	_, err = svc.Create(ctx, NewRecord{StudentID: "missing", Type: Positive, Description: "x"}, "t@test.cd", "Mr T")
	assert.True(t, core.IsNotFound(err))
}

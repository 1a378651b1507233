package core

import (
	"reflect"
	"strings"

	"github.com/go-playground/locales/en"
	ut "github.com/go-playground/universal-translator"
	"github.com/go-playground/validator/v10"
	en_translations "github.com/go-playground/validator/v10/translations/en"
)

// DateLayout is the layout of calendar dates (dates of birth, behavior and document dates).
const DateLayout = "2006-01-02"

// Validation is a custom validation tag with its English message.
// Fn may be nil to only override the message of a built-in tag.
type Validation struct {
	Tag  string
	Text string
	Fn   validator.Func
}

var coreValidations = []Validation{
	{Tag: "notblank", Text: "this field cannot be blank", Fn: notBlank},
	{Tag: "term", Text: "term must be 1, 2 or 3", Fn: schoolTerm},
	{Tag: "isodate", Text: "date must be formatted as YYYY-MM-DD", Fn: isoDate},
	{Tag: "required", Text: "this field is required"},
	{Tag: "required_with", Text: "this field is required"},
}

// NewTranslator returns the English translator used for validation messages.
func NewTranslator() ut.Translator {
	english := en.New()
	translator, _ := ut.New(english, english).GetTranslator("en")
	return translator
}

// InitValidators registers the default English messages, JSON field names and the shared custom tags.
func InitValidators(validate *validator.Validate, translator ut.Translator) {
	_ = en_translations.RegisterDefaultTranslations(validate, translator)
	validate.RegisterTagNameFunc(jsonFieldName)
	RegisterValidations(validate, translator, coreValidations...)
}

// RegisterValidations registers each validation function and its message.
// Messages of built-in tags are overridden.
func RegisterValidations(validate *validator.Validate, translator ut.Translator, validations ...Validation) {
	for _, v := range validations {
		override := v.Fn == nil
		if !override {
			_ = validate.RegisterValidation(v.Tag, v.Fn)
		}
		RegisterCustomTranslation(validate, translator, v.Tag, v.Text, override)
	}
}

// RegisterCustomTranslation registers the message of a validation tag.
// The field name is available to text as {0}.
func RegisterCustomTranslation(validate *validator.Validate, translator ut.Translator, tag, text string, override ...bool) {
	replace := len(override) > 0 && override[0]
	_ = validate.RegisterTranslation(tag, translator,
		func(t ut.Translator) error { return t.Add(tag, text, replace) },
		func(t ut.Translator, fe validator.FieldError) string {
			msg, _ := t.T(tag, fe.Field())
			return msg
		},
	)
}

func jsonFieldName(fld reflect.StructField) string {
	name, _, _ := strings.Cut(fld.Tag.Get("json"), ",")
	if name == "-" {
		return ""
	}
	return name
}

func notBlank(fl validator.FieldLevel) bool {
	return strings.TrimSpace(fl.Field().String()) != ""
}

func schoolTerm(fl validator.FieldLevel) bool {
	f := fl.Field()
	if !f.CanInt() {
		return false
	}
	return f.Int() >= 1 && f.Int() <= 3
}

func isoDate(fl validator.FieldLevel) bool {
	_, err := ParseDate(fl.Field().String())
	return err == nil
}

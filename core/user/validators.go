package user

import (
	"bufio"
	"fmt"
	"sort"
	"strings"
	"sync"
	"unicode"

	ut "github.com/go-playground/universal-translator"
	"github.com/go-playground/validator/v10"
	"github.com/pmezard/go-difflib/difflib"

	"github.com/zhuluh247/MySchool/core"
	appfs "github.com/zhuluh247/MySchool/fs"
)

const (
	pwdMinLen = 8
	pwdMaxSim = .7

	userRoleTag      = "userrole"
	pwdMinLenTag     = "pwdminlen"
	pwdNoSpaceTag    = "pwdnospace"
	pwdNotAllNumTag  = "pwdnotallnum"
	pwdComplexityTag = "pwdcplx"
	pwdAttrSimTag    = "pwdtoosim"
	pwdNoCommonTag   = "pwdnocommon"
)

// passwordRule is one rule of the password policy. breaks reports whether pwd violates it;
// attrs are the name and email of the account.
type passwordRule struct {
	tag    string
	text   string
	breaks func(pwd []rune, attrs []string) bool
}

// passwordPolicy is checked in order; only the first broken rule is reported.
var passwordPolicy = []passwordRule{
	{
		tag:  pwdMinLenTag,
		text: fmt.Sprintf("password must contain at least %d characters", pwdMinLen),
		breaks: func(pwd []rune, _ []string) bool {
			return len(pwd) < pwdMinLen
		},
	},
	{
		tag:  pwdNoSpaceTag,
		text: "password must not contain whitespace",
		breaks: func(pwd []rune, _ []string) bool {
			return countRunes(pwd, unicode.IsSpace) > 0
		},
	},
	{
		tag:  pwdNotAllNumTag,
		text: "password cannot be entirely numeric",
		breaks: func(pwd []rune, _ []string) bool {
			return countRunes(pwd, unicode.IsDigit) == len(pwd)
		},
	},
	{
		tag:  pwdComplexityTag,
		text: "password must contain at least 1 uppercase character, 1 lowercase character, 1 digit and 1 special character",
		breaks: func(pwd []rune, _ []string) bool {
			special := func(r rune) bool { return r > unicode.MaxASCII || !(unicode.IsLetter(r) || unicode.IsDigit(r)) }
			for _, class := range []func(rune) bool{unicode.IsUpper, unicode.IsLower, unicode.IsDigit, special} {
				if countRunes(pwd, class) == 0 {
					return true
				}
			}
			return false
		},
	},
	{
		tag:  pwdAttrSimTag,
		text: "password cannot be similar to user attributes",
		breaks: func(pwd []rune, attrs []string) bool {
			chars := strings.Split(strings.ToLower(string(pwd)), "")
			for _, attr := range attrs {
				if attr == "" {
					continue
				}
				m := difflib.NewMatcher(chars, strings.Split(strings.ToLower(attr), ""))
				if m.QuickRatio() >= pwdMaxSim {
					return true
				}
			}
			return false
		},
	},
	{
		tag:  pwdNoCommonTag,
		text: "password is too common",
		breaks: func(pwd []rune, _ []string) bool {
			return isCommonPassword(string(pwd))
		},
	},
}

var commonPasswords struct {
	sync.RWMutex
	sorted []string
}

// InitValidators registers the role tag, the password policy and their messages.
func InitValidators(validate *validator.Validate, translator ut.Translator) {
	core.RegisterValidations(validate, translator, core.Validation{
		Tag:  userRoleTag,
		Text: "role must be one of proprietor, teacher or parent",
		Fn:   func(fl validator.FieldLevel) bool { return Role(fl.Field().String()).Valid() },
	})

	validate.RegisterStructValidation(passwordStructValidation, NewUser{}, UpdateUser{}, ResetUserPassword{})
	for _, rule := range passwordPolicy {
		core.RegisterCustomTranslation(validate, translator, rule.tag, rule.text)
	}
}

// LoadCommonPasswords loads the embedded list of passwords too common to be accepted.
func LoadCommonPasswords(logger core.Logger) {
	file, err := appfs.FS.Open("common-passwords.txt")
	if err != nil {
		logger.Error(fmt.Sprintf("opening common passwords: %v", err), err)
		return
	}
	defer file.Close()

	var pwds []string
	scanner := bufio.NewScanner(file)
	for scanner.Scan() {
		if pwd := core.CleanString(scanner.Text(), true /* lower */); pwd != "" {
			pwds = append(pwds, pwd)
		}
	}
	if err := scanner.Err(); err != nil {
		logger.Error(fmt.Sprintf("reading common passwords: %v", err), err)
		return
	}
	sort.Strings(pwds)

	commonPasswords.Lock()
	commonPasswords.sorted = pwds
	commonPasswords.Unlock()
}

func isCommonPassword(pwd string) bool {
	commonPasswords.RLock()
	defer commonPasswords.RUnlock()

	pwd = strings.ToLower(pwd)
	i := sort.SearchStrings(commonPasswords.sorted, pwd)
	return i < len(commonPasswords.sorted) && commonPasswords.sorted[i] == pwd
}

// passwordStructValidation applies the password policy to NewUser, UpdateUser and ResetUserPassword.
// An empty UpdateUser password keeps the current one.
func passwordStructValidation(sl validator.StructLevel) {
	var (
		pwd   string
		attrs []string
	)
	switch v := sl.Current().Interface().(type) {
	case NewUser:
		pwd, attrs = v.Password, []string{v.Name, v.Email}
	case UpdateUser:
		if v.Password == "" {
			return
		}
		pwd, attrs = v.Password, []string{v.Name, v.Email}
	case ResetUserPassword:
		pwd = v.Password
	default:
		return
	}
	if tag := checkPassword(pwd, attrs...); tag != "" {
		sl.ReportError(pwd, "password", "Password", tag, "")
	}
}

// checkPassword returns the tag of the first policy rule pwd breaks, if any.
func checkPassword(pwd string, attrs ...string) string {
	runes := []rune(pwd)
	for _, rule := range passwordPolicy {
		if rule.breaks(runes, attrs) {
			return rule.tag
		}
	}
	return ""
}

func countRunes(rs []rune, match func(rune) bool) int {
	n := 0
	for _, r := range rs {
		if match(r) {
			n++
		}
	}
	return n
}

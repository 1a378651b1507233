// Package logsvc implements core.Logger on top of a standard logger, reporting to rollbar.
package logsvc

import (
	"context"
	"fmt"
	"log"
	"strings"

	"github.com/rollbar/rollbar-go"
	rollbarerrors "github.com/rollbar/rollbar-go/errors"

	"github.com/zhuluh247/MySchool/core"
	"github.com/zhuluh247/MySchool/core/user"
)

// RollbarLogger writes every entry to std and reports it to rollbar when enabled.
// Arguments may be an error, a map of extra data and the user.User the entry is about;
// the user is reported as the rollbar person and never printed.
type RollbarLogger struct {
	std    *log.Logger
	client *rollbar.Client
}

var _ core.Logger = (*RollbarLogger)(nil)

func NewRollbarLogger(std *log.Logger, conf *core.Config) *RollbarLogger {
	client := rollbar.New(conf.RollbarToken, conf.Env, conf.Build, conf.Server.Host, "")
	client.SetStackTracer(rollbarerrors.StackTracer)
	return &RollbarLogger{std: std, client: client}
}

func (l *RollbarLogger) Enable(enabled bool) {
	l.client.SetEnabled(enabled)
}

type entry struct {
	err    error
	extras map[string]interface{}
	person *rollbar.Person
	other  []interface{}
}

func parseArgs(args []interface{}) entry {
	var e entry
	for _, arg := range args {
		switch v := arg.(type) {
		case user.User:
			if e.person == nil {
				e.person = &rollbar.Person{Id: v.ID, Username: v.Name, Email: v.Email}
			}
		case error:
			if e.err == nil {
				e.err = v
			} else {
				e.other = append(e.other, v)
			}
		case map[string]interface{}:
			if e.extras == nil {
				e.extras = make(map[string]interface{}, len(v))
			}
			for k, val := range v {
				e.extras[k] = val
			}
		default:
			e.other = append(e.other, v)
		}
	}
	if len(e.other) > 0 {
		if e.extras == nil {
			e.extras = make(map[string]interface{}, 1)
		}
		e.extras["args"] = fmt.Sprint(e.other...)
	}
	return e
}

func (l *RollbarLogger) log(level, msg string, args []interface{}) entry {
	e := parseArgs(args)

	var b strings.Builder
	_, _ = fmt.Fprintf(&b, "%s: %s", strings.ToUpper(level), msg)
	if e.err != nil {
		_, _ = fmt.Fprintf(&b, "\n%+v", e.err)
	}
	for k, v := range e.extras {
		_, _ = fmt.Fprintf(&b, "\n  %s=%v", k, v)
	}
	l.std.Print(b.String())

	ctx := context.Background()
	if e.person != nil {
		ctx = rollbar.NewPersonContext(ctx, e.person)
	}
	if e.err != nil {
		extras := map[string]interface{}{"message": msg}
		for k, v := range e.extras {
			extras[k] = v
		}
		l.client.ErrorWithExtrasAndContext(ctx, level, e.err, extras)
	} else {
		l.client.MessageWithExtrasAndContext(ctx, level, msg, e.extras)
	}
	return e
}

func (l *RollbarLogger) Debug(msg string, args ...interface{}) { l.log(rollbar.DEBUG, msg, args) }
func (l *RollbarLogger) Info(msg string, args ...interface{})  { l.log(rollbar.INFO, msg, args) }
func (l *RollbarLogger) Warn(msg string, args ...interface{})  { l.log(rollbar.WARN, msg, args) }
func (l *RollbarLogger) Error(msg string, args ...interface{}) { l.log(rollbar.ERR, msg, args) }

// Fatal reports the entry, waits for rollbar to flush and exits.
func (l *RollbarLogger) Fatal(msg string, args ...interface{}) {
	l.log(rollbar.CRIT, msg, args)
	l.client.Wait()
	l.std.Fatal(msg)
}

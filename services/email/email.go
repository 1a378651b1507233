// Package emailsvc implements core.EmailService for local development (console) and production (sendgrid).
package emailsvc

import (
	"fmt"

	"github.com/zhuluh247/MySchool/core"
)

// render prepares msg for delivery and reports whether it should be sent.
func render(conf *core.Config, logger core.Logger, msg *core.EmailMessage) bool {
	if err := msg.Render(conf); err != nil {
		logger.Error(fmt.Sprintf("rendering email %q: %v", msg.Subject, err), err)
		return false
	}
	return msg.Deliverable()
}

func subjectPrefix(conf *core.Config) string {
	if conf.AppName == "" {
		return ""
	}
	return "[" + conf.AppName + "] "
}

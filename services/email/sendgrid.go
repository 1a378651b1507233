package emailsvc

import (
	"context"
	"fmt"
	"net/http"
	"net/mail"

	"github.com/sendgrid/sendgrid-go"
	sgmail "github.com/sendgrid/sendgrid-go/helpers/mail"
	"golang.org/x/sync/semaphore"

	"github.com/zhuluh247/MySchool/core"
)

// maxInFlight bounds concurrent calls to the sendgrid API.
const maxInFlight = 4

type sendgridService struct {
	conf   *core.Config
	client *sendgrid.Client
	from   *sgmail.Email
	logger core.Logger
	slots  *semaphore.Weighted
}

var _ core.EmailService = (*sendgridService)(nil)

// NewSendgridService returns an email service delivering through the sendgrid v3 API.
// Messages are sent in sandbox mode when conf.TestMode is set.
func NewSendgridService(conf *core.Config, logger core.Logger) core.EmailService {
	return &sendgridService{
		conf:   conf,
		client: sendgrid.NewSendClient(conf.SendgridApiKey),
		from:   sgmail.NewEmail(conf.DefaultFromEmail.Name, conf.DefaultFromEmail.Address),
		logger: logger,
		slots:  semaphore.NewWeighted(maxInFlight),
	}
}

func (svc *sendgridService) SendMessages(messages ...*core.EmailMessage) {
	for _, msg := range messages {
		go func(msg *core.EmailMessage) {
			if !render(svc.conf, svc.logger, msg) {
				return
			}
			ctx := context.Background()
			if err := svc.slots.Acquire(ctx, 1); err != nil {
				return
			}
			defer svc.slots.Release(1)
			svc.send(svc.prepare(*msg))
		}(msg)
	}
}

func (svc *sendgridService) prepare(msg core.EmailMessage) *sgmail.SGMailV3 {
	p := sgmail.NewPersonalization()
	p.Subject = subjectPrefix(svc.conf) + msg.Subject
	p.AddTos(sgEmails(msg.To)...)
	p.AddCCs(sgEmails(msg.Cc)...)
	p.AddBCCs(sgEmails(msg.Bcc)...)

	m := sgmail.NewV3Mail().SetFrom(svc.from).AddPersonalizations(p)
	if msg.TemplateName != "" {
		m.AddCategories(msg.TemplateName)
	}
	if svc.conf.TestMode {
		m.SetMailSettings(sgmail.NewMailSettings().SetSandboxMode(sgmail.NewSetting(true)))
	}

	// sendgrid requires text/plain before text/html
	if msg.TextContent != "" {
		m.AddContent(sgmail.NewContent("text/plain", msg.TextContent))
	}
	if msg.HTMLContent != "" {
		m.AddContent(sgmail.NewContent("text/html", msg.HTMLContent))
	}
	for _, at := range msg.Attachments {
		m.AddAttachment(sgmail.NewAttachment().
			SetContent(at.Content.String()).
			SetType(at.ContentType).
			SetFilename(at.Filename).
			SetDisposition("attachment"))
	}
	return m
}

func (svc *sendgridService) send(m *sgmail.SGMailV3) {
	res, err := svc.client.Send(m)
	switch {
	case err != nil:
		svc.logger.Error(fmt.Sprintf("sending email: %v", err), err)
	case res.StatusCode >= http.StatusBadRequest:
		svc.logger.Error(fmt.Sprintf("sending email: status %d: %s", res.StatusCode, res.Body))
	}
}

func sgEmails(addrs []mail.Address) []*sgmail.Email {
	out := make([]*sgmail.Email, len(addrs))
	for i, a := range addrs {
		out[i] = sgmail.NewEmail(a.Name, a.Address)
	}
	return out
}

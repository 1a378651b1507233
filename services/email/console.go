package emailsvc

import (
	"fmt"
	"io"
	"mime/multipart"
	"net/mail"
	"net/textproto"
	"os"
	"strings"
	"sync"
	"time"

	"github.com/pkg/errors"

	"github.com/zhuluh247/MySchool/core"
)

var outbox struct {
	sync.Mutex
	sent []core.EmailMessage
}

// LastMessage returns the last message delivered by a console service.
func LastMessage() (core.EmailMessage, bool) {
	outbox.Lock()
	defer outbox.Unlock()
	if len(outbox.sent) == 0 {
		return core.EmailMessage{}, false
	}
	return outbox.sent[len(outbox.sent)-1], true
}

// SentCount returns how many messages console services delivered since the last reset.
func SentCount() int {
	outbox.Lock()
	defer outbox.Unlock()
	return len(outbox.sent)
}

// ResetMessages empties the outbox.
func ResetMessages() {
	outbox.Lock()
	outbox.sent = nil
	outbox.Unlock()
}

// consoleService writes MIME encoded messages to out instead of sending them.
type consoleService struct {
	conf   *core.Config
	logger core.Logger
	out    io.Writer // nil discards the output
	sync   bool
}

var _ core.EmailService = (*consoleService)(nil)

// NewConsoleService returns an email service printing messages to stdout.
func NewConsoleService(conf *core.Config, logger core.Logger) core.EmailService {
	return &consoleService{conf: conf, logger: logger, out: os.Stdout}
}

// NewConsoleServiceMock returns a silent console service delivering messages synchronously.
func NewConsoleServiceMock(conf *core.Config, logger core.Logger) core.EmailService {
	return &consoleService{conf: conf, logger: logger, sync: true}
}

func (svc *consoleService) SendMessages(messages ...*core.EmailMessage) {
	for _, msg := range messages {
		if svc.sync {
			svc.deliver(msg)
			continue
		}
		go svc.deliver(msg)
	}
}

func (svc *consoleService) deliver(msg *core.EmailMessage) {
	if !render(svc.conf, svc.logger, msg) {
		return
	}
	if svc.out != nil {
		raw, err := svc.encode(*msg, time.Now())
		if err != nil {
			svc.logger.Error(fmt.Sprintf("encoding email %q: %v", msg.Subject, err), err)
			return
		}
		_, _ = fmt.Fprintln(svc.out, raw)
	}

	outbox.Lock()
	outbox.sent = append(outbox.sent, *msg)
	outbox.Unlock()
}

// encode renders msg the way an SMTP relay would receive it.
func (svc *consoleService) encode(msg core.EmailMessage, date time.Time) (string, error) {
	var b strings.Builder
	header := func(key, value string) {
		if value != "" {
			_, _ = fmt.Fprintf(&b, "%s: %s\r\n", key, value)
		}
	}
	header("From", svc.conf.DefaultFromEmail.String())
	header("To", addressList(msg.To))
	header("Cc", addressList(msg.Cc))
	header("Bcc", addressList(msg.Bcc))
	header("Subject", subjectPrefix(svc.conf)+msg.Subject)
	header("Date", date.Format(time.RFC1123Z))
	header("MIME-Version", "1.0")

	body := multipart.NewWriter(&b)
	kind := "alternative"
	if msg.HasAttachments() {
		kind = "mixed"
	}
	header("Content-Type", fmt.Sprintf("multipart/%s; boundary=%s", kind, body.Boundary()))
	b.WriteString("\r\n")

	parts := []mimePart{
		{textproto.MIMEHeader{"Content-Type": {"text/plain; charset=utf-8"}}, msg.TextContent},
	}
	if msg.HTMLContent != "" {
		parts = append(parts, mimePart{textproto.MIMEHeader{"Content-Type": {"text/html; charset=utf-8"}}, msg.HTMLContent})
	}
	for _, at := range msg.Attachments {
		parts = append(parts, mimePart{textproto.MIMEHeader{
			"Content-Type":              {at.ContentType},
			"Content-Transfer-Encoding": {"base64"},
			"Content-Disposition":       {fmt.Sprintf("attachment; filename=%q", at.Filename)},
		}, at.Content.String()})
	}

	for _, p := range parts {
		w, err := body.CreatePart(p.header)
		if err != nil {
			return "", errors.Wrap(err, "creating part")
		}
		if _, err = io.WriteString(w, p.content+"\r\n"); err != nil {
			return "", errors.Wrap(err, "writing part")
		}
	}
	if err := body.Close(); err != nil {
		return "", errors.Wrap(err, "closing body")
	}
	return b.String(), nil
}

type mimePart struct {
	header  textproto.MIMEHeader
	content string
}

func addressList(addrs []mail.Address) string {
	out := make([]string, len(addrs))
	for i, a := range addrs {
		out[i] = a.String()
	}
	return strings.Join(out, ", ")
}

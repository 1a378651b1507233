package core

import (
	"bytes"
	"encoding/base64"
	"fmt"
	htmltmpl "html/template"
	"io"
	"io/fs"
	"net/http"
	"net/mail"
	"path"
	"strings"
	"sync"
	texttmpl "text/template"

	"github.com/pkg/errors"

	appfs "github.com/zhuluh247/MySchool/fs"
)

const (
	emailTemplatesDir = "templates/email"
	emailLayout       = "base"
)

// emailTemplate holds both renditions of a named email. Either may be nil.
type emailTemplate struct {
	text *texttmpl.Template
	html *htmltmpl.Template
}

var emailTemplates struct {
	sync.RWMutex
	byName map[string]emailTemplate
}

type (
	Attachment struct {
		Content     *bytes.Buffer // base64 encoded
		ContentType string
		Filename    string
	}

	EmailMessage struct {
		To          []mail.Address
		Cc          []mail.Address
		Bcc         []mail.Address
		Subject     string
		BodyStr     string // plain text body used instead of a template
		Attachments []Attachment

		TemplateName string // file name without extension, e.g. "welcome"
		TemplateData interface{}
		TextContent  string
		HTMLContent  string
	}

	// ContextData is what email templates are executed with.
	ContextData struct {
		FrontendBaseURL string
		Data            interface{}
	}

	// EmailService delivers rendered messages. Delivery is fire and forget; failures are logged.
	EmailService interface {
		SendMessages(messages ...*EmailMessage)
	}
)

func lookupEmailTemplate(name string) (emailTemplate, bool) {
	emailTemplates.RLock()
	defer emailTemplates.RUnlock()
	t, ok := emailTemplates.byName[name]
	return t, ok
}

// Render fills TextContent and HTMLContent from BodyStr or from the named template.
// Templates must have been parsed with ParseEmailTemplates.
func (m *EmailMessage) Render(conf *Config) error {
	if m.BodyStr != "" {
		m.TextContent = m.BodyStr
	}
	if m.TemplateName == "" {
		return nil
	}
	tmpl, ok := lookupEmailTemplate(m.TemplateName)
	if !ok {
		return errors.Errorf("unknown email template %q", m.TemplateName)
	}

	data := ContextData{FrontendBaseURL: conf.FrontendBaseURL, Data: m.TemplateData}
	var buf bytes.Buffer
	if tmpl.text != nil && m.BodyStr == "" {
		if err := tmpl.text.ExecuteTemplate(&buf, emailLayout, data); err != nil {
			return errors.Wrapf(err, "rendering %s.txt", m.TemplateName)
		}
		m.TextContent = buf.String()
		buf.Reset()
	}
	if tmpl.html != nil {
		if err := tmpl.html.ExecuteTemplate(&buf, emailLayout, data); err != nil {
			return errors.Wrapf(err, "rendering %s.gohtml", m.TemplateName)
		}
		m.HTMLContent = buf.String()
	}
	return nil
}

// Attach adds the content of r as a base64 encoded attachment.
// The content type is sniffed when ct is omitted.
func (m *EmailMessage) Attach(r io.Reader, filename string, ct ...string) error {
	content, err := io.ReadAll(r)
	if err != nil {
		return errors.Wrapf(err, "reading attachment %s", filename)
	}
	contentType := http.DetectContentType(content)
	if len(ct) > 0 {
		contentType = ct[0]
	}
	m.Attachments = append(m.Attachments, Attachment{
		Content:     bytes.NewBufferString(base64.StdEncoding.EncodeToString(content)),
		ContentType: contentType,
		Filename:    filename,
	})
	return nil
}

func (m *EmailMessage) HasRecipients() bool  { return len(m.To) > 0 }
func (m *EmailMessage) HasContent() bool     { return m.TextContent != "" || m.HTMLContent != "" }
func (m *EmailMessage) HasAttachments() bool { return len(m.Attachments) > 0 }

// Deliverable reports whether a rendered message is worth handing to a provider.
func (m *EmailMessage) Deliverable() bool {
	return m.HasRecipients() && (m.HasContent() || m.HasAttachments())
}

// ParseEmailTemplates parses the embedded email templates, each one on top of the
// `_base` layout of the same extension. Broken templates are logged and skipped.
func ParseEmailTemplates(logger Logger, conf *Config) {
	entries, err := fs.ReadDir(appfs.FS, emailTemplatesDir)
	if err != nil {
		logger.Error(fmt.Sprintf("reading email templates: %v", err), err)
		return
	}
	strict := conf.Debug || conf.TestMode

	parsed := make(map[string]emailTemplate)
	for _, e := range entries {
		fname := e.Name()
		ext := path.Ext(fname)
		if e.IsDir() || strings.HasPrefix(fname, "_") {
			continue
		}
		name := strings.TrimSuffix(fname, ext)
		layout := path.Join(emailTemplatesDir, "_base"+ext)
		file := path.Join(emailTemplatesDir, fname)

		t := parsed[name]
		switch ext {
		case ".txt":
			tmpl, err := texttmpl.ParseFS(appfs.FS, layout, file)
			if err != nil {
				logger.Error(fmt.Sprintf("parsing email template %s: %v", file, err), err)
				continue
			}
			if strict {
				tmpl.Option("missingkey=error")
			}
			t.text = tmpl
		case ".gohtml":
			tmpl, err := htmltmpl.ParseFS(appfs.FS, layout, file)
			if err != nil {
				logger.Error(fmt.Sprintf("parsing email template %s: %v", file, err), err)
				continue
			}
			if strict {
				tmpl.Option("missingkey=error")
			}
			t.html = tmpl
		default:
			continue
		}
		parsed[name] = t
	}

	emailTemplates.Lock()
	emailTemplates.byName = parsed
	emailTemplates.Unlock()
}

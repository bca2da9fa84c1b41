package core

import (
	"bytes"
	htmltmpl "html/template"
	"io/fs"
	"net/mail"
	"path"
	texttmpl "text/template"

	"github.com/pkg/errors"
)

type (
	EmailMessage struct {
		To      []mail.Address
		Subject string
		BodyStr string // simple text/plain, non-templated content

		// templated contents
		TemplateName string // without ext
		TemplateData interface{}
		TextContent  string
		HTMLContent  string
	}

	// EmailService is any service that can send emails
	EmailService interface {
		// SendMessages sends messages concurrently
		SendMessages(messages ...*EmailMessage)
	}

	// EmailTemplates holds the `<name>.txt` & `<name>.gohtml` email templates.
	EmailTemplates struct {
		text *texttmpl.Template
		html *htmltmpl.Template
	}
)

// ParseEmailTemplates parses the email templates found in dir.
func ParseEmailTemplates(fsys fs.FS, dir string) (*EmailTemplates, error) {
	text, err := texttmpl.ParseFS(fsys, path.Join(dir, "*.txt"))
	if err != nil {
		return nil, errors.Wrap(err, "parsing text templates")
	}
	html, err := htmltmpl.ParseFS(fsys, path.Join(dir, "*.gohtml"))
	if err != nil {
		return nil, errors.Wrap(err, "parsing html templates")
	}
	return &EmailTemplates{
		text: text.Option("missingkey=error"),
		html: html.Option("missingkey=error"),
	}, nil
}

// Render fills the text & HTML contents of m in.
func (t *EmailTemplates) Render(m *EmailMessage) error {
	if m.BodyStr != "" {
		m.TextContent = m.BodyStr
		return nil
	} else if m.TemplateName == "" {
		return nil
	}

	var buff bytes.Buffer
	if tmpl := t.text.Lookup(m.TemplateName + ".txt"); tmpl != nil {
		if err := tmpl.Execute(&buff, m.TemplateData); err != nil {
			return errors.Wrapf(err, "rendering %s.txt", m.TemplateName)
		}
		m.TextContent = buff.String()
	}

	buff.Reset()
	if tmpl := t.html.Lookup(m.TemplateName + ".gohtml"); tmpl != nil {
		if err := tmpl.Execute(&buff, m.TemplateData); err != nil {
			return errors.Wrapf(err, "rendering %s.gohtml", m.TemplateName)
		}
		m.HTMLContent = buff.String()
	}
	return nil
}

func (m *EmailMessage) HasRecipients() bool { return len(m.To) > 0 }
func (m *EmailMessage) HasContent() bool    { return (m.TextContent != "") || (m.HTMLContent != "") }

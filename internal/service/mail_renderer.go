package service

import (
	"bytes"
	"embed"
	"errors"
	"fmt"
	"io/fs"
	"path"
	"strings"
	"text/template"
	"time"

	"github.com/yuin/goldmark"
	"github.com/yuin/goldmark/extension"

	"github.com/xxxsen/tooldir/internal/verify"
)

const defaultMailTemplate = "default"

var ErrUnknownTemplate = errors.New("unknown mail template")

//go:embed templates/*.md
var mailTemplatesFS embed.FS

type mailContent struct {
	Title   string
	Intro   string
	Code    string
	Minutes int
}

type Mail struct {
	To      string
	Subject string
	HTML    string
}

var purposeCopy = map[verify.Purpose][2]string{
	verify.PurposeRegister:      {"Sign-up", "Use it to finish creating your account."},
	verify.PurposeLogin:         {"Sign-in", "Use it to sign in to your account."},
	verify.PurposeResetPassword: {"Password reset", "Use it to choose a new password."},
	verify.PurposeEmailChange:   {"Email change", "Use it to confirm this address as your new login email."},
	verify.PurposeFeedback:      {"Feedback", "Use it to submit your feedback."},
}

// MailRenderer turns the embedded markdown templates into HTML mail.
type MailRenderer struct {
	md        goldmark.Markdown
	templates map[string]*template.Template
}

func NewMailRenderer() (*MailRenderer, error) {
	entries, err := fs.ReadDir(mailTemplatesFS, "templates")
	if err != nil {
		return nil, err
	}
	r := &MailRenderer{
		md:        goldmark.New(goldmark.WithExtensions(extension.GFM)),
		templates: make(map[string]*template.Template, len(entries)),
	}
	for _, entry := range entries {
		raw, err := fs.ReadFile(mailTemplatesFS, "templates/"+entry.Name())
		if err != nil {
			return nil, err
		}
		name := strings.TrimSuffix(entry.Name(), path.Ext(entry.Name()))
		tpl, err := template.New(name).Option("missingkey=error").Parse(string(raw))
		if err != nil {
			return nil, fmt.Errorf("parse mail template %s: %w", name, err)
		}
		r.templates[name] = tpl
	}
	if _, ok := r.templates[defaultMailTemplate]; !ok {
		return nil, fmt.Errorf("mail template %q missing", defaultMailTemplate)
	}
	return r, nil
}

// Has reports whether name is usable; empty selects the default template.
func (r *MailRenderer) Has(name string) bool {
	if name == "" {
		return true
	}
	_, ok := r.templates[name]
	return ok
}

func (r *MailRenderer) Render(name string, issued *verify.Issued, ttl time.Duration) (*Mail, error) {
	if name == "" {
		name = defaultMailTemplate
	}
	tpl, ok := r.templates[name]
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrUnknownTemplate, name)
	}
	copyText, ok := purposeCopy[issued.Key.Purpose]
	if !ok {
		return nil, verify.ErrInvalidPurpose
	}
	var md bytes.Buffer
	err := tpl.Execute(&md, mailContent{
		Title:   copyText[0],
		Intro:   copyText[1],
		Code:    issued.Code,
		Minutes: int(ttl / time.Minute),
	})
	if err != nil {
		return nil, fmt.Errorf("execute mail template %s: %w", name, err)
	}
	var html bytes.Buffer
	if err := r.md.Convert(md.Bytes(), &html); err != nil {
		return nil, fmt.Errorf("render mail markdown: %w", err)
	}
	return &Mail{
		To:      issued.Key.Email,
		Subject: copyText[0] + " verification code",
		HTML:    html.String(),
	}, nil
}

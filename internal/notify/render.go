package notify

import (
	"bytes"
	"embed"
	htmltemplate "html/template"
	"io/fs"
	"net/mail"
	"path"
	"strings"
	texttemplate "text/template"

	"github.com/pkg/errors"

	cmail "conference/internal/mail"
)

//go:embed templates/*
var templateFS embed.FS

// ErrUnknownTemplate is returned for a notification naming no known template.
var ErrUnknownTemplate = errors.New("notify: unknown template")

type templateSet struct {
	text *texttemplate.Template
	html *htmltemplate.Template
}

// Renderer turns notifications into mail messages. Each template has a text body
// (<name>.txt, which also defines "subject") and an optional HTML body (<name>.gohtml).
type Renderer struct {
	sets map[string]templateSet
}

// NewRenderer parses the embedded templates.
func NewRenderer() (*Renderer, error) {
	return newRenderer(templateFS, "templates")
}

func newRenderer(fsys fs.FS, dir string) (*Renderer, error) {
	files, err := fs.Glob(fsys, path.Join(dir, "*.txt"))
	if err != nil {
		return nil, errors.Wrap(err, "notify: list templates")
	}
	r := &Renderer{sets: make(map[string]templateSet, len(files))}
	for _, file := range files {
		name := strings.TrimSuffix(path.Base(file), ".txt")

		text, err := texttemplate.New(name).Option("missingkey=error").ParseFS(fsys, file)
		if err != nil {
			return nil, errors.Wrapf(err, "notify: parse %s", file)
		}
		if text.Lookup("subject") == nil {
			return nil, errors.Errorf("notify: %s does not define a subject", file)
		}
		set := templateSet{text: text}

		htmlFile := path.Join(dir, name+".gohtml")
		if _, err := fs.Stat(fsys, htmlFile); err == nil {
			set.html, err = htmltemplate.New(name).Option("missingkey=error").ParseFS(fsys, htmlFile)
			if err != nil {
				return nil, errors.Wrapf(err, "notify: parse %s", htmlFile)
			}
		}
		r.sets[name] = set
	}
	return r, nil
}

// Render builds the message for n.
func (r *Renderer) Render(n Notification) (*cmail.Message, error) {
	set, ok := r.sets[n.Template]
	if !ok {
		return nil, errors.Wrap(ErrUnknownTemplate, n.Template)
	}

	var subject, text, html bytes.Buffer
	if err := set.text.ExecuteTemplate(&subject, "subject", n.Data); err != nil {
		return nil, errors.Wrap(err, "notify: render subject")
	}
	if err := set.text.ExecuteTemplate(&text, n.Template+".txt", n.Data); err != nil {
		return nil, errors.Wrap(err, "notify: render text")
	}
	if set.html != nil {
		if err := set.html.ExecuteTemplate(&html, n.Template+".gohtml", n.Data); err != nil {
			return nil, errors.Wrap(err, "notify: render html")
		}
	}

	return &cmail.Message{
		To:      []mail.Address{{Name: n.Recipient.Name, Address: n.Recipient.Email}},
		Subject: strings.TrimSpace(subject.String()),
		Text:    strings.TrimSpace(text.String()),
		HTML:    html.String(),
	}, nil
}

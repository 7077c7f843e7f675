// Package template renders static HTML snapshots of the console views.
package template

import (
	"fmt"
	"html/template"
	"io"
	"time"

	"telecom-console/web"
)

const (
	usersTemplate   = "page-users"
	profileTemplate = "page-profile"
)

// Renderer renders the embedded page templates.
type Renderer struct {
	templates  *template.Template
	stylesheet template.CSS
	now        func() time.Time
}

func NewRenderer() (*Renderer, error) {
	tmpl, err := template.New("").
		Funcs(template.FuncMap{"formatDate": formatDate}).
		ParseFS(web.TemplateFS, "templates/*.html")
	if err != nil {
		return nil, fmt.Errorf("parse templates: %w", err)
	}
	css, err := web.Stylesheet()
	if err != nil {
		return nil, fmt.Errorf("load stylesheet: %w", err)
	}
	return &Renderer{templates: tmpl, stylesheet: template.CSS(css), now: time.Now}, nil
}

// RenderUsers writes the user table snapshot.
func (r *Renderer) RenderUsers(w io.Writer, data *UsersPage) error {
	r.stamp(&data.Page, "用户管理")
	return r.templates.ExecuteTemplate(w, usersTemplate, data)
}

// RenderProfile writes the account profile snapshot.
func (r *Renderer) RenderProfile(w io.Writer, data *ProfilePage) error {
	r.stamp(&data.Page, "个人中心")
	return r.templates.ExecuteTemplate(w, profileTemplate, data)
}

// stamp 填充公共字段
func (r *Renderer) stamp(p *Page, title string) {
	p.Stylesheet = r.stylesheet
	if p.Title == "" {
		p.Title = title
	}
	if p.GeneratedAt.IsZero() {
		p.GeneratedAt = r.now()
	}
}

func formatDate(t time.Time) string {
	return t.Format(time.DateTime)
}

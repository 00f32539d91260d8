package server

import (
	"bytes"
	"embed"
	"html/template"
	"net/http"
	"time"

	"github.com/sirupsen/logrus"
)

//go:embed templates
var templatesFS embed.FS

var funcs = template.FuncMap{
	"timefmt": func(t time.Time) string {
		return t.Local().Format("Jan 2, 2006 15:04")
	},
}

var (
	feedTmpl     = mustParse("feed.html")
	profileTmpl  = mustParse("profile.html")
	notFoundTmpl = mustParse("notfound.html")
)

func mustParse(name string) *template.Template {
	return template.Must(template.New("layout.html").Funcs(funcs).ParseFS(
		templatesFS,
		"templates/layout.html",
		"templates/post_card.html",
		"templates/"+name,
	))
}

// render executes tmpl into a buffer first so a template failure never leaks
// a half-written page.
func render(w http.ResponseWriter, code int, tmpl *template.Template, data interface{}) {
	var buf bytes.Buffer
	if err := tmpl.Execute(&buf, data); err != nil {
		logrus.WithError(err).Error("failed to render page")
		http.Error(w, "internal error", http.StatusInternalServerError)
		return
	}

	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	w.WriteHeader(code)
	_, _ = buf.WriteTo(w)
}

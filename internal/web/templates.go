package web

import (
	"html/template"
	"net/http"
)

var pageTemplate = template.Must(template.New("page").Parse(`<!doctype html>
<html>
<head>
<meta charset="utf-8">
<title>{{.Title}}</title>
<style>
body { max-width: 48rem; margin: 2rem auto; font-family: sans-serif; padding: 0 1rem; }
img { max-width: 100%; }
</style>
</head>
<body>
<h1>{{.Title}}</h1>
{{if .Notes}}<ul>{{range .Notes}}<li><a href="/notes/{{.}}">{{.}}</a></li>{{end}}</ul>{{end}}
{{.Body}}
</body>
</html>
`))

type pageData struct {
	Title string
	Notes []string
	Body  template.HTML
}

func renderList(w http.ResponseWriter, notes []string) {
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	_ = pageTemplate.Execute(w, pageData{Title: "Vault", Notes: notes})
}

func renderNote(w http.ResponseWriter, title, body string) {
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	_ = pageTemplate.Execute(w, pageData{Title: title, Body: template.HTML(body)})
}

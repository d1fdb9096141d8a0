package lyralink

import "html/template"

type pageData struct {
	Home        string
	ShortURL    string
	OriginalURL string
	ValidUntil  string
}

const layout = `{{define "layout"}}<!doctype html>
<html lang="en">
<head>
<meta charset="utf-8">
<meta name="viewport" content="width=device-width,initial-scale=1">
<title>lyralink</title>
<style>
body{font-family:system-ui,sans-serif;max-width:40rem;margin:3rem auto;padding:0 1rem}
input[type=url]{width:100%;padding:.5rem}
code{word-break:break-all}
</style>
</head>
<body>
<h1><a href="{{.Home}}/">lyralink</a></h1>
{{template "content" .}}
</body>
</html>{{end}}`

var (
	indexPage = page("index", `{{define "content"}}
<form method="post" action="{{.Home}}/">
<input type="url" name="url" placeholder="https://example.com/a/very/long/link" required autofocus>
<button type="submit">Shorten</button>
</form>
{{end}}`)

	resultPage = page("result", `{{define "content"}}
<p>Your short link: <a href="{{.ShortURL}}"><code>{{.ShortURL}}</code></a></p>
<p>It points to <code>{{.OriginalURL}}</code>.</p>
{{if .ValidUntil}}<p>Valid until {{.ValidUntil}}.</p>{{end}}
<p><a href="{{.Home}}/">Shorten another link</a></p>
{{end}}`)

	invalidPage = page("invalid", `{{define "content"}}
<p>This short link does not exist or has expired.</p>
<p><a href="{{.Home}}/">Create a new one</a></p>
{{end}}`)
)

func page(name, content string) *template.Template {
	t := template.Must(template.New(name).Parse(layout))
	template.Must(t.Parse(content))
	return t.Lookup("layout")
}

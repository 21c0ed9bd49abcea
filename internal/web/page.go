package web

import "html/template"

type segmentOption struct {
	Code     string
	Kind     string
	Selected bool
}

type pageData struct {
	Title    string
	APIURL   string
	Segments []segmentOption
	Error    string
	Warning  string
}

var pageTmpl = template.Must(template.New("page").Parse(`<!DOCTYPE html>
<html lang="en">
<head>
<meta charset="utf-8">
<title>{{.Title}}</title>
<style>
body { font-family: sans-serif; max-width: 42rem; margin: 2rem auto; }
label { display: block; margin-top: 1rem; font-weight: bold; }
input[type=text] { width: 100%; }
select { width: 100%; min-height: 14rem; }
.error { color: #b00020; }
.warning { color: #8a6d00; }
</style>
</head>
<body>
<h1>{{.Title}}</h1>
{{if .Error}}<p class="error" role="alert">{{.Error}}</p>{{end}}
{{if .Warning}}<p class="warning" role="status">{{.Warning}}</p>{{end}}
<form method="post" action="/fetch">
<label for="api_url">API URL</label>
<input type="text" id="api_url" name="api_url" value="{{.APIURL}}">
<label for="segments">Select Exchange Segments</label>
<select id="segments" name="segments" multiple>
{{range .Segments}}<option value="{{.Code}}"{{if .Selected}} selected{{end}}>{{.Code}} ({{.Kind}})</option>
{{end}}</select>
<p><button type="submit">Fetch and Download CSV</button></p>
</form>
</body>
</html>
`))

package pgdocker

type pgTemplate struct {
	Image       string
	InitScripts []string
}

const dockerfileTemplate = `
{{- /*gotype: github.com/jschaf/pgquery/internal/pgdocker.pgTemplate*/ -}}
{{- define "dockerfile" -}}
FROM {{ .Image }}
{{ range .InitScripts }}
COPY {{.}} /docker-entrypoint-initdb.d/
{{- end }}
{{ end }}
`

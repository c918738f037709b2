package pipeline

import (
	"fmt"
	"sort"
	"strings"
	"text/template"
)

// defaultPromptTemplate renders a stage prompt from its role, goal, the
// gathered capability data, and the accumulated context. Stages may
// override it entirely with their own template.
const defaultPromptTemplate = `You are acting as {{ .Role }}.
Goal: {{ .Goal }}
Request: {{ .Request }}
{{- range $name := .GatheredOrder }}

Data from {{ $name }}:
{{ index $.Gathered $name }}
{{- end }}
{{- range $name := .ContextOrder }}

Output of prior stage "{{ $name }}":
{{ index $.Context $name }}
{{- end }}

Produce the output described by your goal. Base your answer only on the
data above; if the data is insufficient, say so explicitly.`

type promptData struct {
	Request       string
	Role          string
	Goal          string
	Gathered      map[string]string
	GatheredOrder []string
	Context       map[string]string
	ContextOrder  []string
}

func renderPrompt(stage *Stage, request string, gathered map[string]string, runCtx *Context) (string, error) {
	text := stage.Prompt
	if text == "" {
		text = defaultPromptTemplate
	}

	gatheredOrder := make([]string, 0, len(gathered))
	for name := range gathered {
		gatheredOrder = append(gatheredOrder, name)
	}
	sort.Strings(gatheredOrder)

	data := promptData{
		Request:       request,
		Role:          stage.Role,
		Goal:          stage.Goal,
		Gathered:      gathered,
		GatheredOrder: gatheredOrder,
		Context:       runCtx.Snapshot(),
		ContextOrder:  runCtx.Names(),
	}

	tmpl, err := template.New("prompt").Option("missingkey=error").Parse(text)
	if err != nil {
		return "", fmt.Errorf("parse prompt template: %w", err)
	}

	var sb strings.Builder
	if err := tmpl.Execute(&sb, data); err != nil {
		return "", fmt.Errorf("render prompt template: %w", err)
	}
	return sb.String(), nil
}

// renderQuery renders a capability input template. An empty template means
// the raw request is the capability input.
func renderQuery(queryTemplate, request string) (string, error) {
	if queryTemplate == "" {
		return request, nil
	}
	tmpl, err := template.New("query").Parse(queryTemplate)
	if err != nil {
		return "", fmt.Errorf("parse query template: %w", err)
	}
	var sb strings.Builder
	if err := tmpl.Execute(&sb, map[string]string{"Request": request}); err != nil {
		return "", fmt.Errorf("render query template: %w", err)
	}
	return sb.String(), nil
}

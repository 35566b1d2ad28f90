// Package report renders a triage evaluation as a markdown handoff note.
package report

import (
	"fmt"
	"strings"
	"text/template"

	"github.com/otriage/otriage/internal/domain/triage"
)

const defaultTemplate = `# Relatório de Triagem

## Paciente
- Nome: {{if .Nome}}{{.Nome}}{{else}}não informado{{end}}
- Idade: {{if .Idade}}{{.Idade}}{{else}}não informada{{end}}
- Sexo: {{if .Sexo}}{{.Sexo}}{{else}}não informado{{end}}

## Queixa e História
{{if .HPI}}{{.HPI}}{{else}}Sem história registrada.{{end}}

## Sintomas Relatados
{{range .Sintomas}}- {{.}}
{{end}}
## Via de Atendimento
**{{.Via}}**{{if .ViaReason}} — motivo: {{.ViaReason}}{{end}}

{{if .Alarmes}}## Sinais de Alarme
{{range .Alarmes}}- {{.}}
{{end}}
{{end}}## Hipóteses Diagnósticas
{{range .Hipoteses}}- {{.}}
{{end}}
## Cuidados Recomendados
{{range .Cuidados}}- {{.}}
{{end}}`

type templateData struct {
	Nome      string
	Idade     string
	Sexo      string
	HPI       string
	Sintomas  []string
	Via       string
	ViaReason string
	Alarmes   []string
	Hipoteses []string
	Cuidados  []string
}

// Renderer turns triage results into markdown. The zero template falls back
// to the built-in layout.
type Renderer struct {
	tmpl *template.Template
}

func NewRenderer() *Renderer {
	return &Renderer{tmpl: template.Must(template.New("report").Parse(defaultTemplate))}
}

// NewRendererWithTemplate parses a custom layout using the same field set.
func NewRendererWithTemplate(layout string) (*Renderer, error) {
	tmpl, err := template.New("report").Parse(layout)
	if err != nil {
		return nil, fmt.Errorf("parse report template: %w", err)
	}
	return &Renderer{tmpl: tmpl}, nil
}

// maxHypotheses bounds the differential section.
const maxHypotheses = 5

// Render produces the markdown note for one evaluation.
func (r *Renderer) Render(res *triage.Result) (string, error) {
	data := templateData{
		Nome:      res.Outputs.Resumo.Paciente.Nome,
		Sexo:      res.Outputs.Resumo.Paciente.Sexo,
		HPI:       res.Outputs.Resumo.HPI,
		Sintomas:  res.Outputs.Resumo.Sintomas,
		Via:       string(res.Outputs.Via),
		ViaReason: res.Outputs.ViaReason,
		Alarmes:   res.Outputs.Alarmes,
		Cuidados:  res.Outputs.Cuidados,
	}
	if res.Outputs.Resumo.Paciente.Idade != nil {
		data.Idade = fmt.Sprintf("%d anos", *res.Outputs.Resumo.Paciente.Idade)
	}
	for i, h := range res.Ranking {
		if i == maxHypotheses {
			break
		}
		data.Hipoteses = append(data.Hipoteses, fmt.Sprintf("%s (%.0f%%)", h.Label, h.Posterior*100))
	}

	var sb strings.Builder
	if err := r.tmpl.Execute(&sb, data); err != nil {
		return "", fmt.Errorf("render report: %w", err)
	}
	return sb.String(), nil
}

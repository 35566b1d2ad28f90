package triage

import (
	"strings"

	"github.com/otriage/otriage/internal/domain/evidence"
	"github.com/otriage/otriage/internal/platform/registry"
)

var commonCare = []string{
	"Hidratação adequada e repouso relativo.",
	"Analgésicos/antitérmicos conforme necessidade e alergias.",
	"Evitar automedicação antibiótica.",
}

// BuildOutputs assembles the clinical projection of a run: the patient
// summary, active alarms, self-care guidance and the already-decided route.
// Next questions are attached by the caller.
func BuildOutputs(reg *registry.Registry, ev *evidence.Store, areas []string, demo Demographics, raw RawInput, ranking []RankingEntry, decision RouteDecision) Outputs {
	out := Outputs{
		Via:       decision.Route,
		ViaReason: decision.Reason,
		Alarmes:   buildAlarms(reg, ev, areas),
		Cuidados:  buildCare(ranking),
	}

	out.Resumo.Paciente = Paciente{
		Nome:  strings.TrimSpace(raw.PacienteNome),
		Idade: demo.Idade,
		Sexo:  demo.Sexo,
	}
	out.Resumo.HPI = strings.TrimSpace(raw.HPI)
	for _, rec := range ev.List() {
		out.Resumo.Sintomas = append(out.Resumo.Sintomas, reg.FeatureLabel(rec.FeatureID))
	}
	if out.Resumo.Sintomas == nil {
		out.Resumo.Sintomas = []string{}
	}
	return out
}

// buildAlarms lists the labels of every present feature that any selected
// area's via_atendimento table maps, deduplicated, in evidence order.
func buildAlarms(reg *registry.Registry, ev *evidence.Store, areas []string) []string {
	mapped := make(map[string]bool)
	for _, area := range areas {
		bundle := reg.ByArea[area]
		if bundle == nil {
			continue
		}
		for _, entry := range bundle.RouteMap {
			mapped[entry.FeatureID] = true
		}
	}

	alarms := []string{}
	seen := make(map[string]bool)
	for _, rec := range ev.List() {
		if !mapped[rec.FeatureID] {
			continue
		}
		label := reg.FeatureLabel(rec.FeatureID)
		if seen[label] {
			continue
		}
		seen[label] = true
		alarms = append(alarms, label)
	}
	return alarms
}

// buildCare returns the fixed common guidance plus condition-specific items
// keyed off the leading hypothesis.
func buildCare(ranking []RankingEntry) []string {
	care := append([]string{}, commonCare...)
	if len(ranking) == 0 {
		return care
	}

	top := ranking[0].GlobalID
	switch {
	case strings.Contains(top, "rinite") || strings.Contains(top, "nasofaringite"):
		care = append(care,
			"Lavagem nasal com soro fisiológico 2-4x/dia.",
			"Dormir com a cabeceira levemente elevada.")
	case strings.Contains(top, "otite_externa"):
		care = append(care,
			"Evitar entrada de água no conduto auditivo.",
			"Não usar cotonetes ou objetos no ouvido.")
	case strings.Contains(top, "lpr") || strings.Contains(top, "refluxo"):
		care = append(care,
			"Evitar refeições volumosas próximas ao horário de deitar.",
			"Reduzir gatilhos como café, álcool e alimentos gordurosos.")
	}
	return care
}

package triage

import (
	"github.com/otriage/otriage/internal/domain/evidence"
	"github.com/otriage/otriage/internal/platform/registry"
)

// Mode controls how anatomical areas are selected for a case.
type Mode string

const (
	// ModeGated runs only areas with at least one intake symptom present.
	ModeGated Mode = "gated"
	// ModeAlways runs every area.
	ModeAlways Mode = "always"
)

// RawInput is the structurally-free request a triage evaluation accepts.
// Every field is optional; malformed values degrade to absent.
type RawInput struct {
	PacienteNome string   `json:"paciente_nome,omitempty"`
	Idade        any      `json:"idade,omitempty"`
	Sexo         string   `json:"sexo,omitempty"`
	Comorbidades []string `json:"comorbidades,omitempty"`
	Gestante     bool     `json:"gestante,omitempty"`

	Symptoms []string `json:"symptoms,omitempty"`
	// Modifiers carries typed intake answers (duracao_dias: 3,
	// piora_48_72h: true, laterality: "dir").
	Modifiers map[string]any `json:"modifiers,omitempty"`

	Text        string `json:"text,omitempty"`
	Queixa      string `json:"queixa,omitempty"`
	HPI         string `json:"hpi,omitempty"`
	Observacoes string `json:"observacoes,omitempty"`
}

// FreeText joins every free-text field for normalization.
func (r RawInput) FreeText() string {
	out := ""
	for _, s := range []string{r.Text, r.Queixa, r.HPI, r.Observacoes} {
		if s == "" {
			continue
		}
		if out != "" {
			out += " "
		}
		out += s
	}
	return out
}

// Contribution is one applied log-odds factor in a ranking entry's trail.
type Contribution struct {
	Type     registry.EffectKind `json:"type"`
	Value    float64             `json:"value"`
	Features []string            `json:"features,omitempty"`
	Profiles []string            `json:"profiles,omitempty"`
	Origin   string              `json:"from"`
}

// RankingEntry is the fused posterior for one global condition. Entries are
// immutable result values, produced fresh on every fusion call.
type RankingEntry struct {
	GlobalID      string         `json:"global_id"`
	Label         string         `json:"label"`
	PretestGlobal float64        `json:"pretest_global"`
	Posterior     float64        `json:"posterior"`
	Trail         []Contribution `json:"evidence"`
	Areas         []string       `json:"areas"`
}

// Resumo echoes the patient identity and observed findings.
type Resumo struct {
	Paciente Paciente `json:"paciente"`
	Sintomas []string `json:"sintomas"`
	HPI      string   `json:"hpi,omitempty"`
}

type Paciente struct {
	Nome  string `json:"nome,omitempty"`
	Idade *int   `json:"idade,omitempty"`
	Sexo  string `json:"sexo,omitempty"`
}

// Outputs is the final clinical projection of a triage evaluation.
type Outputs struct {
	Resumo        Resumo         `json:"resumo"`
	Via           registry.Route `json:"via"`
	ViaReason     string         `json:"via_reason,omitempty"`
	Alarmes       []string       `json:"alarmes"`
	Cuidados      []string       `json:"cuidados"`
	NextQuestions []Question     `json:"next_questions"`
}

// Question is one suggested next question.
type Question struct {
	FeatureID    string   `json:"feature_id"`
	Label        string   `json:"label"`
	Kind         string   `json:"kind"` // boolean | number | categorical
	Unit         string   `json:"unit,omitempty"`
	Options      []string `json:"options,omitempty"`
	Question     string   `json:"question"`
	Rationale    string   `json:"rationale,omitempty"`
	Targets      []string `json:"targets,omitempty"`
	GainBits     float64  `json:"gain_bits"`
	Score        float64  `json:"score"`
	PriorityTags []string `json:"priority_tags,omitempty"`
	Sentinel     bool     `json:"sentinel,omitempty"`
}

// Debug carries the evidence snapshot and derived profiles of a run.
type Debug struct {
	Evidence []evidence.Snapshot `json:"evidence"`
	Profiles []string            `json:"profiles"`
	Warnings int                 `json:"registry_warnings,omitempty"`
}

// Result is the complete outcome of one triage evaluation.
type Result struct {
	Intake  []string       `json:"intake"`
	Areas   []string       `json:"areas"`
	Ranking []RankingEntry `json:"ranking"`
	Outputs Outputs        `json:"outputs"`
	Debug   Debug          `json:"debug"`
}

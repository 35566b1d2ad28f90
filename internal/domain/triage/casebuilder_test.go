package triage

import (
	"strings"
	"testing"

	"github.com/otriage/otriage/internal/domain/evidence"
	"github.com/otriage/otriage/internal/platform/registry"
)

func TestBuildOutputsSummary(t *testing.T) {
	reg := loadRules(t)

	ev := evidence.New()
	ev.AddPresence("rinorreia", "user")
	ev.AddPresence("obstrucao_nasal", "user")

	raw := RawInput{PacienteNome: "Ana", Sexo: "F", Idade: 30, HPI: "Sintomas há 3 dias."}
	demo := ExtractDemographics(raw)
	ranking := Fuse(reg, ev, []string{"nariz"}, nil)

	out := BuildOutputs(reg, ev, []string{"nariz"}, demo, raw, ranking, RouteDecision{Route: registry.RouteAmbulatorioRotina})

	if out.Resumo.Paciente.Nome != "Ana" || out.Resumo.Paciente.Sexo != "F" {
		t.Errorf("paciente = %+v", out.Resumo.Paciente)
	}
	if out.Resumo.Paciente.Idade == nil || *out.Resumo.Paciente.Idade != 30 {
		t.Errorf("idade = %v", out.Resumo.Paciente.Idade)
	}
	if len(out.Resumo.Sintomas) != 2 {
		t.Errorf("sintomas = %v", out.Resumo.Sintomas)
	}
	if out.Resumo.HPI != "Sintomas há 3 dias." {
		t.Errorf("hpi = %q", out.Resumo.HPI)
	}
}

func TestBuildOutputsCommonCareAlwaysPresent(t *testing.T) {
	reg := loadRules(t)
	out := BuildOutputs(reg, evidence.New(), nil, Demographics{}, RawInput{}, nil, RouteDecision{Route: registry.RouteAmbulatorioRotina})

	if len(out.Cuidados) != len(commonCare) {
		t.Fatalf("cuidados = %v", out.Cuidados)
	}
	for i, want := range commonCare {
		if out.Cuidados[i] != want {
			t.Errorf("cuidados[%d] = %q, want %q", i, out.Cuidados[i], want)
		}
	}
}

func TestBuildOutputsConditionSpecificCare(t *testing.T) {
	reg := loadRules(t)

	ev := evidence.New()
	ev.AddPresence("rinorreia", "user")
	ev.AddPresence("obstrucao_nasal", "user")

	ranking := Fuse(reg, ev, []string{"nariz"}, nil)
	out := BuildOutputs(reg, ev, []string{"nariz"}, Demographics{}, RawInput{}, ranking, RouteDecision{Route: registry.RouteAmbulatorioRotina})

	if len(out.Cuidados) <= len(commonCare) {
		t.Fatalf("nasofaringite top hypothesis should add nasal care, got %v", out.Cuidados)
	}
	found := false
	for _, c := range out.Cuidados {
		if strings.Contains(c, "Lavagem nasal") {
			found = true
		}
	}
	if !found {
		t.Errorf("missing nasal lavage guidance in %v", out.Cuidados)
	}
}

func TestBuildOutputsAlarms(t *testing.T) {
	reg := loadRules(t)

	ev := evidence.New()
	ev.AddPresence("epistaxe", "user")
	ev.AddPresence("hemorragia_abundante", "user")
	ev.AddPresence("hemorragia_abundante", "text")

	out := BuildOutputs(reg, ev, []string{"nariz"}, Demographics{}, RawInput{}, nil, RouteDecision{Route: registry.RouteEmergenciaGeral})

	if len(out.Alarmes) != 1 {
		t.Fatalf("alarmes = %v, want single deduplicated entry", out.Alarmes)
	}
	if out.Alarmes[0] != reg.FeatureLabel("hemorragia_abundante") {
		t.Errorf("alarme = %q", out.Alarmes[0])
	}
}

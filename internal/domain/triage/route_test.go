package triage

import (
	"testing"

	"github.com/otriage/otriage/internal/domain/evidence"
	"github.com/otriage/otriage/internal/platform/registry"
)

func TestDecideRouteDefaultsToRoutineCare(t *testing.T) {
	reg := loadRules(t)

	ev := evidence.New()
	ev.AddPresence("rinorreia", "user")

	d := DecideRoute(reg, ev, []string{"nariz"})
	if d.Route != registry.RouteAmbulatorioRotina {
		t.Errorf("route = %s, want ambulatorio_rotina", d.Route)
	}
	if d.Reason != "" {
		t.Errorf("default route should carry no reason, got %q", d.Reason)
	}
}

func TestDecideRouteEscalatesOnMappedFeature(t *testing.T) {
	reg := loadRules(t)

	ev := evidence.New()
	ev.AddPresence("epistaxe", "user")
	ev.AddPresence("hemorragia_abundante", "user")

	d := DecideRoute(reg, ev, []string{"nariz"})
	if d.Route != registry.RouteEmergenciaGeral {
		t.Errorf("route = %s, want emergencia_geral", d.Route)
	}
	if d.Feature != "hemorragia_abundante" {
		t.Errorf("deciding feature = %s", d.Feature)
	}
	if d.Reason == "" {
		t.Error("escalated route must carry a reason")
	}
}

func TestDecideRouteHighestSeverityWins(t *testing.T) {
	reg := loadRules(t)

	// estridor maps to emergencia_geral, trismo to emergencia_especializada;
	// the worse tier must win even though estridor is declared first.
	ev := evidence.New()
	ev.AddPresence("estridor", "user")
	ev.AddPresence("trismo", "user")

	d := DecideRoute(reg, ev, []string{"garganta"})
	if d.Route != registry.RouteEmergenciaEspecializada {
		t.Errorf("route = %s, want emergencia_especializada", d.Route)
	}
	if d.Feature != "trismo" {
		t.Errorf("deciding feature = %s, want trismo", d.Feature)
	}
}

func TestDecideRouteIgnoresUnselectedAreas(t *testing.T) {
	reg := loadRules(t)

	ev := evidence.New()
	ev.AddPresence("estridor", "user")

	d := DecideRoute(reg, ev, []string{"nariz"})
	if d.Route != registry.RouteAmbulatorioRotina {
		t.Errorf("garganta mapping should not apply for nariz-only case, got %s", d.Route)
	}
}

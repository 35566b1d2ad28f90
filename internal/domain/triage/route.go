package triage

import (
	"github.com/otriage/otriage/internal/domain/evidence"
	"github.com/otriage/otriage/internal/platform/registry"
)

// RouteDecision is the chosen care route plus the finding that decided it.
type RouteDecision struct {
	Route   registry.Route
	Reason  string // label of the first matched feature of the winning tier
	Feature string
}

// DecideRoute scans the via_atendimento maps of the selected areas, in area
// order and declaration order, and returns the highest-severity route any
// present feature maps to. The reason is the first matched feature of the
// winning tier, so a later emergencia match overrides an earlier telemedicina
// match but never steals its reason slot within the same tier.
//
// With no match the route is ambulatorio_rotina and the reason is empty.
func DecideRoute(reg *registry.Registry, ev *evidence.Store, areas []string) RouteDecision {
	decision := RouteDecision{Route: registry.RouteAmbulatorioRotina}
	if reg == nil {
		return decision
	}
	if len(areas) == 0 {
		areas = reg.Areas
	}

	best := 0
	for _, area := range areas {
		bundle := reg.ByArea[area]
		if bundle == nil {
			continue
		}
		for _, entry := range bundle.RouteMap {
			if !ev.Has(entry.FeatureID) {
				continue
			}
			if sev := entry.Route.Severity(); sev > best {
				best = sev
				decision.Route = entry.Route
				decision.Feature = entry.FeatureID
				decision.Reason = reg.FeatureLabel(entry.FeatureID)
			}
		}
	}
	return decision
}

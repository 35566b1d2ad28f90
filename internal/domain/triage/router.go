package triage

import "github.com/otriage/otriage/internal/platform/registry"

// SelectAreas decides which areas participate in fusion. In gated mode an
// area runs only when at least one of its intake symptoms is observed; a
// gated selection that matches nothing falls back to every area so a case
// is never dropped to "no applicable domain".
func SelectAreas(observed []string, mode Mode, reg *registry.Registry) []string {
	if mode == ModeAlways || reg == nil {
		if reg == nil {
			return nil
		}
		return append([]string(nil), reg.Areas...)
	}

	present := make(map[string]bool, len(observed))
	for _, fid := range observed {
		present[fid] = true
	}

	var picked []string
	for _, area := range reg.Areas {
		bundle := reg.ByArea[area]
		if bundle == nil {
			continue
		}
		for _, s := range bundle.Intake.Symptoms {
			if present[s.ID] {
				picked = append(picked, area)
				break
			}
		}
	}

	if len(picked) == 0 {
		return append([]string(nil), reg.Areas...)
	}
	return picked
}

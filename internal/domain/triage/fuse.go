package triage

import (
	"math"
	"sort"
	"strings"

	"github.com/otriage/otriage/internal/domain/evidence"
	"github.com/otriage/otriage/internal/platform/registry"
)

const logitEps = 1e-12

// logit maps a probability to log-odds, clamped away from 0 and 1 so a
// degenerate pretest never produces an infinity.
func logit(p float64) float64 {
	x := math.Min(1-logitEps, math.Max(logitEps, p))
	return math.Log(x / (1 - x))
}

func invLogit(l float64) float64 {
	e := math.Exp(l)
	return e / (1 + e)
}

func allPresent(req registry.FeatureList, ev *evidence.Store) bool {
	if len(req) == 0 {
		return false
	}
	for _, fid := range req {
		if !ev.Has(fid) {
			return false
		}
	}
	return true
}

func anyPresent(req registry.FeatureList, ev *evidence.Store) bool {
	for _, fid := range req {
		if ev.Has(fid) {
			return true
		}
	}
	return false
}

// Fuse combines every global condition's pretest with the likelihood-ratio
// contributions of its matched criteria, heuristics and profile multipliers
// across the selected areas, entirely in log-odds space.
//
// Conditions with no contributing entry under the selected areas are
// excluded from the ranking. Output is sorted descending by posterior; ties
// keep registry insertion order (stable sort, no further tie-break).
func Fuse(reg *registry.Registry, ev *evidence.Store, areas []string, profiles ProfileSet) []RankingEntry {
	if reg == nil {
		return nil
	}
	if len(areas) == 0 {
		areas = reg.Areas
	}
	selected := make(map[string]bool, len(areas))
	for _, a := range areas {
		selected[a] = true
	}

	results := make([]RankingEntry, 0, len(reg.GlobalIDs))
	for _, gid := range reg.GlobalIDs {
		block := reg.ByGlobalID[gid]

		var entries []*registry.Diagnosis
		for _, e := range block.Entries {
			if selected[e.Area] {
				entries = append(entries, e)
			}
		}
		if len(entries) == 0 {
			continue
		}

		logOdds := logit(block.PretestGlobal)
		var trail []Contribution

		for _, e := range entries {
			origin := e.Area + "." + e.ID

			if len(profiles) > 0 {
				mult := profileMultiplier(reg, e, profiles)
				if !math.IsNaN(mult) && !math.IsInf(mult, 0) && mult > 0 && mult != 1 {
					logOdds += math.Log(mult)
					trail = append(trail, Contribution{
						Type:     "profile",
						Value:    mult,
						Profiles: profiles.List(),
						Origin:   origin,
					})
				}
			}

			for _, c := range e.Criteria {
				if !allPresent(c.If, ev) {
					continue
				}
				for _, eff := range c.Effects {
					if !(eff.Value > 0) {
						continue
					}
					logOdds += math.Log(eff.Value)
					trail = append(trail, Contribution{
						Type:     eff.Kind,
						Value:    eff.Value,
						Features: append([]string(nil), c.If...),
						Origin:   origin,
					})
				}
			}

			for _, h := range e.Heuristics {
				if !anyPresent(h.When, ev) {
					continue
				}
				b := h.Boost.Value
				if !(b > 0) || b == 1 {
					continue
				}
				logOdds += math.Log(b)
				trail = append(trail, Contribution{
					Type:     h.Boost.Kind,
					Value:    b,
					Features: append([]string(nil), h.When...),
					Origin:   origin,
				})
			}
		}

		results = append(results, RankingEntry{
			GlobalID:      gid,
			Label:         block.Label(),
			PretestGlobal: block.PretestGlobal,
			Posterior:     invLogit(logOdds),
			Trail:         trail,
			Areas:         append([]string(nil), block.Areas...),
		})
	}

	sort.SliceStable(results, func(i, j int) bool {
		return results[i].Posterior > results[j].Posterior
	})
	return results
}

// profileMultiplier resolves the combined multiplier for one local
// diagnosis: specific rules keyed by dx id first, then "@tags:<tag>" rules
// matching any of the diagnosis's declared tags.
func profileMultiplier(reg *registry.Registry, dx *registry.Diagnosis, profiles ProfileSet) float64 {
	bundle := reg.ByArea[dx.Area]
	if bundle == nil || len(bundle.Profiles.Multipliers) == 0 {
		return 1
	}
	table := bundle.Profiles.Multipliers

	mult := 1.0
	apply := func(byTag map[string]float64) {
		for _, tag := range profiles.List() {
			m, ok := byTag[tag]
			if !ok {
				continue
			}
			if math.IsNaN(m) || math.IsInf(m, 0) || !(m > 0) {
				continue
			}
			mult *= m
		}
	}

	if byTag, ok := table[dx.ID]; ok {
		apply(byTag)
	}
	for key, byTag := range table {
		tag, isTagRule := strings.CutPrefix(key, "@tags:")
		if !isTagRule {
			continue
		}
		for _, dxTag := range dx.Tags {
			if dxTag == tag {
				apply(byTag)
				break
			}
		}
	}
	return mult
}

package registry

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"math"
	"os"
	"path/filepath"
	"regexp"

	"github.com/rs/zerolog"
)

// DefaultAreas is the closed set of anatomical domains, in priority order.
var DefaultAreas = []string{"ouvido", "nariz", "garganta", "pescoco"}

var idPattern = regexp.MustCompile(`^[a-z0-9_.]+$`)

// ErrNotFound is returned by a Source for a missing optional file.
var ErrNotFound = errors.New("registry: file not found")

// Source supplies raw rule files by name. Implementations exist for a
// directory on disk and for the embedded default rule set.
type Source interface {
	ReadFile(ctx context.Context, name string) ([]byte, error)
}

// DirSource reads rule files from a directory.
type DirSource struct {
	Dir string
}

func (s DirSource) ReadFile(_ context.Context, name string) ([]byte, error) {
	b, err := os.ReadFile(filepath.Join(s.Dir, name))
	if errors.Is(err, fs.ErrNotExist) {
		return nil, fmt.Errorf("%w: %s", ErrNotFound, name)
	}
	return b, err
}

// Loader parses rule sources into an immutable Registry. A load either
// succeeds completely or fails; the engine never runs on a partial rule base.
type Loader interface {
	Load(ctx context.Context) (*Registry, error)
}

// FileLoader loads a registry from a Source covering features.json,
// redflags.json and per-area diag_<area>.json / profiles_<area>.json files.
type FileLoader struct {
	src   Source
	areas []string
	log   zerolog.Logger
}

func NewFileLoader(src Source, logger zerolog.Logger) *FileLoader {
	return &FileLoader{src: src, areas: DefaultAreas, log: logger}
}

// raw parse shapes; validated into the tagged model before indexing.

type rawFeaturesFile struct {
	Features []Feature `json:"features"`
}

type rawRedFlagsFile struct {
	Common map[string]string `json:"common"`
}

type rawCriterion struct {
	If     FeatureList `json:"if"`
	LRPos  *float64    `json:"lr+"`
	LRNeg  *float64    `json:"lr-"`
	Weight *float64    `json:"weight"`
}

type rawHeuristic struct {
	When  FeatureList `json:"when"`
	Boost *float64    `json:"boost"`
}

type rawDiagnosis struct {
	ID         string         `json:"id"`
	GlobalID   string         `json:"global_id"`
	Label      string         `json:"label"`
	Pretest    *float64       `json:"pretest"`
	Criteria   []rawCriterion `json:"criteria"`
	Heuristics []rawHeuristic `json:"heuristics"`
	RedFlags   []string       `json:"red_flags"`
	Tags       []string       `json:"tags"`
}

type rawAreaFile struct {
	Area           string         `json:"area"`
	Intake         Intake         `json:"intake"`
	Dx             []rawDiagnosis `json:"dx"`
	ViaAtendimento RouteMap       `json:"via_atendimento"`
}

func (l *FileLoader) Load(ctx context.Context) (*Registry, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	featData, err := l.src.ReadFile(ctx, "features.json")
	if err != nil {
		return nil, fmt.Errorf("load features table: %w", err)
	}
	var featFile rawFeaturesFile
	if err := json.Unmarshal(featData, &featFile); err != nil {
		return nil, fmt.Errorf("parse features table: %w", err)
	}
	features := make(map[string]Feature, len(featFile.Features))
	for _, f := range featFile.Features {
		if f.ID == "" {
			continue
		}
		if f.Label == "" {
			f.Label = f.ID
		}
		features[f.ID] = f
	}

	redflags := map[string]Route{}
	var redflagIDs []string
	rfData, err := l.src.ReadFile(ctx, "redflags.json")
	switch {
	case err == nil:
		var rfFile rawRedFlagsFile
		if err := json.Unmarshal(rfData, &rfFile); err != nil {
			return nil, fmt.Errorf("parse red flags table: %w", err)
		}
		for id, route := range rfFile.Common {
			redflags[id] = Route(route)
		}
		// deterministic order for candidate collection
		for _, f := range featFile.Features {
			if _, ok := redflags[f.ID]; ok {
				redflagIDs = append(redflagIDs, f.ID)
			}
		}
		for id := range redflags {
			if !containsString(redflagIDs, id) {
				redflagIDs = append(redflagIDs, id)
			}
		}
	case errors.Is(err, ErrNotFound):
		// optional table
	default:
		return nil, fmt.Errorf("load red flags table: %w", err)
	}

	reg := &Registry{
		Areas:      append([]string(nil), l.areas...),
		ByArea:     make(map[string]*AreaBundle, len(l.areas)),
		ByGlobalID: make(map[string]*GlobalCondition),
		ByLocalID:  make(map[string]*Diagnosis),
		Features:   features,
		RedFlags:   redflags,
		RedFlagIDs: redflagIDs,
	}

	for _, area := range l.areas {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		bundle, err := l.loadArea(ctx, area, reg)
		if err != nil {
			return nil, fmt.Errorf("load area %s: %w", area, err)
		}
		reg.ByArea[area] = bundle
	}

	l.index(reg)
	l.crossCheck(reg)

	if n := len(reg.Warnings); n > 0 {
		l.log.Warn().Int("count", n).Msg("registry loaded with schema warnings")
	}
	return reg, nil
}

func (l *FileLoader) loadArea(ctx context.Context, area string, reg *Registry) (*AreaBundle, error) {
	diagData, err := l.src.ReadFile(ctx, "diag_"+area+".json")
	if err != nil {
		return nil, err
	}
	var raw rawAreaFile
	if err := json.Unmarshal(diagData, &raw); err != nil {
		return nil, fmt.Errorf("parse rules: %w", err)
	}

	bundle := &AreaBundle{Area: area, Intake: raw.Intake, RouteMap: raw.ViaAtendimento}

	for _, e := range bundle.RouteMap {
		if !e.Route.Valid() {
			return nil, fmt.Errorf("via_atendimento %s: unknown route %q", e.FeatureID, e.Route)
		}
	}

	localSeen := make(map[string]bool, len(raw.Dx))
	for _, rd := range raw.Dx {
		if rd.ID == "" {
			return nil, fmt.Errorf("diagnosis without id")
		}
		if !idPattern.MatchString(rd.ID) {
			return nil, fmt.Errorf("diagnosis id %q: invalid identifier", rd.ID)
		}
		if localSeen[rd.ID] {
			return nil, fmt.Errorf("duplicate diagnosis id %q", rd.ID)
		}
		localSeen[rd.ID] = true

		dx, err := l.buildDiagnosis(area, rd, reg)
		if err != nil {
			return nil, err
		}
		bundle.Dx = append(bundle.Dx, dx)
	}

	profData, err := l.src.ReadFile(ctx, "profiles_"+area+".json")
	switch {
	case err == nil:
		if err := json.Unmarshal(profData, &bundle.Profiles); err != nil {
			return nil, fmt.Errorf("parse profiles: %w", err)
		}
		for key, byTag := range bundle.Profiles.Multipliers {
			for tag, m := range byTag {
				if !(m > 0) || math.IsInf(m, 0) || math.IsNaN(m) {
					reg.Warnings = append(reg.Warnings, Warning{
						Area: area, Where: "profiles." + key, FeatureID: tag,
						Message: fmt.Sprintf("multiplier %v out of range, ignored at evaluation", m),
					})
				}
			}
		}
	case errors.Is(err, ErrNotFound):
		// profiles are optional per area
	default:
		return nil, fmt.Errorf("load profiles: %w", err)
	}

	return bundle, nil
}

// buildDiagnosis validates raw optional rule fields once into tagged effects.
func (l *FileLoader) buildDiagnosis(area string, rd rawDiagnosis, reg *Registry) (*Diagnosis, error) {
	gid := rd.GlobalID
	if gid == "" {
		gid = rd.ID
	}
	if !idPattern.MatchString(gid) {
		return nil, fmt.Errorf("diagnosis %q: invalid global_id %q", rd.ID, gid)
	}

	pretest := 0.01
	if rd.Pretest != nil {
		pretest = *rd.Pretest
	}
	if pretest < 0 || pretest > 1 || math.IsNaN(pretest) {
		return nil, fmt.Errorf("diagnosis %q: pretest %v outside [0,1]", rd.ID, pretest)
	}

	dx := &Diagnosis{
		Area:     area,
		ID:       rd.ID,
		GlobalID: gid,
		Label:    rd.Label,
		Pretest:  pretest,
		RedFlags: rd.RedFlags,
		Tags:     rd.Tags,
	}
	if dx.Label == "" {
		dx.Label = rd.ID
	}

	for _, rc := range rd.Criteria {
		if len(rc.If) == 0 {
			continue
		}
		c := Criterion{If: rc.If}
		c.Effects = appendEffect(c.Effects, EffectLRPos, rc.LRPos, reg, area, dx.ID)
		c.Effects = appendEffect(c.Effects, EffectLRNeg, rc.LRNeg, reg, area, dx.ID)
		c.Effects = appendEffect(c.Effects, EffectWeight, rc.Weight, reg, area, dx.ID)
		if len(c.Effects) == 0 {
			reg.Warnings = append(reg.Warnings, Warning{
				Area: area, Where: "dx." + dx.ID, FeatureID: rc.If[0],
				Message: "criterion with no usable effect, skipped",
			})
			continue
		}
		dx.Criteria = append(dx.Criteria, c)
	}

	for _, rh := range rd.Heuristics {
		if len(rh.When) == 0 || rh.Boost == nil {
			continue
		}
		b := *rh.Boost
		if !(b > 0) || b == 1 || math.IsInf(b, 0) || math.IsNaN(b) {
			reg.Warnings = append(reg.Warnings, Warning{
				Area: area, Where: "dx." + dx.ID, FeatureID: rh.When[0],
				Message: fmt.Sprintf("boost %v has no effect, skipped", b),
			})
			continue
		}
		dx.Heuristics = append(dx.Heuristics, Heuristic{
			When:  rh.When,
			Boost: Effect{Kind: EffectBoost, Value: b},
		})
	}

	return dx, nil
}

func appendEffect(effects []Effect, kind EffectKind, v *float64, reg *Registry, area, dxID string) []Effect {
	if v == nil {
		return effects
	}
	if !(*v > 0) || math.IsInf(*v, 0) || math.IsNaN(*v) {
		reg.Warnings = append(reg.Warnings, Warning{
			Area: area, Where: "dx." + dxID, FeatureID: string(kind),
			Message: fmt.Sprintf("%s factor %v must be finite and > 0, skipped", kind, *v),
		})
		return effects
	}
	return append(effects, Effect{Kind: kind, Value: *v})
}

// index builds the cross-indexes. When two diagnoses collide on the same
// (global_id, area) pair the richer entry (more criteria+heuristics) is
// retained; equal richness keeps the first encountered.
func (l *FileLoader) index(reg *Registry) {
	for _, area := range reg.Areas {
		bundle := reg.ByArea[area]
		for _, dx := range bundle.Dx {
			reg.ByLocalID[area+"."+dx.ID] = dx

			block, ok := reg.ByGlobalID[dx.GlobalID]
			if !ok {
				block = &GlobalCondition{GlobalID: dx.GlobalID}
				reg.ByGlobalID[dx.GlobalID] = block
				reg.GlobalIDs = append(reg.GlobalIDs, dx.GlobalID)
			}

			replaced := false
			for i, existing := range block.Entries {
				if existing.Area != area {
					continue
				}
				if dx.richness() > existing.richness() {
					reg.Warnings = append(reg.Warnings, Warning{
						Area: area, Where: "dx." + existing.ID, FeatureID: dx.GlobalID,
						Message: "global_id collision, richer entry " + dx.ID + " retained",
					})
					block.Entries[i] = dx
				} else {
					reg.Warnings = append(reg.Warnings, Warning{
						Area: area, Where: "dx." + dx.ID, FeatureID: dx.GlobalID,
						Message: "global_id collision, existing entry " + existing.ID + " retained",
					})
				}
				replaced = true
				break
			}
			if replaced {
				continue
			}

			block.Entries = append(block.Entries, dx)
			if !containsString(block.Areas, area) {
				block.Areas = append(block.Areas, area)
			}
		}
	}

	for _, gid := range reg.GlobalIDs {
		block := reg.ByGlobalID[gid]
		block.PretestGlobal = globalPretest(block.Entries)
	}
}

// globalPretest is the arithmetic mean of local pretests, clamped to [0,1].
func globalPretest(entries []*Diagnosis) float64 {
	if len(entries) == 0 {
		return 0.01
	}
	var sum float64
	for _, e := range entries {
		sum += e.Pretest
	}
	return math.Max(0, math.Min(1, sum/float64(len(entries))))
}

// crossCheck collects warnings for rule references to unknown feature ids.
// Unknown ids are tolerated and treated as never present.
func (l *FileLoader) crossCheck(reg *Registry) {
	check := func(area, where, fid string) {
		if _, ok := reg.Features[fid]; !ok {
			reg.Warnings = append(reg.Warnings, Warning{
				Area: area, Where: where, FeatureID: fid,
				Message: "reference to unknown feature id",
			})
		}
	}

	for _, area := range reg.Areas {
		bundle := reg.ByArea[area]
		for _, s := range bundle.Intake.Symptoms {
			check(area, "intake", s.ID)
		}
		for _, m := range bundle.Intake.Modifiers {
			check(area, "intake", m.ID)
		}
		for _, e := range bundle.RouteMap {
			check(area, "via_atendimento", e.FeatureID)
		}
		for _, dx := range bundle.Dx {
			for _, c := range dx.Criteria {
				for _, fid := range c.If {
					check(area, "dx."+dx.ID, fid)
				}
			}
			for _, h := range dx.Heuristics {
				for _, fid := range h.When {
					check(area, "dx."+dx.ID, fid)
				}
			}
			for _, fid := range dx.RedFlags {
				check(area, "dx."+dx.ID+".red_flags", fid)
			}
		}
	}
	for _, fid := range reg.RedFlagIDs {
		check("", "redflags.common", fid)
	}
}

func containsString(list []string, s string) bool {
	for _, x := range list {
		if x == s {
			return true
		}
	}
	return false
}

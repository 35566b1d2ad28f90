package registry

import (
	"bytes"
	"encoding/json"
	"fmt"
)

// Route is the care-escalation tier recommended for a case. Higher severity
// always wins when multiple red flags map to different tiers.
type Route string

const (
	RouteAmbulatorioRotina       Route = "ambulatorio_rotina"
	RouteTelemedicina            Route = "telemedicina"
	RouteEmergenciaGeral         Route = "emergencia_geral"
	RouteEmergenciaEspecializada Route = "emergencia_especializada"
)

var routeSeverity = map[Route]int{
	RouteAmbulatorioRotina:       1,
	RouteTelemedicina:            2,
	RouteEmergenciaGeral:         3,
	RouteEmergenciaEspecializada: 4,
}

// Severity returns the rank of the route; unknown routes rank lowest.
func (r Route) Severity() int {
	return routeSeverity[r]
}

// Valid reports whether r is one of the closed route set.
func (r Route) Valid() bool {
	_, ok := routeSeverity[r]
	return ok
}

// WorseRoute returns the higher-severity of the two routes.
func WorseRoute(a, b Route) Route {
	if b.Severity() > a.Severity() {
		return b
	}
	return a
}

// Feature is a canonical atomic observable (symptom, sign, or modifier).
// Defined once in the global feature table and referenced by id everywhere.
type Feature struct {
	ID      string   `json:"id"`
	Label   string   `json:"label"`
	Aliases []string `json:"aliases,omitempty"`
}

// Symptom is an intake-level symptom declaration of one area.
type Symptom struct {
	ID      string   `json:"id"`
	Label   string   `json:"label"`
	Aliases []string `json:"aliases,omitempty"`
	Weight  float64  `json:"weights,omitempty"`
}

// Modifier is an intake-level typed question (duration, laterality, ...).
type Modifier struct {
	ID     string   `json:"id"`
	Type   string   `json:"type"` // boolean | number | categorical | ordinal
	Unit   string   `json:"unit,omitempty"`
	Levels []string `json:"levels,omitempty"`
}

// Intake describes what one area asks about up front.
type Intake struct {
	Symptoms  []Symptom  `json:"symptoms"`
	Modifiers []Modifier `json:"modifiers"`
}

// EffectKind is the closed set of rule effects. Raw rule JSON carries
// optional "lr+"/"lr-"/"weight"/"boost" fields; loading validates them once
// into tagged effects so evaluation never probes optional fields.
type EffectKind string

const (
	EffectLRPos  EffectKind = "lr+"
	EffectLRNeg  EffectKind = "lr-"
	EffectWeight EffectKind = "weight"
	EffectBoost  EffectKind = "heuristic"
)

// Effect is one validated multiplicative log-odds contribution.
// Value is always finite and > 0.
type Effect struct {
	Kind  EffectKind
	Value float64
}

// FeatureList accepts both a bare string and an array of strings in rule
// JSON ("if": "otalgia" vs "if": ["otalgia","febre"]).
type FeatureList []string

func (f *FeatureList) UnmarshalJSON(data []byte) error {
	data = bytes.TrimSpace(data)
	if len(data) > 0 && data[0] == '"' {
		var single string
		if err := json.Unmarshal(data, &single); err != nil {
			return err
		}
		*f = FeatureList{single}
		return nil
	}
	var list []string
	if err := json.Unmarshal(data, &list); err != nil {
		return fmt.Errorf("feature list must be a string or array of strings: %w", err)
	}
	*f = list
	return nil
}

func (f FeatureList) MarshalJSON() ([]byte, error) {
	return json.Marshal([]string(f))
}

// Criterion fires when ALL of its If features are present in evidence.
type Criterion struct {
	If      FeatureList
	Effects []Effect
}

// Heuristic fires when ANY of its When features is present in evidence.
type Heuristic struct {
	When  FeatureList
	Boost Effect
}

// Diagnosis is one candidate condition as defined inside one area.
type Diagnosis struct {
	Area       string
	ID         string
	GlobalID   string
	Label      string
	Pretest    float64
	Criteria   []Criterion
	Heuristics []Heuristic
	RedFlags   []string
	Tags       []string
}

// richness is the dedup metric for colliding global ids: more rules wins.
func (d *Diagnosis) richness() int {
	return len(d.Criteria) + len(d.Heuristics)
}

// RouteEntry is one feature→route mapping of an area's via_atendimento
// table. Declaration order in the JSON object is preserved because the
// care-route reason is the first matched feature of the winning tier.
type RouteEntry struct {
	FeatureID string
	Route     Route
}

// RouteMap preserves the JSON object's key order.
type RouteMap []RouteEntry

func (m *RouteMap) UnmarshalJSON(data []byte) error {
	dec := json.NewDecoder(bytes.NewReader(data))
	tok, err := dec.Token()
	if err != nil {
		return err
	}
	if d, ok := tok.(json.Delim); !ok || d != '{' {
		return fmt.Errorf("via_atendimento must be an object")
	}
	var out RouteMap
	for dec.More() {
		keyTok, err := dec.Token()
		if err != nil {
			return err
		}
		key := keyTok.(string)
		var val string
		if err := dec.Decode(&val); err != nil {
			return fmt.Errorf("route for %q: %w", key, err)
		}
		out = append(out, RouteEntry{FeatureID: key, Route: Route(val)})
	}
	*m = out
	return nil
}

func (m RouteMap) MarshalJSON() ([]byte, error) {
	var buf bytes.Buffer
	buf.WriteByte('{')
	for i, e := range m {
		if i > 0 {
			buf.WriteByte(',')
		}
		k, _ := json.Marshal(e.FeatureID)
		v, _ := json.Marshal(string(e.Route))
		buf.Write(k)
		buf.WriteByte(':')
		buf.Write(v)
	}
	buf.WriteByte('}')
	return buf.Bytes(), nil
}

// Lookup returns the route mapped for a feature id.
func (m RouteMap) Lookup(featureID string) (Route, bool) {
	for _, e := range m {
		if e.FeatureID == featureID {
			return e.Route, true
		}
	}
	return "", false
}

// ProfileTable holds per-area clinical-profile multipliers. Keys of
// Multipliers are either a local diagnosis id or "@tags:<tag>"; the inner
// map is profile tag → multiplier.
type ProfileTable struct {
	Multipliers map[string]map[string]float64 `json:"multipliers"`
}

// AreaBundle is everything one anatomical area contributes to the registry.
type AreaBundle struct {
	Area     string
	Intake   Intake
	Dx       []*Diagnosis
	Profiles ProfileTable
	RouteMap RouteMap
}

// GlobalCondition merges every local diagnosis sharing a global_id.
// PretestGlobal is the arithmetic mean of local pretests, clamped to [0,1].
type GlobalCondition struct {
	GlobalID      string
	Entries       []*Diagnosis
	PretestGlobal float64
	Areas         []string
}

// Label returns the display label of the first contributing entry.
func (g *GlobalCondition) Label() string {
	if len(g.Entries) > 0 {
		return g.Entries[0].Label
	}
	return g.GlobalID
}

// Warning is a non-fatal consistency finding collected during load.
// Inference proceeds treating unknown ids as permanently absent evidence.
type Warning struct {
	Area      string `json:"area,omitempty"`
	Where     string `json:"where"`
	FeatureID string `json:"feature_id"`
	Message   string `json:"message"`
}

func (w Warning) String() string {
	if w.Area != "" {
		return fmt.Sprintf("%s/%s: %s (%s)", w.Area, w.Where, w.Message, w.FeatureID)
	}
	return fmt.Sprintf("%s: %s (%s)", w.Where, w.Message, w.FeatureID)
}

// Registry is the immutable cross-indexed rule base. It is safe to share
// across any number of concurrent triage evaluations after load.
type Registry struct {
	Areas      []string
	ByArea     map[string]*AreaBundle
	ByGlobalID map[string]*GlobalCondition
	// GlobalIDs preserves first-encounter order (area order, then dx order)
	// so that ranking ties stay deterministic under a stable sort.
	GlobalIDs []string
	ByLocalID map[string]*Diagnosis
	Features  map[string]Feature
	// RedFlags is the global red-flag table (feature id → indicative route).
	RedFlags   map[string]Route
	RedFlagIDs []string
	Warnings   []Warning
}

// FeatureLabel resolves a feature id to its display label, falling back to
// the id itself for unknown features.
func (r *Registry) FeatureLabel(id string) string {
	if f, ok := r.Features[id]; ok && f.Label != "" {
		return f.Label
	}
	return id
}

// ConditionLabel resolves a global condition id to a display label.
func (r *Registry) ConditionLabel(gid string) string {
	if g, ok := r.ByGlobalID[gid]; ok {
		return g.Label()
	}
	return gid
}

// IsRedFlag reports whether a feature id is in the global red-flag table.
func (r *Registry) IsRedFlag(id string) bool {
	_, ok := r.RedFlags[id]
	return ok
}

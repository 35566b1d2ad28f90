// Package evidence holds the per-session set of observed clinical facts.
// A store is owned by a single triage conversation; it is not safe for
// concurrent writers.
package evidence

import "encoding/json"

// Kind distinguishes the closed set of evidence value shapes.
type Kind string

const (
	KindPresence    Kind = "presence"
	KindNumber      Kind = "number"
	KindCategorical Kind = "categorical"
)

// Value is a typed observed value. Presence is the default for symptoms;
// modifiers carry numbers (duracao_dias) or categorical choices (laterality).
type Value struct {
	Kind     Kind    `json:"kind"`
	Number   float64 `json:"number,omitempty"`
	Category string  `json:"category,omitempty"`
}

func Present() Value             { return Value{Kind: KindPresence} }
func Number(n float64) Value     { return Value{Kind: KindNumber, Number: n} }
func Categorical(c string) Value { return Value{Kind: KindCategorical, Category: c} }

// Record is one deduplicated observation with provenance.
type Record struct {
	FeatureID string
	Sources   []string
	Value     Value
}

func (r *Record) hasSource(source string) bool {
	for _, s := range r.Sources {
		if s == source {
			return true
		}
	}
	return false
}

// Store deduplicates evidence by feature id, keeping insertion order and
// merging provenance on repeated adds.
type Store struct {
	order   []string
	records map[string]*Record
}

func New() *Store {
	return &Store{records: make(map[string]*Record)}
}

// Add records an observation. Re-adding the same feature merges the source
// into the record's source set and overwrites the value.
func (s *Store) Add(featureID, source string, value Value) {
	if featureID == "" {
		return
	}
	rec, ok := s.records[featureID]
	if !ok {
		rec = &Record{FeatureID: featureID, Value: Present()}
		s.records[featureID] = rec
		s.order = append(s.order, featureID)
	}
	if source != "" && !rec.hasSource(source) {
		rec.Sources = append(rec.Sources, source)
	}
	if value.Kind != "" {
		rec.Value = value
	}
}

// AddPresence records a plain presence observation.
func (s *Store) AddPresence(featureID, source string) {
	s.Add(featureID, source, Present())
}

func (s *Store) Has(featureID string) bool {
	_, ok := s.records[featureID]
	return ok
}

func (s *Store) Get(featureID string) (*Record, bool) {
	rec, ok := s.records[featureID]
	return rec, ok
}

// List returns all records in insertion order.
func (s *Store) List() []*Record {
	out := make([]*Record, 0, len(s.order))
	for _, id := range s.order {
		out = append(out, s.records[id])
	}
	return out
}

func (s *Store) Len() int {
	return len(s.order)
}

// Merge unions another store into this one, tagging merged records with
// the "merge" source.
func (s *Store) Merge(other *Store) {
	if other == nil {
		return
	}
	for _, rec := range other.List() {
		s.Add(rec.FeatureID, "merge", rec.Value)
	}
}

func (s *Store) Clear() {
	s.order = nil
	s.records = make(map[string]*Record)
}

// Snapshot is the serializable view used for debug output and persistence.
type Snapshot struct {
	FeatureID string   `json:"feature_id"`
	Sources   []string `json:"sources"`
	Value     Value    `json:"value"`
}

func (s *Store) Snapshots() []Snapshot {
	out := make([]Snapshot, 0, len(s.order))
	for _, rec := range s.List() {
		out = append(out, Snapshot{
			FeatureID: rec.FeatureID,
			Sources:   append([]string(nil), rec.Sources...),
			Value:     rec.Value,
		})
	}
	return out
}

func (s *Store) MarshalJSON() ([]byte, error) {
	return json.Marshal(s.Snapshots())
}

package triage

import (
	"context"
	"fmt"
	"sort"
	"strings"

	"github.com/rs/zerolog"

	"github.com/otriage/otriage/internal/domain/evidence"
	"github.com/otriage/otriage/internal/platform/extract"
	"github.com/otriage/otriage/internal/platform/registry"
)

// Normalizer canonicalizes patient vocabulary into registry feature ids.
type Normalizer interface {
	// Normalize maps declared symptoms and free text to canonical feature
	// ids, deduplicated, in first-mention order.
	Normalize(reg *registry.Registry, symptoms []string, freeText string) []string
	// Duration extracts a symptom duration in days from free text.
	Duration(freeText string) (float64, bool)
}

// Extractor pulls structured findings out of free text via an external
// model. Failures are tolerated; extraction only ever adds evidence.
type Extractor interface {
	Extract(ctx context.Context, text string) (*extract.Extraction, error)
}

// Service runs complete triage evaluations against the loaded rule base.
type Service struct {
	loader     registry.Loader
	normalizer Normalizer
	extractor  Extractor
	log        zerolog.Logger
	mode       Mode
	topK       int
	questions  int
}

// Option configures a Service.
type Option func(*Service)

// WithExtractor attaches the optional free-text extraction client.
func WithExtractor(e Extractor) Option {
	return func(s *Service) { s.extractor = e }
}

// WithMode sets the area-selection mode.
func WithMode(m Mode) Option {
	return func(s *Service) { s.mode = m }
}

// WithQuestionBudget overrides the top-K hypothesis window and the number
// of next questions returned.
func WithQuestionBudget(topK, questions int) Option {
	return func(s *Service) {
		if topK > 0 {
			s.topK = topK
		}
		if questions > 0 {
			s.questions = questions
		}
	}
}

func NewService(loader registry.Loader, normalizer Normalizer, logger zerolog.Logger, opts ...Option) *Service {
	s := &Service{
		loader:     loader,
		normalizer: normalizer,
		log:        logger,
		mode:       ModeGated,
		topK:       DefaultTopK,
		questions:  DefaultQuestionCap,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Triage evaluates one raw case end to end: registry load, vocabulary
// normalization, optional extraction, area routing, fusion, care-route
// decision, outputs and next questions.
func (s *Service) Triage(ctx context.Context, raw RawInput) (*Result, error) {
	reg, err := s.loader.Load(ctx)
	if err != nil {
		return nil, fmt.Errorf("loading rule registry: %w", err)
	}

	freeText := raw.FreeText()
	declared := append([]string(nil), raw.Symptoms...)
	modifiers := make(map[string]any, len(raw.Modifiers))
	for k, v := range raw.Modifiers {
		modifiers[k] = v
	}

	if s.extractor != nil && strings.TrimSpace(freeText) != "" {
		ext, err := s.extractor.Extract(ctx, freeText)
		if err != nil {
			s.log.Warn().Err(err).Msg("free-text extraction failed, continuing without it")
		} else if ext != nil {
			declared = append(declared, ext.Symptoms...)
			for k, v := range ext.Modifiers {
				if _, taken := modifiers[k]; !taken {
					modifiers[k] = v
				}
			}
			if raw.Idade == nil && ext.Idade != nil {
				raw.Idade = ext.Idade
			}
			if raw.Sexo == "" {
				raw.Sexo = ext.Sexo
			}
		}
	}

	observed := s.normalizer.Normalize(reg, declared, freeText)

	ev := evidence.New()
	for _, fid := range observed {
		ev.AddPresence(fid, "user")
	}
	addModifiers(ev, modifiers)
	if !ev.Has("duracao_dias") {
		if days, ok := s.normalizer.Duration(freeText); ok {
			ev.Add("duracao_dias", "text", evidence.Number(days))
		}
	}

	intake := make([]string, 0, ev.Len())
	for _, rec := range ev.List() {
		intake = append(intake, rec.FeatureID)
	}

	areas := SelectAreas(intake, s.mode, reg)
	demo := ExtractDemographics(raw)
	profiles := DeriveProfiles(demo)

	ranking := Fuse(reg, ev, areas, profiles)
	decision := DecideRoute(reg, ev, areas)

	outputs := BuildOutputs(reg, ev, areas, demo, raw, ranking, decision)
	outputs.NextQuestions = SuggestNextQuestions(reg, ev, areas, ranking, s.topK, s.questions)

	s.log.Info().
		Strs("areas", areas).
		Str("via", string(decision.Route)).
		Int("evidence", ev.Len()).
		Int("hypotheses", len(ranking)).
		Msg("triage evaluated")

	return &Result{
		Intake:  intake,
		Areas:   areas,
		Ranking: ranking,
		Outputs: outputs,
		Debug: Debug{
			Evidence: ev.Snapshots(),
			Profiles: profiles.List(),
			Warnings: len(reg.Warnings),
		},
	}, nil
}

// addModifiers records typed intake answers in key order so the evidence
// trail stays deterministic. A false boolean is an explicit "absent" answer
// and adds nothing.
func addModifiers(ev *evidence.Store, modifiers map[string]any) {
	keys := make([]string, 0, len(modifiers))
	for k := range modifiers {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	for _, fid := range keys {
		v := modifiers[fid]
		switch val := v.(type) {
		case bool:
			if val {
				ev.AddPresence(fid, "modifier")
			}
		case float64:
			ev.Add(fid, "modifier", evidence.Number(val))
		case int:
			ev.Add(fid, "modifier", evidence.Number(float64(val)))
		case int64:
			ev.Add(fid, "modifier", evidence.Number(float64(val)))
		case string:
			if strings.TrimSpace(val) != "" {
				ev.Add(fid, "modifier", evidence.Categorical(val))
			}
		}
	}
}

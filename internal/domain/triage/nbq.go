package triage

import (
	"fmt"
	"math"
	"sort"
	"strings"

	"github.com/otriage/otriage/internal/domain/evidence"
	"github.com/otriage/otriage/internal/platform/registry"
)

// Defaults for next-question selection.
const (
	DefaultTopK        = 8
	DefaultQuestionCap = 3
)

// Score multipliers applied after the information gain is computed. A
// feature in the global red-flag table is always worth asking early; a
// feature that splits the two leading hypotheses sharpens the differential.
const (
	redFlagBoost       = 1.75
	discriminatorBoost = 1.25
)

// safetySentinels maps an already-present feature to the follow-up that must
// be asked regardless of information gain.
var safetySentinels = []struct {
	Trigger string
	Ask     string
}{
	{"dispneia", "estridor"},
	{"falta_de_ar", "estridor"},
	{"paralisia_facial", "sinais_neurologicos_focais"},
	{"epistaxe", "hemorragia_abundante"},
}

// featureLikelihood is the pooled positive/negative likelihood ratio one
// hypothesis assigns to one feature. Mentioned=false means the hypothesis is
// indifferent to the feature (both ratios 1).
type featureLikelihood struct {
	Pos       float64
	Neg       float64
	Mentioned bool
}

// SuggestNextQuestions ranks the unobserved features by expected reduction
// of the entropy over the top-K hypotheses, then prepends any safety
// sentinels triggered by present evidence. The result is capped.
func SuggestNextQuestions(reg *registry.Registry, ev *evidence.Store, areas []string, ranking []RankingEntry, topK, cap int) []Question {
	if reg == nil {
		return []Question{}
	}
	if topK <= 0 {
		topK = DefaultTopK
	}
	if cap <= 0 {
		cap = DefaultQuestionCap
	}
	if len(areas) == 0 {
		areas = reg.Areas
	}

	top := ranking
	if len(top) > topK {
		top = top[:topK]
	}

	candidates := collectCandidates(reg, ev, areas, top)
	likelihoods := poolLikelihoods(reg, top, candidates)

	// renormalize the top-K posteriors into a distribution
	probs := make([]float64, len(top))
	var sum float64
	for i, r := range top {
		probs[i] = r.Posterior
		sum += r.Posterior
	}
	if sum > 0 {
		for i := range probs {
			probs[i] /= sum
		}
	}
	baseEntropy := entropy(probs)

	questions := make([]Question, 0, len(candidates))
	for _, fid := range candidates {
		gain := expectedGain(probs, likelihoods[fid], baseEntropy)
		if gain <= 0 {
			continue
		}

		q := makeQuestion(reg, areas, fid)
		q.GainBits = gain
		q.Score = gain

		if reg.IsRedFlag(fid) {
			q.Score *= redFlagBoost
			q.PriorityTags = append(q.PriorityTags, "redflag")
		}
		if discriminatesLeaders(top, likelihoods[fid]) {
			q.Score *= discriminatorBoost
			q.PriorityTags = append(q.PriorityTags, "diferenciador")
		}
		q.Targets, q.Rationale = explain(top, likelihoods[fid])
		questions = append(questions, q)
	}

	sort.SliceStable(questions, func(i, j int) bool {
		return questions[i].Score > questions[j].Score
	})

	questions = injectSentinels(reg, ev, areas, questions)
	if len(questions) > cap {
		questions = questions[:cap]
	}
	return questions
}

// collectCandidates gathers every askable feature: rule features of the top
// hypotheses, global red flags, route-map features and intake items of the
// selected areas. Features already in evidence are never candidates.
func collectCandidates(reg *registry.Registry, ev *evidence.Store, areas []string, top []RankingEntry) []string {
	var out []string
	seen := make(map[string]bool)
	add := func(fid string) {
		if fid == "" || seen[fid] || ev.Has(fid) {
			return
		}
		seen[fid] = true
		out = append(out, fid)
	}

	for _, r := range top {
		block := reg.ByGlobalID[r.GlobalID]
		if block == nil {
			continue
		}
		for _, e := range block.Entries {
			for _, c := range e.Criteria {
				for _, fid := range c.If {
					add(fid)
				}
			}
			for _, h := range e.Heuristics {
				for _, fid := range h.When {
					add(fid)
				}
			}
		}
	}
	for _, fid := range reg.RedFlagIDs {
		add(fid)
	}
	for _, area := range areas {
		bundle := reg.ByArea[area]
		if bundle == nil {
			continue
		}
		for _, entry := range bundle.RouteMap {
			add(entry.FeatureID)
		}
		for _, s := range bundle.Intake.Symptoms {
			add(s.ID)
		}
		for _, m := range bundle.Intake.Modifiers {
			add(m.ID)
		}
	}
	return out
}

// poolLikelihoods reduces each (hypothesis, feature) pair to a single pair
// of likelihood ratios: the strongest confirming factor and the strongest
// disconfirming factor any rule mentioning the feature carries.
func poolLikelihoods(reg *registry.Registry, top []RankingEntry, candidates []string) map[string][]featureLikelihood {
	wanted := make(map[string]bool, len(candidates))
	for _, fid := range candidates {
		wanted[fid] = true
	}

	out := make(map[string][]featureLikelihood, len(candidates))
	for _, fid := range candidates {
		out[fid] = make([]featureLikelihood, len(top))
		for i := range out[fid] {
			out[fid][i] = featureLikelihood{Pos: 1, Neg: 1}
		}
	}

	pool := func(fl *featureLikelihood, v float64) {
		fl.Mentioned = true
		if v >= 1 && v > fl.Pos {
			fl.Pos = v
		}
		if v > 0 && v < 1 && v < fl.Neg {
			fl.Neg = v
		}
	}

	for i, r := range top {
		block := reg.ByGlobalID[r.GlobalID]
		if block == nil {
			continue
		}
		for _, e := range block.Entries {
			for _, c := range e.Criteria {
				for _, fid := range c.If {
					if !wanted[fid] {
						continue
					}
					for _, eff := range c.Effects {
						pool(&out[fid][i], eff.Value)
					}
				}
			}
			for _, h := range e.Heuristics {
				for _, fid := range h.When {
					if !wanted[fid] {
						continue
					}
					pool(&out[fid][i], h.Boost.Value)
				}
			}
		}
	}
	return out
}

func entropy(probs []float64) float64 {
	var h float64
	for _, p := range probs {
		if p > 0 {
			h -= p * math.Log2(p)
		}
	}
	return h
}

// expectedGain averages the entropy drop over the two possible answers,
// weighting present and absent equally.
func expectedGain(probs []float64, fls []featureLikelihood, baseEntropy float64) float64 {
	if len(fls) != len(probs) {
		return 0
	}
	hPresent := reweighedEntropy(probs, fls, true)
	hAbsent := reweighedEntropy(probs, fls, false)
	return 0.5*(baseEntropy-hPresent) + 0.5*(baseEntropy-hAbsent)
}

func reweighedEntropy(probs []float64, fls []featureLikelihood, present bool) float64 {
	weighted := make([]float64, len(probs))
	var sum float64
	for i, p := range probs {
		lr := fls[i].Pos
		if !present {
			lr = fls[i].Neg
		}
		weighted[i] = p * lr
		sum += weighted[i]
	}
	if sum == 0 {
		return entropy(probs)
	}
	for i := range weighted {
		weighted[i] /= sum
	}
	return entropy(weighted)
}

// discriminatesLeaders reports whether exactly one of the two leading
// hypotheses mentions the feature.
func discriminatesLeaders(top []RankingEntry, fls []featureLikelihood) bool {
	if len(top) < 2 || len(fls) < 2 {
		return false
	}
	return fls[0].Mentioned != fls[1].Mentioned
}

// explain produces the target hypotheses and the Portuguese rationale.
func explain(top []RankingEntry, fls []featureLikelihood) ([]string, string) {
	var targets []string
	for i, fl := range fls {
		if fl.Mentioned && i < len(top) {
			targets = append(targets, top[i].GlobalID)
		}
	}

	switch {
	case discriminatesLeaders(top, fls):
		return targets, fmt.Sprintf("Ajuda a separar %s vs %s", top[0].Label, top[1].Label)
	case len(fls) > 0 && fls[0].Mentioned:
		return targets, fmt.Sprintf("Aumenta a confiança em %s", top[0].Label)
	default:
		return targets, "Ajuda a refinar o diagnóstico diferencial"
	}
}

// findModifier looks a feature id up in the selected areas' intake modifier
// declarations; the first declaration wins.
func findModifier(reg *registry.Registry, areas []string, fid string) *registry.Modifier {
	for _, area := range areas {
		bundle := reg.ByArea[area]
		if bundle == nil {
			continue
		}
		for i := range bundle.Intake.Modifiers {
			if bundle.Intake.Modifiers[i].ID == fid {
				return &bundle.Intake.Modifiers[i]
			}
		}
	}
	return nil
}

// makeQuestion renders the patient-facing question for a feature.
func makeQuestion(reg *registry.Registry, areas []string, fid string) Question {
	label := reg.FeatureLabel(fid)
	q := Question{FeatureID: fid, Label: label, Kind: "boolean"}

	if mod := findModifier(reg, areas, fid); mod != nil {
		switch mod.Type {
		case "number":
			q.Kind = "number"
			q.Unit = mod.Unit
		case "categorical", "ordinal":
			q.Kind = "categorical"
			q.Options = mod.Levels
		}
	}

	switch {
	case fid == "duracao_dias":
		q.Question = "Há quantos dias começaram os sintomas?"
	case fid == "piora_48_72h":
		q.Question = "Piorou nas últimas 48–72 horas?"
	case q.Kind == "number" && q.Unit == "d":
		q.Question = fmt.Sprintf("Há quantos dias %s?", lowerFirst(label))
	case q.Kind == "categorical":
		q.Question = fmt.Sprintf("Qual opção se aplica a %s: %s?", lowerFirst(label), strings.Join(q.Options, ", "))
	default:
		q.Question = fmt.Sprintf("Você está com %s?", lowerFirst(label))
	}
	return q
}

func lowerFirst(s string) string {
	if s == "" {
		return s
	}
	r := []rune(s)
	r[0] = []rune(strings.ToLower(string(r[0])))[0]
	return string(r)
}

// injectSentinels prepends the safety follow-ups triggered by present
// evidence. A sentinel already in the queue as an ordinary question is
// promoted to the front; features already in evidence are never re-asked.
func injectSentinels(reg *registry.Registry, ev *evidence.Store, areas []string, queue []Question) []Question {
	var front []Question
	promoted := make(map[string]bool)

	for _, s := range safetySentinels {
		if !ev.Has(s.Trigger) || ev.Has(s.Ask) || promoted[s.Ask] {
			continue
		}
		promoted[s.Ask] = true
		q := makeQuestion(reg, areas, s.Ask)
		q.Sentinel = true
		q.Rationale = "Pergunta de segurança: sinal de alarme potencial"
		q.PriorityTags = []string{"redflag"}
		front = append(front, q)
	}
	if len(front) == 0 {
		return queue
	}

	out := front
	for _, q := range queue {
		if promoted[q.FeatureID] {
			continue
		}
		out = append(out, q)
	}
	return out
}

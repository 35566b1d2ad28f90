// Package normalizer maps patient vocabulary onto canonical feature ids.
// Matching is accent- and case-insensitive and driven entirely by the
// feature table's aliases, so new vocabulary ships with the rules.
package normalizer

import (
	"regexp"
	"strconv"
	"strings"
	"unicode"

	"golang.org/x/text/runes"
	"golang.org/x/text/transform"
	"golang.org/x/text/unicode/norm"

	"github.com/otriage/otriage/internal/platform/registry"
)

// maxGram bounds alias phrase length in tokens.
const maxGram = 4

var foldTransformer = transform.Chain(norm.NFD, runes.Remove(runes.In(unicode.Mn)), norm.NFC)

var (
	tokenPattern    = regexp.MustCompile(`[a-z0-9_]+`)
	durationPattern = regexp.MustCompile(`(?:ha|faz|desde)?\s*(\d+)\s*(dia|dias|semana|semanas|mes|meses)\b`)
)

type Normalizer struct{}

func New() *Normalizer {
	return &Normalizer{}
}

// fold lowercases and strips diacritics: "Obstrução Nasal" -> "obstrucao nasal".
func fold(s string) string {
	out, _, err := transform.String(foldTransformer, strings.ToLower(s))
	if err != nil {
		return strings.ToLower(s)
	}
	return out
}

// Normalize resolves declared symptoms and free text to canonical feature
// ids, deduplicated, in first-mention order. Declared entries that are
// already canonical ids pass through; everything else goes through the
// alias index. Unresolvable declared entries are dropped.
func (n *Normalizer) Normalize(reg *registry.Registry, symptoms []string, freeText string) []string {
	if reg == nil {
		return nil
	}
	idx := buildIndex(reg)

	var out []string
	seen := make(map[string]bool)
	add := func(fid string) {
		if fid == "" || seen[fid] {
			return
		}
		seen[fid] = true
		out = append(out, fid)
	}

	for _, s := range symptoms {
		s = strings.TrimSpace(s)
		if s == "" {
			continue
		}
		if _, ok := reg.Features[s]; ok {
			add(s)
			continue
		}
		folded := fold(s)
		if _, ok := reg.Features[folded]; ok {
			add(folded)
			continue
		}
		if fid, ok := idx[normalizePhrase(folded)]; ok {
			add(fid)
		}
	}

	for _, fid := range matchText(idx, freeText) {
		add(fid)
	}
	return out
}

// Duration extracts a symptom duration in days from free text ("há 3 dias",
// "faz 2 semanas"). The first mention wins.
func (n *Normalizer) Duration(freeText string) (float64, bool) {
	m := durationPattern.FindStringSubmatch(fold(freeText))
	if m == nil {
		return 0, false
	}
	v, err := strconv.ParseFloat(m[1], 64)
	if err != nil {
		return 0, false
	}
	switch {
	case strings.HasPrefix(m[2], "semana"):
		v *= 7
	case strings.HasPrefix(m[2], "mes"):
		v *= 30
	}
	return v, true
}

// buildIndex maps folded label and alias phrases to feature ids. The feature
// table is small, so the index is rebuilt per call rather than cached
// against a registry generation.
func buildIndex(reg *registry.Registry) map[string]string {
	idx := make(map[string]string)
	put := func(phrase, fid string) {
		key := normalizePhrase(fold(phrase))
		if key == "" {
			return
		}
		if _, taken := idx[key]; !taken {
			idx[key] = fid
		}
	}
	for fid, f := range reg.Features {
		put(f.Label, fid)
		for _, a := range f.Aliases {
			put(a, fid)
		}
	}
	return idx
}

// normalizePhrase reduces a folded phrase to its token sequence so that
// punctuation and extra whitespace never break a match.
func normalizePhrase(folded string) string {
	return strings.Join(tokenPattern.FindAllString(folded, -1), " ")
}

// matchText slides 1..maxGram token windows over the folded free text and
// collects alias hits, longest window first so "falta de ar" beats "ar".
func matchText(idx map[string]string, freeText string) []string {
	if strings.TrimSpace(freeText) == "" {
		return nil
	}
	tokens := tokenPattern.FindAllString(fold(freeText), -1)

	var out []string
	seen := make(map[string]bool)
	consumed := make([]bool, len(tokens))

	for size := maxGram; size >= 1; size-- {
		for i := 0; i+size <= len(tokens); i++ {
			if anyConsumed(consumed, i, size) {
				continue
			}
			fid, ok := idx[strings.Join(tokens[i:i+size], " ")]
			if !ok {
				continue
			}
			for j := i; j < i+size; j++ {
				consumed[j] = true
			}
			if !seen[fid] {
				seen[fid] = true
				out = append(out, fid)
			}
		}
	}
	return out
}

func anyConsumed(consumed []bool, start, size int) bool {
	for j := start; j < start+size; j++ {
		if consumed[j] {
			return true
		}
	}
	return false
}

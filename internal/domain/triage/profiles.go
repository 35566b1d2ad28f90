package triage

import (
	"math"
	"sort"
	"strconv"
	"strings"
)

// Clinical profile tags derived from demographics. Age-band tags are
// mutually exclusive; everything else may co-exist.
const (
	ProfileCrianca         = "crianca"
	ProfileAdolescente     = "adolescente"
	ProfileAdulto          = "adulto"
	ProfileIdoso           = "idoso"
	ProfileGestante        = "gestante"
	ProfileImunossuprimido = "imunossuprimido"
	ProfileAlergico        = "alergico"
	ProfileTabagista       = "tabagista"
	ProfileEtilista        = "etilista"
)

// ProfileSet is the set of active clinical profiles for one patient.
type ProfileSet map[string]bool

// List returns the active tags sorted, for deterministic trail output.
func (p ProfileSet) List() []string {
	out := make([]string, 0, len(p))
	for tag := range p {
		out = append(out, tag)
	}
	sort.Strings(out)
	return out
}

// Demographics is the normalized demographic view of a raw input.
type Demographics struct {
	Idade        *int
	Sexo         string
	Comorbidades []string
	Gestante     bool
}

// token vocabularies for comorbidity matching; exact case-insensitive
// token match, never substring.
var (
	gestanteTokens = []string{"gestante", "gravidez", "grávida", "gravida"}
	imunoTokens    = []string{
		"imunossuprimido", "hiv", "aids", "quimioterapia",
		"corticoide_cronico", "transplante", "neoplasia_ativa", "imunodeficiencia",
	}
	alergicoTokens  = []string{"alergico", "alérgico", "asma", "rinite_alergica"}
	tabagistaTokens = []string{"tabagista", "fumante"}
	etilistaTokens  = []string{"etilista", "alcool", "álcool"}
)

func hasToken(list []string, needles []string) bool {
	set := make(map[string]bool, len(list))
	for _, x := range list {
		set[strings.ToLower(strings.TrimSpace(x))] = true
	}
	for _, n := range needles {
		if set[strings.ToLower(n)] {
			return true
		}
	}
	return false
}

// parseAge tolerates numbers and numeric strings; anything else is absent.
func parseAge(v any) (int, bool) {
	switch n := v.(type) {
	case nil:
		return 0, false
	case int:
		return n, true
	case int64:
		return int(n), true
	case float64:
		if math.IsNaN(n) || math.IsInf(n, 0) {
			return 0, false
		}
		return int(n), true
	case string:
		f, err := strconv.ParseFloat(strings.TrimSpace(n), 64)
		if err != nil {
			return 0, false
		}
		return int(f), true
	default:
		return 0, false
	}
}

// ExtractDemographics pulls the demographic facts out of a raw input,
// degrading malformed values to absent.
func ExtractDemographics(raw RawInput) Demographics {
	d := Demographics{
		Sexo:         strings.ToUpper(strings.TrimSpace(raw.Sexo)),
		Comorbidades: raw.Comorbidades,
	}
	if age, ok := parseAge(raw.Idade); ok && age >= 0 {
		d.Idade = &age
	}
	d.Gestante = raw.Gestante || hasToken(raw.Comorbidades, gestanteTokens)
	return d
}

// ageBand maps an age to its band tag; a missing age yields no band.
func ageBand(idade *int) string {
	if idade == nil {
		return ""
	}
	switch n := *idade; {
	case n < 12:
		return ProfileCrianca
	case n < 18:
		return ProfileAdolescente
	case n < 65:
		return ProfileAdulto
	default:
		return ProfileIdoso
	}
}

// DeriveProfiles maps demographics to the active clinical profile set.
// Pure and total: always returns a set, possibly empty.
func DeriveProfiles(d Demographics) ProfileSet {
	profiles := make(ProfileSet)

	if band := ageBand(d.Idade); band != "" {
		profiles[band] = true
	}
	if d.Sexo == "F" && d.Gestante {
		profiles[ProfileGestante] = true
	}
	if hasToken(d.Comorbidades, imunoTokens) {
		profiles[ProfileImunossuprimido] = true
	}
	if hasToken(d.Comorbidades, alergicoTokens) {
		profiles[ProfileAlergico] = true
	}
	if hasToken(d.Comorbidades, tabagistaTokens) {
		profiles[ProfileTabagista] = true
	}
	if hasToken(d.Comorbidades, etilistaTokens) {
		profiles[ProfileEtilista] = true
	}

	return profiles
}

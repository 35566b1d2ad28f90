package normalizer

import (
	"context"
	"reflect"
	"testing"

	"github.com/rs/zerolog"

	"github.com/otriage/otriage/internal/platform/registry"
)

func loadRules(t *testing.T) *registry.Registry {
	t.Helper()
	reg, err := registry.NewFileLoader(registry.EmbedSource{}, zerolog.Nop()).Load(context.Background())
	if err != nil {
		t.Fatalf("loading embedded rules: %v", err)
	}
	return reg
}

func TestFoldStripsAccents(t *testing.T) {
	cases := map[string]string{
		"Obstrução Nasal": "obstrucao nasal",
		"FEBRE":           "febre",
		"coração":         "coracao",
		"já":              "ja",
	}
	for in, want := range cases {
		if got := fold(in); got != want {
			t.Errorf("fold(%q) = %q, want %q", in, got, want)
		}
	}
}

func TestNormalizeCanonicalIDsPassThrough(t *testing.T) {
	reg := loadRules(t)
	n := New()

	got := n.Normalize(reg, []string{"otalgia", "febre", "otalgia"}, "")
	if !reflect.DeepEqual(got, []string{"otalgia", "febre"}) {
		t.Errorf("got %v", got)
	}
}

func TestNormalizeAliases(t *testing.T) {
	reg := loadRules(t)
	n := New()

	got := n.Normalize(reg, []string{"coriza", "nariz entupido", "Pus na garganta"}, "")
	want := []string{"rinorreia", "obstrucao_nasal", "exsudato_amigdaliano"}
	if !reflect.DeepEqual(got, want) {
		t.Errorf("got %v, want %v", got, want)
	}
}

func TestNormalizeDropsUnknownSymptoms(t *testing.T) {
	reg := loadRules(t)
	n := New()

	got := n.Normalize(reg, []string{"dor nas costas", "febre"}, "")
	if !reflect.DeepEqual(got, []string{"febre"}) {
		t.Errorf("got %v", got)
	}
}

func TestNormalizeFreeText(t *testing.T) {
	reg := loadRules(t)
	n := New()

	got := n.Normalize(reg, nil, "Estou com o nariz escorrendo e falta de ar desde ontem")
	set := make(map[string]bool)
	for _, fid := range got {
		set[fid] = true
	}
	if !set["rinorreia"] {
		t.Errorf("'nariz escorrendo' should map to rinorreia, got %v", got)
	}
	if !set["falta_de_ar"] {
		t.Errorf("'falta de ar' should map to falta_de_ar, got %v", got)
	}
}

func TestNormalizeAccentInsensitive(t *testing.T) {
	reg := loadRules(t)
	n := New()

	got := n.Normalize(reg, []string{"obstrução nasal"}, "")
	if !reflect.DeepEqual(got, []string{"obstrucao_nasal"}) {
		t.Errorf("got %v", got)
	}
}

func TestDuration(t *testing.T) {
	n := New()

	cases := []struct {
		text string
		want float64
		ok   bool
	}{
		{"sintomas há 3 dias", 3, true},
		{"faz 2 semanas que começou", 14, true},
		{"há 1 mês", 30, true},
		{"começou ontem", 0, false},
		{"", 0, false},
	}
	for _, c := range cases {
		got, ok := n.Duration(c.text)
		if ok != c.ok || got != c.want {
			t.Errorf("Duration(%q) = %v,%v want %v,%v", c.text, got, ok, c.want, c.ok)
		}
	}
}

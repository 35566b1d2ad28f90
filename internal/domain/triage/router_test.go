package triage

import (
	"reflect"
	"testing"
)

func TestSelectAreasGated(t *testing.T) {
	reg := loadRules(t)

	got := SelectAreas([]string{"rinorreia", "obstrucao_nasal"}, ModeGated, reg)
	if !reflect.DeepEqual(got, []string{"nariz"}) {
		t.Errorf("areas = %v, want [nariz]", got)
	}

	got = SelectAreas([]string{"otalgia", "dor_garganta"}, ModeGated, reg)
	if !reflect.DeepEqual(got, []string{"ouvido", "garganta"}) {
		t.Errorf("areas = %v, want [ouvido garganta]", got)
	}
}

func TestSelectAreasGatedFallsBackToAll(t *testing.T) {
	reg := loadRules(t)

	got := SelectAreas([]string{"sintoma_inexistente"}, ModeGated, reg)
	if !reflect.DeepEqual(got, reg.Areas) {
		t.Errorf("unmatched evidence should select every area, got %v", got)
	}

	got = SelectAreas(nil, ModeGated, reg)
	if !reflect.DeepEqual(got, reg.Areas) {
		t.Errorf("no evidence should select every area, got %v", got)
	}
}

func TestSelectAreasAlways(t *testing.T) {
	reg := loadRules(t)

	got := SelectAreas([]string{"rinorreia"}, ModeAlways, reg)
	if !reflect.DeepEqual(got, reg.Areas) {
		t.Errorf("always mode should select every area, got %v", got)
	}
}

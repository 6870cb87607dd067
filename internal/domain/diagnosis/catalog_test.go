package diagnosis

import (
	"errors"
	"strings"
	"testing"

	"github.com/growthwatch/growthwatch/internal/platform/apperr"
)

const sampleCatalog = `
symptoms:
  - code: G01
    label: Tinggi badan kurang dari normal
  - code: G02
    label: Berat badan kurang
  - code: G03
    label: Nafsu makan rendah
  - code: G05
    label: Perkembangan motorik lambat
conditions:
  - code: K01
    label: Stunting Sedang
    description: Gangguan pertumbuhan.
    recommendation: Perbaiki pola makan.
  - code: K02
    label: Normal
rule_groups:
  - condition: K01
    group: R01
    symptoms: [G01, G02]
    note: Gejala utama stunting
  - condition: K02
    group: R02
    symptoms: [G02, G03, G05]
patients:
  - id: 3d6f0a52-7c1e-4b8a-9f2d-5e4c3b2a1f00
    full_name: Andi Susanto
    birth_date: "2020-05-15"
    sex: L
    guardian: Budi Susanto
    phone: "08123456789"
`

func TestLoadCatalog(t *testing.T) {
	cat, err := LoadCatalog(strings.NewReader(sampleCatalog))
	if err != nil {
		t.Fatalf("LoadCatalog: %v", err)
	}
	if len(cat.Symptoms) != 4 || len(cat.Conditions) != 2 || len(cat.RuleGroups) != 2 {
		t.Fatalf("unexpected catalog sizes: %d/%d/%d", len(cat.Symptoms), len(cat.Conditions), len(cat.RuleGroups))
	}
	if len(cat.Patients) != 1 || cat.Patients[0].FullName != "Andi Susanto" {
		t.Errorf("unexpected patients %+v", cat.Patients)
	}
	if cat.Conditions[0].Recommendation != "Perbaiki pola makan." {
		t.Errorf("unexpected recommendation %q", cat.Conditions[0].Recommendation)
	}
	in := cat.RuleGroups[0].Input()
	if in.ConditionCode != "K01" || in.GroupCode != "R01" || in.Note == nil || *in.Note != "Gejala utama stunting" {
		t.Errorf("unexpected rule group input %+v", in)
	}
	if cat.RuleGroups[1].Input().Note != nil {
		t.Error("expected empty note to map to nil")
	}
}

func TestLoadCatalog_Invalid(t *testing.T) {
	tests := []struct {
		name string
		doc  string
	}{
		{"unknown field", "symptoms: []\nextra: 1\n"},
		{"duplicate symptom", "symptoms:\n  - {code: G01, label: a}\n  - {code: G01, label: b}\n"},
		{"missing label", "conditions:\n  - {code: K01}\n"},
		{"unknown condition", "symptoms:\n  - {code: G01, label: a}\nrule_groups:\n  - {condition: K09, group: R01, symptoms: [G01]}\n"},
		{"unknown symptom", "conditions:\n  - {code: K01, label: a}\nrule_groups:\n  - {condition: K01, group: R01, symptoms: [G01]}\n"},
		{"bad patient", "patients:\n  - {id: andi, full_name: Andi, birth_date: \"2020-05-15\", sex: L}\n"},
		{"empty group", "conditions:\n  - {code: K01, label: a}\nrule_groups:\n  - {condition: K01, group: R01, symptoms: []}\n"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if _, err := LoadCatalog(strings.NewReader(tt.doc)); err == nil {
				t.Error("expected error")
			}
		})
	}
}

func TestCatalog_ValidateWrapsValidation(t *testing.T) {
	cat := &Catalog{Symptoms: []Symptom{{Code: "", Label: "x"}}}
	if err := cat.Validate(); !errors.Is(err, apperr.ErrValidation) {
		t.Errorf("expected validation error, got %v", err)
	}
}

func TestLoadCatalogFile_Missing(t *testing.T) {
	if _, err := LoadCatalogFile("does-not-exist.yaml"); err == nil {
		t.Error("expected error for missing file")
	}
}

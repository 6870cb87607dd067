package diagnosis

import (
	"fmt"
	"io"
	"os"
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/growthwatch/growthwatch/internal/domain/patient"
	"github.com/growthwatch/growthwatch/internal/platform/apperr"
)

// Catalog is the seed file format for the knowledge base. Patients are
// optional sample records for local setups.
type Catalog struct {
	Symptoms   []Symptom           `yaml:"symptoms"`
	Conditions []Condition         `yaml:"conditions"`
	RuleGroups []CatalogGroup      `yaml:"rule_groups"`
	Patients   []patient.SeedEntry `yaml:"patients,omitempty"`
}

type CatalogGroup struct {
	Condition string   `yaml:"condition"`
	Group     string   `yaml:"group"`
	Symptoms  []string `yaml:"symptoms"`
	Note      string   `yaml:"note,omitempty"`
}

func (g CatalogGroup) Input() RuleGroupInput {
	in := RuleGroupInput{ConditionCode: g.Condition, GroupCode: g.Group, SymptomCodes: g.Symptoms}
	if g.Note != "" {
		note := g.Note
		in.Note = &note
	}
	return in
}

// LoadCatalogFile reads and validates a YAML catalog from disk.
func LoadCatalogFile(path string) (*Catalog, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open catalog: %w", err)
	}
	defer f.Close()
	return LoadCatalog(f)
}

func LoadCatalog(r io.Reader) (*Catalog, error) {
	dec := yaml.NewDecoder(r)
	dec.KnownFields(true)
	var cat Catalog
	if err := dec.Decode(&cat); err != nil {
		return nil, fmt.Errorf("decode catalog: %w", err)
	}
	if err := cat.Validate(); err != nil {
		return nil, err
	}
	return &cat, nil
}

// Validate checks codes are unique and that every rule group references
// symptoms and conditions declared in the same file.
func (c *Catalog) Validate() error {
	symptoms := make(map[string]bool, len(c.Symptoms))
	for i := range c.Symptoms {
		s := &c.Symptoms[i]
		s.Code = strings.TrimSpace(s.Code)
		if s.Code == "" || s.Label == "" {
			return fmt.Errorf("symptom #%d: code and label are required: %w", i+1, apperr.ErrValidation)
		}
		if symptoms[s.Code] {
			return fmt.Errorf("duplicate symptom %s: %w", s.Code, apperr.ErrValidation)
		}
		symptoms[s.Code] = true
	}

	conditions := make(map[string]bool, len(c.Conditions))
	for i := range c.Conditions {
		cond := &c.Conditions[i]
		cond.Code = strings.TrimSpace(cond.Code)
		if cond.Code == "" || cond.Label == "" {
			return fmt.Errorf("condition #%d: code and label are required: %w", i+1, apperr.ErrValidation)
		}
		if conditions[cond.Code] {
			return fmt.Errorf("duplicate condition %s: %w", cond.Code, apperr.ErrValidation)
		}
		conditions[cond.Code] = true
	}

	for _, g := range c.RuleGroups {
		if !conditions[g.Condition] {
			return fmt.Errorf("rule group %s: unknown condition %q: %w", g.Group, g.Condition, apperr.ErrValidation)
		}
		if g.Group == "" || len(g.Symptoms) == 0 {
			return fmt.Errorf("rule group for %s: group code and symptoms are required: %w", g.Condition, apperr.ErrValidation)
		}
		for _, s := range g.Symptoms {
			if !symptoms[s] {
				return fmt.Errorf("rule group %s: unknown symptom %q: %w", g.Group, s, apperr.ErrValidation)
			}
		}
	}

	for _, e := range c.Patients {
		if _, err := e.Patient(); err != nil {
			return err
		}
	}
	return nil
}

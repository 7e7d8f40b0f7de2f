package fetcher

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"

	"ratecatalog/internal/catalog"
)

type targetsFile struct {
	Targets []Target `yaml:"targets"`
}

// LoadTargets reads the sweep target list from a YAML file.
func LoadTargets(path string) ([]Target, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read targets: %w", err)
	}
	return ParseTargets(raw)
}

// ParseTargets decodes and checks a YAML target list.
func ParseTargets(raw []byte) ([]Target, error) {
	var file targetsFile
	if err := yaml.Unmarshal(raw, &file); err != nil {
		return nil, fmt.Errorf("decode targets: %w", err)
	}

	for i := range file.Targets {
		t := &file.Targets[i]
		t.Institution = catalog.CleanInstitutionName(t.Institution)
		if t.Institution == "" {
			return nil, fmt.Errorf("target %d: institution is required", i)
		}
		at, err := catalog.ParseAccountType(string(t.AccountType))
		if err != nil {
			return nil, fmt.Errorf("target %d: %w", i, err)
		}
		t.AccountType = at
		if t.URL != "" && t.RateSelector == "" {
			return nil, fmt.Errorf("target %d (%s): rate_selector is required with url", i, t)
		}
		if at == catalog.AccountCD && t.TermMonths <= 0 {
			return nil, fmt.Errorf("target %d (%s): term_months is required for cd", i, t)
		}
	}
	return file.Targets, nil
}

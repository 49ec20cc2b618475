package rules

import (
	"encoding/json"
	"fmt"
	"os"

	"netsentry/internal/model"
)

// LoadSignatures loads signature rules from a JSON document of the form
// {"rules": [...]}. Unknown fields are ignored. The caller is expected to
// log the error and continue with an empty set when loading fails.
func LoadSignatures(filename string) ([]model.SignatureRule, error) {
	data, err := os.ReadFile(filename)
	if err != nil {
		return nil, fmt.Errorf("failed to read rules file: %w", err)
	}

	var set model.SignatureRuleSet
	if err := json.Unmarshal(data, &set); err != nil {
		return nil, fmt.Errorf("failed to parse rules file: %w", err)
	}

	return set.Rules, nil
}

// SaveSignatures serializes rules back to the on-disk document shape.
func SaveSignatures(filename string, ruleSet []model.SignatureRule) error {
	data, err := json.MarshalIndent(model.SignatureRuleSet{Rules: ruleSet}, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to marshal rules: %w", err)
	}
	if err := os.WriteFile(filename, data, 0644); err != nil {
		return fmt.Errorf("failed to write rules file: %w", err)
	}
	return nil
}

package persistence

import (
	"context"
	_ "embed"
	"fmt"
	"log/slog"
	"os"

	"gopkg.in/yaml.v3"

	"github.com/piimap/piimap/domain/recognition"
	"github.com/piimap/piimap/domain/repository"
	"github.com/piimap/piimap/domain/rule"
)

//go:embed default_rules.yaml
var defaultRulesYAML []byte

type seedRule struct {
	Name            string   `yaml:"name"`
	Kind            string   `yaml:"kind"`
	EntityType      string   `yaml:"entity_type"`
	Pattern         string   `yaml:"pattern"`
	Values          []string `yaml:"values"`
	Score           float64  `yaml:"score"`
	ContextKeywords []string `yaml:"context_keywords"`
	Enabled         *bool    `yaml:"enabled"`
}

type seedFile struct {
	Rules []seedRule `yaml:"rules"`
}

// ParseSeedRules parses a YAML rule set document into domain rules.
func ParseSeedRules(data []byte) ([]rule.Rule, error) {
	var file seedFile
	if err := yaml.Unmarshal(data, &file); err != nil {
		return nil, fmt.Errorf("failed to parse rule set: %w", err)
	}
	rules := make([]rule.Rule, 0, len(file.Rules))
	for i, sr := range file.Rules {
		if sr.Name == "" {
			return nil, fmt.Errorf("rule %d: name is required", i)
		}
		kind, err := rule.ParseKind(sr.Kind)
		if err != nil {
			return nil, fmt.Errorf("rule %q: %w", sr.Name, err)
		}
		r := rule.NewRule(sr.Name, kind).
			WithEntityType(recognition.EntityType(sr.EntityType)).
			WithPattern(sr.Pattern).
			WithValues(sr.Values).
			WithScore(sr.Score).
			WithContextKeywords(sr.ContextKeywords)
		if sr.Enabled != nil {
			r = r.WithEnabled(*sr.Enabled)
		}
		rules = append(rules, r)
	}
	return rules, nil
}

// DefaultSeedRules returns the built-in rule set.
func DefaultSeedRules() ([]rule.Rule, error) {
	return ParseSeedRules(defaultRulesYAML)
}

// LoadSeedRules reads a rule set from path, falling back to the built-in
// set when path is empty.
func LoadSeedRules(path string) ([]rule.Rule, error) {
	if path == "" {
		return DefaultSeedRules()
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read rule set %q: %w", path, err)
	}
	return ParseSeedRules(data)
}

// SeedRules inserts the given rules into the store, skipping any rule whose
// name already exists so operator edits survive restarts. It returns the
// number of rules inserted.
func SeedRules(ctx context.Context, store rule.Store, rules []rule.Rule, logger *slog.Logger) (int, error) {
	inserted := 0
	for _, r := range rules {
		exists, err := store.Exists(ctx, repository.WithName(r.Name()))
		if err != nil {
			return inserted, fmt.Errorf("failed to check rule %q: %w", r.Name(), err)
		}
		if exists {
			continue
		}
		if _, err := store.Save(ctx, r); err != nil {
			return inserted, fmt.Errorf("failed to seed rule %q: %w", r.Name(), err)
		}
		inserted++
	}
	if inserted > 0 {
		logger.InfoContext(ctx, "seeded default rules", "inserted", inserted)
	}
	return inserted, nil
}

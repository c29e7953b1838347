// Package rule provides the recognition rule domain: operator-managed rows
// that configure pattern recognizers, deny/exclude lists, sensitivity
// mappings, heuristic word lists, and scan settings.
package rule

import (
	"fmt"
	"time"

	"github.com/piimap/piimap/domain/recognition"
)

// Kind discriminates what a rule configures.
type Kind string

// Kind values.
const (
	// KindPattern defines a regex recognizer for one entity type.
	KindPattern Kind = "pattern"

	// KindDeny lists exact values that must never be reported.
	KindDeny Kind = "deny"

	// KindExclude disables an entity type entirely.
	KindExclude Kind = "exclude"

	// KindSensitivityMap assigns a sensitivity tier to an entity type.
	KindSensitivityMap Kind = "sensitivity-map"

	// KindPersonFilter carries a named word list used by the person-name
	// and short-numeric heuristics. See the List* name constants.
	KindPersonFilter Kind = "person-filter"

	// KindScanConfig carries a named scan setting (threshold, keyword
	// lists). See the Config* name constants.
	KindScanConfig Kind = "scan-config"

	// KindCategory maps a document category to its trigger keywords.
	KindCategory Kind = "category"
)

// Person-filter list names.
const (
	ListFalsePositivePrefixes = "false_positive_prefixes"
	ListNegativeContext       = "negative_context"
	ListPositiveContext       = "positive_context"
	ListInvalidParticles      = "invalid_particles"
	ListExcludeWords          = "exclude_words"
)

// Scan-config setting names.
const (
	ConfigScoreThreshold = "scan_score_threshold"
	ConfigHighRiskFields = "high_risk_fields"
	ConfigShortIDMinLen  = "short_id_min_length"
)

// ParseKind parses a rule kind string.
func ParseKind(s string) (Kind, error) {
	switch Kind(s) {
	case KindPattern, KindDeny, KindExclude, KindSensitivityMap,
		KindPersonFilter, KindScanConfig, KindCategory:
		return Kind(s), nil
	}
	return "", fmt.Errorf("unknown rule kind %q", s)
}

// Rule is one persisted recognition rule. Rules are immutable value
// objects; mutation happens by saving a modified copy.
type Rule struct {
	id              int64
	name            string
	kind            Kind
	entityType      recognition.EntityType
	pattern         string
	values          []string
	score           float64
	contextKeywords []string
	enabled         bool
	createdAt       time.Time
	updatedAt       time.Time
}

// NewRule creates a Rule with the given name and kind.
func NewRule(name string, kind Kind) Rule {
	return Rule{
		name:    name,
		kind:    kind,
		enabled: true,
	}
}

// ReconstructRule creates a Rule with all fields (used by the store).
func ReconstructRule(
	id int64,
	name string,
	kind Kind,
	entityType recognition.EntityType,
	pattern string,
	values []string,
	score float64,
	contextKeywords []string,
	enabled bool,
	createdAt, updatedAt time.Time,
) Rule {
	return Rule{
		id:              id,
		name:            name,
		kind:            kind,
		entityType:      entityType,
		pattern:         pattern,
		values:          copyStrings(values),
		score:           score,
		contextKeywords: copyStrings(contextKeywords),
		enabled:         enabled,
		createdAt:       createdAt,
		updatedAt:       updatedAt,
	}
}

// ID returns the rule ID.
func (r Rule) ID() int64 { return r.id }

// Name returns the rule name (recognizer name, list name, or setting name).
func (r Rule) Name() string { return r.name }

// Kind returns the rule kind.
func (r Rule) Kind() Kind { return r.kind }

// EntityType returns the entity type the rule applies to.
func (r Rule) EntityType() recognition.EntityType { return r.entityType }

// Pattern returns the regex pattern or scalar value payload.
func (r Rule) Pattern() string { return r.pattern }

// Values returns the word/value list payload.
func (r Rule) Values() []string { return copyStrings(r.values) }

// Score returns the base confidence score for pattern matches.
func (r Rule) Score() float64 { return r.score }

// ContextKeywords returns the proximity keywords required near a match.
func (r Rule) ContextKeywords() []string { return copyStrings(r.contextKeywords) }

// Enabled returns whether the rule is active.
func (r Rule) Enabled() bool { return r.enabled }

// CreatedAt returns when the rule was created.
func (r Rule) CreatedAt() time.Time { return r.createdAt }

// UpdatedAt returns when the rule was last updated.
func (r Rule) UpdatedAt() time.Time { return r.updatedAt }

// WithID returns a copy of the rule with the given ID.
func (r Rule) WithID(id int64) Rule {
	r.id = id
	return r
}

// WithEntityType returns a copy of the rule with the given entity type.
func (r Rule) WithEntityType(entityType recognition.EntityType) Rule {
	r.entityType = entityType
	return r
}

// WithPattern returns a copy of the rule with the given pattern.
func (r Rule) WithPattern(pattern string) Rule {
	r.pattern = pattern
	return r
}

// WithValues returns a copy of the rule with the given value list.
func (r Rule) WithValues(values []string) Rule {
	r.values = copyStrings(values)
	return r
}

// WithScore returns a copy of the rule with the given score.
func (r Rule) WithScore(score float64) Rule {
	r.score = score
	return r
}

// WithContextKeywords returns a copy of the rule with the given keywords.
func (r Rule) WithContextKeywords(keywords []string) Rule {
	r.contextKeywords = copyStrings(keywords)
	return r
}

// WithEnabled returns a copy of the rule with the given enabled state.
func (r Rule) WithEnabled(enabled bool) Rule {
	r.enabled = enabled
	return r
}

// WithTimestamps returns a copy of the rule with the given timestamps.
func (r Rule) WithTimestamps(createdAt, updatedAt time.Time) Rule {
	r.createdAt = createdAt
	r.updatedAt = updatedAt
	return r
}

func copyStrings(values []string) []string {
	if len(values) == 0 {
		return nil
	}
	result := make([]string, len(values))
	copy(result, values)
	return result
}

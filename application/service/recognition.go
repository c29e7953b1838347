package service

import (
	"context"
	"fmt"
	"log/slog"
	"regexp"
	"sort"
	"strings"
	"sync"
	"sync/atomic"
	"unicode"

	"github.com/piimap/piimap/domain/recognition"
	"github.com/piimap/piimap/domain/rule"
)

const (
	// DefaultScoreThreshold is the minimum confidence a finding needs to
	// survive filtering when no scan-config rule overrides it.
	DefaultScoreThreshold = 0.4

	// DefaultShortIDMinLength applies to short numeric identifier types
	// when no scan-config rule overrides it.
	DefaultShortIDMinLength = 6

	contextWindow       = 50
	personContextWindow = 35
	maxPersonTokens     = 5
)

// dateNoiseSubstrings marks date candidates that are really filename or
// version fragments.
var dateNoiseSubstrings = []string{
	".pdf", ".doc", ".xls", ".csv", ".jpg", ".png", ".txt",
	"_v", "ver.", "rev.",
}

var (
	pureNumericRe = regexp.MustCompile(`^\d+$`)
	bareDecimalRe = regexp.MustCompile(`^-?\d{1,3}\.\d+$`)
)

// PersonRecognizer detects person names structurally. Implementations wrap
// a token-classification model and may be unavailable at runtime.
type PersonRecognizer interface {
	Available() bool
	Recognize(ctx context.Context, text string) ([]recognition.Finding, error)
}

type compiledPattern struct {
	rule rule.Rule
	re   *regexp.Regexp
}

type personFilter struct {
	falsePositivePrefixes []string
	negativeContext       []string
	positiveContext       []string
	invalidParticles      map[string]struct{}
	excludeWords          map[string]struct{}
}

// ruleSnapshot is one compiled, immutable view of the active rule set.
// Detection only ever reads a snapshot; reloads build a new one aside and
// swap it in whole.
type ruleSnapshot struct {
	patterns       []compiledPattern
	loadedTypes    map[recognition.EntityType]struct{}
	denyList       map[string]struct{}
	excluded       map[recognition.EntityType]struct{}
	sensitivity    map[recognition.EntityType]recognition.Tier
	categories     map[string][]string
	filter         personFilter
	scoreThreshold float64
	shortIDMinLen  int
	highRiskFields []string
}

func (s *ruleSnapshot) typeLoaded(t recognition.EntityType) bool {
	_, ok := s.loadedTypes[t]
	return ok
}

// patternFor returns the first enabled pattern for the entity type, used to
// re-validate candidate formats.
func (s *ruleSnapshot) patternFor(t recognition.EntityType) (*regexp.Regexp, bool) {
	for _, p := range s.patterns {
		if p.rule.EntityType() == t {
			return p.re, true
		}
	}
	return nil, false
}

// Recognition detects PII entities in text spans using the active rule
// snapshot.
type Recognition struct {
	store    rule.Store
	person   PersonRecognizer
	logger   *slog.Logger
	snapshot atomic.Pointer[ruleSnapshot]

	degradedOnce sync.Once
}

// NewRecognition creates the recognition engine. The person recognizer is
// optional; pass nil to run pattern-only.
func NewRecognition(store rule.Store, person PersonRecognizer, logger *slog.Logger) *Recognition {
	return &Recognition{
		store:  store,
		person: person,
		logger: logger,
	}
}

// LoadRules rebuilds the rule snapshot from the store and swaps it in
// atomically. On store failure the previous snapshot stays in effect and
// the error is returned. Invalid rules are skipped with a warning, never
// fatal.
func (s *Recognition) LoadRules(ctx context.Context) error {
	rules, err := s.store.ListActive(ctx)
	if err != nil {
		return fmt.Errorf("load rules: %w", err)
	}

	snap := s.compile(rules)
	s.snapshot.Store(snap)

	s.logger.Info("rule snapshot loaded",
		slog.Int("patterns", len(snap.patterns)),
		slog.Int("entity_types", len(snap.loadedTypes)),
		slog.Int("deny_entries", len(snap.denyList)),
	)
	return nil
}

func (s *Recognition) compile(rules []rule.Rule) *ruleSnapshot {
	snap := &ruleSnapshot{
		loadedTypes:    make(map[recognition.EntityType]struct{}),
		denyList:       make(map[string]struct{}),
		excluded:       make(map[recognition.EntityType]struct{}),
		sensitivity:    make(map[recognition.EntityType]recognition.Tier),
		categories:     make(map[string][]string),
		scoreThreshold: DefaultScoreThreshold,
		shortIDMinLen:  DefaultShortIDMinLength,
		filter: personFilter{
			invalidParticles: make(map[string]struct{}),
			excludeWords:     make(map[string]struct{}),
		},
	}

	for _, r := range rules {
		switch r.Kind() {
		case rule.KindPattern:
			re, err := regexp.Compile(r.Pattern())
			if err != nil {
				cfgErr := &ConfigurationError{Subject: r.Name(), Err: err}
				s.logger.Warn("skipping invalid pattern rule", slog.String("error", cfgErr.Error()))
				continue
			}
			snap.patterns = append(snap.patterns, compiledPattern{rule: r, re: re})
			snap.loadedTypes[r.EntityType()] = struct{}{}
		case rule.KindDeny:
			for _, v := range r.Values() {
				snap.denyList[strings.ToLower(v)] = struct{}{}
			}
		case rule.KindExclude:
			snap.excluded[r.EntityType()] = struct{}{}
		case rule.KindSensitivityMap:
			tier := recognition.Tier(r.Pattern())
			if tier.Rank() == 0 && tier != recognition.TierGeneralOther {
				s.logger.Warn("skipping sensitivity rule with unknown tier",
					slog.String("rule", r.Name()), slog.String("tier", r.Pattern()))
				continue
			}
			snap.sensitivity[r.EntityType()] = tier
		case rule.KindPersonFilter:
			s.compilePersonFilter(snap, r)
		case rule.KindScanConfig:
			s.compileScanConfig(snap, r)
		case rule.KindCategory:
			snap.categories[r.Name()] = append(snap.categories[r.Name()], lowerAll(r.Values())...)
		default:
			s.logger.Warn("skipping rule with unknown kind",
				slog.String("rule", r.Name()), slog.String("kind", string(r.Kind())))
		}
	}

	return snap
}

func (s *Recognition) compilePersonFilter(snap *ruleSnapshot, r rule.Rule) {
	values := lowerAll(r.Values())
	switch r.Name() {
	case rule.ListFalsePositivePrefixes:
		snap.filter.falsePositivePrefixes = append(snap.filter.falsePositivePrefixes, values...)
	case rule.ListNegativeContext:
		snap.filter.negativeContext = append(snap.filter.negativeContext, values...)
	case rule.ListPositiveContext:
		snap.filter.positiveContext = append(snap.filter.positiveContext, values...)
	case rule.ListInvalidParticles:
		for _, v := range values {
			snap.filter.invalidParticles[v] = struct{}{}
		}
	case rule.ListExcludeWords:
		for _, v := range values {
			snap.filter.excludeWords[v] = struct{}{}
		}
	default:
		s.logger.Warn("skipping person-filter rule with unknown list",
			slog.String("rule", r.Name()))
	}
}

func (s *Recognition) compileScanConfig(snap *ruleSnapshot, r rule.Rule) {
	switch r.Name() {
	case rule.ConfigScoreThreshold:
		threshold := r.Score()
		if threshold < 0 {
			threshold = 0
		}
		if threshold > 1 {
			threshold = 1
		}
		snap.scoreThreshold = threshold
	case rule.ConfigShortIDMinLen:
		if n := int(r.Score()); n > 0 {
			snap.shortIDMinLen = n
		}
	case rule.ConfigHighRiskFields:
		snap.highRiskFields = append(snap.highRiskFields, lowerAll(r.Values())...)
	default:
		s.logger.Warn("skipping scan-config rule with unknown setting",
			slog.String("rule", r.Name()))
	}
}

// current returns the active snapshot, or an empty one before the first
// load.
func (s *Recognition) current() *ruleSnapshot {
	if snap := s.snapshot.Load(); snap != nil {
		return snap
	}
	return s.compile(nil)
}

type candidate struct {
	finding  recognition.Finding
	priority int
	keywords []string
}

// Detect finds PII entities in the text. Context tokens are names from the
// surrounding structure (column, file) that can satisfy a rule's proximity
// keywords even when the text itself contains none. Detection is restricted
// to the entity types declared by loaded rules; with no rules loaded it
// returns nothing.
func (s *Recognition) Detect(ctx context.Context, text string, contextTokens []string) ([]recognition.Finding, error) {
	snap := s.current()
	if len(snap.loadedTypes) == 0 || text == "" {
		return nil, nil
	}

	candidates := s.patternCandidates(snap, text)
	candidates = append(candidates, s.personCandidates(ctx, snap, text)...)

	tokens := lowerAll(contextTokens)
	kept := candidates[:0]
	for _, c := range candidates {
		if s.keep(snap, text, tokens, c) {
			kept = append(kept, c)
		}
	}

	sort.SliceStable(kept, func(i, j int) bool {
		a, b := kept[i], kept[j]
		if a.finding.Start() != b.finding.Start() {
			return a.finding.Start() < b.finding.Start()
		}
		if a.priority != b.priority {
			return a.priority > b.priority
		}
		if a.finding.Score() != b.finding.Score() {
			return a.finding.Score() > b.finding.Score()
		}
		return a.finding.EntityType() < b.finding.EntityType()
	})

	var findings []recognition.Finding
	prevEnd := -1
	for _, c := range kept {
		if c.finding.Start() < prevEnd {
			continue
		}
		findings = append(findings, c.finding)
		prevEnd = c.finding.End()
	}
	return findings, nil
}

func (s *Recognition) patternCandidates(snap *ruleSnapshot, text string) []candidate {
	var candidates []candidate
	for _, p := range snap.patterns {
		for _, loc := range p.re.FindAllStringIndex(text, -1) {
			f, err := recognition.NewFinding(
				p.rule.EntityType(), loc[0], loc[1],
				text[loc[0]:loc[1]], p.rule.Score(), p.rule.Name())
			if err != nil {
				continue
			}
			candidates = append(candidates, candidate{
				finding:  f,
				priority: 1,
				keywords: p.rule.ContextKeywords(),
			})
		}
	}
	return candidates
}

func (s *Recognition) personCandidates(ctx context.Context, snap *ruleSnapshot, text string) []candidate {
	if s.person == nil || !snap.typeLoaded(recognition.EntityPerson) {
		return nil
	}
	if !s.person.Available() {
		s.degradedOnce.Do(func() {
			s.logger.Warn("person model unavailable, detection continues pattern-only",
				slog.String("error", ErrRecognitionDegraded.Error()))
		})
		return nil
	}

	findings, err := s.person.Recognize(ctx, text)
	if err != nil {
		s.logger.Warn("person recognizer failed, detection continues pattern-only",
			slog.String("error", err.Error()))
		return nil
	}

	candidates := make([]candidate, 0, len(findings))
	for _, f := range findings {
		candidates = append(candidates, candidate{finding: f, priority: 0})
	}
	return candidates
}

// Degraded reports whether the person recognizer is configured but cannot
// serve.
func (s *Recognition) Degraded() bool {
	return s.person != nil && !s.person.Available()
}

func (s *Recognition) keep(snap *ruleSnapshot, text string, contextTokens []string, c candidate) bool {
	f := c.finding
	lowerMatch := strings.ToLower(f.Text())

	if _, denied := snap.denyList[lowerMatch]; denied {
		return false
	}
	if _, excluded := snap.excluded[f.EntityType()]; excluded {
		return false
	}
	if f.Score() < snap.scoreThreshold {
		return false
	}
	if len(c.keywords) > 0 && !contextSatisfied(text, f, c.keywords, contextTokens) {
		return false
	}

	switch {
	case f.EntityType().IsPersonLike():
		return s.keepPerson(snap, text, f)
	case f.EntityType().IsDateLike():
		return keepDate(lowerMatch)
	case f.EntityType().IsPhoneLike():
		return keepPhone(f.Text())
	case f.EntityType().IsShortNumeric():
		return keepShortNumeric(snap, lowerMatch)
	}
	return true
}

// contextSatisfied checks the rule's proximity keywords against a window
// around the match and against the caller-supplied context tokens.
func contextSatisfied(text string, f recognition.Finding, keywords, contextTokens []string) bool {
	start := f.Start() - contextWindow
	if start < 0 {
		start = 0
	}
	end := f.End() + contextWindow
	if end > len(text) {
		end = len(text)
	}
	window := strings.ToLower(text[start:end])

	for _, kw := range keywords {
		kw = strings.ToLower(kw)
		if strings.Contains(window, kw) {
			return true
		}
		for _, token := range contextTokens {
			if strings.Contains(token, kw) {
				return true
			}
		}
	}
	return false
}

func (s *Recognition) keepPerson(snap *ruleSnapshot, text string, f recognition.Finding) bool {
	match := f.Text()
	if match == "" {
		return false
	}

	first := []rune(match)[0]
	if unicode.IsLower(first) {
		return false
	}

	lowerMatch := strings.ToLower(match)
	words := strings.Fields(lowerMatch)
	for _, w := range words {
		if _, invalid := snap.filter.invalidParticles[w]; invalid {
			return false
		}
	}
	for _, prefix := range snap.filter.falsePositivePrefixes {
		if strings.HasPrefix(lowerMatch, prefix) {
			return false
		}
	}

	start := f.Start() - personContextWindow
	if start < 0 {
		start = 0
	}
	preceding := strings.ToLower(text[start:f.Start()])
	for _, neg := range snap.filter.negativeContext {
		if strings.Contains(preceding, neg) {
			return false
		}
	}
	for _, pos := range snap.filter.positiveContext {
		if strings.Contains(preceding, pos) {
			return true
		}
	}

	if strings.ContainsAny(match, "0123456789") {
		return false
	}
	if len(match) < 3 {
		return false
	}
	return len(strings.Fields(match)) <= maxPersonTokens
}

func keepDate(lowerMatch string) bool {
	if pureNumericRe.MatchString(lowerMatch) {
		return false
	}
	if bareDecimalRe.MatchString(lowerMatch) {
		return false
	}
	for _, noise := range dateNoiseSubstrings {
		if strings.Contains(lowerMatch, noise) {
			return false
		}
	}
	return true
}

func keepPhone(match string) bool {
	if bareDecimalRe.MatchString(match) {
		return false
	}
	digits := 0
	for _, r := range match {
		if unicode.IsDigit(r) {
			digits++
		}
	}
	return digits >= 7
}

func keepShortNumeric(snap *ruleSnapshot, lowerMatch string) bool {
	if len(lowerMatch) < snap.shortIDMinLen {
		return false
	}
	_, excluded := snap.filter.excludeWords[lowerMatch]
	return !excluded
}

// Mask redacts a detected value for presentation. The result preserves the
// value's shape without exposing it and never feeds back into detection.
func (s *Recognition) Mask(text string, entityType recognition.EntityType) string {
	if text == "" {
		return ""
	}

	if entityType == recognition.EntityEmail {
		if at := strings.IndexByte(text, '@'); at > 0 {
			local := text[:at]
			domain := text[at:]
			if len(local) == 1 {
				return "***" + domain
			}
			return local[:1] + "***" + local[len(local)-1:] + domain
		}
	}

	if len(text) > 4 {
		return text[:2] + strings.Repeat("*", len(text)-4) + text[len(text)-2:]
	}
	return strings.Repeat("*", len(text))
}

// Sensitivity returns the configured tier for the entity type, defaulting
// to the lowest tier.
func (s *Recognition) Sensitivity(entityType recognition.EntityType) recognition.Tier {
	if tier, ok := s.current().sensitivity[entityType]; ok {
		return tier
	}
	return recognition.DefaultTier
}

// HighRiskFields returns the configured field-name fragments that mark a
// container as risky during profiling.
func (s *Recognition) HighRiskFields() []string {
	fields := s.current().highRiskFields
	result := make([]string, len(fields))
	copy(result, fields)
	return result
}

// Categories returns the configured document category keyword map.
func (s *Recognition) Categories() map[string][]string {
	categories := s.current().categories
	result := make(map[string][]string, len(categories))
	for name, keywords := range categories {
		kw := make([]string, len(keywords))
		copy(kw, keywords)
		result[name] = kw
	}
	return result
}

// FormatPattern returns the compiled pattern for the entity type when one
// is loaded, for re-validating candidate formats.
func (s *Recognition) FormatPattern(entityType recognition.EntityType) (*regexp.Regexp, bool) {
	return s.current().patternFor(entityType)
}

func lowerAll(values []string) []string {
	result := make([]string, 0, len(values))
	for _, v := range values {
		result = append(result, strings.ToLower(v))
	}
	return result
}

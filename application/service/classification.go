package service

import (
	"regexp"
	"sort"
	"strings"
	"sync"

	"github.com/piimap/piimap/domain/recognition"
)

// headerLabels are common column headers and form labels that pattern
// recognizers keep matching in exported files.
var headerLabels = map[string]struct{}{
	"name": {}, "nama": {}, "full name": {}, "nama lengkap": {},
	"email": {}, "e-mail": {}, "email address": {},
	"phone": {}, "telepon": {}, "no hp": {}, "phone number": {},
	"address": {}, "alamat": {},
	"nik": {}, "npwp": {}, "id": {}, "no": {},
	"date": {}, "tanggal": {}, "date of birth": {},
}

// Classification maps detections to sensitivity tiers and document
// categories. It is pure lookup over the active rule snapshot.
type Classification struct {
	recognition *Recognition

	mu       sync.Mutex
	keywords map[string]*regexp.Regexp
}

// NewClassification creates the classification engine.
func NewClassification(recognitionEngine *Recognition) *Classification {
	return &Classification{
		recognition: recognitionEngine,
		keywords:    make(map[string]*regexp.Regexp),
	}
}

// Sensitivity returns the tier configured for the entity type. Unmapped
// types get the lowest tier.
func (s *Classification) Sensitivity(entityType recognition.EntityType) recognition.Tier {
	return s.recognition.Sensitivity(entityType)
}

// DocumentCategories returns the categories whose keywords occur in the
// text on a word boundary. Zero matches is a valid outcome.
func (s *Classification) DocumentCategories(text string) []string {
	lower := strings.ToLower(text)

	var matched []string
	for category, keywords := range s.recognition.Categories() {
		for _, kw := range keywords {
			if s.keywordRe(kw).MatchString(lower) {
				matched = append(matched, category)
				break
			}
		}
	}
	sort.Strings(matched)
	return matched
}

func (s *Classification) keywordRe(keyword string) *regexp.Regexp {
	s.mu.Lock()
	defer s.mu.Unlock()

	if re, ok := s.keywords[keyword]; ok {
		return re
	}
	re := regexp.MustCompile(`\b` + regexp.QuoteMeta(keyword) + `\b`)
	s.keywords[keyword] = re
	return re
}

// IsFalsePositive reports whether a detected value is a known header or
// label, or fails the entity type's format precondition.
func (s *Classification) IsFalsePositive(text string, entityType recognition.EntityType) bool {
	lower := strings.ToLower(strings.TrimSpace(text))
	if _, known := headerLabels[lower]; known {
		return true
	}

	if re, ok := s.recognition.FormatPattern(entityType); ok {
		return !re.MatchString(text)
	}
	return false
}

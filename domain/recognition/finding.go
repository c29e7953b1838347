package recognition

import "fmt"

// Finding is one detected PII occurrence within a text span. Findings are
// ephemeral: produced per detect call, aggregated by callers, never
// persisted directly.
type Finding struct {
	entityType EntityType
	start      int
	end        int
	text       string
	score      float64
	recognizer string
	location   string
}

// NewFinding creates a Finding. It returns an error when the span is
// inverted or out of bounds for the matched text.
func NewFinding(entityType EntityType, start, end int, text string, score float64, recognizer string) (Finding, error) {
	if start < 0 || end <= start {
		return Finding{}, fmt.Errorf("invalid span [%d, %d) for %s finding", start, end, entityType)
	}
	return Finding{
		entityType: entityType,
		start:      start,
		end:        end,
		text:       text,
		score:      score,
		recognizer: recognizer,
	}, nil
}

// EntityType returns the detected entity type.
func (f Finding) EntityType() EntityType { return f.entityType }

// Start returns the span start offset (inclusive).
func (f Finding) Start() int { return f.start }

// End returns the span end offset (exclusive).
func (f Finding) End() int { return f.end }

// Text returns the matched text.
func (f Finding) Text() string { return f.text }

// Score returns the detection confidence in [0, 1].
func (f Finding) Score() float64 { return f.score }

// Recognizer returns the name of the recognizer that produced the finding.
func (f Finding) Recognizer() string { return f.recognizer }

// Location returns the location metadata attached to the finding, if any.
func (f Finding) Location() string { return f.location }

// WithLocation returns a copy of the finding with location metadata
// attached (e.g. a document page or spreadsheet cell reference).
func (f Finding) WithLocation(location string) Finding {
	f.location = location
	return f
}

// Overlaps reports whether the finding's span overlaps another's.
func (f Finding) Overlaps(other Finding) bool {
	return f.start < other.end && other.start < f.end
}

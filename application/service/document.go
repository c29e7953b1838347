package service

import (
	"context"
	"fmt"
	"log/slog"
	"sort"
	"strings"

	"github.com/piimap/piimap/domain/document"
	"github.com/piimap/piimap/domain/recognition"
	"github.com/piimap/piimap/internal/config"
)

// EntitySummary aggregates the findings of one entity type across an
// ad-hoc document scan.
type EntitySummary struct {
	entityType recognition.EntityType
	totalCount int
	samples    []string
	locations  []string
}

// EntityType returns the summarized entity type.
func (s EntitySummary) EntityType() recognition.EntityType { return s.entityType }

// TotalCount returns how many findings of this type occurred.
func (s EntitySummary) TotalCount() int { return s.totalCount }

// Samples returns the bounded masked sample set.
func (s EntitySummary) Samples() []string {
	result := make([]string, len(s.samples))
	copy(result, s.samples)
	return result
}

// Locations returns the document locations findings occurred at.
func (s EntitySummary) Locations() []string {
	result := make([]string, len(s.locations))
	copy(result, s.locations)
	return result
}

// Aggregator accumulates ad-hoc findings into per-entity summaries.
type Aggregator struct {
	sampleLimit int
	summaries   map[recognition.EntityType]*EntitySummary
}

// NewAggregator creates an empty aggregator.
func NewAggregator(sampleLimit int) *Aggregator {
	return &Aggregator{
		sampleLimit: sampleLimit,
		summaries:   make(map[recognition.EntityType]*EntitySummary),
	}
}

// Add records one finding. The masked value joins the sample set until the
// bound is reached; the location is recorded once per distinct location.
func (a *Aggregator) Add(f recognition.Finding, masked string) {
	summary, ok := a.summaries[f.EntityType()]
	if !ok {
		summary = &EntitySummary{entityType: f.EntityType()}
		a.summaries[f.EntityType()] = summary
	}
	summary.totalCount++
	if len(summary.samples) < a.sampleLimit && !containsString(summary.samples, masked) {
		summary.samples = append(summary.samples, masked)
	}
	if f.Location() != "" && !containsString(summary.locations, f.Location()) {
		summary.locations = append(summary.locations, f.Location())
	}
}

// Summaries returns the accumulated summaries ordered by entity type.
func (a *Aggregator) Summaries() []EntitySummary {
	result := make([]EntitySummary, 0, len(a.summaries))
	for _, summary := range a.summaries {
		result = append(result, *summary)
	}
	sort.Slice(result, func(i, j int) bool {
		return result[i].entityType < result[j].entityType
	})
	return result
}

// DocumentReport is the outcome of one ad-hoc document scan.
type DocumentReport struct {
	filename   string
	categories []string
	entities   []EntitySummary
}

// Filename returns the scanned document's name.
func (r DocumentReport) Filename() string { return r.filename }

// Categories returns the detected document categories.
func (r DocumentReport) Categories() []string {
	result := make([]string, len(r.categories))
	copy(result, r.categories)
	return result
}

// Entities returns the per-entity summaries ordered by entity type.
func (r DocumentReport) Entities() []EntitySummary {
	result := make([]EntitySummary, len(r.entities))
	copy(result, r.entities)
	return result
}

// HasFindings reports whether any PII was found.
func (r DocumentReport) HasFindings() bool { return len(r.entities) > 0 }

// Documents scans uploaded documents ad hoc, without registering a
// datasource. Detection runs once per extracted chunk and the chunk's
// location is re-attached to each finding.
type Documents struct {
	extractors     []document.TextExtractor
	recognition    *Recognition
	classification *Classification
	cfg            config.ScanConfig
	logger         *slog.Logger
}

// NewDocuments creates the ad-hoc document scan service.
func NewDocuments(
	extractors []document.TextExtractor,
	recognitionEngine *Recognition,
	classification *Classification,
	cfg config.ScanConfig,
	logger *slog.Logger,
) *Documents {
	return &Documents{
		extractors:     extractors,
		recognition:    recognitionEngine,
		classification: classification,
		cfg:            cfg,
		logger:         logger,
	}
}

// Scan extracts the document's text and reports PII findings per entity
// type.
func (s *Documents) Scan(ctx context.Context, data []byte, filename string) (DocumentReport, error) {
	extractor, err := s.extractorFor(filename)
	if err != nil {
		return DocumentReport{}, err
	}

	chunks, err := extractor.Extract(ctx, data, filename)
	if err != nil {
		return DocumentReport{}, fmt.Errorf("extract %q: %w", filename, err)
	}

	tokens := nameTokens(filename)
	agg := NewAggregator(s.cfg.SampleValueLimit())
	categorySet := make(map[string]struct{})

	for _, chunk := range chunks {
		if err := ctx.Err(); err != nil {
			return DocumentReport{}, err
		}

		findings, err := s.recognition.Detect(ctx, chunk.Text(), tokens)
		if err != nil {
			return DocumentReport{}, err
		}
		for _, f := range findings {
			if s.classification.IsFalsePositive(f.Text(), f.EntityType()) {
				continue
			}
			f = f.WithLocation(chunk.Location())
			agg.Add(f, s.recognition.Mask(f.Text(), f.EntityType()))
		}

		for _, category := range s.classification.DocumentCategories(chunk.Text()) {
			categorySet[category] = struct{}{}
		}
	}

	categories := make([]string, 0, len(categorySet))
	for category := range categorySet {
		categories = append(categories, category)
	}
	sort.Strings(categories)

	report := DocumentReport{
		filename:   filename,
		categories: categories,
		entities:   agg.Summaries(),
	}

	s.logger.Info("document scanned",
		slog.String("filename", filename),
		slog.Int("chunks", len(chunks)),
		slog.Int("entity_types", len(report.entities)),
	)
	return report, nil
}

func (s *Documents) extractorFor(filename string) (document.TextExtractor, error) {
	for _, extractor := range s.extractors {
		if extractor.Supports(filename) {
			return extractor, nil
		}
	}
	return nil, fmt.Errorf("no text extractor supports %q", strings.ToLower(filename))
}

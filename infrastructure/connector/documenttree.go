package connectorimpl

import (
	"context"
	"fmt"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"
	"time"

	"github.com/piimap/piimap/domain/connector"
	"github.com/piimap/piimap/domain/document"
)

// contentField is the single field name document containers expose; a
// document has no schema, so chunk locations go into the record row ID.
const contentField = "content"

// DocumentTree scans a directory tree of documents. Every supported file
// under the locator is a container of its own, identified by its path
// relative to the root.
type DocumentTree struct {
	extractors []document.TextExtractor
	logger     *slog.Logger
}

// NewDocumentTree creates a document tree connector.
func NewDocumentTree(extractors []document.TextExtractor, logger *slog.Logger) *DocumentTree {
	return &DocumentTree{extractors: extractors, logger: logger}
}

// TargetType returns the document target type.
func (d *DocumentTree) TargetType() connector.TargetType {
	return connector.TargetDocument
}

// TestConnection verifies the locator exists.
func (d *DocumentTree) TestConnection(_ context.Context, locator string) error {
	if _, err := os.Stat(rootPath(locator)); err != nil {
		return fmt.Errorf("stat %s: %w", locator, err)
	}
	return nil
}

// SchemaMetadata lists every supported document under the locator.
func (d *DocumentTree) SchemaMetadata(ctx context.Context, locator string) ([]connector.ContainerMetadata, error) {
	root := rootPath(locator)
	var metadata []connector.ContainerMetadata
	err := filepath.WalkDir(root, func(path string, entry fs.DirEntry, walkErr error) error {
		if walkErr != nil {
			return walkErr
		}
		if err := ctx.Err(); err != nil {
			return err
		}
		if entry.IsDir() || d.extractorFor(entry.Name()) == nil {
			return nil
		}
		rel, err := filepath.Rel(root, path)
		if err != nil {
			return err
		}
		info, err := entry.Info()
		if err != nil {
			return err
		}
		metadata = append(metadata, connector.NewContainerMetadata(
			filepath.ToSlash(rel),
			[]string{contentField},
			info.Size(),
		))
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("walk %s: %w", locator, err)
	}
	return metadata, nil
}

// ScanStream opens a chunk stream over one document.
func (d *DocumentTree) ScanStream(ctx context.Context, locator, container string, batchSize, limit int) (connector.Stream, error) {
	records, err := d.extractDocument(ctx, locator, container)
	if err != nil {
		return nil, err
	}
	if limit > 0 && len(records) > limit {
		records = records[:limit]
	}
	return newSliceStream(records, batchSize), nil
}

// Changes opens a chunk stream over the document if it was modified since
// the given time.
func (d *DocumentTree) Changes(ctx context.Context, locator, container string, since time.Time, batchSize int) (connector.Stream, error) {
	path := filepath.Join(rootPath(locator), filepath.FromSlash(container))
	info, err := os.Stat(path)
	if err != nil {
		return nil, fmt.Errorf("stat document %s: %w", container, err)
	}
	if !info.ModTime().After(since) {
		return emptyStream{}, nil
	}
	records, err := d.extractDocument(ctx, locator, container)
	if err != nil {
		return nil, err
	}
	return newSliceStream(records, batchSize), nil
}

func (d *DocumentTree) extractorFor(filename string) document.TextExtractor {
	for _, extractor := range d.extractors {
		if extractor.Supports(filename) {
			return extractor
		}
	}
	return nil
}

func (d *DocumentTree) extractDocument(ctx context.Context, locator, container string) ([]connector.Record, error) {
	path := filepath.Join(rootPath(locator), filepath.FromSlash(container))
	name := filepath.Base(path)

	extractor := d.extractorFor(name)
	if extractor == nil {
		return nil, fmt.Errorf("no text extractor supports %q", name)
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read document %s: %w", container, err)
	}
	chunks, err := extractor.Extract(ctx, data, name)
	if err != nil {
		return nil, fmt.Errorf("extract document %s: %w", container, err)
	}

	records := make([]connector.Record, 0, len(chunks))
	for _, chunk := range chunks {
		records = append(records, connector.NewRecord(container, contentField, chunk.Text(), chunk.Location()))
	}
	return records, nil
}

// sliceStream serves a pre-extracted record slice in batches.
type sliceStream struct {
	records   []connector.Record
	batchSize int
}

func newSliceStream(records []connector.Record, batchSize int) *sliceStream {
	if batchSize <= 0 {
		batchSize = 1
	}
	return &sliceStream{records: records, batchSize: batchSize}
}

func (s *sliceStream) Next(ctx context.Context) ([]connector.Record, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if len(s.records) == 0 {
		return nil, nil
	}
	n := s.batchSize
	if n > len(s.records) {
		n = len(s.records)
	}
	batch := s.records[:n]
	s.records = s.records[n:]
	return batch, nil
}

func (s *sliceStream) Close() error { return nil }

var (
	_ connector.Connector     = (*DocumentTree)(nil)
	_ connector.ChangeCapable = (*DocumentTree)(nil)
)

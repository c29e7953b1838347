package connectorimpl

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/piimap/piimap/domain/connector"
	"github.com/piimap/piimap/domain/document"
)

// rootBucket is the container name for objects stored directly under the
// locator root rather than in a bucket directory.
const rootBucket = "."

// ObjectStore scans directory-backed object stores: each immediate
// subdirectory of the locator is a bucket, each file in it an object.
// Object contents are turned into records through the text extractors;
// files no extractor supports are skipped.
type ObjectStore struct {
	extractors []document.TextExtractor
	logger     *slog.Logger
}

// NewObjectStore creates an object store connector using the given
// extractors for object contents.
func NewObjectStore(extractors []document.TextExtractor, logger *slog.Logger) *ObjectStore {
	return &ObjectStore{extractors: extractors, logger: logger}
}

// TargetType returns the object store target type.
func (o *ObjectStore) TargetType() connector.TargetType {
	return connector.TargetObjectStore
}

// rootPath normalizes the locator into a filesystem path.
func rootPath(locator string) string {
	return strings.TrimPrefix(locator, "file://")
}

// TestConnection verifies the locator is an existing directory.
func (o *ObjectStore) TestConnection(_ context.Context, locator string) error {
	info, err := os.Stat(rootPath(locator))
	if err != nil {
		return fmt.Errorf("stat %s: %w", locator, err)
	}
	if !info.IsDir() {
		return fmt.Errorf("%s is not a directory", locator)
	}
	return nil
}

// SchemaMetadata lists the buckets and the objects they hold. Object names
// double as field names so field-level profiling sees them.
func (o *ObjectStore) SchemaMetadata(ctx context.Context, locator string) ([]connector.ContainerMetadata, error) {
	root := rootPath(locator)
	entries, err := os.ReadDir(root)
	if err != nil {
		return nil, fmt.Errorf("read %s: %w", locator, err)
	}

	var metadata []connector.ContainerMetadata
	var rootObjects []string
	for _, entry := range entries {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		if !entry.IsDir() {
			rootObjects = append(rootObjects, entry.Name())
			continue
		}
		objects, err := listObjects(filepath.Join(root, entry.Name()))
		if err != nil {
			return nil, err
		}
		metadata = append(metadata, connector.NewContainerMetadata(entry.Name(), objects, int64(len(objects))))
	}
	if len(rootObjects) > 0 {
		metadata = append(metadata, connector.NewContainerMetadata(rootBucket, rootObjects, int64(len(rootObjects))))
	}
	return metadata, nil
}

func listObjects(dir string) ([]string, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil, fmt.Errorf("read bucket %s: %w", dir, err)
	}
	var objects []string
	for _, entry := range entries {
		if !entry.IsDir() {
			objects = append(objects, entry.Name())
		}
	}
	return objects, nil
}

// ScanStream opens a record stream over one bucket's objects.
func (o *ObjectStore) ScanStream(ctx context.Context, locator, container string, batchSize, limit int) (connector.Stream, error) {
	dir := filepath.Join(rootPath(locator), filepath.FromSlash(container))
	objects, err := listObjects(dir)
	if err != nil {
		return nil, err
	}
	return newObjectStream(o, dir, container, objects, batchSize, limit, time.Time{}), nil
}

// Changes opens a record stream over objects modified since the given time.
func (o *ObjectStore) Changes(ctx context.Context, locator, container string, since time.Time, batchSize int) (connector.Stream, error) {
	dir := filepath.Join(rootPath(locator), filepath.FromSlash(container))
	objects, err := listObjects(dir)
	if err != nil {
		return nil, err
	}
	return newObjectStream(o, dir, container, objects, batchSize, 0, since), nil
}

// extractorFor returns the first extractor that supports the filename.
func (o *ObjectStore) extractorFor(filename string) document.TextExtractor {
	for _, extractor := range o.extractors {
		if extractor.Supports(filename) {
			return extractor
		}
	}
	return nil
}

// objectStream walks a bucket's objects lazily, extracting each object's
// chunks only when the stream reaches it.
type objectStream struct {
	store     *ObjectStore
	dir       string
	container string
	objects   []string
	batchSize int
	limit     int
	since     time.Time

	yielded int
	pending []connector.Record
}

func newObjectStream(store *ObjectStore, dir, container string, objects []string, batchSize, limit int, since time.Time) *objectStream {
	if batchSize <= 0 {
		batchSize = 1
	}
	return &objectStream{
		store:     store,
		dir:       dir,
		container: container,
		objects:   objects,
		batchSize: batchSize,
		limit:     limit,
		since:     since,
	}
}

// Next returns up to batchSize records. An empty batch with a nil error
// means every object has been consumed.
func (s *objectStream) Next(ctx context.Context) ([]connector.Record, error) {
	var batch []connector.Record
	for len(batch) < s.batchSize {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		if s.limit > 0 && s.yielded >= s.limit {
			break
		}
		if len(s.pending) == 0 {
			if len(s.objects) == 0 {
				break
			}
			name := s.objects[0]
			s.objects = s.objects[1:]
			records, err := s.extractObject(ctx, name)
			if err != nil {
				return nil, err
			}
			s.pending = records
			continue
		}
		batch = append(batch, s.pending[0])
		s.pending = s.pending[1:]
		s.yielded++
	}
	return batch, nil
}

// Close releases the stream. Objects are read eagerly per file, so there
// is nothing to release.
func (s *objectStream) Close() error {
	return nil
}

func (s *objectStream) extractObject(ctx context.Context, name string) ([]connector.Record, error) {
	path := filepath.Join(s.dir, name)

	if !s.since.IsZero() {
		info, err := os.Stat(path)
		if err != nil {
			return nil, fmt.Errorf("stat object %s: %w", name, err)
		}
		if !info.ModTime().After(s.since) {
			return nil, nil
		}
	}

	extractor := s.store.extractorFor(name)
	if extractor == nil {
		s.store.logger.DebugContext(ctx, "skipping unsupported object",
			slog.String("bucket", s.container),
			slog.String("object", name),
		)
		return nil, nil
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read object %s: %w", name, err)
	}
	chunks, err := extractor.Extract(ctx, data, name)
	if err != nil {
		return nil, fmt.Errorf("extract object %s: %w", name, err)
	}

	records := make([]connector.Record, 0, len(chunks))
	for _, chunk := range chunks {
		records = append(records, connector.NewRecord(s.container, name, chunk.Text(), chunk.Location()))
	}
	return records, nil
}

var (
	_ connector.Connector     = (*ObjectStore)(nil)
	_ connector.ChangeCapable = (*ObjectStore)(nil)
)

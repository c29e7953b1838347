package extractor

import (
	"bytes"
	"context"
	"encoding/csv"
	"fmt"
	"io"
	"path/filepath"
	"strings"

	"github.com/piimap/piimap/domain/document"
)

// CSV extracts one chunk per data row from delimited files. The header row
// is prepended to each chunk as "header: value" pairs so field names can
// satisfy context keyword checks.
type CSV struct{}

// NewCSV creates a CSV extractor.
func NewCSV() *CSV {
	return &CSV{}
}

// Supports reports whether the filename looks like a delimited file.
func (c *CSV) Supports(filename string) bool {
	switch strings.ToLower(filepath.Ext(filename)) {
	case ".csv", ".tsv":
		return true
	}
	return false
}

// Extract reads the file row by row, pairing each cell with its header.
func (c *CSV) Extract(ctx context.Context, data []byte, filename string) ([]document.Chunk, error) {
	reader := csv.NewReader(bytes.NewReader(data))
	if strings.EqualFold(filepath.Ext(filename), ".tsv") {
		reader.Comma = '\t'
	}
	reader.FieldsPerRecord = -1

	var header []string
	var chunks []document.Chunk
	row := 0
	for {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		record, err := reader.Read()
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("read row %d of %s: %w", row+1, filename, err)
		}
		row++
		if header == nil {
			header = record
			continue
		}
		pairs := make([]string, 0, len(record))
		for i, cell := range record {
			cell = strings.TrimSpace(cell)
			if cell == "" {
				continue
			}
			if i < len(header) && strings.TrimSpace(header[i]) != "" {
				pairs = append(pairs, strings.TrimSpace(header[i])+": "+cell)
			} else {
				pairs = append(pairs, cell)
			}
		}
		if len(pairs) == 0 {
			continue
		}
		chunks = append(chunks, document.NewChunk(strings.Join(pairs, ", "), fmt.Sprintf("row %d", row)))
	}
	return chunks, nil
}

var _ document.TextExtractor = (*CSV)(nil)

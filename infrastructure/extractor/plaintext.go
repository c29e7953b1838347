// Package extractor provides text extraction for the file formats the
// scanner understands. Each extractor turns raw file bytes into located
// chunks that the recognition engine can scan independently.
package extractor

import (
	"context"
	"fmt"
	"path/filepath"
	"strings"

	"github.com/piimap/piimap/domain/document"
)

// plainTextExtensions are the file extensions treated as plain text.
var plainTextExtensions = map[string]bool{
	".txt":  true,
	".text": true,
	".log":  true,
	".md":   true,
}

// PlainText extracts paragraph chunks from plain text files. Paragraphs
// are blocks separated by blank lines; each chunk keeps its line range as
// the location so findings can be traced back.
type PlainText struct{}

// NewPlainText creates a PlainText extractor.
func NewPlainText() *PlainText {
	return &PlainText{}
}

// Supports reports whether the filename looks like a plain text file.
func (p *PlainText) Supports(filename string) bool {
	return plainTextExtensions[strings.ToLower(filepath.Ext(filename))]
}

// Extract splits the file into paragraph chunks.
func (p *PlainText) Extract(ctx context.Context, data []byte, _ string) ([]document.Chunk, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	lines := strings.Split(string(data), "\n")
	var chunks []document.Chunk
	var block []string
	blockStart := 0

	flush := func(endLine int) {
		if len(block) == 0 {
			return
		}
		text := strings.TrimSpace(strings.Join(block, "\n"))
		if text != "" {
			location := fmt.Sprintf("line %d", blockStart+1)
			if endLine > blockStart+1 {
				location = fmt.Sprintf("lines %d-%d", blockStart+1, endLine)
			}
			chunks = append(chunks, document.NewChunk(text, location))
		}
		block = nil
	}

	for i, line := range lines {
		if strings.TrimSpace(line) == "" {
			flush(i)
			continue
		}
		if len(block) == 0 {
			blockStart = i
		}
		block = append(block, line)
	}
	flush(len(lines))

	return chunks, nil
}

var _ document.TextExtractor = (*PlainText)(nil)

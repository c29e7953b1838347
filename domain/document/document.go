package document

import "context"

// Chunk is one extracted piece of text with its location inside the source
// document (a page, sheet, or line range, depending on the extractor).
type Chunk struct {
	text     string
	location string
}

// NewChunk creates a Chunk.
func NewChunk(text, location string) Chunk {
	return Chunk{text: text, location: location}
}

// Text returns the chunk's text.
func (c Chunk) Text() string { return c.text }

// Location returns where in the document the chunk came from.
func (c Chunk) Location() string { return c.location }

// TextExtractor converts raw document bytes into text chunks.
type TextExtractor interface {
	// Extract returns the document's text chunks. The filename is used to
	// pick the extraction strategy.
	Extract(ctx context.Context, data []byte, filename string) ([]Chunk, error)

	// Supports reports whether the extractor can handle the filename.
	Supports(filename string) bool
}

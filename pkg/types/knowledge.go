// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package types

// Chunk is a contiguous passage of a knowledge source file, the unit the
// knowledge base indexes and retrieves.
type Chunk struct {
	// ID is a stable identifier derived from the source path and content.
	ID string `json:"id" yaml:"id"`

	// Source is the path of the file the chunk was read from.
	Source string `json:"source" yaml:"source"`

	// Seq is the zero-based position of the chunk within its source.
	Seq int `json:"seq" yaml:"seq"`

	// Content is the chunk text.
	Content string `json:"content" yaml:"content"`

	// Embedded reports whether the chunk has a stored embedding.
	Embedded bool `json:"embedded,omitempty" yaml:"embedded,omitempty"`
}

// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package knowledge

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"go.yaml.in/yaml/v3"

	"github.com/pdiddy/search-agent/pkg/types"
)

// Export formats.
const (
	FormatYAML = "yaml"
	FormatJSON = "json"
)

// Export is the serialized form of the index.
type Export struct {
	Sources []Source      `json:"sources" yaml:"sources"`
	Chunks  []types.Chunk `json:"chunks" yaml:"chunks"`
}

// Export writes every source and chunk to w as YAML or JSON.
func (s *Store) Export(ctx context.Context, w io.Writer, format string) error {
	data, err := s.marshalExport(ctx, format)
	if err != nil {
		return err
	}
	_, err = w.Write(data)
	return err
}

// ExportFile writes the export to KnowledgeDir/index/export.<format> and
// returns the path written.
func (s *Store) ExportFile(ctx context.Context, format string) (string, error) {
	data, err := s.marshalExport(ctx, format)
	if err != nil {
		return "", err
	}
	path := filepath.Join(s.dir, indexDir, "export."+strings.ToLower(format))
	if err := os.WriteFile(path, data, 0o644); err != nil {
		return "", fmt.Errorf("writing %s: %w", path, err)
	}
	return path, nil
}

func (s *Store) marshalExport(ctx context.Context, format string) ([]byte, error) {
	sources, err := s.Sources(ctx)
	if err != nil {
		return nil, err
	}
	chunks, err := s.Chunks(ctx)
	if err != nil {
		return nil, err
	}
	exp := Export{Sources: sources, Chunks: chunks}
	if exp.Sources == nil {
		exp.Sources = []Source{}
	}
	if exp.Chunks == nil {
		exp.Chunks = []types.Chunk{}
	}

	switch strings.ToLower(format) {
	case FormatYAML, "yml":
		data, err := yaml.Marshal(exp)
		if err != nil {
			return nil, fmt.Errorf("marshaling YAML: %w", err)
		}
		return data, nil
	case FormatJSON:
		data, err := json.MarshalIndent(exp, "", "  ")
		if err != nil {
			return nil, fmt.Errorf("marshaling JSON: %w", err)
		}
		return append(data, '\n'), nil
	default:
		return nil, fmt.Errorf("unknown export format %q: use yaml or json", format)
	}
}

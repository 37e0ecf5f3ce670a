// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

// Package secrets resolves API keys from the environment and from a
// directory of plain-text files. Each file in the directory represents one
// secret: the filename is the key name and the file contents (trimmed) are
// the value.
//
// Supported key files: groq-api-key, google-api-key, google-cse-id,
// brave-api-key, tavily-api-key.
package secrets

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
)

// Secrets maps key names (e.g. "groq-api-key") to their values.
type Secrets map[string]string

// Load reads all files in dir and returns them keyed by filename.
// A missing directory is not an error; Load returns an empty set.
// Unreadable files produce a warning on stderr but do not abort.
func Load(dir string) (Secrets, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		if os.IsNotExist(err) {
			return Secrets{}, nil
		}
		return nil, fmt.Errorf("reading secrets directory %s: %w", dir, err)
	}

	s := make(Secrets)
	for _, entry := range entries {
		if entry.IsDir() {
			continue
		}
		name := entry.Name()
		if strings.HasPrefix(name, ".") {
			continue
		}

		data, err := os.ReadFile(filepath.Join(dir, name))
		if err != nil {
			fmt.Fprintf(os.Stderr, "warning: could not read secret %s: %v\n", name, err)
			continue
		}

		if value := strings.TrimSpace(string(data)); value != "" {
			s[name] = value
		}
	}

	return s, nil
}

// Get returns the value for name. The environment wins over files: the
// variable consulted is name upper-cased with dashes turned into
// underscores, so "groq-api-key" reads GROQ_API_KEY.
func (s Secrets) Get(name string) string {
	if v := strings.TrimSpace(os.Getenv(EnvName(name))); v != "" {
		return v
	}
	return s[name]
}

// EnvName returns the environment variable consulted for a key file name.
func EnvName(name string) string {
	return strings.ToUpper(strings.ReplaceAll(name, "-", "_"))
}

// Keys returns the names of the file-backed secrets, for startup reporting.
func (s Secrets) Keys() []string {
	keys := make([]string, 0, len(s))
	for k := range s {
		keys = append(keys, k)
	}
	return keys
}

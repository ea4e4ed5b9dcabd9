package normalize

import (
	_ "embed"
	"fmt"
	"os"
	"strings"

	json "github.com/goccy/go-json"
)

//go:embed subevents.json
var defaultVocabulary []byte

// Vocabulary is the versioned list of sub-event markers.
type Vocabulary struct {
	Version  int      `json:"version"`
	FoldCase bool     `json:"fold_case"`
	Markers  []string `json:"markers"`
}

// DefaultVocabulary returns the built-in vocabulary.
func DefaultVocabulary() (*Vocabulary, error) {
	return ParseVocabulary(defaultVocabulary)
}

// LoadVocabulary reads a vocabulary file; an empty path selects the built-in one.
func LoadVocabulary(path string) (*Vocabulary, error) {
	if path == "" {
		return DefaultVocabulary()
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read vocabulary: %w", err)
	}
	v, err := ParseVocabulary(data)
	if err != nil {
		return nil, fmt.Errorf("vocabulary %s: %w", path, err)
	}
	return v, nil
}

// ParseVocabulary decodes and validates a vocabulary document.
// Duplicate markers are dropped; empty markers are rejected since they would match every name.
func ParseVocabulary(data []byte) (*Vocabulary, error) {
	var v Vocabulary
	if err := json.Unmarshal(data, &v); err != nil {
		return nil, fmt.Errorf("decode vocabulary: %w", err)
	}
	if v.Version <= 0 {
		return nil, fmt.Errorf("vocabulary version must be positive (got %d)", v.Version)
	}

	seen := make(map[string]struct{}, len(v.Markers))
	markers := make([]string, 0, len(v.Markers))
	for i, m := range v.Markers {
		if strings.TrimSpace(m) == "" {
			return nil, fmt.Errorf("vocabulary marker %d is empty", i)
		}
		if _, dup := seen[m]; dup {
			continue
		}
		seen[m] = struct{}{}
		markers = append(markers, m)
	}
	v.Markers = markers

	return &v, nil
}

package corpus

import (
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"os"
)

// ErrNoPassages is returned when the corpus file contains no usable passages.
var ErrNoPassages = errors.New("corpus: no valid passages loaded")

// Loader reads the passage corpus from a JSON file.
type Loader struct {
	path   string
	logger *slog.Logger
}

// NewLoader creates a Loader for the given corpus file path.
func NewLoader(path string, logger *slog.Logger) *Loader {
	if logger == nil {
		logger = slog.Default()
	}

	return &Loader{path: path, logger: logger}
}

// Load reads and validates the corpus file. Records missing required fields
// are skipped with a warning rather than failing the whole load; duplicate ids
// are rejected because retrieval ordering depends on id uniqueness.
func (l *Loader) Load() ([]Passage, error) {
	data, err := os.ReadFile(l.path)
	if err != nil {
		return nil, fmt.Errorf("read corpus file: %w", err)
	}

	var raw []Passage
	if err := json.Unmarshal(data, &raw); err != nil {
		return nil, fmt.Errorf("parse corpus file: %w", err)
	}

	seen := make(map[string]struct{}, len(raw))
	passages := make([]Passage, 0, len(raw))

	for i, p := range raw {
		if p.ID == "" || p.Category == "" || p.Question == "" || p.Answer == "" {
			l.logger.Warn("skipping passage with missing required fields", "index", i, "id", p.ID)

			continue
		}

		if _, dup := seen[p.ID]; dup {
			return nil, fmt.Errorf("duplicate passage id %q", p.ID)
		}

		seen[p.ID] = struct{}{}

		if p.Source == "" {
			p.Source = l.path
		}

		passages = append(passages, p)
	}

	if len(passages) == 0 {
		return nil, ErrNoPassages
	}

	l.logger.Info("corpus loaded", "path", l.path, "passages", len(passages), "skipped", len(raw)-len(passages))

	return passages, nil
}

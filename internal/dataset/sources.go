package dataset

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
)

// Mode selects a dataset split.
type Mode string

const (
	Train Mode = "train"
	Test  Mode = "test"
	Dev   Mode = "dev"
)

func ParseMode(s string) (Mode, error) {
	switch m := Mode(s); m {
	case Train, Test, Dev:
		return m, nil
	}
	return "", fmt.Errorf("%w: %q", ErrUnknownMode, s)
}

// Sources lists the CSV files that make up each split. Relative paths are
// resolved against Dir.
type Sources struct {
	Dir   string            `json:"dir"`
	Files map[Mode][]string `json:"files"`
}

// DefaultSources returns the Break layout: a QDMR, a high-level and a
// logical-forms file per split.
func DefaultSources(dir string) Sources {
	files := make(map[Mode][]string)
	for _, m := range []Mode{Train, Test, Dev} {
		files[m] = []string{
			string(m) + "_qdmr.csv",
			string(m) + "_high.csv",
			string(m) + "_forms.csv",
		}
	}
	return Sources{Dir: dir, Files: files}
}

// LoadSources reads a Sources definition from a JSON file.
func LoadSources(path string) (Sources, error) {
	var src Sources
	data, err := os.ReadFile(path)
	if err != nil {
		return src, err
	}
	if err := json.Unmarshal(data, &src); err != nil {
		return src, fmt.Errorf("decode %s: %w", path, err)
	}
	return src, nil
}

// Paths returns the resolved file list for mode.
func (s Sources) Paths(mode Mode) ([]string, error) {
	files := s.Files[mode]
	if len(files) == 0 {
		return nil, fmt.Errorf("%w: no files for %q", ErrUnknownMode, mode)
	}
	paths := make([]string, len(files))
	for i, f := range files {
		if filepath.IsAbs(f) || s.Dir == "" {
			paths[i] = f
		} else {
			paths[i] = filepath.Join(s.Dir, f)
		}
	}
	return paths, nil
}

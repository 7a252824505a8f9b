package runtime

import (
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"os"
)

// LoadLabels reads the "labels" array of a metadata.json file. A missing
// file yields no labels.
func LoadLabels(path string) ([]string, error) {
	raw, err := os.ReadFile(path)
	if errors.Is(err, fs.ErrNotExist) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("read labels: %w", err)
	}
	var meta struct {
		Labels []string `json:"labels"`
	}
	if err := json.Unmarshal(raw, &meta); err != nil {
		return nil, fmt.Errorf("parse %s: %w", path, err)
	}
	return meta.Labels, nil
}

package ml

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
)

// Artifact filenames inside the model directory.
const (
	ForestFile  = "isolation_forest.json"
	EncoderFile = "label_encoder.json"
)

// Load reads the trained artifact pair from dir. The caller decides what a
// load failure means; at process start it is logged and the service falls
// back to Disabled().
func Load(dir string) (*Model, error) {
	forest := &Forest{}
	if err := readJSON(filepath.Join(dir, ForestFile), forest); err != nil {
		return nil, fmt.Errorf("failed to load forest artifact: %w", err)
	}
	if len(forest.Trees) == 0 || forest.SampleSize < 2 {
		return nil, fmt.Errorf("forest artifact %s is malformed", ForestFile)
	}

	encoder := &LabelEncoder{}
	if err := readJSON(filepath.Join(dir, EncoderFile), encoder); err != nil {
		return nil, fmt.Errorf("failed to load encoder artifact: %w", err)
	}

	return NewModel(forest, encoder), nil
}

// Save writes the artifact pair to dir, creating it if needed.
func Save(dir string, forest *Forest, encoder *LabelEncoder) error {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("failed to create model directory: %w", err)
	}
	if err := writeJSON(filepath.Join(dir, ForestFile), forest); err != nil {
		return fmt.Errorf("failed to save forest artifact: %w", err)
	}
	if err := writeJSON(filepath.Join(dir, EncoderFile), encoder); err != nil {
		return fmt.Errorf("failed to save encoder artifact: %w", err)
	}
	return nil
}

func readJSON(path string, v any) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return err
	}
	return json.Unmarshal(data, v)
}

func writeJSON(path string, v any) error {
	data, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return err
	}
	return os.WriteFile(path, data, 0o644)
}

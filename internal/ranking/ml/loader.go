// internal/ranking/ml/loader.go
package ml

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"

	"proposition-engine/internal/features"
)

// artifact is the on-disk model format: coefficients plus the embedded
// feature schema the model was trained against.
type artifact struct {
	ModelVersion string             `json:"model_version"`
	Bias         float64            `json:"bias"`
	Weights      map[string]float64 `json:"weights"`
	Schema       features.Schema    `json:"schema"`
}

// LoadArtifact reads <dir>/<version>.json and returns an immutable
// handle. The artifact must carry a schema version and at least one
// weight; anything else is a deployment error, not a runtime condition.
func LoadArtifact(dir, version string) (*ModelHandle, error) {
	path := filepath.Join(dir, version+".json")

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read model artifact %s: %w", path, err)
	}

	var a artifact
	if err := json.Unmarshal(data, &a); err != nil {
		return nil, fmt.Errorf("failed to parse model artifact %s: %w", path, err)
	}

	if a.ModelVersion == "" {
		a.ModelVersion = version
	}
	if len(a.Weights) == 0 {
		return nil, fmt.Errorf("model artifact %s has no weights", path)
	}
	if a.Schema.Version == "" {
		return nil, fmt.Errorf("model artifact %s has no feature schema version", path)
	}

	return &ModelHandle{
		Version: a.ModelVersion,
		Schema:  a.Schema,
		Bias:    a.Bias,
		Weights: a.Weights,
	}, nil
}

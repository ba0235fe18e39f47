// internal/features/schema.go
package features

import (
	"encoding/json"
	"fmt"
	"os"
)

// NormKind names a normalization strategy declared per feature. The
// strategy must match whatever the model was trained with; the accessor
// applies it blindly.
type NormKind string

const (
	NormNone   NormKind = "none"
	NormMinMax NormKind = "minmax"
	NormZScore NormKind = "zscore"
)

// Normalization carries the per-feature normalization parameters.
type Normalization struct {
	Kind NormKind `json:"kind"`
	Min  float64  `json:"min,omitempty"`
	Max  float64  `json:"max,omitempty"`
	Mean float64  `json:"mean,omitempty"`
	Std  float64  `json:"std,omitempty"`
}

// Apply normalizes a raw value. Min-max output is clamped to [0,1] so
// out-of-range raw values cannot push scores outside the contract.
func (n Normalization) Apply(v float64) float64 {
	switch n.Kind {
	case NormMinMax:
		if n.Max <= n.Min {
			return 0
		}
		scaled := (v - n.Min) / (n.Max - n.Min)
		if scaled < 0 {
			return 0
		}
		if scaled > 1 {
			return 1
		}
		return scaled
	case NormZScore:
		if n.Std == 0 {
			return 0
		}
		return (v - n.Mean) / n.Std
	default:
		return v
	}
}

// Field declares one named, normalized model input.
type Field struct {
	Name string        `json:"name"`
	Norm Normalization `json:"normalization"`
}

// Schema is the ordered set of features a model version expects. The
// version travels with every vector built against it so the ML ranker can
// reject mismatches instead of silently mis-scoring.
type Schema struct {
	Version string  `json:"version"`
	Fields  []Field `json:"features"`
}

// Names returns the declared feature names in schema order.
func (s Schema) Names() []string {
	names := make([]string, len(s.Fields))
	for i, f := range s.Fields {
		names[i] = f.Name
	}
	return names
}

// LoadSchema reads a feature schema from a JSON file.
func LoadSchema(path string) (Schema, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return Schema{}, fmt.Errorf("failed to read schema file: %w", err)
	}
	var s Schema
	if err := json.Unmarshal(data, &s); err != nil {
		return Schema{}, fmt.Errorf("failed to parse schema file: %w", err)
	}
	if s.Version == "" {
		return Schema{}, fmt.Errorf("schema file missing version")
	}
	return s, nil
}

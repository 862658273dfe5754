package risk

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"strings"
	"sync"

	"github.com/santhosh-tekuri/jsonschema/v5"
)

const forestSchema = `{
  "$schema": "http://json-schema.org/draft-07/schema#",
  "type": "object",
  "required": ["n_features", "trees"],
  "properties": {
    "n_features": {"type": "integer", "minimum": 1},
    "trees": {
      "type": "array",
      "minItems": 1,
      "items": {
        "type": "object",
        "required": ["nodes"],
        "properties": {
          "nodes": {
            "type": "array",
            "minItems": 1,
            "items": {
              "type": "object",
              "required": ["feature", "threshold", "left", "right", "probability"],
              "properties": {
                "feature": {"type": "integer"},
                "threshold": {"type": "number"},
                "left": {"type": "integer", "minimum": -1},
                "right": {"type": "integer", "minimum": -1},
                "probability": {"type": "number", "minimum": 0, "maximum": 1}
              }
            }
          }
        }
      }
    }
  }
}`

var (
	schemaOnce     sync.Once
	compiledSchema *jsonschema.Schema
	schemaErr      error
)

func forestSchemaValidator() (*jsonschema.Schema, error) {
	schemaOnce.Do(func() {
		compiledSchema, schemaErr = jsonschema.CompileString("forest.schema.json", forestSchema)
	})
	return compiledSchema, schemaErr
}

// Node is one split or leaf of a decision tree. Leaves have Left and Right set to -1;
// Probability is the positive-class share at that node.
type Node struct {
	Feature     int     `json:"feature"`
	Threshold   float64 `json:"threshold"`
	Left        int     `json:"left"`
	Right       int     `json:"right"`
	Probability float64 `json:"probability"`
}

// Tree is a flattened decision tree rooted at node 0.
type Tree struct {
	Nodes []Node `json:"nodes"`
}

// Forest is an exported random-forest bot classifier.
type Forest struct {
	FeatureCount int    `json:"n_features"`
	Trees        []Tree `json:"trees"`
}

// ParseForest validates and decodes a forest artifact.
func ParseForest(data []byte) (*Forest, error) {
	schema, err := forestSchemaValidator()
	if err != nil {
		return nil, fmt.Errorf("compile forest schema: %w", err)
	}

	var document interface{}
	if err := json.Unmarshal(data, &document); err != nil {
		return nil, fmt.Errorf("decode forest: %w", err)
	}
	if err := schema.Validate(document); err != nil {
		return nil, fmt.Errorf("invalid forest artifact: %w", err)
	}

	var forest Forest
	if err := json.Unmarshal(data, &forest); err != nil {
		return nil, fmt.Errorf("decode forest: %w", err)
	}
	if err := forest.check(); err != nil {
		return nil, err
	}
	return &forest, nil
}

// LoadForest reads a forest artifact from disk.
func LoadForest(path string) (*Forest, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	return ParseForest(data)
}

func (f *Forest) check() error {
	for t, tree := range f.Trees {
		for n, node := range tree.Nodes {
			leaf := node.Left == -1 && node.Right == -1
			if leaf {
				continue
			}
			if node.Left < 0 || node.Right < 0 || node.Left >= len(tree.Nodes) || node.Right >= len(tree.Nodes) {
				return fmt.Errorf("tree %d node %d: child index out of range", t, n)
			}
			if node.Feature < 0 || node.Feature >= f.FeatureCount {
				return fmt.Errorf("tree %d node %d: feature %d out of range", t, n, node.Feature)
			}
		}
	}
	return nil
}

// Predict averages the positive-class probability of every tree.
func (f *Forest) Predict(vector []float64) (Prediction, error) {
	if len(vector) != f.FeatureCount {
		return Prediction{}, fmt.Errorf("expected %d features, got %d", f.FeatureCount, len(vector))
	}

	var total float64
	for i := range f.Trees {
		p, err := f.Trees[i].probability(vector)
		if err != nil {
			return Prediction{}, fmt.Errorf("tree %d: %w", i, err)
		}
		total += p
	}

	probability := total / float64(len(f.Trees))
	class := 0
	if probability > 0.5 {
		class = 1
	}
	return Prediction{Class: class, Probability: probability}, nil
}

var errTreeCycle = errors.New("tree walk did not reach a leaf")

func (t Tree) probability(vector []float64) (float64, error) {
	index := 0
	for steps := 0; steps <= len(t.Nodes); steps++ {
		node := t.Nodes[index]
		if node.Left == -1 && node.Right == -1 {
			return node.Probability, nil
		}
		if vector[node.Feature] <= node.Threshold {
			index = node.Left
		} else {
			index = node.Right
		}
	}
	return 0, errTreeCycle
}

// FileLoader loads the forest at path. An empty path or a missing file means no
// classifier is configured, which is not an error.
func FileLoader(path string) Loader {
	return func() (Classifier, error) {
		if strings.TrimSpace(path) == "" {
			return nil, nil
		}
		forest, err := LoadForest(path)
		if err != nil {
			if errors.Is(err, os.ErrNotExist) {
				return nil, nil
			}
			return nil, err
		}
		return forest, nil
	}
}

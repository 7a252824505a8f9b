// Package runtime evaluates TensorFlow.js Layers-format models exported from
// Keras or Teachable Machine. Only feed-forward stacks of the supported layer
// types can be loaded.
package runtime

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
)

// DefaultInputSize is used when the model does not declare an input shape.
const DefaultInputSize = 224

type modelFile struct {
	Format          string          `json:"format"`
	ModelTopology   json.RawMessage `json:"modelTopology"`
	WeightsManifest []weightGroup   `json:"weightsManifest"`
}

type layerSpec struct {
	ClassName string          `json:"class_name"`
	Config    json.RawMessage `json:"config"`
}

type topology struct {
	layerSpec
	ModelConfig *layerSpec `json:"model_config"`
}

// Model is a loaded, immutable feed-forward network. It is safe for
// concurrent use.
type Model struct {
	name       string
	inputShape []int
	layers     []layer
	outputSize int
}

// Load reads model.json at path and the weight shards it references, which
// are resolved relative to the file's directory.
func Load(path string) (*Model, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read model: %w", err)
	}
	var mf modelFile
	if err := json.Unmarshal(raw, &mf); err != nil {
		return nil, fmt.Errorf("parse %s: %w", path, err)
	}
	if mf.Format != "" && mf.Format != "layers-model" {
		return nil, fmt.Errorf("unsupported model format %q", mf.Format)
	}
	if len(mf.ModelTopology) == 0 {
		return nil, fmt.Errorf("%s has no modelTopology", path)
	}

	specs, err := parseTopology(mf.ModelTopology)
	if err != nil {
		return nil, err
	}
	weights, err := readWeights(filepath.Dir(path), mf.WeightsManifest)
	if err != nil {
		return nil, err
	}
	return build(filepath.Base(filepath.Dir(path)), specs, weights)
}

// parseTopology returns the flat list of layers, expanding nested Sequential
// models in place.
func parseTopology(raw json.RawMessage) ([]layerSpec, error) {
	var top topology
	if err := json.Unmarshal(raw, &top); err != nil {
		return nil, fmt.Errorf("parse modelTopology: %w", err)
	}
	root := top.layerSpec
	if top.ModelConfig != nil {
		root = *top.ModelConfig
	}
	if root.ClassName != "Sequential" {
		return nil, fmt.Errorf("unsupported model class %q: only Sequential models can be loaded", root.ClassName)
	}
	return flattenSequential(root.Config)
}

func flattenSequential(config json.RawMessage) ([]layerSpec, error) {
	var layers []layerSpec
	var wrapped struct {
		Layers []layerSpec `json:"layers"`
	}
	if err := json.Unmarshal(config, &wrapped); err == nil && wrapped.Layers != nil {
		layers = wrapped.Layers
	} else if err := json.Unmarshal(config, &layers); err != nil {
		return nil, fmt.Errorf("parse Sequential config: %w", err)
	}

	var out []layerSpec
	for _, l := range layers {
		if l.ClassName != "Sequential" {
			out = append(out, l)
			continue
		}
		nested, err := flattenSequential(l.Config)
		if err != nil {
			return nil, err
		}
		if len(out) == 0 {
			out = append(out, nested...)
			continue
		}
		// Input declarations only matter on the outermost first layer.
		for _, n := range nested {
			if n.ClassName != "InputLayer" {
				out = append(out, n)
			}
		}
	}
	return out, nil
}

func build(name string, specs []layerSpec, weights weightSet) (*Model, error) {
	if len(specs) == 0 {
		return nil, fmt.Errorf("model has no layers")
	}
	m := &Model{name: name}

	shape := []int{DefaultInputSize, DefaultInputSize, 3}
	for _, s := range specs {
		var cfg layerConfig
		if err := json.Unmarshal(s.Config, &cfg); err != nil {
			return nil, fmt.Errorf("parse %s config: %w", s.ClassName, err)
		}
		if in := cfg.inputShape(); in != nil {
			shape = in
			break
		}
	}
	m.inputShape = append([]int(nil), shape...)

	for _, s := range specs {
		var cfg layerConfig
		if err := json.Unmarshal(s.Config, &cfg); err != nil {
			return nil, fmt.Errorf("parse %s config: %w", s.ClassName, err)
		}
		l, next, err := newLayer(s.ClassName, cfg, shape, weights)
		if err != nil {
			return nil, fmt.Errorf("layer %q (%s): %w", cfg.Name, s.ClassName, err)
		}
		if l != nil {
			m.layers = append(m.layers, l)
		}
		shape = next
	}
	m.outputSize = product(shape)
	return m, nil
}

// InputSize reports the image height and width the model expects.
func (m *Model) InputSize() (int, int) {
	if len(m.inputShape) == 3 {
		return m.inputShape[0], m.inputShape[1]
	}
	return DefaultInputSize, DefaultInputSize
}

// OutputSize is the number of scores Predict returns.
func (m *Model) OutputSize() int { return m.outputSize }

// Predict runs one forward pass. input is not modified or retained.
func (m *Model) Predict(input []float32) ([]float32, error) {
	if want := product(m.inputShape); len(input) != want {
		return nil, fmt.Errorf("model %s: input has %d values, want %d", m.name, len(input), want)
	}
	t := tensor{shape: m.inputShape, data: input}
	for _, l := range m.layers {
		t = l.apply(t)
	}
	out := make([]float32, len(t.data))
	copy(out, t.data)
	return out, nil
}

func product(shape []int) int {
	n := 1
	for _, d := range shape {
		n *= d
	}
	return n
}

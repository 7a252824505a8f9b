package runtime

import (
	"encoding/binary"
	"encoding/json"
	"fmt"
	"math"
	"os"
	"path/filepath"
	"strings"
)

type weightGroup struct {
	Paths   []string     `json:"paths"`
	Weights []weightSpec `json:"weights"`
}

type weightSpec struct {
	Name         string          `json:"name"`
	Shape        []int           `json:"shape"`
	DType        string          `json:"dtype"`
	Quantization json.RawMessage `json:"quantization,omitempty"`
}

type weightValue struct {
	shape []int
	data  []float32
}

// weightSet maps manifest weight names to their values.
type weightSet map[string]weightValue

// readWeights loads every shard group. Within a group the shards are
// concatenated and the weights are laid out back to back in manifest order.
func readWeights(dir string, manifest []weightGroup) (weightSet, error) {
	set := weightSet{}
	for gi, g := range manifest {
		var buf []byte
		for _, p := range g.Paths {
			clean := filepath.Clean(filepath.FromSlash(p))
			if filepath.IsAbs(clean) || strings.HasPrefix(clean, "..") {
				return nil, fmt.Errorf("weight shard path %q escapes the model directory", p)
			}
			b, err := os.ReadFile(filepath.Join(dir, clean))
			if err != nil {
				return nil, fmt.Errorf("read weight shard: %w", err)
			}
			buf = append(buf, b...)
		}

		offset := 0
		for _, w := range g.Weights {
			if w.DType != "" && w.DType != "float32" {
				return nil, fmt.Errorf("weight %s: unsupported dtype %q", w.Name, w.DType)
			}
			if len(w.Quantization) > 0 && string(w.Quantization) != "null" {
				return nil, fmt.Errorf("weight %s: quantized weights are not supported", w.Name)
			}
			n := product(w.Shape)
			size := n * 4
			if offset+size > len(buf) {
				return nil, fmt.Errorf("weight group %d: %s needs %d bytes at offset %d, shards hold %d", gi, w.Name, size, offset, len(buf))
			}
			data := make([]float32, n)
			for i := range data {
				data[i] = math.Float32frombits(binary.LittleEndian.Uint32(buf[offset+i*4:]))
			}
			set[w.Name] = weightValue{shape: w.Shape, data: data}
			offset += size
		}
	}
	return set, nil
}

// find returns the values of layer/param, accepting names nested under an
// outer model ("sequential_1/dense/kernel").
func (s weightSet) find(layer, param string, shape []int) ([]float32, error) {
	key := layer + "/" + param
	w, ok := s[key]
	if !ok {
		var matches []string
		for name := range s {
			if strings.HasSuffix(name, "/"+key) {
				matches = append(matches, name)
			}
		}
		switch len(matches) {
		case 0:
			return nil, fmt.Errorf("missing weight %s", key)
		case 1:
			w = s[matches[0]]
		default:
			return nil, fmt.Errorf("weight %s is ambiguous: %v", key, matches)
		}
	}
	if !sameShape(w.shape, shape) {
		return nil, fmt.Errorf("weight %s has shape %v, want %v", key, w.shape, shape)
	}
	return w.data, nil
}

func sameShape(a, b []int) bool {
	if len(a) != len(b) {
		return false
	}
	for i := range a {
		if a[i] != b[i] {
			return false
		}
	}
	return true
}

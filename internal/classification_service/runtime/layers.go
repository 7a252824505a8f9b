package runtime

import (
	"encoding/json"
	"fmt"
	"math"
)

type tensor struct {
	shape []int
	data  []float32
}

type layer interface {
	apply(in tensor) tensor
}

// layerConfig holds the Keras config fields the supported layers read.
type layerConfig struct {
	Name            string   `json:"name"`
	BatchInputShape []*int   `json:"batch_input_shape"`
	BatchShape      []*int   `json:"batch_shape"`
	Units           int      `json:"units"`
	Activation      string   `json:"activation"`
	UseBias         *bool    `json:"use_bias"`
	Scale           *float64 `json:"scale"`
	Offset          *float64 `json:"offset"`
	Axis            axisSpec `json:"axis"`
}

// inputShape returns the declared per-example shape, or nil.
func (c layerConfig) inputShape() []int {
	dims := c.BatchInputShape
	if dims == nil {
		dims = c.BatchShape
	}
	if len(dims) < 2 {
		return nil
	}
	out := make([]int, 0, len(dims)-1)
	for _, d := range dims[1:] {
		if d == nil || *d <= 0 {
			return nil
		}
		out = append(out, *d)
	}
	return out
}

// axisSpec accepts the int, list or null forms Keras uses for "axis".
type axisSpec []int

func (a *axisSpec) UnmarshalJSON(b []byte) error {
	if string(b) == "null" {
		*a = nil
		return nil
	}
	var one int
	if err := json.Unmarshal(b, &one); err == nil {
		*a = axisSpec{one}
		return nil
	}
	var many []int
	if err := json.Unmarshal(b, &many); err != nil {
		return err
	}
	*a = many
	return nil
}

// isLast reports whether the axis is the last one of a tensor with rank
// dimensions after the batch axis.
func (a axisSpec) isLast(rank int) bool {
	switch len(a) {
	case 0:
		return true
	case 1:
		return a[0] == -1 || a[0] == rank
	default:
		return false
	}
}

// newLayer builds the layer for one spec and returns the output shape. A nil
// layer means the spec is a no-op at inference time.
func newLayer(class string, cfg layerConfig, in []int, weights weightSet) (layer, []int, error) {
	switch class {
	case "InputLayer":
		return nil, in, nil
	case "Dropout", "SpatialDropout1D", "SpatialDropout2D", "GaussianNoise", "GaussianDropout":
		return nil, in, nil
	case "Flatten":
		return flattenLayer{}, []int{product(in)}, nil
	case "Activation":
		fn, err := activationFunc(cfg.Activation)
		if err != nil {
			return nil, nil, err
		}
		return activationLayer{fn: fn}, in, nil
	case "Softmax":
		if !cfg.Axis.isLast(len(in)) {
			return nil, nil, fmt.Errorf("softmax over axis %v is not supported", cfg.Axis)
		}
		return activationLayer{fn: softmax}, in, nil
	case "ReLU":
		return activationLayer{fn: relu}, in, nil
	case "Rescaling":
		l := rescaleLayer{scale: 1}
		if cfg.Scale != nil {
			l.scale = float32(*cfg.Scale)
		}
		if cfg.Offset != nil {
			l.offset = float32(*cfg.Offset)
		}
		return l, in, nil
	case "Dense":
		return newDense(cfg, in, weights)
	default:
		return nil, nil, fmt.Errorf("unsupported layer type %q", class)
	}
}

func newDense(cfg layerConfig, in []int, weights weightSet) (layer, []int, error) {
	if len(in) == 0 {
		return nil, nil, fmt.Errorf("dense layer needs a non-scalar input")
	}
	if cfg.Units <= 0 {
		return nil, nil, fmt.Errorf("dense layer has %d units", cfg.Units)
	}
	inDim := in[len(in)-1]

	kernel, err := weights.find(cfg.Name, "kernel", []int{inDim, cfg.Units})
	if err != nil {
		return nil, nil, err
	}
	var bias []float32
	if cfg.UseBias == nil || *cfg.UseBias {
		if bias, err = weights.find(cfg.Name, "bias", []int{cfg.Units}); err != nil {
			return nil, nil, err
		}
	}
	fn, err := activationFunc(cfg.Activation)
	if err != nil {
		return nil, nil, err
	}

	out := append(append([]int(nil), in[:len(in)-1]...), cfg.Units)
	return denseLayer{in: inDim, units: cfg.Units, kernel: kernel, bias: bias, activation: fn}, out, nil
}

type flattenLayer struct{}

func (flattenLayer) apply(t tensor) tensor {
	return tensor{shape: []int{len(t.data)}, data: t.data}
}

type rescaleLayer struct {
	scale, offset float32
}

func (l rescaleLayer) apply(t tensor) tensor {
	out := make([]float32, len(t.data))
	for i, v := range t.data {
		out[i] = v*l.scale + l.offset
	}
	return tensor{shape: t.shape, data: out}
}

// activation maps one row (the last axis) into out.
type activation func(row, out []float32)

type activationLayer struct {
	fn activation
}

func (l activationLayer) apply(t tensor) tensor {
	out := make([]float32, len(t.data))
	width := t.shape[len(t.shape)-1]
	for start := 0; start < len(t.data); start += width {
		l.fn(t.data[start:start+width], out[start:start+width])
	}
	return tensor{shape: t.shape, data: out}
}

type denseLayer struct {
	in, units  int
	kernel     []float32 // [in, units] row-major
	bias       []float32
	activation activation
}

func (l denseLayer) apply(t tensor) tensor {
	rows := len(t.data) / l.in
	out := make([]float32, rows*l.units)
	for r := 0; r < rows; r++ {
		x := t.data[r*l.in : (r+1)*l.in]
		y := out[r*l.units : (r+1)*l.units]
		if l.bias != nil {
			copy(y, l.bias)
		}
		for i, xv := range x {
			if xv == 0 {
				continue
			}
			k := l.kernel[i*l.units : (i+1)*l.units]
			for j, kv := range k {
				y[j] += xv * kv
			}
		}
		l.activation(y, y)
	}
	shape := append(append([]int(nil), t.shape[:len(t.shape)-1]...), l.units)
	return tensor{shape: shape, data: out}
}

func activationFunc(name string) (activation, error) {
	switch name {
	case "", "linear":
		return linear, nil
	case "relu":
		return relu, nil
	case "relu6":
		return relu6, nil
	case "sigmoid":
		return sigmoid, nil
	case "tanh":
		return tanh, nil
	case "softmax":
		return softmax, nil
	default:
		return nil, fmt.Errorf("unsupported activation %q", name)
	}
}

func linear(row, out []float32) { copy(out, row) }

func relu(row, out []float32) {
	for i, v := range row {
		out[i] = max(v, 0)
	}
}

func relu6(row, out []float32) {
	for i, v := range row {
		out[i] = min(max(v, 0), 6)
	}
}

func sigmoid(row, out []float32) {
	for i, v := range row {
		out[i] = float32(1 / (1 + math.Exp(-float64(v))))
	}
}

func tanh(row, out []float32) {
	for i, v := range row {
		out[i] = float32(math.Tanh(float64(v)))
	}
}

func softmax(row, out []float32) {
	if len(row) == 0 {
		return
	}
	peak := row[0]
	for _, v := range row[1:] {
		peak = max(peak, v)
	}
	var sum float64
	for i, v := range row {
		e := math.Exp(float64(v - peak))
		out[i] = float32(e)
		sum += e
	}
	for i := range out[:len(row)] {
		out[i] = float32(float64(out[i]) / sum)
	}
}

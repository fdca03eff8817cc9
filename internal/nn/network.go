package nn

import (
	"fmt"
	"math"
	"math/rand"
	"strconv"
	"strings"

	"gonum.org/v1/gonum/mat"
)

// Network is the policy capability the evolutionary loop depends on.
type Network interface {
	Name() string
	InputSize() int
	OutputSize() int
	Forward(input []float64) ([]float64, error)
	Shape() Shape
	ParameterCount() int
	Parameters() []float64
	SetParameters(vector []float64) error
	Clone() Network
}

type layer struct {
	weights  *mat.Dense
	bias     *mat.Dense
	activate Activation
}

// MLP is a fully connected feed-forward network. Each layer stores an
// out×in weight matrix followed by an out×1 bias column, which is also the
// flatten order.
type MLP struct {
	sizes  []int
	layers []layer
}

// NewMLP builds an MLP with the given layer sizes (input first, output last)
// and zero parameters.
func NewMLP(sizes []int, hiddenActivation, outputActivation string) (*MLP, error) {
	if len(sizes) < 2 {
		return nil, fmt.Errorf("mlp needs at least input and output sizes, got %v", sizes)
	}
	for i, size := range sizes {
		if size <= 0 {
			return nil, fmt.Errorf("layer %d size must be > 0, got %d", i, size)
		}
	}
	hidden, err := LookupActivation(hiddenActivation)
	if err != nil {
		return nil, err
	}
	output, err := LookupActivation(outputActivation)
	if err != nil {
		return nil, err
	}

	m := &MLP{sizes: append([]int(nil), sizes...)}
	for i := 1; i < len(sizes); i++ {
		l := layer{
			weights:  mat.NewDense(sizes[i], sizes[i-1], nil),
			bias:     mat.NewDense(sizes[i], 1, nil),
			activate: hidden,
		}
		if i == len(sizes)-1 {
			l.activate = output
		}
		m.layers = append(m.layers, l)
	}
	return m, nil
}

// NewPolicyMLP builds the default policy network: ReLU hidden layers and a
// linear output layer.
func NewPolicyMLP(sizes []int) (*MLP, error) {
	return NewMLP(sizes, "relu", "identity")
}

func (m *MLP) Name() string {
	parts := make([]string, len(m.sizes))
	for i, size := range m.sizes {
		parts[i] = strconv.Itoa(size)
	}
	return "mlp-" + strings.Join(parts, "x")
}

func (m *MLP) InputSize() int {
	return m.sizes[0]
}

func (m *MLP) OutputSize() int {
	return m.sizes[len(m.sizes)-1]
}

func (m *MLP) Forward(input []float64) ([]float64, error) {
	if len(input) != m.InputSize() {
		return nil, fmt.Errorf("input size mismatch: got=%d want=%d", len(input), m.InputSize())
	}

	x := mat.NewVecDense(len(input), append([]float64(nil), input...))
	for _, l := range m.layers {
		rows, _ := l.weights.Dims()
		y := mat.NewVecDense(rows, nil)
		y.MulVec(l.weights, x)
		y.AddVec(y, l.bias.ColView(0))
		l.activate(y)
		x = y
	}

	out := make([]float64, x.Len())
	for i := range out {
		out[i] = x.AtVec(i)
	}
	return out, nil
}

func (m *MLP) Shape() Shape {
	return shapeOf(m.tensors())
}

func (m *MLP) ParameterCount() int {
	return m.Shape().Total()
}

func (m *MLP) Parameters() []float64 {
	return FlattenTensors(m.tensors())
}

func (m *MLP) SetParameters(vector []float64) error {
	return ReconstructTensors(m.tensors(), vector)
}

func (m *MLP) Clone() Network {
	out := &MLP{sizes: append([]int(nil), m.sizes...)}
	for _, l := range m.layers {
		out.layers = append(out.layers, layer{
			weights:  mat.DenseCopyOf(l.weights),
			bias:     mat.DenseCopyOf(l.bias),
			activate: l.activate,
		})
	}
	return out
}

// InitUniform draws every parameter from U(-1/sqrt(fan_in), 1/sqrt(fan_in)).
func (m *MLP) InitUniform(rng *rand.Rand) {
	for _, l := range m.layers {
		rows, cols := l.weights.Dims()
		bound := 1 / math.Sqrt(float64(cols))
		for i := 0; i < rows; i++ {
			for j := 0; j < cols; j++ {
				l.weights.Set(i, j, (rng.Float64()*2-1)*bound)
			}
			l.bias.Set(i, 0, (rng.Float64()*2-1)*bound)
		}
	}
}

func (m *MLP) tensors() []Tensor {
	tensors := make([]Tensor, 0, 2*len(m.layers))
	for i, l := range m.layers {
		tensors = append(tensors,
			Tensor{Name: fmt.Sprintf("layers.%d.weight", i), Data: l.weights},
			Tensor{Name: fmt.Sprintf("layers.%d.bias", i), Data: l.bias},
		)
	}
	return tensors
}

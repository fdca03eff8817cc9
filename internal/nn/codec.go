package nn

import (
	"errors"
	"fmt"

	"gonum.org/v1/gonum/mat"
)

// ErrShapeMismatch reports a parameter vector whose length does not match
// the network's total parameter count.
var ErrShapeMismatch = errors.New("parameter vector shape mismatch")

// TensorShape is the shape of one learnable tensor.
type TensorShape struct {
	Name string
	Rows int
	Cols int
}

func (s TensorShape) Size() int {
	return s.Rows * s.Cols
}

// Shape lists a network's tensors in flatten order.
type Shape []TensorShape

func (s Shape) Total() int {
	total := 0
	for _, t := range s {
		total += t.Size()
	}
	return total
}

// Tensor is a named learnable parameter block.
type Tensor struct {
	Name string
	Data *mat.Dense
}

// Flatten returns the network's parameters as one ordered vector.
func Flatten(net Network) []float64 {
	return net.Parameters()
}

// Reconstruct writes vector back into the network's tensors. The vector is
// partitioned in the same order Flatten uses.
func Reconstruct(net Network, vector []float64) error {
	if want := net.Shape().Total(); len(vector) != want {
		return fmt.Errorf("%w: got=%d want=%d", ErrShapeMismatch, len(vector), want)
	}
	return net.SetParameters(vector)
}

// FlattenTensors concatenates every tensor in row-major order.
func FlattenTensors(tensors []Tensor) []float64 {
	total := 0
	for _, t := range tensors {
		r, c := t.Data.Dims()
		total += r * c
	}
	out := make([]float64, 0, total)
	for _, t := range tensors {
		raw := t.Data.RawMatrix()
		for i := 0; i < raw.Rows; i++ {
			out = append(out, raw.Data[i*raw.Stride:i*raw.Stride+raw.Cols]...)
		}
	}
	return out
}

// ReconstructTensors copies consecutive partitions of vector into tensors.
func ReconstructTensors(tensors []Tensor, vector []float64) error {
	total := 0
	for _, t := range tensors {
		r, c := t.Data.Dims()
		total += r * c
	}
	if len(vector) != total {
		return fmt.Errorf("%w: got=%d want=%d", ErrShapeMismatch, len(vector), total)
	}

	offset := 0
	for _, t := range tensors {
		raw := t.Data.RawMatrix()
		for i := 0; i < raw.Rows; i++ {
			copy(raw.Data[i*raw.Stride:i*raw.Stride+raw.Cols], vector[offset:offset+raw.Cols])
			offset += raw.Cols
		}
	}
	return nil
}

func shapeOf(tensors []Tensor) Shape {
	shape := make(Shape, 0, len(tensors))
	for _, t := range tensors {
		r, c := t.Data.Dims()
		shape = append(shape, TensorShape{Name: t.Name, Rows: r, Cols: c})
	}
	return shape
}

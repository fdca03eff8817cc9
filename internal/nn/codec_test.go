package nn

import (
	"errors"
	"math/rand"
	"testing"
)

func TestFlattenReconstructRoundTrip(t *testing.T) {
	topologies := [][]int{
		{1, 1},
		{3, 5, 2},
		{10, 16, 12, 4},
	}
	rng := rand.New(rand.NewSource(3))
	for _, sizes := range topologies {
		src, err := NewPolicyMLP(sizes)
		if err != nil {
			t.Fatalf("new mlp %v: %v", sizes, err)
		}
		src.InitUniform(rng)
		vector := Flatten(src)

		dst, err := NewPolicyMLP(sizes)
		if err != nil {
			t.Fatalf("new mlp %v: %v", sizes, err)
		}
		if err := Reconstruct(dst, vector); err != nil {
			t.Fatalf("reconstruct %v: %v", sizes, err)
		}

		got := Flatten(dst)
		if len(got) != len(vector) {
			t.Fatalf("length mismatch for %v: got=%d want=%d", sizes, len(got), len(vector))
		}
		for i := range got {
			if got[i] != vector[i] {
				t.Fatalf("value mismatch for %v at %d: got=%f want=%f", sizes, i, got[i], vector[i])
			}
		}
	}
}

func TestFlattenOrderWeightsThenBiasPerLayer(t *testing.T) {
	net, err := NewPolicyMLP([]int{2, 2, 1})
	if err != nil {
		t.Fatalf("new mlp: %v", err)
	}
	vector := []float64{1, 2, 3, 4, 5, 6, 7, 8, 9}
	if err := Reconstruct(net, vector); err != nil {
		t.Fatalf("reconstruct: %v", err)
	}

	tensors := net.tensors()
	if got := tensors[0].Data.At(1, 0); got != 3 {
		t.Fatalf("expected layer0 weight[1][0]=3, got %f", got)
	}
	if got := tensors[1].Data.At(1, 0); got != 6 {
		t.Fatalf("expected layer0 bias[1]=6, got %f", got)
	}
	if got := tensors[2].Data.At(0, 1); got != 8 {
		t.Fatalf("expected layer1 weight[0][1]=8, got %f", got)
	}
	if got := tensors[3].Data.At(0, 0); got != 9 {
		t.Fatalf("expected layer1 bias[0]=9, got %f", got)
	}
}

func TestReconstructShapeMismatch(t *testing.T) {
	net, err := NewPolicyMLP([]int{2, 3, 1})
	if err != nil {
		t.Fatalf("new mlp: %v", err)
	}
	before := Flatten(net)

	for _, n := range []int{0, 12, 14} {
		err := Reconstruct(net, make([]float64, n))
		if !errors.Is(err, ErrShapeMismatch) {
			t.Fatalf("expected ErrShapeMismatch for length %d, got %v", n, err)
		}
	}
	after := Flatten(net)
	for i := range before {
		if before[i] != after[i] {
			t.Fatal("expected failed reconstruct to leave parameters untouched")
		}
	}
}

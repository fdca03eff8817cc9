package evo

import (
	"fmt"
	"math"
	"math/rand"
	"sort"

	"gonum.org/v1/gonum/stat"
)

const (
	DefaultAlpha = 0.1

	// mutation offsets are drawn from [-mutationOffsetSpan, mutationOffsetSpan).
	mutationOffsetSpan = 10
)

// SelectTopTwo is ranking selection: it returns the two fittest individuals.
// Equal fitness keeps the original population order.
func SelectTopTwo(population []*Individual) (*Individual, *Individual, error) {
	if len(population) < 2 {
		return nil, nil, fmt.Errorf("selection needs at least 2 individuals, got %d", len(population))
	}
	ranked := append([]*Individual(nil), population...)
	sort.SliceStable(ranked, func(i, j int) bool {
		return ranked[i].Fitness > ranked[j].Fitness
	})
	return ranked[0], ranked[1], nil
}

// BLXAlpha draws each child gene independently and uniformly from
// [lo - alpha*range, hi + alpha*range] around the parents' genes.
func BLXAlpha(rng *rand.Rand, v1, v2 []float64, alpha float64) ([]float64, []float64, error) {
	if len(v1) != len(v2) {
		return nil, nil, fmt.Errorf("crossover parents differ in length: %d vs %d", len(v1), len(v2))
	}
	c1 := make([]float64, len(v1))
	c2 := make([]float64, len(v2))
	for i := range v1 {
		lo, hi := math.Min(v1[i], v2[i]), math.Max(v1[i], v2[i])
		spread := (hi - lo) * alpha
		c1[i] = uniform(rng, lo-spread, hi+spread)
		c2[i] = uniform(rng, lo-spread, hi+spread)
	}
	return c1, c2, nil
}

// Crossover applies BLX-alpha with probability p and otherwise returns
// copies of the parents.
func Crossover(rng *rand.Rand, v1, v2 []float64, alpha, p float64) ([]float64, []float64, error) {
	if rng.Float64() < p {
		return BLXAlpha(rng, v1, v2, alpha)
	}
	return append([]float64(nil), v1...), append([]float64(nil), v2...), nil
}

// Mutate returns a copy of v in which, with probability p, one random gene
// is replaced by a draw from N(mean(v), std(v)) plus an integer offset.
func Mutate(rng *rand.Rand, v []float64, p float64) []float64 {
	out := append([]float64(nil), v...)
	if len(out) == 0 || rng.Float64() >= p {
		return out
	}
	pos := rng.Intn(len(out))
	mean, std := stat.PopMeanStdDev(out, nil)
	offset := float64(rng.Intn(2*mutationOffsetSpan) - mutationOffsetSpan)
	out[pos] = rng.NormFloat64()*std + mean + offset
	return out
}

// Invert returns v in reverse order.
func Invert(v []float64) []float64 {
	out := make([]float64, len(v))
	for i, x := range v {
		out[len(v)-1-i] = x
	}
	return out
}

// ShouldInvert compares a standard-normal draw against p. A non-positive p
// disables inversion without consuming a draw.
func ShouldInvert(rng *rand.Rand, p float64) bool {
	if p <= 0 {
		return false
	}
	return rng.NormFloat64() < p
}

func uniform(rng *rand.Rand, lo, hi float64) float64 {
	return lo + rng.Float64()*(hi-lo)
}

package nn

import (
	"errors"
	"fmt"
	"math"
	"sort"
	"strings"
	"sync"

	"gonum.org/v1/gonum/mat"
)

var ErrUnknownActivation = errors.New("unknown activation")

// Activation transforms a layer's pre-activation vector in place.
type Activation func(v *mat.VecDense)

// Elementwise lifts a scalar function to an Activation.
func Elementwise(fn func(float64) float64) Activation {
	return func(v *mat.VecDense) {
		for i := 0; i < v.Len(); i++ {
			v.SetVec(i, fn(v.AtVec(i)))
		}
	}
}

const leakySlope = 0.01

var activations = struct {
	sync.RWMutex
	byName map[string]Activation
}{byName: map[string]Activation{}}

var activationAliases = map[string]string{
	"linear":   "identity",
	"none":     "identity",
	"leaky":    "leaky-relu",
	"logistic": "sigmoid",
}

func init() {
	registerBuiltinActivations()
}

func registerBuiltinActivations() {
	activations.byName["identity"] = func(*mat.VecDense) {}
	activations.byName["relu"] = Elementwise(func(x float64) float64 { return math.Max(0, x) })
	activations.byName["leaky-relu"] = Elementwise(func(x float64) float64 {
		if x < 0 {
			return leakySlope * x
		}
		return x
	})
	activations.byName["tanh"] = Elementwise(math.Tanh)
	activations.byName["hard-tanh"] = Elementwise(func(x float64) float64 { return math.Max(-1, math.Min(1, x)) })
	activations.byName["sigmoid"] = Elementwise(func(x float64) float64 { return 1 / (1 + math.Exp(-x)) })
}

func canonicalActivation(name string) string {
	name = strings.ReplaceAll(strings.ToLower(strings.TrimSpace(name)), "_", "-")
	if alias, ok := activationAliases[name]; ok {
		return alias
	}
	return name
}

// RegisterActivation adds a named activation. Names are case-insensitive
// and "_" is treated as "-".
func RegisterActivation(name string, fn Activation) error {
	name = canonicalActivation(name)
	switch {
	case name == "":
		return errors.New("activation name is required")
	case fn == nil:
		return fmt.Errorf("activation %s: function is required", name)
	}

	activations.Lock()
	defer activations.Unlock()
	if _, exists := activations.byName[name]; exists {
		return fmt.Errorf("activation %s already registered", name)
	}
	activations.byName[name] = fn
	return nil
}

func LookupActivation(name string) (Activation, error) {
	activations.RLock()
	defer activations.RUnlock()
	fn, ok := activations.byName[canonicalActivation(name)]
	if !ok {
		return nil, fmt.Errorf("%w: %q", ErrUnknownActivation, name)
	}
	return fn, nil
}

// Activations returns the registered names in sorted order.
func Activations() []string {
	activations.RLock()
	defer activations.RUnlock()
	names := make([]string, 0, len(activations.byName))
	for name := range activations.byName {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

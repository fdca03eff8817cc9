package evo

import (
	"context"
	"testing"

	"walkerga/internal/nn"
	"walkerga/internal/scape"
)

// stubEnv is a one-dimensional environment whose reward is the first action
// component. With a 1x1 identity network fed a constant 1 observation the
// episode return equals weight+bias.
type stubEnv struct {
	obsSize    int
	actionSize int
	doneAfter  int
	stepErr    error

	resets  int
	steps   int
	renders int
	tick    int
}

func newStubEnv() *stubEnv {
	return &stubEnv{obsSize: 1, actionSize: 1, doneAfter: 1}
}

func (e *stubEnv) Name() string         { return "stub" }
func (e *stubEnv) ObservationSize() int { return e.obsSize }
func (e *stubEnv) ActionSize() int      { return e.actionSize }
func (e *stubEnv) Seed(int64)           {}
func (e *stubEnv) Close() error         { return nil }

func (e *stubEnv) Render() error {
	e.renders++
	return nil
}

func (e *stubEnv) Reset(context.Context) ([]float64, error) {
	e.resets++
	e.tick = 0
	return e.observation(), nil
}

func (e *stubEnv) Step(_ context.Context, action []float64) (scape.StepResult, error) {
	if e.stepErr != nil {
		return scape.StepResult{}, e.stepErr
	}
	e.steps++
	e.tick++
	return scape.StepResult{
		Observation: e.observation(),
		Reward:      action[0],
		Done:        e.doneAfter > 0 && e.tick >= e.doneAfter,
	}, nil
}

func (e *stubEnv) observation() []float64 {
	obs := make([]float64, e.obsSize)
	for i := range obs {
		obs[i] = 1
	}
	return obs
}

func newLinearIndividual(t *testing.T, weight, bias float64) *Individual {
	t.Helper()
	net, err := nn.NewMLP([]int{1, 1}, "identity", "identity")
	if err != nil {
		t.Fatalf("new mlp: %v", err)
	}
	if err := nn.Reconstruct(net, []float64{weight, bias}); err != nil {
		t.Fatalf("reconstruct: %v", err)
	}
	ind, err := NewIndividual(net)
	if err != nil {
		t.Fatalf("new individual: %v", err)
	}
	return ind
}

func evaluateAll(t *testing.T, env *stubEnv, population []*Individual) {
	t.Helper()
	for i, ind := range population {
		fitness, params, err := Evaluate(context.Background(), ind.Network, env, EvaluateOptions{MaxSteps: 10})
		if err != nil {
			t.Fatalf("evaluate %d: %v", i, err)
		}
		ind.Fitness = fitness
		ind.Params = params
	}
}

func equalVectors(a, b []float64) bool {
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

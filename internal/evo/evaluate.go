package evo

import (
	"context"
	"fmt"

	"walkerga/internal/nn"
	"walkerga/internal/scape"
)

const DefaultMaxSteps = 1000

type EvaluateOptions struct {
	MaxSteps int
	Render   bool
}

// Evaluate runs one episode of env under net and returns the accumulated
// reward together with the network's parameters. The network is not
// modified.
func Evaluate(ctx context.Context, net nn.Network, env scape.Environment, opts EvaluateOptions) (float64, []float64, error) {
	maxSteps := opts.MaxSteps
	if maxSteps <= 0 {
		maxSteps = DefaultMaxSteps
	}

	obs, err := env.Reset(ctx)
	if err != nil {
		return 0, nil, fmt.Errorf("reset %s: %w", env.Name(), err)
	}

	fitness := 0.0
	for step := 0; step < maxSteps; step++ {
		if err := ctx.Err(); err != nil {
			return 0, nil, err
		}
		if opts.Render {
			if err := env.Render(); err != nil {
				return 0, nil, fmt.Errorf("render %s: %w", env.Name(), err)
			}
		}

		action, err := net.Forward(fitObservation(obs, net.InputSize()))
		if err != nil {
			return 0, nil, fmt.Errorf("forward step %d: %w", step, err)
		}
		res, err := env.Step(ctx, action)
		if err != nil {
			return 0, nil, fmt.Errorf("step %s at %d: %w", env.Name(), step, err)
		}
		fitness += res.Reward
		obs = res.Observation
		if res.Done {
			break
		}
	}
	return fitness, nn.Flatten(net), nil
}

// fitObservation keeps the first n components of obs, zero-padding when the
// observation is shorter than the network input.
func fitObservation(obs []float64, n int) []float64 {
	out := make([]float64, n)
	copy(out, obs)
	return out
}

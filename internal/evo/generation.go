package evo

import (
	"context"
	"errors"
	"fmt"
	"math/rand"

	"walkerga/internal/scape"
)

type GenerationConfig struct {
	Env        scape.Environment
	Rand       *rand.Rand
	PMutation  float64
	PCrossover float64
	PInversion float64
	Alpha      float64
	Evaluate   EvaluateOptions
}

func (c GenerationConfig) validate() error {
	if c.Env == nil {
		return errors.New("environment is required")
	}
	if c.Rand == nil {
		return errors.New("random source is required")
	}
	return nil
}

// RunGeneration breeds next from current. For each adjacent index pair it
// selects the two fittest individuals of the whole current population,
// derives two children by crossover, mutation and inversion, evaluates them
// and keeps whichever pair has the higher combined fitness, preferring the
// parents on ties. With an odd population the trailing slot carries a copy
// of the trailing individual. current is never modified.
func RunGeneration(ctx context.Context, cfg GenerationConfig, current, next []*Individual) error {
	if err := cfg.validate(); err != nil {
		return err
	}
	if len(next) != len(current) {
		return fmt.Errorf("population size mismatch: current=%d next=%d", len(current), len(next))
	}

	for i := 0; i < len(current)-1; i += 2 {
		if err := ctx.Err(); err != nil {
			return err
		}

		parent1, parent2, err := SelectTopTwo(current)
		if err != nil {
			return err
		}
		child1, child2 := parent1.Clone(), parent2.Clone()

		child1.Params, child2.Params, err = Crossover(cfg.Rand, parent1.Params, parent2.Params, cfg.Alpha, cfg.PCrossover)
		if err != nil {
			return err
		}
		child1.Params = Mutate(cfg.Rand, child1.Params, cfg.PMutation)
		child2.Params = Mutate(cfg.Rand, child2.Params, cfg.PMutation)
		if ShouldInvert(cfg.Rand, cfg.PInversion) {
			child1.Params = Invert(child1.Params)
			child2.Params = Invert(child2.Params)
		}

		for _, child := range []*Individual{child1, child2} {
			if err := child.Sync(); err != nil {
				return fmt.Errorf("offspring %d: %w", i, err)
			}
			child.Fitness, child.Params, err = Evaluate(ctx, child.Network, cfg.Env, cfg.Evaluate)
			if err != nil {
				return fmt.Errorf("evaluate offspring %d: %w", i, err)
			}
		}

		if child1.Fitness+child2.Fitness > parent1.Fitness+parent2.Fitness {
			next[i], next[i+1] = child1, child2
		} else {
			next[i], next[i+1] = parent1.Clone(), parent2.Clone()
		}
	}

	if n := len(current); n%2 == 1 {
		next[n-1] = current[n-1].Clone()
	}
	return nil
}

package evo

import (
	"gonum.org/v1/gonum/floats"
	"gonum.org/v1/gonum/stat"
)

// GenerationStats summarises the fitness of one population snapshot.
type GenerationStats struct {
	Generation int     `json:"generation"`
	Mean       float64 `json:"mean_fitness"`
	Min        float64 `json:"min_fitness"`
	Max        float64 `json:"max_fitness"`
}

func Statistics(population []*Individual) GenerationStats {
	if len(population) == 0 {
		return GenerationStats{}
	}
	fitness := make([]float64, len(population))
	for i, ind := range population {
		fitness[i] = ind.Fitness
	}
	return GenerationStats{
		Mean: stat.Mean(fitness, nil),
		Min:  floats.Min(fitness),
		Max:  floats.Max(fitness),
	}
}

// Best returns the fittest individual, the first one on ties.
func Best(population []*Individual) *Individual {
	var best *Individual
	for _, ind := range population {
		if best == nil || ind.Fitness > best.Fitness {
			best = ind
		}
	}
	return best
}

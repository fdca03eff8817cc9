package evo

import (
	"errors"

	"walkerga/internal/nn"
)

// Individual is one candidate policy: a network, its flattened parameter
// vector and the fitness measured in the current generation.
type Individual struct {
	Network nn.Network
	Params  []float64
	Fitness float64
}

func NewIndividual(net nn.Network) (*Individual, error) {
	if net == nil {
		return nil, errors.New("network is required")
	}
	return &Individual{Network: net, Params: nn.Flatten(net)}, nil
}

// Clone returns a deep copy sharing nothing with ind.
func (ind *Individual) Clone() *Individual {
	return &Individual{
		Network: ind.Network.Clone(),
		Params:  append([]float64(nil), ind.Params...),
		Fitness: ind.Fitness,
	}
}

// Sync writes Params back into the network.
func (ind *Individual) Sync() error {
	return nn.Reconstruct(ind.Network, ind.Params)
}

func cloneAll(population []*Individual) []*Individual {
	out := make([]*Individual, len(population))
	for i, ind := range population {
		if ind != nil {
			out[i] = ind.Clone()
		}
	}
	return out
}

package main

import (
	"flag"

	"walkerga/internal/config"
)

// runOverrides holds the run flags that can override a config file. Only
// flags given on the command line are applied.
type runOverrides struct {
	population          *int
	generations         *int
	pMutation           *float64
	pCrossover          *float64
	pInversion          *float64
	alpha               *float64
	seed                *int64
	topology            *string
	params              *string
	env                 *string
	envSeed             *int64
	maxSteps            *int
	verbose             *bool
	checkpointThreshold *float64
	checkpointDir       *string
	logPath             *string
}

func registerRunOverrides(fs *flag.FlagSet) *runOverrides {
	d := config.Default()
	return &runOverrides{
		population:          fs.Int("pop", d.Population.Size, "population size"),
		generations:         fs.Int("gens", d.Population.Generations, "max generations"),
		pMutation:           fs.Float64("p-mutation", d.Population.PMutation, "mutation probability"),
		pCrossover:          fs.Float64("p-crossover", d.Population.PCrossover, "crossover probability"),
		pInversion:          fs.Float64("p-inversion", d.Population.PInversion, "inversion threshold against a standard-normal draw"),
		alpha:               fs.Float64("alpha", d.Population.Alpha, "BLX-alpha extension"),
		seed:                fs.Int64("seed", d.Population.Seed, "random seed for initialisation and operators"),
		topology:            fs.String("topology", config.TopologyString(d.Network.Topology), "layer sizes, e.g. 10-16-12-4"),
		params:              fs.String("params", d.Network.InitialParams, "initial parameter file (.npy)"),
		env:                 fs.String("env", d.Environment.Name, "environment name"),
		envSeed:             fs.Int64("env-seed", d.Environment.Seed, "environment seed"),
		maxSteps:            fs.Int("max-steps", d.Environment.MaxSteps, "max steps per episode"),
		verbose:             fs.Bool("verbose", d.Output.Verbose, "print per-generation stats and save threshold checkpoints"),
		checkpointThreshold: fs.Float64("threshold", d.Output.CheckpointThreshold, "checkpoint when max fitness exceeds this"),
		checkpointDir:       fs.String("checkpoint-dir", d.Output.CheckpointDir, "checkpoint directory (threshold and final parameter saves)"),
		logPath:             fs.String("log", d.Output.LogPath, "fitness log path (empty disables the log)"),
	}
}

func (o *runOverrides) apply(fs *flag.FlagSet, cfg *config.Config) error {
	set := setFlags(fs)
	if set["pop"] {
		cfg.Population.Size = *o.population
	}
	if set["gens"] {
		cfg.Population.Generations = *o.generations
	}
	if set["p-mutation"] {
		cfg.Population.PMutation = *o.pMutation
	}
	if set["p-crossover"] {
		cfg.Population.PCrossover = *o.pCrossover
	}
	if set["p-inversion"] {
		cfg.Population.PInversion = *o.pInversion
	}
	if set["alpha"] {
		cfg.Population.Alpha = *o.alpha
	}
	if set["seed"] {
		cfg.Population.Seed = *o.seed
	}
	if set["topology"] {
		sizes, err := config.ParseTopology(*o.topology)
		if err != nil {
			return err
		}
		cfg.Network.Topology = sizes
	}
	if set["params"] {
		cfg.Network.InitialParams = *o.params
	}
	if set["env"] {
		cfg.Environment.Name = *o.env
	}
	if set["env-seed"] {
		cfg.Environment.Seed = *o.envSeed
	}
	if set["max-steps"] {
		cfg.Environment.MaxSteps = *o.maxSteps
	}
	if set["verbose"] {
		cfg.Output.Verbose = *o.verbose
	}
	if set["threshold"] {
		cfg.Output.CheckpointThreshold = *o.checkpointThreshold
	}
	if set["checkpoint-dir"] {
		cfg.Output.CheckpointDir = *o.checkpointDir
	}
	if set["log"] {
		cfg.Output.LogPath = *o.logPath
	}
	return nil
}

func setFlags(fs *flag.FlagSet) map[string]bool {
	set := make(map[string]bool)
	fs.Visit(func(f *flag.Flag) {
		set[f.Name] = true
	})
	return set
}

func loadOrDefaultConfig(path string) (config.Config, error) {
	if path == "" {
		return config.Default(), nil
	}
	return config.Load(path)
}

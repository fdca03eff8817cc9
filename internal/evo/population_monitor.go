package evo

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"math/rand"
	"time"

	"github.com/ncruces/go-strftime"

	"walkerga/internal/scape"
	"walkerga/internal/stats"
)

const DefaultCheckpointThreshold = 80.0

// Phase is a state of the per-generation state machine.
type Phase string

const (
	PhaseInit          Phase = "init"
	PhaseEvaluating    Phase = "evaluating"
	PhaseBreeding      Phase = "breeding"
	PhaseLogging       Phase = "logging"
	PhaseCheckpointing Phase = "checkpointing"
	PhaseAdvancing     Phase = "advancing"
	PhaseDone          Phase = "done"
)

// GenerationRecorder receives the statistics of every bred generation.
type GenerationRecorder interface {
	RecordGeneration(ctx context.Context, stats GenerationStats) error
}

type RecorderFunc func(ctx context.Context, stats GenerationStats) error

func (f RecorderFunc) RecordGeneration(ctx context.Context, stats GenerationStats) error {
	return f(ctx, stats)
}

// Checkpointer persists the parameters of the best individual. score is
// empty for the final checkpoint.
type Checkpointer interface {
	SaveBest(ctx context.Context, iteration int, score string, params []float64) (string, error)
}

type PhaseObserver func(generation int, phase Phase)

type MonitorConfig struct {
	Env            scape.Environment
	PopulationSize int
	Generations    int
	PMutation      float64
	PCrossover     float64
	PInversion     float64
	Alpha          float64
	Evaluate       EvaluateOptions
	Seed           int64
	Rand           *rand.Rand

	// Recorders enable the logging phase.
	Recorders []GenerationRecorder
	// Verbose enables the stats line and threshold checkpoints.
	Verbose             bool
	CheckpointThreshold float64
	Checkpointer        Checkpointer

	Out      io.Writer
	Now      func() time.Time
	Logger   *slog.Logger
	Observer PhaseObserver
}

type RunResult struct {
	History         []GenerationStats
	FinalPopulation []*Individual
	Best            *Individual
	Checkpoints     []string
}

type PopulationMonitor struct {
	cfg MonitorConfig
	rng *rand.Rand
}

func NewPopulationMonitor(cfg MonitorConfig) (*PopulationMonitor, error) {
	if cfg.Env == nil {
		return nil, fmt.Errorf("environment is required")
	}
	if cfg.PopulationSize <= 0 {
		return nil, fmt.Errorf("population size must be > 0")
	}
	if cfg.Generations <= 0 {
		return nil, fmt.Errorf("generations must be > 0")
	}
	for i, r := range cfg.Recorders {
		if r == nil {
			return nil, fmt.Errorf("recorder %d is nil", i)
		}
	}
	if cfg.Out == nil {
		cfg.Out = io.Discard
	}
	if cfg.Now == nil {
		cfg.Now = time.Now
	}
	if cfg.Logger == nil {
		cfg.Logger = slog.New(slog.NewTextHandler(io.Discard, nil))
	}

	rng := cfg.Rand
	if rng == nil {
		rng = rand.New(rand.NewSource(cfg.Seed))
	}
	return &PopulationMonitor{cfg: cfg, rng: rng}, nil
}

// Run evolves a population of clones of seed for the configured number of
// generations.
func (m *PopulationMonitor) Run(ctx context.Context, seed *Individual) (RunResult, error) {
	if seed == nil {
		return RunResult{}, errors.New("seed individual is required")
	}

	m.enter(0, PhaseInit)
	if err := seed.Sync(); err != nil {
		return RunResult{}, fmt.Errorf("seed individual: %w", err)
	}
	current := make([]*Individual, m.cfg.PopulationSize)
	for i := range current {
		ind := seed.Clone()
		ind.Fitness = 0
		current[i] = ind
	}
	next := make([]*Individual, m.cfg.PopulationSize)

	result := RunResult{History: make([]GenerationStats, 0, m.cfg.Generations)}
	for gen := 0; gen < m.cfg.Generations; gen++ {
		if err := ctx.Err(); err != nil {
			return RunResult{}, err
		}

		m.enter(gen, PhaseEvaluating)
		if err := m.evaluatePopulation(ctx, current); err != nil {
			return RunResult{}, fmt.Errorf("generation %d: %w", gen, err)
		}

		m.enter(gen, PhaseBreeding)
		if err := RunGeneration(ctx, m.generationConfig(), current, next); err != nil {
			return RunResult{}, fmt.Errorf("generation %d: %w", gen, err)
		}
		summary := Statistics(next)
		summary.Generation = gen
		result.History = append(result.History, summary)
		m.cfg.Logger.Debug("generation bred",
			"generation", gen,
			"mean", summary.Mean,
			"min", summary.Min,
			"max", summary.Max,
		)

		if len(m.cfg.Recorders) > 0 {
			m.enter(gen, PhaseLogging)
			for _, recorder := range m.cfg.Recorders {
				if err := recorder.RecordGeneration(ctx, summary); err != nil {
					return RunResult{}, fmt.Errorf("record generation %d: %w", gen, err)
				}
			}
		}

		if m.cfg.Verbose {
			m.enter(gen, PhaseCheckpointing)
			fmt.Fprintf(m.cfg.Out, "%s - generation %d | mean: %s\tmin: %s\tmax: %s\n\n",
				strftime.Format("%m-%d-%Y_%H-%M", m.cfg.Now()),
				gen+1,
				stats.FormatFloat(summary.Mean),
				stats.FormatFloat(summary.Min),
				stats.FormatFloat(summary.Max),
			)
			if summary.Max > m.cfg.CheckpointThreshold && m.cfg.Checkpointer != nil {
				path, err := m.cfg.Checkpointer.SaveBest(ctx, gen, stats.FormatFloat(summary.Max), Best(next).Params)
				if err != nil {
					return RunResult{}, fmt.Errorf("checkpoint generation %d: %w", gen, err)
				}
				m.cfg.Logger.Info("checkpoint saved", "generation", gen, "score", summary.Max, "path", path)
				result.Checkpoints = append(result.Checkpoints, path)
			}
		}

		m.enter(gen, PhaseAdvancing)
		current = cloneAll(next)
	}

	m.enter(m.cfg.Generations, PhaseDone)
	best := Best(current)
	if m.cfg.Checkpointer != nil {
		path, err := m.cfg.Checkpointer.SaveBest(ctx, m.cfg.Generations, "", best.Params)
		if err != nil {
			return RunResult{}, fmt.Errorf("final checkpoint: %w", err)
		}
		m.cfg.Logger.Info("final parameters saved", "fitness", best.Fitness, "path", path)
		result.Checkpoints = append(result.Checkpoints, path)
	}

	result.FinalPopulation = current
	result.Best = best
	return result, nil
}

func (m *PopulationMonitor) evaluatePopulation(ctx context.Context, population []*Individual) error {
	for i, ind := range population {
		fitness, params, err := Evaluate(ctx, ind.Network, m.cfg.Env, m.cfg.Evaluate)
		if err != nil {
			return fmt.Errorf("evaluate individual %d: %w", i, err)
		}
		ind.Fitness = fitness
		ind.Params = params
	}
	return nil
}

func (m *PopulationMonitor) generationConfig() GenerationConfig {
	return GenerationConfig{
		Env:        m.cfg.Env,
		Rand:       m.rng,
		PMutation:  m.cfg.PMutation,
		PCrossover: m.cfg.PCrossover,
		PInversion: m.cfg.PInversion,
		Alpha:      m.cfg.Alpha,
		Evaluate:   m.cfg.Evaluate,
	}
}

func (m *PopulationMonitor) enter(generation int, phase Phase) {
	if m.cfg.Observer != nil {
		m.cfg.Observer(generation, phase)
	}
}

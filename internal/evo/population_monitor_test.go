package evo

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"reflect"
	"strings"
	"testing"
	"time"
)

type checkpointCall struct {
	iteration int
	score     string
	params    []float64
}

type recordingCheckpointer struct {
	calls []checkpointCall
}

func (c *recordingCheckpointer) SaveBest(_ context.Context, iteration int, score string, params []float64) (string, error) {
	c.calls = append(c.calls, checkpointCall{
		iteration: iteration,
		score:     score,
		params:    append([]float64(nil), params...),
	})
	return fmt.Sprintf("ckpt-%d.npy", len(c.calls)), nil
}

func TestPopulationMonitorPhaseOrder(t *testing.T) {
	var phases []Phase
	monitor, err := NewPopulationMonitor(MonitorConfig{
		Env:            newStubEnv(),
		PopulationSize: 2,
		Generations:    1,
		Seed:           1,
		Verbose:        true,
		Recorders: []GenerationRecorder{RecorderFunc(func(context.Context, GenerationStats) error {
			return nil
		})},
		Observer: func(_ int, phase Phase) { phases = append(phases, phase) },
	})
	if err != nil {
		t.Fatalf("new monitor: %v", err)
	}
	if _, err := monitor.Run(context.Background(), newLinearIndividual(t, 1, 0)); err != nil {
		t.Fatalf("run: %v", err)
	}

	want := []Phase{PhaseInit, PhaseEvaluating, PhaseBreeding, PhaseLogging, PhaseCheckpointing, PhaseAdvancing, PhaseDone}
	if !reflect.DeepEqual(phases, want) {
		t.Fatalf("expected phases %v, got %v", want, phases)
	}
}

func TestPopulationMonitorSkipsOptionalPhases(t *testing.T) {
	var phases []Phase
	monitor, err := NewPopulationMonitor(MonitorConfig{
		Env:            newStubEnv(),
		PopulationSize: 2,
		Generations:    1,
		Observer:       func(_ int, phase Phase) { phases = append(phases, phase) },
	})
	if err != nil {
		t.Fatalf("new monitor: %v", err)
	}
	if _, err := monitor.Run(context.Background(), newLinearIndividual(t, 1, 0)); err != nil {
		t.Fatalf("run: %v", err)
	}
	want := []Phase{PhaseInit, PhaseEvaluating, PhaseBreeding, PhaseAdvancing, PhaseDone}
	if !reflect.DeepEqual(phases, want) {
		t.Fatalf("expected phases %v, got %v", want, phases)
	}
}

func TestPopulationMonitorRecordsEveryGeneration(t *testing.T) {
	var recorded []GenerationStats
	monitor, err := NewPopulationMonitor(MonitorConfig{
		Env:            newStubEnv(),
		PopulationSize: 4,
		Generations:    3,
		Seed:           7,
		Recorders: []GenerationRecorder{RecorderFunc(func(_ context.Context, stats GenerationStats) error {
			recorded = append(recorded, stats)
			return nil
		})},
	})
	if err != nil {
		t.Fatalf("new monitor: %v", err)
	}
	result, err := monitor.Run(context.Background(), newLinearIndividual(t, 2, 1))
	if err != nil {
		t.Fatalf("run: %v", err)
	}

	if len(recorded) != 3 || len(result.History) != 3 {
		t.Fatalf("expected 3 records, got %d recorded and %d history", len(recorded), len(result.History))
	}
	for i, stats := range recorded {
		if stats.Generation != i {
			t.Fatalf("record %d has generation %d", i, stats.Generation)
		}
		if stats != result.History[i] {
			t.Fatalf("record %d differs from history: %+v vs %+v", i, stats, result.History[i])
		}
		if stats.Mean != 3 || stats.Min != 3 || stats.Max != 3 {
			t.Fatalf("expected clone population to score 3, got %+v", stats)
		}
	}
	if len(result.FinalPopulation) != 4 || result.Best == nil || result.Best.Fitness != 3 {
		t.Fatalf("unexpected final result: %+v", result)
	}
}

func TestPopulationMonitorRecorderErrorAborts(t *testing.T) {
	sentinel := errors.New("disk full")
	monitor, err := NewPopulationMonitor(MonitorConfig{
		Env:            newStubEnv(),
		PopulationSize: 2,
		Generations:    2,
		Recorders: []GenerationRecorder{RecorderFunc(func(context.Context, GenerationStats) error {
			return sentinel
		})},
	})
	if err != nil {
		t.Fatalf("new monitor: %v", err)
	}
	if _, err := monitor.Run(context.Background(), newLinearIndividual(t, 1, 0)); !errors.Is(err, sentinel) {
		t.Fatalf("expected recorder error, got %v", err)
	}
}

func TestPopulationMonitorCheckpointsAboveThreshold(t *testing.T) {
	checkpointer := &recordingCheckpointer{}
	monitor, err := NewPopulationMonitor(MonitorConfig{
		Env:                 newStubEnv(),
		PopulationSize:      2,
		Generations:         2,
		Seed:                3,
		Verbose:             true,
		CheckpointThreshold: DefaultCheckpointThreshold,
		Checkpointer:        checkpointer,
	})
	if err != nil {
		t.Fatalf("new monitor: %v", err)
	}
	result, err := monitor.Run(context.Background(), newLinearIndividual(t, 60, 40))
	if err != nil {
		t.Fatalf("run: %v", err)
	}

	want := []struct {
		iteration int
		score     string
	}{{0, "100.0"}, {1, "100.0"}, {2, ""}}
	if len(checkpointer.calls) != len(want) {
		t.Fatalf("expected %d checkpoints, got %d", len(want), len(checkpointer.calls))
	}
	for i, call := range checkpointer.calls {
		if call.iteration != want[i].iteration || call.score != want[i].score {
			t.Fatalf("checkpoint %d: expected (%d, %q), got (%d, %q)", i, want[i].iteration, want[i].score, call.iteration, call.score)
		}
		if !equalVectors(call.params, []float64{60, 40}) {
			t.Fatalf("checkpoint %d saved unexpected params %v", i, call.params)
		}
	}
	if len(result.Checkpoints) != 3 || result.Checkpoints[2] != "ckpt-3.npy" {
		t.Fatalf("unexpected checkpoint paths: %v", result.Checkpoints)
	}
}

func TestPopulationMonitorFinalCheckpointOnlyBelowThreshold(t *testing.T) {
	checkpointer := &recordingCheckpointer{}
	monitor, err := NewPopulationMonitor(MonitorConfig{
		Env:                 newStubEnv(),
		PopulationSize:      2,
		Generations:         3,
		Verbose:             true,
		CheckpointThreshold: DefaultCheckpointThreshold,
		Checkpointer:        checkpointer,
	})
	if err != nil {
		t.Fatalf("new monitor: %v", err)
	}
	if _, err := monitor.Run(context.Background(), newLinearIndividual(t, 1, 0)); err != nil {
		t.Fatalf("run: %v", err)
	}
	if len(checkpointer.calls) != 1 || checkpointer.calls[0].iteration != 3 || checkpointer.calls[0].score != "" {
		t.Fatalf("expected only the final checkpoint, got %+v", checkpointer.calls)
	}
}

func TestPopulationMonitorVerboseLine(t *testing.T) {
	var out bytes.Buffer
	monitor, err := NewPopulationMonitor(MonitorConfig{
		Env:            newStubEnv(),
		PopulationSize: 2,
		Generations:    2,
		Verbose:        true,
		Out:            &out,
		Now: func() time.Time {
			return time.Date(2026, time.January, 2, 15, 4, 5, 0, time.UTC)
		},
	})
	if err != nil {
		t.Fatalf("new monitor: %v", err)
	}
	if _, err := monitor.Run(context.Background(), newLinearIndividual(t, 1.5, 0)); err != nil {
		t.Fatalf("run: %v", err)
	}

	want := "01-02-2026_15-04 - generation 1 | mean: 1.5\tmin: 1.5\tmax: 1.5\n\n" +
		"01-02-2026_15-04 - generation 2 | mean: 1.5\tmin: 1.5\tmax: 1.5\n\n"
	if out.String() != want {
		t.Fatalf("unexpected verbose output:\n%q\nwant\n%q", out.String(), want)
	}
}

func TestPopulationMonitorQuietWithoutVerbose(t *testing.T) {
	var out bytes.Buffer
	monitor, err := NewPopulationMonitor(MonitorConfig{
		Env:            newStubEnv(),
		PopulationSize: 2,
		Generations:    2,
		Out:            &out,
	})
	if err != nil {
		t.Fatalf("new monitor: %v", err)
	}
	if _, err := monitor.Run(context.Background(), newLinearIndividual(t, 1, 0)); err != nil {
		t.Fatalf("run: %v", err)
	}
	if strings.Contains(out.String(), "generation") {
		t.Fatalf("expected no stats lines, got %q", out.String())
	}
}

func TestPopulationMonitorCancelledContext(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	monitor, err := NewPopulationMonitor(MonitorConfig{
		Env:            newStubEnv(),
		PopulationSize: 2,
		Generations:    5,
	})
	if err != nil {
		t.Fatalf("new monitor: %v", err)
	}
	if _, err := monitor.Run(ctx, newLinearIndividual(t, 1, 0)); !errors.Is(err, context.Canceled) {
		t.Fatalf("expected context.Canceled, got %v", err)
	}
}

func TestNewPopulationMonitorValidation(t *testing.T) {
	cases := []MonitorConfig{
		{PopulationSize: 2, Generations: 1},
		{Env: newStubEnv(), Generations: 1},
		{Env: newStubEnv(), PopulationSize: 2},
		{Env: newStubEnv(), PopulationSize: 2, Generations: 1, Recorders: []GenerationRecorder{nil}},
	}
	for i, cfg := range cases {
		if _, err := NewPopulationMonitor(cfg); err == nil {
			t.Fatalf("case %d: expected validation error", i)
		}
	}
}

func TestPopulationMonitorKeepsPopulationSize(t *testing.T) {
	for _, size := range []int{1, 3, 5} {
		ckpt := &recordingCheckpointer{}
		monitor, err := NewPopulationMonitor(MonitorConfig{
			Env:            newStubEnv(),
			PopulationSize: size,
			Generations:    3,
			PMutation:      0.6,
			PCrossover:     0.85,
			PInversion:     1e-20,
			Alpha:          DefaultAlpha,
			Evaluate:       EvaluateOptions{MaxSteps: 10},
			Seed:           int64(size),
			Checkpointer:   ckpt,
		})
		if err != nil {
			t.Fatalf("size %d: new monitor: %v", size, err)
		}
		result, err := monitor.Run(context.Background(), newLinearIndividual(t, 1, 0))
		if err != nil {
			t.Fatalf("size %d: run: %v", size, err)
		}
		if len(result.FinalPopulation) != size {
			t.Fatalf("size %d: final population has %d individuals", size, len(result.FinalPopulation))
		}
		seen := map[*Individual]bool{}
		for i, ind := range result.FinalPopulation {
			if ind == nil || len(ind.Params) != 2 {
				t.Fatalf("size %d: slot %d not filled: %+v", size, i, ind)
			}
			if seen[ind] {
				t.Fatalf("size %d: slot %d aliases another slot", size, i)
			}
			seen[ind] = true
		}
		if len(result.History) != 3 {
			t.Fatalf("size %d: expected 3 generations, got %d", size, len(result.History))
		}
		if len(ckpt.calls) != 1 || ckpt.calls[0].score != "" {
			t.Fatalf("size %d: expected only the final checkpoint, got %+v", size, ckpt.calls)
		}
		if size == 1 {
			best := result.Best
			if best.Fitness != 1 || !equalVectors(best.Params, []float64{1, 0}) {
				t.Fatalf("single individual must carry forward unchanged, got %+v", best)
			}
		}
	}
}

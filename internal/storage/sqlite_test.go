//go:build sqlite

package storage

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"walkerga/internal/model"
)

func newTestSQLiteStore(t *testing.T) *SQLiteStore {
	t.Helper()
	store := NewSQLiteStore(filepath.Join(t.TempDir(), "walkerga.db"))
	if err := store.Init(context.Background()); err != nil {
		t.Fatalf("init: %v", err)
	}
	t.Cleanup(func() {
		_ = store.Close()
	})
	return store
}

func TestSQLiteStoreRunRoundTrip(t *testing.T) {
	ctx := context.Background()
	store := newTestSQLiteStore(t)

	run := model.RunRecord{
		VersionedRecord: Versioned(),
		ID:              "run-1",
		Environment:     "walker-lite",
		Topology:        []int{24, 16, 12, 4},
		PopulationSize:  30,
		Status:          model.RunStatusRunning,
		CreatedAt:       time.Date(2026, time.June, 1, 12, 0, 0, 0, time.UTC),
	}
	if err := store.SaveRun(ctx, run); err != nil {
		t.Fatalf("save run: %v", err)
	}

	run.Status = model.RunStatusFinished
	run.BestFitness = 55.5
	if err := store.SaveRun(ctx, run); err != nil {
		t.Fatalf("update run: %v", err)
	}

	loaded, ok, err := store.GetRun(ctx, "run-1")
	if err != nil {
		t.Fatalf("get run: %v", err)
	}
	if !ok {
		t.Fatal("expected run-1")
	}
	if loaded.Status != model.RunStatusFinished || loaded.BestFitness != 55.5 || len(loaded.Topology) != 4 {
		t.Fatalf("unexpected run loaded: %+v", loaded)
	}

	if _, ok, err := store.GetRun(ctx, "missing"); err != nil || ok {
		t.Fatalf("expected missing run, got ok=%t err=%v", ok, err)
	}
}

func TestSQLiteStoreListRunsNewestFirst(t *testing.T) {
	ctx := context.Background()
	store := newTestSQLiteStore(t)
	base := time.Date(2026, time.June, 1, 0, 0, 0, 0, time.UTC)
	for i, id := range []string{"a", "b", "c"} {
		run := model.RunRecord{VersionedRecord: Versioned(), ID: id, CreatedAt: base.Add(time.Duration(i) * time.Minute)}
		if err := store.SaveRun(ctx, run); err != nil {
			t.Fatalf("save run %s: %v", id, err)
		}
	}

	runs, err := store.ListRuns(ctx)
	if err != nil {
		t.Fatalf("list runs: %v", err)
	}
	if len(runs) != 3 || runs[0].ID != "c" || runs[2].ID != "a" {
		t.Fatalf("unexpected run order: %+v", runs)
	}
}

func TestSQLiteStoreGenerations(t *testing.T) {
	ctx := context.Background()
	store := newTestSQLiteStore(t)

	for _, gen := range []int{2, 0, 1} {
		record := model.GenerationRecord{Generation: gen, Mean: float64(gen) + 0.5}
		if err := store.AppendGeneration(ctx, "run-1", record); err != nil {
			t.Fatalf("append generation %d: %v", gen, err)
		}
	}

	generations, ok, err := store.GetGenerations(ctx, "run-1")
	if err != nil {
		t.Fatalf("get generations: %v", err)
	}
	if !ok || len(generations) != 3 {
		t.Fatalf("expected 3 generations, got %+v", generations)
	}
	for i, g := range generations {
		if g.Generation != i || g.Mean != float64(i)+0.5 {
			t.Fatalf("unexpected generation at %d: %+v", i, g)
		}
	}

	if _, ok, err := store.GetGenerations(ctx, "other"); err != nil || ok {
		t.Fatalf("expected no generations for other run, got ok=%t err=%v", ok, err)
	}
}

func TestSQLiteStoreRequiresPath(t *testing.T) {
	if err := NewSQLiteStore("").Init(context.Background()); err == nil {
		t.Fatal("expected missing path error")
	}
}

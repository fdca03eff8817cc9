package main

import (
	"flag"
	"os"
	"path/filepath"
	"reflect"
	"testing"
)

func parseRunFlags(t *testing.T, args []string) (*flag.FlagSet, *runOverrides) {
	t.Helper()
	fs := flag.NewFlagSet("run", flag.ContinueOnError)
	overrides := registerRunOverrides(fs)
	if err := fs.Parse(args); err != nil {
		t.Fatalf("parse flags: %v", err)
	}
	return fs, overrides
}

func TestRunOverridesOnlyApplySetFlags(t *testing.T) {
	path := filepath.Join(t.TempDir(), "run.yaml")
	content := "population:\n  size: 10\n  p_mutation: 0.2\nenvironment:\n  name: cart-pole-lite\n"
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatalf("write config: %v", err)
	}
	cfg, err := loadOrDefaultConfig(path)
	if err != nil {
		t.Fatalf("load config: %v", err)
	}

	fs, overrides := parseRunFlags(t, []string{"--gens", "25", "--topology", "2x8x1", "--p-inversion", "-1"})
	if err := overrides.apply(fs, &cfg); err != nil {
		t.Fatalf("apply overrides: %v", err)
	}

	if cfg.Population.Size != 10 || cfg.Population.PMutation != 0.2 {
		t.Fatalf("file values were overwritten: %+v", cfg.Population)
	}
	if cfg.Population.Generations != 25 || cfg.Population.PInversion != -1 {
		t.Fatalf("flag values not applied: %+v", cfg.Population)
	}
	if !reflect.DeepEqual(cfg.Network.Topology, []int{2, 8, 1}) {
		t.Fatalf("unexpected topology: %v", cfg.Network.Topology)
	}
	if cfg.Environment.Name != "cart-pole-lite" {
		t.Fatalf("unexpected env: %s", cfg.Environment.Name)
	}
}

func TestRunOverridesRejectBadTopology(t *testing.T) {
	cfg, err := loadOrDefaultConfig("")
	if err != nil {
		t.Fatalf("default config: %v", err)
	}
	fs, overrides := parseRunFlags(t, []string{"--topology", "2-x-1"})
	if err := overrides.apply(fs, &cfg); err == nil {
		t.Fatal("expected topology parse error")
	}
}

func TestSetFlags(t *testing.T) {
	fs, _ := parseRunFlags(t, []string{"--pop", "4", "--verbose=false"})
	set := setFlags(fs)
	if !set["pop"] || !set["verbose"] || set["gens"] {
		t.Fatalf("unexpected set flags: %v", set)
	}
}

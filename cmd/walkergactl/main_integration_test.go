//go:build sqlite

package main

import (
	"context"
	"os"
	"path/filepath"
	"testing"
)

func TestRunCommandSQLitePersistsRuns(t *testing.T) {
	workdir := chdirTemp(t)
	dbPath := filepath.Join(workdir, "walkerga.db")

	args := []string{
		"run",
		"--store", "sqlite",
		"--db-path", dbPath,
		"--run-id", "sqlite-run",
		"--env", "cart-pole-lite",
		"--topology", "2-4-1",
		"--pop", "4",
		"--gens", "3",
		"--verbose=false",
		"--log-level", "error",
	}
	if err := run(context.Background(), args); err != nil {
		t.Fatalf("run command: %v", err)
	}
	if _, err := os.Stat(dbPath); err != nil {
		t.Fatalf("expected sqlite db at %s: %v", dbPath, err)
	}

	if err := run(context.Background(), []string{"runs", "--store", "sqlite", "--db-path", dbPath, "--json"}); err != nil {
		t.Fatalf("runs command: %v", err)
	}
	if err := run(context.Background(), []string{"history", "--store", "sqlite", "--db-path", dbPath, "--run-id", "sqlite-run"}); err != nil {
		t.Fatalf("history command: %v", err)
	}
	if err := run(context.Background(), []string{"history", "--store", "sqlite", "--db-path", dbPath, "--latest", "--limit", "1"}); err != nil {
		t.Fatalf("latest history command: %v", err)
	}
}

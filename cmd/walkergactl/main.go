package main

import (
	"context"
	"encoding/json"
	"errors"
	"flag"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"path/filepath"
	"strings"
	"syscall"
	"time"

	"github.com/dustin/go-humanize"
	"github.com/mattn/go-isatty"

	"walkerga/internal/config"
	"walkerga/internal/render"
	"walkerga/internal/scape"
	"walkerga/internal/stats"
	"walkerga/internal/storage"
	walkerapi "walkerga/pkg/walkerga"
)

const defaultDBPath = "walkerga.db"

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := run(ctx, os.Args[1:]); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func run(ctx context.Context, args []string) error {
	if len(args) == 0 {
		return usageError("missing command")
	}

	switch args[0] {
	case "run":
		return runRun(ctx, args[1:])
	case "replay":
		return runReplay(ctx, args[1:])
	case "init-params":
		return runInitParams(ctx, args[1:])
	case "runs":
		return runRuns(ctx, args[1:])
	case "history":
		return runHistory(ctx, args[1:])
	case "plot":
		return runPlot(ctx, args[1:])
	case "envs":
		return runEnvs(ctx, args[1:])
	default:
		return usageError(fmt.Sprintf("unknown command: %s", args[0]))
	}
}

func runRun(ctx context.Context, args []string) error {
	fs := flag.NewFlagSet("run", flag.ContinueOnError)
	configPath := fs.String("config", "", "run config file (.ini, .yaml or .yml)")
	storeKind := fs.String("store", storage.DefaultStoreKind(), "store backend: memory|sqlite")
	dbPath := fs.String("db-path", defaultDBPath, "sqlite database path")
	runID := fs.String("run-id", "", "explicit run id (optional)")
	logLevel := fs.String("log-level", "info", "log level: debug|info|warn|error")
	renderFlag := fs.Bool("render", false, "draw every training episode in the terminal")
	overrides := registerRunOverrides(fs)
	if err := fs.Parse(args); err != nil {
		return err
	}

	cfg, err := loadOrDefaultConfig(*configPath)
	if err != nil {
		return err
	}
	if err := overrides.apply(fs, &cfg); err != nil {
		return err
	}
	set := setFlags(fs)
	if set["store"] || cfg.Output.Store == "" {
		cfg.Output.Store = *storeKind
	}
	if set["db-path"] || cfg.Output.DBPath == "" {
		cfg.Output.DBPath = *dbPath
	}
	if err := cfg.Validate(); err != nil {
		return err
	}

	logger, err := newLogger(*logLevel)
	if err != nil {
		return err
	}
	client, err := walkerapi.New(walkerapi.Options{
		StoreKind: cfg.Output.Store,
		DBPath:    cfg.Output.DBPath,
		Logger:    logger,
		Out:       os.Stdout,
	})
	if err != nil {
		return err
	}
	defer func() {
		_ = client.Close()
	}()

	req := walkerapi.RunRequest{Config: cfg, RunID: *runID}
	if *renderFlag || cfg.Environment.Render {
		if !stdoutIsTerminal() {
			logger.Warn("stdout is not a terminal; rendering disabled")
		} else {
			term, err := newTerminal(0)
			if err != nil {
				return err
			}
			defer term.Close()
			req.Renderer = term
			ctx = cancelOnQuit(ctx, term)
		}
	}

	started := time.Now()
	summary, err := client.Run(ctx, req)
	if err != nil {
		return err
	}

	fmt.Printf("run_id=%s env=%s network=%s generations=%d\n", summary.RunID, cfg.Environment.Name, summary.Network, len(summary.History))
	fmt.Printf("best_fitness=%.6f elapsed=%s\n", summary.BestFitness, time.Since(started).Round(time.Millisecond))
	if len(summary.Checkpoints) > 0 {
		fmt.Printf("checkpoint=%s\n", summary.Checkpoints[len(summary.Checkpoints)-1])
	}
	if summary.LogPath != "" {
		fmt.Printf("log=%s\n", summary.LogPath)
	}
	return nil
}

func runReplay(ctx context.Context, args []string) error {
	defaults := config.Default()
	fs := flag.NewFlagSet("replay", flag.ContinueOnError)
	paramsPath := fs.String("params", "", "parameter file (.npy)")
	envName := fs.String("env", defaults.Environment.Name, "environment name")
	envSeed := fs.Int64("env-seed", defaults.Environment.Seed, "environment seed")
	topology := fs.String("topology", config.TopologyString(defaults.Network.Topology), "layer sizes, e.g. 10-16-12-4")
	maxSteps := fs.Int("max-steps", defaults.Environment.MaxSteps, "max steps per episode")
	episodes := fs.Int("episodes", 1, "number of episodes")
	renderFlag := fs.Bool("render", true, "draw the episode in the terminal")
	fps := fs.Int("fps", 50, "frames per second while rendering")
	logLevel := fs.String("log-level", "info", "log level: debug|info|warn|error")
	if err := fs.Parse(args); err != nil {
		return err
	}
	if *paramsPath == "" {
		return errors.New("replay requires --params")
	}
	if *episodes <= 0 {
		return errors.New("episodes must be > 0")
	}
	sizes, err := config.ParseTopology(*topology)
	if err != nil {
		return err
	}

	logger, err := newLogger(*logLevel)
	if err != nil {
		return err
	}
	client, err := walkerapi.New(walkerapi.Options{StoreKind: "memory", Logger: logger})
	if err != nil {
		return err
	}
	defer func() {
		_ = client.Close()
	}()

	req := walkerapi.ReplayRequest{
		Environment: *envName,
		Seed:        *envSeed,
		Topology:    sizes,
		ParamsPath:  *paramsPath,
		MaxSteps:    *maxSteps,
		Episodes:    *episodes,
	}
	var term *render.Terminal
	if *renderFlag {
		if !stdoutIsTerminal() {
			logger.Warn("stdout is not a terminal; rendering disabled")
		} else {
			var delay time.Duration
			if *fps > 0 {
				delay = time.Second / time.Duration(*fps)
			}
			term, err = newTerminal(delay)
			if err != nil {
				return err
			}
			defer term.Close()
			req.Renderer = term
			ctx = cancelOnQuit(ctx, term)
		}
	}

	summary, err := client.Replay(ctx, req)
	if term != nil {
		quit := quitRequested(term)
		_ = term.Close()
		if err != nil && quit {
			return nil
		}
	}
	if err != nil {
		return err
	}
	for i, ret := range summary.Returns {
		fmt.Printf("episode=%d return=%.6f\n", i+1, ret)
	}
	fmt.Printf("network=%s mean_return=%.6f\n", summary.Network, summary.Mean)
	return nil
}

func runInitParams(_ context.Context, args []string) error {
	defaults := config.Default()
	fs := flag.NewFlagSet("init-params", flag.ContinueOnError)
	topology := fs.String("topology", config.TopologyString(defaults.Network.Topology), "layer sizes, e.g. 10-16-12-4")
	seed := fs.Int64("seed", defaults.Population.Seed, "random seed")
	out := fs.String("out", filepath.Join(defaults.Output.CheckpointDir, "init.npy"), "output parameter file")
	if err := fs.Parse(args); err != nil {
		return err
	}
	sizes, err := config.ParseTopology(*topology)
	if err != nil {
		return err
	}

	client, err := walkerapi.New(walkerapi.Options{StoreKind: "memory"})
	if err != nil {
		return err
	}
	defer func() {
		_ = client.Close()
	}()

	n, err := client.InitParams(walkerapi.InitParamsRequest{Topology: sizes, Seed: *seed, Path: *out})
	if err != nil {
		return err
	}
	fmt.Printf("wrote %s parameters to %s\n", humanize.Comma(int64(n)), *out)
	return nil
}

func runRuns(ctx context.Context, args []string) error {
	fs := flag.NewFlagSet("runs", flag.ContinueOnError)
	storeKind := fs.String("store", storage.DefaultStoreKind(), "store backend: memory|sqlite")
	dbPath := fs.String("db-path", defaultDBPath, "sqlite database path")
	limit := fs.Int("limit", 20, "max runs to list")
	jsonOut := fs.Bool("json", false, "emit runs list as JSON")
	if err := fs.Parse(args); err != nil {
		return err
	}
	if *limit <= 0 {
		return errors.New("limit must be > 0")
	}

	client, err := walkerapi.New(walkerapi.Options{StoreKind: *storeKind, DBPath: *dbPath})
	if err != nil {
		return err
	}
	defer func() {
		_ = client.Close()
	}()

	runs, err := client.Runs(ctx, walkerapi.RunsRequest{Limit: *limit})
	if err != nil {
		return err
	}
	if *jsonOut {
		return writeJSON(runs)
	}
	if len(runs) == 0 {
		fmt.Println("no runs found")
		return nil
	}
	for _, r := range runs {
		fmt.Printf("run_id=%s created=%s status=%s env=%s topology=%s pop=%s gens=%s best=%.6f\n",
			r.ID,
			humanize.Time(r.CreatedAt),
			r.Status,
			r.Environment,
			config.TopologyString(r.Topology),
			humanize.Comma(int64(r.PopulationSize)),
			humanize.Comma(int64(r.Generations)),
			r.BestFitness,
		)
	}
	return nil
}

func runHistory(ctx context.Context, args []string) error {
	fs := flag.NewFlagSet("history", flag.ContinueOnError)
	storeKind := fs.String("store", storage.DefaultStoreKind(), "store backend: memory|sqlite")
	dbPath := fs.String("db-path", defaultDBPath, "sqlite database path")
	runID := fs.String("run-id", "", "run id")
	latest := fs.Bool("latest", false, "use latest run")
	limit := fs.Int("limit", 0, "max generations to print (0 = all)")
	jsonOut := fs.Bool("json", false, "emit history as JSON")
	if err := fs.Parse(args); err != nil {
		return err
	}

	client, err := walkerapi.New(walkerapi.Options{StoreKind: *storeKind, DBPath: *dbPath})
	if err != nil {
		return err
	}
	defer func() {
		_ = client.Close()
	}()

	history, err := client.History(ctx, walkerapi.HistoryRequest{RunID: *runID, Latest: *latest, Limit: *limit})
	if err != nil {
		return err
	}
	if *jsonOut {
		return writeJSON(history)
	}
	for _, g := range history {
		fmt.Printf("generation=%d mean=%.6f min=%.6f max=%.6f at=%s\n",
			g.Generation+1, g.Mean, g.Min, g.Max, g.Timestamp.Format(time.RFC3339))
	}
	return nil
}

func runPlot(_ context.Context, args []string) error {
	defaults := config.Default()
	fs := flag.NewFlagSet("plot", flag.ContinueOnError)
	logPath := fs.String("log", defaults.Output.LogPath, "fitness log (CSV)")
	out := fs.String("out", "fitness.png", "output image (.png, .svg, .pdf)")
	title := fs.String("title", "", "plot title (defaults to the log file name)")
	if err := fs.Parse(args); err != nil {
		return err
	}

	rows, err := stats.ReadFitnessLog(*logPath)
	if err != nil {
		return err
	}
	if *title == "" {
		*title = strings.TrimSuffix(filepath.Base(*logPath), filepath.Ext(*logPath))
	}
	if err := stats.PlotFitness(rows, *title, *out); err != nil {
		return err
	}

	info, err := os.Stat(*out)
	if err != nil {
		return err
	}
	fmt.Printf("plotted %d generations to %s (%s)\n", len(rows), *out, humanize.Bytes(uint64(info.Size())))
	return nil
}

func runEnvs(_ context.Context, args []string) error {
	fs := flag.NewFlagSet("envs", flag.ContinueOnError)
	if err := fs.Parse(args); err != nil {
		return err
	}
	for _, name := range scape.Names() {
		env, err := scape.New(name, 0)
		if err != nil {
			return err
		}
		fmt.Printf("%s observation=%d action=%d\n", name, env.ObservationSize(), env.ActionSize())
		_ = env.Close()
	}
	return nil
}

func newLogger(level string) (*slog.Logger, error) {
	var lvl slog.Level
	if err := lvl.UnmarshalText([]byte(level)); err != nil {
		return nil, fmt.Errorf("invalid log level %q", level)
	}
	opts := &slog.HandlerOptions{Level: lvl}
	fd := os.Stderr.Fd()
	if isatty.IsTerminal(fd) || isatty.IsCygwinTerminal(fd) {
		return slog.New(slog.NewTextHandler(os.Stderr, opts)), nil
	}
	return slog.New(slog.NewJSONHandler(os.Stderr, opts)), nil
}

func stdoutIsTerminal() bool {
	fd := os.Stdout.Fd()
	return isatty.IsTerminal(fd) || isatty.IsCygwinTerminal(fd)
}

func newTerminal(delay time.Duration) (*render.Terminal, error) {
	return render.NewTerminal(render.Options{FrameDelay: delay})
}

// cancelOnQuit derives a context that is cancelled when the user quits the
// terminal renderer. Raw terminal mode swallows Ctrl-C, so the signal
// context alone would never fire.
func cancelOnQuit(ctx context.Context, term *render.Terminal) context.Context {
	ctx, cancel := context.WithCancel(ctx)
	go func() {
		select {
		case <-term.Done():
			cancel()
		case <-ctx.Done():
		}
	}()
	return ctx
}

func quitRequested(term *render.Terminal) bool {
	select {
	case <-term.Done():
		return true
	default:
		return false
	}
}

func writeJSON(value any) error {
	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")
	return enc.Encode(value)
}

func usageError(msg string) error {
	return fmt.Errorf("%s\nusage: walkergactl <run|replay|init-params|runs|history|plot|envs> [flags]", msg)
}

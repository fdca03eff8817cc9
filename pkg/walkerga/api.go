package walkerga

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"math/rand"
	"os"
	"time"

	"github.com/google/uuid"

	"walkerga/internal/config"
	"walkerga/internal/evo"
	"walkerga/internal/model"
	"walkerga/internal/nn"
	"walkerga/internal/scape"
	"walkerga/internal/stats"
	"walkerga/internal/storage"
)

const defaultDBPath = "walkerga.db"

type Options struct {
	StoreKind string
	DBPath    string
	Logger    *slog.Logger
	// Out receives the per-generation stats lines of verbose runs.
	Out io.Writer
}

type Client struct {
	store  storage.Store
	logger *slog.Logger
	out    io.Writer

	initialized bool
}

type RunRequest struct {
	Config config.Config
	// RunID defaults to a random UUID.
	RunID    string
	Renderer scape.Renderer
	Observer evo.PhaseObserver
	Now      func() time.Time
}

type RunSummary struct {
	RunID       string
	Network     string
	History     []evo.GenerationStats
	BestFitness float64
	BestParams  []float64
	Checkpoints []string
	LogPath     string
}

type ReplayRequest struct {
	Environment string
	Seed        int64
	Topology    []int
	ParamsPath  string
	MaxSteps    int
	Episodes    int
	Renderer    scape.Renderer
}

type ReplaySummary struct {
	Network string
	Returns []float64
	Mean    float64
}

type RunsRequest struct {
	Limit int
}

type HistoryRequest struct {
	RunID  string
	Latest bool
	Limit  int
}

type InitParamsRequest struct {
	Topology []int
	Seed     int64
	Path     string
}

func New(opts Options) (*Client, error) {
	storeKind := opts.StoreKind
	if storeKind == "" {
		storeKind = storage.DefaultStoreKind()
	}
	dbPath := opts.DBPath
	if dbPath == "" {
		dbPath = defaultDBPath
	}
	logger := opts.Logger
	if logger == nil {
		logger = slog.New(slog.NewTextHandler(io.Discard, nil))
	}
	out := opts.Out
	if out == nil {
		out = os.Stdout
	}

	store, err := storage.NewStore(storeKind, dbPath)
	if err != nil {
		return nil, err
	}

	return &Client{
		store:  store,
		logger: logger,
		out:    out,
	}, nil
}

func (c *Client) Close() error {
	return storage.CloseIfSupported(c.store)
}

func (c *Client) Init(ctx context.Context) error {
	if c.initialized {
		return nil
	}
	if err := c.store.Init(ctx); err != nil {
		return err
	}
	c.initialized = true
	return nil
}

// Run evolves a population for the configured number of generations,
// recording each generation in the store and, when configured, in the CSV
// fitness log and the checkpoint directory.
func (c *Client) Run(ctx context.Context, req RunRequest) (RunSummary, error) {
	cfg := req.Config
	if err := cfg.Validate(); err != nil {
		return RunSummary{}, err
	}
	if err := c.Init(ctx); err != nil {
		return RunSummary{}, err
	}
	now := req.Now
	if now == nil {
		now = time.Now
	}

	env, err := scape.New(cfg.Environment.Name, cfg.Environment.Seed)
	if err != nil {
		return RunSummary{}, err
	}
	defer env.Close()
	if req.Renderer != nil {
		if err := attachRenderer(env, req.Renderer); err != nil {
			return RunSummary{}, err
		}
	}

	rng := rand.New(rand.NewSource(cfg.Population.Seed))
	net, err := buildNetwork(env, cfg.Network.Topology, cfg.Network.InitialParams, rng)
	if err != nil {
		return RunSummary{}, err
	}
	seed, err := evo.NewIndividual(net)
	if err != nil {
		return RunSummary{}, err
	}

	runID := req.RunID
	if runID == "" {
		runID = uuid.NewString()
	}
	run := model.RunRecord{
		VersionedRecord: storage.Versioned(),
		ID:              runID,
		Environment:     env.Name(),
		Topology:        append([]int(nil), cfg.Network.Topology...),
		PopulationSize:  cfg.Population.Size,
		Generations:     cfg.Population.Generations,
		PMutation:       cfg.Population.PMutation,
		PCrossover:      cfg.Population.PCrossover,
		PInversion:      cfg.Population.PInversion,
		Alpha:           cfg.Population.Alpha,
		Seed:            cfg.Population.Seed,
		Status:          model.RunStatusRunning,
		CreatedAt:       now().UTC(),
		LogPath:         cfg.Output.LogPath,
	}
	if err := c.store.SaveRun(ctx, run); err != nil {
		return RunSummary{}, err
	}
	logger := c.logger.With("run_id", runID)
	logger.Info("run started",
		"environment", run.Environment,
		"network", net.Name(),
		"population", run.PopulationSize,
		"generations", run.Generations,
	)

	recorders := []evo.GenerationRecorder{evo.RecorderFunc(func(ctx context.Context, s evo.GenerationStats) error {
		return c.store.AppendGeneration(ctx, runID, model.GenerationRecord{
			Generation: s.Generation,
			Timestamp:  now().UTC(),
			Mean:       s.Mean,
			Min:        s.Min,
			Max:        s.Max,
		})
	})}
	if cfg.Output.LogPath != "" {
		fitnessLog, err := stats.OpenFitnessLog(cfg.Output.LogPath)
		if err != nil {
			return RunSummary{}, c.failRun(ctx, run, now, err)
		}
		defer fitnessLog.Close()
		recorders = append(recorders, evo.RecorderFunc(func(_ context.Context, s evo.GenerationStats) error {
			return fitnessLog.Append(stats.FitnessRow{
				Timestamp:  now(),
				Generation: s.Generation,
				Mean:       s.Mean,
				Min:        s.Min,
				Max:        s.Max,
			})
		}))
	}

	monitorCfg := evo.MonitorConfig{
		Env:            env,
		PopulationSize: cfg.Population.Size,
		Generations:    cfg.Population.Generations,
		PMutation:      cfg.Population.PMutation,
		PCrossover:     cfg.Population.PCrossover,
		PInversion:     cfg.Population.PInversion,
		Alpha:          cfg.Population.Alpha,
		Evaluate: evo.EvaluateOptions{
			MaxSteps: cfg.Environment.MaxSteps,
			Render:   req.Renderer != nil,
		},
		Rand:                rng,
		Recorders:           recorders,
		Verbose:             cfg.Output.Verbose,
		CheckpointThreshold: cfg.Output.CheckpointThreshold,
		Out:                 c.out,
		Now:                 now,
		Logger:              logger,
		Observer:            req.Observer,
	}
	checkpointer := stats.NewCheckpointer(cfg.Output.CheckpointDir, stats.CheckpointSpec{
		Network:        net.Name(),
		PopulationSize: cfg.Population.Size,
		Generations:    cfg.Population.Generations,
		PMutation:      cfg.Population.PMutation,
		PCrossover:     cfg.Population.PCrossover,
	})
	checkpointer.Now = now
	monitorCfg.Checkpointer = checkpointer

	monitor, err := evo.NewPopulationMonitor(monitorCfg)
	if err != nil {
		return RunSummary{}, c.failRun(ctx, run, now, err)
	}
	result, err := monitor.Run(ctx, seed)
	if err != nil {
		return RunSummary{}, c.failRun(ctx, run, now, err)
	}

	run.Status = model.RunStatusFinished
	run.FinishedAt = now().UTC()
	run.BestFitness = result.Best.Fitness
	if n := len(result.Checkpoints); n > 0 {
		run.BestCheckpoint = result.Checkpoints[n-1]
	}
	if err := c.store.SaveRun(ctx, run); err != nil {
		return RunSummary{}, err
	}
	logger.Info("run finished", "best_fitness", run.BestFitness, "checkpoint", run.BestCheckpoint)

	return RunSummary{
		RunID:       runID,
		Network:     net.Name(),
		History:     result.History,
		BestFitness: result.Best.Fitness,
		BestParams:  append([]float64(nil), result.Best.Params...),
		Checkpoints: result.Checkpoints,
		LogPath:     cfg.Output.LogPath,
	}, nil
}

// failRun marks run as failed and returns cause. The status update uses a
// context that survives cancellation of ctx.
func (c *Client) failRun(ctx context.Context, run model.RunRecord, now func() time.Time, cause error) error {
	run.Status = model.RunStatusFailed
	run.FinishedAt = now().UTC()
	if err := c.store.SaveRun(context.WithoutCancel(ctx), run); err != nil {
		c.logger.Warn("failed to record run failure", "run_id", run.ID, "error", err)
	}
	return cause
}

// Replay evaluates a stored parameter vector for one or more episodes.
func (c *Client) Replay(ctx context.Context, req ReplayRequest) (ReplaySummary, error) {
	if req.ParamsPath == "" {
		return ReplaySummary{}, errors.New("replay requires a parameter file")
	}
	if req.Episodes <= 0 {
		req.Episodes = 1
	}

	env, err := scape.New(req.Environment, req.Seed)
	if err != nil {
		return ReplaySummary{}, err
	}
	defer env.Close()
	if req.Renderer != nil {
		if err := attachRenderer(env, req.Renderer); err != nil {
			return ReplaySummary{}, err
		}
	}

	net, err := buildNetwork(env, req.Topology, req.ParamsPath, nil)
	if err != nil {
		return ReplaySummary{}, err
	}

	summary := ReplaySummary{Network: net.Name(), Returns: make([]float64, 0, req.Episodes)}
	total := 0.0
	for episode := 0; episode < req.Episodes; episode++ {
		fitness, _, err := evo.Evaluate(ctx, net, env, evo.EvaluateOptions{MaxSteps: req.MaxSteps, Render: req.Renderer != nil})
		if err != nil {
			return ReplaySummary{}, fmt.Errorf("episode %d: %w", episode, err)
		}
		c.logger.Debug("episode finished", "episode", episode, "return", fitness)
		summary.Returns = append(summary.Returns, fitness)
		total += fitness
	}
	summary.Mean = total / float64(req.Episodes)
	return summary, nil
}

func (c *Client) Runs(ctx context.Context, req RunsRequest) ([]model.RunRecord, error) {
	if req.Limit <= 0 {
		req.Limit = 20
	}
	if err := c.Init(ctx); err != nil {
		return nil, err
	}
	runs, err := c.store.ListRuns(ctx)
	if err != nil {
		return nil, err
	}
	if len(runs) > req.Limit {
		runs = runs[:req.Limit]
	}
	return runs, nil
}

func (c *Client) History(ctx context.Context, req HistoryRequest) ([]model.GenerationRecord, error) {
	if req.RunID != "" && req.Latest {
		return nil, errors.New("use either run id or latest")
	}
	if req.Limit < 0 {
		return nil, errors.New("limit must be >= 0")
	}
	if err := c.Init(ctx); err != nil {
		return nil, err
	}

	runID := req.RunID
	if req.Latest {
		runs, err := c.store.ListRuns(ctx)
		if err != nil {
			return nil, err
		}
		if len(runs) == 0 {
			return nil, errors.New("no runs available")
		}
		runID = runs[0].ID
	}
	if runID == "" {
		return nil, errors.New("history requires run id or latest")
	}

	history, ok, err := c.store.GetGenerations(ctx, runID)
	if err != nil {
		return nil, err
	}
	if !ok {
		return nil, fmt.Errorf("history not found for run id: %s", runID)
	}
	if req.Limit > 0 && len(history) > req.Limit {
		history = history[:req.Limit]
	}
	return history, nil
}

// InitParams writes a randomly initialised parameter vector for the given
// topology and returns its length.
func (c *Client) InitParams(req InitParamsRequest) (int, error) {
	if req.Path == "" {
		return 0, errors.New("output path is required")
	}
	net, err := nn.NewPolicyMLP(req.Topology)
	if err != nil {
		return 0, err
	}
	net.InitUniform(rand.New(rand.NewSource(req.Seed)))
	params := nn.Flatten(net)
	if err := stats.SaveParameters(req.Path, params); err != nil {
		return 0, err
	}
	c.logger.Info("parameters initialised", "network", net.Name(), "count", len(params), "path", req.Path)
	return len(params), nil
}

// buildNetwork creates the policy network and loads paramsPath into it.
// Without a parameter file the weights are drawn from rng.
func buildNetwork(env scape.Environment, topology []int, paramsPath string, rng *rand.Rand) (*nn.MLP, error) {
	net, err := nn.NewPolicyMLP(topology)
	if err != nil {
		return nil, err
	}
	if net.OutputSize() != env.ActionSize() {
		return nil, fmt.Errorf("network output size %d does not match %s action size %d",
			net.OutputSize(), env.Name(), env.ActionSize())
	}

	if paramsPath == "" {
		if rng == nil {
			return nil, errors.New("parameter file is required")
		}
		net.InitUniform(rng)
		return net, nil
	}
	params, err := stats.LoadParameters(paramsPath)
	if err != nil {
		return nil, err
	}
	if err := nn.Reconstruct(net, params); err != nil {
		return nil, fmt.Errorf("load %s into %s: %w", paramsPath, net.Name(), err)
	}
	return net, nil
}

func attachRenderer(env scape.Environment, r scape.Renderer) error {
	renderable, ok := env.(scape.Renderable)
	if !ok {
		return fmt.Errorf("environment %s does not support rendering", env.Name())
	}
	renderable.AttachRenderer(r)
	return nil
}

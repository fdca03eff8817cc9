package scape

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"sync"
)

var ErrUnknownEnvironment = errors.New("unknown environment")

// Info carries environment-specific diagnostics for one step.
type Info map[string]any

type StepResult struct {
	Observation []float64
	Reward      float64
	Done        bool
	Info        Info
}

// Environment is a stateful episodic simulation.
type Environment interface {
	Name() string
	ObservationSize() int
	ActionSize() int
	Seed(seed int64)
	Reset(ctx context.Context) ([]float64, error)
	Step(ctx context.Context, action []float64) (StepResult, error)
	Render() error
	Close() error
}

// Point is a world-space coordinate, y up.
type Point struct {
	X float64
	Y float64
}

type Segment struct {
	From Point
	To   Point
}

// Frame is a renderer-agnostic snapshot of the current world state.
type Frame struct {
	Environment string
	Tick        int
	Reward      float64
	Return      float64
	CameraX     float64
	Ground      []Point
	Bodies      []Segment
}

type Renderer interface {
	Draw(frame Frame) error
}

// Renderable environments forward Render calls to an attached Renderer.
type Renderable interface {
	AttachRenderer(r Renderer)
}

// renderHook implements Renderable; Render is a no-op until a renderer is
// attached.
type renderHook struct {
	renderer Renderer
}

func (h *renderHook) AttachRenderer(r Renderer) {
	h.renderer = r
}

func (h *renderHook) draw(frame Frame) error {
	if h.renderer == nil {
		return nil
	}
	return h.renderer.Draw(frame)
}

type Factory func() Environment

var registry = struct {
	mu sync.RWMutex
	m  map[string]Factory
}{
	m: map[string]Factory{},
}

func init() {
	MustRegister(WalkerLiteName, func() Environment { return NewWalkerLite() })
	MustRegister(CartPoleLiteName, func() Environment { return NewCartPoleLite() })
}

func Register(name string, factory Factory) error {
	name = NormalizeName(name)
	if name == "" {
		return errors.New("environment name is required")
	}
	if factory == nil {
		return errors.New("environment factory is required")
	}

	registry.mu.Lock()
	defer registry.mu.Unlock()
	if _, exists := registry.m[name]; exists {
		return fmt.Errorf("environment already registered: %s", name)
	}
	registry.m[name] = factory
	return nil
}

func MustRegister(name string, factory Factory) {
	if err := Register(name, factory); err != nil {
		panic(err)
	}
}

// New builds a registered environment and seeds it.
func New(name string, seed int64) (Environment, error) {
	registry.mu.RLock()
	factory, ok := registry.m[NormalizeName(name)]
	registry.mu.RUnlock()
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrUnknownEnvironment, name)
	}
	env := factory()
	env.Seed(seed)
	return env, nil
}

func Names() []string {
	registry.mu.RLock()
	defer registry.mu.RUnlock()

	names := make([]string, 0, len(registry.m))
	for name := range registry.m {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

func checkAction(env Environment, action []float64) error {
	if len(action) != env.ActionSize() {
		return fmt.Errorf("%s: invalid action size: got=%d want=%d", env.Name(), len(action), env.ActionSize())
	}
	return nil
}

func clamp(value, lo, hi float64) float64 {
	if value < lo {
		return lo
	}
	if value > hi {
		return hi
	}
	return value
}

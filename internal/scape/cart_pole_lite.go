package scape

import (
	"context"
	"errors"
	"math"
	"math/rand"
)

const CartPoleLiteName = "cart-pole-lite"

var cartPoleLiteStarts = []float64{-0.8, -0.4, 0.0, 0.4, 0.8}

// CartPoleLite is a simplified 1D balancing control task. The observation is
// [position, velocity] and the single action is a force in [-1, 1].
type CartPoleLite struct {
	renderHook

	rng             *rand.Rand
	stepsPerEpisode int

	x, v   float64
	tick   int
	ret    float64
	reward float64
	active bool
}

func NewCartPoleLite() *CartPoleLite {
	return &CartPoleLite{
		rng:             rand.New(rand.NewSource(1)),
		stepsPerEpisode: 60,
	}
}

func (*CartPoleLite) Name() string {
	return CartPoleLiteName
}

func (*CartPoleLite) ObservationSize() int {
	return 2
}

func (*CartPoleLite) ActionSize() int {
	return 1
}

func (e *CartPoleLite) Seed(seed int64) {
	e.rng = rand.New(rand.NewSource(seed))
}

func (e *CartPoleLite) Reset(ctx context.Context) ([]float64, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	e.x = cartPoleLiteStarts[e.rng.Intn(len(cartPoleLiteStarts))]
	e.v = 0
	e.tick = 0
	e.ret = 0
	e.reward = 0
	e.active = true
	return []float64{e.x, e.v}, nil
}

func (e *CartPoleLite) Step(ctx context.Context, action []float64) (StepResult, error) {
	if err := ctx.Err(); err != nil {
		return StepResult{}, err
	}
	if !e.active {
		return StepResult{}, errors.New("cart-pole-lite: step called before reset")
	}
	if err := checkAction(e, action); err != nil {
		return StepResult{}, err
	}

	var reward float64
	e.x, e.v, reward = cartPoleLiteStep(e.x, e.v, action[0])
	e.tick++
	e.reward = reward
	e.ret += reward

	done := math.Abs(e.x) > 2.0 || e.tick >= e.stepsPerEpisode
	if done {
		e.active = false
	}
	return StepResult{
		Observation: []float64{e.x, e.v},
		Reward:      reward,
		Done:        done,
		Info:        Info{"tick": e.tick},
	}, nil
}

func (e *CartPoleLite) Render() error {
	return e.draw(Frame{
		Environment: CartPoleLiteName,
		Tick:        e.tick,
		Reward:      e.reward,
		Return:      e.ret,
		Ground:      []Point{{X: -2.5, Y: 0}, {X: 2.5, Y: 0}},
		Bodies: []Segment{
			{From: Point{X: e.x - 0.2, Y: 0.1}, To: Point{X: e.x + 0.2, Y: 0.1}},
			{From: Point{X: e.x, Y: 0.1}, To: Point{X: e.x, Y: 0.9}},
		},
	})
}

func (e *CartPoleLite) Close() error {
	e.active = false
	return nil
}

func cartPoleLiteStep(x, v, force float64) (nextX, nextV, reward float64) {
	const (
		dt       = 0.1
		kPos     = 0.45
		kVel     = 0.15
		forceK   = 1.25
		maxForce = 1.0
	)
	force = clamp(force, -maxForce, maxForce)

	acc := forceK*force - kPos*x - kVel*v
	v = v + acc*dt
	x = x + v*dt
	reward = 1.0 - math.Min(1.0, math.Abs(x)/2.0)
	return x, v, reward
}

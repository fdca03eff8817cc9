package scape

import (
	"context"
	"errors"
	"math"
	"testing"
)

func TestCartPoleLiteBalancingPolicyEarnsReward(t *testing.T) {
	ctx := context.Background()
	env := NewCartPoleLite()
	env.Seed(5)

	obs, err := env.Reset(ctx)
	if err != nil {
		t.Fatalf("reset: %v", err)
	}

	total := 0.0
	steps := 0
	for {
		force := -1.2*obs[0] - 0.6*obs[1]
		res, err := env.Step(ctx, []float64{force})
		if err != nil {
			t.Fatalf("step: %v", err)
		}
		total += res.Reward
		steps++
		obs = res.Observation
		if res.Done {
			break
		}
	}
	if steps != 60 {
		t.Fatalf("expected full 60-step episode, got %d", steps)
	}
	if avg := total / float64(steps); avg <= 0.5 {
		t.Fatalf("expected avg reward > 0.5, got %f", avg)
	}
}

func TestCartPoleLiteStepClampsForce(t *testing.T) {
	x1, v1, _ := cartPoleLiteStep(0, 0, 5)
	x2, v2, _ := cartPoleLiteStep(0, 0, 1)
	if math.Abs(x1-x2) > 1e-12 || math.Abs(v1-v2) > 1e-12 {
		t.Fatalf("expected force clamp: (%f,%f) vs (%f,%f)", x1, v1, x2, v2)
	}
}

func TestCartPoleLiteRejectsWrongActionSize(t *testing.T) {
	ctx := context.Background()
	env := NewCartPoleLite()
	if _, err := env.Reset(ctx); err != nil {
		t.Fatalf("reset: %v", err)
	}
	if _, err := env.Step(ctx, []float64{0, 1}); err == nil {
		t.Fatal("expected action size error")
	}
}

func TestRegistryBuildsSeededEnvironments(t *testing.T) {
	names := Names()
	if len(names) < 2 || names[0] != CartPoleLiteName || names[1] != WalkerLiteName {
		t.Fatalf("unexpected registry names: %v", names)
	}

	env, err := New(WalkerLiteName, 123)
	if err != nil {
		t.Fatalf("new: %v", err)
	}
	if env.Name() != WalkerLiteName || env.ActionSize() != 4 {
		t.Fatalf("unexpected environment: %s", env.Name())
	}

	if _, err := New("bipedal-hardcore", 1); !errors.Is(err, ErrUnknownEnvironment) {
		t.Fatalf("expected ErrUnknownEnvironment, got %v", err)
	}
	if err := Register(WalkerLiteName, func() Environment { return NewWalkerLite() }); err == nil {
		t.Fatal("expected duplicate registration error")
	}
}

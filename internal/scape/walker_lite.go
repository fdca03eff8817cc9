package scape

import (
	"context"
	"errors"
	"math"
	"math/rand"
)

const WalkerLiteName = "walker-lite"

const (
	walkerDT            = 0.05
	walkerThigh         = 0.45
	walkerShin          = 0.45
	walkerGravity       = 9.8
	walkerTorqueGain    = 8.0
	walkerJointDamping  = 3.0
	walkerHipMin        = -0.8
	walkerHipMax        = 1.1
	walkerKneeMin       = -1.6
	walkerKneeMax       = 0.0
	walkerStartX        = 1.0
	walkerTerrainLength = 40.0
	walkerTerrainStep   = 1.0
	walkerStartFlat     = 4.0
	walkerRoughness     = 0.08
	walkerLidarRays     = 10
	walkerLidarRange    = 3.0
	walkerProgressScale = 13.0
	walkerAngleCost     = 5.0
	walkerTorqueCost    = 0.028
	walkerFallPenalty   = -100.0
	walkerMinHullHeight = 0.3
	walkerMaxTilt       = 1.0
	walkerContactEps    = 1e-6
)

type walkerLeg struct {
	hip       float64
	hipSpeed  float64
	knee      float64
	kneeSpeed float64
	contact   bool
}

// WalkerLite is a planar two-legged walker over gently rough terrain. Legs
// are kinematic chains driven by four joint torques (hip, knee per leg);
// stance feet do not slip, so pushing a grounded foot backwards moves the
// hull forwards. The 24-value observation follows the BipedalWalker layout:
// hull state, per-leg joint state with ground contact, then lidar.
type WalkerLite struct {
	renderHook

	rng     *rand.Rand
	terrain []float64

	x, y       float64
	vx, vy     float64
	angle      float64
	angularVel float64
	legs       [2]walkerLeg

	shaping float64
	tick    int
	reward  float64
	ret     float64
	active  bool
}

func NewWalkerLite() *WalkerLite {
	return &WalkerLite{rng: rand.New(rand.NewSource(1))}
}

func (*WalkerLite) Name() string {
	return WalkerLiteName
}

func (*WalkerLite) ObservationSize() int {
	return 14 + walkerLidarRays
}

func (*WalkerLite) ActionSize() int {
	return 4
}

func (w *WalkerLite) Seed(seed int64) {
	w.rng = rand.New(rand.NewSource(seed))
}

func (w *WalkerLite) Reset(ctx context.Context) ([]float64, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	w.generateTerrain()
	w.x = walkerStartX
	w.vx, w.vy = 0, 0
	w.angle, w.angularVel = 0, 0
	w.legs = [2]walkerLeg{
		{hip: 0.2},
		{hip: -0.2},
	}

	w.y = 0
	w.y = w.penetration()
	w.updateContacts()

	w.shaping = w.currentShaping()
	w.tick = 0
	w.reward = 0
	w.ret = 0
	w.active = true
	return w.observe(), nil
}

func (w *WalkerLite) Step(ctx context.Context, action []float64) (StepResult, error) {
	if err := ctx.Err(); err != nil {
		return StepResult{}, err
	}
	if !w.active {
		return StepResult{}, errors.New("walker-lite: step called before reset")
	}
	if err := checkAction(w, action); err != nil {
		return StepResult{}, err
	}

	var torque [4]float64
	effort := 0.0
	for i, a := range action {
		if math.IsNaN(a) {
			return StepResult{}, errors.New("walker-lite: action contains NaN")
		}
		torque[i] = clamp(a, -1, 1)
		effort += math.Abs(torque[i])
	}

	prevX := w.x
	var stanceBefore [2]float64
	for i := range w.legs {
		_, foot := w.legPoints(i)
		stanceBefore[i] = foot.X
	}

	for i := range w.legs {
		leg := &w.legs[i]
		leg.hip, leg.hipSpeed = driveJoint(leg.hip, leg.hipSpeed, torque[2*i], walkerHipMin, walkerHipMax)
		leg.knee, leg.kneeSpeed = driveJoint(leg.knee, leg.kneeSpeed, torque[2*i+1], walkerKneeMin, walkerKneeMax)
	}

	// Grounded feet stay put; the hull absorbs their displacement.
	shift, grounded := 0.0, 0
	for i := range w.legs {
		if !w.legs[i].contact {
			continue
		}
		_, foot := w.legPoints(i)
		shift += foot.X - stanceBefore[i]
		grounded++
	}
	if grounded > 0 {
		w.x -= shift / float64(grounded)
	} else {
		w.x += w.vx * walkerDT
	}
	w.vx = (w.x - prevX) / walkerDT

	w.vy -= walkerGravity * walkerDT
	w.y += w.vy * walkerDT
	if depth := w.penetration(); depth > 0 {
		w.y += depth
		if w.vy < 0 {
			w.vy = 0
		}
	}
	w.updateContacts()

	support, supported := w.supportX()
	tip := 0.0
	if supported {
		tip = 1.5 * (w.x - support)
	}
	w.angularVel += (tip - 0.4*(torque[0]+torque[2]) - 3*w.angle - 0.8*w.angularVel) * walkerDT
	w.angle += w.angularVel * walkerDT
	w.tick++

	shaping := w.currentShaping()
	reward := shaping - w.shaping - walkerTorqueCost*effort
	w.shaping = shaping

	done := false
	fell := w.y-w.groundAt(w.x) < walkerMinHullHeight || math.Abs(w.angle) > walkerMaxTilt || w.x < 0
	if fell {
		reward = walkerFallPenalty
		done = true
	}
	if w.x >= walkerTerrainLength-2*walkerTerrainStep {
		done = true
	}
	if done {
		w.active = false
	}

	w.reward = reward
	w.ret += reward
	return StepResult{
		Observation: w.observe(),
		Reward:      reward,
		Done:        done,
		Info:        Info{"x": w.x, "tick": w.tick, "fell": fell},
	}, nil
}

func (w *WalkerLite) Render() error {
	frame := Frame{
		Environment: WalkerLiteName,
		Tick:        w.tick,
		Reward:      w.reward,
		Return:      w.ret,
		CameraX:     w.x,
	}
	for i, h := range w.terrain {
		frame.Ground = append(frame.Ground, Point{X: float64(i) * walkerTerrainStep, Y: h})
	}

	hullHalf := 0.3
	dx, dy := hullHalf*math.Cos(w.angle), hullHalf*math.Sin(w.angle)
	frame.Bodies = append(frame.Bodies, Segment{
		From: Point{X: w.x - dx, Y: w.y - dy},
		To:   Point{X: w.x + dx, Y: w.y + dy},
	})
	hip := Point{X: w.x, Y: w.y}
	for i := range w.legs {
		knee, foot := w.legPoints(i)
		frame.Bodies = append(frame.Bodies, Segment{From: hip, To: knee}, Segment{From: knee, To: foot})
	}
	return w.draw(frame)
}

func (w *WalkerLite) Close() error {
	w.active = false
	return nil
}

func (w *WalkerLite) generateTerrain() {
	n := int(walkerTerrainLength/walkerTerrainStep) + 1
	w.terrain = make([]float64, n)
	height := 0.0
	for i := range w.terrain {
		if float64(i)*walkerTerrainStep > walkerStartFlat {
			height = 0.8*height + (w.rng.Float64()*2-1)*walkerRoughness
		}
		w.terrain[i] = height
	}
}

func (w *WalkerLite) groundAt(x float64) float64 {
	if len(w.terrain) == 0 {
		return 0
	}
	pos := x / walkerTerrainStep
	idx := int(math.Floor(pos))
	if idx < 0 {
		return w.terrain[0]
	}
	if idx >= len(w.terrain)-1 {
		return w.terrain[len(w.terrain)-1]
	}
	frac := pos - float64(idx)
	return w.terrain[idx]*(1-frac) + w.terrain[idx+1]*frac
}

func (w *WalkerLite) legPoints(i int) (knee, foot Point) {
	leg := w.legs[i]
	knee = Point{
		X: w.x + walkerThigh*math.Sin(leg.hip),
		Y: w.y - walkerThigh*math.Cos(leg.hip),
	}
	foot = Point{
		X: knee.X + walkerShin*math.Sin(leg.hip+leg.knee),
		Y: knee.Y - walkerShin*math.Cos(leg.hip+leg.knee),
	}
	return knee, foot
}

// penetration is how far the lowest foot sits below the ground.
func (w *WalkerLite) penetration() float64 {
	depth := math.Inf(-1)
	for i := range w.legs {
		_, foot := w.legPoints(i)
		if d := w.groundAt(foot.X) - foot.Y; d > depth {
			depth = d
		}
	}
	return depth
}

func (w *WalkerLite) updateContacts() {
	for i := range w.legs {
		_, foot := w.legPoints(i)
		w.legs[i].contact = foot.Y-w.groundAt(foot.X) <= walkerContactEps
	}
}

func (w *WalkerLite) supportX() (float64, bool) {
	sum, n := 0.0, 0
	for i := range w.legs {
		if !w.legs[i].contact {
			continue
		}
		_, foot := w.legPoints(i)
		sum += foot.X
		n++
	}
	if n == 0 {
		return 0, false
	}
	return sum / float64(n), true
}

func (w *WalkerLite) currentShaping() float64 {
	return walkerProgressScale*w.x - walkerAngleCost*math.Abs(w.angle)
}

func (w *WalkerLite) observe() []float64 {
	obs := make([]float64, 0, w.ObservationSize())
	obs = append(obs,
		w.angle,
		0.25*w.angularVel,
		0.3*w.vx,
		0.3*w.vy,
	)
	for _, leg := range w.legs {
		contact := 0.0
		if leg.contact {
			contact = 1.0
		}
		obs = append(obs, leg.hip, 0.25*leg.hipSpeed, leg.knee+1, 0.25*leg.kneeSpeed, contact)
	}
	for i := 0; i < walkerLidarRays; i++ {
		obs = append(obs, w.lidar(1.5*float64(i)/float64(walkerLidarRays-1)))
	}
	return obs
}

// lidar returns the fraction of walkerLidarRange travelled along a ray
// angled theta below the horizontal before hitting the ground.
func (w *WalkerLite) lidar(theta float64) float64 {
	const stride = 0.05
	dx, dy := math.Cos(theta), -math.Sin(theta)
	for d := stride; d <= walkerLidarRange; d += stride {
		px, py := w.x+d*dx, w.y+d*dy
		if py <= w.groundAt(px) {
			return d / walkerLidarRange
		}
	}
	return 1.0
}

func driveJoint(angle, speed, torque, lo, hi float64) (float64, float64) {
	speed += (walkerTorqueGain*torque - walkerJointDamping*speed) * walkerDT
	angle += speed * walkerDT
	if angle < lo || angle > hi {
		angle = clamp(angle, lo, hi)
		speed = 0
	}
	return angle, speed
}

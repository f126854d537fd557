package sim

import (
	"math"
	"math/rand"
)

// EventGenerator produces time-stamped post-synaptic events for a single
// target on one local cell. Given an interval [tFrom, tTo) it yields a
// finite, time-sorted sequence of events. Generators carry their own
// internal clock where needed and must be restartable via Reset.
//
// The driver queries intervals in strictly advancing order; Events is never
// called concurrently for the same generator.
type EventGenerator interface {
	Events(tFrom, tTo TimeType) []PostSynapticEvent
	Reset()
}

// TargetResolverFunc maps an on-cell target label to a concrete target
// index. Each closure carries its own resolver state, so concurrent
// resolution across generators shares nothing mutable.
type TargetResolverFunc func(label string) (uint32, error)

// LabelTargetedGenerator is implemented by generators whose target is given
// as a label rather than a concrete index. The construction path binds the
// label exactly once, before the first Events call.
type LabelTargetedGenerator interface {
	EventGenerator
	ResolveTarget(resolve TargetResolverFunc) error
}

// === Explicit generator ===

// explicitGenerator emits a fixed, sorted list of events.
type explicitGenerator struct {
	target      uint32
	targetLabel string
	weight      float32
	times       []TimeType
	window      []PostSynapticEvent
}

// NewExplicitGenerator returns a generator emitting one event of the given
// weight at each of the given times, targeting the given on-cell index.
// Times must be sorted ascending.
func NewExplicitGenerator(target uint32, weight float32, times []TimeType) EventGenerator {
	return &explicitGenerator{target: target, weight: weight, times: append([]TimeType(nil), times...)}
}

// NewExplicitGeneratorOnLabel is NewExplicitGenerator with the target given
// as a label, resolved at simulation construction.
func NewExplicitGeneratorOnLabel(label string, weight float32, times []TimeType) EventGenerator {
	return &explicitGenerator{targetLabel: label, weight: weight, times: append([]TimeType(nil), times...)}
}

func (g *explicitGenerator) ResolveTarget(resolve TargetResolverFunc) error {
	if g.targetLabel == "" {
		return nil
	}
	t, err := resolve(g.targetLabel)
	if err != nil {
		return err
	}
	g.target = t
	return nil
}

func (g *explicitGenerator) Events(tFrom, tTo TimeType) []PostSynapticEvent {
	lo, hi := 0, len(g.times)
	for lo < hi && g.times[lo] < tFrom {
		lo++
	}
	for hi > lo && g.times[hi-1] >= tTo {
		hi--
	}
	g.window = g.window[:0]
	for _, t := range g.times[lo:hi] {
		g.window = append(g.window, PostSynapticEvent{Target: g.target, Weight: g.weight, Time: t})
	}
	return g.window
}

func (g *explicitGenerator) Reset() {}

// === Regular generator ===

// regularGenerator emits events at a fixed period from a start time.
type regularGenerator struct {
	target      uint32
	targetLabel string
	weight      float32
	start       TimeType
	period      TimeType
	window      []PostSynapticEvent
}

// NewRegularGenerator returns a generator emitting an event every period,
// beginning at start.
func NewRegularGenerator(target uint32, weight float32, start, period TimeType) EventGenerator {
	return &regularGenerator{target: target, weight: weight, start: start, period: period}
}

// newRegularGeneratorOnLabel is NewRegularGenerator with the target given as
// a label, resolved at simulation construction.
func newRegularGeneratorOnLabel(label string, weight float32, start, period TimeType) EventGenerator {
	return &regularGenerator{targetLabel: label, weight: weight, start: start, period: period}
}

func (g *regularGenerator) ResolveTarget(resolve TargetResolverFunc) error {
	if g.targetLabel == "" {
		return nil
	}
	t, err := resolve(g.targetLabel)
	if err != nil {
		return err
	}
	g.target = t
	return nil
}

func (g *regularGenerator) Events(tFrom, tTo TimeType) []PostSynapticEvent {
	g.window = g.window[:0]
	if g.period <= 0 || tTo <= tFrom {
		return g.window
	}
	t := g.start
	if t < tFrom {
		n := math.Ceil(float64((tFrom - g.start) / g.period))
		t = g.start + TimeType(n)*g.period
	}
	for ; t < tTo; t += g.period {
		g.window = append(g.window, PostSynapticEvent{Target: g.target, Weight: g.weight, Time: t})
	}
	return g.window
}

func (g *regularGenerator) Reset() {}

// === Poisson generator ===

// poissonGenerator emits events as a homogeneous Poisson process. It keeps
// an internal clock of the next arrival, so interval queries must advance
// monotonically; Reset reseeds the stream and rewinds the clock to zero.
type poissonGenerator struct {
	target      uint32
	targetLabel string
	weight      float32
	rate        TimeType // events per unit time
	seed        int64

	rng    *rand.Rand
	next   TimeType
	window []PostSynapticEvent
}

// NewPoissonGenerator returns a generator whose arrivals form a Poisson
// process with the given rate, driven by the given seed.
func NewPoissonGenerator(target uint32, weight float32, rate TimeType, seed int64) EventGenerator {
	g := &poissonGenerator{target: target, weight: weight, rate: rate, seed: seed}
	g.Reset()
	return g
}

// newPoissonGeneratorOnLabel is NewPoissonGenerator with the target given as
// a label, resolved at simulation construction.
func newPoissonGeneratorOnLabel(label string, weight float32, rate TimeType, seed int64) EventGenerator {
	g := &poissonGenerator{targetLabel: label, weight: weight, rate: rate, seed: seed}
	g.Reset()
	return g
}

func (g *poissonGenerator) ResolveTarget(resolve TargetResolverFunc) error {
	if g.targetLabel == "" {
		return nil
	}
	t, err := resolve(g.targetLabel)
	if err != nil {
		return err
	}
	g.target = t
	return nil
}

func (g *poissonGenerator) step() {
	g.next += TimeType(g.rng.ExpFloat64()) / g.rate
}

func (g *poissonGenerator) Events(tFrom, tTo TimeType) []PostSynapticEvent {
	g.window = g.window[:0]
	if g.rate <= 0 {
		return g.window
	}
	for g.next < tFrom {
		g.step()
	}
	for g.next < tTo {
		g.window = append(g.window, PostSynapticEvent{Target: g.target, Weight: g.weight, Time: g.next})
		g.step()
	}
	return g.window
}

func (g *poissonGenerator) Reset() {
	g.rng = rand.New(rand.NewSource(g.seed))
	g.next = 0
	g.step()
}

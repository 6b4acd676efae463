package mask

import (
	"errors"
	"fmt"
	"math/rand/v2"

	"github.com/vamp-go/vamp-go/internal/tokens"
)

// Env carries what the pipeline needs beyond the grid shape.
type Env struct {
	Rand     *rand.Rand
	TimeBase tokens.TimeBase
	Events   Events
}

// Op is one stage of a Pipeline. The first stage receives a nil mask.
type Op interface {
	Name() string
	Apply(cur *tokens.Mask, shape tokens.Shape, env *Env) (*tokens.Mask, error)
}

// Generator produces a mask from the grid shape alone.
type Generator interface {
	Name() string
	Generate(shape tokens.Shape, env *Env) (*tokens.Mask, error)
}

// Pipeline applies its Ops in order. The order is part of the contract.
type Pipeline struct {
	ops []Op
}

// NewPipeline returns a pipeline running ops in the given order.
func NewPipeline(ops ...Op) *Pipeline {
	return &Pipeline{ops: append([]Op(nil), ops...)}
}

// Names lists the stages in execution order.
func (p *Pipeline) Names() []string {
	names := make([]string, len(p.ops))
	for i, op := range p.ops {
		names[i] = op.Name()
	}
	return names
}

// Build runs the pipeline against a grid shape.
func (p *Pipeline) Build(shape tokens.Shape, env *Env) (*tokens.Mask, error) {
	if env == nil || env.Rand == nil {
		return nil, errors.New("mask pipeline: random source is required")
	}
	if len(p.ops) == 0 {
		return nil, errors.New("mask pipeline: no stages")
	}

	var cur *tokens.Mask
	for i, op := range p.ops {
		next, err := op.Apply(cur, shape, env)
		if err != nil {
			return nil, fmt.Errorf("mask stage %d (%s): %w", i, op.Name(), err)
		}
		cur = next
	}
	return cur, nil
}

// Start seeds the pipeline with a generated mask.
func Start(g Generator) Op { return seedOp{g} }

// Intersect narrows the current mask with a generated one.
func Intersect(g Generator) Op { return combineOp{g: g, verb: "and", fn: And} }

// Union widens the current mask with a generated one.
func Union(g Generator) Op { return combineOp{g: g, verb: "or", fn: Or} }

type seedOp struct{ g Generator }

func (o seedOp) Name() string { return o.g.Name() }

func (o seedOp) Apply(_ *tokens.Mask, shape tokens.Shape, env *Env) (*tokens.Mask, error) {
	return o.g.Generate(shape, env)
}

type combineOp struct {
	g    Generator
	verb string
	fn   func(a, b *tokens.Mask) (*tokens.Mask, error)
}

func (o combineOp) Name() string { return o.verb + " " + o.g.Name() }

func (o combineOp) Apply(cur *tokens.Mask, shape tokens.Shape, env *Env) (*tokens.Mask, error) {
	if cur == nil {
		return nil, fmt.Errorf("%s needs a preceding stage", o.Name())
	}
	m, err := o.g.Generate(shape, env)
	if err != nil {
		return nil, err
	}
	return o.fn(cur, m)
}

// Random generates LinearRandom masks.
type Random struct{ Intensity float64 }

func (Random) Name() string { return "random" }

func (g Random) Generate(shape tokens.Shape, env *Env) (*tokens.Mask, error) {
	return LinearRandom(shape, g.Intensity, env.Rand)
}

// InpaintHints protects a prefix and suffix.
type InpaintHints struct{ Prefix, Suffix int }

func (InpaintHints) Name() string { return "inpaint" }

func (g InpaintHints) Generate(shape tokens.Shape, _ *Env) (*tokens.Mask, error) {
	return Inpaint(shape, g.Prefix, g.Suffix)
}

// PeriodicHints protects periodic columns, optionally at a random phase.
type PeriodicHints struct {
	Period     int
	Width      int
	RandomRoll bool
}

func (PeriodicHints) Name() string { return "periodic" }

func (g PeriodicHints) Generate(shape tokens.Shape, env *Env) (*tokens.Mask, error) {
	offset := 0
	if g.RandomRoll {
		offset = RandomOffset(g.Period, env.Rand)
	}
	return Periodic(shape, g.Period, g.Width, offset)
}

// Onsets marks windows at detected onsets.
type Onsets struct {
	Width    int
	Centered bool
}

func (Onsets) Name() string { return "onset" }

func (g Onsets) Generate(shape tokens.Shape, env *Env) (*tokens.Mask, error) {
	return OnsetMask(env.Events.Onsets, shape, g.Width, g.Centered, env.TimeBase)
}

// Beats marks windows around detected beats.
type Beats struct{ Options BeatOptions }

func (Beats) Name() string { return "beat" }

func (g Beats) Generate(shape tokens.Shape, env *Env) (*tokens.Mask, error) {
	return BeatMask(env.Events.Beats, env.Events.Downbeats, shape, g.Options, env.TimeBase, env.Rand)
}

// DropoutOp relaxes the current mask.
type DropoutOp struct{ P float64 }

func (DropoutOp) Name() string { return "dropout" }

func (o DropoutOp) Apply(cur *tokens.Mask, _ tokens.Shape, env *Env) (*tokens.Mask, error) {
	if cur == nil {
		return nil, errors.New("dropout needs a preceding stage")
	}
	return Dropout(cur, o.P, env.Rand)
}

// CodebookOp forces codebooks at or above N to be regenerated.
type CodebookOp struct{ N int }

func (CodebookOp) Name() string { return "codebook" }

func (o CodebookOp) Apply(cur *tokens.Mask, _ tokens.Shape, _ *Env) (*tokens.Mask, error) {
	if cur == nil {
		return nil, errors.New("codebook needs a preceding stage")
	}
	return Codebook(cur, o.N)
}

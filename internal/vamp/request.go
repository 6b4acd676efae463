package vamp

import (
	"fmt"

	"github.com/vamp-go/vamp-go/internal/generate"
	"github.com/vamp-go/vamp-go/internal/mask"
	"github.com/vamp-go/vamp-go/internal/tokens"
)

// Mode selects how many generation passes run and how they chain.
type Mode string

const (
	ModeVamp   Mode = "vamp"
	ModeExtend Mode = "extend"
	ModeLoop   Mode = "loop"
)

// ParamError is returned for requests rejected before any generation.
type ParamError = mask.ParamError

// Request is the immutable description of one orchestration.
type Request struct {
	Mode   Mode
	Passes int

	Mask     mask.Params
	Sampling generate.SamplingConfig

	// Refine runs a final pass regenerating codebooks at or above CoarseCodebooks.
	Refine          bool
	CoarseCodebooks int
}

// passCount is the number of generation passes before refinement.
func (r Request) passCount() int {
	if r.Mode == ModeVamp {
		return 1
	}
	return r.Passes
}

// Validate checks the request against the grid it will run on.
func (r Request) Validate(shape tokens.Shape) error {
	switch r.Mode {
	case ModeVamp, ModeExtend, ModeLoop:
	default:
		return &ParamError{Param: "mode", Value: r.Mode, Constraint: "must be one of vamp, extend, loop"}
	}

	if err := r.Mask.Validate(); err != nil {
		return err
	}
	if err := r.Sampling.Validate(); err != nil {
		return err
	}

	if r.Mode != ModeVamp {
		if r.Passes < 1 {
			return &ParamError{Param: "num_passes", Value: r.Passes, Constraint: "must be >= 1"}
		}
		if r.Mask.PrefixSteps+r.Mask.SuffixSteps >= shape.Steps {
			return &ParamError{
				Param:      "prefix_steps+suffix_steps",
				Value:      r.Mask.PrefixSteps + r.Mask.SuffixSteps,
				Constraint: fmt.Sprintf("must be < %d steps for %s", shape.Steps, r.Mode),
			}
		}
	}

	if r.Mode == ModeLoop && (r.Mask.PrefixSteps <= 0 || r.Mask.SuffixSteps <= 0) {
		return &ParamError{
			Param:      "mode",
			Value:      r.Mode,
			Constraint: fmt.Sprintf("loop needs prefix_steps > 0 and suffix_steps > 0, got %d and %d", r.Mask.PrefixSteps, r.Mask.SuffixSteps),
		}
	}

	if r.Refine && (r.CoarseCodebooks < 1 || r.CoarseCodebooks >= shape.Codebooks) {
		return &ParamError{
			Param:      "coarse_codebooks",
			Value:      r.CoarseCodebooks,
			Constraint: fmt.Sprintf("must be within [1, %d) to refine", shape.Codebooks),
		}
	}

	return nil
}

package mask

// Params configures the standard generation mask. Steps are codec time steps.
type Params struct {
	Intensity float64

	PrefixSteps int
	SuffixSteps int

	Period      int
	PeriodWidth int

	OnsetWidth    int
	OnsetCentered bool

	// Beat enables the beat stage when non-nil.
	Beat *BeatOptions

	Dropout       float64
	MaskCodebooks int
}

// Validate checks every parameter before any mask is built.
func (p Params) Validate() error {
	if err := checkProbability("intensity", p.Intensity); err != nil {
		return err
	}
	checks := []struct {
		name string
		v    int
	}{
		{"prefix_steps", p.PrefixSteps},
		{"suffix_steps", p.SuffixSteps},
		{"period", p.Period},
		{"period_width", p.PeriodWidth},
		{"onset_width", p.OnsetWidth},
		{"n_mask_codebooks", p.MaskCodebooks},
	}
	for _, c := range checks {
		if err := checkNonNegative(c.name, c.v); err != nil {
			return err
		}
	}
	if p.Beat != nil {
		if err := p.Beat.Validate(); err != nil {
			return err
		}
	}
	return checkProbability("dropout", p.Dropout)
}

// Standard assembles the fixed-order generation pipeline:
// random, and inpaint, and periodic, or onset, and beat, dropout, codebook.
// The onset and beat stages are present only when enabled. Dropout runs
// before the codebook stage so that fine codebooks are always regenerated.
func Standard(p Params) (*Pipeline, error) {
	if err := p.Validate(); err != nil {
		return nil, err
	}

	ops := []Op{
		Start(Random{Intensity: p.Intensity}),
		Intersect(InpaintHints{Prefix: p.PrefixSteps, Suffix: p.SuffixSteps}),
		Intersect(PeriodicHints{Period: p.Period, Width: p.PeriodWidth, RandomRoll: true}),
	}
	if p.OnsetWidth > 0 {
		ops = append(ops, Union(Onsets{Width: p.OnsetWidth, Centered: p.OnsetCentered}))
	}
	if p.Beat != nil {
		ops = append(ops, Intersect(Beats{Options: *p.Beat}))
	}
	ops = append(ops,
		DropoutOp{P: p.Dropout},
		CodebookOp{N: p.MaskCodebooks},
	)

	return NewPipeline(ops...), nil
}

// NeedsTimeBase reports whether any enabled stage converts seconds to steps.
func (p Params) NeedsTimeBase() bool {
	return p.OnsetWidth > 0 || p.Beat != nil
}

package mask

import (
	"math/rand/v2"
	"testing"

	"github.com/vamp-go/vamp-go/internal/tokens"
)

func BenchmarkStandardBuild(b *testing.B) {
	cases := []struct {
		name   string
		shape  tokens.Shape
		params Params
	}{
		{
			name:   "14x430-periodic",
			shape:  tokens.Shape{Codebooks: 14, Steps: 430},
			params: Params{Intensity: 1, Period: 7, PeriodWidth: 1, MaskCodebooks: 9},
		},
		{
			name:  "14x430-onsets-beats",
			shape: tokens.Shape{Codebooks: 14, Steps: 430},
			params: Params{
				Intensity: 1, Period: 3, PeriodWidth: 1, OnsetWidth: 5, Dropout: 0.1, MaskCodebooks: 9,
				Beat: &BeatOptions{BeforeSeconds: 0.01, AfterSeconds: 0.05, MaskDownbeats: true, MaskUpbeats: true, Dropout: 0.7, Invert: true},
			},
		},
		{
			name:   "14x1720-inpaint",
			shape:  tokens.Shape{Codebooks: 14, Steps: 1720},
			params: Params{Intensity: 0.8, PrefixSteps: 172, SuffixSteps: 172, MaskCodebooks: 9},
		},
	}

	events := Events{
		Onsets:    []float64{0.5, 1.25, 3.0, 4.75, 6.1},
		Beats:     []float64{0.5, 1.0, 1.5, 2.0, 2.5, 3.0, 3.5, 4.0},
		Downbeats: []float64{0.5, 2.5},
	}

	for _, tc := range cases {
		b.Run(tc.name, func(b *testing.B) {
			pipeline, err := Standard(tc.params)
			if err != nil {
				b.Fatalf("unexpected params error: %v", err)
			}
			env := &Env{
				Rand:     rand.New(rand.NewPCG(1, 1)),
				TimeBase: tokens.TimeBase{SampleRate: 44100, HopLength: 512},
				Events:   events,
			}

			b.ReportAllocs()
			b.ResetTimer()
			for i := 0; i < b.N; i++ {
				if _, err := pipeline.Build(tc.shape, env); err != nil {
					b.Fatalf("unexpected build error: %v", err)
				}
			}
		})
	}
}

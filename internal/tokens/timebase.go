package tokens

import (
	"fmt"
	"math"
)

// TimeBase converts between seconds and codec time steps.
type TimeBase struct {
	SampleRate int `json:"sample_rate" msgpack:"sample_rate"`
	HopLength  int `json:"hop_length" msgpack:"hop_length"`
}

// Validate rejects a time base that cannot convert.
func (tb TimeBase) Validate() error {
	if tb.SampleRate <= 0 || tb.HopLength <= 0 {
		return fmt.Errorf("invalid time base: sample_rate=%d hop_length=%d", tb.SampleRate, tb.HopLength)
	}
	return nil
}

// StepsPerSecond is the token rate of the codec.
func (tb TimeBase) StepsPerSecond() float64 {
	return float64(tb.SampleRate) / float64(tb.HopLength)
}

// Steps rounds a duration in seconds up to whole time steps.
func (tb TimeBase) Steps(seconds float64) int {
	return int(math.Ceil(seconds * tb.StepsPerSecond()))
}

// Seconds converts a step count back to seconds.
func (tb TimeBase) Seconds(steps int) float64 {
	return float64(steps) / tb.StepsPerSecond()
}

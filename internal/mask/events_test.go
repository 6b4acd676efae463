package mask

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/vamp-go/vamp-go/internal/tokens"
)

// Ten steps per second keeps the arithmetic readable.
var testTimeBase = tokens.TimeBase{SampleRate: 1000, HopLength: 100}

func columns(m *tokens.Mask) []bool {
	return m.Rows()[0]
}

func TestOnsetMaskFollowingWindow(t *testing.T) {
	shape := tokens.Shape{Codebooks: 2, Steps: 20}

	m, err := OnsetMask([]float64{0.2, 1.8}, shape, 3, false, testTimeBase)
	require.NoError(t, err)

	want := make([]bool, 20)
	for _, s := range []int{2, 3, 4, 18, 19} {
		want[s] = true
	}
	assert.Equal(t, want, columns(m))
	assert.Equal(t, want, m.Rows()[1])
}

func TestOnsetMaskCentered(t *testing.T) {
	shape := tokens.Shape{Codebooks: 1, Steps: 10}

	m, err := OnsetMask([]float64{0.0, 0.5}, shape, 4, true, testTimeBase)
	require.NoError(t, err)

	want := []bool{true, true, false, true, true, true, true, false, false, false}
	assert.Equal(t, want, columns(m))
}

func TestOnsetMaskNoOnsets(t *testing.T) {
	m, err := OnsetMask(nil, tokens.Shape{Codebooks: 2, Steps: 5}, 3, false, testTimeBase)
	require.NoError(t, err)
	assert.True(t, m.All(false))
}

func TestOnsetMaskRequiresTimeBase(t *testing.T) {
	_, err := OnsetMask([]float64{1}, tokens.Shape{Codebooks: 1, Steps: 5}, 1, false, tokens.TimeBase{})
	require.Error(t, err)
}

func TestBeatMaskWindows(t *testing.T) {
	shape := tokens.Shape{Codebooks: 1, Steps: 30}
	beats := []float64{0.5, 1.0, 1.5, 2.0}
	downbeats := []float64{1.0}

	opts := BeatOptions{
		BeforeSeconds: 0.1,
		AfterSeconds:  0.2,
		MaskDownbeats: true,
		MaskUpbeats:   true,
	}

	m, err := BeatMask(beats, downbeats, shape, opts, testTimeBase, newRand(1))
	require.NoError(t, err)

	want := make([]bool, 30)
	for _, center := range []int{5, 10, 15, 20} {
		for s := center - 1; s < center+2; s++ {
			want[s] = true
		}
	}
	assert.Equal(t, want, columns(m))
}

func TestBeatMaskSelection(t *testing.T) {
	shape := tokens.Shape{Codebooks: 1, Steps: 40}
	beats := []float64{0.5, 1.0, 1.5, 2.0, 2.5, 3.0}
	downbeats := []float64{1.0, 3.0}

	t.Run("downbeats only", func(t *testing.T) {
		opts := BeatOptions{AfterSeconds: 0.1, MaskDownbeats: true}
		m, err := BeatMask(beats, downbeats, shape, opts, testTimeBase, newRand(1))
		require.NoError(t, err)
		assert.Equal(t, 2, m.Count())
		assert.True(t, m.At(0, 10))
		assert.True(t, m.At(0, 30))
	})

	t.Run("every second upbeat", func(t *testing.T) {
		opts := BeatOptions{AfterSeconds: 0.1, MaskUpbeats: true, BeatDownsample: 2}
		m, err := BeatMask(beats, downbeats, shape, opts, testTimeBase, newRand(1))
		require.NoError(t, err)
		// upbeats are 5, 15, 20, 25; every second keeps 5 and 20
		assert.Equal(t, 2, m.Count())
		assert.True(t, m.At(0, 5))
		assert.True(t, m.At(0, 20))
	})

	t.Run("window dropout of one drops everything", func(t *testing.T) {
		opts := BeatOptions{AfterSeconds: 0.2, MaskUpbeats: true, MaskDownbeats: true, Dropout: 1}
		m, err := BeatMask(beats, downbeats, shape, opts, testTimeBase, newRand(1))
		require.NoError(t, err)
		assert.True(t, m.All(false))
	})

	t.Run("invert protects the beats", func(t *testing.T) {
		opts := BeatOptions{AfterSeconds: 0.1, MaskDownbeats: true, Invert: true}
		m, err := BeatMask(beats, downbeats, shape, opts, testTimeBase, newRand(1))
		require.NoError(t, err)
		assert.Equal(t, 38, m.Count())
		assert.False(t, m.At(0, 10))
		assert.False(t, m.At(0, 30))
	})
}

func TestBeatMaskValidation(t *testing.T) {
	shape := tokens.Shape{Codebooks: 1, Steps: 4}

	_, err := BeatMask(nil, nil, shape, BeatOptions{Dropout: 2}, testTimeBase, newRand(1))
	assert.True(t, IsParamError(err))

	_, err = BeatMask(nil, nil, shape, BeatOptions{BeforeSeconds: -1}, testTimeBase, newRand(1))
	assert.True(t, IsParamError(err))
}

package tokens

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestFromRows(t *testing.T) {
	g, err := FromRows([][]int{{1, 2, 3}, {4, 5, 6}})
	require.NoError(t, err)

	assert.Equal(t, Shape{Codebooks: 2, Steps: 3}, g.Shape())
	assert.Equal(t, 5, g.At(1, 1))
	assert.Equal(t, [][]int{{1, 2, 3}, {4, 5, 6}}, g.Rows())
}

func TestFromRows_Rejects(t *testing.T) {
	_, err := FromRows([][]int{{1, 2}, {3}})
	assert.True(t, errors.Is(err, ErrShapeMismatch))

	_, err = FromRows([][]int{{1, -2}})
	assert.EqualError(t, err, "negative token -2 at (0, 1)")
}

func TestGridColumnsAndConcat(t *testing.T) {
	g, err := FromRows([][]int{{0, 1, 2, 3}, {10, 11, 12, 13}})
	require.NoError(t, err)

	left := g.Columns(0, 1)
	right := g.Columns(1, 99)
	assert.Equal(t, [][]int{{0}, {10}}, left.Rows())
	assert.Equal(t, [][]int{{1, 2, 3}, {11, 12, 13}}, right.Rows())

	joined, err := Concat(left, right)
	require.NoError(t, err)
	assert.True(t, joined.Equal(g))

	_, err = Concat(g, NewGrid(3, 1))
	assert.True(t, errors.Is(err, ErrShapeMismatch))
}

func TestBuilderLeavesSourceUntouched(t *testing.T) {
	g := NewGrid(1, 3)
	b := NewBuilder(g)
	b.Set(0, 2, 7)
	out := b.Grid()

	assert.Equal(t, 0, g.At(0, 2))
	assert.Equal(t, 7, out.At(0, 2))
}

func TestBuilderCopyColumns(t *testing.T) {
	src, err := FromRows([][]int{{1, 2, 3}})
	require.NoError(t, err)

	b := NewBuilder(NewGrid(1, 4))
	b.CopyColumns(src, 1, 2, 2)

	assert.Equal(t, [][]int{{0, 0, 2, 3}}, b.Grid().Rows())
}

func TestMaskCountsAndRows(t *testing.T) {
	m, err := MaskFromIntRows([][]int{{1, 0, 0, 1}, {1, 1, 0, 0}})
	require.NoError(t, err)

	assert.Equal(t, 4, m.Count())
	assert.Equal(t, 0.5, m.Fraction())
	assert.Equal(t, [][]int{{1, 0, 0, 1}, {1, 1, 0, 0}}, m.IntRows())
	assert.False(t, m.All(true))

	m.SetColumn(2, true)
	m.SetRow(0, true)
	assert.Equal(t, [][]bool{{true, true, true, true}, {true, true, true, false}}, m.Rows())
}

func TestEmptyMaskFraction(t *testing.T) {
	assert.Equal(t, 0.0, NewMask(Shape{}, true).Fraction())
}

func TestConcatMasks(t *testing.T) {
	a := NewMask(Shape{Codebooks: 2, Steps: 1}, true)
	b := NewMask(Shape{Codebooks: 2, Steps: 2}, false)

	m, err := ConcatMasks(a, b)
	require.NoError(t, err)
	assert.Equal(t, [][]int{{1, 0, 0}, {1, 0, 0}}, m.IntRows())
	assert.True(t, m.Columns(1, 3).Equal(b))

	_, err = ConcatMasks(a, NewMask(Shape{Codebooks: 1, Steps: 1}, false))
	assert.True(t, errors.Is(err, ErrShapeMismatch))
}

func TestTimeBase(t *testing.T) {
	tb := TimeBase{SampleRate: 44100, HopLength: 768}
	require.NoError(t, tb.Validate())

	assert.InDelta(t, 57.42, tb.StepsPerSecond(), 0.01)
	assert.Equal(t, 58, tb.Steps(1))
	assert.Equal(t, 0, tb.Steps(0))
	assert.InDelta(t, 1.0, tb.Seconds(tb.Steps(1)), 0.02)

	assert.EqualError(t, TimeBase{SampleRate: 44100}.Validate(), "invalid time base: sample_rate=44100 hop_length=0")
}

package embedding

import (
	"bytes"
	"math"
	"math/rand"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestInitUnitNorm(t *testing.T) {
	for _, p := range []int{1, 2} {
		tbl := New([]int64{0, 1, 2, 3, 4}, 50)
		tbl.Init(rand.New(rand.NewSource(7)), p)

		for _, id := range tbl.IDs() {
			v, err := tbl.Get(id)
			require.NoError(t, err)
			assert.InDelta(t, 1.0, Norm(v, p), 1e-9, "p=%d id=%d", p, id)
		}
	}
}

func TestInitRange(t *testing.T) {
	dim := 4
	tbl := New([]int64{0, 1, 2}, dim)
	tbl.Init(rand.New(rand.NewSource(1)), 2)

	// after normalisation each coordinate is bounded by the norm itself
	for _, id := range tbl.IDs() {
		v, _ := tbl.Get(id)
		for _, x := range v {
			assert.LessOrEqual(t, math.Abs(x), 1.0)
		}
	}
}

func TestDistinctStorage(t *testing.T) {
	tbl := New([]int64{0, 1}, 3)
	require.NoError(t, tbl.Set(0, []float64{1, 2, 3}))

	v1, err := tbl.Get(1)
	require.NoError(t, err)
	assert.Equal(t, []float64{0, 0, 0}, v1)

	v0, _ := tbl.Get(0)
	v0 = append(v0, 9)
	v1, _ = tbl.Get(1)
	assert.Equal(t, []float64{0, 0, 0}, v1, "append on one row must not spill into the next")
	_ = v0
}

func TestSparseIDs(t *testing.T) {
	tbl := New([]int64{40, 7, 7, 12}, 2)
	assert.Equal(t, []int64{7, 12, 40}, tbl.IDs())
	assert.Equal(t, 3, tbl.Len())

	require.NoError(t, tbl.Set(40, []float64{3, 4}))
	v, err := tbl.Get(40)
	require.NoError(t, err)
	assert.Equal(t, []float64{3, 4}, v)

	_, err = tbl.Get(0)
	assert.ErrorIs(t, err, ErrUnknownID)
	assert.False(t, tbl.Has(1))
	assert.True(t, tbl.Has(12))
}

func TestSetDoesNotNormalize(t *testing.T) {
	tbl := New([]int64{0}, 2)
	require.NoError(t, tbl.Set(0, []float64{3, 4}))
	v, _ := tbl.Get(0)
	assert.Equal(t, 5.0, Norm(v, 2))

	assert.ErrorIs(t, tbl.Set(0, []float64{1}), ErrDimension)
	assert.ErrorIs(t, tbl.Set(5, []float64{1, 1}), ErrUnknownID)
}

func TestCloneIsDeep(t *testing.T) {
	tbl := New([]int64{0, 1}, 2)
	require.NoError(t, tbl.Set(0, []float64{1, 1}))

	shadow := tbl.Clone()
	v, _ := shadow.Get(0)
	v[0] = 42

	orig, _ := tbl.Get(0)
	assert.Equal(t, []float64{1, 1}, orig)
}

func TestNormalize(t *testing.T) {
	tbl := New([]int64{0, 1, 2}, 2)
	require.NoError(t, tbl.Set(0, []float64{3, 4}))
	require.NoError(t, tbl.Set(1, []float64{-2, 6}))

	tbl.Normalize(1)
	v0, _ := tbl.Get(0)
	v1, _ := tbl.Get(1)
	v2, _ := tbl.Get(2)
	assert.InDelta(t, 1.0, Norm(v0, 1), 1e-12)
	assert.InDelta(t, 1.0, Norm(v1, 1), 1e-12)
	assert.Equal(t, []float64{0, 0}, v2, "zero vectors stay zero")
}

func TestTextRoundTrip(t *testing.T) {
	tbl := New([]int64{2, 0, 1}, 3)
	tbl.Init(rand.New(rand.NewSource(3)), 2)

	var buf bytes.Buffer
	require.NoError(t, WriteText(&buf, tbl))

	lines := strings.Split(strings.TrimSuffix(buf.String(), "\n"), "\n")
	require.Len(t, lines, 3)
	assert.True(t, strings.HasPrefix(lines[0], "0\t["))
	assert.True(t, strings.HasSuffix(lines[0], "]"))
	assert.Equal(t, 2, strings.Count(lines[0], ", "))

	back, err := ReadText(&buf, 0)
	require.NoError(t, err)
	assert.Equal(t, 3, back.Dim())
	for _, id := range tbl.IDs() {
		want, _ := tbl.Get(id)
		got, err := back.Get(id)
		require.NoError(t, err)
		assert.Equal(t, want, got)
	}
}

func TestReadTextSkipsMalformed(t *testing.T) {
	in := "0\t[1, 2]\ngarbage\n1\t[1, 2, 3]\n2\t[x, 1]\n3\t[0.5, -0.5]\n"
	tbl, err := ReadText(strings.NewReader(in), 2)
	require.NoError(t, err)
	assert.Equal(t, []int64{0, 3}, tbl.IDs())
}

func TestVectorBlob(t *testing.T) {
	v := []float64{0.25, -1, math.Pi}
	back, err := DecodeVector(EncodeVector(v))
	require.NoError(t, err)
	assert.Equal(t, v, back)

	_, err = DecodeVector([]byte{1, 2, 3})
	assert.ErrorIs(t, err, ErrDimension)
}

package transe

import (
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/cnclabs/transe/pkg/knowledge"
)

func TestScore(t *testing.T) {
	h := []float64{1, -2, 0.5}
	tail := []float64{0, 1, 1}
	r := []float64{0.5, 0.5, -1}
	// h + r - t = [1.5, -2.5, -1.5]
	assert.InDelta(t, 1.5*1.5+2.5*2.5+1.5*1.5, Score(h, tail, r, 2), 1e-12)
	assert.InDelta(t, 1.5+2.5+1.5, Score(h, tail, r, 1), 1e-12)

	assert.Equal(t, 0.0, Score(tail, tail, []float64{0, 0, 0}, 1))
	assert.GreaterOrEqual(t, Score(r, h, tail, 2), 0.0)
}

func TestHingeLoss(t *testing.T) {
	margin := 1.0
	assert.Equal(t, margin, HingeLoss(3, 3, margin))
	assert.Equal(t, 0.0, HingeLoss(1, 5, margin))
	assert.Equal(t, 0.0, HingeLoss(1, 2, margin))
	assert.InDelta(t, 1.5, HingeLoss(2, 1.5, margin), 1e-12)

	// strictly increasing in pos, decreasing in neg above the floor
	assert.Greater(t, HingeLoss(2.1, 2, margin), HingeLoss(2, 2, margin))
	assert.Less(t, HingeLoss(2, 2.1, margin), HingeLoss(2, 2, margin))
	for _, x := range []float64{-10, -1, 0, 1, 10} {
		assert.Equal(t, math.Max(0, x-2+margin), HingeLoss(x, 2, margin))
	}
}

func newFixture(t *testing.T, norm int) *TransE {
	t.Helper()
	opts := DefaultOptions()
	opts.EmbedDim = 2
	opts.Norm = norm
	opts.LearningRate = 0.1
	opts.Margin = 1

	te, err := New(opts, []int64{0, 1, 2}, []int64{0}, []knowledge.Triple{{Head: 0, Tail: 1, Relation: 0}})
	require.NoError(t, err)
	require.NoError(t, te.Entities().Set(0, []float64{1, 0}))
	require.NoError(t, te.Entities().Set(1, []float64{0, 1}))
	require.NoError(t, te.Entities().Set(2, []float64{0, 0}))
	require.NoError(t, te.Relations().Set(0, []float64{0, 0}))
	return te
}

func get(t *testing.T, te *TransE, entity bool, id int64) []float64 {
	t.Helper()
	tbl := te.Relations()
	if entity {
		tbl = te.Entities()
	}
	v, err := tbl.Get(id)
	require.NoError(t, err)
	return v
}

func TestUpdatePairReadsSnapshot(t *testing.T) {
	te := newFixture(t, 2)
	p := pair{
		pos: knowledge.Triple{Head: 0, Tail: 1, Relation: 0},
		neg: knowledge.Triple{Head: 2, Tail: 1, Relation: 0},
	}
	snapE, snapR := te.Entities(), te.Relations()
	shadowE, shadowR := snapE.Clone(), snapR.Clone()

	// pos score 2, neg score 1, loss 2; grad+ = [2,-2], grad- = [0,-2]
	loss, err := te.updatePair(p, snapE, snapR, shadowE, shadowR)
	require.NoError(t, err)
	assert.InDelta(t, 2.0, loss, 1e-12)

	// the same pair again still sees the pre-batch values; entity 1 is the
	// tail of both triples so each call moves it by lr·(g+ - g-) = [0.2, 0]
	loss, err = te.updatePair(p, snapE, snapR, shadowE, shadowR)
	require.NoError(t, err)
	assert.InDelta(t, 2.0, loss, 1e-12)

	e0, _ := shadowE.Get(0)
	e1, _ := shadowE.Get(1)
	e2, _ := shadowE.Get(2)
	r0, _ := shadowR.Get(0)
	assert.InDeltaSlice(t, []float64{0.6, 0.4}, e0, 1e-12)
	assert.InDeltaSlice(t, []float64{0.4, 1.0}, e1, 1e-12)
	assert.InDeltaSlice(t, []float64{0, -0.4}, e2, 1e-12)
	assert.InDeltaSlice(t, []float64{-0.4, 0}, r0, 1e-12)

	assert.Equal(t, []float64{1, 0}, get(t, te, true, 0))
	assert.Equal(t, []float64{0, 1}, get(t, te, true, 1))
	assert.Equal(t, []float64{0, 0}, get(t, te, false, 0))
}

func TestUpdatePairZeroLossNoUpdate(t *testing.T) {
	te := newFixture(t, 2)
	require.NoError(t, te.Entities().Set(2, []float64{-3, 0}))
	// pos score 2, neg (2,1,0) score 9+1 = 10
	p := pair{
		pos: knowledge.Triple{Head: 0, Tail: 1, Relation: 0},
		neg: knowledge.Triple{Head: 2, Tail: 1, Relation: 0},
	}
	snapE, snapR := te.Entities(), te.Relations()
	shadowE, shadowR := snapE.Clone(), snapR.Clone()

	loss, err := te.updatePair(p, snapE, snapR, shadowE, shadowR)
	require.NoError(t, err)
	assert.Equal(t, 0.0, loss)

	for _, id := range []int64{0, 1, 2} {
		want, _ := snapE.Get(id)
		got, _ := shadowE.Get(id)
		assert.Equal(t, want, got)
	}
}

func TestGradientSignConvention(t *testing.T) {
	te := newFixture(t, 1)
	dst := make([]float64, 3)
	// 2(h + r - t) = [2, 0, -4]
	te.gradient(dst, []float64{1, 1, 0}, []float64{0, 1, 2}, []float64{0, 0, 0})
	assert.Equal(t, []float64{1, -1, -1}, dst)

	te = newFixture(t, 2)
	te.gradient(dst, []float64{1, 1, 0}, []float64{0, 1, 2}, []float64{0, 0, 0})
	assert.Equal(t, []float64{2, 0, -4}, dst)
}

func TestUpdatePairL1(t *testing.T) {
	te := newFixture(t, 1)
	p := pair{
		pos: knowledge.Triple{Head: 0, Tail: 1, Relation: 0},
		neg: knowledge.Triple{Head: 2, Tail: 1, Relation: 0},
	}
	snapE, snapR := te.Entities(), te.Relations()
	shadowE, shadowR := snapE.Clone(), snapR.Clone()

	// L1: pos score 2, neg score 1; grad+ = sign[2,-2] = [1,-1], grad- = sign[0,-2] = [-1,-1]
	loss, err := te.updatePair(p, snapE, snapR, shadowE, shadowR)
	require.NoError(t, err)
	assert.InDelta(t, 2.0, loss, 1e-12)

	e0, _ := shadowE.Get(0)
	e1, _ := shadowE.Get(1)
	e2, _ := shadowE.Get(2)
	r0, _ := shadowR.Get(0)
	assert.InDeltaSlice(t, []float64{0.9, 0.1}, e0, 1e-12)
	// +0.1*[1,-1] then -0.1*[-1,-1]
	assert.InDeltaSlice(t, []float64{0.2, 1.0}, e1, 1e-12)
	assert.InDeltaSlice(t, []float64{-0.1, -0.1}, e2, 1e-12)
	// -0.1*[1,-1] then +0.1*[-1,-1]
	assert.InDeltaSlice(t, []float64{-0.2, 0}, r0, 1e-12)
}

func TestDrawBatchDistinct(t *testing.T) {
	te := newFixture(t, 1)
	te.triples = make([]knowledge.Triple, 50)
	te.perm = make([]int, 50)
	for i := range te.perm {
		te.perm[i] = i
	}

	for round := 0; round < 20; round++ {
		idx := te.drawBatch(17)
		require.Len(t, idx, 17)
		seen := map[int]bool{}
		for _, i := range idx {
			assert.False(t, seen[i], "duplicate index %d", i)
			assert.True(t, i >= 0 && i < 50)
			seen[i] = true
		}
	}
	assert.Empty(t, te.drawBatch(0))
}

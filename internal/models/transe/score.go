package transe

import (
	"math"

	"github.com/cnclabs/transe/pkg/embedding"
	"github.com/cnclabs/transe/pkg/knowledge"
)

// Score returns the distance of h + r from t: the sum of squares of
// h + r - t for p = 2, the sum of absolute values for p = 1
func Score(h, t, r []float64, p int) float64 {
	distance := 0.0
	if p == 2 {
		for d := range h {
			diff := h[d] + r[d] - t[d]
			distance += diff * diff
		}
	} else {
		for d := range h {
			distance += math.Abs(h[d] + r[d] - t[d])
		}
	}
	return distance
}

// HingeLoss is max(0, pos - neg + margin)
func HingeLoss(pos, neg, margin float64) float64 {
	return math.Max(0, pos-neg+margin)
}

// ScoreTriple looks up the vectors of t and scores them
func ScoreTriple(entities, relations *embedding.Table, t knowledge.Triple, p int) (float64, error) {
	h, tail, r, err := lookup(entities, relations, t)
	if err != nil {
		return 0, err
	}
	return Score(h, tail, r, p), nil
}

func lookup(entities, relations *embedding.Table, t knowledge.Triple) (h, tail, r []float64, err error) {
	if h, err = entities.Get(t.Head); err != nil {
		return nil, nil, nil, err
	}
	if tail, err = entities.Get(t.Tail); err != nil {
		return nil, nil, nil, err
	}
	if r, err = relations.Get(t.Relation); err != nil {
		return nil, nil, nil, err
	}
	return h, tail, r, nil
}

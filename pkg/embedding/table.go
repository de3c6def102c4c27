package embedding

import (
	"fmt"
	"math"
	"math/rand"
	"sort"

	"gonum.org/v1/gonum/floats"
)

// Table maps ids to fixed-length embedding vectors.
// When the ids are exactly 0..n-1 the id is used as the row index directly,
// otherwise a row index map is kept next to the sorted id list.
type Table struct {
	dim   int
	ids   []int64
	rows  [][]float64
	index map[int64]int // nil for dense id spaces
}

// New allocates a zeroed table holding one vector of length dim per distinct id
func New(ids []int64, dim int) *Table {
	sorted := make([]int64, len(ids))
	copy(sorted, ids)
	sort.Slice(sorted, func(i, j int) bool { return sorted[i] < sorted[j] })
	sorted = dedupe(sorted)

	t := &Table{
		dim:  dim,
		ids:  sorted,
		rows: make([][]float64, len(sorted)),
	}
	if !contiguous(sorted) {
		t.index = make(map[int64]int, len(sorted))
		for i, id := range sorted {
			t.index[id] = i
		}
	}

	backing := make([]float64, len(sorted)*dim)
	for i := range t.rows {
		t.rows[i] = backing[i*dim : (i+1)*dim : (i+1)*dim]
	}
	return t
}

func dedupe(ids []int64) []int64 {
	if len(ids) < 2 {
		return ids
	}
	out := ids[:1]
	for _, id := range ids[1:] {
		if id != out[len(out)-1] {
			out = append(out, id)
		}
	}
	return out
}

func contiguous(sorted []int64) bool {
	for i, id := range sorted {
		if id != int64(i) {
			return false
		}
	}
	return true
}

// Init fills every vector with values drawn uniformly from
// [-6/sqrt(dim), 6/sqrt(dim)) and rescales it to unit p-norm
func (t *Table) Init(rng *rand.Rand, p int) {
	bound := 6.0 / math.Sqrt(float64(t.dim))
	for _, row := range t.rows {
		for d := range row {
			row[d] = (rng.Float64()*2 - 1) * bound
		}
		normalize(row, p)
	}
}

func (t *Table) row(id int64) (int, bool) {
	if t.index == nil {
		if id < 0 || id >= int64(len(t.rows)) {
			return 0, false
		}
		return int(id), true
	}
	i, ok := t.index[id]
	return i, ok
}

// Has reports whether id has a vector in the table
func (t *Table) Has(id int64) bool {
	_, ok := t.row(id)
	return ok
}

// Get returns the vector stored for id. The returned slice is the table's
// own storage: writes through it change the table.
func (t *Table) Get(id int64) ([]float64, error) {
	i, ok := t.row(id)
	if !ok {
		return nil, fmt.Errorf("%w: %d", ErrUnknownID, id)
	}
	return t.rows[i], nil
}

// Set copies vec into the slot for id. The norm is not checked.
func (t *Table) Set(id int64, vec []float64) error {
	i, ok := t.row(id)
	if !ok {
		return fmt.Errorf("%w: %d", ErrUnknownID, id)
	}
	if len(vec) != t.dim {
		return fmt.Errorf("%w: got %d, want %d", ErrDimension, len(vec), t.dim)
	}
	copy(t.rows[i], vec)
	return nil
}

// Clone returns a deep copy. The id layout is shared since it never changes.
func (t *Table) Clone() *Table {
	c := &Table{
		dim:   t.dim,
		ids:   t.ids,
		rows:  make([][]float64, len(t.rows)),
		index: t.index,
	}
	backing := make([]float64, len(t.rows)*t.dim)
	for i, row := range t.rows {
		dst := backing[i*t.dim : (i+1)*t.dim : (i+1)*t.dim]
		copy(dst, row)
		c.rows[i] = dst
	}
	return c
}

// Normalize rescales every vector to unit p-norm
func (t *Table) Normalize(p int) {
	for _, row := range t.rows {
		normalize(row, p)
	}
}

func normalize(v []float64, p int) {
	n := Norm(v, p)
	if n > 0 {
		floats.Scale(1/n, v)
	}
}

// Norm returns the L1 or L2 norm of v
func Norm(v []float64, p int) float64 {
	return floats.Norm(v, float64(p))
}

// IDs returns the ids in ascending order
func (t *Table) IDs() []int64 {
	return t.ids
}

// Len returns the number of vectors
func (t *Table) Len() int {
	return len(t.rows)
}

// Dim returns the vector length
func (t *Table) Dim() int {
	return t.dim
}

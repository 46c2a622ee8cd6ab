package grid

import (
	"sort"

	"github.com/grailbio/base/log"
	"github.com/grailbio/qcdgrid/sparse"
)

// ImportSubgrid is the read-only tabulated subgrid variant: fixed node
// vectors and a sparse coefficient tensor with any reweighting factors
// already applied.  It is produced by foreign-table importers and by
// conversion from an interpolation subgrid; it cannot accept events.
type ImportSubgrid struct {
	array  *sparse.Array3
	q2Grid []float64
	x1Grid []float64
	x2Grid []float64
}

// NewImportSubgrid returns a tabulated subgrid over the given nodes and
// coefficients.  The array dimensions must match the node vector lengths.
func NewImportSubgrid(array *sparse.Array3, q2Grid, x1Grid, x2Grid []float64) *ImportSubgrid {
	n0, n1, n2 := array.Dims()
	if n0 != len(q2Grid) || n1 != len(x1Grid) || n2 != len(x2Grid) {
		log.Panicf("grid: array dimensions (%d, %d, %d) do not match node counts (%d, %d, %d)",
			n0, n1, n2, len(q2Grid), len(x1Grid), len(x2Grid))
	}
	return &ImportSubgrid{array: array, q2Grid: q2Grid, x1Grid: x1Grid, x2Grid: x2Grid}
}

// NewImportSubgridFrom converts an interpolation subgrid into tabulated
// form: reweighting factors are multiplied into each coefficient, and when
// the source detected a static scale the Q² axis collapses to that single
// value.
func NewImportSubgridFrom(src *LagrangeSubgrid) *ImportSubgrid {
	x1Grid := src.X1Grid()
	x2Grid := src.X2Grid()
	rw1 := make([]float64, len(x1Grid))
	rw2 := make([]float64, len(x2Grid))
	for i, x := range x1Grid {
		rw1[i] = 1
		if src.reweight {
			rw1[i] = weightfun(x)
		}
	}
	for i, x := range x2Grid {
		rw2[i] = 1
		if src.reweight {
			rw2[i] = weightfun(x)
		}
	}

	var (
		array  *sparse.Array3
		q2Grid []float64
	)
	if q2 := src.StaticQ2(); q2 > 0 {
		// All events shared one scale; sum the Q² axis away.
		array = sparse.New(1, len(x1Grid), len(x2Grid))
		src.Each(func(_, ix1, ix2 int, v float64) {
			if v == 0 {
				return
			}
			array.Add(0, ix1, ix2, v*rw1[ix1]*rw2[ix2])
		})
		q2Grid = []float64{q2}
	} else {
		q2Grid = src.Q2Grid()
		array = sparse.New(len(q2Grid), len(x1Grid), len(x2Grid))
		src.Each(func(iq2, ix1, ix2 int, v float64) {
			if v == 0 {
				return
			}
			array.Set(iq2, ix1, ix2, v*rw1[ix1]*rw2[ix2])
		})
	}
	return &ImportSubgrid{array: array, q2Grid: q2Grid, x1Grid: x1Grid, x2Grid: x2Grid}
}

// Array returns the backing sparse array; importers use it to populate the
// subgrid in place.
func (g *ImportSubgrid) Array() *sparse.Array3 {
	return g.array
}

// Fill is not supported: tabulated subgrids are read-only.
func (g *ImportSubgrid) Fill(Ntuple) {
	log.Panicf("grid: tabulated subgrids do not support Fill")
}

// Convolve contracts the stored coefficients against the index-space form
// of the luminosity.
func (g *ImportSubgrid) Convolve(x1Grid, x2Grid, q2Grid []float64, lumi Lumi) float64 {
	if lumi.byIndex == nil {
		log.Panicf("grid: tabulated subgrid requires the index-space luminosity form")
	}
	sum := 0.0
	g.array.Each(func(iq2, ix1, ix2 int, v float64) {
		if v == 0 {
			return
		}
		sum += v * lumi.byIndex(ix1, ix2, iq2)
	})
	return sum
}

// Q2Grid returns the tabulated Q² nodes.
func (g *ImportSubgrid) Q2Grid() []float64 { return g.q2Grid }

// X1Grid returns the tabulated x₁ nodes.
func (g *ImportSubgrid) X1Grid() []float64 { return g.x1Grid }

// X2Grid returns the tabulated x₂ nodes.
func (g *ImportSubgrid) X2Grid() []float64 { return g.x2Grid }

// IsEmpty reports whether no coefficient is stored.
func (g *ImportSubgrid) IsEmpty() bool {
	return g.array.IsEmpty()
}

func float64sEqual(a, b []float64) bool {
	if len(a) != len(b) {
		return false
	}
	for i, v := range a {
		if b[i] != v {
			return false
		}
	}
	return true
}

// Merge accumulates other into g.  An interpolation source is first
// converted to tabulated form.  The x node vectors must coincide; Q² nodes
// missing from g are inserted, and accumulation matches nodes by exact
// value.
func (g *ImportSubgrid) Merge(other Subgrid, transpose bool) error {
	var o *ImportSubgrid
	switch src := other.(type) {
	case *ImportSubgrid:
		o = src
	case *LagrangeSubgrid:
		o = NewImportSubgridFrom(src)
	default:
		return ErrUnsupported
	}

	ox1, ox2 := o.x1Grid, o.x2Grid
	if transpose {
		ox1, ox2 = ox2, ox1
	}
	if !float64sEqual(g.x1Grid, ox1) || !float64sEqual(g.x2Grid, ox2) {
		return ErrUnsupported
	}

	if float64sEqual(g.q2Grid, o.q2Grid) {
		o.array.Each(func(iq2, ix1, ix2 int, v float64) {
			if v == 0 {
				return
			}
			if transpose {
				ix1, ix2 = ix2, ix1
			}
			g.array.Add(iq2, ix1, ix2, v)
		})
		return nil
	}

	// Reconcile differing Q² node sets: insert missing nodes, then
	// accumulate plane by plane.
	index := make([]int, len(o.q2Grid))
	for oi, q2 := range o.q2Grid {
		i := sort.SearchFloat64s(g.q2Grid, q2)
		if i == len(g.q2Grid) || g.q2Grid[i] != q2 {
			g.q2Grid = append(g.q2Grid, 0)
			copy(g.q2Grid[i+1:], g.q2Grid[i:])
			g.q2Grid[i] = q2
			g.array.IncreaseXAt(i)
			// Earlier targets past the insertion point shift up.
			for oj := 0; oj < oi; oj++ {
				if index[oj] >= i {
					index[oj]++
				}
			}
		}
		index[oi] = i
	}
	o.array.Each(func(iq2, ix1, ix2 int, v float64) {
		if v == 0 {
			return
		}
		if transpose {
			ix1, ix2 = ix2, ix1
		}
		g.array.Add(index[iq2], ix1, ix2, v)
	})
	return nil
}

// Scale multiplies all stored coefficients by factor; scaling by zero
// drops the storage entirely.
func (g *ImportSubgrid) Scale(factor float64) {
	if factor == 0 {
		g.array.Clear()
		return
	}
	g.array.Scale(factor)
}

// Symmetrize folds entries with ix2 < ix1 onto (ix2, ix1), leaving the
// diagonal unchanged.
func (g *ImportSubgrid) Symmetrize() {
	folded := sparse.New(len(g.q2Grid), len(g.x1Grid), len(g.x2Grid))
	g.array.Each(func(iq2, ix1, ix2 int, v float64) {
		if ix2 < ix1 {
			return
		}
		folded.Set(iq2, ix1, ix2, v)
	})
	g.array.Each(func(iq2, ix1, ix2 int, v float64) {
		if ix2 >= ix1 {
			return
		}
		folded.Add(iq2, ix2, ix1, v)
	})
	g.array = folded
}

// CloneEmpty returns an empty tabulated subgrid with the same nodes.
func (g *ImportSubgrid) CloneEmpty() Subgrid {
	q2Grid := make([]float64, len(g.q2Grid))
	copy(q2Grid, g.q2Grid)
	x1Grid := make([]float64, len(g.x1Grid))
	copy(x1Grid, g.x1Grid)
	x2Grid := make([]float64, len(g.x2Grid))
	copy(x2Grid, g.x2Grid)
	return &ImportSubgrid{
		array:  sparse.New(len(q2Grid), len(x1Grid), len(x2Grid)),
		q2Grid: q2Grid,
		x1Grid: x1Grid,
		x2Grid: x2Grid,
	}
}

// Each yields every stored coefficient.
func (g *ImportSubgrid) Each(fn func(iq2, ix1, ix2 int, value float64)) {
	g.array.Each(fn)
}

// Q2Slice returns the occupied range of Q² node indices.
func (g *ImportSubgrid) Q2Slice() (start, end int) {
	return g.array.XRange()
}

// ExportQ2Slice writes one Q² plane into out, dividing each coefficient by
// x1·x2.
func (g *ImportSubgrid) ExportQ2Slice(iq2 int, out []float64) {
	if len(out) != len(g.x1Grid)*len(g.x2Grid) {
		log.Panicf("grid: slice buffer has %d entries, want %d",
			len(out), len(g.x1Grid)*len(g.x2Grid))
	}
	for i := range out {
		out[i] = 0
	}
	g.array.Each(func(i, ix1, ix2 int, v float64) {
		if i != iq2 || v == 0 {
			return
		}
		out[ix1*len(g.x2Grid)+ix2] = v / (g.x1Grid[ix1] * g.x2Grid[ix2])
	})
}

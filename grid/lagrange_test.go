package grid

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// unitLumi ignores the evaluation point.  Since the Lagrange weights of a
// single event sum to one per axis, convolving a one-event subgrid with
// unitLumi recovers the event weight.
var unitLumi = LumiByValue(func(x1, x2, q2 float64) float64 { return 1 })

func convolveSelf(sg Subgrid, lumi Lumi) float64 {
	return sg.Convolve(sg.X1Grid(), sg.X2Grid(), sg.Q2Grid(), lumi)
}

func TestLagrangeFillRecoversWeight(t *testing.T) {
	sg := NewLagrangeSubgrid(DefaultSubgridParams())
	assert.True(t, sg.IsEmpty())

	sg.Fill(Ntuple{X1: 0.1, X2: 0.2, Q2: 8100, Weight: 2.5})
	assert.False(t, sg.IsEmpty())
	assert.InDelta(t, 2.5, convolveSelf(sg, unitLumi), 1e-9)

	sg.Fill(Ntuple{X1: 0.3, X2: 0.4, Q2: 90000, Weight: 1.5})
	assert.InDelta(t, 4.0, convolveSelf(sg, unitLumi), 1e-9)
}

func TestLagrangeFillSilentDrop(t *testing.T) {
	sg := NewLagrangeSubgrid(DefaultSubgridParams())

	// Below the x range.
	sg.Fill(Ntuple{X1: 1e-9, X2: 0.5, Q2: 8100, Weight: 1})
	assert.True(t, sg.IsEmpty())
	// Below the Q² range.
	sg.Fill(Ntuple{X1: 0.5, X2: 0.5, Q2: 50, Weight: 1})
	assert.True(t, sg.IsEmpty())
	// Above the Q² range.
	sg.Fill(Ntuple{X1: 0.5, X2: 0.5, Q2: 1e8, Weight: 1})
	assert.True(t, sg.IsEmpty())
}

func TestLagrangeStaticQ2(t *testing.T) {
	sg := NewLagrangeSubgrid(DefaultSubgridParams())
	assert.Equal(t, 0.0, sg.StaticQ2())

	sg.Fill(Ntuple{X1: 0.1, X2: 0.2, Q2: 8100, Weight: 1})
	assert.Equal(t, 8100.0, sg.StaticQ2())
	sg.Fill(Ntuple{X1: 0.3, X2: 0.1, Q2: 8100, Weight: 1})
	assert.Equal(t, 8100.0, sg.StaticQ2())
	sg.Fill(Ntuple{X1: 0.3, X2: 0.1, Q2: 10000, Weight: 1})
	assert.Equal(t, 0.0, sg.StaticQ2())
}

func TestLagrangeScaleLinearity(t *testing.T) {
	sg := NewLagrangeSubgrid(DefaultSubgridParams())
	sg.Fill(Ntuple{X1: 0.1, X2: 0.2, Q2: 8100, Weight: 2.5})
	before := convolveSelf(sg, unitLumi)
	sg.Scale(3)
	assert.InDelta(t, 3*before, convolveSelf(sg, unitLumi), 1e-12)
}

func TestLagrangeMerge(t *testing.T) {
	params := DefaultSubgridParams()
	a := NewLagrangeSubgrid(params)
	b := NewLagrangeSubgrid(params)
	a.Fill(Ntuple{X1: 0.1, X2: 0.2, Q2: 8100, Weight: 1})
	b.Fill(Ntuple{X1: 0.2, X2: 0.1, Q2: 8100, Weight: 2})

	require.NoError(t, a.Merge(b, false))
	assert.InDelta(t, 3.0, convolveSelf(a, unitLumi), 1e-9)
	// Both sources shared one scale, so staticness survives the merge.
	assert.Equal(t, 8100.0, a.StaticQ2())
}

func TestLagrangeMergeTranspose(t *testing.T) {
	params := DefaultSubgridParams()
	a := NewLagrangeSubgrid(params)
	b := NewLagrangeSubgrid(params)
	a.Fill(Ntuple{X1: 0.1, X2: 0.2, Q2: 8100, Weight: 1})
	b.Fill(Ntuple{X1: 0.1, X2: 0.2, Q2: 8100, Weight: 1})

	c := a.CloneEmpty()
	require.NoError(t, c.Merge(b, true))
	// Transposed merge swaps the x axes, so c matches a filled with
	// swapped momentum fractions.
	d := NewLagrangeSubgrid(params)
	d.Fill(Ntuple{X1: 0.2, X2: 0.1, Q2: 8100, Weight: 1})

	type cell struct {
		iq2, ix1, ix2 int
		v             float64
	}
	var got, want []cell
	c.Each(func(iq2, ix1, ix2 int, v float64) { got = append(got, cell{iq2, ix1, ix2, v}) })
	d.Each(func(iq2, ix1, ix2 int, v float64) { want = append(want, cell{iq2, ix1, ix2, v}) })
	require.Equal(t, len(want), len(got))
	for i := range want {
		assert.Equal(t, want[i].iq2, got[i].iq2)
		assert.Equal(t, want[i].ix1, got[i].ix1)
		assert.Equal(t, want[i].ix2, got[i].ix2)
		assert.InDelta(t, want[i].v, got[i].v, 1e-15)
	}
}

func TestLagrangeMergeShapeMismatch(t *testing.T) {
	params := DefaultSubgridParams()
	a := NewLagrangeSubgrid(params)
	params.XBins = 40
	b := NewLagrangeSubgrid(params)
	b.Fill(Ntuple{X1: 0.1, X2: 0.2, Q2: 8100, Weight: 1})
	assert.Equal(t, ErrUnsupported, a.Merge(b, false))
}

func TestLagrangeWrongLumiFormPanics(t *testing.T) {
	sg := NewLagrangeSubgrid(DefaultSubgridParams())
	sg.Fill(Ntuple{X1: 0.1, X2: 0.2, Q2: 8100, Weight: 1})
	assert.Panics(t, func() {
		convolveSelf(sg, LumiByIndex(func(ix1, ix2, iq2 int) float64 { return 1 }))
	})
}

func TestLagrangeSymmetrizeIdempotent(t *testing.T) {
	sg := NewLagrangeSubgrid(DefaultSubgridParams())
	sg.Fill(Ntuple{X1: 0.1, X2: 0.2, Q2: 8100, Weight: 1})
	sg.Fill(Ntuple{X1: 0.4, X2: 0.05, Q2: 8100, Weight: 2})

	sg.Symmetrize()
	var once []float64
	sg.Each(func(_, _, _ int, v float64) { once = append(once, v) })
	sg.Symmetrize()
	var twice []float64
	sg.Each(func(_, _, _ int, v float64) { twice = append(twice, v) })
	assert.Equal(t, once, twice)
}

func TestConvertToImport(t *testing.T) {
	sg := NewLagrangeSubgrid(DefaultSubgridParams())
	sg.Fill(Ntuple{X1: 0.1, X2: 0.2, Q2: 8100, Weight: 2.5})
	sg.Fill(Ntuple{X1: 0.3, X2: 0.4, Q2: 90000, Weight: 1.5})

	imp := NewImportSubgridFrom(sg)
	assert.Equal(t, sg.Q2Grid(), imp.Q2Grid())
	assert.Equal(t, sg.X1Grid(), imp.X1Grid())
	assert.InDelta(t,
		convolveSelf(sg, unitLumi),
		convolveSelf(imp, LumiByIndex(func(_, _, _ int) float64 { return 1 })),
		1e-12)
}

func TestConvertStaticQ2Collapse(t *testing.T) {
	sg := NewLagrangeSubgrid(DefaultSubgridParams())
	sg.Fill(Ntuple{X1: 0.1, X2: 0.2, Q2: 8100, Weight: 2.5})
	sg.Fill(Ntuple{X1: 0.3, X2: 0.4, Q2: 8100, Weight: 1.5})

	imp := NewImportSubgridFrom(sg)
	// The Q² axis collapses to the single event scale.
	assert.Equal(t, []float64{8100}, imp.Q2Grid())
	assert.InDelta(t,
		convolveSelf(sg, unitLumi),
		convolveSelf(imp, LumiByIndex(func(_, _, _ int) float64 { return 1 })),
		1e-12)
}

func TestConvertReweighted(t *testing.T) {
	params := DefaultSubgridParams()
	params.Reweight = true
	sg := NewLagrangeSubgrid(params)
	sg.Fill(Ntuple{X1: 0.1, X2: 0.2, Q2: 8100, Weight: 2.5})
	sg.Fill(Ntuple{X1: 0.3, X2: 0.4, Q2: 90000, Weight: 1.5})

	// The conversion bakes the reweighting factors into the coefficients,
	// so both variants convolve identically.
	imp := NewImportSubgridFrom(sg)
	assert.InDelta(t,
		convolveSelf(sg, unitLumi),
		convolveSelf(imp, LumiByIndex(func(_, _, _ int) float64 { return 1 })),
		1e-12)
}

func TestLagrangeQ2Slice(t *testing.T) {
	sg := NewLagrangeSubgrid(DefaultSubgridParams())
	start, end := sg.Q2Slice()
	assert.Equal(t, 0, start)
	assert.Equal(t, 0, end)

	sg.Fill(Ntuple{X1: 0.1, X2: 0.2, Q2: 8100, Weight: 1})
	start, end = sg.Q2Slice()
	assert.True(t, end > start)
	// The touched range covers one interpolation stencil.
	assert.Equal(t, sg.tauOrder+1, end-start)
}

func TestCloneEmpty(t *testing.T) {
	sg := NewLagrangeSubgrid(DefaultSubgridParams())
	sg.Fill(Ntuple{X1: 0.1, X2: 0.2, Q2: 8100, Weight: 1})

	clone := sg.CloneEmpty()
	assert.True(t, clone.IsEmpty())
	assert.Equal(t, sg.X1Grid(), clone.X1Grid())
	assert.Equal(t, sg.Q2Grid(), clone.Q2Grid())
	// The original keeps its data.
	assert.False(t, sg.IsEmpty())
}

package grid

import (
	"math"
	"testing"

	"github.com/grailbio/qcdgrid/lumi"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gonum.org/v1/gonum/floats"
)

// Toy callbacks: a valence-like xf and a flat coupling.
func toyXFx(pid int32, x, q2 float64) float64 {
	return x * (1 - x)
}

func toyAlphaS(q2 float64) float64 { return 0.118 }

func oneChannel() []*lumi.Entry {
	return []*lumi.Entry{lumi.NewEntry([]lumi.Triple{{PID1: 2, PID2: 2, Factor: 1}})}
}

func allZero(v []float64) bool {
	for _, x := range v {
		if x != 0 {
			return false
		}
	}
	return true
}

func TestConvolveEmptyGrid(t *testing.T) {
	g := New(oneChannel(), []Order{NewOrder(0, 2, 0, 0)},
		[]float64{0, 0.5, 1}, DefaultSubgridParams())
	bins := g.Convolve(toyXFx, toyXFx, toyAlphaS, nil, nil, 1, 1)
	require.Len(t, bins, 2)
	assert.True(t, allZero(bins))
}

func TestConvolveSingleFill(t *testing.T) {
	g := New(oneChannel(), []Order{NewOrder(0, 2, 0, 0)},
		[]float64{0, 0.5, 1}, DefaultSubgridParams())
	g.Fill(0, 0.25, 0, Ntuple{X1: 0.1, X2: 0.2, Q2: 8100, Weight: 1})

	bins := g.Convolve(toyXFx, toyXFx, toyAlphaS, nil, nil, 1, 1)
	require.Len(t, bins, 2)
	assert.NotEqual(t, 0.0, bins[0])
	assert.Equal(t, 0.0, bins[1])
}

func TestConvolveScaleLinearity(t *testing.T) {
	g := New(oneChannel(), []Order{NewOrder(0, 2, 0, 0)},
		[]float64{0, 0.5, 1}, DefaultSubgridParams())
	g.Fill(0, 0.25, 0, Ntuple{X1: 0.1, X2: 0.2, Q2: 8100, Weight: 1})
	g.Fill(0, 0.75, 0, Ntuple{X1: 0.3, X2: 0.4, Q2: 10000, Weight: 2})

	before := g.Convolve(toyXFx, toyXFx, toyAlphaS, nil, nil, 1, 1)
	g.Scale(2.5)
	after := g.Convolve(toyXFx, toyXFx, toyAlphaS, nil, nil, 1, 1)
	scaled := make([]float64, len(before))
	floats.ScaleTo(scaled, 2.5, before)
	assert.True(t, floats.EqualApprox(scaled, after, 1e-12))
}

func TestConvolveMasks(t *testing.T) {
	channels := []*lumi.Entry{
		lumi.NewEntry([]lumi.Triple{{PID1: 2, PID2: 2, Factor: 1}}),
		lumi.NewEntry([]lumi.Triple{{PID1: 1, PID2: 1, Factor: 1}}),
	}
	orders := []Order{NewOrder(0, 2, 0, 0), NewOrder(1, 2, 0, 0)}
	g := New(channels, orders, []float64{0, 1}, DefaultSubgridParams())
	g.Fill(0, 0.5, 0, Ntuple{X1: 0.1, X2: 0.2, Q2: 8100, Weight: 1})
	g.Fill(1, 0.5, 1, Ntuple{X1: 0.1, X2: 0.2, Q2: 8100, Weight: 2})

	full := g.Convolve(toyXFx, toyXFx, toyAlphaS, nil, nil, 1, 1)
	loOnly := g.Convolve(toyXFx, toyXFx, toyAlphaS, []bool{true, false}, nil, 1, 1)
	ch0Only := g.Convolve(toyXFx, toyXFx, toyAlphaS, nil, []bool{true, false}, 1, 1)
	both := g.Convolve(toyXFx, toyXFx, toyAlphaS, []bool{true, false}, []bool{true, false}, 1, 1)

	// Order 0 only filled channel 0 and order 1 only channel 1, so the
	// order mask and the channel mask single out the same cell here.
	assert.Equal(t, loOnly, ch0Only)
	assert.Equal(t, loOnly, both)
	assert.NotEqual(t, full, loOnly)

	// Masking equals zeroing the excluded cells.
	gZeroed := New(channels, orders, []float64{0, 1}, DefaultSubgridParams())
	gZeroed.Fill(0, 0.5, 0, Ntuple{X1: 0.1, X2: 0.2, Q2: 8100, Weight: 1})
	masked := gZeroed.Convolve(toyXFx, toyXFx, toyAlphaS, nil, nil, 1, 1)
	assert.Equal(t, masked, loOnly)

	// Excluding everything yields zeros.
	none := g.Convolve(toyXFx, toyXFx, toyAlphaS, []bool{false, false}, nil, 1, 1)
	assert.True(t, allZero(none))
}

func TestConvolveMaskLengthPanics(t *testing.T) {
	g := New(oneChannel(), []Order{NewOrder(0, 2, 0, 0)},
		[]float64{0, 1}, DefaultSubgridParams())
	assert.Panics(t, func() {
		g.Convolve(toyXFx, toyXFx, toyAlphaS, []bool{true, false}, nil, 1, 1)
	})
	assert.Panics(t, func() {
		g.Convolve(toyXFx, toyXFx, toyAlphaS, nil, []bool{true, false}, 1, 1)
	})
}

func TestConvolveScaleVariationSkip(t *testing.T) {
	// Only orders with scale logarithms: at the central scales every term
	// vanishes without being computed.
	orders := []Order{NewOrder(0, 2, 1, 0), NewOrder(0, 2, 0, 1)}
	g := New(oneChannel(), orders, []float64{0, 1}, DefaultSubgridParams())
	g.Fill(0, 0.5, 0, Ntuple{X1: 0.1, X2: 0.2, Q2: 8100, Weight: 1})
	g.Fill(1, 0.5, 0, Ntuple{X1: 0.1, X2: 0.2, Q2: 8100, Weight: 1})

	central := g.Convolve(toyXFx, toyXFx, toyAlphaS, nil, nil, 1, 1)
	assert.True(t, allZero(central))

	varR := g.Convolve(toyXFx, toyXFx, toyAlphaS, nil, nil, 2, 1)
	assert.False(t, allZero(varR))
	varF := g.Convolve(toyXFx, toyXFx, toyAlphaS, nil, nil, 1, 2)
	assert.False(t, allZero(varF))
}

func TestConvolveLogFactors(t *testing.T) {
	// One logxir^2 order: the result carries ln(xiR)^2.
	g := New(oneChannel(), []Order{NewOrder(0, 2, 2, 0)},
		[]float64{0, 1}, DefaultSubgridParams())
	g.Fill(0, 0.5, 0, Ntuple{X1: 0.1, X2: 0.2, Q2: 8100, Weight: 1})

	// The toy coupling is flat, so varying muR only enters through the
	// explicit logarithm factor.
	e := g.Convolve(toyXFx, toyXFx, toyAlphaS, nil, nil, math.E, 1)
	e2 := g.Convolve(toyXFx, toyXFx, toyAlphaS, nil, nil, math.E*math.E, 1)
	require.Len(t, e, 1)
	// ln(e²)² / ln(e)² = 4.
	assert.InDelta(t, 4.0, e2[0]/e[0], 1e-9)
}

func TestConvolveAlphaSPower(t *testing.T) {
	g := New(oneChannel(), []Order{NewOrder(2, 0, 0, 0)},
		[]float64{0, 1}, DefaultSubgridParams())
	g.Fill(0, 0.5, 0, Ntuple{X1: 0.1, X2: 0.2, Q2: 8100, Weight: 1})

	one := g.Convolve(toyXFx, toyXFx, func(q2 float64) float64 { return 1 }, nil, nil, 1, 1)
	half := g.Convolve(toyXFx, toyXFx, func(q2 float64) float64 { return 0.5 }, nil, nil, 1, 1)
	require.Len(t, one, 1)
	assert.InDelta(t, 0.25, half[0]/one[0], 1e-12)
}

func TestConvolveImportedSubgrid(t *testing.T) {
	// A grid whose only non-empty cell is a tabulated subgrid: the
	// convolver must fall back to the index-space luminosity.
	g := New(oneChannel(), []Order{NewOrder(0, 2, 0, 0)},
		[]float64{0, 1}, DefaultSubgridParams())
	lg := NewLagrangeSubgrid(DefaultSubgridParams())
	lg.Fill(Ntuple{X1: 0.1, X2: 0.2, Q2: 8100, Weight: 1})
	g.SetSubgrid(0, 0, 0, lg)
	direct := g.Convolve(toyXFx, toyXFx, toyAlphaS, nil, nil, 1, 1)

	g2 := New(oneChannel(), []Order{NewOrder(0, 2, 0, 0)},
		[]float64{0, 1}, DefaultSubgridParams())
	g2.SetSubgrid(0, 0, 0, NewImportSubgridFrom(lg))
	tabulated := g2.Convolve(toyXFx, toyXFx, toyAlphaS, nil, nil, 1, 1)

	assert.True(t, floats.EqualApprox(direct, tabulated, 1e-12))
}

package grid

import (
	"math"

	"github.com/grailbio/base/log"
	"github.com/grailbio/qcdgrid/sparse"
)

// lambda2 is the Λ² (GeV²) reference used by the Q²-axis node transform.
const lambda2 = 0.0625

// fy maps a momentum fraction x in (0, 1] to interpolation node space.  The
// transform is monotone decreasing in x, with fy(1) == 0.
func fy(x float64) float64 {
	return math.Log(1/x) + 5*(1-x)
}

// fx inverts fy by Newton iteration on yp with x = exp(-yp):
// g(yp) = yp + 5*(1 - exp(-yp)) - y, g'(yp) = 1 + 5*exp(-yp).
func fx(y float64) float64 {
	yp := y
	for iter := 0; iter < 100; iter++ {
		x := math.Exp(-yp)
		delta := yp + 5*(1-x) - y
		if math.Abs(delta) < 1e-12 {
			return x
		}
		yp -= delta / (1 + 5*x)
	}
	return math.Exp(-yp)
}

// ftau maps a squared scale to node space.
func ftau(q2 float64) float64 {
	return math.Log(math.Log(q2 / lambda2))
}

// fq2 inverts ftau.
func fq2(tau float64) float64 {
	return lambda2 * math.Exp(math.Exp(tau))
}

// weightfun is the smooth reweighting factor which flattens typical PDF
// integrands.  Fills divide by it at the event position; every read-side
// path multiplies it back at the node positions.
func weightfun(x float64) float64 {
	w := math.Sqrt(x) / (1 - 0.99*x)
	return w * w * w
}

// lagrangeBasis evaluates the i-th Lagrange basis polynomial of degree n on
// the integer nodes 0..n at position u.
func lagrangeBasis(i, n int, u float64) float64 {
	p := 1.0
	for z := 0; z <= n; z++ {
		if z == i {
			continue
		}
		p *= (u - float64(z)) / float64(i-z)
	}
	return p
}

// LagrangeSubgrid is the event-accumulating subgrid variant.  Events are
// spread over the (tauOrder+1)*(yOrder+1)^2 interpolation nodes surrounding
// their mapped position; coefficients live in sparse storage indexed
// (itau, iy1, iy2).
type LagrangeSubgrid struct {
	array *sparse.Array3

	ntau, ny           int
	tauOrder, yOrder   int
	yMin, yMax         float64
	tauMin, tauMax     float64
	reweight           bool

	// Touched Q²-node range, reported by Q2Slice.  Conversion to the
	// tabulated variant does not use it and keeps the full Q² node set.
	itauMin, itauMax int

	// staticQ2 holds the shared event scale while all accepted fills agree
	// on one Q² value; it is 0 when the scales differ (or nothing was
	// filled yet).
	staticQ2 float64
	filled   bool
}

// NewLagrangeSubgrid returns an empty interpolation subgrid built from
// params.
func NewLagrangeSubgrid(params SubgridParams) *LagrangeSubgrid {
	if params.XBins < params.XOrder+1 || params.Q2Bins < params.Q2Order+1 {
		log.Panicf("grid: too few nodes for interpolation order (x %d/%d, q2 %d/%d)",
			params.XBins, params.XOrder, params.Q2Bins, params.Q2Order)
	}
	return &LagrangeSubgrid{
		array:    sparse.New(params.Q2Bins, params.XBins, params.XBins),
		ntau:     params.Q2Bins,
		ny:       params.XBins,
		tauOrder: params.Q2Order,
		yOrder:   params.XOrder,
		yMin:     fy(params.XMax),
		yMax:     fy(params.XMin),
		tauMin:   ftau(params.Q2Min),
		tauMax:   ftau(params.Q2Max),
		reweight: params.Reweight,
		itauMin:  params.Q2Bins,
		itauMax:  0,
	}
}

func (g *LagrangeSubgrid) deltaY() float64 {
	return (g.yMax - g.yMin) / float64(g.ny-1)
}

func (g *LagrangeSubgrid) deltaTau() float64 {
	return (g.tauMax - g.tauMin) / float64(g.ntau-1)
}

func (g *LagrangeSubgrid) yNode(i int) float64 {
	return g.yMin + float64(i)*g.deltaY()
}

func (g *LagrangeSubgrid) tauNode(i int) float64 {
	return g.tauMin + float64(i)*g.deltaTau()
}

// nodeBase picks the first node of the interpolation stencil around
// position u (in units of the node spacing), clamped so the stencil stays
// inside [0, n).
func nodeBase(u float64, order, n int) int {
	k := int(u) - order/2
	if k < 0 {
		k = 0
	}
	if k > n-1-order {
		k = n - 1 - order
	}
	return k
}

// Fill accepts one event, distributing its weight over the surrounding
// interpolation nodes.  Events mapping outside the node ranges are silently
// dropped.
func (g *LagrangeSubgrid) Fill(nt Ntuple) {
	y1 := fy(nt.X1)
	y2 := fy(nt.X2)
	tau := ftau(nt.Q2)
	if y1 < g.yMin || y1 > g.yMax || y2 < g.yMin || y2 > g.yMax ||
		tau < g.tauMin || tau > g.tauMax {
		return
	}

	u1 := (y1 - g.yMin) / g.deltaY()
	u2 := (y2 - g.yMin) / g.deltaY()
	ut := (tau - g.tauMin) / g.deltaTau()
	k1 := nodeBase(u1, g.yOrder, g.ny)
	k2 := nodeBase(u2, g.yOrder, g.ny)
	kt := nodeBase(ut, g.tauOrder, g.ntau)

	weight := nt.Weight
	if g.reweight {
		weight /= weightfun(nt.X1) * weightfun(nt.X2)
	}

	fi1 := make([]float64, g.yOrder+1)
	fi2 := make([]float64, g.yOrder+1)
	fit := make([]float64, g.tauOrder+1)
	for i := range fi1 {
		fi1[i] = lagrangeBasis(i, g.yOrder, u1-float64(k1))
		fi2[i] = lagrangeBasis(i, g.yOrder, u2-float64(k2))
	}
	for i := range fit {
		fit[i] = lagrangeBasis(i, g.tauOrder, ut-float64(kt))
	}

	for it, wt := range fit {
		for i1, w1 := range fi1 {
			for i2, w2 := range fi2 {
				g.array.Add(kt+it, k1+i1, k2+i2, weight*wt*w1*w2)
			}
		}
	}

	if kt < g.itauMin {
		g.itauMin = kt
	}
	if kt+g.tauOrder+1 > g.itauMax {
		g.itauMax = kt + g.tauOrder + 1
	}
	if !g.filled {
		g.staticQ2 = nt.Q2
	} else if g.staticQ2 != 0 && g.staticQ2 != nt.Q2 {
		g.staticQ2 = 0
	}
	g.filled = true
}

// Convolve contracts the stored coefficients against the continuous form of
// the luminosity.
func (g *LagrangeSubgrid) Convolve(x1Grid, x2Grid, q2Grid []float64, lumi Lumi) float64 {
	if lumi.byValue == nil {
		log.Panicf("grid: interpolation subgrid requires the continuous luminosity form")
	}
	sum := 0.0
	g.array.Each(func(itau, iy1, iy2 int, v float64) {
		if v == 0 {
			return
		}
		x1 := x1Grid[iy1]
		x2 := x2Grid[iy2]
		value := v * lumi.byValue(x1, x2, q2Grid[itau])
		if g.reweight {
			value *= weightfun(x1) * weightfun(x2)
		}
		sum += value
	})
	return sum
}

// Q2Grid returns the Q² node values.
func (g *LagrangeSubgrid) Q2Grid() []float64 {
	out := make([]float64, g.ntau)
	for i := range out {
		out[i] = fq2(g.tauNode(i))
	}
	return out
}

// X1Grid returns the x node values for the first parton.
func (g *LagrangeSubgrid) X1Grid() []float64 {
	out := make([]float64, g.ny)
	for i := range out {
		out[i] = fx(g.yNode(i))
	}
	return out
}

// X2Grid returns the x node values for the second parton; both x axes share
// one node set.
func (g *LagrangeSubgrid) X2Grid() []float64 {
	return g.X1Grid()
}

// IsEmpty reports whether no event contribution is stored.
func (g *LagrangeSubgrid) IsEmpty() bool {
	return g.array.IsEmpty()
}

// StaticQ2 returns the single Q² shared by every accepted event, or 0 when
// the events span multiple scales.
func (g *LagrangeSubgrid) StaticQ2() float64 {
	return g.staticQ2
}

// sameShape reports whether two interpolation subgrids share node layout
// and can be accumulated elementwise.
func (g *LagrangeSubgrid) sameShape(o *LagrangeSubgrid) bool {
	return g.ntau == o.ntau && g.ny == o.ny &&
		g.tauOrder == o.tauOrder && g.yOrder == o.yOrder &&
		g.yMin == o.yMin && g.yMax == o.yMax &&
		g.tauMin == o.tauMin && g.tauMax == o.tauMax &&
		g.reweight == o.reweight
}

// Merge accumulates other into g.  Only interpolation subgrids with an
// identical node layout can be merged; anything else returns
// ErrUnsupported.
func (g *LagrangeSubgrid) Merge(other Subgrid, transpose bool) error {
	o, ok := other.(*LagrangeSubgrid)
	if !ok || !g.sameShape(o) {
		return ErrUnsupported
	}
	o.array.Each(func(itau, iy1, iy2 int, v float64) {
		if v == 0 {
			return
		}
		if transpose {
			iy1, iy2 = iy2, iy1
		}
		g.array.Add(itau, iy1, iy2, v)
	})
	if o.itauMin < g.itauMin {
		g.itauMin = o.itauMin
	}
	if o.itauMax > g.itauMax {
		g.itauMax = o.itauMax
	}
	switch {
	case !g.filled:
		g.staticQ2 = o.staticQ2
	case o.filled && g.staticQ2 != o.staticQ2:
		g.staticQ2 = 0
	}
	g.filled = g.filled || o.filled
	return nil
}

// Scale multiplies all stored coefficients by factor.
func (g *LagrangeSubgrid) Scale(factor float64) {
	g.array.Scale(factor)
}

// Symmetrize folds entries below the (iy1, iy2) diagonal onto their mirror
// position, leaving the diagonal unchanged.
func (g *LagrangeSubgrid) Symmetrize() {
	folded := sparse.New(g.ntau, g.ny, g.ny)
	g.array.Each(func(itau, iy1, iy2 int, v float64) {
		if iy2 < iy1 {
			return
		}
		folded.Set(itau, iy1, iy2, v)
	})
	g.array.Each(func(itau, iy1, iy2 int, v float64) {
		if iy2 >= iy1 {
			return
		}
		folded.Add(itau, iy2, iy1, v)
	})
	g.array = folded
}

// CloneEmpty returns an empty subgrid with the same parameters.
func (g *LagrangeSubgrid) CloneEmpty() Subgrid {
	clone := *g
	clone.array = sparse.New(g.ntau, g.ny, g.ny)
	clone.itauMin = g.ntau
	clone.itauMax = 0
	clone.staticQ2 = 0
	clone.filled = false
	return &clone
}

// Each yields every stored coefficient.
func (g *LagrangeSubgrid) Each(fn func(iq2, ix1, ix2 int, value float64)) {
	g.array.Each(fn)
}

// Q2Slice returns the range of Q² node indices any fill has touched.
func (g *LagrangeSubgrid) Q2Slice() (start, end int) {
	if g.itauMin > g.itauMax {
		return 0, 0
	}
	return g.itauMin, g.itauMax
}

// ExportQ2Slice writes one Q² plane of coefficients into out, reweighting
// restored and divided by x1·x2.
func (g *LagrangeSubgrid) ExportQ2Slice(iq2 int, out []float64) {
	x1g := g.X1Grid()
	x2g := g.X2Grid()
	if len(out) != len(x1g)*len(x2g) {
		log.Panicf("grid: slice buffer has %d entries, want %d", len(out), len(x1g)*len(x2g))
	}
	for i := range out {
		out[i] = 0
	}
	g.array.Each(func(itau, iy1, iy2 int, v float64) {
		if itau != iq2 || v == 0 {
			return
		}
		x1 := x1g[iy1]
		x2 := x2g[iy2]
		if g.reweight {
			v *= weightfun(x1) * weightfun(x2)
		}
		out[iy1*len(x2g)+iy2] = v / (x1 * x2)
	})
}

package grid

import (
	"math"

	"github.com/grailbio/base/log"
	"github.com/grailbio/base/traverse"
)

// XFxFunc evaluates x·f(x) for parton pid at momentum fraction x and scale
// q2.  It must be pure over its inputs for the duration of one Convolve
// call.
type XFxFunc func(pid int32, x, q2 float64) float64

// AlphaSFunc evaluates the strong coupling at scale q2; same purity
// requirement as XFxFunc.
type AlphaSFunc func(q2 float64) float64

// Convolve evaluates the grid against the given PDFs and strong coupling,
// returning one value per observable bin.
//
// A non-empty orderMask (channelMask) must have one entry per order
// (channel); false entries are skipped.  Orders with logxir > 0 are skipped
// when xiR == 1, and logxif > 0 when xiF == 1, since their logarithm factor
// vanishes.  The factorization scale entering the PDFs is xiF²·Q², the
// renormalization scale entering the coupling is xiR²·Q².
//
// Bins accumulate independently, so the evaluation parallelizes over bins.
func (g *Grid) Convolve(xfx1, xfx2 XFxFunc, alphaS AlphaSFunc, orderMask, channelMask []bool, xiR, xiF float64) []float64 {
	if len(orderMask) != 0 && len(orderMask) != len(g.orders) {
		log.Panicf("grid: order mask has %d entries for %d orders", len(orderMask), len(g.orders))
	}
	if len(channelMask) != 0 && len(channelMask) != len(g.channels) {
		log.Panicf("grid: channel mask has %d entries for %d channels", len(channelMask), len(g.channels))
	}

	bins := make([]float64, g.binLimits.Bins())
	_ = traverse.Each(len(bins), func(j int) error {
		for i, order := range g.orders {
			if len(orderMask) != 0 && !orderMask[i] {
				continue
			}
			if (order.LogXiR > 0 && xiR == 1.0) || (order.LogXiF > 0 && xiF == 1.0) {
				continue
			}
			for k, entry := range g.channels {
				if len(channelMask) != 0 && !channelMask[k] {
					continue
				}
				sg := g.subgrids[(i*len(bins)+j)*len(g.channels)+k]
				if sg.IsEmpty() {
					continue
				}

				triples := entry.Triples()
				alphaSPow := int(order.AlphaS)
				eval := func(x1, x2, q2 float64) float64 {
					muF2 := xiF * xiF * q2
					muR2 := xiR * xiR * q2
					l := 0.0
					for _, t := range triples {
						l += xfx1(t.PID1, x1, muF2) * xfx2(t.PID2, x2, muF2) * t.Factor / (x1 * x2)
					}
					return l * powInt(alphaS(muR2), alphaSPow)
				}
				x1Grid := sg.X1Grid()
				x2Grid := sg.X2Grid()
				q2Grid := sg.Q2Grid()
				value := sg.Convolve(x1Grid, x2Grid, q2Grid, lumiBoth(
					func(ix1, ix2, iq2 int) float64 {
						return eval(x1Grid[ix1], x2Grid[ix2], q2Grid[iq2])
					},
					eval,
				))

				if order.LogXiR > 0 {
					value *= math.Pow(math.Log(xiR), float64(order.LogXiR))
				}
				if order.LogXiF > 0 {
					value *= math.Pow(math.Log(xiF), float64(order.LogXiF))
				}
				bins[j] += value
			}
		}
		return nil
	})
	return bins
}

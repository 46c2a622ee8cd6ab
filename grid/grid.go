// Package grid implements the interpolation-grid container that decouples
// perturbative-QCD matrix elements from parton distribution functions: a
// three-dimensional array of subgrids indexed by perturbative order,
// observable bin, and luminosity channel, filled one Monte Carlo event at a
// time and later convolved against arbitrary PDFs.
package grid

import (
	"github.com/grailbio/base/log"
	"github.com/grailbio/qcdgrid/binning"
	"github.com/grailbio/qcdgrid/lumi"
	"github.com/pkg/errors"
)

// ErrMerge is returned when two grids cannot be merged: their bin limits
// differ but are not concatenable, or they differ in both binning and
// order/channel content.
var ErrMerge = errors.New("grid: grids cannot be merged")

// Grid owns one subgrid per (order, bin, channel) plus the order list,
// channel list, bin limits, default subgrid parameters, and an opaque
// key-value metadata map.  The subgrid array shape always matches
// (len(orders), binLimits.Bins(), len(channels)).
type Grid struct {
	subgrids  []Subgrid // row-major (order*bins + bin)*channels + channel
	orders    []Order
	channels  []*lumi.Entry
	binLimits *binning.Limits
	params    SubgridParams
	meta      map[string]string
}

// New returns a grid over the given channels, orders, and bin limits, with
// every cell holding an empty interpolation subgrid built from params.
// Empty channel or order lists, duplicate entries in either, or invalid bin
// limits are programming errors.
func New(channels []*lumi.Entry, orders []Order, binLimits []float64, params SubgridParams) *Grid {
	if len(orders) == 0 || len(channels) == 0 {
		log.Panicf("grid: orders and channels must be non-empty")
	}
	for i := range orders {
		for j := i + 1; j < len(orders); j++ {
			if orders[i] == orders[j] {
				log.Panicf("grid: duplicate order %+v", orders[i])
			}
		}
	}
	for i := range channels {
		for j := i + 1; j < len(channels); j++ {
			if channels[i].Equal(channels[j]) {
				log.Panicf("grid: duplicate channel at %d and %d", i, j)
			}
		}
	}
	g := &Grid{
		orders:    append([]Order(nil), orders...),
		channels:  append([]*lumi.Entry(nil), channels...),
		binLimits: binning.New(binLimits),
		params:    params,
		meta:      map[string]string{},
	}
	g.subgrids = make([]Subgrid, len(orders)*g.binLimits.Bins()*len(channels))
	for i := range g.subgrids {
		g.subgrids[i] = NewLagrangeSubgrid(params)
	}
	return g
}

func (g *Grid) cellIndex(order, bin, channel int) int {
	if order < 0 || order >= len(g.orders) ||
		bin < 0 || bin >= g.binLimits.Bins() ||
		channel < 0 || channel >= len(g.channels) {
		log.Panicf("grid: cell (%d, %d, %d) out of bounds (%d, %d, %d)",
			order, bin, channel, len(g.orders), g.binLimits.Bins(), len(g.channels))
	}
	return (order*g.binLimits.Bins()+bin)*len(g.channels) + channel
}

// Subgrid returns the subgrid at (order, bin, channel).
func (g *Grid) Subgrid(order, bin, channel int) Subgrid {
	return g.subgrids[g.cellIndex(order, bin, channel)]
}

// SetSubgrid replaces the subgrid at (order, bin, channel).
func (g *Grid) SetSubgrid(order, bin, channel int, sg Subgrid) {
	g.subgrids[g.cellIndex(order, bin, channel)] = sg
}

// BinLimits returns the observable partition.
func (g *Grid) BinLimits() *binning.Limits { return g.binLimits }

// Orders returns the perturbative orders.  The caller must not modify the
// returned slice.
func (g *Grid) Orders() []Order { return g.orders }

// Channels returns the luminosity channels.  The caller must not modify the
// returned slice.
func (g *Grid) Channels() []*lumi.Entry { return g.channels }

// SubgridParams returns the default subgrid construction parameters.
func (g *Grid) SubgridParams() SubgridParams { return g.params }

// SetKeyValue attaches an opaque metadata string to the grid.
func (g *Grid) SetKeyValue(key, value string) {
	g.meta[key] = value
}

// KeyValue looks up a metadata string.
func (g *Grid) KeyValue(key string) (string, bool) {
	v, ok := g.meta[key]
	return v, ok
}

// KeyValues returns a copy of the metadata map.
func (g *Grid) KeyValues() map[string]string {
	out := make(map[string]string, len(g.meta))
	for k, v := range g.meta {
		out[k] = v
	}
	return out
}

// Fill records one event for the given order, observable, and channel.
// Observables outside the bin limits are silently dropped; order or channel
// indices out of range are programming errors.
func (g *Grid) Fill(order int, observable float64, channel int, ntuple Ntuple) {
	bin, ok := g.binLimits.Index(observable)
	if !ok {
		return
	}
	g.subgrids[g.cellIndex(order, bin, channel)].Fill(ntuple)
}

// FillAll records one event position into every channel, one weight per
// channel.  len(weights) must equal the number of channels.
func (g *Grid) FillAll(order int, observable float64, pos Position, weights []float64) {
	if len(weights) != len(g.channels) {
		log.Panicf("grid: got %d weights for %d channels", len(weights), len(g.channels))
	}
	for channel, weight := range weights {
		g.Fill(order, observable, channel, Ntuple{X1: pos.X1, X2: pos.X2, Q2: pos.Q2, Weight: weight})
	}
}

// Scale multiplies every subgrid by factor.
func (g *Grid) Scale(factor float64) {
	for _, sg := range g.subgrids {
		sg.Scale(factor)
	}
}

// ScaleByOrder rescales each order's subgrids by
// global · fsAlphaS^alphas · fsAlpha^alpha · fsLogXiR^logxir · fsLogXiF^logxif.
func (g *Grid) ScaleByOrder(fsAlphaS, fsAlpha, fsLogXiR, fsLogXiF, global float64) {
	bins := g.binLimits.Bins()
	for i, order := range g.orders {
		factor := global *
			powInt(fsAlphaS, int(order.AlphaS)) *
			powInt(fsAlpha, int(order.Alpha)) *
			powInt(fsLogXiR, int(order.LogXiR)) *
			powInt(fsLogXiF, int(order.LogXiF))
		for j := 0; j < bins; j++ {
			for k := range g.channels {
				g.subgrids[g.cellIndex(i, j, k)].Scale(factor)
			}
		}
	}
}

func powInt(base float64, exp int) float64 {
	p := 1.0
	for ; exp > 0; exp-- {
		p *= base
	}
	return p
}

func (g *Grid) orderIndex(o Order) int {
	for i, v := range g.orders {
		if v == o {
			return i
		}
	}
	return -1
}

func (g *Grid) channelIndex(e *lumi.Entry) int {
	for i, v := range g.channels {
		if v.Equal(e) {
			return i
		}
	}
	return -1
}

// increaseShape grows the cell array by (dOrders, dBins, dChannels),
// filling new rows and columns with empty interpolation subgrids.
func (g *Grid) increaseShape(dOrders, dBins, dChannels int, oldOrders, oldBins, oldChannels int) {
	newOrders := oldOrders + dOrders
	newBins := oldBins + dBins
	newChannels := oldChannels + dChannels
	cells := make([]Subgrid, newOrders*newBins*newChannels)
	for idx := range cells {
		cells[idx] = NewLagrangeSubgrid(g.params)
	}
	for i := 0; i < oldOrders; i++ {
		for j := 0; j < oldBins; j++ {
			for k := 0; k < oldChannels; k++ {
				cells[(i*newBins+j)*newChannels+k] = g.subgrids[(i*oldBins+j)*oldChannels+k]
			}
		}
	}
	g.subgrids = cells
}

// Merge combines other into g, consuming other.  With equal bin limits the
// orders and channels of other may differ: orders and channels carried by
// non-empty cells of other are appended to g, and cells accumulate (or swap
// in, when g's target cell is empty).  With different bin limits the grids
// must agree on orders and channels up to reordering and the bin axes must
// concatenate exactly; otherwise ErrMerge is returned and g is unchanged.
func (g *Grid) Merge(other *Grid) error {
	binOffset := 0
	if g.binLimits.Equal(other.binLimits) {
		var newOrders []Order
		var newChannels []*lumi.Entry
		other.eachNonEmpty(func(i, j, k int, sg Subgrid) {
			o := other.orders[i]
			if g.orderIndex(o) < 0 && orderPos(newOrders, o) < 0 {
				newOrders = append(newOrders, o)
			}
			e := other.channels[k]
			if g.channelIndex(e) < 0 && channelPos(newChannels, e) < 0 {
				newChannels = append(newChannels, e)
			}
		})
		if len(newOrders) > 0 || len(newChannels) > 0 {
			g.increaseShape(len(newOrders), 0, len(newChannels),
				len(g.orders), g.binLimits.Bins(), len(g.channels))
			g.orders = append(g.orders, newOrders...)
			g.channels = append(g.channels, newChannels...)
		}
	} else {
		if !OrdersEqualAfterSort(g.orders, other.orders) ||
			!lumi.EqualAfterSort(g.channels, other.channels) {
			return errors.Wrap(ErrMerge, "orders or channels differ")
		}
		if !g.binLimits.CanMerge(other.binLimits) {
			return errors.Wrap(ErrMerge, "bin limits are not concatenable")
		}
		binOffset = g.binLimits.Bins()
		oldBins := g.binLimits.Bins()
		if err := g.binLimits.Merge(other.binLimits); err != nil {
			return errors.Wrap(ErrMerge, err.Error())
		}
		g.increaseShape(0, other.binLimits.Bins(), 0,
			len(g.orders), oldBins, len(g.channels))
	}

	var mergeErr error
	other.eachNonEmpty(func(i, j, k int, sg Subgrid) {
		selfI := g.orderIndex(other.orders[i])
		selfK := g.channelIndex(other.channels[k])
		idx := g.cellIndex(selfI, j+binOffset, selfK)
		if g.subgrids[idx].IsEmpty() {
			// O(1) ownership transfer.
			g.subgrids[idx] = sg
		} else if err := g.subgrids[idx].Merge(sg, false); err != nil && mergeErr == nil {
			mergeErr = errors.Wrapf(err, "cell (%d, %d, %d)", selfI, j+binOffset, selfK)
		}
	})
	return mergeErr
}

func (g *Grid) eachNonEmpty(fn func(i, j, k int, sg Subgrid)) {
	bins := g.binLimits.Bins()
	for i := range g.orders {
		for j := 0; j < bins; j++ {
			for k := range g.channels {
				sg := g.subgrids[(i*bins+j)*len(g.channels)+k]
				if !sg.IsEmpty() {
					fn(i, j, k, sg)
				}
			}
		}
	}
}

func orderPos(orders []Order, o Order) int {
	for i, v := range orders {
		if v == o {
			return i
		}
	}
	return -1
}

func channelPos(channels []*lumi.Entry, e *lumi.Entry) int {
	for i, v := range channels {
		if v.Equal(e) {
			return i
		}
	}
	return -1
}

package grid

// SubgridParams collects the construction parameters for interpolation
// subgrids: node counts, node bounds, interpolation orders for the x and Q²
// axes, and whether fills are reweighted.
type SubgridParams struct {
	Q2Bins   int
	Q2Max    float64
	Q2Min    float64
	Q2Order  int
	Reweight bool
	XBins    int
	XMax     float64
	XMin     float64
	XOrder   int
}

// DefaultSubgridParams returns the parameters used when callers have no
// process-specific tuning: 30 Q² nodes covering 100..1e6 GeV² at cubic
// interpolation order, 50 x nodes covering 2e-7..1, no reweighting.
func DefaultSubgridParams() SubgridParams {
	return SubgridParams{
		Q2Bins:   30,
		Q2Max:    1e6,
		Q2Min:    100.0,
		Q2Order:  3,
		Reweight: false,
		XBins:    50,
		XMax:     1.0,
		XMin:     2e-7,
		XOrder:   3,
	}
}

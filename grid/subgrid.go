package grid

import "github.com/pkg/errors"

// ErrUnsupported is returned when a subgrid is asked to merge a variant it
// has no conversion for.
var ErrUnsupported = errors.New("grid: operation not supported by this subgrid variant")

// Lumi carries a luminosity closure in one of two calling conventions.  An
// interpolation subgrid integrates over its own nodes and needs the
// continuous form (x1, x2, q2); an imported subgrid addresses fixed node
// vectors and needs the index form (ix1, ix2, iq2).  A subgrid panics when
// handed a Lumi lacking the form it requires.
type Lumi struct {
	byIndex func(ix1, ix2, iq2 int) float64
	byValue func(x1, x2, q2 float64) float64
}

// LumiByIndex returns a Lumi carrying only the index-space form.
func LumiByIndex(fn func(ix1, ix2, iq2 int) float64) Lumi {
	return Lumi{byIndex: fn}
}

// LumiByValue returns a Lumi carrying only the continuous form.
func LumiByValue(fn func(x1, x2, q2 float64) float64) Lumi {
	return Lumi{byValue: fn}
}

// lumiBoth is used by the convolver, which can supply either form cheaply.
func lumiBoth(byIndex func(ix1, ix2, iq2 int) float64, byValue func(x1, x2, q2 float64) float64) Lumi {
	return Lumi{byIndex: byIndex, byValue: byValue}
}

// Subgrid is the per-(order, bin, channel) coefficient store.  Variants
// share this capability set; a variant that cannot honor an operation
// panics (Fill on a read-only subgrid) or returns ErrUnsupported (Merge
// across variants with no conversion).
type Subgrid interface {
	// Fill accepts one event.  Events mapping outside the subgrid's support
	// are silently dropped.
	Fill(ntuple Ntuple)

	// Convolve contracts the stored coefficients with the luminosity.  The
	// node vectors passed in must match the subgrid's own (callers usually
	// pass X1Grid/X2Grid/Q2Grid of the same subgrid).
	Convolve(x1Grid, x2Grid, q2Grid []float64, lumi Lumi) float64

	// Q2Grid, X1Grid, and X2Grid return the interpolation or tabulation
	// nodes.  The caller must not modify the returned slices.
	Q2Grid() []float64
	X1Grid() []float64
	X2Grid() []float64

	// IsEmpty reports whether nothing has been stored.
	IsEmpty() bool

	// Merge accumulates other into the receiver.  When transpose is true
	// the x1 and x2 axes of other are swapped while merging.
	Merge(other Subgrid, transpose bool) error

	// Scale multiplies all stored coefficients by factor.
	Scale(factor float64)

	// Symmetrize folds entries with ix2 < ix1 onto (ix2, ix1), leaving the
	// diagonal unchanged.
	Symmetrize()

	// CloneEmpty returns a new subgrid with the same shape and nodes but no
	// stored data.
	CloneEmpty() Subgrid

	// Each yields every stored coefficient in deterministic order.
	Each(fn func(iq2, ix1, ix2 int, value float64))

	// Q2Slice returns the half-open range of occupied Q² node indices.
	Q2Slice() (start, end int)

	// ExportQ2Slice writes one Q² plane into out (row-major ix1*len(x2)+ix2)
	// with interpolation reweighting removed and each coefficient divided by
	// x1·x2.  len(out) must be len(X1Grid())*len(X2Grid()).
	ExportQ2Slice(iq2 int, out []float64)
}

// Package binning maintains the ordered partition of the observable axis
// used by a grid: N+1 strictly increasing limits defining N bins.
package binning

import (
	"sort"

	"github.com/grailbio/base/log"
	"github.com/pkg/errors"
)

// Limits is an ordered one-dimensional partition of the observable axis.
// Bins are half-open: a value equal to limits[j] belongs to bin j, and a
// value equal to the final limit is out of range.
type Limits struct {
	limits []float64
}

// New returns Limits over the given bin edges.  The edges must be strictly
// increasing and define at least one bin; anything else is a programming
// error.  The slice is copied.
func New(limits []float64) *Limits {
	if len(limits) < 2 {
		log.Panicf("binning: need at least two limits, got %d", len(limits))
	}
	for i := 1; i < len(limits); i++ {
		if limits[i] <= limits[i-1] {
			log.Panicf("binning: limits must be strictly increasing, got %v <= %v at %d",
				limits[i], limits[i-1], i)
		}
	}
	l := &Limits{limits: make([]float64, len(limits))}
	copy(l.limits, limits)
	return l
}

// Bins returns the number of bins.
func (l *Limits) Bins() int {
	return len(l.limits) - 1
}

// Limits returns a copy of the bin edges.
func (l *Limits) Limits() []float64 {
	out := make([]float64, len(l.limits))
	copy(out, l.limits)
	return out
}

// Index returns the bin j with limits[j] <= obs < limits[j+1], or false if
// obs lies outside [limits[0], limits[N]).
func (l *Limits) Index(obs float64) (int, bool) {
	n := len(l.limits)
	if obs < l.limits[0] || obs >= l.limits[n-1] {
		return 0, false
	}
	// First edge >= obs; an exact hit on an edge starts that bin.
	i := sort.SearchFloat64s(l.limits, obs)
	if l.limits[i] == obs {
		return i, true
	}
	return i - 1, true
}

// Equal reports whether the two limit sequences are identical.
func (l *Limits) Equal(o *Limits) bool {
	if len(l.limits) != len(o.limits) {
		return false
	}
	for i, v := range l.limits {
		if o.limits[i] != v {
			return false
		}
	}
	return true
}

// CanMerge reports whether o's bins concatenate onto l's: o's first limit
// must exactly equal l's last.
func (l *Limits) CanMerge(o *Limits) bool {
	return l.limits[len(l.limits)-1] == o.limits[0]
}

// Merge appends o's bins after l's.  It fails, leaving l unchanged, unless
// the partitions are exactly concatenable.
func (l *Limits) Merge(o *Limits) error {
	if !l.CanMerge(o) {
		return errors.Errorf("binning: limits are not concatenable (%v != %v)",
			l.limits[len(l.limits)-1], o.limits[0])
	}
	l.limits = append(l.limits, o.limits[1:]...)
	return nil
}

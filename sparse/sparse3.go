// Package sparse provides the sparse three-dimensional array backing
// interpolation subgrids.  Non-zero values cluster along a contiguous range
// of axis 0 (the Q² axis) for each (j, k) pair, so the array stores one
// contiguous run of values per (j, k) instead of the full tensor.
package sparse

import (
	"bytes"
	"encoding/gob"

	"github.com/grailbio/base/log"
	"gonum.org/v1/gonum/floats"
)

// run holds the stored values of one (j, k) pair.  start is the axis-0 index
// of values[0]; it is meaningless while values is empty.  Assigning outside
// the current run extends it with explicit zeros, so a run may contain zero
// entries the caller never wrote.
type run struct {
	start  int
	values []float64
}

// Array3 is a logically dense n0 × n1 × n2 tensor of float64 which only
// stores, per (j, k) pair, one contiguous run along axis 0.  The zero value
// is not usable; call New.
//
// Out-of-bounds indices are programming errors and panic.
type Array3 struct {
	n0, n1, n2 int
	runs       []run // len n1*n2, row-major (j*n2 + k)
}

// New returns an empty n0 × n1 × n2 array.
func New(n0, n1, n2 int) *Array3 {
	if n0 <= 0 || n1 <= 0 || n2 <= 0 {
		log.Panicf("sparse: invalid dimensions (%d, %d, %d)", n0, n1, n2)
	}
	return &Array3{
		n0:   n0,
		n1:   n1,
		n2:   n2,
		runs: make([]run, n1*n2),
	}
}

// Dims returns the logical extents of the array.
func (a *Array3) Dims() (n0, n1, n2 int) {
	return a.n0, a.n1, a.n2
}

func (a *Array3) check(i, j, k int) {
	if i < 0 || i >= a.n0 || j < 0 || j >= a.n1 || k < 0 || k >= a.n2 {
		log.Panicf("sparse: index (%d, %d, %d) out of bounds (%d, %d, %d)",
			i, j, k, a.n0, a.n1, a.n2)
	}
}

// At returns the value at (i, j, k); unstored positions read as zero.
func (a *Array3) At(i, j, k int) float64 {
	a.check(i, j, k)
	r := &a.runs[j*a.n2+k]
	if len(r.values) == 0 || i < r.start || i >= r.start+len(r.values) {
		return 0
	}
	return r.values[i-r.start]
}

// Set stores v at (i, j, k), extending the (j, k) run with explicit zeros if
// i lies outside it.  Appending just past the end of a run is amortized O(1).
func (a *Array3) Set(i, j, k int, v float64) {
	a.check(i, j, k)
	r := &a.runs[j*a.n2+k]
	switch {
	case len(r.values) == 0:
		r.start = i
		r.values = append(r.values, v)
	case i < r.start:
		pad := make([]float64, r.start-i, r.start-i+len(r.values))
		r.values = append(pad, r.values...)
		r.start = i
		r.values[0] = v
	case i >= r.start+len(r.values):
		for n := r.start + len(r.values); n <= i; n++ {
			r.values = append(r.values, 0)
		}
		r.values[i-r.start] = v
	default:
		r.values[i-r.start] = v
	}
}

// Add accumulates delta into the value at (i, j, k).
func (a *Array3) Add(i, j, k int, delta float64) {
	a.Set(i, j, k, a.At(i, j, k)+delta)
}

// Each calls fn for every stored entry exactly once, in deterministic order:
// ascending j, then k, then i.  Explicit zeros inside runs are included.
func (a *Array3) Each(fn func(i, j, k int, v float64)) {
	for j := 0; j < a.n1; j++ {
		for k := 0; k < a.n2; k++ {
			r := &a.runs[j*a.n2+k]
			for off, v := range r.values {
				fn(r.start+off, j, k, v)
			}
		}
	}
}

// EachMut is the mutable form of Each: fn may update the entry through the
// pointer.  Same order, same explicit-zero behavior.
func (a *Array3) EachMut(fn func(i, j, k int, v *float64)) {
	for j := 0; j < a.n1; j++ {
		for k := 0; k < a.n2; k++ {
			r := &a.runs[j*a.n2+k]
			for off := range r.values {
				fn(r.start+off, j, k, &r.values[off])
			}
		}
	}
}

// Scale multiplies every stored entry by factor in place.  Scaling by zero
// retains the entries as explicit zeros; use Clear to drop storage.
func (a *Array3) Scale(factor float64) {
	for idx := range a.runs {
		if vals := a.runs[idx].values; len(vals) > 0 {
			floats.Scale(factor, vals)
		}
	}
}

// Clear resets the array to the empty state, dropping all storage.  The
// logical dimensions are unchanged.
func (a *Array3) Clear() {
	for idx := range a.runs {
		a.runs[idx] = run{}
	}
}

// IncreaseXAt grows the axis-0 extent by one, inserting an empty slice at
// index i.  Stored entries at axis-0 positions >= i shift up by one.
func (a *Array3) IncreaseXAt(i int) {
	if i < 0 || i > a.n0 {
		log.Panicf("sparse: insertion index %d out of bounds [0, %d]", i, a.n0)
	}
	a.n0++
	for idx := range a.runs {
		r := &a.runs[idx]
		if len(r.values) == 0 {
			continue
		}
		switch {
		case r.start >= i:
			r.start++
		case i < r.start+len(r.values):
			// The insertion point splits this run; keep it contiguous by
			// storing an explicit zero at the inserted position.
			pad := make([]float64, len(r.values)+1)
			copy(pad, r.values[:i-r.start])
			copy(pad[i-r.start+1:], r.values[i-r.start:])
			r.values = pad
		}
	}
}

// XRange returns the half-open interval [start, end) covering all stored
// axis-0 indices, or (0, 0) if nothing is stored.
func (a *Array3) XRange() (start, end int) {
	first := true
	for idx := range a.runs {
		r := &a.runs[idx]
		if len(r.values) == 0 {
			continue
		}
		if first || r.start < start {
			start = r.start
		}
		if last := r.start + len(r.values); first || last > end {
			end = last
		}
		first = false
	}
	if first {
		return 0, 0
	}
	return start, end
}

// IsEmpty reports whether no entries are stored.  Explicit zeros count as
// stored entries.
func (a *Array3) IsEmpty() bool {
	for idx := range a.runs {
		if len(a.runs[idx].values) > 0 {
			return false
		}
	}
	return true
}

// Len returns the number of stored entries, explicit zeros included.
func (a *Array3) Len() int {
	n := 0
	for idx := range a.runs {
		n += len(a.runs[idx].values)
	}
	return n
}

// arrayState is the wire form of Array3 for gob.
type arrayState struct {
	N0, N1, N2 int
	Starts     []int
	Values     [][]float64
}

// GobEncode implements gob.GobEncoder.
func (a *Array3) GobEncode() ([]byte, error) {
	state := arrayState{N0: a.n0, N1: a.n1, N2: a.n2}
	state.Starts = make([]int, len(a.runs))
	state.Values = make([][]float64, len(a.runs))
	for idx := range a.runs {
		state.Starts[idx] = a.runs[idx].start
		state.Values[idx] = a.runs[idx].values
	}
	return gobBytes(&state)
}

// GobDecode implements gob.GobDecoder.
func (a *Array3) GobDecode(data []byte) error {
	var state arrayState
	if err := gobValue(data, &state); err != nil {
		return err
	}
	a.n0, a.n1, a.n2 = state.N0, state.N1, state.N2
	a.runs = make([]run, len(state.Starts))
	for idx := range a.runs {
		a.runs[idx] = run{start: state.Starts[idx], values: state.Values[idx]}
	}
	return nil
}

func gobBytes(v interface{}) ([]byte, error) {
	var buf bytes.Buffer
	if err := gob.NewEncoder(&buf).Encode(v); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

func gobValue(data []byte, v interface{}) error {
	return gob.NewDecoder(bytes.NewReader(data)).Decode(v)
}

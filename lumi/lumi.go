// Package lumi defines luminosity channels: weighted sets of parton-pair
// contributions that a grid convolves against a pair of PDFs.
package lumi

import (
	"sort"

	"github.com/grailbio/base/log"
)

// Triple is one parton-pair contribution to a channel.  PID1 and PID2 are
// PDG Monte Carlo parton ids; Factor is the relative weight of the pair.
type Triple struct {
	PID1   int32
	PID2   int32
	Factor float64
}

// Entry is a single partonic channel: a non-empty ordered sequence of
// triples.  Two entries compare equal iff their multisets of triples
// coincide, independent of the stored order.
type Entry struct {
	triples []Triple
}

// NewEntry returns an Entry over the given triples.  An empty sequence is a
// programming error.  The slice is copied.
func NewEntry(triples []Triple) *Entry {
	if len(triples) == 0 {
		log.Panicf("lumi: channel must have at least one triple")
	}
	e := &Entry{triples: make([]Triple, len(triples))}
	copy(e.triples, triples)
	return e
}

// Triples returns the triples in their stored order.  The caller must not
// modify the returned slice.
func (e *Entry) Triples() []Triple {
	return e.triples
}

// canonical returns the triples sorted by (PID1, PID2, Factor).
func (e *Entry) canonical() []Triple {
	out := make([]Triple, len(e.triples))
	copy(out, e.triples)
	sort.Slice(out, func(a, b int) bool {
		return tripleLess(out[a], out[b])
	})
	return out
}

func tripleLess(a, b Triple) bool {
	if a.PID1 != b.PID1 {
		return a.PID1 < b.PID1
	}
	if a.PID2 != b.PID2 {
		return a.PID2 < b.PID2
	}
	return a.Factor < b.Factor
}

// Equal reports whether the two entries have the same multiset of triples.
func (e *Entry) Equal(o *Entry) bool {
	if len(e.triples) != len(o.triples) {
		return false
	}
	a, b := e.canonical(), o.canonical()
	for i := range a {
		if a[i] != b[i] {
			return false
		}
	}
	return true
}

// less orders entries by their canonical triple sequences; used only to
// make list comparison order-insensitive.
func (e *Entry) less(o *Entry) bool {
	a, b := e.canonical(), o.canonical()
	for i := 0; i < len(a) && i < len(b); i++ {
		if a[i] != b[i] {
			return tripleLess(a[i], b[i])
		}
	}
	return len(a) < len(b)
}

// EqualAfterSort reports whether lhs and rhs contain the same channels,
// regardless of order.
func EqualAfterSort(lhs, rhs []*Entry) bool {
	if len(lhs) != len(rhs) {
		return false
	}
	a := make([]*Entry, len(lhs))
	b := make([]*Entry, len(rhs))
	copy(a, lhs)
	copy(b, rhs)
	sort.Slice(a, func(i, j int) bool { return a[i].less(a[j]) })
	sort.Slice(b, func(i, j int) bool { return b[i].less(b[j]) })
	for i := range a {
		if !a[i].Equal(b[i]) {
			return false
		}
	}
	return true
}

package grid

import "sort"

// Order identifies one perturbative term by the exponents of the strong
// coupling, the electromagnetic coupling, and the logarithms of the
// renormalization and factorization scale factors.  Orders are totally
// ordered lexicographically on the four fields.
type Order struct {
	AlphaS uint32
	Alpha  uint32
	LogXiR uint32
	LogXiF uint32
}

// NewOrder is shorthand for constructing an Order.
func NewOrder(alphaS, alpha, logXiR, logXiF uint32) Order {
	return Order{AlphaS: alphaS, Alpha: alpha, LogXiR: logXiR, LogXiF: logXiF}
}

// Less reports whether o sorts before p.
func (o Order) Less(p Order) bool {
	if o.AlphaS != p.AlphaS {
		return o.AlphaS < p.AlphaS
	}
	if o.Alpha != p.Alpha {
		return o.Alpha < p.Alpha
	}
	if o.LogXiR != p.LogXiR {
		return o.LogXiR < p.LogXiR
	}
	return o.LogXiF < p.LogXiF
}

// OrdersEqualAfterSort reports whether lhs and rhs contain the same orders,
// regardless of order.
func OrdersEqualAfterSort(lhs, rhs []Order) bool {
	if len(lhs) != len(rhs) {
		return false
	}
	a := make([]Order, len(lhs))
	b := make([]Order, len(rhs))
	copy(a, lhs)
	copy(b, rhs)
	sort.Slice(a, func(i, j int) bool { return a[i].Less(a[j]) })
	sort.Slice(b, func(i, j int) bool { return b[i].Less(b[j]) })
	for i := range a {
		if a[i] != b[i] {
			return false
		}
	}
	return true
}

package grid

// Ntuple is one generator event: parton momentum fractions X1 and X2 in
// (0, 1], the squared scale Q2, and the event weight.
type Ntuple struct {
	X1     float64
	X2     float64
	Q2     float64
	Weight float64
}

// Position is the weightless form of Ntuple, used by FillAll where one
// position carries a separate weight per channel.
type Position struct {
	X1 float64
	X2 float64
	Q2 float64
}

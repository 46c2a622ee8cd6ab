package grid

// Gob wire forms for the subgrid variants.  The in-memory types keep their
// fields unexported, so each variant round-trips through an exported state
// struct.  encoding/gridio builds on these to persist whole grids.

import (
	"bytes"
	"encoding/gob"

	"github.com/grailbio/qcdgrid/sparse"
)

type lagrangeState struct {
	Array            *sparse.Array3
	NTau, NY         int
	TauOrder, YOrder int
	YMin, YMax       float64
	TauMin, TauMax   float64
	Reweight         bool
	ITauMin, ITauMax int
	StaticQ2         float64
	Filled           bool
}

// GobEncode implements gob.GobEncoder.
func (g *LagrangeSubgrid) GobEncode() ([]byte, error) {
	state := lagrangeState{
		Array:    g.array,
		NTau:     g.ntau,
		NY:       g.ny,
		TauOrder: g.tauOrder,
		YOrder:   g.yOrder,
		YMin:     g.yMin,
		YMax:     g.yMax,
		TauMin:   g.tauMin,
		TauMax:   g.tauMax,
		Reweight: g.reweight,
		ITauMin:  g.itauMin,
		ITauMax:  g.itauMax,
		StaticQ2: g.staticQ2,
		Filled:   g.filled,
	}
	var buf bytes.Buffer
	if err := gob.NewEncoder(&buf).Encode(&state); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

// GobDecode implements gob.GobDecoder.
func (g *LagrangeSubgrid) GobDecode(data []byte) error {
	var state lagrangeState
	if err := gob.NewDecoder(bytes.NewReader(data)).Decode(&state); err != nil {
		return err
	}
	g.array = state.Array
	g.ntau = state.NTau
	g.ny = state.NY
	g.tauOrder = state.TauOrder
	g.yOrder = state.YOrder
	g.yMin = state.YMin
	g.yMax = state.YMax
	g.tauMin = state.TauMin
	g.tauMax = state.TauMax
	g.reweight = state.Reweight
	g.itauMin = state.ITauMin
	g.itauMax = state.ITauMax
	g.staticQ2 = state.StaticQ2
	g.filled = state.Filled
	return nil
}

type importState struct {
	Array  *sparse.Array3
	Q2Grid []float64
	X1Grid []float64
	X2Grid []float64
}

// GobEncode implements gob.GobEncoder.
func (g *ImportSubgrid) GobEncode() ([]byte, error) {
	state := importState{Array: g.array, Q2Grid: g.q2Grid, X1Grid: g.x1Grid, X2Grid: g.x2Grid}
	var buf bytes.Buffer
	if err := gob.NewEncoder(&buf).Encode(&state); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

// GobDecode implements gob.GobDecoder.
func (g *ImportSubgrid) GobDecode(data []byte) error {
	var state importState
	if err := gob.NewDecoder(bytes.NewReader(data)).Decode(&state); err != nil {
		return err
	}
	g.array = state.Array
	g.q2Grid = state.Q2Grid
	g.x1Grid = state.X1Grid
	g.x2Grid = state.X2Grid
	return nil
}

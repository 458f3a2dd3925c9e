package rnn

import (
	"fmt"

	"textgan-go/tensor"
)

// LayerState is the recurrent state of one stacked layer. H (and C for
// LSTM cells) are shaped [1, batch, hidden].
type LayerState struct {
	H *tensor.Tensor
	C *tensor.Tensor
}

// State is everything one generation or scoring call carries from one
// timestep to the next: the per-layer recurrent state and the dropout mask
// sampled at timestep 0. A State belongs to a single call; Step never
// mutates the State it is given.
type State struct {
	Layers []LayerState
	Mask   *DropoutMask
}

// NewState returns the all-zero initial state for the given cells
func NewState(cells []Cell, batch int) *State {
	st := &State{Layers: make([]LayerState, len(cells))}
	for i, c := range cells {
		ls := LayerState{H: tensor.NewTensor(1, batch, c.HiddenDim())}
		if c.Kind() == CellLSTM {
			ls.C = tensor.NewTensor(1, batch, c.HiddenDim())
		}
		st.Layers[i] = ls
	}
	return st
}

// Batch returns the batch size the state was built for
func (s *State) Batch() int {
	if len(s.Layers) == 0 {
		return 0
	}
	return s.Layers[0].H.Shape[1]
}

// Hidden returns the h component of the top layer, [1, batch, hidden].
// For LSTM states the cell component is left out.
func (s *State) Hidden() *tensor.Tensor {
	return s.Layers[len(s.Layers)-1].H
}

func (s *State) check(cells []Cell, batch int) error {
	if len(s.Layers) != len(cells) {
		return fmt.Errorf("%w: state has %d layers, engine has %d", tensor.ErrShape, len(s.Layers), len(cells))
	}
	for i, ls := range s.Layers {
		want := []int{1, batch, cells[i].HiddenDim()}
		if !sameShape(ls.H.Shape, want) {
			return fmt.Errorf("%w: layer %d hidden state is %v, want %v", tensor.ErrShape, i, ls.H.Shape, want)
		}
		if cells[i].Kind() == CellLSTM && (ls.C == nil || !sameShape(ls.C.Shape, want)) {
			return fmt.Errorf("%w: layer %d LSTM state needs a cell component shaped %v", tensor.ErrShape, i, want)
		}
	}
	return nil
}

func sameShape(a, b []int) bool {
	if len(a) != len(b) {
		return false
	}
	for i := range a {
		if a[i] != b[i] {
			return false
		}
	}
	return true
}

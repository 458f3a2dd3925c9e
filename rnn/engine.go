package rnn

import (
	"errors"
	"fmt"
	"math/rand"

	"textgan-go/tensor"
)

// ErrSingleStep is returned when Step receives more than one timestep
var ErrSingleStep = errors.New("rnn: this method is for single timestep use only")

// ErrMaskMissing is returned when a training-mode step with dropout runs
// on a state that never went through timestep 0
var ErrMaskMissing = errors.New("rnn: no dropout mask for this sequence; sequences must start at timestep 0")

// Engine is a stack of recurrent cells that all share one hidden width
type Engine struct {
	cells    []Cell
	hidden   int
	training bool

	// Trace, when set, receives every masked activation: layer -1 is the
	// masked input, layer l >= 0 the masked output of cell l.
	Trace func(t, layer int, masked *tensor.Tensor)
}

// NewEngine stacks numLayers cells of the given kind
func NewEngine(kind CellKind, numLayers, hidden int, rng *rand.Rand) (*Engine, error) {
	if numLayers < 1 {
		return nil, fmt.Errorf("engine needs at least one layer, got %d", numLayers)
	}
	e := &Engine{hidden: hidden, cells: make([]Cell, numLayers)}
	for l := range e.cells {
		c, err := NewCell(kind, hidden, hidden, rng)
		if err != nil {
			return nil, err
		}
		e.cells[l] = c
	}
	return e, nil
}

// SetTraining switches between training (dropout active) and evaluation mode
func (e *Engine) SetTraining(training bool) {
	e.training = training
}

// Training reports whether dropout is active
func (e *Engine) Training() bool {
	return e.training
}

// SetWorkers bounds the goroutines used across batch rows inside one cell step
func (e *Engine) SetWorkers(n int) {
	for _, c := range e.cells {
		c.setWorkers(n)
	}
}

// HiddenDim returns the shared hidden width
func (e *Engine) HiddenDim() int {
	return e.hidden
}

// Kind returns the cell kind of the stack
func (e *Engine) Kind() CellKind {
	return e.cells[0].Kind()
}

// NumLayers returns the number of stacked cells
func (e *Engine) NumLayers() int {
	return len(e.cells)
}

// Cells exposes the stacked cells
func (e *Engine) Cells() []Cell {
	return e.cells
}

// ZeroState returns the initial state for a batch
func (e *Engine) ZeroState(batch int) *State {
	return NewState(e.cells, batch)
}

// Clone deep-copies the weights. The copy starts in evaluation mode.
func (e *Engine) Clone() *Engine {
	c := &Engine{hidden: e.hidden, cells: make([]Cell, len(e.cells))}
	for i, cell := range e.cells {
		c.cells[i] = cell.clone()
	}
	return c
}

// Step advances the stack by one timestep.
//
// x is [batch, 1, hidden]. A nil st starts from the zero state. At t == 0,
// in training mode with p > 0, a fresh mask is drawn from rng and stored in
// the returned state; later timesteps reuse it unchanged. In evaluation mode
// no mask is drawn or applied and rng may be nil.
func (e *Engine) Step(x *tensor.Tensor, st *State, t int, p float64, rng *rand.Rand) (*tensor.Tensor, *State, error) {
	if x.Rank() != 3 || x.Shape[1] != 1 {
		return nil, nil, fmt.Errorf("%w: got input shape %v", ErrSingleStep, x.Shape)
	}
	batch := x.Shape[0]
	if x.Shape[2] != e.hidden {
		return nil, nil, fmt.Errorf("%w: input width %d, want %d", tensor.ErrShape, x.Shape[2], e.hidden)
	}

	if st == nil {
		st = e.ZeroState(batch)
	} else if err := st.check(e.cells, batch); err != nil {
		return nil, nil, err
	}

	next := &State{Layers: make([]LayerState, len(e.cells)), Mask: st.Mask}
	dropout := e.training && p > 0
	if dropout && t == 0 {
		mask, err := SampleMask(batch, e.hidden, p, rng)
		if err != nil {
			return nil, nil, err
		}
		next.Mask = mask
	}
	if dropout && next.Mask == nil {
		return nil, nil, ErrMaskMissing
	}

	output := x.Reshape(batch, e.hidden)
	var err error
	if dropout {
		if output, err = next.Mask.Apply(output); err != nil {
			return nil, nil, err
		}
		e.trace(t, -1, output)
	}

	for l, cell := range e.cells {
		output, next.Layers[l], err = cell.Forward(output, st.Layers[l])
		if err != nil {
			return nil, nil, fmt.Errorf("layer %d: %w", l, err)
		}
		if dropout {
			if output, err = next.Mask.Apply(output); err != nil {
				return nil, nil, err
			}
			e.trace(t, l, output)
		}
	}

	return output.Reshape(batch, 1, e.hidden), next, nil
}

func (e *Engine) trace(t, layer int, masked *tensor.Tensor) {
	if e.Trace != nil {
		e.Trace(t, layer, masked)
	}
}

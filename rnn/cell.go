package rnn

import (
	"fmt"
	"math"
	"math/rand"
	"strings"

	"textgan-go/tensor"
)

// CellKind selects the recurrent cell used by every stacked layer
type CellKind int

const (
	CellRNN CellKind = iota // Elman RNN with tanh
	CellGRU
	CellLSTM
)

var cellNames = map[CellKind]string{
	CellRNN:  "RNN",
	CellGRU:  "GRU",
	CellLSTM: "LSTM",
}

// ParseCellKind resolves a configuration name ("LSTM", "gru", ...) to a CellKind
func ParseCellKind(name string) (CellKind, error) {
	for k, n := range cellNames {
		if strings.EqualFold(n, name) {
			return k, nil
		}
	}
	return 0, fmt.Errorf("unknown recurrent cell %q (supported: RNN, GRU, LSTM)", name)
}

func (k CellKind) String() string {
	if n, ok := cellNames[k]; ok {
		return n
	}
	return fmt.Sprintf("CellKind(%d)", int(k))
}

// MarshalText stores the kind by name
func (k CellKind) MarshalText() ([]byte, error) {
	if _, ok := cellNames[k]; !ok {
		return nil, fmt.Errorf("unknown recurrent cell %d", int(k))
	}
	return []byte(k.String()), nil
}

// UnmarshalText parses a kind stored by name
func (k *CellKind) UnmarshalText(b []byte) error {
	parsed, err := ParseCellKind(string(b))
	if err != nil {
		return err
	}
	*k = parsed
	return nil
}

func (k CellKind) gates() int {
	switch k {
	case CellGRU:
		return 3
	case CellLSTM:
		return 4
	default:
		return 1
	}
}

// Cell advances one recurrent layer by one timestep
type Cell interface {
	Kind() CellKind
	HiddenDim() int
	// Forward maps x [batch, in] and the previous layer state to the new
	// hidden output [batch, hidden] and the new layer state.
	Forward(x *tensor.Tensor, prev LayerState) (*tensor.Tensor, LayerState, error)
	// Params exposes the weights by name for checkpointing
	Params() map[string]*tensor.Tensor
	clone() Cell
	setWorkers(n int)
}

// weights follows the fused gate layout [in, gates*hidden]
type weights struct {
	hidden  int
	workers int
	WIH     *tensor.Tensor // [in, gates*hidden]
	WHH     *tensor.Tensor // [hidden, gates*hidden]
	BIH     *tensor.Tensor // [gates*hidden]
	BHH     *tensor.Tensor // [gates*hidden]
}

func newWeights(kind CellKind, in, hidden int, rng *rand.Rand) weights {
	g := kind.gates() * hidden
	w := weights{
		hidden: hidden,
		WIH:    tensor.NewTensor(in, g),
		WHH:    tensor.NewTensor(hidden, g),
		BIH:    tensor.NewTensor(g),
		BHH:    tensor.NewTensor(g),
	}
	scale := float32(1 / math.Sqrt(float64(hidden)))
	for _, t := range []*tensor.Tensor{w.WIH, w.WHH, w.BIH, w.BHH} {
		tensor.Uniform(t, scale, rng)
	}
	return w
}

func (w weights) params() map[string]*tensor.Tensor {
	return map[string]*tensor.Tensor{
		"weight_ih": w.WIH,
		"weight_hh": w.WHH,
		"bias_ih":   w.BIH,
		"bias_hh":   w.BHH,
	}
}

func (w *weights) setWorkers(n int) {
	w.workers = n
}

func (w weights) cloned() weights {
	return weights{
		hidden:  w.hidden,
		workers: w.workers,
		WIH:     w.WIH.Clone(),
		WHH:     w.WHH.Clone(),
		BIH:     w.BIH.Clone(),
		BHH:     w.BHH.Clone(),
	}
}

// project returns the input and recurrent gate pre-activations
func (w weights) project(x, h *tensor.Tensor) (*tensor.Tensor, *tensor.Tensor, error) {
	if x.Shape[1] != w.WIH.Shape[0] {
		return nil, nil, fmt.Errorf("%w: cell input width %d, want %d", tensor.ErrShape, x.Shape[1], w.WIH.Shape[0])
	}
	gi := tensor.MatMul(x, w.WIH)
	tensor.AddRowVector(gi, w.BIH)
	gh := tensor.MatMul(h, w.WHH)
	tensor.AddRowVector(gh, w.BHH)
	return gi, gh, nil
}

// NewCell builds the concrete cell for kind. The choice is made once here.
func NewCell(kind CellKind, in, hidden int, rng *rand.Rand) (Cell, error) {
	switch kind {
	case CellRNN:
		return &rnnCell{newWeights(kind, in, hidden, rng)}, nil
	case CellGRU:
		return &gruCell{newWeights(kind, in, hidden, rng)}, nil
	case CellLSTM:
		return &lstmCell{newWeights(kind, in, hidden, rng)}, nil
	}
	return nil, fmt.Errorf("unknown recurrent cell %d", int(kind))
}

type rnnCell struct{ weights }

func (c *rnnCell) Kind() CellKind { return CellRNN }
func (c *rnnCell) HiddenDim() int { return c.hidden }
func (c *rnnCell) Params() map[string]*tensor.Tensor { return c.params() }
func (c *rnnCell) clone() Cell { return &rnnCell{c.cloned()} }

func (c *rnnCell) Forward(x *tensor.Tensor, prev LayerState) (*tensor.Tensor, LayerState, error) {
	gi, gh, err := c.project(x, prev.H.Reshape(x.Shape[0], c.hidden))
	if err != nil {
		return nil, LayerState{}, err
	}
	h := tensor.Tanh(tensor.Add(gi, gh))
	return h, LayerState{H: h.Reshape(1, x.Shape[0], c.hidden)}, nil
}

type gruCell struct{ weights }

func (c *gruCell) Kind() CellKind { return CellGRU }
func (c *gruCell) HiddenDim() int { return c.hidden }
func (c *gruCell) Params() map[string]*tensor.Tensor { return c.params() }
func (c *gruCell) clone() Cell { return &gruCell{c.cloned()} }

// Forward uses gate order (r, z, n)
func (c *gruCell) Forward(x *tensor.Tensor, prev LayerState) (*tensor.Tensor, LayerState, error) {
	batch, hd := x.Shape[0], c.hidden
	hPrev := prev.H.Reshape(batch, hd)
	gi, gh, err := c.project(x, hPrev)
	if err != nil {
		return nil, LayerState{}, err
	}

	h := tensor.NewTensor(batch, hd)
	err = tensor.ForEachRow(batch, c.workers, func(b int) error {
		i, r := gi.Row(b), gh.Row(b)
		for j := 0; j < hd; j++ {
			reset := sigmoid(i[j] + r[j])
			update := sigmoid(i[hd+j] + r[hd+j])
			n := float32(math.Tanh(float64(i[2*hd+j] + reset*r[2*hd+j])))
			h.Data[b*hd+j] = (1-update)*n + update*hPrev.Data[b*hd+j]
		}
		return nil
	})
	if err != nil {
		return nil, LayerState{}, err
	}
	return h, LayerState{H: h.Reshape(1, batch, hd)}, nil
}

type lstmCell struct{ weights }

func (c *lstmCell) Kind() CellKind { return CellLSTM }
func (c *lstmCell) HiddenDim() int { return c.hidden }
func (c *lstmCell) Params() map[string]*tensor.Tensor { return c.params() }
func (c *lstmCell) clone() Cell { return &lstmCell{c.cloned()} }

// Forward uses gate order (i, f, g, o)
func (c *lstmCell) Forward(x *tensor.Tensor, prev LayerState) (*tensor.Tensor, LayerState, error) {
	batch, hd := x.Shape[0], c.hidden
	if prev.C == nil {
		return nil, LayerState{}, fmt.Errorf("%w: LSTM state is missing its cell component", tensor.ErrShape)
	}
	cPrev := prev.C.Reshape(batch, hd)
	gi, gh, err := c.project(x, prev.H.Reshape(batch, hd))
	if err != nil {
		return nil, LayerState{}, err
	}

	h := tensor.NewTensor(batch, hd)
	cell := tensor.NewTensor(batch, hd)
	err = tensor.ForEachRow(batch, c.workers, func(b int) error {
		i, r := gi.Row(b), gh.Row(b)
		for j := 0; j < hd; j++ {
			in := sigmoid(i[j] + r[j])
			forget := sigmoid(i[hd+j] + r[hd+j])
			g := float32(math.Tanh(float64(i[2*hd+j] + r[2*hd+j])))
			out := sigmoid(i[3*hd+j] + r[3*hd+j])
			cv := forget*cPrev.Data[b*hd+j] + in*g
			cell.Data[b*hd+j] = cv
			h.Data[b*hd+j] = out * float32(math.Tanh(float64(cv)))
		}
		return nil
	})
	if err != nil {
		return nil, LayerState{}, err
	}
	return h, LayerState{H: h.Reshape(1, batch, hd), C: cell.Reshape(1, batch, hd)}, nil
}

func sigmoid(x float32) float32 {
	return float32(1.0 / (1.0 + math.Exp(-float64(x))))
}

package rnn

import (
	"fmt"
	"math/rand"

	"textgan-go/tensor"
)

// DropoutMask is a variational (locked) dropout mask shaped [batch, 1, hidden].
// Kept units hold 1/(1-p), dropped units hold 0.
type DropoutMask struct {
	Data   []float32
	Batch  int
	Hidden int
	P      float64
}

// SampleMask draws a Bernoulli(1-p) keep mask rescaled by 1/(1-p)
func SampleMask(batch, hidden int, p float64, rng *rand.Rand) (*DropoutMask, error) {
	if p < 0 || p >= 1 {
		return nil, fmt.Errorf("dropout probability %v outside [0, 1)", p)
	}
	if rng == nil {
		return nil, fmt.Errorf("sampling a dropout mask requires a random source")
	}
	m := &DropoutMask{
		Data:   make([]float32, batch*hidden),
		Batch:  batch,
		Hidden: hidden,
		P:      p,
	}
	scale := float32(1 / (1 - p))
	for i := range m.Data {
		if rng.Float64() < 1-p {
			m.Data[i] = scale
		}
	}
	return m, nil
}

// Apply multiplies every row of x ([batch, hidden] or [batch, 1, hidden]) by the mask
func (m *DropoutMask) Apply(x *tensor.Tensor) (*tensor.Tensor, error) {
	if x.Size() != len(m.Data) || x.Shape[0] != m.Batch {
		return nil, fmt.Errorf("%w: mask [%d,1,%d] does not fit %v", tensor.ErrShape, m.Batch, m.Hidden, x.Shape)
	}
	result := tensor.NewTensor(x.Shape...)
	for i, v := range x.Data {
		result.Data[i] = v * m.Data[i]
	}
	return result, nil
}

// Tensor returns the mask as a [batch, 1, hidden] tensor
func (m *DropoutMask) Tensor() *tensor.Tensor {
	t := tensor.NewTensor(m.Batch, 1, m.Hidden)
	copy(t.Data, m.Data)
	return t
}

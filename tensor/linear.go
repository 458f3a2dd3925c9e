package tensor

import (
	"fmt"
	"math/rand"
)

// Linear is an affine projection y = xW + b
type Linear struct {
	Weight *Tensor // [in, out]
	Bias   *Tensor // [out]
}

// NewLinear creates a linear layer with weights drawn uniformly from [-scale, scale]
func NewLinear(in, out int, scale float32, rng *rand.Rand) *Linear {
	l := &Linear{
		Weight: NewTensor(in, out),
		Bias:   NewTensor(out),
	}
	Uniform(l.Weight, scale, rng)
	return l
}

// In returns the input width
func (l *Linear) In() int {
	return l.Weight.Shape[0]
}

// Out returns the output width
func (l *Linear) Out() int {
	return l.Weight.Shape[1]
}

// Forward projects every row of x. Any leading shape is kept; the last
// dimension must equal In().
func (l *Linear) Forward(x *Tensor) (*Tensor, error) {
	in := x.Shape[len(x.Shape)-1]
	if in != l.In() {
		return nil, fmt.Errorf("%w: linear expects last dim %d, got %v", ErrShape, l.In(), x.Shape)
	}
	rows := x.Rows()
	y := MatMul(x.Reshape(rows, in), l.Weight)
	if l.Bias != nil {
		AddRowVector(y, l.Bias)
	}

	shape := append([]int(nil), x.Shape...)
	shape[len(shape)-1] = l.Out()
	return y.Reshape(shape...), nil
}

// Clone deep-copies the layer
func (l *Linear) Clone() *Linear {
	c := &Linear{Weight: l.Weight.Clone()}
	if l.Bias != nil {
		c.Bias = l.Bias.Clone()
	}
	return c
}

// Uniform fills t with values drawn from [-scale, scale]
func Uniform(t *Tensor, scale float32, rng *rand.Rand) {
	for i := range t.Data {
		t.Data[i] = (rng.Float32()*2 - 1) * scale
	}
}

package tensor

import (
	"errors"
	"fmt"
	"math"
)

// ErrShape is returned when an operand does not have the shape an operation requires
var ErrShape = errors.New("tensor: shape mismatch")

// Tensor is a dense row-major float32 array
type Tensor struct {
	Data  []float32
	Shape []int
}

func numel(shape []int) int {
	n := 1
	for _, d := range shape {
		n *= d
	}
	return n
}

// NewTensor allocates a zero tensor
func NewTensor(shape ...int) *Tensor {
	return &Tensor{Data: make([]float32, numel(shape)), Shape: append([]int(nil), shape...)}
}

// FromData wraps data in a tensor of the given shape
func FromData(data []float32, shape ...int) (*Tensor, error) {
	t := &Tensor{Data: data, Shape: append([]int(nil), shape...)}
	if t.Size() != len(data) {
		return nil, fmt.Errorf("%w: %d values for shape %v", ErrShape, len(data), shape)
	}
	return t, nil
}

// Size returns the element count implied by Shape
func (t *Tensor) Size() int {
	return numel(t.Shape)
}

// Rank returns the number of dimensions
func (t *Tensor) Rank() int {
	return len(t.Shape)
}

// At reads one element
func (t *Tensor) At(indices ...int) float32 {
	return t.Data[t.flatIndex(indices)]
}

// Set writes one element
func (t *Tensor) Set(val float32, indices ...int) {
	t.Data[t.flatIndex(indices)] = val
}

func (t *Tensor) flatIndex(indices []int) int {
	if len(indices) != len(t.Shape) {
		panic(fmt.Sprintf("%v: %d indices for shape %v", ErrShape, len(indices), t.Shape))
	}
	idx := 0
	for d, i := range indices {
		idx = idx*t.Shape[d] + i
	}
	return idx
}

// Clone returns a deep copy
func (t *Tensor) Clone() *Tensor {
	result := NewTensor(t.Shape...)
	copy(result.Data, t.Data)
	return result
}

// Detach returns a copy that shares no storage with t. Consumers of a
// detached value can never write back into the tensor it came from.
func (t *Tensor) Detach() *Tensor {
	return t.Clone()
}

// Equal reports whether both tensors have identical shapes and bit-identical values
func Equal(a, b *Tensor) bool {
	if len(a.Shape) != len(b.Shape) || len(a.Data) != len(b.Data) {
		return false
	}
	for i := range a.Shape {
		if a.Shape[i] != b.Shape[i] {
			return false
		}
	}
	for i := range a.Data {
		if math.Float32bits(a.Data[i]) != math.Float32bits(b.Data[i]) {
			return false
		}
	}
	return true
}

// MatMul multiplies [m,k] by [k,n]
func MatMul(a, b *Tensor) *Tensor {
	if a.Rank() != 2 || b.Rank() != 2 || a.Shape[1] != b.Shape[0] {
		panic(fmt.Sprintf("%v: matmul %v x %v", ErrShape, a.Shape, b.Shape))
	}
	m, k, n := a.Shape[0], a.Shape[1], b.Shape[1]
	out := NewTensor(m, n)
	for i := 0; i < m; i++ {
		row := out.Data[i*n : (i+1)*n]
		for p := 0; p < k; p++ {
			av := a.Data[i*k+p]
			if av == 0 {
				continue
			}
			bRow := b.Data[p*n : (p+1)*n]
			for j := range row {
				row[j] += av * bRow[j]
			}
		}
	}

	return out
}

// AddRowVector adds a [n] bias to every row of a [m,n] tensor in place
func AddRowVector(t *Tensor, bias *Tensor) {
	n := t.Shape[len(t.Shape)-1]
	if len(bias.Data) != n {
		panic(fmt.Sprintf("bias size %d does not match last dim %d", len(bias.Data), n))
	}
	for i := 0; i < len(t.Data); i += n {
		for j := 0; j < n; j++ {
			t.Data[i+j] += bias.Data[j]
		}
	}
}

// Add returns a + b element-wise
func Add(a, b *Tensor) *Tensor {
	if len(a.Data) != len(b.Data) {
		panic(fmt.Sprintf("%v: add %v and %v", ErrShape, a.Shape, b.Shape))
	}
	out := a.Clone()
	for i, v := range b.Data {
		out.Data[i] += v
	}
	return out
}

// Map returns fn applied to every element
func Map(t *Tensor, fn func(float32) float32) *Tensor {
	out := &Tensor{Data: make([]float32, len(t.Data)), Shape: append([]int(nil), t.Shape...)}
	for i, v := range t.Data {
		out.Data[i] = fn(v)
	}
	return out
}

// Scale multiplies every element by factor
func Scale(t *Tensor, factor float32) *Tensor {
	return Map(t, func(v float32) float32 { return v * factor })
}

// Sigmoid applies the logistic function element-wise
func Sigmoid(t *Tensor) *Tensor {
	return Map(t, sigmoid)
}

// Tanh applies tanh element-wise
func Tanh(t *Tensor) *Tensor {
	return Map(t, func(v float32) float32 { return float32(math.Tanh(float64(v))) })
}

func sigmoid(x float32) float32 {
	return float32(1.0 / (1.0 + math.Exp(-float64(x))))
}

// Reshape views the same data under a new shape
func (t *Tensor) Reshape(shape ...int) *Tensor {
	if numel(shape) != len(t.Data) {
		panic(fmt.Sprintf("%v: cannot view %d values as %v", ErrShape, len(t.Data), shape))
	}
	return &Tensor{Data: t.Data, Shape: append([]int(nil), shape...)}
}

// Row returns row i of a tensor viewed as [rows, lastDim]
func (t *Tensor) Row(i int) []float32 {
	n := t.Shape[len(t.Shape)-1]
	return t.Data[i*n : (i+1)*n]
}

// Rows returns the number of rows when viewed as [rows, lastDim]
func (t *Tensor) Rows() int {
	n := t.Shape[len(t.Shape)-1]
	if n == 0 {
		return 0
	}
	return len(t.Data) / n
}

// SetStep writes a [batch, d] slab into position step of a [batch, steps, d] tensor
func (t *Tensor) SetStep(step int, slab *Tensor) {
	if len(t.Shape) != 3 {
		panic("SetStep requires a 3D tensor")
	}
	batch, steps, d := t.Shape[0], t.Shape[1], t.Shape[2]
	if slab.Size() != batch*d {
		panic(fmt.Sprintf("slab size %d does not match [%d,%d]", slab.Size(), batch, d))
	}
	for b := 0; b < batch; b++ {
		copy(t.Data[(b*steps+step)*d:(b*steps+step+1)*d], slab.Data[b*d:(b+1)*d])
	}
}

// Step extracts position step of a [batch, steps, d] tensor as [batch, d]
func (t *Tensor) Step(step int) *Tensor {
	if len(t.Shape) != 3 {
		panic("Step requires a 3D tensor")
	}
	batch, steps, d := t.Shape[0], t.Shape[1], t.Shape[2]
	result := NewTensor(batch, d)
	for b := 0; b < batch; b++ {
		copy(result.Data[b*d:(b+1)*d], t.Data[(b*steps+step)*d:(b*steps+step+1)*d])
	}
	return result
}

package tensor

import "fmt"

// IntTensor holds token ids, usually a [batch, seq_len] batch
type IntTensor struct {
	Data  []int
	Shape []int
}

// NewIntTensor creates a zero-filled (all padding) token tensor
func NewIntTensor(shape ...int) *IntTensor {
	size := 1
	for _, dim := range shape {
		size *= dim
	}
	return &IntTensor{
		Data:  make([]int, size),
		Shape: append([]int(nil), shape...),
	}
}

// FromRows builds a [len(rows), len(rows[0])] batch. Rows must be rectangular.
func FromRows(rows [][]int) (*IntTensor, error) {
	if len(rows) == 0 {
		return NewIntTensor(0, 0), nil
	}
	cols := len(rows[0])
	t := NewIntTensor(len(rows), cols)
	for i, row := range rows {
		if len(row) != cols {
			return nil, fmt.Errorf("%w: row %d has %d tokens, want %d", ErrShape, i, len(row), cols)
		}
		copy(t.Data[i*cols:(i+1)*cols], row)
	}
	return t, nil
}

// MustFromRows is FromRows for literals known to be rectangular
func MustFromRows(rows [][]int) *IntTensor {
	t, err := FromRows(rows)
	if err != nil {
		panic(err)
	}
	return t
}

// Rank returns the number of dimensions
func (t *IntTensor) Rank() int {
	return len(t.Shape)
}

// Batch returns the leading dimension
func (t *IntTensor) Batch() int {
	return t.Shape[0]
}

// Len returns the sequence dimension of a [batch, seq_len] tensor
func (t *IntTensor) Len() int {
	return t.Shape[1]
}

// At returns the token at (row, col)
func (t *IntTensor) At(row, col int) int {
	return t.Data[row*t.Shape[1]+col]
}

// Set writes the token at (row, col)
func (t *IntTensor) Set(val, row, col int) {
	t.Data[row*t.Shape[1]+col] = val
}

// Column returns a copy of position col for every row
func (t *IntTensor) Column(col int) []int {
	batch, cols := t.Shape[0], t.Shape[1]
	out := make([]int, batch)
	for b := 0; b < batch; b++ {
		out[b] = t.Data[b*cols+col]
	}
	return out
}

// SetColumn writes ids into position col of every row
func (t *IntTensor) SetColumn(col int, ids []int) {
	cols := t.Shape[1]
	for b, id := range ids {
		t.Data[b*cols+col] = id
	}
}

// Row returns a copy of row i
func (t *IntTensor) Row(i int) []int {
	cols := t.Shape[1]
	out := make([]int, cols)
	copy(out, t.Data[i*cols:(i+1)*cols])
	return out
}

// RowsSlice returns every row as its own slice
func (t *IntTensor) RowsSlice() [][]int {
	out := make([][]int, t.Shape[0])
	for i := range out {
		out[i] = t.Row(i)
	}
	return out
}

// SliceCols returns columns [start, end) of every row as a new tensor
func (t *IntTensor) SliceCols(start, end int) *IntTensor {
	batch, cols := t.Shape[0], t.Shape[1]
	if start < 0 || end > cols || start > end {
		panic(fmt.Sprintf("column range [%d,%d) out of bounds for %d columns", start, end, cols))
	}
	out := NewIntTensor(batch, end-start)
	for b := 0; b < batch; b++ {
		copy(out.Data[b*(end-start):(b+1)*(end-start)], t.Data[b*cols+start:b*cols+end])
	}
	return out
}

// SliceRows returns rows [start, end)
func (t *IntTensor) SliceRows(start, end int) *IntTensor {
	cols := t.Shape[1]
	out := NewIntTensor(end-start, cols)
	copy(out.Data, t.Data[start*cols:end*cols])
	return out
}

// CountNonPad returns, per row, the number of tokens different from pad
func (t *IntTensor) CountNonPad(pad int) []int {
	batch, cols := t.Shape[0], t.Shape[1]
	out := make([]int, batch)
	for b := 0; b < batch; b++ {
		for c := 0; c < cols; c++ {
			if t.Data[b*cols+c] != pad {
				out[b]++
			}
		}
	}
	return out
}

package tensor

import (
	"errors"
	"math/rand"
	"sync/atomic"
	"testing"
)

func TestMatMul(t *testing.T) {
	a, _ := FromData([]float32{1, 2, 3, 4, 5, 6}, 2, 3)
	b, _ := FromData([]float32{1, 0, 0, 1, 1, 1}, 3, 2)

	c := MatMul(a, b)

	want := []float32{4, 5, 10, 11}
	for i, v := range want {
		if c.Data[i] != v {
			t.Errorf("Expected c[%d] = %v, got %v", i, v, c.Data[i])
		}
	}
}

func TestStepRoundTrip(t *testing.T) {
	x := NewTensor(2, 3, 4)
	slab, _ := FromData([]float32{1, 2, 3, 4, 5, 6, 7, 8}, 2, 4)
	x.SetStep(1, slab)

	if !Equal(x.Step(1), slab) {
		t.Errorf("Expected step 1 to equal the written slab, got %v", x.Step(1).Data)
	}
	if x.At(0, 0, 0) != 0 || x.At(1, 2, 3) != 0 {
		t.Errorf("Expected other steps untouched")
	}
}

func TestLinearShapeMismatch(t *testing.T) {
	l := NewLinear(4, 3, 0.1, rand.New(rand.NewSource(1)))

	out, err := l.Forward(NewTensor(2, 1, 4))
	if err != nil {
		t.Fatalf("Unexpected error: %v", err)
	}
	if len(out.Shape) != 3 || out.Shape[0] != 2 || out.Shape[1] != 1 || out.Shape[2] != 3 {
		t.Errorf("Expected shape [2 1 3], got %v", out.Shape)
	}

	if _, err := l.Forward(NewTensor(2, 5)); !errors.Is(err, ErrShape) {
		t.Errorf("Expected ErrShape, got %v", err)
	}
}

func TestFromRowsRagged(t *testing.T) {
	_, err := FromRows([][]int{{1, 2, 3}, {1, 2}})
	if !errors.Is(err, ErrShape) {
		t.Errorf("Expected ErrShape for ragged rows, got %v", err)
	}

	x := MustFromRows([][]int{{1, 3, 4}, {1, 5, 0}})
	if x.Batch() != 2 || x.Len() != 3 {
		t.Errorf("Expected [2 3], got %v", x.Shape)
	}
	col := x.Column(1)
	if col[0] != 3 || col[1] != 5 {
		t.Errorf("Expected column [3 5], got %v", col)
	}
	counts := x.CountNonPad(0)
	if counts[0] != 3 || counts[1] != 2 {
		t.Errorf("Expected non-pad counts [3 2], got %v", counts)
	}
}

func TestSliceCols(t *testing.T) {
	x := MustFromRows([][]int{{1, 2, 3, 4}, {5, 6, 7, 8}})
	s := x.SliceCols(1, 3)
	want := []int{2, 3, 6, 7}
	for i, v := range want {
		if s.Data[i] != v {
			t.Errorf("Expected %v, got %v", want, s.Data)
			break
		}
	}
}

func TestForEachRow(t *testing.T) {
	var calls atomic.Int64
	seen := make([]int, 100)
	err := ForEachRow(len(seen), 4, func(i int) error {
		calls.Add(1)
		seen[i] = i * 2
		return nil
	})
	if err != nil {
		t.Fatalf("Unexpected error: %v", err)
	}
	if calls.Load() != 100 {
		t.Errorf("Expected 100 calls, got %d", calls.Load())
	}
	for i, v := range seen {
		if v != i*2 {
			t.Errorf("Expected row %d to be written, got %d", i, v)
		}
	}

	boom := errors.New("boom")
	err = ForEachRow(10, 3, func(i int) error {
		if i == 7 {
			return boom
		}
		return nil
	})
	if !errors.Is(err, boom) {
		t.Errorf("Expected the row error, got %v", err)
	}
}

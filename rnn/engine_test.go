package rnn

import (
	"errors"
	"math/rand"
	"testing"

	"textgan-go/tensor"
)

func ones(shape ...int) *tensor.Tensor {
	x := tensor.NewTensor(shape...)
	for i := range x.Data {
		x.Data[i] = 1
	}
	return x
}

func TestStepRejectsMultipleTimesteps(t *testing.T) {
	e, err := NewEngine(CellLSTM, 1, 8, rand.New(rand.NewSource(1)))
	if err != nil {
		t.Fatalf("Unexpected error: %v", err)
	}

	_, _, err = e.Step(tensor.NewTensor(2, 3, 8), nil, 0, 0, nil)
	if !errors.Is(err, ErrSingleStep) {
		t.Errorf("Expected ErrSingleStep, got %v", err)
	}
	_, _, err = e.Step(tensor.NewTensor(2, 8), nil, 0, 0, nil)
	if !errors.Is(err, ErrSingleStep) {
		t.Errorf("Expected ErrSingleStep for rank-2 input, got %v", err)
	}
}

func TestStepShapes(t *testing.T) {
	for _, kind := range []CellKind{CellRNN, CellGRU, CellLSTM} {
		e, err := NewEngine(kind, 2, 6, rand.New(rand.NewSource(1)))
		if err != nil {
			t.Fatalf("%s: unexpected error: %v", kind, err)
		}
		out, st, err := e.Step(ones(3, 1, 6), nil, 0, 0, nil)
		if err != nil {
			t.Fatalf("%s: unexpected error: %v", kind, err)
		}
		if out.Shape[0] != 3 || out.Shape[1] != 1 || out.Shape[2] != 6 {
			t.Errorf("%s: expected output [3 1 6], got %v", kind, out.Shape)
		}
		if len(st.Layers) != 2 {
			t.Errorf("%s: expected 2 layer states, got %d", kind, len(st.Layers))
		}
		h := st.Hidden()
		if h.Shape[0] != 1 || h.Shape[1] != 3 || h.Shape[2] != 6 {
			t.Errorf("%s: expected hidden [1 3 6], got %v", kind, h.Shape)
		}
		if (st.Layers[0].C != nil) != (kind == CellLSTM) {
			t.Errorf("%s: cell state presence mismatch", kind)
		}
		if !tensor.Equal(out.Reshape(1, 3, 6), h) {
			t.Errorf("%s: expected the output to equal the top hidden state without dropout", kind)
		}
	}
}

func TestStepWorkersMatchSerial(t *testing.T) {
	for _, kind := range []CellKind{CellRNN, CellGRU, CellLSTM} {
		serial, err := NewEngine(kind, 2, 6, rand.New(rand.NewSource(7)))
		if err != nil {
			t.Fatalf("%s: unexpected error: %v", kind, err)
		}
		parallel, _ := NewEngine(kind, 2, 6, rand.New(rand.NewSource(7)))
		parallel.SetWorkers(4)

		inputs := rand.New(rand.NewSource(3))
		var sSt, pSt *State
		for step := 0; step < 3; step++ {
			x := tensor.NewTensor(5, 1, 6)
			for i := range x.Data {
				x.Data[i] = float32(inputs.NormFloat64())
			}
			sOut, sNext, err := serial.Step(x, sSt, step, 0, nil)
			if err != nil {
				t.Fatalf("%s: unexpected error: %v", kind, err)
			}
			pOut, pNext, err := parallel.Step(x, pSt, step, 0, nil)
			if err != nil {
				t.Fatalf("%s: unexpected error: %v", kind, err)
			}
			if !tensor.Equal(sOut, pOut) {
				t.Errorf("%s: step %d output differs with 4 workers", kind, step)
			}
			for l := range sNext.Layers {
				if !tensor.Equal(sNext.Layers[l].H, pNext.Layers[l].H) {
					t.Errorf("%s: step %d layer %d hidden differs with 4 workers", kind, step, l)
				}
				if kind == CellLSTM && !tensor.Equal(sNext.Layers[l].C, pNext.Layers[l].C) {
					t.Errorf("%s: step %d layer %d cell differs with 4 workers", kind, step, l)
				}
			}
			sSt, pSt = sNext, pNext
		}
	}
}

func TestDropoutMaskLockedAcrossTimesteps(t *testing.T) {
	e, _ := NewEngine(CellLSTM, 2, 16, rand.New(rand.NewSource(1)))
	e.SetTraining(true)

	masked := make(map[int]map[int]*tensor.Tensor)
	e.Trace = func(step, layer int, m *tensor.Tensor) {
		if masked[layer] == nil {
			masked[layer] = make(map[int]*tensor.Tensor)
		}
		masked[layer][step] = m.Clone()
	}

	rng := rand.New(rand.NewSource(9))
	var st *State
	var mask *DropoutMask
	for step := 0; step < 5; step++ {
		var err error
		_, st, err = e.Step(ones(4, 1, 16), st, step, 0.5, rng)
		if err != nil {
			t.Fatalf("Unexpected error at step %d: %v", step, err)
		}
		if step == 0 {
			mask = st.Mask
		} else if st.Mask != mask {
			t.Errorf("Expected the mask to be reused at step %d", step)
		}
	}

	// with an all-ones input the masked input is the mask itself
	first := masked[-1][0]
	for step := 1; step < 5; step++ {
		if !tensor.Equal(masked[-1][step], first) {
			t.Errorf("Expected the masked input at step %d to match step 0", step)
		}
	}
	if !tensor.Equal(first.Reshape(4, 1, 16), mask.Tensor()) {
		t.Errorf("Expected the traced activation to equal the stored mask")
	}

	// dropped units stay zero in every layer output
	for layer := 0; layer < 2; layer++ {
		for step := 0; step < 5; step++ {
			for i, v := range mask.Data {
				if v == 0 && masked[layer][step].Data[i] != 0 {
					t.Errorf("Expected unit %d of layer %d zeroed at step %d", i, layer, step)
				}
			}
		}
	}
}

func TestDropoutMaskResampledPerSequence(t *testing.T) {
	e, _ := NewEngine(CellGRU, 1, 32, rand.New(rand.NewSource(1)))
	e.SetTraining(true)
	rng := rand.New(rand.NewSource(5))

	_, a, err := e.Step(ones(2, 1, 32), nil, 0, 0.5, rng)
	if err != nil {
		t.Fatalf("Unexpected error: %v", err)
	}
	_, b, err := e.Step(ones(2, 1, 32), nil, 0, 0.5, rng)
	if err != nil {
		t.Fatalf("Unexpected error: %v", err)
	}
	if a.Mask == b.Mask {
		t.Errorf("Expected a fresh mask for a new sequence")
	}
}

func TestStepWithoutMaskFails(t *testing.T) {
	e, _ := NewEngine(CellLSTM, 1, 8, rand.New(rand.NewSource(1)))
	e.SetTraining(true)

	_, _, err := e.Step(ones(2, 1, 8), nil, 3, 0.5, rand.New(rand.NewSource(1)))
	if !errors.Is(err, ErrMaskMissing) {
		t.Errorf("Expected ErrMaskMissing, got %v", err)
	}
}

func TestEvalModeIsDeterministic(t *testing.T) {
	e, _ := NewEngine(CellLSTM, 2, 8, rand.New(rand.NewSource(1)))
	e.SetTraining(false)
	sampled := false
	e.Trace = func(int, int, *tensor.Tensor) { sampled = true }

	run := func() *tensor.Tensor {
		var st *State
		var out *tensor.Tensor
		for step := 0; step < 4; step++ {
			var err error
			out, st, err = e.Step(ones(2, 1, 8), st, step, 0.5, nil)
			if err != nil {
				t.Fatalf("Unexpected error: %v", err)
			}
			if st.Mask != nil {
				t.Fatalf("Expected no mask in evaluation mode")
			}
		}
		return out
	}

	if !tensor.Equal(run(), run()) {
		t.Errorf("Expected identical outputs in evaluation mode")
	}
	if sampled {
		t.Errorf("Expected no masked activations in evaluation mode")
	}
}

func TestSampleMask(t *testing.T) {
	m, err := SampleMask(10, 100, 0.25, rand.New(rand.NewSource(1)))
	if err != nil {
		t.Fatalf("Unexpected error: %v", err)
	}
	for _, v := range m.Data {
		if v != 0 && v != float32(1/0.75) {
			t.Fatalf("Expected mask values 0 or 1/(1-p), got %v", v)
		}
	}

	if _, err := SampleMask(1, 1, 1, rand.New(rand.NewSource(1))); err == nil {
		t.Errorf("Expected an error for p = 1")
	}
	if _, err := SampleMask(1, 1, 0.5, nil); err == nil {
		t.Errorf("Expected an error without a random source")
	}
}

func TestParseCellKind(t *testing.T) {
	k, err := ParseCellKind("gru")
	if err != nil || k != CellGRU {
		t.Errorf("Expected GRU, got %v (%v)", k, err)
	}
	if _, err := ParseCellKind("transformer"); err == nil {
		t.Errorf("Expected an error for an unknown cell")
	}

	var parsed CellKind
	text, _ := CellLSTM.MarshalText()
	if err := parsed.UnmarshalText(text); err != nil || parsed != CellLSTM {
		t.Errorf("Expected LSTM round trip, got %v (%v)", parsed, err)
	}
}

package evaluate

import (
	"math/rand"
	"testing"

	"gonum.org/v1/gonum/mat"

	"textgan-go/tensor"
)

func TestTrainProbeSeparable(t *testing.T) {
	rng := rand.New(rand.NewSource(1))
	n := 200
	x := mat.NewDense(n, 3, nil)
	y := make([]float64, n)
	for i := 0; i < n; i++ {
		label := float64(i % 2)
		y[i] = label
		x.Set(i, 0, 4*label-2+rng.NormFloat64()*0.1)
		x.Set(i, 1, rng.NormFloat64())
		x.Set(i, 2, rng.NormFloat64())
	}

	probe := TrainProbe(x, y, 200, 0.5)
	if acc := probe.Accuracy(x, y); acc < 0.99 {
		t.Errorf("Expected accuracy >= 0.99 on separable data, got %v", acc)
	}
}

func TestRunProbesTooFewRows(t *testing.T) {
	p := NewPipeline(newTestGenerator(t), nil, nil, WithMaxT(4), WithBreakpoint(2))
	a, b := newSnapshots(), newSnapshots()
	h := tensor.NewTensor(2, 4)
	a.add(0, h, h)
	b.add(0, h, h)

	if _, err := p.RunProbes(a, b); err == nil {
		t.Errorf("Expected an error for 4 rows")
	}
}

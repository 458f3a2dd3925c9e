package textgan

import (
	"math"
	"testing"

	"textgan-go/tensor"
)

func TestMaskedNLLSkipsPadding(t *testing.T) {
	logits := tensor.NewTensor(1, 3, 4) // uniform
	targets := tensor.MustFromRows([][]int{{2, 3, 0}})

	mean, perRow, err := MaskedNLL(logits, targets, 0)
	if err != nil {
		t.Fatalf("Unexpected error: %v", err)
	}
	if math.Abs(mean-math.Log(4)) > 1e-6 {
		t.Errorf("Expected mean log(4), got %v", mean)
	}
	if math.Abs(perRow[0]-2*math.Log(4)) > 1e-6 {
		t.Errorf("Expected row sum 2*log(4), got %v", perRow[0])
	}

	if _, _, err := MaskedNLL(logits, tensor.MustFromRows([][]int{{1, 2}}), 0); err == nil {
		t.Errorf("Expected a shape error")
	}
}

func TestDiscriminatorLoss(t *testing.T) {
	zero := tensor.NewTensor(1, 2)
	if got := DiscriminatorLoss(zero, zero); math.Abs(got-math.Log(2)) > 1e-6 {
		t.Errorf("Expected log(2) for zero logits, got %v", got)
	}
}

func TestReturnsAndAdvantages(t *testing.T) {
	rewards, _ := tensor.FromData([]float32{1, 1, 1}, 1, 3)
	returns := Returns(rewards, 0.5)

	want := []float32{1.75, 1.5, 1}
	for i, v := range want {
		if returns.Data[i] != v {
			t.Errorf("Expected return[%d] = %v, got %v", i, v, returns.Data[i])
		}
	}

	baseline, _ := tensor.FromData([]float32{0.75, 0.5, 0}, 1, 3)
	adv, err := Advantages(returns, baseline)
	if err != nil {
		t.Fatalf("Unexpected error: %v", err)
	}
	for i, v := range adv.Data {
		if v != 1 {
			t.Errorf("Expected advantage 1 at %d, got %v", i, v)
		}
	}

	r := Rewards(tensor.NewTensor(1, 1))
	if math.Abs(float64(r.Data[0])-math.Log(0.5)) > 1e-6 {
		t.Errorf("Expected log sigmoid(0) = log(0.5), got %v", r.Data[0])
	}
}

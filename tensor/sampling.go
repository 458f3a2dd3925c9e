package tensor

import (
	"math"
	"math/rand"
	"sort"

	"gonum.org/v1/gonum/floats"
)

// SampleCategorical draws one index from the categorical distribution
// parameterised by logits. There is no greedy path: the draw is always
// stochastic and fully determined by rng.
func SampleCategorical(logits []float32, rng *rand.Rand) int {
	return sampleMultinomial(probabilities(logits), rng)
}

// SampleRows draws one index per row of a [rows, vocab] logit tensor.
// Rows are sampled in order so a seeded rng reproduces the same ids.
func SampleRows(logits *Tensor, rng *rand.Rand) []int {
	rows := logits.Rows()
	ids := make([]int, rows)
	for i := 0; i < rows; i++ {
		ids[i] = SampleCategorical(logits.Row(i), rng)
	}
	return ids
}

// LogProb returns log p(id) under softmax(logits)
func LogProb(logits []float32, id int) float64 {
	l := toFloat64(logits)
	return l[id] - floats.LogSumExp(l)
}

// Entropy returns the entropy in nats of softmax(logits)
func Entropy(logits []float32) float64 {
	l := toFloat64(logits)
	lse := floats.LogSumExp(l)
	h := 0.0
	for _, v := range l {
		logp := v - lse
		if p := math.Exp(logp); p > 0 {
			h -= p * logp
		}
	}
	return h
}

// MeanEntropy averages Entropy over the rows of a [rows, vocab] tensor
func MeanEntropy(logits *Tensor) float64 {
	rows := logits.Rows()
	if rows == 0 {
		return 0
	}
	sum := 0.0
	for i := 0; i < rows; i++ {
		sum += Entropy(logits.Row(i))
	}
	return sum / float64(rows)
}

// LogSoftmax returns log probabilities along the last dimension
func LogSoftmax(t *Tensor) *Tensor {
	result := NewTensor(t.Shape...)
	for r := 0; r < t.Rows(); r++ {
		row := toFloat64(t.Row(r))
		lse := floats.LogSumExp(row)
		out := result.Row(r)
		for j, v := range row {
			out[j] = float32(v - lse)
		}
	}
	return result
}

// Softmax returns probabilities along the last dimension
func Softmax(t *Tensor) *Tensor {
	result := LogSoftmax(t)
	for i, v := range result.Data {
		result.Data[i] = float32(math.Exp(float64(v)))
	}
	return result
}

func toFloat64(v []float32) []float64 {
	out := make([]float64, len(v))
	for i, x := range v {
		out[i] = float64(x)
	}
	return out
}

// probabilities normalises logits with log-sum-exp
func probabilities(logits []float32) []float64 {
	p := toFloat64(logits)
	lse := floats.LogSumExp(p)
	for i, v := range p {
		p[i] = math.Exp(v - lse)
	}
	return p
}

// sampleMultinomial inverts the cumulative distribution at a uniform draw
func sampleMultinomial(probs []float64, rng *rand.Rand) int {
	cum := floats.CumSum(make([]float64, len(probs)), probs)
	r := rng.Float64() * cum[len(cum)-1]
	idx := sort.SearchFloat64s(cum, r)
	// first index with cum[i] > r, so zero-probability ids are never drawn
	for idx < len(cum)-1 && cum[idx] <= r {
		idx++
	}
	return idx
}

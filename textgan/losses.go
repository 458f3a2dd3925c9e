package textgan

import (
	"fmt"
	"math"

	"textgan-go/tensor"
)

// MaskedNLL is the teacher-forced negative log-likelihood of targets under
// logits [batch, L, vocab]. Positions whose target is pad are ignored. It
// returns the mean over all counted tokens and the per-row token sums.
func MaskedNLL(logits *tensor.Tensor, targets *tensor.IntTensor, pad int) (float64, []float64, error) {
	if logits.Rank() != 3 || targets.Rank() != 2 ||
		logits.Shape[0] != targets.Batch() || logits.Shape[1] != targets.Len() {
		return 0, nil, fmt.Errorf("%w: logits %v vs targets %v", tensor.ErrShape, logits.Shape, targets.Shape)
	}
	batch, steps, vocab := logits.Shape[0], logits.Shape[1], logits.Shape[2]
	perRow := make([]float64, batch)
	total, count := 0.0, 0
	for b := 0; b < batch; b++ {
		for t := 0; t < steps; t++ {
			id := targets.At(b, t)
			if id == pad {
				continue
			}
			off := (b*steps + t) * vocab
			nll := -tensor.LogProb(logits.Data[off:off+vocab], id)
			perRow[b] += nll
			total += nll
			count++
		}
	}
	if count == 0 {
		return 0, perRow, nil
	}
	return total / float64(count), perRow, nil
}

// DiscriminatorLoss is the binary cross-entropy of per-step logits, real
// sequences labelled 1 and generated ones 0
func DiscriminatorLoss(real, fake *tensor.Tensor) float64 {
	loss := 0.0
	for _, v := range real.Data {
		loss += softplus(-float64(v))
	}
	for _, v := range fake.Data {
		loss += softplus(float64(v))
	}
	n := len(real.Data) + len(fake.Data)
	if n == 0 {
		return 0
	}
	return loss / float64(n)
}

// Rewards turns discriminator logits [batch, L] into per-step rewards
// log sigmoid(logit)
func Rewards(discLogits *tensor.Tensor) *tensor.Tensor {
	r := tensor.NewTensor(discLogits.Shape...)
	for i, v := range discLogits.Data {
		r.Data[i] = float32(-softplus(-float64(v)))
	}
	return r
}

// Returns accumulates discounted future rewards along each row of [batch, L]
func Returns(rewards *tensor.Tensor, gamma float64) *tensor.Tensor {
	batch, steps := rewards.Shape[0], rewards.Shape[1]
	out := tensor.NewTensor(batch, steps)
	for b := 0; b < batch; b++ {
		acc := 0.0
		for t := steps - 1; t >= 0; t-- {
			acc = float64(rewards.Data[b*steps+t]) + gamma*acc
			out.Data[b*steps+t] = float32(acc)
		}
	}
	return out
}

// Advantages subtracts the baseline from the returns
func Advantages(returns, baseline *tensor.Tensor) (*tensor.Tensor, error) {
	if len(returns.Data) != len(baseline.Data) {
		return nil, fmt.Errorf("%w: returns %v vs baseline %v", tensor.ErrShape, returns.Shape, baseline.Shape)
	}
	return tensor.Add(returns, tensor.Scale(baseline, -1)), nil
}

func softplus(x float64) float64 {
	if x > 30 {
		return x
	}
	return math.Log1p(math.Exp(x))
}

package textgan

import (
	"math/rand"

	"textgan-go/rnn"
	"textgan-go/tensor"
)

// Oracle is a frozen reference language model with the generator's shape.
// It owns private copies of its weights, always runs in evaluation mode and
// never scales its logits, so its likelihoods stay calibrated.
type Oracle struct {
	core        recurrentCore
	outputLayer *tensor.Linear
	maxSeqLen   int
}

// NewOracle freezes a copy of g
func NewOracle(g *Generator) *Oracle {
	core := g.recurrentCore.clone()
	core.engine.SetTraining(false)
	return &Oracle{
		core:        core,
		outputLayer: g.outputLayer.Clone(),
		maxSeqLen:   g.config.MaxSeqLen,
	}
}

// VocabSize returns the output vocabulary size
func (o *Oracle) VocabSize() int {
	return o.core.vocab()
}

// Embed looks up one token per row
func (o *Oracle) Embed(ids []int) (*tensor.Tensor, error) {
	return o.core.embed(ids)
}

// Step advances the oracle. Dropout never applies, so rng is unused.
func (o *Oracle) Step(x *tensor.Tensor, st *rnn.State, t int, _ *rand.Rand) (*tensor.Tensor, *rnn.State, error) {
	return o.core.engine.Step(x, st, t, 0, nil)
}

// ProjectToLogits returns the oracle's logits
func (o *Oracle) ProjectToLogits(h *tensor.Tensor) (*tensor.Tensor, error) {
	logits, err := o.outputLayer.Forward(h)
	if err != nil {
		return nil, err
	}
	return logits.Reshape(logits.Rows(), o.core.vocab()), nil
}

// Next feeds ids at timestep t and returns the distribution over the next token
func (o *Oracle) Next(ids []int, st *rnn.State, t int) (*tensor.Tensor, *rnn.State, error) {
	x, err := o.Embed(ids)
	if err != nil {
		return nil, nil, err
	}
	h, next, err := o.Step(x, st, t, nil)
	if err != nil {
		return nil, nil, err
	}
	logits, err := o.ProjectToLogits(h)
	if err != nil {
		return nil, nil, err
	}
	return logits, next, nil
}

// Forward mirrors Generator.Forward without alpha scaling. Free-running
// calls still sample stochastically from rng.
func (o *Oracle) Forward(x *tensor.IntTensor, init *rnn.State, rng *rand.Rand) (*Output, error) {
	return forward(o, x, init, rng, o.maxSeqLen, 0)
}

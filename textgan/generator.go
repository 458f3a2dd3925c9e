package textgan

import (
	"fmt"
	"math/rand"

	"textgan-go/rnn"
	"textgan-go/tensor"
)

// Generator is the trainable autoregressive sequence model
type Generator struct {
	recurrentCore
	outputLayer *tensor.Linear // [hidden, vocab]
	config      *Config
	training    bool
}

// NewGenerator creates a randomly initialised generator
func NewGenerator(config *Config, rng *rand.Rand) (*Generator, error) {
	core, err := newRecurrentCore(config, config.HiddenDimGen, config.NumLayersGen, rng)
	if err != nil {
		return nil, fmt.Errorf("failed to build generator: %w", err)
	}
	return &Generator{
		recurrentCore: core,
		outputLayer:   tensor.NewLinear(config.HiddenDimGen, config.VocabSize, 0.1, rng),
		config:        config,
	}, nil
}

// Config returns the generator configuration
func (g *Generator) Config() *Config {
	return g.config
}

// SetTraining switches dropout and the alpha coefficient between modes
func (g *Generator) SetTraining(training bool) {
	g.training = training
	g.engine.SetTraining(training)
}

// Training reports the current mode
func (g *Generator) Training() bool {
	return g.training
}

// Engine exposes the recurrent stack
func (g *Generator) Engine() *rnn.Engine {
	return g.engine
}

// VocabSize returns the output vocabulary size
func (g *Generator) VocabSize() int {
	return g.vocab()
}

// Embed looks up one token per row
func (g *Generator) Embed(ids []int) (*tensor.Tensor, error) {
	return g.embed(ids)
}

// Step advances the recurrent stack with the generator dropout probability
func (g *Generator) Step(x *tensor.Tensor, st *rnn.State, t int, rng *rand.Rand) (*tensor.Tensor, *rnn.State, error) {
	return g.engine.Step(x, st, t, g.config.VarDropoutGen, rng)
}

// ProjectToLogits returns the raw, unscaled logits
func (g *Generator) ProjectToLogits(h *tensor.Tensor) (*tensor.Tensor, error) {
	logits, err := g.outputLayer.Forward(h)
	if err != nil {
		return nil, err
	}
	return logits.Reshape(logits.Rows(), g.vocab()), nil
}

// Alpha returns the logit coefficient of the current mode
func (g *Generator) Alpha() float64 {
	return g.config.Alpha(g.training)
}

// Forward runs the generator over x [batch, seq_len].
//
// With seq_len == 1 the single column is the start token and the call
// free-runs for MaxSeqLen steps, feeding back sampled ids. Otherwise every
// column is fed in turn (teacher forcing). The logits fed to the sampler are
// multiplied by Alpha(); sampling is always stochastic.
func (g *Generator) Forward(x *tensor.IntTensor, init *rnn.State, rng *rand.Rand) (*Output, error) {
	return forward(g, x, init, rng, g.config.MaxSeqLen, g.Alpha())
}

// Params returns every weight by checkpoint name
func (g *Generator) Params() map[string]*tensor.Tensor {
	p := coreParams(&g.recurrentCore)
	p["output_layer.weight"] = g.outputLayer.Weight
	p["output_layer.bias"] = g.outputLayer.Bias
	return p
}

func coreParams(c *recurrentCore) map[string]*tensor.Tensor {
	p := map[string]*tensor.Tensor{"embedding.weight": c.embedding}
	for l, cell := range c.engine.Cells() {
		for name, t := range cell.Params() {
			p[fmt.Sprintf("rnns.%d.%s", l, name)] = t
		}
	}
	return p
}

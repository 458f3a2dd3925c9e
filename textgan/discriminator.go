package textgan

import (
	"fmt"
	"math"
	"math/rand"

	"textgan-go/rnn"
	"textgan-go/tensor"
)

// InitialBaseline is the baseline before any token has been seen: the
// log-likelihood of a fair coin.
var InitialBaseline = float32(math.Log(0.5))

// Discriminator scores every prefix of a sequence and estimates a
// policy-gradient baseline alongside
type Discriminator struct {
	recurrentCore
	outputLayer *tensor.Linear // [hidden, 1]
	critic      *tensor.Linear // [hidden, 1]
	config      *Config
	training    bool
}

// NewDiscriminator creates a randomly initialised discriminator
func NewDiscriminator(config *Config, rng *rand.Rand) (*Discriminator, error) {
	core, err := newRecurrentCore(config, config.HiddenDimDisc, config.NumLayersDisc, rng)
	if err != nil {
		return nil, fmt.Errorf("failed to build discriminator: %w", err)
	}
	return &Discriminator{
		recurrentCore: core,
		outputLayer:   tensor.NewLinear(config.HiddenDimDisc, 1, 0.1, rng),
		critic:        tensor.NewLinear(config.HiddenDimDisc, 1, 0.1, rng),
		config:        config,
	}, nil
}

// SetTraining switches dropout between modes
func (d *Discriminator) SetTraining(training bool) {
	d.training = training
	d.engine.SetTraining(training)
}

// Training reports the current mode
func (d *Discriminator) Training() bool {
	return d.training
}

// Engine exposes the recurrent stack
func (d *Discriminator) Engine() *rnn.Engine {
	return d.engine
}

// Forward scores x [batch, L], where column 0 is the first real token.
//
// It returns per-timestep logits [batch, L] and baselines [batch, L] with
// baselines[:, i] estimated before token i was read: column 0 is always
// InitialBaseline and the critic value of the last step is dropped. The
// critic reads a detached copy of the recurrent outputs.
func (d *Discriminator) Forward(x *tensor.IntTensor, rng *rand.Rand) (*tensor.Tensor, *tensor.Tensor, error) {
	if x.Rank() != 2 {
		return nil, nil, fmt.Errorf("%w: got shape %v", ErrRank, x.Shape)
	}
	if x.Len() == 0 {
		return nil, nil, fmt.Errorf("%w: got shape %v", ErrEmpty, x.Shape)
	}
	batch, seqLen := x.Batch(), x.Len()
	hidden := d.engine.HiddenDim()

	outputs := tensor.NewTensor(batch, seqLen, hidden)
	var state *rnn.State
	for t := 0; t < seqLen; t++ {
		emb, err := d.embed(x.Column(t))
		if err != nil {
			return nil, nil, fmt.Errorf("timestep %d: %w", t, err)
		}
		out, next, err := d.engine.Step(emb, state, t, d.config.VarDropoutDisc, rng)
		if err != nil {
			return nil, nil, fmt.Errorf("timestep %d: %w", t, err)
		}
		state = next
		outputs.SetStep(t, out)
	}

	disc, err := d.outputLayer.Forward(outputs)
	if err != nil {
		return nil, nil, err
	}
	critic, err := d.critic.Forward(outputs.Detach())
	if err != nil {
		return nil, nil, err
	}

	logits := disc.Reshape(batch, seqLen)
	baseline := tensor.NewTensor(batch, seqLen)
	for b := 0; b < batch; b++ {
		baseline.Data[b*seqLen] = InitialBaseline
		for t := 1; t < seqLen; t++ {
			baseline.Data[b*seqLen+t] = critic.Data[b*seqLen+t-1]
		}
	}
	return logits, baseline, nil
}

// Params returns every weight by checkpoint name
func (d *Discriminator) Params() map[string]*tensor.Tensor {
	p := coreParams(&d.recurrentCore)
	p["output_layer.weight"] = d.outputLayer.Weight
	p["output_layer.bias"] = d.outputLayer.Bias
	p["critic.weight"] = d.critic.Weight
	p["critic.bias"] = d.critic.Bias
	return p
}

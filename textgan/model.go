package textgan

import (
	"errors"
	"fmt"
	"math/rand"

	"textgan-go/rnn"
	"textgan-go/tensor"
)

// ErrRank is returned when a token batch is not [batch, seq_len]
var ErrRank = errors.New("textgan: input must be rank 2 (batch x seq_len)")

// ErrEmpty is returned when a token batch has no columns
var ErrEmpty = errors.New("textgan: input has no timesteps")

// LanguageModel is the stepping capability shared by the trainable
// generator and the frozen oracle
type LanguageModel interface {
	VocabSize() int
	// Embed looks up one token per row, returning [batch, 1, hidden]
	Embed(ids []int) (*tensor.Tensor, error)
	// Step advances the recurrent stack by one timestep
	Step(x *tensor.Tensor, st *rnn.State, t int, rng *rand.Rand) (*tensor.Tensor, *rnn.State, error)
	// ProjectToLogits maps a step output [batch, 1, hidden] to raw logits [batch, vocab]
	ProjectToLogits(h *tensor.Tensor) (*tensor.Tensor, error)
}

// Scorer consumes one token per row and returns the next-token logits.
// Oracles used during evaluation implement it.
type Scorer interface {
	VocabSize() int
	Next(ids []int, st *rnn.State, t int) (*tensor.Tensor, *rnn.State, error)
}

// Output is the result of a generator forward pass
type Output struct {
	// Logits holds one [batch, vocab] entry per timestep: [batch, steps, vocab]
	Logits *tensor.Tensor
	// Words holds the sampled ids, [batch, max_seq_len] when free-running
	// and [batch, 0] when teacher-forced
	Words *tensor.IntTensor
	State *rnn.State
}

// Steps returns the length of the logit trajectory
func (o *Output) Steps() int {
	return o.Logits.Shape[1]
}

// recurrentCore is the embedding + recurrent stack common to every model
type recurrentCore struct {
	embedding *tensor.Tensor // [vocab, hidden]
	engine    *rnn.Engine
}

func newRecurrentCore(cfg *Config, hidden, layers int, rng *rand.Rand) (recurrentCore, error) {
	engine, err := rnn.NewEngine(cfg.Cell, layers, hidden, rng)
	if err != nil {
		return recurrentCore{}, err
	}
	engine.SetWorkers(cfg.Workers)
	emb := tensor.NewTensor(cfg.VocabSize, hidden)
	tensor.Uniform(emb, 0.1, rng)
	return recurrentCore{embedding: emb, engine: engine}, nil
}

func (c *recurrentCore) vocab() int {
	return c.embedding.Shape[0]
}

func (c *recurrentCore) embed(ids []int) (*tensor.Tensor, error) {
	vocab, hidden := c.embedding.Shape[0], c.embedding.Shape[1]
	out := tensor.NewTensor(len(ids), 1, hidden)
	for b, id := range ids {
		if id < 0 || id >= vocab {
			return nil, fmt.Errorf("token id %d outside vocabulary of %d", id, vocab)
		}
		copy(out.Data[b*hidden:(b+1)*hidden], c.embedding.Data[id*hidden:(id+1)*hidden])
	}
	return out, nil
}

func (c *recurrentCore) clone() recurrentCore {
	return recurrentCore{embedding: c.embedding.Clone(), engine: c.engine.Clone()}
}

// forward runs the autoregressive loop shared by the generator and oracle.
// scale == 0 leaves the logits untouched.
func forward(m LanguageModel, x *tensor.IntTensor, init *rnn.State, rng *rand.Rand, maxLen int, scale float64) (*Output, error) {
	if x.Rank() != 2 {
		return nil, fmt.Errorf("%w: got shape %v", ErrRank, x.Shape)
	}
	if x.Len() == 0 {
		return nil, fmt.Errorf("%w: got shape %v", ErrEmpty, x.Shape)
	}
	batch := x.Batch()
	teacherForce := x.Len() != 1
	seqLen := maxLen
	if teacherForce {
		seqLen = x.Len()
	} else if rng == nil {
		return nil, fmt.Errorf("free-running generation requires a random source")
	}

	out := &Output{
		Logits: tensor.NewTensor(batch, seqLen, m.VocabSize()),
		Words:  tensor.NewIntTensor(batch, 0),
	}
	if !teacherForce {
		out.Words = tensor.NewIntTensor(batch, seqLen)
	}

	state := init
	inputIdx := x.Column(0)
	for t := 0; t < seqLen; t++ {
		// teacher forcing overwrites whatever was sampled
		if teacherForce {
			inputIdx = x.Column(t)
		}

		input, err := m.Embed(inputIdx)
		if err != nil {
			return nil, fmt.Errorf("timestep %d: %w", t, err)
		}
		h, next, err := m.Step(input, state, t, rng)
		if err != nil {
			return nil, fmt.Errorf("timestep %d: %w", t, err)
		}
		state = next

		dist, err := m.ProjectToLogits(h)
		if err != nil {
			return nil, fmt.Errorf("timestep %d: %w", t, err)
		}
		if scale != 0 {
			dist = tensor.Scale(dist, float32(scale))
		}

		if !teacherForce {
			inputIdx = tensor.SampleRows(dist, rng)
			out.Words.SetColumn(t, inputIdx)
		}

		// entry t is aligned with the target, one step ahead of the input
		out.Logits.SetStep(t, dist)
	}

	out.State = state
	return out, nil
}

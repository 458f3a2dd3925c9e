package evaluate

import (
	"errors"
	"fmt"

	"textgan-go/rnn"
	"textgan-go/tensor"
	"textgan-go/textgan"
)

// ErrNoOracle is returned by operations that cannot run without an oracle
var ErrNoOracle = errors.New("evaluate: no oracle configured")

// oracleTracker advances an oracle in lock-step with the generator on the
// tokens the generator actually consumes
type oracleTracker struct {
	scorer  textgan.Scorer
	state   *rnn.State
	logits  *tensor.Tensor // prediction for the next token, nil before timestep 0
	workers int
}

func newOracleTracker(scorer textgan.Scorer, workers int) *oracleTracker {
	return &oracleTracker{scorer: scorer, workers: workers}
}

// consume scores ids against the current prediction and then feeds them to
// the oracle. At timestep 0 there is no context and the returned slice is nil.
func (o *oracleTracker) consume(ids []int, t int) ([]float64, error) {
	var nll []float64
	if t > 0 {
		if o.logits == nil {
			return nil, fmt.Errorf("oracle has no prediction at timestep %d", t)
		}
		nll = make([]float64, len(ids))
		vocab := o.scorer.VocabSize()
		err := tensor.ForEachRow(len(ids), o.workers, func(b int) error {
			if ids[b] < 0 || ids[b] >= vocab {
				return fmt.Errorf("token id %d outside oracle vocabulary of %d", ids[b], vocab)
			}
			nll[b] = -tensor.LogProb(o.logits.Row(b), ids[b])
			return nil
		})
		if err != nil {
			return nil, err
		}
	}

	logits, next, err := o.scorer.Next(ids, o.state, t)
	if err != nil {
		return nil, fmt.Errorf("oracle step %d: %w", t, err)
	}
	o.logits, o.state = logits, next
	return nll, nil
}

// meanNonPad averages values over rows whose token is not pad
func meanNonPad(values []float64, ids []int, pad int) (float64, bool) {
	sum, n := 0.0, 0
	for i, v := range values {
		if ids[i] != pad {
			sum += v
			n++
		}
	}
	if n == 0 {
		return 0, false
	}
	return sum / float64(n), true
}

// ScoreSequences runs the oracle over x [batch, L] and returns one Sequence
// per row. Column 0 is context; columns 1..L-1 each get an NLL, so every
// trace has L-1 entries.
func ScoreSequences(scorer textgan.Scorer, x *tensor.IntTensor, workers int) ([]*Sequence, error) {
	if scorer == nil {
		return nil, ErrNoOracle
	}
	if x.Rank() != 2 {
		return nil, fmt.Errorf("%w: got shape %v", textgan.ErrRank, x.Shape)
	}

	seqs := make([]*Sequence, x.Batch())
	for i := range seqs {
		seqs[i] = NewSequence(i, 1)
	}

	tracker := newOracleTracker(scorer, workers)
	for t := 0; t < x.Len(); t++ {
		ids := x.Column(t)
		for b, s := range seqs {
			s.AppendToken(ids[b])
		}
		nll, err := tracker.consume(ids, t)
		if err != nil {
			return nil, err
		}
		for b, s := range seqs {
			if nll != nil {
				if err := s.AppendNLL(nll[b]); err != nil {
					return nil, err
				}
			}
		}
	}
	return seqs, nil
}

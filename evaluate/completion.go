package evaluate

import (
	"fmt"

	"textgan-go/tensor"
	"textgan-go/textgan"
)

// SentenceCompletion teacher-forces the first Breakpoint tokens of each row
// of batch, free-runs the remaining MaxT-Breakpoint steps and scores only the
// free-run suffix under the oracle.
func (p *Pipeline) SentenceCompletion(batch *tensor.IntTensor) (*ModeResult, error) {
	if p.opts.Oracle == nil {
		return nil, ErrNoOracle
	}
	if batch.Rank() != 2 {
		return nil, fmt.Errorf("%w: got shape %v", textgan.ErrRank, batch.Shape)
	}
	bp := p.opts.Breakpoint
	if batch.Len() < bp {
		return nil, fmt.Errorf("completion: prefix of %d tokens needs at least %d columns, got %d", bp, bp, batch.Len())
	}

	prev := p.gen.Training()
	p.gen.SetTraining(false)
	defer p.gen.SetTraining(prev)

	res, err := p.run(run{
		mode:   ModeFreeRunning,
		tag:    fmt.Sprintf("completion_b%d", bp),
		batch:  batch,
		forced: bp,
		prompt: bp,
		steps:  p.opts.MaxT,
	})
	if err != nil {
		return nil, fmt.Errorf("completion: %w", err)
	}
	if mean, ok := res.Ranking.Mean(); ok {
		p.record(fmt.Sprintf("eval/completion_lm_score_b%d", bp), mean, p.opts.Epoch)
	}
	return res, nil
}

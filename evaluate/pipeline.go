package evaluate

import (
	"fmt"
	"math"
	"math/rand"
	"os/exec"

	"github.com/cespare/xxhash/v2"
	"github.com/schollz/progressbar/v3"

	"textgan-go/metrics"
	"textgan-go/rnn"
	"textgan-go/tensor"
	"textgan-go/textgan"
	"textgan-go/vocab"
)

// ModeResult is everything one pass over a batch produced
type ModeResult struct {
	Mode      Mode
	Sequences []*Sequence
	// Generated holds the sampled ids, nil for teacher-forced modes
	Generated *tensor.IntTensor
	Snapshots *Snapshots
	// Entropy and OracleNLL are per timestep; OracleNLL is empty without an
	// oracle and NaN where every row consumed padding
	Entropy   []float64
	OracleNLL []float64
	// Ranking is nil without an oracle
	Ranking *Ranking
	// GenNLL is the teacher-forced MLE loss, zero in free-running mode
	GenNLL float64
}

// Report collects the results of Run
type Report struct {
	Modes      map[Mode]*ModeResult
	Probes     []ProbeResult
	Completion *ModeResult
	// ReverseLM is the started reverse-LM process, nil when skipped
	ReverseLM *exec.Cmd
}

// Pipeline evaluates a generator in every operating mode
type Pipeline struct {
	gen      *textgan.Generator
	recorder metrics.Recorder
	codec    vocab.Codec
	opts     *Options
}

// NewPipeline creates a pipeline. codec may be nil, in which case sentences
// are printed as token ids.
func NewPipeline(gen *textgan.Generator, recorder metrics.Recorder, codec vocab.Codec, opts ...Option) *Pipeline {
	if recorder == nil {
		recorder = metrics.Discard{}
	}
	return &Pipeline{
		gen:      gen,
		recorder: recorder,
		codec:    codec,
		opts:     NewOptions(opts...),
	}
}

// Options returns the pipeline options
func (p *Pipeline) Options() *Options {
	return p.opts
}

// run describes one pass: the first forced inputs come from batch, every
// later input is the sample drawn at the previous timestep
type run struct {
	mode    Mode
	tag     string
	batch   *tensor.IntTensor
	forced  int
	prompt  int // tokens consumed before oracle scoring starts
	steps   int
	perStep bool
}

// Run evaluates train and test in teacher-forced mode, free-runs from the
// start tokens of test, then runs the probes, sentence completion and the
// reverse-LM handoff where they are enabled. The generator is switched to
// evaluation mode for the duration of the call.
func (p *Pipeline) Run(train, test *tensor.IntTensor) (*Report, error) {
	prev := p.gen.Training()
	p.gen.SetTraining(false)
	defer p.gen.SetTraining(prev)
	if d := p.opts.Discriminator; d != nil {
		prevDisc := d.Training()
		d.SetTraining(false)
		defer d.SetTraining(prevDisc)
	}

	report := &Report{Modes: make(map[Mode]*ModeResult)}
	for _, mode := range Modes {
		batch := test
		if mode == ModeTeacherForcedTrain {
			batch = train
		}
		res, err := p.RunMode(mode, batch)
		if err != nil {
			return nil, fmt.Errorf("%s: %w", mode, err)
		}
		report.Modes[mode] = res
	}

	if p.opts.RunProbes {
		tf, fr := report.Modes[ModeTeacherForcedTest], report.Modes[ModeFreeRunning]
		if err := CheckAligned(tf.Snapshots, fr.Snapshots); err != nil {
			return nil, err
		}
		probes, err := p.RunProbes(tf.Snapshots, fr.Snapshots)
		if err != nil {
			return nil, err
		}
		report.Probes = probes
	}

	if p.opts.Oracle != nil {
		completion, err := p.SentenceCompletion(test)
		if err != nil {
			return nil, err
		}
		report.Completion = completion
	}

	cmd, err := p.HandOffReverseLM(report.Modes[ModeFreeRunning].Generated)
	if err != nil {
		return nil, err
	}
	report.ReverseLM = cmd
	return report, nil
}

// RunMode runs the generator over batch in one mode for up to MaxT steps.
// Teacher-forced modes consume batch [batch, L] column by column; free
// running only reads column 0 as the start token.
func (p *Pipeline) RunMode(mode Mode, batch *tensor.IntTensor) (*ModeResult, error) {
	if batch.Rank() != 2 || batch.Len() < 1 {
		return nil, fmt.Errorf("%w: got shape %v", textgan.ErrRank, batch.Shape)
	}
	r := run{mode: mode, tag: mode.String(), batch: batch, prompt: 1, perStep: true}
	if mode.TeacherForced() {
		r.steps = min(p.opts.MaxT, batch.Len())
		r.forced = r.steps + 1
	} else {
		r.steps = p.opts.MaxT
		r.forced = 1
	}

	res, err := p.run(r)
	if err != nil {
		return nil, err
	}

	if !mode.TeacherForced() {
		p.printSamples(res.Generated)
		if res.Ranking != nil {
			if mean, ok := res.Ranking.Mean(); ok {
				p.record("eval/lm_score", mean, p.opts.Epoch)
			}
		}
		if err := p.scoreWithDiscriminator(res.Generated); err != nil {
			return nil, err
		}
	}
	return res, nil
}

func (p *Pipeline) run(r run) (*ModeResult, error) {
	cfg := p.gen.Config()
	batchSize := r.batch.Batch()
	rng := rand.New(rand.NewSource(p.seedFor(r.tag)))

	res := &ModeResult{
		Mode:      r.mode,
		Sequences: make([]*Sequence, batchSize),
		Snapshots: newSnapshots(),
	}
	for i := range res.Sequences {
		res.Sequences[i] = NewSequence(i, r.prompt)
	}
	if r.forced <= r.steps {
		res.Generated = tensor.NewIntTensor(batchSize, r.steps-r.forced+1)
	}

	var tracker *oracleTracker
	if p.opts.Oracle != nil {
		tracker = newOracleTracker(p.opts.Oracle, p.opts.Workers)
	}

	// trajectory[t] predicts batch column t+1
	var trajectory *tensor.Tensor
	nTargets := 0
	if r.mode.TeacherForced() {
		nTargets = min(r.steps, r.batch.Len()-1)
		trajectory = tensor.NewTensor(batchSize, nTargets, p.gen.VocabSize())
	}

	var bar *progressbar.ProgressBar
	if p.opts.ShowProgress {
		bar = progressbar.NewOptions(r.steps,
			progressbar.OptionSetDescription(fmt.Sprintf("Evaluating %s", r.tag)),
			progressbar.OptionSetWriter(p.opts.Out),
			progressbar.OptionSetWidth(40),
			progressbar.OptionShowCount(),
			progressbar.OptionShowIts(),
			progressbar.OptionSetTheme(progressbar.Theme{
				Saucer:        "=",
				SaucerHead:    ">",
				SaucerPadding: " ",
				BarStart:      "[",
				BarEnd:        "]",
			}),
		)
	}

	var state *rnn.State
	ids := r.batch.Column(0)
	for t := 0; t < r.steps; t++ {
		for b, s := range res.Sequences {
			s.AppendToken(ids[b])
		}

		emb, err := p.gen.Embed(ids)
		if err != nil {
			return nil, fmt.Errorf("timestep %d: %w", t, err)
		}
		h, next, err := p.gen.Step(emb, state, t, rng)
		if err != nil {
			return nil, fmt.Errorf("timestep %d: %w", t, err)
		}
		state = next
		logits, err := p.gen.ProjectToLogits(h)
		if err != nil {
			return nil, fmt.Errorf("timestep %d: %w", t, err)
		}

		if tracker != nil {
			nll, err := tracker.consume(ids, t)
			if err != nil {
				return nil, err
			}
			if nll != nil && t >= r.prompt {
				for b, s := range res.Sequences {
					if err := s.AppendNLL(nll[b]); err != nil {
						return nil, err
					}
				}
				mean, ok := meanNonPad(nll, ids, cfg.PadID)
				if !ok {
					mean = math.NaN()
				}
				res.OracleNLL = append(res.OracleNLL, mean)
				if r.perStep && ok && (t+1)%p.opts.OracleNLLLogEvery == 0 {
					p.recorder.Record(fmt.Sprintf("eval/%s_oracle_nll", r.tag), mean, t)
				}
			}
		}

		entropy := tensor.MeanEntropy(logits)
		res.Entropy = append(res.Entropy, entropy)
		if r.perStep {
			p.recorder.Record(fmt.Sprintf("eval/%s_entropy", r.tag), entropy, t)
		}

		if (t+1)%p.opts.SnapshotEvery == 0 {
			res.Snapshots.add(t, state.Hidden(), emb)
		}

		if t < nTargets {
			trajectory.SetStep(t, logits)
		}

		var sampled []int
		if t+1 >= r.forced {
			sampled = tensor.SampleRows(tensor.Scale(logits, float32(p.gen.Alpha())), rng)
			res.Generated.SetColumn(t-r.forced+1, sampled)
		}
		if t+1 < r.steps {
			if t+1 < r.forced {
				ids = r.batch.Column(t + 1)
			} else {
				ids = sampled
			}
		}

		if bar != nil {
			bar.Add(1)
		}
	}
	if bar != nil {
		bar.Finish()
		fmt.Fprintln(p.opts.Out)
	}

	if nTargets > 0 {
		mean, _, err := textgan.MaskedNLL(trajectory, r.batch.SliceCols(1, nTargets+1), cfg.PadID)
		if err != nil {
			return nil, err
		}
		res.GenNLL = mean
		p.record(fmt.Sprintf("eval/%s_gen_nll", r.tag), mean, p.opts.Epoch)
	}

	if tracker != nil {
		ranking, err := Rank(res.Sequences, cfg.PadID)
		if err != nil {
			return nil, err
		}
		res.Ranking = ranking
		p.printRanking(r.tag, res)
	}
	return res, nil
}

// seedFor derives a reproducible per-pass seed so that each mode draws from
// its own stream regardless of the order passes run in
func (p *Pipeline) seedFor(tag string) int64 {
	return int64(xxhash.Sum64String(tag) ^ uint64(p.opts.Seed))
}

// record prints and records a run-level scalar
func (p *Pipeline) record(name string, value float64, step int) {
	fmt.Fprintf(p.opts.Out, "%s: %.4f\n", name, value)
	p.recorder.Record(name, value, step)
}

func (p *Pipeline) decode(ids []int) string {
	if p.codec == nil {
		return fmt.Sprint(ids)
	}
	return p.codec.Decode(ids)
}

func (p *Pipeline) printRanking(tag string, res *ModeResult) {
	out := p.opts.Out
	for _, idx := range res.Ranking.Excluded {
		fmt.Fprintf(out, "⚠ %s: sequence %d has no scored tokens, excluded from ranking\n", tag, idx)
	}
	if len(res.Ranking.Ranked) == 0 {
		return
	}
	fmt.Fprintf(out, "\n%s: most likely sentences under the oracle\n", tag)
	for _, s := range res.Ranking.Lowest(p.opts.TopN) {
		fmt.Fprintf(out, "  %.4f  %s\n", s.AverageNLL, p.decode(res.Sequences[s.Index].TokenIDs))
	}
	fmt.Fprintf(out, "%s: least likely sentences under the oracle\n", tag)
	for _, s := range res.Ranking.Highest(p.opts.TopN) {
		fmt.Fprintf(out, "  %.4f  %s\n", s.AverageNLL, p.decode(res.Sequences[s.Index].TokenIDs))
	}
}

// printSamples prints the last TopN generated sentences
func (p *Pipeline) printSamples(generated *tensor.IntTensor) {
	n := generated.Batch()
	start := max(0, n-p.opts.TopN)
	fmt.Fprintf(p.opts.Out, "\nsamples:\n")
	for i := start; i < n; i++ {
		fmt.Fprintf(p.opts.Out, "  %s\n", p.decode(generated.Row(i)))
	}
}

// scoreWithDiscriminator records the mean probability the discriminator
// assigns to generated prefixes being real
func (p *Pipeline) scoreWithDiscriminator(generated *tensor.IntTensor) error {
	d := p.opts.Discriminator
	if d == nil || generated.Len() == 0 {
		return nil
	}
	logits, _, err := d.Forward(generated, rand.New(rand.NewSource(p.seedFor("discriminator"))))
	if err != nil {
		return fmt.Errorf("discriminator: %w", err)
	}
	probs := tensor.Sigmoid(logits)
	sum := 0.0
	for _, v := range probs.Data {
		sum += float64(v)
	}
	p.record("eval/disc_fake_prob", sum/float64(len(probs.Data)), p.opts.Epoch)
	return nil
}

package evaluate

import (
	"fmt"
	"math"
	"math/rand"

	"gonum.org/v1/gonum/mat"

	"textgan-go/tensor"
)

// Probe is a logistic-regression classifier over snapshot rows
type Probe struct {
	W *mat.VecDense
	B float64
}

// ProbeResult is the accuracy of the probe trained at one snapshot timestep
type ProbeResult struct {
	Step     int
	ValidAcc float64
	TestAcc  float64
}

// TrainProbe fits a probe to x [n, d] and labels y in {0, 1} with full-batch
// gradient descent
func TrainProbe(x *mat.Dense, y []float64, epochs int, lr float64) *Probe {
	n, d := x.Dims()
	p := &Probe{W: mat.NewVecDense(d, nil)}
	if n == 0 {
		return p
	}
	residual := mat.NewVecDense(n, nil)
	grad := mat.NewVecDense(d, nil)
	for e := 0; e < epochs; e++ {
		prob := p.probabilities(x)
		biasGrad := 0.0
		for i := 0; i < n; i++ {
			r := prob.AtVec(i) - y[i]
			residual.SetVec(i, r)
			biasGrad += r
		}
		grad.MulVec(x.T(), residual)
		p.W.AddScaledVec(p.W, -lr/float64(n), grad)
		p.B -= lr * biasGrad / float64(n)
	}
	return p
}

func (p *Probe) probabilities(x *mat.Dense) *mat.VecDense {
	n, _ := x.Dims()
	z := mat.NewVecDense(n, nil)
	z.MulVec(x, p.W)
	for i := 0; i < n; i++ {
		z.SetVec(i, 1/(1+math.Exp(-(z.AtVec(i)+p.B))))
	}
	return z
}

// Accuracy returns the fraction of rows classified correctly at threshold 0.5
func (p *Probe) Accuracy(x *mat.Dense, y []float64) float64 {
	n, _ := x.Dims()
	if n == 0 {
		return 0
	}
	prob := p.probabilities(x)
	correct := 0
	for i := 0; i < n; i++ {
		label := 0.0
		if prob.AtVec(i) >= 0.5 {
			label = 1
		}
		if label == y[i] {
			correct++
		}
	}
	return float64(correct) / float64(n)
}

// RunProbes trains one probe per snapshot timestep to tell teacher-forced
// rows (label 1) from free-running rows (label 0). Rows are shuffled and
// split 80/10/10 into train, validation and test.
func (p *Pipeline) RunProbes(teacherForced, freeRunning *Snapshots) ([]ProbeResult, error) {
	if err := CheckAligned(teacherForced, freeRunning); err != nil {
		return nil, err
	}
	rng := rand.New(rand.NewSource(p.seedFor("probe")))
	kind := "hidden"
	if p.opts.ClassifyEmbeddings {
		kind = "embedding"
	}

	results := make([]ProbeResult, 0, len(teacherForced.Steps))
	for _, t := range teacherForced.Steps {
		x, y, err := probeDataset(teacherForced.Get(t, p.opts.ClassifyEmbeddings),
			freeRunning.Get(t, p.opts.ClassifyEmbeddings), rng)
		if err != nil {
			return nil, fmt.Errorf("probe at timestep %d: %w", t, err)
		}
		n, _ := x.Dims()
		trainEnd, validEnd := int(0.8*float64(n)), int(0.9*float64(n))
		if trainEnd == 0 || validEnd == trainEnd || validEnd == n {
			return nil, fmt.Errorf("probe at timestep %d: %d rows are too few to split 80/10/10", t, n)
		}

		probe := TrainProbe(rowSlice(x, 0, trainEnd), y[:trainEnd], p.opts.ProbeEpochs, p.opts.ProbeLR)
		res := ProbeResult{
			Step:     t,
			ValidAcc: probe.Accuracy(rowSlice(x, trainEnd, validEnd), y[trainEnd:validEnd]),
			TestAcc:  probe.Accuracy(rowSlice(x, validEnd, n), y[validEnd:]),
		}
		p.recorder.Record("eval/probe_valid_acc", res.ValidAcc, t)
		p.recorder.Record("eval/probe_test_acc", res.TestAcc, t)
		results = append(results, res)
	}
	if len(results) > 0 {
		fmt.Fprintf(p.opts.Out, "✓ Trained %d %s probes\n", len(results), kind)
	}
	return results, nil
}

// probeDataset stacks pos [n, d] over neg [m, d] and shuffles the rows
func probeDataset(pos, neg *tensor.Tensor, rng *rand.Rand) (*mat.Dense, []float64, error) {
	if pos == nil || neg == nil {
		return nil, nil, ErrSnapshotMismatch
	}
	d := pos.Shape[len(pos.Shape)-1]
	if neg.Shape[len(neg.Shape)-1] != d {
		return nil, nil, fmt.Errorf("%w: feature widths %d and %d", tensor.ErrShape, d, neg.Shape[len(neg.Shape)-1])
	}
	np, nn := pos.Rows(), neg.Rows()
	n := np + nn
	x := mat.NewDense(n, d, nil)
	y := make([]float64, n)
	for dst, src := range rng.Perm(n) {
		var row []float32
		if src < np {
			row = pos.Row(src)
			y[dst] = 1
		} else {
			row = neg.Row(src - np)
		}
		for j, v := range row {
			x.Set(dst, j, float64(v))
		}
	}
	return x, y, nil
}

func rowSlice(x *mat.Dense, start, end int) *mat.Dense {
	_, d := x.Dims()
	return x.Slice(start, end, 0, d).(*mat.Dense)
}

package evaluate

import (
	"errors"
	"math"
	"math/rand"
	"testing"

	"textgan-go/rnn"
	"textgan-go/tensor"
	"textgan-go/textgan"
)

// uniformScorer predicts the same flat distribution at every step
type uniformScorer struct {
	vocab int
	calls int
}

func (u *uniformScorer) VocabSize() int {
	return u.vocab
}

func (u *uniformScorer) Next(ids []int, st *rnn.State, t int) (*tensor.Tensor, *rnn.State, error) {
	u.calls++
	return tensor.NewTensor(len(ids), u.vocab), st, nil
}

func newTestOracle(t *testing.T) *textgan.Oracle {
	t.Helper()
	cfg := textgan.NewConfig(10,
		textgan.WithGenerator(8, 1),
		textgan.WithDiscriminator(8, 1),
		textgan.WithSampling(textgan.WithMaxSeqLen(5)),
	)
	g, err := textgan.NewGenerator(cfg, rand.New(rand.NewSource(11)))
	if err != nil {
		t.Fatalf("Unexpected error: %v", err)
	}
	return textgan.NewOracle(g)
}

func TestScoreSequencesUniform(t *testing.T) {
	scorer := &uniformScorer{vocab: 4}
	x := tensor.MustFromRows([][]int{{1, 2, 3}})

	seqs, err := ScoreSequences(scorer, x, 1)
	if err != nil {
		t.Fatalf("Unexpected error: %v", err)
	}
	if len(seqs[0].NLL) != 2 {
		t.Fatalf("Expected an NLL trace of length 2, got %d", len(seqs[0].NLL))
	}
	avg, _ := seqs[0].AverageNLL(0)
	if math.Abs(avg-math.Log(4)) > 1e-9 {
		t.Errorf("Expected average log(4), got %v", avg)
	}
	if scorer.calls != 3 {
		t.Errorf("Expected the oracle advanced on all 3 tokens, got %d", scorer.calls)
	}
}

func TestScoreSequencesPaddedRowAverage(t *testing.T) {
	oracle := newTestOracle(t)
	x := tensor.MustFromRows([][]int{{3, 4, 5, 0, 0}})

	seqs, err := ScoreSequences(oracle, x, 1)
	if err != nil {
		t.Fatalf("Unexpected error: %v", err)
	}
	s := seqs[0]
	if len(s.NLL) != 4 {
		t.Fatalf("Expected an NLL trace of length 4, got %d", len(s.NLL))
	}
	if s.TrueLength(0) != 2 {
		t.Errorf("Expected true length 2, got %d", s.TrueLength(0))
	}

	sum := 0.0
	for _, v := range s.NLL {
		sum += v
	}
	got, err := s.AverageNLL(0)
	if err != nil {
		t.Fatalf("Unexpected error: %v", err)
	}
	if want := sum / 2; math.Abs(got-want) > 1e-9 {
		t.Errorf("Expected sum(trace)/2 = %v, got %v", want, got)
	}
}

func TestScoreSequencesMatchesOracle(t *testing.T) {
	oracle := newTestOracle(t)
	x := tensor.MustFromRows([][]int{{3, 4, 5}})

	seqs, err := ScoreSequences(oracle, x, 2)
	if err != nil {
		t.Fatalf("Unexpected error: %v", err)
	}
	trace := seqs[0].NLL
	if len(trace) != 2 {
		t.Fatalf("Expected an NLL trace of length 2, got %d", len(trace))
	}

	// reference: step the oracle by hand
	logits0, st, err := oracle.Next([]int{3}, nil, 0)
	if err != nil {
		t.Fatalf("Unexpected error: %v", err)
	}
	logits1, _, err := oracle.Next([]int{4}, st, 1)
	if err != nil {
		t.Fatalf("Unexpected error: %v", err)
	}
	nll1 := -tensor.LogProb(logits0.Row(0), 4)
	nll2 := -tensor.LogProb(logits1.Row(0), 5)
	want := (nll1 + nll2) / 2

	got, err := seqs[0].AverageNLL(0)
	if err != nil {
		t.Fatalf("Unexpected error: %v", err)
	}
	if math.Abs(got-want) > 1e-9 {
		t.Errorf("Expected average NLL %v, got %v", want, got)
	}
	if math.Abs(trace[0]-nll1) > 1e-9 || math.Abs(trace[1]-nll2) > 1e-9 {
		t.Errorf("Expected trace [%v %v], got %v", nll1, nll2, trace)
	}
}

func TestScoreSequencesWithoutOracle(t *testing.T) {
	_, err := ScoreSequences(nil, tensor.MustFromRows([][]int{{1, 2}}), 1)
	if !errors.Is(err, ErrNoOracle) {
		t.Errorf("Expected ErrNoOracle, got %v", err)
	}
}

func TestScoreSequencesRejectsOutOfVocab(t *testing.T) {
	_, err := ScoreSequences(&uniformScorer{vocab: 4}, tensor.MustFromRows([][]int{{1, 9}}), 1)
	if err == nil {
		t.Errorf("Expected an error for a token outside the oracle vocabulary")
	}
}

func TestCheckAligned(t *testing.T) {
	a, b := newSnapshots(), newSnapshots()
	h := tensor.NewTensor(1, 2, 3)
	e := tensor.NewTensor(2, 1, 3)
	a.add(1, h, e)
	a.add(3, h, e)
	b.add(1, h, e)

	if err := CheckAligned(a, b); !errors.Is(err, ErrSnapshotMismatch) {
		t.Errorf("Expected ErrSnapshotMismatch, got %v", err)
	}

	b.add(3, h, e)
	if err := CheckAligned(a, b); err != nil {
		t.Errorf("Expected aligned snapshots, got %v", err)
	}
	if s := a.Get(1, false); s.Shape[0] != 2 || s.Shape[1] != 3 {
		t.Errorf("Expected snapshot [2 3], got %v", s.Shape)
	}
}

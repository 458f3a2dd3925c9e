package evaluate

import (
	"errors"
	"math"
	"testing"
)

func TestSequenceCreation(t *testing.T) {
	seq := NewSequence(3, 1)

	if seq.Len() != 0 {
		t.Errorf("Expected length 0, got %d", seq.Len())
	}
	if seq.Index != 3 {
		t.Errorf("Expected index 3, got %d", seq.Index)
	}
	if seq.NumCompletionTokens() != 0 {
		t.Errorf("Expected 0 completion tokens, got %d", seq.NumCompletionTokens())
	}
}

func TestSequenceAppend(t *testing.T) {
	seq := NewSequence(0, 1)
	seq.AppendToken(1)

	if err := seq.AppendNLL(0.5); err == nil {
		t.Errorf("Expected an error for an NLL without a completion token")
	}

	seq.AppendToken(4)
	seq.AppendToken(5)
	if err := seq.AppendNLL(1.0); err != nil {
		t.Fatalf("Unexpected error: %v", err)
	}
	if err := seq.AppendNLL(2.0); err != nil {
		t.Fatalf("Unexpected error: %v", err)
	}

	if seq.NumCompletionTokens() != 2 {
		t.Errorf("Expected 2 completion tokens, got %d", seq.NumCompletionTokens())
	}
	if p := seq.PromptTokenIDs(); len(p) != 1 || p[0] != 1 {
		t.Errorf("Expected prompt [1], got %v", p)
	}
	avg, err := seq.AverageNLL(0)
	if err != nil {
		t.Fatalf("Unexpected error: %v", err)
	}
	if avg != 1.5 {
		t.Errorf("Expected average 1.5, got %v", avg)
	}
}

func TestSequenceTrueLengthExcludesPadding(t *testing.T) {
	seq := NewSequence(0, 1)
	for _, id := range []int{1, 4, 0, 0} {
		seq.AppendToken(id)
	}
	for _, nll := range []float64{2, 7, 9} {
		if err := seq.AppendNLL(nll); err != nil {
			t.Fatalf("Unexpected error: %v", err)
		}
	}

	if seq.TrueLength(0) != 1 {
		t.Errorf("Expected true length 1, got %d", seq.TrueLength(0))
	}
	if seq.TotalNLL() != 18 {
		t.Errorf("Expected total NLL 18, got %v", seq.TotalNLL())
	}
	avg, err := seq.AverageNLL(0)
	if err != nil {
		t.Fatalf("Unexpected error: %v", err)
	}
	if avg != 18 {
		t.Errorf("Expected average 18 over one real token, got %v", avg)
	}
}

func TestAllPaddingSequenceIsExcluded(t *testing.T) {
	seq := NewSequence(0, 1)
	for _, id := range []int{1, 0, 0} {
		seq.AppendToken(id)
	}
	seq.AppendNLL(3)
	seq.AppendNLL(4)

	avg, err := seq.AverageNLL(0)
	if !errors.Is(err, ErrEmptySequence) {
		t.Errorf("Expected ErrEmptySequence, got %v", err)
	}
	if math.IsNaN(avg) || math.IsInf(avg, 0) {
		t.Errorf("Expected a finite value, got %v", avg)
	}

	other := NewSequence(1, 1)
	other.AppendToken(1)
	other.AppendToken(5)
	other.AppendNLL(1.25)

	ranking, err := Rank([]*Sequence{seq, other}, 0)
	if err != nil {
		t.Fatalf("Unexpected error: %v", err)
	}
	if len(ranking.Excluded) != 1 || ranking.Excluded[0] != 0 {
		t.Errorf("Expected sequence 0 excluded, got %v", ranking.Excluded)
	}
	if len(ranking.Ranked) != 1 || ranking.Ranked[0].Index != 1 {
		t.Errorf("Expected only sequence 1 ranked, got %+v", ranking.Ranked)
	}
}

func TestRankOrdersByAverageNLL(t *testing.T) {
	var seqs []*Sequence
	for i, nll := range []float64{3, 1, 2} {
		s := NewSequence(i, 1)
		s.AppendToken(1)
		s.AppendToken(4)
		s.AppendNLL(nll)
		seqs = append(seqs, s)
	}

	ranking, err := Rank(seqs, 0)
	if err != nil {
		t.Fatalf("Unexpected error: %v", err)
	}

	wantOrder := []int{1, 2, 0}
	for i, idx := range wantOrder {
		if ranking.Ranked[i].Index != idx {
			t.Errorf("Expected rank %d to be sequence %d, got %d", i, idx, ranking.Ranked[i].Index)
		}
	}
	if low := ranking.Lowest(1); low[0].AverageNLL != 1 {
		t.Errorf("Expected lowest NLL 1, got %v", low[0].AverageNLL)
	}
	if high := ranking.Highest(5); len(high) != 3 || high[0].AverageNLL != 3 {
		t.Errorf("Expected 3 entries led by NLL 3, got %+v", high)
	}
	if mean, ok := ranking.Mean(); !ok || mean != 2 {
		t.Errorf("Expected mean 2, got %v (%v)", mean, ok)
	}
}

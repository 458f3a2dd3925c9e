package evaluate

import (
	"errors"

	"gonum.org/v1/gonum/floats"
	"gonum.org/v1/gonum/stat"
)

// Score is the average oracle NLL of one sequence
type Score struct {
	Index      int
	AverageNLL float64
}

// Ranking orders sequences from most to least likely under the oracle.
// Sequences without scored tokens are listed in Excluded, never ranked.
type Ranking struct {
	Ranked   []Score
	Excluded []int
}

// Rank computes every sequence's average NLL and sorts ascending
func Rank(seqs []*Sequence, pad int) (*Ranking, error) {
	r := &Ranking{}
	avgs := make([]float64, 0, len(seqs))
	idx := make([]int, 0, len(seqs))
	for _, s := range seqs {
		avg, err := s.AverageNLL(pad)
		if errors.Is(err, ErrEmptySequence) {
			r.Excluded = append(r.Excluded, s.Index)
			continue
		}
		if err != nil {
			return nil, err
		}
		avgs = append(avgs, avg)
		idx = append(idx, s.Index)
	}

	order := make([]int, len(avgs))
	floats.Argsort(avgs, order)
	r.Ranked = make([]Score, len(avgs))
	for i, o := range order {
		r.Ranked[i] = Score{Index: idx[o], AverageNLL: avgs[i]}
	}
	return r, nil
}

// Lowest returns up to n most likely sequences, best first
func (r *Ranking) Lowest(n int) []Score {
	if n > len(r.Ranked) {
		n = len(r.Ranked)
	}
	return r.Ranked[:n]
}

// Highest returns up to n least likely sequences, worst first
func (r *Ranking) Highest(n int) []Score {
	if n > len(r.Ranked) {
		n = len(r.Ranked)
	}
	out := make([]Score, n)
	for i := 0; i < n; i++ {
		out[i] = r.Ranked[len(r.Ranked)-1-i]
	}
	return out
}

// Mean averages the ranked sequences' scores. ok is false when nothing was ranked.
func (r *Ranking) Mean() (float64, bool) {
	if len(r.Ranked) == 0 {
		return 0, false
	}
	v := make([]float64, len(r.Ranked))
	for i, s := range r.Ranked {
		v[i] = s.AverageNLL
	}
	return stat.Mean(v, nil), true
}

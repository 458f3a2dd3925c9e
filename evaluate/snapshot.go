package evaluate

import (
	"errors"
	"fmt"
	"sort"

	"textgan-go/tensor"
)

// ErrSnapshotMismatch is returned when two runs did not snapshot the same timesteps
var ErrSnapshotMismatch = errors.New("evaluate: snapshot timesteps differ between modes")

// Snapshots holds hidden states and input embeddings captured every few
// timesteps, each [batch, hidden]
type Snapshots struct {
	Steps      []int
	Hidden     map[int]*tensor.Tensor
	Embeddings map[int]*tensor.Tensor
}

func newSnapshots() *Snapshots {
	return &Snapshots{
		Hidden:     make(map[int]*tensor.Tensor),
		Embeddings: make(map[int]*tensor.Tensor),
	}
}

func (s *Snapshots) add(t int, hidden, embedding *tensor.Tensor) {
	batch := hidden.Size() / hidden.Shape[len(hidden.Shape)-1]
	s.Steps = append(s.Steps, t)
	s.Hidden[t] = hidden.Clone().Reshape(batch, hidden.Shape[len(hidden.Shape)-1])
	s.Embeddings[t] = embedding.Clone().Reshape(batch, embedding.Shape[len(embedding.Shape)-1])
}

// Get returns the hidden or embedding snapshot at t
func (s *Snapshots) Get(t int, embeddings bool) *tensor.Tensor {
	if embeddings {
		return s.Embeddings[t]
	}
	return s.Hidden[t]
}

// CheckAligned fails unless a and b hold snapshots for exactly the same timesteps
func CheckAligned(a, b *Snapshots) error {
	as := append([]int(nil), a.Steps...)
	bs := append([]int(nil), b.Steps...)
	sort.Ints(as)
	sort.Ints(bs)
	if len(as) != len(bs) {
		return fmt.Errorf("%w: %v vs %v", ErrSnapshotMismatch, as, bs)
	}
	for i := range as {
		if as[i] != bs[i] {
			return fmt.Errorf("%w: %v vs %v", ErrSnapshotMismatch, as, bs)
		}
	}
	return nil
}

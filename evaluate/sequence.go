package evaluate

import (
	"errors"
	"fmt"
)

// ErrEmptySequence is returned when a sequence has no scored, non-pad token
// to average over
var ErrEmptySequence = errors.New("evaluate: sequence has no scored tokens")

// Sequence records the tokens one batch row consumed during a run and the
// oracle NLL of each scored token. The first NumPromptTokens tokens are
// context only; every later token is scored.
type Sequence struct {
	Index           int
	TokenIDs        []int
	NumPromptTokens int
	// NLL is aligned with CompletionTokenIDs
	NLL []float64
}

// NewSequence creates an empty sequence for batch row index
func NewSequence(index, numPromptTokens int) *Sequence {
	return &Sequence{
		Index:           index,
		TokenIDs:        make([]int, 0),
		NumPromptTokens: numPromptTokens,
		NLL:             make([]float64, 0),
	}
}

// Len returns the number of consumed tokens
func (s *Sequence) Len() int {
	return len(s.TokenIDs)
}

// NumCompletionTokens returns the number of scored positions
func (s *Sequence) NumCompletionTokens() int {
	if len(s.TokenIDs) < s.NumPromptTokens {
		return 0
	}
	return len(s.TokenIDs) - s.NumPromptTokens
}

// PromptTokenIDs returns the context tokens
func (s *Sequence) PromptTokenIDs() []int {
	if len(s.TokenIDs) < s.NumPromptTokens {
		return s.TokenIDs
	}
	return s.TokenIDs[:s.NumPromptTokens]
}

// CompletionTokenIDs returns the scored tokens
func (s *Sequence) CompletionTokenIDs() []int {
	if len(s.TokenIDs) < s.NumPromptTokens {
		return nil
	}
	return s.TokenIDs[s.NumPromptTokens:]
}

// AppendToken appends a consumed token
func (s *Sequence) AppendToken(tokenID int) {
	s.TokenIDs = append(s.TokenIDs, tokenID)
}

// AppendNLL records the NLL of the most recent completion token
func (s *Sequence) AppendNLL(nll float64) error {
	if len(s.NLL) >= s.NumCompletionTokens() {
		return fmt.Errorf("sequence %d: NLL for position %d has no completion token", s.Index, len(s.NLL))
	}
	s.NLL = append(s.NLL, nll)
	return nil
}

// TrueLength counts the scored tokens that are not padding
func (s *Sequence) TrueLength(pad int) int {
	n := 0
	for i, id := range s.CompletionTokenIDs() {
		if i < len(s.NLL) && id != pad {
			n++
		}
	}
	return n
}

// TotalNLL sums the whole NLL trace, pad positions included
func (s *Sequence) TotalNLL() float64 {
	total := 0.0
	for _, v := range s.NLL {
		total += v
	}
	return total
}

// AverageNLL divides TotalNLL by the pad-excluded TrueLength. A sequence
// with no scored non-pad token returns ErrEmptySequence instead of a NaN or
// infinity.
func (s *Sequence) AverageNLL(pad int) (float64, error) {
	n := s.TrueLength(pad)
	if n == 0 {
		return 0, fmt.Errorf("sequence %d: %w", s.Index, ErrEmptySequence)
	}
	return s.TotalNLL() / float64(n), nil
}

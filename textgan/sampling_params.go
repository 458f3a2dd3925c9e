package textgan

import "fmt"

// SamplingParams holds the sampling controls of a generator
type SamplingParams struct {
	// AlphaTrain and AlphaTest multiply the output logits before sampling,
	// selected by the training flag of the model.
	AlphaTrain float64 `json:"alpha_train"`
	AlphaTest  float64 `json:"alpha_test"`
	// MaxSeqLen is the number of tokens produced by a free-running call
	MaxSeqLen int `json:"max_seq_len"`
}

// SamplingOption is a functional option for SamplingParams
type SamplingOption func(*SamplingParams)

// NewSamplingParams creates a new SamplingParams with default values
func NewSamplingParams(opts ...SamplingOption) *SamplingParams {
	sp := &SamplingParams{
		AlphaTrain: 1.0,
		AlphaTest:  1.0,
		MaxSeqLen:  50,
	}

	for _, opt := range opts {
		opt(sp)
	}

	if err := sp.validate(); err != nil {
		panic(err)
	}

	return sp
}

// validate checks if the sampling parameters are valid
func (sp *SamplingParams) validate() error {
	if sp.AlphaTrain <= 1e-10 || sp.AlphaTest <= 1e-10 {
		return fmt.Errorf("alpha must be positive (got train=%v test=%v)", sp.AlphaTrain, sp.AlphaTest)
	}
	if sp.MaxSeqLen < 1 {
		return fmt.Errorf("max_seq_len must be >= 1")
	}
	return nil
}

// Alpha returns the logit coefficient for the given mode
func (sp *SamplingParams) Alpha(training bool) float64 {
	if training {
		return sp.AlphaTrain
	}
	return sp.AlphaTest
}

// WithAlphaTrain sets the training-time logit coefficient
func WithAlphaTrain(a float64) SamplingOption {
	return func(sp *SamplingParams) {
		sp.AlphaTrain = a
	}
}

// WithAlphaTest sets the evaluation-time logit coefficient
func WithAlphaTest(a float64) SamplingOption {
	return func(sp *SamplingParams) {
		sp.AlphaTest = a
	}
}

// WithMaxSeqLen sets the free-running generation length
func WithMaxSeqLen(n int) SamplingOption {
	return func(sp *SamplingParams) {
		sp.MaxSeqLen = n
	}
}

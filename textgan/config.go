package textgan

import (
	"fmt"

	"textgan-go/rnn"
)

// Config holds the hyperparameters shared by the generator, the
// discriminator and any oracle built from a generator
type Config struct {
	VocabSize int          `json:"vocab_size"`
	PadID     int          `json:"pad_id"`
	SOSID     int          `json:"sos_id"`
	Cell      rnn.CellKind `json:"rnn"`

	HiddenDimGen   int     `json:"hidden_dim_gen"`
	NumLayersGen   int     `json:"num_layers_gen"`
	VarDropoutGen  float64 `json:"var_dropout_p_gen"`
	HiddenDimDisc  int     `json:"hidden_dim_disc"`
	NumLayersDisc  int     `json:"num_layers_disc"`
	VarDropoutDisc float64 `json:"var_dropout_p_disc"`

	SamplingParams

	// Workers bounds the goroutines used across batch rows within a timestep
	Workers int `json:"-"`
}

// ConfigOption is a functional option for Config
type ConfigOption func(*Config)

// NewConfig creates a new Config with default values
func NewConfig(vocabSize int, opts ...ConfigOption) *Config {
	c := &Config{
		VocabSize:      vocabSize,
		PadID:          0,
		SOSID:          1,
		Cell:           rnn.CellLSTM,
		HiddenDimGen:   256,
		NumLayersGen:   1,
		VarDropoutGen:  0.5,
		HiddenDimDisc:  256,
		NumLayersDisc:  1,
		VarDropoutDisc: 0.5,
		SamplingParams: *NewSamplingParams(),
		Workers:        1,
	}

	for _, opt := range opts {
		opt(c)
	}

	if err := c.Validate(); err != nil {
		panic(err)
	}

	return c
}

// Validate checks if the configuration is valid
func (c *Config) Validate() error {
	if c.VocabSize < 2 {
		return fmt.Errorf("vocab_size must be >= 2, got %d", c.VocabSize)
	}
	if c.PadID < 0 || c.PadID >= c.VocabSize || c.SOSID < 0 || c.SOSID >= c.VocabSize {
		return fmt.Errorf("pad_id and sos_id must be inside the vocabulary")
	}
	if c.PadID == c.SOSID {
		return fmt.Errorf("pad_id and sos_id must differ")
	}
	if _, err := c.Cell.MarshalText(); err != nil {
		return err
	}
	if c.HiddenDimGen < 1 || c.HiddenDimDisc < 1 {
		return fmt.Errorf("hidden dims must be >= 1")
	}
	if c.NumLayersGen < 1 || c.NumLayersDisc < 1 {
		return fmt.Errorf("layer counts must be >= 1")
	}
	if c.VarDropoutGen < 0 || c.VarDropoutGen >= 1 || c.VarDropoutDisc < 0 || c.VarDropoutDisc >= 1 {
		return fmt.Errorf("dropout probabilities must be in [0, 1)")
	}
	return c.SamplingParams.validate()
}

// WithPadID sets the padding token id
func WithPadID(id int) ConfigOption {
	return func(c *Config) {
		c.PadID = id
	}
}

// WithSOSID sets the start-of-sequence token id
func WithSOSID(id int) ConfigOption {
	return func(c *Config) {
		c.SOSID = id
	}
}

// WithCell sets the recurrent cell kind
func WithCell(kind rnn.CellKind) ConfigOption {
	return func(c *Config) {
		c.Cell = kind
	}
}

// WithGenerator sets the generator hidden width and depth
func WithGenerator(hidden, layers int) ConfigOption {
	return func(c *Config) {
		c.HiddenDimGen = hidden
		c.NumLayersGen = layers
	}
}

// WithDiscriminator sets the discriminator hidden width and depth
func WithDiscriminator(hidden, layers int) ConfigOption {
	return func(c *Config) {
		c.HiddenDimDisc = hidden
		c.NumLayersDisc = layers
	}
}

// WithVarDropout sets the variational dropout probabilities
func WithVarDropout(gen, disc float64) ConfigOption {
	return func(c *Config) {
		c.VarDropoutGen = gen
		c.VarDropoutDisc = disc
	}
}

// WithSampling applies sampling options on top of the defaults
func WithSampling(opts ...SamplingOption) ConfigOption {
	return func(c *Config) {
		for _, opt := range opts {
			opt(&c.SamplingParams)
		}
	}
}

// WithWorkers sets the per-timestep row parallelism
func WithWorkers(n int) ConfigOption {
	return func(c *Config) {
		c.Workers = n
	}
}

package evaluate

import (
	"fmt"
	"io"
	"os"

	"textgan-go/textgan"
)

// Options controls an evaluation run
type Options struct {
	MaxT              int // timesteps per mode
	SnapshotEvery     int // hidden-state snapshot stride
	OracleNLLLogEvery int // per-timestep oracle NLL logging stride
	Breakpoint        int // teacher-forced prefix length for sentence completion
	Seed              int64
	Epoch             int // step index for per-run metrics
	Workers           int
	ShowProgress      bool
	TopN              int // sentences printed per extreme

	RunProbes          bool
	ClassifyEmbeddings bool
	ProbeEpochs        int
	ProbeLR            float64

	// Oracle and Discriminator are optional; oracle-dependent metrics are
	// skipped when Oracle is nil
	Oracle        textgan.Scorer
	Discriminator *textgan.Discriminator

	// RLMCommand is started, not awaited, after samples are saved. The
	// placeholders {base_dir}, {data_dir}, {log_dir} and {tag} are expanded.
	RLMCommand []string
	ModelDir   string
	DataDir    string
	LogDir     string

	Out io.Writer
}

// Option is a functional option for Options
type Option func(*Options)

// NewOptions creates Options with default values
func NewOptions(opts ...Option) *Options {
	o := &Options{
		MaxT:              20,
		SnapshotEvery:     1,
		OracleNLLLogEvery: 1,
		Breakpoint:        5,
		Seed:              2,
		Workers:           1,
		TopN:              10,
		ProbeEpochs:       200,
		ProbeLR:           0.5,
		Out:               os.Stdout,
	}

	for _, opt := range opts {
		opt(o)
	}

	if err := o.validate(); err != nil {
		panic(err)
	}

	return o
}

func (o *Options) validate() error {
	if o.MaxT < 1 {
		return fmt.Errorf("max timesteps must be >= 1")
	}
	if o.SnapshotEvery < 1 || o.OracleNLLLogEvery < 1 {
		return fmt.Errorf("logging strides must be >= 1")
	}
	if o.Breakpoint < 1 || o.Breakpoint >= o.MaxT {
		return fmt.Errorf("breakpoint must be in [1, %d), got %d", o.MaxT, o.Breakpoint)
	}
	if o.Out == nil {
		return fmt.Errorf("output writer must not be nil")
	}
	return nil
}

// WithMaxT sets the number of timesteps per mode
func WithMaxT(n int) Option {
	return func(o *Options) {
		o.MaxT = n
	}
}

// WithSnapshotEvery sets the hidden-state snapshot stride
func WithSnapshotEvery(n int) Option {
	return func(o *Options) {
		o.SnapshotEvery = n
	}
}

// WithOracleNLLLogEvery sets the oracle NLL logging stride
func WithOracleNLLLogEvery(n int) Option {
	return func(o *Options) {
		o.OracleNLLLogEvery = n
	}
}

// WithBreakpoint sets the sentence-completion prefix length
func WithBreakpoint(n int) Option {
	return func(o *Options) {
		o.Breakpoint = n
	}
}

// WithSeed sets the base seed every mode derives its random source from
func WithSeed(seed int64) Option {
	return func(o *Options) {
		o.Seed = seed
	}
}

// WithWorkers sets the row parallelism used for oracle scoring
func WithWorkers(n int) Option {
	return func(o *Options) {
		o.Workers = n
	}
}

// WithProgress toggles the per-mode progress bar
func WithProgress(b bool) Option {
	return func(o *Options) {
		o.ShowProgress = b
	}
}

// WithTopN sets how many sentences are printed per extreme
func WithTopN(n int) Option {
	return func(o *Options) {
		o.TopN = n
	}
}

// WithProbes enables the teacher-forced vs free-running probe classifiers
func WithProbes(embeddings bool) Option {
	return func(o *Options) {
		o.RunProbes = true
		o.ClassifyEmbeddings = embeddings
	}
}

// WithProbeTraining sets the probe optimisation schedule
func WithProbeTraining(epochs int, lr float64) Option {
	return func(o *Options) {
		o.ProbeEpochs = epochs
		o.ProbeLR = lr
	}
}

// WithEpoch sets the step index per-run metrics are recorded at
func WithEpoch(epoch int) Option {
	return func(o *Options) {
		o.Epoch = epoch
	}
}

// WithOracle enables oracle NLL scoring
func WithOracle(s textgan.Scorer) Option {
	return func(o *Options) {
		o.Oracle = s
	}
}

// WithDiscriminator scores free-running samples with d
func WithDiscriminator(d *textgan.Discriminator) Option {
	return func(o *Options) {
		o.Discriminator = d
	}
}

// WithReverseLM sets the external reverse-LM command. Samples are written
// below modelDir.
func WithReverseLM(command []string, modelDir, dataDir, logDir string) Option {
	return func(o *Options) {
		o.RLMCommand = command
		o.ModelDir = modelDir
		o.DataDir = dataDir
		o.LogDir = logDir
	}
}

// WithOutput sets where reports are printed
func WithOutput(w io.Writer) Option {
	return func(o *Options) {
		o.Out = w
	}
}

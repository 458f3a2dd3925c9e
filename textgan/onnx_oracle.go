package textgan

import (
	"fmt"

	ort "github.com/yalue/onnxruntime_go"

	"textgan-go/rnn"
	"textgan-go/tensor"
)

// ONNXOracle scores tokens with a single-step language model exported to
// ONNX. The graph takes input_ids [batch, 1] (int64) and h_in/c_in
// [layers, batch, hidden] and returns logits [batch, vocab] and h_out/c_out.
// c_in/c_out are only wired for LSTM exports.
type ONNXOracle struct {
	session   *ort.DynamicAdvancedSession
	vocabSize int
	hidden    int
	layers    int
	lstm      bool
}

// ONNXOracleOptions describes the exported graph dimensions
type ONNXOracleOptions struct {
	ModelPath  string
	LibPath    string // optional onnxruntime shared library
	VocabSize  int
	HiddenDim  int
	NumLayers  int
	LSTM       bool
	NumThreads int
}

// NewONNXOracle opens an ONNX session for the exported graph
func NewONNXOracle(opts ONNXOracleOptions) (*ONNXOracle, error) {
	if !ort.IsInitialized() {
		if opts.LibPath != "" {
			ort.SetSharedLibraryPath(opts.LibPath)
		}
		if err := ort.InitializeEnvironment(); err != nil {
			return nil, fmt.Errorf("failed to initialize ONNX runtime: %w", err)
		}
	}

	options, err := ort.NewSessionOptions()
	if err != nil {
		return nil, fmt.Errorf("failed to create session options: %w", err)
	}
	defer options.Destroy()

	if opts.NumThreads > 0 {
		if err := options.SetIntraOpNumThreads(opts.NumThreads); err != nil {
			return nil, fmt.Errorf("failed to set threads: %w", err)
		}
	}

	inputs := []string{"input_ids", "h_in"}
	outputs := []string{"logits", "h_out"}
	if opts.LSTM {
		inputs = append(inputs, "c_in")
		outputs = append(outputs, "c_out")
	}

	session, err := ort.NewDynamicAdvancedSession(opts.ModelPath, inputs, outputs, options)
	if err != nil {
		return nil, fmt.Errorf("failed to create session: %w", err)
	}

	fmt.Printf("✓ ONNX oracle loaded from %s\n", opts.ModelPath)
	return &ONNXOracle{
		session:   session,
		vocabSize: opts.VocabSize,
		hidden:    opts.HiddenDim,
		layers:    opts.NumLayers,
		lstm:      opts.LSTM,
	}, nil
}

// VocabSize returns the output vocabulary size
func (o *ONNXOracle) VocabSize() int {
	return o.vocabSize
}

// Next feeds ids at timestep t and returns the next-token logits
func (o *ONNXOracle) Next(ids []int, st *rnn.State, t int) (*tensor.Tensor, *rnn.State, error) {
	batch := len(ids)
	if st == nil {
		st = o.zeroState(batch)
	}

	idData := make([]int64, batch)
	for i, id := range ids {
		idData[i] = int64(id)
	}
	idTensor, err := ort.NewTensor(ort.NewShape(int64(batch), 1), idData)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to create input tensor: %w", err)
	}
	defer idTensor.Destroy()

	stateShape := ort.NewShape(int64(o.layers), int64(batch), int64(o.hidden))
	hIn, err := ort.NewTensor(stateShape, o.stack(st, false))
	if err != nil {
		return nil, nil, fmt.Errorf("failed to create state tensor: %w", err)
	}
	defer hIn.Destroy()

	logits, err := ort.NewEmptyTensor[float32](ort.NewShape(int64(batch), int64(o.vocabSize)))
	if err != nil {
		return nil, nil, fmt.Errorf("failed to create output tensor: %w", err)
	}
	defer logits.Destroy()
	hOut, err := ort.NewEmptyTensor[float32](stateShape)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to create output tensor: %w", err)
	}
	defer hOut.Destroy()

	inputs := []ort.Value{idTensor, hIn}
	outputs := []ort.Value{logits, hOut}

	var cOut *ort.Tensor[float32]
	if o.lstm {
		cIn, err := ort.NewTensor(stateShape, o.stack(st, true))
		if err != nil {
			return nil, nil, fmt.Errorf("failed to create state tensor: %w", err)
		}
		defer cIn.Destroy()
		if cOut, err = ort.NewEmptyTensor[float32](stateShape); err != nil {
			return nil, nil, fmt.Errorf("failed to create output tensor: %w", err)
		}
		defer cOut.Destroy()
		inputs = append(inputs, cIn)
		outputs = append(outputs, cOut)
	}

	if err := o.session.Run(inputs, outputs); err != nil {
		return nil, nil, fmt.Errorf("inference failed at timestep %d: %w", t, err)
	}

	out := tensor.NewTensor(batch, o.vocabSize)
	copy(out.Data, logits.GetData())

	next := &rnn.State{Layers: make([]rnn.LayerState, o.layers)}
	o.unstack(next, hOut.GetData(), false)
	if o.lstm {
		o.unstack(next, cOut.GetData(), true)
	}
	return out, next, nil
}

// Close releases the session
func (o *ONNXOracle) Close() error {
	return o.session.Destroy()
}

func (o *ONNXOracle) zeroState(batch int) *rnn.State {
	st := &rnn.State{Layers: make([]rnn.LayerState, o.layers)}
	for l := range st.Layers {
		st.Layers[l].H = tensor.NewTensor(1, batch, o.hidden)
		if o.lstm {
			st.Layers[l].C = tensor.NewTensor(1, batch, o.hidden)
		}
	}
	return st
}

// stack lays the per-layer state out as [layers, batch, hidden]
func (o *ONNXOracle) stack(st *rnn.State, cell bool) []float32 {
	var out []float32
	for _, ls := range st.Layers {
		src := ls.H
		if cell {
			src = ls.C
		}
		out = append(out, src.Data...)
	}
	return out
}

func (o *ONNXOracle) unstack(st *rnn.State, data []float32, cell bool) {
	per := len(data) / o.layers
	batch := per / o.hidden
	for l := range st.Layers {
		t := tensor.NewTensor(1, batch, o.hidden)
		copy(t.Data, data[l*per:(l+1)*per])
		if cell {
			st.Layers[l].C = t
		} else {
			st.Layers[l].H = t
		}
	}
}

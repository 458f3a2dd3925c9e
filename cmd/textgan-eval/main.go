package main

import (
	"flag"
	"fmt"
	"log"
	"os"
	"strings"

	"textgan-go/evaluate"
	"textgan-go/metrics"
	"textgan-go/rnn"
	"textgan-go/tensor"
	"textgan-go/textgan"
	"textgan-go/vocab"
)

func main() {
	modelDir := flag.String("model", "", "Checkpoint directory (config.json + gen_<epoch>.safetensors)")
	epoch := flag.Int("epoch", -1, "Checkpoint epoch (-1 = latest)")
	oracleDir := flag.String("oracle", "", "Oracle checkpoint directory (optional)")
	oracleONNX := flag.String("oracle-onnx", "", "Single-step ONNX oracle (optional)")
	onnxLib := flag.String("onnx-lib", os.Getenv("ONNXRUNTIME_LIB"), "onnxruntime shared library")
	onnxHidden := flag.Int("onnx-hidden", 0, "ONNX oracle hidden size (default: model hidden size)")
	onnxLayers := flag.Int("onnx-layers", 1, "ONNX oracle layers")
	codecPath := flag.String("dict", "", "Dictionary JSON or tokenizer.json")
	trainPath := flag.String("train", "", "Training sentences, one per line")
	testPath := flag.String("test", "", "Held-out sentences, one per line")
	batchSize := flag.Int("batch", 64, "Sentences per mode")
	maxT := flag.Int("max-t", 20, "Timesteps per mode")
	snapshotEvery := flag.Int("tsne-log-every", 1, "Hidden-state snapshot stride")
	nllEvery := flag.Int("oracle-nll-log-every", 1, "Oracle NLL logging stride")
	breakpoint := flag.Int("breakpoint", 5, "Sentence completion prefix length")
	alpha := flag.Float64("alpha-test", 0, "Override the checkpoint test alpha")
	seed := flag.Int64("seed", 2, "Random seed")
	workers := flag.Int("workers", 1, "Parallel batch rows per timestep")
	probes := flag.Bool("probes", false, "Train teacher-forced vs free-running probes")
	embeddings := flag.Bool("classify-embeddings", false, "Probe input embeddings instead of hidden states")
	topN := flag.Int("top", 10, "Sentences printed per extreme")
	metricsPath := flag.String("metrics", "", "Append metrics as JSON lines to this file")
	printMetrics := flag.Bool("print-metrics", false, "Print every metric point")
	rlmCmd := flag.String("rlm-cmd", "", "Reverse-LM command ({base_dir}, {data_dir}, {log_dir}, {tag} are expanded)")
	dataDir := flag.String("data-dir", "", "Data directory passed to the reverse LM")
	logDir := flag.String("log-dir", "", "Log directory passed to the reverse LM")
	progress := flag.Bool("progress", true, "Show progress bars")
	flag.Parse()

	if *modelDir == "" || *codecPath == "" || *trainPath == "" || *testPath == "" {
		fmt.Fprintf(os.Stderr, "Error: -model, -dict, -train and -test are required\n\n")
		flag.Usage()
		os.Exit(1)
	}

	ckpt, err := textgan.LoadCheckpoint(*modelDir, *epoch)
	if err != nil {
		log.Fatalf("Failed to load checkpoint: %v", err)
	}
	cfg := ckpt.Config
	cfg.Workers = *workers
	ckpt.Generator.Engine().SetWorkers(*workers)
	if *alpha > 0 {
		cfg.AlphaTest = *alpha
		if err := cfg.Validate(); err != nil {
			log.Fatalf("Invalid alpha: %v", err)
		}
	}

	codec, err := vocab.Open(*codecPath, cfg.PadID, cfg.SOSID)
	if err != nil {
		log.Fatalf("Failed to load vocabulary: %v", err)
	}
	train, err := loadBatch(codec, *trainPath, *batchSize, *maxT+1)
	if err != nil {
		log.Fatalf("Failed to load training data: %v", err)
	}
	test, err := loadBatch(codec, *testPath, *batchSize, *maxT+1)
	if err != nil {
		log.Fatalf("Failed to load test data: %v", err)
	}

	var recorders metrics.Multi
	if *printMetrics {
		recorders = append(recorders, metrics.NewConsole(os.Stdout))
	}
	if *metricsPath != "" {
		sink, err := metrics.OpenJSONL(*metricsPath)
		if err != nil {
			log.Fatalf("%v", err)
		}
		defer func() {
			if err := sink.Close(); err != nil {
				log.Printf("Failed to write metrics: %v", err)
			}
		}()
		recorders = append(recorders, sink)
	}

	opts := []evaluate.Option{
		evaluate.WithMaxT(*maxT),
		evaluate.WithSnapshotEvery(*snapshotEvery),
		evaluate.WithOracleNLLLogEvery(*nllEvery),
		evaluate.WithBreakpoint(*breakpoint),
		evaluate.WithSeed(*seed),
		evaluate.WithEpoch(ckpt.Epoch),
		evaluate.WithWorkers(*workers),
		evaluate.WithTopN(*topN),
		evaluate.WithProgress(*progress),
	}
	if *probes {
		opts = append(opts, evaluate.WithProbes(*embeddings))
	}
	if ckpt.Discriminator != nil {
		opts = append(opts, evaluate.WithDiscriminator(ckpt.Discriminator))
	}

	switch {
	case *oracleDir != "":
		oracle, _, err := textgan.LoadOracle(*oracleDir, -1)
		if err != nil {
			log.Fatalf("Failed to load oracle: %v", err)
		}
		opts = append(opts, evaluate.WithOracle(oracle))
	case *oracleONNX != "":
		hidden := *onnxHidden
		if hidden == 0 {
			hidden = cfg.HiddenDimGen
		}
		oracle, err := textgan.NewONNXOracle(textgan.ONNXOracleOptions{
			ModelPath:  *oracleONNX,
			LibPath:    *onnxLib,
			VocabSize:  cfg.VocabSize,
			HiddenDim:  hidden,
			NumLayers:  *onnxLayers,
			LSTM:       cfg.Cell == rnn.CellLSTM,
			NumThreads: *workers,
		})
		if err != nil {
			log.Fatalf("Failed to load ONNX oracle: %v", err)
		}
		defer oracle.Close()
		opts = append(opts, evaluate.WithOracle(oracle))
	default:
		fmt.Println("⚠ No oracle configured: oracle NLL, completion and reverse-LM scoring are skipped")
	}
	if *rlmCmd != "" {
		opts = append(opts, evaluate.WithReverseLM(strings.Fields(*rlmCmd), *modelDir, *dataDir, *logDir))
	}

	pipeline := evaluate.NewPipeline(ckpt.Generator, recorders, codec, opts...)
	report, err := pipeline.Run(train, test)
	if err != nil {
		log.Fatalf("Evaluation failed: %v", err)
	}

	fmt.Printf("\nEpoch %d summary\n", ckpt.Epoch)
	for _, mode := range evaluate.Modes {
		res := report.Modes[mode]
		line := fmt.Sprintf("  %-13s entropy %.4f", mode, mean(res.Entropy))
		if res.Ranking != nil {
			if m, ok := res.Ranking.Mean(); ok {
				line += fmt.Sprintf("  oracle nll %.4f", m)
			}
		}
		if mode.TeacherForced() {
			line += fmt.Sprintf("  gen nll %.4f", res.GenNLL)
		}
		fmt.Println(line)
	}
	for _, p := range report.Probes {
		fmt.Printf("  probe t=%-3d valid %.3f  test %.3f\n", p.Step, p.ValidAcc, p.TestAcc)
	}
	if report.ReverseLM != nil {
		fmt.Printf("Reverse LM running as pid %d\n", report.ReverseLM.Process.Pid)
	}
}

func loadBatch(codec vocab.Codec, path string, n, maxLen int) (*tensor.IntTensor, error) {
	lines, err := vocab.ReadLines(path)
	if err != nil {
		return nil, err
	}
	if len(lines) == 0 {
		return nil, fmt.Errorf("%s has no sentences", path)
	}
	if len(lines) > n {
		lines = lines[:n]
	}
	return vocab.Batch(codec, lines, maxLen), nil
}

func mean(v []float64) float64 {
	if len(v) == 0 {
		return 0
	}
	sum := 0.0
	for _, x := range v {
		sum += x
	}
	return sum / float64(len(v))
}

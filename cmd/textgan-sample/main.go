package main

import (
	"flag"
	"fmt"
	"log"
	"math/rand"
	"os"
	"time"

	"textgan-go/tensor"
	"textgan-go/textgan"
	"textgan-go/vocab"
)

func main() {
	modelDir := flag.String("model", "", "Checkpoint directory")
	epoch := flag.Int("epoch", -1, "Checkpoint epoch (-1 = latest)")
	codecPath := flag.String("dict", "", "Dictionary JSON or tokenizer.json")
	n := flag.Int("n", 10, "Number of sentences")
	maxLen := flag.Int("max-len", 0, "Tokens per sentence (default: checkpoint max_seq_len)")
	alpha := flag.Float64("alpha", 0, "Logit coefficient (default: checkpoint alpha_test)")
	seed := flag.Int64("seed", 0, "Random seed (0 = time based)")
	flag.Parse()

	if *modelDir == "" || *codecPath == "" {
		fmt.Fprintf(os.Stderr, "Error: -model and -dict are required\n\n")
		flag.Usage()
		os.Exit(1)
	}

	ckpt, err := textgan.LoadCheckpoint(*modelDir, *epoch)
	if err != nil {
		log.Fatalf("Failed to load checkpoint: %v", err)
	}
	cfg := ckpt.Config
	if *maxLen > 0 {
		cfg.MaxSeqLen = *maxLen
	}
	if *alpha > 0 {
		cfg.AlphaTest = *alpha
	}
	if err := cfg.Validate(); err != nil {
		log.Fatalf("Invalid sampling settings: %v", err)
	}

	codec, err := vocab.Open(*codecPath, cfg.PadID, cfg.SOSID)
	if err != nil {
		log.Fatalf("Failed to load vocabulary: %v", err)
	}

	if *seed == 0 {
		*seed = time.Now().UnixNano()
	}
	rng := rand.New(rand.NewSource(*seed))

	start := tensor.NewIntTensor(*n, 1)
	for i := 0; i < *n; i++ {
		start.Set(cfg.SOSID, i, 0)
	}

	gen := ckpt.Generator
	gen.SetTraining(false)
	startTime := time.Now()
	out, err := gen.Forward(start, nil, rng)
	if err != nil {
		log.Fatalf("Generation failed: %v", err)
	}
	elapsed := time.Since(startTime)

	for i, s := range vocab.DecodeBatch(codec, out.Words) {
		fmt.Printf("%3d  %s\n", i, s)
	}
	fmt.Printf("\nStats: %d tokens in %v (alpha %.2f, seed %d)\n",
		out.Words.Batch()*out.Words.Len(), elapsed.Round(time.Millisecond), gen.Alpha(), *seed)
}

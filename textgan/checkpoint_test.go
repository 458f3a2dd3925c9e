package textgan

import (
	"math/rand"
	"os"
	"path/filepath"
	"testing"

	"textgan-go/rnn"
	"textgan-go/tensor"
)

func TestCheckpointRoundTrip(t *testing.T) {
	dir := t.TempDir()
	cfg := smallConfig(WithCell(rnn.CellGRU), WithSampling(WithAlphaTest(1.5), WithMaxSeqLen(7)))
	gen := newTestGenerator(t, cfg)
	disc, _ := NewDiscriminator(cfg, rand.New(rand.NewSource(2)))

	if err := SaveCheckpoint(dir, 3, gen, disc); err != nil {
		t.Fatalf("Unexpected error: %v", err)
	}
	if err := SaveCheckpoint(dir, 12, gen, nil); err != nil {
		t.Fatalf("Unexpected error: %v", err)
	}

	ckpt, err := LoadCheckpoint(dir, 3)
	if err != nil {
		t.Fatalf("Unexpected error: %v", err)
	}
	if ckpt.Epoch != 3 {
		t.Errorf("Expected epoch 3, got %d", ckpt.Epoch)
	}
	if ckpt.Config.Cell != rnn.CellGRU || ckpt.Config.AlphaTest != 1.5 || ckpt.Config.MaxSeqLen != 7 {
		t.Errorf("Expected config to round trip, got %+v", ckpt.Config)
	}
	if ckpt.Discriminator == nil {
		t.Fatalf("Expected the discriminator to be restored")
	}

	for name, want := range gen.Params() {
		if !tensor.Equal(ckpt.Generator.Params()[name], want) {
			t.Errorf("Expected generator tensor %s to round trip", name)
		}
	}
	for name, want := range disc.Params() {
		if !tensor.Equal(ckpt.Discriminator.Params()[name], want) {
			t.Errorf("Expected discriminator tensor %s to round trip", name)
		}
	}

	latest, err := LoadCheckpoint(dir, -1)
	if err != nil {
		t.Fatalf("Unexpected error: %v", err)
	}
	if latest.Epoch != 12 {
		t.Errorf("Expected latest epoch 12, got %d", latest.Epoch)
	}
	if latest.Discriminator != nil {
		t.Errorf("Expected no discriminator at epoch 12")
	}

	oracle, epoch, err := LoadOracle(dir, 3)
	if err != nil {
		t.Fatalf("Unexpected error: %v", err)
	}
	if epoch != 3 || oracle.VocabSize() != 10 {
		t.Errorf("Expected oracle from epoch 3 with vocab 10, got epoch %d vocab %d", epoch, oracle.VocabSize())
	}
}

func TestCheckpointDetectsCorruption(t *testing.T) {
	dir := t.TempDir()
	gen := newTestGenerator(t, smallConfig())
	if err := SaveCheckpoint(dir, 0, gen, nil); err != nil {
		t.Fatalf("Unexpected error: %v", err)
	}

	path := filepath.Join(dir, "gen_0.safetensors")
	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("Unexpected error: %v", err)
	}
	data[len(data)-1] ^= 0xff
	if err := os.WriteFile(path, data, 0o644); err != nil {
		t.Fatalf("Unexpected error: %v", err)
	}

	if _, err := LoadCheckpoint(dir, 0); err == nil {
		t.Errorf("Expected a checksum error")
	}
}

func TestLoadCheckpointMissing(t *testing.T) {
	if _, err := LoadCheckpoint(t.TempDir(), -1); err == nil {
		t.Errorf("Expected an error for an empty directory")
	}
}

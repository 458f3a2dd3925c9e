package textgan

import (
	"bytes"
	"encoding/binary"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"math"
	"math/rand"
	"os"
	"path/filepath"
	"sort"
	"strconv"
	"strings"

	"github.com/cespare/xxhash/v2"

	"textgan-go/tensor"
)

const (
	configFile  = "config.json"
	metadataKey = "__metadata__"
)

// TensorInfo describes a tensor in safetensors format
type TensorInfo struct {
	Dtype  string   `json:"dtype"`
	Shape  []int    `json:"shape"`
	Offset [2]int64 `json:"data_offsets"`
}

// Checkpoint is a persisted generator (and optionally discriminator)
type Checkpoint struct {
	Config        *Config
	Epoch         int
	Generator     *Generator
	Discriminator *Discriminator
}

// SaveCheckpoint writes config.json and gen_<epoch>.safetensors to dir, plus
// disc_<epoch>.safetensors when disc is not nil
func SaveCheckpoint(dir string, epoch int, gen *Generator, disc *Discriminator) error {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("failed to create checkpoint dir: %w", err)
	}
	cfg, err := json.MarshalIndent(gen.config, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to encode config: %w", err)
	}
	if err := os.WriteFile(filepath.Join(dir, configFile), cfg, 0o644); err != nil {
		return fmt.Errorf("failed to write config: %w", err)
	}
	if err := writeSafetensors(weightsPath(dir, "gen", epoch), gen.Params(), epoch); err != nil {
		return err
	}
	if disc != nil {
		if err := writeSafetensors(weightsPath(dir, "disc", epoch), disc.Params(), epoch); err != nil {
			return err
		}
	}
	return nil
}

// LoadCheckpoint restores the models saved at epoch. A negative epoch picks
// the latest one found in dir.
func LoadCheckpoint(dir string, epoch int) (*Checkpoint, error) {
	data, err := os.ReadFile(filepath.Join(dir, configFile))
	if err != nil {
		return nil, fmt.Errorf("failed to read config: %w", err)
	}
	config := &Config{Workers: 1}
	if err := json.Unmarshal(data, config); err != nil {
		return nil, fmt.Errorf("failed to parse config: %w", err)
	}
	if err := config.Validate(); err != nil {
		return nil, fmt.Errorf("invalid checkpoint config: %w", err)
	}

	if epoch < 0 {
		if epoch, err = latestEpoch(dir); err != nil {
			return nil, err
		}
	}

	// weights are overwritten by the file, the seed only fills the shapes
	rng := rand.New(rand.NewSource(0))
	gen, err := NewGenerator(config, rng)
	if err != nil {
		return nil, err
	}
	if err := readSafetensors(weightsPath(dir, "gen", epoch), gen.Params()); err != nil {
		return nil, fmt.Errorf("failed to load generator: %w", err)
	}

	ckpt := &Checkpoint{Config: config, Epoch: epoch, Generator: gen}

	discPath := weightsPath(dir, "disc", epoch)
	if _, err := os.Stat(discPath); err == nil {
		disc, err := NewDiscriminator(config, rng)
		if err != nil {
			return nil, err
		}
		if err := readSafetensors(discPath, disc.Params()); err != nil {
			return nil, fmt.Errorf("failed to load discriminator: %w", err)
		}
		ckpt.Discriminator = disc
	}

	fmt.Printf("✓ Loaded %s generator from %s (epoch %d, vocab %d, hidden %d)\n",
		config.Cell, dir, epoch, config.VocabSize, config.HiddenDimGen)
	return ckpt, nil
}

// LoadOracle restores a generator checkpoint and freezes it as an oracle
func LoadOracle(dir string, epoch int) (*Oracle, int, error) {
	ckpt, err := LoadCheckpoint(dir, epoch)
	if err != nil {
		return nil, 0, err
	}
	return NewOracle(ckpt.Generator), ckpt.Epoch, nil
}

func weightsPath(dir, kind string, epoch int) string {
	return filepath.Join(dir, fmt.Sprintf("%s_%d.safetensors", kind, epoch))
}

func latestEpoch(dir string) (int, error) {
	matches, err := filepath.Glob(filepath.Join(dir, "gen_*.safetensors"))
	if err != nil {
		return 0, err
	}
	best := -1
	for _, m := range matches {
		name := strings.TrimSuffix(strings.TrimPrefix(filepath.Base(m), "gen_"), ".safetensors")
		if n, err := strconv.Atoi(name); err == nil && n > best {
			best = n
		}
	}
	if best < 0 {
		return 0, fmt.Errorf("no generator weights found in %s", dir)
	}
	return best, nil
}

func writeSafetensors(path string, params map[string]*tensor.Tensor, epoch int) error {
	names := make([]string, 0, len(params))
	for name := range params {
		names = append(names, name)
	}
	sort.Strings(names)

	var body bytes.Buffer
	header := make(map[string]interface{}, len(names)+1)
	for _, name := range names {
		t := params[name]
		start := int64(body.Len())
		if err := binary.Write(&body, binary.LittleEndian, t.Data); err != nil {
			return fmt.Errorf("failed to encode %s: %w", name, err)
		}
		header[name] = TensorInfo{Dtype: "F32", Shape: t.Shape, Offset: [2]int64{start, int64(body.Len())}}
	}
	header[metadataKey] = map[string]string{
		"format":   "textgan",
		"epoch":    strconv.Itoa(epoch),
		"xxhash64": strconv.FormatUint(xxhash.Sum64(body.Bytes()), 16),
	}

	headerBytes, err := json.Marshal(header)
	if err != nil {
		return fmt.Errorf("failed to encode header: %w", err)
	}

	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("failed to create %s: %w", path, err)
	}
	defer f.Close()

	if err := binary.Write(f, binary.LittleEndian, uint64(len(headerBytes))); err != nil {
		return err
	}
	if _, err := f.Write(headerBytes); err != nil {
		return err
	}
	if _, err := io.Copy(f, &body); err != nil {
		return err
	}
	return f.Close()
}

// readSafetensors copies every tensor named in params from the file at path.
// The file checksum is verified when present.
func readSafetensors(path string, params map[string]*tensor.Tensor) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("failed to read file: %w", err)
	}
	if len(data) < 8 {
		return errors.New("file too short for a safetensors header")
	}

	headerSize := binary.LittleEndian.Uint64(data[:8])
	if headerSize > uint64(len(data)-8) {
		return fmt.Errorf("header size %d exceeds file size", headerSize)
	}
	headerBytes := data[8 : 8+headerSize]
	tensorData := data[8+headerSize:]

	var raw map[string]json.RawMessage
	if err := json.Unmarshal(headerBytes, &raw); err != nil {
		return fmt.Errorf("failed to parse header: %w", err)
	}

	if meta, ok := raw[metadataKey]; ok {
		var m map[string]string
		if err := json.Unmarshal(meta, &m); err != nil {
			return fmt.Errorf("failed to parse metadata: %w", err)
		}
		if want, ok := m["xxhash64"]; ok {
			if got := strconv.FormatUint(xxhash.Sum64(tensorData), 16); got != want {
				return fmt.Errorf("checksum mismatch: file %s, computed %s", want, got)
			}
		}
	}

	for name, target := range params {
		msg, ok := raw[name]
		if !ok {
			return fmt.Errorf("tensor not found: %s", name)
		}
		var info TensorInfo
		if err := json.Unmarshal(msg, &info); err != nil {
			return fmt.Errorf("failed to parse %s: %w", name, err)
		}
		if err := loadTensor(tensorData, info, name, target); err != nil {
			return err
		}
	}
	return nil
}

// loadTensor decodes one tensor into target, whose shape must match
func loadTensor(data []byte, info TensorInfo, name string, target *tensor.Tensor) error {
	if !sameShape(info.Shape, target.Shape) {
		return fmt.Errorf("tensor %s has shape %v, model expects %v", name, info.Shape, target.Shape)
	}
	start, end := info.Offset[0], info.Offset[1]
	if start < 0 || end > int64(len(data)) || start > end {
		return fmt.Errorf("tensor %s has invalid offsets %v", name, info.Offset)
	}
	tensorBytes := data[start:end]
	numElements := target.Size()

	switch info.Dtype {
	case "F32":
		if len(tensorBytes) != numElements*4 {
			return fmt.Errorf("tensor %s: %d bytes for %d F32 values", name, len(tensorBytes), numElements)
		}
		for i := 0; i < numElements; i++ {
			target.Data[i] = math.Float32frombits(binary.LittleEndian.Uint32(tensorBytes[i*4 : (i+1)*4]))
		}
	case "F16":
		if len(tensorBytes) != numElements*2 {
			return fmt.Errorf("tensor %s: %d bytes for %d F16 values", name, len(tensorBytes), numElements)
		}
		for i := 0; i < numElements; i++ {
			target.Data[i] = float32fromfloat16(binary.LittleEndian.Uint16(tensorBytes[i*2 : (i+1)*2]))
		}
	case "BF16":
		if len(tensorBytes) != numElements*2 {
			return fmt.Errorf("tensor %s: %d bytes for %d BF16 values", name, len(tensorBytes), numElements)
		}
		for i := 0; i < numElements; i++ {
			bits := uint32(binary.LittleEndian.Uint16(tensorBytes[i*2:(i+1)*2])) << 16
			target.Data[i] = math.Float32frombits(bits)
		}
	default:
		return fmt.Errorf("unsupported dtype: %s", info.Dtype)
	}
	return nil
}

func float32fromfloat16(bits uint16) float32 {
	sign := uint32((bits >> 15) & 1)
	exp := uint32((bits >> 10) & 0x1F)
	frac := uint32(bits & 0x3FF)

	switch {
	case exp == 0 && frac == 0:
		return math.Float32frombits(sign << 31)
	case exp == 0:
		// subnormal: renormalise
		exp = 127 - 15 + 1
		for frac&0x400 == 0 {
			frac <<= 1
			exp--
		}
		frac &= 0x3FF
	case exp == 0x1F:
		exp = 0xFF
	default:
		exp += 127 - 15
	}

	return math.Float32frombits((sign << 31) | (exp << 23) | (frac << 13))
}

func sameShape(a, b []int) bool {
	if len(a) != len(b) {
		return false
	}
	for i := range a {
		if a[i] != b[i] {
			return false
		}
	}
	return true
}

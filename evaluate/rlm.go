package evaluate

import (
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
	"strings"

	"textgan-go/tensor"
)

// SaveSamples writes one sentence per line to dir/train.txt
func SaveSamples(dir string, sentences []string) (string, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return "", fmt.Errorf("failed to create sample directory: %w", err)
	}
	path := filepath.Join(dir, "train.txt")
	var sb strings.Builder
	for _, s := range sentences {
		sb.WriteString(s)
		sb.WriteByte('\n')
	}
	if err := os.WriteFile(path, []byte(sb.String()), 0o644); err != nil {
		return "", fmt.Errorf("failed to write samples: %w", err)
	}
	return path, nil
}

// ReverseLMDir is where samples generated at alpha are handed off
func ReverseLMDir(modelDir string, alpha float64) string {
	return filepath.Join(modelDir, fmt.Sprintf("rlm_alpha%g", alpha))
}

// HandOffReverseLM saves the generated sentences and starts the configured
// reverse-LM command without waiting for it. It returns nil when no oracle
// or no command is configured. The score is expected to show up later in
// the metric sink under the command's own tag.
func (p *Pipeline) HandOffReverseLM(generated *tensor.IntTensor) (*exec.Cmd, error) {
	if p.opts.Oracle == nil || len(p.opts.RLMCommand) == 0 || generated == nil {
		return nil, nil
	}

	sentences := make([]string, generated.Batch())
	for i := range sentences {
		sentences[i] = p.decode(generated.Row(i))
	}
	alpha := p.gen.Config().AlphaTest
	dir := ReverseLMDir(p.opts.ModelDir, alpha)
	if _, err := SaveSamples(dir, sentences); err != nil {
		return nil, err
	}

	r := strings.NewReplacer(
		"{base_dir}", dir,
		"{data_dir}", p.opts.DataDir,
		"{log_dir}", p.opts.LogDir,
		"{tag}", fmt.Sprintf("rlm_alpha%g", alpha),
	)
	args := make([]string, len(p.opts.RLMCommand))
	for i, a := range p.opts.RLMCommand {
		args[i] = r.Replace(a)
	}

	cmd := exec.Command(args[0], args[1:]...)
	if err := cmd.Start(); err != nil {
		return nil, fmt.Errorf("failed to start reverse LM: %w", err)
	}
	go cmd.Wait()

	fmt.Fprintf(p.opts.Out, "✓ Started reverse LM on %d samples (pid %d)\n", len(sentences), cmd.Process.Pid)
	return cmd, nil
}

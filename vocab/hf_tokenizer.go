//go:build hftokenizers
// +build hftokenizers

package vocab

import (
	"fmt"

	"github.com/daulet/tokenizers"
)

func init() {
	openTokenizerJSON = func(path string, padID, sosID int) (Codec, error) {
		return NewHFTokenizer(path, padID, sosID)
	}
}

// HFTokenizer exposes a HuggingFace tokenizer.json as a Codec. Building it
// needs libtokenizers, hence the build tag.
type HFTokenizer struct {
	tk    *tokenizers.Tokenizer
	padID int
	sosID int
}

// NewHFTokenizer loads tokenizer.json. padID and sosID are the ids the
// model reserves for padding and start of sequence.
func NewHFTokenizer(path string, padID, sosID int) (*HFTokenizer, error) {
	tk, err := tokenizers.FromFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to load tokenizer: %w", err)
	}
	fmt.Printf("✓ Loaded tokenizer (vocab: %d, pad: %d, sos: %d)\n", tk.VocabSize(), padID, sosID)
	return &HFTokenizer{tk: tk, padID: padID, sosID: sosID}, nil
}

// Encode converts text to ids prefixed with the start token
func (h *HFTokenizer) Encode(text string) []int {
	raw, _ := h.tk.Encode(text, false)
	ids := make([]int, 0, len(raw)+1)
	ids = append(ids, h.sosID)
	for _, id := range raw {
		ids = append(ids, int(id))
	}
	return ids
}

// Decode stops at the first pad and skips start tokens
func (h *HFTokenizer) Decode(ids []int) string {
	raw := make([]uint32, 0, len(ids))
	for _, id := range ids {
		if id == h.padID {
			break
		}
		if id == h.sosID {
			continue
		}
		raw = append(raw, uint32(id))
	}
	return h.tk.Decode(raw, true)
}

// Len returns the vocabulary size
func (h *HFTokenizer) Len() int {
	return int(h.tk.VocabSize())
}

// Close frees the native tokenizer
func (h *HFTokenizer) Close() error {
	return h.tk.Close()
}

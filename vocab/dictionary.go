package vocab

import (
	"bufio"
	"encoding/json"
	"fmt"
	"os"
	"strings"

	"textgan-go/tensor"
)

const (
	PadToken = "<pad>"
	SOSToken = "<s>"
	UnkToken = "<unk>"

	PadID = 0
	SOSID = 1
	UnkID = 2
)

// Codec maps surface text to token ids and back
type Codec interface {
	Encode(text string) []int
	Decode(ids []int) string
	Len() int
}

// Dictionary is a word- or character-level vocabulary. Id 0 is padding and
// id 1 starts every encoded sequence.
type Dictionary struct {
	word2idx  map[string]int
	idx2word  []string
	CharLevel bool
}

// NewDictionary creates a dictionary holding only the reserved tokens
func NewDictionary(charLevel bool) *Dictionary {
	d := &Dictionary{word2idx: make(map[string]int), CharLevel: charLevel}
	for _, w := range []string{PadToken, SOSToken, UnkToken} {
		d.Add(w)
	}
	return d
}

// Add inserts word if missing and returns its id
func (d *Dictionary) Add(word string) int {
	if id, ok := d.word2idx[word]; ok {
		return id
	}
	id := len(d.idx2word)
	d.word2idx[word] = id
	d.idx2word = append(d.idx2word, word)
	return id
}

// ID returns the id of word
func (d *Dictionary) ID(word string) (int, bool) {
	id, ok := d.word2idx[word]
	return id, ok
}

// Word returns the surface form of id
func (d *Dictionary) Word(id int) string {
	if id < 0 || id >= len(d.idx2word) {
		return UnkToken
	}
	return d.idx2word[id]
}

// Len returns the vocabulary size
func (d *Dictionary) Len() int {
	return len(d.idx2word)
}

func (d *Dictionary) split(text string) []string {
	if d.CharLevel {
		var out []string
		for _, r := range strings.TrimSpace(text) {
			out = append(out, string(r))
		}
		return out
	}
	return strings.Fields(text)
}

// Fit adds every token of text to the dictionary
func (d *Dictionary) Fit(text string) {
	for _, w := range d.split(text) {
		d.Add(w)
	}
}

// Encode converts text to ids prefixed with the start token. Unknown tokens
// map to <unk>.
func (d *Dictionary) Encode(text string) []int {
	words := d.split(text)
	ids := make([]int, 0, len(words)+1)
	ids = append(ids, SOSID)
	for _, w := range words {
		id, ok := d.word2idx[w]
		if !ok {
			id = UnkID
		}
		ids = append(ids, id)
	}
	return ids
}

// Decode converts ids back to text. Decoding stops at the first pad and
// skips start tokens. Character-level output is joined without separators.
func (d *Dictionary) Decode(ids []int) string {
	words := make([]string, 0, len(ids))
	for _, id := range ids {
		if id == PadID {
			break
		}
		if id == SOSID {
			continue
		}
		words = append(words, d.Word(id))
	}
	if d.CharLevel {
		return strings.Join(words, "")
	}
	return strings.Join(words, " ")
}

// DecodeBatch decodes every row of a [batch, L] tensor
func DecodeBatch(c Codec, batch *tensor.IntTensor) []string {
	out := make([]string, batch.Batch())
	for i := range out {
		out[i] = c.Decode(batch.Row(i))
	}
	return out
}

// Batch encodes lines into a right-padded [len(lines), maxLen] tensor.
// Longer sequences are truncated.
func Batch(c Codec, lines []string, maxLen int) *tensor.IntTensor {
	out := tensor.NewIntTensor(len(lines), maxLen)
	for i, line := range lines {
		ids := c.Encode(line)
		if len(ids) > maxLen {
			ids = ids[:maxLen]
		}
		copy(out.Data[i*maxLen:], ids)
	}
	return out
}

// ReadLines returns the non-empty lines of a text file
func ReadLines(path string) ([]string, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	var lines []string
	scanner := bufio.NewScanner(f)
	scanner.Buffer(make([]byte, 1024*1024), 1024*1024)
	for scanner.Scan() {
		if line := strings.TrimSpace(scanner.Text()); line != "" {
			lines = append(lines, line)
		}
	}
	return lines, scanner.Err()
}

type dictionaryJSON struct {
	CharLevel bool     `json:"char_level"`
	Words     []string `json:"idx2word"`
}

// Save writes the dictionary as JSON
func (d *Dictionary) Save(path string) error {
	data, err := json.MarshalIndent(dictionaryJSON{CharLevel: d.CharLevel, Words: d.idx2word}, "", "  ")
	if err != nil {
		return err
	}
	return os.WriteFile(path, data, 0o644)
}

// Load reads a dictionary written by Save
func Load(path string) (*Dictionary, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read dictionary: %w", err)
	}
	var dj dictionaryJSON
	if err := json.Unmarshal(data, &dj); err != nil {
		return nil, fmt.Errorf("failed to parse dictionary: %w", err)
	}
	if len(dj.Words) < 3 || dj.Words[PadID] != PadToken || dj.Words[SOSID] != SOSToken {
		return nil, fmt.Errorf("dictionary %s does not start with %s, %s", path, PadToken, SOSToken)
	}

	d := &Dictionary{word2idx: make(map[string]int, len(dj.Words)), CharLevel: dj.CharLevel}
	for _, w := range dj.Words {
		d.Add(w)
	}
	fmt.Printf("✓ Loaded dictionary (vocab: %d, char level: %v)\n", d.Len(), d.CharLevel)
	return d, nil
}

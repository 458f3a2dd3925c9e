package vocab

import (
	"path/filepath"
	"testing"
)

func TestWordLevelRoundTrip(t *testing.T) {
	d := NewDictionary(false)
	d.Fit("the cat sat on the mat")

	if d.Len() != 3+5 {
		t.Errorf("Expected 8 tokens, got %d", d.Len())
	}

	ids := d.Encode("the cat sat")
	if ids[0] != SOSID || len(ids) != 4 {
		t.Errorf("Expected SOS followed by 3 ids, got %v", ids)
	}
	if got := d.Decode(append(ids, PadID, 5)); got != "the cat sat" {
		t.Errorf("Expected 'the cat sat', got %q", got)
	}

	unk := d.Encode("the dog")
	if unk[2] != UnkID {
		t.Errorf("Expected unknown word mapped to %d, got %d", UnkID, unk[2])
	}
}

func TestCharLevelDecode(t *testing.T) {
	d := NewDictionary(true)
	d.Fit("abc")

	if got := d.Decode(d.Encode("cab")); got != "cab" {
		t.Errorf("Expected 'cab' without separators, got %q", got)
	}
}

func TestBatchPadsAndTruncates(t *testing.T) {
	d := NewDictionary(false)
	d.Fit("a b c d")

	b := Batch(d, []string{"a b", "a b c d"}, 4)
	if b.Batch() != 2 || b.Len() != 4 {
		t.Fatalf("Expected [2 4], got %v", b.Shape)
	}
	if b.At(0, 3) != PadID {
		t.Errorf("Expected right padding, got %v", b.Row(0))
	}
	if b.At(1, 3) == PadID {
		t.Errorf("Expected a truncated full row, got %v", b.Row(1))
	}

	lines := DecodeBatch(d, b)
	if lines[0] != "a b" || lines[1] != "a b c" {
		t.Errorf("Expected decoded rows, got %q", lines)
	}
}

func TestSaveLoad(t *testing.T) {
	d := NewDictionary(true)
	d.Fit("hello")
	path := filepath.Join(t.TempDir(), "dict.json")

	if err := d.Save(path); err != nil {
		t.Fatalf("Unexpected error: %v", err)
	}
	loaded, err := Load(path)
	if err != nil {
		t.Fatalf("Unexpected error: %v", err)
	}
	if loaded.Len() != d.Len() || !loaded.CharLevel {
		t.Errorf("Expected %d char-level tokens, got %d (%v)", d.Len(), loaded.Len(), loaded.CharLevel)
	}
	if id, ok := loaded.ID("l"); !ok || loaded.Word(id) != "l" {
		t.Errorf("Expected 'l' to survive the round trip")
	}
}

func TestOpen(t *testing.T) {
	d := NewDictionary(false)
	d.Fit("x y")
	path := filepath.Join(t.TempDir(), "dict.json")
	if err := d.Save(path); err != nil {
		t.Fatalf("Unexpected error: %v", err)
	}

	c, err := Open(path, PadID, SOSID)
	if err != nil {
		t.Fatalf("Unexpected error: %v", err)
	}
	if c.Len() != 5 {
		t.Errorf("Expected 5 tokens, got %d", c.Len())
	}
	if _, err := Open(path, 0, 4); err == nil {
		t.Errorf("Expected an error for mismatched reserved ids")
	}
}

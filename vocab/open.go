package vocab

import (
	"fmt"
	"path/filepath"
)

// openTokenizerJSON is set when built with HF tokenizer support
var openTokenizerJSON func(path string, padID, sosID int) (Codec, error)

// Open loads the codec at path: a HuggingFace tokenizer.json or a
// dictionary written by Dictionary.Save
func Open(path string, padID, sosID int) (Codec, error) {
	if filepath.Base(path) == "tokenizer.json" {
		if openTokenizerJSON == nil {
			return nil, fmt.Errorf("%s needs a build with -tags hftokenizers", path)
		}
		return openTokenizerJSON(path, padID, sosID)
	}
	d, err := Load(path)
	if err != nil {
		return nil, err
	}
	if padID != PadID || sosID != SOSID {
		return nil, fmt.Errorf("dictionary reserves pad %d and sos %d, model expects %d and %d", PadID, SOSID, padID, sosID)
	}
	return d, nil
}

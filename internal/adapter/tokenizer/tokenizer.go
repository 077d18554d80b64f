// Package tokenizer provides the BPE tokenizers used to size transcript chunks.
package tokenizer

import (
	"github.com/moltocasto/podcast-qa/internal/chunker"
)

// New returns a tokenizer.json backed tokenizer when file is set and a
// tiktoken encoding otherwise.
func New(encoding, file string) (chunker.Tokenizer, error) {
	if file != "" {
		hf, err := NewHuggingFace(file)
		if err != nil {
			return nil, err
		}
		return hf, nil
	}
	tk, err := NewTiktoken(encoding)
	if err != nil {
		return nil, err
	}
	return tk, nil
}

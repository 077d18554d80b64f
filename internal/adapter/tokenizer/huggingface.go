package tokenizer

import (
	"fmt"

	tokenizer "github.com/sugarme/tokenizer"
	"github.com/sugarme/tokenizer/pretrained"
)

// HuggingFace encodes text with a tokenizer.json file.
type HuggingFace struct {
	tok *tokenizer.Tokenizer
}

// NewHuggingFace loads a tokenizer from a tokenizer.json file.
func NewHuggingFace(path string) (*HuggingFace, error) {
	tok, err := pretrained.FromFile(path)
	if err != nil {
		return nil, fmt.Errorf("load tokenizer %s: %w", path, err)
	}
	return &HuggingFace{tok: tok}, nil
}

// Encode returns the token ids of text as the tokenizer post-processor produces them.
func (h *HuggingFace) Encode(text string) ([]int, error) {
	enc, err := h.tok.EncodeSingle(text)
	if err != nil {
		return nil, fmt.Errorf("encode: %w", err)
	}
	return enc.GetIds(), nil
}

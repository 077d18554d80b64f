package domain

import "time"

// Chunk is a token-bounded run of consecutive phrase texts.
type Chunk struct {
	Timecode   time.Duration `json:"timecode"` // offset of the first phrase
	Text       string        `json:"text"`
	TokenCount int           `json:"token_count"`
}

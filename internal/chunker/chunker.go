// Package chunker splits a timestamped transcript into token-bounded chunks
// that break preferentially at sentence boundaries.
package chunker

import (
	"fmt"
	"strings"

	"github.com/moltocasto/podcast-qa/internal/domain"
	"github.com/moltocasto/podcast-qa/internal/port"
)

// ModelMaxTokens is the context size of the reference embedding model.
const ModelMaxTokens = 8192

// DefaultMaxTokens is one tenth of the model context.
const DefaultMaxTokens = ModelMaxTokens / 10

// Tokenizer encodes text into token ids. Only the number of ids is used.
type Tokenizer interface {
	Encode(text string) ([]int, error)
}

// Options controls chunk boundaries.
type Options struct {
	// MaxTokens is the token budget of a chunk.
	MaxTokens int

	// FlushTrailing emits the partial chunk left in the buffer after the last phrase.
	FlushTrailing bool

	// DropSkipped restarts after an overflow just past the last sentence boundary of
	// the closed chunk. Phrases after that boundary are emitted again at the start of
	// the next chunk. When false the next chunk starts at the overflowing phrase and
	// every phrase lands in exactly one chunk.
	DropSkipped bool
}

// DefaultOptions returns the options for a model with the given context size.
func DefaultOptions(modelMaxTokens int) Options {
	if modelMaxTokens <= 0 {
		modelMaxTokens = ModelMaxTokens
	}
	return Options{
		MaxTokens:     modelMaxTokens / 10,
		FlushTrailing: true,
		DropSkipped:   true,
	}
}

// Chunk groups phrases into chunks of at most opts.MaxTokens tokens.
//
// The cost of a phrase is the token count of its text alone, and a chunk's
// TokenCount is the sum of its phrase costs. A phrase that exceeds the budget on
// its own becomes a chunk by itself.
func Chunk(phrases []domain.TranscriptPhrase, tok Tokenizer, opts Options) ([]domain.Chunk, error) {
	if opts.MaxTokens <= 0 {
		return nil, port.NewInputError("max tokens must be positive, got %d", opts.MaxTokens)
	}
	if len(phrases) == 0 {
		return nil, port.NewInputError("empty phrase sequence")
	}

	costs := make([]int, len(phrases))
	for i, p := range phrases {
		if strings.TrimSpace(p.Text) == "" {
			return nil, port.NewInputError("phrase %d has empty text", i)
		}
		ids, err := tok.Encode(p.Text)
		if err != nil {
			return nil, fmt.Errorf("tokenize phrase %d: %w", i, err)
		}
		costs[i] = len(ids)
	}

	var (
		chunks   []domain.Chunk
		parts    []string
		tokens   int
		start    int
		boundary = -1
	)
	emit := func() {
		chunks = append(chunks, domain.Chunk{
			Timecode:   phrases[start].Offset,
			Text:       strings.Join(parts, " "),
			TokenCount: tokens,
		})
	}

	for i := 0; i < len(phrases); {
		if len(parts) > 0 && tokens+costs[i] > opts.MaxTokens {
			emit()

			next := i
			if opts.DropSkipped && boundary >= start && boundary+1 < i {
				next = boundary + 1
			}
			parts, tokens, start, boundary = nil, 0, next, -1
			i = next
			continue
		}

		parts = append(parts, phrases[i].Text)
		tokens += costs[i]
		if endsSentence(phrases[i].Text) {
			boundary = i
		}
		i++
	}

	if opts.FlushTrailing && len(parts) > 0 {
		emit()
	}
	return chunks, nil
}

func endsSentence(text string) bool {
	text = strings.TrimRight(text, " \t\r\n")
	return strings.HasSuffix(text, ".") || strings.HasSuffix(text, "?")
}

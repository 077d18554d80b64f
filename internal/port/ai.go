package port

import "context"

// Embedder turns texts into vectors. EmbedBatch returns exactly one vector per
// input, in input order, or an error for the whole batch.
type Embedder interface {
	// Embed generates a vector embedding for the given text.
	Embed(ctx context.Context, text string) ([]float32, error)

	// EmbedBatch generates embeddings for multiple texts in one call.
	EmbedBatch(ctx context.Context, texts []string) ([][]float32, error)
}

// AIProvider abstracts the AI/LLM backend for embeddings and chat completions.
// Implementations can target OpenAI, Azure OpenAI, or Ollama.
type AIProvider interface {
	Embedder

	// ModelName returns the identifier of the chat model being used.
	ModelName() string

	// Chat sends a system and user prompt and returns the complete response.
	Chat(ctx context.Context, systemPrompt string, userPrompt string) (string, error)

	// ChatStream sends a prompt and streams the response token-by-token via channel.
	// The token channel is closed when the response ends or ctx is cancelled.
	// The error channel then yields the error that cut the reply short, if any,
	// and is closed.
	ChatStream(ctx context.Context, systemPrompt string, userPrompt string) (<-chan string, <-chan error, error)
}

// QuestionGenerator produces sample questions a listener could ask about an episode.
type QuestionGenerator interface {
	GenerateQuestions(ctx context.Context, title, transcript string, n int) ([]string, error)
}

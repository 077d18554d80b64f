package ai

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
)

// OllamaEndpointConfig holds the configuration for a single Ollama endpoint.
type OllamaEndpointConfig struct {
	BaseURL string // e.g. http://localhost:11434 or https://api.ollama.com
	Model   string // e.g. nomic-embed-text, llama3.1
	Token   string // Bearer token for Ollama Cloud (empty = no auth)
}

// OllamaProvider implements port.AIProvider and port.QuestionGenerator using the Ollama REST API.
// Embeddings and chat may live on different hosts with different tokens.
type OllamaProvider struct {
	embed      OllamaEndpointConfig
	chat       OllamaEndpointConfig
	httpClient *http.Client
}

// NewOllamaProvider creates a new Ollama-backed AI provider with separate embed/chat configs.
func NewOllamaProvider(embed, chat OllamaEndpointConfig) *OllamaProvider {
	return &OllamaProvider{
		embed:      embed,
		chat:       chat,
		httpClient: &http.Client{},
	}
}

type ollamaMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

type ollamaChatRequest struct {
	Model    string          `json:"model"`
	Messages []ollamaMessage `json:"messages"`
	Stream   bool            `json:"stream"`
	Format   any             `json:"format,omitempty"`
}

type ollamaChatResponse struct {
	Message ollamaMessage `json:"message"`
	Done    bool          `json:"done"`
}

type ollamaEmbedRequest struct {
	Model string   `json:"model"`
	Input []string `json:"input"`
}

type ollamaEmbedResponse struct {
	Embeddings [][]float32 `json:"embeddings"`
}

// ModelName returns the chat model identifier.
func (o *OllamaProvider) ModelName() string {
	return o.chat.Model
}

// Embed generates a vector embedding for the given text.
func (o *OllamaProvider) Embed(ctx context.Context, text string) ([]float32, error) {
	vectors, err := o.EmbedBatch(ctx, []string{text})
	if err != nil {
		return nil, err
	}
	return vectors[0], nil
}

// EmbedBatch embeds every text with one /api/embed call.
func (o *OllamaProvider) EmbedBatch(ctx context.Context, texts []string) ([][]float32, error) {
	var resp ollamaEmbedResponse
	err := o.call(ctx, o.embed, "/api/embed", ollamaEmbedRequest{Model: o.embed.Model, Input: texts}, &resp)
	if err != nil {
		return nil, fmt.Errorf("ollama embed: %w", err)
	}
	if len(resp.Embeddings) != len(texts) {
		return nil, fmt.Errorf("ollama embed: got %d embeddings for %d inputs", len(resp.Embeddings), len(texts))
	}
	return resp.Embeddings, nil
}

func (o *OllamaProvider) chatRequest(systemPrompt, userPrompt string, stream bool) ollamaChatRequest {
	return ollamaChatRequest{
		Model: o.chat.Model,
		Messages: []ollamaMessage{
			{Role: "system", Content: systemPrompt},
			{Role: "user", Content: userPrompt},
		},
		Stream: stream,
	}
}

// Chat sends a system and user prompt and returns the complete response.
func (o *OllamaProvider) Chat(ctx context.Context, systemPrompt string, userPrompt string) (string, error) {
	var resp ollamaChatResponse
	if err := o.call(ctx, o.chat, "/api/chat", o.chatRequest(systemPrompt, userPrompt, false), &resp); err != nil {
		return "", fmt.Errorf("ollama chat: %w", err)
	}
	return resp.Message.Content, nil
}

// ChatStream streams the reply. Ollama sends one JSON object per line until done.
func (o *OllamaProvider) ChatStream(ctx context.Context, systemPrompt string, userPrompt string) (<-chan string, <-chan error, error) {
	resp, err := o.send(ctx, o.chat, "/api/chat", o.chatRequest(systemPrompt, userPrompt, true))
	if err != nil {
		return nil, nil, fmt.Errorf("ollama stream: %w", err)
	}

	ch := make(chan string, 64)
	errc := make(chan error, 1)
	go func() {
		defer close(errc)
		defer close(ch)
		defer resp.Body.Close()

		decoder := json.NewDecoder(resp.Body)
		for decoder.More() {
			var chunk ollamaChatResponse
			if err := decoder.Decode(&chunk); err != nil {
				slog.Error("ollama stream decode", "error", err)
				errc <- fmt.Errorf("ollama stream: %w", err)
				return
			}
			if chunk.Message.Content != "" {
				select {
				case ch <- chunk.Message.Content:
				case <-ctx.Done():
					errc <- ctx.Err()
					return
				}
			}
			if chunk.Done {
				return
			}
		}
		errc <- fmt.Errorf("ollama stream: %w", io.ErrUnexpectedEOF)
	}()

	return ch, errc, nil
}

// GenerateQuestions asks the chat model for n questions, constraining the reply
// with the same JSON schema used for OpenAI structured output.
func (o *OllamaProvider) GenerateQuestions(ctx context.Context, title, transcript string, n int) ([]string, error) {
	req := o.chatRequest(questionsPrompt, questionsInput(title, transcript, n), false)
	req.Format = sampleQuestionsSchema

	var resp ollamaChatResponse
	if err := o.call(ctx, o.chat, "/api/chat", req, &resp); err != nil {
		return nil, fmt.Errorf("ollama questions: %w", err)
	}
	return decodeQuestions(resp.Message.Content, n)
}

// call posts payload and decodes the JSON reply into out.
func (o *OllamaProvider) call(ctx context.Context, endpoint OllamaEndpointConfig, path string, payload, out any) error {
	resp, err := o.send(ctx, endpoint, path, payload)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("decode response: %w", err)
	}
	return nil
}

// send posts payload to an Ollama endpoint (with optional bearer token).
// The caller owns the body of a successful response.
func (o *OllamaProvider) send(ctx context.Context, endpoint OllamaEndpointConfig, path string, payload any) (*http.Response, error) {
	body, err := json.Marshal(payload)
	if err != nil {
		return nil, fmt.Errorf("marshal payload: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint.BaseURL+path, bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	if endpoint.Token != "" {
		req.Header.Set("Authorization", "Bearer "+endpoint.Token)
	}

	resp, err := o.httpClient.Do(req)
	if err != nil {
		return nil, err
	}
	if resp.StatusCode != http.StatusOK {
		defer resp.Body.Close()
		msg, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
		return nil, fmt.Errorf("ollama API error (%d): %s", resp.StatusCode, bytes.TrimSpace(msg))
	}
	return resp, nil
}

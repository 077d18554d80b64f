package ai

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/openai/openai-go"
	"github.com/openai/openai-go/azure"
	"github.com/openai/openai-go/option"
	"github.com/openai/openai-go/responses"
)

// OpenAIConfig holds the settings for the OpenAI or Azure OpenAI backend.
type OpenAIConfig struct {
	APIKey         string
	BaseURL        string // optional override for OpenAI compatible endpoints
	AzureEndpoint  string // e.g. https://my-resource.openai.azure.com (empty = api.openai.com)
	APIVersion     string // Azure api-version, e.g. 2024-02-01
	EmbeddingModel string // model name, or deployment name on Azure
	ChatModel      string
}

// OpenAIProvider implements port.AIProvider and port.QuestionGenerator using openai-go.
type OpenAIProvider struct {
	client         *openai.Client
	embeddingModel string
	chatModel      string
}

// NewOpenAIProvider creates a provider for OpenAI or, when AzureEndpoint is set, Azure OpenAI.
func NewOpenAIProvider(cfg OpenAIConfig) *OpenAIProvider {
	// Retries are left to the caller.
	opts := []option.RequestOption{option.WithMaxRetries(0)}
	if cfg.AzureEndpoint != "" {
		opts = append(opts,
			azure.WithEndpoint(cfg.AzureEndpoint, cfg.APIVersion),
			azure.WithAPIKey(cfg.APIKey),
		)
	} else {
		opts = append(opts, option.WithAPIKey(cfg.APIKey))
		if cfg.BaseURL != "" {
			opts = append(opts, option.WithBaseURL(cfg.BaseURL))
		}
	}

	client := openai.NewClient(opts...)
	return &OpenAIProvider{
		client:         &client,
		embeddingModel: cfg.EmbeddingModel,
		chatModel:      cfg.ChatModel,
	}
}

// ModelName returns the chat model identifier.
func (p *OpenAIProvider) ModelName() string {
	return p.chatModel
}

// Embed generates a vector embedding for the given text.
func (p *OpenAIProvider) Embed(ctx context.Context, text string) ([]float32, error) {
	vectors, err := p.EmbedBatch(ctx, []string{text})
	if err != nil {
		return nil, err
	}
	return vectors[0], nil
}

// EmbedBatch embeds all texts in one request. Vectors are returned in input order.
func (p *OpenAIProvider) EmbedBatch(ctx context.Context, texts []string) ([][]float32, error) {
	if len(texts) == 0 {
		return nil, nil
	}

	resp, err := p.client.Embeddings.New(ctx, openai.EmbeddingNewParams{
		Input: openai.EmbeddingNewParamsInputUnion{OfArrayOfStrings: texts},
		Model: openai.EmbeddingModel(p.embeddingModel),
	})
	if err != nil {
		return nil, fmt.Errorf("openai embed: %w", err)
	}
	if len(resp.Data) != len(texts) {
		return nil, fmt.Errorf("openai embed: got %d embeddings for %d inputs", len(resp.Data), len(texts))
	}

	vectors := make([][]float32, len(texts))
	for _, d := range resp.Data {
		if d.Index < 0 || int(d.Index) >= len(texts) || vectors[d.Index] != nil {
			return nil, fmt.Errorf("openai embed: unexpected embedding index %d", d.Index)
		}
		v := make([]float32, len(d.Embedding))
		for i, f := range d.Embedding {
			v[i] = float32(f)
		}
		vectors[d.Index] = v
	}
	return vectors, nil
}

func (p *OpenAIProvider) chatParams(systemPrompt, userPrompt string) openai.ChatCompletionNewParams {
	return openai.ChatCompletionNewParams{
		Model: openai.ChatModel(p.chatModel),
		Messages: []openai.ChatCompletionMessageParamUnion{
			openai.SystemMessage(systemPrompt),
			openai.UserMessage(userPrompt),
		},
	}
}

// Chat sends a system and user prompt and returns the complete response.
func (p *OpenAIProvider) Chat(ctx context.Context, systemPrompt string, userPrompt string) (string, error) {
	resp, err := p.client.Chat.Completions.New(ctx, p.chatParams(systemPrompt, userPrompt))
	if err != nil {
		return "", fmt.Errorf("openai chat: %w", err)
	}
	if len(resp.Choices) == 0 {
		return "", fmt.Errorf("openai chat: empty response")
	}
	return resp.Choices[0].Message.Content, nil
}

// ChatStream sends a prompt and streams the response token-by-token.
func (p *OpenAIProvider) ChatStream(ctx context.Context, systemPrompt string, userPrompt string) (<-chan string, <-chan error, error) {
	stream := p.client.Chat.Completions.NewStreaming(ctx, p.chatParams(systemPrompt, userPrompt))
	if err := stream.Err(); err != nil {
		stream.Close()
		return nil, nil, fmt.Errorf("openai stream: %w", err)
	}

	ch := make(chan string, 64)
	errc := make(chan error, 1)
	go func() {
		defer close(errc)
		defer close(ch)
		defer stream.Close()

		for stream.Next() {
			chunk := stream.Current()
			if len(chunk.Choices) == 0 || chunk.Choices[0].Delta.Content == "" {
				continue
			}
			select {
			case ch <- chunk.Choices[0].Delta.Content:
			case <-ctx.Done():
				errc <- ctx.Err()
				return
			}
		}
		if err := stream.Err(); err != nil {
			slog.Error("openai stream interrupted", "model", p.chatModel, "error", err)
			errc <- fmt.Errorf("openai stream: %w", err)
		}
	}()

	return ch, errc, nil
}

// GenerateQuestions asks the model for n questions using a strict JSON schema response.
func (p *OpenAIProvider) GenerateQuestions(ctx context.Context, title, transcript string, n int) ([]string, error) {
	params := responses.ResponseNewParams{
		Model:        p.chatModel,
		Instructions: openai.String(questionsPrompt),
		Input: responses.ResponseNewParamsInputUnion{
			OfInputItemList: []responses.ResponseInputItemUnionParam{
				responses.ResponseInputItemParamOfMessage(questionsInput(title, transcript, n), responses.EasyInputMessageRoleUser),
			},
		},
		Text: responses.ResponseTextConfigParam{
			Format: responses.ResponseFormatTextConfigUnionParam{
				OfJSONSchema: &responses.ResponseFormatTextJSONSchemaConfigParam{
					Name:        "SampleQuestions",
					Schema:      sampleQuestionsSchema,
					Strict:      openai.Bool(true),
					Description: openai.String("Sample listener questions"),
					Type:        "json_schema",
				},
			},
		},
	}

	resp, err := p.client.Responses.New(ctx, params)
	if err != nil {
		return nil, fmt.Errorf("openai questions: %w", err)
	}
	return decodeQuestions(resp.OutputText(), n)
}

package ai

import (
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newOpenAITestProvider(t *testing.T, handler http.HandlerFunc) *OpenAIProvider {
	t.Helper()
	srv := httptest.NewServer(handler)
	t.Cleanup(srv.Close)
	return NewOpenAIProvider(OpenAIConfig{
		APIKey:         "test-key",
		BaseURL:        srv.URL + "/v1/",
		EmbeddingModel: "text-embedding-ada-002",
		ChatModel:      "gpt-4o",
	})
}

func TestOpenAIProvider_EmbedBatchKeepsInputOrder(t *testing.T) {
	var got struct {
		Input []string `json:"input"`
		Model string   `json:"model"`
	}
	p := newOpenAITestProvider(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/v1/embeddings", r.URL.Path)
		assert.Equal(t, "Bearer test-key", r.Header.Get("Authorization"))
		body, _ := io.ReadAll(r.Body)
		assert.NoError(t, json.Unmarshal(body, &got))

		w.Header().Set("Content-Type", "application/json")
		fmt.Fprint(w, `{"object":"list","model":"text-embedding-ada-002",
			"data":[
				{"object":"embedding","index":1,"embedding":[0.3,0.4]},
				{"object":"embedding","index":0,"embedding":[0.1,0.2]}
			],
			"usage":{"prompt_tokens":2,"total_tokens":2}}`)
	})

	vectors, err := p.EmbedBatch(t.Context(), []string{"first", "second"})
	require.NoError(t, err)
	assert.Equal(t, []string{"first", "second"}, got.Input)
	assert.Equal(t, "text-embedding-ada-002", got.Model)
	require.Len(t, vectors, 2)
	assert.Equal(t, []float32{0.1, 0.2}, vectors[0])
	assert.Equal(t, []float32{0.3, 0.4}, vectors[1])
}

func TestOpenAIProvider_EmbedBatchCardinalityMismatch(t *testing.T) {
	p := newOpenAITestProvider(t, func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		fmt.Fprint(w, `{"object":"list","model":"m","data":[{"object":"embedding","index":0,"embedding":[0.1]}],
			"usage":{"prompt_tokens":1,"total_tokens":1}}`)
	})

	_, err := p.EmbedBatch(t.Context(), []string{"a", "b"})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "got 1 embeddings for 2 inputs")
}

func TestOpenAIProvider_EmbedServerError(t *testing.T) {
	p := newOpenAITestProvider(t, func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusInternalServerError)
		fmt.Fprint(w, `{"error":{"message":"down","type":"server_error"}}`)
	})

	_, err := p.Embed(t.Context(), "a")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "openai embed")
}

func TestOpenAIProvider_Chat(t *testing.T) {
	var got struct {
		Model    string `json:"model"`
		Messages []struct {
			Role    string `json:"role"`
			Content string `json:"content"`
		} `json:"messages"`
	}
	p := newOpenAITestProvider(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/v1/chat/completions", r.URL.Path)
		body, _ := io.ReadAll(r.Body)
		assert.NoError(t, json.Unmarshal(body, &got))

		w.Header().Set("Content-Type", "application/json")
		fmt.Fprint(w, `{"id":"c1","object":"chat.completion","created":1,"model":"gpt-4o",
			"choices":[{"index":0,"finish_reason":"stop","message":{"role":"assistant","content":"It was great."}}]}`)
	})

	answer, err := p.Chat(t.Context(), "be brief", "how was it?")
	require.NoError(t, err)
	assert.Equal(t, "It was great.", answer)
	assert.Equal(t, "gpt-4o", got.Model)
	require.Len(t, got.Messages, 2)
	assert.Equal(t, "system", got.Messages[0].Role)
	assert.Equal(t, "be brief", got.Messages[0].Content)
	assert.Equal(t, "user", got.Messages[1].Role)
	assert.Equal(t, "gpt-4o", p.ModelName())
}

func TestOpenAIProvider_ChatStream(t *testing.T) {
	p := newOpenAITestProvider(t, func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "text/event-stream")
		for _, part := range []string{"Hel", "lo"} {
			fmt.Fprintf(w, "data: {\"id\":\"c1\",\"object\":\"chat.completion.chunk\",\"created\":1,\"model\":\"gpt-4o\",\"choices\":[{\"index\":0,\"delta\":{\"content\":%q}}]}\n\n", part)
		}
		fmt.Fprint(w, "data: [DONE]\n\n")
	})

	ch, errc, err := p.ChatStream(t.Context(), "sys", "user")
	require.NoError(t, err)

	var out string
	for token := range ch {
		out += token
	}
	assert.Equal(t, "Hello", out)
	assert.NoError(t, <-errc)
}

func TestOpenAIProvider_GenerateQuestions(t *testing.T) {
	var got struct {
		Model string `json:"model"`
		Text  struct {
			Format struct {
				Type   string `json:"type"`
				Name   string `json:"name"`
				Strict bool   `json:"strict"`
			} `json:"format"`
		} `json:"text"`
	}
	p := newOpenAITestProvider(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/v1/responses", r.URL.Path)
		body, _ := io.ReadAll(r.Body)
		assert.NoError(t, json.Unmarshal(body, &got))

		w.Header().Set("Content-Type", "application/json")
		fmt.Fprint(w, `{"id":"resp_1","object":"response","created_at":1,"model":"gpt-4o","status":"completed",
			"output":[{"type":"message","id":"msg_1","status":"completed","role":"assistant",
				"content":[{"type":"output_text","annotations":[],
					"text":"{\"questions\":[\"Who is the guest?\",\" \",\"What is the main topic?\",\"Extra?\"]}"}]}]}`)
	})

	questions, err := p.GenerateQuestions(t.Context(), "Episode 1", "transcript text", 2)
	require.NoError(t, err)
	assert.Equal(t, []string{"Who is the guest?", "What is the main topic?"}, questions)
	assert.Equal(t, "json_schema", got.Text.Format.Type)
	assert.Equal(t, "SampleQuestions", got.Text.Format.Name)
	assert.True(t, got.Text.Format.Strict)
}

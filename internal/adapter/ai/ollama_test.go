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

func newOllamaTestProvider(t *testing.T, handler http.HandlerFunc) *OllamaProvider {
	t.Helper()
	srv := httptest.NewServer(handler)
	t.Cleanup(srv.Close)
	return NewOllamaProvider(
		OllamaEndpointConfig{BaseURL: srv.URL, Model: "nomic-embed-text"},
		OllamaEndpointConfig{BaseURL: srv.URL, Model: "llama3.1", Token: "secret"},
	)
}

func TestOllamaProvider_EmbedBatch(t *testing.T) {
	p := newOllamaTestProvider(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/api/embed", r.URL.Path)
		assert.Empty(t, r.Header.Get("Authorization"))
		fmt.Fprint(w, `{"embeddings":[[0.1,0.2],[0.3,0.4]]}`)
	})

	vectors, err := p.EmbedBatch(t.Context(), []string{"a", "b"})
	require.NoError(t, err)
	assert.Equal(t, [][]float32{{0.1, 0.2}, {0.3, 0.4}}, vectors)
}

func TestOllamaProvider_EmbedBatchMismatch(t *testing.T) {
	p := newOllamaTestProvider(t, func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprint(w, `{"embeddings":[[0.1,0.2]]}`)
	})

	_, err := p.EmbedBatch(t.Context(), []string{"a", "b"})
	require.Error(t, err)
}

func TestOllamaProvider_ChatUsesBearerToken(t *testing.T) {
	p := newOllamaTestProvider(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/api/chat", r.URL.Path)
		assert.Equal(t, "Bearer secret", r.Header.Get("Authorization"))
		fmt.Fprint(w, `{"message":{"role":"assistant","content":"answer"},"done":true}`)
	})

	answer, err := p.Chat(t.Context(), "sys", "q")
	require.NoError(t, err)
	assert.Equal(t, "answer", answer)
}

func TestOllamaProvider_ChatStream(t *testing.T) {
	p := newOllamaTestProvider(t, func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprintln(w, `{"message":{"content":"a"},"done":false}`)
		fmt.Fprintln(w, `{"message":{"content":"b"},"done":false}`)
		fmt.Fprintln(w, `{"message":{"content":""},"done":true}`)
	})

	ch, errc, err := p.ChatStream(t.Context(), "sys", "q")
	require.NoError(t, err)
	var out string
	for s := range ch {
		out += s
	}
	assert.Equal(t, "ab", out)
	assert.NoError(t, <-errc)
}

func TestOllamaProvider_ChatStreamCutShort(t *testing.T) {
	tests := []struct {
		name string
		body string
	}{
		{"no done marker", `{"message":{"content":"a"},"done":false}` + "\n"},
		{"garbled line", `{"message":{"content":"a"},"done":false}` + "\n{\"message\":"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			p := newOllamaTestProvider(t, func(w http.ResponseWriter, r *http.Request) {
				fmt.Fprint(w, tt.body)
			})

			ch, errc, err := p.ChatStream(t.Context(), "sys", "q")
			require.NoError(t, err)
			var out string
			for s := range ch {
				out += s
			}
			assert.Equal(t, "a", out)
			assert.Error(t, <-errc)
		})
	}
}

func TestOllamaProvider_ChatStreamHTTPError(t *testing.T) {
	p := newOllamaTestProvider(t, func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "model not found", http.StatusNotFound)
	})

	_, _, err := p.ChatStream(t.Context(), "sys", "q")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "404")
}

func TestOllamaProvider_GenerateQuestionsSendsSchema(t *testing.T) {
	var got map[string]any
	p := newOllamaTestProvider(t, func(w http.ResponseWriter, r *http.Request) {
		body, _ := io.ReadAll(r.Body)
		assert.NoError(t, json.Unmarshal(body, &got))
		fmt.Fprint(w, `{"message":{"content":"{\"questions\":[\"Q1?\",\"Q2?\"]}"},"done":true}`)
	})

	questions, err := p.GenerateQuestions(t.Context(), "t", "transcript", 3)
	require.NoError(t, err)
	assert.Equal(t, []string{"Q1?", "Q2?"}, questions)

	format, ok := got["format"].(map[string]any)
	require.True(t, ok)
	assert.Equal(t, "object", format["type"])
	assert.Equal(t, false, format["additionalProperties"])
}

func TestDecodeQuestions(t *testing.T) {
	questions, err := decodeQuestions("Sure! {\"questions\":[\"A?\"]} done", 0)
	require.NoError(t, err)
	assert.Equal(t, []string{"A?"}, questions)

	_, err = decodeQuestions("   ", 1)
	require.Error(t, err)

	_, err = decodeQuestions("no json here", 1)
	require.Error(t, err)
}

package service

import (
	"context"
	"fmt"
	"strings"

	"github.com/moltocasto/podcast-qa/internal/domain"
	"github.com/moltocasto/podcast-qa/internal/port"
)

// Strategy names.
const (
	StrategyFullText = "fulltext"
	StrategyRAG      = "rag"
)

// FullTextStrategy answers from the complete transcript of one episode.
type FullTextStrategy struct {
	episodes port.EpisodeRepository
}

// NewFullTextStrategy creates the full transcript strategy.
func NewFullTextStrategy(episodes port.EpisodeRepository) *FullTextStrategy {
	return &FullTextStrategy{episodes: episodes}
}

func (s *FullTextStrategy) Name() string { return StrategyFullText }

func (s *FullTextStrategy) Description() string {
	return "Answers from the full transcript of a single episode"
}

// Prepare puts the episode title and transcript into the prompt.
func (s *FullTextStrategy) Prepare(ctx context.Context, req port.AnswerRequest) (*port.Prompt, error) {
	if req.EpisodeID == 0 {
		return nil, port.NewInputError("the %s strategy needs an episode id", StrategyFullText)
	}

	episode, err := s.episodes.GetEpisode(ctx, req.PodcastID, req.EpisodeID)
	if err != nil {
		return nil, fmt.Errorf("get episode: %w", err)
	}
	if strings.TrimSpace(episode.TranscriptText) == "" {
		return nil, port.ErrTranscriptMissing
	}

	return &port.Prompt{
		System: answerSystemPrompt,
		User:   fmt.Sprintf(fullTextUserPrompt, episode.Title, req.Question, episode.TranscriptText),
	}, nil
}

// RAGStrategy answers from the stored chunks nearest to the question.
type RAGStrategy struct {
	embedder port.Embedder
	store    port.EmbeddingStore
	topK     int
}

// NewRAGStrategy creates the retrieval strategy. topK defaults to 5.
func NewRAGStrategy(embedder port.Embedder, store port.EmbeddingStore, topK int) *RAGStrategy {
	if topK <= 0 {
		topK = 5
	}
	return &RAGStrategy{embedder: embedder, store: store, topK: topK}
}

func (s *RAGStrategy) Name() string { return StrategyRAG }

func (s *RAGStrategy) Description() string {
	return "Answers from the transcript chunks most similar to the question"
}

// Prepare embeds the question, retrieves the nearest chunks and lists them as context.
func (s *RAGStrategy) Prepare(ctx context.Context, req port.AnswerRequest) (*port.Prompt, error) {
	queryVector, err := s.embedder.Embed(ctx, req.Question)
	if err != nil {
		return nil, &port.EmbeddingServiceError{Err: fmt.Errorf("embed query: %w", err)}
	}

	chunks, err := s.store.SearchSimilar(ctx, req.PodcastID, req.EpisodeID, queryVector, s.topK)
	if err != nil {
		return nil, fmt.Errorf("search similar: %w", err)
	}

	return &port.Prompt{
		System:  answerSystemPrompt,
		User:    fmt.Sprintf(ragUserPrompt, req.Question, ragContext(chunks)),
		Sources: chunks,
	}, nil
}

func ragContext(chunks []domain.SimilarChunk) string {
	var b strings.Builder
	for _, c := range chunks {
		fmt.Fprintf(&b, ragContextLine, c.EpisodeID, c.Title, domain.FormatTimecode(c.Timecode), c.Chunk)
	}
	return b.String()
}

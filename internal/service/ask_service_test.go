package service

import (
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/moltocasto/podcast-qa/internal/domain"
	"github.com/moltocasto/podcast-qa/internal/port"
)

func newAskFixture() (*AskService, *fakeAI, *fakeEpisodes, *fakeStore) {
	ai := &fakeAI{answer: "The guest was Ada."}
	episodes := newFakeEpisodes()
	store := &fakeStore{}
	engine := port.NewAnswerEngine(
		NewFullTextStrategy(episodes),
		NewRAGStrategy(ai, store, 0),
	)
	return NewAskService(engine, ai), ai, episodes, store
}

func TestAskService_FullText(t *testing.T) {
	svc, ai, episodes, _ := newAskFixture()
	episodes.put(domain.Episode{PodcastID: 1, EpisodeID: 7, Title: "Pilot", TranscriptText: "Ada joined us today."})

	answer, err := svc.Ask(t.Context(), StrategyFullText, port.AnswerRequest{Question: "Who was the guest?", PodcastID: 1, EpisodeID: 7})
	require.NoError(t, err)
	assert.Equal(t, "The guest was Ada.", answer.Answer)
	assert.Equal(t, "test-model", answer.Model)
	assert.Empty(t, answer.Sources)

	assert.Contains(t, ai.systemPrompt, "100 words or less")
	assert.Contains(t, ai.userPrompt, `"Pilot"`)
	assert.Contains(t, ai.userPrompt, `"Who was the guest?"`)
	assert.Contains(t, ai.userPrompt, "`Ada joined us today.`")
}

func TestAskService_FullTextErrors(t *testing.T) {
	svc, _, episodes, _ := newAskFixture()
	episodes.put(domain.Episode{PodcastID: 1, EpisodeID: 8, Title: "No transcript"})

	_, err := svc.Ask(t.Context(), StrategyFullText, port.AnswerRequest{Question: "q", PodcastID: 1})
	assert.True(t, port.IsInputError(err))

	_, err = svc.Ask(t.Context(), StrategyFullText, port.AnswerRequest{Question: "q", PodcastID: 1, EpisodeID: 8})
	assert.ErrorIs(t, err, port.ErrTranscriptMissing)

	_, err = svc.Ask(t.Context(), StrategyFullText, port.AnswerRequest{Question: "q", PodcastID: 1, EpisodeID: 9})
	assert.ErrorIs(t, err, port.ErrEpisodeNotFound)
}

func TestAskService_RAG(t *testing.T) {
	svc, ai, _, store := newAskFixture()
	store.similar = []domain.SimilarChunk{
		{EmbeddingRecord: domain.EmbeddingRecord{EpisodeID: 7, Timecode: 90 * time.Second, Chunk: "Ada joined us."}, Title: "Pilot", Distance: 0.1},
		{EmbeddingRecord: domain.EmbeddingRecord{EpisodeID: 9, Chunk: "Bye."}, Title: "Finale", Distance: 0.4},
	}

	answer, err := svc.Ask(t.Context(), StrategyRAG, port.AnswerRequest{Question: "Who was the guest?", PodcastID: 1})
	require.NoError(t, err)
	assert.Len(t, answer.Sources, 2)
	assert.Equal(t, []int64{1, 0, 5}, store.searched)

	assert.Contains(t, ai.userPrompt, "Episode ID 7 with the title Pilot at the timecode PT1M30S provides the context #Ada joined us.#\n")
	assert.Contains(t, ai.userPrompt, "Episode ID 9 with the title Finale at the timecode PT0S provides the context #Bye.#\n")
	assert.Equal(t, [][]string{{"Who was the guest?"}}, ai.calls)
}

func TestAskService_RAGEmbedFailure(t *testing.T) {
	svc, ai, _, _ := newAskFixture()
	ai.err = errors.New("quota")

	_, err := svc.Ask(t.Context(), StrategyRAG, port.AnswerRequest{Question: "q", PodcastID: 1})
	assert.True(t, port.IsEmbeddingServiceError(err))
}

func TestAskService_Validation(t *testing.T) {
	svc, _, _, _ := newAskFixture()

	_, err := svc.Ask(t.Context(), StrategyRAG, port.AnswerRequest{Question: "  ", PodcastID: 1})
	assert.True(t, port.IsInputError(err))

	_, err = svc.Ask(t.Context(), StrategyRAG, port.AnswerRequest{Question: "q"})
	assert.True(t, port.IsInputError(err))

	_, err = svc.Ask(t.Context(), "astrology", port.AnswerRequest{Question: "q", PodcastID: 1})
	assert.ErrorIs(t, err, port.ErrStrategyNotFound)

	assert.Equal(t, []string{StrategyFullText, StrategyRAG}, svc.Strategies())
}

func TestAskService_Stream(t *testing.T) {
	svc, _, episodes, _ := newAskFixture()
	episodes.put(domain.Episode{PodcastID: 1, EpisodeID: 7, Title: "Pilot", TranscriptText: "text"})

	stream, errc, sources, err := svc.AskStream(t.Context(), StrategyFullText, port.AnswerRequest{Question: "q", PodcastID: 1, EpisodeID: 7})
	require.NoError(t, err)
	assert.Empty(t, sources)

	var b strings.Builder
	for tok := range stream {
		b.WriteString(tok)
	}
	assert.Equal(t, "The guest was Ada.", b.String())
	assert.NoError(t, <-errc)
}

func TestAskService_StreamInterrupted(t *testing.T) {
	svc, ai, episodes, _ := newAskFixture()
	episodes.put(domain.Episode{PodcastID: 1, EpisodeID: 7, Title: "Pilot", TranscriptText: "text"})
	ai.streamErr = errors.New("connection reset")

	stream, errc, _, err := svc.AskStream(t.Context(), StrategyFullText, port.AnswerRequest{Question: "q", PodcastID: 1, EpisodeID: 7})
	require.NoError(t, err)
	for range stream {
	}
	assert.EqualError(t, <-errc, "connection reset")
}

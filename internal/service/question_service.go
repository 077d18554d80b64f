package service

import (
	"context"
	"fmt"
	"log/slog"
	"strings"

	"github.com/moltocasto/podcast-qa/internal/port"
)

const (
	defaultQuestionCount = 3
	maxQuestionCount     = 10

	// maxQuestionTranscriptChars caps the transcript sent for question generation.
	maxQuestionTranscriptChars = 80_000
)

// QuestionService generates and stores sample questions for an episode.
type QuestionService struct {
	episodes  port.EpisodeRepository
	generator port.QuestionGenerator
}

// NewQuestionService creates a question service. generator may be nil when the
// configured provider has no structured output.
func NewQuestionService(episodes port.EpisodeRepository, generator port.QuestionGenerator) *QuestionService {
	return &QuestionService{episodes: episodes, generator: generator}
}

// Generate asks the model for n questions about the episode and stores them.
func (s *QuestionService) Generate(ctx context.Context, podcastID, episodeID int64, n int) ([]string, error) {
	if s.generator == nil {
		return nil, port.ErrQuestionsUnsupported
	}
	if n == 0 {
		n = defaultQuestionCount
	}
	if n < 0 || n > maxQuestionCount {
		return nil, port.NewInputError("question count must be between 1 and %d", maxQuestionCount)
	}

	episode, err := s.episodes.GetEpisode(ctx, podcastID, episodeID)
	if err != nil {
		return nil, fmt.Errorf("get episode: %w", err)
	}
	transcript := strings.TrimSpace(episode.TranscriptText)
	if transcript == "" {
		return nil, port.ErrTranscriptMissing
	}
	if r := []rune(transcript); len(r) > maxQuestionTranscriptChars {
		transcript = string(r[:maxQuestionTranscriptChars])
	}

	questions, err := s.generator.GenerateQuestions(ctx, episode.Title, transcript, n)
	if err != nil {
		return nil, fmt.Errorf("generate questions: %w", err)
	}

	if err := s.episodes.SaveQuestions(ctx, podcastID, episodeID, questions); err != nil {
		return nil, fmt.Errorf("save questions: %w", err)
	}

	slog.Info("sample questions stored", "podcast_id", podcastID, "episode_id", episodeID, "count", len(questions))
	return questions, nil
}

package service

import (
	"context"
	"fmt"
	"log/slog"
	"strings"

	"github.com/moltocasto/podcast-qa/internal/domain"
	"github.com/moltocasto/podcast-qa/internal/port"
)

// AskService answers listener questions with a named strategy.
type AskService struct {
	engine *port.AnswerEngine
	ai     port.AIProvider
}

// NewAskService creates a new ask service.
func NewAskService(engine *port.AnswerEngine, ai port.AIProvider) *AskService {
	return &AskService{engine: engine, ai: ai}
}

func (s *AskService) prepare(ctx context.Context, strategy string, req port.AnswerRequest) (*port.Prompt, error) {
	if strings.TrimSpace(req.Question) == "" {
		return nil, port.NewInputError("question is empty")
	}
	if req.PodcastID <= 0 {
		return nil, port.NewInputError("podcast id must be positive")
	}

	st, err := s.engine.Strategy(strategy)
	if err != nil {
		return nil, fmt.Errorf("strategy %q: %w", strategy, err)
	}

	slog.Info("answering question", "strategy", strategy, "podcast_id", req.PodcastID, "episode_id", req.EpisodeID)
	return st.Prepare(ctx, req)
}

// Ask returns the complete answer.
func (s *AskService) Ask(ctx context.Context, strategy string, req port.AnswerRequest) (*port.Answer, error) {
	prompt, err := s.prepare(ctx, strategy, req)
	if err != nil {
		return nil, err
	}

	text, err := s.ai.Chat(ctx, prompt.System, prompt.User)
	if err != nil {
		return nil, fmt.Errorf("chat: %w", err)
	}

	return &port.Answer{
		Strategy: strategy,
		Question: req.Question,
		Answer:   strings.TrimSpace(text),
		Model:    s.ai.ModelName(),
		Sources:  prompt.Sources,
	}, nil
}

// AskStream streams the answer token by token along with the sources it used.
// Once the token channel closes, the error channel reports whether the answer
// was cut short.
func (s *AskService) AskStream(ctx context.Context, strategy string, req port.AnswerRequest) (<-chan string, <-chan error, []domain.SimilarChunk, error) {
	prompt, err := s.prepare(ctx, strategy, req)
	if err != nil {
		return nil, nil, nil, err
	}

	stream, errc, err := s.ai.ChatStream(ctx, prompt.System, prompt.User)
	if err != nil {
		return nil, nil, nil, fmt.Errorf("chat stream: %w", err)
	}
	return stream, errc, prompt.Sources, nil
}

// Strategies returns the available strategy names.
func (s *AskService) Strategies() []string {
	return s.engine.AvailableStrategies()
}

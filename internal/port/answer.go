package port

import (
	"context"
	"sort"

	"github.com/moltocasto/podcast-qa/internal/domain"
)

// AnswerStrategy defines a pluggable way of answering a listener question (Strategy Pattern).
type AnswerStrategy interface {
	// Name returns the unique name of this strategy (e.g. "fulltext", "rag").
	Name() string

	// Description returns a human-readable description of how this strategy answers.
	Description() string

	// Prepare builds the prompts for the question and returns the sources they cite.
	Prepare(ctx context.Context, req AnswerRequest) (*Prompt, error)
}

// AnswerRequest identifies the question and the scope it is asked against.
type AnswerRequest struct {
	Question  string `json:"question"`
	PodcastID int64  `json:"podcast_id"`
	EpisodeID int64  `json:"episode_id,omitempty"` // 0 = whole podcast
}

// Prompt is what a strategy hands to the chat model.
type Prompt struct {
	System  string                `json:"-"`
	User    string                `json:"-"`
	Sources []domain.SimilarChunk `json:"sources,omitempty"`
}

// Answer holds the output of a strategy after the model replied.
type Answer struct {
	Strategy string                `json:"strategy"`
	Question string                `json:"question"`
	Answer   string                `json:"answer"`
	Model    string                `json:"model"`
	Sources  []domain.SimilarChunk `json:"sources,omitempty"`
}

// AnswerEngine resolves strategies by name.
type AnswerEngine struct {
	strategies map[string]AnswerStrategy
}

// NewAnswerEngine creates a new engine with the given strategies.
func NewAnswerEngine(strategies ...AnswerStrategy) *AnswerEngine {
	m := make(map[string]AnswerStrategy, len(strategies))
	for _, s := range strategies {
		m[s.Name()] = s
	}
	return &AnswerEngine{strategies: m}
}

// Strategy returns the named strategy.
func (e *AnswerEngine) Strategy(name string) (AnswerStrategy, error) {
	s, ok := e.strategies[name]
	if !ok {
		return nil, ErrStrategyNotFound
	}
	return s, nil
}

// AvailableStrategies returns the names of all registered strategies, sorted.
func (e *AnswerEngine) AvailableStrategies() []string {
	names := make([]string, 0, len(e.strategies))
	for name := range e.strategies {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}
